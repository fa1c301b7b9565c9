package tasks

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/hoardsync/internal/models"
	"github.com/desertthunder/hoardsync/internal/repositories"
	"github.com/desertthunder/hoardsync/internal/shared"
	tu "github.com/desertthunder/hoardsync/internal/testing"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/require"
)

// flakyCache wraps a memory cache with injectable failures.
type flakyCache struct {
	*repositories.MemoryCache
	connectErr error
	failSet    func(key string) error

	release chan struct{} // when set, Disconnect blocks until closed
}

func newFlakyCache() *flakyCache {
	return &flakyCache{MemoryCache: repositories.NewMemoryCache()}
}

func (c *flakyCache) Connect(ctx context.Context) error {
	if c.connectErr != nil {
		return c.connectErr
	}
	return c.MemoryCache.Connect(ctx)
}

func (c *flakyCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if c.failSet != nil {
		if err := c.failSet(key); err != nil {
			return err
		}
	}
	return c.MemoryCache.Set(ctx, key, value, ttl)
}

func (c *flakyCache) Disconnect() error {
	if c.release != nil {
		<-c.release
	}
	return c.MemoryCache.Disconnect()
}

type fakeRecorder struct {
	mu      sync.Mutex
	created []*models.SyncRun
	updated []models.SyncRun
	err     error
}

func (r *fakeRecorder) Create(ctx context.Context, run *models.SyncRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, run)
	return r.err
}

func (r *fakeRecorder) Update(ctx context.Context, run *models.SyncRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updated = append(r.updated, *run)
	return r.err
}

type harness struct {
	engine  *BookmarkEngine
	cache   *flakyCache
	fs      billy.Filesystem
	backups *BackupManager
	source  *tu.FakeSource
	target  *tu.FakeTarget
}

func quietLogger() *log.Logger { return shared.NewLogger(io.Discard) }

func newHarness(t *testing.T, opts ...func(*EngineOpts)) *harness {
	t.Helper()

	h := &harness{
		cache:  newFlakyCache(),
		fs:     memfs.New(),
		source: tu.NewFakeSource(),
		target: &tu.FakeTarget{},
	}
	h.backups = NewBackupManager(h.cache, h.fs, 0, quietLogger())

	o := EngineOpts{
		Cache:     h.cache,
		Backups:   h.backups,
		Source:    h.source,
		Target:    h.target,
		Logger:    quietLogger(),
		BatchSize: 2,
		TestSize:  3,
	}
	for _, fn := range opts {
		fn(&o)
	}

	engine, err := NewBookmarkEngine(o)
	require.NoError(t, err)
	h.engine = engine
	return h
}

func (h *harness) init(t *testing.T) {
	t.Helper()
	require.NoError(t, h.engine.Initialize(context.Background()))
	t.Cleanup(func() { h.engine.Cleanup(context.Background()) })
}

func bookmark(id, title, url string) models.Bookmark {
	return tu.NewBookmark(id, title, url)
}
