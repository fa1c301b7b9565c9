package tasks

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/hoardsync/internal/shared"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackupManager(t *testing.T) {
	ctx := context.Background()

	seeded := func(t *testing.T) *flakyCache {
		t.Helper()
		c := newFlakyCache()
		require.NoError(t, c.Connect(ctx))
		require.NoError(t, c.Set(ctx, "bookmark_b1", true, 0))
		require.NoError(t, c.Set(ctx, "url_https://example.com/1", true, 0))
		require.NoError(t, c.Set(ctx, CursorKey, nil, 0))
		require.NoError(t, c.Set(ctx, "meta", map[string]any{"n": 1.5, "tags": []string{"a", "b"}}, 0))
		return c
	}

	t.Run("Round Trip", func(t *testing.T) {
		fs := memfs.New()
		before := seeded(t)
		n, err := NewBackupManager(before, fs, 0, quietLogger()).Write(ctx)
		require.NoError(t, err)
		assert.Equal(t, 4, n)

		after := newFlakyCache()
		require.NoError(t, after.Connect(ctx))
		n, err = NewBackupManager(after, fs, 0, quietLogger()).Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, 4, n)

		beforeKeys, err := before.Keys(ctx)
		require.NoError(t, err)
		afterKeys, err := after.Keys(ctx)
		require.NoError(t, err)
		assert.Equal(t, beforeKeys, afterKeys)

		for _, key := range beforeKeys {
			want, _, err := before.Get(ctx, key)
			require.NoError(t, err)
			got, ok, err := after.Get(ctx, key)
			require.NoError(t, err)
			require.True(t, ok, key)
			assert.JSONEq(t, string(want), string(got), key)
		}

		cursor, err := LoadCursor(ctx, after)
		require.NoError(t, err)
		assert.Equal(t, "", cursor)
		found, err := after.Has(ctx, CursorKey)
		require.NoError(t, err)
		assert.True(t, found, "the null cursor marker survives the round trip")
	})

	t.Run("Snapshot Is A Flat JSON Object", func(t *testing.T) {
		fs := memfs.New()
		_, err := NewBackupManager(seeded(t), fs, 0, quietLogger()).Write(ctx)
		require.NoError(t, err)

		data, err := util.ReadFile(fs, SnapshotFile)
		require.NoError(t, err)

		var decoded map[string]any
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.Equal(t, true, decoded["bookmark_b1"])
		assert.Contains(t, decoded, CursorKey)
		assert.Nil(t, decoded[CursorKey])

		_, err = fs.Stat(SnapshotFile + ".tmp")
		assert.Error(t, err, "temporary file is renamed away")
	})

	t.Run("Write Replaces Previous Snapshot", func(t *testing.T) {
		fs := memfs.New()
		cache := seeded(t)
		m := NewBackupManager(cache, fs, 0, quietLogger())
		_, err := m.Write(ctx)
		require.NoError(t, err)

		require.NoError(t, cache.Delete(ctx, "meta"))
		n, err := m.Write(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		data, err := util.ReadFile(fs, SnapshotFile)
		require.NoError(t, err)
		assert.NotContains(t, string(data), "meta")
	})

	t.Run("Expired Entries Are Not Written", func(t *testing.T) {
		cache := newFlakyCache()
		require.NoError(t, cache.Connect(ctx))
		require.NoError(t, cache.Set(ctx, "short", 1, time.Nanosecond))
		require.NoError(t, cache.Set(ctx, "long", 2, 0))
		time.Sleep(time.Millisecond)

		snapshot, err := NewBackupManager(cache, memfs.New(), 0, quietLogger()).Read(ctx)
		require.NoError(t, err)
		assert.Len(t, snapshot, 1)
		assert.Contains(t, snapshot, "long")
	})

	t.Run("Missing Snapshot Is Not An Error", func(t *testing.T) {
		cache := newFlakyCache()
		require.NoError(t, cache.Connect(ctx))
		n, err := NewBackupManager(cache, memfs.New(), 0, quietLogger()).Load(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("Corrupt Snapshot", func(t *testing.T) {
		fs := memfs.New()
		require.NoError(t, util.WriteFile(fs, SnapshotFile, []byte(`[1, 2]`), 0o644))
		cache := newFlakyCache()
		require.NoError(t, cache.Connect(ctx))

		m := NewBackupManager(cache, fs, 0, quietLogger())
		_, err := m.Load(ctx)
		assert.ErrorIs(t, err, shared.ErrSnapshotCorrupt)

		assert.NotPanics(t, func() { m.Restore(ctx) })
	})

	t.Run("Backup Swallows Cache Errors", func(t *testing.T) {
		fs := memfs.New()
		m := NewBackupManager(newFlakyCache(), fs, 0, quietLogger())

		_, err := m.Write(ctx)
		assert.ErrorIs(t, err, shared.ErrCacheUnavailable)
		assert.NotPanics(t, func() { m.Backup(ctx) })

		_, err = fs.Stat(SnapshotFile)
		assert.Error(t, err)
	})

	t.Run("Creates Directory On Disk", func(t *testing.T) {
		dir := t.TempDir() + "/nested/backup"
		m := NewBackupManager(seeded(t), osfs.New(dir), 0, quietLogger())

		n, err := m.Write(ctx)
		require.NoError(t, err)
		assert.Equal(t, 4, n)
		assert.FileExists(t, dir+"/"+SnapshotFile)
		assert.Equal(t, dir+"/"+SnapshotFile, m.Path())
	})

	t.Run("Concurrent Writes Keep The Newest Snapshot", func(t *testing.T) {
		fs := memfs.New()
		c := &gatedKeysCache{flakyCache: newFlakyCache(), entered: make(chan struct{}), gate: make(chan struct{})}
		require.NoError(t, c.Connect(ctx))
		require.NoError(t, c.Set(ctx, "bookmark_a", true, 0))
		m := NewBackupManager(c, fs, 0, quietLogger())

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Write(ctx)
			assert.NoError(t, err)
		}()
		<-c.entered

		require.NoError(t, c.Set(ctx, "bookmark_b", true, 0))
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Write(ctx)
			assert.NoError(t, err)
		}()
		time.Sleep(20 * time.Millisecond)
		close(c.gate)
		wg.Wait()

		restored := newFlakyCache()
		require.NoError(t, restored.Connect(ctx))
		_, err := NewBackupManager(restored, fs, 0, quietLogger()).Load(ctx)
		require.NoError(t, err)

		found, err := restored.Has(ctx, "bookmark_b")
		require.NoError(t, err)
		assert.True(t, found, "a stale snapshot replaced a newer one")
	})
}

// gatedKeysCache holds its first Keys call until gate is closed.
type gatedKeysCache struct {
	*flakyCache
	once    sync.Once
	entered chan struct{}
	gate    chan struct{}
}

func (c *gatedKeysCache) Keys(ctx context.Context) ([]string, error) {
	first := false
	c.once.Do(func() { first = true })
	if first {
		close(c.entered)
		<-c.gate
	}
	return c.flakyCache.Keys(ctx)
}

func TestBackupInterval(t *testing.T) {
	ctx := context.Background()

	t.Run("Runs Until Stopped", func(t *testing.T) {
		fs := memfs.New()
		cache := newFlakyCache()
		require.NoError(t, cache.Connect(ctx))
		m := NewBackupManager(cache, fs, 5*time.Millisecond, quietLogger())

		m.Start(ctx)
		m.Start(ctx)
		assert.True(t, m.Running())

		assert.Eventually(t, func() bool {
			_, err := fs.Stat(SnapshotFile)
			return err == nil
		}, time.Second, 5*time.Millisecond)

		m.Stop()
		m.Stop()
		assert.False(t, m.Running())

		require.NoError(t, fs.Remove(SnapshotFile))
		time.Sleep(25 * time.Millisecond)
		_, err := fs.Stat(SnapshotFile)
		assert.Error(t, err, "no backups after Stop returns")
	})

	t.Run("Cancelled Context Ends Loop", func(t *testing.T) {
		cache := newFlakyCache()
		require.NoError(t, cache.Connect(ctx))
		m := NewBackupManager(cache, memfs.New(), time.Hour, quietLogger())

		cctx, cancel := context.WithCancel(ctx)
		m.Start(cctx)
		cancel()

		done := make(chan struct{})
		go func() {
			m.Stop()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("Stop did not return")
		}
	})

	t.Run("Disabled Interval", func(t *testing.T) {
		m := NewBackupManager(newFlakyCache(), memfs.New(), 0, quietLogger())
		m.Start(ctx)
		assert.False(t, m.Running())
		m.Stop()
	})
}
