package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/hoardsync/internal/repositories"
	"github.com/desertthunder/hoardsync/internal/shared"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

// SnapshotFile is the name of the cache snapshot inside the backup filesystem.
const SnapshotFile = "cache-backup.json"

// Snapshot maps every cache key to its stored JSON value.
type Snapshot map[string]json.RawMessage

// BackupManager copies the cache to a JSON file and back.
//
// The filesystem is rooted at the backup directory; use osfs.New(dir) in production and memfs.New() in tests.
// Periodic backups run on a handle created by [BackupManager.Start] and joined by [BackupManager.Stop].
type BackupManager struct {
	cache    repositories.Cache
	fs       billy.Filesystem
	interval time.Duration
	logger   *log.Logger

	writeMu sync.Mutex

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewBackupManager creates a manager. An interval <= 0 disables periodic backups.
func NewBackupManager(cache repositories.Cache, fs billy.Filesystem, interval time.Duration, logger *log.Logger) *BackupManager {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &BackupManager{cache: cache, fs: fs, interval: interval, logger: logger.WithPrefix("backup")}
}

// Path returns the snapshot location for display.
func (m *BackupManager) Path() string {
	return m.fs.Join(m.fs.Root(), SnapshotFile)
}

// Read collects every live cache entry.
func (m *BackupManager) Read(ctx context.Context) (Snapshot, error) {
	keys, err := m.cache.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list cache keys: %w", err)
	}

	snapshot := make(Snapshot, len(keys))
	for _, key := range keys {
		raw, ok, err := m.cache.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", key, err)
		}
		// expired between Keys and Get
		if !ok {
			continue
		}
		snapshot[key] = raw
	}
	return snapshot, nil
}

// Write snapshots the cache to the backup file, replacing any previous snapshot.
// It returns the number of entries written.
//
// The cache is read under the same lock as the file write, so a snapshot never replaces a newer one.
func (m *BackupManager) Write(ctx context.Context) (int, error) {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	snapshot, err := m.Read(ctx)
	if err != nil {
		return 0, err
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("failed to encode snapshot: %w", err)
	}

	tmp := SnapshotFile + ".tmp"
	if err := util.WriteFile(m.fs, tmp, data, 0o644); err != nil {
		return 0, fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := m.fs.Rename(tmp, SnapshotFile); err != nil {
		return 0, fmt.Errorf("failed to replace snapshot: %w", err)
	}
	return len(snapshot), nil
}

// Load reads the backup file into the cache and returns the number of entries restored.
// A missing file restores nothing and is not an error.
func (m *BackupManager) Load(ctx context.Context) (int, error) {
	data, err := util.ReadFile(m.fs, SnapshotFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return 0, fmt.Errorf("%w: %v", shared.ErrSnapshotCorrupt, err)
	}

	restored := 0
	for key, raw := range snapshot {
		if err := m.cache.Set(ctx, key, raw, 0); err != nil {
			return restored, fmt.Errorf("failed to restore %s: %w", key, err)
		}
		restored++
	}
	return restored, nil
}

// Backup writes a snapshot. Failures are logged and never returned.
func (m *BackupManager) Backup(ctx context.Context) {
	n, err := m.Write(ctx)
	if err != nil {
		m.logger.Error("cache backup failed", "path", m.Path(), "error", err)
		return
	}
	m.logger.Debug("cache backed up", "path", m.Path(), "entries", n)
}

// Restore loads the snapshot if one exists. Failures are logged and never returned.
func (m *BackupManager) Restore(ctx context.Context) {
	n, err := m.Load(ctx)
	if err != nil {
		m.logger.Warn("cache restore failed, continuing with current cache", "path", m.Path(), "restored", n, "error", err)
		return
	}
	if n == 0 {
		m.logger.Info("no cache snapshot to restore", "path", m.Path())
		return
	}
	m.logger.Info("cache restored", "path", m.Path(), "entries", n)
}

// Start begins periodic backups. It is a no-op when already running or when the interval is disabled.
// The loop ends when ctx is cancelled or [BackupManager.Stop] is called.
func (m *BackupManager) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel != nil || m.interval <= 0 {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	m.cancel, m.done = cancel, done

	go func() {
		defer close(done)

		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Backup(ctx)
			}
		}
	}()

	m.logger.Debug("periodic backup started", "interval", m.interval)
}

// Stop cancels periodic backups and waits for an in-flight backup to finish. Safe to call more than once.
func (m *BackupManager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel == nil {
		return
	}

	m.cancel()
	<-m.done
	m.cancel, m.done = nil, nil
	m.logger.Debug("periodic backup stopped")
}

// Running reports whether the periodic loop is active.
func (m *BackupManager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancel != nil
}
