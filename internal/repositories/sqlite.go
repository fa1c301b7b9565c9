package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/desertthunder/hoardsync/internal/shared"
)

// SQLiteCache implements [Cache] on the cache_entries table of a SQLite database.
//
// TTLs are stored as absolute unix-millisecond deadlines; expired rows are invisible to reads and removed by
// [SQLiteCache.PurgeExpired].
type SQLiteCache struct {
	path         string
	maxOpenConns int
	maxIdleConns int
	now          func() time.Time

	mu sync.RWMutex
	db *sql.DB
}

// NewSQLiteCache creates a cache for the database file at path. Nothing is opened until Connect.
func NewSQLiteCache(path string, maxOpenConns, maxIdleConns int) *SQLiteCache {
	if path == ":memory:" {
		maxOpenConns, maxIdleConns = 1, 1
	}
	return &SQLiteCache{path: path, maxOpenConns: maxOpenConns, maxIdleConns: maxIdleConns, now: time.Now}
}

// Connect opens the database and applies pending migrations. Connecting twice is a no-op.
func (c *SQLiteCache) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db != nil {
		return nil
	}

	db, err := shared.NewDatabase(c.path)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrCacheUnavailable, err)
	}
	shared.ConfigureDatabase(db, c.maxOpenConns, c.maxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return fmt.Errorf("%w: failed to run migrations: %v", shared.ErrCacheUnavailable, err)
	}

	if err := ctx.Err(); err != nil {
		db.Close()
		return err
	}

	c.db = db
	return nil
}

// Disconnect closes the database. Disconnecting a closed cache is a no-op.
func (c *SQLiteCache) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	if err != nil {
		return fmt.Errorf("failed to close cache database: %w", err)
	}
	return nil
}

// DB exposes the open connection for repositories sharing the file, or nil when disconnected.
func (c *SQLiteCache) DB() *sql.DB {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.db
}

func (c *SQLiteCache) conn() (*sql.DB, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.db == nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrCacheUnavailable, shared.ErrCacheClosed)
	}
	return c.db, nil
}

func (c *SQLiteCache) nowMillis() int64 {
	return c.now().UnixMilli()
}

func (c *SQLiteCache) Get(ctx context.Context, key string) (json.RawMessage, bool, error) {
	db, err := c.conn()
	if err != nil {
		return nil, false, err
	}

	var value string
	err = db.QueryRowContext(ctx,
		`SELECT value FROM cache_entries WHERE key = ? AND (expires_at IS NULL OR expires_at > ?)`,
		key, c.nowMillis(),
	).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cache key %s: %w", key, err)
	}

	return json.RawMessage(value), true, nil
}

func (c *SQLiteCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	db, err := c.conn()
	if err != nil {
		return err
	}

	data, err := encodeValue(value)
	if err != nil {
		return err
	}

	var expiresAt any
	if ttl > 0 {
		expiresAt = c.now().Add(ttl).UnixMilli()
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO cache_entries (key, value, expires_at, updated_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			expires_at = excluded.expires_at,
			updated_at = CURRENT_TIMESTAMP
	`, key, string(data), expiresAt)
	if err != nil {
		return fmt.Errorf("failed to write cache key %s: %w", key, err)
	}
	return nil
}

func (c *SQLiteCache) Has(ctx context.Context, key string) (bool, error) {
	db, err := c.conn()
	if err != nil {
		return false, err
	}

	var exists bool
	err = db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM cache_entries WHERE key = ? AND (expires_at IS NULL OR expires_at > ?))`,
		key, c.nowMillis(),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check cache key %s: %w", key, err)
	}
	return exists, nil
}

func (c *SQLiteCache) Delete(ctx context.Context, key string) error {
	db, err := c.conn()
	if err != nil {
		return err
	}

	if _, err := db.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete cache key %s: %w", key, err)
	}
	return nil
}

// Keys returns every live key in lexical order.
func (c *SQLiteCache) Keys(ctx context.Context) ([]string, error) {
	db, err := c.conn()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT key FROM cache_entries WHERE expires_at IS NULL OR expires_at > ? ORDER BY key`,
		c.nowMillis(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list cache keys: %w", err)
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan cache key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return keys, nil
}

// PurgeExpired deletes rows whose TTL has passed and returns how many were removed.
func (c *SQLiteCache) PurgeExpired(ctx context.Context) (int64, error) {
	db, err := c.conn()
	if err != nil {
		return 0, err
	}

	result, err := db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE expires_at IS NOT NULL AND expires_at <= ?`, c.nowMillis())
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired keys: %w", err)
	}
	return result.RowsAffected()
}
