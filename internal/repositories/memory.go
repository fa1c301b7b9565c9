package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/desertthunder/hoardsync/internal/shared"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

type memoryEntry struct {
	value     json.RawMessage
	expiresAt time.Time // zero means no expiry
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// MemoryCache implements [Cache] in process memory on an unbounded [expirable.LRU].
//
// Contents outlive Disconnect, like a cache server outlives a client connection, but not the process.
// Durability across restarts comes from snapshots.
type MemoryCache struct {
	now func() time.Time

	mu        sync.RWMutex
	connected bool
	entries   *expirable.LRU[string, memoryEntry]
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		now:     time.Now,
		entries: expirable.NewLRU[string, memoryEntry](0, nil, 0),
	}
}

func (c *MemoryCache) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Disconnect() error {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) check(ctx context.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.connected {
		return fmt.Errorf("%w: %w", shared.ErrCacheUnavailable, shared.ErrCacheClosed)
	}
	return ctx.Err()
}

// lookup returns a live entry, evicting it first if its TTL has passed.
func (c *MemoryCache) lookup(key string) (memoryEntry, bool) {
	entry, ok := c.entries.Get(key)
	if !ok {
		return memoryEntry{}, false
	}
	if entry.expired(c.now()) {
		c.entries.Remove(key)
		return memoryEntry{}, false
	}
	return entry, true
}

func (c *MemoryCache) Get(ctx context.Context, key string) (json.RawMessage, bool, error) {
	if err := c.check(ctx); err != nil {
		return nil, false, err
	}
	entry, ok := c.lookup(key)
	if !ok {
		return nil, false, nil
	}
	return slices.Clone(entry.value), true, nil
}

func (c *MemoryCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if err := c.check(ctx); err != nil {
		return err
	}
	data, err := encodeValue(value)
	if err != nil {
		return err
	}

	entry := memoryEntry{value: data}
	if ttl > 0 {
		entry.expiresAt = c.now().Add(ttl)
	}
	c.entries.Add(key, entry)
	return nil
}

func (c *MemoryCache) Has(ctx context.Context, key string) (bool, error) {
	if err := c.check(ctx); err != nil {
		return false, err
	}
	_, ok := c.lookup(key)
	return ok, nil
}

func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	if err := c.check(ctx); err != nil {
		return err
	}
	c.entries.Remove(key)
	return nil
}

// Keys returns every live key in lexical order.
func (c *MemoryCache) Keys(ctx context.Context) ([]string, error) {
	if err := c.check(ctx); err != nil {
		return nil, err
	}

	keys := []string{}
	for _, key := range c.entries.Keys() {
		if _, ok := c.lookup(key); ok {
			keys = append(keys, key)
		}
	}
	slices.Sort(keys)
	return keys, nil
}
