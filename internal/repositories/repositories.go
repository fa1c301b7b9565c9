// package repositories provides persistence layer implementations for sync state.
package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Cache is a connected key-value store holding JSON values.
//
// Values are stored as their JSON encoding so a Get returns exactly what was Set, including JSON null.
// Operations on a disconnected cache fail with [shared.ErrCacheUnavailable].
type Cache interface {
	Connect(ctx context.Context) error
	Disconnect() error
	Get(ctx context.Context, key string) (json.RawMessage, bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Has(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
}

// GetInto decodes the value stored under key into dst. It reports false when the key is absent.
func GetInto(ctx context.Context, c Cache, key string, dst any) (bool, error) {
	raw, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return true, fmt.Errorf("failed to decode cache value for %s: %w", key, err)
	}
	return true, nil
}

// encodeValue marshals a value for storage. [json.RawMessage] values are validated and compacted.
func encodeValue(value any) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to encode cache value: %w", err)
	}
	return data, nil
}
