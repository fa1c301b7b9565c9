package tasks

import (
	"context"
	"testing"

	"github.com/desertthunder/hoardsync/internal/shared"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeduper(t *testing.T) {
	ctx := context.Background()

	connected := func(t *testing.T) *flakyCache {
		t.Helper()
		c := newFlakyCache()
		require.NoError(t, c.Connect(ctx))
		return c
	}

	t.Run("Mark Then Check", func(t *testing.T) {
		cache := connected(t)
		d := NewDeduper(cache, quietLogger())
		b := bookmark("b1", "One", "https://www.example.com/post/")

		synced, err := d.IsSynced(ctx, &b)
		require.NoError(t, err)
		assert.False(t, synced)

		require.NoError(t, d.MarkSynced(ctx, &b))

		match, err := d.Check(ctx, &b)
		require.NoError(t, err)
		assert.Equal(t, IdentityMatch, match)

		keys, err := cache.Keys(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"bookmark_b1", "url_https://example.com/post"}, keys)

		raw, _, err := cache.Get(ctx, "bookmark_b1")
		require.NoError(t, err)
		assert.JSONEq(t, "true", string(raw))
	})

	t.Run("URL Match For New Identity", func(t *testing.T) {
		cache := connected(t)
		d := NewDeduper(cache, quietLogger())
		first := bookmark("b1", "One", "https://example.com/a?utm_medium=email")
		second := bookmark("b2", "One again", "http://example.com/a#top")

		require.NoError(t, d.MarkSynced(ctx, &first))
		match, err := d.Check(ctx, &second)
		require.NoError(t, err)
		assert.Equal(t, URLMatch, match)
		assert.Equal(t, "url", match.String())
	})

	t.Run("Empty URL Uses Identity Only", func(t *testing.T) {
		cache := connected(t)
		d := NewDeduper(cache, quietLogger())
		a := bookmark("b1", "Note", "")
		b := bookmark("b2", "Other note", "")

		require.NoError(t, d.MarkSynced(ctx, &a))
		keys, err := cache.Keys(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"bookmark_b1"}, keys)

		synced, err := d.IsSynced(ctx, &b)
		require.NoError(t, err)
		assert.False(t, synced)
	})

	t.Run("Unparseable URL Falls Back To Raw Key", func(t *testing.T) {
		cache := connected(t)
		d := NewDeduper(cache, quietLogger())
		b := bookmark("b1", "Odd", "not a url")

		require.NoError(t, d.MarkSynced(ctx, &b))
		found, err := cache.Has(ctx, "url_not a url")
		require.NoError(t, err)
		assert.True(t, found)
	})

	t.Run("Write Failure Propagates", func(t *testing.T) {
		cache := connected(t)
		cache.failSet = func(key string) error {
			if key == "bookmark_b1" {
				return shared.ErrCacheUnavailable
			}
			return nil
		}
		d := NewDeduper(cache, quietLogger())
		b := bookmark("b1", "One", "https://example.com/1")

		err := d.MarkSynced(ctx, &b)
		assert.ErrorIs(t, err, shared.ErrCacheUnavailable)

		found, err := cache.Has(ctx, "url_https://example.com/1")
		require.NoError(t, err)
		assert.True(t, found, "the other write is still awaited")
	})

	t.Run("Lookup Failure Propagates", func(t *testing.T) {
		cache := newFlakyCache()
		d := NewDeduper(cache, quietLogger())
		b := bookmark("b1", "One", "https://example.com/1")

		_, err := d.IsSynced(ctx, &b)
		assert.ErrorIs(t, err, shared.ErrCacheUnavailable)
	})

	t.Run("Forget", func(t *testing.T) {
		cache := connected(t)
		d := NewDeduper(cache, quietLogger())
		b := bookmark("b1", "One", "https://example.com/1")

		require.NoError(t, d.MarkSynced(ctx, &b))
		require.NoError(t, d.Forget(ctx, &b))

		keys, err := cache.Keys(ctx)
		require.NoError(t, err)
		assert.Empty(t, keys)
	})

	t.Run("Synced State Survives Snapshot", func(t *testing.T) {
		fs := memfs.New()
		before := connected(t)
		original := bookmark("b1", "One", "https://example.com/1")
		require.NoError(t, NewDeduper(before, quietLogger()).MarkSynced(ctx, &original))
		_, err := NewBackupManager(before, fs, 0, quietLogger()).Write(ctx)
		require.NoError(t, err)

		after := connected(t)
		_, err = NewBackupManager(after, fs, 0, quietLogger()).Load(ctx)
		require.NoError(t, err)

		d := NewDeduper(after, quietLogger())
		for _, b := range []struct{ id, url string }{
			{"b1", "https://example.com/1"},
			{"b9", "https://www.example.com/1/"},
		} {
			bm := bookmark(b.id, "", b.url)
			synced, err := d.IsSynced(ctx, &bm)
			require.NoError(t, err)
			assert.True(t, synced, b.id)
		}
	})
}

func TestMatchString(t *testing.T) {
	assert.Equal(t, "none", NoMatch.String())
	assert.Equal(t, "identity", IdentityMatch.String())
	assert.Equal(t, "url", URLMatch.String())
}
