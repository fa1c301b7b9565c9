package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/hoardsync/internal/models"
	"github.com/desertthunder/hoardsync/internal/repositories"
	"github.com/desertthunder/hoardsync/internal/shared"
)

// Cache keys written by the sync.
const (
	IdentityKeyPrefix = "bookmark_"
	URLKeyPrefix      = "url_"
	CursorKey         = "last_cursor"
)

// IdentityKey returns the dedup key for a bookmark id.
func IdentityKey(id string) string { return IdentityKeyPrefix + id }

// URLKey returns the dedup key for an already normalized URL.
func URLKey(normalized string) string { return URLKeyPrefix + normalized }

// Match records which dedup key found a bookmark.
type Match int

const (
	NoMatch Match = iota
	IdentityMatch
	URLMatch
)

func (m Match) String() string {
	switch m {
	case IdentityMatch:
		return "identity"
	case URLMatch:
		return "url"
	default:
		return "none"
	}
}

// Deduper decides whether a bookmark was already mirrored, by identity first and normalized URL second.
type Deduper struct {
	cache  repositories.Cache
	logger *log.Logger
}

func NewDeduper(cache repositories.Cache, logger *log.Logger) *Deduper {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Deduper{cache: cache, logger: logger}
}

// urlKey normalizes the bookmark URL. Bookmarks without a URL have no content key.
func (d *Deduper) urlKey(b *models.Bookmark) (string, bool) {
	if b.Content.URL == "" {
		return "", false
	}
	normalized, err := shared.NormalizeURL(b.Content.URL)
	if err != nil {
		d.logger.Warn("using raw URL as dedup key", "id", b.ID, "url", b.Content.URL, "error", err)
	}
	return URLKey(normalized), true
}

// Check returns which key, if any, marks b as synced. Cache errors are returned.
func (d *Deduper) Check(ctx context.Context, b *models.Bookmark) (Match, error) {
	idKey := IdentityKey(b.ID)
	found, err := d.cache.Has(ctx, idKey)
	if err != nil {
		return NoMatch, fmt.Errorf("dedup lookup %s: %w", idKey, err)
	}
	if found {
		d.logger.Debug("bookmark already synced", "id", b.ID, "key", idKey, "match", IdentityMatch)
		return IdentityMatch, nil
	}

	urlKey, ok := d.urlKey(b)
	if !ok {
		return NoMatch, nil
	}
	found, err = d.cache.Has(ctx, urlKey)
	if err != nil {
		return NoMatch, fmt.Errorf("dedup lookup %s: %w", urlKey, err)
	}
	if found {
		d.logger.Info("bookmark URL already synced", "id", b.ID, "title", b.DisplayTitle(), "key", urlKey, "match", URLMatch)
		return URLMatch, nil
	}
	return NoMatch, nil
}

// IsSynced reports whether either dedup key exists for b.
func (d *Deduper) IsSynced(ctx context.Context, b *models.Bookmark) (bool, error) {
	match, err := d.Check(ctx, b)
	return match != NoMatch, err
}

// MarkSynced writes both dedup keys concurrently and waits for both. The call fails if either write fails.
func (d *Deduper) MarkSynced(ctx context.Context, b *models.Bookmark) error {
	keys := []string{IdentityKey(b.ID)}
	if urlKey, ok := d.urlKey(b); ok {
		keys = append(keys, urlKey)
	}

	var wg sync.WaitGroup
	errs := make([]error, len(keys))
	for i, key := range keys {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := d.cache.Set(ctx, key, true, 0); err != nil {
				errs[i] = fmt.Errorf("dedup write %s: %w", key, err)
			}
		}()
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return err
	}
	d.logger.Debug("bookmark marked synced", "id", b.ID, "keys", keys)
	return nil
}

// Forget removes both dedup keys so the bookmark is mirrored again on the next sync.
func (d *Deduper) Forget(ctx context.Context, b *models.Bookmark) error {
	keys := []string{IdentityKey(b.ID)}
	if urlKey, ok := d.urlKey(b); ok {
		keys = append(keys, urlKey)
	}
	for _, key := range keys {
		if err := d.cache.Delete(ctx, key); err != nil {
			return fmt.Errorf("dedup delete %s: %w", key, err)
		}
	}
	return nil
}
