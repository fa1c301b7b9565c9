package main

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/desertthunder/hoardsync/internal/formatter"
	"github.com/desertthunder/hoardsync/internal/models"
	"github.com/desertthunder/hoardsync/internal/repositories"
	"github.com/desertthunder/hoardsync/internal/shared"
	"github.com/desertthunder/hoardsync/internal/tasks"
	"github.com/urfave/cli/v3"
)

// withCache opens the cache for the duration of fn.
func (r *Runner) withCache(ctx context.Context, fn func(repositories.Cache) error) error {
	cache, err := r.openCache(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := cache.Disconnect(); err != nil {
			r.logger.Warn("failed to disconnect cache", "error", err)
		}
	}()

	// a memory cache only holds what the snapshot gives it
	if _, ok := cache.(*repositories.MemoryCache); ok {
		r.newBackupManager(cache).Restore(ctx)
	}
	return fn(cache)
}

// CacheBackup writes the cache snapshot, failing loudly unlike the periodic backup.
func (r *Runner) CacheBackup(ctx context.Context, cmd *cli.Command) error {
	return r.withCache(ctx, func(cache repositories.Cache) error {
		backups := r.newBackupManager(cache)
		n, err := backups.Write(ctx)
		if err != nil {
			return err
		}
		r.writePlain("✓ Backed up %d entries to %s\n", n, backups.Path())
		return nil
	})
}

// CacheRestore loads the snapshot into the cache.
func (r *Runner) CacheRestore(ctx context.Context, cmd *cli.Command) error {
	return r.withCache(ctx, func(cache repositories.Cache) error {
		backups := r.newBackupManager(cache)
		n, err := backups.Load(ctx)
		if err != nil {
			return err
		}
		if n == 0 {
			r.writePlain("No snapshot entries found at %s\n", backups.Path())
			return nil
		}
		r.writePlain("✓ Restored %d entries from %s\n", n, backups.Path())
		return nil
	})
}

// CacheKeys lists cache keys, optionally filtered by prefix.
func (r *Runner) CacheKeys(ctx context.Context, cmd *cli.Command) error {
	prefix := cmd.String("prefix")

	return r.withCache(ctx, func(cache repositories.Cache) error {
		all, err := cache.Keys(ctx)
		if err != nil {
			return err
		}

		keys := make([]string, 0, len(all))
		for _, key := range all {
			if strings.HasPrefix(key, prefix) {
				keys = append(keys, key)
			}
		}
		slices.Sort(keys)

		if cmd.Bool("json") {
			return r.writeJSON(keys, false)
		}

		for _, key := range keys {
			r.writePlain("%s\n", key)
		}
		r.logger.Debugf("listed %d of %d keys", len(keys), len(all))
		return nil
	})
}

// CacheGet prints the JSON value stored at a key.
func (r *Runner) CacheGet(ctx context.Context, cmd *cli.Command) error {
	key := cmd.StringArg("key")
	if key == "" {
		return fmt.Errorf("%w: key", shared.ErrMissingArgument)
	}

	return r.withCache(ctx, func(cache repositories.Cache) error {
		raw, ok, err := cache.Get(ctx, key)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s", shared.ErrCacheMiss, key)
		}
		return r.writeJSON(raw, false)
	})
}

// CacheForget removes the dedup keys of one bookmark.
func (r *Runner) CacheForget(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: bookmark id", shared.ErrMissingArgument)
	}

	b := &models.Bookmark{ID: id, Content: models.Content{URL: cmd.String("url")}}

	return r.withCache(ctx, func(cache repositories.Cache) error {
		if err := tasks.NewDeduper(cache, r.logger).Forget(ctx, b); err != nil {
			return err
		}
		r.logger.Info("forgot bookmark", "id", id, "url", b.Content.URL)

		// the snapshot would otherwise bring the keys back on the next start
		if _, err := r.newBackupManager(cache).Write(ctx); err != nil {
			return err
		}
		r.writePlain("✓ Bookmark %s will be mirrored again on the next sync\n", id)
		return nil
	})
}

// CacheExport writes the live cache contents in the requested format.
func (r *Runner) CacheExport(ctx context.Context, cmd *cli.Command) error {
	format := cmd.String("format")

	return r.withCache(ctx, func(cache repositories.Cache) error {
		snapshot, err := r.newBackupManager(cache).Read(ctx)
		if err != nil {
			return err
		}

		path, err := formatter.WriteExport(map[string]json.RawMessage(snapshot), format, cmd.String("output"))
		if err != nil {
			return err
		}
		r.writePlain("✓ Exported %d entries to %s\n", len(snapshot), path)
		return nil
	})
}

// Normalize prints the normalized URL and the dedup key derived from it.
func (r *Runner) Normalize(ctx context.Context, cmd *cli.Command) error {
	raw := cmd.StringArg("url")
	if raw == "" {
		return fmt.Errorf("%w: url", shared.ErrMissingArgument)
	}

	normalized, err := shared.NormalizeURL(raw)
	if err != nil {
		r.logger.Warn("URL could not be parsed, the raw string is used as the key", "url", raw, "error", err)
	}

	r.writePlain("%s\n%s\n", normalized, tasks.URLKey(normalized))
	return nil
}

// Status prints the cursor, cache counts, and last run.
func (r *Runner) Status(ctx context.Context, cmd *cli.Command) error {
	return r.withCache(ctx, func(cache repositories.Cache) error {
		status, err := collectStatus(ctx, cache, r.runRepository())
		if err != nil {
			return err
		}

		if cmd.Bool("json") {
			return r.writeJSON(status, true)
		}

		r.writePlainHeader("hoardsync status")
		if status.Cursor == nil {
			r.writePlain("Cursor:           caught up\n")
		} else {
			r.writePlain("Cursor:           %s\n", *status.Cursor)
		}
		r.writePlain("Cache entries:    %d\n", status.CacheEntries)
		r.writePlain("Synced bookmarks: %d\n", status.SyncedBookmarks)

		if run := status.LastRun; run != nil {
			r.writePlainln("Last run %s (%s)", run.ID, run.Mode)
			r.writePlain("Started:  %s\n", run.StartedAt.Format("2006-01-02 15:04:05"))
			r.writePlain("Created:  %d  Skipped: %d  Failed: %d\n", run.Created, run.Skipped, run.Failed)
			if run.Error != "" {
				r.writePlain("Error:    %s\n", run.Error)
			}
		}
		return nil
	})
}
