package tasks

import (
	"fmt"

	"github.com/desertthunder/hoardsync/internal/models"
)

// ProgressUpdate represents a progress event during a sync.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	FetchPage Phase = iota
	SyncBookmark
	SkipBookmark
	SaveCursor
	BackupCache
	Complete
)

func (p Phase) String() string {
	switch p {
	case FetchPage:
		return "fetch_page"
	case SyncBookmark:
		return "sync_bookmark"
	case SkipBookmark:
		return "skip_bookmark"
	case SaveCursor:
		return "save_cursor"
	case BackupCache:
		return "backup_cache"
	case Complete:
		return "complete"
	default:
		return ""
	}
}

func fetchPageUpdate(page int, cursor string) ProgressUpdate {
	msg := fmt.Sprintf("Fetching page %d...", page)
	if cursor != "" {
		msg = fmt.Sprintf("Fetching page %d (cursor %s)...", page, cursor)
	}
	return ProgressUpdate{Phase: FetchPage, Step: page, Message: msg}
}

func syncBookmarkUpdate(step, total int, b *models.Bookmark) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SyncBookmark,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s", step, total, b.DisplayTitle()),
		Data:    b,
	}
}

func skipBookmarkUpdate(step, total int, b *models.Bookmark, match Match) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SkipBookmark,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] skipped %s (%s match)", step, total, b.DisplayTitle(), match),
		Data:    b,
	}
}

func failedBookmarkUpdate(step, total int, b *models.Bookmark, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SyncBookmark,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, b.DisplayTitle(), err),
		Data:    b,
	}
}

func saveCursorUpdate(cursor string) ProgressUpdate {
	if cursor == "" {
		return ProgressUpdate{Phase: SaveCursor, Message: "Caught up, cursor cleared"}
	}
	return ProgressUpdate{Phase: SaveCursor, Message: fmt.Sprintf("Saved cursor %s", cursor)}
}

func backupUpdate() ProgressUpdate {
	return ProgressUpdate{Phase: BackupCache, Message: "Backing up cache..."}
}

func completeUpdate(result *SyncResult) ProgressUpdate {
	return ProgressUpdate{
		Phase: Complete,
		Message: fmt.Sprintf("%s sync finished: %d created, %d skipped, %d failed",
			result.Mode, result.Created, result.Skipped(), result.Failed),
		Data: result,
	}
}
