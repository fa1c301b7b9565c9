// package tasks implements the bookmark sync: deduplication, cache snapshots, and the paging sync loop.
//
// The core abstraction is SyncEngine, which mirrors bookmarks from a [services.Source] into a [services.Target].
// Operations emit progress updates via channels for non-blocking status reporting to CLI/UI layers.
package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/hoardsync/internal/models"
	"github.com/desertthunder/hoardsync/internal/repositories"
	"github.com/desertthunder/hoardsync/internal/services"
	"github.com/desertthunder/hoardsync/internal/shared"
)

const (
	DefaultBatchSize = 50
	DefaultTestSize  = 5
)

// BookmarkError describes a bookmark that could not be mirrored.
type BookmarkError struct {
	ID    string
	Title string
	URL   string
	Err   error
}

func (e *BookmarkError) Error() string {
	return fmt.Sprintf("bookmark %s (%q, %s): %v", e.ID, e.Title, e.URL, e.Err)
}

func (e *BookmarkError) Unwrap() error { return e.Err }

func (e *BookmarkError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID    string `json:"id"`
		Title string `json:"title"`
		URL   string `json:"url,omitempty"`
		Error string `json:"error"`
	}{e.ID, e.Title, e.URL, e.Err.Error()})
}

func newBookmarkError(b *models.Bookmark, err error) *BookmarkError {
	return &BookmarkError{ID: b.ID, Title: b.DisplayTitle(), URL: b.Content.URL, Err: err}
}

// SyncResult contains the counters of one sync call.
type SyncResult struct {
	RunID        string           `json:"run_id"`
	Mode         models.SyncMode  `json:"mode"`
	Pages        int              `json:"pages"`
	Fetched      int              `json:"fetched"`
	Created      int              `json:"created"`
	SkippedByID  int              `json:"skipped_by_id"`
	SkippedByURL int              `json:"skipped_by_url"`
	Failed       int              `json:"failed"`
	Cursor       string           `json:"cursor"` // cursor persisted at the end of the run; empty when caught up
	Errors       []*BookmarkError `json:"errors,omitempty"`
}

// Skipped is the number of bookmarks skipped as already synced.
func (r *SyncResult) Skipped() int { return r.SkippedByID + r.SkippedByURL }

// RunRecorder persists sync run history. Recorder failures are logged and ignored.
type RunRecorder interface {
	Create(ctx context.Context, run *models.SyncRun) error
	Update(ctx context.Context, run *models.SyncRun) error
}

// SyncEngine defines the sync entry points and the lifecycle around them.
type SyncEngine interface {
	// Initialize connects the cache, restores the snapshot, and starts periodic backups.
	Initialize(ctx context.Context) error

	// FullSync pages from the beginning until the source reports no further pages.
	FullSync(ctx context.Context, progress chan<- ProgressUpdate) (*SyncResult, error)

	// IncrementalSync processes one page from the saved cursor, or runs a full sync when there is none.
	IncrementalSync(ctx context.Context, progress chan<- ProgressUpdate) (*SyncResult, error)

	// TestSync submits a small first page regardless of dedup state, isolating per-bookmark failures.
	TestSync(ctx context.Context, progress chan<- ProgressUpdate) (*SyncResult, error)

	// Cleanup takes a final backup, stops periodic backups, and disconnects the cache. Runs once.
	Cleanup(ctx context.Context) error
}

// EngineOpts contains the collaborators and settings of a [BookmarkEngine].
type EngineOpts struct {
	Cache      repositories.Cache
	Backups    *BackupManager
	Source     services.Source
	Target     services.Target
	Recorder   RunRecorder // optional
	Logger     *log.Logger
	BatchSize  int
	TestSize   int
	SupertagID string
}

// BookmarkEngine implements [SyncEngine].
type BookmarkEngine struct {
	cache      repositories.Cache
	backups    *BackupManager
	dedup      *Deduper
	source     services.Source
	target     services.Target
	recorder   RunRecorder
	logger     *log.Logger
	batchSize  int
	testSize   int
	supertagID string

	initOnce    sync.Once
	initErr     error
	cleanupOnce sync.Once
	cleanupErr  error
	ready       atomic.Bool
}

// NewBookmarkEngine validates the collaborators and applies defaults.
func NewBookmarkEngine(opts EngineOpts) (*BookmarkEngine, error) {
	switch {
	case opts.Cache == nil:
		return nil, fmt.Errorf("%w: cache is required", shared.ErrServiceUnavailable)
	case opts.Backups == nil:
		return nil, fmt.Errorf("%w: backup manager is required", shared.ErrServiceUnavailable)
	case opts.Source == nil:
		return nil, fmt.Errorf("%w: source service is required", shared.ErrServiceUnavailable)
	case opts.Target == nil:
		return nil, fmt.Errorf("%w: target service is required", shared.ErrServiceUnavailable)
	}

	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.TestSize <= 0 {
		opts.TestSize = DefaultTestSize
	}
	if opts.SupertagID == "" {
		opts.SupertagID = ArticleSupertagID
	}
	if err := models.ValidateNodeID(opts.SupertagID); err != nil {
		return nil, fmt.Errorf("%w: supertag: %v", shared.ErrInvalidConfig, err)
	}

	return &BookmarkEngine{
		cache:      opts.Cache,
		backups:    opts.Backups,
		dedup:      NewDeduper(opts.Cache, opts.Logger),
		source:     opts.Source,
		target:     opts.Target,
		recorder:   opts.Recorder,
		logger:     opts.Logger,
		batchSize:  opts.BatchSize,
		testSize:   opts.TestSize,
		supertagID: opts.SupertagID,
	}, nil
}

// Deduper exposes the dedup engine sharing this engine's cache.
func (e *BookmarkEngine) Deduper() *Deduper { return e.dedup }

// sendProgress sends a progress update through the channel without blocking.
func (e *BookmarkEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func (e *BookmarkEngine) Initialize(ctx context.Context) error {
	e.initOnce.Do(func() {
		if err := e.cache.Connect(ctx); err != nil {
			e.initErr = fmt.Errorf("failed to connect cache: %w", err)
			return
		}
		e.backups.Restore(ctx)
		e.backups.Start(ctx)
		e.ready.Store(true)
		e.logger.Info("sync engine initialized", "source", e.source.Name(), "target", e.target.Name())
	})
	return e.initErr
}

// Cleanup is bounded by ctx: when ctx ends first, [shared.ErrCleanupTimeout] is returned while the remaining
// work finishes in the background.
func (e *BookmarkEngine) Cleanup(ctx context.Context) error {
	e.cleanupOnce.Do(func() {
		done := make(chan error, 1)
		go func() { done <- e.cleanup() }()

		select {
		case err := <-done:
			e.cleanupErr = err
		case <-ctx.Done():
			e.cleanupErr = fmt.Errorf("%w: %v", shared.ErrCleanupTimeout, ctx.Err())
		}
	})
	return e.cleanupErr
}

func (e *BookmarkEngine) cleanup() error {
	e.backups.Stop()

	// the final snapshot uses its own context so a cancelled run still gets persisted
	if e.ready.Swap(false) {
		e.backups.Backup(context.Background())
	}

	if err := e.cache.Disconnect(); err != nil {
		return fmt.Errorf("failed to disconnect cache: %w", err)
	}
	e.logger.Info("sync engine cleaned up")
	return nil
}

func (e *BookmarkEngine) checkReady() error {
	if !e.ready.Load() {
		return shared.ErrNotInitialized
	}
	return nil
}

// startRun creates the result and run record for one sync call.
func (e *BookmarkEngine) startRun(ctx context.Context, mode models.SyncMode) (*models.SyncRun, *SyncResult, *log.Logger) {
	run := models.NewSyncRun(mode)
	if e.recorder != nil {
		if err := e.recorder.Create(ctx, run); err != nil {
			e.logger.Warn("failed to record sync run", "run", run.ID, "error", err)
		}
	}

	logger := shared.WithLogger(e.logger, "run", run.ID, "mode", mode)
	logger.Info("sync started")
	return run, &SyncResult{RunID: run.ID, Mode: mode}, logger
}

func (e *BookmarkEngine) finishRun(ctx context.Context, run *models.SyncRun, result *SyncResult, logger *log.Logger, progress chan<- ProgressUpdate, err error) {
	run.Pages = result.Pages
	run.Fetched = result.Fetched
	run.Created = result.Created
	run.Skipped = result.Skipped()
	run.Failed = result.Failed
	run.Finish(err)

	if e.recorder != nil {
		if rerr := e.recorder.Update(context.WithoutCancel(ctx), run); rerr != nil {
			logger.Warn("failed to update sync run", "error", rerr)
		}
	}

	kv := []any{
		"pages", result.Pages, "fetched", result.Fetched, "created", result.Created,
		"skipped", result.Skipped(), "failed", result.Failed, "duration", run.Duration(),
	}
	if err != nil {
		logger.Error("sync failed", append(kv, "error", err)...)
		return
	}
	logger.Info("sync finished", kv...)
	e.sendProgress(progress, completeUpdate(result))
}

func (e *BookmarkEngine) FullSync(ctx context.Context, progress chan<- ProgressUpdate) (*SyncResult, error) {
	if err := e.checkReady(); err != nil {
		return nil, err
	}

	run, result, logger := e.startRun(ctx, models.ModeFull)
	err := e.fullSync(ctx, progress, result, logger)
	e.finishRun(ctx, run, result, logger, progress, err)
	return result, err
}

func (e *BookmarkEngine) IncrementalSync(ctx context.Context, progress chan<- ProgressUpdate) (*SyncResult, error) {
	if err := e.checkReady(); err != nil {
		return nil, err
	}

	run, result, logger := e.startRun(ctx, models.ModeIncremental)
	err := e.incrementalSync(ctx, progress, result, logger)
	e.finishRun(ctx, run, result, logger, progress, err)
	return result, err
}

func (e *BookmarkEngine) TestSync(ctx context.Context, progress chan<- ProgressUpdate) (*SyncResult, error) {
	if err := e.checkReady(); err != nil {
		return nil, err
	}

	run, result, logger := e.startRun(ctx, models.ModeTest)
	err := e.testSync(ctx, progress, result, logger)
	e.finishRun(ctx, run, result, logger, progress, err)
	return result, err
}

func (e *BookmarkEngine) fullSync(ctx context.Context, progress chan<- ProgressUpdate, result *SyncResult, logger *log.Logger) error {
	cursor := ""
	for {
		page, err := e.fetchPage(ctx, progress, result, cursor, e.batchSize)
		if err != nil {
			return err
		}
		if page.HasMore() && page.NextCursor == cursor {
			return fmt.Errorf("%w: source returned cursor %q again", shared.ErrSourceRequest, cursor)
		}

		if err := e.finishPage(ctx, progress, result, logger, page); err != nil {
			return err
		}
		if !page.HasMore() {
			return nil
		}
		cursor = page.NextCursor
	}
}

func (e *BookmarkEngine) incrementalSync(ctx context.Context, progress chan<- ProgressUpdate, result *SyncResult, logger *log.Logger) error {
	cursor, err := e.LoadCursor(ctx)
	if err != nil {
		return err
	}
	if cursor == "" {
		logger.Info("no saved cursor, running full sync")
		return e.fullSync(ctx, progress, result, logger)
	}

	page, err := e.fetchPage(ctx, progress, result, cursor, e.batchSize)
	if err != nil {
		return err
	}
	return e.finishPage(ctx, progress, result, logger, page)
}

// finishPage syncs every bookmark of a page in order, then persists the page's next cursor and backs up.
// The first failing bookmark aborts the page before the cursor moves.
func (e *BookmarkEngine) finishPage(ctx context.Context, progress chan<- ProgressUpdate, result *SyncResult, logger *log.Logger, page *models.Page) error {
	total := len(page.Bookmarks)
	for i := range page.Bookmarks {
		b := &page.Bookmarks[i]
		if err := e.syncOne(ctx, progress, result, logger, b, i+1, total); err != nil {
			return err
		}
	}

	if err := e.SaveCursor(ctx, page.NextCursor); err != nil {
		return err
	}
	result.Cursor = page.NextCursor
	e.sendProgress(progress, saveCursorUpdate(page.NextCursor))

	e.sendProgress(progress, backupUpdate())
	e.backups.Backup(ctx)
	return nil
}

// syncOne skips a synced bookmark or builds, submits, and records it.
func (e *BookmarkEngine) syncOne(ctx context.Context, progress chan<- ProgressUpdate, result *SyncResult, logger *log.Logger, b *models.Bookmark, step, total int) error {
	match, err := e.dedup.Check(ctx, b)
	if err != nil {
		return e.fail(progress, result, logger, b, step, total, err)
	}

	switch match {
	case IdentityMatch:
		result.SkippedByID++
		e.sendProgress(progress, skipBookmarkUpdate(step, total, b, match))
		return nil
	case URLMatch:
		result.SkippedByURL++
		e.sendProgress(progress, skipBookmarkUpdate(step, total, b, match))
		return nil
	}

	e.sendProgress(progress, syncBookmarkUpdate(step, total, b))
	if err := e.submit(ctx, b); err != nil {
		return e.fail(progress, result, logger, b, step, total, err)
	}
	result.Created++
	logger.Info("bookmark synced", "id", b.ID, "title", b.DisplayTitle())
	return nil
}

// submit maps, sends, and records one bookmark.
func (e *BookmarkEngine) submit(ctx context.Context, b *models.Bookmark) error {
	doc, err := BuildDocument(b, e.source, e.supertagID)
	if err != nil {
		return err
	}
	if err := e.target.Submit(ctx, doc); err != nil {
		return err
	}
	return e.dedup.MarkSynced(ctx, b)
}

func (e *BookmarkEngine) fail(progress chan<- ProgressUpdate, result *SyncResult, logger *log.Logger, b *models.Bookmark, step, total int, err error) *BookmarkError {
	bErr := newBookmarkError(b, err)
	result.Failed++
	result.Errors = append(result.Errors, bErr)
	logger.Error("failed to sync bookmark", "id", bErr.ID, "title", bErr.Title, "url", bErr.URL, "error", err)
	e.sendProgress(progress, failedBookmarkUpdate(step, total, b, err))
	return bErr
}

func (e *BookmarkEngine) testSync(ctx context.Context, progress chan<- ProgressUpdate, result *SyncResult, logger *log.Logger) error {
	defer func() {
		e.sendProgress(progress, backupUpdate())
		e.backups.Backup(ctx)
	}()

	page, err := e.fetchPage(ctx, progress, result, "", e.testSize)
	if err != nil {
		return err
	}

	total := len(page.Bookmarks)
	for i := range page.Bookmarks {
		b := &page.Bookmarks[i]
		e.sendProgress(progress, syncBookmarkUpdate(i+1, total, b))
		if err := e.submit(ctx, b); err != nil {
			e.fail(progress, result, logger, b, i+1, total, err)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}
		result.Created++
		logger.Info("bookmark synced", "id", b.ID, "title", b.DisplayTitle())
	}
	return nil
}

func (e *BookmarkEngine) fetchPage(ctx context.Context, progress chan<- ProgressUpdate, result *SyncResult, cursor string, limit int) (*models.Page, error) {
	e.sendProgress(progress, fetchPageUpdate(result.Pages+1, cursor))

	page, err := e.source.FetchPage(ctx, cursor, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch page from %s: %w", e.source.Name(), err)
	}
	if page == nil {
		page = &models.Page{}
	}

	result.Pages++
	result.Fetched += len(page.Bookmarks)
	return page, nil
}

// LoadCursor returns the saved cursor. Empty means none was saved or the last sync was caught up.
func (e *BookmarkEngine) LoadCursor(ctx context.Context) (string, error) {
	return LoadCursor(ctx, e.cache)
}

// SaveCursor persists cursor, storing JSON null when empty so a caught-up state is distinct from a fresh cache.
func (e *BookmarkEngine) SaveCursor(ctx context.Context, cursor string) error {
	var value any
	if cursor != "" {
		value = cursor
	}
	if err := e.cache.Set(ctx, CursorKey, value, 0); err != nil {
		return fmt.Errorf("failed to save cursor: %w", err)
	}
	return nil
}

// LoadCursor reads the saved cursor from cache.
func LoadCursor(ctx context.Context, cache repositories.Cache) (string, error) {
	var cursor *string
	if _, err := repositories.GetInto(ctx, cache, CursorKey, &cursor); err != nil {
		return "", fmt.Errorf("failed to load cursor: %w", err)
	}
	if cursor == nil {
		return "", nil
	}
	return *cursor, nil
}

// IsRetryable reports whether err came from an upstream failure a later sync may get past.
func IsRetryable(err error) bool {
	var apiErr *services.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	return errors.Is(err, shared.ErrSourceRequest) || errors.Is(err, shared.ErrTargetRequest)
}
