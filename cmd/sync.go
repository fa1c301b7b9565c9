package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/hoardsync/internal/models"
	"github.com/desertthunder/hoardsync/internal/repositories"
	"github.com/desertthunder/hoardsync/internal/server"
	"github.com/desertthunder/hoardsync/internal/shared"
	"github.com/desertthunder/hoardsync/internal/tasks"
	"github.com/desertthunder/hoardsync/internal/ui"
	"github.com/urfave/cli/v3"
)

const (
	defaultCleanupTimeout      = 10 * time.Second
	defaultIncrementalInterval = 5 * time.Minute
)

// SyncFull walks every page from the beginning.
func (r *Runner) SyncFull(ctx context.Context, cmd *cli.Command) error {
	return r.runSync(ctx, models.ModeFull, cmd.Bool("json"))
}

// SyncIncremental resumes from the persisted cursor.
func (r *Runner) SyncIncremental(ctx context.Context, cmd *cli.Command) error {
	return r.runSync(ctx, models.ModeIncremental, cmd.Bool("json"))
}

// SyncTest syncs the first page of --limit bookmarks.
func (r *Runner) SyncTest(ctx context.Context, cmd *cli.Command) error {
	if limit := cmd.Int("limit"); limit > 0 {
		r.config.Sync.TestSize = int(limit)
	} else if limit < 0 {
		return fmt.Errorf("%w: --limit must be positive", shared.ErrInvalidFlag)
	}
	return r.runSync(ctx, models.ModeTest, cmd.Bool("json"))
}

// runSync runs one sync mode between Initialize and Cleanup and prints its result.
func (r *Runner) runSync(ctx context.Context, mode models.SyncMode, asJSON bool) error {
	engine, err := r.newEngine(ctx)
	if err != nil {
		return err
	}

	if err := engine.Initialize(ctx); err != nil {
		r.cleanup(engine)
		return err
	}

	result, syncErr := r.syncWithProgress(ctx, engine, mode)
	cleanupErr := r.cleanup(engine)

	if asJSON && result != nil {
		if err := r.writeJSON(result, true); err != nil {
			return err
		}
	} else {
		r.writePlain("%s\n", ui.RenderResult(result, syncErr))
	}

	if syncErr != nil {
		return fmt.Errorf("%s sync failed: %w", mode, syncErr)
	}
	return cleanupErr
}

// syncWithProgress logs engine progress at debug level while mode runs.
func (r *Runner) syncWithProgress(ctx context.Context, engine tasks.SyncEngine, mode models.SyncMode) (*tasks.SyncResult, error) {
	progress := make(chan tasks.ProgressUpdate, 100)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for update := range progress {
			r.logger.Debug(update.Message, "phase", update.Phase, "step", update.Step, "total", update.Total)
		}
	}()

	result, err := runMode(ctx, engine, mode, progress)
	close(progress)
	<-done

	return result, err
}

func runMode(ctx context.Context, engine tasks.SyncEngine, mode models.SyncMode, progress chan<- tasks.ProgressUpdate) (*tasks.SyncResult, error) {
	switch mode {
	case models.ModeFull:
		return engine.FullSync(ctx, progress)
	case models.ModeTest:
		return engine.TestSync(ctx, progress)
	default:
		return engine.IncrementalSync(ctx, progress)
	}
}

// cleanup releases the engine within sync.cleanup_timeout.
func (r *Runner) cleanup(engine tasks.SyncEngine) error {
	timeout := r.config.Sync.CleanupTimeout
	if timeout <= 0 {
		timeout = defaultCleanupTimeout
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := engine.Cleanup(ctx); err != nil {
		r.logger.Error("cleanup failed", "error", err)
		return err
	}
	return nil
}

// SyncDaemon runs a full sync, then incremental syncs until SIGINT or SIGTERM.
func (r *Runner) SyncDaemon(ctx context.Context, cmd *cli.Command) error {
	interval := cmd.Duration("interval")
	if interval <= 0 {
		interval = r.config.Sync.IncrementalInterval
	}
	if interval <= 0 {
		interval = defaultIncrementalInterval
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine, err := r.newEngine(ctx)
	if err != nil {
		return err
	}

	d := &daemon{
		runner:    r,
		engine:    engine,
		cache:     r.cache,
		runs:      r.runRepository(),
		interval:  interval,
		logger:    shared.WithLogger(r.logger, "component", "daemon"),
		startedAt: time.Now().UTC(),
	}

	var wg sync.WaitGroup
	if cmd.Bool("serve") || r.config.Server.Enabled {
		router := server.NewBasicRouter()
		router.Use(server.Logging(d.logger), server.Recover(d.logger))
		router.Handler(server.NewStatusHandler(d, d.logger))

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := server.Serve(ctx, r.config.Server.Addr(), router, d.logger); err != nil {
				d.logger.Error("status server stopped", "error", err)
			}
		}()
	}

	runErr := d.run(ctx)
	stop()
	wg.Wait()
	return runErr
}

// daemon drives the periodic sync loop and reports its state to the status server.
type daemon struct {
	runner    *Runner
	engine    tasks.SyncEngine
	cache     repositories.Cache
	runs      *repositories.SyncRunRepository
	interval  time.Duration
	logger    *log.Logger
	startedAt time.Time

	mu         sync.RWMutex
	lastResult *tasks.SyncResult
	lastErr    error
	nextRunAt  *time.Time
}

func (d *daemon) run(ctx context.Context) error {
	if err := d.engine.Initialize(ctx); err != nil {
		d.runner.cleanup(d.engine)
		return err
	}

	d.logger.Info("starting initial full sync")
	if _, err := d.sync(ctx, models.ModeFull); err != nil {
		d.logger.Error("initial sync failed", "error", err)
		d.runner.cleanup(d.engine)
		return fmt.Errorf("initial sync failed: %w", err)
	}

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	d.scheduleNext()
	d.logger.Info("waiting for next incremental sync", "interval", d.interval)

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("shutting down")
			if err := d.runner.cleanup(d.engine); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
			return nil
		case <-ticker.C:
			if _, err := d.sync(ctx, models.ModeIncremental); err != nil && ctx.Err() == nil {
				d.logger.Error("incremental sync failed", "error", err)
			}
			d.scheduleNext()
		}
	}
}

func (d *daemon) sync(ctx context.Context, mode models.SyncMode) (*tasks.SyncResult, error) {
	result, err := d.runner.syncWithProgress(ctx, d.engine, mode)

	d.mu.Lock()
	d.lastResult, d.lastErr = result, err
	d.mu.Unlock()

	if err == nil && result != nil {
		d.logger.Info("sync complete", "mode", mode, "created", result.Created, "skipped", result.Skipped(), "failed", result.Failed)
	}
	return result, err
}

func (d *daemon) scheduleNext() {
	next := time.Now().UTC().Add(d.interval)
	d.mu.Lock()
	d.nextRunAt = &next
	d.mu.Unlock()
}

// Status implements [server.StatusProvider].
func (d *daemon) Status(ctx context.Context) (*server.Status, error) {
	status, err := collectStatus(ctx, d.cache, d.runs)
	if err != nil {
		return nil, err
	}
	status.StartedAt = d.startedAt

	d.mu.RLock()
	defer d.mu.RUnlock()

	status.NextRunAt = d.nextRunAt
	if d.lastErr != nil {
		status.LastError = d.lastErr.Error()
	}
	if status.LastRun == nil && d.lastResult != nil {
		status.LastRun = resultRun(d.lastResult, d.lastErr)
	}
	return status, nil
}

// collectStatus reads the cursor and dedup key counts from cache, and the latest run when history is kept.
func collectStatus(ctx context.Context, cache repositories.Cache, runs *repositories.SyncRunRepository) (*server.Status, error) {
	keys, err := cache.Keys(ctx)
	if err != nil {
		return nil, err
	}

	status := &server.Status{CacheEntries: len(keys)}
	for _, key := range keys {
		if strings.HasPrefix(key, tasks.IdentityKeyPrefix) {
			status.SyncedBookmarks++
		}
	}

	cursor, err := tasks.LoadCursor(ctx, cache)
	if err != nil {
		return nil, err
	}
	if cursor != "" {
		status.Cursor = &cursor
	}

	if runs != nil {
		if status.LastRun, err = runs.Latest(ctx); err != nil {
			return nil, err
		}
	}
	return status, nil
}

// resultRun summarizes an in-memory result when no run history is stored.
func resultRun(result *tasks.SyncResult, err error) *models.SyncRun {
	run := &models.SyncRun{
		ID:      result.RunID,
		Mode:    result.Mode,
		Pages:   result.Pages,
		Fetched: result.Fetched,
		Created: result.Created,
		Skipped: result.Skipped(),
		Failed:  result.Failed,
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		run.Error = err.Error()
	}
	return run
}
