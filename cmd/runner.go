package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/hoardsync/internal/repositories"
	"github.com/desertthunder/hoardsync/internal/services"
	"github.com/desertthunder/hoardsync/internal/shared"
	"github.com/desertthunder/hoardsync/internal/tasks"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// Collaborators left nil in [RunnerOpts] are built from the config on first use.
type Runner struct {
	config     *shared.Config
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	cache      repositories.Cache
	source     services.Source
	target     services.Target
	backupFS   billy.Filesystem
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	HTTPClient *http.Client // base transport for the source and target clients
	Logger     *log.Logger
	Output     io.Writer
	Cache      repositories.Cache
	Source     services.Source
	Target     services.Target
	BackupFS   billy.Filesystem
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		config:     opts.Config,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		cache:      opts.Cache,
		source:     opts.Source,
		target:     opts.Target,
		backupFS:   opts.BackupFS,
	}
}

// SetLogger replaces the runner's logger.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		syncCommand, cacheCommand, normalizeCommand, statusCommand, setupCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// openCache returns the configured cache, connected.
func (r *Runner) openCache(ctx context.Context) (repositories.Cache, error) {
	if r.cache == nil {
		if err := r.config.ValidateCache(); err != nil {
			return nil, err
		}

		switch strings.ToLower(r.config.Cache.Driver) {
		case shared.CacheDriverMemory:
			r.cache = repositories.NewMemoryCache()
		default:
			r.cache = repositories.NewSQLiteCache(r.config.Cache.Address, r.config.Cache.MaxOpenConns, r.config.Cache.MaxIdleConns)
		}
	}

	if err := r.cache.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect cache: %w", err)
	}
	return r.cache, nil
}

// runRepository returns the sync history store when the cache is sqlite-backed.
func (r *Runner) runRepository() *repositories.SyncRunRepository {
	if c, ok := r.cache.(*repositories.SQLiteCache); ok && c.DB() != nil {
		return repositories.NewSyncRunRepository(c.DB())
	}
	return nil
}

func (r *Runner) newBackupManager(cache repositories.Cache) *tasks.BackupManager {
	if r.backupFS == nil {
		r.backupFS = osfs.New(r.config.Backup.Dir)
	}
	return tasks.NewBackupManager(cache, r.backupFS, r.config.Backup.Interval, r.logger)
}

// clientContext carries the injected base client so the token transport wraps it.
func (r *Runner) clientContext(ctx context.Context) context.Context {
	if r.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, r.httpClient)
}

// services builds the source and target clients from the config unless they were injected.
func (r *Runner) services(ctx context.Context) (services.Source, services.Target, error) {
	if r.source == nil || r.target == nil {
		if err := r.config.Validate(); err != nil {
			return nil, nil, err
		}
	}

	if r.source == nil {
		client := services.NewTokenClient(r.clientContext(ctx), r.config.Source.Token, r.config.Source.Timeout)
		hoarder, err := services.NewHoarderService(r.config.Source.BaseURL, client)
		if err != nil {
			return nil, nil, err
		}
		r.source = hoarder
	}

	if r.target == nil {
		r.target = services.NewTanaService(services.TanaOpts{
			Endpoint:          r.config.Target.Endpoint,
			TargetNodeID:      r.config.Target.TargetNodeID,
			RequestsPerSecond: r.config.Target.RequestsPerSecond,
			HTTPClient:        services.NewTokenClient(r.clientContext(ctx), r.config.Target.Token, r.config.Target.Timeout),
		})
	}

	return r.source, r.target, nil
}

// newEngine wires an engine over the configured cache, snapshot, and services.
//
// The caller owns Initialize and Cleanup.
func (r *Runner) newEngine(ctx context.Context) (*tasks.BookmarkEngine, error) {
	source, target, err := r.services(ctx)
	if err != nil {
		return nil, err
	}

	cache, err := r.openCache(ctx)
	if err != nil {
		return nil, err
	}

	opts := tasks.EngineOpts{
		Cache:      cache,
		Backups:    r.newBackupManager(cache),
		Source:     source,
		Target:     target,
		Logger:     r.logger,
		BatchSize:  r.config.Sync.BatchSize,
		TestSize:   r.config.Sync.TestSize,
		SupertagID: r.config.Target.SupertagID,
	}
	if runs := r.runRepository(); runs != nil {
		opts.Recorder = runs
	}

	engine, err := tasks.NewBookmarkEngine(opts)
	if err != nil {
		cache.Disconnect()
		return nil, err
	}
	return engine, nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
