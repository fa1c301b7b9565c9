// submodule cmd contains command definitions
package main

import (
	"strings"

	"github.com/desertthunder/hoardsync/internal/formatter"
	"github.com/urfave/cli/v3"
)

// syncCommand handles the sync entry points
func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Mirror Hoarder bookmarks into Tana",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Full sync: walk every page from the beginning",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output the result as JSON",
					},
				},
				Action: r.SyncFull,
			},
			{
				Name:  "incremental",
				Usage: "Resume from the persisted cursor (falls back to a full sync)",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output the result as JSON",
					},
				},
				Action: r.SyncIncremental,
			},
			{
				Name:  "test",
				Usage: "Sync only the first few bookmarks without moving the cursor",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Number of bookmarks to try (defaults to sync.test_size)",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output the result as JSON",
					},
				},
				Action: r.SyncTest,
			},
			{
				Name:  "daemon",
				Usage: "Full sync, then incremental syncs on an interval until interrupted",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "interval",
						Usage: "Incremental sync interval (defaults to sync.incremental_interval)",
					},
					&cli.BoolFlag{
						Name:  "serve",
						Usage: "Serve /health and /status (defaults to server.enabled)",
					},
				},
				Action: r.SyncDaemon,
			},
		},
	}
}

// cacheCommand handles dedup cache maintenance
func cacheCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect and maintain the dedup cache",
		Commands: []*cli.Command{
			{
				Name:   "backup",
				Usage:  "Write a snapshot of the cache to backup.dir",
				Action: r.CacheBackup,
			},
			{
				Name:   "restore",
				Usage:  "Load the snapshot in backup.dir into the cache",
				Action: r.CacheRestore,
			},
			{
				Name:  "keys",
				Usage: "List cache keys",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "prefix",
						Usage: "Only list keys with this prefix (bookmark_, url_, last_cursor)",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.CacheKeys,
			},
			{
				Name:  "get",
				Usage: "Print the value stored at a key",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "key",
					},
				},
				Action: r.CacheGet,
			},
			{
				Name:  "forget",
				Usage: "Remove the dedup keys of a bookmark so the next sync mirrors it again",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "id",
					},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "url",
						Usage: "Bookmark URL whose normalized key should also be removed",
					},
				},
				Action: r.CacheForget,
			},
			{
				Name:  "export",
				Usage: "Export the cache contents",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Export format (" + strings.Join(formatter.Formats, ", ") + ")",
						Value:   formatter.FormatJSON,
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file path (default: hoardsync_cache.<format>)",
					},
				},
				Action: r.CacheExport,
			},
		},
	}
}

// normalizeCommand prints the dedup key of a URL
func normalizeCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "normalize",
		Usage: "Print the normalized form and dedup key of a URL",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "url",
			},
		},
		Action: r.Normalize,
	}
}

// statusCommand reports cache and run state
func statusCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show the cursor, cache counts, and last sync run",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Status,
	}
}

// setupCommand handles setup operations for configuration and the database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "config",
				Usage: "Write a config.toml template",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file",
						Value:   "config.toml",
					},
				},
				Action: r.SetupConfig,
			},
			{
				Name:  "database",
				Usage: "Initialize the cache database and run migrations",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file",
						Value:   "config.toml",
					},
				},
				Action: r.SetupDatabase,
			},
		},
	}
}

// tuiCommand returns the top-level TUI command for interactive syncs.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch interactive TUI for running syncs",
		Action:  r.TUI,
	}
}
