package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/desertthunder/hoardsync/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupConfig writes the config template to --config.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	if err := shared.CreateConfigFile(configPath); err != nil {
		return err
	}
	r.logger.Info("config file created", "path", configPath)

	r.writePlain("✓ Configuration written to %s\n", configPath)
	r.writePlainln("Next steps:")
	r.writePlain("1. Set source.base_url and source.token (or %s and %s)\n", shared.EnvSourceBaseURL, shared.EnvSourceToken)
	r.writePlain("2. Set target.token and target.target_node_id (or %s)\n", shared.EnvTargetToken)
	r.writePlain("3. Run 'hoardsync sync test' to mirror a handful of bookmarks\n")
	return nil
}

// SetupDatabase initializes the cache database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	config := r.config
	if _, err := os.Stat(configPath); err == nil {
		if config, err = shared.LoadConfig(configPath); err != nil {
			r.logger.Warn("failed to load config, using current settings", "error", err)
			config = r.config
		}
	} else {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file", "error", err)
		}
	}
	config.ApplyEnv(os.LookupEnv)

	if strings.ToLower(config.Cache.Driver) != shared.CacheDriverSQLite {
		return fmt.Errorf("%w: cache.driver is %q, nothing to migrate", shared.ErrInvalidConfig, config.Cache.Driver)
	}

	r.logger.Info("initializing database", "path", config.Cache.Address)

	db, err := shared.NewDatabase(config.Cache.Address)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	shared.ConfigureDatabase(db, config.Cache.MaxOpenConns, config.Cache.MaxIdleConns)

	r.logger.Info("running database migrations")
	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	r.logger.Infof("setup complete for database: %v", config.Cache.Address)
	r.writePlain("✓ Database ready at %s\n", config.Cache.Address)
	return nil
}
