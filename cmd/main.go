package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/desertthunder/hoardsync/internal/shared"
	"github.com/urfave/cli/v3"
)

// envConfigPath points at a config file other than ./config.toml.
const envConfigPath = "HOARDSYNC_CONFIG"

func main() {
	logger := shared.NewLogger(nil)

	configPath := "config.toml"
	if p, ok := os.LookupEnv(envConfigPath); ok && p != "" {
		configPath = p
	}

	config, err := loadConfig(configPath)
	if err != nil {
		logger.Fatal("invalid configuration", "path", configPath, "error", err)
	}
	config.ApplyEnv(os.LookupEnv)

	if config.Logging.File != "" {
		fileLogger, closer, err := shared.NewFileLogger(config.Logging.File)
		if err != nil {
			logger.Fatalf("failed to open log file: %v", err)
		}
		defer closer.Close()
		logger = fileLogger
	}

	level, err := shared.ParseLogLevel(config.Logging.Level)
	if err != nil {
		logger.Warn("falling back to info logging", "error", err)
	}
	shared.SetLogLevel(logger, level)

	runner := NewRunner(RunnerOpts{
		Config: config,
		Logger: logger,
	})

	app := &cli.Command{
		Name:     "hoardsync",
		Usage:    "Mirror Hoarder bookmarks into Tana",
		Version:  "0.1.0",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		logger.Error("application error", "error", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file at path. A missing file yields the defaults; a file that exists but
// cannot be parsed is an error.
func loadConfig(path string) (*shared.Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return shared.DefaultConfig(), nil
	}
	config, err := shared.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return config, nil
}
