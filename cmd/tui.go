package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/hoardsync/internal/shared"
	"github.com/desertthunder/hoardsync/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive terminal UI for running syncs.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	logPath := r.config.Logging.File
	if logPath == "" {
		logPath = "./tmp/hoardsync-tui.log"
	}
	logFile, err := shared.NewRotatingFile(logPath)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	defer logFile.Close()
	r.SetLogger(shared.NewLogger(logFile))

	engine, err := r.newEngine(ctx)
	if err != nil {
		return err
	}
	if err := engine.Initialize(ctx); err != nil {
		r.cleanup(engine)
		return err
	}

	model := ui.NewModel(ctx, engine)
	p := tea.NewProgram(model)

	_, runErr := p.Run()
	model.Shutdown()
	cleanupErr := r.cleanup(engine)
	if runErr != nil {
		return fmt.Errorf("error running TUI: %w", runErr)
	}
	return cleanupErr
}
