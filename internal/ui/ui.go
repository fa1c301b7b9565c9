package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/hoardsync/internal/models"
	"github.com/desertthunder/hoardsync/internal/tasks"
)

var _ Painter = (*Palette)(nil)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	MenuView ViewState = iota
	SyncView
	ResultView
)

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	cancel       context.CancelFunc
	done         chan struct{}
	view         ViewState
	engine       tasks.SyncEngine
	width        int
	height       int
	menu         list.Model
	spinner      spinner.Model
	mode         models.SyncMode
	progressChan chan tasks.ProgressUpdate
	progress     tasks.ProgressUpdate
	result       *tasks.SyncResult
	err          error
	help         help.Model
	keys         keyMap
}

// NewModel creates a new TUI model around an initialized engine.
// Call [Model.Shutdown] after the program exits so a running sync stops before the engine is cleaned up.
func NewModel(ctx context.Context, engine tasks.SyncEngine) *Model {
	ctx, cancel := context.WithCancel(ctx)

	modes := modeItems()
	items := make([]list.Item, len(modes))
	for i, m := range modes {
		items[i] = m
	}

	menu := list.New(items, list.NewDefaultDelegate(), 0, 0)
	menu.Title = "Hoarder → Tana"
	menu.SetShowHelp(false)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.title.UnsetMarginBottom()

	return &Model{
		ctx:     ctx,
		cancel:  cancel,
		view:    MenuView,
		engine:  engine,
		menu:    menu,
		spinner: s,
		help:    help.New(),
		keys:    newKeyMap(),
	}
}

func (m *Model) Init() tea.Cmd {
	return nil
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.menu.SetSize(msg.Width-4, msg.Height-6)
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case MenuView:
			return m.handleMenuKeys(msg)
		case SyncView:
			if key.Matches(msg, m.keys.quit) {
				return m, m.quit()
			}
			return m, nil
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case spinner.TickMsg:
		if m.view != SyncView {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progressUpdateMsg:
		m.progress = tasks.ProgressUpdate(msg)
		return m, m.waitForProgress()

	case syncCompleteMsg:
		m.result = msg.result
		m.err = msg.err
		m.view = ResultView
		m.progressChan = nil
		return m, nil
	}

	var cmd tea.Cmd
	if m.view == MenuView {
		m.menu, cmd = m.menu.Update(msg)
	}
	return m, cmd
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case MenuView:
		return fmt.Sprintf("%s\n\n%s", m.menu.View(), m.help.ShortHelpView([]key.Binding{m.keys.up, m.keys.down, m.keys.enter, m.keys.quit}))
	case SyncView:
		return m.renderSync()
	case ResultView:
		return fmt.Sprintf("%s\n\n%s", RenderResult(m.result, m.err), m.help.ShortHelpView([]key.Binding{m.keys.restart, m.keys.quit}))
	default:
		return ""
	}
}

func (m *Model) handleMenuKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, m.quit()
	case key.Matches(msg, m.keys.enter):
		if item, ok := m.menu.SelectedItem().(modeItem); ok {
			m.mode = item.mode
			m.view = SyncView
			return m, tea.Batch(m.spinner.Tick, m.startSync())
		}
	}

	var cmd tea.Cmd
	m.menu, cmd = m.menu.Update(msg)
	return m, cmd
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, m.quit()
	case key.Matches(msg, m.keys.restart):
		m.view = MenuView
		m.progress = tasks.ProgressUpdate{}
		m.result = nil
		m.err = nil
	}
	return m, nil
}

// startSync runs the selected mode in the background and streams its progress.
func (m *Model) startSync() tea.Cmd {
	progress := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	m.progressChan = progress
	m.done = done
	mode := m.mode

	go func() {
		defer close(done)
		defer close(progress)

		var (
			result *tasks.SyncResult
			err    error
		)
		switch mode {
		case models.ModeFull:
			result, err = m.engine.FullSync(m.ctx, progress)
		case models.ModeTest:
			result, err = m.engine.TestSync(m.ctx, progress)
		default:
			result, err = m.engine.IncrementalSync(m.ctx, progress)
		}
		select {
		case progress <- tasks.ProgressUpdate{Phase: tasks.Complete, Data: syncCompleteMsg{result: result, err: err}}:
		case <-m.ctx.Done():
		}
	}()

	return m.waitForProgress()
}

// quit cancels any running sync and exits the program.
func (m *Model) quit() tea.Cmd {
	m.cancel()
	return tea.Quit
}

// Shutdown cancels a running sync and blocks until its goroutine has returned.
func (m *Model) Shutdown() {
	m.cancel()
	if m.done != nil {
		<-m.done
	}
}

func (m *Model) waitForProgress() tea.Cmd {
	progress := m.progressChan
	return func() tea.Msg {
		if progress == nil {
			return syncCompleteMsg{result: m.result, err: m.err}
		}
		update, ok := <-progress
		if !ok {
			return syncCompleteMsg{result: m.result, err: m.err}
		}
		if done, ok := update.Data.(syncCompleteMsg); ok {
			return done
		}
		return progressUpdateMsg(update)
	}
}

func (m *Model) renderSync() string {
	title := styles.title.Render(fmt.Sprintf("Running %s sync", m.mode))

	var phase string
	switch m.progress.Phase {
	case tasks.FetchPage:
		phase = fmt.Sprintf("Fetching page %d", m.progress.Step)
	case tasks.SyncBookmark, tasks.SkipBookmark:
		phase = fmt.Sprintf("Syncing bookmarks (%d/%d)", m.progress.Step, m.progress.Total)
	case tasks.SaveCursor:
		phase = "Saving cursor"
	case tasks.BackupCache:
		phase = "Backing up cache"
	default:
		phase = "Starting"
	}

	return fmt.Sprintf("%s\n%s %s\n%s", title, m.spinner.View(), phase, styles.help.Render(m.progress.Message))
}

// RenderResult renders a sync summary for terminal output.
func RenderResult(result *tasks.SyncResult, err error) string {
	var b strings.Builder

	switch {
	case err != nil:
		b.WriteString(styles.err.Render(fmt.Sprintf("✗ Sync failed: %v", err)))
	case result == nil:
		return styles.err.Render("No result available")
	default:
		b.WriteString(styles.ok.Render(fmt.Sprintf("✓ %s sync complete", result.Mode)))
	}
	if result == nil {
		return b.String()
	}

	b.WriteString("\n\n")
	row := func(label string, value any) {
		b.WriteString(styles.label.Render(label))
		b.WriteString(fmt.Sprintf("%v\n", value))
	}
	row("Run", result.RunID)
	row("Pages", result.Pages)
	row("Fetched", result.Fetched)
	row("Created", result.Created)
	row("Skipped", fmt.Sprintf("%d (%d by id, %d by url)", result.Skipped(), result.SkippedByID, result.SkippedByURL))
	row("Failed", result.Failed)
	if result.Cursor == "" {
		row("Cursor", "caught up")
	} else {
		row("Cursor", result.Cursor)
	}

	if len(result.Errors) > 0 {
		b.WriteString("\n")
		b.WriteString(styles.warn.Render(fmt.Sprintf("Failed bookmarks (%d):", len(result.Errors))))
		for _, e := range result.Errors {
			b.WriteString(fmt.Sprintf("\n  • %s %s: %v", e.ID, e.Title, e.Err))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
