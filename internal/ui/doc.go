// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI provides a small workflow for running a sync by hand:
//  1. [MenuView] : Pick a sync mode (incremental, full, test)
//  2. [SyncView] : Watch real-time progress with a spinner
//  3. [ResultView] : Review counters and failed bookmarks
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern.
// Progress updates flow through a channel from the sync engine, providing non-blocking status reporting.
//
// [RenderResult] is shared with the non-interactive sync commands.
package ui
