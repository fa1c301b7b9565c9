package ui

import (
	"github.com/desertthunder/hoardsync/internal/models"
	"github.com/desertthunder/hoardsync/internal/tasks"
)

// modeItem is a sync entry point shown in the menu list.
type modeItem struct {
	mode models.SyncMode
	desc string
}

func (i modeItem) FilterValue() string { return string(i.mode) }
func (i modeItem) Title() string       { return string(i.mode) }
func (i modeItem) Description() string { return i.desc }

func modeItems() []modeItem {
	return []modeItem{
		{models.ModeIncremental, "Sync one page from the saved cursor"},
		{models.ModeFull, "Page through every bookmark from the beginning"},
		{models.ModeTest, "Push the first few bookmarks, ignoring dedup state"},
	}
}

type progressUpdateMsg tasks.ProgressUpdate

type syncCompleteMsg struct {
	result *tasks.SyncResult
	err    error
}
