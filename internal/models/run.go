package models

import (
	"fmt"
	"time"

	"github.com/desertthunder/hoardsync/internal/shared"
)

// SyncMode names a sync entry point.
type SyncMode string

const (
	ModeFull        SyncMode = "full"
	ModeIncremental SyncMode = "incremental"
	ModeTest        SyncMode = "test"
)

// SyncRun is the persisted record of one sync invocation.
type SyncRun struct {
	ID         string     `json:"id"`
	Mode       SyncMode   `json:"mode"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Pages      int        `json:"pages"`
	Fetched    int        `json:"fetched"`
	Created    int        `json:"created"`
	Skipped    int        `json:"skipped"`
	Failed     int        `json:"failed"`
	Error      string     `json:"error,omitempty"`
}

// NewSyncRun starts a run record with a fresh id.
func NewSyncRun(mode SyncMode) *SyncRun {
	return &SyncRun{ID: shared.GenerateID(), Mode: mode, StartedAt: time.Now().UTC()}
}

// Finish stamps the completion time and the terminal error, if any.
func (r *SyncRun) Finish(err error) {
	now := time.Now().UTC()
	r.FinishedAt = &now
	if err != nil {
		r.Error = err.Error()
	}
}

// Succeeded reports whether the run completed without error.
func (r *SyncRun) Succeeded() bool {
	return r.FinishedAt != nil && r.Error == ""
}

// Duration is the elapsed time of a finished run, or zero while running.
func (r *SyncRun) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

func (r *SyncRun) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("%w: run id is required", shared.ErrInvalidInput)
	}
	switch r.Mode {
	case ModeFull, ModeIncremental, ModeTest:
	default:
		return fmt.Errorf("%w: unknown sync mode %q", shared.ErrInvalidInput, r.Mode)
	}
	if r.StartedAt.IsZero() {
		return fmt.Errorf("%w: run %s has no start time", shared.ErrInvalidInput, r.ID)
	}
	return nil
}
