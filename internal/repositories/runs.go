package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/desertthunder/hoardsync/internal/models"
)

// SyncRunRepository persists [models.SyncRun] history in the sync_runs table.
type SyncRunRepository struct {
	db *sql.DB
}

// NewSyncRunRepository creates a new SyncRunRepository with the given database connection
func NewSyncRunRepository(db *sql.DB) *SyncRunRepository {
	return &SyncRunRepository{db: db}
}

const syncRunColumns = `id, mode, started_at, finished_at, pages, fetched, created, skipped, failed, error`

// Create inserts a run record.
func (r *SyncRunRepository) Create(ctx context.Context, run *models.SyncRun) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sync_runs (`+syncRunColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, string(run.Mode), run.StartedAt, nullableTime(run), run.Pages, run.Fetched,
		run.Created, run.Skipped, run.Failed, nullableString(run.Error),
	)
	if err != nil {
		return fmt.Errorf("failed to insert sync run: %w", err)
	}
	return nil
}

// Update writes the counters, completion time, and error of an existing run.
func (r *SyncRunRepository) Update(ctx context.Context, run *models.SyncRun) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE sync_runs
		SET finished_at = ?, pages = ?, fetched = ?, created = ?, skipped = ?, failed = ?, error = ?
		WHERE id = ?
	`, nullableTime(run), run.Pages, run.Fetched, run.Created, run.Skipped, run.Failed, nullableString(run.Error), run.ID)
	if err != nil {
		return fmt.Errorf("failed to update sync run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("sync run not found: %s", run.ID)
	}
	return nil
}

// Get retrieves a run by ID.
func (r *SyncRunRepository) Get(ctx context.Context, id string) (*models.SyncRun, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+syncRunColumns+` FROM sync_runs WHERE id = ?`, id)
	run, err := scanSyncRun(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("sync run not found: %s", id)
	}
	return run, err
}

// List returns the most recent runs, newest first. A non-positive limit returns all runs.
func (r *SyncRunRepository) List(ctx context.Context, limit int) ([]*models.SyncRun, error) {
	query := `SELECT ` + syncRunColumns + ` FROM sync_runs ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.SyncRun
	for rows.Next() {
		run, err := scanSyncRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return runs, nil
}

// Latest returns the most recent run, or nil when none exist.
func (r *SyncRunRepository) Latest(ctx context.Context) (*models.SyncRun, error) {
	runs, err := r.List(ctx, 1)
	if err != nil || len(runs) == 0 {
		return nil, err
	}
	return runs[0], nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSyncRun(s scanner) (*models.SyncRun, error) {
	var (
		run        models.SyncRun
		mode       string
		finishedAt sql.NullTime
		errMsg     sql.NullString
	)

	err := s.Scan(&run.ID, &mode, &run.StartedAt, &finishedAt, &run.Pages, &run.Fetched,
		&run.Created, &run.Skipped, &run.Failed, &errMsg)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan sync run: %w", err)
	}

	run.Mode = models.SyncMode(mode)
	if finishedAt.Valid {
		t := finishedAt.Time
		run.FinishedAt = &t
	}
	if errMsg.Valid {
		run.Error = errMsg.String
	}
	return &run, nil
}

func nullableTime(run *models.SyncRun) any {
	if run.FinishedAt == nil {
		return nil
	}
	return *run.FinishedAt
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
