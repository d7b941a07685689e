package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/dvloznov/swg-merchant/internal/domain"
)

// StartRun inserts a new ingest_runs row with status=RUNNING and returns the generated run id.
func (s *Store) StartRun(ctx context.Context, source string) (string, error) {
	runID := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ingest_runs (run_id, source, started_at, status)
		VALUES (?, ?, ?, ?)
	`, runID, source, formatTime(s.now()), domain.RunRunning)
	if err != nil {
		return "", fmt.Errorf("StartRun: insert: %w", err)
	}
	return runID, nil
}

// FinishRun records the counters of a run and sets finished_at.
// Status is SUCCESS, or PARTIAL when any file failed.
func (s *Store) FinishRun(ctx context.Context, runID string, counts domain.RunCounts, runErr error) error {
	status := domain.RunSuccess
	if counts.Failed > 0 || runErr != nil {
		status = domain.RunPartial
	}
	errMsg := ""
	if runErr != nil {
		errMsg = runErr.Error()
		const maxLen = 2000
		if len(errMsg) > maxLen {
			errMsg = errMsg[:maxLen]
		}
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE ingest_runs
		SET finished_at = ?, status = ?, files_seen = ?, inserted = ?, linked = ?,
		    completed = ?, updated = ?, skipped = ?, ignored = ?, failed = ?, error_message = ?
		WHERE run_id = ?
	`, formatTime(s.now()), status, counts.Seen, counts.Inserted, counts.Linked,
		counts.Completed, counts.Updated, counts.Skipped, counts.Ignored, counts.Failed, errMsg, runID)
	if err != nil {
		return fmt.Errorf("FinishRun: update: %w", err)
	}
	return nil
}

// GetRun returns one recorded run.
func (s *Store) GetRun(ctx context.Context, runID string) (*domain.IngestRun, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM ingest_runs WHERE run_id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("GetRun: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*domain.IngestRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM ingest_runs ORDER BY started_at DESC, run_id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("ListRuns: query: %w", err)
	}
	defer rows.Close()

	var runs []*domain.IngestRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("ListRuns: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListRuns: iterating results: %w", err)
	}
	return runs, nil
}

const runColumns = `run_id, source, started_at, finished_at, status, files_seen, inserted, linked,
	completed, updated, skipped, ignored, failed, error_message`

func scanRun(r rowScanner) (*domain.IngestRun, error) {
	var (
		run      domain.IngestRun
		started  string
		finished sql.NullString
		c        = &run.Counts
	)
	if err := r.Scan(&run.ID, &run.Source, &started, &finished, &run.Status, &c.Seen, &c.Inserted,
		&c.Linked, &c.Completed, &c.Updated, &c.Skipped, &c.Ignored, &c.Failed, &run.ErrorMessage); err != nil {
		return nil, err
	}
	var err error
	if run.StartedAt, err = parseTime(started); err != nil {
		return nil, err
	}
	if finished.Valid {
		if run.FinishedAt, err = parseTime(finished.String); err != nil {
			return nil, err
		}
	}
	return &run, nil
}
