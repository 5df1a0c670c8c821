package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Run statuses
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Run is the bookkeeping record of one document processed in one run
type Run struct {
	ID         uuid.UUID
	RunID      uuid.UUID
	Brokerage  string
	DocumentID string
	Status     string
	MainRows   int
	SmallRows  int
	DBStatus   string
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// RunRepository stores extraction run records
type RunRepository interface {
	// Record inserts one document record
	Record(ctx context.Context, run *Run) error

	// ListByRun returns the records of a run ordered by document
	ListByRun(ctx context.Context, runID uuid.UUID) ([]Run, error)
}

const insertRunSQL = `
	INSERT INTO extraction_runs (id, run_id, brokerage, document_id, status, main_rows, small_rows, db_status, error, started_at, finished_at)
	VALUES (%s)`

const listRunSQL = `
	SELECT id, run_id, brokerage, document_id, status, main_rows, small_rows, db_status, error, started_at, finished_at
	FROM extraction_runs
	WHERE run_id = %s
	ORDER BY document_id`

func (r *Run) prepare() {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()
}

func (r *Run) args() []any {
	return []any{
		r.ID.String(),
		r.RunID.String(),
		r.Brokerage,
		r.DocumentID,
		r.Status,
		r.MainRows,
		r.SmallRows,
		r.DBStatus,
		r.Error,
		r.StartedAt,
		r.FinishedAt,
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var run Run
	var id, runID string
	err := s.Scan(
		&id,
		&runID,
		&run.Brokerage,
		&run.DocumentID,
		&run.Status,
		&run.MainRows,
		&run.SmallRows,
		&run.DBStatus,
		&run.Error,
		&run.StartedAt,
		&run.FinishedAt,
	)
	if err != nil {
		return run, err
	}

	if run.ID, err = uuid.Parse(id); err != nil {
		return run, err
	}
	if run.RunID, err = uuid.Parse(runID); err != nil {
		return run, err
	}
	return run, nil
}
