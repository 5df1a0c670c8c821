package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// SQLiteRunRepository implements RunRepository using SQLite
type SQLiteRunRepository struct {
	db *sql.DB
}

// NewSQLiteRunRepository creates a new SQLite run repository
func NewSQLiteRunRepository(db *sql.DB) *SQLiteRunRepository {
	return &SQLiteRunRepository{db: db}
}

// Record inserts one document record
func (r *SQLiteRunRepository) Record(ctx context.Context, run *Run) error {
	run.prepare()

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", 11), ", ")
	if _, err := r.db.ExecContext(ctx, fmt.Sprintf(insertRunSQL, placeholders), run.args()...); err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

// ListByRun returns the records of a run
func (r *SQLiteRunRepository) ListByRun(ctx context.Context, runID uuid.UUID) ([]Run, error) {
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(listRunSQL, "?"), runID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return runs, nil
}

// NopRunRepository discards records when no database is configured
type NopRunRepository struct{}

// Record implements RunRepository
func (NopRunRepository) Record(context.Context, *Run) error { return nil }

// ListByRun implements RunRepository
func (NopRunRepository) ListByRun(context.Context, uuid.UUID) ([]Run, error) { return nil, nil }
