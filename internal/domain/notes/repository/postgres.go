package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the subset of *pgxpool.Pool used by the repository
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresRunRepository implements RunRepository using PostgreSQL
type PostgresRunRepository struct {
	pool DBTX
}

// NewPostgresRunRepository creates a new PostgreSQL run repository
func NewPostgresRunRepository(pool DBTX) *PostgresRunRepository {
	return &PostgresRunRepository{pool: pool}
}

// Record inserts one document record
func (r *PostgresRunRepository) Record(ctx context.Context, run *Run) error {
	run.prepare()

	query := fmt.Sprintf(insertRunSQL, "$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11")
	if _, err := r.pool.Exec(ctx, query, run.args()...); err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

// ListByRun returns the records of a run
func (r *PostgresRunRepository) ListByRun(ctx context.Context, runID uuid.UUID) ([]Run, error) {
	rows, err := r.pool.Query(ctx, fmt.Sprintf(listRunSQL, "$1"), runID.String())
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
