package sink

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/FACorreiaa/notas-etl/internal/domain/notes/table"
)

// Beginner starts transactions. Satisfied by *pgxpool.Pool.
type Beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresAppender appends tables to PostgreSQL with COPY, creating missing
// tables with TEXT columns.
type PostgresAppender struct {
	db     Beginner
	logger *slog.Logger
	locks  tableLocks
}

// NewPostgresAppender creates a PostgreSQL appender.
func NewPostgresAppender(db Beginner, logger *slog.Logger) *PostgresAppender {
	return &PostgresAppender{
		db:     db,
		logger: logger,
	}
}

// Append implements Appender.
func (a *PostgresAppender) Append(ctx context.Context, name string, t *table.Table) Result {
	res := Result{Table: name}
	if t.Width() == 0 {
		res.Err = fmt.Errorf("append %s: %w", name, table.ErrEmptyTable)
		return res
	}

	cols, rows := dbShape(t)

	unlock := a.locks.lock(name)
	defer unlock()

	tx, err := a.db.Begin(ctx)
	if err != nil {
		res.Err = fmt.Errorf("failed to begin transaction: %w", err)
		return res
	}

	if _, err := tx.Exec(ctx, createTableSQL(name, cols)); err != nil {
		_ = tx.Rollback(ctx)
		res.Err = fmt.Errorf("failed to create table %s: %w", name, err)
		return res
	}

	if len(rows) > 0 {
		n, err := tx.CopyFrom(ctx, pgx.Identifier{name}, cols, pgx.CopyFromRows(rows))
		if err != nil {
			_ = tx.Rollback(ctx)
			res.Err = fmt.Errorf("failed to copy rows into %s: %w", name, err)
			return res
		}
		res.Rows = int(n)
	}

	if err := tx.Commit(ctx); err != nil {
		res.Err = fmt.Errorf("failed to commit %s: %w", name, err)
		res.Rows = 0
		return res
	}

	a.logger.Debug("rows appended", slog.String("table", name), slog.Int("rows", res.Rows))
	return res
}

// createTableSQL renders CREATE TABLE IF NOT EXISTS with one TEXT column per label.
// Identifiers are quoted the same way for PostgreSQL and SQLite.
func createTableSQL(name string, cols []string) string {
	defs := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = pgx.Identifier{c}.Sanitize() + " TEXT"
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", pgx.Identifier{name}.Sanitize(), strings.Join(defs, ", "))
}
