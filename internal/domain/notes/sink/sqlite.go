package sink

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/FACorreiaa/notas-etl/internal/domain/notes/table"
)

// SQLiteAppender appends tables to SQLite with a prepared INSERT per table.
type SQLiteAppender struct {
	db     *sql.DB
	logger *slog.Logger
	locks  tableLocks
}

// NewSQLiteAppender creates a SQLite appender.
func NewSQLiteAppender(db *sql.DB, logger *slog.Logger) *SQLiteAppender {
	return &SQLiteAppender{
		db:     db,
		logger: logger,
	}
}

// Append implements Appender.
func (a *SQLiteAppender) Append(ctx context.Context, name string, t *table.Table) Result {
	res := Result{Table: name}
	if t.Width() == 0 {
		res.Err = fmt.Errorf("append %s: %w", name, table.ErrEmptyTable)
		return res
	}

	cols, rows := dbShape(t)

	unlock := a.locks.lock(name)
	defer unlock()

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		res.Err = fmt.Errorf("failed to begin transaction: %w", err)
		return res
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, createTableSQL(name, cols)); err != nil {
		res.Err = fmt.Errorf("failed to create table %s: %w", name, err)
		return res
	}

	if len(rows) > 0 {
		stmt, err := tx.PrepareContext(ctx, insertSQL(name, cols))
		if err != nil {
			res.Err = fmt.Errorf("failed to prepare insert into %s: %w", name, err)
			return res
		}
		defer stmt.Close()

		for _, row := range rows {
			if _, err := stmt.ExecContext(ctx, row...); err != nil {
				res.Err = fmt.Errorf("failed to insert into %s: %w", name, err)
				return res
			}
		}
	}

	if err := tx.Commit(); err != nil {
		res.Err = fmt.Errorf("failed to commit %s: %w", name, err)
		return res
	}

	res.Rows = len(rows)
	a.logger.Debug("rows appended", slog.String("table", name), slog.Int("rows", res.Rows))
	return res
}

func insertSQL(name string, cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		pgx.Identifier{name}.Sanitize(),
		strings.Join(quoted, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "))
}
