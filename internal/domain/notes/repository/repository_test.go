package repository

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/notas-etl/pkg/db"
)

func newRun(runID uuid.UUID, doc string) *Run {
	start := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	return &Run{
		RunID:      runID,
		Brokerage:  "redrex",
		DocumentID: doc,
		Status:     StatusSucceeded,
		MainRows:   2,
		SmallRows:  1,
		DBStatus:   "ok",
		StartedAt:  start,
		FinishedAt: start.Add(1500 * time.Millisecond),
	}
}

func TestPostgresRunRepository_Record(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	run := newRun(uuid.New(), "nota_1")
	run.ID = uuid.New()

	mock.ExpectExec(`INSERT INTO extraction_runs`).
		WithArgs(run.ID.String(), run.RunID.String(), "redrex", "nota_1", StatusSucceeded, 2, 1, "ok", "",
			pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	repo := NewPostgresRunRepository(mock)
	require.NoError(t, repo.Record(context.Background(), run))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRunRepository_RecordAssignsID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`INSERT INTO extraction_runs`).
		WithArgs(
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
		).
		WillReturnError(errors.New("relation \"extraction_runs\" does not exist"))

	run := newRun(uuid.New(), "nota_1")
	err = NewPostgresRunRepository(mock).Record(context.Background(), run)

	assert.Error(t, err)
	assert.NotEqual(t, uuid.Nil, run.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRunRepository_ListByRun(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	runID := uuid.New()
	id := uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT id, run_id, brokerage`).
		WithArgs(runID.String()).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "run_id", "brokerage", "document_id", "status", "main_rows", "small_rows",
			"db_status", "error", "started_at", "finished_at",
		}).AddRow(
			id.String(), runID.String(), "redrex", "nota_1", StatusFailed, 0, 0,
			"", "no tables found in region", now, now,
		))

	runs, err := NewPostgresRunRepository(mock).ListByRun(context.Background(), runID)
	require.NoError(t, err)

	require.Len(t, runs, 1)
	assert.Equal(t, id, runs[0].ID)
	assert.Equal(t, runID, runs[0].RunID)
	assert.Equal(t, StatusFailed, runs[0].Status)
	assert.Equal(t, "no tables found in region", runs[0].Error)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()
	conn, err := db.OpenSQLite(ctx, filepath.Join(t.TempDir(), "notas.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, db.MigrateSQLite(ctx, conn, slog.New(slog.NewTextHandler(io.Discard, nil))))
	return conn
}

func TestSQLiteRunRepository_RoundTrip(t *testing.T) {
	repo := NewSQLiteRunRepository(openSQLite(t))
	ctx := context.Background()

	runID := uuid.New()
	b := newRun(runID, "nota_b")
	a := newRun(runID, "nota_a")
	a.Status = StatusFailed
	a.Error = "boom"
	other := newRun(uuid.New(), "nota_c")

	for _, r := range []*Run{b, a, other} {
		require.NoError(t, repo.Record(ctx, r))
	}

	runs, err := repo.ListByRun(ctx, runID)
	require.NoError(t, err)

	require.Len(t, runs, 2)
	assert.Equal(t, "nota_a", runs[0].DocumentID)
	assert.Equal(t, StatusFailed, runs[0].Status)
	assert.Equal(t, "boom", runs[0].Error)
	assert.Equal(t, a.ID, runs[0].ID)
	assert.Equal(t, "nota_b", runs[1].DocumentID)
	assert.Equal(t, 2, runs[1].MainRows)
	assert.True(t, b.StartedAt.Equal(runs[1].StartedAt))
	assert.True(t, b.FinishedAt.Equal(runs[1].FinishedAt))
}

func TestNopRunRepository(t *testing.T) {
	var repo RunRepository = NopRunRepository{}
	require.NoError(t, repo.Record(context.Background(), newRun(uuid.New(), "x")))
	runs, err := repo.ListByRun(context.Background(), uuid.New())
	assert.NoError(t, err)
	assert.Empty(t, runs)
}
