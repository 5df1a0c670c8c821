package db

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenSQLiteAndMigrate(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "notas.db")

	db, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer db.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	require.NoError(t, MigrateSQLite(ctx, db, logger))
	require.NoError(t, MigrateSQLite(ctx, db, logger), "migrations are idempotent")

	var name string
	err = db.QueryRowContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'extraction_runs'`).Scan(&name)
	require.NoError(t, err)
	assert.Equal(t, "extraction_runs", name)
}
