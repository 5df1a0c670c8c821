// Package e2etest provides end-to-end integration tests for the extraction pipeline.
package e2etest

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/FACorreiaa/notas-etl/internal/domain/notes/extractor"
	"github.com/FACorreiaa/notas-etl/internal/domain/notes/repository"
	"github.com/FACorreiaa/notas-etl/internal/domain/notes/rules"
	"github.com/FACorreiaa/notas-etl/internal/domain/notes/service"
	"github.com/FACorreiaa/notas-etl/internal/domain/notes/sink"
	"github.com/FACorreiaa/notas-etl/internal/domain/notes/table"
	"github.com/FACorreiaa/notas-etl/pkg/db"
	"github.com/FACorreiaa/notas-etl/pkg/metrics"
	"github.com/FACorreiaa/notas-etl/pkg/storage"
)

const (
	rulesFile   = "../../configs/rules/notas.yaml"
	testDataDir = "../../testdata/notes"
)

// cannedEngine returns the same three regions for every document, told apart
// by the top edge of the first area in the shipped redrex template.
type cannedEngine struct{}

func (cannedEngine) ReadTables(_ context.Context, req extractor.Request) ([]*table.Table, error) {
	switch req.Areas[0].Y1 {
	case 794:
		return []*table.Table{table.NewRaw([][]string{
			{"", "Nr. nota", "Folha", "Data pregão"},
			{"", "98765", "1", "15/03/2024"},
		})}, nil
	case 533:
		return []*table.Table{table.NewRaw([][]string{
			{"", "Negociação", "C/V", "Especificação do título", "Quantidade", "Preço"},
			{"", "1-BOVESPA", "C", "PETR4 PN", "100", "30,50"},
			{"", "1-BOVESPA", "V", "VALE3 ON", "50", "60,00"},
		})}, nil
	default:
		return []*table.Table{table.NewRaw([][]string{
			{"", "Taxa de liquidação", "Emolumentos"},
			{"", "1,20", "0,15"},
		})}, nil
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type env struct {
	root     string
	sqlite   *sql.DB
	pipeline *service.Pipeline
	runs     repository.RunRepository
}

func newEnv(t *testing.T, engine extractor.Engine) *env {
	t.Helper()
	ctx := context.Background()
	root := t.TempDir()

	sqlite, err := db.OpenSQLite(ctx, filepath.Join(root, "notas.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })
	require.NoError(t, db.MigrateSQLite(ctx, sqlite, discardLogger()))

	reg, err := rules.LoadFile(rulesFile)
	require.NoError(t, err)

	docs, err := storage.NewLocalStorage(filepath.Join(root, "pdf"))
	require.NoError(t, err)
	csvFiles, err := storage.NewLocalStorage(filepath.Join(root, "csv"))
	require.NoError(t, err)
	xlsxFiles, err := storage.NewLocalStorage(filepath.Join(root, "xlsx"))
	require.NoError(t, err)

	runs := repository.NewSQLiteRunRepository(sqlite)
	pipeline := service.New(service.Deps{
		Registry:  reg,
		Documents: docs,
		Extractor: extractor.New(engine, discardLogger()),
		CSV:       sink.NewCSVWriter(csvFiles),
		XLSX:      sink.NewXLSXWriter(xlsxFiles),
		Reports:   csvFiles,
		DB:        sink.NewSQLiteAppender(sqlite, discardLogger()),
		Runs:      runs,
		Metrics:   metrics.New(),
		Logger:    discardLogger(),
	}, service.Options{Workers: 2, ContinueOnError: true, Report: true})

	return &env{root: root, sqlite: sqlite, pipeline: pipeline, runs: runs}
}

func (e *env) addPDF(t *testing.T, name string, data []byte) {
	t.Helper()
	dir := filepath.Join(e.root, "pdf", "redrex")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
}

func (e *env) count(t *testing.T, tableName string) int {
	t.Helper()
	var n int
	require.NoError(t, e.sqlite.QueryRow(`SELECT COUNT(*) FROM "`+tableName+`"`).Scan(&n))
	return n
}

func TestPipeline_SQLiteRun(t *testing.T) {
	e := newEnv(t, cannedEngine{})
	e.addPDF(t, "nota_001.pdf", []byte("%PDF-1.4"))
	e.addPDF(t, "nota_002.pdf", []byte("%PDF-1.4"))
	ctx := context.Background()

	summary, err := e.pipeline.Run(ctx, "redrex")
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Zero(t, summary.Failed)

	t.Run("database tables", func(t *testing.T) {
		assert.Equal(t, 4, e.count(t, "fatura_redrex"))
		assert.Equal(t, 2, e.count(t, "fatura_redrex_small"))

		var ativo, nota, inserted string
		row := e.sqlite.QueryRow(`SELECT especificacao_do_titulo, nr_nota, insertion_date FROM fatura_redrex LIMIT 1`)
		require.NoError(t, row.Scan(&ativo, &nota, &inserted))
		assert.Equal(t, "PETR4 PN", ativo)
		assert.Equal(t, "98765", nota)
		assert.Equal(t, time.Now().Format(table.InsertionDateLayout), inserted)
	})

	t.Run("csv and xlsx files", func(t *testing.T) {
		assert.FileExists(t, filepath.Join(e.root, "csv", "nota_001.csv"))
		assert.FileExists(t, filepath.Join(e.root, "csv", "nota_002_small.csv"))
		assert.FileExists(t, filepath.Join(e.root, "csv", "_report_redrex.csv"))

		wb, err := excelize.OpenFile(filepath.Join(e.root, "xlsx", "nota_001.xlsx"))
		require.NoError(t, err)
		defer wb.Close()

		assert.Equal(t, []string{"main", "small"}, wb.GetSheetList())
		rows, err := wb.GetRows("main")
		require.NoError(t, err)
		require.Len(t, rows, 3)
		assert.Equal(t, "negociacao", rows[0][0])
	})

	t.Run("run bookkeeping", func(t *testing.T) {
		recorded, err := e.runs.ListByRun(ctx, summary.RunID)
		require.NoError(t, err)
		require.Len(t, recorded, 2)
		for _, r := range recorded {
			assert.Equal(t, repository.StatusSucceeded, r.Status)
			assert.Equal(t, service.DBStatusOK, r.DBStatus)
			assert.Equal(t, 2, r.MainRows)
			assert.Equal(t, 1, r.SmallRows)
		}
	})

	t.Run("second run appends", func(t *testing.T) {
		_, err := e.pipeline.Run(ctx, "redrex")
		require.NoError(t, err)
		assert.Equal(t, 8, e.count(t, "fatura_redrex"))
	})
}

// TestPipeline_RealNotes runs the PDF engine over sample notes. Drop PDFs into
// testdata/notes/redrex to enable it.
func TestPipeline_RealNotes(t *testing.T) {
	src := filepath.Join(testDataDir, "redrex")
	entries, err := os.ReadDir(src)
	if os.IsNotExist(err) || len(entries) == 0 {
		t.Skipf("Test data not found: %s (add redrex PDFs to run this test)", src)
	}
	require.NoError(t, err)

	e := newEnv(t, extractor.NewTabulaEngine(discardLogger()))
	for _, entry := range entries {
		if filepath.Ext(entry.Name()) != ".pdf" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(src, entry.Name()))
		require.NoError(t, err)
		e.addPDF(t, entry.Name(), data)
	}

	summary, err := e.pipeline.Run(context.Background(), "redrex")
	require.NoError(t, err)
	for _, row := range summary.Rows {
		t.Logf("%s: status=%s main=%d small=%d db=%s err=%s",
			row.DocumentID, row.Status, row.MainRows, row.SmallRows, row.DBStatus, row.Error)
	}
	assert.Zero(t, summary.Failed)
}
