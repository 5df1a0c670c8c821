package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/FACorreiaa/notas-etl/internal/domain/notes/repository"
	"github.com/FACorreiaa/notas-etl/internal/domain/notes/sink"
	"github.com/FACorreiaa/notas-etl/pkg/storage"
)

// DB status values in the run report
const (
	DBStatusOK      = "ok"
	DBStatusSkipped = "skipped"
	DBStatusFailed  = "failed"
)

// ReportRow is one line of _report_{brokerage}.csv
type ReportRow struct {
	DocumentID string `csv:"document_id"`
	Status     string `csv:"status"`
	MainRows   int    `csv:"main_rows"`
	SmallRows  int    `csv:"small_rows"`
	DBStatus   string `csv:"db_status"`
	Error      string `csv:"error"`
	DurationMS int64  `csv:"duration_ms"`
}

// Summary describes one directory run
type Summary struct {
	RunID     uuid.UUID
	Brokerage string
	Documents int
	Succeeded int
	Failed    int
	Rows      []ReportRow
	Report    string
}

// Run processes every document in the brokerage's input folder. An unknown
// brokerage aborts the run; a missing folder yields an empty run.
func (p *Pipeline) Run(ctx context.Context, brokerageID string) (*Summary, error) {
	cfg, err := p.registry.Get(brokerageID)
	if err != nil {
		return nil, err
	}

	summary := &Summary{RunID: uuid.New(), Brokerage: cfg.ID}
	logger := p.logger.With(slog.String("brokerage", cfg.ID), slog.String("run_id", summary.RunID.String()))

	docs := p.listDocuments(ctx, logger, cfg.ID)
	summary.Documents = len(docs)

	rows := make([]ReportRow, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)

	for i, doc := range docs {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}

			row, err := p.runDocument(gctx, logger, summary.RunID, cfg.ID, doc)
			rows[i] = row
			if err != nil {
				logger.Error("failed to process pdf", slog.String("document", doc), slog.Any("error", err))
				if !p.opts.ContinueOnError {
					return err
				}
			}
			return nil
		})
	}
	runErr := g.Wait()

	for _, row := range rows {
		switch row.Status {
		case repository.StatusSucceeded:
			summary.Succeeded++
			summary.Rows = append(summary.Rows, row)
		case repository.StatusFailed:
			summary.Failed++
			summary.Rows = append(summary.Rows, row)
		}
	}

	if p.opts.Report && p.reports != nil && len(summary.Rows) > 0 {
		path, err := p.writeReport(ctx, cfg.ID, summary.Rows)
		if err != nil {
			logger.Error("failed to write run report", slog.Any("error", err))
		} else {
			summary.Report = path
		}
	}

	p.metrics.RunFinished(cfg.ID, p.now())
	logger.Info("all documents processed",
		slog.Int("documents", summary.Documents),
		slog.Int("succeeded", summary.Succeeded),
		slog.Int("failed", summary.Failed),
	)

	if runErr != nil {
		return summary, runErr
	}
	return summary, ctx.Err()
}

func (p *Pipeline) listDocuments(ctx context.Context, logger *slog.Logger, brokerageID string) []string {
	files, err := p.documents.List(ctx, brokerageID)
	if err != nil {
		if errors.Is(err, storage.ErrDirNotFound) {
			logger.Info("input folder not found", slog.String("folder", p.documents.Path(brokerageID)))
		} else {
			logger.Error("failed to list input folder", slog.Any("error", err))
		}
		return nil
	}

	docs := make([]string, 0, len(files))
	for _, f := range files {
		if filepath.Ext(f.Name) != ".pdf" {
			logger.Debug("skipping non-pdf file", slog.String("file", f.Name))
			continue
		}
		docs = append(docs, f.ID)
	}
	return docs
}

func (p *Pipeline) runDocument(ctx context.Context, logger *slog.Logger, runID uuid.UUID, brokerageID, documentID string) (ReportRow, error) {
	started := p.now()
	out, err := p.Process(ctx, brokerageID, documentID)
	finished := p.now()

	row := ReportRow{
		DocumentID: documentID,
		Status:     repository.StatusSucceeded,
		DurationMS: finished.Sub(started).Milliseconds(),
	}
	if out != nil {
		row.MainRows = out.Main.Len()
		row.SmallRows = out.Small.Len()
		row.DBStatus, row.Error = dbStatus(out.DB)
	}
	if err != nil {
		row.Status = repository.StatusFailed
		row.Error = err.Error()
	}

	run := &repository.Run{
		RunID:      runID,
		Brokerage:  brokerageID,
		DocumentID: documentID,
		Status:     row.Status,
		MainRows:   row.MainRows,
		SmallRows:  row.SmallRows,
		DBStatus:   row.DBStatus,
		Error:      row.Error,
		StartedAt:  started,
		FinishedAt: finished,
	}
	if recErr := p.runs.Record(context.WithoutCancel(ctx), run); recErr != nil {
		logger.Warn("failed to record run", slog.String("document", documentID), slog.Any("error", recErr))
	}

	return row, err
}

func dbStatus(results []sink.Result) (string, string) {
	var errs []string
	skipped := 0
	for _, r := range results {
		switch {
		case r.Err != nil:
			errs = append(errs, r.Err.Error())
		case r.Skipped:
			skipped++
		}
	}

	switch {
	case len(errs) > 0:
		return DBStatusFailed, strings.Join(errs, "; ")
	case skipped == len(results):
		return DBStatusSkipped, ""
	default:
		return DBStatusOK, ""
	}
}

func (p *Pipeline) writeReport(ctx context.Context, brokerageID string, rows []ReportRow) (string, error) {
	f, path, err := p.reports.Create(ctx, fmt.Sprintf("_report_%s.csv", brokerageID))
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := gocsv.MarshalCSV(rows, sink.NewSafeWriter(f)); err != nil {
		return "", fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close report: %w", err)
	}
	return path, nil
}
