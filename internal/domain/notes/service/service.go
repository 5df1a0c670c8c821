// Package service runs the brokerage note pipeline: extract the header, main
// and small regions of a document, broadcast the header onto both tables,
// sanitize column labels and persist the result to CSV and the database.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/notas-etl/internal/domain/notes/repository"
	"github.com/FACorreiaa/notas-etl/internal/domain/notes/rules"
	"github.com/FACorreiaa/notas-etl/internal/domain/notes/sink"
	"github.com/FACorreiaa/notas-etl/internal/domain/notes/table"
	"github.com/FACorreiaa/notas-etl/pkg/metrics"
	"github.com/FACorreiaa/notas-etl/pkg/storage"
)

// ErrDocumentFailed wraps every error that aborts one document.
var ErrDocumentFailed = errors.New("document failed")

// Sections of a brokerage note
const (
	SectionHeader = "header"
	SectionMain   = "main"
	SectionSmall  = "small"
)

// TableExtractor reads one region of a document as a single table
type TableExtractor interface {
	Extract(ctx context.Context, path string, cfg rules.BrokerageConfig, region rules.RegionSpec) (*table.Table, error)
}

// TableWriter persists a table as a named file
type TableWriter interface {
	Write(ctx context.Context, name string, t *table.Table) (string, error)
}

// WorkbookWriter persists several tables as sheets of one named file
type WorkbookWriter interface {
	Write(ctx context.Context, name string, sheets ...sink.Sheet) (string, error)
}

// Deps holds the collaborators of the pipeline. DB, Runs, Metrics, Now and
// Tracer fall back to no-op or default implementations when nil.
type Deps struct {
	Registry  *rules.Registry
	Documents storage.Storage
	Extractor TableExtractor
	CSV       TableWriter
	XLSX      WorkbookWriter
	Reports   sink.FileCreator
	DB        sink.Appender
	Runs      repository.RunRepository
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
	Tracer    trace.Tracer
	Now       func() time.Time
}

// Options tune failure handling and parallelism
type Options struct {
	// ContinueOnError keeps the directory run going after a document fails
	ContinueOnError bool
	// FailOnDBError makes a failed database append fail the document
	FailOnDBError bool
	// Workers is the number of documents processed at once
	Workers int
	// Report writes _report_{brokerage}.csv after each run
	Report bool
}

// Output is the result of one processed document
type Output struct {
	DocumentID string
	Main       *table.Table
	Small      *table.Table
	Files      []string
	DB         []sink.Result
}

// Pipeline processes brokerage notes
type Pipeline struct {
	registry  *rules.Registry
	documents storage.Storage
	extractor TableExtractor
	csv       TableWriter
	xlsx      WorkbookWriter
	reports   sink.FileCreator
	db        sink.Appender
	runs      repository.RunRepository
	metrics   *metrics.Metrics
	logger    *slog.Logger
	tracer    trace.Tracer
	now       func() time.Time
	opts      Options
}

// New creates a Pipeline
func New(deps Deps, opts Options) *Pipeline {
	p := &Pipeline{
		registry:  deps.Registry,
		documents: deps.Documents,
		extractor: deps.Extractor,
		csv:       deps.CSV,
		xlsx:      deps.XLSX,
		reports:   deps.Reports,
		db:        deps.DB,
		runs:      deps.Runs,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		tracer:    deps.Tracer,
		now:       deps.Now,
		opts:      opts,
	}

	if p.db == nil {
		p.db = sink.Discard{}
	}
	if p.runs == nil {
		p.runs = repository.NopRunRepository{}
	}
	if p.metrics == nil {
		p.metrics = metrics.New()
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.tracer == nil {
		p.tracer = otel.Tracer("github.com/FACorreiaa/notas-etl/internal/domain/notes/service")
	}
	if p.now == nil {
		p.now = time.Now
	}
	if p.opts.Workers < 1 {
		p.opts.Workers = 1
	}
	return p
}

// TableNames returns the database tables of a brokerage: fatura_{id} and fatura_{id}_small
func TableNames(cfg rules.BrokerageConfig) (string, string) {
	main := strings.ToLower("fatura_" + cfg.ID)
	return main, main + "_small"
}

// Process runs every step for one document. Extraction, broadcast and file
// errors abort the document; database failures are reported in the Output and
// only abort it when FailOnDBError is set.
func (p *Pipeline) Process(ctx context.Context, brokerageID, documentID string) (out *Output, err error) {
	ctx, span := p.tracer.Start(ctx, "notes.Process", trace.WithAttributes(
		attribute.String("brokerage", brokerageID),
		attribute.String("document", documentID),
	))
	start := p.now()
	defer func() {
		status := repository.StatusSucceeded
		if err != nil {
			status = repository.StatusFailed
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		p.metrics.ObserveDocument(strings.ToLower(brokerageID), status, p.now().Sub(start))
		span.End()
	}()

	cfg, err := p.registry.Get(brokerageID)
	if err != nil {
		return nil, err
	}

	logger := p.logger.With(slog.String("brokerage", cfg.ID), slog.String("document", documentID))
	logger.Info("start pdf")

	path := p.documents.Path(cfg.ID, documentID+".pdf")

	header, err := p.extract(ctx, path, cfg, SectionHeader, cfg.Header)
	if err != nil {
		return nil, p.fail(documentID, err)
	}
	main, err := p.extract(ctx, path, cfg, SectionMain, cfg.Main)
	if err != nil {
		return nil, p.fail(documentID, err)
	}
	small, err := p.extract(ctx, path, cfg, SectionSmall, cfg.Small)
	if err != nil {
		return nil, p.fail(documentID, err)
	}

	now := p.now()
	main, err = table.Broadcast(header, main, now)
	if err != nil {
		return nil, p.fail(documentID, fmt.Errorf("broadcast header into main: %w", err))
	}
	small, err = table.Broadcast(header, small, now)
	if err != nil {
		return nil, p.fail(documentID, fmt.Errorf("broadcast header into small: %w", err))
	}

	main = table.SanitizeColumns(main)
	if cfg.SmallSanitize {
		small = table.SanitizeColumns(small)
	}

	p.metrics.AddRows(cfg.ID, SectionMain, main.Len())
	p.metrics.AddRows(cfg.ID, SectionSmall, small.Len())

	out = &Output{DocumentID: documentID, Main: main, Small: small}

	logger.Info("saving csv")
	files, err := p.saveFiles(ctx, documentID, main, small)
	if err != nil {
		return nil, p.fail(documentID, err)
	}
	out.Files = files

	logger.Info("sending to db")
	out.DB = p.sendToDB(ctx, logger, cfg, main, small)
	if p.opts.FailOnDBError {
		for _, res := range out.DB {
			if res.Err != nil {
				return out, p.fail(documentID, res.Err)
			}
		}
	}

	logger.Info("finished pdf",
		slog.Int("main_rows", main.Len()),
		slog.Int("small_rows", small.Len()),
		slog.Duration("duration", p.now().Sub(start)),
	)
	return out, nil
}

func (p *Pipeline) extract(ctx context.Context, path string, cfg rules.BrokerageConfig, section string, region rules.RegionSpec) (*table.Table, error) {
	ctx, span := p.tracer.Start(ctx, "notes.Extract", trace.WithAttributes(attribute.String("section", section)))
	defer span.End()

	t, err := p.extractor.Extract(ctx, path, cfg, region)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("extract %s: %w", section, err)
	}
	span.SetAttributes(attribute.Int("rows", t.Len()), attribute.Int("columns", t.Width()))
	return t, nil
}

func (p *Pipeline) saveFiles(ctx context.Context, documentID string, main, small *table.Table) ([]string, error) {
	ctx, span := p.tracer.Start(ctx, "notes.SaveFiles")
	defer span.End()

	mainPath, err := p.csv.Write(ctx, documentID, main)
	if err != nil {
		return nil, fmt.Errorf("save csv: %w", err)
	}
	smallPath, err := p.csv.Write(ctx, documentID+"_small", small)
	if err != nil {
		return nil, fmt.Errorf("save small csv: %w", err)
	}
	files := []string{mainPath, smallPath}

	if p.xlsx != nil {
		xlsxPath, err := p.xlsx.Write(ctx, documentID,
			sink.Sheet{Name: SectionMain, Table: main},
			sink.Sheet{Name: SectionSmall, Table: small},
		)
		if err != nil {
			return nil, fmt.Errorf("save xlsx: %w", err)
		}
		files = append(files, xlsxPath)
	}
	return files, nil
}

func (p *Pipeline) sendToDB(ctx context.Context, logger *slog.Logger, cfg rules.BrokerageConfig, main, small *table.Table) []sink.Result {
	ctx, span := p.tracer.Start(ctx, "notes.SendToDB")
	defer span.End()

	mainName, smallName := TableNames(cfg)
	results := []sink.Result{
		p.db.Append(ctx, mainName, main),
		p.db.Append(ctx, smallName, small),
	}

	for _, res := range results {
		switch {
		case res.Err != nil:
			p.metrics.IncDBFailure(res.Table)
			span.RecordError(res.Err)
			logger.Error("failed to save into table", slog.String("table", res.Table), slog.Any("error", res.Err))
		case res.Skipped:
			logger.Debug("database disabled, skipping table", slog.String("table", res.Table))
		default:
			logger.Info("success to save into table", slog.String("table", res.Table), slog.Int("rows", res.Rows))
		}
	}
	return results
}

func (p *Pipeline) fail(documentID string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrDocumentFailed, documentID, err)
}
