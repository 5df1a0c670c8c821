package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/FACorreiaa/notas-etl/internal/domain/notes/extractor"
	"github.com/FACorreiaa/notas-etl/internal/domain/notes/repository"
	"github.com/FACorreiaa/notas-etl/internal/domain/notes/rules"
	"github.com/FACorreiaa/notas-etl/internal/domain/notes/service"
	"github.com/FACorreiaa/notas-etl/internal/domain/notes/sink"
	"github.com/FACorreiaa/notas-etl/pkg/config"
	"github.com/FACorreiaa/notas-etl/pkg/db"
	"github.com/FACorreiaa/notas-etl/pkg/metrics"
	"github.com/FACorreiaa/notas-etl/pkg/storage"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config *config.Config
	Logger *slog.Logger

	// Databases, at most one of them is open
	Pool   *pgxpool.Pool
	SQLite *sql.DB

	// Storage
	Documents storage.Storage
	CSVFiles  storage.Storage
	XLSXFiles storage.Storage

	// Domain
	Registry *rules.Registry
	Appender sink.Appender
	RunsRepo repository.RunRepository
	Metrics  *metrics.Metrics
	Pipeline *service.Pipeline
}

// InitDependencies initializes all application dependencies
func InitDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initRegistry(); err != nil {
		return nil, fmt.Errorf("failed to init registry: %w", err)
	}

	if err := deps.initStorage(); err != nil {
		return nil, fmt.Errorf("failed to init storage: %w", err)
	}

	if err := deps.initDatabase(ctx); err != nil {
		deps.Cleanup()
		return nil, fmt.Errorf("failed to init database: %w", err)
	}

	deps.initServices()

	logger.Info("all dependencies initialized successfully")

	return deps, nil
}

// InitRegistry loads only the brokerage registry, for commands that touch nothing else
func InitRegistry(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{Config: cfg, Logger: logger}
	if err := deps.initRegistry(); err != nil {
		return nil, fmt.Errorf("failed to init registry: %w", err)
	}
	return deps, nil
}

func (d *Dependencies) initRegistry() error {
	reg, err := rules.LoadFile(d.Config.ETL.RulesFile)
	if err != nil {
		return err
	}
	d.Registry = reg

	d.Logger.Info("brokerage rules loaded",
		slog.String("file", d.Config.ETL.RulesFile),
		slog.Int("brokerages", len(reg.IDs())),
	)
	return nil
}

func (d *Dependencies) initStorage() error {
	var err error
	if d.Documents, err = storage.NewLocalStorage(d.Config.ETL.PDFDir); err != nil {
		return err
	}
	if d.CSVFiles, err = storage.NewLocalStorage(d.Config.ETL.CSVDir); err != nil {
		return err
	}
	if d.Config.ETL.XLSXDir != "" {
		if d.XLSXFiles, err = storage.NewLocalStorage(d.Config.ETL.XLSXDir); err != nil {
			return err
		}
	}
	return nil
}

// initDatabase opens the configured database and runs migrations
func (d *Dependencies) initDatabase(ctx context.Context) error {
	switch d.Config.Database.Driver {
	case config.DriverPostgres:
		pool, err := db.NewPostgresPool(ctx, d.Config.Database.DSN())
		if err != nil {
			return err
		}
		d.Pool = pool

		if err := db.MigratePostgres(ctx, pool, d.Logger); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		d.Appender = sink.NewPostgresAppender(pool, d.Logger)
		d.RunsRepo = repository.NewPostgresRunRepository(pool)

	case config.DriverSQLite:
		sqlite, err := db.OpenSQLite(ctx, d.Config.Database.SQLitePath)
		if err != nil {
			return err
		}
		d.SQLite = sqlite

		if err := db.MigrateSQLite(ctx, sqlite, d.Logger); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		d.Appender = sink.NewSQLiteAppender(sqlite, d.Logger)
		d.RunsRepo = repository.NewSQLiteRunRepository(sqlite)

	default:
		d.Appender = sink.Discard{}
		d.RunsRepo = repository.NopRunRepository{}
		d.Logger.Info("database disabled")
		return nil
	}

	d.Logger.Info("database connected and migrations completed successfully",
		slog.String("driver", d.Config.Database.Driver),
	)
	return nil
}

func (d *Dependencies) initServices() {
	d.Metrics = metrics.New()

	deps := service.Deps{
		Registry:  d.Registry,
		Documents: d.Documents,
		Extractor: extractor.New(extractor.NewTabulaEngine(d.Logger), d.Logger),
		CSV:       sink.NewCSVWriter(d.CSVFiles),
		Reports:   d.CSVFiles,
		DB:        d.Appender,
		Runs:      d.RunsRepo,
		Metrics:   d.Metrics,
		Logger:    d.Logger,
	}
	if d.XLSXFiles != nil {
		deps.XLSX = sink.NewXLSXWriter(d.XLSXFiles)
	}

	d.Pipeline = service.New(deps, service.Options{
		ContinueOnError: d.Config.ETL.ContinueOnError,
		FailOnDBError:   d.Config.ETL.FailOnDBError,
		Workers:         d.Config.ETL.Workers,
		Report:          d.Config.ETL.Report,
	})
}

// FlushMetrics writes the metrics textfile when enabled
func (d *Dependencies) FlushMetrics() {
	if d.Metrics == nil || !d.Config.Observability.MetricsEnabled {
		return
	}
	if err := d.Metrics.WriteTextfile(d.Config.Observability.MetricsTextfile); err != nil {
		d.Logger.Error("failed to write metrics", slog.Any("error", err))
	}
}

// Cleanup closes all resources
func (d *Dependencies) Cleanup() {
	if d.Pool != nil {
		d.Pool.Close()
	}
	if d.SQLite != nil {
		d.SQLite.Close()
	}
	d.Logger.Debug("cleanup completed")
}
