// Package extractor turns the configured regions of a brokerage note into tables.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/FACorreiaa/notas-etl/internal/domain/notes/rules"
	"github.com/FACorreiaa/notas-etl/internal/domain/notes/table"
)

var (
	// ErrNoTables is returned when a region yields no table on any selected page.
	ErrNoTables = errors.New("no tables found in region")

	// ErrInvalidPages is returned when the page selector does not fit the document.
	ErrInvalidPages = errors.New("invalid page selection")
)

// Request describes one region read against one document.
type Request struct {
	Path      string
	Flavor    rules.Flavor
	Pages     rules.PageSelector
	Password  string
	StripText string
	Areas     []rules.Area
	Columns   [][]float64
}

// Engine reads raw tables from a PDF. Tables come back page-major, area-minor,
// each with positional column labels.
type Engine interface {
	ReadTables(ctx context.Context, req Request) ([]*table.Table, error)
}

// Extractor applies header fixing and page concatenation on top of an Engine.
type Extractor struct {
	engine Engine
	logger *slog.Logger
}

// New creates an Extractor.
func New(engine Engine, logger *slog.Logger) *Extractor {
	return &Extractor{
		engine: engine,
		logger: logger,
	}
}

// Extract reads one region of the document at path and returns a single table.
func (e *Extractor) Extract(ctx context.Context, path string, cfg rules.BrokerageConfig, region rules.RegionSpec) (*table.Table, error) {
	raw, err := e.engine.ReadTables(ctx, Request{
		Path:      path,
		Flavor:    cfg.Flavor,
		Pages:     cfg.Pages,
		Password:  cfg.Password,
		StripText: cfg.StripText,
		Areas:     region.Areas,
		Columns:   region.Columns,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read tables: %w", err)
	}
	if len(raw) == 0 {
		return nil, ErrNoTables
	}

	parts := raw
	if region.FixHeader {
		parts = make([]*table.Table, 0, len(raw))
		for i, t := range raw {
			fixed, err := table.FixHeader(t)
			if err != nil {
				return nil, fmt.Errorf("failed to fix header of table %d: %w", i, err)
			}
			parts = append(parts, fixed)
		}
	}

	out, err := table.Concat(parts)
	if err != nil {
		return nil, fmt.Errorf("failed to concatenate %d tables: %w", len(parts), err)
	}

	e.logger.Debug("region extracted",
		slog.String("path", path),
		slog.Int("tables", len(raw)),
		slog.Int("rows", out.Len()),
		slog.Int("columns", out.Width()))

	return out, nil
}
