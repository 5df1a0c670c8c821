package extractor

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/tsawler/tabula/core"
	"github.com/tsawler/tabula/graphicsstate"
	"github.com/tsawler/tabula/pages"
	"github.com/tsawler/tabula/reader"
	"github.com/tsawler/tabula/tables"
	"github.com/tsawler/tabula/text"

	"github.com/FACorreiaa/notas-etl/internal/domain/notes/rules"
	"github.com/FACorreiaa/notas-etl/internal/domain/notes/table"
)

// TabulaEngine reads tables from PDF geometry using tabula for text positions
// and ruling lines.
type TabulaEngine struct {
	logger *slog.Logger
}

// NewTabulaEngine creates a PDF engine.
func NewTabulaEngine(logger *slog.Logger) *TabulaEngine {
	return &TabulaEngine{logger: logger}
}

// ReadTables implements Engine.
func (e *TabulaEngine) ReadTables(ctx context.Context, req Request) ([]*table.Table, error) {
	path, cleanup, err := plainPDF(req.Path, req.Password)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	r, err := reader.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}
	defer r.Close()

	count, err := r.PageCount()
	if err != nil {
		return nil, fmt.Errorf("failed to count pages: %w", err)
	}
	selected, err := req.Pages.Resolve(count)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPages, err)
	}

	var out []*table.Table
	for _, n := range selected {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err := r.GetPage(n - 1)
		if err != nil {
			return nil, fmt.Errorf("failed to load page %d: %w", n, err)
		}
		frags, err := r.ExtractTextFragments(page)
		if err != nil {
			return nil, fmt.Errorf("failed to extract text from page %d: %w", n, err)
		}

		var grids [][][]string
		switch req.Flavor {
		case rules.FlavorLattice:
			grids, err = e.lattice(page, frags, req)
		default:
			grids, err = e.stream(page, frags, req)
		}
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", n, err)
		}

		for _, g := range grids {
			out = append(out, table.NewRaw(g))
		}
		e.logger.Debug("page read",
			slog.String("path", req.Path),
			slog.Int("page", n),
			slog.Int("fragments", len(frags)),
			slog.Int("tables", len(grids)))
	}

	return out, nil
}

func (e *TabulaEngine) stream(page *pages.Page, frags []text.TextFragment, req Request) ([][][]string, error) {
	areas := req.Areas
	if len(areas) == 0 {
		full, err := pageArea(page)
		if err != nil {
			return nil, err
		}
		areas = []rules.Area{full}
	}

	var out [][][]string
	for i, a := range areas {
		var cols []float64
		if i < len(req.Columns) {
			cols = req.Columns[i]
		}
		if cells := streamCells(frags, a, cols, req.StripText); cells != nil {
			out = append(out, cells)
		}
	}
	return out, nil
}

func (e *TabulaEngine) lattice(page *pages.Page, frags []text.TextFragment, req Request) ([][][]string, error) {
	data, err := contentBytes(page)
	if err != nil {
		return nil, err
	}

	ge := graphicsstate.NewGraphicsExtractor()
	if err := ge.ExtractFromBytes(data); err != nil {
		return nil, fmt.Errorf("failed to read ruling lines: %w", err)
	}
	lines := ge.GetGridLines()
	detector := tables.NewGridDetector()

	var grids []*tables.GridHypothesis
	if len(req.Areas) == 0 {
		grids = detector.DetectFromLines(lines.Horizontals, lines.Verticals)
		sort.SliceStable(grids, func(i, j int) bool { return grids[i].BBox.Top() > grids[j].BBox.Top() })
	} else {
		for _, a := range req.Areas {
			grids = append(grids, detector.DetectFromLines(
				linesIn(lines.Horizontals, a),
				linesIn(lines.Verticals, a),
			)...)
		}
	}

	var out [][][]string
	for _, g := range grids {
		if cells := latticeCells(frags, g.HorizontalLines, g.VerticalLines, req.StripText); cells != nil {
			out = append(out, cells)
		}
	}
	return out, nil
}

func linesIn(lines []graphicsstate.ExtractedLine, a rules.Area) []graphicsstate.ExtractedLine {
	var out []graphicsstate.ExtractedLine
	for _, l := range lines {
		if a.Intersects(l.BBox.Left(), l.BBox.Bottom(), l.BBox.Right(), l.BBox.Top()) {
			out = append(out, l)
		}
	}
	return out
}

func pageArea(page *pages.Page) (rules.Area, error) {
	box, err := page.MediaBox()
	if err != nil {
		return rules.Area{}, fmt.Errorf("failed to read media box: %w", err)
	}
	if len(box) != 4 {
		return rules.Area{}, fmt.Errorf("malformed media box %v", box)
	}
	return rules.Area{X1: box[0], Y1: box[3], X2: box[2], Y2: box[1]}, nil
}

func contentBytes(page *pages.Page) ([]byte, error) {
	contents, err := page.Contents()
	if err != nil {
		return nil, fmt.Errorf("failed to get contents: %w", err)
	}

	var data []byte
	for _, obj := range contents {
		stream, ok := obj.(*core.Stream)
		if !ok {
			continue
		}
		b, err := stream.Decode()
		if err != nil {
			return nil, fmt.Errorf("failed to decode content stream: %w", err)
		}
		data = append(data, b...)
		data = append(data, '\n')
	}
	return data, nil
}
