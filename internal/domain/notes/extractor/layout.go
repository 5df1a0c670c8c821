package extractor

import (
	"sort"
	"strings"

	"github.com/tsawler/tabula/text"

	"github.com/FACorreiaa/notas-etl/internal/domain/notes/rules"
)

const (
	// rowTolerance is the maximum baseline distance, in points, between fragments on the same row.
	rowTolerance = 2.0

	// spaceFactor scales the font size into the gap that separates two words in a cell.
	spaceFactor = 0.15

	// columnGapFactor scales the median font size into the minimum gap that separates inferred columns.
	columnGapFactor = 0.8
	minColumnGap    = 2.0
)

func centre(f text.TextFragment) (float64, float64) {
	return f.X + f.Width/2, f.Y + f.Height/2
}

func fragmentsIn(frags []text.TextFragment, area rules.Area) []text.TextFragment {
	var out []text.TextFragment
	for _, f := range frags {
		if strings.TrimSpace(f.Text) == "" {
			continue
		}
		x, y := centre(f)
		if area.Contains(x, y) {
			out = append(out, f)
		}
	}
	return out
}

// groupRows clusters fragments by baseline, top row first, each row sorted left to right.
func groupRows(frags []text.TextFragment) [][]text.TextFragment {
	sorted := append([]text.TextFragment(nil), frags...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Y != sorted[j].Y {
			return sorted[i].Y > sorted[j].Y
		}
		return sorted[i].X < sorted[j].X
	})

	var rows [][]text.TextFragment
	var baseline float64
	for _, f := range sorted {
		if len(rows) == 0 || baseline-f.Y > rowTolerance {
			rows = append(rows, nil)
			baseline = f.Y
		}
		rows[len(rows)-1] = append(rows[len(rows)-1], f)
	}

	for _, r := range rows {
		sort.SliceStable(r, func(i, j int) bool { return r[i].X < r[j].X })
	}
	return rows
}

// columnIndex maps x into the cell [bounds[i], bounds[i+1]).
// The last cell is closed on the right.
func columnIndex(bounds []float64, x float64) int {
	i := sort.SearchFloat64s(bounds, x)
	if i < len(bounds) && bounds[i] == x {
		i++
	}
	i--
	if i < 0 {
		return 0
	}
	if i > len(bounds)-2 {
		return len(bounds) - 2
	}
	return i
}

// streamCells lays out the fragments inside area as a grid, cutting columns at
// cols or at inferred whitespace gaps. Returns nil when the area has no text.
func streamCells(frags []text.TextFragment, area rules.Area, cols []float64, strip string) [][]string {
	inside := fragmentsIn(frags, area)
	if len(inside) == 0 {
		return nil
	}
	if len(cols) == 0 {
		cols = inferColumns(inside)
	}

	bounds := make([]float64, 0, len(cols)+2)
	bounds = append(bounds, area.X1)
	bounds = append(bounds, cols...)
	bounds = append(bounds, area.X2)

	rows := groupRows(inside)
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		cells := make([][]text.TextFragment, len(bounds)-1)
		for _, f := range r {
			x, _ := centre(f)
			i := columnIndex(bounds, x)
			cells[i] = append(cells[i], f)
		}

		row := make([]string, len(cells))
		for i, c := range cells {
			row[i] = cellText(c, strip)
		}
		out = append(out, row)
	}
	return out
}

// inferColumns returns separators at the midpoint of every vertical whitespace
// band that no fragment crosses.
func inferColumns(frags []text.TextFragment) []float64 {
	type span struct{ lo, hi float64 }

	spans := make([]span, 0, len(frags))
	sizes := make([]float64, 0, len(frags))
	for _, f := range frags {
		spans = append(spans, span{f.X, f.X + f.Width})
		sizes = append(sizes, f.FontSize)
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].lo < spans[j].lo })
	sort.Float64s(sizes)

	gap := sizes[len(sizes)/2] * columnGapFactor
	if gap < minColumnGap {
		gap = minColumnGap
	}

	var cols []float64
	hi := spans[0].hi
	for _, s := range spans[1:] {
		if s.lo-hi >= gap {
			cols = append(cols, (hi+s.lo)/2)
		}
		if s.hi > hi {
			hi = s.hi
		}
	}
	return cols
}

// latticeCells assigns fragments to the cells of a ruled grid. horizontals run
// top to bottom, verticals left to right.
func latticeCells(frags []text.TextFragment, horizontals, verticals []float64, strip string) [][]string {
	nRows, nCols := len(horizontals)-1, len(verticals)-1
	if nRows < 1 || nCols < 1 {
		return nil
	}

	cells := make([][][]text.TextFragment, nRows)
	for i := range cells {
		cells[i] = make([][]text.TextFragment, nCols)
	}

	for _, f := range frags {
		if strings.TrimSpace(f.Text) == "" {
			continue
		}
		x, y := centre(f)
		if x < verticals[0] || x > verticals[nCols] || y > horizontals[0] || y < horizontals[nRows] {
			continue
		}

		r := 0
		for r < nRows-1 && y < horizontals[r+1] {
			r++
		}
		c := columnIndex(verticals, x)
		cells[r][c] = append(cells[r][c], f)
	}

	out := make([][]string, nRows)
	for i, row := range cells {
		out[i] = make([]string, nCols)
		for j, c := range row {
			var lines []string
			for _, line := range groupRows(c) {
				lines = append(lines, cellText(line, ""))
			}
			out[i][j] = clean(strings.Join(lines, "\n"), strip)
		}
	}
	return out
}

// cellText joins one row's fragments of a cell, inserting a space where the
// horizontal gap looks like a word break.
func cellText(frags []text.TextFragment, strip string) string {
	var b strings.Builder
	for i, f := range frags {
		if i > 0 {
			prev := frags[i-1]
			gap := f.X - (prev.X + prev.Width)
			if gap > prev.FontSize*spaceFactor && !strings.HasSuffix(prev.Text, " ") && !strings.HasPrefix(f.Text, " ") {
				b.WriteByte(' ')
			}
		}
		b.WriteString(f.Text)
	}
	return clean(b.String(), strip)
}

func clean(s, strip string) string {
	if strip != "" {
		s = strings.Map(func(r rune) rune {
			if strings.ContainsRune(strip, r) {
				return -1
			}
			return r
		}, s)
	}
	return strings.TrimSpace(s)
}
