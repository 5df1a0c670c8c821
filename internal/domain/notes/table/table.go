// Package table holds the text-only tabular model produced by PDF extraction
// and the transforms applied to it before persistence.
package table

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrEmptyTable is returned when a transform needs at least one row or column.
	ErrEmptyTable = errors.New("table has no rows or columns")

	// ErrColumnMismatch is returned when tables cannot be aligned.
	ErrColumnMismatch = errors.New("table columns cannot be aligned")
)

// Table is an ordered set of rows sharing one list of column labels.
// Every row has exactly len(Columns) cells.
type Table struct {
	Columns []string
	Rows    [][]string
}

// NewRaw builds a table straight from extracted cells. The labels are
// positional ("0", "1", ...) because a raw region has no header yet.
// Short rows are padded with empty cells.
func NewRaw(rows [][]string) *Table {
	width := 0
	for _, r := range rows {
		if len(r) > width {
			width = len(r)
		}
	}

	cols := make([]string, width)
	for i := range cols {
		cols[i] = strconv.Itoa(i)
	}

	out := make([][]string, len(rows))
	for i, r := range rows {
		row := make([]string, width)
		copy(row, r)
		out[i] = row
	}

	return &Table{Columns: cols, Rows: out}
}

// New builds a table with explicit labels. Rows must match the label count.
func New(columns []string, rows [][]string) (*Table, error) {
	for i, r := range rows {
		if len(r) != len(columns) {
			return nil, fmt.Errorf("row %d has %d cells, want %d: %w", i, len(r), len(columns), ErrColumnMismatch)
		}
	}
	return &Table{Columns: columns, Rows: rows}, nil
}

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.Rows) }

// Width returns the number of columns.
func (t *Table) Width() int { return len(t.Columns) }

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	cols := append([]string(nil), t.Columns...)
	rows := make([][]string, len(t.Rows))
	for i, r := range t.Rows {
		rows[i] = append([]string(nil), r...)
	}
	return &Table{Columns: cols, Rows: rows}
}

// FixHeader promotes the first row to column labels, drops that row and
// then drops the first column, which the PDF engine emits as an artifact.
func FixHeader(t *Table) (*Table, error) {
	if t.Len() == 0 || t.Width() == 0 {
		return nil, ErrEmptyTable
	}

	cols := append([]string(nil), t.Rows[0][1:]...)
	rows := make([][]string, 0, t.Len()-1)
	for _, r := range t.Rows[1:] {
		rows = append(rows, append([]string(nil), r[1:]...))
	}

	return &Table{Columns: cols, Rows: rows}, nil
}

// Concat stacks tables row-wise in order. A single table is returned as-is.
// Tables with identical labels are appended directly; otherwise columns are
// aligned by label over the union of labels in first-seen order and missing
// cells are left empty.
func Concat(tables []*Table) (*Table, error) {
	switch len(tables) {
	case 0:
		return nil, ErrEmptyTable
	case 1:
		return tables[0], nil
	}

	if sameColumns(tables) {
		out := &Table{Columns: append([]string(nil), tables[0].Columns...)}
		for _, t := range tables {
			for _, r := range t.Rows {
				out.Rows = append(out.Rows, append([]string(nil), r...))
			}
		}
		return out, nil
	}

	var union []string
	pos := make(map[string]int)
	for i, t := range tables {
		seen := make(map[string]bool, t.Width())
		for _, c := range t.Columns {
			if seen[c] {
				return nil, fmt.Errorf("table %d repeats label %q: %w", i, c, ErrColumnMismatch)
			}
			seen[c] = true
			if _, ok := pos[c]; !ok {
				pos[c] = len(union)
				union = append(union, c)
			}
		}
	}

	out := &Table{Columns: union}
	for _, t := range tables {
		for _, r := range t.Rows {
			row := make([]string, len(union))
			for j, c := range t.Columns {
				row[pos[c]] = r[j]
			}
			out.Rows = append(out.Rows, row)
		}
	}
	return out, nil
}

func sameColumns(tables []*Table) bool {
	first := tables[0].Columns
	for _, t := range tables[1:] {
		if len(t.Columns) != len(first) {
			return false
		}
		for i := range first {
			if t.Columns[i] != first[i] {
				return false
			}
		}
	}
	return true
}
