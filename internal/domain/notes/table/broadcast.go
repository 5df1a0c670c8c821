package table

import (
	"errors"
	"time"
)

// InsertionDateColumn is appended to every enriched table.
const InsertionDateColumn = "insertion_date"

// InsertionDateLayout is how the insertion date is rendered in cells.
const InsertionDateLayout = "2006-01-02"

// ErrEmptyHeader is returned when the header table has no row to broadcast.
var ErrEmptyHeader = errors.New("header table has no rows")

// Broadcast appends the first row of header to every row of content, joined
// by position, and stamps each row with the calendar date of now.
func Broadcast(header, content *Table, now time.Time) (*Table, error) {
	if header.Len() == 0 {
		return nil, ErrEmptyHeader
	}

	facts := header.Rows[0]
	stamp := Midnight(now).Format(InsertionDateLayout)

	cols := make([]string, 0, content.Width()+header.Width()+1)
	cols = append(cols, content.Columns...)
	cols = append(cols, header.Columns...)
	cols = append(cols, InsertionDateColumn)

	rows := make([][]string, content.Len())
	for i, r := range content.Rows {
		row := make([]string, 0, len(cols))
		row = append(row, r...)
		row = append(row, facts...)
		row = append(row, stamp)
		rows[i] = row
	}

	return &Table{Columns: cols, Rows: rows}, nil
}

// Midnight truncates t to the start of its day in its own location.
func Midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
