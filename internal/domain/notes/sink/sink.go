// Package sink persists enriched tables to files and databases.
package sink

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/FACorreiaa/notas-etl/internal/domain/notes/table"
)

// Result reports the outcome of one database append.
type Result struct {
	Table   string
	Rows    int
	Skipped bool
	Err     error
}

// OK reports whether the append succeeded or was skipped.
func (r Result) OK() bool {
	return r.Err == nil
}

// Appender appends a table to a named database table, creating it when absent.
// Failures are reported in the Result, never panicked.
type Appender interface {
	Append(ctx context.Context, name string, t *table.Table) Result
}

// FileCreator opens output files by name and removes the ones left half written.
type FileCreator interface {
	Create(ctx context.Context, name string) (io.WriteCloser, string, error)
	Remove(ctx context.Context, name string) error
}

// Discard is the Appender used when no database is configured.
type Discard struct{}

// Append implements Appender.
func (Discard) Append(_ context.Context, name string, _ *table.Table) Result {
	return Result{Table: name, Skipped: true}
}

// dbShape maps a table onto database columns. Empty labels become column_{i};
// when labels repeat the last column with that label supplies the values.
func dbShape(t *table.Table) ([]string, [][]any) {
	labels := make([]string, len(t.Columns))
	last := make(map[string]int, len(t.Columns))
	var order []string
	for i, c := range t.Columns {
		if c == "" {
			c = fmt.Sprintf("column_%d", i)
		}
		labels[i] = c
		if _, seen := last[c]; !seen {
			order = append(order, c)
		}
		last[c] = i
	}

	rows := make([][]any, len(t.Rows))
	for r, src := range t.Rows {
		row := make([]any, len(order))
		for i, c := range order {
			row[i] = src[last[c]]
		}
		rows[r] = row
	}
	return order, rows
}

// tableLocks serialises appends to the same table.
type tableLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (l *tableLocks) lock(name string) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*sync.Mutex)
	}
	m, ok := l.locks[name]
	if !ok {
		m = &sync.Mutex{}
		l.locks[name] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
