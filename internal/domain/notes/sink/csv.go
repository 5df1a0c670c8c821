package sink

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/gocarina/gocsv"

	"github.com/FACorreiaa/notas-etl/internal/domain/notes/table"
)

// Separator is the field delimiter of every CSV this package writes.
const Separator = ';'

// CSVWriter writes tables as semicolon-separated files with a header row and no index column.
type CSVWriter struct {
	files FileCreator
}

// NewCSVWriter creates a CSVWriter.
func NewCSVWriter(files FileCreator) *CSVWriter {
	return &CSVWriter{files: files}
}

// Write stores t as {name}.csv, overwriting any previous file, and returns its path.
// A file that fails midway is removed.
func (w *CSVWriter) Write(ctx context.Context, name string, t *table.Table) (string, error) {
	file := name + ".csv"
	path, err := w.write(ctx, file, t)
	if err != nil {
		if rmErr := w.files.Remove(ctx, file); rmErr != nil {
			return "", errors.Join(err, rmErr)
		}
		return "", err
	}
	return path, nil
}

func (w *CSVWriter) write(ctx context.Context, file string, t *table.Table) (string, error) {
	f, path, err := w.files.Create(ctx, file)
	if err != nil {
		return "", err
	}
	defer f.Close()

	out := NewSafeWriter(f)
	if err := out.Write(t.Columns); err != nil {
		return "", fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, row := range t.Rows {
		if err := out.Write(row); err != nil {
			return "", fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	out.Flush()
	if err := out.Error(); err != nil {
		return "", fmt.Errorf("failed to flush csv: %w", err)
	}

	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close csv: %w", err)
	}
	return path, nil
}

// NewSafeWriter wraps w in a semicolon-separated gocsv writer.
func NewSafeWriter(w io.Writer) *gocsv.SafeCSVWriter {
	cw := csv.NewWriter(w)
	cw.Comma = Separator
	return gocsv.NewSafeCSVWriter(cw)
}
