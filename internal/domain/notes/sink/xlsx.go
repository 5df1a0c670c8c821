package sink

import (
	"context"
	"errors"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/FACorreiaa/notas-etl/internal/domain/notes/table"
)

// Sheet is one named worksheet of a workbook.
type Sheet struct {
	Name  string
	Table *table.Table
}

// XLSXWriter writes tables as worksheets of a single workbook.
type XLSXWriter struct {
	files FileCreator
}

// NewXLSXWriter creates an XLSXWriter.
func NewXLSXWriter(files FileCreator) *XLSXWriter {
	return &XLSXWriter{files: files}
}

// Write stores the sheets as {name}.xlsx and returns its path.
func (w *XLSXWriter) Write(ctx context.Context, name string, sheets ...Sheet) (string, error) {
	if len(sheets) == 0 {
		return "", fmt.Errorf("no sheets to write")
	}

	f := excelize.NewFile()
	defer f.Close()

	for i, s := range sheets {
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), s.Name); err != nil {
				return "", fmt.Errorf("failed to name sheet %s: %w", s.Name, err)
			}
		} else if _, err := f.NewSheet(s.Name); err != nil {
			return "", fmt.Errorf("failed to add sheet %s: %w", s.Name, err)
		}

		if err := writeSheet(f, s); err != nil {
			return "", err
		}
	}

	file := name + ".xlsx"
	out, path, err := w.files.Create(ctx, file)
	if err != nil {
		return "", err
	}
	defer out.Close()

	if _, err := f.WriteTo(out); err != nil {
		return "", w.discard(ctx, file, fmt.Errorf("failed to write workbook: %w", err))
	}
	if err := out.Close(); err != nil {
		return "", w.discard(ctx, file, fmt.Errorf("failed to close workbook: %w", err))
	}
	return path, nil
}

// discard removes a partially written workbook.
func (w *XLSXWriter) discard(ctx context.Context, file string, cause error) error {
	if err := w.files.Remove(ctx, file); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}

func writeSheet(f *excelize.File, s Sheet) error {
	sw, err := f.NewStreamWriter(s.Name)
	if err != nil {
		return fmt.Errorf("failed to open sheet %s: %w", s.Name, err)
	}

	write := func(rowIdx int, cells []string) error {
		values := make([]interface{}, len(cells))
		for i, c := range cells {
			values[i] = c
		}
		cell, err := excelize.CoordinatesToCellName(1, rowIdx)
		if err != nil {
			return err
		}
		return sw.SetRow(cell, values)
	}

	if err := write(1, s.Table.Columns); err != nil {
		return fmt.Errorf("failed to write sheet %s header: %w", s.Name, err)
	}
	for i, row := range s.Table.Rows {
		if err := write(i+2, row); err != nil {
			return fmt.Errorf("failed to write sheet %s row %d: %w", s.Name, i+1, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return fmt.Errorf("failed to flush sheet %s: %w", s.Name, err)
	}
	return nil
}
