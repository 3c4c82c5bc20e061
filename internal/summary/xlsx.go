// Package summary persists per-page field records as tables and run reports.
package summary

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/a3tai/pdf-field-extractor/internal/extract"
)

const (
	// SummaryFileName is the workbook name written next to the combined PDF.
	SummaryFileName = "summary.xlsx"
	// SheetName is the worksheet holding one row per matched page.
	SheetName = "Summary"
	// PageColumn is the first column header; values are 1-based.
	PageColumn = "Page"
)

// XLSXWriter writes record tables as Excel workbooks.
type XLSXWriter struct {
	logger *slog.Logger
}

// NewXLSXWriter returns an XLSXWriter.
func NewXLSXWriter(logger *slog.Logger) *XLSXWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &XLSXWriter{logger: logger}
}

// Headers returns the table header row for fields.
func Headers(fields []string) []string {
	return append([]string{PageColumn}, fields...)
}

// Build returns a workbook with a header row followed by one row per record.
func (w *XLSXWriter) Build(fields []string, records []extract.FieldRecord) (*excelize.File, error) {
	f := excelize.NewFile()
	if index, _ := f.GetSheetIndex(SheetName); index == -1 {
		if _, err := f.NewSheet(SheetName); err != nil {
			return nil, err
		}
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}
	activeIndex, _ := f.GetSheetIndex(SheetName)
	f.SetActiveSheet(activeIndex)

	for i, h := range Headers(fields) {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(SheetName, cell, h); err != nil {
			return nil, err
		}
	}

	for r, rec := range records {
		row := r + 2
		write := func(col int, v any) error {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			return f.SetCellValue(SheetName, cell, v)
		}
		if err := write(1, rec.Page+1); err != nil {
			return nil, err
		}
		for i, field := range fields {
			if err := write(i+2, rec.Get(field)); err != nil {
				return nil, err
			}
		}
	}

	_ = f.SetColWidth(SheetName, "A", "A", 8)
	if len(fields) > 0 {
		last, _ := excelize.ColumnNumberToName(len(fields) + 1)
		_ = f.SetColWidth(SheetName, "B", last, 24)
	}
	return f, nil
}

// Write saves the workbook for records at path.
func (w *XLSXWriter) Write(path string, fields []string, records []extract.FieldRecord) error {
	start := time.Now()

	f, err := w.Build(fields, records)
	if err != nil {
		return fmt.Errorf("xlsx build: %w", err)
	}
	defer f.Close()

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("xlsx create directory: %w", err)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}

	w.logger.Info("summary.xlsx.ok",
		"path", path,
		"rows", len(records),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}
