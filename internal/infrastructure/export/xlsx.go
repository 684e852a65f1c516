// Package export renders document reports as spreadsheets.
package export

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/document-classifier/internal/core/domain"
)

const (
	documentsSheet   = "Documents"
	unclassifiedCell = "unclassified"
)

var documentHeaders = []string{
	"Filename",
	"Classification",
	"Storage Key",
	"Version",
	"Uploaded At",
	"Updated At",
}

// XLSXRenderer writes one row per document under a header row.
type XLSXRenderer struct {
	logger *slog.Logger
}

func NewXLSXRenderer(logger *slog.Logger) *XLSXRenderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &XLSXRenderer{logger: logger}
}

func (r *XLSXRenderer) RenderDocuments(customerID int64, records []domain.DocumentRecord) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	// rename the default sheet so the workbook has exactly one
	if err := f.SetSheetName(f.GetSheetName(0), documentsSheet); err != nil {
		return nil, fmt.Errorf("name sheet: %w", err)
	}

	for i, h := range documentHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(documentsSheet, cell, h); err != nil {
			return nil, fmt.Errorf("write header: %w", err)
		}
	}

	for i, rec := range records {
		row := i + 2
		label := rec.Label()
		if label == "" {
			label = unclassifiedCell
		}
		values := []any{
			rec.Filename,
			label,
			rec.StorageKey,
			rec.Version,
			formatTime(rec.CreatedAt),
			formatTime(rec.UpdatedAt),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(documentsSheet, cell, v); err != nil {
				return nil, fmt.Errorf("write row %d: %w", row, err)
			}
		}
	}

	_ = f.SetColWidth(documentsSheet, "A", "A", 36)
	_ = f.SetColWidth(documentsSheet, "B", "B", 20)
	_ = f.SetColWidth(documentsSheet, "C", "C", 44)
	_ = f.SetColWidth(documentsSheet, "E", "F", 22)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	r.logger.Info("documents_exported",
		"customer_id", customerID,
		"rows", len(records),
		"bytes", buf.Len(),
		"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
	)
	return buf.Bytes(), nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
