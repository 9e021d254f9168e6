// Package audit exports the operational tables to a monthly Excel workbook
// and trims old audit_log rows past the retention window.
package audit

import (
	"context"
	"fmt"
	"io"
	"time"
)

// TableExporter provides access to database tables for export.
type TableExporter interface {
	// GetTableNames returns list of table names to export.
	GetTableNames(ctx context.Context) ([]string, error)

	// GetTableData returns rows for a table as maps.
	GetTableData(ctx context.Context, tableName string) ([]map[string]interface{}, []string, error)
}

// SheetWriter writes tabular data to a spreadsheet format.
type SheetWriter interface {
	// AddSheet adds a new sheet with the given name.
	AddSheet(name string) error

	// WriteHeader writes column headers to the current sheet.
	WriteHeader(columns []string) error

	// WriteRow writes a data row to the current sheet.
	WriteRow(row []interface{}) error

	// Save writes the workbook to the writer.
	Save(w io.Writer) error
}

// Sink receives the finished workbook.
type Sink interface {
	// StoreDocument persists or delivers one export file.
	StoreDocument(ctx context.Context, filename string, data io.Reader) error
}

// Cleaner trims data past the retention window.
type Cleaner interface {
	// DeleteOldAuditEntries deletes audit rows older than duration,
	// returning how many were removed.
	DeleteOldAuditEntries(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Filename labels an export with the month it covers, e.g. "audit_2026-07.xlsx".
func Filename(t time.Time) string {
	return fmt.Sprintf("audit_%04d-%02d.xlsx", t.Year(), int(t.Month()))
}

// FilenameForPreviousMonth labels the export produced on the 1st, which
// covers the month that just ended.
func FilenameForPreviousMonth(now time.Time) string {
	return Filename(now.AddDate(0, -1, 0))
}
