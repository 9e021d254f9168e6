package audit

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
)

const (
	maxSheetNameLen = 31
	minColumnWidth  = 10.0
	maxColumnWidth  = 48.0
)

// cellTimeLayout renders timestamps the way the rest of the export reads
// them, second precision, no zone suffix.
const cellTimeLayout = "2006-01-02 15:04:05"

// ExcelWriter implements SheetWriter using excelize. Each finished sheet gets
// a bold, frozen header row and columns sized to the widest value written.
type ExcelWriter struct {
	file        *excelize.File
	sheet       string
	row         int
	colWidths   []float64
	headerStyle int
}

// NewExcelWriter creates an empty workbook.
func NewExcelWriter() SheetWriter {
	return &ExcelWriter{file: excelize.NewFile()}
}

// AddSheet finishes the current sheet and starts a new one.
func (w *ExcelWriter) AddSheet(name string) error {
	if err := w.finishSheet(); err != nil {
		return err
	}

	// Excel caps sheet names at 31 chars.
	if len(name) > maxSheetNameLen {
		name = name[:maxSheetNameLen]
	}

	if w.sheet == "" {
		// First sheet: rename the default one instead of leaving it empty.
		w.file.SetSheetName("Sheet1", name)
	} else {
		if _, err := w.file.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet %s: %w", name, err)
		}
	}

	w.sheet = name
	w.row = 1
	w.colWidths = w.colWidths[:0]
	return nil
}

// WriteHeader writes bolded column headers to the current sheet.
func (w *ExcelWriter) WriteHeader(columns []string) error {
	if w.sheet == "" {
		return fmt.Errorf("no active sheet")
	}

	if w.headerStyle == 0 {
		style, err := w.file.NewStyle(&excelize.Style{
			Font: &excelize.Font{Bold: true},
		})
		if err != nil {
			return fmt.Errorf("header style: %w", err)
		}
		w.headerStyle = style
	}

	headerRow := w.row
	cells := make([]interface{}, len(columns))
	for i, col := range columns {
		cells[i] = col
	}
	if err := w.writeCells(cells); err != nil {
		return err
	}

	start, _ := excelize.CoordinatesToCellName(1, headerRow)
	end, _ := excelize.CoordinatesToCellName(len(columns), headerRow)
	return w.file.SetCellStyle(w.sheet, start, end, w.headerStyle)
}

// WriteRow writes a data row to the current sheet. Timestamps are rendered
// as text so sqlite and Go time values export identically.
func (w *ExcelWriter) WriteRow(row []interface{}) error {
	if w.sheet == "" {
		return fmt.Errorf("no active sheet")
	}

	cells := make([]interface{}, len(row))
	for i, val := range row {
		if t, ok := val.(time.Time); ok {
			val = t.Format(cellTimeLayout)
		}
		cells[i] = val
	}
	return w.writeCells(cells)
}

// Save finishes the last sheet and writes the workbook to wr.
func (w *ExcelWriter) Save(wr io.Writer) error {
	if err := w.finishSheet(); err != nil {
		return err
	}
	return w.file.Write(wr)
}

// Close releases resources.
func (w *ExcelWriter) Close() error {
	return w.file.Close()
}

func (w *ExcelWriter) writeCells(cells []interface{}) error {
	for i, val := range cells {
		cell, err := excelize.CoordinatesToCellName(i+1, w.row)
		if err != nil {
			return err
		}
		if err := w.file.SetCellValue(w.sheet, cell, val); err != nil {
			return err
		}
		w.trackWidth(i, val)
	}
	w.row++
	return nil
}

func (w *ExcelWriter) trackWidth(col int, val interface{}) {
	for len(w.colWidths) <= col {
		w.colWidths = append(w.colWidths, 0)
	}
	if width := float64(len(fmt.Sprint(val))); width > w.colWidths[col] {
		w.colWidths[col] = width
	}
}

// finishSheet sizes the columns of the sheet written so far and pins its
// header row.
func (w *ExcelWriter) finishSheet() error {
	if w.sheet == "" {
		return nil
	}

	for i, width := range w.colWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := w.file.SetColWidth(w.sheet, col, col, clampWidth(width)); err != nil {
			return err
		}
	}

	return w.file.SetPanes(w.sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func clampWidth(width float64) float64 {
	width += 2
	if width < minColumnWidth {
		return minColumnWidth
	}
	if width > maxColumnWidth {
		return maxColumnWidth
	}
	return width
}
