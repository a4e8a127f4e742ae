package tabular

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

// AllowedFileTypes lists the accepted spreadsheet extensions (without dot).
var AllowedFileTypes = map[string]bool{
	"csv":  true,
	"xlsx": true,
	"xls":  true,
}

var (
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrEmptyFile           = errors.New("file contains no data")
)

// Table is a parsed tabular file: a header row plus data rows. Rows are
// padded or truncated to the header width during parsing.
type Table struct {
	Columns []string
	Rows    [][]string
}

// RowCount returns the number of data rows (header excluded).
func (t Table) RowCount() int { return len(t.Rows) }

// RowMaps converts up to limit data rows into column-keyed maps.
// limit <= 0 means all rows.
func (t Table) RowMaps(limit int) []map[string]string {
	if limit <= 0 || limit > len(t.Rows) {
		limit = len(t.Rows)
	}
	out := make([]map[string]string, 0, limit)
	for _, row := range t.Rows[:limit] {
		m := make(map[string]string, len(t.Columns))
		for i, col := range t.Columns {
			if i < len(row) {
				m[col] = row[i]
			} else {
				m[col] = ""
			}
		}
		out = append(out, m)
	}
	return out
}

// Column returns all values of the named column, or nil if absent.
func (t Table) Column(name string) []string {
	idx := -1
	for i, col := range t.Columns {
		if col == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	out := make([]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		if idx < len(row) {
			out = append(out, row[idx])
		} else {
			out = append(out, "")
		}
	}
	return out
}

// DetectFileType returns the lowercase extension of filename without the
// dot, e.g. "csv".
func DetectFileType(filename string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
}

// CheckContentType sniffs the leading bytes and reports a problem when
// the payload cannot be of the claimed file type, e.g. an image renamed
// to .csv. An empty string means the content is plausible.
func CheckContentType(data []byte, fileType string) string {
	detected := http.DetectContentType(data)
	switch fileType {
	case "csv":
		// plain text in any charset; html is text too but never a csv
		if strings.HasPrefix(detected, "text/plain") || detected == "application/octet-stream" {
			return ""
		}
	case "xlsx", "xls":
		// OOXML sniffs as zip; BIFF compound files sniff as octet-stream
		if detected == "application/zip" || detected == "application/octet-stream" {
			return ""
		}
	}
	return fmt.Sprintf("file content looks like %s, not a %s file", detected, fileType)
}

// Read parses file data according to fileType. maxRows > 0 caps the
// number of data rows read (the header row is always read).
func Read(data []byte, fileType string, maxRows int) (Table, error) {
	switch fileType {
	case "csv":
		return readCSV(data, maxRows)
	case "xlsx":
		return readExcel(data, maxRows)
	case "xls":
		return readXLS(data, maxRows)
	default:
		return Table{}, fmt.Errorf("%w: %q", ErrUnsupportedFileType, fileType)
	}
}

func readCSV(data []byte, maxRows int) (Table, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1 // tolerate ragged rows, normalized below
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err == io.EOF {
		return Table{}, ErrEmptyFile
	}
	if err != nil {
		return Table{}, fmt.Errorf("read csv header: %w", err)
	}

	t := Table{Columns: header}
	for maxRows <= 0 || len(t.Rows) < maxRows {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Table{}, fmt.Errorf("read csv row %d: %w", len(t.Rows)+2, err)
		}
		t.Rows = append(t.Rows, normalizeRow(row, len(header)))
	}
	return t, nil
}

func readExcel(data []byte, maxRows int) (Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return Table{}, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return Table{}, ErrEmptyFile
	}

	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return Table{}, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return Table{}, ErrEmptyFile
	}

	t := Table{Columns: rows[0]}
	for _, row := range rows[1:] {
		if maxRows > 0 && len(t.Rows) >= maxRows {
			break
		}
		t.Rows = append(t.Rows, normalizeRow(row, len(t.Columns)))
	}
	return t, nil
}

// readXLS handles the legacy BIFF format. Files that carry an .xls name
// but actually hold OOXML content fall through to the xlsx reader.
func readXLS(data []byte, maxRows int) (Table, error) {
	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return readExcel(data, maxRows)
	}

	sheet := wb.GetSheet(0)
	if sheet == nil {
		return Table{}, ErrEmptyFile
	}

	header := xlsRow(sheet.Row(0))
	if len(header) == 0 {
		return Table{}, ErrEmptyFile
	}

	t := Table{Columns: header}
	for i := 1; i <= int(sheet.MaxRow); i++ {
		if maxRows > 0 && len(t.Rows) >= maxRows {
			break
		}
		t.Rows = append(t.Rows, normalizeRow(xlsRow(sheet.Row(i)), len(header)))
	}
	return t, nil
}

// xlsRow reads cells from column zero so indices line up with the
// header even when a row's first populated cell sits further right.
func xlsRow(r *xls.Row) []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, r.LastCol())
	for j := 0; j < r.LastCol(); j++ {
		out = append(out, r.Col(j))
	}
	return out
}

func normalizeRow(row []string, width int) []string {
	if len(row) == width {
		return row
	}
	out := make([]string, width)
	copy(out, row)
	return out
}

// CheckStructure returns human-readable structural problems with a
// parsed table: missing data, unnamed columns, fully empty columns.
// An empty slice means the table is importable.
func CheckStructure(t Table) []string {
	var problems []string

	if len(t.Rows) == 0 {
		problems = append(problems, "file contains a header row but no data rows")
	}

	var unnamed []string
	for i, col := range t.Columns {
		if strings.TrimSpace(col) == "" {
			unnamed = append(unnamed, fmt.Sprintf("column %d", i+1))
		}
	}
	if len(unnamed) > 0 {
		problems = append(problems, "file contains unnamed columns: "+strings.Join(unnamed, ", "))
	}

	for i, col := range t.Columns {
		if strings.TrimSpace(col) == "" || len(t.Rows) == 0 {
			continue
		}
		empty := true
		for _, row := range t.Rows {
			if i < len(row) && strings.TrimSpace(row[i]) != "" {
				empty = false
				break
			}
		}
		if empty {
			problems = append(problems, fmt.Sprintf("column %q is completely empty", col))
		}
	}

	return problems
}

// IsEmptyRow reports whether every cell of the row is blank.
func IsEmptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
