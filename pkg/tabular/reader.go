// Package tabular reads header-driven CSV and .xlsx uploads into keyed rows.
package tabular

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Format identifies an upload encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrEmptyFile         = errors.New("file has no header row")
)

// Row is one data row keyed by normalised header. Line is the 1-based line (CSV) or sheet row
// (XLSX) it was read from, so blank lines are counted.
type Row struct {
	Line   int
	Values map[string]string
}

// Get returns the trimmed value for the first matching header alias.
func (r Row) Get(keys ...string) string {
	for _, k := range keys {
		if v, ok := r.Values[NormalizeHeader(k)]; ok && v != "" {
			return v
		}
	}
	return ""
}

// Table is a parsed upload.
type Table struct {
	Headers []string
	Rows    []Row
}

// DetectFormat maps a filename extension to a Format.
func DetectFormat(filename string) (Format, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return FormatCSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	default:
		return "", ErrUnsupportedFormat
	}
}

// Read parses r according to the extension of filename.
func Read(filename string, r io.Reader) (*Table, error) {
	format, err := DetectFormat(filename)
	if err != nil {
		return nil, err
	}

	var records []record
	switch format {
	case FormatCSV:
		records, err = readCSV(r)
	case FormatXLSX:
		records, err = readXLSX(r)
	}
	if err != nil {
		return nil, err
	}
	return build(records)
}

// record is one raw row with the file line it starts on.
type record struct {
	line  int
	cells []string
}

// readCSV keeps each record's starting line because encoding/csv skips empty lines.
func readCSV(r io.Reader) ([]record, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))

	reader := csv.NewReader(bytes.NewReader(raw))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	var records []record
	for {
		cells, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse csv: %w", err)
		}
		line, _ := reader.FieldPos(0)
		records = append(records, record{line: line, cells: cells})
	}
	return records, nil
}

func readXLSX(r io.Reader) ([]record, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyFile
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	records := make([]record, 0, len(rows))
	for i, cells := range rows {
		records = append(records, record{line: i + 1, cells: cells})
	}
	return records, nil
}

func build(records []record) (*Table, error) {
	for len(records) > 0 && blankCells(records[0].cells) {
		records = records[1:]
	}
	if len(records) == 0 {
		return nil, ErrEmptyFile
	}

	headers := make([]string, len(records[0].cells))
	for i, h := range records[0].cells {
		headers[i] = NormalizeHeader(h)
	}

	table := &Table{Headers: headers}
	for _, rec := range records[1:] {
		values := make(map[string]string, len(headers))
		blank := true
		for col, header := range headers {
			if header == "" || col >= len(rec.cells) {
				continue
			}
			v := strings.TrimSpace(rec.cells[col])
			values[header] = v
			if v != "" {
				blank = false
			}
		}
		if blank {
			continue
		}
		table.Rows = append(table.Rows, Row{Line: rec.line, Values: values})
	}
	return table, nil
}

func blankCells(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// NormalizeHeader lower-cases a header and folds spaces and dashes into underscores.
func NormalizeHeader(h string) string {
	h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	h = strings.ToLower(h)
	return strings.NewReplacer(" ", "_", "-", "_").Replace(h)
}
