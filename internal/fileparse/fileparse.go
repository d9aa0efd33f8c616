// Package fileparse turns uploaded spreadsheet files into header rows
// and raw record maps for the import pipeline. CSV and XLSX are
// supported; the format is picked from the file extension.
package fileparse

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/SergioIriarte666/gruas-sgg-manager/internal/migration"
)

// ErrUnsupportedFormat is returned for file extensions other than .csv
// and .xlsx.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// ErrEmptyFile is returned when a file has no header row.
var ErrEmptyFile = errors.New("file has no rows")

// Parse reads an uploaded file and returns its header row plus one
// RawRow per data line, keyed by the original headers. Rows beyond the
// header's width are truncated; short rows leave the missing cells
// empty. Completely empty data lines are dropped.
func Parse(fileName string, data []byte) ([]string, []migration.RawRow, error) {
	var (
		records [][]string
		err     error
	)
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".csv":
		records, err = parseCSV(data)
	case ".xlsx":
		records, err = parseXLSX(data)
	default:
		return nil, nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(fileName))
	}
	if err != nil {
		return nil, nil, err
	}

	headers, rows := splitRecords(records)
	if len(headers) == 0 {
		return nil, nil, ErrEmptyFile
	}
	return headers, rows, nil
}

func splitRecords(records [][]string) ([]string, []migration.RawRow) {
	for len(records) > 0 && emptyRecord(records[0]) {
		records = records[1:]
	}
	if len(records) == 0 {
		return nil, nil
	}

	headers := make([]string, len(records[0]))
	for i, h := range records[0] {
		headers[i] = migration.CleanCell(h)
	}

	var rows []migration.RawRow
	for _, record := range records[1:] {
		if emptyRecord(record) {
			continue
		}
		row := make(migration.RawRow, len(headers))
		for i, header := range headers {
			if header == "" {
				continue
			}
			if i < len(record) {
				row[header] = record[i]
			} else {
				row[header] = ""
			}
		}
		rows = append(rows, row)
	}
	return headers, rows
}

func emptyRecord(record []string) bool {
	for _, cell := range record {
		if migration.CleanCell(cell) != "" {
			return false
		}
	}
	return true
}

func parseCSV(data []byte) ([][]string, error) {
	data = stripBOM(sanitizeUTF8(data))
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading csv: %w", err)
	}
	return records, nil
}

func parseXLSX(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("opening xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyFile
	}
	// data lives on the first sheet by convention
	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q: %w", sheets[0], err)
	}
	return records, nil
}

func stripBOM(data []byte) []byte {
	return bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
}

// sanitizeUTF8 replaces invalid byte sequences with the replacement
// rune so a mis-encoded file degrades instead of failing the parse.
func sanitizeUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}

	var buf bytes.Buffer
	buf.Grow(len(data))
	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune('�')
			data = data[1:]
		} else {
			buf.WriteRune(r)
			data = data[size:]
		}
	}
	return buf.Bytes()
}
