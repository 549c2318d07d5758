package parser

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

var (
	// ErrUnsupportedFormat is returned when a source file is not CSV or XLSX.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrUnreadableSource is returned when a file cannot be parsed as
	// tabular data. It is fatal to that source's run.
	ErrUnreadableSource = errors.New("source is not readable as tabular data")

	byteOrderMark = []byte{0xEF, 0xBB, 0xBF}
)

// Table is a parsed tabular source: a header row plus data rows, all cells
// whitespace-trimmed and rows padded to header width.
type Table struct {
	Headers []string
	Rows    [][]string
}

// ReadTable loads a tabular file. CSV and XLSX are supported; the extension
// of fileName selects the decoder.
func ReadTable(fileName string, payload []byte) (Table, error) {
	if len(payload) == 0 {
		return Table{}, fmt.Errorf("%w: file is empty", ErrUnreadableSource)
	}

	ext := strings.ToLower(filepath.Ext(fileName))
	switch ext {
	case ".csv":
		return readCSV(payload)
	case ".xlsx":
		return readExcel(payload)
	default:
		return Table{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
}

func readCSV(payload []byte) (Table, error) {
	reader := bufio.NewReader(bytes.NewReader(payload))
	if prefix, err := reader.Peek(len(byteOrderMark)); err == nil && bytes.Equal(prefix, byteOrderMark) {
		_, _ = reader.Discard(len(byteOrderMark))
	}

	csvReader := csv.NewReader(reader)
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		return Table{}, fmt.Errorf("%w: %v", ErrUnreadableSource, err)
	}

	return buildTable(records)
}

func readExcel(payload []byte) (Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return Table{}, fmt.Errorf("%w: %v", ErrUnreadableSource, err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return Table{}, fmt.Errorf("%w: workbook has no sheets", ErrUnreadableSource)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return Table{}, fmt.Errorf("%w: %v", ErrUnreadableSource, err)
	}

	return buildTable(rows)
}

func buildTable(records [][]string) (Table, error) {
	var headers []string
	var rows [][]string

	for _, record := range records {
		if emptyRow(record) {
			continue
		}
		if headers == nil {
			headers = normalizeHeaders(record)
			continue
		}
		rows = append(rows, trimRow(padRow(record, len(headers))))
	}

	if headers == nil {
		return Table{}, fmt.Errorf("%w: no header row detected", ErrUnreadableSource)
	}

	return Table{Headers: headers, Rows: rows}, nil
}

// normalizeHeaders trims each header cell and collapses interior runs of
// whitespace, so "Outbreak  Date " matches a rename map keyed "Outbreak Date".
func normalizeHeaders(raw []string) []string {
	headers := make([]string, len(raw))
	for i, value := range raw {
		headers[i] = strings.Join(strings.Fields(value), " ")
	}
	return headers
}

func trimRow(row []string) []string {
	for i, cell := range row {
		row[i] = strings.TrimSpace(cell)
	}
	return row
}

func padRow(row []string, length int) []string {
	if len(row) >= length {
		return row[:length]
	}
	padded := make([]string, length)
	copy(padded, row)
	return padded
}

func emptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
