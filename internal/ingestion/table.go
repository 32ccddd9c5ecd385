package ingestion

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

var ErrUnsupportedFormat = errors.New("unsupported file format")

// table is an export read into memory with a case-insensitive header index.
type table struct {
	columns map[string]int
	rows    [][]string
}

// readTable loads a .csv or .xlsx export. Only the first sheet of a workbook
// is read.
func readTable(filename string, data []byte) (*table, error) {
	var records [][]string
	var err error

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		records, err = readCSV(data)
	case ".xlsx":
		records, err = readXLSX(data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filename)
	}
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: missing header row", filename)
	}

	t := &table{columns: make(map[string]int, len(records[0]))}
	for i, name := range records[0] {
		key := strings.ToUpper(strings.TrimSpace(name))
		if _, dup := t.columns[key]; !dup && key != "" {
			t.columns[key] = i
		}
	}
	t.rows = records[1:]
	return t, nil
}

func readCSV(data []byte) ([][]string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = sniffDelimiter(data)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	var records [][]string
	line := 0
	for {
		line++
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, row)
	}
	return records, nil
}

// sniffDelimiter picks ';' when the header has more semicolons than commas.
func sniffDelimiter(data []byte) rune {
	header := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		header = data[:i]
	}
	if bytes.Count(header, []byte(";")) > bytes.Count(header, []byte(",")) {
		return ';'
	}
	return ','
}

func readXLSX(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return rows, nil
}

func (t *table) has(col string) bool {
	_, ok := t.columns[col]
	return ok
}

// get returns the trimmed cell of col. Missing cells and "nan" read as "".
func (t *table) get(row []string, col string) string {
	i, ok := t.columns[col]
	if !ok || i >= len(row) {
		return ""
	}
	v := strings.TrimSpace(row[i])
	if strings.EqualFold(v, "nan") || strings.EqualFold(v, "null") {
		return ""
	}
	return v
}

// blank reports whether every cell of the row is empty.
func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
