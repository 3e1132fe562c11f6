package importsrc

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ReadFile decodes a CSV or XLSX file by extension. For XLSX the first
// sheet is read unless sheet is set.
func ReadFile(path, sheet string) (Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		f, err := os.Open(path)
		if err != nil {
			return Table{}, fmt.Errorf("open %s: %w", path, err)
		}
		defer f.Close()
		t, err := ReadCSV(f)
		if err != nil {
			return Table{}, fmt.Errorf("read %s: %w", path, err)
		}
		return t, nil
	case ".xlsx", ".xlsm":
		return ReadXLSX(path, sheet)
	default:
		return Table{}, fmt.Errorf("unsupported file type %q (want .csv or .xlsx)", filepath.Ext(path))
	}
}

// ReadCSV decodes comma- or semicolon-separated data. The delimiter is
// picked from the header line.
func ReadCSV(r io.Reader) (Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Table{}, err
	}
	text := strings.TrimPrefix(string(data), "\ufeff")

	firstLine, _, _ := strings.Cut(text, "\n")
	cr := csv.NewReader(strings.NewReader(text))
	if strings.Count(firstLine, ";") > strings.Count(firstLine, ",") {
		cr.Comma = ';'
	}
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return Table{}, err
	}
	return toTable(records)
}

// ReadXLSX decodes one sheet of a workbook.
func ReadXLSX(path, sheet string) (Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return Table{}, fmt.Errorf("%s has no sheets", path)
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return Table{}, fmt.Errorf("read sheet %q of %s: %w", sheet, path, err)
	}
	return toTable(rows)
}

func toTable(records [][]string) (Table, error) {
	for i, rec := range records {
		if blank(rec) {
			continue
		}
		return Table{Header: rec, Rows: records[i+1:]}, nil
	}
	return Table{}, errors.New("file has no header row")
}
