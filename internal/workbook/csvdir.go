package workbook

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// CSVDirSource treats a directory of <sheet>.csv files as a workbook.
type CSVDirSource struct {
	Dir string
}

func (s CSVDirSource) Sheets(ctx context.Context) ([]RawSheet, error) {
	paths, err := filepath.Glob(filepath.Join(s.Dir, "*.csv"))
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no .csv files in %s", s.Dir)
	}
	sort.Strings(paths)

	out := make([]RawSheet, 0, len(paths))
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sheet, err := readCSV(p)
		if err != nil {
			return nil, err
		}
		out = append(out, sheet)
	}
	return out, nil
}

func readCSV(path string) (RawSheet, error) {
	f, err := os.Open(path)
	if err != nil {
		return RawSheet{}, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return RawSheet{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	sheet := RawSheet{Name: name}
	if len(records) == 0 {
		return sheet, nil
	}
	// Excel's "CSV UTF-8" export prefixes a byte-order mark.
	sheet.Header = records[0]
	if len(sheet.Header) > 0 {
		sheet.Header[0] = strings.TrimPrefix(sheet.Header[0], "\ufeff")
	}
	for _, rec := range records[1:] {
		cells := make([]any, len(rec))
		for i, c := range rec {
			cells[i] = c
		}
		sheet.Rows = append(sheet.Rows, cells)
	}
	return sheet, nil
}
