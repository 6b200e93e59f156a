package workbook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/xuri/excelize/v2"
)

// XLSXSource reads an Office Open XML workbook, either from a path or from
// bytes already in memory (e.g. fetched from the blob store).
type XLSXSource struct {
	path string
	data []byte
}

func XLSXFile(path string) *XLSXSource { return &XLSXSource{path: path} }

func XLSXBytes(data []byte) *XLSXSource { return &XLSXSource{data: data} }

// Bytes returns the raw workbook, reading it from disk when needed. The
// ingestion pipeline archives these bytes after a successful run.
func (s *XLSXSource) Bytes() ([]byte, error) {
	if s.data != nil {
		return s.data, nil
	}
	b, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read workbook: %w", err)
	}
	s.data = b
	return b, nil
}

func (s *XLSXSource) Sheets(ctx context.Context) ([]RawSheet, error) {
	b, err := s.Bytes()
	if err != nil {
		return nil, err
	}
	return readXLSX(ctx, bytes.NewReader(b))
}

func readXLSX(ctx context.Context, r io.Reader) ([]RawSheet, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	var out []RawSheet
	for _, name := range f.GetSheetList() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("sheet %s: %w", name, err)
		}
		sheet := RawSheet{Name: name}
		if len(rows) > 0 {
			sheet.Header = rows[0]
			for _, row := range rows[1:] {
				cells := make([]any, len(row))
				for i, c := range row {
					cells[i] = c
				}
				sheet.Rows = append(sheet.Rows, cells)
			}
		}
		out = append(out, sheet)
	}
	return out, nil
}
