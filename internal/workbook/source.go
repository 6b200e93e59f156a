package workbook

import (
	"context"
	"sort"
)

// RawSheet is one sheet as read from a source: a header row followed by data
// rows. Cell values are whatever the source produced (string, float64, bool,
// nil).
type RawSheet struct {
	Name   string
	Header []string
	Rows   [][]any
}

// Source yields the sheets of one workbook.
type Source interface {
	Sheets(ctx context.Context) ([]RawSheet, error)
}

// MemorySource is a workbook held in memory. Keys are sheet names; the first
// row of each sheet is the header.
type MemorySource map[string][][]any

func (m MemorySource) Sheets(ctx context.Context) ([]RawSheet, error) {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]RawSheet, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows := m[name]
		if len(rows) == 0 {
			out = append(out, RawSheet{Name: name})
			continue
		}
		header := make([]string, len(rows[0]))
		for i, h := range rows[0] {
			header[i] = cellText(h)
		}
		out = append(out, RawSheet{Name: name, Header: header, Rows: rows[1:]})
	}
	return out, nil
}
