package workbook

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mind-engage/emoscreen/internal/logger"
)

// Loader reads a workbook Source into a typed Dataset according to a Catalog.
type Loader struct {
	catalog Catalog
	log     *logger.Logger
}

type LoaderOption func(*Loader)

func WithLogger(l *logger.Logger) LoaderOption {
	return func(ld *Loader) { ld.log = logger.OrNop(l) }
}

func NewLoader(c Catalog, opts ...LoaderOption) *Loader {
	ld := &Loader{catalog: c, log: logger.Nop()}
	for _, o := range opts {
		o(ld)
	}
	return ld
}

// Load reads every table of the catalog. Missing required sheets or columns
// produce a single *SchemaError listing all of them; nothing is returned in
// that case. Cell-level problems are recovered and reported on
// Dataset.Issues.
func (ld *Loader) Load(ctx context.Context, src Source) (*Dataset, error) {
	if err := ld.catalog.Validate(); err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	sheets, err := src.Sheets(ctx)
	if err != nil {
		return nil, fmt.Errorf("read workbook: %w", err)
	}
	byName := map[string]RawSheet{}
	for _, s := range sheets {
		key := NormalizeHeader(s.Name)
		if _, dup := byName[key]; dup {
			ld.log.Warn("duplicate sheet ignored", "sheet", s.Name)
			continue
		}
		byName[key] = s
	}

	schemaErr := &SchemaError{}
	type pending struct {
		table  *Table
		sheet  RawSheet
		header []string
	}
	var work []pending
	for _, t := range ld.catalog {
		sheet, ok := byName[t.Name]
		if !ok {
			if t.Required {
				schemaErr.MissingTables = append(schemaErr.MissingTables, t.Name)
			}
			continue
		}
		header := make([]string, len(sheet.Header))
		for i, h := range sheet.Header {
			header[i] = NormalizeHeader(h)
		}
		header = t.Aliases.Apply(header)
		var missing []string
		for _, col := range t.RequiredColumns() {
			if indexOf(header, col) < 0 {
				missing = append(missing, col)
			}
		}
		if len(missing) > 0 {
			schemaErr.MissingColumns = append(schemaErr.MissingColumns, MissingColumns{
				Sheet: t.Name, Missing: missing, Present: nonEmpty(header),
			})
			continue
		}
		work = append(work, pending{table: t, sheet: sheet, header: header})
	}
	if !schemaErr.empty() {
		return nil, schemaErr
	}

	ds := &Dataset{Catalog: ld.catalog, Tables: map[string]*TableData{}}
	for _, t := range ld.catalog {
		ds.Tables[t.Name] = &TableData{Table: t}
	}
	for _, p := range work {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		td := ds.Tables[p.table.Name]
		td.Present = true
		ld.readTable(ds, td, p.sheet, p.header)
		if td.Dropped > 0 {
			ld.log.Debug("placeholder rows dropped", "sheet", p.table.Name, "rows", td.Dropped)
		}
	}
	for _, issue := range ds.Issues {
		ld.log.Warn("cell coerced", "sheet", issue.Table, "row", issue.Row, "column", issue.Column, "reason", issue.Reason)
	}
	return ds, nil
}

func (ld *Loader) readTable(ds *Dataset, td *TableData, sheet RawSheet, header []string) {
	t := td.Table
	colIdx := map[string]int{}
	for i, h := range header {
		if _, ok := t.Field(h); ok {
			if _, seen := colIdx[h]; !seen {
				colIdx[h] = i
				td.Columns = append(td.Columns, h)
			}
		}
	}

	for rowNum, row := range sheet.Rows {
		if blankRow(row) {
			continue
		}
		rec := Record{}
		for _, f := range t.Fields {
			if f.Engine {
				continue
			}
			idx, inSheet := colIdx[f.Name]
			var cell any
			if inSheet && idx < len(row) {
				cell = row[idx]
			}
			v, issue := coerceCell(f, cell)
			if issue != "" {
				ds.Issues = append(ds.Issues, CoercionError{
					Table: t.Name, Row: rowNum + 2, Column: f.Name,
					Value: cellText(cell), Type: f.Type, Reason: issue,
				})
			}
			rec[f.Name] = v
		}
		if !hasKey(t, rec) {
			td.Dropped++
			continue
		}
		for _, f := range t.Fields {
			if f.Ordinal {
				rec[f.Name] = int64(len(td.Records) + 1)
			}
		}
		td.Records = append(td.Records, rec)
	}
}

// coerceCell converts one cell to the field's type. A non-empty issue means
// the value was replaced by the field's default or by absent.
func coerceCell(f Field, cell any) (any, string) {
	absent := func() any {
		if f.Nullable || f.Type.IsCode() {
			return nil
		}
		return f.Fallback()
	}
	switch f.Type {
	case Code, Lang:
		s, ok := NormalizeCode(cell, f.Type == Lang)
		if !ok {
			return nil, ""
		}
		return s, ""
	case Text:
		s := strings.TrimSpace(cellText(cell))
		if s == "" {
			return absent(), ""
		}
		return s, ""
	case Int:
		n, ok, err := ParseInt(cell)
		switch {
		case err != nil && ok:
			return n, err.Error()
		case err != nil:
			return absent(), err.Error()
		case !ok:
			return absent(), ""
		}
		return n, ""
	case Decimal:
		d, ok, err := ParseDecimal(cell)
		if err != nil {
			return absent(), err.Error()
		}
		if !ok {
			return absent(), ""
		}
		return d, ""
	case Bool:
		b, ok := ParseBool(cell)
		if !ok {
			return absent(), ""
		}
		return b, ""
	case JSON:
		j, ok, err := ParseJSON(cell)
		if err != nil {
			return absent(), err.Error()
		}
		if !ok {
			return absent(), ""
		}
		return j, ""
	default:
		return absent(), ""
	}
}

// FallbackJSON is the JSON fallback as raw JSON regardless of how the default
// was declared.
func FallbackJSON(f Field) json.RawMessage {
	switch v := f.Fallback().(type) {
	case json.RawMessage:
		return v
	case []byte:
		return v
	case string:
		return json.RawMessage(v)
	default:
		return json.RawMessage(`{}`)
	}
}

func hasKey(t *Table, rec Record) bool {
	for _, k := range t.Key {
		if _, ok := rec.Code(k); !ok {
			return false
		}
	}
	return true
}

func blankRow(row []any) bool {
	for _, c := range row {
		if strings.TrimSpace(cellText(c)) != "" {
			return false
		}
	}
	return true
}

func nonEmpty(xs []string) []string {
	out := make([]string, 0, len(xs))
	for _, x := range xs {
		if x != "" {
			out = append(out, x)
		}
	}
	return out
}
