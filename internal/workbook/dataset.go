package workbook

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Record is one typed row keyed by canonical column name. Values are
// string, int64, decimal.Decimal, bool or json.RawMessage; absent values are
// nil.
type Record map[string]any

func (r Record) String(col string) string {
	switch v := r[col].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Code returns a code column and whether it is present.
func (r Record) Code(col string) (string, bool) {
	s, ok := r[col].(string)
	return s, ok && s != ""
}

func (r Record) Int(col string) int64 {
	v, _ := r[col].(int64)
	return v
}

// Decimal returns a decimal column and whether it is present.
func (r Record) Decimal(col string) (decimal.Decimal, bool) {
	v, ok := r[col].(decimal.Decimal)
	return v, ok
}

func (r Record) Bool(col string) bool {
	v, _ := r[col].(bool)
	return v
}

func (r Record) JSON(col string) json.RawMessage {
	v, _ := r[col].(json.RawMessage)
	return v
}

// Key renders the record's natural key for messages and lookups.
func (r Record) Key(t *Table) string {
	if len(t.Key) == 1 {
		return r.String(t.Key[0])
	}
	parts := make([]string, len(t.Key))
	for i, k := range t.Key {
		parts[i] = r.String(k)
	}
	return strings.Join(parts, "/")
}

// TableData is the loaded content of one table.
type TableData struct {
	Table   *Table
	Present bool     // false when an optional sheet was absent
	Columns []string // canonical columns found in the sheet header
	Records []Record
	Dropped int // rows skipped for lacking a key column
}

func (td *TableData) HasColumn(name string) bool {
	for _, c := range td.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Dataset is a fully loaded workbook.
type Dataset struct {
	Catalog Catalog
	Tables  map[string]*TableData
	Issues  []CoercionError
}

// Table returns the data for name, or an empty TableData for unknown or
// absent tables.
func (ds *Dataset) Table(name string) *TableData {
	if td, ok := ds.Tables[name]; ok {
		return td
	}
	t, _ := ds.Catalog.Lookup(name)
	return &TableData{Table: t}
}

func (ds *Dataset) Records(name string) []Record {
	return ds.Table(name).Records
}

// Codes is the set of values of col across the rows of name.
func (ds *Dataset) Codes(name, col string) map[string]bool {
	out := map[string]bool{}
	for _, r := range ds.Records(name) {
		if c, ok := r.Code(col); ok {
			out[c] = true
		}
	}
	return out
}
