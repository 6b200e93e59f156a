package workbook

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// FieldType is the semantic type of a column. It drives coercion on load,
// DDL generation and the repair applied by the writer.
type FieldType int

const (
	Text FieldType = iota
	Code           // trimmed business code; empty means absent
	Lang           // Code, lower-cased
	Int
	Decimal
	Bool
	JSON
	Timestamp // unix seconds, engine-filled
)

func (t FieldType) String() string {
	switch t {
	case Text:
		return "text"
	case Code:
		return "code"
	case Lang:
		return "lang"
	case Int:
		return "int"
	case Decimal:
		return "decimal"
	case Bool:
		return "bool"
	case JSON:
		return "json"
	case Timestamp:
		return "timestamp"
	default:
		return fmt.Sprintf("FieldType(%d)", int(t))
	}
}

// IsCode reports whether values of this type are natural-key codes.
func (t FieldType) IsCode() bool { return t == Code || t == Lang }

// Field describes one column of a table.
type Field struct {
	Name     string
	Type     FieldType
	Nullable bool
	Default  any
	// Required columns must be present in the source sheet header.
	Required bool
	// Engine columns are computed by the engine and never read from the sheet.
	Engine bool
	// InsertOnly columns are written on insert and never overwritten on conflict.
	InsertOnly bool
	// Ordinal engine columns hold the row's 1-based position among the
	// sheet's kept rows.
	Ordinal bool
}

// ZeroValue is the nullability-safe zero for the field's type.
func (f Field) ZeroValue() any {
	switch f.Type {
	case Int, Timestamp:
		return int64(0)
	case Decimal:
		return decimal.Zero
	case Bool:
		return false
	case JSON:
		return json.RawMessage(`{}`)
	default:
		return ""
	}
}

// Fallback is the configured default, or the zero value when none is set.
func (f Field) Fallback() any {
	if f.Default != nil {
		return f.Default
	}
	return f.ZeroValue()
}

// Table describes one logical sheet and its destination table.
type Table struct {
	Name     string // sheet name
	DBName   string
	Key      []string // natural key columns
	Required bool
	Fields   []Field
	Aliases  AliasMap
	// UpdateColumns overrides the conflict-update column list. Nil means every
	// non-key, non-insert-only column.
	UpdateColumns []string
	// Replace tables are cleared before every write: their rows have no
	// identity beyond the pair they link, so a row missing from the sheet is
	// a row the author removed.
	Replace bool
}

func (t *Table) Field(name string) (Field, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

func (t *Table) IsKey(name string) bool {
	for _, k := range t.Key {
		if k == name {
			return true
		}
	}
	return false
}

// Columns lists every field name in declaration order.
func (t *Table) Columns() []string {
	out := make([]string, 0, len(t.Fields))
	for _, f := range t.Fields {
		out = append(out, f.Name)
	}
	return out
}

// RequiredColumns lists the columns a source sheet must carry.
func (t *Table) RequiredColumns() []string {
	var out []string
	for _, f := range t.Fields {
		if f.Required && !f.Engine {
			out = append(out, f.Name)
		}
	}
	return out
}

// ConflictUpdateColumns is the column list overwritten when an upsert hits an
// existing natural key.
func (t *Table) ConflictUpdateColumns() []string {
	if t.UpdateColumns != nil {
		return append([]string(nil), t.UpdateColumns...)
	}
	var out []string
	for _, f := range t.Fields {
		if t.IsKey(f.Name) || f.InsertOnly {
			continue
		}
		out = append(out, f.Name)
	}
	return out
}

func (t *Table) validate() error {
	var problems []string
	seen := map[string]bool{}
	for _, f := range t.Fields {
		if seen[f.Name] {
			problems = append(problems, fmt.Sprintf("duplicate field %q", f.Name))
		}
		seen[f.Name] = true
		if f.Ordinal && (f.Type != Int || !f.Engine) {
			problems = append(problems, fmt.Sprintf("ordinal field %q must be an engine int", f.Name))
		}
	}
	if len(t.Key) == 0 {
		problems = append(problems, "no natural key")
	}
	for _, k := range t.Key {
		f, ok := t.Field(k)
		if !ok {
			problems = append(problems, fmt.Sprintf("key column %q is not a field", k))
			continue
		}
		if !f.Type.IsCode() {
			problems = append(problems, fmt.Sprintf("key column %q must be a code, got %s", k, f.Type))
		}
	}
	for _, c := range t.UpdateColumns {
		if _, ok := t.Field(c); !ok {
			problems = append(problems, fmt.Sprintf("update column %q is not a field", c))
		}
		if t.IsKey(c) {
			problems = append(problems, fmt.Sprintf("update column %q is part of the key", c))
		}
	}
	if err := t.Aliases.Validate(t); err != nil {
		problems = append(problems, err.Error())
	}
	if len(problems) > 0 {
		return fmt.Errorf("table %s: %v", t.Name, problems)
	}
	return nil
}
