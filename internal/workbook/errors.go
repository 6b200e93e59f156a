package workbook

import (
	"fmt"
	"strings"
)

// MissingColumns reports the required columns absent from one sheet.
type MissingColumns struct {
	Sheet   string
	Missing []string
	Present []string
}

// SchemaError is returned when required sheets or columns are absent. It
// carries every problem found so a content author can fix them in one pass.
type SchemaError struct {
	MissingTables  []string
	MissingColumns []MissingColumns
}

func (e *SchemaError) Error() string {
	var parts []string
	if len(e.MissingTables) > 0 {
		parts = append(parts, fmt.Sprintf("missing required sheets: %v", e.MissingTables))
	}
	for _, mc := range e.MissingColumns {
		parts = append(parts, fmt.Sprintf("sheet '%s' is missing columns: %v. Present: %v", mc.Sheet, mc.Missing, mc.Present))
	}
	return "workbook schema: " + strings.Join(parts, "; ")
}

func (e *SchemaError) empty() bool {
	return len(e.MissingTables) == 0 && len(e.MissingColumns) == 0
}

// CoercionError describes a cell that could not be read as its declared type.
// These are recovered locally (the cell falls back to its default or to
// absent) and collected on the Dataset; they never abort a run.
type CoercionError struct {
	Table  string
	Row    int // 1-based spreadsheet row, header is row 1
	Column string
	Value  string
	Type   FieldType
	Reason string
}

func (e CoercionError) Error() string {
	return fmt.Sprintf("%s row %d column %s: cannot read %q as %s: %s", e.Table, e.Row, e.Column, e.Value, e.Type, e.Reason)
}
