package db

import (
	"fmt"
	"strings"

	"github.com/mind-engage/emoscreen/internal/workbook"
)

// Quote quotes an SQL identifier. Both dialects accept double quotes.
func Quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// ConfigDDL renders CREATE TABLE statements for every table of the catalog.
// Relationships between config tables are checked by the ingestion
// validator, so no FOREIGN KEY clauses are emitted.
func ConfigDDL(driver Driver, catalog workbook.Catalog) []string {
	out := make([]string, 0, len(catalog))
	for _, t := range catalog {
		out = append(out, TableDDL(driver, t))
	}
	return out
}

func TableDDL(driver Driver, t *workbook.Table) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", Quote(t.DBName))
	for _, f := range t.Fields {
		fmt.Fprintf(&b, "  %s %s", Quote(f.Name), columnType(driver, f.Type))
		if !nullable(t, f) {
			b.WriteString(" NOT NULL")
		}
		if f.Type == workbook.JSON && driver == DriverSQLite {
			fmt.Fprintf(&b, " CHECK (%s IS NULL OR json_valid(%s))", Quote(f.Name), Quote(f.Name))
		}
		b.WriteString(",\n")
	}
	keys := make([]string, len(t.Key))
	for i, k := range t.Key {
		keys[i] = Quote(k)
	}
	fmt.Fprintf(&b, "  PRIMARY KEY (%s)\n);", strings.Join(keys, ", "))
	return b.String()
}

func nullable(t *workbook.Table, f workbook.Field) bool {
	if t.IsKey(f.Name) {
		return false
	}
	return f.Nullable
}

func columnType(driver Driver, ft workbook.FieldType) string {
	switch ft {
	case workbook.Int, workbook.Timestamp:
		return "BIGINT"
	case workbook.Decimal:
		if driver == DriverPostgres {
			return "NUMERIC"
		}
		// TEXT keeps decimal strings exact in SQLite
		return "TEXT"
	case workbook.Bool:
		if driver == DriverPostgres {
			return "BOOLEAN"
		}
		return "INTEGER"
	case workbook.JSON:
		if driver == DriverPostgres {
			return "JSONB"
		}
		return "TEXT"
	default:
		return "TEXT"
	}
}
