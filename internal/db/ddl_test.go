package db

import (
	"strings"
	"testing"

	"github.com/mind-engage/emoscreen/internal/workbook"
)

func TestParseDriver(t *testing.T) {
	cases := map[string]Driver{"": DriverSQLite, "SQLite3": DriverSQLite, " pgx ": DriverPostgres, "pg": DriverPostgres}
	for in, want := range cases {
		got, err := ParseDriver(in)
		if err != nil || got != want {
			t.Fatalf("ParseDriver(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseDriver("mysql"); err == nil {
		t.Fatalf("mysql should be rejected")
	}
}

func TestQuote(t *testing.T) {
	if got := Quote(`we"ird`); got != `"we""ird"` {
		t.Fatalf("Quote = %s", got)
	}
}

func TestTableDDLPerDialect(t *testing.T) {
	forms, ok := workbook.Screening().Lookup(workbook.SheetForms)
	if !ok {
		t.Fatalf("forms table missing from catalog")
	}
	lite := TableDDL(DriverSQLite, forms)
	pg := TableDDL(DriverPostgres, forms)

	if !strings.HasPrefix(lite, `CREATE TABLE IF NOT EXISTS "es_cfg_forms"`) {
		t.Fatalf("sqlite ddl:\n%s", lite)
	}
	if !strings.Contains(lite, `"total_score_max_declared" TEXT`) || !strings.Contains(pg, `"total_score_max_declared" NUMERIC`) {
		t.Fatalf("decimal column types:\n%s\n%s", lite, pg)
	}
	if !strings.Contains(lite, `"is_active" INTEGER NOT NULL`) || !strings.Contains(pg, `"is_active" BOOLEAN NOT NULL`) {
		t.Fatalf("bool column types:\n%s\n%s", lite, pg)
	}
	if !strings.Contains(pg, `PRIMARY KEY ("form_code")`) || strings.Contains(pg, "FOREIGN KEY") {
		t.Fatalf("keys:\n%s", pg)
	}
}

func TestSplitSQLSkipsComments(t *testing.T) {
	stmts := splitSQL("-- header\nCREATE TABLE a (x INT);\n\nCREATE INDEX i ON a (x);\n")
	if len(stmts) != 2 || !strings.Contains(stmts[1], "CREATE INDEX") {
		t.Fatalf("stmts = %q", stmts)
	}
}
