package cfgstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/mind-engage/emoscreen/internal/db"
	"github.com/mind-engage/emoscreen/internal/testutil"
	"github.com/mind-engage/emoscreen/internal/workbook"
)

func loadFixture(t *testing.T) *workbook.Dataset {
	t.Helper()
	ds, err := workbook.NewLoader(workbook.Screening()).Load(context.Background(), testutil.Workbook())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return ds
}

func writeAt(t *testing.T, sqlDB *sql.DB, ds *workbook.Dataset, at int64) []TableStats {
	t.Helper()
	var stats []TableStats
	err := db.WithTx(context.Background(), sqlDB, nil, func(tx *sql.Tx) error {
		w := NewWriter(tx, nil)
		w.now = func() time.Time { return time.Unix(at, 0) }
		var err error
		stats, err = w.WriteAll(context.Background(), ds)
		return err
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	return stats
}

func stripCreated(ds *workbook.Dataset) map[string][]workbook.Record {
	out := map[string][]workbook.Record{}
	for name, td := range ds.Tables {
		for _, r := range td.Records {
			c := workbook.Record{}
			for k, v := range r {
				if k != "created_at" {
					c[k] = v
				}
			}
			out[name] = append(out[name], c)
		}
	}
	return out
}

func TestWriteIsIdempotentAndKeepsCreatedAt(t *testing.T) {
	sqlDB := testutil.OpenDB(t)
	ds := loadFixture(t)
	ctx := context.Background()

	writeAt(t, sqlDB, ds, 1000)
	first, err := Read(ctx, sqlDB, workbook.Screening())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	stats := writeAt(t, sqlDB, ds, 2000)
	second, err := Read(ctx, sqlDB, workbook.Screening())
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	if !reflect.DeepEqual(stripCreated(first), stripCreated(second)) {
		t.Fatalf("second ingestion changed the stored state")
	}
	for _, r := range second.Records("red_flags") {
		if r.Int("created_at") != 1000 {
			t.Fatalf("created_at overwritten: %v", r["created_at"])
		}
	}
	if got := len(second.Records("options")); got != 9 {
		t.Fatalf("options rows = %d, want 9", got)
	}
	for _, st := range stats {
		if st.Repaired != 0 {
			t.Fatalf("unexpected repair in %s", st.Table)
		}
	}
}

func TestUpdatesOverwriteNonKeyColumns(t *testing.T) {
	sqlDB := testutil.OpenDB(t)
	ds := loadFixture(t)
	writeAt(t, sqlDB, ds, 1000)

	ds.Records("red_flags")[0]["education_url_slug"] = "self-harm-v2"
	ds.Records("forms")[0]["title"] = "Renamed"
	writeAt(t, sqlDB, ds, 2000)

	got, err := Read(context.Background(), sqlDB, workbook.Screening())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if s := got.Records("red_flags")[0].String("education_url_slug"); s != "self-harm-v2" {
		t.Fatalf("slug = %q", s)
	}
	if s := got.Records("forms")[0].String("title"); s != "Renamed" {
		t.Fatalf("title = %q", s)
	}
}

func TestRepairBackfillsNullsAndDropsBadJSON(t *testing.T) {
	sqlDB := testutil.OpenDB(t)
	ds := loadFixture(t)
	ds.Records("languages")[1]["lang_name_native"] = nil
	ds.Records("sections")[0]["display_if_jsonlogic"] = json.RawMessage(`{broken`)

	stats := writeAt(t, sqlDB, ds, 1000)
	repaired := map[string]int{}
	for _, st := range stats {
		repaired[st.Table] = st.Repaired
	}
	if repaired["languages"] != 1 || repaired["sections"] != 1 {
		t.Fatalf("repairs = %v", repaired)
	}

	got, err := Read(context.Background(), sqlDB, workbook.Screening())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	for _, r := range got.Records("languages") {
		if r.String("lang_code") == "hi" && r.String("lang_name_native") != "" {
			t.Fatalf("native name = %q, want zero value", r.String("lang_name_native"))
		}
	}
	for _, r := range got.Records("sections") {
		if r.String("section_code") == "S_MAIN" && r["display_if_jsonlogic"] != nil {
			t.Fatalf("bad json should be nulled, got %s", r["display_if_jsonlogic"])
		}
	}
}

func TestUnrepairableErrorAbortsWholeRun(t *testing.T) {
	sqlDB := testutil.OpenDB(t)
	ds := loadFixture(t)

	broken := *ds.Catalog[1]
	broken.DBName = "es_cfg_does_not_exist"
	catalog := append(workbook.Catalog{ds.Catalog[0], &broken}, ds.Catalog[2:]...)
	ds.Catalog = catalog
	ds.Tables[broken.Name].Table = &broken

	err := db.WithTx(context.Background(), sqlDB, nil, func(tx *sql.Tx) error {
		_, err := NewWriter(tx, nil).WriteAll(context.Background(), ds)
		return err
	})
	var pe *PersistenceError
	if !errors.As(err, &pe) || pe.Table != "red_flags" || pe.Repaired {
		t.Fatalf("want unrepaired PersistenceError on red_flags, got %v", err)
	}

	var n int
	if err := sqlDB.QueryRow(`SELECT COUNT(*) FROM es_cfg_languages`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatalf("languages rows = %d after rollback, want 0", n)
	}
}

func TestUpsertSQLHonorsUpdateOverride(t *testing.T) {
	rf, _ := workbook.Screening().Lookup("red_flags")
	q := UpsertSQL(rf)
	if !strings.HasSuffix(q, `DO UPDATE SET "education_url_slug"=EXCLUDED."education_url_slug"`) {
		t.Fatalf("query = %s", q)
	}
	if strings.Contains(q, `"created_at"=EXCLUDED`) {
		t.Fatalf("created_at must not be updated: %s", q)
	}
}

func TestClassifySQLiteMessages(t *testing.T) {
	rj, ok := classify(errors.New("constraint failed: NOT NULL constraint failed: es_cfg_languages.lang_name_native (1299)"))
	if !ok || !rj.notNull || rj.column != "lang_name_native" {
		t.Fatalf("classify = %+v %v", rj, ok)
	}
	if _, ok := classify(errors.New("no such table: x")); ok {
		t.Fatalf("missing table must not be repairable")
	}
}
