package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mind-engage/emoscreen/internal/testutil"
)

func writeCSVDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for name, rows := range testutil.Workbook() {
		f, err := os.Create(filepath.Join(dir, name+".csv"))
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		w := csv.NewWriter(f)
		for _, row := range rows {
			rec := make([]string, len(row))
			for i, c := range row {
				rec[i] = fmt.Sprint(c)
			}
			_ = w.Write(rec)
		}
		w.Flush()
		if err := f.Close(); err != nil || w.Error() != nil {
			t.Fatalf("write %s: %v %v", name, err, w.Error())
		}
	}
	return dir
}

func env(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("LOG_MODE", "prod")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_DSN", "file:"+filepath.Join(dir, "cli.db")+"?_pragma=busy_timeout(5000)")
	t.Setenv("BLOB_DRIVER", "fs")
	t.Setenv("BLOB_BASE_PATH", filepath.Join(dir, "blobs"))
	t.Setenv("METRICS_TEXTFILE", filepath.Join(dir, "screenctl.prom"))
}

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd(&app{})
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--env-file", filepath.Join(t.TempDir(), "none.env")}, args...))
	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("screenctl %v: %v\n%s", args, err, out.String())
	}
	return out.String()
}

func TestParseAnswers(t *testing.T) {
	got, err := parseAnswers([]string{"Q1=OPT_1", " Q2 =a,b", "Q3="})
	if err != nil || got["Q1"] != "OPT_1" || got["Q2"] != "a,b" || got["Q3"] != "" {
		t.Fatalf("parse = %v, %v", got, err)
	}
	if _, err := parseAnswers([]string{"novalue"}); err == nil {
		t.Fatalf("missing '=' accepted")
	}
}

func TestEndToEnd(t *testing.T) {
	env(t)
	csvDir := writeCSVDir(t)

	out := run(t, "validate", "--csv-dir", csvDir)
	if !strings.Contains(out, `"F1"`) || !strings.Contains(out, `"dry_run": true`) {
		t.Fatalf("validate output:\n%s", out)
	}
	out = run(t, "ingest", "--csv-dir", csvDir)
	if !strings.Contains(out, `"questions": [`) {
		t.Fatalf("ingest output:\n%s", out)
	}

	var sub struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal([]byte(run(t, "submission", "create", "--form", "F1", "--child-name", "Dev")), &sub); err != nil {
		t.Fatalf("create output: %v", err)
	}
	run(t, "submission", "answer", sub.ID, "Q1=OPT_3", "Q2=OPT_4", "AE1=yes")
	if err := json.Unmarshal([]byte(run(t, "submission", "finalize", sub.ID)), &sub); err != nil || sub.Status != "FINAL" {
		t.Fatalf("finalize = %+v, %v", sub, err)
	}
	out = run(t, "submission", "rescore-form", "F1")
	if !strings.Contains(out, "rescored 1 submission(s)") {
		t.Fatalf("rescore-form output: %s", out)
	}

	out = run(t, "submission", "summary", sub.ID, "--lang", "en")
	for _, want := range []string{`"risk_percent": "50.00"`, `"Rash"`, `"No areas of concern were found."`} {
		if !strings.Contains(out, want) {
			t.Fatalf("summary missing %s:\n%s", want, out)
		}
	}
	if _, err := os.Stat(os.Getenv("METRICS_TEXTFILE")); err != nil {
		t.Fatalf("metrics textfile: %v", err)
	}
}
