package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.IngestRun(OutcomeOK, 120*time.Millisecond)
	m.TableWritten("forms", 3, 1)
	m.ScoringRun("finalize", OutcomeOK, time.Millisecond)

	path := filepath.Join(t.TempDir(), "emoscreen.prom")
	if err := m.WriteTextfile(path); err != nil {
		t.Fatalf("write: %v", err)
	}
	buf, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	for _, want := range []string{
		`emoscreen_ingest_runs_total{outcome="ok"} 1`,
		`emoscreen_ingest_rows_written_total{table="forms"} 3`,
		`emoscreen_ingest_rows_repaired_total{table="forms"} 1`,
		`emoscreen_scoring_runs_total{kind="finalize",outcome="ok"} 1`,
	} {
		if !strings.Contains(string(buf), want) {
			t.Fatalf("textfile missing %q:\n%s", want, buf)
		}
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.IngestRun(OutcomeFailed, time.Second)
	m.TableWritten("forms", 1, 1)
	m.CoercionIssues(2)
	m.ScoringRun("rescore", OutcomeFailed, time.Second)
	if err := m.WriteTextfile("/nonexistent/x.prom"); err != nil {
		t.Fatalf("nil write: %v", err)
	}
}
