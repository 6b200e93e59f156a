// Package metrics exposes Prometheus collectors for ingestion and scoring.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "emoscreen"

// Outcome labels.
const (
	OutcomeOK     = "ok"
	OutcomeFailed = "failed"
	OutcomeDryRun = "dry_run"
)

type Metrics struct {
	Registry *prometheus.Registry

	ingestRuns     *prometheus.CounterVec
	ingestDuration prometheus.Histogram
	rowsWritten    *prometheus.CounterVec
	rowsRepaired   *prometheus.CounterVec
	coercions      prometheus.Counter

	scoringRuns     *prometheus.CounterVec
	scoringDuration prometheus.Histogram
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		ingestRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ingest", Name: "runs_total",
			Help: "Workbook ingestion runs by outcome.",
		}, []string{"outcome"}),
		ingestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "ingest", Name: "duration_seconds",
			Help:    "Wall time of one ingestion run.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		rowsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ingest", Name: "rows_written_total",
			Help: "Configuration rows upserted, by table.",
		}, []string{"table"}),
		rowsRepaired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ingest", Name: "rows_repaired_total",
			Help: "Rows written only after a repair retry, by table.",
		}, []string{"table"}),
		coercions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ingest", Name: "coercion_issues_total",
			Help: "Cells that fell back to a default during loading.",
		}),
		scoringRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "scoring", Name: "runs_total",
			Help: "Submission scoring runs by kind and outcome.",
		}, []string{"kind", "outcome"}),
		scoringDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "scoring", Name: "duration_seconds",
			Help:    "Wall time of scoring one submission.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	m.Registry.MustRegister(m.ingestRuns, m.ingestDuration, m.rowsWritten, m.rowsRepaired,
		m.coercions, m.scoringRuns, m.scoringDuration)
	return m
}

func (m *Metrics) IngestRun(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.ingestRuns.WithLabelValues(outcome).Inc()
	m.ingestDuration.Observe(d.Seconds())
}

func (m *Metrics) TableWritten(table string, rows, repaired int) {
	if m == nil {
		return
	}
	m.rowsWritten.WithLabelValues(table).Add(float64(rows))
	if repaired > 0 {
		m.rowsRepaired.WithLabelValues(table).Add(float64(repaired))
	}
}

func (m *Metrics) CoercionIssues(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.coercions.Add(float64(n))
}

func (m *Metrics) ScoringRun(kind, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.scoringRuns.WithLabelValues(kind, outcome).Inc()
	m.scoringDuration.Observe(d.Seconds())
}

// WriteTextfile writes every collector in node-exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.Registry)
}
