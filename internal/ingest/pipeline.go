package ingest

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/emoscreen/internal/cfgstore"
	"github.com/mind-engage/emoscreen/internal/db"
	"github.com/mind-engage/emoscreen/internal/logger"
	"github.com/mind-engage/emoscreen/internal/metrics"
	"github.com/mind-engage/emoscreen/internal/schema"
	"github.com/mind-engage/emoscreen/internal/storage"
	syncx "github.com/mind-engage/emoscreen/internal/sync"
	"github.com/mind-engage/emoscreen/internal/workbook"
)

// Result describes one ingestion run.
type Result struct {
	RunID      string
	DryRun     bool
	Tables     []cfgstore.TableStats
	Issues     []workbook.CoercionError
	Mismatches []string
	Archived   string // blob key of the archived workbook, if any
	Registry   *schema.Registry
}

// Rows is the total number of rows written.
func (r *Result) Rows() int {
	n := 0
	for _, t := range r.Tables {
		n += t.Rows
	}
	return n
}

// Pipeline runs load, validate and write as one unit of work: either every
// table is written or none is.
type Pipeline struct {
	db        *sql.DB
	catalog   workbook.Catalog
	validator *Validator
	cache     *schema.Cache
	blobs     storage.BlobStore
	events    *syncx.EventRepo
	metrics   *metrics.Metrics
	log       *logger.Logger

	// one run at a time per process
	mu sync.Mutex
}

type Option func(*Pipeline)

func WithLogger(l *logger.Logger) Option { return func(p *Pipeline) { p.log = logger.OrNop(l) } }
func WithCache(c *schema.Cache) Option { return func(p *Pipeline) { p.cache = c } }
func WithArchive(b storage.BlobStore) Option { return func(p *Pipeline) { p.blobs = b } }
func WithEvents(e *syncx.EventRepo) Option { return func(p *Pipeline) { p.events = e } }
func WithMetrics(m *metrics.Metrics) Option { return func(p *Pipeline) { p.metrics = m } }
func WithCatalog(c workbook.Catalog) Option { return func(p *Pipeline) { p.catalog = c } }
func WithValidator(v *Validator) Option { return func(p *Pipeline) { p.validator = v } }

func NewPipeline(sqlDB *sql.DB, opts ...Option) *Pipeline {
	p := &Pipeline{
		db:        sqlDB,
		catalog:   workbook.Screening(),
		validator: ScreeningValidator(),
		events:    syncx.NewEventRepo(""),
		log:       logger.Nop(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Check loads and validates src and builds its registry without writing.
func (p *Pipeline) Check(ctx context.Context, src workbook.Source) (*Result, error) {
	return p.run(ctx, src, true)
}

// Run ingests src. A SchemaError, ReferentialError or PersistenceError
// leaves the store untouched.
func (p *Pipeline) Run(ctx context.Context, src workbook.Source) (*Result, error) {
	return p.run(ctx, src, false)
}

func (p *Pipeline) run(ctx context.Context, src workbook.Source, dryRun bool) (res *Result, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := time.Now()
	res = &Result{RunID: uuid.NewString(), DryRun: dryRun}
	log := p.log.With("run", res.RunID)
	defer func() {
		outcome := metrics.OutcomeOK
		switch {
		case err != nil:
			outcome = metrics.OutcomeFailed
			log.Error("ingestion failed", "err", err)
		case dryRun:
			outcome = metrics.OutcomeDryRun
		}
		p.metrics.IngestRun(outcome, time.Since(start))
	}()

	ds, err := workbook.NewLoader(p.catalog, workbook.WithLogger(log)).Load(ctx, src)
	if err != nil {
		return nil, err
	}
	res.Issues = ds.Issues
	p.metrics.CoercionIssues(len(ds.Issues))
	for _, is := range ds.Issues {
		log.Warn("value coerced", "table", is.Table, "row", is.Row, "column", is.Column, "reason", is.Reason)
	}

	if err := p.validator.Validate(ds); err != nil {
		return nil, err
	}

	reg := schema.Build(ds)
	reg.Annotate(ds)
	res.Registry = reg
	res.Mismatches = reg.Mismatches()
	for _, m := range res.Mismatches {
		log.Warn("maximum mismatch", "detail", m)
	}
	if dryRun {
		log.Info("workbook valid", "forms", len(reg.Forms), "issues", len(ds.Issues))
		return res, nil
	}

	err = db.WithTx(ctx, p.db, nil, func(tx *sql.Tx) error {
		stats, err := cfgstore.NewWriter(tx, log).WriteAll(ctx, ds)
		if err != nil {
			return err
		}
		res.Tables = stats
		return p.events.Append(ctx, tx, syncx.TypeConfigIngested, res.RunID, map[string]any{
			"tables": len(stats),
			"rows":   res.Rows(),
			"forms":  reg.FormCodes(),
		})
	})
	if err != nil {
		return nil, err
	}
	for _, st := range res.Tables {
		p.metrics.TableWritten(st.Table, st.Rows, st.Repaired)
	}
	if p.cache != nil {
		p.cache.Invalidate()
	}

	if key, err := p.archive(ctx, res.RunID, src); err != nil {
		// The run is committed; a failed archive only loses the copy.
		log.Warn("archive failed", "err", err)
	} else {
		res.Archived = key
	}
	log.Info("ingestion committed", "tables", len(res.Tables), "rows", res.Rows(), "archived", res.Archived)
	return res, nil
}

func (p *Pipeline) archive(ctx context.Context, runID string, src workbook.Source) (string, error) {
	x, ok := src.(*workbook.XLSXSource)
	if p.blobs == nil || !ok {
		return "", nil
	}
	data, err := x.Bytes()
	if err != nil {
		return "", err
	}
	return p.blobs.Put(ctx, fmt.Sprintf("workbooks/%s.xlsx", runID), bytes.NewReader(data))
}
