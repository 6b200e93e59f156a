package scoring

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mind-engage/emoscreen/internal/logger"
	"github.com/mind-engage/emoscreen/internal/metrics"
	"github.com/mind-engage/emoscreen/internal/schema"
	"github.com/mind-engage/emoscreen/internal/submission"
)

// Run kinds, also used as metric labels.
const (
	KindFinalize = "finalize"
	KindRescore  = "rescore"
)

type Service struct {
	store       submission.Store
	schemas     *schema.Cache
	log         *logger.Logger
	metrics     *metrics.Metrics
	concurrency int
	locks       keyedLocks
}

type Option func(*Service)

func WithLogger(l *logger.Logger) Option { return func(s *Service) { s.log = logger.OrNop(l) } }
func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }

// WithConcurrency bounds ScoreBatch; values below 1 mean 1.
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n < 1 {
			n = 1
		}
		s.concurrency = n
	}
}

func NewService(store submission.Store, schemas *schema.Cache, opts ...Option) *Service {
	s := &Service{store: store, schemas: schemas, log: logger.Nop(), concurrency: 4}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Finalize scores a draft and marks it FINAL in one step. Finalizing an
// already final submission rescores it in place.
func (s *Service) Finalize(ctx context.Context, id string) (submission.Submission, error) {
	return s.run(ctx, id, KindFinalize)
}

// Rescore re-evaluates a final submission's frozen answers against the
// current configuration.
func (s *Service) Rescore(ctx context.Context, id string) (submission.Submission, error) {
	return s.run(ctx, id, KindRescore)
}

func (s *Service) run(ctx context.Context, id, kind string) (out submission.Submission, err error) {
	unlock := s.locks.lock(id)
	defer unlock()

	start := time.Now()
	defer func() {
		outcome := metrics.OutcomeOK
		if err != nil {
			outcome = metrics.OutcomeFailed
		}
		s.metrics.ScoringRun(kind, outcome, time.Since(start))
	}()

	for attempt := 1; ; attempt++ {
		out, err = s.score(ctx, id, kind)
		if !errors.Is(err, submission.ErrStale) || attempt == maxAttempts {
			return out, err
		}
		s.log.Warn("answers changed while scoring, retrying", "id", id, "kind", kind, "attempt", attempt)
	}
}

// maxAttempts bounds retries when a draft save lands between reading the
// answers and writing the outcome.
const maxAttempts = 3

// score reads the submission revision before its answers, so an outcome
// computed from answers that have since changed is rejected by the store.
func (s *Service) score(ctx context.Context, id, kind string) (submission.Submission, error) {
	sub, err := s.store.Get(ctx, id)
	if err != nil {
		return submission.Submission{}, err
	}
	if kind == KindRescore && sub.Status != submission.StatusFinal {
		return submission.Submission{}, submission.ErrNotFinal
	}
	reg, err := s.schemas.Get(ctx)
	if err != nil {
		return submission.Submission{}, err
	}
	form, err := reg.Form(sub.FormCode)
	if err != nil {
		return submission.Submission{}, &ScoringError{SubmissionID: id, Err: err}
	}
	answers, err := s.store.Answers(ctx, id)
	if err != nil {
		return submission.Submission{}, err
	}

	// Evaluate before touching the store so a failure keeps prior rows.
	outcome, err := Evaluate(reg, form, submission.AnswerMap(answers))
	if err != nil {
		var se *ScoringError
		if errors.As(err, &se) {
			se.SubmissionID = id
		}
		s.log.Warn("scoring failed", "id", id, "kind", kind, "err", err)
		return submission.Submission{}, err
	}
	outcome.Revision = sub.Revision
	out, err := s.store.ApplyOutcome(ctx, id, outcome, kind == KindFinalize)
	if err != nil {
		return submission.Submission{}, err
	}
	s.log.Info("submission scored", "id", id, "kind", kind, "total", outcome.TotalScore.String(),
		"has_concerns", outcome.HasConcerns, "scales", len(outcome.Scales))
	return out, nil
}

// BatchResult reports one submission of a batch.
type BatchResult struct {
	ID  string
	Err error
}

// ScoreBatch rescores ids concurrently. One submission failing does not
// stop the others; the joined error lists every failure.
func (s *Service) ScoreBatch(ctx context.Context, ids []string) ([]BatchResult, error) {
	results := make([]BatchResult, len(ids))
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			results[i].ID = id
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			_, results[i].Err = s.Rescore(ctx, id)
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.ID, r.Err))
		}
	}
	return results, errors.Join(errs...)
}

// RescoreForm rescores every final submission of a form, typically after a
// configuration re-ingest.
func (s *Service) RescoreForm(ctx context.Context, formCode string) ([]BatchResult, error) {
	subs, err := s.store.List(ctx, submission.ListOpts{FormCode: formCode, Status: submission.StatusFinal})
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(subs))
	for i, sub := range subs {
		ids[i] = sub.ID
	}
	s.log.Info("rescoring form", "form", formCode, "submissions", len(ids), "concurrency", s.concurrency)
	return s.ScoreBatch(ctx, ids)
}
