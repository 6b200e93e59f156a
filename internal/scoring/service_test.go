package scoring

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/mind-engage/emoscreen/internal/schema"
	"github.com/mind-engage/emoscreen/internal/submission"
	"github.com/mind-engage/emoscreen/internal/testutil"
)

type fixture struct {
	store   submission.Store
	schemas *schema.Cache
	drafts  *submission.Service
}

func newFixture(t *testing.T, store submission.Store) fixture {
	t.Helper()
	cache := schema.Static(buildRegistry(t, testutil.Workbook()))
	return fixture{store: store, schemas: cache, drafts: submission.NewService(store, cache, nil, nil)}
}

func (f fixture) answered(t *testing.T, raw map[string]any) string {
	t.Helper()
	ctx := context.Background()
	sub, err := f.drafts.Create(ctx, "F1", submission.Demographics{ChildName: "Ravi"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.drafts.SaveAnswers(ctx, sub.ID, raw); err != nil {
		t.Fatalf("answers: %v", err)
	}
	return sub.ID
}

func TestFinalizeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, submission.NewSQLStore(testutil.OpenDB(t), nil))
	id := f.answered(t, map[string]any{"Q1": "OPT_3", "Q2": "OPT_4"})
	svc := NewService(f.store, f.schemas)

	if _, err := svc.Rescore(ctx, id); !errors.Is(err, submission.ErrNotFinal) {
		t.Fatalf("rescore draft err = %v", err)
	}
	sub, err := svc.Finalize(ctx, id)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if sub.Status != submission.StatusFinal || !sub.HasConcerns {
		t.Fatalf("finalized = %+v", sub)
	}
	first, _ := f.store.ScaleScores(ctx, id)
	if _, err := svc.Finalize(ctx, id); err != nil {
		t.Fatalf("second finalize: %v", err)
	}
	if _, err := svc.Rescore(ctx, id); err != nil {
		t.Fatalf("rescore: %v", err)
	}
	second, _ := f.store.ScaleScores(ctx, id)
	if len(first) != 2 || len(second) != 2 {
		t.Fatalf("rows = %d, %d", len(first), len(second))
	}
	for i := range first {
		a, b := first[i], second[i]
		a.CreatedAt, b.CreatedAt = 0, 0
		if !a.Score.Equal(b.Score) || !a.RiskFactor.Equal(b.RiskFactor) || a.Included != b.Included || a.RiskLevel != b.RiskLevel {
			t.Fatalf("rerun changed %s: %+v vs %+v", a.ScaleCode, a, b)
		}
	}
}

func TestFailedRescoreKeepsPriorRows(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, submission.NewSQLStore(testutil.OpenDB(t), nil))
	id := f.answered(t, map[string]any{"Q1": "OPT_3", "Q2": "OPT_4"})
	if _, err := NewService(f.store, f.schemas).Finalize(ctx, id); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	before, _ := f.store.ScaleScores(ctx, id)

	broken := testutil.Workbook()
	broken["scales"][1][3] = "MEDIAN"
	svc := NewService(f.store, schema.Static(buildRegistry(t, broken)))
	_, err := svc.Rescore(ctx, id)
	var se *ScoringError
	if !errors.As(err, &se) || se.SubmissionID != id || se.ScaleCode != "SC1" {
		t.Fatalf("rescore err = %v", err)
	}
	after, _ := f.store.ScaleScores(ctx, id)
	if !reflect.DeepEqual(before, after) {
		t.Fatalf("failed rescore touched rows:\n%+v\n%+v", before, after)
	}
}

func TestRescoreFormRunsConcurrently(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, submission.NewInMemoryStore())
	svc := NewService(f.store, f.schemas, WithConcurrency(2))

	var ids []string
	for i := 0; i < 5; i++ {
		id := f.answered(t, map[string]any{"Q1": "OPT_1"})
		if _, err := svc.Finalize(ctx, id); err != nil {
			t.Fatalf("finalize: %v", err)
		}
		ids = append(ids, id)
	}
	draft := f.answered(t, map[string]any{"Q2": "OPT_2"})

	res, err := svc.RescoreForm(ctx, "F1")
	if err != nil || len(res) != len(ids) {
		t.Fatalf("rescore form = %+v, %v", res, err)
	}

	res, err = svc.ScoreBatch(ctx, append([]string{draft}, ids...))
	if !errors.Is(err, submission.ErrNotFinal) {
		t.Fatalf("batch err = %v", err)
	}
	if res[0].Err == nil || res[1].Err != nil || len(res) != 6 {
		t.Fatalf("batch results = %+v", res)
	}
}

// saveAfterRead runs save once, right after the first Answers call returns.
type saveAfterRead struct {
	submission.Store
	save func()
}

func (s *saveAfterRead) Answers(ctx context.Context, id string) ([]submission.Answer, error) {
	out, err := s.Store.Answers(ctx, id)
	if s.save != nil {
		save := s.save
		s.save = nil
		save()
	}
	return out, err
}

func TestFinalizeScoresAnswersSavedDuringRun(t *testing.T) {
	ctx := context.Background()
	stores := map[string]submission.Store{
		"memory": submission.NewInMemoryStore(),
		"sql":    submission.NewSQLStore(testutil.OpenDB(t), nil),
	}
	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, store)
			id := f.answered(t, map[string]any{"Q1": "OPT_0", "Q2": "OPT_0"})
			racing := &saveAfterRead{Store: store, save: func() {
				if _, err := f.drafts.SaveAnswers(ctx, id, map[string]any{"Q1": "OPT_4", "Q2": "OPT_4"}); err != nil {
					t.Errorf("concurrent save: %v", err)
				}
			}}

			sub, err := NewService(racing, f.schemas).Finalize(ctx, id)
			if err != nil {
				t.Fatalf("finalize: %v", err)
			}
			answers, _ := store.Answers(ctx, id)
			if got := submission.AnswerMap(answers)["Q1"].Values; len(got) != 1 || got[0] != "OPT_4" {
				t.Fatalf("frozen Q1 = %v", got)
			}
			if sub.Status != submission.StatusFinal || sub.TotalScore.Decimal.String() != "8" || !sub.HasConcerns {
				t.Fatalf("final = status %s total %s concerns %v", sub.Status, sub.TotalScore.Decimal, sub.HasConcerns)
			}
			rows, _ := store.ScaleScores(ctx, id)
			for _, r := range rows {
				if r.ScaleCode == "SC1" && r.Score.String() != "12" {
					t.Fatalf("SC1 score = %s, want 12", r.Score)
				}
			}
		})
	}
}
