package submission

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/mind-engage/emoscreen/internal/grading"
	"github.com/mind-engage/emoscreen/internal/schema"
	syncx "github.com/mind-engage/emoscreen/internal/sync"
	"github.com/mind-engage/emoscreen/internal/testutil"
	"github.com/mind-engage/emoscreen/internal/workbook"
)

func registry(t *testing.T) *schema.Cache {
	t.Helper()
	ds, err := workbook.NewLoader(workbook.Screening()).Load(context.Background(), testutil.Workbook())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return schema.Static(schema.Build(ds))
}

func stores(t *testing.T) map[string]Store {
	return map[string]Store{
		"memory": NewInMemoryStore(),
		"sql":    NewSQLStore(testutil.OpenDB(t), nil),
	}
}

func TestDraftLifecycle(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			svc := NewService(store, registry(t), nil, nil)
			sub, err := svc.Create(ctx, "F1", Demographics{ChildName: "Asha", ConsentGiven: true})
			if err != nil {
				t.Fatalf("create: %v", err)
			}
			if sub.Status != StatusDraft || sub.ConfigVersion != "v1" {
				t.Fatalf("created = %+v", sub)
			}

			if _, err := svc.SaveAnswers(ctx, sub.ID, map[string]any{"Q1": "OPT_3", "Q2": "always", "Q_NOTE": "sleeps late"}); err != nil {
				t.Fatalf("save: %v", err)
			}
			// Re-answering replaces the earlier value.
			if _, err := svc.SaveAnswers(ctx, sub.ID, map[string]any{"Q1": "OPT_2"}); err != nil {
				t.Fatalf("resave: %v", err)
			}
			answers, err := store.Answers(ctx, sub.ID)
			if err != nil {
				t.Fatalf("answers: %v", err)
			}
			got := AnswerMap(answers)
			if len(got) != 3 || got["Q1"].Values[0] != "OPT_2" || !got["Q1"].Score.Decimal.Equal(decimal.NewFromInt(2)) {
				t.Fatalf("answers = %+v", answers)
			}
			if got["Q2"].Values[0] != "OPT_4" || got["Q_NOTE"].Score.Valid || got["Q_NOTE"].Values[0] != "sleeps late" {
				t.Fatalf("answers = %+v", answers)
			}

			d, err := svc.UpdateDemographics(ctx, sub.ID, Demographics{ChildName: "Asha R", Gender: "F"})
			if err != nil || d.ChildName != "Asha R" {
				t.Fatalf("demographics = %+v, %v", d, err)
			}

			if _, err := store.ApplyOutcome(ctx, sub.ID, Outcome{}, false); !errors.Is(err, ErrNotFinal) {
				t.Fatalf("rescore of draft err = %v", err)
			}
			out := Outcome{
				TotalScore:  decimal.NewFromInt(6),
				TotalMax:    decimal.NewNullDecimal(decimal.NewFromInt(20)),
				HasConcerns: true,
				Scales: []ScaleScore{{ScaleCode: "SC1", Score: decimal.NewFromInt(10), MaxScore: decimal.NewFromInt(20),
					RiskFactor: decimal.RequireFromString("0.5"), RiskPercent: decimal.NewFromInt(50), Included: true, RiskLevel: "HIGH"}},
			}
			if _, err := store.ApplyOutcome(ctx, sub.ID, out, true); !errors.Is(err, ErrStale) {
				t.Fatalf("outcome read before two saves err = %v", err)
			}
			if cur, _ := store.Get(ctx, sub.ID); cur.Status != StatusDraft || cur.Revision != 2 {
				t.Fatalf("stale outcome changed the submission: %+v", cur)
			}
			out.Revision = 2
			fin, err := store.ApplyOutcome(ctx, sub.ID, out, true)
			if err != nil {
				t.Fatalf("finalize: %v", err)
			}
			if fin.Status != StatusFinal || fin.FinalizedAt == 0 || !fin.HasConcerns || !fin.TotalScore.Decimal.Equal(decimal.NewFromInt(6)) {
				t.Fatalf("final = %+v", fin)
			}
			rows, _ := store.ScaleScores(ctx, sub.ID)
			if len(rows) != 1 || !rows[0].RiskFactor.Equal(decimal.RequireFromString("0.5")) || !rows[0].Included {
				t.Fatalf("scale rows = %+v", rows)
			}

			if _, err := svc.SaveAnswers(ctx, sub.ID, map[string]any{"Q1": "OPT_0"}); !errors.Is(err, ErrFinal) {
				t.Fatalf("save after final err = %v", err)
			}
			if _, err := svc.UpdateDemographics(ctx, sub.ID, Demographics{}); !errors.Is(err, ErrFinal) {
				t.Fatalf("demographics after final err = %v", err)
			}
			list, err := store.List(ctx, ListOpts{FormCode: "F1", Status: StatusFinal})
			if err != nil || len(list) != 1 || list[0].ID != sub.ID {
				t.Fatalf("list = %+v, %v", list, err)
			}
		})
	}
}

func TestSaveAnswersRejectsWithoutWriting(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			svc := NewService(store, registry(t), nil, nil)
			sub, err := svc.Create(ctx, "F1", Demographics{})
			if err != nil {
				t.Fatalf("create: %v", err)
			}
			if _, err := svc.SaveAnswers(ctx, sub.ID, map[string]any{"Q1": "OPT_1", "NOPE": "x"}); !errors.Is(err, ErrUnknownQuestion) {
				t.Fatalf("unknown question err = %v", err)
			}
			if _, err := svc.SaveAnswers(ctx, sub.ID, map[string]any{"Q1": "OPT_1", "Q2": "OPT_9"}); !errors.Is(err, grading.ErrUnknownOption) {
				t.Fatalf("unknown option err = %v", err)
			}
			answers, _ := store.Answers(ctx, sub.ID)
			if len(answers) != 0 {
				t.Fatalf("rejected batch wrote %+v", answers)
			}
			if _, err := svc.Create(ctx, "NOPE", Demographics{}); !errors.Is(err, schema.ErrFormNotFound) {
				t.Fatalf("unknown form err = %v", err)
			}
			if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("missing err = %v", err)
			}
		})
	}
}

func TestSQLStoreRecordsEvents(t *testing.T) {
	ctx := context.Background()
	sqlDB := testutil.OpenDB(t)
	events := syncx.NewEventRepo("clinic-7")
	svc := NewService(NewSQLStore(sqlDB, events), registry(t), nil, nil)
	sub, err := svc.Create(ctx, "F1", Demographics{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.SaveAnswers(ctx, sub.ID, map[string]any{"Q1": "OPT_1"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := svc.Store().ApplyOutcome(ctx, sub.ID, Outcome{Revision: 1}, true); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if _, err := svc.Store().ApplyOutcome(ctx, sub.ID, Outcome{Revision: 1}, false); err != nil {
		t.Fatalf("rescore: %v", err)
	}
	evs, err := events.Since(ctx, sqlDB, 0, 10)
	if err != nil {
		t.Fatalf("since: %v", err)
	}
	want := []string{syncx.TypeSubmissionDraftSaved, syncx.TypeSubmissionFinalized, syncx.TypeSubmissionRescored}
	if len(evs) != len(want) {
		t.Fatalf("events = %+v", evs)
	}
	for i, e := range evs {
		if e.Type != want[i] || e.Key != sub.ID || e.SiteID != "clinic-7" {
			t.Fatalf("event %d = %+v", i, e)
		}
	}
}
