package scoring

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/mind-engage/emoscreen/internal/schema"
	"github.com/mind-engage/emoscreen/internal/submission"
	"github.com/mind-engage/emoscreen/internal/testutil"
	"github.com/mind-engage/emoscreen/internal/workbook"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func buildRegistry(t *testing.T, src workbook.MemorySource) *schema.Registry {
	t.Helper()
	ds, err := workbook.NewLoader(workbook.Screening()).Load(context.Background(), src)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return schema.Build(ds)
}

func form(t *testing.T, reg *schema.Registry) *schema.Form {
	t.Helper()
	f, err := reg.Form("F1")
	if err != nil {
		t.Fatalf("form: %v", err)
	}
	return f
}

func scored(code string, v int64) submission.Answer {
	return submission.Answer{QuestionCode: code, Values: []string{"x"}, Score: decimal.NewNullDecimal(decimal.NewFromInt(v))}
}

func byScale(o submission.Outcome) map[string]submission.ScaleScore {
	m := map[string]submission.ScaleScore{}
	for _, s := range o.Scales {
		m[s.ScaleCode] = s
	}
	return m
}

func TestWeightedScaleAtCutoff(t *testing.T) {
	reg := buildRegistry(t, testutil.Workbook())
	out, err := Evaluate(reg, form(t, reg), map[string]submission.Answer{"Q1": scored("Q1", 3), "Q2": scored("Q2", 4)})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	sc1 := byScale(out)["SC1"]
	if !sc1.Score.Equal(dec("10")) || !sc1.MaxScore.Equal(dec("20")) || !sc1.RiskFactor.Equal(dec("0.5")) {
		t.Fatalf("SC1 = %+v", sc1)
	}
	if sc1.RiskPercent.StringFixed(2) != "50.00" || !sc1.Included {
		t.Fatalf("SC1 percent/inclusion = %s %v", sc1.RiskPercent.StringFixed(2), sc1.Included)
	}
	if sc1.ThresholdCode != "TH_SC1_HIGH" || sc1.RiskLevel != "HIGH" || !sc1.InPatientSummary {
		t.Fatalf("SC1 threshold = %+v", sc1)
	}
	if !out.HasConcerns || !out.TotalScore.Equal(dec("7")) || !out.TotalMax.Decimal.Equal(dec("20")) {
		t.Fatalf("totals = %+v", out)
	}
	if string(out.Computed) != `{"risk_table":["SC1"],"red_flags":[]}` {
		t.Fatalf("computed = %s", out.Computed)
	}
}

func TestUnansweredItemContributesZero(t *testing.T) {
	reg := buildRegistry(t, testutil.Workbook())
	out, err := Evaluate(reg, form(t, reg), map[string]submission.Answer{"Q1": scored("Q1", 3)})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	sc1 := byScale(out)["SC1"]
	if !sc1.Score.Equal(dec("6")) || !sc1.RiskFactor.Equal(dec("0.3")) || sc1.Included {
		t.Fatalf("SC1 = %+v", sc1)
	}
	if sc1.RiskLevel != "LOW" || sc1.InPatientSummary || out.HasConcerns {
		t.Fatalf("classification = %+v, concerns %v", sc1, out.HasConcerns)
	}
}

func TestNoAnswersScoresZero(t *testing.T) {
	reg := buildRegistry(t, testutil.Workbook())
	out, err := Evaluate(reg, form(t, reg), nil)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(out.Scales) != 2 || out.HasConcerns || !out.TotalScore.IsZero() {
		t.Fatalf("outcome = %+v", out)
	}
	for _, s := range out.Scales {
		if !s.Score.IsZero() || !s.RiskFactor.IsZero() || s.Included {
			t.Fatalf("scale %s = %+v", s.ScaleCode, s)
		}
	}
}

func TestZeroMaxNeverDivides(t *testing.T) {
	sc := &schema.Scale{
		Code:  "S",
		Items: []*schema.ScaleItem{{QuestionCode: "Q", Weight: dec("1")}},
	}
	row, err := EvaluateScale(sc, map[string]submission.Answer{"Q": scored("Q", 9)})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !row.Score.Equal(dec("9")) || !row.MaxScore.IsZero() || !row.RiskFactor.IsZero() || row.Included {
		t.Fatalf("row = %+v", row)
	}
}

func TestFlaggedAnswersRecorded(t *testing.T) {
	reg := buildRegistry(t, testutil.Workbook())
	ans := map[string]submission.Answer{"Q_FLAG": {QuestionCode: "Q_FLAG", Values: []string{"FLAG_YES"}}}
	out, err := Evaluate(reg, form(t, reg), ans)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if string(out.Computed) != `{"risk_table":[],"red_flags":["RF_SELF_HARM"]}` {
		t.Fatalf("computed = %s", out.Computed)
	}
}

func TestMalformedScaleConfigFails(t *testing.T) {
	sc := &schema.Scale{Code: "S", Calculation: "MEDIAN"}
	if _, err := EvaluateScale(sc, nil); !errors.Is(err, errUnknownCalculation) {
		t.Fatalf("calculation err = %v", err)
	}
	sc = &schema.Scale{Code: "S", Thresholds: []*schema.Threshold{{Code: "T", Basis: "percent", Comparator: "~", Value: dec("1")}}}
	if _, err := EvaluateScale(sc, nil); err == nil {
		t.Fatalf("unknown comparator accepted")
	}
	sc = &schema.Scale{Code: "S", Thresholds: []*schema.Threshold{{Code: "T", Basis: "zscore", Comparator: ">=", Value: dec("1")}}}
	if _, err := EvaluateScale(sc, nil); err == nil {
		t.Fatalf("unknown basis accepted")
	}
}

func TestThresholdBases(t *testing.T) {
	ths := []*schema.Threshold{
		{Code: "RAW", Basis: "raw", Comparator: ">", Value: dec("8")},
		{Code: "RATIO", Basis: "ratio", Comparator: "gte", Value: dec("0.25")},
	}
	th, err := classify(ths, dec("8"), dec("0.4"))
	if err != nil || th == nil || th.Code != "RATIO" {
		t.Fatalf("classify = %+v, %v", th, err)
	}
	th, _ = classify(ths, dec("9"), dec("0.4"))
	if th.Code != "RAW" {
		t.Fatalf("priority order not kept: %s", th.Code)
	}
	if th, _ := classify(ths, dec("1"), dec("0.1")); th != nil {
		t.Fatalf("unexpected match %s", th.Code)
	}
}
