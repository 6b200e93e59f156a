// Package scoring turns a submission's answers into scale results and
// persists them when the submission is finalized or rescored.
package scoring

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mind-engage/emoscreen/internal/derived"
	"github.com/mind-engage/emoscreen/internal/schema"
	"github.com/mind-engage/emoscreen/internal/submission"
)

var (
	hundred = decimal.NewFromInt(100)
	// Cutoff is the fixed risk factor at which a scale enters the
	// clinician risk table. Thresholds classify but never change it.
	Cutoff = decimal.RequireFromString("0.5")
)

var errUnknownCalculation = errors.New("unknown calculation")

// ScoringError aborts the scoring of one submission only.
type ScoringError struct {
	SubmissionID string
	ScaleCode    string
	Err          error
}

func (e *ScoringError) Error() string {
	if e.ScaleCode == "" {
		return fmt.Sprintf("scoring %s: %v", e.SubmissionID, e.Err)
	}
	return fmt.Sprintf("scoring %s, scale %s: %v", e.SubmissionID, e.ScaleCode, e.Err)
}

func (e *ScoringError) Unwrap() error { return e.Err }

// Computed is the summary stored alongside the totals.
type Computed struct {
	RiskTable []string `json:"risk_table"`
	RedFlags  []string `json:"red_flags"`
}

// Evaluate scores every scale of form against answers. It has no side
// effects; the same inputs always produce the same Outcome.
func Evaluate(reg *schema.Registry, form *schema.Form, answers map[string]submission.Answer) (submission.Outcome, error) {
	out := submission.Outcome{TotalScore: decimal.Zero}
	comp := Computed{RiskTable: []string{}, RedFlags: []string{}}

	for _, sc := range form.Scales {
		row, err := EvaluateScale(sc, answers)
		if err != nil {
			return submission.Outcome{}, &ScoringError{ScaleCode: sc.Code, Err: err}
		}
		if row.Included {
			out.HasConcerns = true
			comp.RiskTable = append(comp.RiskTable, sc.Code)
		}
		out.Scales = append(out.Scales, row)
	}

	for _, q := range form.Questions {
		if a, ok := answers[q.Code]; ok && q.Scored {
			out.TotalScore = out.TotalScore.Add(a.Contribution())
		}
	}
	switch {
	case form.DeclaredMax.Valid:
		out.TotalMax = form.DeclaredMax
	case form.ComputedMax.IsPositive():
		out.TotalMax = decimal.NewNullDecimal(form.ComputedMax)
	}

	if reg != nil {
		for _, f := range derived.RedFlags(reg, form, answers, "") {
			comp.RedFlags = append(comp.RedFlags, f.Code)
		}
	}
	buf, err := json.Marshal(comp)
	if err != nil {
		return submission.Outcome{}, err
	}
	out.Computed = buf
	return out, nil
}

// EvaluateScale computes one scale's row. A scale without a positive
// maximum has risk factor zero whatever its score.
func EvaluateScale(sc *schema.Scale, answers map[string]submission.Answer) (submission.ScaleScore, error) {
	calc, ok := lookupCalculation(sc.Calculation)
	if !ok {
		return submission.ScaleScore{}, fmt.Errorf("%w %q", errUnknownCalculation, sc.Calculation)
	}
	items := make([]Item, 0, len(sc.Items))
	for _, it := range sc.Items {
		a, answered := answers[it.QuestionCode]
		items = append(items, Item{
			QuestionCode: it.QuestionCode,
			Weight:       it.Weight,
			Contribution: a.Contribution(),
			Answered:     answered,
		})
	}
	score := calc.Score(items)
	maxScore := sc.Max()

	ratio := decimal.Zero
	if maxScore.IsPositive() {
		ratio = score.Div(maxScore)
	}
	row := submission.ScaleScore{
		ScaleCode:   sc.Code,
		Score:       score,
		MaxScore:    maxScore,
		RiskFactor:  ratio.Round(4),
		RiskPercent: ratio.Mul(hundred).Round(2),
		Included:    ratio.GreaterThanOrEqual(Cutoff),
	}
	th, err := classify(sc.Thresholds, score, ratio)
	if err != nil {
		return submission.ScaleScore{}, err
	}
	if th != nil {
		row.ThresholdCode = th.Code
		row.RiskLevel = th.RiskLevel
		row.InPatientSummary = th.InPatientSummary
	}
	return row, nil
}
