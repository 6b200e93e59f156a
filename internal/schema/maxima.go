package schema

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mind-engage/emoscreen/internal/workbook"
)

// QuestionMax is the largest unweighted contribution an answer to q can
// make. Single-select questions contribute their best option (never below
// zero), multi-select questions the sum of their positive options.
// Unscored questions and scored questions without an option set contribute
// nothing to the maximum.
func QuestionMax(q *Question) decimal.Decimal {
	if !q.Scored || q.OptionSet == nil {
		return decimal.Zero
	}
	best := decimal.Zero
	for _, o := range q.OptionSet.Options {
		c := o.Contribution()
		if q.OptionSet.IsMulti {
			if c.IsPositive() {
				best = best.Add(c)
			}
			continue
		}
		if c.GreaterThan(best) {
			best = c
		}
	}
	return best
}

func computeMaxima(f *Form) {
	total := decimal.Zero
	for _, q := range f.Questions {
		q.MaxContribution = QuestionMax(q)
		total = total.Add(q.MaxContribution)
	}
	f.ComputedMax = total
	f.MaxMismatch = f.DeclaredMax.Valid && !f.DeclaredMax.Decimal.Equal(total)

	for _, s := range f.Scales {
		sum := decimal.Zero
		for _, it := range s.Items {
			if q, ok := f.questions[it.QuestionCode]; ok {
				sum = sum.Add(it.Weight.Mul(q.MaxContribution))
			}
		}
		s.ComputedMax = sum
		s.MaxMismatch = s.Override.Valid && !s.Override.Decimal.Equal(sum)
		s.MismatchNote = ""
		if s.MaxMismatch {
			s.MismatchNote = fmt.Sprintf("declared max %s differs from computed max %s", s.Override.Decimal, sum)
		}
	}
}

// Mismatches lists a human-readable line for every scale and form whose
// declared maximum disagrees with the computed one.
func (r *Registry) Mismatches() []string {
	var out []string
	for _, code := range r.FormCodes() {
		f := r.Forms[code]
		if f.MaxMismatch {
			out = append(out, fmt.Sprintf("form %s: declared max %s differs from computed max %s", f.Code, f.DeclaredMax.Decimal, f.ComputedMax))
		}
		for _, s := range f.Scales {
			if s.MaxMismatch {
				out = append(out, fmt.Sprintf("scale %s: %s", s.Code, s.MismatchNote))
			}
		}
	}
	return out
}

// Annotate writes the engine-computed maxima back onto the dataset so they
// are persisted alongside the authored values.
func (r *Registry) Annotate(ds *workbook.Dataset) {
	for _, rec := range ds.Records(workbook.SheetForms) {
		if f, ok := r.Forms[rec.String("form_code")]; ok {
			rec["total_score_max_computed"] = f.ComputedMax
		}
	}
	scales := map[string]*Scale{}
	for _, f := range r.Forms {
		for _, s := range f.Scales {
			scales[s.Code] = s
		}
	}
	for _, rec := range ds.Records(workbook.SheetScales) {
		s, ok := scales[rec.String("scale_code")]
		if !ok {
			continue
		}
		rec["max_score_computed"] = s.ComputedMax
		rec["max_mismatch"] = s.MaxMismatch
		rec["max_mismatch_note"] = s.MismatchNote
	}
}
