// Package derived pulls narrative content out of a submission's answers:
// derived lists of matching question texts and the red flags raised by
// the selected options.
package derived

import (
	"github.com/mind-engage/emoscreen/internal/grading"
	"github.com/mind-engage/emoscreen/internal/schema"
	"github.com/mind-engage/emoscreen/internal/submission"
)

type List struct {
	Code  string   `json:"code"`
	Name  string   `json:"name"`
	Items []string `json:"items"`
}

type Result struct {
	Lists []List `json:"lists"`
	// Items is every list's items flattened, first occurrence kept.
	Items []string `json:"items"`
}

// Extract evaluates the form's derived lists in declaration order. Within a
// list, questions are visited in global order. Texts are localized to lang.
func Extract(reg *schema.Registry, form *schema.Form, answers map[string]submission.Answer, lang string) Result {
	var res Result
	seen := map[string]bool{}
	for _, dl := range form.DerivedLists {
		list := List{Code: dl.Code, Name: dl.Name}
		for _, q := range form.Questions {
			if dl.SectionCode != "" && q.SectionCode != dl.SectionCode {
				continue
			}
			a, ok := answers[q.Code]
			if !ok || !matches(q, a, dl.Filter) {
				continue
			}
			text := reg.QuestionText(q, lang)
			list.Items = append(list.Items, text)
			if !seen[text] {
				seen[text] = true
				res.Items = append(res.Items, text)
			}
		}
		res.Lists = append(res.Lists, list)
	}
	return res
}

func matches(q *schema.Question, a submission.Answer, filter string) bool {
	for _, v := range a.Values {
		if grading.Matches(v, filter) {
			return true
		}
		if q.OptionSet == nil {
			continue
		}
		if o, ok := q.OptionSet.Option(v); ok && (grading.Matches(o.Value, filter) || grading.Matches(o.Label, filter)) {
			return true
		}
	}
	return false
}

type Flag struct {
	Code          string `json:"code"`
	Label         string `json:"label"`
	EducationSlug string `json:"education_slug,omitempty"`
	QuestionCode  string `json:"question_code"`
}

// RedFlags lists the red flags raised by selected options, deduplicated in
// first-seen order.
func RedFlags(reg *schema.Registry, form *schema.Form, answers map[string]submission.Answer, lang string) []Flag {
	var out []Flag
	seen := map[string]bool{}
	for _, q := range form.Questions {
		a, ok := answers[q.Code]
		if !ok || q.OptionSet == nil {
			continue
		}
		for _, v := range a.Values {
			o, ok := q.OptionSet.Option(v)
			if !ok || !o.TriggersRedFlag || o.RedFlagCode == "" || seen[o.RedFlagCode] {
				continue
			}
			seen[o.RedFlagCode] = true
			f := Flag{Code: o.RedFlagCode, Label: reg.RedFlagLabel(o.RedFlagCode, lang), QuestionCode: q.Code}
			if rf := reg.RedFlags[o.RedFlagCode]; rf != nil {
				f.EducationSlug = rf.EducationSlug
			}
			out = append(out, f)
		}
	}
	return out
}
