// Package report assembles the data behind a clinician or caregiver report.
// Turning a Summary into PDF or HTML is left to a Renderer.
package report

import (
	"context"
	"encoding/json"
	"io"

	"github.com/shopspring/decimal"

	"github.com/mind-engage/emoscreen/internal/derived"
	"github.com/mind-engage/emoscreen/internal/schema"
	"github.com/mind-engage/emoscreen/internal/submission"
)

// Result message codes looked up in result_messages.
const (
	MsgNoFlags       = "NO_FLAGS"
	MsgHasFlagsIntro = "HAS_FLAGS_INTRO"
)

type ScaleRow struct {
	Code             string          `json:"code"`
	Label            string          `json:"label"`
	Group            string          `json:"group,omitempty"`
	Score            decimal.Decimal `json:"score"`
	Max              decimal.Decimal `json:"max"`
	RiskFactor       decimal.Decimal `json:"risk_factor"`
	RiskPercent      string          `json:"risk_percent"`
	RiskLevel        string          `json:"risk_level,omitempty"`
	Included         bool            `json:"included_in_doctor_table"`
	InPatientSummary bool            `json:"include_in_patient_summary"`
}

type Summary struct {
	Title         string                  `json:"title"`
	SubmissionID  string                  `json:"submission_id"`
	FormCode      string                  `json:"form_code"`
	FormTitle     string                  `json:"form_title"`
	ConfigVersion string                  `json:"config_version"`
	Status        submission.Status       `json:"status"`
	Language      string                  `json:"language"`
	Demographics  submission.Demographics `json:"demographics"`

	TotalScore decimal.Decimal     `json:"total_score"`
	TotalMax   decimal.NullDecimal `json:"total_max"`

	Scales         []ScaleRow `json:"scales"`
	RiskTable      []ScaleRow `json:"risk_table"`
	PatientSummary []ScaleRow `json:"patient_summary"`

	DerivedLists []derived.List `json:"derived_lists"`
	DerivedItems []string       `json:"derived_items"`
	RedFlags     []derived.Flag `json:"red_flags"`
	Messages     []string       `json:"messages"`
}

// Build assembles a Summary. scales are the stored rows of the last scoring
// run; a draft has none and reports only its answers.
func Build(reg *schema.Registry, form *schema.Form, sub submission.Submission, answers []submission.Answer, scales []submission.ScaleScore, lang string) *Summary {
	if lang == "" {
		lang = form.Language
	}
	s := &Summary{
		Title:         reg.UIString("report.title", lang, form.Title),
		SubmissionID:  sub.ID,
		FormCode:      form.Code,
		FormTitle:     form.Title,
		ConfigVersion: sub.ConfigVersion,
		Status:        sub.Status,
		Language:      lang,
		Demographics:  sub.Demographics,
		TotalScore:    sub.TotalScore.Decimal,
		TotalMax:      sub.TotalScoreMaxDisplay,
	}
	if !s.TotalMax.Valid {
		s.TotalMax = form.DeclaredMax
	}

	rows := map[string]submission.ScaleScore{}
	for _, r := range scales {
		rows[r.ScaleCode] = r
	}
	// Scale rows follow the form's scale order, not the store's.
	for _, sc := range form.Scales {
		r, ok := rows[sc.Code]
		if !ok {
			continue
		}
		row := ScaleRow{
			Code: sc.Code, Label: sc.Label, Group: sc.Group,
			Score: r.Score, Max: r.MaxScore, RiskFactor: r.RiskFactor,
			RiskPercent: r.RiskPercent.StringFixed(2), RiskLevel: r.RiskLevel,
			Included: r.Included, InPatientSummary: r.InPatientSummary,
		}
		s.Scales = append(s.Scales, row)
		if row.Included {
			s.RiskTable = append(s.RiskTable, row)
		}
		if row.InPatientSummary {
			s.PatientSummary = append(s.PatientSummary, row)
		}
	}

	byCode := submission.AnswerMap(answers)
	d := derived.Extract(reg, form, byCode, lang)
	s.DerivedLists, s.DerivedItems = d.Lists, d.Items
	s.RedFlags = derived.RedFlags(reg, form, byCode, lang)

	if len(s.RedFlags) == 0 {
		s.Messages = appendNonEmpty(s.Messages, reg.Message(MsgNoFlags, lang))
	} else {
		s.Messages = appendNonEmpty(s.Messages, reg.Message(MsgHasFlagsIntro, lang))
	}
	return s
}

func appendNonEmpty(xs []string, s string) []string {
	if s == "" {
		return xs
	}
	return append(xs, s)
}

// Summarize loads a submission with its answers and scale rows and builds
// its Summary against the current configuration.
func Summarize(ctx context.Context, store submission.Store, schemas *schema.Cache, id, lang string) (*Summary, error) {
	sub, err := store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	reg, err := schemas.Get(ctx)
	if err != nil {
		return nil, err
	}
	form, err := reg.Form(sub.FormCode)
	if err != nil {
		return nil, err
	}
	answers, err := store.Answers(ctx, id)
	if err != nil {
		return nil, err
	}
	scales, err := store.ScaleScores(ctx, id)
	if err != nil {
		return nil, err
	}
	return Build(reg, form, sub, answers, scales, lang), nil
}

// Renderer turns a Summary into a document.
type Renderer interface {
	Render(ctx context.Context, s *Summary, w io.Writer) error
}

// JSONRenderer writes the Summary as JSON.
type JSONRenderer struct {
	Indent bool
}

func (r JSONRenderer) Render(_ context.Context, s *Summary, w io.Writer) error {
	enc := json.NewEncoder(w)
	if r.Indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(s)
}
