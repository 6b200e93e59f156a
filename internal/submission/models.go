// Package submission holds one caregiver's filled instance of a form: its
// demographics, captured answers and the scale results computed when it is
// finalized.
package submission

import (
	"encoding/json"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound        = errors.New("submission not found")
	ErrFinal           = errors.New("submission is final")
	ErrNotFinal        = errors.New("submission is not final")
	ErrUnknownQuestion = errors.New("question not in form")
	// ErrStale means the answers changed after they were read for scoring.
	ErrStale = errors.New("answers changed since they were read")
)

type Status string

const (
	StatusDraft Status = "DRAFT"
	StatusFinal Status = "FINAL"
)

type Demographics struct {
	ChildName      string `json:"child_name"`
	ChildDOB       string `json:"child_dob"`
	AssessmentDate string `json:"assessment_date"`
	Gender         string `json:"gender"`
	CompletedBy    string `json:"completed_by"`
	ConsentGiven   bool   `json:"consent_given"`
}

type Submission struct {
	ID            string `json:"id"`
	FormCode      string `json:"form_code"`
	ConfigVersion string `json:"config_version"`
	Demographics
	Status Status `json:"status"`

	// Totals are absent until the first scoring run.
	TotalScore           decimal.NullDecimal `json:"total_score"`
	TotalScoreMaxDisplay decimal.NullDecimal `json:"total_score_max_display"`
	HasConcerns          bool                `json:"has_concerns"`
	Computed             json.RawMessage     `json:"computed,omitempty"`

	// Revision counts committed answer saves.
	Revision int64 `json:"revision"`

	CreatedAt   int64 `json:"created_at"`
	UpdatedAt   int64 `json:"updated_at"`
	FinalizedAt int64 `json:"finalized_at,omitempty"`
}

// Answer is the stored response to one question. Values holds option codes
// for option questions and the raw text otherwise.
type Answer struct {
	SubmissionID string              `json:"submission_id"`
	QuestionCode string              `json:"question_code"`
	Values       []string            `json:"values"`
	Score        decimal.NullDecimal `json:"score"`
	UpdatedAt    int64               `json:"updated_at"`
}

// Contribution is the scored value, zero when unscored.
func (a Answer) Contribution() decimal.Decimal {
	if a.Score.Valid {
		return a.Score.Decimal
	}
	return decimal.Zero
}

type ScaleScore struct {
	SubmissionID     string          `json:"submission_id"`
	ScaleCode        string          `json:"scale_code"`
	Score            decimal.Decimal `json:"score"`
	MaxScore         decimal.Decimal `json:"max_score"`
	RiskFactor       decimal.Decimal `json:"risk_factor"`
	RiskPercent      decimal.Decimal `json:"risk_percent"`
	Included         bool            `json:"included_in_doctor_table"`
	ThresholdCode    string          `json:"threshold_code,omitempty"`
	RiskLevel        string          `json:"risk_level,omitempty"`
	InPatientSummary bool            `json:"include_in_patient_summary"`
	CreatedAt        int64           `json:"created_at"`
}

// Outcome is everything one scoring run writes back.
type Outcome struct {
	TotalScore  decimal.Decimal
	TotalMax    decimal.NullDecimal
	HasConcerns bool
	Scales      []ScaleScore
	Computed    json.RawMessage
	// Revision is the submission revision the answers were read at.
	Revision int64
}

// AnswerMap indexes answers by question code.
func AnswerMap(answers []Answer) map[string]Answer {
	m := make(map[string]Answer, len(answers))
	for _, a := range answers {
		m[a.QuestionCode] = a
	}
	return m
}
