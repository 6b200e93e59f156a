// Package schema is the validated, in-memory view of the screening
// configuration: forms, their sections, questions, option sets, scales,
// thresholds, derived lists and report templates, keyed by business code.
package schema

import (
	"encoding/json"
	"errors"

	"github.com/shopspring/decimal"
)

var ErrFormNotFound = errors.New("form not found")

type Form struct {
	Code         string
	Title        string
	AgeMinMonths int64
	AgeMaxMonths int64
	Language     string
	Version      string
	Active       bool

	SymptomQuestionCount int64
	QuestionFieldCount   int64

	// DeclaredMax is author-entered; ComputedMax is derived from the
	// questions. They are kept apart because they may disagree.
	DeclaredMax decimal.NullDecimal
	ComputedMax decimal.Decimal
	MaxMismatch bool

	Sections     []*Section
	Questions    []*Question // ascending global order
	Scales       []*Scale
	DerivedLists []*DerivedList
	Rules        []*Rule
	Templates    []*ReportTemplate

	questions map[string]*Question
	sections  map[string]*Section
}

func (f *Form) Question(code string) (*Question, bool) {
	q, ok := f.questions[code]
	return q, ok
}

func (f *Form) Section(code string) (*Section, bool) {
	s, ok := f.sections[code]
	return s, ok
}

type Section struct {
	Code             string
	FormCode         string
	Key              string
	Title            string
	InstructionsHTML string
	DisplayOrder     int64
	DisplayIf        json.RawMessage // persisted, not evaluated
}

type OptionSet struct {
	Code    string
	Name    string
	Widget  string
	IsMulti bool
	Options []*Option // ascending option order
}

func (s *OptionSet) Option(code string) (*Option, bool) {
	for _, o := range s.Options {
		if o.Code == code {
			return o, true
		}
	}
	return nil, false
}

type Option struct {
	Code            string
	SetCode         string
	Order           int64
	Value           string
	Label           string
	Score           decimal.NullDecimal
	TriggersRedFlag bool
	RedFlagCode     string
}

// Contribution is the option's score, zero when it carries none.
func (o *Option) Contribution() decimal.Decimal {
	if o.Score.Valid {
		return o.Score.Decimal
	}
	return decimal.Zero
}

type Question struct {
	Code             string
	FormCode         string
	SectionCode      string
	Key              string
	Order            int64
	GlobalOrder      int64
	LegacyFieldName  string
	Text             string
	Type             string
	OptionSet        *OptionSet // nil for free-text and numeric questions
	Required         bool
	ResponseDataType string
	Scored           bool
	StoreTarget      string
	Validation       json.RawMessage
	DisplayIf        json.RawMessage // persisted, not evaluated

	// MaxContribution is the largest score an answer to this question can
	// contribute before weighting.
	MaxContribution decimal.Decimal
}

type Scale struct {
	Code        string
	FormCode    string
	Key         string
	Label       string
	Calculation string
	Override    decimal.NullDecimal
	Group       string
	Expression  json.RawMessage // persisted, not evaluated
	SheetOrder  int64

	Items      []*ScaleItem // ascending item order
	Thresholds []*Threshold // ascending priority, then code

	ComputedMax  decimal.Decimal
	MaxMismatch  bool
	MismatchNote string
}

// Max is the override when declared, else the computed maximum.
func (s *Scale) Max() decimal.Decimal {
	if s.Override.Valid {
		return s.Override.Decimal
	}
	return s.ComputedMax
}

type ScaleItem struct {
	ScaleCode    string
	QuestionCode string
	Weight       decimal.Decimal
	Order        int64
}

type Threshold struct {
	Code             string
	ScaleCode        string
	Basis            string
	Comparator       string
	Value            decimal.Decimal
	RiskLevel        string
	InRiskTable      bool
	InPatientSummary bool
	Priority         int64
}

type DerivedList struct {
	Code        string
	FormCode    string
	Name        string
	SectionCode string // empty means every section
	Filter      string
	SheetOrder  int64
}

type Rule struct {
	Code       string
	FormCode   string
	OutputKey  string
	Expression json.RawMessage // persisted, not evaluated
}

type ReportTemplate struct {
	Code           string
	FormCode       string
	ReportType     string
	Title          string
	OutputFormat   string
	HeaderLogoPath string
	FooterCompany  string
	FooterTagline  string
	FooterPhone    string
	FooterEmail    string
	DisclaimerHTML string
	Blocks         []*ReportBlock
}

type ReportBlock struct {
	Code             string
	TemplateCode     string
	Order            int64
	Type             string
	Title            string
	TextTemplateHTML string
	IncludeIf        json.RawMessage
	Params           json.RawMessage
	SectionCodes     []string
	ScaleCodes       []string
}

type RedFlag struct {
	Code          string
	EducationSlug string
	Labels        map[string]string // lang -> parent label
	Education     map[string]Education
}

type Education struct {
	Markdown   string
	Reference1 string
	Reference2 string
}

type Language struct {
	Code        string
	NameEnglish string
	NameNative  string
}
