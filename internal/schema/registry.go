package schema

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/mind-engage/emoscreen/internal/workbook"
)

// Registry is read-only once built and safe for concurrent readers.
type Registry struct {
	Forms      map[string]*Form
	OptionSets map[string]*OptionSet
	Options    map[string]*Option
	RedFlags   map[string]*RedFlag
	Languages  map[string]Language

	messages     map[string]map[string]string // code -> lang -> text
	uiStrings    map[string]map[string]string
	questionText map[string]map[string]string
	optionText   map[string]map[string]string
}

func (r *Registry) Form(code string) (*Form, error) {
	f, ok := r.Forms[code]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFormNotFound, code)
	}
	return f, nil
}

// FormCodes lists every form code in sorted order.
func (r *Registry) FormCodes() []string {
	out := make([]string, 0, len(r.Forms))
	for c := range r.Forms {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Build assembles a Registry from a validated Dataset and computes every
// question, scale and form maximum.
func Build(ds *workbook.Dataset) *Registry {
	r := &Registry{
		Forms:        map[string]*Form{},
		OptionSets:   map[string]*OptionSet{},
		Options:      map[string]*Option{},
		RedFlags:     map[string]*RedFlag{},
		Languages:    map[string]Language{},
		messages:     map[string]map[string]string{},
		uiStrings:    map[string]map[string]string{},
		questionText: map[string]map[string]string{},
		optionText:   map[string]map[string]string{},
	}

	for _, rec := range ds.Records(workbook.SheetLanguages) {
		l := Language{Code: rec.String("lang_code"), NameEnglish: rec.String("lang_name_english"), NameNative: rec.String("lang_name_native")}
		r.Languages[l.Code] = l
	}
	r.buildRedFlags(ds)
	putI18n(r.messages, ds.Records(workbook.SheetResultMessages), "message_code", "message_text")
	putI18n(r.uiStrings, ds.Records(workbook.SheetUIStrings), "key", "text")
	putI18n(r.questionText, ds.Records(workbook.SheetQuestionsI18n), "question_code", "question_text")
	putI18n(r.optionText, ds.Records(workbook.SheetOptionsI18n), "option_code", "option_text")

	for _, rec := range ds.Records(workbook.SheetForms) {
		f := &Form{
			Code:                 rec.String("form_code"),
			Title:                rec.String("title"),
			AgeMinMonths:         rec.Int("age_min_months"),
			AgeMaxMonths:         rec.Int("age_max_months"),
			Language:             rec.String("language"),
			Version:              rec.String("version"),
			Active:               rec.Bool("is_active"),
			SymptomQuestionCount: rec.Int("symptom_question_count"),
			QuestionFieldCount:   rec.Int("question_field_count"),
			DeclaredMax:          nullDecimal(rec, "total_score_max_declared"),
			questions:            map[string]*Question{},
			sections:             map[string]*Section{},
		}
		r.Forms[f.Code] = f
	}

	for _, rec := range ds.Records(workbook.SheetSections) {
		s := &Section{
			Code:             rec.String("section_code"),
			FormCode:         rec.String("form_code"),
			Key:              rec.String("section_key"),
			Title:            rec.String("title"),
			InstructionsHTML: rec.String("instructions_html"),
			DisplayOrder:     rec.Int("display_order"),
			DisplayIf:        rec.JSON("display_if_jsonlogic"),
		}
		if f := r.Forms[s.FormCode]; f != nil {
			f.Sections = append(f.Sections, s)
			f.sections[s.Code] = s
		}
	}

	for _, rec := range ds.Records(workbook.SheetOptionSets) {
		s := &OptionSet{
			Code:    rec.String("option_set_code"),
			Name:    rec.String("name"),
			Widget:  rec.String("widget"),
			IsMulti: rec.Bool("is_multi"),
		}
		r.OptionSets[s.Code] = s
	}
	for _, rec := range ds.Records(workbook.SheetOptions) {
		o := &Option{
			Code:            rec.String("option_code"),
			SetCode:         rec.String("option_set_code"),
			Order:           rec.Int("option_order"),
			Value:           rec.String("value"),
			Label:           rec.String("label"),
			Score:           nullDecimal(rec, "score_value"),
			TriggersRedFlag: rec.Bool("triggers_red_flag"),
			RedFlagCode:     rec.String("red_flag_code"),
		}
		r.Options[o.Code] = o
		if s := r.OptionSets[o.SetCode]; s != nil {
			s.Options = append(s.Options, o)
		}
	}

	for _, rec := range ds.Records(workbook.SheetQuestions) {
		q := &Question{
			Code:             rec.String("question_code"),
			FormCode:         rec.String("form_code"),
			SectionCode:      rec.String("section_code"),
			Key:              rec.String("question_key"),
			Order:            rec.Int("question_order"),
			GlobalOrder:      rec.Int("global_order"),
			LegacyFieldName:  rec.String("legacy_field_name"),
			Text:             rec.String("question_text"),
			Type:             rec.String("question_type"),
			Required:         rec.Bool("is_required"),
			ResponseDataType: rec.String("response_data_type"),
			Scored:           rec.Bool("is_scored"),
			StoreTarget:      rec.String("store_target"),
			Validation:       rec.JSON("validation_json"),
			DisplayIf:        rec.JSON("display_if_jsonlogic"),
		}
		if code, ok := rec.Code("option_set_code"); ok {
			q.OptionSet = r.OptionSets[code]
		}
		if f := r.Forms[q.FormCode]; f != nil {
			f.Questions = append(f.Questions, q)
			f.questions[q.Code] = q
		}
	}

	scales := map[string]*Scale{}
	for _, rec := range ds.Records(workbook.SheetScales) {
		s := &Scale{
			Code:        rec.String("scale_code"),
			FormCode:    rec.String("form_code"),
			Key:         rec.String("scale_key"),
			Label:       rec.String("label"),
			Calculation: rec.String("calculation"),
			Override:    nullDecimal(rec, "max_score_override"),
			Group:       rec.String("scale_group"),
			Expression:  rec.JSON("expression_jsonlogic"),
			SheetOrder:  rec.Int("sheet_order"),
		}
		scales[s.Code] = s
		if f := r.Forms[s.FormCode]; f != nil {
			f.Scales = append(f.Scales, s)
		}
	}
	for _, rec := range ds.Records(workbook.SheetScaleItems) {
		w, ok := rec.Decimal("weight")
		if !ok {
			w = decimal.NewFromInt(1)
		}
		it := &ScaleItem{
			ScaleCode:    rec.String("scale_code"),
			QuestionCode: rec.String("question_code"),
			Weight:       w,
			Order:        rec.Int("item_order"),
		}
		if s := scales[it.ScaleCode]; s != nil {
			s.Items = append(s.Items, it)
		}
	}
	for _, rec := range ds.Records(workbook.SheetThresholds) {
		v, _ := rec.Decimal("threshold_value")
		th := &Threshold{
			Code:             rec.String("threshold_code"),
			ScaleCode:        rec.String("scale_code"),
			Basis:            rec.String("basis"),
			Comparator:       rec.String("comparator"),
			Value:            v,
			RiskLevel:        rec.String("risk_level"),
			InRiskTable:      rec.Bool("include_in_risk_table"),
			InPatientSummary: rec.Bool("include_in_patient_summary"),
			Priority:         rec.Int("priority"),
		}
		if s := scales[th.ScaleCode]; s != nil {
			s.Thresholds = append(s.Thresholds, th)
		}
	}

	for _, rec := range ds.Records(workbook.SheetDerivedLists) {
		dl := &DerivedList{
			Code:        rec.String("list_code"),
			FormCode:    rec.String("form_code"),
			Name:        rec.String("name"),
			SectionCode: rec.String("section_code"),
			Filter:      rec.String("filter_response_value"),
			SheetOrder:  rec.Int("sheet_order"),
		}
		if f := r.Forms[dl.FormCode]; f != nil {
			f.DerivedLists = append(f.DerivedLists, dl)
		}
	}
	for _, rec := range ds.Records(workbook.SheetEvaluationRules) {
		rule := &Rule{
			Code:       rec.String("rule_code"),
			FormCode:   rec.String("form_code"),
			OutputKey:  rec.String("output_key"),
			Expression: rec.JSON("expression_jsonlogic"),
		}
		if f := r.Forms[rule.FormCode]; f != nil {
			f.Rules = append(f.Rules, rule)
		}
	}
	r.buildTemplates(ds)

	for _, f := range r.Forms {
		sortForm(f)
	}
	for _, s := range r.OptionSets {
		sort.SliceStable(s.Options, func(i, j int) bool { return s.Options[i].Order < s.Options[j].Order })
	}
	for _, f := range r.Forms {
		computeMaxima(f)
	}
	return r
}

func (r *Registry) buildRedFlags(ds *workbook.Dataset) {
	for _, rec := range ds.Records(workbook.SheetRedFlags) {
		rf := &RedFlag{
			Code:          rec.String("red_flag_code"),
			EducationSlug: rec.String("education_url_slug"),
			Labels:        map[string]string{},
			Education:     map[string]Education{},
		}
		r.RedFlags[rf.Code] = rf
	}
	for _, rec := range ds.Records(workbook.SheetRedFlagsI18n) {
		if rf := r.RedFlags[rec.String("red_flag_code")]; rf != nil {
			rf.Labels[rec.String("lang_code")] = rec.String("parent_label")
		}
	}
	for _, rec := range ds.Records(workbook.SheetDoctorEducation) {
		if rf := r.RedFlags[rec.String("red_flag_code")]; rf != nil {
			rf.Education[rec.String("lang_code")] = Education{
				Markdown:   rec.String("education_markdown"),
				Reference1: rec.String("reference_1"),
				Reference2: rec.String("reference_2"),
			}
		}
	}
}

func (r *Registry) buildTemplates(ds *workbook.Dataset) {
	templates := map[string]*ReportTemplate{}
	for _, rec := range ds.Records(workbook.SheetReportTemplates) {
		t := &ReportTemplate{
			Code:           rec.String("template_code"),
			FormCode:       rec.String("form_code"),
			ReportType:     rec.String("report_type"),
			Title:          rec.String("title"),
			OutputFormat:   rec.String("output_format"),
			HeaderLogoPath: rec.String("header_logo_path"),
			FooterCompany:  rec.String("footer_company"),
			FooterTagline:  rec.String("footer_tagline"),
			FooterPhone:    rec.String("footer_phone"),
			FooterEmail:    rec.String("footer_email"),
			DisclaimerHTML: rec.String("disclaimer_html"),
		}
		templates[t.Code] = t
		if f := r.Forms[t.FormCode]; f != nil {
			f.Templates = append(f.Templates, t)
		}
	}
	blocks := map[string]*ReportBlock{}
	for _, rec := range ds.Records(workbook.SheetReportBlocks) {
		b := &ReportBlock{
			Code:             rec.String("block_code"),
			TemplateCode:     rec.String("template_code"),
			Order:            rec.Int("block_order"),
			Type:             rec.String("block_type"),
			Title:            rec.String("title"),
			TextTemplateHTML: rec.String("text_template_html"),
			IncludeIf:        rec.JSON("include_if_jsonlogic"),
			Params:           rec.JSON("params_json"),
		}
		blocks[b.Code] = b
		if t := templates[b.TemplateCode]; t != nil {
			t.Blocks = append(t.Blocks, b)
		}
	}
	attach := func(sheet, col string, add func(*ReportBlock, string)) {
		recs := append([]workbook.Record(nil), ds.Records(sheet)...)
		sort.SliceStable(recs, func(i, j int) bool { return recs[i].Int("sort_order") < recs[j].Int("sort_order") })
		for _, rec := range recs {
			if b := blocks[rec.String("block_code")]; b != nil {
				add(b, rec.String(col))
			}
		}
	}
	attach(workbook.SheetReportBlockSections, "section_code", func(b *ReportBlock, c string) { b.SectionCodes = append(b.SectionCodes, c) })
	attach(workbook.SheetReportBlockScales, "scale_code", func(b *ReportBlock, c string) { b.ScaleCodes = append(b.ScaleCodes, c) })
	for _, t := range templates {
		sort.SliceStable(t.Blocks, func(i, j int) bool { return t.Blocks[i].Order < t.Blocks[j].Order })
	}
}

func sortForm(f *Form) {
	sort.SliceStable(f.Sections, func(i, j int) bool { return f.Sections[i].DisplayOrder < f.Sections[j].DisplayOrder })
	sort.SliceStable(f.Questions, func(i, j int) bool { return f.Questions[i].GlobalOrder < f.Questions[j].GlobalOrder })
	sort.SliceStable(f.Scales, func(i, j int) bool { return f.Scales[i].SheetOrder < f.Scales[j].SheetOrder })
	sort.SliceStable(f.DerivedLists, func(i, j int) bool { return f.DerivedLists[i].SheetOrder < f.DerivedLists[j].SheetOrder })
	for _, s := range f.Scales {
		sort.SliceStable(s.Items, func(i, j int) bool { return s.Items[i].Order < s.Items[j].Order })
		sort.SliceStable(s.Thresholds, func(i, j int) bool {
			a, b := s.Thresholds[i], s.Thresholds[j]
			if a.Priority != b.Priority {
				return a.Priority < b.Priority
			}
			return a.Code < b.Code
		})
	}
}

func putI18n(dst map[string]map[string]string, recs []workbook.Record, codeCol, textCol string) {
	for _, rec := range recs {
		code := rec.String(codeCol)
		if dst[code] == nil {
			dst[code] = map[string]string{}
		}
		dst[code][rec.String("lang_code")] = rec.String(textCol)
	}
}

func nullDecimal(rec workbook.Record, col string) decimal.NullDecimal {
	d, ok := rec.Decimal(col)
	return decimal.NullDecimal{Decimal: d, Valid: ok}
}
