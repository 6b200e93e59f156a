package workbook

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Sheet names of the screening workbook.
const (
	SheetLanguages           = "languages"
	SheetRedFlags            = "red_flags"
	SheetRedFlagsI18n        = "red_flags_i18n"
	SheetDoctorEducation     = "doctor_education"
	SheetResultMessages      = "result_messages"
	SheetUIStrings           = "ui_strings"
	SheetForms               = "forms"
	SheetSections            = "sections"
	SheetOptionSets          = "option_sets"
	SheetOptions             = "options"
	SheetOptionsI18n         = "options_i18n"
	SheetQuestions           = "questions"
	SheetQuestionsI18n       = "questions_i18n"
	SheetScales              = "scales"
	SheetScaleItems          = "scale_items"
	SheetThresholds          = "thresholds"
	SheetDerivedLists        = "derived_lists"
	SheetEvaluationRules     = "evaluation_rules"
	SheetReportTemplates     = "report_templates"
	SheetReportBlocks        = "report_blocks"
	SheetReportBlockSections = "report_block_sections"
	SheetReportBlockScales   = "report_block_scales"
)

// Catalog is the ordered set of tables of one workbook. Order is dependency
// order: referenced tables come before the tables that reference them.
type Catalog []*Table

func (c Catalog) Lookup(name string) (*Table, bool) {
	for _, t := range c {
		if t.Name == name {
			return t, true
		}
	}
	return nil, false
}

// Validate checks every table descriptor and alias map.
func (c Catalog) Validate() error {
	var errs []error
	names := map[string]bool{}
	for _, t := range c {
		if names[t.Name] {
			errs = append(errs, fmt.Errorf("duplicate table %q", t.Name))
		}
		names[t.Name] = true
		if err := t.validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func code(name string) Field    { return Field{Name: name, Type: Code, Required: true} }
func optCode(name string) Field { return Field{Name: name, Type: Code, Nullable: true} }
func lang(name string) Field    { return Field{Name: name, Type: Lang, Required: true} }
func text(name string) Field    { return Field{Name: name, Type: Text, Default: ""} }
func reqText(name string) Field { return Field{Name: name, Type: Text, Default: "", Required: true} }
func integer(name string) Field { return Field{Name: name, Type: Int, Default: int64(0)} }
func reqInt(name string) Field  { return Field{Name: name, Type: Int, Default: int64(0), Required: true} }
func dec(name string) Field     { return Field{Name: name, Type: Decimal, Nullable: true} }
func flag(name string, def bool) Field {
	return Field{Name: name, Type: Bool, Default: def}
}
func jsonCol(name string) Field { return Field{Name: name, Type: JSON, Nullable: true} }
func required(f Field) Field    { f.Required = true; return f }
func engine(f Field) Field      { f.Engine = true; f.Required = false; return f }

func sheetOrder() Field {
	return Field{Name: "sheet_order", Type: Int, Default: int64(0), Engine: true, Ordinal: true}
}

func createdAt() Field {
	return Field{Name: "created_at", Type: Timestamp, Engine: true, InsertOnly: true}
}

func table(name string, required bool, key []string, fields ...Field) *Table {
	return &Table{
		Name:     name,
		DBName:   "es_cfg_" + name,
		Key:      key,
		Required: required,
		Fields:   append(fields, createdAt()),
	}
}

func i18n(name, parent, textCol string) *Table {
	return table(name, false, []string{parent, "lang_code"},
		code(parent), lang("lang_code"), reqText(textCol))
}

var screening = buildScreening()

// Screening returns the catalog of the screening-instrument workbook.
func Screening() Catalog { return screening }

func buildScreening() Catalog {
	redFlags := table(SheetRedFlags, false, []string{"red_flag_code"},
		code("red_flag_code"), reqText("education_url_slug"))
	redFlags.UpdateColumns = []string{"education_url_slug"}

	doctorEducation := table(SheetDoctorEducation, false, []string{"red_flag_code", "lang_code"},
		code("red_flag_code"), lang("lang_code"),
		reqText("education_markdown"), reqText("reference_1"), text("reference_2"))
	doctorEducation.Aliases = AliasMap{
		"education_markdown": {"at_a_glance_information"},
		"reference_1":        {"reference"},
	}

	resultMessages := table(SheetResultMessages, false, []string{"message_code", "lang_code"},
		code("message_code"), lang("lang_code"), reqText("message_text"))
	resultMessages.Aliases = AliasMap{
		"message_code": {"messages_code"},
		"message_text": {"messages_text"},
	}

	forms := table(SheetForms, true, []string{"form_code"},
		code("form_code"), reqText("title"),
		reqInt("age_min_months"), reqInt("age_max_months"),
		Field{Name: "language", Type: Lang, Required: true},
		reqText("version"),
		required(flag("is_active", true)),
		integer("symptom_question_count"), integer("question_field_count"),
		dec("total_score_max_declared"),
		engine(dec("total_score_max_computed")),
		text("notes"))
	forms.Aliases = AliasMap{"total_score_max_declared": {"total_score_max_php"}}

	sections := table(SheetSections, true, []string{"section_code"},
		code("section_code"), code("form_code"), text("section_key"), reqText("title"),
		text("instructions_html"), required(integer("display_order")),
		jsonCol("display_if_jsonlogic"), text("notes"))

	optionSets := table(SheetOptionSets, true, []string{"option_set_code"},
		code("option_set_code"), reqText("name"), text("widget"), flag("is_multi", false), text("notes"))

	options := table(SheetOptions, true, []string{"option_code"},
		code("option_code"), code("option_set_code"), integer("option_order"),
		reqText("value"), reqText("label"), dec("score_value"),
		flag("triggers_red_flag", false), optCode("red_flag_code"), text("notes"))
	options.Aliases = AliasMap{"option_order": {"display_order"}}

	questions := table(SheetQuestions, true, []string{"question_code"},
		code("question_code"), code("form_code"), code("section_code"),
		text("question_key"), integer("question_order"), integer("global_order"),
		text("legacy_field_name"), reqText("question_text"), text("question_type"),
		optCode("option_set_code"),
		flag("is_required", false),
		Field{Name: "response_data_type", Type: Text, Default: "text"},
		flag("is_scored", false), text("store_target"),
		jsonCol("validation_json"), jsonCol("display_if_jsonlogic"), text("notes"))

	scales := table(SheetScales, true, []string{"scale_code"},
		code("scale_code"), code("form_code"), text("scale_key"), reqText("label"),
		Field{Name: "calculation", Type: Text, Default: "SUM"},
		dec("max_score_override"), text("scale_group"), jsonCol("expression_jsonlogic"), text("notes"),
		engine(dec("max_score_computed")),
		engine(flag("max_mismatch", false)),
		engine(text("max_mismatch_note")),
		sheetOrder())
	scales.Aliases = AliasMap{"scale_group": {"group"}}

	scaleItems := table(SheetScaleItems, true, []string{"scale_code", "question_code"},
		code("scale_code"), code("question_code"),
		Field{Name: "weight", Type: Decimal, Default: decimal.NewFromInt(1)},
		integer("item_order"), text("notes"))
	scaleItems.Replace = true

	thresholds := table(SheetThresholds, true, []string{"threshold_code"},
		code("threshold_code"), code("scale_code"),
		reqText("basis"), reqText("comparator"),
		Field{Name: "threshold_value", Type: Decimal, Default: decimal.Zero, Required: true},
		reqText("risk_level"),
		flag("include_in_risk_table", true), flag("include_in_patient_summary", false),
		integer("priority"), text("notes"))

	derivedLists := table(SheetDerivedLists, true, []string{"list_code"},
		code("list_code"), code("form_code"), text("name"), optCode("section_code"),
		reqText("filter_response_value"), text("notes"), sheetOrder())
	derivedLists.Aliases = AliasMap{"filter_response_value": {"filter_value"}}

	rules := table(SheetEvaluationRules, false, []string{"rule_code"},
		code("rule_code"), code("form_code"), reqText("output_key"),
		Field{Name: "expression_jsonlogic", Type: JSON, Default: json.RawMessage(`{}`), Required: true},
		text("notes"))

	templates := table(SheetReportTemplates, false, []string{"template_code"},
		code("template_code"), code("form_code"), reqText("report_type"), reqText("title"),
		Field{Name: "output_format", Type: Text, Default: "pdf"},
		text("header_logo_path"), text("footer_company"), text("footer_tagline"),
		text("footer_phone"), text("footer_email"), text("disclaimer_html"), text("notes"))

	blocks := table(SheetReportBlocks, false, []string{"block_code"},
		code("block_code"), code("template_code"), integer("block_order"), reqText("block_type"),
		text("title"), text("text_template_html"),
		jsonCol("include_if_jsonlogic"), jsonCol("params_json"), text("notes"))

	blockSections := table(SheetReportBlockSections, false, []string{"block_code", "section_code"},
		code("block_code"), code("section_code"), integer("sort_order"))
	blockSections.Aliases = AliasMap{"sort_order": {"order"}}
	blockSections.Replace = true

	blockScales := table(SheetReportBlockScales, false, []string{"block_code", "scale_code"},
		code("block_code"), code("scale_code"), integer("sort_order"))
	blockScales.Aliases = AliasMap{"sort_order": {"order"}}
	blockScales.Replace = true

	return Catalog{
		table(SheetLanguages, true, []string{"lang_code"},
			lang("lang_code"), reqText("lang_name_english"), reqText("lang_name_native")),
		redFlags,
		i18n(SheetRedFlagsI18n, "red_flag_code", "parent_label"),
		doctorEducation,
		resultMessages,
		table(SheetUIStrings, false, []string{"key", "lang_code"},
			code("key"), lang("lang_code"), reqText("text")),
		forms,
		sections,
		optionSets,
		options,
		i18n(SheetOptionsI18n, "option_code", "option_text"),
		questions,
		i18n(SheetQuestionsI18n, "question_code", "question_text"),
		scales,
		scaleItems,
		thresholds,
		derivedLists,
		rules,
		templates,
		blocks,
		blockSections,
		blockScales,
	}
}
