// Package testutil holds shared fixtures for package tests.
package testutil

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/mind-engage/emoscreen/internal/db"
	"github.com/mind-engage/emoscreen/internal/workbook"
)

// OpenDB opens a fresh SQLite database under t.TempDir with the full schema.
func OpenDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "test.db") + "?_pragma=busy_timeout(5000)"
	sqlDB, err := db.Open(context.Background(), db.DriverSQLite, dsn, workbook.Screening())
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	return sqlDB
}

// Workbook returns a small but complete screening workbook. Each call
// returns a fresh copy that tests may modify.
//
// Form F1 has two sections. S_MAIN holds the scored questions Q1 and Q2
// (option set OS_SCORE, scores 0..4), a red-flag question Q_FLAG and a free
// text question Q_NOTE. S_AE ("adverse_events") holds AE1..AE5 answered from
// OS_YN. Scale SC1 weights Q1 by 2 and Q2 by 1 with a max override of 20;
// scale SC2 has no items and no maximum. Derived list DL_AE collects "yes"
// answers in S_AE.
func Workbook() workbook.MemorySource {
	return workbook.MemorySource{
		"languages": {
			{"lang_code", "lang_name_english", "lang_name_native"},
			{"EN", "English", "English"},
			{"hi", "Hindi", "हिन्दी"},
		},
		"red_flags": {
			{"red_flag_code", "education_url_slug"},
			{"RF_SELF_HARM", "self-harm"},
		},
		"red_flags_i18n": {
			{"red_flag_code", "lang_code", "parent_label"},
			{"RF_SELF_HARM", "en", "Talks about hurting self"},
			{"RF_SELF_HARM", "hi", "खुद को नुकसान"},
		},
		"doctor_education": {
			{"red_flag_code", "lang_code", "at_a_glance_information", "reference"},
			{"RF_SELF_HARM", "en", "Assess safety today.", "WHO mhGAP"},
		},
		"result_messages": {
			{"messages_code", "lang_code", "messages_text"},
			{"NO_FLAGS", "en", "No areas of concern were found."},
			{"HAS_FLAGS_INTRO", "en", "Some areas need attention:"},
		},
		"ui_strings": {
			{"key", "lang_code", "text"},
			{"report.title", "en", "Screening report"},
		},
		"forms": {
			{"form_code", "title", "age_min_months", "age_max_months", "language", "version", "is_active", "total_score_max_php"},
			{"F1", "Emotional screen", "18", "60", "en", "v1", "TRUE", "20"},
		},
		"sections": {
			{"section_code", "form_code", "section_key", "title", "display_order", "display_if_jsonlogic"},
			{"S_MAIN", "F1", "main", "Main", "1", ""},
			{"S_AE", "F1", "adverse_events", "Adverse events", "2", `{"==":[1,1]}`},
		},
		"option_sets": {
			{"option_set_code", "name", "widget", "is_multi"},
			{"OS_SCORE", "Frequency", "radio", "no"},
			{"OS_YN", "Yes/No", "radio", "no"},
			{"OS_FLAG", "Flag", "radio", "no"},
		},
		"options": {
			{"option_code", "option_set_code", "display_order", "value", "label", "score_value", "triggers_red_flag", "red_flag_code"},
			{"OPT_0", "OS_SCORE", "1", "0", "Never", "0", "", ""},
			{"OPT_1", "OS_SCORE", "2", "1", "Rarely", "1", "", ""},
			{"OPT_2", "OS_SCORE", "3", "2", "Sometimes", "2", "", ""},
			{"OPT_3", "OS_SCORE", "4", "3", "Often", "3", "", ""},
			{"OPT_4", "OS_SCORE", "5", "4", "Always", "4", "", ""},
			{"YES", "OS_YN", "1", "yes", "Yes", "", "", ""},
			{"NO", "OS_YN", "2", "no", "No", "", "", ""},
			{"FLAG_YES", "OS_FLAG", "1", "yes", "Yes", "", "TRUE", "RF_SELF_HARM"},
			{"FLAG_NO", "OS_FLAG", "2", "no", "No", "", "", ""},
			{"", "", "", "", "", "", "", ""},
		},
		"options_i18n": {
			{"option_code", "lang_code", "option_text"},
			{"YES", "hi", "हाँ"},
		},
		"questions": {
			{"question_code", "form_code", "section_code", "question_order", "global_order", "question_text", "question_type", "option_set_code", "is_required", "is_scored", "validation_json"},
			{"Q1", "F1", "S_MAIN", "1", "1", "Has trouble sleeping", "single", "OS_SCORE", "yes", "yes", ""},
			{"Q2", "F1", "S_MAIN", "2", "2", "Seems worried", "single", "OS_SCORE", "yes", "yes", "none"},
			{"Q_FLAG", "F1", "S_MAIN", "3", "3", "Has talked about self-harm", "single", "OS_FLAG", "yes", "no", ""},
			{"Q_NOTE", "F1", "S_MAIN", "4", "9", "Anything else?", "text", "", "no", "no", ""},
			{"AE1", "F1", "S_AE", "1", "4", "Rash", "single", "OS_YN", "no", "no", ""},
			{"AE2", "F1", "S_AE", "2", "5", "Headache", "single", "OS_YN", "no", "no", ""},
			{"AE3", "F1", "S_AE", "3", "6", "Nausea", "single", "OS_YN", "no", "no", ""},
			{"AE4", "F1", "S_AE", "4", "7", "Fatigue", "single", "OS_YN", "no", "no", ""},
			{"AE5", "F1", "S_AE", "5", "8", "Dizziness", "single", "OS_YN", "no", "no", ""},
		},
		"questions_i18n": {
			{"question_code", "lang_code", "question_text"},
			{"Q1", "hi", "सोने में परेशानी"},
		},
		"scales": {
			{"scale_code", "form_code", "label", "calculation", "max_score_override", "group"},
			{"SC1", "F1", "Anxiety", "SUM", "20", "emotional"},
			{"SC2", "F1", "Unused", "SUM", "", ""},
		},
		"scale_items": {
			{"scale_code", "question_code", "weight", "item_order"},
			{"SC1", "Q1", "2", "1"},
			{"SC1", "Q2", "1", "2"},
		},
		"thresholds": {
			{"threshold_code", "scale_code", "basis", "comparator", "threshold_value", "risk_level", "include_in_risk_table", "include_in_patient_summary", "priority"},
			{"TH_SC1_HIGH", "SC1", "percent", ">=", "50", "HIGH", "TRUE", "TRUE", "1"},
			{"TH_SC1_LOW", "SC1", "percent", ">=", "0", "LOW", "FALSE", "FALSE", "2"},
		},
		"derived_lists": {
			{"list_code", "form_code", "name", "section_code", "filter_response_value"},
			{"DL_AE", "F1", "Adverse events reported", "S_AE", "yes"},
		},
		"evaluation_rules": {
			{"rule_code", "form_code", "output_key", "expression_jsonlogic"},
			{"R1", "F1", "needs_followup", `{">=":[{"var":"SC1"},10]}`},
		},
		"report_templates": {
			{"template_code", "form_code", "report_type", "title"},
			{"T_DOC", "F1", "doctor", "Clinician report"},
		},
		"report_blocks": {
			{"block_code", "template_code", "block_order", "block_type", "title", "params_json"},
			{"B_RISK", "T_DOC", "1", "risk_table", "Risk", "n/a"},
		},
		"report_block_sections": {
			{"block_code", "section_code", "order"},
			{"B_RISK", "S_MAIN", "1"},
		},
		"report_block_scales": {
			{"block_code", "scale_code", "order"},
			{"B_RISK", "SC1", "1"},
		},
	}
}
