package ingest

import "github.com/mind-engage/emoscreen/internal/workbook"

// Reference declares that values of Table.Column must exist in
// RefTable.RefColumn.
type Reference struct {
	Table, Column       string
	RefTable, RefColumn string
}

func ref(table, column, refTable, refColumn string) Reference {
	return Reference{Table: table, Column: column, RefTable: refTable, RefColumn: refColumn}
}

func lang(table string) Reference {
	return ref(table, "lang_code", workbook.SheetLanguages, "lang_code")
}

// ScreeningReferences lists every cross-table code reference of the
// screening workbook.
func ScreeningReferences() []Reference {
	const (
		forms     = workbook.SheetForms
		sections  = workbook.SheetSections
		questions = workbook.SheetQuestions
		scales    = workbook.SheetScales
		redFlags  = workbook.SheetRedFlags
		blocks    = workbook.SheetReportBlocks
	)
	return []Reference{
		ref(workbook.SheetRedFlagsI18n, "red_flag_code", redFlags, "red_flag_code"),
		lang(workbook.SheetRedFlagsI18n),
		ref(workbook.SheetDoctorEducation, "red_flag_code", redFlags, "red_flag_code"),
		lang(workbook.SheetDoctorEducation),
		lang(workbook.SheetResultMessages),
		lang(workbook.SheetUIStrings),
		ref(forms, "language", workbook.SheetLanguages, "lang_code"),
		ref(sections, "form_code", forms, "form_code"),
		ref(workbook.SheetOptions, "option_set_code", workbook.SheetOptionSets, "option_set_code"),
		ref(workbook.SheetOptions, "red_flag_code", redFlags, "red_flag_code"),
		ref(workbook.SheetOptionsI18n, "option_code", workbook.SheetOptions, "option_code"),
		lang(workbook.SheetOptionsI18n),
		ref(questions, "form_code", forms, "form_code"),
		ref(questions, "section_code", sections, "section_code"),
		ref(questions, "option_set_code", workbook.SheetOptionSets, "option_set_code"),
		ref(workbook.SheetQuestionsI18n, "question_code", questions, "question_code"),
		lang(workbook.SheetQuestionsI18n),
		ref(scales, "form_code", forms, "form_code"),
		ref(workbook.SheetScaleItems, "scale_code", scales, "scale_code"),
		ref(workbook.SheetScaleItems, "question_code", questions, "question_code"),
		ref(workbook.SheetThresholds, "scale_code", scales, "scale_code"),
		ref(workbook.SheetDerivedLists, "form_code", forms, "form_code"),
		ref(workbook.SheetDerivedLists, "section_code", sections, "section_code"),
		ref(workbook.SheetEvaluationRules, "form_code", forms, "form_code"),
		ref(workbook.SheetReportTemplates, "form_code", forms, "form_code"),
		ref(blocks, "template_code", workbook.SheetReportTemplates, "template_code"),
		ref(workbook.SheetReportBlockSections, "block_code", blocks, "block_code"),
		ref(workbook.SheetReportBlockSections, "section_code", sections, "section_code"),
		ref(workbook.SheetReportBlockScales, "block_code", blocks, "block_code"),
		ref(workbook.SheetReportBlockScales, "scale_code", scales, "scale_code"),
	}
}

// sameForm declares that the form reached through Via must equal the owner
// row's form. OwnerForm is either a column of the owner row or, when
// OwnerVia is set, the form of the row referenced by that column.
type sameForm struct {
	Table     string
	OwnerForm string // column holding the owner's form code
	OwnerVia  *hop   // alternative: owner's form is found through another table
	Via       hop
}

type hop struct {
	Column   string // column of the checked row
	RefTable string // table holding the referenced row
	RefKey   string
}

func screeningFormChecks() []sameForm {
	return []sameForm{
		{
			Table:     workbook.SheetQuestions,
			OwnerForm: "form_code",
			Via:       hop{Column: "section_code", RefTable: workbook.SheetSections, RefKey: "section_code"},
		},
		{
			Table:     workbook.SheetDerivedLists,
			OwnerForm: "form_code",
			Via:       hop{Column: "section_code", RefTable: workbook.SheetSections, RefKey: "section_code"},
		},
		{
			Table:    workbook.SheetScaleItems,
			OwnerVia: &hop{Column: "scale_code", RefTable: workbook.SheetScales, RefKey: "scale_code"},
			Via:      hop{Column: "question_code", RefTable: workbook.SheetQuestions, RefKey: "question_code"},
		},
	}
}
