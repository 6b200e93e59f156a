package derived

import (
	"context"
	"reflect"
	"testing"

	"github.com/mind-engage/emoscreen/internal/schema"
	"github.com/mind-engage/emoscreen/internal/submission"
	"github.com/mind-engage/emoscreen/internal/testutil"
	"github.com/mind-engage/emoscreen/internal/workbook"
)

func build(t *testing.T, src workbook.MemorySource) (*schema.Registry, *schema.Form) {
	t.Helper()
	ds, err := workbook.NewLoader(workbook.Screening()).Load(context.Background(), src)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	reg := schema.Build(ds)
	f, err := reg.Form("F1")
	if err != nil {
		t.Fatalf("form: %v", err)
	}
	return reg, f
}

func answers(pairs ...string) map[string]submission.Answer {
	m := map[string]submission.Answer{}
	for i := 0; i+1 < len(pairs); i += 2 {
		m[pairs[i]] = submission.Answer{QuestionCode: pairs[i], Values: []string{pairs[i+1]}}
	}
	return m
}

func TestExtractSectionScopedYesAnswers(t *testing.T) {
	reg, f := build(t, testutil.Workbook())
	ans := answers("AE1", "YES", "AE2", "NO", "AE3", "YES", "AE4", "NO", "AE5", "YES", "Q1", "OPT_1")

	got := Extract(reg, f, ans, "en")
	want := []string{"Rash", "Nausea", "Dizziness"}
	if !reflect.DeepEqual(got.Items, want) || !reflect.DeepEqual(got.Lists[0].Items, want) {
		t.Fatalf("items = %+v, want %v", got, want)
	}
	if again := Extract(reg, f, ans, "en"); !reflect.DeepEqual(again, got) {
		t.Fatalf("second run differs: %+v", again)
	}
}

func TestExtractFlattensAndDeduplicates(t *testing.T) {
	src := testutil.Workbook()
	src["derived_lists"] = append(src["derived_lists"], []any{"DL_ALL", "F1", "Everything answered yes", "", "Yes"})
	reg, f := build(t, src)

	ans := answers("AE2", "YES", "Q_FLAG", "FLAG_YES", "AE4", "yes", "Q_NOTE", "yes")
	got := Extract(reg, f, ans, "en")
	if len(got.Lists) != 2 {
		t.Fatalf("lists = %+v", got.Lists)
	}
	// The unscoped list sees the flag question and free text too, but the
	// shared adverse-event texts are emitted once.
	want := []string{"Headache", "Fatigue", "Has talked about self-harm", "Anything else?"}
	if !reflect.DeepEqual(got.Items, want) {
		t.Fatalf("flattened = %v, want %v", got.Items, want)
	}
}

func TestRedFlags(t *testing.T) {
	reg, f := build(t, testutil.Workbook())
	if flags := RedFlags(reg, f, answers("Q_FLAG", "FLAG_NO"), "en"); len(flags) != 0 {
		t.Fatalf("flags = %+v", flags)
	}
	flags := RedFlags(reg, f, answers("Q_FLAG", "FLAG_YES", "Q1", "OPT_4"), "hi")
	if len(flags) != 1 || flags[0].Code != "RF_SELF_HARM" || flags[0].Label != "खुद को नुकसान" || flags[0].EducationSlug != "self-harm" {
		t.Fatalf("flags = %+v", flags)
	}
}
