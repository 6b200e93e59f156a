package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mind-engage/emoscreen/internal/testutil"
	"github.com/mind-engage/emoscreen/internal/workbook"
)

func loadSource(t *testing.T, src workbook.MemorySource) *workbook.Dataset {
	t.Helper()
	ds, err := workbook.NewLoader(workbook.Screening()).Load(context.Background(), src)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return ds
}

func violations(t *testing.T, src workbook.MemorySource) []string {
	t.Helper()
	err := ScreeningValidator().Validate(loadSource(t, src))
	var re *ReferentialError
	if !errors.As(err, &re) {
		t.Fatalf("want ReferentialError, got %v", err)
	}
	return re.Violations
}

func containsAll(t *testing.T, lines []string, wants ...string) {
	t.Helper()
	all := strings.Join(lines, "\n")
	for _, w := range wants {
		if !strings.Contains(all, w) {
			t.Fatalf("violations missing %q:\n%s", w, all)
		}
	}
}

func TestFixtureIsValid(t *testing.T) {
	if err := ScreeningValidator().Validate(loadSource(t, testutil.Workbook())); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestIndependentViolationsReportedTogether(t *testing.T) {
	src := testutil.Workbook()
	src["forms"][1][4] = "xx"
	src["scale_items"][1][1] = "Q_MISSING"

	v := violations(t, src)
	if len(v) < 2 {
		t.Fatalf("violations = %v", v)
	}
	containsAll(t, v, "forms.language", "[xx]", "scale_items.question_code", "[Q_MISSING]")
}

func TestDuplicateKeysAndFlagCompanions(t *testing.T) {
	src := testutil.Workbook()
	src["options"] = append(src["options"],
		[]any{"OPT_1", "OS_SCORE", "9", "1", "Again", "1", "", ""},
		[]any{"FLAG_MAYBE", "OS_FLAG", "3", "maybe", "Maybe", "", "yes", ""},
	)
	v := violations(t, src)
	containsAll(t, v, "OPT_1", "1 option row(s) set triggers_red_flag=TRUE but have no red_flag_code")
}

func TestCrossFormReferencesRejected(t *testing.T) {
	src := testutil.Workbook()
	src["forms"] = append(src["forms"], []any{"F2", "Other", "0", "12", "en", "v1", "TRUE", ""})
	src["sections"] = append(src["sections"], []any{"S_F2", "F2", "other", "Other", "1", ""})
	// Q1 belongs to F1 but is placed in a section of F2.
	src["questions"][1][2] = "S_F2"

	v := violations(t, src)
	containsAll(t, v, "Q1")
}

func TestListCodesTruncates(t *testing.T) {
	var codes []string
	for i := 0; i < 12; i++ {
		codes = append(codes, string(rune('A'+i)))
	}
	got := listCodes(codes)
	if !strings.HasSuffix(got, ", ...]") || strings.Contains(got, "K") {
		t.Fatalf("listCodes = %s", got)
	}
}
