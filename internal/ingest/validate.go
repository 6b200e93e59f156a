package ingest

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mind-engage/emoscreen/internal/workbook"
)

const maxListed = 10

// ReferentialError aggregates every cross-table violation found in a
// workbook. Nothing is persisted when it is returned.
type ReferentialError struct {
	Violations []string
}

func (e *ReferentialError) Error() string {
	return fmt.Sprintf("referential integrity: %d violation(s):\n - %s",
		len(e.Violations), strings.Join(e.Violations, "\n - "))
}

// Validator checks a loaded Dataset before anything is written.
type Validator struct {
	refs  []Reference
	forms []sameForm
}

func NewValidator(refs []Reference) *Validator {
	return &Validator{refs: refs}
}

// ScreeningValidator validates the screening workbook, including same-form
// checks for questions, scale items and derived lists.
func ScreeningValidator() *Validator {
	return &Validator{refs: ScreeningReferences(), forms: screeningFormChecks()}
}

// Validate returns a *ReferentialError listing every violation, or nil.
func (v *Validator) Validate(ds *workbook.Dataset) error {
	var out []string
	out = append(out, duplicateKeys(ds)...)
	out = append(out, missingRequiredCodes(ds)...)
	for _, r := range v.refs {
		if line := checkReference(ds, r); line != "" {
			out = append(out, line)
		}
	}
	for _, c := range v.forms {
		if line := checkSameForm(ds, c); line != "" {
			out = append(out, line)
		}
	}
	if line := flagCompanions(ds); line != "" {
		out = append(out, line)
	}
	if len(out) == 0 {
		return nil
	}
	return &ReferentialError{Violations: out}
}

func checkReference(ds *workbook.Dataset, r Reference) string {
	known := ds.Codes(r.RefTable, r.RefColumn)
	seen := map[string]bool{}
	var missing []string
	for _, rec := range ds.Records(r.Table) {
		c, ok := rec.Code(r.Column)
		if !ok || known[c] || seen[c] {
			continue
		}
		seen[c] = true
		missing = append(missing, c)
	}
	if len(missing) == 0 {
		return ""
	}
	return fmt.Sprintf("%s.%s: %d unknown %s code(s): %s",
		r.Table, r.Column, len(missing), r.RefTable, listCodes(missing))
}

// missingRequiredCodes reports non-key code columns that must carry a value
// but are empty. Key columns are handled by the loader, which drops such
// rows as placeholders.
func missingRequiredCodes(ds *workbook.Dataset) []string {
	var out []string
	for _, t := range ds.Catalog {
		for _, f := range t.Fields {
			if !f.Type.IsCode() || f.Nullable || f.Engine || t.IsKey(f.Name) {
				continue
			}
			n := 0
			for _, rec := range ds.Records(t.Name) {
				if _, ok := rec.Code(f.Name); !ok {
					n++
				}
			}
			if n > 0 {
				out = append(out, fmt.Sprintf("%s: %d row(s) have no %s", t.Name, n, f.Name))
			}
		}
	}
	return out
}

func duplicateKeys(ds *workbook.Dataset) []string {
	var out []string
	for _, t := range ds.Catalog {
		seen := map[string]int{}
		var dups []string
		for _, rec := range ds.Records(t.Name) {
			k := rec.Key(t)
			seen[k]++
			if seen[k] == 2 {
				dups = append(dups, k)
			}
		}
		if len(dups) > 0 {
			out = append(out, fmt.Sprintf("%s: %d duplicate key(s): %s", t.Name, len(dups), listCodes(dups)))
		}
	}
	return out
}

func checkSameForm(ds *workbook.Dataset, c sameForm) string {
	formOf := func(h hop) map[string]string {
		m := map[string]string{}
		for _, rec := range ds.Records(h.RefTable) {
			k, _ := rec.Code(h.RefKey)
			f, _ := rec.Code("form_code")
			m[k] = f
		}
		return m
	}
	target := formOf(c.Via)
	var owner map[string]string
	if c.OwnerVia != nil {
		owner = formOf(*c.OwnerVia)
	}

	t, _ := ds.Catalog.Lookup(c.Table)
	var bad []string
	for _, rec := range ds.Records(c.Table) {
		refCode, ok := rec.Code(c.Via.Column)
		if !ok {
			continue
		}
		got, known := target[refCode]
		if !known {
			continue // unresolved references are reported separately
		}
		var want string
		if c.OwnerVia != nil {
			oc, _ := rec.Code(c.OwnerVia.Column)
			if want, known = owner[oc]; !known {
				continue
			}
		} else {
			want, _ = rec.Code(c.OwnerForm)
		}
		if got != want {
			bad = append(bad, fmt.Sprintf("%s (form %s, want %s)", rec.Key(t), got, want))
		}
	}
	if len(bad) == 0 {
		return ""
	}
	return fmt.Sprintf("%s.%s: %d row(s) reference a %s of another form: %s",
		c.Table, c.Via.Column, len(bad), c.Via.RefTable, listCodes(bad))
}

func flagCompanions(ds *workbook.Dataset) string {
	n := 0
	for _, rec := range ds.Records(workbook.SheetOptions) {
		if !rec.Bool("triggers_red_flag") {
			continue
		}
		if _, ok := rec.Code("red_flag_code"); !ok {
			n++
		}
	}
	if n == 0 {
		return ""
	}
	return fmt.Sprintf("%s: %d option row(s) set triggers_red_flag=TRUE but have no red_flag_code", workbook.SheetOptions, n)
}

func listCodes(codes []string) string {
	sorted := append([]string(nil), codes...)
	sort.Strings(sorted)
	if len(sorted) <= maxListed {
		return "[" + strings.Join(sorted, ", ") + "]"
	}
	return "[" + strings.Join(sorted[:maxListed], ", ") + ", ...]"
}
