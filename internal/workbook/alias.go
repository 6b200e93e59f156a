package workbook

import (
	"fmt"
	"sort"
	"strings"
)

// AliasMap maps a canonical column name to the alternate spellings content
// authors are known to use for it.
type AliasMap map[string][]string

// Validate rejects self-aliases, spellings claimed by two canonical names,
// spellings that are themselves a canonical column of the table, and
// canonical names that are not fields of the table.
func (m AliasMap) Validate(t *Table) error {
	if len(m) == 0 {
		return nil
	}
	var problems []string
	owner := map[string]string{}
	for _, canonical := range sortedKeys(m) {
		if _, ok := t.Field(canonical); !ok {
			problems = append(problems, fmt.Sprintf("alias target %q is not a column", canonical))
		}
		for _, raw := range m[canonical] {
			spelling := NormalizeHeader(raw)
			switch {
			case spelling == canonical:
				problems = append(problems, fmt.Sprintf("%q aliases itself", canonical))
			case owner[spelling] != "":
				problems = append(problems, fmt.Sprintf("%q claimed by both %q and %q", spelling, owner[spelling], canonical))
			default:
				if _, isField := t.Field(spelling); isField {
					problems = append(problems, fmt.Sprintf("%q (alias of %q) is itself a column", spelling, canonical))
				}
				owner[spelling] = canonical
			}
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("alias map: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Apply rewrites a normalized header in place. An alias is only renamed when
// its canonical column is not already present.
func (m AliasMap) Apply(header []string) []string {
	out := append([]string(nil), header...)
	if len(m) == 0 {
		return out
	}
	present := map[string]bool{}
	for _, h := range out {
		present[h] = true
	}
	for _, canonical := range sortedKeys(m) {
		if present[canonical] {
			continue
		}
		for _, raw := range m[canonical] {
			spelling := NormalizeHeader(raw)
			idx := indexOf(out, spelling)
			if idx < 0 {
				continue
			}
			out[idx] = canonical
			present[canonical] = true
			break
		}
	}
	return out
}

// NormalizeHeader lower-cases a header cell and folds spaces and hyphens to
// underscores.
func NormalizeHeader(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Join(strings.Fields(s), "_")
	return strings.ReplaceAll(s, "-", "_")
}

func indexOf(xs []string, v string) int {
	for i, x := range xs {
		if x == v {
			return i
		}
	}
	return -1
}

func sortedKeys(m AliasMap) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
