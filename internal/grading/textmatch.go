package grading

import "unicode"

// Normalize case-folds s, trims it and collapses inner whitespace runs to a
// single space.
func Normalize(s string) string {
	out := make([]rune, 0, len(s))
	space := false
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			space = true
		default:
			if space && len(out) > 0 {
				out = append(out, ' ')
			}
			space = false
			out = append(out, unicode.ToLower(r))
		}
	}
	return string(out)
}

// Matches reports whether two answer texts are equal after Normalize.
func Matches(a, b string) bool {
	return Normalize(a) == Normalize(b)
}
