package workbook

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var truthy = map[string]bool{
	"true": true, "1": true, "yes": true, "y": true,
	"हां": true, "हाँ": true, "haan": true,
}

var nullTokens = map[string]bool{
	"": true, "none": true, "null": true, "nan": true, "n/a": true, "-": true,
	"#n/a": true, "#value!": true, "#ref!": true, "#div/0!": true,
	"#num!": true, "#name?": true, "#null!": true,
}

var errNotNumber = errors.New("not a number")

// IsNullToken reports whether a text cell means "no value".
func IsNullToken(s string) bool {
	return nullTokens[strings.ToLower(strings.TrimSpace(s))]
}

// NormalizeCode trims a key cell. Empty means absent. Language codes are
// additionally lower-cased.
func NormalizeCode(v any, lower bool) (string, bool) {
	s := strings.TrimSpace(cellText(v))
	if s == "" {
		return "", false
	}
	if lower {
		s = strings.ToLower(s)
	}
	return s, true
}

// ParseBool accepts a fixed set of affirmative tokens, case-insensitively.
// Anything else is false. ok is false when the cell was empty.
func ParseBool(v any) (b bool, ok bool) {
	switch x := v.(type) {
	case nil:
		return false, false
	case bool:
		return x, true
	case int:
		return x == 1, true
	case int64:
		return x == 1, true
	case float64:
		return x == 1, true
	}
	s := strings.ToLower(strings.TrimSpace(cellText(v)))
	if s == "" {
		return false, false
	}
	return truthy[s], true
}

// ParseDecimal reads a numeric cell. ok is false for empty and null-like
// cells; err is set for text that is not a number.
func ParseDecimal(v any) (d decimal.Decimal, ok bool, err error) {
	switch x := v.(type) {
	case nil:
		return decimal.Zero, false, nil
	case decimal.Decimal:
		return x, true, nil
	case int:
		return decimal.NewFromInt(int64(x)), true, nil
	case int64:
		return decimal.NewFromInt(x), true, nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return decimal.Zero, false, nil
		}
		return decimal.NewFromFloat(x), true, nil
	case bool:
		if x {
			return decimal.NewFromInt(1), true, nil
		}
		return decimal.Zero, true, nil
	}
	s := strings.TrimSpace(cellText(v))
	if IsNullToken(s) {
		return decimal.Zero, false, nil
	}
	s = strings.ReplaceAll(s, ",", "")
	d, err = decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false, errNotNumber
	}
	return d, true, nil
}

// ParseInt reads an integer cell; decimals are truncated ("3.0" is common in
// exported sheets).
func ParseInt(v any) (int64, bool, error) {
	d, ok, err := ParseDecimal(v)
	if !ok || err != nil {
		return 0, ok, err
	}
	if !d.Equal(d.Truncate(0)) {
		return d.IntPart(), true, fmt.Errorf("%s truncated to integer", d)
	}
	return d.IntPart(), true, nil
}

// ParseJSON turns a structured cell into JSON text. Already-structured
// values are marshalled, boolean and numeric literals pass through, text must
// be valid JSON. Null-like and unparsable text both yield ok=false; err is
// set only for the unparsable case.
func ParseJSON(v any) (json.RawMessage, bool, error) {
	switch x := v.(type) {
	case nil:
		return nil, false, nil
	case json.RawMessage:
		if !json.Valid(x) {
			return nil, false, errors.New("invalid json")
		}
		return x, true, nil
	case []byte:
		return ParseJSON(string(x))
	case map[string]any, []any, bool, int, int64, float64:
		b, err := json.Marshal(x)
		if err != nil {
			return nil, false, err
		}
		return b, true, nil
	}
	s := strings.TrimSpace(cellText(v))
	if IsNullToken(s) {
		return nil, false, nil
	}
	switch strings.ToLower(s) {
	case "true":
		return json.RawMessage("true"), true, nil
	case "false":
		return json.RawMessage("false"), true, nil
	}
	if _, err := strconv.ParseFloat(s, 64); err == nil && json.Valid([]byte(s)) {
		return json.RawMessage(s), true, nil
	}
	if !json.Valid([]byte(s)) {
		return nil, false, errors.New("invalid json")
	}
	return json.RawMessage(s), true, nil
}

// cellText renders a raw cell as text the way a spreadsheet would display it.
func cellText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1e15 {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		if x {
			return "TRUE"
		}
		return "FALSE"
	case time.Time:
		return x.Format(time.RFC3339)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}
