package workbook

import (
	"testing"
)

func TestParseBoolTokens(t *testing.T) {
	for _, in := range []any{"TRUE", "true", " Yes ", "y", "1", "हां", "हाँ", "Haan", true, 1.0} {
		if b, ok := ParseBool(in); !b || !ok {
			t.Fatalf("ParseBool(%#v) = %v, %v; want true", in, b, ok)
		}
	}
	for _, in := range []any{"FALSE", "no", "0", "maybe", "2", false} {
		if b, ok := ParseBool(in); b || !ok {
			t.Fatalf("ParseBool(%#v) = %v, %v; want false", in, b, ok)
		}
	}
	if _, ok := ParseBool("  "); ok {
		t.Fatalf("blank cell should report absent")
	}
}

func TestParseJSON(t *testing.T) {
	cases := []struct {
		in   any
		want string
		ok   bool
		err  bool
	}{
		{`{"a":1}`, `{"a":1}`, true, false},
		{"TRUE", "true", true, false},
		{"3.5", "3.5", true, false},
		{map[string]any{"x": "y"}, `{"x":"y"}`, true, false},
		{"none", "", false, false},
		{"NaN", "", false, false},
		{"#N/A", "", false, false},
		{"#DIV/0!", "", false, false},
		{"-", "", false, false},
		{"{broken", "", false, true},
	}
	for _, c := range cases {
		got, ok, err := ParseJSON(c.in)
		if ok != c.ok || (err != nil) != c.err || string(got) != c.want {
			t.Fatalf("ParseJSON(%#v) = %q, %v, %v", c.in, got, ok, err)
		}
	}
}

func TestParseDecimalAndInt(t *testing.T) {
	d, ok, err := ParseDecimal(" 1,250.5 ")
	if err != nil || !ok || d.String() != "1250.5" {
		t.Fatalf("ParseDecimal = %v %v %v", d, ok, err)
	}
	if _, ok, err := ParseDecimal("n/a"); ok || err != nil {
		t.Fatalf("n/a should be absent without error")
	}
	if _, _, err := ParseDecimal("abc"); err == nil {
		t.Fatalf("abc should not parse")
	}
	n, ok, err := ParseInt("3.0")
	if n != 3 || !ok || err != nil {
		t.Fatalf("ParseInt(3.0) = %d %v %v", n, ok, err)
	}
	if n, ok, err := ParseInt(2.5); n != 2 || !ok || err == nil {
		t.Fatalf("ParseInt(2.5) = %d %v %v; want truncation reported", n, ok, err)
	}
}

func TestNormalizeCode(t *testing.T) {
	if s, ok := NormalizeCode("  EN ", true); s != "en" || !ok {
		t.Fatalf("lang code = %q", s)
	}
	if s, ok := NormalizeCode(" Q1 ", false); s != "Q1" || !ok {
		t.Fatalf("code = %q", s)
	}
	if _, ok := NormalizeCode("   ", false); ok {
		t.Fatalf("blank code should be absent")
	}
	if s, _ := NormalizeCode(12.0, false); s != "12" {
		t.Fatalf("numeric code = %q", s)
	}
}

func TestCoerceCellFallsBackToDefaults(t *testing.T) {
	f := Field{Name: "weight", Type: Decimal, Default: 7}
	v, issue := coerceCell(f, "heavy")
	if issue == "" || v != 7 {
		t.Fatalf("coerceCell = %v %q", v, issue)
	}
	jf := Field{Name: "expr", Type: JSON, Nullable: true}
	if v, _ := coerceCell(jf, "null"); v != nil {
		t.Fatalf("null json = %v", v)
	}
	tf := Field{Name: "note", Type: Text, Default: ""}
	if v, _ := coerceCell(tf, nil); v != "" {
		t.Fatalf("absent text = %#v", v)
	}
}
