package grading

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mind-engage/emoscreen/internal/schema"
)

// numericStrategy stores the raw text and, for scored questions, uses the
// parsed number as the contribution.
//
//	"3"        -> 3
//	" 2.5 "    -> 2.5
//	"4 times"  -> 4   (leading number)
type numericStrategy struct{}

func (numericStrategy) Resolve(_ context.Context, q *schema.Question, response any) (Result, error) {
	str, ok := toText(response)
	if !ok {
		return Result{}, ErrBadResponse
	}
	str = strings.TrimSpace(str)
	if str == "" {
		return Result{}, nil
	}
	v, ok := parseDecimalLoose(str)
	if !ok {
		if q.Scored {
			return Result{}, ErrNotNumeric
		}
		return Result{Values: []string{str}}, nil
	}
	res := Result{Values: []string{str}}
	if q.Scored {
		res.Score = decimal.NewNullDecimal(v)
	}
	return res, nil
}

func parseDecimalLoose(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if v, err := decimal.NewFromString(s); err == nil {
		return v, true
	}
	if sp := strings.Fields(s); len(sp) > 0 {
		if v, err := decimal.NewFromString(sp[0]); err == nil {
			return v, true
		}
	}
	return decimal.Zero, false
}
