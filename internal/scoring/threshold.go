package scoring

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mind-engage/emoscreen/internal/schema"
)

// basisValue picks the measure a threshold compares against. An empty basis
// means percent.
func basisValue(basis string, score, ratio decimal.Decimal) (decimal.Decimal, error) {
	switch strings.ToLower(strings.TrimSpace(basis)) {
	case "", "percent", "pct", "risk_percent":
		return ratio.Mul(hundred), nil
	case "ratio", "risk_factor", "factor":
		return ratio, nil
	case "raw", "score", "sum":
		return score, nil
	}
	return decimal.Zero, fmt.Errorf("unknown threshold basis %q", basis)
}

// compare applies a comparator. An empty comparator means >=.
func compare(op string, v, limit decimal.Decimal) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(op)) {
	case "", ">=", "gte", "ge":
		return v.GreaterThanOrEqual(limit), nil
	case ">", "gt":
		return v.GreaterThan(limit), nil
	case "<=", "lte", "le":
		return v.LessThanOrEqual(limit), nil
	case "<", "lt":
		return v.LessThan(limit), nil
	case "=", "==", "eq":
		return v.Equal(limit), nil
	case "!=", "<>", "ne":
		return !v.Equal(limit), nil
	}
	return false, fmt.Errorf("unknown threshold comparator %q", op)
}

// classify returns the first threshold the scale result satisfies, in the
// scale's priority order. A malformed threshold fails the scale even when an
// earlier one already matched.
func classify(thresholds []*schema.Threshold, score, ratio decimal.Decimal) (*schema.Threshold, error) {
	var hit *schema.Threshold
	for _, th := range thresholds {
		v, err := basisValue(th.Basis, score, ratio)
		if err != nil {
			return nil, fmt.Errorf("threshold %s: %w", th.Code, err)
		}
		ok, err := compare(th.Comparator, v, th.Value)
		if err != nil {
			return nil, fmt.Errorf("threshold %s: %w", th.Code, err)
		}
		if ok && hit == nil {
			hit = th
		}
	}
	return hit, nil
}
