// Package grading resolves a raw answer into the stored value and the score
// contribution it carries, routing by the kind of question.
package grading

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mind-engage/emoscreen/internal/schema"
)

var (
	ErrUnknownOption = errors.New("unknown option")
	ErrNotNumeric    = errors.New("value is not numeric")
	ErrBadResponse   = errors.New("unsupported response shape")
)

// Question kinds.
const (
	KindSingle  = "option_single"
	KindMulti   = "option_multi"
	KindNumeric = "numeric"
	KindText    = "text"
)

// Result is the resolved form of one answer.
type Result struct {
	Values  []string            // stored values: option codes, or the raw text
	Score   decimal.NullDecimal // contribution; absent for unscored questions
	Options []*schema.Option    // selected options, in selection order
}

// Strategy resolves the answer to a single question.
type Strategy interface {
	Resolve(ctx context.Context, q *schema.Question, response any) (Result, error)
}

// Resolver routes by question kind to the correct Strategy.
type Resolver interface {
	Resolve(ctx context.Context, q *schema.Question, response any) (Result, error)
}

type defaultResolver struct {
	strategies map[string]Strategy
}

func (r *defaultResolver) Resolve(ctx context.Context, q *schema.Question, response any) (Result, error) {
	kind := Kind(q)
	s, ok := r.strategies[kind]
	if !ok {
		return Result{}, fmt.Errorf("question %s: no strategy for %s", q.Code, kind)
	}
	res, err := s.Resolve(ctx, q, response)
	if err != nil {
		return Result{}, fmt.Errorf("question %s: %w", q.Code, err)
	}
	return res, nil
}

// Kind classifies a question for routing.
func Kind(q *schema.Question) string {
	if q.OptionSet != nil {
		if q.OptionSet.IsMulti {
			return KindMulti
		}
		return KindSingle
	}
	switch strings.ToLower(q.ResponseDataType) {
	case "number", "numeric", "int", "integer", "decimal", "float":
		return KindNumeric
	}
	return KindText
}

// Engine options

type Option func(*config)

type config struct {
	MatchOptionValue bool // also accept an option's value/label in place of its code
	Extra            map[string]Strategy
}

func WithOptionValueMatch(b bool) Option { return func(c *config) { c.MatchOptionValue = b } }
func WithStrategy(kind string, s Strategy) Option {
	return func(c *config) { c.Extra[kind] = s }
}

// NewDefaultResolver installs the built-in strategies.
func NewDefaultResolver(opts ...Option) Resolver {
	cfg := &config{MatchOptionValue: true, Extra: map[string]Strategy{}}
	for _, o := range opts {
		o(cfg)
	}
	strategies := map[string]Strategy{
		KindSingle:  singleOptionStrategy{matchValue: cfg.MatchOptionValue},
		KindMulti:   multiOptionStrategy{matchValue: cfg.MatchOptionValue},
		KindNumeric: numericStrategy{},
		KindText:    textStrategy{},
	}
	for k, s := range cfg.Extra {
		strategies[k] = s
	}
	return &defaultResolver{strategies: strategies}
}

// --- Strategies ---

type singleOptionStrategy struct{ matchValue bool }

func (s singleOptionStrategy) Resolve(_ context.Context, q *schema.Question, response any) (Result, error) {
	sel, ok := toStringSlice(wholeOption(q.OptionSet, response, s.matchValue))
	if !ok {
		return Result{}, ErrBadResponse
	}
	sel = nonBlank(sel)
	if len(sel) == 0 {
		return Result{}, nil
	}
	if len(sel) > 1 {
		return Result{}, fmt.Errorf("%w: single-select question got %d values", ErrBadResponse, len(sel))
	}
	o, err := findOption(q.OptionSet, sel[0], s.matchValue)
	if err != nil {
		return Result{}, err
	}
	res := Result{Values: []string{o.Code}, Options: []*schema.Option{o}}
	if q.Scored {
		res.Score = decimal.NewNullDecimal(o.Contribution())
	}
	return res, nil
}

type multiOptionStrategy struct{ matchValue bool }

func (s multiOptionStrategy) Resolve(_ context.Context, q *schema.Question, response any) (Result, error) {
	sel, ok := toStringSlice(wholeOption(q.OptionSet, response, s.matchValue))
	if !ok {
		return Result{}, ErrBadResponse
	}
	res := Result{}
	seen := map[string]bool{}
	sum := decimal.Zero
	for _, v := range nonBlank(sel) {
		o, err := findOption(q.OptionSet, v, s.matchValue)
		if err != nil {
			return Result{}, err
		}
		if seen[o.Code] {
			continue
		}
		seen[o.Code] = true
		res.Values = append(res.Values, o.Code)
		res.Options = append(res.Options, o)
		sum = sum.Add(o.Contribution())
	}
	if q.Scored && len(res.Values) > 0 {
		res.Score = decimal.NewNullDecimal(sum)
	}
	return res, nil
}

type textStrategy struct{}

func (textStrategy) Resolve(ctx context.Context, q *schema.Question, response any) (Result, error) {
	if q.Scored {
		return numericStrategy{}.Resolve(ctx, q, response)
	}
	s, ok := toText(response)
	if !ok {
		return Result{}, ErrBadResponse
	}
	if strings.TrimSpace(s) == "" {
		return Result{}, nil
	}
	return Result{Values: []string{s}}, nil
}

// helpers

func findOption(set *schema.OptionSet, v string, matchValue bool) (*schema.Option, error) {
	if set == nil {
		return nil, fmt.Errorf("%w: %q (question has no option set)", ErrUnknownOption, v)
	}
	if o, ok := set.Option(v); ok {
		return o, nil
	}
	if matchValue {
		for _, o := range set.Options {
			if Matches(o.Value, v) || Matches(o.Label, v) {
				return o, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %q not in %s", ErrUnknownOption, v, set.Code)
}

// wholeOption resolves a comma-bearing string that names one option as a
// whole ("Yes, often") before it would be split into a list.
func wholeOption(set *schema.OptionSet, response any, matchValue bool) any {
	str, ok := response.(string)
	if !ok || !strings.Contains(str, ",") {
		return response
	}
	if o, err := findOption(set, strings.TrimSpace(str), matchValue); err == nil {
		return []string{o.Code}
	}
	return response
}

func toStringSlice(v any) ([]string, bool) {
	switch t := v.(type) {
	case nil:
		return nil, true
	case string:
		if strings.Contains(t, ",") {
			return strings.Split(t, ","), true
		}
		return []string{t}, true
	case []string:
		return t, true
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}

func toText(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", true
	case string:
		return t, true
	case []string:
		return strings.Join(t, ", "), true
	case fmt.Stringer:
		return t.String(), true
	case int, int64, float64:
		return fmt.Sprint(t), true
	default:
		return "", false
	}
}

func nonBlank(xs []string) []string {
	out := make([]string, 0, len(xs))
	for _, x := range xs {
		if x = strings.TrimSpace(x); x != "" {
			out = append(out, x)
		}
	}
	return out
}
