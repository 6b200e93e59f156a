package scoring

import (
	"strings"
	"sync"

	"github.com/shopspring/decimal"
)

// Item is one weighted contribution to a scale.
type Item struct {
	QuestionCode string
	Weight       decimal.Decimal
	Contribution decimal.Decimal // zero when unanswered
	Answered     bool
}

// Calculation combines a scale's items into its score.
type Calculation interface {
	Score(items []Item) decimal.Decimal
}

type sumCalculation struct{}

func (sumCalculation) Score(items []Item) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Weight.Mul(it.Contribution))
	}
	return total
}

var (
	calcMu       sync.RWMutex
	calculations = map[string]Calculation{"SUM": sumCalculation{}}
)

// RegisterCalculation binds a calculation to a scale's calculation name.
func RegisterCalculation(name string, c Calculation) {
	calcMu.Lock()
	defer calcMu.Unlock()
	calculations[strings.ToUpper(strings.TrimSpace(name))] = c
}

// lookupCalculation treats an empty name as SUM.
func lookupCalculation(name string) (Calculation, bool) {
	name = strings.ToUpper(strings.TrimSpace(name))
	if name == "" {
		name = "SUM"
	}
	calcMu.RLock()
	defer calcMu.RUnlock()
	c, ok := calculations[name]
	return c, ok && c != nil
}
