// Package suggest asks an AI model for better values of the model
// assumptions, and applies the accepted ones as plain edits.
package suggest

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/etnz/valuation"
	"github.com/shopspring/decimal"
)

// Suggestion is a proposed value for one field.
type Suggestion struct {
	Value      decimal.Decimal `json:"value"`
	Confidence float64         `json:"confidence"` // in [0, 1]
	Reasoning  string          `json:"reasoning"`
}

// Provider proposes values for the fields of a model. Keys are field paths
// (see valuation.ParsePath) or one of the Assumptions names.
type Provider interface {
	Suggest(ctx context.Context, s valuation.Snapshot) (map[string]Suggestion, error)
}

// Assumptions are the short names of the assumptions suggestions are asked for.
var Assumptions = map[string]valuation.Path{
	"revenue_growth":  valuation.P("dcf_input", "projections", "revenue_growth_start"),
	"ebitda_margin":   valuation.P("dcf_input", "projections", "ebitda_margin_start"),
	"wacc":            valuation.P("dcf_input", "projections", "discount_rate"),
	"terminal_growth": valuation.P("dcf_input", "projections", "terminal_growth_rate"),
}

// Resolve returns the model path of a suggestion key.
func Resolve(key string) (valuation.Path, error) {
	if p, ok := Assumptions[key]; ok {
		return p, nil
	}
	return valuation.ParsePath(key)
}

// Target is what suggestions are applied to. *valuation.Editor implements it.
type Target interface {
	ApplySuggestion(p valuation.Path, v valuation.Value) (valuation.Change, error)
}

// MinConfidence accepts the suggestions at least as confident as c.
func MinConfidence(c float64) func(string, Suggestion) bool {
	return func(_ string, s Suggestion) bool { return s.Confidence >= c }
}

// Apply applies the suggestions accepted by accept (all of them if nil), in
// key order. Each one is a regular edit: it can be undone on its own.
//
// A suggestion that cannot be applied does not stop the others; the errors
// are joined.
func Apply(t Target, suggestions map[string]Suggestion, accept func(string, Suggestion) bool) ([]valuation.Path, error) {
	keys := make([]string, 0, len(suggestions))
	for k := range suggestions {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var (
		applied []valuation.Path
		errs    []error
	)
	for _, k := range keys {
		s := suggestions[k]
		if accept != nil && !accept(k, s) {
			continue
		}
		p, err := Resolve(k)
		if err != nil {
			errs = append(errs, fmt.Errorf("suggestion %q: %w", k, err))
			continue
		}
		c, err := t.ApplySuggestion(p, valuation.N(s.Value))
		if err != nil {
			errs = append(errs, fmt.Errorf("suggestion %q: %w", k, err))
			continue
		}
		if c.Changed {
			applied = append(applied, p)
		}
	}
	return applied, errors.Join(errs...)
}
