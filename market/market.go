// Package market provides the market data the valuation model links to:
// interest rates by financing layer, typical leverage multiples by sector,
// rate scenarios and historical snapshots.
package market

import (
	"context"
	"strings"

	"github.com/etnz/valuation"
	"github.com/shopspring/decimal"
)

// Provider is a source of market data.
type Provider interface {
	Rates(ctx context.Context) (Rates, error)
	LeverageMultiples(ctx context.Context, sector string) (LeverageMultiples, error)
	Scenarios(ctx context.Context) (map[string]Scenario, error)
	// Snapshots returns the market snapshots of the last windowDays days, oldest
	// first.
	Snapshots(ctx context.Context, windowDays int) ([]Snapshot, error)
}

// Rates are the current market interest rates, as fractions (0.05 is 5%).
type Rates struct {
	RiskFree        decimal.Decimal `json:"risk_free_rate"`
	SeniorDebt      decimal.Decimal `json:"senior_debt_rate"`
	MezzanineDebt   decimal.Decimal `json:"mezzanine_debt_rate"`
	PreferredEquity decimal.Decimal `json:"preferred_equity_rate"`
}

// Values returns the rates by source.
func (r Rates) Values() map[valuation.SourceID]decimal.Decimal {
	return map[valuation.SourceID]decimal.Decimal{
		valuation.SourceRiskFree:        r.RiskFree,
		valuation.SourceSeniorDebt:      r.SeniorDebt,
		valuation.SourceMezzanineDebt:   r.MezzanineDebt,
		valuation.SourcePreferredEquity: r.PreferredEquity,
	}
}

// Shift returns the rates moved by delta, floored at zero.
func (r Rates) Shift(delta decimal.Decimal) Rates {
	shift := func(d decimal.Decimal) decimal.Decimal {
		return decimal.Max(decimal.Zero, d.Add(delta))
	}
	return Rates{
		RiskFree:        shift(r.RiskFree),
		SeniorDebt:      shift(r.SeniorDebt),
		MezzanineDebt:   shift(r.MezzanineDebt),
		PreferredEquity: shift(r.PreferredEquity),
	}
}

// LeverageMultiples are the typical debt multiples (Debt/EBITDA) of a sector.
type LeverageMultiples struct {
	Senior             decimal.Decimal `json:"senior_leverage"`
	Total              decimal.Decimal `json:"total_leverage"`
	EquityContribution decimal.Decimal `json:"equity_contribution_percent"`
}

// Values returns the multiples by source, for sector.
func (m LeverageMultiples) Values(sector string) map[valuation.SourceID]decimal.Decimal {
	return map[valuation.SourceID]decimal.Decimal{
		valuation.LeverageSource(sector, valuation.LeverageSenior):             m.Senior,
		valuation.LeverageSource(sector, valuation.LeverageTotal):              m.Total,
		valuation.LeverageSource(sector, valuation.LeverageEquityContribution): m.EquityContribution,
	}
}

// Scenario is a market environment: rates plus adjustments to add to the base
// multiples and growth rates.
type Scenario struct {
	Description         string          `json:"description"`
	Rates               Rates           `json:"rates"`
	MultiplesAdjustment decimal.Decimal `json:"multiples_adjustment"`
	GrowthAdjustment    decimal.Decimal `json:"growth_adjustment"`
}

// Snapshot is the market as it was on a given date.
type Snapshot struct {
	ID              int                          `json:"id"`
	Date            string                       `json:"date"`
	Rates           Rates                        `json:"rates"`
	SystemMultiples map[string]LeverageMultiples `json:"system_multiples"`
}

// Multiples returns the multiples of sector in s. Sector names are matched
// case-insensitively.
func (s Snapshot) Multiples(sector string) (LeverageMultiples, bool) {
	return lookup(s.SystemMultiples, sector)
}

func lookup(m map[string]LeverageMultiples, sector string) (LeverageMultiples, bool) {
	if v, ok := m[sector]; ok {
		return v, true
	}
	for k, v := range m {
		if strings.EqualFold(strings.TrimSpace(k), strings.TrimSpace(sector)) {
			return v, true
		}
	}
	return LeverageMultiples{}, false
}
