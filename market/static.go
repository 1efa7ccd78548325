package market

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// Static is an in-memory Provider, used offline and in tests.
type Static struct {
	Current  Rates
	Leverage map[string]LeverageMultiples // by sector, "default" for unknown sectors
	Scenario map[string]Scenario
	History  []Snapshot // one per day, oldest first
	Err      error      // if set, every call fails with it
}

// DefaultStatic returns typical market conditions.
func DefaultStatic() *Static {
	d := decimal.RequireFromString
	equity := d("0.40")
	lev := func(senior, total string) LeverageMultiples {
		return LeverageMultiples{Senior: d(senior), Total: d(total), EquityContribution: equity}
	}
	current := Rates{
		RiskFree:        d("0.0425"),
		SeniorDebt:      d("0.054"),
		MezzanineDebt:   d("0.0775"),
		PreferredEquity: d("0.0975"),
	}
	leverage := map[string]LeverageMultiples{
		"Technology":  lev("4.5", "6.5"),
		"Healthcare":  lev("4.0", "6.0"),
		"Industrials": lev("3.5", "5.0"),
		"Consumer":    lev("3.5", "5.5"),
		"default":     lev("3.5", "5.0"),
	}
	return &Static{
		Current:  current,
		Leverage: leverage,
		Scenario: map[string]Scenario{
			"Current": {
				Description: "Live market conditions.",
				Rates:       current,
			},
			"Stress Test": {
				Description:         "Recessionary environment: +200bps rates, -2.0x multiples.",
				Rates:               current.Shift(d("0.02")),
				MultiplesAdjustment: d("-2.0"),
				GrowthAdjustment:    d("-0.02"),
			},
			"Bull Market": {
				Description:         "Expansionary environment: -50bps rates, +1.5x multiples.",
				Rates:               current.Shift(d("-0.005")),
				MultiplesAdjustment: d("1.5"),
				GrowthAdjustment:    d("0.01"),
			},
		},
		History: []Snapshot{
			{ID: 1, Date: "2025-01-02", Rates: current.Shift(d("0.0050")), SystemMultiples: leverage},
			{ID: 2, Date: "2025-01-03", Rates: current.Shift(d("0.0025")), SystemMultiples: leverage},
			{ID: 3, Date: "2025-01-06", Rates: current, SystemMultiples: leverage},
		},
	}
}

// Rates implements Provider.
func (s *Static) Rates(ctx context.Context) (Rates, error) {
	if err := s.check(ctx); err != nil {
		return Rates{}, err
	}
	return s.Current, nil
}

// LeverageMultiples implements Provider. Unknown sectors get the "default"
// multiples.
func (s *Static) LeverageMultiples(ctx context.Context, sector string) (LeverageMultiples, error) {
	if err := s.check(ctx); err != nil {
		return LeverageMultiples{}, err
	}
	if m, ok := lookup(s.Leverage, sector); ok {
		return m, nil
	}
	if m, ok := s.Leverage["default"]; ok {
		return m, nil
	}
	return LeverageMultiples{}, fmt.Errorf("no leverage multiples for sector %q", sector)
}

// Scenarios implements Provider.
func (s *Static) Scenarios(ctx context.Context) (map[string]Scenario, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	return s.Scenario, nil
}

// Snapshots implements Provider.
func (s *Static) Snapshots(ctx context.Context, windowDays int) ([]Snapshot, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	if windowDays <= 0 || windowDays >= len(s.History) {
		return s.History, nil
	}
	return s.History[len(s.History)-windowDays:], nil
}

func (s *Static) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.Err
}
