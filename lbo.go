package valuation

import (
	"fmt"
)

// Locations of the collections and linked fields of the valuation model.
var (
	TranchesPath           = P("lbo_input", "financing", "tranches")
	TotalLeveragePath      = P("lbo_input", "financing", "total_leverage_ratio")
	EquityContributionPath = P("lbo_input", "financing", "equity_contribution_percent")
	CovenantsPath          = P("lbo_input", "covenants")
	DebtSchedulePath       = P("dcfe_input", "debt_schedule")
	TransactionsPath       = P("precedent_transactions_input", "transactions")
	SectorPath             = P("sector")
)

// Covenant types.
const (
	MaxDebtEBITDA       = "max_debt_ebitda"
	MinInterestCoverage = "min_interest_coverage"
)

// NewTranche returns a debt tranche entry with the usual defaults. The role is
// recorded only if known: Classify falls back to the name otherwise.
func NewTranche(name string, role Role, priority int) *Object {
	fields := []Field{F(NameField, String(name))}
	if role != Unclassified {
		fields = append(fields, F(RoleField, String(role.String())))
	}
	fields = append(fields,
		F("amount", Null{}),
		F(LeverageField, N(1.0)),
		F(InterestRateField, N(0.08)),
		F("cash_interest", Bool(true)),
		F("amortization_rate", N(0.0)),
		F("maturity", N(5)),
		F(SweepPriorityField, N(priority)),
	)
	return Obj(fields...)
}

// NewCovenant returns a covenant rule entry.
func NewCovenant(kind string, limit float64, start, end int) *Object {
	return Obj(
		F("covenant_type", String(kind)),
		F("limit", N(limit)),
		F("start_year", N(start)),
		F("end_year", N(end)),
	)
}

// AddTranche returns the patch appending a new tranche at the end of the cash
// sweep of s.
func AddTranche(s Snapshot, name string, role Role) Patch {
	n := 0
	if l, ok := s.List(TranchesPath); ok {
		n = l.Len()
	}
	return CollectionInsert{Collection: TranchesPath, Entry: NewTranche(name, role, n+1)}
}

// RenumberSweepPriority returns the patches making the cash sweep priorities
// of the tranches contiguous (1, 2, ...) in their current order. Removing a
// tranche leaves the others untouched: renumbering is an explicit edit.
func RenumberSweepPriority(s Snapshot) []Patch {
	l, ok := s.List(TranchesPath)
	if !ok {
		return nil
	}
	var patches []Patch
	for i, e := range l.Entries() {
		want := N(i + 1)
		o, ok := e.Value.(*Object)
		if !ok {
			continue
		}
		if got, ok := o.Get(SweepPriorityField); ok && got.Equal(want) {
			continue
		}
		patches = append(patches, CollectionUpdate{
			Collection: TranchesPath,
			ID:         e.ID,
			Field:      P(SweepPriorityField),
			Value:      want,
		})
	}
	return patches
}

// LinkTrancheRates links the interest rate of every tranche to the market
// rate of its role. Unclassified tranches are left manual. It returns the
// linked paths.
func LinkTrancheRates(e *Editor) ([]Path, error) {
	l, ok := e.Present().List(TranchesPath)
	if !ok {
		return nil, stale(TranchesPath)
	}
	var linked []Path
	for _, entry := range l.Entries() {
		source, ok := RateSource(Classify(entry.Value))
		if !ok {
			continue
		}
		p := TranchesPath.Append(Ident(entry.ID), Key(InterestRateField))
		if err := e.Link(p, source); err != nil {
			return linked, fmt.Errorf("linking %s: %w", p, err)
		}
		linked = append(linked, p)
	}
	return linked, nil
}

// LinkSectorLeverage links the financing structure to the typical multiples
// of sector: the total leverage, the equity contribution and the leverage of
// the senior tranche.
func LinkSectorLeverage(e *Editor, sector string) ([]Path, error) {
	links := []struct {
		path   Path
		source SourceID
	}{
		{TotalLeveragePath, LeverageSource(sector, LeverageTotal)},
		{EquityContributionPath, LeverageSource(sector, LeverageEquityContribution)},
	}
	if l, ok := e.Present().List(TranchesPath); ok {
		for _, entry := range l.Entries() {
			if Classify(entry.Value) == Senior {
				links = append(links, struct {
					path   Path
					source SourceID
				}{TranchesPath.Append(Ident(entry.ID), Key(LeverageField)), LeverageSource(sector, LeverageSenior)})
				break
			}
		}
	}
	var linked []Path
	for _, l := range links {
		if err := e.Link(l.path, l.source); err != nil {
			return linked, fmt.Errorf("linking %s: %w", l.path, err)
		}
		linked = append(linked, l.path)
	}
	return linked, nil
}

// DefaultModel returns the model a new valuation starts from.
func DefaultModel() Snapshot {
	historical := func() *Object {
		return Obj(
			F("years", nums(2020, 2021, 2022)),
			F("revenue", nums(100, 110, 120)),
			F("ebitda", nums(20, 22, 25)),
			F("ebit", nums(15, 17, 20)),
			F("net_income", nums(10, 12, 15)),
			F("capex", nums(5, 5, 6)),
			F("nwc", nums(2, 2, 3)),
		)
	}
	debt := func(beginning, borrowing, repayment float64) *Object {
		return Obj(
			F("beginning_debt", N(beginning)),
			F("new_borrowing", N(borrowing)),
			F("debt_repayment", N(repayment)),
			F("interest_rate", N(0.05)),
		)
	}
	transaction := func(target, acquirer, date string, value, revenue, ebitda float64) *Object {
		return Obj(
			F("target_name", String(target)),
			F("acquirer_name", String(acquirer)),
			F("announcement_date", String(date)),
			F("deal_value", N(value)),
			F("revenue", N(revenue)),
			F("ebitda", N(ebitda)),
		)
	}
	senior := NewTranche("Senior Debt", Senior, 1).
		With(LeverageField, N(4.0)).
		With("amortization_rate", N(0.05))
	mezzanine := NewTranche("Mezzanine", Mezzanine, 2).
		With(InterestRateField, N(0.12)).
		With("cash_interest", Bool(false)).
		With("maturity", N(7))

	return NewSnapshot(Obj(
		F("company_name", String("New Company")),
		F("currency", String("USD")),
		F("ticker", String("")),
		F("industry", String("")),
		F("sector", String("")),
		F("description", String("")),
		F("fiscal_year_end", String("")),
		F("dcf_input", Obj(
			F("historical", historical()),
			F("projections", Obj(
				F("revenue_growth_start", N(0.05)),
				F("revenue_growth_end", N(0.03)),
				F("ebitda_margin_start", N(0.20)),
				F("ebitda_margin_end", N(0.22)),
				F("tax_rate", N(0.25)),
				F("discount_rate", N(0.10)),
				F("terminal_growth_rate", N(0.02)),
				F("terminal_exit_multiple", N(12.0)),
				F("depreciation_rate", N(0.03)),
				F("working_capital", Obj(F("dso", N(45)), F("dio", N(60)), F("dpo", N(30)))),
			)),
			F("shares_outstanding", N(1000000)),
			F("net_debt", N(5000000)),
		)),
		F("gpc_input", Obj(
			F("target_ticker", String("TARGET")),
			F("peer_tickers", Items(String("PEER1"), String("PEER2"))),
			F("metrics", Obj(F("LTM Revenue", N(120)), F("LTM EBITDA", N(25)))),
			F("ev_revenue_multiple", Null{}),
			F("ev_ebitda_multiple", Null{}),
		)),
		F("dcfe_input", Obj(
			F("historical", historical()),
			F("projections", Obj(
				F("revenue_growth_start", N(0.05)),
				F("revenue_growth_end", N(0.03)),
				F("ebitda_margin_start", N(0.20)),
				F("ebitda_margin_end", N(0.22)),
				F("tax_rate", N(0.25)),
				F("discount_rate", N(0.10)),
				F("terminal_growth_rate", N(0.025)),
			)),
			F("debt_schedule", Items(
				debt(50, 10, 5),
				debt(55, 5, 5),
				debt(55, 0, 10),
				debt(45, 0, 10),
				debt(35, 0, 10),
			)),
			F("cost_of_equity", N(0.12)),
			F("terminal_growth_rate", N(0.025)),
			F("shares_outstanding", N(1000000)),
		)),
		F("precedent_transactions_input", Obj(
			F("transactions", Items(
				transaction("Company A", "Buyer 1", "2023-01-15", 500, 200, 50),
				transaction("Company B", "Buyer 2", "2023-03-20", 800, 300, 80),
			)),
			F("target_revenue", N(220)),
			F("target_ebitda", N(55)),
			F("use_median", Bool(true)),
		)),
		F("anav_input", Obj(
			F("assets", Obj(F("Cash", N(10)), F("Inventory", N(20)), F("PP&E", N(100)))),
			F("liabilities", Obj(F("Debt", N(50)), F("Payables", N(10)))),
			F("adjustments", Obj(F("PP&E", N(20)), F("Inventory", N(-5)))),
		)),
		F("sensitivity_analysis", Obj(
			F("variable_1", String("discount_rate")),
			F("range_1", nums(0.08, 0.10, 0.12)),
			F("variable_2", String("terminal_growth_rate")),
			F("range_2", nums(0.01, 0.02, 0.03)),
		)),
		F("method_weights", Obj(
			F("dcf", N(0.4)),
			F("fcfe", N(0.0)),
			F("gpc", N(0.3)),
			F("precedent", N(0.3)),
			F("anav", N(0.0)),
			F("lbo", N(0.0)),
		)),
		F("lbo_input", Obj(
			F("solve_for", String("entry_price")),
			F("entry_revenue", N(100)),
			F("entry_ebitda", N(20)),
			F("entry_ev_ebitda_multiple", N(10.0)),
			F("target_irr", N(0.20)),
			F("financing", Obj(
				F("tranches", Items(senior, mezzanine)),
				F("total_leverage_ratio", N(5.0)),
				F("equity_contribution_percent", N(0.40)),
			)),
			F("covenants", Items(NewCovenant(MaxDebtEBITDA, 6.0, 1, 5))),
			F("assumptions", Obj(
				F("transaction_fees_percent", N(0.02)),
				F("synergy_benefits", N(0.0)),
			)),
			F("revenue_growth_rate", N(0.05)),
			F("ebitda_margin", N(0.25)),
			F("capex_percentage", N(0.03)),
			F("nwc_percentage", N(0.05)),
			F("tax_rate", N(0.25)),
			F("holding_period", N(5)),
			F("exit_ev_ebitda_multiple", N(10.0)),
		)),
	))
}

func nums(values ...float64) *List {
	items := make([]Value, len(values))
	for i, v := range values {
		items[i] = N(v)
	}
	return Items(items...)
}
