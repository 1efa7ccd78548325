package valuation

import "strings"

// SourceID names an external value a field can be linked to, e.g.
// "rates.senior_debt".
//
// A feed ("rates", "leverage.technology") is the SourceID of a request that
// delivers several source values at once.
type SourceID string

// Market rate sources, delivered by the FeedRates feed.
const (
	FeedRates SourceID = "rates"

	SourceRiskFree        SourceID = "rates.risk_free"
	SourceSeniorDebt      SourceID = "rates.senior_debt"
	SourceMezzanineDebt   SourceID = "rates.mezzanine_debt"
	SourcePreferredEquity SourceID = "rates.preferred_equity"
)

// RateSource returns the market rate that applies to an entry of the given
// role.
func RateSource(r Role) (SourceID, bool) {
	switch r {
	case Senior:
		return SourceSeniorDebt, true
	case Mezzanine:
		return SourceMezzanineDebt, true
	case Preferred:
		return SourcePreferredEquity, true
	}
	return "", false
}

// FeedLeverage is the feed of leverage multiples typical for a sector.
func FeedLeverage(sector string) SourceID {
	return SourceID("leverage." + sectorKey(sector))
}

// Leverage multiple components.
const (
	LeverageSenior             = "senior"
	LeverageTotal              = "total"
	LeverageEquityContribution = "equity_contribution_pct"
)

// LeverageSource returns the source of one leverage component for a sector.
func LeverageSource(sector, component string) SourceID {
	return FeedLeverage(sector) + SourceID("."+component)
}

func sectorKey(sector string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(sector)), " ", "_")
}
