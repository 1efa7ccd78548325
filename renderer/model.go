package renderer

import (
	"sort"
	"strconv"

	"github.com/etnz/valuation"
	"github.com/etnz/valuation/market"
	"github.com/etnz/valuation/suggest"
	"github.com/shopspring/decimal"
)

// Field is a numeric model field as displayed: its value and whether it
// follows a market source.
type Field struct {
	Value  decimal.Decimal
	Set    bool   // false if the field is missing or null
	Mode   string // "auto", "manual" or empty if it was never linked
	Source string
}

// Model is the view of an editing session.
type Model struct {
	Company  string
	Currency string
	Sector   string
	History  History

	Entry     Entry
	Financing Financing
	Tranches  []Tranche
	Covenants []Covenant
	Links     []Link
}

type History struct {
	Undo, Redo int
}

type Entry struct {
	Revenue, EBITDA, Multiple, TargetIRR Field
}

type Financing struct {
	TotalLeverage, EquityContribution Field
}

type Tranche struct {
	ID           valuation.EntryID
	Name         string
	Role         string
	Rate         Field
	Leverage     Field
	CashInterest bool
	Priority     Field
	Maturity     Field
}

type Covenant struct {
	ID         valuation.EntryID
	Type       string
	Limit      Field
	Start, End Field
}

type Link struct {
	Path      string
	Mode      string
	Source    string
	LastKnown string
}

// NewModel builds the view of the present snapshot of h, given the link state
// of its fields.
func NewModel(h valuation.HistoryState[valuation.Snapshot], fields []valuation.LinkableField) *Model {
	s := h.Present
	byPath := make(map[string]valuation.LinkableField, len(fields))
	for _, f := range fields {
		byPath[f.Path.String()] = f
	}
	field := func(p valuation.Path) Field {
		var f Field
		f.Value, f.Set = s.Number(p)
		if l, ok := byPath[p.String()]; ok {
			f.Mode = l.Mode.String()
			f.Source = string(l.Source)
		}
		return f
	}
	text := func(p valuation.Path) string {
		t, _ := s.Text(p)
		return t
	}

	m := &Model{
		Company:  text(valuation.P("company_name")),
		Currency: text(valuation.P("currency")),
		Sector:   text(valuation.SectorPath),
		History:  History{Undo: len(h.Past), Redo: len(h.Future)},
		Entry: Entry{
			Revenue:   field(valuation.P("lbo_input", "entry_revenue")),
			EBITDA:    field(valuation.P("lbo_input", "entry_ebitda")),
			Multiple:  field(valuation.P("lbo_input", "entry_ev_ebitda_multiple")),
			TargetIRR: field(valuation.P("lbo_input", "target_irr")),
		},
		Financing: Financing{
			TotalLeverage:      field(valuation.TotalLeveragePath),
			EquityContribution: field(valuation.EquityContributionPath),
		},
	}
	if m.Currency == "" {
		m.Currency = "USD"
	}

	if l, ok := s.List(valuation.TranchesPath); ok {
		for _, e := range l.Entries() {
			at := func(key string) valuation.Path {
				return valuation.TranchesPath.Append(valuation.Ident(e.ID), valuation.Key(key))
			}
			cash, _ := s.Get(at("cash_interest"))
			t := Tranche{
				ID:           e.ID,
				Name:         text(at(valuation.NameField)),
				Role:         valuation.Classify(e.Value).String(),
				Rate:         field(at(valuation.InterestRateField)),
				Leverage:     field(at(valuation.LeverageField)),
				CashInterest: cash == valuation.Bool(true),
				Priority:     field(at(valuation.SweepPriorityField)),
				Maturity:     field(at("maturity")),
			}
			m.Tranches = append(m.Tranches, t)
		}
	}

	if l, ok := s.List(valuation.CovenantsPath); ok {
		for _, e := range l.Entries() {
			at := func(key string) valuation.Path {
				return valuation.CovenantsPath.Append(valuation.Ident(e.ID), valuation.Key(key))
			}
			m.Covenants = append(m.Covenants, Covenant{
				ID:    e.ID,
				Type:  text(at("covenant_type")),
				Limit: field(at("limit")),
				Start: field(at("start_year")),
				End:   field(at("end_year")),
			})
		}
	}

	for _, f := range fields {
		last := "-"
		if f.LastKnown.Valid {
			last = f.LastKnown.Decimal.String()
		}
		m.Links = append(m.Links, Link{
			Path:      f.Path.String(),
			Mode:      f.Mode.String(),
			Source:    string(f.Source),
			LastKnown: last,
		})
	}
	return m
}

// Scenario is a named market scenario.
type Scenario struct {
	Name string
	market.Scenario
}

// Scenarios sorts scenarios by name.
func Scenarios(m map[string]market.Scenario) []Scenario {
	list := make([]Scenario, 0, len(m))
	for name, s := range m {
		list = append(list, Scenario{Name: name, Scenario: s})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}

// Suggestion is an AI suggestion next to the value it replaces.
type Suggestion struct {
	Key     string
	Path    string
	Current Field
	suggest.Suggestion
}

// Percent returns the confidence as a percentage.
func (s Suggestion) Percent() string {
	return strconv.Itoa(int(s.Confidence*100+0.5)) + "%"
}

// Suggestions pairs suggestions with the current values of s, sorted by key.
// Suggestions on unknown paths are listed with no current value.
func Suggestions(s valuation.Snapshot, m map[string]suggest.Suggestion) []Suggestion {
	list := make([]Suggestion, 0, len(m))
	for key, sg := range m {
		v := Suggestion{Key: key, Suggestion: sg}
		if p, err := suggest.Resolve(key); err == nil {
			v.Path = p.String()
			v.Current.Value, v.Current.Set = s.Number(p)
		}
		list = append(list, v)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Key < list[j].Key })
	return list
}
