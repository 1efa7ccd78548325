package valuation

import (
	"strings"
)

// Role is the financing category of a collection entry (e.g. a debt tranche).
// It decides which market source applies to it.
type Role int

const (
	Unclassified Role = iota
	Senior
	Mezzanine
	Preferred
)

var roleNames = [...]string{
	Unclassified: "unclassified",
	Senior:       "senior",
	Mezzanine:    "mezzanine",
	Preferred:    "preferred",
}

func (r Role) String() string {
	if r < 0 || int(r) >= len(roleNames) {
		return roleNames[Unclassified]
	}
	return roleNames[r]
}

// ParseRole returns the role named s.
func ParseRole(s string) (Role, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for r, name := range roleNames {
		if name == s {
			return Role(r), true
		}
	}
	return Unclassified, false
}

// Tranche member names.
const (
	RoleField          = "role"
	NameField          = "name"
	InterestRateField  = "interest_rate"
	LeverageField      = "leverage_multiple"
	SweepPriorityField = "mandatory_cash_sweep_priority"
)

// Classify returns the role of a collection entry. It looks, in order, at
//
//  1. the explicit "role" tag,
//  2. the entry name ("senior", "mezz" or "junior", "preferred"),
//  3. its position in the cash sweep (priority 1 is senior).
//
// Classify never fails: anything it cannot place is Unclassified.
func Classify(entry Value) Role {
	o, ok := entry.(*Object)
	if !ok {
		return Unclassified
	}
	if v, ok := o.Get(RoleField); ok {
		if s, ok := v.(String); ok {
			if r, ok := ParseRole(string(s)); ok && r != Unclassified {
				return r
			}
		}
	}
	if v, ok := o.Get(NameField); ok {
		if s, ok := v.(String); ok {
			if r := classifyName(string(s)); r != Unclassified {
				return r
			}
		}
	}
	if v, ok := o.Get(SweepPriorityField); ok {
		if n, ok := v.(Number); ok && n.d.IsInteger() && n.d.IntPart() == 1 {
			return Senior
		}
	}
	return Unclassified
}

func classifyName(name string) Role {
	name = strings.ToLower(name)
	switch {
	case strings.Contains(name, "senior"):
		return Senior
	case strings.Contains(name, "mezz"), strings.Contains(name, "junior"):
		return Mezzanine
	case strings.Contains(name, "preferred"):
		return Preferred
	}
	return Unclassified
}
