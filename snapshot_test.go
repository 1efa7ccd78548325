package valuation

import (
	"reflect"
	"testing"

	"github.com/shopspring/decimal"
)

func TestSnapshotAccessors(t *testing.T) {
	s := DefaultModel()

	if got, ok := s.Text(P("company_name")); !ok || got != "New Company" {
		t.Errorf("Text(company_name) = %q, %v, want New Company, true", got, ok)
	}
	if _, ok := s.Text(P("lbo_input", "target_irr")); ok {
		t.Error("Text(target_irr) = _, true, want false on a number")
	}
	if got, ok := s.Number(TotalLeveragePath); !ok || !got.Equal(decimal.NewFromInt(5)) {
		t.Errorf("Number(%s) = %v, %v, want 5, true", TotalLeveragePath, got, ok)
	}
	if _, ok := s.Number(P("company_name")); ok {
		t.Error("Number(company_name) = _, true, want false on a string")
	}
	if l, ok := s.List(TranchesPath); !ok || l.Len() != 2 {
		t.Errorf("List(%s) = %v, %v, want 2 entries", TranchesPath, l, ok)
	}
	if s.Has(P("lbo_input", "nothing")) {
		t.Error("Has(lbo_input.nothing) = true, want false")
	}
}

func TestSnapshotZero(t *testing.T) {
	var s Snapshot
	if !s.Equal(NewSnapshot(nil)) {
		t.Error("zero Snapshot is not equal to NewSnapshot(nil)")
	}
	if got := s.String(); got != "{}" {
		t.Errorf("String() = %q, want {}", got)
	}
}

func TestSnapshotQuery(t *testing.T) {
	s := DefaultModel()
	testCases := []struct {
		expr string
		want any
	}{
		{"$.company_name", "New Company"},
		{"$.lbo_input.target_irr", 0.2},
		{"$.lbo_input.financing.tranches[*].name", []any{"Senior Debt", "Mezzanine"}},
		{"$.lbo_input.financing.tranches[1].interest_rate", 0.12},
	}
	for _, tc := range testCases {
		got, err := s.Query(tc.expr)
		if err != nil {
			t.Errorf("Query(%q) = %v", tc.expr, err)
			continue
		}
		if !reflect.DeepEqual(got, tc.want) {
			t.Errorf("Query(%q) = %#v, want %#v", tc.expr, got, tc.want)
		}
	}

	if _, err := s.Query("$.lbo_input.nothing"); err == nil {
		t.Error("Query(missing) = nil error, want an error")
	}
}
