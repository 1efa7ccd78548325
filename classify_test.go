package valuation

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		entry Value
		want  Role
	}{
		{"senior name", Obj(F("name", String("Senior Debt"))), Senior},
		{"mezzanine name", Obj(F("name", String("Mezzanine"))), Mezzanine},
		{"junior name", Obj(F("name", String("Junior notes"))), Mezzanine},
		{"preferred name", Obj(F("name", String("Preferred Equity"))), Preferred},
		{"role tag wins over name", Obj(F("name", String("Senior Debt")), F("role", String("mezzanine"))), Mezzanine},
		{"unknown role tag falls back to name", Obj(F("name", String("Senior Debt")), F("role", String("bridge"))), Senior},
		{"first in sweep", Obj(F("name", String("Term Loan")), F("mandatory_cash_sweep_priority", N(1))), Senior},
		{"later in sweep", Obj(F("name", String("Term Loan")), F("mandatory_cash_sweep_priority", N(2))), Unclassified},
		{"not an object", N(1), Unclassified},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.entry); got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRateSource(t *testing.T) {
	tests := []struct {
		role Role
		want SourceID
		ok   bool
	}{
		{Senior, SourceSeniorDebt, true},
		{Mezzanine, SourceMezzanineDebt, true},
		{Preferred, SourcePreferredEquity, true},
		{Unclassified, "", false},
	}
	for _, tt := range tests {
		got, ok := RateSource(tt.role)
		if got != tt.want || ok != tt.ok {
			t.Errorf("RateSource(%v) = %q, %v, want %q, %v", tt.role, got, ok, tt.want, tt.ok)
		}
	}
}

func TestLeverageSource(t *testing.T) {
	if got, want := LeverageSource(" Consumer Goods", LeverageTotal), SourceID("leverage.consumer_goods.total"); got != want {
		t.Errorf("LeverageSource() = %q, want %q", got, want)
	}
}
