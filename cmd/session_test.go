package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/etnz/valuation"
	"github.com/etnz/valuation/docs"
	"github.com/etnz/valuation/market"
	"github.com/etnz/valuation/suggest"
	"github.com/shopspring/decimal"
)

func newTestSession(t *testing.T) (*Session, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	s := NewSession(valuation.NewEditor(valuation.DefaultModel()), market.DefaultStatic(), &out, strings.NewReader(""))
	t.Cleanup(s.Close)
	return s, &out
}

func number(t *testing.T, s valuation.Snapshot, path string) decimal.Decimal {
	t.Helper()
	p, err := valuation.ParsePath(path)
	if err != nil {
		t.Fatalf("ParsePath(%q) = %v", path, err)
	}
	n, ok := s.Number(p)
	if !ok {
		t.Fatalf("%s is not a number", path)
	}
	return n
}

func TestSplit(t *testing.T) {
	testCases := []struct {
		line    string
		want    []string
		wantErr bool
	}{
		{"", nil, false},
		{"  undo  ", []string{"undo"}, false},
		{"set a.b 8%", []string{"set", "a.b", "8%"}, false},
		{`set company_name "ACME  Industrial"`, []string{"set", "company_name", `"ACME  Industrial"`}, false},
		{"set\ta\t1", []string{"set", "a", "1"}, false},
		{`add tranche "Second Lien`, nil, true},
	}
	for _, tc := range testCases {
		got, err := split(tc.line)
		if (err != nil) != tc.wantErr {
			t.Errorf("split(%q) error = %v, want error %v", tc.line, err, tc.wantErr)
			continue
		}
		if !reflect.DeepEqual(got, tc.want) {
			t.Errorf("split(%q) = %q, want %q", tc.line, got, tc.want)
		}
	}
}

func TestSessionEdit(t *testing.T) {
	s, out := newTestSession(t)
	err := s.Run(context.Background(),
		`set company_name "ACME Industrial"`,
		"set lbo_input.target_irr 25%",
		"set lbo_input.target_irr 25%",
		"undo",
		"add tranche Unitranche senior",
		"bye",
		"set company_name never",
	)
	if err != nil {
		t.Fatalf("Run() = %v", err)
	}
	present := s.Editor.Present()
	if got, _ := present.Text(valuation.P("company_name")); got != "ACME Industrial" {
		t.Errorf("company_name = %q, want ACME Industrial", got)
	}
	if got := number(t, present, "lbo_input.target_irr"); !got.Equal(decimal.RequireFromString("0.2")) {
		t.Errorf("target_irr = %v, want 0.2 after undo", got)
	}
	if got := number(t, present, "lbo_input.financing.tranches[3].mandatory_cash_sweep_priority"); !got.Equal(decimal.NewFromInt(3)) {
		t.Errorf("new tranche priority = %v, want 3", got)
	}
	for _, want := range []string{"nothing changed", "added lbo_input.financing.tranches[3]"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("Run() output = %q, want %q", out.String(), want)
		}
	}
}

func TestSessionLinkAndRefresh(t *testing.T) {
	s, out := newTestSession(t)
	ctx := context.Background()
	for _, line := range []string{"autolink Technology", "rates"} {
		if _, err := s.Exec(ctx, line); err != nil {
			t.Fatalf("Exec(%q) = %v", line, err)
		}
	}
	if !strings.Contains(out.String(), "5 fields linked") {
		t.Errorf("autolink output = %q, want 5 fields linked", out.String())
	}
	present := s.Editor.Present()
	testCases := []struct {
		path string
		want string
	}{
		{"lbo_input.financing.tranches[1].interest_rate", "0.054"},
		{"lbo_input.financing.tranches[2].interest_rate", "0.0775"},
	}
	for _, tc := range testCases {
		if got := number(t, present, tc.path); !got.Equal(decimal.RequireFromString(tc.want)) {
			t.Errorf("%s = %v, want %s", tc.path, got, tc.want)
		}
	}

	if _, err := s.Exec(ctx, "leverage"); err == nil {
		t.Error("Exec(leverage) without sector = nil, want an error")
	}
	if _, err := s.Exec(ctx, "leverage Technology"); err != nil {
		t.Fatalf("Exec(leverage Technology) = %v", err)
	}
	if got := number(t, s.Editor.Present(), "lbo_input.financing.total_leverage_ratio"); !got.Equal(decimal.RequireFromString("6.5")) {
		t.Errorf("total_leverage_ratio = %v, want 6.5", got)
	}

	// one refresh, one undo step.
	if _, err := s.Exec(ctx, "undo"); err != nil {
		t.Fatal(err)
	}
	leverage := []struct {
		path string
		want string
	}{
		{"lbo_input.financing.total_leverage_ratio", "5"},
		{"lbo_input.financing.tranches[1].leverage_multiple", "4"},
		{"lbo_input.financing.tranches[1].interest_rate", "0.054"},
	}
	for _, tc := range leverage {
		if got := number(t, s.Editor.Present(), tc.path); !got.Equal(decimal.RequireFromString(tc.want)) {
			t.Errorf("after undo %s = %v, want %s", tc.path, got, tc.want)
		}
	}

	// a manual edit wins over the link.
	out.Reset()
	if _, err := s.Exec(ctx, "set lbo_input.financing.tranches[1].interest_rate 7%"); err != nil {
		t.Fatalf("Exec(set) = %v", err)
	}
	if !strings.Contains(out.String(), "lbo_input.financing.tranches[1].interest_rate is now manual") {
		t.Errorf("set output = %q, want the override notice", out.String())
	}
	static := s.Market.(*market.Static)
	static.Current = static.Current.Shift(decimal.RequireFromString("0.01"))
	if _, err := s.Exec(ctx, "rates"); err != nil {
		t.Fatalf("Exec(rates) = %v", err)
	}
	present = s.Editor.Present()
	if got := number(t, present, "lbo_input.financing.tranches[1].interest_rate"); !got.Equal(decimal.RequireFromString("0.07")) {
		t.Errorf("overridden rate = %v, want 0.07", got)
	}
	if got := number(t, present, "lbo_input.financing.tranches[2].interest_rate"); !got.Equal(decimal.RequireFromString("0.0875")) {
		t.Errorf("linked rate = %v, want 0.0875", got)
	}
}

func TestSessionUnavailable(t *testing.T) {
	var out bytes.Buffer
	static := market.DefaultStatic()
	static.Err = errors.New("backend down")
	s := NewSession(valuation.NewEditor(valuation.DefaultModel()), static, &out, strings.NewReader(""))
	defer s.Close()

	if _, err := s.Exec(context.Background(), "rates"); err == nil {
		t.Fatal("Exec(rates) = nil, want an error")
	}
	if !strings.Contains(out.String(), "notice:") || !strings.Contains(out.String(), "backend down") {
		t.Errorf("output = %q, want an unavailable notice", out.String())
	}
}

func TestSessionErrors(t *testing.T) {
	testCases := []struct {
		line string
		want error
	}{
		{"set", nil},
		{"set lbo_input..x 1", valuation.ErrInvalidPath},
		{"set lbo_input.target_irr 12abc", valuation.ErrMalformedNumber},
		{"rm lbo_input.covenants", valuation.ErrInvalidPatch},
		{"rm lbo_input.covenants[9]", valuation.ErrStalePatch},
		{"add tranche Junior boss", valuation.ErrInvalidPatch},
		{"add covenant max_debt_ebitda 6 5 1", valuation.ErrInvalidPatch},
		{"link company_name rates.senior_debt", valuation.ErrInvalidPatch},
		{"link lbo_input.nothing rates.senior_debt", valuation.ErrStalePatch},
		{"frobnicate", nil},
		{"accept", nil},
		{"suggest", nil},
		{"calc", nil},
		{"save", nil},
		{"snapshots -3", nil},
	}
	for _, tc := range testCases {
		s, _ := newTestSession(t)
		_, err := s.Exec(context.Background(), tc.line)
		if err == nil {
			t.Errorf("Exec(%q) = nil, want an error", tc.line)
			continue
		}
		if tc.want != nil && !errors.Is(err, tc.want) {
			t.Errorf("Exec(%q) = %v, want %v", tc.line, err, tc.want)
		}
	}
}

type fakeSuggester map[string]suggest.Suggestion

func (f fakeSuggester) Suggest(context.Context, valuation.Snapshot) (map[string]suggest.Suggestion, error) {
	return f, nil
}

func TestSessionSuggestAccept(t *testing.T) {
	s, out := newTestSession(t)
	s.MinConfidence = 0.5
	s.Suggester = fakeSuggester{
		"wacc":           {Value: decimal.RequireFromString("0.095"), Confidence: 0.8, Reasoning: "Lower beta"},
		"revenue_growth": {Value: decimal.RequireFromString("0.07"), Confidence: 0.3, Reasoning: "Optimistic"},
	}
	ctx := context.Background()
	for _, line := range []string{"suggest", "accept"} {
		if _, err := s.Exec(ctx, line); err != nil {
			t.Fatalf("Exec(%q) = %v", line, err)
		}
	}
	if !strings.Contains(out.String(), "1 suggestions applied") {
		t.Errorf("output = %q, want 1 suggestion applied", out.String())
	}
	present := s.Editor.Present()
	if got := number(t, present, "dcf_input.projections.discount_rate"); !got.Equal(decimal.RequireFromString("0.095")) {
		t.Errorf("discount_rate = %v, want 0.095", got)
	}
	if got := number(t, present, "dcf_input.projections.revenue_growth_start"); !got.Equal(decimal.RequireFromString("0.05")) {
		t.Errorf("revenue_growth_start = %v, want 0.05 (not accepted)", got)
	}
	if _, err := s.Exec(ctx, "accept"); err == nil {
		t.Error("second accept = nil, want no pending suggestion")
	}
}

func TestSessionSave(t *testing.T) {
	s, _ := newTestSession(t)
	file := filepath.Join(t.TempDir(), "model.json")
	ctx := context.Background()
	for _, line := range []string{`set company_name "Saved Co"`, "save " + file} {
		if _, err := s.Exec(ctx, line); err != nil {
			t.Fatalf("Exec(%q) = %v", line, err)
		}
	}
	got, err := decodeModel(file)
	if err != nil {
		t.Fatalf("decodeModel() = %v", err)
	}
	if !got.Equal(s.Editor.Present()) {
		t.Errorf("saved model differs from the session model")
	}
	if _, err := os.Stat(file); err != nil {
		t.Errorf("Stat(%q) = %v", file, err)
	}
}

// TestCommandsDocumented checks that every session command is in the editing
// documentation.
func TestCommandsDocumented(t *testing.T) {
	doc, err := docs.GetTopic("editing")
	if err != nil {
		t.Fatalf("GetTopic(editing) = %v", err)
	}
	s, _ := newTestSession(t)
	for _, name := range s.Commands() {
		if !strings.Contains(doc, "`"+name) {
			t.Errorf("command %q is not documented in the editing topic", name)
		}
	}
}

func TestSessionRenumberIsOneStep(t *testing.T) {
	s, out := newTestSession(t)
	err := s.Run(context.Background(),
		"add tranche Unitranche senior",
		"rm lbo_input.financing.tranches[1]",
		"renumber",
	)
	if err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if !strings.Contains(out.String(), "2 priorities changed") {
		t.Errorf("output = %q, want 2 priorities changed", out)
	}
	for path, want := range map[string]int64{
		"lbo_input.financing.tranches[2].mandatory_cash_sweep_priority": 1,
		"lbo_input.financing.tranches[3].mandatory_cash_sweep_priority": 2,
	} {
		if got := number(t, s.Editor.Present(), path); !got.Equal(decimal.NewFromInt(want)) {
			t.Errorf("%s = %v, want %d", path, got, want)
		}
	}

	if _, err := s.Exec(context.Background(), "undo"); err != nil {
		t.Fatalf("undo: %v", err)
	}
	for path, want := range map[string]int64{
		"lbo_input.financing.tranches[2].mandatory_cash_sweep_priority": 2,
		"lbo_input.financing.tranches[3].mandatory_cash_sweep_priority": 3,
	} {
		if got := number(t, s.Editor.Present(), path); !got.Equal(decimal.NewFromInt(want)) {
			t.Errorf("after undo %s = %v, want %d", path, got, want)
		}
	}
}
