package market

import (
	"context"
	"errors"
	"testing"

	"github.com/etnz/valuation"
	"github.com/shopspring/decimal"
)

// slowRates answers its first Rates call only when released.
type slowRates struct {
	*Static
	calls   int
	started chan struct{}
	release chan struct{}
	first   Rates
}

func (s *slowRates) Rates(ctx context.Context) (Rates, error) {
	s.calls++
	if s.calls == 1 {
		close(s.started)
		<-s.release
		return s.first, nil
	}
	return s.Static.Rates(ctx)
}

func rateOf(t *testing.T, e *valuation.Editor) decimal.Decimal {
	t.Helper()
	p := valuation.TranchesPath.Append(valuation.Ident(1), valuation.Key(valuation.InterestRateField))
	d, ok := e.Present().Number(p)
	if !ok {
		t.Fatalf("no rate at %s", p)
	}
	return d
}

func linkedEditor(t *testing.T) *valuation.Editor {
	t.Helper()
	e := valuation.NewEditor(valuation.DefaultModel())
	if _, err := valuation.LinkTrancheRates(e); err != nil {
		t.Fatal(err)
	}
	return e
}

func TestFeed_RefreshRates(t *testing.T) {
	e := linkedEditor(t)
	f := &Feed{Provider: DefaultStatic(), Sink: e}
	if err := f.RefreshRates(context.Background()); err != nil {
		t.Fatalf("RefreshRates() error = %v", err)
	}
	if got, want := rateOf(t, e), decimal.RequireFromString("0.054"); !got.Equal(want) {
		t.Errorf("senior rate = %v, want %v", got, want)
	}
}

// countingRates counts its Rates calls.
type countingRates struct {
	*Static
	calls int
}

func (c *countingRates) Rates(ctx context.Context) (Rates, error) {
	c.calls++
	return c.Static.Rates(ctx)
}

func TestFeed_FetchRates(t *testing.T) {
	e := linkedEditor(t)
	p := &countingRates{Static: DefaultStatic()}
	f := &Feed{Provider: p, Sink: e}
	r, err := f.FetchRates(context.Background())
	if err != nil {
		t.Fatalf("FetchRates() error = %v", err)
	}
	if got, want := r.SeniorDebt, decimal.RequireFromString("0.054"); !got.Equal(want) {
		t.Errorf("FetchRates().SeniorDebt = %v, want %v", got, want)
	}
	if got := rateOf(t, e); !got.Equal(r.SeniorDebt) {
		t.Errorf("senior rate = %v, want %v", got, r.SeniorDebt)
	}
	if p.calls != 1 {
		t.Errorf("Rates() called %d times, want 1", p.calls)
	}
}

func TestFeed_LateResponseDiscarded(t *testing.T) {
	e := linkedEditor(t)
	p := &slowRates{
		Static:  DefaultStatic(),
		started: make(chan struct{}),
		release: make(chan struct{}),
		first:   Rates{SeniorDebt: decimal.RequireFromString("0.09")},
	}
	f := &Feed{Provider: p, Sink: e}

	done := make(chan error)
	go func() { done <- f.RefreshRates(context.Background()) }()
	<-p.started

	if err := f.RefreshRates(context.Background()); err != nil {
		t.Fatalf("RefreshRates() error = %v", err)
	}
	close(p.release)
	if err := <-done; err != nil {
		t.Fatalf("late RefreshRates() error = %v", err)
	}

	if got, want := rateOf(t, e), decimal.RequireFromString("0.054"); !got.Equal(want) {
		t.Errorf("senior rate = %v, want %v from the most recent request", got, want)
	}
}

func TestFeed_Unavailable(t *testing.T) {
	e := linkedEditor(t)
	var notices []valuation.Event
	e.Subscribe(func(ev valuation.Event) {
		if ev.Notice() {
			notices = append(notices, ev)
		}
	})
	boom := errors.New("backend down")
	f := &Feed{Provider: &Static{Err: boom}, Sink: e}

	err := f.RefreshAll(context.Background(), "Technology")
	if !errors.Is(err, boom) {
		t.Errorf("RefreshAll() error = %v, want %v", err, boom)
	}
	if len(notices) != 2 {
		t.Errorf("notices = %d, want one per feed", len(notices))
	}
	if got, want := rateOf(t, e), decimal.RequireFromString("0.08"); !got.Equal(want) {
		t.Errorf("senior rate = %v, want the last known %v", got, want)
	}
	if e.CanUndo() {
		t.Error("a failed refresh must not create an undo step")
	}
}

func TestFeed_RefreshAll(t *testing.T) {
	e := linkedEditor(t)
	if _, err := valuation.LinkSectorLeverage(e, "Technology"); err != nil {
		t.Fatal(err)
	}
	f := &Feed{Provider: DefaultStatic(), Sink: e}
	if err := f.RefreshAll(context.Background(), "Technology"); err != nil {
		t.Fatalf("RefreshAll() error = %v", err)
	}
	got, _ := e.Present().Number(valuation.TotalLeveragePath)
	if want := decimal.RequireFromString("6.5"); !got.Equal(want) {
		t.Errorf("total leverage = %v, want %v", got, want)
	}
	if got, want := rateOf(t, e), decimal.RequireFromString("0.054"); !got.Equal(want) {
		t.Errorf("senior rate = %v, want %v", got, want)
	}
}

func TestFeed_ApplySnapshot(t *testing.T) {
	e := linkedEditor(t)
	valuation.LinkSectorLeverage(e, "Healthcare")
	f := &Feed{Provider: DefaultStatic(), Sink: e}

	s, err := f.Snapshot(context.Background(), 1, 30)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	f.ApplySnapshot(s, "Healthcare")
	if got, want := rateOf(t, e), decimal.RequireFromString("0.059"); !got.Equal(want) {
		t.Errorf("senior rate = %v, want %v", got, want)
	}
	got, _ := e.Present().Number(valuation.TotalLeveragePath)
	if want := decimal.RequireFromString("6.0"); !got.Equal(want) {
		t.Errorf("total leverage = %v, want %v", got, want)
	}

	if _, err := f.Snapshot(context.Background(), 1, 1); err == nil {
		t.Error("Snapshot() outside of the window error = nil")
	}
}

func TestStatic_LeverageDefault(t *testing.T) {
	m, err := DefaultStatic().LeverageMultiples(context.Background(), "Mining")
	if err != nil {
		t.Fatalf("LeverageMultiples() error = %v", err)
	}
	if want := decimal.RequireFromString("5.0"); !m.Total.Equal(want) {
		t.Errorf("Total = %v, want the default %v", m.Total, want)
	}
}
