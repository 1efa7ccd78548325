package market

import (
	"context"
	"fmt"

	"github.com/etnz/valuation"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// Sink receives the outcome of refresh requests. *valuation.Editor implements
// it.
type Sink interface {
	Begin(source valuation.SourceID) valuation.Ticket
	Resolve(t valuation.Ticket, values map[valuation.SourceID]decimal.Decimal) bool
	Fail(t valuation.Ticket, err error)
}

// Feed fetches market data from a Provider and delivers it to a Sink.
//
// Every request goes through a ticket of the sink: when several requests on
// the same feed overlap, only the most recent one is applied, whatever the
// order of the responses.
type Feed struct {
	Provider Provider
	Sink     Sink
}

// RefreshRates fetches the current rates.
func (f *Feed) RefreshRates(ctx context.Context) error {
	_, err := f.FetchRates(ctx)
	return err
}

// FetchRates is RefreshRates, also returning the rates received.
func (f *Feed) FetchRates(ctx context.Context) (Rates, error) {
	t := f.Sink.Begin(valuation.FeedRates)
	r, err := f.Provider.Rates(ctx)
	if err != nil {
		f.Sink.Fail(t, err)
		return Rates{}, fmt.Errorf("fetching market rates: %w", err)
	}
	f.Sink.Resolve(t, r.Values())
	return r, nil
}

// RefreshLeverage fetches the leverage multiples of sector.
func (f *Feed) RefreshLeverage(ctx context.Context, sector string) error {
	_, err := f.FetchLeverage(ctx, sector)
	return err
}

// FetchLeverage is RefreshLeverage, also returning the multiples received.
func (f *Feed) FetchLeverage(ctx context.Context, sector string) (LeverageMultiples, error) {
	t := f.Sink.Begin(valuation.FeedLeverage(sector))
	m, err := f.Provider.LeverageMultiples(ctx, sector)
	if err != nil {
		f.Sink.Fail(t, err)
		return LeverageMultiples{}, fmt.Errorf("fetching %s leverage multiples: %w", sector, err)
	}
	f.Sink.Resolve(t, m.Values(sector))
	return m, nil
}

// RefreshAll fetches the rates and the leverage multiples of sector
// concurrently. Each feed is applied as soon as it arrives; a failure of one
// does not prevent the other.
func (f *Feed) RefreshAll(ctx context.Context, sector string) error {
	var g errgroup.Group
	g.Go(func() error { return f.RefreshRates(ctx) })
	if sector != "" {
		g.Go(func() error { return f.RefreshLeverage(ctx, sector) })
	}
	return g.Wait()
}

// ApplySnapshot delivers a historical snapshot through the live feeds: its
// rates, and the multiples of sector if it has some. A live response to a
// request issued before is then discarded.
func (f *Feed) ApplySnapshot(s Snapshot, sector string) {
	t := f.Sink.Begin(valuation.FeedRates)
	f.Sink.Resolve(t, s.Rates.Values())
	if sector == "" {
		return
	}
	if m, ok := s.Multiples(sector); ok {
		t := f.Sink.Begin(valuation.FeedLeverage(sector))
		f.Sink.Resolve(t, m.Values(sector))
	}
}

// Snapshot returns the snapshot with the given id in the last windowDays days.
func (f *Feed) Snapshot(ctx context.Context, id, windowDays int) (Snapshot, error) {
	snapshots, err := f.Provider.Snapshots(ctx, windowDays)
	if err != nil {
		return Snapshot{}, fmt.Errorf("fetching market snapshots: %w", err)
	}
	for _, s := range snapshots {
		if s.ID == id {
			return s, nil
		}
	}
	return Snapshot{}, fmt.Errorf("no market snapshot %d in the last %d days", id, windowDays)
}
