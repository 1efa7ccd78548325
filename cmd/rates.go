package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/etnz/valuation/market"
	"github.com/etnz/valuation/renderer"
	"github.com/google/subcommands"
)

type ratesCmd struct {
	scenarios bool
	history   int
	sector    string
}

func (*ratesCmd) Name() string     { return "rates" }
func (*ratesCmd) Synopsis() string { return "print the market rates" }
func (*ratesCmd) Usage() string {
	return `vme rates [-scenarios] [-history <days>] [-sector <sector>]

  Print the current market rates, and optionally the scenarios, the market
  history and the leverage multiples of a sector.
`
}

func (c *ratesCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.scenarios, "scenarios", false, "Print the market scenarios")
	f.IntVar(&c.history, "history", 0, "Print the market snapshots of the last days")
	f.StringVar(&c.sector, "sector", "", "Print the leverage multiples of the sector")
}

func (c *ratesCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	provider, err := newProvider(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	md, err := c.report(ctx, provider)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	printMarkdown(md)
	return subcommands.ExitSuccess
}

func (c *ratesCmd) report(ctx context.Context, p market.Provider) (string, error) {
	var b strings.Builder
	r, err := p.Rates(ctx)
	if err != nil {
		return "", err
	}
	b.WriteString(renderer.RenderRates(r))

	if c.sector != "" {
		m, err := p.LeverageMultiples(ctx, c.sector)
		if err != nil {
			return "", err
		}
		b.WriteString("\n")
		b.WriteString(renderer.RenderLeverage(c.sector, m))
	}
	if c.scenarios {
		sc, err := p.Scenarios(ctx)
		if err != nil {
			return "", err
		}
		b.WriteString("\n")
		b.WriteString(renderer.RenderScenarios(renderer.Scenarios(sc)))
	}
	if c.history > 0 {
		list, err := p.Snapshots(ctx, c.history)
		if err != nil {
			return "", err
		}
		b.WriteString("\n")
		b.WriteString(renderer.RenderSnapshots(list))
	}
	return b.String(), nil
}
