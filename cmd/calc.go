package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/etnz/valuation/calc"
	"github.com/google/subcommands"
)

type calcCmd struct {
	model string
}

func (*calcCmd) Name() string     { return "calc" }
func (*calcCmd) Synopsis() string { return "value a model with the calculation service" }
func (*calcCmd) Usage() string {
	return `vme calc [-m <model.json>]

  Send the model to the calculation service (calc.base_url) and print the
  valuation results as JSON.
`
}

func (c *calcCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.model, "m", "", "Model file. Defaults to a new model.")
}

func (c *calcCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	client := newCalc(cfg)
	if client == nil {
		fmt.Fprintln(os.Stderr, "Error: no calculation service configured (calc.base_url)")
		return subcommands.ExitUsageError
	}
	model, err := decodeModel(c.model)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	result, err := client.Calculate(ctx, model)
	if err != nil {
		var cerr *calc.Error
		if errors.As(err, &cerr) {
			for _, issue := range cerr.Issues {
				fmt.Fprintf(os.Stderr, "%s: %s\n", issue.Severity, issue.Message)
			}
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	if err := printJSON(os.Stdout, result); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
