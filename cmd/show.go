package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/etnz/valuation"
	"github.com/etnz/valuation/renderer"
	"github.com/google/subcommands"
)

type showCmd struct {
	model  string
	asJSON bool
	raw    bool
}

func (*showCmd) Name() string     { return "show" }
func (*showCmd) Synopsis() string { return "print a valuation model" }
func (*showCmd) Usage() string {
	return `vme show [-m <model.json>] [-json]

  Print a model: its financing, tranches and covenants.
`
}

func (c *showCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.model, "m", "", "Model file. Defaults to a new model.")
	f.BoolVar(&c.asJSON, "json", false, "Print the model as JSON")
	f.BoolVar(&c.raw, "raw", false, "Print raw markdown")
}

func (c *showCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	s, err := decodeModel(c.model)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	if c.asJSON {
		data, err := s.MarshalJSON()
		if err == nil {
			err = printJSON(os.Stdout, data)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return subcommands.ExitFailure
		}
		return subcommands.ExitSuccess
	}

	md := renderer.RenderModel(renderer.NewModel(valuation.NewHistory(s), nil))
	if c.raw {
		fmt.Print(md)
	} else {
		printMarkdown(md)
	}
	return subcommands.ExitSuccess
}
