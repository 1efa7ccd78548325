package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/etnz/valuation"
	"github.com/google/subcommands"
)

type fmtCmd struct {
	renumber bool
}

func (*fmtCmd) Name() string { return "fmt" }
func (*fmtCmd) Synopsis() string {
	return "validates and formats model files into a canonical form"
}
func (*fmtCmd) Usage() string {
	return `vme fmt [-renumber] <model.json>...

  Validates and formats model files in-place: keys keep their order, numbers
  are written in their shortest form and the JSON is indented.

Usage Examples:
# Formats a model and makes its cash sweep priorities contiguous.
$ vme fmt -renumber acme.json

`
}

func (p *fmtCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&p.renumber, "renumber", false, "Renumber the cash sweep priorities of the tranches")
}

func (p *fmtCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		fmt.Fprintf(os.Stderr, "Warning: no model file to format.\n")
		return subcommands.ExitUsageError
	}

	status := subcommands.ExitSuccess
	for _, file := range f.Args() {
		if err := p.format(file); err != nil {
			fmt.Fprintf(os.Stderr, "Error formatting model %q: %v\n", file, err)
			status = subcommands.ExitFailure
			continue
		}
		fmt.Fprintf(os.Stderr, "Formatted model %q.\n", file)
	}
	return status
}

func (p *fmtCmd) format(file string) error {
	s, err := decodeModel(file)
	if err != nil {
		return err
	}
	if p.renumber {
		for _, patch := range valuation.RenumberSweepPriority(s) {
			if s, err = valuation.Merge(s, patch); err != nil {
				return err
			}
		}
	}
	return encodeModel(file, s)
}
