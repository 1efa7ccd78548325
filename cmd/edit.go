package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
)

// editCmd holds the flags for the 'edit' subcommand.
type editCmd struct {
	model  string
	output string
	sector string
	raw    bool
}

func (*editCmd) Name() string     { return "edit" }
func (*editCmd) Synopsis() string { return "edit a valuation model interactively" }
func (*editCmd) Usage() string {
	return `vme edit [-m <model.json>] [-o <output.json>] [<command>...]

  Open an interactive editing session. The commands given as arguments are
  executed first. Type 'help' in the session for the list of commands.
`
}

func (c *editCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.model, "m", "", "Model file to edit. Defaults to a new model.")
	f.StringVar(&c.output, "o", "", "File written by 'save'. Defaults to the model file.")
	f.StringVar(&c.sector, "sector", "", "Sector for leverage multiples. Defaults to the configured one, then the model's.")
	f.BoolVar(&c.raw, "raw", false, "Print raw markdown")
}

func (c *editCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	logger := newLogger(cfg)

	model, err := decodeModel(c.model)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	provider, err := newProvider(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	s := NewSession(newEditor(cfg, model, logger), provider, os.Stdout, os.Stdin)
	defer s.Close()
	s.Sector = cfg.Market.Sector
	if c.sector != "" {
		s.Sector = c.sector
	}
	s.MinConfidence = cfg.AI.MinConfidence
	s.Calc = newCalc(cfg)
	s.File = c.output
	if s.File == "" {
		s.File = c.model
	}
	if !c.raw {
		s.Width = terminalWidth()
	}
	if s.Suggester, err = newSuggester(ctx, cfg, logger); err != nil {
		logger.Debug("AI suggestions disabled", "error", err)
		s.Suggester = nil
	}

	if err := s.Run(ctx, f.Args()...); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
