package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/etnz/valuation/renderer"
	"github.com/etnz/valuation/suggest"
	"github.com/google/subcommands"
)

type suggestCmd struct {
	model  string
	output string
	min    float64
}

func (*suggestCmd) Name() string     { return "suggest" }
func (*suggestCmd) Synopsis() string { return "ask an AI model for better assumptions" }
func (*suggestCmd) Usage() string {
	return `vme suggest [-m <model.json>] [-o <output.json>] [-min <confidence>]

  Print the AI suggestions for the model assumptions. With -o, the suggestions
  at least as confident as -min are applied and the model is written.
`
}

func (c *suggestCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.model, "m", "", "Model file. Defaults to a new model.")
	f.StringVar(&c.output, "o", "", "Write the model with the accepted suggestions applied")
	f.Float64Var(&c.min, "min", -1, "Minimum confidence to accept a suggestion. Defaults to the configured one.")
}

func (c *suggestCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
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
	provider, err := newSuggester(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitFailure
	}

	sg, err := provider.Suggest(ctx, model)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitFailure
	}
	printMarkdown(renderer.RenderSuggestions(renderer.Suggestions(model, sg)))

	if c.output == "" {
		return subcommands.ExitSuccess
	}
	min := cfg.AI.MinConfidence
	if c.min >= 0 {
		min = c.min
	}
	e := newEditor(cfg, model, logger)
	applied, err := suggest.Apply(e, sg, suggest.MinConfidence(min))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	if err := encodeModel(c.output, e.Present()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("%d suggestions applied, model written to %s\n", len(applied), c.output)
	return subcommands.ExitSuccess
}
