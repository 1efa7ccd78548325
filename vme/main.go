// Command vme edits valuation models.
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/etnz/valuation/cmd"
	"github.com/etnz/valuation/docs"
	"github.com/google/subcommands"
	_ "github.com/joho/godotenv/autoload"
	"github.com/posener/complete/v2"
	"github.com/posener/complete/v2/predict"
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")
	for _, c := range cmd.Commands {
		commander.Register(c, "")
	}

	completion().Complete("vme")

	flag.Parse()

	if sub := flag.Arg(0); sub != "" && !registered(sub) {
		if ok, code := cmd.RunExtension(sub, flag.Args()[1:]); ok {
			os.Exit(code)
		}
	}
	os.Exit(int(commander.Execute(context.Background())))
}

func registered(name string) bool {
	switch name {
	case "help", "flags", "commands":
		return true
	}
	for _, c := range cmd.Commands {
		if c.Name() == name {
			return true
		}
	}
	return false
}

// completion describes the command line for shell completion: the global
// flags and, for every subcommand, its own flags.
func completion() *complete.Command {
	root := &complete.Command{
		Sub: map[string]*complete.Command{
			"help":     {Args: predict.Set(names())},
			"flags":    {Args: predict.Set(names())},
			"commands": {},
		},
		Flags: map[string]complete.Predictor{
			"config": predict.Files("*.yaml"),
			"v":      predict.Nothing,
		},
	}
	for _, c := range cmd.Commands {
		fs := flag.NewFlagSet(c.Name(), flag.ContinueOnError)
		c.SetFlags(fs)
		sub := &complete.Command{Flags: map[string]complete.Predictor{}}
		fs.VisitAll(func(f *flag.Flag) {
			b, isBool := f.Value.(interface{ IsBoolFlag() bool })
			switch {
			case f.Name == "m" || f.Name == "o":
				sub.Flags[f.Name] = predict.Files("*.json")
			case isBool && b.IsBoolFlag():
				sub.Flags[f.Name] = predict.Nothing
			default:
				sub.Flags[f.Name] = predict.Something
			}
		})
		switch c.Name() {
		case "fmt":
			sub.Args = predict.Files("*.json")
		case "topic":
			sub.Args = predict.Set(topics())
		}
		root.Sub[c.Name()] = sub
	}
	return root
}

func names() []string {
	var n []string
	for _, c := range cmd.Commands {
		n = append(n, c.Name())
	}
	return n
}

func topics() []string {
	n := []string{"all"}
	t, _ := docs.Topics()
	for _, topic := range t {
		n = append(n, topic.Name)
	}
	return n
}
