// Package cmd implements the vme CLI application to edit valuation models.
package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/etnz/valuation"
	"github.com/etnz/valuation/calc"
	"github.com/etnz/valuation/config"
	"github.com/etnz/valuation/market"
	"github.com/etnz/valuation/renderer"
	"github.com/etnz/valuation/suggest"
	"github.com/google/subcommands"
	"google.golang.org/genai"
)

// Commands are the vme subcommands.
var Commands = []subcommands.Command{
	&editCmd{},
	&showCmd{},
	&ratesCmd{},
	&suggestCmd{},
	&calcCmd{},
	&fmtCmd{},
	&serveCmd{},
	&topicCmd{},
}

// Register the subcommands.
// A main package will call Register() to allow subcommands, and Execute() on the user-selected one.
func Register(c *subcommands.Commander) {
	for _, cmd := range Commands {
		c.Register(cmd, "")
	}
}

// as a CLI application, it has a very short lived lifecycle, so it is ok to use global variables.

var (
	configFile = flag.String("config", envOr(EnvConfigFile, "vme.yaml"), "Path to the configuration file")
	// Verbose turns debug logging on.
	Verbose = flag.Bool("v", envOr(EnvVerbose, "") == "true", "Verbose output")
)

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// loadConfig reads the configuration file, if any.
func loadConfig() (*config.Config, error) {
	cfg := config.NewDefaultConfig()
	if err := config.LoadOrDefault(*configFile, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger returns the application logger, writing to stderr.
func newLogger(cfg *config.Config) *slog.Logger {
	level := cfg.LogLevel
	if *Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// newProvider returns the market data provider of cfg: the analytics backend
// if configured, the static market otherwise.
func newProvider(cfg *config.Config) (market.Provider, error) {
	if cfg.Market.Offline() {
		return market.DefaultStatic(), nil
	}
	hc := &http.Client{Timeout: cfg.Market.Timeout}
	if cfg.Market.Cache {
		dir := cfg.Market.CacheDir
		if dir == "" {
			cache, err := os.UserCacheDir()
			if err != nil {
				return nil, fmt.Errorf("locating the cache directory: %w", err)
			}
			dir = filepath.Join(cache, "vme")
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating the cache directory: %w", err)
		}
		hc = market.NewCachingClient(dir, cfg.Market.CachePeriod, cfg.Market.Timeout)
	}
	return market.NewClient(cfg.Market.BaseURL, hc), nil
}

// newSuggester returns the AI suggestion provider. It fails without API key.
func newSuggester(ctx context.Context, cfg *config.Config, logger *slog.Logger) (suggest.Provider, error) {
	client, err := genai.NewClient(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("initializing Gemini's client: %w", err)
	}
	g := suggest.NewGemini(client, cfg.AI.Model)
	g.Logger = logger
	return g, nil
}

// newCalc returns the calculation service client, nil if not configured.
func newCalc(cfg *config.Config) *calc.Client {
	if cfg.Calc.BaseURL == "" {
		return nil
	}
	return calc.NewClient(cfg.Calc.BaseURL, cfg.Calc.Token, &http.Client{Timeout: cfg.Market.Timeout})
}

// newEditor starts an editing session on s.
func newEditor(cfg *config.Config, s valuation.Snapshot, logger *slog.Logger) *valuation.Editor {
	return valuation.NewEditor(s, valuation.WithLogger(logger), valuation.WithHistoryLimit(cfg.History.Limit))
}

// decodeModel reads a model file. An empty name is the default model.
func decodeModel(file string) (valuation.Snapshot, error) {
	if file == "" {
		return valuation.DefaultModel(), nil
	}
	f, err := os.Open(file)
	if err != nil {
		return valuation.Snapshot{}, err
	}
	defer f.Close()
	s, err := valuation.DecodeSnapshot(f)
	if err != nil {
		return valuation.Snapshot{}, fmt.Errorf("decoding model %q: %w", file, err)
	}
	return s, nil
}

// encodeModel writes s as indented JSON into file.
func encodeModel(file string, s valuation.Snapshot) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	var b bytes.Buffer
	if err := json.Indent(&b, data, "", "  "); err != nil {
		return err
	}
	b.WriteByte('\n')
	return os.WriteFile(file, b.Bytes(), 0o644)
}

// terminalWidth returns the width markdown is rendered at.
func terminalWidth() int {
	if n, err := strconv.Atoi(os.Getenv("COLUMNS")); err == nil && n > 20 {
		return n
	}
	return 100
}

// printMarkdown prints md to stdout, rendered for the terminal.
func printMarkdown(md string) {
	out, err := renderer.Terminal(md, terminalWidth())
	if err != nil {
		fmt.Print(md)
		return
	}
	fmt.Print(out)
}
