package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/etnz/valuation"
	"github.com/etnz/valuation/market"
	"github.com/etnz/valuation/server"
	"github.com/google/subcommands"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

type serveCmd struct {
	model    string
	port     int
	sector   string
	link     bool
	interval time.Duration
	watch    bool
}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "serve a model editing session over HTTP" }
func (*serveCmd) Usage() string {
	return `vme serve [-m <model.json>] [-watch] [-port <port>] [-link] [-refresh <interval>]

  Serve the editing session of a model as a JSON API, with the editor events
  streamed at /api/events and Prometheus metrics at /metrics.
`
}

func (c *serveCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.model, "m", "", "Model file. Defaults to a new model.")
	f.IntVar(&c.port, "port", 0, "HTTP port. Defaults to the configured one.")
	f.StringVar(&c.sector, "sector", "", "Sector for leverage multiples. Defaults to the configured one, then the model's.")
	f.BoolVar(&c.link, "link", false, "Link the tranche rates and the sector leverage before serving")
	f.DurationVar(&c.interval, "refresh", 0, "Refresh the market data periodically (0 means never)")
	f.BoolVar(&c.watch, "watch", false, "Reload the model file when it changes on disk")
}

func (c *serveCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	if c.port != 0 {
		cfg.HTTP.Port = c.port
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

	sector := c.sector
	if sector == "" {
		sector = cfg.Market.Sector
	}
	if sector == "" {
		sector, _ = model.Text(valuation.SectorPath)
	}

	e := newEditor(cfg, model, logger)
	feed := &market.Feed{Provider: provider, Sink: e}
	if c.link {
		if _, err := valuation.LinkTrancheRates(e); err != nil {
			logger.Warn("linking tranche rates", "error", err)
		}
		if sector != "" {
			if _, err := valuation.LinkSectorLeverage(e, sector); err != nil {
				logger.Warn("linking sector leverage", "error", err)
			}
		}
	}

	if c.watch && c.model == "" {
		fmt.Fprintln(os.Stderr, "Error: -watch needs a model file (-m)")
		return subcommands.ExitUsageError
	}

	if err := c.run(ctx, cfg.HTTP.Address(), e, feed, sector, logger); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// run serves the session of e on addr until a signal is received or ctx is done.
func (c *serveCmd) run(ctx context.Context, addr string, e *valuation.Editor, feed *market.Feed, sector string, logger *slog.Logger) error {
	srv := server.New(e, feed, sector, logger)
	broker := server.NewBroker()
	defer broker.Close()
	cancel := broker.Forward(e)
	defer cancel()
	feeds := []valuation.SourceID{valuation.FeedRates}
	if sector != "" {
		feeds = append(feeds, valuation.FeedLeverage(sector))
	}
	stopMetrics := server.NewMetrics(prometheus.DefaultRegisterer).Observe(e, feeds...)
	defer stopMetrics()

	router := srv.Router(broker)
	router.Handle("/metrics", promhttp.Handler())
	httpServer := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := feed.RefreshAll(gCtx, sector); err != nil {
			logger.Warn("initial market refresh failed", slog.String("error", err.Error()))
		}
		if c.interval <= 0 {
			return nil
		}
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-gCtx.Done():
				return nil
			case <-ticker.C:
				if err := feed.RefreshAll(gCtx, sector); err != nil {
					logger.Warn("market refresh failed", slog.String("error", err.Error()))
				}
			}
		}
	})

	if c.watch {
		g.Go(func() error { return server.Watch(gCtx, c.model, e, logger) })
	}

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		// the SSE streams end with the broker.
		broker.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		// stops the refresh loop after a signal.
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		return err
	}
	logger.Info("Server stopped successfully")
	return nil
}

var errShutdown = errors.New("shutdown")
