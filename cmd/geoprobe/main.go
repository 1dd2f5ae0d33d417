// Command geoprobe runs a generative engine visibility experiment: it poses
// a fixed query set to a configured panel of language models and search
// engines over many iterations and persists every attempt, including handled
// failures, to a SQLite result store.
package main

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

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/Cubanisto31/geoprobe/infrastructure/providers"
	"github.com/Cubanisto31/geoprobe/internal/domain"
	"github.com/Cubanisto31/geoprobe/internal/experiment"
	"github.com/Cubanisto31/geoprobe/internal/store"
)

func main() {
	var (
		configPath  = flag.String("config", "config.yaml", "path to the experiment configuration file")
		queryFile   = flag.String("queries", "", "CSV or XLSX query file, overrides the configured query source")
		metricsAddr = flag.String("metrics-addr", "", "address to serve Prometheus metrics on (empty disables)")
		verbose     = flag.Bool("v", false, "enable debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := run(*configPath, *queryFile, *metricsAddr, logger); err != nil {
		logger.Error("experiment failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath, queryFile, metricsAddr string, logger *slog.Logger) error {
	cfg, err := experiment.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if queryFile != "" {
		queries, err := experiment.LoadQueryFile(queryFile)
		if err != nil {
			return fmt.Errorf("loading query file: %w", err)
		}
		cfg.Queries = queries
	}

	st, err := store.NewSQLiteStore(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("opening result store: %w", err)
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if metricsAddr != "" {
		go serveMetrics(metricsAddr, logger)
	}

	metrics := providers.NewPrometheusMetrics()
	factory := func(mc domain.ModelConfig) (experiment.QueryClient, error) {
		middleware := []providers.Middleware{
			providers.TracingMiddleware("geoprobe"),
			providers.MetricsMiddleware(metrics),
		}
		if rps := mc.Parameters.RequestsPerSecond; rps > 0 {
			middleware = append(middleware, providers.RateLimitMiddleware(rate.Limit(rps), 1))
		}
		return providers.NewClient(mc, providers.Options{
			Middleware: middleware,
			Logger:     logger,
			Timeout:    2 * time.Minute,
		})
	}

	runner := experiment.NewRunner(cfg, st, factory, logger)
	summary, err := runner.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	if summary != nil {
		logger.Info("run summary",
			"experiment_id", summary.ExperimentID,
			"persisted", summary.Persisted,
			"expected", summary.Expected,
		)
	}
	return nil
}

func serveMetrics(addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	logger.Info("serving metrics", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics server stopped", "error", err)
	}
}
