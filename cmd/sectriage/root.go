package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/crimson-sun/sectriage/internal/config"
	"github.com/crimson-sun/sectriage/internal/logging"
	"github.com/crimson-sun/sectriage/internal/metrics"

	// Register connector implementations.
	_ "github.com/crimson-sun/sectriage/internal/connector/file"
	_ "github.com/crimson-sun/sectriage/internal/connector/splunk"
	_ "github.com/crimson-sun/sectriage/internal/connector/tail"
)

var version = "0.1.0"

// app carries state shared by every subcommand of one invocation.
type app struct {
	cfgFile     string
	logLevel    string
	metricsAddr string

	cfg       *config.Config
	logCloser io.Closer
	metrics   *http.Server
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "sectriage",
		Short: "Triage Windows Security event logs",
		Long: `sectriage classifies exported Windows Security event records, scores
how suspicious each one is, and explains why.

Records come from JSON/NDJSON exports, a growing log file, or the Splunk
export API. Findings go to stdout, rotating files, CSV, webhooks or NATS.`,
		Version:           version,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) { a.teardown() },
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default: ./"+config.DefaultPath+")")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")
	root.PersistentFlags().StringVar(&a.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9464 (overrides config)")

	root.AddCommand(
		newAnalyzeCmd(a),
		newWatchCmd(a),
		newCatalogCmd(a),
		newGenerateCmd(a),
		newConfigCmd(a),
	)
	return root
}

// setup loads config, installs the logger and starts the metrics listener.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	if a.metricsAddr != "" {
		cfg.Metrics.Addr = a.metricsAddr
	}
	a.cfg = cfg

	closer, err := logging.Init(logging.Options{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
	})
	if err != nil {
		return err
	}
	a.logCloser = closer

	if cfg.Metrics.Addr != "" {
		a.startMetrics(cfg.Metrics.Addr)
	}
	return nil
}

func (a *app) startMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	a.metrics = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		slog.Info("metrics: listening", "addr", addr)
		if err := a.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics: server failed", "error", err)
		}
	}()
}

func (a *app) teardown() {
	if a.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := a.metrics.Shutdown(ctx); err != nil {
			slog.Warn("metrics: shutdown", "error", err)
		}
	}
	if a.logCloser != nil {
		_ = a.logCloser.Close()
	}
}
