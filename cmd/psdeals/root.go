package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/aluiziolira/go-scrape-psdeals/config"
	"github.com/aluiziolira/go-scrape-psdeals/scraper"
	"github.com/aluiziolira/go-scrape-psdeals/session"
)

// app carries what the commands share once the root command has run.
type app struct {
	cfg           *config.Config
	scraper       *scraper.Scraper
	metricsServer *http.Server

	// transport replaces the scraper's HTTP transport when set.
	transport http.RoundTripper
	// logOutput receives log lines; stderr when nil.
	logOutput io.Writer

	envFile       string
	baseURL       string
	timeout       time.Duration
	verbose       bool
	metricsAddr   string
	respectRobots bool
}

func newRootCmd(a *app) *cobra.Command {
	defaults := config.DefaultConfig()

	root := &cobra.Command{
		Use:           "psdeals",
		Short:         "psdeals searches PlayStation Store prices on psdeals.net.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			a.shutdown()
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.envFile, "env-file", ".env", "Environment file to load before reading PSDEALS_* variables")
	flags.StringVar(&a.baseURL, "base-url", defaults.BaseURL, "Base URL of the store")
	flags.DurationVar(&a.timeout, "timeout", defaults.Timeout, "Request timeout")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "Enable verbose logging")
	flags.StringVar(&a.metricsAddr, "metrics-addr", "", "Prometheus metrics listen address (e.g. :9090)")
	flags.BoolVar(&a.respectRobots, "respect-robots", false, "Respect robots.txt directives")

	root.AddCommand(
		newRegionsCmd(a),
		newSearchCmd(a),
		newLowestCmd(a),
		newShellCmd(a),
	)
	return root
}

// setup builds the configuration from defaults, the env file, PSDEALS_*
// variables and finally explicitly set flags.
func (a *app) setup(cmd *cobra.Command) error {
	if err := config.Load(a.envFile); err != nil {
		return err
	}
	cfg := config.DefaultConfig()
	if err := config.FromEnv(cfg); err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("base-url") {
		cfg.BaseURL = a.baseURL
	}
	if flags.Changed("timeout") {
		cfg.Timeout = a.timeout
	}
	if flags.Changed("verbose") {
		cfg.Verbose = a.verbose
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr = a.metricsAddr
	}
	if flags.Changed("respect-robots") {
		cfg.RespectRobotsTxt = a.respectRobots
	}

	logOutput := a.logOutput
	if logOutput == nil {
		logOutput = os.Stderr
	}
	logger, level := newLogger(cfg.Verbose, logOutput)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	s, err := scraper.NewScraper(cfg)
	if err != nil {
		return fmt.Errorf("initialising scraper: %w", err)
	}
	if a.transport != nil {
		s.SetTransport(a.transport)
	}

	a.cfg = cfg
	a.scraper = s
	a.startMetrics()
	return nil
}

func (a *app) handler() *session.Handler {
	return session.NewHandler(a.scraper, a.cfg)
}

func (a *app) startMetrics() {
	if a.cfg.MetricsAddr == "" || a.scraper.Metrics == nil {
		return
	}
	a.metricsServer = &http.Server{
		Addr:              a.cfg.MetricsAddr,
		Handler:           promhttp.HandlerFor(a.scraper.Metrics.Registry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func(srv *http.Server) {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", slog.Any("error", err))
		}
	}(a.metricsServer)
	slog.Info("metrics server enabled", slog.String("addr", a.cfg.MetricsAddr))
}

func (a *app) shutdown() {
	if a.metricsServer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.metricsServer.Shutdown(ctx); err != nil {
		slog.Error("metrics server shutdown failed", slog.Any("error", err))
	}
	a.metricsServer = nil
}

func newLogger(verbose bool, w io.Writer) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if f, ok := w.(*os.File); ok && isTerminal(f) {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
