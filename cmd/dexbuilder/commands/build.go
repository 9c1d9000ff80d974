package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/dexbuilder/internal/config"
	"git.home.luguber.info/inful/dexbuilder/internal/events"
	"git.home.luguber.info/inful/dexbuilder/internal/metrics"
	"git.home.luguber.info/inful/dexbuilder/internal/pipeline"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	Quality         string `short:"q" help:"Image quality tier (fast|high); overrides the configuration"`
	Output          string `short:"o" help:"Output directory for the dictionary bundle; overrides the configuration"`
	MaxBodySections int    `name:"max-body-sections" help:"Cap on rendered body sections per entry; overrides the configuration"`
	MetricsListen   string `name:"metrics-listen" help:"Serve Prometheus metrics on host:port while the build runs"`
}

func (b *BuildCmd) Run(_ *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	configureLogging(cfg, root.Verbose)
	b.applyOverrides(cfg)

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	runner := pipeline.NewRunner(cfg, store)

	if cfg.Metrics.Listen != "" {
		reg := prometheus.NewRegistry()
		runner.SetRecorder(metrics.NewPrometheusRecorder(reg))
		stop := metrics.ServeHTTP(cfg.Metrics.Listen, reg)
		defer stop()
	}
	pub, err := events.MaybeNewPublisher(&cfg.Events)
	if err != nil {
		return fmt.Errorf("connect event publisher: %w", err)
	}
	if pub != nil {
		defer func() { _ = pub.Close() }()
		runner.SetPublisher(pub)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rep, runErr := runner.Run(ctx)
	printRunReport(os.Stdout, rep)
	return runErr
}

// applyOverrides layers CLI flags over the loaded configuration. Flags always
// win; invalid values are ignored with a warning.
func (b *BuildCmd) applyOverrides(cfg *config.Config) {
	if b.Quality != "" {
		if q := config.NormalizeQualityTier(b.Quality); q != "" {
			cfg.Images.Quality = q
			slog.Info("Quality tier overridden via CLI flag", "tier", q)
		} else {
			slog.Warn("Ignoring invalid --quality value", "value", b.Quality)
		}
	}
	if b.Output != "" {
		cfg.Output.Directory = b.Output
	}
	if b.MaxBodySections > 0 {
		cfg.Render.MaxBodySections = b.MaxBodySections
	}
	if b.MetricsListen != "" {
		cfg.Metrics.Listen = b.MetricsListen
	}
}
