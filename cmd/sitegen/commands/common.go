// Package commands implements the sitegen command line.
package commands

import (
	"context"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
	"github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/sitegen/internal/config"
	"git.home.luguber.info/inful/sitegen/internal/eventstore"
	"git.home.luguber.info/inful/sitegen/internal/events"
	"git.home.luguber.info/inful/sitegen/internal/incremental"
	"git.home.luguber.info/inful/sitegen/internal/logfields"
	"git.home.luguber.info/inful/sitegen/internal/metrics"
	"git.home.luguber.info/inful/sitegen/internal/pdf"
	"git.home.luguber.info/inful/sitegen/internal/pipeline"
	"git.home.luguber.info/inful/sitegen/internal/preview"
)

// Global is bound into every command's Run.
type Global struct{}

// CLI definition and global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"sitegen.yaml"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`
	Input   string           `short:"i" name:"input" help:"Content directory (overrides config)"`
	Output  string           `short:"o" name:"output" help:"Output directory (overrides config)"`
	Theme   string           `name:"theme" help:"Theme directory; empty uses the built-in theme"`

	Build   BuildCmd   `cmd:"" help:"Build the site once"`
	Serve   ServeCmd   `cmd:"" help:"Serve the site with incremental rebuilds and live reload"`
	Init    InitCmd    `cmd:"" help:"Write a default configuration file"`
	History HistoryCmd `cmd:"" help:"Show recent builds from the build journal"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return nil
}

// LoadConfig reads the configuration file and applies the global flag overrides.
// The default file name may be absent; an explicitly named one must exist.
func (c *CLI) LoadConfig() (config.Config, error) {
	cfg, err := config.Load(c.Config, c.Config == config.DefaultFile)
	if err != nil {
		return cfg, err
	}
	if c.Input != "" {
		cfg.Content = c.Input
	}
	if c.Output != "" {
		cfg.Output = c.Output
	}
	if c.Theme != "" {
		cfg.Theme = c.Theme
	}
	return cfg, cfg.Validate()
}

// services carries the collaborators shared by build and serve.
type services struct {
	builder  *incremental.Builder
	bus      *events.Bus
	recorder metrics.Recorder
	registry *prometheus.Registry
	closers  []func()
}

// newServices wires the builder with its optional journal, notifier and metrics.
// Close must be called once the command finishes.
func newServices(ctx context.Context, cfg config.Config) (*services, error) {
	rt := &services{bus: events.NewBus(), recorder: metrics.NoopRecorder{}}
	rt.closers = append(rt.closers, rt.bus.Close)

	if cfg.Metrics.Enabled {
		rt.registry = prometheus.NewRegistry()
		rt.recorder = metrics.NewPrometheusRecorder(rt.registry)
	}

	opts := pipeline.Options{
		ContentRoot:    cfg.Content,
		OutputRoot:     cfg.Output,
		ThemeRoot:      cfg.Theme,
		IgnorePatterns: cfg.Ignore,
		Recorder:       rt.recorder,
		Workers:        cfg.Workers,
	}
	if cfg.PDF.Enabled {
		if tc := pdf.Detect(); tc.Available() {
			opts.PDF = tc
		} else {
			slog.Info("PDF output disabled: pandoc or typst not found on PATH")
		}
	}
	site, err := pipeline.New(opts)
	if err != nil {
		rt.Close()
		return nil, err
	}

	if cfg.Journal.Path != "" {
		store, err := eventstore.NewSQLiteStore(cfg.Journal.Path)
		if err != nil {
			rt.Close()
			return nil, err
		}
		journal := eventstore.NewJournal(store, nil)
		done := journal.Start(ctx, rt.bus)
		rt.closers = append(rt.closers, func() {
			<-done
			if err := store.Close(); err != nil {
				slog.Warn("Closing build journal failed", logfields.Error(err))
			}
		})
		slog.Debug("Recording builds", logfields.Path(cfg.Journal.Path))
	}

	if cfg.NATS.URL != "" {
		notifier, closeConn, err := preview.ConnectNotifier(cfg.NATS.URL, cfg.NATS.Subject)
		if err != nil {
			slog.Warn("Build notifications disabled", logfields.Error(err))
		} else {
			done := notifier.Start(ctx, rt.bus)
			rt.closers = append(rt.closers, func() {
				<-done
				closeConn()
			})
		}
	}

	rt.builder = incremental.NewBuilder(site,
		incremental.WithRecorder(rt.recorder),
		incremental.WithEventBus(rt.bus),
	)
	return rt, nil
}

// Close closes the bus first so subscribers drain, then releases each resource.
func (rt *services) Close() {
	for _, fn := range rt.closers {
		fn()
	}
	rt.closers = nil
}
