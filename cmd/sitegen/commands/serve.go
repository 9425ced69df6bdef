package commands

import (
	"context"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/sitegen/internal/config"
	"git.home.luguber.info/inful/sitegen/internal/metrics"
	"git.home.luguber.info/inful/sitegen/internal/preview"
)

// ServeCmd runs the development server.
type ServeCmd struct {
	Host         string `name:"host" help:"Interface to bind (overrides server.host; empty binds all)"`
	Port         int    `name:"port" help:"Server port (overrides server.port, which defaults to 3000)"`
	NoLiveReload bool   `name:"no-live-reload" help:"Disable the reload WebSocket and script injection"`
}

func (s *ServeCmd) Run(_ *Global, root *CLI) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := root.LoadConfig()
	if err != nil {
		return err
	}
	s.apply(&cfg)
	return RunServe(ctx, cfg)
}

func (s *ServeCmd) apply(cfg *config.Config) {
	if s.Host != "" {
		cfg.Server.Host = s.Host
	}
	if s.Port != 0 {
		cfg.Server.Port = s.Port
	}
	if s.NoLiveReload {
		cfg.Server.LiveReload = false
	}
}

// RunServe blocks until ctx ends. Build failures never stop the server.
func RunServe(ctx context.Context, cfg config.Config) error {
	return runServe(ctx, cfg, preview.Options{})
}

// runServe lets tests observe the bound address through base.Ready.
func runServe(ctx context.Context, cfg config.Config, base preview.Options) error {
	svc, err := newServices(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	opts := base
	opts.Host = cfg.Server.Host
	opts.Port = cfg.Server.Port
	opts.LiveReload = cfg.Server.LiveReload
	opts.Debounce = cfg.Server.Debounce
	opts.RebuildInterval = cfg.Server.RebuildInterval
	opts.Recorder = svc.recorder
	opts.Bus = svc.bus
	if svc.registry != nil {
		opts.Metrics = metrics.HTTPHandler(svc.registry)
	}
	return preview.NewDevServer(svc.builder, opts).Run(ctx)
}
