package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"git.home.luguber.info/inful/sitegen/internal/config"
	"git.home.luguber.info/inful/sitegen/internal/logfields"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct{}

func (b *BuildCmd) Run(_ *Global, root *CLI) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := root.LoadConfig()
	if err != nil {
		return err
	}
	return RunBuild(ctx, cfg)
}

// RunBuild performs one full build.
func RunBuild(ctx context.Context, cfg config.Config) error {
	svc, err := newServices(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	start := time.Now()
	slog.Info("Building site", slog.String("content", cfg.Content), slog.String("output", cfg.Output))
	if err := svc.builder.GenerateSite(ctx); err != nil {
		return err
	}
	docs := len(svc.builder.Documents())
	slog.Info("Site built", logfields.Documents(docs), logfields.Since(start))
	fmt.Printf("Built %d pages into %s\n", docs, cfg.Output)
	return nil
}
