package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Squiddl/sma-group2-mini-rag/pkg/config"
	"github.com/Squiddl/sma-group2-mini-rag/pkg/runtime"
)

// ServeCmd starts the engine.
type ServeCmd struct {
	Port int `help:"Override the configured listen port."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("Shutting down...")
		cancel()
	}()

	cfg, loader, err := config.Load(ctx, cli.Config)
	if err != nil {
		return err
	}
	if loader != nil {
		defer loader.Close()
	}
	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}

	rt, err := runtime.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to build runtime: %w", err)
	}

	fmt.Printf("minirag ready on http://%s\n", cfg.Server.Address())
	fmt.Printf("  Health:  http://%s/health\n", cfg.Server.Address())
	if cfg.Observability.Metrics.Enabled {
		fmt.Printf("  Metrics: http://%s/metrics\n", cfg.Server.Address())
	}
	if cfg.Zotero.Enabled {
		fmt.Printf("  Zotero:  sync enabled (user %s)\n", cfg.Zotero.UserID)
	}
	fmt.Println("Press Ctrl+C to stop")

	return rt.Run(ctx)
}
