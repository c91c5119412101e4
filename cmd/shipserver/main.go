package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/sylverant/shipfabric/internal/config"
	"github.com/sylverant/shipfabric/internal/ops"
	"github.com/sylverant/shipfabric/internal/ship"
)

const defaultConfigPath = "config/shipserver.yaml"

func main() {
	v, ok, err := ops.ParseFlags("shipserver", os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if !ok {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx, v); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, v ops.Verbosity) error {
	cfgPath := defaultConfigPath
	if p := os.Getenv("FABRIC_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.LoadShip(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	slog.SetDefault(ops.Logger(v, cfg.LogLevel))
	cfg.Verbose = v == ops.VerbosityVerbose

	slog.Info("shipfabric ship server starting")
	slog.Info("config loaded", "name", cfg.Name, "variant", cfg.Variant, "blocks", cfg.NumBlocks)

	sh := ship.New(ctx, cfg)
	if err := sh.Run(ctx); err != nil {
		return fmt.Errorf("running ship server: %w", err)
	}
	return nil
}
