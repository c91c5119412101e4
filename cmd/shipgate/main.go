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
	"github.com/sylverant/shipfabric/internal/shipgate"
	"github.com/sylverant/shipfabric/internal/store"
)

const defaultConfigPath = "config/shipgate.yaml"

func main() {
	v, ok, err := ops.ParseFlags("shipgate", os.Args[1:])
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
	cfg, err := config.LoadShipgate(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	slog.SetDefault(ops.Logger(v, cfg.LogLevel))

	slog.Info("shipfabric shipgate starting")
	slog.Info("config loaded", "bind", cfg.BindAddress, "port", cfg.Port)

	db, err := store.New(ctx, cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	if err := store.RunMigrations(ctx, cfg.Database.DSN()); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	slog.Info("database migrations applied")

	server := shipgate.NewServer(cfg, db)
	if err := server.Run(ctx); err != nil {
		return fmt.Errorf("running shipgate: %w", err)
	}
	return nil
}
