package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/sylverant/shipfabric/internal/config"
	"github.com/sylverant/shipfabric/internal/login"
	"github.com/sylverant/shipfabric/internal/ops"
	"github.com/sylverant/shipfabric/internal/store"
)

const defaultConfigPath = "config/loginserver.yaml"

func main() {
	v, ok, err := ops.ParseFlags("loginserver", os.Args[1:])
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
	cfg, err := config.LoadLogin(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	slog.SetDefault(ops.Logger(v, cfg.LogLevel))
	cfg.Verbose = v == ops.VerbosityVerbose

	slog.Info("shipfabric login server starting")
	slog.Info("config loaded", "bind", cfg.BindAddress, "web_info_port", cfg.WebInfoPort)

	db, err := store.New(ctx, cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	if err := store.RunMigrations(ctx, cfg.Database.DSN()); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	slog.Info("database migrations applied")

	server := login.NewServer(cfg, db)
	if err := server.Run(ctx); err != nil {
		return fmt.Errorf("running login server: %w", err)
	}
	return nil
}
