package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mcoot/blazers/internal/api"
	"github.com/mcoot/blazers/internal/config"
	"github.com/mcoot/blazers/internal/factory"
)

func main() {
	cfg, err := config.Load(configDir())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := cfg.Log.Logger(os.Stdout)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := factory.New(ctx, factory.FromConfig(cfg, logger))
	if err != nil {
		return fmt.Errorf("create application: %w", err)
	}
	app.Start(context.WithoutCancel(ctx))
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.Close(closeCtx); err != nil {
			logger.Error("failed to close application", slog.String("error", err.Error()))
		}
	}()

	serverConfig := api.DefaultServerConfig()
	serverConfig.Host = cfg.Server.Host
	serverConfig.Port = cfg.Server.Port
	serverConfig.ShutdownTimeout = cfg.Server.ShutdownTimeout
	server := api.NewServer(app.Router, serverConfig, logger)
	server.OnShutdown(func() {
		logger.Info("closing lobby connections")
		closeCtx, cancel := context.WithTimeout(context.Background(), serverConfig.ShutdownTimeout)
		defer cancel()
		if err := app.LobbySocket.Shutdown(closeCtx); err != nil {
			logger.Warn("lobby connections did not close in time", slog.String("error", err.Error()))
		}
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	logger.Info("server started",
		slog.String("addr", server.Addr()),
		slog.String("storage", cfg.Storage.Type),
	)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		return server.Shutdown(context.Background())
	}
}

// configDir returns CONFIG_DIR or the repository's configuration directory
func configDir() string {
	if dir := os.Getenv("CONFIG_DIR"); dir != "" {
		return dir
	}
	return "configuration"
}
