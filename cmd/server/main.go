package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/sheethealth/internal/config"
	"github.com/JonMunkholm/sheethealth/internal/core"
	"github.com/JonMunkholm/sheethealth/internal/handler"
	"github.com/JonMunkholm/sheethealth/internal/logging"
	"github.com/JonMunkholm/sheethealth/internal/source"
	"github.com/JonMunkholm/sheethealth/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"required_headers", len(cfg.Validation.RequiredHeaders),
		"unique_column", cfg.Validation.UniqueColumn,
		"upload_max_concurrent", cfg.Upload.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
		"s3_enabled", cfg.Storage.Enabled,
	)

	hcfg := handler.Config{
		Rules: core.Rules{
			RequiredHeaders: cfg.Validation.RequiredHeaders,
			UniqueColumn:    cfg.Validation.UniqueColumn,
		},
		Sheet:    cfg.Validation.Sheet,
		MaxBytes: cfg.Upload.MaxFileSize,
	}

	if cfg.Storage.Enabled {
		fetcher, err := source.NewS3FromConfig(context.Background(), cfg.Storage, cfg.Upload.MaxFileSize)
		if err != nil {
			slog.Error("failed to configure s3 source", "error", err)
			os.Exit(1)
		}
		hcfg.Fetcher = fetcher
	}

	limiter := core.NewLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime)
	server := web.NewServer(cfg, handler.New(hcfg), limiter)

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if status := limiter.Status(); status.Active > 0 {
			slog.Info("waiting for validations to complete", "active", status.Active)
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
	<-done
	slog.Info("server stopped")
}
