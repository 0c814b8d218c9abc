package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/JonMunkholm/sasbridge/internal/auth"
	"github.com/JonMunkholm/sasbridge/internal/config"
	"github.com/JonMunkholm/sasbridge/internal/convert"
	"github.com/JonMunkholm/sasbridge/internal/db"
	"github.com/JonMunkholm/sasbridge/internal/favorites"
	"github.com/JonMunkholm/sasbridge/internal/history"
	"github.com/JonMunkholm/sasbridge/internal/logging"
	"github.com/JonMunkholm/sasbridge/internal/staging"
	"github.com/JonMunkholm/sasbridge/internal/transfer"
	"github.com/JonMunkholm/sasbridge/internal/web"
)

// memoryHistorySize bounds conversion history kept without a database.
const memoryHistorySize = 500

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
		slog.Error("failed to load configuration", "error", logging.Mask(err.Error()))
		os.Exit(1)
	}

	// Setup structured logging based on config
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Debug("configuration", "config", cfg.String())

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"staging_backend", cfg.Staging.Backend,
		"favorites_backend", cfg.Favorites.Backend,
		"upload_max_concurrent", cfg.Upload.MaxConcurrent,
		"upload_max_file_size", cfg.Upload.MaxFileSize.HumanReadable(),
		"rate_limit_enabled", cfg.Rate.Enabled,
		"database", cfg.Database.URL != "",
	)

	if err := run(cfg); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx := context.Background()

	// The database is optional: it backs conversion history and, when
	// selected, favorites.
	var pool *pgxpool.Pool
	if cfg.Database.URL != "" {
		p, err := db.Open(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer p.Close()
		pool = p

		if cfg.Database.Migrate {
			if err := db.Migrate(ctx, pool); err != nil {
				return err
			}
		}
	}

	store, err := staging.New(ctx, cfg.Staging)
	if err != nil {
		return err
	}
	slog.Info("staging store ready",
		"backend", cfg.Staging.Backend,
		"bucket", cfg.Staging.Bucket,
		"compress", cfg.Staging.Compress,
	)

	var recorder history.Recorder = history.NewMemoryRecorder(memoryHistorySize)
	if pool != nil {
		recorder = history.NewPostgresRecorder(pool)
	}

	converter := convert.NewService(store, convert.Options{
		Limiter:  convert.NewLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime),
		Recorder: recorder,
	})

	sftp, err := transfer.NewClientFromConfig(cfg.SFTP)
	if err != nil {
		return err
	}

	favs, err := favorites.New(cfg.Favorites, pool)
	if err != nil {
		return err
	}

	server := web.NewServer(cfg, web.Deps{
		Converter: converter,
		Transfer:  sftp,
		Favorites: favs,
		Tokens:    auth.NewIssuer([]byte(cfg.Auth.JWTSecret), cfg.Auth.Issuer, cfg.Auth.TokenTTL),
	})

	// Graceful shutdown
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Wait for active conversions so their staged objects are cleaned up
		status := converter.LimiterStatus()
		if status.Active > 0 {
			slog.Info("waiting for conversions to complete", "active", status.Active)
			if err := converter.WaitForConversions(shutdownCtx); err != nil {
				slog.Warn("conversions did not complete in time", "error", err)
			} else {
				slog.Info("all conversions completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-stopped
	slog.Info("server stopped")
	return nil
}
