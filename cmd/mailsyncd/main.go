package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"

	"github.com/ferrovia/mailsync/internal/config"
	"github.com/ferrovia/mailsync/internal/engine"
	"github.com/ferrovia/mailsync/internal/events"
	"github.com/ferrovia/mailsync/internal/imapx"
	"github.com/ferrovia/mailsync/internal/pipeline"
	"github.com/ferrovia/mailsync/internal/store"
	"github.com/ferrovia/mailsync/pkg/models"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup logger
	logger := setupLogger(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting mailsync")

	// Connect to database
	db, err := store.New(cfg.DatabasePath)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Run migrations
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := db.Migrate(ctx); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	logger.Info("database migrations completed")

	creds, err := cfg.Credentials()
	if err != nil {
		logger.Error("failed to build credentials", "error", err)
		os.Exit(1)
	}

	// Create components
	bus := events.NewBus(logger)
	bus.Subscribe(func(ctx context.Context, event models.DomainEvent) {
		logger.Info("domain event",
			"entity", event.EntityType,
			"action", event.Action,
			"records", len(event.Records),
		)
	})

	dialer := &imapx.Dialer{Timeout: cfg.IMAPDialTimeout, Logger: logger}
	fetcher := pipeline.New(pipeline.IMAPDialer{Dialer: dialer}, logger)
	eng := engine.New(db, bus, fetcher, logger)

	result, err := eng.Reconcile(ctx, engine.Input{
		Handle:            cfg.Handle,
		WorkspaceMemberID: cfg.WorkspaceMemberID,
		WorkspaceID:       cfg.WorkspaceID,
		Credentials:       creds,
		Visibility:        models.ChannelVisibility(cfg.Visibility),
	})
	if err != nil {
		logger.Error("reconciliation failed", "error", err)
		os.Exit(1)
	}

	for _, warning := range result.FetchWarnings {
		logger.Warn("backfill warning", "error", warning)
	}

	logger.Info("reconciliation done",
		"account_id", result.AccountID,
		"created", result.Created,
		"channels", len(result.Channels),
		"messages_archived", result.MessagesArchived,
	)
}

func setupLogger(level, format string) *slog.Logger {
	var handler slog.Handler
	logLevel := parseLevel(level)

	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: logLevel,
		})
	} else {
		// Pretty colored output for console
		handler = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      logLevel,
			TimeFormat: time.DateTime,
			NoColor:    false,
		})
	}

	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
