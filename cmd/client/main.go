package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iudanet/boardsync/internal/client/outbox"
	"github.com/iudanet/boardsync/internal/client/replication"
	"github.com/iudanet/boardsync/internal/client/session"
	"github.com/iudanet/boardsync/internal/config"
	"github.com/iudanet/boardsync/internal/models"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	configPath := flag.String("config", "config.yaml", "Path to config file")
	token := flag.String("token", "", "Access token (overrides config)")
	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	if err := run(*configPath, *token); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, token string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if token == "" {
		token = cfg.Client.AccessToken
	}
	if token == "" {
		return fmt.Errorf("access token is required (flag -token or client.access_token)")
	}

	logger := newLogger(cfg.Logging)
	logger.Info("starting boardsync client",
		"version", Version, "server", cfg.Client.ServerURL, "db", cfg.Client.DBPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Отзыв токена сервером завершает клиент
	unauthorized := make(chan struct{})

	sess, err := session.Open(ctx, logger, session.Config{
		ServerURL:   cfg.Client.ServerURL,
		DBPath:      cfg.Client.DBPath,
		AccessToken: token,
		Replication: replication.Config{
			PullLimit:    cfg.Client.PullLimit,
			PollInterval: cfg.Client.GetPollInterval(),
			RetryDelay:   cfg.Client.GetRetryDelay(),
		},
		Debounce: outbox.Config{Debounce: cfg.Client.GetDebounce()},
		OnUnauthorized: func() {
			close(unauthorized)
		},
	})
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	defer func() {
		if err := sess.Close(); err != nil {
			logger.Error("failed to close session", "error", err)
		}
	}()

	select {
	case <-sess.Ready():
		logger.Info("initial replication complete")
		printStatus(ctx, sess)
	case <-unauthorized:
		return fmt.Errorf("access token rejected by server")
	case <-ctx.Done():
		return nil
	}

	select {
	case <-unauthorized:
		return fmt.Errorf("session invalidated by server, re-authenticate and restart")
	case <-ctx.Done():
		logger.Info("shutting down")
		return nil
	}
}

// printStatus выводит размер локальной реплики по коллекциям
func printStatus(ctx context.Context, sess *session.Session) {
	statusCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	fmt.Println("Local replica:")
	for _, collection := range models.Collections() {
		docs, err := sess.List(statusCtx, collection)
		if err != nil {
			fmt.Printf("  %-8s error: %v\n", collection, err)
			continue
		}
		fmt.Printf("  %-8s %d documents\n", collection, len(docs))
	}
}

// newLogger создает slog-логгер по настройкам из конфига
func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

func printVersion() {
	fmt.Printf("BoardSync Client\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
