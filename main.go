package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"inbox_server/config"
	"inbox_server/internal/bootstrap"
	"inbox_server/pkg/logger"

	"github.com/joho/godotenv"
)

const (
	shutdownTimeout = 30 * time.Second // Maximum time to wait for graceful shutdown
)

func main() {
	// Initialize logger early
	logger.Init(logger.Config{
		Level:   logger.LevelInfo,
		Service: "inbox",
	})

	// Load .env file if exists (for local development)
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file found, using environment variables")
	}

	mode := flag.String("mode", "api", "Run mode: api, categorize")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config: %v", err)
	}

	switch *mode {
	case "api":
		runAPI(cfg)
	case "categorize":
		if err := runCategorize(cfg); err != nil {
			l := logger.WithError(err)
			l.Error().Msg("Categorization failed, enriched inbox left unchanged")
			os.Exit(1)
		}
	default:
		logger.Fatal("Unknown mode: %s", *mode)
	}
}

func runAPI(cfg *config.Config) {
	app, cleanup, err := bootstrap.NewAPI(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize API: %v", err)
	}
	defer cleanup()

	// Graceful shutdown with timeout
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down API server (timeout: %v)...", shutdownTimeout)

		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			logger.Error("Error shutting down: %v", err)
		} else {
			logger.Info("API server shut down gracefully")
		}
	}()

	addr := ":" + cfg.Port
	logger.Info("Starting API server on %s", addr)
	if err := app.Listen(addr); err != nil {
		logger.Error("Server stopped: %v", err)
	}
}

func runCategorize(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := bootstrap.RunCategorize(ctx, cfg)
	if err != nil {
		return err
	}

	l := logger.Default()
	l.Info().
		Int("processed", result.Processed).
		Int("spam", result.Spam).
		Int("drafts", result.Drafts).
		Dur("elapsed", result.Duration).
		Msg("Categorization complete")
	return nil
}
