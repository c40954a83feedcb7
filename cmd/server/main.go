package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/uacr-monitor/internal/api"
	"github.com/uacr-monitor/internal/app"
	"github.com/uacr-monitor/internal/config"
)

func main() {
	// Load configuration
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	logger := app.NewLogger(configManager)
	cfg := configManager.GetConfig()
	logger.WithField("store_driver", cfg.Store.Driver).Infof("Starting uACR monitor API on %s:%d", cfg.Server.Host, cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, configManager, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialise application")
	}
	defer a.Close()

	deps := api.Dependencies{
		Evaluator: a.Evaluator,
		Alerts:    a.Alerts,
		Logger:    logger,
	}
	if a.Runs != nil {
		deps.Runs = a.Runs
	}

	if err := api.NewServer(configManager, deps).Start(ctx); err != nil {
		logger.WithError(err).Error("Server failed")
		a.Close()
		os.Exit(1)
	}

	logger.Info("Server stopped")
}
