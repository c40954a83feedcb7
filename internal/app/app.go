// Package app wires configuration, storage and the evaluation engine into
// the components shared by every entry point.
package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/uacr-monitor/internal/cache"
	"github.com/uacr-monitor/internal/config"
	"github.com/uacr-monitor/internal/database"
	"github.com/uacr-monitor/internal/logging"
	"github.com/uacr-monitor/internal/repository"
	"github.com/uacr-monitor/internal/service"
	"github.com/uacr-monitor/internal/store"
)

// App holds the long-lived components built from configuration.
type App struct {
	Config    *config.Manager
	Logger    *logrus.Logger
	Alerts    *store.ResilientStore
	Cache     cache.Cache
	Monitor   *service.MonitoringService
	Evaluator *cache.Evaluator

	// DB and Runs are set only for the postgres store driver.
	DB   *database.DB
	Runs *repository.RunRepository
}

// NewLogger builds the logger described by the configuration.
func NewLogger(mgr *config.Manager) *logrus.Logger {
	cfg := mgr.GetConfig().Logging
	return logging.NewLogger(cfg.Level, cfg.Format, logging.OutputFor(cfg.Output))
}

// New builds the application from a validated configuration. Callers must
// Close the result.
func New(ctx context.Context, mgr *config.Manager, logger *logrus.Logger) (*App, error) {
	cfg := mgr.GetConfig()
	a := &App{Config: mgr, Logger: logger}

	asOf, err := mgr.EvaluationDate()
	if err != nil {
		return nil, err
	}

	postgres := strings.EqualFold(cfg.Store.Driver, config.StoreDriverPostgres)
	if postgres && cfg.Database.AutoMigrate {
		if err := Migrate(ctx, mgr, logger, func(ctx context.Context, r *database.MigrationRunner) error {
			return r.Up(ctx)
		}); err != nil {
			return nil, err
		}
	}

	a.Alerts, err = store.Open(ctx, mgr, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open alert store: %w", err)
	}

	a.Cache, err = cache.New(ctx, cfg.Cache, logger)
	if err != nil {
		logger.WithError(err).Warn("Redis cache unavailable, falling back to in-memory cache")
		a.Cache = cache.NewMemoryCache(cfg.Cache.MaxMemorySize, cfg.Cache.DefaultTTL)
	}

	a.Monitor = service.NewMonitoringService(logger,
		service.WithWorkers(cfg.Engine.Workers),
		service.WithEvaluationDate(asOf))
	a.Evaluator = cache.NewEvaluator(a.Monitor, a.Cache, logger)

	if postgres {
		a.DB, err = database.NewConnection(ctx, mgr.GetDatabaseURL(), database.PoolConfigFrom(cfg.Database), logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Runs = repository.NewRunRepository(a.DB.Pool, logger)
	}

	return a, nil
}

// Migrate opens a migration runner against the configured database and
// applies fn to it.
func Migrate(ctx context.Context, mgr *config.Manager, logger *logrus.Logger, fn func(context.Context, *database.MigrationRunner) error) error {
	runner, err := database.NewMigrationRunner(mgr.GetDatabaseURL(), mgr.GetConfig().Database.MigrationsPath, logger)
	if err != nil {
		return err
	}
	defer runner.Close()
	return fn(ctx, runner)
}

// Close releases every component that was opened.
func (a *App) Close() {
	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			a.Logger.WithError(err).Warn("Failed to close evaluation cache")
		}
	}
	if a.Alerts != nil {
		if err := a.Alerts.Close(); err != nil {
			a.Logger.WithError(err).Warn("Failed to close alert store")
		}
	}
	if a.DB != nil {
		a.DB.Close()
	}
}
