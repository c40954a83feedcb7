package mcp

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/uacr-monitor/internal/cache"
	litecfg "github.com/uacr-monitor/internal/config"
	"github.com/uacr-monitor/internal/domain"
	"github.com/uacr-monitor/internal/logging"
	"github.com/uacr-monitor/internal/service"
	"github.com/uacr-monitor/internal/store"
)

// LiteServer is a lightweight MCP server that requires no external databases.
// It uses an in-memory evaluation cache and SQLite for alerts.
type LiteServer struct {
	*Server
	config     *litecfg.LiteConfig
	alertStore domain.AlertStore
	cache      cache.Cache
}

// LiteServerOption is a functional option for LiteServer.
type LiteServerOption func(*LiteServer) error

// WithAlertStore sets a custom alert store.
func WithAlertStore(s domain.AlertStore) LiteServerOption {
	return func(ls *LiteServer) error {
		ls.alertStore = s
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *logrus.Logger) LiteServerOption {
	return func(ls *LiteServer) error {
		if logger == nil {
			return fmt.Errorf("logger must not be nil")
		}
		ls.logger = logger
		return nil
	}
}

// NewLiteServer creates a new lightweight MCP server instance.
func NewLiteServer(cfg *litecfg.LiteConfig, opts ...LiteServerOption) (*LiteServer, error) {
	ls := &LiteServer{
		Server: &Server{},
		config: cfg,
	}
	// stdout carries the protocol.
	ls.logger = logging.NewLogger(cfg.LogLevel, cfg.LogFormat, logging.OutputFor(logging.OutputStderr))

	for _, opt := range opts {
		if err := opt(ls); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if err := cfg.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	if ls.alertStore == nil {
		s, err := store.NewSQLiteStore(cfg.AlertDBPath(), ls.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create alert store: %w", err)
		}
		ls.alertStore = store.NewResilientStore(s, store.DefaultBreakerSettings(), ls.logger)
	}

	ls.cache = cache.NewMemoryCache(cfg.CacheMaxItems, cfg.CacheTTL)

	monitor := service.NewMonitoringService(ls.logger,
		service.WithWorkers(cfg.Workers),
		service.WithEvaluationDate(cfg.EvaluationDate))
	evaluator := cache.NewEvaluator(monitor, ls.cache, ls.logger)

	ls.Server = NewServer(evaluator, ls.alertStore, ls.logger, WithExportDir(cfg.ExportDir()))

	ls.logger.WithField("data_dir", cfg.DataDir).Info("Lite server initialized successfully")
	return ls, nil
}

// Close cleans up server resources.
func (ls *LiteServer) Close() error {
	if err := ls.cache.Close(); err != nil {
		ls.logger.WithError(err).Error("Failed to close evaluation cache")
	}
	if ls.alertStore != nil {
		if err := ls.alertStore.Close(); err != nil {
			ls.logger.WithError(err).Error("Failed to close alert store")
			return err
		}
	}
	return nil
}

// AlertStore returns the alert store for external access.
func (ls *LiteServer) AlertStore() domain.AlertStore {
	return ls.alertStore
}
