package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/uacr-monitor/internal/config"
	"github.com/uacr-monitor/internal/domain"
)

// Open builds the alert store selected by the configuration, wrapped in a
// circuit breaker.
func Open(ctx context.Context, mgr *config.Manager, logger *logrus.Logger) (*ResilientStore, error) {
	cfg := mgr.GetConfig()

	var inner domain.AlertStore
	switch strings.ToLower(cfg.Store.Driver) {
	case config.StoreDriverSQLite:
		s, err := NewSQLiteStore(cfg.Store.SQLitePath, logger)
		if err != nil {
			return nil, err
		}
		inner = s
	case config.StoreDriverPostgres:
		s, err := NewPostgresStoreFromURL(ctx, mgr.GetDatabaseURL(), &cfg.Database, logger)
		if err != nil {
			return nil, err
		}
		inner = s
	default:
		return nil, fmt.Errorf("unsupported store driver: %q", cfg.Store.Driver)
	}

	logger.WithField("driver", cfg.Store.Driver).Info("Alert store ready")
	return NewResilientStore(inner, DefaultBreakerSettings(), logger), nil
}
