// Package config provides configuration management for the uACR monitor.
// This file contains the lightweight configuration for standalone operation.
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/uacr-monitor/internal/domain"
)

// LiteConfig is a simplified configuration for standalone operation.
// It requires no external databases and uses sensible defaults.
type LiteConfig struct {
	// Data storage
	DataDir string // Base directory for the alert store and exports

	// Engine settings
	Workers        int         // Concurrent patient evaluations
	EvaluationDate domain.Date // Zero means today

	// Cache settings
	CacheMaxItems int           // Maximum items in memory cache
	CacheTTL      time.Duration // Default cache TTL

	// Logging
	LogLevel  string // Log level: debug, info, warn, error
	LogFormat string // Log format: json, text
}

// DefaultLiteConfig returns a configuration with sensible defaults.
func DefaultLiteConfig() *LiteConfig {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".uacr-monitor")

	return &LiteConfig{
		DataDir:       dataDir,
		Workers:       runtime.NumCPU(),
		CacheMaxItems: 1000,
		CacheTTL:      24 * time.Hour,
		LogLevel:      "info",
		LogFormat:     "json",
	}
}

// LoadLiteConfig loads configuration from environment variables.
// Falls back to defaults if not set or malformed.
func LoadLiteConfig() *LiteConfig {
	cfg := DefaultLiteConfig()

	if v := os.Getenv("UACR_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}

	// Engine settings
	if v := os.Getenv("UACR_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Workers = n
		}
	}
	if v := os.Getenv("UACR_EVALUATION_DATE"); v != "" {
		if d, err := domain.ParseDate(v); err == nil {
			cfg.EvaluationDate = d
		}
	}

	// Cache settings
	if v := os.Getenv("UACR_CACHE_MAX_ITEMS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CacheMaxItems = n
		}
	}
	if v := os.Getenv("UACR_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.CacheTTL = d
		}
	}

	// Logging
	if v := os.Getenv("UACR_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("UACR_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}

	return cfg
}

// AlertDBPath returns the path to the SQLite alert store.
func (c *LiteConfig) AlertDBPath() string {
	return filepath.Join(c.DataDir, "alerts.db")
}

// ExportDir returns the directory for JSON exports.
func (c *LiteConfig) ExportDir() string {
	return filepath.Join(c.DataDir, "exports")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c *LiteConfig) EnsureDataDir() error {
	if err := os.MkdirAll(c.DataDir, 0755); err != nil {
		return err
	}
	return os.MkdirAll(c.ExportDir(), 0755)
}
