package domain

import (
	"time"
)

// Config represents the main application configuration
type Config struct {
	Environment string          `mapstructure:"environment"`
	Engine      EngineConfig    `mapstructure:"engine"`
	Server      ServerConfig    `mapstructure:"server"`
	Database    DatabaseConfig  `mapstructure:"database"`
	Store       StoreConfig     `mapstructure:"store"`
	Cache       CacheConfig     `mapstructure:"cache"`
	Logging     LoggingConfig   `mapstructure:"logging"`
	RateLimit   RateLimitConfig `mapstructure:"rate_limit"`
}

// EngineConfig controls batch evaluation.
type EngineConfig struct {
	Workers int `mapstructure:"workers"`
	// EvaluationDate pins the adherence observation end date (YYYY-MM-DD).
	// Empty means today.
	EvaluationDate string `mapstructure:"evaluation_date"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	MaxBatchSize   int           `mapstructure:"max_batch_size"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxBodyBytes   int64         `mapstructure:"max_body_bytes"`
	// JWTSecret enables bearer-token authentication when non-empty.
	JWTSecret string `mapstructure:"jwt_secret"`
}

// DatabaseConfig represents database connection configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	// MigrationsPath is a golang-migrate source URL; empty uses the
	// migrations embedded in the binary.
	MigrationsPath string `mapstructure:"migrations_path"`
	// AutoMigrate applies pending migrations at startup.
	AutoMigrate bool `mapstructure:"auto_migrate"`
}

// StoreConfig selects the alert store backend.
type StoreConfig struct {
	Driver     string `mapstructure:"driver"` // sqlite or postgres
	SQLitePath string `mapstructure:"sqlite_path"`
}

// CacheConfig represents evaluation cache configuration
type CacheConfig struct {
	RedisURL      string        `mapstructure:"redis_url"`
	DefaultTTL    time.Duration `mapstructure:"default_ttl"`
	MaxMemorySize int           `mapstructure:"max_memory_size"`
	MaxRetries    int           `mapstructure:"max_retries"`
	PoolSize      int           `mapstructure:"pool_size"`
	PoolTimeout   time.Duration `mapstructure:"pool_timeout"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// RateLimitConfig configures per-client request limiting on the HTTP API.
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}
