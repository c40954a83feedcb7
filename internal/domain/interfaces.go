package domain

import (
	"context"
	"io"
)

// AlertStore persists emitted clinical alerts for downstream reporting.
type AlertStore interface {
	// Save stores an alert. Saving an alert ID that already exists replaces it.
	Save(ctx context.Context, alert *ClinicalAlert) error

	// SaveAll stores a batch of alerts atomically.
	SaveAll(ctx context.Context, alerts []*ClinicalAlert) error

	// Get retrieves an alert by ID, or ErrNotFound.
	Get(ctx context.Context, alertID string) (*ClinicalAlert, error)

	// ListByPatient returns a patient's alerts, newest first.
	ListByPatient(ctx context.Context, patientID string) ([]*ClinicalAlert, error)

	// List returns alerts with pagination, newest first.
	List(ctx context.Context, limit, offset int) ([]*ClinicalAlert, error)

	// Count returns the total number of stored alerts.
	Count(ctx context.Context) (int64, error)

	// ExportJSON writes every stored alert as an export document.
	ExportJSON(ctx context.Context, w io.Writer) error

	// Close releases resources.
	Close() error
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetServerConfig() *ServerConfig
	GetDatabaseConfig() *DatabaseConfig
	Reload() error
	Validate() error
	GetDatabaseConnectionString() string
	GetDatabaseURL() string
	GetRedisConnectionString() string
	IsProduction() bool
	IsDevelopment() bool
}
