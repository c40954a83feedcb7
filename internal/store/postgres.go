package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/uacr-monitor/internal/domain"
)

// PostgresStore implements domain.AlertStore using PostgreSQL.
type PostgresStore struct {
	db     *sql.DB
	logger *logrus.Logger
}

// NewPostgresStore wraps an open connection. It expects the schema to exist
// already (created via migrations).
func NewPostgresStore(ctx context.Context, db *sql.DB, logger *logrus.Logger) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &PostgresStore{db: db, logger: logger}, nil
}

// NewPostgresStoreFromURL opens a connection pool and wraps it.
func NewPostgresStoreFromURL(ctx context.Context, databaseURL string, cfg *domain.DatabaseConfig, logger *logrus.Logger) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	maxOpen, maxIdle, lifetime := 25, 5, 5*time.Minute
	if cfg != nil {
		if cfg.MaxOpenConns > 0 {
			maxOpen = cfg.MaxOpenConns
		}
		if cfg.MaxIdleConns > 0 {
			maxIdle = cfg.MaxIdleConns
		}
		if cfg.ConnMaxLifetime > 0 {
			lifetime = cfg.ConnMaxLifetime
		}
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(lifetime)

	store, err := NewPostgresStore(ctx, db, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

const postgresUpsert = `
	INSERT INTO alerts (
		alert_id, patient_id, severity, alert_type,
		worsening_level, percent_change, payload, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (alert_id) DO UPDATE SET
		patient_id = EXCLUDED.patient_id,
		severity = EXCLUDED.severity,
		alert_type = EXCLUDED.alert_type,
		worsening_level = EXCLUDED.worsening_level,
		percent_change = EXCLUDED.percent_change,
		payload = EXCLUDED.payload,
		created_at = EXCLUDED.created_at
`

// Save stores an alert, replacing any alert with the same ID.
func (s *PostgresStore) Save(ctx context.Context, alert *domain.ClinicalAlert) error {
	return s.save(ctx, s.db, alert)
}

func (s *PostgresStore) save(ctx context.Context, db execer, alert *domain.ClinicalAlert) error {
	payload, err := encodeAlert(alert)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, postgresUpsert,
		alert.ID,
		alert.PatientID,
		string(alert.Severity),
		string(alert.Type),
		string(alert.Trend.Level),
		alert.Trend.PercentChange,
		payload,
		alert.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save alert %s: %w", alert.ID, describePQ(err))
	}
	return nil
}

// SaveAll stores alerts in a single transaction.
func (s *PostgresStore) SaveAll(ctx context.Context, alerts []*domain.ClinicalAlert) error {
	if len(alerts) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, alert := range alerts {
		if err := s.save(ctx, tx, alert); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit alerts: %w", err)
	}

	s.logger.WithField("alerts", len(alerts)).Debug("Saved alert batch")
	return nil
}

// Get retrieves an alert by ID.
func (s *PostgresStore) Get(ctx context.Context, alertID string) (*domain.ClinicalAlert, error) {
	row := s.db.QueryRowContext(ctx, "SELECT payload FROM alerts WHERE alert_id = $1", alertID)

	alert, err := scanAlert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("alert %s: %w", alertID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}
	return alert, nil
}

// ListByPatient returns a patient's alerts, newest first.
func (s *PostgresStore) ListByPatient(ctx context.Context, patientID string) ([]*domain.ClinicalAlert, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload FROM alerts
		WHERE patient_id = $1
		ORDER BY created_at DESC, alert_id DESC
	`, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer rows.Close()

	return collectAlerts(rows)
}

// List returns alerts with pagination, newest first.
func (s *PostgresStore) List(ctx context.Context, limit, offset int) ([]*domain.ClinicalAlert, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload FROM alerts
		ORDER BY created_at DESC, alert_id DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer rows.Close()

	return collectAlerts(rows)
}

// Count returns the total number of stored alerts.
func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM alerts").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count alerts: %w", err)
	}
	return count, nil
}

// ExportJSON writes every stored alert as an export document.
func (s *PostgresStore) ExportJSON(ctx context.Context, w io.Writer) error {
	return exportAll(ctx, w, s.List)
}

// Close closes the store and releases resources.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// describePQ adds the server-side constraint name to driver errors.
func describePQ(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Constraint != "" {
		return fmt.Errorf("%w (constraint %s)", err, pqErr.Constraint)
	}
	return err
}
