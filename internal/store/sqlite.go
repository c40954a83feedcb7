package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/uacr-monitor/internal/domain"
)

// SQLiteStore implements domain.AlertStore using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
	logger *logrus.Logger
}

// NewSQLiteStore opens the alert database, creating the file and schema if
// they don't exist. The special path ":memory:" opens a private in-memory
// database.
func NewSQLiteStore(dbPath string, logger *logrus.Logger) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every pooled connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	} else if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	logger.WithField("path", dbPath).Debug("Opened SQLite alert store")
	return &SQLiteStore{db: db, dbPath: dbPath, logger: logger}, nil
}

// createSchema creates the alert table and indexes.
func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS alerts (
		alert_id TEXT PRIMARY KEY,
		patient_id TEXT NOT NULL,
		severity TEXT NOT NULL,
		alert_type TEXT NOT NULL,
		worsening_level TEXT NOT NULL,
		percent_change REAL NOT NULL,
		payload TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_alerts_patient ON alerts(patient_id);
	CREATE INDEX IF NOT EXISTS idx_alerts_severity ON alerts(severity);
	CREATE INDEX IF NOT EXISTS idx_alerts_created_at ON alerts(created_at);
	`

	_, err := db.Exec(schema)
	return err
}

const sqliteUpsert = `
	INSERT INTO alerts (
		alert_id, patient_id, severity, alert_type,
		worsening_level, percent_change, payload, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(alert_id) DO UPDATE SET
		patient_id = excluded.patient_id,
		severity = excluded.severity,
		alert_type = excluded.alert_type,
		worsening_level = excluded.worsening_level,
		percent_change = excluded.percent_change,
		payload = excluded.payload,
		created_at = excluded.created_at
`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLiteStore) save(ctx context.Context, db execer, alert *domain.ClinicalAlert) error {
	payload, err := encodeAlert(alert)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, sqliteUpsert,
		alert.ID,
		alert.PatientID,
		string(alert.Severity),
		string(alert.Type),
		string(alert.Trend.Level),
		alert.Trend.PercentChange,
		string(payload),
		alert.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save alert %s: %w", alert.ID, err)
	}
	return nil
}

// Save stores an alert, replacing any alert with the same ID.
func (s *SQLiteStore) Save(ctx context.Context, alert *domain.ClinicalAlert) error {
	return s.save(ctx, s.db, alert)
}

// SaveAll stores alerts in a single transaction.
func (s *SQLiteStore) SaveAll(ctx context.Context, alerts []*domain.ClinicalAlert) error {
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
func (s *SQLiteStore) Get(ctx context.Context, alertID string) (*domain.ClinicalAlert, error) {
	row := s.db.QueryRowContext(ctx, "SELECT payload FROM alerts WHERE alert_id = ?", alertID)

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
func (s *SQLiteStore) ListByPatient(ctx context.Context, patientID string) ([]*domain.ClinicalAlert, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload FROM alerts
		WHERE patient_id = ?
		ORDER BY created_at DESC, alert_id DESC
	`, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	return collectAlerts(rows)
}

// List returns alerts with pagination, newest first.
func (s *SQLiteStore) List(ctx context.Context, limit, offset int) ([]*domain.ClinicalAlert, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload FROM alerts
		ORDER BY created_at DESC, alert_id DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	return collectAlerts(rows)
}

// Count returns the total number of stored alerts.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM alerts").Scan(&count)
	return count, err
}

// ExportJSON writes every stored alert as an export document.
func (s *SQLiteStore) ExportJSON(ctx context.Context, w io.Writer) error {
	return exportAll(ctx, w, s.List)
}

// Close closes the store and releases resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
