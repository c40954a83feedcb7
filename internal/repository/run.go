package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/uacr-monitor/internal/domain"
	"github.com/uacr-monitor/internal/service"
)

// FailureRecord is a stored per-patient batch failure.
type FailureRecord struct {
	PatientID string `json:"patient_id"`
	Field     string `json:"field,omitempty"`
	Error     string `json:"error"`
}

// RunSummary is the persisted outcome of one batch run. Alerts themselves
// live in the alert store.
type RunSummary struct {
	RunID          uuid.UUID          `json:"run_id"`
	EvaluationDate domain.Date        `json:"evaluation_date"`
	StartedAt      time.Time          `json:"started_at"`
	CompletedAt    time.Time          `json:"completed_at"`
	Stats          service.BatchStats `json:"stats"`
	Failures       []FailureRecord    `json:"failures"`
}

// RunRepository handles batch run persistence
type RunRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewRunRepository creates a new batch run repository
func NewRunRepository(db *pgxpool.Pool, logger *logrus.Logger) *RunRepository {
	return &RunRepository{
		db:  db,
		log: logger,
	}
}

// SummaryOf extracts the persisted summary from a batch result.
func SummaryOf(result *service.BatchResult) *RunSummary {
	failures := make([]FailureRecord, 0, len(result.Failures))
	for _, f := range result.Failures {
		rec := FailureRecord{PatientID: f.PatientID, Field: f.Field}
		if f.Err != nil {
			rec.Error = f.Err.Error()
		}
		failures = append(failures, rec)
	}
	return &RunSummary{
		RunID:          result.RunID,
		EvaluationDate: result.EvaluationDate,
		StartedAt:      result.StartedAt,
		CompletedAt:    result.CompletedAt,
		Stats:          result.Stats,
		Failures:       failures,
	}
}

// Record inserts the summary of a completed batch run
func (r *RunRepository) Record(ctx context.Context, result *service.BatchResult) error {
	summary := SummaryOf(result)

	bySeverity, err := json.Marshal(summary.Stats.BySeverity)
	if err != nil {
		return fmt.Errorf("encoding severity counts: %w", err)
	}
	failures, err := json.Marshal(summary.Failures)
	if err != nil {
		return fmt.Errorf("encoding failures: %w", err)
	}

	query := `
		INSERT INTO batch_runs (
			run_id, evaluation_date, started_at, completed_at,
			total_patients, evaluated, skipped, failed, alerts_generated,
			by_severity, on_treatment, not_on_treatment, non_adherent,
			non_adherent_fraction, failures
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15
		)`

	stats := summary.Stats
	_, err = r.db.Exec(ctx, query,
		summary.RunID,
		summary.EvaluationDate.Time(),
		summary.StartedAt,
		summary.CompletedAt,
		stats.TotalPatients,
		stats.Evaluated,
		stats.Skipped,
		stats.Failed,
		stats.AlertsGenerated,
		bySeverity,
		stats.OnTreatment,
		stats.NotOnTreatment,
		stats.NonAdherent,
		stats.NonAdherentFraction,
		failures,
	)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"run_id": summary.RunID,
			"error":  err,
		}).Error("Failed to record batch run")
		return fmt.Errorf("recording batch run: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"run_id": summary.RunID,
		"alerts": stats.AlertsGenerated,
	}).Info("Batch run recorded")
	return nil
}

const runColumns = `
	run_id, evaluation_date, started_at, completed_at,
	total_patients, evaluated, skipped, failed, alerts_generated,
	by_severity, on_treatment, not_on_treatment, non_adherent,
	non_adherent_fraction, failures`

func scanRun(row pgx.Row) (*RunSummary, error) {
	var (
		summary    RunSummary
		evalDate   time.Time
		bySeverity []byte
		failures   []byte
	)
	stats := &summary.Stats

	err := row.Scan(
		&summary.RunID,
		&evalDate,
		&summary.StartedAt,
		&summary.CompletedAt,
		&stats.TotalPatients,
		&stats.Evaluated,
		&stats.Skipped,
		&stats.Failed,
		&stats.AlertsGenerated,
		&bySeverity,
		&stats.OnTreatment,
		&stats.NotOnTreatment,
		&stats.NonAdherent,
		&stats.NonAdherentFraction,
		&failures,
	)
	if err != nil {
		return nil, err
	}

	summary.EvaluationDate = domain.DateOf(evalDate)
	if err := json.Unmarshal(bySeverity, &stats.BySeverity); err != nil {
		return nil, fmt.Errorf("decoding severity counts: %w", err)
	}
	if err := json.Unmarshal(failures, &summary.Failures); err != nil {
		return nil, fmt.Errorf("decoding failures: %w", err)
	}
	return &summary, nil
}

// GetByID retrieves a batch run summary by its ID
func (r *RunRepository) GetByID(ctx context.Context, id uuid.UUID) (*RunSummary, error) {
	query := `SELECT ` + runColumns + ` FROM batch_runs WHERE run_id = $1`

	summary, err := scanRun(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("batch run %s: %w", id, domain.ErrNotFound)
		}
		r.log.WithFields(logrus.Fields{
			"run_id": id,
			"error":  err,
		}).Error("Failed to get batch run")
		return nil, fmt.Errorf("getting batch run: %w", err)
	}
	return summary, nil
}

// Recent lists the most recent batch runs, newest first
func (r *RunRepository) Recent(ctx context.Context, limit int) ([]*RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT ` + runColumns + ` FROM batch_runs ORDER BY started_at DESC LIMIT $1`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("listing batch runs: %w", err)
	}
	defer rows.Close()

	summaries := []*RunSummary{}
	for rows.Next() {
		summary, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning batch run: %w", err)
		}
		summaries = append(summaries, summary)
	}
	return summaries, rows.Err()
}
