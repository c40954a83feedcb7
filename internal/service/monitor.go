package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/uacr-monitor/internal/domain"
)

// SkippedPatient records a patient whose trend could not be evaluated.
type SkippedPatient struct {
	PatientID string `json:"patient_id"`
	Reason    string `json:"reason"`
}

// BatchStats aggregates a batch run. Treatment counts are over emitted alerts.
type BatchStats struct {
	TotalPatients       int                     `json:"total_patients"`
	Evaluated           int                     `json:"evaluated"`
	Skipped             int                     `json:"skipped"`
	Failed              int                     `json:"failed"`
	AlertsGenerated     int                     `json:"alerts_generated"`
	BySeverity          map[domain.Severity]int `json:"by_severity"`
	OnTreatment         int                     `json:"on_treatment"`
	NotOnTreatment      int                     `json:"not_on_treatment"`
	NonAdherent         int                     `json:"non_adherent"`
	NonAdherentFraction float64                 `json:"non_adherent_fraction"`
}

// BatchResult is the explicit output of a batch run.
type BatchResult struct {
	RunID          uuid.UUID                 `json:"run_id"`
	EvaluationDate domain.Date               `json:"evaluation_date"`
	StartedAt      time.Time                 `json:"started_at"`
	CompletedAt    time.Time                 `json:"completed_at"`
	Alerts         []*domain.ClinicalAlert   `json:"alerts"`
	Skipped        []SkippedPatient          `json:"skipped"`
	Failures       []*domain.EvaluationError `json:"failures"`
	Stats          BatchStats                `json:"stats"`
}

// MergeFailures adds failures detected before evaluation, such as records
// that could not be decoded, and updates the counts.
func (r *BatchResult) MergeFailures(failures []*domain.EvaluationError) {
	if len(failures) == 0 {
		return
	}
	r.Failures = append(failures, r.Failures...)
	r.Stats.Failed += len(failures)
	r.Stats.TotalPatients += len(failures)
}

// MonitoringService runs the full evaluation pipeline for one or many patients.
type MonitoringService struct {
	logger      *logrus.Logger
	trend       *TrendAnalyzer
	adherence   *AdherenceCalculator
	eligibility *EligibilityEvaluator
	composer    *AlertComposer
	workers     int
	asOf        func() domain.Date
}

// MonitorOption configures a MonitoringService.
type MonitorOption func(*MonitoringService)

// WithWorkers bounds the number of concurrent patient evaluations.
func WithWorkers(n int) MonitorOption {
	return func(s *MonitoringService) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithEvaluationDate pins the adherence observation end date.
func WithEvaluationDate(d domain.Date) MonitorOption {
	return func(s *MonitoringService) {
		if !d.IsZero() {
			s.asOf = func() domain.Date { return d }
		}
	}
}

// WithComposer replaces the alert composer, typically to inject a clock.
func WithComposer(c *AlertComposer) MonitorOption {
	return func(s *MonitoringService) {
		s.composer = c
	}
}

// NewMonitoringService creates a new monitoring service
func NewMonitoringService(logger *logrus.Logger, opts ...MonitorOption) *MonitoringService {
	s := &MonitoringService{
		logger:      logger,
		trend:       NewTrendAnalyzer(logger),
		adherence:   NewAdherenceCalculator(logger),
		eligibility: NewEligibilityEvaluator(logger),
		composer:    NewAlertComposer(logger),
		workers:     runtime.NumCPU(),
		asOf:        func() domain.Date { return domain.DateOf(time.Now()) },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EvaluatePatient runs one patient through the pipeline. It returns a nil
// alert when the trend is not worsening. Errors for which domain.IsSkippable
// holds mean the patient has no evaluable trend; any other error is an
// *domain.EvaluationError.
func (s *MonitoringService) EvaluatePatient(ctx context.Context, patient *domain.PatientSnapshot) (*domain.ClinicalAlert, error) {
	return s.evaluate(ctx, patient, s.asOf())
}

// EvaluationDate returns the date adherence is measured up to.
func (s *MonitoringService) EvaluationDate() domain.Date {
	return s.asOf()
}

func (s *MonitoringService) evaluate(ctx context.Context, patient *domain.PatientSnapshot, asOf domain.Date) (*domain.ClinicalAlert, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := patient.Validate(); err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			return nil, domain.NewEvaluationError(patient.ID, verr.Field, err)
		}
		return nil, domain.NewEvaluationError(patient.ID, "", err)
	}

	trend, err := s.trend.Analyze(patient)
	if err != nil {
		if domain.IsSkippable(err) {
			return nil, err
		}
		return nil, domain.NewEvaluationError(patient.ID, "uacr_history", err)
	}
	if !trend.IsWorsening {
		return nil, nil
	}

	adherence := s.adherence.Assess(patient.Medication, asOf)

	var eligibility *domain.EligibilityResult
	if !adherence.OnTreatment {
		eligibility = s.eligibility.Evaluate(EligibilityInputFor(patient, trend.CurrentValue))
	}

	alert, err := s.composer.Compose(patient, trend, adherence, eligibility)
	if err != nil {
		return nil, domain.NewEvaluationError(patient.ID, "", err)
	}
	return alert, nil
}

// outcome is the per-slot result written by exactly one worker.
type outcome struct {
	alert   *domain.ClinicalAlert
	skipped string
	failure *domain.EvaluationError
	done    bool
}

// ProcessBatch evaluates every patient on a bounded worker pool and merges
// the outcomes in input order. Cancelling ctx stops scheduling further
// patients; evaluations already running complete and are reported.
func (s *MonitoringService) ProcessBatch(ctx context.Context, patients []domain.PatientSnapshot) (*BatchResult, error) {
	result := &BatchResult{
		RunID:          uuid.New(),
		EvaluationDate: s.asOf(),
		StartedAt:      time.Now().UTC(),
		Alerts:         []*domain.ClinicalAlert{},
		Skipped:        []SkippedPatient{},
		Failures:       []*domain.EvaluationError{},
	}

	s.logger.WithFields(logrus.Fields{
		"run_id":          result.RunID.String(),
		"patients":        len(patients),
		"workers":         s.workers,
		"evaluation_date": result.EvaluationDate.String(),
	}).Info("Starting batch evaluation")

	outcomes := make([]outcome, len(patients))

	var g errgroup.Group
	g.SetLimit(s.workers)

	for i := range patients {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			outcomes[i] = s.evaluateSlot(ctx, &patients[i], result.EvaluationDate)
			return nil
		})
	}
	// Workers never return errors; failures are recorded per slot.
	_ = g.Wait()

	for i, o := range outcomes {
		if !o.done {
			continue
		}
		result.Stats.TotalPatients++
		switch {
		case o.failure != nil:
			result.Failures = append(result.Failures, o.failure)
		case o.skipped != "":
			result.Skipped = append(result.Skipped, SkippedPatient{PatientID: patients[i].ID, Reason: o.skipped})
		default:
			result.Stats.Evaluated++
			if o.alert != nil {
				result.Alerts = append(result.Alerts, o.alert)
			}
		}
	}

	result.Stats = computeStats(result)
	result.CompletedAt = time.Now().UTC()

	entry := s.logger.WithFields(logrus.Fields{
		"run_id":    result.RunID.String(),
		"evaluated": result.Stats.Evaluated,
		"skipped":   result.Stats.Skipped,
		"failed":    result.Stats.Failed,
		"alerts":    result.Stats.AlertsGenerated,
		"duration":  result.CompletedAt.Sub(result.StartedAt).String(),
	})
	if err := ctx.Err(); err != nil && result.Stats.TotalPatients < len(patients) {
		entry.WithError(err).Warn("Batch evaluation cancelled")
		return result, fmt.Errorf("batch %s cancelled after %d of %d patients: %w",
			result.RunID, result.Stats.TotalPatients, len(patients), err)
	}
	entry.Info("Batch evaluation completed")

	return result, nil
}

func (s *MonitoringService) evaluateSlot(ctx context.Context, patient *domain.PatientSnapshot, asOf domain.Date) outcome {
	// In-flight work is not interrupted by cancellation.
	alert, err := s.evaluate(context.WithoutCancel(ctx), patient, asOf)
	if err == nil {
		return outcome{alert: alert, done: true}
	}

	if domain.IsSkippable(err) {
		s.logger.WithFields(logrus.Fields{
			"patient_id": patient.ID,
			"reason":     err.Error(),
		}).Debug("Skipping patient")
		return outcome{skipped: err.Error(), done: true}
	}

	var evalErr *domain.EvaluationError
	if !errors.As(err, &evalErr) {
		evalErr = domain.NewEvaluationError(patient.ID, "", err)
	}
	s.logger.WithFields(logrus.Fields{
		"patient_id": patient.ID,
		"field":      evalErr.Field,
	}).WithError(evalErr.Err).Warn("Patient evaluation failed")
	return outcome{failure: evalErr, done: true}
}

func computeStats(result *BatchResult) BatchStats {
	stats := BatchStats{
		TotalPatients:   result.Stats.TotalPatients,
		Evaluated:       result.Stats.Evaluated,
		Skipped:         len(result.Skipped),
		Failed:          len(result.Failures),
		AlertsGenerated: len(result.Alerts),
		BySeverity:      make(map[domain.Severity]int, len(domain.SeverityOrder)),
	}
	for _, sev := range domain.SeverityOrder {
		stats.BySeverity[sev] = 0
	}

	for _, alert := range result.Alerts {
		stats.BySeverity[alert.Severity]++
		if alert.OnTreatment() {
			stats.OnTreatment++
			if !alert.Adherence.IsAdherent {
				stats.NonAdherent++
			}
		} else {
			stats.NotOnTreatment++
		}
	}
	if stats.OnTreatment > 0 {
		stats.NonAdherentFraction = float64(stats.NonAdherent) / float64(stats.OnTreatment)
	}
	return stats
}
