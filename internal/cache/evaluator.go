package cache

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/uacr-monitor/internal/domain"
	"github.com/uacr-monitor/internal/service"
)

// Evaluator answers single-patient evaluations from the cache when it can.
// Cache failures are logged and never fail the evaluation.
type Evaluator struct {
	monitor *service.MonitoringService
	cache   Cache
	logger  *logrus.Logger
}

// NewEvaluator wraps monitor with cache.
func NewEvaluator(monitor *service.MonitoringService, cache Cache, logger *logrus.Logger) *Evaluator {
	return &Evaluator{monitor: monitor, cache: cache, logger: logger}
}

// Evaluate behaves like service.MonitoringService.EvaluatePatient. The
// boolean reports whether the outcome came from the cache.
func (e *Evaluator) Evaluate(ctx context.Context, patient *domain.PatientSnapshot) (*domain.ClinicalAlert, bool, error) {
	key, err := Key(patient, e.monitor.EvaluationDate())
	if err != nil {
		e.logger.WithError(err).Warn("Evaluation cache key unavailable")
		alert, err := e.monitor.EvaluatePatient(ctx, patient)
		return alert, false, err
	}

	entry, ok, err := e.cache.Get(ctx, key)
	if err != nil {
		e.logger.WithField("patient_id", patient.ID).WithError(err).Warn("Evaluation cache read failed")
	}
	if ok {
		e.logger.WithField("patient_id", patient.ID).Debug("Evaluation cache hit")
		return entry.Alert, true, nil
	}

	alert, err := e.monitor.EvaluatePatient(ctx, patient)
	if err != nil {
		return nil, false, err
	}

	if err := e.cache.Set(ctx, key, &Entry{Alert: alert}); err != nil {
		e.logger.WithField("patient_id", patient.ID).WithError(err).Warn("Evaluation cache write failed")
	}
	return alert, false, nil
}

// Monitor exposes the wrapped monitoring service.
func (e *Evaluator) Monitor() *service.MonitoringService {
	return e.monitor
}
