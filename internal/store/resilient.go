package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/uacr-monitor/internal/domain"
)

// BreakerSettings tunes the circuit breaker around a store.
type BreakerSettings struct {
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration
	// MinRequests and FailureRatio decide when the breaker trips.
	MinRequests  uint32
	FailureRatio float64
}

// DefaultBreakerSettings returns settings suited to a local or LAN database.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		MaxRequests:  5,
		Interval:     30 * time.Second,
		Timeout:      60 * time.Second,
		MinRequests:  3,
		FailureRatio: 0.6,
	}
}

// ResilientStore guards an AlertStore with a circuit breaker. While the
// breaker is open calls fail fast with domain.ErrStoreUnavailable.
type ResilientStore struct {
	inner   domain.AlertStore
	breaker *gobreaker.CircuitBreaker
	logger  *logrus.Logger
}

// NewResilientStore wraps inner.
func NewResilientStore(inner domain.AlertStore, settings BreakerSettings, logger *logrus.Logger) *ResilientStore {
	r := &ResilientStore{inner: inner, logger: logger}
	r.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "alert-store",
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= settings.MinRequests && failureRatio >= settings.FailureRatio
		},
		// Lookups that find nothing, invalid input and caller cancellation
		// say nothing about store health.
		IsSuccessful: func(err error) bool {
			var verr *domain.ValidationError
			return err == nil ||
				errors.Is(err, domain.ErrNotFound) ||
				errors.As(err, &verr) ||
				errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})
	return r
}

// State reports the breaker state for health checks.
func (r *ResilientStore) State() gobreaker.State {
	return r.breaker.State()
}

func (r *ResilientStore) execute(fn func() (interface{}, error)) (interface{}, error) {
	result, err := r.breaker.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return result, err
}

// Save implements domain.AlertStore.
func (r *ResilientStore) Save(ctx context.Context, alert *domain.ClinicalAlert) error {
	_, err := r.execute(func() (interface{}, error) {
		return nil, r.inner.Save(ctx, alert)
	})
	return err
}

// SaveAll implements domain.AlertStore.
func (r *ResilientStore) SaveAll(ctx context.Context, alerts []*domain.ClinicalAlert) error {
	_, err := r.execute(func() (interface{}, error) {
		return nil, r.inner.SaveAll(ctx, alerts)
	})
	return err
}

// Get implements domain.AlertStore.
func (r *ResilientStore) Get(ctx context.Context, alertID string) (*domain.ClinicalAlert, error) {
	result, err := r.execute(func() (interface{}, error) {
		return r.inner.Get(ctx, alertID)
	})
	if err != nil {
		return nil, err
	}
	return result.(*domain.ClinicalAlert), nil
}

// ListByPatient implements domain.AlertStore.
func (r *ResilientStore) ListByPatient(ctx context.Context, patientID string) ([]*domain.ClinicalAlert, error) {
	result, err := r.execute(func() (interface{}, error) {
		return r.inner.ListByPatient(ctx, patientID)
	})
	if err != nil {
		return nil, err
	}
	return result.([]*domain.ClinicalAlert), nil
}

// List implements domain.AlertStore.
func (r *ResilientStore) List(ctx context.Context, limit, offset int) ([]*domain.ClinicalAlert, error) {
	result, err := r.execute(func() (interface{}, error) {
		return r.inner.List(ctx, limit, offset)
	})
	if err != nil {
		return nil, err
	}
	return result.([]*domain.ClinicalAlert), nil
}

// Count implements domain.AlertStore.
func (r *ResilientStore) Count(ctx context.Context) (int64, error) {
	result, err := r.execute(func() (interface{}, error) {
		return r.inner.Count(ctx)
	})
	if err != nil {
		return 0, err
	}
	return result.(int64), nil
}

// ExportJSON implements domain.AlertStore.
func (r *ResilientStore) ExportJSON(ctx context.Context, w io.Writer) error {
	_, err := r.execute(func() (interface{}, error) {
		return nil, r.inner.ExportJSON(ctx, w)
	})
	return err
}

// Close closes the wrapped store.
func (r *ResilientStore) Close() error {
	return r.inner.Close()
}
