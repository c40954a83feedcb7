// Package store persists clinical alerts. Each alert is kept as its JSON
// document alongside the columns used for lookup and ordering.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/uacr-monitor/internal/domain"
	"github.com/uacr-monitor/internal/report"
)

// maxExportLimit is the maximum number of alerts exported at once.
const maxExportLimit = 1000000

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func encodeAlert(alert *domain.ClinicalAlert) ([]byte, error) {
	if alert == nil || alert.ID == "" {
		return nil, domain.NewValidationError("alert_id", "alert identifier is required", nil)
	}
	payload, err := json.Marshal(alert)
	if err != nil {
		return nil, fmt.Errorf("failed to encode alert %s: %w", alert.ID, err)
	}
	return payload, nil
}

func scanAlert(s scanner) (*domain.ClinicalAlert, error) {
	var payload []byte
	if err := s.Scan(&payload); err != nil {
		return nil, err
	}
	alert := &domain.ClinicalAlert{}
	if err := json.Unmarshal(payload, alert); err != nil {
		return nil, fmt.Errorf("failed to decode stored alert: %w", err)
	}
	return alert, nil
}

type rowIterator interface {
	scanner
	Next() bool
	Err() error
}

func collectAlerts(rows rowIterator) ([]*domain.ClinicalAlert, error) {
	result := []*domain.ClinicalAlert{}
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, alert)
	}
	return result, rows.Err()
}

// exportAll writes every alert listed by list as an export document.
func exportAll(ctx context.Context, w io.Writer, list func(ctx context.Context, limit, offset int) ([]*domain.ClinicalAlert, error)) error {
	all, err := list(ctx, maxExportLimit, 0)
	if err != nil {
		return fmt.Errorf("failed to list alerts: %w", err)
	}
	return report.ExportAlerts(w, all, time.Now())
}
