package report

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/uacr-monitor/internal/domain"
)

// SystemVersion is stamped into every export document.
const SystemVersion = "1.0.0"

// ExportMetadata describes an export document.
type ExportMetadata struct {
	GeneratedAt   time.Time `json:"generated_timestamp"`
	TotalAlerts   int       `json:"total_alerts"`
	SystemVersion string    `json:"system_version"`
}

// ExportedAlert is the flattened alert shape consumed by downstream systems.
// Actions and rationale are rendered to text; the structured forms stay on
// domain.ClinicalAlert.
type ExportedAlert struct {
	ID                string                          `json:"alert_id"`
	Severity          domain.Severity                 `json:"severity"`
	PatientID         string                          `json:"patient_id"`
	PatientName       string                          `json:"patient_name"`
	Type              domain.AlertType                `json:"alert_type"`
	Message           string                          `json:"message"`
	Timestamp         time.Time                       `json:"timestamp"`
	Trend             domain.TrendAnalysis            `json:"uacr_analysis"`
	Adherence         *domain.AdherenceAssessment     `json:"adherence_analysis,omitempty"`
	Recommendation    *domain.TreatmentRecommendation `json:"treatment_recommendation,omitempty"`
	Actions           []string                        `json:"recommended_actions"`
	ClinicalRationale string                          `json:"clinical_rationale"`
}

// ExportDocument is the top-level JSON export.
type ExportDocument struct {
	Metadata ExportMetadata  `json:"metadata"`
	Alerts   []ExportedAlert `json:"alerts"`
}

// Flatten converts an alert to its export shape. Adherence is only carried
// for patients on treatment.
func Flatten(alert *domain.ClinicalAlert) ExportedAlert {
	out := ExportedAlert{
		ID:                alert.ID,
		Severity:          alert.Severity,
		PatientID:         alert.PatientID,
		PatientName:       alert.PatientName,
		Type:              alert.Type,
		Message:           alert.Message,
		Timestamp:         alert.CreatedAt,
		Trend:             alert.Trend,
		Recommendation:    alert.Recommendation,
		Actions:           alert.ActionTexts(),
		ClinicalRationale: alert.RationaleText(),
	}
	if alert.OnTreatment() {
		out.Adherence = alert.Adherence
	}
	return out
}

// NewExportDocument builds an export of alerts generated at now.
func NewExportDocument(alerts []*domain.ClinicalAlert, now time.Time) *ExportDocument {
	doc := &ExportDocument{
		Metadata: ExportMetadata{
			GeneratedAt:   now.UTC(),
			TotalAlerts:   len(alerts),
			SystemVersion: SystemVersion,
		},
		Alerts: make([]ExportedAlert, 0, len(alerts)),
	}
	for _, a := range alerts {
		doc.Alerts = append(doc.Alerts, Flatten(a))
	}
	return doc
}

// WriteJSON writes the export document as indented JSON.
func WriteJSON(w io.Writer, doc *ExportDocument) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode alert export: %w", err)
	}
	return nil
}

// ExportAlerts is NewExportDocument followed by WriteJSON.
func ExportAlerts(w io.Writer, alerts []*domain.ClinicalAlert, now time.Time) error {
	return WriteJSON(w, NewExportDocument(alerts, now))
}
