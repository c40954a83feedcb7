package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/uacr-monitor/internal/domain"
	"github.com/uacr-monitor/internal/ingest"
	"github.com/uacr-monitor/internal/report"
)

const (
	toolEvaluatePatient = "evaluate_patient"
	toolEvaluateBatch   = "evaluate_batch"
	toolPatientAlerts   = "get_patient_alerts"
	toolExportAlerts    = "export_alerts"
)

// EvaluatePatientParams defines parameters for the evaluate_patient tool.
// The record uses the clinical export format and is decoded by the server.
type EvaluatePatientParams struct {
	Patient map[string]any `json:"patient" jsonschema:"patient record with patientId, uacr_history and an optional jardiance block"`
}

// EvaluateBatchParams defines parameters for the evaluate_batch tool.
type EvaluateBatchParams struct {
	Patients []map[string]any `json:"patients" jsonschema:"patient records in the clinical export format"`
}

// PatientAlertsParams defines parameters for the get_patient_alerts tool.
type PatientAlertsParams struct {
	PatientID string `json:"patient_id" jsonschema:"patient identifier"`
}

// ExportAlertsParams defines parameters for the export_alerts tool.
type ExportAlertsParams struct{}

func (s *Server) handleEvaluatePatient(ctx context.Context, _ *mcp.CallToolRequest, params EvaluatePatientParams) (*mcp.CallToolResult, any, error) {
	log := s.logger.WithField("tool", toolEvaluatePatient)

	raw, err := json.Marshal(params.Patient)
	if err != nil {
		return toolError("patient record could not be encoded: %v", err), nil, nil
	}
	patient, err := ingest.DecodePatient(raw)
	if err != nil {
		return toolError("invalid patient record: %v", err), nil, nil
	}
	log = log.WithField("patient_id", patient.ID)

	alert, cached, err := s.evaluator.Evaluate(ctx, &patient)
	switch {
	case err != nil && domain.IsSkippable(err):
		log.WithField("reason", err.Error()).Info("Patient skipped")
		return textResult(fmt.Sprintf("Patient %s skipped: %v", patient.ID, err)), nil, nil
	case err != nil:
		log.WithError(err).Warn("Patient evaluation failed")
		return toolError("evaluation failed: %v", err), nil, nil
	case alert == nil:
		return textResult(fmt.Sprintf("Patient %s: uACR trend is not worsening; no alert raised.", patient.ID)), nil, nil
	}

	if err := s.alerts.Save(ctx, alert); err != nil {
		log.WithError(err).Error("Failed to store alert")
	}
	log.WithFields(logrus.Fields{
		"alert_id": alert.ID,
		"severity": alert.Severity,
		"cached":   cached,
	}).Info("Alert generated")

	var buf bytes.Buffer
	if err := report.WriteAlert(&buf, alert); err != nil {
		return nil, nil, fmt.Errorf("failed to render alert: %w", err)
	}
	return jsonAndText(buf.String(), alert)
}

func (s *Server) handleEvaluateBatch(ctx context.Context, _ *mcp.CallToolRequest, params EvaluateBatchParams) (*mcp.CallToolResult, any, error) {
	doc, err := json.Marshal(map[string]any{"patients": params.Patients})
	if err != nil {
		return toolError("patient records could not be encoded: %v", err), nil, nil
	}
	decoded, err := ingest.Decode(bytes.NewReader(doc))
	if err != nil {
		return toolError("invalid patient document: %v", err), nil, nil
	}

	result, err := s.evaluator.Monitor().ProcessBatch(ctx, decoded.Patients)
	if err != nil {
		return toolError("batch evaluation did not complete: %v", err), nil, nil
	}
	result.MergeFailures(decoded.Failures)

	if err := s.alerts.SaveAll(ctx, result.Alerts); err != nil {
		s.logger.WithFields(logrus.Fields{
			"tool":   toolEvaluateBatch,
			"run_id": result.RunID.String(),
		}).WithError(err).Error("Failed to store batch alerts")
	}
	if s.runs != nil {
		if err := s.runs.Record(ctx, result); err != nil {
			s.logger.WithFields(logrus.Fields{
				"tool":   toolEvaluateBatch,
				"run_id": result.RunID.String(),
			}).WithError(err).Error("Failed to record batch run")
		}
	}

	var buf bytes.Buffer
	if err := report.WriteBatch(&buf, result); err != nil {
		return nil, nil, fmt.Errorf("failed to render batch: %w", err)
	}
	return jsonAndText(buf.String(), result.Stats)
}

func (s *Server) handlePatientAlerts(ctx context.Context, _ *mcp.CallToolRequest, params PatientAlertsParams) (*mcp.CallToolResult, any, error) {
	patientID := strings.TrimSpace(params.PatientID)
	if patientID == "" {
		return toolError("patient_id is required"), nil, nil
	}

	alerts, err := s.alerts.ListByPatient(ctx, patientID)
	if err != nil {
		return toolError("failed to list alerts: %v", err), nil, nil
	}
	if len(alerts) == 0 {
		return textResult(fmt.Sprintf("No stored alerts for patient %s.", patientID)), nil, nil
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%d stored alert(s) for patient %s\n", len(alerts), patientID)
	for _, alert := range alerts {
		if err := report.WriteAlert(&buf, alert); err != nil {
			return nil, nil, fmt.Errorf("failed to render alert: %w", err)
		}
	}
	return textResult(buf.String()), nil, nil
}

func (s *Server) handleExportAlerts(ctx context.Context, _ *mcp.CallToolRequest, _ ExportAlertsParams) (*mcp.CallToolResult, any, error) {
	path := filepath.Join(s.exportDir, fmt.Sprintf("uacr_alerts_%s.json", time.Now().UTC().Format("20060102_150405")))

	f, err := s.createFile(path)
	if err != nil {
		return toolError("failed to create export file: %v", err), nil, nil
	}

	if err := s.alerts.ExportJSON(ctx, f); err != nil {
		f.Close()
		os.Remove(path)
		return toolError("export failed: %v", err), nil, nil
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return toolError("export failed: %v", err), nil, nil
	}

	s.logger.WithFields(logrus.Fields{"tool": toolExportAlerts, "path": path}).Info("Alerts exported")
	return textResult("Alerts exported to " + path), nil, nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func toolError(format string, args ...any) *mcp.CallToolResult {
	result := textResult(fmt.Sprintf(format, args...))
	result.IsError = true
	return result
}

// jsonAndText returns the console rendering followed by the JSON form.
func jsonAndText(text string, v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
			&mcp.TextContent{Text: string(data)},
		},
	}, nil, nil
}
