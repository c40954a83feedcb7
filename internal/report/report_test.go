package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uacr-monitor/internal/domain"
	"github.com/uacr-monitor/internal/service"
)

var created = time.Date(2025, time.June, 30, 14, 5, 9, 0, time.UTC)

func treatedAlert() *domain.ClinicalAlert {
	return &domain.ClinicalAlert{
		ID:          "ALERT-TEST001-20250630140509",
		Severity:    domain.HIGH,
		PatientID:   "TEST001",
		PatientName: "Maria Rodriguez",
		Type:        domain.WORSENING_ON_TREATMENT,
		Message:     "uACR WORSENING WITH POOR ADHERENCE\nuACR increased 52.0%",
		Trend: domain.TrendAnalysis{
			PatientID:        "TEST001",
			CurrentValue:     380,
			CurrentDate:      domain.NewDate(2025, time.June, 15),
			PreviousValue:    250,
			PreviousDate:     domain.NewDate(2025, time.March, 15),
			PercentChange:    52,
			CurrentCategory:  domain.MACROALBUMINURIA,
			PreviousCategory: domain.MICROALBUMINURIA,
			Level:            domain.CATEGORY_PROGRESSION,
			IsWorsening:      true,
			DaysBetween:      92,
		},
		Adherence: &domain.AdherenceAssessment{
			OnTreatment:   true,
			Medication:    "Jardiance (empagliflozin) 10mg",
			MPR:           66.67,
			PDC:           60.5,
			Category:      domain.ADHERENCE_LOW,
			RefillGapDays: 45,
			Barriers:      []string{"Cost concerns"},
		},
		Actions: []domain.Action{
			{Kind: domain.ActionAddressAdherence, Priority: domain.PriorityUrgent, Text: "PRIORITY: Address medication adherence"},
			{Kind: domain.ActionScheduleNextCheck, Priority: domain.PriorityRoutine, Text: "Schedule next uACR check in 2-4 weeks"},
		},
		Rationale: domain.Fragments{
			{Kind: domain.FragmentWorsening, Text: "uACR shows category progression."},
			{Kind: domain.FragmentNonAdherent, Text: "Suboptimal adherence (MPR 66.7%)."},
		},
		CreatedAt: created,
	}
}

func untreatedAlert() *domain.ClinicalAlert {
	rec := domain.STRONGLY_RECOMMEND
	a := treatedAlert()
	a.ID = "ALERT-TEST003-20250630140509"
	a.PatientID = "TEST003"
	a.PatientName = "Linda Thompson"
	a.Type = domain.WORSENING_UNTREATED
	a.Severity = domain.CRITICAL
	// Untreated assessments carry no metrics and must not be exported.
	a.Adherence = &domain.AdherenceAssessment{OnTreatment: false}
	a.Recommendation = &rec
	return a
}

func TestSeverityIcon(t *testing.T) {
	assert.Equal(t, "🔴", SeverityIcon(domain.CRITICAL))
	assert.Equal(t, "🟢", SeverityIcon(domain.LOW))
	assert.Equal(t, "⚪", SeverityIcon(domain.Severity("UNKNOWN")))
}

func TestWriteAlert(t *testing.T) {
	t.Run("treated", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteAlert(&buf, treatedAlert()))
		out := buf.String()

		assert.Contains(t, out, "🟠 HIGH ALERT: ALERT-TEST001-20250630140509")
		assert.Contains(t, out, "Patient: Maria Rodriguez (ID: TEST001)")
		assert.Contains(t, out, "Previous: 250 mg/g (2025-03-15)")
		assert.Contains(t, out, "Change:   +52.0% over 92 days")
		assert.Contains(t, out, "Category: MICROALBUMINURIA → MACROALBUMINURIA")
		assert.Contains(t, out, "MPR: 66.7%")
		assert.Contains(t, out, "Status: ❌ NON-ADHERENT")
		assert.Contains(t, out, "Barriers: Cost concerns")
		assert.Contains(t, out, "   1. PRIORITY: Address medication adherence")
		assert.Contains(t, out, "   2. Schedule next uACR check in 2-4 weeks")
		assert.Contains(t, out, "uACR shows category progression. Suboptimal adherence (MPR 66.7%).")
	})

	t.Run("untreated", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteAlert(&buf, untreatedAlert()))
		out := buf.String()

		assert.Contains(t, out, "TREATMENT STATUS: Not currently on CKD-specific medication")
		assert.Contains(t, out, "Recommendation: STRONGLY_RECOMMEND")
		assert.NotContains(t, out, "ADHERENCE ANALYSIS")
	})
}

type failingWriter struct{ n int }

func (f *failingWriter) Write(p []byte) (int, error) {
	if f.n == 0 {
		return 0, errors.New("disk full")
	}
	f.n--
	return len(p), nil
}

func TestWriteAlert_PropagatesWriteError(t *testing.T) {
	err := WriteAlert(&failingWriter{n: 3}, treatedAlert())
	assert.EqualError(t, err, "disk full")
}

func TestWriteBatch(t *testing.T) {
	result := &service.BatchResult{
		EvaluationDate: domain.NewDate(2025, time.June, 30),
		Alerts:         []*domain.ClinicalAlert{treatedAlert(), untreatedAlert()},
		Skipped:        []service.SkippedPatient{{PatientID: "P9", Reason: "insufficient uACR history"}},
		Failures: []*domain.EvaluationError{
			domain.NewEvaluationError("BAD001", "uacr_history[1].date", &domain.DateParseError{Value: "03/15/2025", Reason: "expected YYYY-MM-DD"}),
		},
		Stats: service.BatchStats{
			TotalPatients:       4,
			Evaluated:           2,
			Skipped:             1,
			Failed:              1,
			AlertsGenerated:     2,
			BySeverity:          map[domain.Severity]int{domain.CRITICAL: 1, domain.HIGH: 1},
			OnTreatment:         1,
			NotOnTreatment:      1,
			NonAdherent:         1,
			NonAdherentFraction: 1,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteBatch(&buf, result))
	out := buf.String()

	assert.Contains(t, out, "adherence measured to 2025-06-30")
	assert.Equal(t, 2, strings.Count(out, " ALERT: "))
	assert.Contains(t, out, "SUMMARY: 2 alerts generated")
	assert.Contains(t, out, "Patients: 4 total, 2 evaluated, 1 skipped, 1 failed")
	assert.Contains(t, out, "🔴 CRITICAL: 1")
	assert.NotContains(t, out, "MODERATE: 0")
	assert.Contains(t, out, "Non-adherent: 1 (100% of treated)")
	assert.Contains(t, out, "P9: insufficient uACR history")
	assert.Contains(t, out, "BAD001")
	assert.Contains(t, out, "uacr_history[1].date")

	// Alerts precede the summary.
	assert.Less(t, strings.Index(out, "ALERT-TEST003"), strings.Index(out, "SUMMARY:"))
}

func TestWriteSummary_NoAlerts(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSummary(&buf, &service.BatchResult{}))

	assert.Contains(t, buf.String(), "SUMMARY: 0 alerts generated")
	assert.NotContains(t, buf.String(), "Alert breakdown")
}

func TestExportAlerts(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ExportAlerts(&buf, []*domain.ClinicalAlert{treatedAlert(), untreatedAlert()}, created))

	var doc map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))

	meta := doc["metadata"].(map[string]any)
	assert.EqualValues(t, 2, meta["total_alerts"])
	assert.Equal(t, SystemVersion, meta["system_version"])
	assert.Equal(t, "2025-06-30T14:05:09Z", meta["generated_timestamp"])

	alerts := doc["alerts"].([]any)
	require.Len(t, alerts, 2)

	treated := alerts[0].(map[string]any)
	assert.Equal(t, "ALERT-TEST001-20250630140509", treated["alert_id"])
	assert.Equal(t, "UACR_WORSENING_ON_TREATMENT", treated["alert_type"])
	assert.Contains(t, treated, "adherence_analysis")
	assert.NotContains(t, treated, "treatment_recommendation")
	assert.Equal(t, []any{"PRIORITY: Address medication adherence", "Schedule next uACR check in 2-4 weeks"},
		treated["recommended_actions"])
	assert.Equal(t, "uACR shows category progression. Suboptimal adherence (MPR 66.7%).", treated["clinical_rationale"])

	trend := treated["uacr_analysis"].(map[string]any)
	assert.Equal(t, "2025-06-15", trend["date_current"])
	assert.Equal(t, "CATEGORY_PROGRESSION", trend["worsening_level"])

	untreated := alerts[1].(map[string]any)
	assert.NotContains(t, untreated, "adherence_analysis")
	assert.Equal(t, "STRONGLY_RECOMMEND", untreated["treatment_recommendation"])
}

func TestNewExportDocument_Empty(t *testing.T) {
	doc := NewExportDocument(nil, created)

	assert.Equal(t, 0, doc.Metadata.TotalAlerts)
	assert.NotNil(t, doc.Alerts)

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, doc))
	assert.Contains(t, buf.String(), `"alerts": []`)
}
