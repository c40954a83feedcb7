package store

import (
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/uacr-monitor/internal/domain"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

var baseTime = time.Date(2025, time.June, 30, 14, 0, 0, 0, time.UTC)

func sampleAlert(id, patientID string, offset time.Duration) *domain.ClinicalAlert {
	return &domain.ClinicalAlert{
		ID:          id,
		Severity:    domain.HIGH,
		PatientID:   patientID,
		PatientName: "Patient " + patientID,
		Type:        domain.WORSENING_ON_TREATMENT,
		Message:     "uACR WORSENING DESPITE GOOD ADHERENCE",
		Trend: domain.TrendAnalysis{
			PatientID:        patientID,
			CurrentValue:     280,
			CurrentDate:      domain.NewDate(2025, time.June, 20),
			PreviousValue:    180,
			PreviousDate:     domain.NewDate(2025, time.March, 20),
			PercentChange:    55.56,
			CurrentCategory:  domain.MICROALBUMINURIA,
			PreviousCategory: domain.MICROALBUMINURIA,
			Level:            domain.MODERATE_WORSENING,
			IsWorsening:      true,
			DaysBetween:      92,
		},
		Adherence: &domain.AdherenceAssessment{
			OnTreatment: true,
			Medication:  "Jardiance (empagliflozin) 10mg",
			MPR:         100,
			PDC:         98.67,
			Category:    domain.ADHERENCE_HIGH,
			IsAdherent:  true,
			Source:      domain.SOURCE_COMPUTED,
		},
		Actions: []domain.Action{
			{Kind: domain.ActionConfirmAdherence, Priority: domain.PriorityUrgent, Text: "Confirm adherence with patient"},
		},
		Rationale: domain.Fragments{{Kind: domain.FragmentAdherentResistance, Text: "Despite good adherence, uACR is rising."}},
		CreatedAt: baseTime.Add(offset),
	}
}

func alertJSON(t *testing.T, a *domain.ClinicalAlert) []byte {
	t.Helper()
	data, err := json.Marshal(a)
	require.NoError(t, err)
	return data
}
