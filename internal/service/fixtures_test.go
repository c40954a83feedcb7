package service

import (
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/uacr-monitor/internal/domain"
)

var (
	testAsOf  = domain.NewDate(2025, time.June, 30)
	testClock = func() time.Time { return time.Date(2025, time.June, 30, 14, 5, 9, 0, time.UTC) }
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.SetLevel(logrus.WarnLevel)
	return logger
}

func daysAgo(n int) domain.Date {
	return testAsOf.AddDays(-n)
}

func datePtr(d domain.Date) *domain.Date {
	return &d
}

func history(pairs ...float64) []domain.Reading {
	// pairs are (days ago, value)
	readings := make([]domain.Reading, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		readings = append(readings, domain.Reading{Date: daysAgo(int(pairs[i])), Value: pairs[i+1]})
	}
	return readings
}

func refillDates(days ...int) []domain.Date {
	dates := make([]domain.Date, 0, len(days))
	for _, d := range days {
		dates = append(dates, daysAgo(d))
	}
	return dates
}

// Poor adherence: uACR 220 -> 250 -> 380, refill gap of 45 days.
func scenarioPoorAdherence() domain.PatientSnapshot {
	return domain.PatientSnapshot{
		ID:            "TEST001",
		Name:          "John Anderson",
		Age:           62,
		Gender:        "M",
		EGFR:          45.2,
		CKDStage:      3,
		Comorbidities: []string{"Diabetes", "Hypertension"},
		UACRHistory:   history(0, 380, 90, 250, 180, 220),
		Medication: &domain.MedicationRecord{
			Prescribed:     true,
			Name:           "Jardiance (empagliflozin) 10mg",
			PrescribedDate: datePtr(daysAgo(270)),
			Reported:       domain.AdherenceMetrics{MPR: 65, PDC: 58, Category: "Medium"},
			Refills: domain.RefillBlock{
				Count:      2,
				Dates:      refillDates(270, 135),
				DaysSupply: 90,
				GapDays:    45,
			},
			Barriers: []string{"Forgetfulness", "Cost concerns"},
		},
	}
}

// Good adherence, band transition 195 -> 450.
func scenarioGoodAdherence() domain.PatientSnapshot {
	return domain.PatientSnapshot{
		ID:            "TEST002",
		Name:          "Mary Thompson",
		Age:           58,
		Gender:        "F",
		EGFR:          38.5,
		CKDStage:      3,
		Comorbidities: []string{"Diabetes", "Hypertension", "Heart Failure"},
		UACRHistory:   history(0, 450, 120, 195, 240, 180),
		Medication: &domain.MedicationRecord{
			Prescribed:      true,
			Name:            "Jardiance (empagliflozin) 10mg",
			PrescribedDate:  datePtr(daysAgo(300)),
			CurrentlyTaking: true,
			Reported:        domain.AdherenceMetrics{MPR: 94, PDC: 92, Category: "High"},
			Refills: domain.RefillBlock{
				Count:      4,
				Dates:      refillDates(300, 210, 118, 25),
				DaysSupply: 90,
			},
		},
	}
}

// Untreated diabetic stage 3, eligible.
func scenarioUntreatedEligible() domain.PatientSnapshot {
	return domain.PatientSnapshot{
		ID:            "TEST003",
		Name:          "Robert Martinez",
		Age:           67,
		Gender:        "M",
		EGFR:          48.0,
		CKDStage:      3,
		Comorbidities: []string{"Diabetes", "Hypertension"},
		UACRHistory:   history(0, 320, 180, 180, 360, 155),
		Medication:    &domain.MedicationRecord{Prescribed: false},
	}
}

// Untreated non-diabetic stage 2, ineligible.
func scenarioUntreatedIneligible() domain.PatientSnapshot {
	return domain.PatientSnapshot{
		ID:            "TEST004",
		Name:          "Linda Park",
		Age:           52,
		Gender:        "F",
		EGFR:          78.0,
		CKDStage:      2,
		Comorbidities: []string{"Hypertension"},
		UACRHistory:   history(0, 95, 90, 50, 180, 42),
		Medication:    &domain.MedicationRecord{Prescribed: false},
	}
}

// Mild worsening with good adherence.
func scenarioMildAdherent() domain.PatientSnapshot {
	return domain.PatientSnapshot{
		ID:            "TEST005",
		Name:          "David Kim",
		Age:           71,
		Gender:        "M",
		EGFR:          42.0,
		CKDStage:      3,
		Comorbidities: []string{"Diabetes", "Hypertension"},
		UACRHistory:   history(0, 240, 120, 180, 240, 165),
		Medication: &domain.MedicationRecord{
			Prescribed:      true,
			Name:            "Jardiance (empagliflozin) 10mg",
			PrescribedDate:  datePtr(daysAgo(280)),
			CurrentlyTaking: true,
			Refills: domain.RefillBlock{
				Count:      3,
				Dates:      refillDates(280, 187, 92),
				DaysSupply: 90,
				GapDays:    2,
			},
		},
	}
}

// Category progression with a single stale refill.
func scenarioProgressionNonAdherent() domain.PatientSnapshot {
	return domain.PatientSnapshot{
		ID:            "TEST006",
		Name:          "Susan Rodriguez",
		Age:           55,
		Gender:        "F",
		EGFR:          35.0,
		CKDStage:      3,
		Comorbidities: []string{"Diabetes", "Hypertension"},
		UACRHistory:   history(0, 520, 90, 245, 180, 210),
		Medication: &domain.MedicationRecord{
			Prescribed:     true,
			Name:           "Jardiance (empagliflozin) 10mg",
			PrescribedDate: datePtr(daysAgo(200)),
			Refills: domain.RefillBlock{
				Count:      1,
				Dates:      refillDates(200),
				DaysSupply: 90,
				GapDays:    110,
			},
			Barriers:      []string{"Forgetfulness", "Side effects", "Cost concerns"},
			AdverseEvents: []string{"UTI", "Increased urination"},
		},
	}
}

func allScenarios() []domain.PatientSnapshot {
	return []domain.PatientSnapshot{
		scenarioPoorAdherence(),
		scenarioGoodAdherence(),
		scenarioUntreatedEligible(),
		scenarioUntreatedIneligible(),
		scenarioMildAdherent(),
		scenarioProgressionNonAdherent(),
	}
}

func newTestMonitor(opts ...MonitorOption) *MonitoringService {
	logger := testLogger()
	base := []MonitorOption{
		WithEvaluationDate(testAsOf),
		WithComposer(NewAlertComposer(logger, WithClock(testClock))),
	}
	return NewMonitoringService(logger, append(base, opts...)...)
}
