package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSnapshot() PatientSnapshot {
	return PatientSnapshot{
		ID:            "P001",
		Name:          "Test Patient",
		EGFR:          48,
		CKDStage:      3,
		Comorbidities: []string{"Diabetes", " hypertension "},
		UACRHistory: []Reading{
			{Date: NewDate(2025, time.January, 1), Value: 180},
			{Date: NewDate(2025, time.June, 1), Value: 320},
		},
	}
}

func TestPatientSnapshot_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(p *PatientSnapshot)
		wantField string
	}{
		{"valid", func(p *PatientSnapshot) {}, ""},
		{"missing id", func(p *PatientSnapshot) { p.ID = " " }, "patient_id"},
		{"stage too high", func(p *PatientSnapshot) { p.CKDStage = 6 }, "ckd_stage"},
		{"negative egfr", func(p *PatientSnapshot) { p.EGFR = -1 }, "egfr"},
		{"negative reading", func(p *PatientSnapshot) { p.UACRHistory[1].Value = -5 }, "uacr_history[1].value"},
		{"undated reading", func(p *PatientSnapshot) { p.UACRHistory[0].Date = Date{} }, "uacr_history[0].date"},
		{"negative supply", func(p *PatientSnapshot) {
			p.Medication = &MedicationRecord{Prescribed: true, Refills: RefillBlock{DaysSupply: -30}}
		}, "medication.refills.days_supply"},
		{"supply longer than a year", func(p *PatientSnapshot) {
			p.Medication = &MedicationRecord{Prescribed: true, Refills: RefillBlock{DaysSupply: MaxDaysSupply + 1}}
		}, "medication.refills.days_supply"},
		{"year-long supply", func(p *PatientSnapshot) {
			p.Medication = &MedicationRecord{Prescribed: true, Refills: RefillBlock{DaysSupply: MaxDaysSupply}}
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validSnapshot()
			tt.mutate(&p)

			err := p.Validate()
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.wantField, verr.Field)
		})
	}
}

func TestPatientSnapshot_HasComorbidity(t *testing.T) {
	p := validSnapshot()

	assert.True(t, p.HasComorbidity(ComorbidityDiabetes))
	assert.True(t, p.HasComorbidity(ComorbidityHypertension))
	assert.False(t, p.HasComorbidity(ComorbidityHeartFailure))
}

func TestPatientSnapshot_IsOnTreatment(t *testing.T) {
	p := validSnapshot()
	assert.False(t, p.IsOnTreatment())

	p.Medication = &MedicationRecord{Prescribed: false}
	assert.False(t, p.IsOnTreatment())

	p.Medication.Prescribed = true
	assert.True(t, p.IsOnTreatment())
}
