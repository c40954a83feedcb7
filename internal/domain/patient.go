package domain

import (
	"fmt"
	"strings"
)

// Comorbidity labels recognised by the eligibility rules. Matching is
// case-insensitive.
const (
	ComorbidityDiabetes     = "Diabetes"
	ComorbidityHypertension = "Hypertension"
	ComorbidityHeartFailure = "Heart Failure"
)

// Reading is a single dated uACR measurement in mg/g.
type Reading struct {
	Date  Date    `json:"date"`
	Value float64 `json:"value"`
}

// PatientSnapshot is the longitudinal record evaluated by the engine.
type PatientSnapshot struct {
	ID            string            `json:"patient_id"`
	Name          string            `json:"name"`
	Age           int               `json:"age"`
	Gender        string            `json:"gender"`
	EGFR          float64           `json:"egfr"`
	CKDStage      int               `json:"ckd_stage"`
	Comorbidities []string          `json:"comorbidities"`
	SmokingStatus string            `json:"smoking_status"`
	UACRHistory   []Reading         `json:"uacr_history"`
	Medication    *MedicationRecord `json:"medication,omitempty"`
}

// MedicationRecord describes the patient's SGLT2-inhibitor prescription.
type MedicationRecord struct {
	Prescribed      bool             `json:"prescribed"`
	Name            string           `json:"medication,omitempty"`
	PrescribedDate  *Date            `json:"prescribed_date,omitempty"`
	CurrentlyTaking bool             `json:"currently_taking"`
	Reported        AdherenceMetrics `json:"adherence"`
	Refills         RefillBlock      `json:"refills"`
	Barriers        []string         `json:"barriers"`
	Interventions   []string         `json:"interventions"`
	AdverseEvents   []string         `json:"adverse_events"`
}

// AdherenceMetrics are the figures reported by the pharmacy feed.
type AdherenceMetrics struct {
	MPR        float64 `json:"mpr"`
	PDC        float64 `json:"pdc"`
	Category   string  `json:"category,omitempty"`
	Last30Days float64 `json:"last_30_days"`
	Last90Days float64 `json:"last_90_days"`
	Trend      string  `json:"trend,omitempty"`
}

// RefillBlock holds the dispensing history. DaysSupply is assumed constant
// across fills.
type RefillBlock struct {
	Count           int    `json:"count"`
	Dates           []Date `json:"dates"`
	DaysSupply      int    `json:"days_supply"`
	LastRefill      *Date  `json:"last_refill,omitempty"`
	NextRefillDue   *Date  `json:"next_refill_due,omitempty"`
	DaysUntilRefill int    `json:"days_until_refill"`
	GapDays         int    `json:"refill_gap_days"`
}

// HasComorbidity reports whether label is present, ignoring case.
func (p *PatientSnapshot) HasComorbidity(label string) bool {
	for _, c := range p.Comorbidities {
		if strings.EqualFold(strings.TrimSpace(c), label) {
			return true
		}
	}
	return false
}

// IsOnTreatment reports whether the patient has an active prescription.
func (p *PatientSnapshot) IsOnTreatment() bool {
	return p.Medication != nil && p.Medication.Prescribed
}

// MaxDaysSupply is the longest single dispense accepted.
const MaxDaysSupply = 365

// Validate checks the snapshot for values the engine cannot reason about.
func (p *PatientSnapshot) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return NewValidationError("patient_id", "patient identifier is required", p.ID)
	}
	if p.CKDStage < 0 || p.CKDStage > 5 {
		return NewValidationError("ckd_stage", "CKD stage must be between 0 and 5", p.CKDStage)
	}
	if p.EGFR < 0 {
		return NewValidationError("egfr", "eGFR cannot be negative", p.EGFR)
	}
	for i, r := range p.UACRHistory {
		if r.Value < 0 {
			return NewValidationError(readingField(i, "value"), "uACR cannot be negative", r.Value)
		}
		if r.Date.IsZero() {
			return NewValidationError(readingField(i, "date"), "reading date is required", nil)
		}
	}
	if p.Medication != nil && p.Medication.Prescribed {
		supply := p.Medication.Refills.DaysSupply
		if supply < 0 {
			return NewValidationError("medication.refills.days_supply", "days of supply cannot be negative", supply)
		}
		if supply > MaxDaysSupply {
			return NewValidationError("medication.refills.days_supply", fmt.Sprintf("days of supply cannot exceed %d", MaxDaysSupply), supply)
		}
	}
	return nil
}

func readingField(i int, name string) string {
	return fmt.Sprintf("uacr_history[%d].%s", i, name)
}
