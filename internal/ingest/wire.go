// Package ingest decodes patient snapshot documents into domain records.
//
// The wire format keeps dates as strings so that a malformed date can be
// reported against the patient and field it came from instead of failing the
// whole document.
package ingest

import (
	"fmt"

	"github.com/uacr-monitor/internal/domain"
)

// Document is the top-level patient export: {"patients": [...]}.
type Document struct {
	Patients []Patient `json:"patients"`
}

// Patient is one patient record as exported by the clinical data pipeline.
type Patient struct {
	PatientID     string        `json:"patientId" binding:"required"`
	Name          string        `json:"name"`
	Age           int           `json:"age"`
	Gender        string        `json:"gender"`
	EGFR          float64       `json:"eGFR"`
	CKDStage      int           `json:"ckdStage"`
	UACR          float64       `json:"uACR,omitempty"`
	Comorbidities []string      `json:"comorbidities"`
	SmokingStatus string        `json:"smokingStatus,omitempty"`
	UACRHistory   []Reading     `json:"uacr_history"`
	Jardiance     *Prescription `json:"jardiance,omitempty"`
}

// Reading is a dated uACR measurement.
type Reading struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// Prescription is the SGLT2-inhibitor block of a patient record.
type Prescription struct {
	Prescribed      bool      `json:"prescribed"`
	Medication      string    `json:"medication,omitempty"`
	PrescribedDate  string    `json:"prescribed_date,omitempty"`
	CurrentlyTaking bool      `json:"currently_taking"`
	Adherence       Adherence `json:"adherence"`
	Refills         Refills   `json:"refills"`
	Barriers        []string  `json:"barriers,omitempty"`
	Interventions   []string  `json:"interventions,omitempty"`
	AdverseEvents   []string  `json:"adverse_events,omitempty"`
}

// Adherence holds pharmacy-reported adherence figures.
type Adherence struct {
	MPR        float64 `json:"MPR"`
	PDC        float64 `json:"PDC"`
	Category   string  `json:"category,omitempty"`
	Last30Days float64 `json:"last_30_days"`
	Last90Days float64 `json:"last_90_days"`
	Trend      string  `json:"trend,omitempty"`
}

// Refills holds the refill history.
type Refills struct {
	Count           int      `json:"count"`
	Dates           []string `json:"dates"`
	DaysSupply      int      `json:"days_supply"`
	LastRefill      string   `json:"last_refill,omitempty"`
	NextRefillDue   string   `json:"next_refill_due,omitempty"`
	DaysUntilRefill int      `json:"days_until_refill"`
	GapDays         int      `json:"refill_gap_days"`
}

// Snapshot converts the wire record into a domain snapshot. Date failures
// are returned as *domain.EvaluationError naming the offending field.
func (p *Patient) Snapshot() (domain.PatientSnapshot, error) {
	snap := domain.PatientSnapshot{
		ID:            p.PatientID,
		Name:          p.Name,
		Age:           p.Age,
		Gender:        p.Gender,
		EGFR:          p.EGFR,
		CKDStage:      p.CKDStage,
		Comorbidities: p.Comorbidities,
		SmokingStatus: p.SmokingStatus,
		UACRHistory:   make([]domain.Reading, 0, len(p.UACRHistory)),
	}

	for i, r := range p.UACRHistory {
		d, err := domain.ParseDate(r.Date)
		if err != nil {
			return domain.PatientSnapshot{}, domain.NewEvaluationError(p.PatientID, fmt.Sprintf("uacr_history[%d].date", i), err)
		}
		snap.UACRHistory = append(snap.UACRHistory, domain.Reading{Date: d, Value: r.Value})
	}

	if p.Jardiance != nil {
		med, err := p.Jardiance.record(p.PatientID)
		if err != nil {
			return domain.PatientSnapshot{}, err
		}
		snap.Medication = med
	}

	return snap, nil
}

func (rx *Prescription) record(patientID string) (*domain.MedicationRecord, error) {
	med := &domain.MedicationRecord{
		Prescribed:      rx.Prescribed,
		Name:            rx.Medication,
		CurrentlyTaking: rx.CurrentlyTaking,
		Reported: domain.AdherenceMetrics{
			MPR:        rx.Adherence.MPR,
			PDC:        rx.Adherence.PDC,
			Category:   rx.Adherence.Category,
			Last30Days: rx.Adherence.Last30Days,
			Last90Days: rx.Adherence.Last90Days,
			Trend:      rx.Adherence.Trend,
		},
		Refills: domain.RefillBlock{
			Count:           rx.Refills.Count,
			Dates:           make([]domain.Date, 0, len(rx.Refills.Dates)),
			DaysSupply:      rx.Refills.DaysSupply,
			DaysUntilRefill: rx.Refills.DaysUntilRefill,
			GapDays:         rx.Refills.GapDays,
		},
		Barriers:      rx.Barriers,
		Interventions: rx.Interventions,
		AdverseEvents: rx.AdverseEvents,
	}

	var err error
	if med.PrescribedDate, err = optionalDate(patientID, "jardiance.prescribed_date", rx.PrescribedDate); err != nil {
		return nil, err
	}
	if med.Refills.LastRefill, err = optionalDate(patientID, "jardiance.refills.last_refill", rx.Refills.LastRefill); err != nil {
		return nil, err
	}
	if med.Refills.NextRefillDue, err = optionalDate(patientID, "jardiance.refills.next_refill_due", rx.Refills.NextRefillDue); err != nil {
		return nil, err
	}
	for i, raw := range rx.Refills.Dates {
		d, err := domain.ParseDate(raw)
		if err != nil {
			return nil, domain.NewEvaluationError(patientID, fmt.Sprintf("jardiance.refills.dates[%d]", i), err)
		}
		med.Refills.Dates = append(med.Refills.Dates, d)
	}

	return med, nil
}

func optionalDate(patientID, field, raw string) (*domain.Date, error) {
	if raw == "" {
		return nil, nil
	}
	d, err := domain.ParseDate(raw)
	if err != nil {
		return nil, domain.NewEvaluationError(patientID, field, err)
	}
	return &d, nil
}

// FromSnapshot converts a domain snapshot back to its wire form.
func FromSnapshot(s *domain.PatientSnapshot) Patient {
	p := Patient{
		PatientID:     s.ID,
		Name:          s.Name,
		Age:           s.Age,
		Gender:        s.Gender,
		EGFR:          s.EGFR,
		CKDStage:      s.CKDStage,
		Comorbidities: s.Comorbidities,
		SmokingStatus: s.SmokingStatus,
		UACRHistory:   make([]Reading, 0, len(s.UACRHistory)),
	}
	var latest domain.Date
	for _, r := range s.UACRHistory {
		p.UACRHistory = append(p.UACRHistory, Reading{Date: r.Date.String(), Value: r.Value})
		if !r.Date.Before(latest) {
			latest, p.UACR = r.Date, r.Value
		}
	}

	if m := s.Medication; m != nil {
		rx := &Prescription{
			Prescribed:      m.Prescribed,
			Medication:      m.Name,
			PrescribedDate:  dateString(m.PrescribedDate),
			CurrentlyTaking: m.CurrentlyTaking,
			Adherence: Adherence{
				MPR:        m.Reported.MPR,
				PDC:        m.Reported.PDC,
				Category:   m.Reported.Category,
				Last30Days: m.Reported.Last30Days,
				Last90Days: m.Reported.Last90Days,
				Trend:      m.Reported.Trend,
			},
			Refills: Refills{
				Count:           m.Refills.Count,
				DaysSupply:      m.Refills.DaysSupply,
				LastRefill:      dateString(m.Refills.LastRefill),
				NextRefillDue:   dateString(m.Refills.NextRefillDue),
				DaysUntilRefill: m.Refills.DaysUntilRefill,
				GapDays:         m.Refills.GapDays,
			},
			Barriers:      m.Barriers,
			Interventions: m.Interventions,
			AdverseEvents: m.AdverseEvents,
		}
		for _, d := range m.Refills.Dates {
			rx.Refills.Dates = append(rx.Refills.Dates, d.String())
		}
		p.Jardiance = rx
	}
	return p
}

func dateString(d *domain.Date) string {
	if d == nil {
		return ""
	}
	return d.String()
}
