package service

import (
	"math"

	"github.com/sirupsen/logrus"

	"github.com/uacr-monitor/internal/domain"
)

// Adherence thresholds. MPR >= 80% with no more than a week without supply is
// the clinical standard for adherence.
const (
	adherentMPRThreshold   = 80.0
	maxAdherentGapDays     = 7
	mediumAdherenceMPR     = 60.0
	recentWindowShortDays  = 30
	recentWindowLongDays   = 90
	defaultMedicationLabel = "Jardiance (empagliflozin)"
)

// AdherenceCalculator derives MPR/PDC adherence figures from refill history.
type AdherenceCalculator struct {
	logger *logrus.Logger
}

// NewAdherenceCalculator creates a new adherence calculator
func NewAdherenceCalculator(logger *logrus.Logger) *AdherenceCalculator {
	return &AdherenceCalculator{logger: logger}
}

// CalculateMPR returns the medication possession ratio as a percentage,
// capped at 100. No refills or a non-positive period yield 0.
func CalculateMPR(refillCount, daysSupply, periodDays int) float64 {
	if refillCount <= 0 || daysSupply <= 0 || periodDays <= 0 {
		return 0
	}
	mpr := float64(refillCount) * float64(daysSupply) / float64(periodDays) * 100
	return clampPercent(mpr)
}

// CalculatePDC returns the proportion of days covered over [start, end] as a
// percentage, capped at 100. Each fill covers [refill, refill+daysSupply);
// covered days are collected in a set so overlapping fills count once.
func CalculatePDC(refillDates []domain.Date, daysSupply int, start, end domain.Date) float64 {
	if len(refillDates) == 0 || daysSupply <= 0 {
		return 0
	}
	periodDays := end.DaysSince(start)
	if periodDays <= 0 {
		return 0
	}
	daysSupply = min(daysSupply, domain.MaxDaysSupply)

	covered := make(map[domain.Date]struct{}, periodDays+1)
	for _, refill := range refillDates {
		for i := 0; i < daysSupply; i++ {
			day := refill.AddDays(i)
			if day.Before(start) {
				continue
			}
			if day.After(end) {
				break
			}
			covered[day] = struct{}{}
		}
	}

	pdc := float64(len(covered)) / float64(periodDays) * 100
	return math.Min(pdc, 100)
}

// ClassifyAdherence maps an MPR percentage to an adherence label.
func ClassifyAdherence(mpr float64) domain.AdherenceCategory {
	switch {
	case mpr >= adherentMPRThreshold:
		return domain.ADHERENCE_HIGH
	case mpr >= mediumAdherenceMPR:
		return domain.ADHERENCE_MEDIUM
	default:
		return domain.ADHERENCE_LOW
	}
}

// IsAdherent applies the combined MPR and refill-gap rule.
func IsAdherent(mpr float64, gapDays int) bool {
	return mpr >= adherentMPRThreshold && gapDays <= maxAdherentGapDays
}

// Assess computes the adherence assessment as of the given evaluation date.
// When the record holds no refill dates, the pharmacy-reported figures are
// used instead.
func (c *AdherenceCalculator) Assess(med *domain.MedicationRecord, asOf domain.Date) *domain.AdherenceAssessment {
	if med == nil || !med.Prescribed {
		return &domain.AdherenceAssessment{
			OnTreatment:   false,
			Barriers:      []string{},
			Interventions: []string{},
		}
	}

	name := med.Name
	if name == "" {
		name = defaultMedicationLabel
	}

	assessment := &domain.AdherenceAssessment{
		OnTreatment:   true,
		Medication:    name,
		Barriers:      copyStrings(med.Barriers),
		Interventions: copyStrings(med.Interventions),
	}

	refills := med.Refills
	if len(refills.Dates) == 0 {
		assessment.MPR = clampPercent(med.Reported.MPR)
		assessment.PDC = clampPercent(med.Reported.PDC)
		assessment.Last30Days = clampPercent(med.Reported.Last30Days)
		assessment.Last90Days = clampPercent(med.Reported.Last90Days)
		assessment.RefillGapDays = max(refills.GapDays, 0)
		assessment.Source = domain.SOURCE_REPORTED
	} else {
		supply := min(refills.DaysSupply, domain.MaxDaysSupply)
		start := observationStart(med)
		period := asOf.DaysSince(start)
		last := latestDate(refills.Dates)

		assessment.MPR = CalculateMPR(len(refills.Dates), supply, period)
		assessment.PDC = CalculatePDC(refills.Dates, supply, start, asOf)
		assessment.Last30Days = CalculatePDC(refills.Dates, supply, asOf.AddDays(-recentWindowShortDays), asOf)
		assessment.Last90Days = CalculatePDC(refills.Dates, supply, asOf.AddDays(-recentWindowLongDays), asOf)
		assessment.RefillGapDays = max(asOf.DaysSince(last.AddDays(supply)), 0)
		assessment.Source = domain.SOURCE_COMPUTED
	}

	assessment.Category = ClassifyAdherence(assessment.MPR)
	assessment.IsAdherent = IsAdherent(assessment.MPR, assessment.RefillGapDays)

	c.logger.WithFields(logrus.Fields{
		"medication":  name,
		"mpr":         math.Round(assessment.MPR*10) / 10,
		"pdc":         math.Round(assessment.PDC*10) / 10,
		"gap_days":    assessment.RefillGapDays,
		"is_adherent": assessment.IsAdherent,
		"source":      assessment.Source,
	}).Debug("Assessed medication adherence")

	return assessment
}

// observationStart is the prescription date, or the first fill when the
// prescription date is unknown.
func observationStart(med *domain.MedicationRecord) domain.Date {
	first := earliestDate(med.Refills.Dates)
	if med.PrescribedDate != nil && !med.PrescribedDate.IsZero() && !med.PrescribedDate.After(first) {
		return *med.PrescribedDate
	}
	return first
}

func earliestDate(dates []domain.Date) domain.Date {
	earliest := dates[0]
	for _, d := range dates[1:] {
		if d.Before(earliest) {
			earliest = d
		}
	}
	return earliest
}

func latestDate(dates []domain.Date) domain.Date {
	latest := dates[0]
	for _, d := range dates[1:] {
		if d.After(latest) {
			latest = d
		}
	}
	return latest
}

func clampPercent(v float64) float64 {
	return math.Max(0, math.Min(v, 100))
}

func copyStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
