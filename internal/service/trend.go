package service

import (
	"fmt"
	"math"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/uacr-monitor/internal/domain"
)

// Albuminuria band thresholds in mg/g.
const (
	microalbuminuriaThreshold = 30.0
	macroalbuminuriaThreshold = 300.0
)

// Worsening thresholds on percent change.
const (
	mildWorseningPercent     = 30.0
	moderateWorseningPercent = 50.0
	severeWorseningPercent   = 100.0
)

// TrendAnalyzer classifies the change between a patient's two most recent
// uACR readings.
type TrendAnalyzer struct {
	logger *logrus.Logger
}

// NewTrendAnalyzer creates a new trend analyzer
func NewTrendAnalyzer(logger *logrus.Logger) *TrendAnalyzer {
	return &TrendAnalyzer{logger: logger}
}

// CategorizeUACR returns the KDIGO albuminuria band for a value. 300 mg/g is
// still microalbuminuria.
func CategorizeUACR(value float64) domain.AlbuminuriaCategory {
	switch {
	case value < microalbuminuriaThreshold:
		return domain.NORMOALBUMINURIA
	case value <= macroalbuminuriaThreshold:
		return domain.MICROALBUMINURIA
	default:
		return domain.MACROALBUMINURIA
	}
}

// PercentChange returns (current-previous)/previous*100. A zero previous
// value yields ErrZeroBaseline.
func PercentChange(current, previous float64) (float64, error) {
	if previous == 0 {
		return 0, domain.ErrZeroBaseline
	}
	return (current - previous) / previous * 100, nil
}

// ClassifyWorsening maps two readings to a worsening level. A band change on
// an increase overrides the percentage tiers.
func ClassifyWorsening(current, previous, percentChange float64, currentCat, previousCat domain.AlbuminuriaCategory) domain.WorseningLevel {
	if current <= previous {
		return domain.NO_CHANGE
	}
	switch {
	case currentCat != previousCat:
		return domain.CATEGORY_PROGRESSION
	case percentChange > severeWorseningPercent:
		return domain.SEVERE_WORSENING
	case percentChange > moderateWorseningPercent:
		return domain.MODERATE_WORSENING
	case percentChange > mildWorseningPercent:
		return domain.MILD_WORSENING
	default:
		return domain.NO_CHANGE
	}
}

// LatestTwo returns the most recent and the preceding reading. Readings are
// ordered by date; on equal dates the one listed later in the input counts
// as more recent.
func LatestTwo(history []domain.Reading) (current, previous domain.Reading, err error) {
	if len(history) < 2 {
		return current, previous, domain.ErrInsufficientHistory
	}

	ordered := make([]domain.Reading, len(history))
	copy(ordered, history)
	// Stable ascending sort keeps input order among equal dates, so the last
	// two elements are the most recent by (date, position).
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Date.Before(ordered[j].Date)
	})

	n := len(ordered)
	return ordered[n-1], ordered[n-2], nil
}

// Analyze builds the trend analysis for a patient.
func (a *TrendAnalyzer) Analyze(patient *domain.PatientSnapshot) (*domain.TrendAnalysis, error) {
	current, previous, err := LatestTwo(patient.UACRHistory)
	if err != nil {
		return nil, err
	}

	pct, err := PercentChange(current.Value, previous.Value)
	if err != nil {
		return nil, fmt.Errorf("reading dated %s: %w", previous.Date, err)
	}

	currentCat := CategorizeUACR(current.Value)
	previousCat := CategorizeUACR(previous.Value)
	level := ClassifyWorsening(current.Value, previous.Value, pct, currentCat, previousCat)

	days := current.Date.DaysSince(previous.Date)
	if days < 0 {
		days = -days
	}

	analysis := &domain.TrendAnalysis{
		PatientID:        patient.ID,
		PatientName:      patient.Name,
		CurrentValue:     current.Value,
		CurrentDate:      current.Date,
		PreviousValue:    previous.Value,
		PreviousDate:     previous.Date,
		PercentChange:    pct,
		CurrentCategory:  currentCat,
		PreviousCategory: previousCat,
		Level:            level,
		IsWorsening:      level.IsWorsening(),
		DaysBetween:      days,
	}

	a.logger.WithFields(logrus.Fields{
		"patient_id":     patient.ID,
		"current_uacr":   current.Value,
		"previous_uacr":  previous.Value,
		"percent_change": math.Round(pct*10) / 10,
		"level":          level.String(),
	}).Debug("Analyzed uACR trend")

	return analysis, nil
}
