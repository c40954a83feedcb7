// Package domain contains core business entities and types for uACR trend
// monitoring, SGLT2-inhibitor adherence tracking and treatment eligibility
// following KDIGO albuminuria staging.
//
// Reference: KDIGO 2024 Clinical Practice Guideline for the Evaluation and
// Management of Chronic Kidney Disease. Kidney Int. 105(4S):S117-S314.
package domain

import (
	"errors"
	"fmt"
)

// AlbuminuriaCategory represents the KDIGO albuminuria band of a uACR value.
// Thresholds are fixed: A1 below 30 mg/g, A2 from 30 to 300 mg/g inclusive,
// A3 above 300 mg/g.
type AlbuminuriaCategory string

const (
	NORMOALBUMINURIA AlbuminuriaCategory = "NORMOALBUMINURIA"
	MICROALBUMINURIA AlbuminuriaCategory = "MICROALBUMINURIA"
	MACROALBUMINURIA AlbuminuriaCategory = "MACROALBUMINURIA"
)

// WorseningLevel represents the magnitude of a uACR increase between the two
// most recent readings.
type WorseningLevel string

const (
	NO_CHANGE            WorseningLevel = "NO_CHANGE"
	MILD_WORSENING       WorseningLevel = "MILD"
	MODERATE_WORSENING   WorseningLevel = "MODERATE"
	SEVERE_WORSENING     WorseningLevel = "SEVERE"
	CATEGORY_PROGRESSION WorseningLevel = "CATEGORY_PROGRESSION"
)

// TreatmentRecommendation represents the recommendation tier for starting
// SGLT2-inhibitor therapy.
type TreatmentRecommendation string

const (
	CONTINUE_MONITORING TreatmentRecommendation = "CONTINUE_MONITORING"
	CONSIDER_TREATMENT  TreatmentRecommendation = "CONSIDER_TREATMENT"
	STRONGLY_RECOMMEND  TreatmentRecommendation = "STRONGLY_RECOMMEND"
	URGENT_TREATMENT    TreatmentRecommendation = "URGENT_TREATMENT"
)

// Severity represents the alert severity tier.
type Severity string

const (
	CRITICAL Severity = "CRITICAL"
	HIGH     Severity = "HIGH"
	MODERATE Severity = "MODERATE"
	LOW      Severity = "LOW"
)

// AlertType tags what kind of worsening an alert reports.
type AlertType string

const (
	WORSENING_ON_TREATMENT AlertType = "UACR_WORSENING_ON_TREATMENT"
	WORSENING_UNTREATED    AlertType = "UACR_WORSENING_UNTREATED"
)

// AdherenceCategory is the MPR-derived adherence label.
type AdherenceCategory string

const (
	ADHERENCE_HIGH   AdherenceCategory = "High"
	ADHERENCE_MEDIUM AdherenceCategory = "Medium"
	ADHERENCE_LOW    AdherenceCategory = "Low"
)

// MetricSource records where adherence figures came from.
type MetricSource string

const (
	SOURCE_COMPUTED MetricSource = "computed"
	SOURCE_REPORTED MetricSource = "reported"
)

// Validation errors for enumerated clinical values
var (
	ErrInvalidCategory       = errors.New("invalid albuminuria category")
	ErrInvalidWorseningLevel = errors.New("invalid worsening level")
	ErrInvalidRecommendation = errors.New("invalid treatment recommendation")
	ErrInvalidSeverity       = errors.New("invalid alert severity")
)

// SeverityOrder lists severities from most to least urgent. Reports and
// statistics iterate in this order.
var SeverityOrder = []Severity{CRITICAL, HIGH, MODERATE, LOW}

// IsValid reports whether the category is one of the three KDIGO bands.
func (c AlbuminuriaCategory) IsValid() bool {
	switch c {
	case NORMOALBUMINURIA, MICROALBUMINURIA, MACROALBUMINURIA:
		return true
	default:
		return false
	}
}

// String returns the string representation of the category.
func (c AlbuminuriaCategory) String() string {
	return string(c)
}

// Code returns the KDIGO A-stage code.
func (c AlbuminuriaCategory) Code() string {
	switch c {
	case NORMOALBUMINURIA:
		return "A1"
	case MICROALBUMINURIA:
		return "A2"
	case MACROALBUMINURIA:
		return "A3"
	default:
		return ""
	}
}

// Description returns the clinical label used in messages and rationale.
func (c AlbuminuriaCategory) Description() string {
	switch c {
	case NORMOALBUMINURIA:
		return "Normoalbuminuria (<30 mg/g)"
	case MICROALBUMINURIA:
		return "Microalbuminuria (30-300 mg/g)"
	case MACROALBUMINURIA:
		return "Macroalbuminuria (>300 mg/g)"
	default:
		return "Unknown albuminuria category"
	}
}

// IsValid reports whether the level is a known worsening level.
func (w WorseningLevel) IsValid() bool {
	switch w {
	case NO_CHANGE, MILD_WORSENING, MODERATE_WORSENING, SEVERE_WORSENING, CATEGORY_PROGRESSION:
		return true
	default:
		return false
	}
}

// String returns the string representation of the worsening level.
func (w WorseningLevel) String() string {
	return string(w)
}

// IsWorsening is true for every level except NO_CHANGE.
func (w WorseningLevel) IsWorsening() bool {
	switch w {
	case MILD_WORSENING, MODERATE_WORSENING, SEVERE_WORSENING, CATEGORY_PROGRESSION:
		return true
	default:
		return false
	}
}

// Description returns the clinical label used in messages and rationale.
func (w WorseningLevel) Description() string {
	switch w {
	case NO_CHANGE:
		return "No significant change"
	case MILD_WORSENING:
		return "Mild worsening (30-50% increase)"
	case MODERATE_WORSENING:
		return "Moderate worsening (50-100% increase)"
	case SEVERE_WORSENING:
		return "Severe worsening (>100% increase)"
	case CATEGORY_PROGRESSION:
		return "Category progression"
	default:
		return "Unknown worsening level"
	}
}

// IsValid reports whether the recommendation is a known tier.
func (r TreatmentRecommendation) IsValid() bool {
	switch r {
	case CONTINUE_MONITORING, CONSIDER_TREATMENT, STRONGLY_RECOMMEND, URGENT_TREATMENT:
		return true
	default:
		return false
	}
}

// String returns the string representation of the recommendation.
func (r TreatmentRecommendation) String() string {
	return string(r)
}

// Description returns the clinical label used in reports.
func (r TreatmentRecommendation) Description() string {
	switch r {
	case CONTINUE_MONITORING:
		return "Continue monitoring"
	case CONSIDER_TREATMENT:
		return "Consider initiating treatment"
	case STRONGLY_RECOMMEND:
		return "Strongly recommend treatment initiation"
	case URGENT_TREATMENT:
		return "Urgent treatment initiation required"
	default:
		return "Unknown recommendation"
	}
}

// IsValid reports whether the severity is a known tier.
func (s Severity) IsValid() bool {
	switch s {
	case CRITICAL, HIGH, MODERATE, LOW:
		return true
	default:
		return false
	}
}

// String returns the string representation of the severity.
func (s Severity) String() string {
	return string(s)
}

// Rank orders severities; higher is more urgent. Unknown severities rank 0.
func (s Severity) Rank() int {
	switch s {
	case CRITICAL:
		return 4
	case HIGH:
		return 3
	case MODERATE:
		return 2
	case LOW:
		return 1
	default:
		return 0
	}
}

// LogFields returns structured logging fields for audit trails.
func (s Severity) LogFields() map[string]any {
	return map[string]any{
		"severity":      string(s),
		"severity_rank": s.Rank(),
		"is_valid":      s.IsValid(),
	}
}

// String returns the string representation of the alert type.
func (t AlertType) String() string {
	return string(t)
}

// String returns the string representation of the adherence category.
func (a AdherenceCategory) String() string {
	return string(a)
}

// ParseSeverity converts a stored or user-supplied severity string.
func ParseSeverity(s string) (Severity, error) {
	sev := Severity(s)
	if !sev.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidSeverity, s)
	}
	return sev, nil
}

// ParseCategory converts a stored albuminuria category string.
func ParseCategory(s string) (AlbuminuriaCategory, error) {
	c := AlbuminuriaCategory(s)
	if !c.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidCategory, s)
	}
	return c, nil
}

// ParseWorseningLevel converts a stored worsening level string.
func ParseWorseningLevel(s string) (WorseningLevel, error) {
	w := WorseningLevel(s)
	if !w.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidWorseningLevel, s)
	}
	return w, nil
}

// ParseRecommendation converts a stored recommendation tier string.
func ParseRecommendation(s string) (TreatmentRecommendation, error) {
	r := TreatmentRecommendation(s)
	if !r.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidRecommendation, s)
	}
	return r, nil
}
