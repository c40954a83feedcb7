package service

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/uacr-monitor/internal/domain"
)

// SGLT2-inhibitor eligibility thresholds (KDIGO / EMPA-KIDNEY).
const (
	minEligibleEGFR          = 20.0
	maxStudiedEGFR           = 75.0
	diabeticMinStage         = 2
	nonDiabeticMinStage      = 3
	advancedStage            = 4
	significantAlbuminuria   = 200.0
	macroAlbuminuriaCutpoint = 300.0
)

// EligibilityInput carries the clinical values the eligibility rules read.
type EligibilityInput struct {
	EGFR            float64
	CKDStage        int
	UACR            float64
	HasDiabetes     bool
	HasHypertension bool
	HasHeartFailure bool
}

// EligibilityInputFor builds the rule input from a snapshot, using currentUACR
// as the albuminuria value.
func EligibilityInputFor(patient *domain.PatientSnapshot, currentUACR float64) EligibilityInput {
	return EligibilityInput{
		EGFR:            patient.EGFR,
		CKDStage:        patient.CKDStage,
		UACR:            currentUACR,
		HasDiabetes:     patient.HasComorbidity(domain.ComorbidityDiabetes),
		HasHypertension: patient.HasComorbidity(domain.ComorbidityHypertension),
		HasHeartFailure: patient.HasComorbidity(domain.ComorbidityHeartFailure),
	}
}

// EligibilityEvaluator decides SGLT2-inhibitor candidacy for untreated patients.
// Baseline RAS-inhibitor therapy is assumed.
type EligibilityEvaluator struct {
	logger *logrus.Logger
}

// NewEligibilityEvaluator creates a new eligibility evaluator
func NewEligibilityEvaluator(logger *logrus.Logger) *EligibilityEvaluator {
	return &EligibilityEvaluator{logger: logger}
}

// Evaluate applies the eligibility decision tree.
func (e *EligibilityEvaluator) Evaluate(in EligibilityInput) *domain.EligibilityResult {
	result := e.evaluate(in)

	e.logger.WithFields(logrus.Fields{
		"egfr":           in.EGFR,
		"ckd_stage":      in.CKDStage,
		"uacr":           in.UACR,
		"diabetic":       in.HasDiabetes,
		"eligible":       result.Eligible,
		"recommendation": result.Recommendation.String(),
	}).Debug("Evaluated treatment eligibility")

	return result
}

func (e *EligibilityEvaluator) evaluate(in EligibilityInput) *domain.EligibilityResult {
	if in.EGFR < minEligibleEGFR {
		return &domain.EligibilityResult{
			Eligible:       false,
			Recommendation: domain.CONTINUE_MONITORING,
			Fragments: domain.Fragments{{
				Kind: domain.FragmentBelowEGFRRange,
				Text: "eGFR <20 mL/min - below approved filtration range for SGLT2 inhibitor therapy",
			}},
		}
	}

	result := &domain.EligibilityResult{Recommendation: domain.CONTINUE_MONITORING}

	switch {
	case in.HasDiabetes && in.CKDStage >= diabeticMinStage:
		result.Eligible = true
		result.Fragments = append(result.Fragments, domain.RationaleFragment{
			Kind: domain.FragmentDiabeticCKD,
			Text: fmt.Sprintf("Diabetic CKD Stage %d", in.CKDStage),
		})
		switch {
		case in.UACR >= macroAlbuminuriaCutpoint:
			result.Recommendation = domain.URGENT_TREATMENT
			result.Fragments = append(result.Fragments, albuminuriaFragment("Macroalbuminuria", in.UACR))
		case in.UACR >= significantAlbuminuria:
			result.Recommendation = domain.STRONGLY_RECOMMEND
			result.Fragments = append(result.Fragments, albuminuriaFragment("Significant albuminuria", in.UACR))
		case in.UACR >= microalbuminuriaThreshold:
			result.Recommendation = domain.STRONGLY_RECOMMEND
			result.Fragments = append(result.Fragments, albuminuriaFragment("Microalbuminuria", in.UACR))
		default:
			result.Recommendation = domain.CONSIDER_TREATMENT
		}

	case !in.HasDiabetes && in.CKDStage >= nonDiabeticMinStage && in.UACR >= significantAlbuminuria:
		result.Eligible = true
		result.Fragments = append(result.Fragments, domain.RationaleFragment{
			Kind: domain.FragmentNonDiabeticCKD,
			Text: fmt.Sprintf("Non-diabetic CKD Stage %d", in.CKDStage),
		})
		if in.UACR >= macroAlbuminuriaCutpoint {
			result.Recommendation = domain.URGENT_TREATMENT
			result.Fragments = append(result.Fragments, albuminuriaFragment("Macroalbuminuria", in.UACR))
		} else {
			result.Recommendation = domain.STRONGLY_RECOMMEND
			result.Fragments = append(result.Fragments, albuminuriaFragment("Significant albuminuria", in.UACR))
		}

	default:
		result.Fragments = domain.Fragments{{
			Kind: domain.FragmentNotMet,
			Text: "Does not meet treatment criteria",
		}}
		return result
	}

	// Supporting factors never change the tier.
	if in.HasHypertension {
		result.Fragments = append(result.Fragments, domain.RationaleFragment{
			Kind: domain.FragmentHypertension,
			Text: "Hypertension present (additional CV benefit)",
		})
	}
	if in.HasHeartFailure {
		result.Fragments = append(result.Fragments, domain.RationaleFragment{
			Kind: domain.FragmentHeartFailure,
			Text: "Heart failure present (additional cardioprotection)",
		})
	}
	if in.CKDStage >= advancedStage {
		result.Recommendation = domain.URGENT_TREATMENT
		result.Fragments = append(result.Fragments, domain.RationaleFragment{
			Kind: domain.FragmentAdvancedStage,
			Text: fmt.Sprintf("Advanced CKD Stage %d (urgent need for nephroprotection)", in.CKDStage),
		})
	}
	if in.EGFR > maxStudiedEGFR {
		result.Fragments = append(result.Fragments, domain.RationaleFragment{
			Kind: domain.FragmentAboveStudiedEGFR,
			Text: fmt.Sprintf("eGFR %.1f above the 20-75 mL/min/1.73m² range studied; benefit extrapolated", in.EGFR),
		})
	}

	return result
}

func albuminuriaFragment(label string, uacr float64) domain.RationaleFragment {
	return domain.RationaleFragment{
		Kind: domain.FragmentAlbuminuria,
		Text: fmt.Sprintf("%s (uACR %.0f mg/g)", label, uacr),
	}
}
