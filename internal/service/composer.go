package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/uacr-monitor/internal/domain"
)

const (
	alertIDTimeLayout    = "20060102150405"
	urgentContactGapDays = maxAdherentGapDays
	prolongedGapDays     = 30
)

// AlertComposer turns the trend, adherence and eligibility results for one
// patient into a clinical alert.
type AlertComposer struct {
	logger *logrus.Logger
	now    func() time.Time
}

// ComposerOption configures an AlertComposer.
type ComposerOption func(*AlertComposer)

// WithClock overrides the clock used for alert IDs and timestamps.
func WithClock(now func() time.Time) ComposerOption {
	return func(c *AlertComposer) {
		c.now = now
	}
}

// NewAlertComposer creates a new alert composer
func NewAlertComposer(logger *logrus.Logger, opts ...ComposerOption) *AlertComposer {
	c := &AlertComposer{
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SeverityFor maps a worsening level to an alert severity.
func SeverityFor(level domain.WorseningLevel) (domain.Severity, error) {
	switch level {
	case domain.SEVERE_WORSENING:
		return domain.CRITICAL, nil
	case domain.CATEGORY_PROGRESSION, domain.MODERATE_WORSENING:
		return domain.HIGH, nil
	case domain.MILD_WORSENING:
		return domain.MODERATE, nil
	default:
		return "", fmt.Errorf("worsening level %q: %w", level, domain.ErrUnknownSeverity)
	}
}

// Compose builds the alert. It returns nil without error when the trend is
// not worsening. eligibility is only consulted for untreated patients.
func (c *AlertComposer) Compose(
	patient *domain.PatientSnapshot,
	trend *domain.TrendAnalysis,
	adherence *domain.AdherenceAssessment,
	eligibility *domain.EligibilityResult,
) (*domain.ClinicalAlert, error) {
	if trend == nil || !trend.IsWorsening {
		return nil, nil
	}

	severity, err := SeverityFor(trend.Level)
	if err != nil {
		return nil, err
	}

	onTreatment := adherence != nil && adherence.OnTreatment
	if !onTreatment && eligibility == nil {
		return nil, fmt.Errorf("untreated patient %s has no eligibility result", patient.ID)
	}

	now := c.now()
	alert := &domain.ClinicalAlert{
		ID:          fmt.Sprintf("ALERT-%s-%s", patient.ID, now.Format(alertIDTimeLayout)),
		Severity:    severity,
		PatientID:   patient.ID,
		PatientName: patient.Name,
		Trend:       *trend,
		CreatedAt:   now,
	}

	if onTreatment {
		alert.Adherence = adherence
		alert.Type = domain.WORSENING_ON_TREATMENT
		alert.Message = treatedMessage(patient, trend, adherence)
		alert.Actions = treatedActions(trend, adherence)
	} else {
		rec := eligibility.Recommendation
		alert.Type = domain.WORSENING_UNTREATED
		alert.Eligibility = eligibility
		alert.Recommendation = &rec
		alert.Message = untreatedMessage(patient, trend)
		alert.Actions = untreatedActions(eligibility)
	}
	alert.Actions = append(alert.Actions, trailingActions(trend)...)
	alert.Rationale = rationale(patient, trend, adherence, eligibility)

	c.logger.WithFields(logrus.Fields{
		"alert_id":   alert.ID,
		"patient_id": patient.ID,
		"severity":   severity.String(),
		"alert_type": alert.Type.String(),
		"actions":    len(alert.Actions),
	}).Debug("Composed clinical alert")

	return alert, nil
}

func treatedMessage(patient *domain.PatientSnapshot, trend *domain.TrendAnalysis, adh *domain.AdherenceAssessment) string {
	if !adh.IsAdherent {
		return fmt.Sprintf("uACR WORSENING WITH POOR ADHERENCE\n"+
			"Patient %s shows %s (%+.1f%%) despite being prescribed %s. "+
			"Current adherence: %s (MPR: %.1f%%)",
			patient.Name, trend.Level.Description(), trend.PercentChange, adh.Medication,
			adh.Category, adh.MPR)
	}
	return fmt.Sprintf("uACR WORSENING DESPITE GOOD ADHERENCE\n"+
		"Patient %s shows %s (%+.1f%%) despite good adherence to %s (MPR: %.1f%%). "+
		"Consider treatment adjustment or additional evaluation.",
		patient.Name, trend.Level.Description(), trend.PercentChange, adh.Medication, adh.MPR)
}

func untreatedMessage(patient *domain.PatientSnapshot, trend *domain.TrendAnalysis) string {
	return fmt.Sprintf("uACR WORSENING IN UNTREATED PATIENT\n"+
		"Patient %s shows %s (%+.1f%%) and is not currently on CKD-specific treatment.",
		patient.Name, trend.Level.Description(), trend.PercentChange)
}

func treatedActions(trend *domain.TrendAnalysis, adh *domain.AdherenceAssessment) []domain.Action {
	var actions []domain.Action

	if !adh.IsAdherent {
		actions = append(actions, domain.Action{
			Kind:     domain.ActionAddressAdherence,
			Priority: domain.PriorityImmediate,
			Text:     fmt.Sprintf("IMMEDIATE: Address medication adherence - Current MPR: %.1f%%", adh.MPR),
		})
		if adh.RefillGapDays > urgentContactGapDays {
			actions = append(actions, domain.Action{
				Kind:     domain.ActionUrgentContact,
				Priority: domain.PriorityUrgent,
				Text:     fmt.Sprintf("URGENT: Patient has %d-day refill gap - Contact patient today", adh.RefillGapDays),
			})
		}
		if len(adh.Barriers) > 0 {
			actions = append(actions,
				domain.Action{
					Kind:     domain.ActionBarriers,
					Priority: domain.PriorityRoutine,
					Text:     "Identified barriers: " + strings.Join(adh.Barriers, ", "),
				},
				domain.Action{
					Kind:     domain.ActionTargetedIntervene,
					Priority: domain.PriorityRoutine,
					Text:     "Implement targeted interventions to address barriers",
				},
			)
		} else {
			actions = append(actions, domain.Action{
				Kind:     domain.ActionCounseling,
				Priority: domain.PriorityRoutine,
				Text:     "Schedule adherence counseling to identify barriers",
			})
		}
		return append(actions, domain.Action{
			Kind:     domain.ActionReminderTooling,
			Priority: domain.PriorityRoutine,
			Text:     "Consider smart pill bottle or medication reminder app",
		})
	}

	actions = append(actions,
		domain.Action{Kind: domain.ActionConfirmAdherence, Priority: domain.PriorityInfo, Text: "Adherence is good (MPR ≥80%) - Treatment failure or progression"},
		domain.Action{Kind: domain.ActionDiagnosticReview, Priority: domain.PriorityRoutine, Text: "Consider additional diagnostic evaluation:"},
		domain.Action{Kind: domain.ActionRepeatMeasurement, Priority: domain.PriorityRoutine, Text: "Repeat uACR in 1-2 weeks to confirm"},
		domain.Action{Kind: domain.ActionReviewBP, Priority: domain.PriorityRoutine, Text: "Review blood pressure control"},
		domain.Action{Kind: domain.ActionDietaryReview, Priority: domain.PriorityRoutine, Text: "Assess dietary sodium intake"},
		domain.Action{Kind: domain.ActionAcuteIllnessScreen, Priority: domain.PriorityRoutine, Text: "Evaluate for acute illness or dehydration"},
	)
	if trend.CurrentValue >= macroAlbuminuriaCutpoint {
		actions = append(actions,
			domain.Action{Kind: domain.ActionEscalation, Priority: domain.PriorityUrgent, Text: "Consider adding/optimizing:"},
			domain.Action{Kind: domain.ActionAddMRA, Priority: domain.PriorityUrgent, Text: "Mineralocorticoid receptor antagonist (finerenone)"},
			domain.Action{Kind: domain.ActionAddGLP1, Priority: domain.PriorityUrgent, Text: "GLP-1 receptor agonist if diabetic"},
			domain.Action{Kind: domain.ActionNephrologyReferral, Priority: domain.PriorityUrgent, Text: "Referral to nephrologist"},
		)
	}
	return actions
}

func untreatedActions(elig *domain.EligibilityResult) []domain.Action {
	if !elig.Eligible {
		return []domain.Action{
			{Kind: domain.ActionContinueMonitoring, Priority: domain.PriorityRoutine, Text: "Continue monitoring - Does not yet meet treatment criteria"},
			{Kind: domain.ActionRecheck, Priority: domain.PriorityRoutine, Text: "Repeat uACR in 3 months"},
			{Kind: domain.ActionOptimizeTherapy, Priority: domain.PriorityRoutine, Text: "Optimize blood pressure and RAS inhibitor therapy"},
			{Kind: domain.ActionLifestyle, Priority: domain.PriorityRoutine, Text: "Reinforce lifestyle modifications (diet, exercise, smoking cessation)"},
		}
	}

	indication := elig.Rationale()
	switch elig.Recommendation {
	case domain.URGENT_TREATMENT:
		return []domain.Action{
			{Kind: domain.ActionInitiateTreatment, Priority: domain.PriorityImmediate, Text: "URGENT: Initiate Jardiance (empagliflozin) 10mg daily"},
			{Kind: domain.ActionClinicalIndication, Priority: domain.PriorityInfo, Text: "Clinical indication: " + indication},
			{Kind: domain.ActionEvidence, Priority: domain.PriorityInfo, Text: "Evidence: 28% reduction in CKD progression (EMPA-KIDNEY trial)"},
			{Kind: domain.ActionFollowUp, Priority: domain.PriorityUrgent, Text: "Schedule follow-up in 2-4 weeks to assess tolerance"},
		}
	case domain.STRONGLY_RECOMMEND:
		return []domain.Action{
			{Kind: domain.ActionInitiateTreatment, Priority: domain.PriorityUrgent, Text: "STRONGLY RECOMMEND: Initiate Jardiance (empagliflozin) 10mg daily"},
			{Kind: domain.ActionClinicalIndication, Priority: domain.PriorityInfo, Text: "Clinical indication: " + indication},
			{Kind: domain.ActionEvidence, Priority: domain.PriorityInfo, Text: "Expected benefit: 50% slower eGFR decline, 26+ year dialysis delay"},
		}
	default:
		return []domain.Action{
			{Kind: domain.ActionInitiateTreatment, Priority: domain.PriorityRoutine, Text: "CONSIDER: Jardiance (empagliflozin) may provide benefit"},
			{Kind: domain.ActionClinicalIndication, Priority: domain.PriorityInfo, Text: "Rationale: " + indication},
			{Kind: domain.ActionDiscussRiskBenefit, Priority: domain.PriorityRoutine, Text: "Discuss risks/benefits with patient"},
		}
	}
}

func trailingActions(trend *domain.TrendAnalysis) []domain.Action {
	interval := "2-4 weeks"
	if trend.Level == domain.MILD_WORSENING {
		interval = "1-2 months"
	}
	return []domain.Action{
		{
			Kind:     domain.ActionTrendSummary,
			Priority: domain.PriorityInfo,
			Text: fmt.Sprintf("Trend monitoring: uACR %.0f → %.0f mg/g (%+.1f%%)",
				trend.PreviousValue, trend.CurrentValue, trend.PercentChange),
		},
		{
			Kind:     domain.ActionScheduleNextCheck,
			Priority: domain.PriorityRoutine,
			Text:     "Schedule next uACR check in " + interval,
		},
	}
}

func rationale(
	patient *domain.PatientSnapshot,
	trend *domain.TrendAnalysis,
	adh *domain.AdherenceAssessment,
	elig *domain.EligibilityResult,
) domain.Fragments {
	fragments := domain.Fragments{{
		Kind: domain.FragmentWorsening,
		Text: fmt.Sprintf("Patient shows %s with uACR increasing from %.0f to %.0f mg/g (%+.1f%%) over %d days.",
			strings.ToLower(trend.Level.Description()), trend.PreviousValue, trend.CurrentValue,
			trend.PercentChange, trend.DaysBetween),
	}}

	if trend.CategoryChanged() {
		fragments = append(fragments, domain.RationaleFragment{
			Kind: domain.FragmentCategoryProgression,
			Text: fmt.Sprintf("Progression from %s to %s indicates advancing kidney disease.",
				trend.PreviousCategory.Description(), trend.CurrentCategory.Description()),
		})
	}

	fragments = append(fragments, domain.RationaleFragment{
		Kind: domain.FragmentKidneyFunction,
		Text: fmt.Sprintf("Current kidney function: eGFR %.1f mL/min/1.73m² (CKD Stage %d).", patient.EGFR, patient.CKDStage),
	})

	switch {
	case adh != nil && adh.OnTreatment && adh.IsAdherent:
		fragments = append(fragments, domain.RationaleFragment{
			Kind: domain.FragmentAdherentResistance,
			Text: fmt.Sprintf("Despite good adherence to %s (MPR: %.1f%%, PDC: %.1f%%), proteinuria is worsening. "+
				"This may indicate treatment resistance, progressive disease, or need for additional therapies.",
				adh.Medication, adh.MPR, adh.PDC),
		})
	case adh != nil && adh.OnTreatment:
		fragments = append(fragments, domain.RationaleFragment{
			Kind: domain.FragmentNonAdherent,
			Text: fmt.Sprintf("Poor adherence to %s (MPR: %.1f%%) is likely contributing to disease progression. "+
				"Improving adherence is critical to achieving therapeutic benefit "+
				"(28%% reduction in CKD progression with good adherence).",
				adh.Medication, adh.MPR),
		})
		if adh.RefillGapDays > prolongedGapDays {
			fragments = append(fragments, domain.RationaleFragment{
				Kind: domain.FragmentProlongedGap,
				Text: fmt.Sprintf("Patient has been without medication for %d days, eliminating any protective benefit.", adh.RefillGapDays),
			})
		}
	case elig != nil && elig.Eligible:
		fragments = append(fragments, domain.RationaleFragment{
			Kind: domain.FragmentEligible,
			Text: fmt.Sprintf("Patient meets criteria for SGLT2 inhibitor therapy. %s. "+
				"EMPA-KIDNEY trial demonstrated 28%% reduction in kidney disease progression "+
				"and 50%% slower eGFR decline with empagliflozin.", elig.Rationale()),
		})
	default:
		fragments = append(fragments, domain.RationaleFragment{
			Kind: domain.FragmentIneligible,
			Text: "Patient does not currently meet criteria for SGLT2 inhibitor therapy. " +
				"Continue optimizing blood pressure control and RAS inhibition. " +
				"Monitor closely for disease progression.",
		})
	}

	return fragments
}
