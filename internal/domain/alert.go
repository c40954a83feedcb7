package domain

import (
	"strings"
	"time"
)

// TrendAnalysis compares the two most recent uACR readings of a patient.
type TrendAnalysis struct {
	PatientID        string              `json:"patient_id"`
	PatientName      string              `json:"patient_name"`
	CurrentValue     float64             `json:"current_uacr"`
	CurrentDate      Date                `json:"date_current"`
	PreviousValue    float64             `json:"previous_uacr"`
	PreviousDate     Date                `json:"date_previous"`
	PercentChange    float64             `json:"percent_change"`
	CurrentCategory  AlbuminuriaCategory `json:"current_category"`
	PreviousCategory AlbuminuriaCategory `json:"previous_category"`
	Level            WorseningLevel      `json:"worsening_level"`
	IsWorsening      bool                `json:"is_worsening"`
	DaysBetween      int                 `json:"days_between"`
}

// CategoryChanged reports whether the two readings fall in different bands.
func (t *TrendAnalysis) CategoryChanged() bool {
	return t.CurrentCategory != t.PreviousCategory
}

// AdherenceAssessment summarises adherence for a prescribed patient. For
// untreated patients OnTreatment is false and every metric is zero.
type AdherenceAssessment struct {
	OnTreatment   bool              `json:"on_treatment"`
	Medication    string            `json:"medication,omitempty"`
	MPR           float64           `json:"mpr"`
	PDC           float64           `json:"pdc"`
	Category      AdherenceCategory `json:"adherence_category,omitempty"`
	Last30Days    float64           `json:"last_30_days"`
	Last90Days    float64           `json:"last_90_days"`
	RefillGapDays int               `json:"refill_gap_days"`
	IsAdherent    bool              `json:"is_adherent"`
	Barriers      []string          `json:"barriers"`
	Interventions []string          `json:"interventions"`
	Source        MetricSource      `json:"source,omitempty"`
}

// FragmentKind tags the clinical condition that produced a rationale fragment.
type FragmentKind string

const (
	FragmentWorsening           FragmentKind = "WORSENING"
	FragmentCategoryProgression FragmentKind = "CATEGORY_PROGRESSION"
	FragmentKidneyFunction      FragmentKind = "KIDNEY_FUNCTION"
	FragmentAdherentResistance  FragmentKind = "ADHERENT_RESISTANCE"
	FragmentNonAdherent         FragmentKind = "NON_ADHERENT"
	FragmentProlongedGap        FragmentKind = "PROLONGED_GAP"
	FragmentEligible            FragmentKind = "ELIGIBLE"
	FragmentIneligible          FragmentKind = "INELIGIBLE"

	// Eligibility fragments
	FragmentDiabeticCKD      FragmentKind = "DIABETIC_CKD"
	FragmentNonDiabeticCKD   FragmentKind = "NON_DIABETIC_CKD"
	FragmentAlbuminuria      FragmentKind = "ALBUMINURIA"
	FragmentHypertension     FragmentKind = "HYPERTENSION"
	FragmentHeartFailure     FragmentKind = "HEART_FAILURE"
	FragmentAdvancedStage    FragmentKind = "ADVANCED_STAGE"
	FragmentBelowEGFRRange   FragmentKind = "BELOW_EGFR_RANGE"
	FragmentAboveStudiedEGFR FragmentKind = "ABOVE_STUDIED_EGFR"
	FragmentNotMet           FragmentKind = "NOT_MET"
)

// RationaleFragment is one sentence of clinical reasoning.
type RationaleFragment struct {
	Kind FragmentKind `json:"kind"`
	Text string       `json:"text"`
}

// Fragments is an ordered list of rationale fragments.
type Fragments []RationaleFragment

// Has reports whether a fragment of the given kind is present.
func (f Fragments) Has(kind FragmentKind) bool {
	for _, fr := range f {
		if fr.Kind == kind {
			return true
		}
	}
	return false
}

// Join renders the fragments as text separated by sep.
func (f Fragments) Join(sep string) string {
	parts := make([]string, 0, len(f))
	for _, fr := range f {
		parts = append(parts, fr.Text)
	}
	return strings.Join(parts, sep)
}

// EligibilityResult is the outcome of the SGLT2-inhibitor eligibility rules.
type EligibilityResult struct {
	Eligible       bool                    `json:"eligible"`
	Recommendation TreatmentRecommendation `json:"recommendation"`
	Fragments      Fragments               `json:"fragments"`
}

// Rationale renders the eligibility fragments as a "; "-separated string.
func (e *EligibilityResult) Rationale() string {
	if len(e.Fragments) == 0 {
		return "Does not meet treatment criteria"
	}
	return e.Fragments.Join("; ")
}

// ActionKind identifies what a recommended action asks the clinician to do.
type ActionKind string

const (
	ActionAddressAdherence   ActionKind = "ADDRESS_ADHERENCE"
	ActionUrgentContact      ActionKind = "URGENT_CONTACT"
	ActionBarriers           ActionKind = "BARRIERS"
	ActionTargetedIntervene  ActionKind = "TARGETED_INTERVENTIONS"
	ActionCounseling         ActionKind = "ADHERENCE_COUNSELING"
	ActionReminderTooling    ActionKind = "REMINDER_TOOLING"
	ActionConfirmAdherence   ActionKind = "CONFIRM_ADHERENCE"
	ActionDiagnosticReview   ActionKind = "DIAGNOSTIC_REVIEW"
	ActionRepeatMeasurement  ActionKind = "REPEAT_MEASUREMENT"
	ActionReviewBP           ActionKind = "REVIEW_BLOOD_PRESSURE"
	ActionDietaryReview      ActionKind = "DIETARY_REVIEW"
	ActionAcuteIllnessScreen ActionKind = "ACUTE_ILLNESS_SCREEN"
	ActionEscalation         ActionKind = "ESCALATION"
	ActionAddMRA             ActionKind = "ADD_MRA"
	ActionAddGLP1            ActionKind = "ADD_GLP1"
	ActionNephrologyReferral ActionKind = "NEPHROLOGY_REFERRAL"
	ActionInitiateTreatment  ActionKind = "INITIATE_TREATMENT"
	ActionClinicalIndication ActionKind = "CLINICAL_INDICATION"
	ActionEvidence           ActionKind = "EVIDENCE"
	ActionFollowUp           ActionKind = "FOLLOW_UP"
	ActionDiscussRiskBenefit ActionKind = "DISCUSS_RISK_BENEFIT"
	ActionContinueMonitoring ActionKind = "CONTINUE_MONITORING"
	ActionRecheck            ActionKind = "RECHECK"
	ActionOptimizeTherapy    ActionKind = "OPTIMIZE_THERAPY"
	ActionLifestyle          ActionKind = "LIFESTYLE"
	ActionTrendSummary       ActionKind = "TREND_SUMMARY"
	ActionScheduleNextCheck  ActionKind = "SCHEDULE_NEXT_CHECK"
)

// ActionPriority orders how soon an action should be taken.
type ActionPriority string

const (
	PriorityImmediate ActionPriority = "IMMEDIATE"
	PriorityUrgent    ActionPriority = "URGENT"
	PriorityRoutine   ActionPriority = "ROUTINE"
	PriorityInfo      ActionPriority = "INFO"
)

// Action is one recommended step for the physician.
type Action struct {
	Kind     ActionKind     `json:"kind"`
	Priority ActionPriority `json:"priority"`
	Text     string         `json:"text"`
}

// ClinicalAlert is the terminal output of an evaluation.
type ClinicalAlert struct {
	ID             string                   `json:"alert_id"`
	Severity       Severity                 `json:"severity"`
	PatientID      string                   `json:"patient_id"`
	PatientName    string                   `json:"patient_name"`
	Type           AlertType                `json:"alert_type"`
	Message        string                   `json:"message"`
	Trend          TrendAnalysis            `json:"uacr_analysis"`
	Adherence      *AdherenceAssessment     `json:"adherence_analysis,omitempty"`
	Eligibility    *EligibilityResult       `json:"eligibility,omitempty"`
	Recommendation *TreatmentRecommendation `json:"treatment_recommendation,omitempty"`
	Actions        []Action                 `json:"recommended_actions"`
	Rationale      Fragments                `json:"rationale"`
	CreatedAt      time.Time                `json:"timestamp"`
}

// OnTreatment reports whether the alerted patient has an active prescription.
func (a *ClinicalAlert) OnTreatment() bool {
	return a.Adherence != nil && a.Adherence.OnTreatment
}

// RationaleText renders the rationale fragments as a paragraph.
func (a *ClinicalAlert) RationaleText() string {
	return a.Rationale.Join(" ")
}

// ActionTexts returns the action texts in order.
func (a *ClinicalAlert) ActionTexts() []string {
	texts := make([]string, 0, len(a.Actions))
	for _, act := range a.Actions {
		texts = append(texts, act.Text)
	}
	return texts
}

// HasAction reports whether an action of the given kind is present.
func (a *ClinicalAlert) HasAction(kind ActionKind) bool {
	for _, act := range a.Actions {
		if act.Kind == kind {
			return true
		}
	}
	return false
}
