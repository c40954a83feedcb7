package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/uacr-monitor/internal/domain"
)

func TestEligibilityEvaluator_DecisionTable(t *testing.T) {
	evaluator := NewEligibilityEvaluator(testLogger())

	tests := []struct {
		name         string
		in           EligibilityInput
		wantEligible bool
		wantRec      domain.TreatmentRecommendation
		wantKinds    []domain.FragmentKind
	}{
		{
			name:      "eGFR below range",
			in:        EligibilityInput{EGFR: 15, CKDStage: 4, UACR: 900, HasDiabetes: true},
			wantRec:   domain.CONTINUE_MONITORING,
			wantKinds: []domain.FragmentKind{domain.FragmentBelowEGFRRange},
		},
		{
			name:         "diabetic stage 3 macroalbuminuria",
			in:           EligibilityInput{EGFR: 48, CKDStage: 3, UACR: 320, HasDiabetes: true},
			wantEligible: true,
			wantRec:      domain.URGENT_TREATMENT,
			wantKinds:    []domain.FragmentKind{domain.FragmentDiabeticCKD, domain.FragmentAlbuminuria},
		},
		{
			name:         "diabetic stage 2 microalbuminuria",
			in:           EligibilityInput{EGFR: 65, CKDStage: 2, UACR: 50, HasDiabetes: true},
			wantEligible: true,
			wantRec:      domain.STRONGLY_RECOMMEND,
			wantKinds:    []domain.FragmentKind{domain.FragmentDiabeticCKD, domain.FragmentAlbuminuria},
		},
		{
			name:         "diabetic significant albuminuria",
			in:           EligibilityInput{EGFR: 55, CKDStage: 3, UACR: 240, HasDiabetes: true},
			wantEligible: true,
			wantRec:      domain.STRONGLY_RECOMMEND,
			wantKinds:    []domain.FragmentKind{domain.FragmentDiabeticCKD, domain.FragmentAlbuminuria},
		},
		{
			name:         "diabetic normoalbuminuria",
			in:           EligibilityInput{EGFR: 55, CKDStage: 3, UACR: 20, HasDiabetes: true},
			wantEligible: true,
			wantRec:      domain.CONSIDER_TREATMENT,
			wantKinds:    []domain.FragmentKind{domain.FragmentDiabeticCKD},
		},
		{
			name:      "diabetic stage 1",
			in:        EligibilityInput{EGFR: 95, CKDStage: 1, UACR: 400, HasDiabetes: true},
			wantRec:   domain.CONTINUE_MONITORING,
			wantKinds: []domain.FragmentKind{domain.FragmentNotMet},
		},
		{
			name:      "non-diabetic below uACR gate",
			in:        EligibilityInput{EGFR: 40, CKDStage: 3, UACR: 150},
			wantRec:   domain.CONTINUE_MONITORING,
			wantKinds: []domain.FragmentKind{domain.FragmentNotMet},
		},
		{
			name:         "non-diabetic stage 3 macroalbuminuria",
			in:           EligibilityInput{EGFR: 40, CKDStage: 3, UACR: 350},
			wantEligible: true,
			wantRec:      domain.URGENT_TREATMENT,
			wantKinds:    []domain.FragmentKind{domain.FragmentNonDiabeticCKD, domain.FragmentAlbuminuria},
		},
		{
			name:         "non-diabetic significant albuminuria",
			in:           EligibilityInput{EGFR: 40, CKDStage: 3, UACR: 200},
			wantEligible: true,
			wantRec:      domain.STRONGLY_RECOMMEND,
			wantKinds:    []domain.FragmentKind{domain.FragmentNonDiabeticCKD, domain.FragmentAlbuminuria},
		},
		{
			name:      "non-diabetic stage 2",
			in:        EligibilityInput{EGFR: 78, CKDStage: 2, UACR: 95, HasHypertension: true},
			wantRec:   domain.CONTINUE_MONITORING,
			wantKinds: []domain.FragmentKind{domain.FragmentNotMet},
		},
		{
			name:         "advanced stage forces urgent",
			in:           EligibilityInput{EGFR: 25, CKDStage: 4, UACR: 210},
			wantEligible: true,
			wantRec:      domain.URGENT_TREATMENT,
			wantKinds:    []domain.FragmentKind{domain.FragmentNonDiabeticCKD, domain.FragmentAlbuminuria, domain.FragmentAdvancedStage},
		},
		{
			name:         "supporting comorbidities do not change tier",
			in:           EligibilityInput{EGFR: 50, CKDStage: 3, UACR: 60, HasDiabetes: true, HasHypertension: true, HasHeartFailure: true},
			wantEligible: true,
			wantRec:      domain.STRONGLY_RECOMMEND,
			wantKinds: []domain.FragmentKind{
				domain.FragmentDiabeticCKD, domain.FragmentAlbuminuria,
				domain.FragmentHypertension, domain.FragmentHeartFailure,
			},
		},
		{
			name:         "eGFR above studied range is noted",
			in:           EligibilityInput{EGFR: 82, CKDStage: 2, UACR: 45, HasDiabetes: true},
			wantEligible: true,
			wantRec:      domain.STRONGLY_RECOMMEND,
			wantKinds:    []domain.FragmentKind{domain.FragmentDiabeticCKD, domain.FragmentAlbuminuria, domain.FragmentAboveStudiedEGFR},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := evaluator.Evaluate(tt.in)

			assert.Equal(t, tt.wantEligible, result.Eligible)
			assert.Equal(t, tt.wantRec, result.Recommendation)

			kinds := make([]domain.FragmentKind, 0, len(result.Fragments))
			for _, f := range result.Fragments {
				kinds = append(kinds, f.Kind)
			}
			assert.Equal(t, tt.wantKinds, kinds)
		})
	}
}

func TestEligibilityEvaluator_RationaleText(t *testing.T) {
	evaluator := NewEligibilityEvaluator(testLogger())

	result := evaluator.Evaluate(EligibilityInput{EGFR: 48, CKDStage: 3, UACR: 320, HasDiabetes: true, HasHypertension: true})
	assert.Equal(t, "Diabetic CKD Stage 3; Macroalbuminuria (uACR 320 mg/g); Hypertension present (additional CV benefit)", result.Rationale())
}

func TestEligibilityInputFor(t *testing.T) {
	p := domain.PatientSnapshot{
		EGFR:          48,
		CKDStage:      3,
		Comorbidities: []string{"diabetes", "HEART FAILURE"},
	}
	in := EligibilityInputFor(&p, 320)

	assert.True(t, in.HasDiabetes)
	assert.False(t, in.HasHypertension)
	assert.True(t, in.HasHeartFailure)
	assert.Equal(t, 320.0, in.UACR)
}
