package domain

import (
	"errors"
	"testing"
)

func TestAlbuminuriaCategory(t *testing.T) {
	tests := []struct {
		category AlbuminuriaCategory
		code     string
		valid    bool
	}{
		{NORMOALBUMINURIA, "A1", true},
		{MICROALBUMINURIA, "A2", true},
		{MACROALBUMINURIA, "A3", true},
		{AlbuminuriaCategory("A4"), "", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.category), func(t *testing.T) {
			if got := tt.category.IsValid(); got != tt.valid {
				t.Errorf("IsValid() = %v, want %v", got, tt.valid)
			}
			if got := tt.category.Code(); got != tt.code {
				t.Errorf("Code() = %q, want %q", got, tt.code)
			}
		})
	}
}

func TestWorseningLevel_IsWorsening(t *testing.T) {
	worsening := map[WorseningLevel]bool{
		NO_CHANGE:            false,
		MILD_WORSENING:       true,
		MODERATE_WORSENING:   true,
		SEVERE_WORSENING:     true,
		CATEGORY_PROGRESSION: true,
	}

	for level, want := range worsening {
		if !level.IsValid() {
			t.Errorf("%s should be valid", level)
		}
		if got := level.IsWorsening(); got != want {
			t.Errorf("%s.IsWorsening() = %v, want %v", level, got, want)
		}
	}

	if WorseningLevel("WORSE").IsValid() {
		t.Error("unknown level should be invalid")
	}
}

func TestSeverity_Rank(t *testing.T) {
	for i := 1; i < len(SeverityOrder); i++ {
		if SeverityOrder[i-1].Rank() <= SeverityOrder[i].Rank() {
			t.Errorf("%s should outrank %s", SeverityOrder[i-1], SeverityOrder[i])
		}
	}
	if Severity("URGENT").Rank() != 0 {
		t.Error("unknown severity should rank 0")
	}

	fields := HIGH.LogFields()
	if fields["severity"] != "HIGH" || fields["severity_rank"] != 3 {
		t.Errorf("unexpected log fields: %v", fields)
	}
}

func TestParseEnums(t *testing.T) {
	if sev, err := ParseSeverity("CRITICAL"); err != nil || sev != CRITICAL {
		t.Errorf("ParseSeverity(CRITICAL) = %v, %v", sev, err)
	}
	if _, err := ParseSeverity("critical"); !errors.Is(err, ErrInvalidSeverity) {
		t.Errorf("expected ErrInvalidSeverity, got %v", err)
	}
	if _, err := ParseCategory("A2"); !errors.Is(err, ErrInvalidCategory) {
		t.Errorf("expected ErrInvalidCategory, got %v", err)
	}
	if lvl, err := ParseWorseningLevel("MILD"); err != nil || lvl != MILD_WORSENING {
		t.Errorf("ParseWorseningLevel(MILD) = %v, %v", lvl, err)
	}
	if _, err := ParseRecommendation("MAYBE"); !errors.Is(err, ErrInvalidRecommendation) {
		t.Errorf("expected ErrInvalidRecommendation, got %v", err)
	}
}
