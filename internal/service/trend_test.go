package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uacr-monitor/internal/domain"
)

func TestCategorizeUACR(t *testing.T) {
	tests := []struct {
		value float64
		want  domain.AlbuminuriaCategory
	}{
		{0, domain.NORMOALBUMINURIA},
		{29.99, domain.NORMOALBUMINURIA},
		{30, domain.MICROALBUMINURIA},
		{150, domain.MICROALBUMINURIA},
		{300, domain.MICROALBUMINURIA},
		{300.01, domain.MACROALBUMINURIA},
		{1200, domain.MACROALBUMINURIA},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CategorizeUACR(tt.value), "value %v", tt.value)
	}
}

func TestPercentChange(t *testing.T) {
	t.Run("increase", func(t *testing.T) {
		pct, err := PercentChange(380, 250)
		require.NoError(t, err)
		assert.InDelta(t, 52.0, pct, 0.001)
	})

	t.Run("decrease", func(t *testing.T) {
		pct, err := PercentChange(100, 200)
		require.NoError(t, err)
		assert.InDelta(t, -50.0, pct, 0.001)
	})

	t.Run("zero baseline", func(t *testing.T) {
		_, err := PercentChange(50, 0)
		assert.ErrorIs(t, err, domain.ErrZeroBaseline)
	})
}

func TestClassifyWorsening(t *testing.T) {
	tests := []struct {
		name     string
		current  float64
		previous float64
		want     domain.WorseningLevel
	}{
		{"decrease", 100, 150, domain.NO_CHANGE},
		{"unchanged", 100, 100, domain.NO_CHANGE},
		{"small increase", 120, 100, domain.NO_CHANGE},
		{"exactly 30 percent", 130, 100, domain.NO_CHANGE},
		{"mild", 140, 100, domain.MILD_WORSENING},
		{"exactly 50 percent", 150, 100, domain.MILD_WORSENING},
		{"moderate", 190, 100, domain.MODERATE_WORSENING},
		{"exactly 100 percent", 200, 100, domain.MODERATE_WORSENING},
		{"severe", 250, 100, domain.SEVERE_WORSENING},
		{"severe within A3", 1000, 400, domain.SEVERE_WORSENING},
		{"band change overrides percent", 35, 29, domain.CATEGORY_PROGRESSION},
		{"band change overrides severe", 700, 200, domain.CATEGORY_PROGRESSION},
		{"decrease across band", 25, 40, domain.NO_CHANGE},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pct, err := PercentChange(tt.current, tt.previous)
			require.NoError(t, err)

			cur, prev := CategorizeUACR(tt.current), CategorizeUACR(tt.previous)
			got := ClassifyWorsening(tt.current, tt.previous, pct, cur, prev)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, ClassifyWorsening(tt.current, tt.previous, pct, cur, prev), "classification must be idempotent")
		})
	}
}

func TestLatestTwo(t *testing.T) {
	t.Run("insufficient history", func(t *testing.T) {
		_, _, err := LatestTwo(history(0, 100))
		assert.ErrorIs(t, err, domain.ErrInsufficientHistory)

		_, _, err = LatestTwo(nil)
		assert.ErrorIs(t, err, domain.ErrInsufficientHistory)
	})

	t.Run("unordered input", func(t *testing.T) {
		cur, prev, err := LatestTwo(history(180, 220, 0, 380, 90, 250))
		require.NoError(t, err)
		assert.Equal(t, 380.0, cur.Value)
		assert.Equal(t, 250.0, prev.Value)
	})

	t.Run("same date keeps later listed as current", func(t *testing.T) {
		cur, prev, err := LatestTwo(history(30, 50, 0, 80, 0, 95))
		require.NoError(t, err)
		assert.Equal(t, 95.0, cur.Value)
		assert.Equal(t, 80.0, prev.Value)
	})

	t.Run("does not reorder caller slice", func(t *testing.T) {
		in := history(0, 380, 90, 250)
		_, _, err := LatestTwo(in)
		require.NoError(t, err)
		assert.Equal(t, 380.0, in[0].Value)
	})
}

func TestTrendAnalyzer_Analyze(t *testing.T) {
	analyzer := NewTrendAnalyzer(testLogger())

	t.Run("poor adherence scenario", func(t *testing.T) {
		p := scenarioPoorAdherence()
		trend, err := analyzer.Analyze(&p)
		require.NoError(t, err)

		assert.Equal(t, "TEST001", trend.PatientID)
		assert.Equal(t, 380.0, trend.CurrentValue)
		assert.Equal(t, 250.0, trend.PreviousValue)
		assert.InDelta(t, 52.0, trend.PercentChange, 0.1)
		assert.Equal(t, 90, trend.DaysBetween)
		assert.Equal(t, domain.MICROALBUMINURIA, trend.PreviousCategory)
		assert.Equal(t, domain.MACROALBUMINURIA, trend.CurrentCategory)
		// 380 mg/g crosses into A3, which outranks the moderate percent tier.
		assert.Equal(t, domain.CATEGORY_PROGRESSION, trend.Level)
		assert.True(t, trend.IsWorsening)
	})

	t.Run("mild worsening", func(t *testing.T) {
		p := scenarioMildAdherent()
		trend, err := analyzer.Analyze(&p)
		require.NoError(t, err)
		assert.Equal(t, domain.MILD_WORSENING, trend.Level)
		assert.InDelta(t, 33.3, trend.PercentChange, 0.1)
		assert.False(t, trend.CategoryChanged())
	})

	t.Run("improving", func(t *testing.T) {
		p := domain.PatientSnapshot{ID: "P1", UACRHistory: history(0, 40, 90, 80)}
		trend, err := analyzer.Analyze(&p)
		require.NoError(t, err)
		assert.Equal(t, domain.NO_CHANGE, trend.Level)
		assert.False(t, trend.IsWorsening)
	})

	t.Run("zero baseline", func(t *testing.T) {
		p := domain.PatientSnapshot{ID: "P2", UACRHistory: history(0, 40, 90, 0)}
		_, err := analyzer.Analyze(&p)
		assert.ErrorIs(t, err, domain.ErrZeroBaseline)
		assert.True(t, domain.IsSkippable(err))
	})

	t.Run("single reading", func(t *testing.T) {
		p := domain.PatientSnapshot{ID: "P3", UACRHistory: history(0, 40)}
		_, err := analyzer.Analyze(&p)
		assert.ErrorIs(t, err, domain.ErrInsufficientHistory)
	})

	t.Run("days between is absolute", func(t *testing.T) {
		p := domain.PatientSnapshot{ID: "P4", UACRHistory: []domain.Reading{
			{Date: domain.NewDate(2025, time.January, 1), Value: 50},
			{Date: domain.NewDate(2025, time.March, 2), Value: 90},
		}}
		trend, err := analyzer.Analyze(&p)
		require.NoError(t, err)
		assert.Equal(t, 60, trend.DaysBetween)
	})
}
