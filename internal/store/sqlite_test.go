package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uacr-monitor/internal/domain"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "nested", "alerts.db"), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore_SaveAndGet(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()
	alert := sampleAlert("ALERT-TEST002-20250630140000", "TEST002", 0)

	require.NoError(t, s.Save(ctx, alert))

	got, err := s.Get(ctx, alert.ID)
	require.NoError(t, err)
	assert.Equal(t, alert.ID, got.ID)
	assert.Equal(t, alert.Trend.CurrentDate, got.Trend.CurrentDate)
	assert.Equal(t, alert.Adherence.PDC, got.Adherence.PDC)
	assert.Equal(t, alert.Rationale, got.Rationale)
	assert.True(t, alert.CreatedAt.Equal(got.CreatedAt))
}

func TestSQLiteStore_SaveReplaces(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()
	alert := sampleAlert("A1", "TEST002", 0)
	require.NoError(t, s.Save(ctx, alert))

	alert.Severity = domain.CRITICAL
	require.NoError(t, s.Save(ctx, alert))

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	got, err := s.Get(ctx, "A1")
	require.NoError(t, err)
	assert.Equal(t, domain.CRITICAL, got.Severity)
}

func TestSQLiteStore_GetMissing(t *testing.T) {
	s := newTestSQLiteStore(t)

	_, err := s.Get(context.Background(), "nope")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestSQLiteStore_SaveRejectsMissingID(t *testing.T) {
	s := newTestSQLiteStore(t)

	err := s.Save(context.Background(), sampleAlert("", "TEST002", 0))
	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "alert_id", verr.Field)
}

func TestSQLiteStore_Listing(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveAll(ctx, []*domain.ClinicalAlert{
		sampleAlert("A1", "P1", 0),
		sampleAlert("A2", "P2", time.Minute),
		sampleAlert("A3", "P1", 2*time.Minute),
	}))

	t.Run("by patient newest first", func(t *testing.T) {
		alerts, err := s.ListByPatient(ctx, "P1")
		require.NoError(t, err)
		require.Len(t, alerts, 2)
		assert.Equal(t, "A3", alerts[0].ID)
		assert.Equal(t, "A1", alerts[1].ID)
	})

	t.Run("unknown patient is empty not nil", func(t *testing.T) {
		alerts, err := s.ListByPatient(ctx, "P9")
		require.NoError(t, err)
		assert.NotNil(t, alerts)
		assert.Empty(t, alerts)
	})

	t.Run("pagination", func(t *testing.T) {
		page, err := s.List(ctx, 2, 1)
		require.NoError(t, err)
		require.Len(t, page, 2)
		assert.Equal(t, "A2", page[0].ID)
		assert.Equal(t, "A1", page[1].ID)
	})

	t.Run("count", func(t *testing.T) {
		count, err := s.Count(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 3, count)
	})
}

func TestSQLiteStore_SaveAllIsAtomic(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	err := s.SaveAll(ctx, []*domain.ClinicalAlert{
		sampleAlert("A1", "P1", 0),
		sampleAlert("", "P2", 0),
	})
	require.Error(t, err)

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestSQLiteStore_ExportJSON(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveAll(ctx, []*domain.ClinicalAlert{
		sampleAlert("A1", "P1", 0),
		sampleAlert("A2", "P2", time.Minute),
	}))

	var buf bytes.Buffer
	require.NoError(t, s.ExportJSON(ctx, &buf))

	var doc struct {
		Metadata struct {
			TotalAlerts   int    `json:"total_alerts"`
			SystemVersion string `json:"system_version"`
		} `json:"metadata"`
		Alerts []struct {
			ID        string `json:"alert_id"`
			Rationale string `json:"clinical_rationale"`
		} `json:"alerts"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, 2, doc.Metadata.TotalAlerts)
	assert.Equal(t, "1.0.0", doc.Metadata.SystemVersion)
	require.Len(t, doc.Alerts, 2)
	assert.Equal(t, "A2", doc.Alerts[0].ID)
	assert.Equal(t, "Despite good adherence, uACR is rising.", doc.Alerts[0].Rationale)
}

func TestSQLiteStore_InMemory(t *testing.T) {
	s, err := NewSQLiteStore(":memory:", testLogger())
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Save(ctx, sampleAlert("A1", "P1", 0)))
	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}
