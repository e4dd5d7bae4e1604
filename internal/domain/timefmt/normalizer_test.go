package timefmt

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/erp/mfgerp/internal/domain/shared"
)

func kolkata() Settings {
	return Settings{Timezone: "Asia/Kolkata", DateFormat: "DD-MM-YYYY", TimeStyle: TimeStyle24Hour}
}

func TestFormat_ShiftsIntoTenantZone(t *testing.T) {
	n := NewNormalizer(nil)

	got := n.Format(context.Background(), "2024-06-01T10:00:00Z", kolkata())

	require.NotNil(t, got)
	assert.Equal(t, "01-06-2024 15:30", *got)
}

func TestFormat_AcceptedInputs(t *testing.T) {
	n := NewNormalizer(nil)
	instant := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	inputs := map[string]any{
		"time.Time":  instant,
		"*time.Time": &instant,
		"RFC3339":    "2024-06-01T10:00:00Z",
		"offset":     "2024-06-01T12:00:00+02:00",
		"sql text":   "2024-06-01 10:00:00",
	}
	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			got := n.Format(context.Background(), in, kolkata())
			require.NotNil(t, got)
			assert.Equal(t, "01-06-2024 15:30", *got)
		})
	}
}

func TestFormat_NilInNilOut(t *testing.T) {
	n := NewNormalizer(nil)
	var nilTime *time.Time

	assert.Nil(t, n.Format(context.Background(), nil, kolkata()))
	assert.Nil(t, n.Format(context.Background(), nilTime, kolkata()))
	assert.Nil(t, n.Format(context.Background(), time.Time{}, kolkata()))
	assert.Nil(t, n.Format(context.Background(), "", kolkata()))
}

func TestFormat_Deterministic(t *testing.T) {
	n := NewNormalizer(nil)
	s := Settings{Timezone: "America/New_York", DateFormat: "MMM D, YYYY", TimeStyle: TimeStyle12Hour}
	first := n.Format(context.Background(), "2024-01-15T17:05:00Z", s)
	second := n.Format(context.Background(), "2024-01-15T17:05:00Z", s)

	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.Equal(t, *first, *second)
	assert.Equal(t, "Jan 15, 2024 12:05 PM", *first)
}

func TestFormat_DoesNotMutateInput(t *testing.T) {
	n := NewNormalizer(nil)
	instant := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	ptr := &instant

	_ = n.Format(context.Background(), ptr, kolkata())

	assert.Equal(t, time.UTC, ptr.Location())
	assert.Equal(t, 10, ptr.Hour())
}

func TestFormat_FailuresAreLoggedNotRaised(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	n := NewNormalizer(zap.New(core))

	assert.Nil(t, n.Format(context.Background(), "yesterday", kolkata()))
	assert.Nil(t, n.Format(context.Background(), 12345, kolkata()))
	assert.Nil(t, n.Format(context.Background(), "2024-06-01T10:00:00Z",
		Settings{Timezone: "Mars/Olympus", DateFormat: "DD-MM-YYYY"}))

	entries := logs.FilterMessage("timestamp formatting failed").All()
	require.Len(t, entries, 3)
	for _, e := range entries {
		err, ok := e.ContextMap()["error"].(string)
		require.True(t, ok)
		assert.Contains(t, err, shared.ErrFormatting.Message)
	}
}

func TestFormat_DefaultsApply(t *testing.T) {
	n := NewNormalizer(nil)
	got := n.Format(context.Background(), "2024-06-01T22:45:00Z", Settings{})
	require.NotNil(t, got)
	assert.Equal(t, "01-06-2024 22:45", *got)
}

func TestFormatDate(t *testing.T) {
	n := NewNormalizer(nil)
	s := Settings{Timezone: "Asia/Kolkata", DateFormat: "yyyy/mm/dd"}

	// 20:00 UTC is already the next day in Kolkata
	got := n.FormatDate(context.Background(), "2024-06-01T20:00:00Z", s)
	require.NotNil(t, got)
	assert.Equal(t, "2024/06/02", *got)
}

func TestRenderDate_Tokens(t *testing.T) {
	ts := time.Date(2024, 3, 5, 9, 7, 0, 0, time.UTC)
	tests := []struct {
		format string
		want   string
	}{
		{"DD-MM-YYYY", "05-03-2024"},
		{"D/M/YY", "5/3/24"},
		{"MMMM D, YYYY", "March 5, 2024"},
		{"DD MMM YYYY", "05 Mar 2024"},
		{"YYYY-MM-DD", "2024-03-05"},
		{"DD.MM.YYYY", "05.03.2024"},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			assert.Equal(t, tt.want, renderDate(ts, tt.format))
		})
	}
}

func TestRenderTime(t *testing.T) {
	assert.Equal(t, "00:05", renderTime(time.Date(2024, 1, 1, 0, 5, 0, 0, time.UTC), TimeStyle24Hour))
	assert.Equal(t, "12:05 AM", renderTime(time.Date(2024, 1, 1, 0, 5, 0, 0, time.UTC), TimeStyle12Hour))
	assert.Equal(t, "12:30 PM", renderTime(time.Date(2024, 1, 1, 12, 30, 0, 0, time.UTC), TimeStyle12Hour))
	assert.Equal(t, "11:59 PM", renderTime(time.Date(2024, 1, 1, 23, 59, 0, 0, time.UTC), TimeStyle12Hour))
}

func TestSettingsValidate(t *testing.T) {
	require.NoError(t, DefaultSettings().Validate())
	require.NoError(t, kolkata().Validate())

	bad := []Settings{
		{Timezone: "Nowhere/City", DateFormat: "DD-MM-YYYY", TimeStyle: TimeStyle24Hour},
		{Timezone: "UTC", DateFormat: "--", TimeStyle: TimeStyle24Hour},
		{Timezone: "UTC", DateFormat: "DD-MM-YYYY", TimeStyle: "military"},
	}
	for _, s := range bad {
		assert.True(t, errors.Is(s.Validate(), shared.ErrInvalidInput), "%+v", s)
	}
}
