package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClockTime(t *testing.T) {
	ct, err := ParseClockTime("08:05")
	require.NoError(t, err)
	assert.Equal(t, ClockTime{Hour: 8, Minute: 5}, ct)
	assert.Equal(t, "08:05", ct.String())

	for _, bad := range []string{"8:05", "24:00", "12:60", "", "12-30", "12:3"} {
		_, err := ParseClockTime(bad)
		assert.ErrorIs(t, err, ErrInvalidClockTime, bad)
	}
}

func TestStartOfDayAndAt(t *testing.T) {
	ts := time.Date(2025, 1, 1, 20, 30, 0, 0, time.UTC)
	day := StartOfDay(ts, time.UTC)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), day)

	got := At(AddDays(day, 1), ClockTime{Hour: 8})
	assert.Equal(t, time.Date(2025, 1, 2, 8, 0, 0, 0, time.UTC), got)
}

func TestStartOfDay_UsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC-3", -3*60*60)
	// 01:00 UTC del 2 de enero es 22:00 del 1 de enero en UTC-3
	ts := time.Date(2025, 1, 2, 1, 0, 0, 0, time.UTC)
	day := StartOfDay(ts, loc)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, loc), day)
}

func TestMinutesBetween_Signed(t *testing.T) {
	a := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, 60, MinutesBetween(a, a.Add(time.Hour)))
	assert.Equal(t, -30, MinutesBetween(a, a.Add(-30*time.Minute)))
	assert.Equal(t, 0, MinutesBetween(a, a.Add(59*time.Second)))
}

func TestEarliest(t *testing.T) {
	a := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	b := a.Add(time.Hour)

	got := Earliest(nil, b)
	require.NotNil(t, got)
	got = Earliest(got, a)
	assert.Equal(t, a, *got)
	got = Earliest(got, b)
	assert.Equal(t, a, *got)
}
