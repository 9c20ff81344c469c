package timeparse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveWeekday(t *testing.T) {
	cases := []struct {
		label string
		day   time.Weekday
	}{
		{"Wednesday afternoon", time.Wednesday},
		{"  wednesday  ", time.Wednesday},
		{"WED", time.Wednesday},
		{"Tue 11am", time.Tuesday},
		{"thursday morning", time.Thursday},
		{"next Fri please", time.Friday},
		{"sun", time.Sunday},
		{"Saturday,", time.Saturday},
	}
	for _, tc := range cases {
		res := Resolve(tc.label)
		require.True(t, res.HasWeekday, "label %q", tc.label)
		assert.Equal(t, tc.day, res.Weekday, "label %q", tc.label)
	}
}

func TestResolveNoWeekday(t *testing.T) {
	for _, label := range []string{"", "afternoon", "sometime next week", "11am"} {
		res := Resolve(label)
		assert.False(t, res.HasWeekday, "label %q", label)
	}
}

func TestResolveTimeOfDay(t *testing.T) {
	cases := []struct {
		label string
		want  string
	}{
		{"Wednesday afternoon", "3:00 PM"},
		{"wednesday AFTERNOON", "3:00 PM"},
		{"Thursday morning", "10:00 AM"},
		{"Tue 11am", "11:00 AM"},
		{"tue 11:30am", "11:30 AM"},
		{"fri 3:15 pm", "3:15 PM"},
		{"mon 12pm", "12:00 PM"},
		{"mon 12am", "12:00 AM"},
		{"wed 9", "9:00"},
	}
	for _, tc := range cases {
		res := Resolve(tc.label)
		require.NotNil(t, res.Clock, "label %q", tc.label)
		assert.Equal(t, tc.want, res.Clock.String(), "label %q", tc.label)
	}
}

func TestResolveNoTimeOfDay(t *testing.T) {
	res := Resolve("Mon")
	require.True(t, res.HasWeekday)
	assert.Nil(t, res.Clock)
}

// A day-part word wins over an explicit clock time in the same label.
func TestResolveDayPartBeatsClock(t *testing.T) {
	res := Resolve("wed 9am afternoon")
	require.NotNil(t, res.Clock)
	assert.Equal(t, "3:00 PM", res.Clock.String())
}

func TestResolveDeterministic(t *testing.T) {
	a := Resolve("Wednesday afternoon")
	b := Resolve("Wednesday afternoon")
	assert.Equal(t, a, b)
}

func TestNextOccurrence(t *testing.T) {
	// Monday 2025-06-02 09:00 local.
	now := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	require.Equal(t, time.Monday, now.Weekday())

	got := NextOccurrence(time.Wednesday, Clock{Hour: 3, Minute: 0, Meridiem: "PM"}, now)
	assert.Equal(t, time.Date(2025, 6, 4, 15, 0, 0, 0, time.UTC), got)

	got = NextOccurrence(time.Friday, DefaultClock, now)
	assert.Equal(t, time.Date(2025, 6, 6, 10, 0, 0, 0, time.UTC), got)
}

// Today being the target weekday pushes the occurrence a full week out.
func TestNextOccurrenceSameWeekday(t *testing.T) {
	now := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC) // Monday
	got := NextOccurrence(time.Monday, Clock{Hour: 8, Minute: 0, Meridiem: "AM"}, now)
	assert.Equal(t, time.Date(2025, 6, 9, 8, 0, 0, 0, time.UTC), got)
}

func TestNextOccurrenceNormalization(t *testing.T) {
	now := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC) // Monday

	got := NextOccurrence(time.Tuesday, Clock{Hour: 12, Minute: 0, Meridiem: "AM"}, now)
	assert.Equal(t, 0, got.Hour(), "12 AM is midnight")

	got = NextOccurrence(time.Tuesday, Clock{Hour: 12, Minute: 0, Meridiem: "PM"}, now)
	assert.Equal(t, 12, got.Hour(), "12 PM is noon")

	got = NextOccurrence(time.Tuesday, Clock{Hour: 4, Minute: 30, Meridiem: "PM"}, now)
	assert.Equal(t, 16, got.Hour())
	assert.Equal(t, 30, got.Minute())

	// Missing meridiem reads as AM.
	got = NextOccurrence(time.Tuesday, Clock{Hour: 9, Minute: 0}, now)
	assert.Equal(t, 9, got.Hour())
}

func TestNextOccurrenceIdempotent(t *testing.T) {
	now := time.Date(2025, 6, 5, 23, 59, 59, 123, time.UTC)
	c := Clock{Hour: 3, Minute: 0, Meridiem: "PM"}
	first := NextOccurrence(time.Wednesday, c, now)
	second := NextOccurrence(time.Wednesday, c, now)
	assert.Equal(t, first, second)
	assert.Zero(t, first.Second())
	assert.Zero(t, first.Nanosecond())
}

func TestNextOccurrenceKeepsLocation(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	now := time.Date(2025, 6, 2, 9, 0, 0, 0, loc)
	got := NextOccurrence(time.Wednesday, Clock{Hour: 3, Minute: 0, Meridiem: "PM"}, now)
	assert.Equal(t, loc, got.Location())
}
