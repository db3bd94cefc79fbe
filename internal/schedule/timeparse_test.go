package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// now is 2025-09-28 10:00 in the admin's zone for every case below.
var parseNow = time.Date(2025, 9, 28, 10, 0, 0, 0, Location)

func TestParseTimeRelative(t *testing.T) {
	cases := []struct {
		input string
		want  time.Time
	}{
		{"10m", parseNow.Add(10 * time.Minute)},
		{"2h", parseNow.Add(2 * time.Hour)},
		{"1d", parseNow.Add(24 * time.Hour)},
		{" 45M ", parseNow.Add(45 * time.Minute)},
	}
	for _, tc := range cases {
		got, err := ParseTime(tc.input, parseNow)
		require.NoError(t, err, "input %q", tc.input)
		assert.True(t, tc.want.Equal(got), "input %q: want %v, got %v", tc.input, tc.want, got)
		assert.Equal(t, time.UTC, got.Location(), "stored times are UTC")
	}
}

func TestParseTimeClockToday(t *testing.T) {
	// 15:00 is still ahead of 10:00, so it lands today.
	got, err := ParseTime("15:00", parseNow)
	require.NoError(t, err)
	want := time.Date(2025, 9, 28, 15, 0, 0, 0, Location)
	assert.True(t, want.Equal(got))

	got, err = ParseTime("3:30pm", parseNow)
	require.NoError(t, err)
	want = time.Date(2025, 9, 28, 15, 30, 0, 0, Location)
	assert.True(t, want.Equal(got))
}

func TestParseTimeClockRollsForward(t *testing.T) {
	// 9:00 already passed today; it means tomorrow morning.
	got, err := ParseTime("9:00", parseNow)
	require.NoError(t, err)
	want := time.Date(2025, 9, 29, 9, 0, 0, 0, Location)
	assert.True(t, want.Equal(got))

	// Exactly now is not in the future either.
	got, err = ParseTime("10:00", parseNow)
	require.NoError(t, err)
	want = time.Date(2025, 9, 29, 10, 0, 0, 0, Location)
	assert.True(t, want.Equal(got))
}

func TestParseTimeDated(t *testing.T) {
	got, err := ParseTime("9/28/2025 1:30 pm", parseNow)
	require.NoError(t, err)
	want := time.Date(2025, 9, 28, 13, 30, 0, 0, Location)
	assert.True(t, want.Equal(got))

	got, err = ParseTime("2025-10-01 08:15", parseNow)
	require.NoError(t, err)
	want = time.Date(2025, 10, 1, 8, 15, 0, 0, Location)
	assert.True(t, want.Equal(got))
}

func TestParseTimeDatedInPast(t *testing.T) {
	// A dated expression never rolls forward; it is rejected instead.
	_, err := ParseTime("9/28/2025 9:00", parseNow)
	assert.Error(t, err)

	_, err = ParseTime("9/27/2025 1:30 pm", parseNow)
	assert.Error(t, err)
}

func TestParseTimeMidnightNoon(t *testing.T) {
	got, err := ParseTime("9/29/2025 12:00 am", parseNow)
	require.NoError(t, err)
	want := time.Date(2025, 9, 29, 0, 0, 0, 0, Location)
	assert.True(t, want.Equal(got))

	got, err = ParseTime("9/29/2025 12:00 pm", parseNow)
	require.NoError(t, err)
	want = time.Date(2025, 9, 29, 12, 0, 0, 0, Location)
	assert.True(t, want.Equal(got))
}

func TestParseTimeInvalid(t *testing.T) {
	for _, input := range []string{
		"", "abc", "10x", "0m",
		"25:00", "10:75", "13:00pm", "0:30am",
		"tomorrow 9:00", "9/28 1:30", "1:30 xm",
	} {
		_, err := ParseTime(input, parseNow)
		assert.Error(t, err, "input %q", input)
	}
}

func TestFormatLocal(t *testing.T) {
	at := time.Date(2025, 9, 28, 6, 30, 0, 0, time.UTC)
	assert.Equal(t, "2025-09-28 09:30 UTC+3", FormatLocal(at))
}
