// Package schedule holds the queue of delayed posts and the time-expression
// parser that feeds it.
package schedule

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Location is the fixed zone all time expressions are interpreted in. The
// admin audience lives in UTC+3; stored times are always UTC.
var Location = time.FixedZone("UTC+3", 3*60*60)

var (
	relativeRe = regexp.MustCompile(`^(\d+)([mhd])$`)
	clockRe    = regexp.MustCompile(`^(\d{1,2}):(\d{2})(am|pm)?$`)
)

// ParseTime turns a user-entered time expression into an absolute UTC time.
//
// Supported forms:
//   - relative offsets: "10m", "2h", "1d"
//   - a clock time: "9:00", "1:30pm" — today in Location, rolled forward a
//     day when already past
//   - date and time: "9/28/2025 1:30 pm" or "2025-09-28 13:30" — rejected
//     when not in the future
func ParseTime(input string, now time.Time) (time.Time, error) {
	expr := strings.ToLower(strings.TrimSpace(input))
	if expr == "" {
		return time.Time{}, errors.New("empty time expression")
	}

	if m := relativeRe.FindStringSubmatch(expr); m != nil {
		return parseRelative(m, now)
	}

	fields := strings.Fields(expr)
	// Fold a trailing standalone am/pm into the clock token.
	if n := len(fields); n >= 2 && (fields[n-1] == "am" || fields[n-1] == "pm") {
		fields = append(fields[:n-2], fields[n-2]+fields[n-1])
	}

	switch len(fields) {
	case 1:
		return parseClockToday(fields[0], now)
	case 2:
		return parseDated(fields[0], fields[1], now)
	default:
		return time.Time{}, fmt.Errorf("unrecognized time expression %q", input)
	}
}

func parseRelative(m []string, now time.Time) (time.Time, error) {
	n, err := strconv.Atoi(m[1])
	if err != nil || n == 0 {
		return time.Time{}, fmt.Errorf("offset must be a positive number, got %q", m[1])
	}
	var unit time.Duration
	switch m[2] {
	case "m":
		unit = time.Minute
	case "h":
		unit = time.Hour
	case "d":
		unit = 24 * time.Hour
	}
	return now.Add(time.Duration(n) * unit).UTC(), nil
}

func parseClockToday(token string, now time.Time) (time.Time, error) {
	hour, minute, err := parseClock(token)
	if err != nil {
		return time.Time{}, err
	}

	local := now.In(Location)
	at := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, Location)
	if !at.After(now) {
		at = at.AddDate(0, 0, 1)
	}
	return at.UTC(), nil
}

func parseDated(dateToken, clockToken string, now time.Time) (time.Time, error) {
	var day time.Time
	var err error
	for _, layout := range []string{"1/2/2006", "2006-01-02"} {
		day, err = time.ParseInLocation(layout, dateToken, Location)
		if err == nil {
			break
		}
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognized date %q, want M/D/YYYY or YYYY-MM-DD", dateToken)
	}

	hour, minute, err := parseClock(clockToken)
	if err != nil {
		return time.Time{}, err
	}

	at := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, Location)
	if !at.After(now) {
		return time.Time{}, fmt.Errorf("%s is in the past", FormatLocal(at))
	}
	return at.UTC(), nil
}

func parseClock(token string) (hour, minute int, err error) {
	m := clockRe.FindStringSubmatch(token)
	if m == nil {
		return 0, 0, fmt.Errorf("unrecognized time %q, want HH:MM or H:MMam/pm", token)
	}
	hour, _ = strconv.Atoi(m[1])
	minute, _ = strconv.Atoi(m[2])
	if minute > 59 {
		return 0, 0, fmt.Errorf("minute out of range in %q", token)
	}

	switch m[3] {
	case "":
		if hour > 23 {
			return 0, 0, fmt.Errorf("hour out of range in %q", token)
		}
	case "am", "pm":
		if hour < 1 || hour > 12 {
			return 0, 0, fmt.Errorf("hour out of range in %q", token)
		}
		if hour == 12 {
			hour = 0
		}
		if m[3] == "pm" {
			hour += 12
		}
	}
	return hour, minute, nil
}

// FormatLocal renders a stored UTC time in the admin's zone for display.
func FormatLocal(t time.Time) string {
	return t.In(Location).Format("2006-01-02 15:04 MST")
}
