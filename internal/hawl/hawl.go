// Package hawl provides pure date arithmetic over the lunar-year observation
// window. Nothing here is persisted; all values derive from the clock and the
// record's own dates. Inputs are normalized to UTC calendar days, so results
// do not depend on the caller's time zone or time of day.
package hawl

import "time"

// Days is the length of the Hawl observation window (a lunar year).
const Days = 354

// dateUTC truncates t to its UTC calendar day.
func dateUTC(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// CompletionDate returns the date the Hawl window closes for a given start.
// Computed once at record creation and never recomputed afterwards.
func CompletionDate(start time.Time) time.Time {
	return dateUTC(start).AddDate(0, 0, Days)
}

// DaysElapsed returns the whole calendar days elapsed since the Hawl start,
// clamped to zero for starts in the future.
func DaysElapsed(now, start time.Time) int {
	d := int(dateUTC(now).Sub(dateUTC(start)) / (24 * time.Hour))
	if d < 0 {
		return 0
	}
	return d
}

// DaysRemaining returns the days left in the window, never negative.
func DaysRemaining(now, start time.Time) int {
	r := Days - DaysElapsed(now, start)
	if r < 0 {
		return 0
	}
	return r
}

// IsComplete reports whether the window has closed.
func IsComplete(now, completion time.Time) bool {
	return !dateUTC(now).Before(dateUTC(completion))
}
