// Package decay implements the weekly windowed-counter reset for listing
// view counts, with an append-only audit log guarding against double runs.
package decay

import "time"

// Clock abstracts time for the scheduler so window boundaries can be tested
// without waiting for Mondays.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall-clock Clock used in production.
type SystemClock struct{}

// Now returns the current wall-clock time.
func (SystemClock) Now() time.Time { return time.Now() }

// windowStart truncates t to the start of its decay window: Monday 00:00 UTC
// of the calendar week containing t.
func windowStart(t time.Time) time.Time {
	t = t.UTC()
	// time.Weekday counts Sunday as 0; shift so Monday is 0.
	days := (int(t.Weekday()) + 6) % 7
	y, m, d := t.AddDate(0, 0, -days).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
