package library

import "time"

// Clock supplies "today" so circulation dates are testable.
type Clock interface {
	Today() time.Time
}

// SystemClock is the production Clock, reporting the local calendar day.
type SystemClock struct{}

// Today returns the current date truncated to midnight local time.
func (SystemClock) Today() time.Time {
	return Midnight(time.Now())
}

// Midnight truncates t to the start of its calendar day.
func Midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// OverdueDays counts whole calendar days between due and eval, only when eval
// is strictly after due; otherwise 0. Only the Date() components matter, so a
// due date stored as UTC midnight and an evaluation date in the local zone
// compare correctly.
func OverdueDays(due, eval time.Time) int {
	days := int(civilDate(eval).Sub(civilDate(due)).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// civilDate maps t to its calendar date in a single reference location.
func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
