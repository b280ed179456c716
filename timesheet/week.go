package timesheet

import (
	"time"
)

// =============================================================================
// WEEK - Monday-aligned 7-day window
// =============================================================================

// Week is a normalized timesheet window: Start is Monday 00:00 UTC, End is
// the following Sunday 00:00 UTC. Day boundaries, not instants.
type Week struct {
	Start time.Time
	End   time.Time
}

// WeekOf normalizes any timestamp to the Monday-aligned week containing it.
func WeekOf(t time.Time) Week {
	day := DayStart(t)
	// time.Weekday has Sunday == 0; shift so Monday == 0.
	offset := (int(day.Weekday()) + 6) % 7
	start := day.AddDate(0, 0, -offset)
	return Week{Start: start, End: start.AddDate(0, 0, 6)}
}

// Contains reports whether the given day falls inside the week window.
func (w Week) Contains(t time.Time) bool {
	d := DayStart(t)
	return !d.Before(w.Start) && !d.After(w.End)
}

func (w Week) String() string { return w.Start.Format("2006-01-02") }

// =============================================================================
// DAY BOUNDS
// =============================================================================

// DayStart truncates a timestamp to its UTC day boundary.
func DayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DayEnd returns the last instant of the calendar day containing t.
func DayEnd(t time.Time) time.Time {
	return DayStart(t).Add(24*time.Hour - time.Nanosecond)
}

// SameDay reports whether two timestamps fall on the same UTC calendar day.
func SameDay(a, b time.Time) bool {
	return DayStart(a).Equal(DayStart(b))
}
