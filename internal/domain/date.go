package domain

import "time"

// DateLayout is the ISO calendar-day layout used across ledgers and reports.
const DateLayout = "2006-01-02"

// Day truncates t to its calendar day, expressed at UTC midnight so that day
// arithmetic is free of DST shifts.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DayPtr returns a pointer to the calendar day of t.
func DayPtr(t time.Time) *time.Time {
	d := Day(t)
	return &d
}

// DaysBetween returns the number of whole days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(Day(b).Sub(Day(a)).Hours() / 24)
}

// FormatDate renders an optional date, or "" when absent.
func FormatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(DateLayout)
}
