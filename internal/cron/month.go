package cron

import "time"

// addCalendarMonth advances t by one calendar month, clamping the day to
// the target month's length: Jan 31 becomes Feb 28 (or 29), not Mar 2.
// time.AddDate would overflow into the next month on short months, which
// would slip the monthly reset boundary.
func addCalendarMonth(t time.Time) time.Time {
	year, month, day := t.Date()
	first := time.Date(year, month+1, 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if last := daysInMonth(first.Year(), first.Month()); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
