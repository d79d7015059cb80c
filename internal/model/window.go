package model

import "time"

// MonthWindow is the [Start, End] day range of a displayed month. Both
// bounds are midnight of their day.
type MonthWindow struct {
	Start time.Time
	End   time.Time
}

// WindowFor returns the window of the month containing cursor, in the
// cursor's location.
func WindowFor(cursor time.Time) MonthWindow {
	start := time.Date(cursor.Year(), cursor.Month(), 1, 0, 0, 0, 0, cursor.Location())
	return MonthWindow{
		Start: start,
		End:   start.AddDate(0, 1, -1),
	}
}

// Contains reports whether day d (any time of day) falls inside the window.
func (w MonthWindow) Contains(d time.Time) bool {
	day := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, w.Start.Location())
	return !day.Before(w.Start) && !day.After(w.End)
}

// GridStart is the Sunday on or before the first of the month.
func (w MonthWindow) GridStart() time.Time {
	return w.Start.AddDate(0, 0, -int(w.Start.Weekday()))
}

// GridEnd is the Saturday on or after the last day of the month.
func (w MonthWindow) GridEnd() time.Time {
	return w.End.AddDate(0, 0, int(time.Saturday-w.End.Weekday()))
}

// Prev returns the window of the previous month.
func (w MonthWindow) Prev() MonthWindow {
	return WindowFor(w.Start.AddDate(0, -1, 0))
}

// Next returns the window of the following month.
func (w MonthWindow) Next() MonthWindow {
	return WindowFor(w.Start.AddDate(0, 1, 0))
}

// Label is e.g. "March 2024".
func (w MonthWindow) Label() string {
	return w.Start.Format("January 2006")
}
