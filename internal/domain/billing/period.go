package billing

import "time"

// Period is a calendar-month billing window. End is the last instant of the
// month at microsecond precision, the resolution Postgres timestamps keep.
type Period struct {
	Start time.Time
	End   time.Time
}

// MonthPeriod returns the UTC calendar month containing t.
func MonthPeriod(t time.Time) Period {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return Period{
		Start: start,
		End:   start.AddDate(0, 1, 0).Add(-time.Microsecond),
	}
}

// Contains reports whether t falls inside the period, both ends inclusive.
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && !t.After(p.End)
}
