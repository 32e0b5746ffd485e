package state

import (
	"fmt"
	"time"
)

// DayKey returns the UTC calendar day of t as "YYYY-MM-DD", the unit every
// budget and review window keys off.
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// WeekKey returns the UTC ISO-8601 week of t as "YYYY-Www".
func WeekKey(t time.Time) string {
	y, w := t.UTC().ISOWeek()
	return fmt.Sprintf("%d-W%02d", y, w)
}
