package utils

import (
	"fmt"
	"time"
)

const (
	DateLayout  = "2006-01-02"
	MonthLayout = "2006-01"
)

// DateOf returns the calendar date of t as seen in loc, as midnight UTC.
// Calendar dates are always carried as UTC midnights so they compare and key consistently.
func DateOf(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NormalizeDate drops the time-of-day of a calendar date.
func NormalizeDate(d time.Time) time.Time {
	y, m, day := d.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

func AddDays(d time.Time, n int) time.Time {
	return d.AddDate(0, 0, n)
}

func FormatDate(d time.Time) string {
	return d.Format(DateLayout)
}

func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// MonthOf returns the YYYY-MM payroll month of a calendar date.
func MonthOf(d time.Time) string {
	return d.Format(MonthLayout)
}

// MonthRange parses YYYY-MM and returns [first day, first day of next month).
func MonthRange(month string) (time.Time, time.Time, error) {
	start, err := time.Parse(MonthLayout, month)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid month %q: %w", month, err)
	}
	return start, start.AddDate(0, 1, 0), nil
}

// WholeMinutes truncates d to whole minutes.
func WholeMinutes(d time.Duration) int {
	return int(d / time.Minute)
}

// MaxDate returns the later of two dates.
func MaxDate(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
