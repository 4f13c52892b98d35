package shift

import (
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/pkg/utils"
)

type DayKind string

const (
	DayWork    DayKind = "work"
	DayWeekend DayKind = "weekend"
	DayHoliday DayKind = "holiday"
)

// Window is the expected shift interval for one calendar date, in UTC.
type Window struct {
	Start time.Time
	End   time.Time
}

// Calendar evaluates one shift against calendar dates. It has no side effects.
type Calendar struct {
	shift    Shift
	loc      *time.Location
	offDates map[string]OffDate
}

func NewCalendar(s Shift, offDates []OffDate) (*Calendar, error) {
	loc, err := s.Location()
	if err != nil {
		return nil, err
	}

	off := make(map[string]OffDate, len(offDates))
	for _, o := range offDates {
		off[utils.FormatDate(o.Date)] = o
	}

	return &Calendar{shift: s, loc: loc, offDates: off}, nil
}

func (c *Calendar) Shift() Shift {
	return c.shift
}

func (c *Calendar) Location() *time.Location {
	return c.loc
}

func (c *Calendar) OffDate(date time.Time) (OffDate, bool) {
	o, ok := c.offDates[utils.FormatDate(date)]
	return o, ok
}

// Kind classifies a calendar date. Off dates win over the weekday set.
func (c *Calendar) Kind(date time.Time) DayKind {
	if _, ok := c.OffDate(date); ok {
		return DayHoliday
	}
	if !c.shift.WorksOn(date.Weekday()) {
		return DayWeekend
	}
	return DayWork
}

func (c *Calendar) IsWorkDay(date time.Time) bool {
	return c.Kind(date) == DayWork
}

// Window resolves the shift's wall-clock times on date to UTC instants.
// Overnight shifts end on the following calendar day.
func (c *Calendar) Window(date time.Time) Window {
	y, m, d := date.Date()
	start := time.Date(y, m, d, c.shift.StartTime.Hour, c.shift.StartTime.Minute, 0, 0, c.loc)

	endDay := d
	if c.shift.IsOvernight() {
		endDay++
	}
	end := time.Date(y, m, endDay, c.shift.EndTime.Hour, c.shift.EndTime.Minute, 0, 0, c.loc)

	return Window{Start: start.UTC(), End: end.UTC()}
}

// LocalDate is the calendar date of at in the shift's time zone.
func (c *Calendar) LocalDate(at time.Time) time.Time {
	return utils.DateOf(at, c.loc)
}

// BusinessDate is the date an instant is attributed to. For overnight shifts an
// instant before the previous work day's expected end belongs to that day.
func (c *Calendar) BusinessDate(at time.Time) time.Time {
	date := c.LocalDate(at)
	if !c.shift.IsOvernight() {
		return date
	}

	prev := utils.AddDays(date, -1)
	if c.IsWorkDay(prev) && at.Before(c.Window(prev).End) {
		return prev
	}
	return date
}
