package shift

import (
	"fmt"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/pkg/validator"
)

const minutesPerDay = 24 * 60

// ClockTime is a local wall-clock time of day.
type ClockTime struct {
	Hour   int
	Minute int
}

func ParseClockTime(s string) (ClockTime, error) {
	if !validator.IsValidClockTime(s) {
		return ClockTime{}, fmt.Errorf("invalid clock time %q", s)
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return ClockTime{}, fmt.Errorf("invalid clock time %q: %w", s, err)
	}
	return ClockTime{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// MustClockTime panics on malformed input; for literals only.
func MustClockTime(s string) ClockTime {
	c, err := ParseClockTime(s)
	if err != nil {
		panic(err)
	}
	return c
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// Minutes since local midnight.
func (c ClockTime) Minutes() int {
	return c.Hour*60 + c.Minute
}

type Shift struct {
	ID                  string
	BranchID            string
	Name                string
	Timezone            string
	WorkDays            []time.Weekday
	StartTime           ClockTime
	EndTime             ClockTime
	GracePeriodMinutes  int
	LateAfterMinutes    int
	HalfDayAfterMinutes int
	OTEnabled           bool
	MinOTMinutes        int
	RoundOTTo           int
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// IsOvernight reports whether the shift ends on the calendar day after it starts.
func (s Shift) IsOvernight() bool {
	return s.EndTime.Minutes() < s.StartTime.Minutes()
}

// ExpectedMinutes is the nominal shift length, ignoring DST transitions.
func (s Shift) ExpectedMinutes() int {
	d := s.EndTime.Minutes() - s.StartTime.Minutes()
	if d <= 0 {
		d += minutesPerDay
	}
	return d
}

func (s Shift) WorksOn(wd time.Weekday) bool {
	for _, d := range s.WorkDays {
		if d == wd {
			return true
		}
	}
	return false
}

func (s Shift) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load shift time zone %q: %w", s.Timezone, err)
	}
	return loc, nil
}

// CheckInvariants validates the threshold ordering and calendar fields.
func (s Shift) CheckInvariants() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(s.Name) {
		errs.Add("name", "name is required")
	}
	if validator.IsEmpty(s.BranchID) {
		errs.Add("branch_id", "branch_id is required")
	}
	if !validator.IsValidTimezone(s.Timezone) {
		errs.Add("timezone", "timezone must be a valid IANA time zone")
	}
	if len(s.WorkDays) == 0 {
		errs.Add("work_days", "at least one work day is required")
	}
	seen := make(map[time.Weekday]bool, len(s.WorkDays))
	for _, d := range s.WorkDays {
		if d < time.Sunday || d > time.Saturday {
			errs.Add("work_days", "work days must be between 0 (Sunday) and 6 (Saturday)")
			break
		}
		if seen[d] {
			errs.Add("work_days", "work days must not repeat")
			break
		}
		seen[d] = true
	}
	if s.StartTime == s.EndTime {
		errs.Add("end_time", "end_time must differ from start_time")
	}
	if s.GracePeriodMinutes < 0 {
		errs.Add("grace_period_minutes", "grace_period_minutes must not be negative")
	}
	if s.LateAfterMinutes < s.GracePeriodMinutes {
		errs.Add("late_after_minutes", "late_after_minutes must be greater than or equal to grace_period_minutes")
	}
	if s.HalfDayAfterMinutes <= s.LateAfterMinutes {
		errs.Add("half_day_after_minutes", "half_day_after_minutes must be greater than late_after_minutes")
	}
	if s.MinOTMinutes < 0 {
		errs.Add("min_ot_minutes", "min_ot_minutes must not be negative")
	}
	if s.RoundOTTo < 0 {
		errs.Add("round_ot_to", "round_ot_to must not be negative")
	}

	return errs.Err()
}

// Assignment binds a staff member to a shift from StartDate through EndDate (inclusive).
// EndDate is nil while the assignment is active.
type Assignment struct {
	ID        string
	StaffID   string
	ShiftID   string
	StartDate time.Time
	EndDate   *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (a Assignment) IsActive() bool {
	return a.EndDate == nil
}

// Covers reports whether the calendar date falls inside the assignment.
func (a Assignment) Covers(date time.Time) bool {
	if date.Before(a.StartDate) {
		return false
	}
	return a.EndDate == nil || !date.After(*a.EndDate)
}

// OffDate marks a date on which the shift does not run.
type OffDate struct {
	ID        string
	ShiftID   string
	Date      time.Time
	Reason    *string
	CreatedAt time.Time
}
