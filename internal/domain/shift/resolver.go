package shift

import (
	"context"
	"fmt"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/pkg/utils"
)

// Resolver loads the calendar governing a staff member, following assignment history.
type Resolver struct {
	shifts      Repository
	offDates    OffDateRepository
	assignments AssignmentRepository
}

func NewResolver(shifts Repository, offDates OffDateRepository, assignments AssignmentRepository) *Resolver {
	return &Resolver{shifts: shifts, offDates: offDates, assignments: assignments}
}

// ForInstant resolves the calendar and business date for an instant, using the
// active assignment first and falling back to the one covering the business date.
func (r *Resolver) ForInstant(ctx context.Context, staffID string, at time.Time) (*Calendar, time.Time, error) {
	active, err := r.assignments.GetActive(ctx, staffID)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("get active assignment: %w", err)
	}
	if active == nil {
		return nil, time.Time{}, ErrNoActiveShift
	}

	cal, err := r.calendarFor(ctx, active.ShiftID, at)
	if err != nil {
		return nil, time.Time{}, err
	}
	date := cal.BusinessDate(at)
	if active.Covers(date) {
		return cal, date, nil
	}

	cal, err = r.ForDate(ctx, staffID, date)
	if err != nil {
		return nil, time.Time{}, err
	}
	return cal, date, nil
}

// ForDate resolves the calendar of the assignment covering date.
func (r *Resolver) ForDate(ctx context.Context, staffID string, date time.Time) (*Calendar, error) {
	a, err := r.assignments.GetForDate(ctx, staffID, date)
	if err != nil {
		return nil, fmt.Errorf("get assignment for date: %w", err)
	}
	if a == nil {
		return nil, ErrNoActiveShift
	}

	s, err := r.shifts.GetByID(ctx, a.ShiftID)
	if err != nil {
		return nil, err
	}
	offDates, err := r.offDates.ListByShift(ctx, s.ID, utils.AddDays(date, -1), utils.AddDays(date, 2))
	if err != nil {
		return nil, fmt.Errorf("list off dates: %w", err)
	}
	return NewCalendar(s, offDates)
}

func (r *Resolver) calendarFor(ctx context.Context, shiftID string, at time.Time) (*Calendar, error) {
	s, err := r.shifts.GetByID(ctx, shiftID)
	if err != nil {
		return nil, err
	}
	loc, err := s.Location()
	if err != nil {
		return nil, err
	}
	date := utils.DateOf(at, loc)
	offDates, err := r.offDates.ListByShift(ctx, s.ID, utils.AddDays(date, -1), utils.AddDays(date, 2))
	if err != nil {
		return nil, fmt.Errorf("list off dates: %w", err)
	}
	return NewCalendar(s, offDates)
}

// Timeline maps each date of a range to the calendar of the assignment covering it.
type Timeline struct {
	assignments []Assignment
	calendars   map[string]*Calendar
}

// At returns the calendar governing date, or nil when the staff had no assignment.
func (t Timeline) At(date time.Time) *Calendar {
	for _, a := range t.assignments {
		if a.Covers(date) {
			return t.calendars[a.ShiftID]
		}
	}
	return nil
}

// ForRange builds a Timeline for [from, to] inclusive.
func (r *Resolver) ForRange(ctx context.Context, staffID string, from, to time.Time) (Timeline, error) {
	assignments, err := r.assignments.ListByStaff(ctx, staffID)
	if err != nil {
		return Timeline{}, fmt.Errorf("list assignments: %w", err)
	}

	tl := Timeline{calendars: make(map[string]*Calendar)}
	for _, a := range assignments {
		if a.EndDate != nil && a.EndDate.Before(from) {
			continue
		}
		if a.StartDate.After(to) {
			continue
		}
		tl.assignments = append(tl.assignments, a)
		if _, ok := tl.calendars[a.ShiftID]; ok {
			continue
		}

		s, err := r.shifts.GetByID(ctx, a.ShiftID)
		if err != nil {
			return Timeline{}, err
		}
		offDates, err := r.offDates.ListByShift(ctx, s.ID, utils.AddDays(from, -1), utils.AddDays(to, 2))
		if err != nil {
			return Timeline{}, fmt.Errorf("list off dates: %w", err)
		}
		cal, err := NewCalendar(s, offDates)
		if err != nil {
			return Timeline{}, err
		}
		tl.calendars[a.ShiftID] = cal
	}
	return tl, nil
}
