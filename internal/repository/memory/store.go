// Package memory holds mutex-guarded repositories for development and tests.
// Every operation runs under one store lock, so each conditional method is atomic.
package memory

import (
	"sync"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/leave"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/notification"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/overtime"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/shift"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/staff"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/utils"
	"github.com/google/uuid"
)

type Store struct {
	mu     sync.Mutex
	writes int64

	staff        map[string]staff.Staff
	shifts       map[string]shift.Shift
	offDates     map[string]shift.OffDate // shiftID|date
	assignments  map[string]shift.Assignment
	leaveDays    map[string]leave.LeaveDay // staffID|date
	events       map[string]attendance.Event
	eventKeys    map[string]string // staffID|type|at -> id
	days         map[string]attendance.Day // staffID|date
	cursors      map[string]attendance.Cursor
	overtimes    map[string]overtime.Overtime
	locks        map[string]payroll.Lock
	payments     map[string]payroll.Payment // staffID|month
	transactions []payroll.PaymentTransaction
	notes        []*notification.Notification
}

func NewStore() *Store {
	return &Store{
		staff:       make(map[string]staff.Staff),
		shifts:      make(map[string]shift.Shift),
		offDates:    make(map[string]shift.OffDate),
		assignments: make(map[string]shift.Assignment),
		leaveDays:   make(map[string]leave.LeaveDay),
		events:      make(map[string]attendance.Event),
		eventKeys:   make(map[string]string),
		days:        make(map[string]attendance.Day),
		cursors:     make(map[string]attendance.Cursor),
		overtimes:   make(map[string]overtime.Overtime),
		locks:       make(map[string]payroll.Lock),
		payments:    make(map[string]payroll.Payment),
	}
}

// Writes counts every mutation applied to the store.
func (s *Store) Writes() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// PutStaff seeds staff reference data.
func (s *Store) PutStaff(st staff.Staff) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staff[st.ID] = st
}

// PutLeaveDay seeds an approved leave day.
func (s *Store) PutLeaveDay(d leave.LeaveDay) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d.Date = utils.NormalizeDate(d.Date)
	s.leaveDays[dayKey(d.StaffID, d.Date)] = d
}

// Notifications returns a copy of the stored notifications.
func (s *Store) Notifications() []notification.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]notification.Notification, len(s.notes))
	for i, n := range s.notes {
		out[i] = *n
	}
	return out
}

func (s *Store) Staff() *StaffRepository { return &StaffRepository{s} }
func (s *Store) Leave() *LeaveRepository { return &LeaveRepository{s} }
func (s *Store) Shifts() *ShiftRepository { return &ShiftRepository{s} }
func (s *Store) OffDates() *OffDateRepository { return &OffDateRepository{s} }
func (s *Store) Assignments() *AssignmentRepository { return &AssignmentRepository{s} }
func (s *Store) Events() *EventRepository { return &EventRepository{s} }
func (s *Store) Days() *DayRepository { return &DayRepository{s} }
func (s *Store) Cursors() *CursorRepository { return &CursorRepository{s} }
func (s *Store) Overtime() *OvertimeRepository { return &OvertimeRepository{s} }
func (s *Store) Payroll() *PayrollRepository { return &PayrollRepository{s} }
func (s *Store) NotificationRepo() *NotificationRepository { return &NotificationRepository{s} }

func dayKey(staffID string, date time.Time) string {
	return staffID + "|" + utils.FormatDate(date)
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// lockedLocked reports whether date's month is locked. Callers hold s.mu.
func (s *Store) lockedLocked(date time.Time) bool {
	_, ok := s.locks[utils.MonthOf(date)]
	return ok
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
