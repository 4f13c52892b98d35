package attendance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/leave"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/shift"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/staff"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/utils"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/validator"
	"golang.org/x/sync/singleflight"
)

// futureTolerance bounds how far a client-supplied timestamp may run ahead of the server clock.
const futureTolerance = time.Minute

type AttendanceServiceImpl struct {
	clock     clock.Clock
	resolver  *shift.Resolver
	staffRepo staff.Repository
	leaveRepo leave.Repository
	eventRepo attendance.EventRepository
	dayRepo   attendance.DayRepository

	// inflight coalesces concurrent check-in/check-out calls per staff member.
	inflight singleflight.Group
}

func NewAttendanceService(
	clk clock.Clock,
	resolver *shift.Resolver,
	staffRepo staff.Repository,
	leaveRepo leave.Repository,
	eventRepo attendance.EventRepository,
	dayRepo attendance.DayRepository,
) attendance.Service {
	return &AttendanceServiceImpl{
		clock:     clk,
		resolver:  resolver,
		staffRepo: staffRepo,
		leaveRepo: leaveRepo,
		eventRepo: eventRepo,
		dayRepo:   dayRepo,
	}
}

// CheckIn implements attendance.Service.
func (a *AttendanceServiceImpl) CheckIn(ctx context.Context, req attendance.CheckInRequest) (attendance.DayResponse, error) {
	if err := req.Validate(); err != nil {
		return attendance.DayResponse{}, err
	}
	member, err := a.activeStaff(ctx, req.StaffID)
	if err != nil {
		return attendance.DayResponse{}, err
	}
	at, err := a.eventTime(req.At)
	if err != nil {
		return attendance.DayResponse{}, err
	}

	v, err, _ := a.inflight.Do("check_in:"+member.ID, func() (interface{}, error) {
		return a.checkIn(ctx, member, at, req)
	})
	if err != nil {
		return attendance.DayResponse{}, err
	}
	return attendance.NewDayResponse(v.(attendance.Day)), nil
}

func (a *AttendanceServiceImpl) checkIn(ctx context.Context, member staff.Staff, at time.Time, req attendance.CheckInRequest) (attendance.Day, error) {
	cal, date, err := a.resolver.ForInstant(ctx, member.ID, at)
	if err != nil {
		return attendance.Day{}, err
	}
	sh := cal.Shift()

	existing, err := a.dayRepo.Get(ctx, member.ID, date)
	if err != nil {
		return attendance.Day{}, fmt.Errorf("get attendance day: %w", err)
	}

	_, inserted, err := a.eventRepo.Append(ctx, attendance.Event{
		StaffID:   member.ID,
		ShiftID:   &sh.ID,
		Type:      attendance.EventCheckIn,
		At:        at,
		Source:    sourceOrDefault(req.Source),
		IP:        req.IP,
		UserAgent: req.UserAgent,
	})
	if err != nil {
		return attendance.Day{}, fmt.Errorf("append check-in event: %w", err)
	}
	// A replayed submission of an accepted check-in returns the day unchanged.
	if !inserted && existing != nil && existing.CheckInAt != nil && existing.CheckInAt.Equal(at) {
		return *existing, nil
	}

	if existing != nil {
		if err := checkInRejection(*existing); err != nil {
			return attendance.Day{}, err
		}
	} else {
		onLeave, err := a.leaveRepo.GetApproved(ctx, member.ID, date)
		if err != nil {
			return attendance.Day{}, fmt.Errorf("get approved leave: %w", err)
		}
		if onLeave != nil {
			return attendance.Day{}, attendance.ErrAlreadyOnLeave
		}
	}

	day := attendance.Day{
		StaffID:   member.ID,
		ShiftID:   &sh.ID,
		Date:      date,
		CheckInAt: &at,
	}
	var observed *time.Time
	if existing != nil && existing.CheckInAt != nil {
		// A later session of the same day keeps the earliest check-in and its classification.
		observed = existing.CheckInAt
		if existing.CheckInAt.Before(at) {
			day.CheckInAt = existing.CheckInAt
		}
		day.Status = existing.Status
		day.LateMinutes = existing.LateMinutes
	} else {
		status, lateMinutes := checkInStatus(cal, date, at)
		if _, err := attendance.Transition(attendance.StatusNone, status, attendance.ActorStaff); err != nil {
			return attendance.Day{}, err
		}
		day.Status = status
		day.LateMinutes = lateMinutes
	}
	day.PayableAmount, day.DeductionAmount = attendance.Amounts(day.Status, attendance.AmountInput{
		Rate:         member.PerDaySalaryRate,
		ShiftMinutes: windowMinutes(cal.Window(date)),
	})

	saved, applied, err := a.dayRepo.UpsertCheckIn(ctx, day, observed)
	if err != nil {
		return attendance.Day{}, err
	}
	if !applied {
		if err := checkInRejection(saved); err != nil {
			return attendance.Day{}, err
		}
		return attendance.Day{}, attendance.ErrDuplicateCheckIn
	}

	slog.Info("Staff checked in",
		"staff_id", member.ID,
		"date", utils.FormatDate(date),
		"status", saved.Status,
		"late_minutes", saved.LateMinutes,
	)
	return saved, nil
}

// checkInRejection maps an existing day to the reason a new check-in cannot open it.
func checkInRejection(d attendance.Day) error {
	switch {
	case d.Status == attendance.StatusOnLeave:
		return attendance.ErrAlreadyOnLeave
	case d.IsOpen:
		return attendance.ErrDuplicateCheckIn
	case d.IsAutoAbsent:
		return attendance.ErrDayClosed
	case d.IsManual:
		return attendance.ErrManualRecord
	}
	return nil
}

// CheckOut implements attendance.Service.
func (a *AttendanceServiceImpl) CheckOut(ctx context.Context, req attendance.CheckOutRequest) (attendance.DayResponse, error) {
	if err := req.Validate(); err != nil {
		return attendance.DayResponse{}, err
	}
	member, err := a.activeStaff(ctx, req.StaffID)
	if err != nil {
		return attendance.DayResponse{}, err
	}
	at, err := a.eventTime(req.At)
	if err != nil {
		return attendance.DayResponse{}, err
	}

	v, err, _ := a.inflight.Do("check_out:"+member.ID, func() (interface{}, error) {
		return a.checkOut(ctx, member, at, req)
	})
	if err != nil {
		return attendance.DayResponse{}, err
	}
	return attendance.NewDayResponse(v.(attendance.Day)), nil
}

func (a *AttendanceServiceImpl) checkOut(ctx context.Context, member staff.Staff, at time.Time, req attendance.CheckOutRequest) (attendance.Day, error) {
	cal, date, err := a.resolver.ForInstant(ctx, member.ID, at)
	if err != nil {
		return attendance.Day{}, err
	}

	open, err := a.dayRepo.GetOpenSession(ctx, member.ID, utils.AddDays(date, -1))
	if err != nil {
		return attendance.Day{}, fmt.Errorf("get open session: %w", err)
	}
	if open == nil {
		return a.replayedCheckOut(ctx, member.ID, date, at)
	}
	day := *open
	if !day.Date.Equal(date) {
		if cal, err = a.resolver.ForDate(ctx, member.ID, day.Date); err != nil {
			return attendance.Day{}, err
		}
	}
	if at.Before(*day.CheckInAt) {
		return attendance.Day{}, attendance.ErrInvalidCheckOut
	}

	sh := cal.Shift()
	if _, _, err := a.eventRepo.Append(ctx, attendance.Event{
		StaffID:   member.ID,
		ShiftID:   &sh.ID,
		Type:      attendance.EventCheckOut,
		At:        at,
		Source:    sourceOrDefault(req.Source),
		IP:        req.IP,
		UserAgent: req.UserAgent,
	}); err != nil {
		return attendance.Day{}, fmt.Errorf("append check-out event: %w", err)
	}

	latest := at
	if day.CheckOutAt != nil && day.CheckOutAt.After(at) {
		latest = *day.CheckOutAt
	}

	window := cal.Window(day.Date)
	inStatus, _ := checkInStatus(cal, day.Date, *day.CheckInAt)
	result := attendance.ClassifyCheckOut(sh, window, inStatus, *day.CheckInAt, latest)
	if _, err := attendance.Transition(inStatus, result.Status, attendance.ActorStaff); err != nil {
		return attendance.Day{}, err
	}

	now := a.clock.Now().UTC()
	day.Status = result.Status
	day.CheckOutAt = &latest
	day.TotalMinutes = result.TotalMinutes
	day.EarlyExitMinutes = result.EarlyExitMinutes
	day.ProcessedAt = &now
	day.PayableAmount, day.DeductionAmount = attendance.Amounts(day.Status, attendance.AmountInput{
		Rate:             member.PerDaySalaryRate,
		EarlyExitMinutes: result.EarlyExitMinutes,
		ShiftMinutes:     windowMinutes(window),
	})

	saved, applied, err := a.dayRepo.ApplyCheckOut(ctx, day)
	if err != nil {
		return attendance.Day{}, err
	}
	if !applied {
		if saved.IsManual {
			return attendance.Day{}, attendance.ErrManualRecord
		}
		return attendance.Day{}, attendance.ErrNoOpenCheckIn
	}

	slog.Info("Staff checked out",
		"staff_id", member.ID,
		"date", utils.FormatDate(saved.Date),
		"status", saved.Status,
		"total_minutes", saved.TotalMinutes,
	)
	return saved, nil
}

// replayedCheckOut returns the day when at repeats its recorded check-out, else ErrNoOpenCheckIn.
func (a *AttendanceServiceImpl) replayedCheckOut(ctx context.Context, staffID string, date, at time.Time) (attendance.Day, error) {
	for _, d := range []time.Time{date, utils.AddDays(date, -1)} {
		day, err := a.dayRepo.Get(ctx, staffID, d)
		if err != nil {
			return attendance.Day{}, fmt.Errorf("get attendance day: %w", err)
		}
		if day != nil && day.CheckOutAt != nil && day.CheckOutAt.Equal(at) {
			return *day, nil
		}
	}
	return attendance.Day{}, attendance.ErrNoOpenCheckIn
}

// TodayStatus implements attendance.Service.
func (a *AttendanceServiceImpl) TodayStatus(ctx context.Context, staffID string) (attendance.TodayStatusResponse, error) {
	if _, err := a.activeStaff(ctx, staffID); err != nil {
		return attendance.TodayStatusResponse{}, err
	}
	now := a.clock.Now().UTC()
	cal, date, err := a.resolver.ForInstant(ctx, staffID, now)
	if err != nil {
		return attendance.TodayStatusResponse{}, err
	}

	resp := attendance.TodayStatusResponse{
		Date:      utils.FormatDate(date),
		IsWorkDay: cal.IsWorkDay(date),
	}
	if resp.IsWorkDay {
		w := cal.Window(date)
		resp.ExpectedStart, resp.ExpectedEnd = &w.Start, &w.End
	}

	day, err := a.dayRepo.Get(ctx, staffID, date)
	if err != nil {
		return attendance.TodayStatusResponse{}, fmt.Errorf("get attendance day: %w", err)
	}
	open, err := a.dayRepo.GetOpenSession(ctx, staffID, utils.AddDays(date, -1))
	if err != nil {
		return attendance.TodayStatusResponse{}, fmt.Errorf("get open session: %w", err)
	}

	resp.CanCheckOut = open != nil
	resp.CanCheckIn = open == nil && (day == nil || checkInRejection(*day) == nil)
	if day != nil {
		dr := attendance.NewDayResponse(*day)
		resp.Day = &dr
	}
	return resp, nil
}

// GetDay implements attendance.Service.
func (a *AttendanceServiceImpl) GetDay(ctx context.Context, req attendance.DayKeyRequest) (attendance.DayResponse, error) {
	if err := req.Validate(); err != nil {
		return attendance.DayResponse{}, err
	}
	date, _ := utils.ParseDate(req.Date)
	day, err := a.dayRepo.Get(ctx, req.StaffID, date)
	if err != nil {
		return attendance.DayResponse{}, fmt.Errorf("get attendance day: %w", err)
	}
	if day == nil {
		return attendance.DayResponse{}, attendance.ErrDayNotFound
	}
	return attendance.NewDayResponse(*day), nil
}

// ListDays implements attendance.Service.
func (a *AttendanceServiceImpl) ListDays(ctx context.Context, req attendance.ListDaysRequest) (attendance.ListDaysResponse, error) {
	if err := req.Validate(); err != nil {
		return attendance.ListDaysResponse{}, err
	}
	filter := req.ToFilter()
	days, total, err := a.dayRepo.List(ctx, filter)
	if err != nil {
		return attendance.ListDaysResponse{}, fmt.Errorf("list attendance days: %w", err)
	}

	resp := attendance.ListDaysResponse{
		Days:       make([]attendance.DayResponse, 0, len(days)),
		TotalCount: total,
		Page:       filter.Page,
		Limit:      filter.Limit,
		TotalPages: int((total + int64(filter.Limit) - 1) / int64(filter.Limit)),
	}
	for _, d := range days {
		resp.Days = append(resp.Days, attendance.NewDayResponse(d))
	}
	return resp, nil
}

// ApplyLeave implements attendance.Service.
func (a *AttendanceServiceImpl) ApplyLeave(ctx context.Context, req attendance.ApplyLeaveRequest) (attendance.DayResponse, error) {
	if err := req.Validate(); err != nil {
		return attendance.DayResponse{}, err
	}
	member, err := a.staffRepo.GetByID(ctx, req.StaffID)
	if err != nil {
		return attendance.DayResponse{}, err
	}
	date, _ := utils.ParseDate(req.Date)

	day, err := a.dayOrNew(ctx, member.ID, date)
	if err != nil {
		return attendance.DayResponse{}, err
	}
	if _, err := attendance.Transition(day.Status, attendance.StatusOnLeave, attendance.ActorLeave); err != nil {
		return attendance.DayResponse{}, err
	}

	now := a.clock.Now().UTC()
	day.Status = attendance.StatusOnLeave
	day.LeaveRequestID = &req.LeaveRequestID
	day.IsOpen = false
	day.IsAutoAbsent = false
	day.LateMinutes = 0
	day.EarlyExitMinutes = 0
	day.ProcessedAt = &now
	day.PayableAmount, day.DeductionAmount = attendance.Amounts(attendance.StatusOnLeave, attendance.AmountInput{
		Rate:           member.PerDaySalaryRate,
		LeaveFullyPaid: req.IsPaid && !req.AffectsSalary,
	})

	saved, err := a.dayRepo.Save(ctx, day)
	if err != nil {
		return attendance.DayResponse{}, err
	}
	slog.Info("Leave applied to attendance", "staff_id", member.ID, "date", req.Date, "leave_request_id", req.LeaveRequestID)
	return attendance.NewDayResponse(saved), nil
}

// OverrideDay implements attendance.Service.
func (a *AttendanceServiceImpl) OverrideDay(ctx context.Context, req attendance.OverrideDayRequest, adminID string) (attendance.DayResponse, error) {
	if err := req.Validate(); err != nil {
		return attendance.DayResponse{}, err
	}
	status, err := attendance.ParseStatus(req.Status)
	if err != nil {
		return attendance.DayResponse{}, err
	}
	member, err := a.staffRepo.GetByID(ctx, req.StaffID)
	if err != nil {
		return attendance.DayResponse{}, err
	}
	date, _ := utils.ParseDate(req.Date)

	day, err := a.dayOrNew(ctx, member.ID, date)
	if err != nil {
		return attendance.DayResponse{}, err
	}
	if _, err := attendance.Transition(day.Status, status, attendance.ActorAdmin); err != nil {
		return attendance.DayResponse{}, err
	}

	now := a.clock.Now().UTC()
	day.Status = status
	day.CheckInAt = req.CheckInAt
	day.CheckOutAt = req.CheckOutAt
	day.IsOpen = req.CheckInAt != nil && req.CheckOutAt == nil
	day.IsManual = true
	day.IsAutoAbsent = false
	day.Note = req.Note
	day.ProcessedAt = &now
	day.TotalMinutes, day.LateMinutes, day.EarlyExitMinutes = 0, 0, 0
	if req.CheckInAt != nil && req.CheckOutAt != nil {
		day.TotalMinutes = utils.WholeMinutes(req.CheckOutAt.Sub(*req.CheckInAt))
	}

	in := attendance.AmountInput{Rate: member.PerDaySalaryRate}
	cal, err := a.resolver.ForDate(ctx, member.ID, date)
	switch {
	case err == nil:
		window := cal.Window(date)
		in.ShiftMinutes = windowMinutes(window)
		if req.CheckInAt != nil && cal.IsWorkDay(date) {
			_, day.LateMinutes = attendance.ClassifyCheckIn(cal.Shift(), window, *req.CheckInAt)
		}
		if req.CheckOutAt != nil && cal.IsWorkDay(date) {
			day.EarlyExitMinutes = max(0, utils.WholeMinutes(window.End.Sub(*req.CheckOutAt)))
		}
	case !errors.Is(err, shift.ErrNoActiveShift):
		return attendance.DayResponse{}, err
	}
	in.EarlyExitMinutes = day.EarlyExitMinutes
	if status == attendance.StatusOnLeave {
		ld, err := a.leaveRepo.GetApproved(ctx, member.ID, date)
		if err != nil {
			return attendance.DayResponse{}, fmt.Errorf("get approved leave: %w", err)
		}
		in.LeaveFullyPaid = ld != nil && ld.IsFullyPaid()
	}
	day.PayableAmount, day.DeductionAmount = attendance.Amounts(status, in)

	saved, err := a.dayRepo.Save(ctx, day)
	if err != nil {
		return attendance.DayResponse{}, err
	}
	slog.Info("Attendance day overridden", "staff_id", member.ID, "date", req.Date, "status", status, "admin_id", adminID)
	return attendance.NewDayResponse(saved), nil
}

// ReopenDay implements attendance.Service.
func (a *AttendanceServiceImpl) ReopenDay(ctx context.Context, req attendance.DayKeyRequest) (attendance.DayResponse, error) {
	if err := req.Validate(); err != nil {
		return attendance.DayResponse{}, err
	}
	date, _ := utils.ParseDate(req.Date)
	day, err := a.dayRepo.Get(ctx, req.StaffID, date)
	if err != nil {
		return attendance.DayResponse{}, fmt.Errorf("get attendance day: %w", err)
	}
	if day == nil {
		return attendance.DayResponse{}, attendance.ErrDayNotFound
	}

	day.IsManual = false
	day.IsAutoAbsent = false
	day.ProcessedAt = nil
	saved, err := a.dayRepo.Save(ctx, *day)
	if err != nil {
		return attendance.DayResponse{}, err
	}
	return attendance.NewDayResponse(saved), nil
}

func (a *AttendanceServiceImpl) activeStaff(ctx context.Context, staffID string) (staff.Staff, error) {
	member, err := a.staffRepo.GetByID(ctx, staffID)
	if err != nil {
		return staff.Staff{}, err
	}
	if !member.IsActive() {
		return staff.Staff{}, attendance.ErrStaffInactive
	}
	return member, nil
}

// eventTime defaults to the server clock and rejects timestamps from the future.
func (a *AttendanceServiceImpl) eventTime(at *time.Time) (time.Time, error) {
	now := a.clock.Now().UTC()
	if at == nil {
		return now, nil
	}
	if at.After(now.Add(futureTolerance)) {
		return time.Time{}, validator.ValidationErrors{{Field: "at", Message: "at must not be in the future"}}
	}
	return at.UTC(), nil
}

func (a *AttendanceServiceImpl) dayOrNew(ctx context.Context, staffID string, date time.Time) (attendance.Day, error) {
	existing, err := a.dayRepo.Get(ctx, staffID, date)
	if err != nil {
		return attendance.Day{}, fmt.Errorf("get attendance day: %w", err)
	}
	if existing != nil {
		return *existing, nil
	}
	return attendance.Day{StaffID: staffID, Date: date}, nil
}

// checkInStatus classifies a check-in; non-working days keep their calendar status.
func checkInStatus(cal *shift.Calendar, date, at time.Time) (attendance.Status, int) {
	switch cal.Kind(date) {
	case shift.DayWeekend:
		return attendance.StatusWeekend, 0
	case shift.DayHoliday:
		return attendance.StatusHoliday, 0
	}
	return attendance.ClassifyCheckIn(cal.Shift(), cal.Window(date), at)
}

func windowMinutes(w shift.Window) int {
	return utils.WholeMinutes(w.End.Sub(w.Start))
}

func sourceOrDefault(source string) string {
	if source == "" {
		return attendance.SourceWeb
	}
	return source
}
