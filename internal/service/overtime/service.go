package overtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/notification"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/overtime"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/shift"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/staff"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/utils"
	"github.com/shopspring/decimal"
)

// Config holds overtime rules that are not part of a shift.
type Config struct {
	EarlyStopThreshold   int
	EarlyStopPenaltyMins int
	Multiplier           decimal.Decimal
}

type OvertimeServiceImpl struct {
	clock        clock.Clock
	cfg          Config
	resolver     *shift.Resolver
	staffRepo    staff.Repository
	overtimeRepo overtime.Repository
	dayRepo      attendance.DayRepository
	payrollRepo  payroll.Repository
	notifier     notification.Sink
}

func NewOvertimeService(
	clk clock.Clock,
	cfg Config,
	resolver *shift.Resolver,
	staffRepo staff.Repository,
	overtimeRepo overtime.Repository,
	dayRepo attendance.DayRepository,
	payrollRepo payroll.Repository,
	notifier notification.Sink,
) overtime.Service {
	if cfg.Multiplier.IsZero() {
		cfg.Multiplier = decimal.NewFromFloat(1.5)
	}
	return &OvertimeServiceImpl{
		clock:        clk,
		cfg:          cfg,
		resolver:     resolver,
		staffRepo:    staffRepo,
		overtimeRepo: overtimeRepo,
		dayRepo:      dayRepo,
		payrollRepo:  payrollRepo,
		notifier:     notifier,
	}
}

// Start implements overtime.Service.
func (s *OvertimeServiceImpl) Start(ctx context.Context, staffID string) (overtime.Response, error) {
	member, err := s.staffRepo.GetByID(ctx, staffID)
	if err != nil {
		return overtime.Response{}, err
	}
	if !member.IsActive() {
		return overtime.Response{}, attendance.ErrStaffInactive
	}

	now := s.clock.Now().UTC()
	cal, date, err := s.resolver.ForInstant(ctx, staffID, now)
	if err != nil {
		return overtime.Response{}, err
	}
	sh := cal.Shift()
	if !sh.OTEnabled {
		return overtime.Response{}, overtime.ErrOvertimeDisabled
	}

	open, err := s.overtimeRepo.GetOpen(ctx, staffID)
	if err != nil {
		return overtime.Response{}, fmt.Errorf("get open overtime: %w", err)
	}
	if open != nil {
		return overtime.Response{}, overtime.ErrSessionRunning
	}

	otType, planned, err := classifyStart(cal, date, now)
	if err != nil {
		return overtime.Response{}, err
	}

	created, err := s.overtimeRepo.Create(ctx, overtime.Overtime{
		StaffID:         staffID,
		ShiftID:         &sh.ID,
		Date:            date,
		Type:            otType,
		StartTime:       planned,
		ActualStartTime: &now,
		Status:          overtime.StatusPending,
	})
	if err != nil {
		return overtime.Response{}, err
	}

	slog.Info("Overtime started", "staff_id", staffID, "date", utils.FormatDate(date), "type", otType)
	return overtime.NewResponse(created), nil
}

// classifyStart infers the overtime type from where now falls relative to the shift
// window and returns the planned start of the session.
func classifyStart(cal *shift.Calendar, date, now time.Time) (overtime.Type, time.Time, error) {
	switch cal.Kind(date) {
	case shift.DayWeekend:
		return overtime.TypeWeekend, now, nil
	case shift.DayHoliday:
		return overtime.TypeHoliday, now, nil
	}

	w := cal.Window(date)
	switch {
	case now.Before(w.Start):
		return overtime.TypePreShift, now, nil
	case !now.Before(w.End):
		return overtime.TypePostShift, w.End, nil
	}
	return "", time.Time{}, overtime.ErrWithinShift
}

// Stop implements overtime.Service.
func (s *OvertimeServiceImpl) Stop(ctx context.Context, staffID string) (overtime.Response, error) {
	open, err := s.overtimeRepo.GetOpen(ctx, staffID)
	if err != nil {
		return overtime.Response{}, fmt.Errorf("get open overtime: %w", err)
	}
	if open == nil {
		return overtime.Response{}, overtime.ErrNoOpenSession
	}

	cal, err := s.resolver.ForDate(ctx, staffID, open.Date)
	if err != nil {
		return overtime.Response{}, err
	}
	sh := cal.Shift()

	now := s.clock.Now().UTC()
	started := open.StartTime
	if open.ActualStartTime != nil {
		started = *open.ActualStartTime
	}
	duration, earlyStop := overtime.ComputeDuration(utils.WholeMinutes(now.Sub(started)), overtime.Policy{
		MinMinutes:           sh.MinOTMinutes,
		RoundTo:              sh.RoundOTTo,
		EarlyStopThreshold:   s.cfg.EarlyStopThreshold,
		EarlyStopPenaltyMins: s.cfg.EarlyStopPenaltyMins,
	})

	stopped := *open
	stopped.EndTime = &now
	stopped.DurationMinutes = duration
	stopped.EarlyStopMinutes = earlyStop
	saved, applied, err := s.overtimeRepo.Stop(ctx, stopped)
	if err != nil {
		return overtime.Response{}, err
	}
	if !applied {
		return overtime.Response{}, overtime.ErrNoOpenSession
	}

	if saved.IsDiscarded() {
		slog.Info("Overtime discarded below minimum", "staff_id", staffID, "overtime_id", saved.ID)
		return overtime.NewResponse(saved), nil
	}

	s.notify(ctx, notification.CreateNotificationRequest{
		BranchID:      s.branchOf(ctx, staffID),
		RecipientRole: ptr(notification.RoleAdmin),
		Type:          notification.TypeOvertimeApprovalNeeded,
		Title:         "Overtime approval needed",
		Message:       fmt.Sprintf("%d minutes of %s overtime on %s await approval", saved.DurationMinutes, saved.Type, utils.FormatDate(saved.Date)),
		Data:          map[string]interface{}{"overtime_id": saved.ID, "staff_id": staffID},
	})
	slog.Info("Overtime stopped", "staff_id", staffID, "overtime_id", saved.ID, "duration_minutes", saved.DurationMinutes)
	return overtime.NewResponse(saved), nil
}

// Current implements overtime.Service.
func (s *OvertimeServiceImpl) Current(ctx context.Context, staffID string) (*overtime.Response, error) {
	open, err := s.overtimeRepo.GetOpen(ctx, staffID)
	if err != nil {
		return nil, fmt.Errorf("get open overtime: %w", err)
	}
	if open == nil {
		return nil, nil
	}
	resp := overtime.NewResponse(*open)
	return &resp, nil
}

// Approve implements overtime.Service. The amount is the per-minute rate of the
// shift day times the configured multiplier, and is mirrored onto the attendance day.
func (s *OvertimeServiceImpl) Approve(ctx context.Context, req overtime.ReviewRequest) (overtime.Response, error) {
	if err := req.Validate(); err != nil {
		return overtime.Response{}, err
	}
	o, err := s.reviewable(ctx, req.ID)
	if err != nil {
		return overtime.Response{}, err
	}
	if o.IsDiscarded() {
		return overtime.Response{}, overtime.ErrNothingToApprove
	}

	member, err := s.staffRepo.GetByID(ctx, o.StaffID)
	if err != nil {
		return overtime.Response{}, err
	}
	cal, err := s.resolver.ForDate(ctx, o.StaffID, o.Date)
	if err != nil {
		return overtime.Response{}, err
	}
	w := cal.Window(o.Date)
	shiftMinutes := utils.WholeMinutes(w.End.Sub(w.Start))

	now := s.clock.Now().UTC()
	o.Status = overtime.StatusApproved
	o.OTAmount = Amount(member.PerDaySalaryRate, shiftMinutes, o.DurationMinutes, s.cfg.Multiplier)
	o.ApprovedBy = &req.ReviewerID
	o.ApprovedAt = &now

	saved, applied, err := s.overtimeRepo.Review(ctx, o)
	if err != nil {
		return overtime.Response{}, err
	}
	if !applied {
		return overtime.Response{}, overtime.ErrAlreadyReviewed
	}

	s.reflectOnDay(ctx, saved)
	s.notify(ctx, notification.CreateNotificationRequest{
		BranchID:    &member.BranchID,
		RecipientID: &saved.StaffID,
		Type:        notification.TypeOvertimeApproved,
		Title:       "Overtime approved",
		Message:     fmt.Sprintf("Your overtime on %s was approved", utils.FormatDate(saved.Date)),
		Data:        map[string]interface{}{"overtime_id": saved.ID, "ot_amount": saved.OTAmount.String()},
	})
	slog.Info("Overtime approved", "overtime_id", saved.ID, "reviewer_id", req.ReviewerID, "ot_amount", saved.OTAmount.String())
	return overtime.NewResponse(saved), nil
}

// Reject implements overtime.Service.
func (s *OvertimeServiceImpl) Reject(ctx context.Context, req overtime.ReviewRequest) (overtime.Response, error) {
	if err := req.Validate(); err != nil {
		return overtime.Response{}, err
	}
	if req.Reason == nil || *req.Reason == "" {
		return overtime.Response{}, overtime.ErrRejectionReasonMissing
	}
	o, err := s.reviewable(ctx, req.ID)
	if err != nil {
		return overtime.Response{}, err
	}

	now := s.clock.Now().UTC()
	o.Status = overtime.StatusRejected
	o.OTAmount = decimal.Zero
	o.ApprovedBy = &req.ReviewerID
	o.ApprovedAt = &now
	o.RejectionReason = req.Reason

	saved, applied, err := s.overtimeRepo.Review(ctx, o)
	if err != nil {
		return overtime.Response{}, err
	}
	if !applied {
		return overtime.Response{}, overtime.ErrAlreadyReviewed
	}

	s.notify(ctx, notification.CreateNotificationRequest{
		BranchID:    s.branchOf(ctx, saved.StaffID),
		RecipientID: &saved.StaffID,
		Type:        notification.TypeOvertimeRejected,
		Title:       "Overtime rejected",
		Message:     fmt.Sprintf("Your overtime on %s was rejected: %s", utils.FormatDate(saved.Date), *req.Reason),
		Data:        map[string]interface{}{"overtime_id": saved.ID},
	})
	return overtime.NewResponse(saved), nil
}

// List implements overtime.Service.
func (s *OvertimeServiceImpl) List(ctx context.Context, req overtime.ListRequest) (overtime.ListResponse, error) {
	if err := req.Validate(); err != nil {
		return overtime.ListResponse{}, err
	}
	filter := req.ToFilter()
	sessions, total, err := s.overtimeRepo.List(ctx, filter)
	if err != nil {
		return overtime.ListResponse{}, fmt.Errorf("list overtime: %w", err)
	}

	resp := overtime.ListResponse{
		Sessions:   make([]overtime.Response, 0, len(sessions)),
		TotalCount: total,
		Page:       filter.Page,
		Limit:      filter.Limit,
	}
	for _, o := range sessions {
		resp.Sessions = append(resp.Sessions, overtime.NewResponse(o))
	}
	return resp, nil
}

// reviewable loads a stopped, pending session whose payroll month is still open.
func (s *OvertimeServiceImpl) reviewable(ctx context.Context, id string) (overtime.Overtime, error) {
	o, err := s.overtimeRepo.GetByID(ctx, id)
	if err != nil {
		return overtime.Overtime{}, err
	}
	if o.IsOpen() {
		return overtime.Overtime{}, overtime.ErrSessionStillOpen
	}
	if o.Status != overtime.StatusPending {
		return overtime.Overtime{}, overtime.ErrAlreadyReviewed
	}

	lock, err := s.payrollRepo.GetLock(ctx, utils.MonthOf(o.Date))
	if err != nil {
		return overtime.Overtime{}, fmt.Errorf("get payroll lock: %w", err)
	}
	if lock != nil {
		return overtime.Overtime{}, payroll.ErrMonthLocked
	}
	return o, nil
}

// reflectOnDay adds approved overtime to the attendance day. The overtime ledger
// stays authoritative for payroll, so a missing day is only logged.
func (s *OvertimeServiceImpl) reflectOnDay(ctx context.Context, o overtime.Overtime) {
	added, err := s.dayRepo.AddOvertime(ctx, o.StaffID, o.Date, o.DurationMinutes, o.OTAmount)
	if err != nil {
		slog.Error("Failed to reflect overtime on attendance day", "overtime_id", o.ID, "error", err)
		return
	}
	if !added {
		slog.Warn("No attendance day to reflect overtime on", "overtime_id", o.ID, "date", utils.FormatDate(o.Date))
	}
}

func (s *OvertimeServiceImpl) branchOf(ctx context.Context, staffID string) *string {
	member, err := s.staffRepo.GetByID(ctx, staffID)
	if err != nil {
		return nil
	}
	return &member.BranchID
}

func (s *OvertimeServiceImpl) notify(ctx context.Context, req notification.CreateNotificationRequest) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.QueueNotification(ctx, req); err != nil {
		slog.Warn("Failed to queue notification", "type", req.Type, "error", err)
	}
}

// Amount prices overtime minutes at the per-minute share of the daily rate.
func Amount(dailyRate decimal.Decimal, shiftMinutes, minutes int, multiplier decimal.Decimal) decimal.Decimal {
	if shiftMinutes <= 0 || minutes <= 0 {
		return decimal.Zero
	}
	perMinute := dailyRate.Div(decimal.NewFromInt(int64(shiftMinutes)))
	return perMinute.Mul(decimal.NewFromInt(int64(minutes))).Mul(multiplier).Round(2)
}

func ptr[T any](v T) *T { return &v }
