package cron

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/leave"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/notification"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/shift"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/staff"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/apperror"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/utils"
	"golang.org/x/sync/errgroup"
)

// AttendanceConfig tunes the reconciliation job.
type AttendanceConfig struct {
	Interval         time.Duration
	StaffTimeout     time.Duration // bounds the work for one staff member
	SafetyMarginDays int           // recent days re-scanned on every run
	MaxBackfillDays  int           // oldest day considered, counted back from today
	AutoCloseAfter   time.Duration // grace after expected end before an open day is closed
	Concurrency      int           // staff reconciled in parallel
}

func (c AttendanceConfig) withDefaults() AttendanceConfig {
	if c.Interval <= 0 {
		c.Interval = 15 * time.Minute
	}
	if c.StaffTimeout <= 0 {
		c.StaffTimeout = 30 * time.Second
	}
	if c.SafetyMarginDays < 0 {
		c.SafetyMarginDays = 0
	}
	if c.MaxBackfillDays <= 0 {
		c.MaxBackfillDays = 62
	}
	if c.AutoCloseAfter < 0 {
		c.AutoCloseAfter = 0
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
	return c
}

// AttendanceJobs fills in missing attendance days and settles stale ones.
// Every write is a conditional repository operation, so overlapping runs and
// live check-ins cannot corrupt a day.
type AttendanceJobs struct {
	clock       clock.Clock
	cfg         AttendanceConfig
	resolver    *shift.Resolver
	staffRepo   staff.Repository
	leaveRepo   leave.Repository
	dayRepo     attendance.DayRepository
	cursorRepo  attendance.CursorRepository
	payrollRepo payroll.Repository
	notifier    notification.Sink
}

func NewAttendanceJobs(
	clk clock.Clock,
	cfg AttendanceConfig,
	resolver *shift.Resolver,
	staffRepo staff.Repository,
	leaveRepo leave.Repository,
	dayRepo attendance.DayRepository,
	cursorRepo attendance.CursorRepository,
	payrollRepo payroll.Repository,
	notifier notification.Sink,
) *AttendanceJobs {
	return &AttendanceJobs{
		clock:       clk,
		cfg:         cfg.withDefaults(),
		resolver:    resolver,
		staffRepo:   staffRepo,
		leaveRepo:   leaveRepo,
		dayRepo:     dayRepo,
		cursorRepo:  cursorRepo,
		payrollRepo: payrollRepo,
		notifier:    notifier,
	}
}

func (j *AttendanceJobs) RegisterJobs(scheduler *Scheduler) {
	scheduler.AddJob("reconcile_attendance", j.cfg.Interval, j.Reconcile)
}

// RunStats counts what one reconciliation run changed.
type RunStats struct {
	Staff     int64
	Created   int64
	Absent    int64
	Closed    int64
	Failed    int64
	Cursors   int64
	Locked    int64 // days skipped because their payroll month is locked
	Pending   int64 // work days not yet decidable
	Unchanged int64
}

// Reconcile runs one pass over every active staff member. A failing staff
// member is logged and skipped; the pass itself only fails when the staff list
// or the lock list cannot be read.
func (j *AttendanceJobs) Reconcile(ctx context.Context) error {
	_, err := j.ReconcileWithStats(ctx)
	return err
}

func (j *AttendanceJobs) ReconcileWithStats(ctx context.Context) (RunStats, error) {
	var stats RunStats
	slog.Info("Cron: Starting attendance reconciliation")

	members, err := j.staffRepo.ListActive(ctx, nil)
	if err != nil {
		return stats, fmt.Errorf("list active staff: %w", err)
	}
	months, err := j.payrollRepo.ListLockedMonths(ctx)
	if err != nil {
		return stats, fmt.Errorf("list locked months: %w", err)
	}
	locked := make(map[string]bool, len(months))
	for _, m := range months {
		locked[m] = true
	}

	now := j.clock.Now().UTC()
	var g errgroup.Group
	g.SetLimit(j.cfg.Concurrency)
	for _, m := range members {
		g.Go(func() error {
			j.reconcileStaffSafely(ctx, m, locked, now, &stats)
			return nil
		})
	}
	_ = g.Wait()

	atomic.StoreInt64(&stats.Staff, int64(len(members)))
	slog.Info("Cron: Attendance reconciliation finished",
		"staff", stats.Staff,
		"created", stats.Created,
		"absent", stats.Absent,
		"closed", stats.Closed,
		"failed", stats.Failed,
	)
	return stats, nil
}

// reconcileStaffSafely isolates one staff member: it bounds the work with a
// timeout and turns panics into logged failures.
func (j *AttendanceJobs) reconcileStaffSafely(parent context.Context, m staff.Staff, locked map[string]bool, now time.Time, stats *RunStats) {
	ctx, cancel := context.WithTimeout(parent, j.cfg.StaffTimeout)
	defer cancel()

	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		if err != nil {
			atomic.AddInt64(&stats.Failed, 1)
			slog.Error("Cron: Failed to reconcile staff attendance",
				"staff_id", m.ID,
				"kind", apperror.KindOf(err),
				"error", err,
			)
		}
	}()

	err = j.reconcileStaff(ctx, m, locked, now, stats)
}

func (j *AttendanceJobs) reconcileStaff(ctx context.Context, m staff.Staff, locked map[string]bool, now time.Time, stats *RunStats) error {
	cursor, err := j.cursorRepo.Get(ctx, m.ID)
	if err != nil {
		return fmt.Errorf("get cursor: %w", err)
	}

	// The UTC date after today covers zones ahead of UTC; later dates stay pending.
	today := utils.DateOf(now, time.UTC)
	to := utils.AddDays(today, 1)
	from := utils.MaxDate(utils.NormalizeDate(m.JoinDate), utils.AddDays(today, -j.cfg.MaxBackfillDays))
	if cursor != nil {
		from = utils.MaxDate(from, utils.AddDays(cursor.LastProcessedDate, 1))
	}
	if from.After(to) {
		return nil
	}

	timeline, err := j.resolver.ForRange(ctx, m.ID, from, to)
	if err != nil {
		return fmt.Errorf("resolve shifts: %w", err)
	}
	leaveDays, err := j.leaveRepo.ListApproved(ctx, m.ID, from, to)
	if err != nil {
		return fmt.Errorf("list approved leave: %w", err)
	}
	leaveByDate := make(map[string]leave.LeaveDay, len(leaveDays))
	for _, ld := range leaveDays {
		leaveByDate[utils.FormatDate(ld.Date)] = ld
	}

	var earliestPending *time.Time
	for d := from; !d.After(to); d = utils.AddDays(d, 1) {
		if err := ctx.Err(); err != nil {
			return apperror.Transient(err)
		}
		if locked[utils.MonthOf(d)] {
			atomic.AddInt64(&stats.Locked, 1)
			continue
		}
		cal := timeline.At(d)
		if cal == nil {
			continue
		}

		var ld *leave.LeaveDay
		if v, ok := leaveByDate[utils.FormatDate(d)]; ok {
			ld = &v
		}
		pending, err := j.reconcileDay(ctx, m, cal, d, ld, now, stats)
		if err != nil {
			return fmt.Errorf("reconcile %s: %w", utils.FormatDate(d), err)
		}
		if pending && earliestPending == nil {
			date := d
			earliestPending = &date
		}
	}

	return j.advanceCursor(ctx, m.ID, cursor, today, earliestPending, stats)
}

// advanceCursor moves the cursor to the last date that no longer needs a look:
// before the safety margin and before the first pending date.
func (j *AttendanceJobs) advanceCursor(ctx context.Context, staffID string, cursor *attendance.Cursor, today time.Time, earliestPending *time.Time, stats *RunStats) error {
	next := utils.AddDays(today, -j.cfg.SafetyMarginDays)
	if earliestPending != nil {
		if p := utils.AddDays(*earliestPending, -1); p.Before(next) {
			next = p
		}
	}
	if cursor != nil && !next.After(cursor.LastProcessedDate) {
		return nil
	}
	if err := j.cursorRepo.Save(ctx, attendance.Cursor{StaffID: staffID, LastProcessedDate: next}); err != nil {
		return fmt.Errorf("save cursor: %w", err)
	}
	atomic.AddInt64(&stats.Cursors, 1)
	return nil
}

// reconcileDay settles one date. It reports pending when the date cannot be
// decided yet and must be looked at again by a later run.
func (j *AttendanceJobs) reconcileDay(ctx context.Context, m staff.Staff, cal *shift.Calendar, date time.Time, ld *leave.LeaveDay, now time.Time, stats *RunStats) (bool, error) {
	if date.After(cal.LocalDate(now)) {
		return true, nil
	}

	day, err := j.dayRepo.Get(ctx, m.ID, date)
	if err != nil {
		return false, fmt.Errorf("get day: %w", err)
	}
	sh := cal.Shift()
	window := cal.Window(date)

	if day != nil && day.IsOpen && !day.IsManual {
		if day.Status == attendance.StatusLate && cal.IsWorkDay(date) {
			return j.expireLate(ctx, m, sh, window, *day, now, stats)
		}
		return j.closeStale(ctx, m, cal, *day, now, stats)
	}
	if day != nil && (day.IsManual || day.IsAutoAbsent || day.HasCheckIn()) {
		atomic.AddInt64(&stats.Unchanged, 1)
		return false, nil
	}

	if !cal.IsWorkDay(date) {
		if day != nil {
			atomic.AddInt64(&stats.Unchanged, 1)
			return false, nil
		}
		status := attendance.StatusWeekend
		if cal.Kind(date) == shift.DayHoliday {
			status = attendance.StatusHoliday
		}
		return false, j.create(ctx, attendance.Day{
			StaffID:     m.ID,
			ShiftID:     &sh.ID,
			Date:        date,
			Status:      status,
			ProcessedAt: &now,
		}, stats)
	}

	if now.Before(window.Start.Add(time.Duration(sh.HalfDayAfterMinutes) * time.Minute)) {
		atomic.AddInt64(&stats.Pending, 1)
		return true, nil
	}

	if day == nil {
		return false, j.createMissing(ctx, m, sh, date, ld, now, stats)
	}
	if day.Status == attendance.StatusOnLeave || day.Status.IsNonWorking() {
		atomic.AddInt64(&stats.Unchanged, 1)
		return false, nil
	}

	if _, err := attendance.Transition(day.Status, attendance.StatusAbsent, attendance.ActorScheduler); err != nil {
		atomic.AddInt64(&stats.Unchanged, 1)
		return false, nil
	}
	upgraded := *day
	upgraded.PayableAmount, upgraded.DeductionAmount = attendance.Amounts(attendance.StatusAbsent, attendance.AmountInput{Rate: m.PerDaySalaryRate})
	upgraded.ProcessedAt = &now
	applied, err := j.dayRepo.MarkAutoAbsent(ctx, upgraded)
	if err != nil {
		return false, fmt.Errorf("mark auto absent: %w", err)
	}
	if applied {
		atomic.AddInt64(&stats.Absent, 1)
		j.notifyAbsent(ctx, m, date)
	}
	return false, nil
}

// createMissing records a work day without any attendance as leave or absence.
func (j *AttendanceJobs) createMissing(ctx context.Context, m staff.Staff, sh shift.Shift, date time.Time, ld *leave.LeaveDay, now time.Time, stats *RunStats) error {
	day := attendance.Day{
		StaffID:     m.ID,
		ShiftID:     &sh.ID,
		Date:        date,
		ProcessedAt: &now,
	}
	in := attendance.AmountInput{Rate: m.PerDaySalaryRate}
	if ld != nil {
		day.Status = attendance.StatusOnLeave
		day.LeaveRequestID = &ld.LeaveRequestID
		in.LeaveFullyPaid = ld.IsFullyPaid()
	} else {
		day.Status = attendance.StatusAbsent
		day.IsAutoAbsent = true
	}
	if _, err := attendance.Transition(attendance.StatusNone, day.Status, attendance.ActorScheduler); err != nil {
		return err
	}
	day.PayableAmount, day.DeductionAmount = attendance.Amounts(day.Status, in)

	created, err := j.dayRepo.CreateIfAbsent(ctx, day)
	if err != nil {
		return fmt.Errorf("create day: %w", err)
	}
	if !created {
		atomic.AddInt64(&stats.Unchanged, 1)
		return nil
	}
	atomic.AddInt64(&stats.Created, 1)
	if day.IsAutoAbsent {
		atomic.AddInt64(&stats.Absent, 1)
		j.notifyAbsent(ctx, m, date)
	}
	return nil
}

func (j *AttendanceJobs) create(ctx context.Context, day attendance.Day, stats *RunStats) error {
	created, err := j.dayRepo.CreateIfAbsent(ctx, day)
	if err != nil {
		return fmt.Errorf("create day: %w", err)
	}
	if created {
		atomic.AddInt64(&stats.Created, 1)
	} else {
		atomic.AddInt64(&stats.Unchanged, 1)
	}
	return nil
}

// expireLate turns a late arrival that has not checked out by the half-day
// threshold into an absence. The write only lands while the session is still
// open with the same check-in.
func (j *AttendanceJobs) expireLate(ctx context.Context, m staff.Staff, sh shift.Shift, window shift.Window, day attendance.Day, now time.Time, stats *RunStats) (bool, error) {
	if now.Before(window.Start.Add(time.Duration(sh.HalfDayAfterMinutes) * time.Minute)) {
		atomic.AddInt64(&stats.Pending, 1)
		return true, nil
	}
	if _, err := attendance.Transition(attendance.StatusLate, attendance.StatusAbsent, attendance.ActorScheduler); err != nil {
		return false, err
	}

	absent := day
	absent.Status = attendance.StatusAbsent
	absent.IsAutoAbsent = true
	absent.CheckOutAt = nil
	absent.TotalMinutes = 0
	absent.EarlyExitMinutes = 0
	absent.ProcessedAt = &now
	absent.PayableAmount, absent.DeductionAmount = attendance.Amounts(attendance.StatusAbsent, attendance.AmountInput{Rate: m.PerDaySalaryRate})

	applied, err := j.dayRepo.CloseSession(ctx, absent)
	if err != nil {
		return false, fmt.Errorf("expire late session: %w", err)
	}
	if !applied {
		atomic.AddInt64(&stats.Unchanged, 1)
		return false, nil
	}
	atomic.AddInt64(&stats.Closed, 1)
	atomic.AddInt64(&stats.Absent, 1)
	j.notifyAbsent(ctx, m, day.Date)
	return false, nil
}

// closeStale closes a session left open past the expected end plus the
// auto-close window. A late arrival that never checked out becomes an absence;
// anything else is closed at the expected end.
func (j *AttendanceJobs) closeStale(ctx context.Context, m staff.Staff, cal *shift.Calendar, day attendance.Day, now time.Time, stats *RunStats) (bool, error) {
	window := cal.Window(day.Date)
	if now.Before(window.End.Add(j.cfg.AutoCloseAfter)) {
		atomic.AddInt64(&stats.Pending, 1)
		return true, nil
	}

	out := window.End
	if day.CheckInAt.After(out) {
		out = *day.CheckInAt
	}
	inStatus := day.Status
	if cal.IsWorkDay(day.Date) {
		inStatus, _ = attendance.ClassifyCheckIn(cal.Shift(), window, *day.CheckInAt)
	}
	result := attendance.ClassifyCheckOut(cal.Shift(), window, inStatus, *day.CheckInAt, out)

	closed := day
	closed.CheckOutAt = &out
	closed.TotalMinutes = result.TotalMinutes
	closed.EarlyExitMinutes = result.EarlyExitMinutes
	closed.ProcessedAt = &now
	closed.Status = result.Status
	if inStatus == attendance.StatusLate {
		closed.Status = attendance.StatusAbsent
		closed.IsAutoAbsent = true
	}
	if _, err := attendance.Transition(inStatus, closed.Status, attendance.ActorScheduler); err != nil {
		if !errors.Is(err, attendance.ErrInvalidTransition) {
			return false, err
		}
		// the scheduler may not reclassify a worked day; keep the check-in status
		closed.Status = inStatus
	}
	closed.PayableAmount, closed.DeductionAmount = attendance.Amounts(closed.Status, attendance.AmountInput{
		Rate:             m.PerDaySalaryRate,
		EarlyExitMinutes: closed.EarlyExitMinutes,
		ShiftMinutes:     utils.WholeMinutes(window.End.Sub(window.Start)),
	})

	applied, err := j.dayRepo.CloseSession(ctx, closed)
	if err != nil {
		return false, fmt.Errorf("close session: %w", err)
	}
	if !applied {
		atomic.AddInt64(&stats.Unchanged, 1)
		return false, nil
	}

	atomic.AddInt64(&stats.Closed, 1)
	if closed.IsAutoAbsent {
		atomic.AddInt64(&stats.Absent, 1)
	}
	j.notify(ctx, notification.CreateNotificationRequest{
		BranchID:    &m.BranchID,
		RecipientID: &m.ID,
		Type:        notification.TypeAttendanceAutoClosed,
		Title:       "Attendance Auto-Closed",
		Message:     fmt.Sprintf("Your attendance for %s was automatically closed", utils.FormatDate(day.Date)),
		Data: map[string]interface{}{
			"date":   utils.FormatDate(day.Date),
			"status": string(closed.Status),
		},
	})
	return false, nil
}

func (j *AttendanceJobs) notifyAbsent(ctx context.Context, m staff.Staff, date time.Time) {
	j.notify(ctx, notification.CreateNotificationRequest{
		BranchID:    &m.BranchID,
		RecipientID: &m.ID,
		Type:        notification.TypeAttendanceAutoAbsent,
		Title:       "Marked Absent",
		Message:     fmt.Sprintf("You were marked absent for %s", utils.FormatDate(date)),
		Data:        map[string]interface{}{"date": utils.FormatDate(date)},
	})
}

func (j *AttendanceJobs) notify(ctx context.Context, req notification.CreateNotificationRequest) {
	if j.notifier == nil {
		return
	}
	if err := j.notifier.QueueNotification(ctx, req); err != nil {
		slog.Warn("Cron: Failed to queue notification", "type", req.Type, "error", err)
	}
}
