package cron

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/leave"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/notification"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/shift"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/staff"
	"github.com/cmlabs-hris/attendance-engine/internal/repository/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var jakarta, _ = time.LoadLocation("Asia/Jakarta")

var rate = decimal.NewFromInt(480000)

// local builds an instant in Jakarta; 2026-03-02 is a Monday.
func local(month time.Month, day, hh, mm int) time.Time {
	return time.Date(2026, month, day, hh, mm, 0, 0, jakarta)
}

func date(month time.Month, day int) time.Time {
	return time.Date(2026, month, day, 0, 0, 0, 0, time.UTC)
}

type recordingSink struct {
	mu    sync.Mutex
	types []notification.NotificationType
}

func (r *recordingSink) QueueNotification(ctx context.Context, req notification.CreateNotificationRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = append(r.types, req.Type)
	return nil
}

func (r *recordingSink) count(t notification.NotificationType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, got := range r.types {
		if got == t {
			n++
		}
	}
	return n
}

type fixture struct {
	store   *memory.Store
	clock   *clock.Mock
	sink    *recordingSink
	shiftID string
	jobs    *AttendanceJobs
}

// newFixture builds a reconciler over a fresh store; wrap may decorate its day repository.
func newFixture(t *testing.T, wrap func(*memory.DayRepository) attendance.DayRepository) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	created, err := store.Shifts().Create(ctx, shift.Shift{
		BranchID:            "branch-1",
		Name:                "Office",
		Timezone:            "Asia/Jakarta",
		WorkDays:            []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
		StartTime:           shift.MustClockTime("09:00"),
		EndTime:             shift.MustClockTime("17:00"),
		GracePeriodMinutes:  10,
		LateAfterMinutes:    10,
		HalfDayAfterMinutes: 240,
	})
	require.NoError(t, err)

	var days attendance.DayRepository = store.Days()
	if wrap != nil {
		days = wrap(store.Days())
	}
	mock := clock.NewMock()
	sink := &recordingSink{}
	resolver := shift.NewResolver(store.Shifts(), store.OffDates(), store.Assignments())
	jobs := NewAttendanceJobs(mock, AttendanceConfig{
		SafetyMarginDays: 2,
		MaxBackfillDays:  31,
		AutoCloseAfter:   2 * time.Hour,
		Concurrency:      2,
	}, resolver, store.Staff(), store.Leave(), days, store.Cursors(), store.Payroll(), sink)

	return &fixture{store: store, clock: mock, sink: sink, shiftID: created.ID, jobs: jobs}
}

func (f *fixture) addStaff(t *testing.T, id string, joined time.Time) {
	t.Helper()
	f.store.PutStaff(staff.Staff{
		ID:               id,
		BranchID:         "branch-1",
		Status:           staff.StatusActive,
		JoinDate:         joined,
		PerDaySalaryRate: rate,
	})
	_, err := f.store.Assignments().Supersede(context.Background(), shift.Assignment{
		StaffID:   id,
		ShiftID:   f.shiftID,
		StartDate: joined,
	})
	require.NoError(t, err)
}

func (f *fixture) runAt(t *testing.T, at time.Time) RunStats {
	t.Helper()
	f.clock.Set(at)
	stats, err := f.jobs.ReconcileWithStats(context.Background())
	require.NoError(t, err)
	return stats
}

func (f *fixture) day(t *testing.T, staffID string, d time.Time) *attendance.Day {
	t.Helper()
	day, err := f.store.Days().Get(context.Background(), staffID, d)
	require.NoError(t, err)
	return day
}

func TestReconcile_UpgradesToAbsentAtHalfDayThreshold(t *testing.T) {
	f := newFixture(t, nil)
	f.addStaff(t, "staff-1", date(time.March, 2))

	stats := f.runAt(t, local(time.March, 2, 12, 59))
	assert.Nil(t, f.day(t, "staff-1", date(time.March, 2)))
	assert.EqualValues(t, 1, stats.Pending)

	f.runAt(t, local(time.March, 2, 13, 0))

	day := f.day(t, "staff-1", date(time.March, 2))
	require.NotNil(t, day)
	assert.Equal(t, attendance.StatusAbsent, day.Status)
	assert.True(t, day.IsAutoAbsent)
	assert.NotNil(t, day.ProcessedAt)
	assert.True(t, rate.Equal(day.DeductionAmount))
	assert.Equal(t, 1, f.sink.count(notification.TypeAttendanceAutoAbsent))
}

func TestReconcile_UpgradesExistingDayWithoutCheckIn(t *testing.T) {
	f := newFixture(t, nil)
	f.addStaff(t, "staff-1", date(time.March, 2))
	_, err := f.store.Days().Save(context.Background(), attendance.Day{
		StaffID: "staff-1",
		Date:    date(time.March, 2),
		Status:  attendance.StatusLate,
	})
	require.NoError(t, err)

	f.runAt(t, local(time.March, 2, 13, 30))

	day := f.day(t, "staff-1", date(time.March, 2))
	assert.Equal(t, attendance.StatusAbsent, day.Status)
	assert.True(t, day.IsAutoAbsent)
	assert.True(t, day.PayableAmount.IsZero())
}

func TestReconcile_SecondRunWritesNothing(t *testing.T) {
	f := newFixture(t, nil)
	f.addStaff(t, "staff-1", date(time.February, 23))
	f.addStaff(t, "staff-2", date(time.March, 2))

	first := f.runAt(t, local(time.March, 4, 20, 0))
	require.Positive(t, first.Created)
	writes := f.store.Writes()
	notified := f.sink.count(notification.TypeAttendanceAutoAbsent)

	second := f.runAt(t, local(time.March, 4, 20, 0))

	assert.Equal(t, writes, f.store.Writes())
	assert.Zero(t, second.Created)
	assert.Zero(t, second.Absent)
	assert.Zero(t, second.Cursors)
	assert.Equal(t, notified, f.sink.count(notification.TypeAttendanceAutoAbsent))
}

func TestReconcile_FillsWeekendsAndHolidays(t *testing.T) {
	f := newFixture(t, nil)
	f.addStaff(t, "staff-1", date(time.March, 6))
	_, err := f.store.OffDates().Create(context.Background(), shift.OffDate{ShiftID: f.shiftID, Date: date(time.March, 6)})
	require.NoError(t, err)

	f.runAt(t, local(time.March, 9, 8, 0))

	assert.Equal(t, attendance.StatusHoliday, f.day(t, "staff-1", date(time.March, 6)).Status)
	sat := f.day(t, "staff-1", date(time.March, 7))
	assert.Equal(t, attendance.StatusWeekend, sat.Status)
	assert.True(t, sat.PayableAmount.IsZero())
	assert.True(t, sat.DeductionAmount.IsZero())
	assert.Equal(t, attendance.StatusWeekend, f.day(t, "staff-1", date(time.March, 8)).Status)
	assert.Nil(t, f.day(t, "staff-1", date(time.March, 9)))
}

func TestReconcile_NeverTouchesManualDays(t *testing.T) {
	f := newFixture(t, nil)
	f.addStaff(t, "staff-1", date(time.March, 2))
	_, err := f.store.Days().Save(context.Background(), attendance.Day{
		StaffID:       "staff-1",
		Date:          date(time.March, 2),
		Status:        attendance.StatusPresent,
		IsManual:      true,
		PayableAmount: rate,
	})
	require.NoError(t, err)

	f.runAt(t, local(time.March, 4, 20, 0))

	day := f.day(t, "staff-1", date(time.March, 2))
	assert.Equal(t, attendance.StatusPresent, day.Status)
	assert.True(t, day.IsManual)
	assert.False(t, day.IsAutoAbsent)
}

func TestReconcile_SkipsLockedMonth(t *testing.T) {
	f := newFixture(t, nil)
	f.addStaff(t, "staff-1", date(time.February, 23))
	_, err := f.store.Payroll().CreateLock(context.Background(), payroll.Lock{Month: "2026-02"})
	require.NoError(t, err)

	stats := f.runAt(t, local(time.March, 3, 20, 0))

	for d := 23; d <= 28; d++ {
		assert.Nil(t, f.day(t, "staff-1", date(time.February, d)), "2026-02-%d", d)
	}
	assert.EqualValues(t, 6, stats.Locked)
	assert.Equal(t, attendance.StatusAbsent, f.day(t, "staff-1", date(time.March, 2)).Status)
}

func TestReconcile_ApprovedLeaveBecomesOnLeave(t *testing.T) {
	f := newFixture(t, nil)
	f.addStaff(t, "staff-1", date(time.March, 2))
	f.store.PutLeaveDay(leave.LeaveDay{
		StaffID:        "staff-1",
		Date:           date(time.March, 2),
		LeaveRequestID: "leave-1",
		IsPaid:         true,
	})

	f.runAt(t, local(time.March, 2, 18, 0))

	day := f.day(t, "staff-1", date(time.March, 2))
	assert.Equal(t, attendance.StatusOnLeave, day.Status)
	assert.False(t, day.IsAutoAbsent)
	assert.True(t, rate.Equal(day.PayableAmount))
	assert.Zero(t, f.sink.count(notification.TypeAttendanceAutoAbsent))
}

func openDay(t *testing.T, f *fixture, status attendance.Status, in time.Time) {
	t.Helper()
	checkIn := in.UTC()
	_, err := f.store.Days().Save(context.Background(), attendance.Day{
		StaffID:   "staff-1",
		Date:      date(time.March, 2),
		Status:    status,
		CheckInAt: &checkIn,
		IsOpen:    true,
	})
	require.NoError(t, err)
}

func TestReconcile_ClosesStaleSessionAtExpectedEnd(t *testing.T) {
	f := newFixture(t, nil)
	f.addStaff(t, "staff-1", date(time.March, 2))
	openDay(t, f, attendance.StatusPresent, local(time.March, 2, 9, 0))

	f.runAt(t, local(time.March, 2, 18, 59))
	assert.True(t, f.day(t, "staff-1", date(time.March, 2)).IsOpen)

	f.runAt(t, local(time.March, 2, 19, 0))

	day := f.day(t, "staff-1", date(time.March, 2))
	assert.False(t, day.IsOpen)
	assert.Equal(t, attendance.StatusPresent, day.Status)
	assert.True(t, local(time.March, 2, 17, 0).Equal(*day.CheckOutAt))
	assert.Equal(t, 480, day.TotalMinutes)
	assert.True(t, rate.Equal(day.PayableAmount))
	assert.Equal(t, 1, f.sink.count(notification.TypeAttendanceAutoClosed))
}

func TestReconcile_LateWithoutCheckOutBecomesAbsent(t *testing.T) {
	f := newFixture(t, nil)
	f.addStaff(t, "staff-1", date(time.March, 2))
	openDay(t, f, attendance.StatusLate, local(time.March, 2, 9, 30))

	f.runAt(t, local(time.March, 3, 8, 0))

	day := f.day(t, "staff-1", date(time.March, 2))
	assert.Equal(t, attendance.StatusAbsent, day.Status)
	assert.True(t, day.IsAutoAbsent)
	assert.False(t, day.IsOpen)
	assert.True(t, rate.Equal(day.DeductionAmount))
}

func TestReconcile_LateOpenDayBecomesAbsentAtHalfDayThreshold(t *testing.T) {
	f := newFixture(t, nil)
	f.addStaff(t, "staff-1", date(time.March, 2))
	openDay(t, f, attendance.StatusLate, local(time.March, 2, 9, 30))

	stats := f.runAt(t, local(time.March, 2, 12, 59))
	assert.Equal(t, attendance.StatusLate, f.day(t, "staff-1", date(time.March, 2)).Status)
	assert.EqualValues(t, 1, stats.Pending)

	f.runAt(t, local(time.March, 2, 13, 5))

	day := f.day(t, "staff-1", date(time.March, 2))
	assert.Equal(t, attendance.StatusAbsent, day.Status)
	assert.True(t, day.IsAutoAbsent)
	assert.False(t, day.IsOpen)
	assert.Nil(t, day.CheckOutAt)
	assert.NotNil(t, day.ProcessedAt)
	require.NotNil(t, day.CheckInAt)
	assert.True(t, local(time.March, 2, 9, 30).Equal(*day.CheckInAt))
	assert.True(t, rate.Equal(day.DeductionAmount))
	assert.Equal(t, 1, f.sink.count(notification.TypeAttendanceAutoAbsent))
	assert.Equal(t, 0, f.sink.count(notification.TypeAttendanceAutoClosed))

	f.runAt(t, local(time.March, 2, 20, 0))
	assert.Equal(t, 1, f.sink.count(notification.TypeAttendanceAutoAbsent))
}

func TestReconcile_CursorRescansOpenDays(t *testing.T) {
	f := newFixture(t, nil)
	f.addStaff(t, "staff-1", date(time.February, 23))
	openDay(t, f, attendance.StatusPresent, local(time.March, 2, 9, 0))

	f.runAt(t, local(time.March, 2, 10, 0))

	cursor, err := f.store.Cursors().Get(context.Background(), "staff-1")
	require.NoError(t, err)
	require.NotNil(t, cursor)
	assert.True(t, date(time.February, 28).Equal(cursor.LastProcessedDate), cursor.LastProcessedDate)
	assert.True(t, f.day(t, "staff-1", date(time.March, 2)).IsOpen)

	f.runAt(t, local(time.March, 6, 10, 0))
	assert.False(t, f.day(t, "staff-1", date(time.March, 2)).IsOpen)
}

type faultyDays struct {
	*memory.DayRepository
}

func (r faultyDays) Get(ctx context.Context, staffID string, d time.Time) (*attendance.Day, error) {
	switch staffID {
	case "broken":
		return nil, errors.New("storage unavailable")
	case "poison":
		panic("corrupt row")
	}
	return r.DayRepository.Get(ctx, staffID, d)
}

func TestReconcile_IsolatesFailingStaff(t *testing.T) {
	f := newFixture(t, func(r *memory.DayRepository) attendance.DayRepository { return faultyDays{r} })
	f.addStaff(t, "broken", date(time.March, 2))
	f.addStaff(t, "poison", date(time.March, 2))
	f.addStaff(t, "staff-1", date(time.March, 2))

	stats := f.runAt(t, local(time.March, 2, 14, 0))

	assert.EqualValues(t, 2, stats.Failed)
	assert.EqualValues(t, 3, stats.Staff)
	day := f.day(t, "staff-1", date(time.March, 2))
	require.NotNil(t, day)
	assert.Equal(t, attendance.StatusAbsent, day.Status)
}
