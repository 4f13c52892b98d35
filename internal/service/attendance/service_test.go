package attendance

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/leave"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/shift"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/staff"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/validator"
	"github.com/cmlabs-hris/attendance-engine/internal/repository/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testStaffID = "0191d9a0-0000-7000-8000-000000000001"

var jakarta = mustLoad("Asia/Jakarta")

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

// local builds an instant in Jakarta; 2026-03-02 is a Monday.
func local(day, hh, mm int) time.Time {
	return time.Date(2026, time.March, day, hh, mm, 0, 0, jakarta)
}

func ptr[T any](v T) *T { return &v }

type fixture struct {
	store *memory.Store
	clock *clock.Mock
	svc   attendance.Service
}

func newFixture(t *testing.T, sh shift.Shift) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	store.PutStaff(staff.Staff{
		ID:               testStaffID,
		BranchID:         "branch-1",
		FullName:         "Test Staff",
		Status:           staff.StatusActive,
		JoinDate:         time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		PerDaySalaryRate: decimal.NewFromInt(480000),
	})

	created, err := store.Shifts().Create(ctx, sh)
	require.NoError(t, err)
	_, err = store.Assignments().Supersede(ctx, shift.Assignment{
		StaffID:   testStaffID,
		ShiftID:   created.ID,
		StartDate: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	mock := clock.NewMock()
	resolver := shift.NewResolver(store.Shifts(), store.OffDates(), store.Assignments())
	svc := NewAttendanceService(mock, resolver, store.Staff(), store.Leave(), store.Events(), store.Days())
	return &fixture{store: store, clock: mock, svc: svc}
}

func officeShift() shift.Shift {
	return shift.Shift{
		BranchID:            "branch-1",
		Name:                "Office",
		Timezone:            "Asia/Jakarta",
		WorkDays:            []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
		StartTime:           shift.MustClockTime("09:00"),
		EndTime:             shift.MustClockTime("17:00"),
		GracePeriodMinutes:  10,
		LateAfterMinutes:    10,
		HalfDayAfterMinutes: 240,
		OTEnabled:           true,
		MinOTMinutes:        30,
		RoundOTTo:           15,
	}
}

func (f *fixture) checkInAt(t *testing.T, at time.Time) (attendance.DayResponse, error) {
	t.Helper()
	f.clock.Set(at)
	return f.svc.CheckIn(context.Background(), attendance.CheckInRequest{StaffID: testStaffID})
}

func (f *fixture) checkOutAt(t *testing.T, at time.Time) (attendance.DayResponse, error) {
	t.Helper()
	f.clock.Set(at)
	return f.svc.CheckOut(context.Background(), attendance.CheckOutRequest{StaffID: testStaffID})
}

func TestAttendanceService_CheckIn_WithinGraceIsPresent(t *testing.T) {
	f := newFixture(t, officeShift())

	day, err := f.checkInAt(t, local(2, 9, 8))

	require.NoError(t, err)
	assert.Equal(t, "2026-03-02", day.Date)
	assert.Equal(t, attendance.StatusPresent, day.Status)
	assert.Equal(t, 0, day.LateMinutes)
	assert.True(t, day.IsOpen)
}

func TestAttendanceService_CheckIn_Late(t *testing.T) {
	f := newFixture(t, officeShift())

	day, err := f.checkInAt(t, local(2, 9, 25))

	require.NoError(t, err)
	assert.Equal(t, attendance.StatusLate, day.Status)
	assert.Equal(t, 15, day.LateMinutes)
}

func TestAttendanceService_CheckIn_AfterHalfDayThreshold(t *testing.T) {
	f := newFixture(t, officeShift())

	day, err := f.checkInAt(t, local(2, 13, 0))

	require.NoError(t, err)
	assert.Equal(t, attendance.StatusHalfDay, day.Status)
	assert.True(t, decimal.NewFromInt(240000).Equal(day.PayableAmount))
}

func TestAttendanceService_CheckIn_DuplicateWhileOpen(t *testing.T) {
	f := newFixture(t, officeShift())
	_, err := f.checkInAt(t, local(2, 9, 0))
	require.NoError(t, err)

	_, err = f.checkInAt(t, local(2, 9, 30))

	assert.ErrorIs(t, err, attendance.ErrDuplicateCheckIn)
}

func TestAttendanceService_CheckIn_ReplayReturnsSameDay(t *testing.T) {
	f := newFixture(t, officeShift())
	ctx := context.Background()
	at := local(2, 9, 5)
	f.clock.Set(local(2, 9, 6))

	first, err := f.svc.CheckIn(ctx, attendance.CheckInRequest{StaffID: testStaffID, At: &at})
	require.NoError(t, err)
	writes := f.store.Writes()

	second, err := f.svc.CheckIn(ctx, attendance.CheckInRequest{StaffID: testStaffID, At: &at})

	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, writes, f.store.Writes())
}

func TestAttendanceService_CheckIn_ConcurrentSubmissionsCreateOneDay(t *testing.T) {
	f := newFixture(t, officeShift())
	ctx := context.Background()
	at := local(2, 8, 55)
	f.clock.Set(local(2, 9, 0))

	var wg sync.WaitGroup
	errs := make([]error, 10)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.CheckIn(ctx, attendance.CheckInRequest{StaffID: testStaffID, At: &at})
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	days, total, err := f.store.Days().List(ctx, attendance.DayFilter{StaffID: ptr(testStaffID)})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, attendance.StatusPresent, days[0].Status)
}

func TestAttendanceService_CheckIn_FutureTimestampRejected(t *testing.T) {
	f := newFixture(t, officeShift())
	f.clock.Set(local(2, 9, 0))
	at := local(2, 10, 0)

	_, err := f.svc.CheckIn(context.Background(), attendance.CheckInRequest{StaffID: testStaffID, At: &at})

	var verrs validator.ValidationErrors
	assert.ErrorAs(t, err, &verrs)
}

func TestAttendanceService_CheckIn_InactiveStaff(t *testing.T) {
	f := newFixture(t, officeShift())
	f.store.PutStaff(staff.Staff{ID: testStaffID, Status: staff.StatusTerminated})

	_, err := f.checkInAt(t, local(2, 9, 0))

	assert.ErrorIs(t, err, attendance.ErrStaffInactive)
}

func TestAttendanceService_CheckIn_OnApprovedLeave(t *testing.T) {
	f := newFixture(t, officeShift())
	f.store.PutLeaveDay(leave.LeaveDay{
		StaffID:        testStaffID,
		Date:           time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		LeaveRequestID: "leave-1",
		IsPaid:         true,
	})

	_, err := f.checkInAt(t, local(2, 9, 0))

	assert.ErrorIs(t, err, attendance.ErrAlreadyOnLeave)
}

func TestAttendanceService_CheckIn_LockedMonth(t *testing.T) {
	f := newFixture(t, officeShift())
	lockedBy := "admin"
	_, err := f.store.Payroll().CreateLock(context.Background(), payroll.Lock{Month: "2026-03", LockedBy: &lockedBy})
	require.NoError(t, err)

	_, err = f.checkInAt(t, local(2, 9, 0))

	assert.ErrorIs(t, err, payroll.ErrMonthLocked)
}

func TestAttendanceService_CheckIn_Weekend(t *testing.T) {
	f := newFixture(t, officeShift())

	day, err := f.checkInAt(t, local(7, 10, 0))

	require.NoError(t, err)
	assert.Equal(t, attendance.StatusWeekend, day.Status)
	assert.True(t, day.PayableAmount.IsZero())
}

func TestAttendanceService_CheckIn_NoAssignment(t *testing.T) {
	store := memory.NewStore()
	store.PutStaff(staff.Staff{ID: testStaffID, Status: staff.StatusActive})
	mock := clock.NewMock()
	mock.Set(local(2, 9, 0))
	resolver := shift.NewResolver(store.Shifts(), store.OffDates(), store.Assignments())
	svc := NewAttendanceService(mock, resolver, store.Staff(), store.Leave(), store.Events(), store.Days())

	_, err := svc.CheckIn(context.Background(), attendance.CheckInRequest{StaffID: testStaffID})

	assert.ErrorIs(t, err, shift.ErrNoActiveShift)
}

func TestAttendanceService_CheckOut_FullDay(t *testing.T) {
	f := newFixture(t, officeShift())
	_, err := f.checkInAt(t, local(2, 9, 8))
	require.NoError(t, err)

	day, err := f.checkOutAt(t, local(2, 17, 0))

	require.NoError(t, err)
	assert.Equal(t, attendance.StatusPresent, day.Status)
	assert.Equal(t, 472, day.TotalMinutes)
	assert.False(t, day.IsOpen)
	assert.True(t, decimal.NewFromInt(480000).Equal(day.PayableAmount))
	assert.True(t, day.DeductionAmount.IsZero())
	assert.NotNil(t, day.ProcessedAt)
}

func TestAttendanceService_CheckOut_EarlyExitProratesDeduction(t *testing.T) {
	f := newFixture(t, officeShift())
	_, err := f.checkInAt(t, local(2, 9, 0))
	require.NoError(t, err)

	day, err := f.checkOutAt(t, local(2, 15, 0))

	require.NoError(t, err)
	assert.Equal(t, attendance.StatusEarlyExit, day.Status)
	assert.Equal(t, 120, day.EarlyExitMinutes)
	assert.True(t, decimal.NewFromInt(120000).Equal(day.DeductionAmount), day.DeductionAmount.String())
	assert.True(t, decimal.NewFromInt(360000).Equal(day.PayableAmount), day.PayableAmount.String())
}

func TestAttendanceService_CheckOut_BeforeHalfDayThreshold(t *testing.T) {
	f := newFixture(t, officeShift())
	_, err := f.checkInAt(t, local(2, 9, 0))
	require.NoError(t, err)

	day, err := f.checkOutAt(t, local(2, 12, 0))

	require.NoError(t, err)
	assert.Equal(t, attendance.StatusHalfDay, day.Status)
}

func TestAttendanceService_CheckOut_WithoutCheckIn(t *testing.T) {
	f := newFixture(t, officeShift())

	_, err := f.checkOutAt(t, local(2, 17, 0))

	assert.ErrorIs(t, err, attendance.ErrNoOpenCheckIn)
}

func TestAttendanceService_CheckOut_ReplayAfterClose(t *testing.T) {
	f := newFixture(t, officeShift())
	ctx := context.Background()
	_, err := f.checkInAt(t, local(2, 9, 0))
	require.NoError(t, err)
	out := local(2, 17, 0)
	first, err := f.checkOutAt(t, out)
	require.NoError(t, err)

	second, err := f.svc.CheckOut(ctx, attendance.CheckOutRequest{StaffID: testStaffID, At: &out})

	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Status, second.Status)
}

func TestAttendanceService_SecondSessionRestoresFullDay(t *testing.T) {
	f := newFixture(t, officeShift())
	_, err := f.checkInAt(t, local(2, 9, 0))
	require.NoError(t, err)
	day, err := f.checkOutAt(t, local(2, 12, 0))
	require.NoError(t, err)
	require.Equal(t, attendance.StatusHalfDay, day.Status)

	day, err = f.checkInAt(t, local(2, 13, 0))
	require.NoError(t, err)
	assert.True(t, day.IsOpen)
	assert.True(t, local(2, 9, 0).Equal(*day.CheckInAt))

	day, err = f.checkOutAt(t, local(2, 17, 0))

	require.NoError(t, err)
	assert.Equal(t, attendance.StatusPresent, day.Status)
	assert.Equal(t, 480, day.TotalMinutes)
}

func TestAttendanceService_OvernightShiftKeepsStartDate(t *testing.T) {
	sh := officeShift()
	sh.Name = "Night"
	sh.StartTime = shift.MustClockTime("22:00")
	sh.EndTime = shift.MustClockTime("06:00")
	f := newFixture(t, sh)

	in, err := f.checkInAt(t, local(2, 22, 5))
	require.NoError(t, err)
	out, err := f.checkOutAt(t, local(3, 6, 0))

	require.NoError(t, err)
	assert.Equal(t, "2026-03-02", in.Date)
	assert.Equal(t, "2026-03-02", out.Date)
	assert.Equal(t, attendance.StatusPresent, out.Status)
	assert.Equal(t, 475, out.TotalMinutes)
}

func TestAttendanceService_TodayStatus(t *testing.T) {
	f := newFixture(t, officeShift())
	_, err := f.checkInAt(t, local(2, 9, 0))
	require.NoError(t, err)

	status, err := f.svc.TodayStatus(context.Background(), testStaffID)

	require.NoError(t, err)
	assert.Equal(t, "2026-03-02", status.Date)
	assert.True(t, status.IsWorkDay)
	assert.False(t, status.CanCheckIn)
	assert.True(t, status.CanCheckOut)
	require.NotNil(t, status.Day)
	assert.Equal(t, attendance.StatusPresent, status.Day.Status)
}

func TestAttendanceService_ApplyLeave_PaidLeave(t *testing.T) {
	f := newFixture(t, officeShift())

	day, err := f.svc.ApplyLeave(context.Background(), attendance.ApplyLeaveRequest{
		StaffID:        testStaffID,
		Date:           "2026-03-03",
		LeaveRequestID: "leave-1",
		IsPaid:         true,
	})

	require.NoError(t, err)
	assert.Equal(t, attendance.StatusOnLeave, day.Status)
	assert.True(t, decimal.NewFromInt(480000).Equal(day.PayableAmount))
	assert.Equal(t, "leave-1", *day.LeaveRequestID)
}

func TestAttendanceService_OverrideDay_BlocksCheckInUntilReopened(t *testing.T) {
	f := newFixture(t, officeShift())
	ctx := context.Background()

	day, err := f.svc.OverrideDay(ctx, attendance.OverrideDayRequest{
		StaffID: testStaffID,
		Date:    "2026-03-02",
		Status:  string(attendance.StatusAbsent),
		Note:    ptr("no show"),
	}, "admin-1")
	require.NoError(t, err)
	assert.True(t, day.IsManual)
	assert.True(t, decimal.NewFromInt(480000).Equal(day.DeductionAmount))

	_, err = f.checkInAt(t, local(2, 9, 0))
	assert.ErrorIs(t, err, attendance.ErrManualRecord)

	reopened, err := f.svc.ReopenDay(ctx, attendance.DayKeyRequest{StaffID: testStaffID, Date: "2026-03-02"})
	require.NoError(t, err)
	assert.False(t, reopened.IsManual)
}

func TestAttendanceService_OverrideDay_InvalidStatus(t *testing.T) {
	f := newFixture(t, officeShift())

	_, err := f.svc.OverrideDay(context.Background(), attendance.OverrideDayRequest{
		StaffID: testStaffID,
		Date:    "2026-03-02",
		Status:  "sick",
	}, "admin-1")

	assert.Error(t, err)
}

func TestAttendanceService_GetDay_NotFound(t *testing.T) {
	f := newFixture(t, officeShift())

	_, err := f.svc.GetDay(context.Background(), attendance.DayKeyRequest{StaffID: testStaffID, Date: "2026-03-02"})

	assert.ErrorIs(t, err, attendance.ErrDayNotFound)
}

func TestAttendanceService_ListDays(t *testing.T) {
	f := newFixture(t, officeShift())
	for d := 2; d <= 4; d++ {
		_, err := f.checkInAt(t, local(d, 9, 0))
		require.NoError(t, err)
		_, err = f.checkOutAt(t, local(d, 17, 0))
		require.NoError(t, err)
	}

	resp, err := f.svc.ListDays(context.Background(), attendance.ListDaysRequest{StaffID: ptr(testStaffID), Limit: 2})

	require.NoError(t, err)
	assert.EqualValues(t, 3, resp.TotalCount)
	assert.Equal(t, 2, resp.TotalPages)
	require.Len(t, resp.Days, 2)
	assert.Equal(t, "2026-03-04", resp.Days[0].Date)
}
