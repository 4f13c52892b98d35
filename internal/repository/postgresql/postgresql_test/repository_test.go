package postgresql_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/overtime"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/shift"
	"github.com/cmlabs-hris/attendance-engine/internal/repository/postgresql"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestEventRepository_Append_DuplicateIsNotInserted(t *testing.T) {
	db := newTestDB(t)
	repo := postgresql.NewEventRepository(db)
	ctx := context.Background()
	at := time.Date(2026, 3, 2, 2, 8, 0, 0, time.UTC)

	first, inserted, err := repo.Append(ctx, attendance.Event{StaffID: "staff-1", Type: attendance.EventCheckIn, At: at, Source: "web"})
	require.NoError(t, err)
	assert.True(t, inserted)

	again, inserted, err := repo.Append(ctx, attendance.Event{StaffID: "staff-1", Type: attendance.EventCheckIn, At: at, Source: "mobile"})
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, first.ID, again.ID)
}

func TestDayRepository_UpsertCheckIn_OneOpenDayUnderConcurrency(t *testing.T) {
	db := newTestDB(t)
	repo := postgresql.NewDayRepository(db)
	ctx := context.Background()
	at := time.Date(2026, 3, 2, 2, 8, 0, 0, time.UTC)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		applied int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := repo.UpsertCheckIn(ctx, attendance.Day{
				StaffID: "staff-1", Date: date(2026, 3, 2), Status: attendance.StatusPresent, CheckInAt: &at,
			}, nil)
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				applied++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, applied)
	days, total, err := repo.List(ctx, attendance.DayFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.True(t, days[0].IsOpen)
}

func TestDayRepository_MonthLockGuardsWrites(t *testing.T) {
	db := newTestDB(t)
	days := postgresql.NewDayRepository(db)
	pay := postgresql.NewPayrollRepository(db)
	ctx := context.Background()

	_, err := pay.CreateLock(ctx, payroll.Lock{Month: "2026-02"})
	require.NoError(t, err)

	created, err := days.CreateIfAbsent(ctx, attendance.Day{StaffID: "staff-1", Date: date(2026, 2, 10), Status: attendance.StatusWeekend})
	require.NoError(t, err)
	assert.False(t, created)

	_, err = days.Save(ctx, attendance.Day{StaffID: "staff-1", Date: date(2026, 2, 10), Status: attendance.StatusPresent})
	assert.ErrorIs(t, err, payroll.ErrMonthLocked)

	created, err = days.CreateIfAbsent(ctx, attendance.Day{StaffID: "staff-1", Date: date(2026, 3, 1), Status: attendance.StatusWeekend})
	require.NoError(t, err)
	assert.True(t, created)
}

func TestDayRepository_AddOvertime_LeavesSessionColumns(t *testing.T) {
	db := newTestDB(t)
	repo := postgresql.NewDayRepository(db)
	ctx := context.Background()
	in := time.Date(2026, 3, 2, 2, 0, 0, 0, time.UTC)
	out := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	_, err := repo.Save(ctx, attendance.Day{
		StaffID: "staff-1", Date: date(2026, 3, 2), Status: attendance.StatusPresent,
		CheckInAt: &in, CheckOutAt: &out, TotalMinutes: 480,
	})
	require.NoError(t, err)

	added, err := repo.AddOvertime(ctx, "staff-1", date(2026, 3, 2), 30, decimal.NewFromInt(45000))
	require.NoError(t, err)
	assert.True(t, added)
	added, err = repo.AddOvertime(ctx, "staff-1", date(2026, 3, 2), 60, decimal.NewFromInt(90000))
	require.NoError(t, err)
	assert.True(t, added)

	day, err := repo.Get(ctx, "staff-1", date(2026, 3, 2))
	require.NoError(t, err)
	assert.False(t, day.IsOpen)
	require.NotNil(t, day.CheckOutAt)
	assert.True(t, out.Equal(*day.CheckOutAt))
	assert.Equal(t, 90, day.OTMinutes)
	assert.True(t, decimal.NewFromInt(135000).Equal(day.OTAmount))

	added, err = repo.AddOvertime(ctx, "staff-1", date(2026, 3, 3), 30, decimal.NewFromInt(45000))
	require.NoError(t, err)
	assert.False(t, added)
}

func TestPayrollRepository_PaymentsAccumulateUntilLocked(t *testing.T) {
	db := newTestDB(t)
	repo := postgresql.NewPayrollRepository(db)
	ctx := context.Background()

	_, err := repo.ApplyPayment(ctx, payroll.PaymentTransaction{StaffID: "staff-1", Month: "2026-02", Amount: decimal.NewFromInt(500000), Method: "cash"})
	require.NoError(t, err)
	p, err := repo.ApplyPayment(ctx, payroll.PaymentTransaction{StaffID: "staff-1", Month: "2026-02", Amount: decimal.NewFromInt(250000), Method: "cash"})
	require.NoError(t, err)
	assert.True(t, p.PaidAmount.Equal(decimal.NewFromInt(750000)))
	assert.Equal(t, 2, p.PaymentCount)

	_, err = repo.CreateLock(ctx, payroll.Lock{Month: "2026-02"})
	require.NoError(t, err)
	_, err = repo.CreateLock(ctx, payroll.Lock{Month: "2026-02"})
	assert.ErrorIs(t, err, payroll.ErrMonthAlreadyLocked)

	_, err = repo.ApplyPayment(ctx, payroll.PaymentTransaction{StaffID: "staff-1", Month: "2026-02", Amount: decimal.NewFromInt(1), Method: "cash"})
	assert.ErrorIs(t, err, payroll.ErrMonthLocked)

	txs, err := repo.ListTransactions(ctx, "staff-1", "2026-02")
	require.NoError(t, err)
	assert.Len(t, txs, 2)
}

func TestAssignmentRepository_SupersedeClosesPrevious(t *testing.T) {
	db := newTestDB(t)
	shifts := postgresql.NewShiftRepository(db)
	assignments := postgresql.NewAssignmentRepository(db)
	ctx := context.Background()

	sh, err := shifts.Create(ctx, shift.Shift{
		BranchID: "branch-1", Name: "Office", Timezone: "Asia/Jakarta",
		WorkDays:  []time.Weekday{time.Monday, time.Tuesday},
		StartTime: shift.MustClockTime("09:00"), EndTime: shift.MustClockTime("17:00"),
		GracePeriodMinutes: 10, LateAfterMinutes: 10, HalfDayAfterMinutes: 240,
	})
	require.NoError(t, err)
	assert.Equal(t, "09:00", sh.StartTime.String())

	_, err = assignments.Supersede(ctx, shift.Assignment{StaffID: "staff-1", ShiftID: sh.ID, StartDate: date(2026, 1, 1)})
	require.NoError(t, err)
	_, err = assignments.Supersede(ctx, shift.Assignment{StaffID: "staff-1", ShiftID: sh.ID, StartDate: date(2026, 3, 1)})
	require.NoError(t, err)

	_, err = assignments.Supersede(ctx, shift.Assignment{StaffID: "staff-1", ShiftID: sh.ID, StartDate: date(2026, 2, 1)})
	assert.ErrorIs(t, err, shift.ErrAssignmentOverlap)

	old, err := assignments.GetForDate(ctx, "staff-1", date(2026, 2, 28))
	require.NoError(t, err)
	require.NotNil(t, old)
	require.NotNil(t, old.EndDate)
	assert.Equal(t, date(2026, 2, 28), old.EndDate.UTC())
}

func TestOvertimeRepository_UniquePerTypeAndOneOpen(t *testing.T) {
	db := newTestDB(t)
	repo := postgresql.NewOvertimeRepository(db)
	ctx := context.Background()
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	o, err := repo.Create(ctx, overtime.Overtime{
		StaffID: "staff-1", Date: date(2026, 3, 2), Type: overtime.TypePostShift,
		StartTime: start, ActualStartTime: &start, Status: overtime.StatusPending,
	})
	require.NoError(t, err)

	_, err = repo.Create(ctx, overtime.Overtime{
		StaffID: "staff-1", Date: date(2026, 3, 3), Type: overtime.TypePreShift,
		StartTime: start, Status: overtime.StatusPending,
	})
	assert.ErrorIs(t, err, overtime.ErrSessionRunning)

	end := start.Add(47 * time.Minute)
	o.EndTime, o.DurationMinutes = &end, 30
	_, applied, err := repo.Stop(ctx, o)
	require.NoError(t, err)
	assert.True(t, applied)

	_, err = repo.Create(ctx, overtime.Overtime{
		StaffID: "staff-1", Date: date(2026, 3, 2), Type: overtime.TypePostShift,
		StartTime: start, Status: overtime.StatusPending,
	})
	assert.ErrorIs(t, err, overtime.ErrSessionExists)
}
