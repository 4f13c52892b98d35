package shift

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/shift"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/staff"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/validator"
	"github.com/cmlabs-hris/attendance-engine/internal/repository/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testStaffID = "0191d9a0-0000-7000-8000-000000000031"

func ptr[T any](v T) *T { return &v }

func newTestService(t *testing.T) shift.Service {
	t.Helper()
	store := memory.NewStore()
	store.PutStaff(staff.Staff{
		ID:               testStaffID,
		BranchID:         "branch-1",
		FullName:         "Shift Tester",
		Status:           staff.StatusActive,
		JoinDate:         time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		PerDaySalaryRate: decimal.NewFromInt(300000),
	})
	return NewShiftService(store.Shifts(), store.OffDates(), store.Assignments(), store.Staff())
}

func officeRequest() shift.CreateShiftRequest {
	return shift.CreateShiftRequest{
		BranchID:            "branch-1",
		Name:                "Office",
		Timezone:            "Asia/Jakarta",
		WorkDays:            []int{1, 2, 3, 4, 5},
		StartTime:           "09:00",
		EndTime:             "17:00",
		GracePeriodMinutes:  10,
		LateAfterMinutes:    15,
		HalfDayAfterMinutes: 240,
		OTEnabled:           true,
		MinOTMinutes:        30,
		RoundOTTo:           15,
	}
}

func TestShiftService_CreateShift(t *testing.T) {
	svc := newTestService(t)

	created, err := svc.CreateShift(context.Background(), officeRequest())

	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "09:00", created.StartTime)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, created.WorkDays)
	assert.False(t, created.IsOvernight)
}

func TestShiftService_CreateShift_RejectsBrokenThresholds(t *testing.T) {
	svc := newTestService(t)

	tests := []struct {
		name   string
		mutate func(r *shift.CreateShiftRequest)
		field  string
	}{
		{"late before grace", func(r *shift.CreateShiftRequest) { r.LateAfterMinutes = 5 }, "late_after_minutes"},
		{"half day not after late", func(r *shift.CreateShiftRequest) { r.HalfDayAfterMinutes = 15 }, "half_day_after_minutes"},
		{"unknown zone", func(r *shift.CreateShiftRequest) { r.Timezone = "Mars/Olympus" }, "timezone"},
		{"bad clock", func(r *shift.CreateShiftRequest) { r.StartTime = "25:00" }, "start_time"},
		{"weekday out of range", func(r *shift.CreateShiftRequest) { r.WorkDays = []int{1, 7} }, "work_days[1]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := officeRequest()
			tt.mutate(&req)

			_, err := svc.CreateShift(context.Background(), req)

			var verrs validator.ValidationErrors
			require.True(t, errors.As(err, &verrs), "got %v", err)
			assert.Contains(t, verrs.ToMap(), tt.field)
		})
	}
}

func TestShiftService_UpdateShift_NotFound(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.UpdateShift(context.Background(), shift.UpdateShiftRequest{ID: "missing", CreateShiftRequest: officeRequest()})

	assert.ErrorIs(t, err, shift.ErrShiftNotFound)
}

func TestShiftService_OffDates(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	created, err := svc.CreateShift(ctx, officeRequest())
	require.NoError(t, err)

	off, err := svc.AddOffDate(ctx, shift.AddOffDateRequest{ShiftID: created.ID, Date: "2026-03-04", Reason: ptr("Founding day")})
	require.NoError(t, err)
	assert.Equal(t, "2026-03-04", off.Date)

	_, err = svc.AddOffDate(ctx, shift.AddOffDateRequest{ShiftID: created.ID, Date: "2026-03-04"})
	assert.ErrorIs(t, err, shift.ErrOffDateExists)

	require.NoError(t, svc.RemoveOffDate(ctx, created.ID, "2026-03-04"))
	assert.ErrorIs(t, svc.RemoveOffDate(ctx, created.ID, "2026-03-04"), shift.ErrOffDateNotFound)
}

func TestShiftService_Calendar(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	created, err := svc.CreateShift(ctx, officeRequest())
	require.NoError(t, err)
	_, err = svc.AddOffDate(ctx, shift.AddOffDateRequest{ShiftID: created.ID, Date: "2026-03-04", Reason: ptr("Founding day")})
	require.NoError(t, err)

	// 2026-03-02 is a Monday.
	days, err := svc.Calendar(ctx, shift.CalendarRequest{ShiftID: created.ID, From: "2026-03-02", To: "2026-03-08"})
	require.NoError(t, err)
	require.Len(t, days, 7)

	assert.Equal(t, shift.DayWork, days[0].Kind)
	require.NotNil(t, days[0].Start)
	assert.Equal(t, time.Date(2026, 3, 2, 2, 0, 0, 0, time.UTC), *days[0].Start)
	assert.Equal(t, time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC), *days[0].End)

	assert.Equal(t, shift.DayHoliday, days[2].Kind)
	assert.Equal(t, "Founding day", *days[2].Reason)
	assert.Nil(t, days[2].Start)

	assert.Equal(t, shift.DayWeekend, days[5].Kind)
	assert.Equal(t, shift.DayWeekend, days[6].Kind)
}

func TestShiftService_Calendar_RangeChecks(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	created, err := svc.CreateShift(ctx, officeRequest())
	require.NoError(t, err)

	_, err = svc.Calendar(ctx, shift.CalendarRequest{ShiftID: created.ID, From: "2026-03-08", To: "2026-03-02"})
	assert.ErrorIs(t, err, shift.ErrInvalidDateRange)

	_, err = svc.Calendar(ctx, shift.CalendarRequest{ShiftID: created.ID, From: "2026-01-01", To: "2027-01-05"})
	assert.ErrorIs(t, err, shift.ErrCalendarRangeTooBig)
}

func TestShiftService_AssignShift_Supersedes(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	office, err := svc.CreateShift(ctx, officeRequest())
	require.NoError(t, err)
	nightReq := officeRequest()
	nightReq.Name = "Night"
	nightReq.StartTime, nightReq.EndTime = "22:00", "06:00"
	night, err := svc.CreateShift(ctx, nightReq)
	require.NoError(t, err)
	assert.True(t, night.IsOvernight)

	_, err = svc.AssignShift(ctx, shift.AssignShiftRequest{StaffID: testStaffID, ShiftID: office.ID, StartDate: "2026-01-01"})
	require.NoError(t, err)
	second, err := svc.AssignShift(ctx, shift.AssignShiftRequest{StaffID: testStaffID, ShiftID: night.ID, StartDate: "2026-03-01"})
	require.NoError(t, err)
	assert.True(t, second.IsActive)

	assignments, err := svc.ListAssignments(ctx, testStaffID)
	require.NoError(t, err)
	require.Len(t, assignments, 2)
	require.NotNil(t, assignments[0].EndDate)
	assert.Equal(t, "2026-02-28", *assignments[0].EndDate)
	assert.False(t, assignments[0].IsActive)
	assert.Nil(t, assignments[1].EndDate)

	_, err = svc.AssignShift(ctx, shift.AssignShiftRequest{StaffID: testStaffID, ShiftID: office.ID, StartDate: "2026-03-01"})
	assert.ErrorIs(t, err, shift.ErrAssignmentOverlap)
}

func TestShiftService_AssignShift_UnknownStaff(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	office, err := svc.CreateShift(ctx, officeRequest())
	require.NoError(t, err)

	_, err = svc.AssignShift(ctx, shift.AssignShiftRequest{StaffID: "nobody", ShiftID: office.ID, StartDate: "2026-01-01"})

	assert.ErrorIs(t, err, staff.ErrStaffNotFound)
}
