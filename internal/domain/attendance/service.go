package attendance

import "context"

type Service interface {
	CheckIn(ctx context.Context, req CheckInRequest) (DayResponse, error)
	CheckOut(ctx context.Context, req CheckOutRequest) (DayResponse, error)
	TodayStatus(ctx context.Context, staffID string) (TodayStatusResponse, error)

	GetDay(ctx context.Context, req DayKeyRequest) (DayResponse, error)
	ListDays(ctx context.Context, req ListDaysRequest) (ListDaysResponse, error)

	// ApplyLeave projects an approved leave day onto the attendance record.
	ApplyLeave(ctx context.Context, req ApplyLeaveRequest) (DayResponse, error)
	// OverrideDay sets any status as an administrator; the day becomes manual.
	OverrideDay(ctx context.Context, req OverrideDayRequest, adminID string) (DayResponse, error)
	// ReopenDay clears manual and auto-absent flags so reconciliation reconsiders the day.
	ReopenDay(ctx context.Context, req DayKeyRequest) (DayResponse, error)
}
