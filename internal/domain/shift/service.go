package shift

import "context"

type Service interface {
	CreateShift(ctx context.Context, req CreateShiftRequest) (ShiftResponse, error)
	UpdateShift(ctx context.Context, req UpdateShiftRequest) (ShiftResponse, error)
	GetShift(ctx context.Context, id string) (ShiftResponse, error)
	ListShifts(ctx context.Context, branchID *string) ([]ShiftResponse, error)

	AddOffDate(ctx context.Context, req AddOffDateRequest) (OffDateResponse, error)
	RemoveOffDate(ctx context.Context, shiftID string, date string) error

	// AssignShift supersedes the staff's active assignment.
	AssignShift(ctx context.Context, req AssignShiftRequest) (AssignmentResponse, error)
	ListAssignments(ctx context.Context, staffID string) ([]AssignmentResponse, error)

	Calendar(ctx context.Context, req CalendarRequest) ([]CalendarDay, error)
}
