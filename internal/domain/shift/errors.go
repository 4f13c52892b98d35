package shift

import "github.com/cmlabs-hris/attendance-engine/internal/pkg/apperror"

var (
	ErrShiftNotFound       = apperror.NotFound("SHIFT_NOT_FOUND", "shift not found")
	ErrAssignmentNotFound  = apperror.NotFound("ASSIGNMENT_NOT_FOUND", "shift assignment not found")
	ErrOffDateNotFound     = apperror.NotFound("OFF_DATE_NOT_FOUND", "off date not found")
	ErrOffDateExists       = apperror.Conflict("OFF_DATE_EXISTS", "off date already exists for this shift")
	ErrAssignmentOverlap   = apperror.Conflict("ASSIGNMENT_OVERLAP", "new assignment must start after the current assignment's start date")
	ErrInvalidDateRange    = apperror.Validation("INVALID_DATE_RANGE", "from must not be after to")
	ErrCalendarRangeTooBig = apperror.Validation("CALENDAR_RANGE_TOO_BIG", "calendar range must not exceed 366 days")
)

var ErrNoActiveShift = apperror.Validation("NO_ACTIVE_SHIFT", "staff has no active shift assignment")
