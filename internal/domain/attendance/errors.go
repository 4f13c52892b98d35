package attendance

import "github.com/cmlabs-hris/attendance-engine/internal/pkg/apperror"

var (
	ErrDuplicateCheckIn  = apperror.Conflict("DUPLICATE_CHECK_IN", "already checked in; check out before checking in again")
	ErrNoOpenCheckIn     = apperror.Conflict("NO_OPEN_CHECK_IN", "no open check-in to check out from")
	ErrAlreadyOnLeave    = apperror.Conflict("ALREADY_ON_LEAVE", "the day is marked as leave")
	ErrDayClosed         = apperror.Conflict("DAY_CLOSED", "the day has already been closed as absent")
	ErrManualRecord      = apperror.Conflict("MANUAL_RECORD", "the day was set by an administrator")
	ErrInvalidTransition = apperror.Conflict("INVALID_STATUS_TRANSITION", "status transition not allowed")
	ErrInvalidStatus     = apperror.Validation("INVALID_STATUS", "invalid attendance status")
	ErrDayNotFound       = apperror.NotFound("ATTENDANCE_DAY_NOT_FOUND", "attendance day not found")
	ErrStaffInactive     = apperror.Validation("STAFF_INACTIVE", "staff is not active")
	ErrInvalidCheckOut   = apperror.Validation("INVALID_CHECK_OUT", "check-out must not be before check-in")
)
