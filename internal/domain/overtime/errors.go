package overtime

import "github.com/cmlabs-hris/attendance-engine/internal/pkg/apperror"

var (
	ErrOvertimeNotFound       = apperror.NotFound("OVERTIME_NOT_FOUND", "overtime session not found")
	ErrOvertimeDisabled       = apperror.Validation("OVERTIME_DISABLED", "overtime is not enabled for this shift")
	ErrWithinShift            = apperror.Validation("OVERTIME_WITHIN_SHIFT", "overtime cannot start during the shift window")
	ErrSessionExists          = apperror.Conflict("OVERTIME_SESSION_EXISTS", "an overtime session of this type already exists for the day")
	ErrSessionRunning         = apperror.Conflict("OVERTIME_SESSION_RUNNING", "an overtime session is already running")
	ErrNoOpenSession          = apperror.Conflict("NO_OPEN_OVERTIME_SESSION", "no running overtime session to stop")
	ErrSessionStillOpen       = apperror.Conflict("OVERTIME_SESSION_OPEN", "overtime session has not been stopped")
	ErrAlreadyReviewed        = apperror.Conflict("OVERTIME_ALREADY_REVIEWED", "overtime session has already been approved or rejected")
	ErrNothingToApprove       = apperror.Validation("OVERTIME_DISCARDED", "overtime session was below the minimum duration")
	ErrRejectionReasonMissing = apperror.Validation("REJECTION_REASON_REQUIRED", "a rejection reason is required")
)
