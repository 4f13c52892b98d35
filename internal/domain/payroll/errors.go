package payroll

import "github.com/cmlabs-hris/attendance-engine/internal/pkg/apperror"

var (
	ErrMonthLocked        = apperror.Conflict("MONTH_LOCKED", "payroll month is locked")
	ErrMonthAlreadyLocked = apperror.Conflict("MONTH_ALREADY_LOCKED", "payroll month is already locked")
	ErrInvalidAmount      = apperror.Validation("INVALID_AMOUNT", "amount must be greater than zero")
	ErrInvalidMonth       = apperror.Validation("INVALID_MONTH", "month must be in YYYY-MM format")
	ErrLockNotFound       = apperror.NotFound("PAYROLL_LOCK_NOT_FOUND", "payroll month is not locked")
	ErrPaymentNotFound    = apperror.NotFound("PAYMENT_NOT_FOUND", "no payment recorded for this staff and month")
	ErrEmptyBulk          = apperror.Validation("EMPTY_BULK_PAYMENT", "at least one payment is required")
)
