package payroll

import (
	"context"
	"time"
)

type Repository interface {
	// CreateLock inserts the month's lock; ErrMonthAlreadyLocked when it exists.
	CreateLock(ctx context.Context, lock Lock) (Lock, error)
	GetLock(ctx context.Context, month string) (*Lock, error)
	ListLockedMonths(ctx context.Context) ([]string, error)

	// ApplyPayment records tx and adds its amount to the staff-month total in one
	// conditional step; ErrMonthLocked when the month is locked.
	ApplyPayment(ctx context.Context, tx PaymentTransaction) (Payment, error)
	GetPayment(ctx context.Context, staffID, month string) (*Payment, error)
	ListPayments(ctx context.Context, month string) ([]Payment, error)
	ListTransactions(ctx context.Context, staffID, month string) ([]PaymentTransaction, error)

	// SummarizeAttendance aggregates attendance days dated in [from, to) per staff.
	SummarizeAttendance(ctx context.Context, from, to time.Time) (map[string]AttendanceSummary, error)
}
