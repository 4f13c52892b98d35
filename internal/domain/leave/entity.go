package leave

import (
	"context"
	"time"
)

type LeaveRequestStatus string

const (
	LeaveRequestStatusApproved LeaveRequestStatus = "approved"
)

// LeaveDay is one approved leave date projected from a leave request.
// Leave requests and quotas are owned by the leave subsystem; this service reads approved days.
type LeaveDay struct {
	StaffID        string
	Date           time.Time
	LeaveRequestID string
	LeaveTypeName  string
	IsPaid         bool
	AffectsSalary  bool
}

// IsFullyPaid reports whether the day is paid without deduction.
func (d LeaveDay) IsFullyPaid() bool {
	return d.IsPaid && !d.AffectsSalary
}

type Repository interface {
	// GetApproved returns the approved leave covering date, or nil.
	GetApproved(ctx context.Context, staffID string, date time.Time) (*LeaveDay, error)
	// ListApproved returns approved leave days in [from, to].
	ListApproved(ctx context.Context, staffID string, from, to time.Time) ([]LeaveDay, error)
}
