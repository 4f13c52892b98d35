package staff

import (
	"context"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/pkg/apperror"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusActive     Status = "active"
	StatusInactive   Status = "inactive"
	StatusTerminated Status = "terminated"
)

// Staff is reference data owned by the HR subsystem; this service only reads it.
type Staff struct {
	ID               string
	BranchID         string
	FullName         string
	Status           Status
	JoinDate         time.Time
	PerDaySalaryRate decimal.Decimal
}

func (s Staff) IsActive() bool {
	return s.Status == StatusActive
}

var ErrStaffNotFound = apperror.NotFound("STAFF_NOT_FOUND", "staff not found")

type Repository interface {
	GetByID(ctx context.Context, id string) (Staff, error)
	// ListActive returns active staff, optionally restricted to one branch.
	ListActive(ctx context.Context, branchID *string) ([]Staff, error)
}
