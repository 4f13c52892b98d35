package shift

import (
	"context"
	"time"
)

type Repository interface {
	Create(ctx context.Context, s Shift) (Shift, error)
	Update(ctx context.Context, s Shift) (Shift, error)
	GetByID(ctx context.Context, id string) (Shift, error)
	List(ctx context.Context, branchID *string) ([]Shift, error)
}

type OffDateRepository interface {
	Create(ctx context.Context, o OffDate) (OffDate, error)
	Delete(ctx context.Context, shiftID string, date time.Time) error
	// ListByShift returns off dates in [from, to).
	ListByShift(ctx context.Context, shiftID string, from, to time.Time) ([]OffDate, error)
}

type AssignmentRepository interface {
	// Supersede atomically closes the staff's active assignment on the day before
	// next.StartDate and inserts next as the new active assignment.
	Supersede(ctx context.Context, next Assignment) (Assignment, error)
	GetActive(ctx context.Context, staffID string) (*Assignment, error)
	GetForDate(ctx context.Context, staffID string, date time.Time) (*Assignment, error)
	ListByStaff(ctx context.Context, staffID string) ([]Assignment, error)
}
