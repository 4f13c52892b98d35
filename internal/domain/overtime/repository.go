package overtime

import (
	"context"
	"time"
)

type Repository interface {
	// Create inserts a session; ErrSessionExists when (staff, date, type) is taken.
	Create(ctx context.Context, o Overtime) (Overtime, error)
	GetByID(ctx context.Context, id string) (Overtime, error)
	// GetOpen returns the staff's running session, or nil.
	GetOpen(ctx context.Context, staffID string) (*Overtime, error)
	// Stop finalizes o when it is still open; applied is false otherwise.
	Stop(ctx context.Context, o Overtime) (Overtime, bool, error)
	// Review moves a stopped pending session to approved or rejected; applied is
	// false when the session is no longer pending.
	Review(ctx context.Context, o Overtime) (Overtime, bool, error)
	List(ctx context.Context, filter Filter) ([]Overtime, int64, error)
	// SumApproved totals approved overtime dated in [from, to) per staff.
	SumApproved(ctx context.Context, from, to time.Time) (map[string]Totals, error)
}
