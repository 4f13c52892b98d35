package attendance

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// EventRepository is the append-only check-in/check-out ledger.
type EventRepository interface {
	// Append stores ev. inserted is false when an event of the same type already
	// exists for the staff at the same instant; the stored event is returned.
	Append(ctx context.Context, ev Event) (stored Event, inserted bool, err error)
	// ListByStaff returns events with at in [from, to).
	ListByStaff(ctx context.Context, staffID string, from, to time.Time) ([]Event, error)
}

// DayRepository stores one Day per (staff, date). Every mutation refuses days in a
// locked payroll month; the conditional ones report applied=false and return the
// current row when their guard no longer holds.
type DayRepository interface {
	Get(ctx context.Context, staffID string, date time.Time) (*Day, error)
	// GetOpenSession returns the most recent open day dated on or after since.
	GetOpenSession(ctx context.Context, staffID string, since time.Time) (*Day, error)

	// UpsertCheckIn creates or opens the day when it is closed, not on leave, not
	// manual, not auto-absent, and its check-in still equals observedCheckIn.
	UpsertCheckIn(ctx context.Context, day Day, observedCheckIn *time.Time) (Day, bool, error)
	// ApplyCheckOut closes an open, non-manual day whose check-in equals day.CheckInAt.
	ApplyCheckOut(ctx context.Context, day Day) (Day, bool, error)

	// CreateIfAbsent inserts day unless a row for (staff, date) exists.
	CreateIfAbsent(ctx context.Context, day Day) (bool, error)
	// MarkAutoAbsent upgrades a day without check-in to absent unless it is manual,
	// already auto-absent, on leave, or a non-working day.
	MarkAutoAbsent(ctx context.Context, day Day) (bool, error)
	// CloseSession closes an open, non-manual day whose check-in equals day.CheckInAt.
	CloseSession(ctx context.Context, day Day) (bool, error)

	// AddOvertime increments the overtime minutes and amount of an existing day
	// without touching any other column. It reports false when the day is missing.
	AddOvertime(ctx context.Context, staffID string, date time.Time, minutes int, amount decimal.Decimal) (bool, error)

	// Save writes the whole row, creating it if needed.
	Save(ctx context.Context, day Day) (Day, error)
	List(ctx context.Context, filter DayFilter) ([]Day, int64, error)
}

// CursorRepository tracks reconciliation progress per staff.
type CursorRepository interface {
	Get(ctx context.Context, staffID string) (*Cursor, error)
	Save(ctx context.Context, c Cursor) error
}
