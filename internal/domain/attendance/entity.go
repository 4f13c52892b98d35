package attendance

import (
	"time"

	"github.com/shopspring/decimal"
)

type EventType string

const (
	EventCheckIn  EventType = "check_in"
	EventCheckOut EventType = "check_out"
)

// Event is an immutable check-in/check-out fact.
type Event struct {
	ID        string
	StaffID   string
	ShiftID   *string
	Type      EventType
	At        time.Time
	Source    string
	IP        *string
	UserAgent *string
	CreatedAt time.Time
}

// Day is the derived attendance record for one staff on one calendar date.
type Day struct {
	ID               string
	StaffID          string
	ShiftID          *string
	Date             time.Time
	Status           Status
	CheckInAt        *time.Time
	CheckOutAt       *time.Time
	IsOpen           bool // a check-in awaits its check-out
	TotalMinutes     int
	LateMinutes      int
	EarlyExitMinutes int
	OTMinutes        int
	PayableAmount    decimal.Decimal
	DeductionAmount  decimal.Decimal
	OTAmount         decimal.Decimal
	IsManual         bool
	IsAutoAbsent     bool
	LeaveRequestID   *string
	ProcessedAt      *time.Time
	Note             *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// HasCheckIn reports whether the day carries a check-in.
func (d Day) HasCheckIn() bool {
	return d.CheckInAt != nil
}

// Settled reports whether the scheduler must leave the day alone.
func (d Day) Settled() bool {
	return d.IsManual || d.IsAutoAbsent || d.Status == StatusOnLeave || d.Status.IsNonWorking()
}

// DayFilter selects attendance days. Zero values are ignored.
type DayFilter struct {
	StaffID  *string
	BranchID *string
	Status   *Status
	From     *time.Time
	To       *time.Time // inclusive
	Page     int
	Limit    int
}

// Cursor records the last date the reconciler fully settled for a staff member.
type Cursor struct {
	StaffID           string
	LastProcessedDate time.Time
	UpdatedAt         time.Time
}
