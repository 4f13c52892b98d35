package overtime

import (
	"time"

	"github.com/shopspring/decimal"
)

type Type string

const (
	TypePreShift  Type = "pre_shift"
	TypePostShift Type = "post_shift"
	TypeWeekend   Type = "weekend"
	TypeHoliday   Type = "holiday"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

type Overtime struct {
	ID               string
	StaffID          string
	ShiftID          *string
	Date             time.Time
	Type             Type
	StartTime        time.Time  // planned start: the shift boundary or the actual start
	ActualStartTime  *time.Time // when the staff pressed start
	EndTime          *time.Time
	DurationMinutes  int
	EarlyStopMinutes int
	Status           Status
	OTAmount         decimal.Decimal
	ApprovedBy       *string
	ApprovedAt       *time.Time
	RejectionReason  *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// IsOpen reports whether the session has not been stopped yet.
func (o Overtime) IsOpen() bool {
	return o.EndTime == nil
}

// IsDiscarded reports a stopped session whose duration fell below the minimum.
func (o Overtime) IsDiscarded() bool {
	return !o.IsOpen() && o.DurationMinutes == 0
}

// Policy holds the duration rules applied on stop.
type Policy struct {
	MinMinutes           int // below this the session is discarded
	RoundTo              int // round down to a multiple of this; 0 disables rounding
	EarlyStopThreshold   int // sessions shorter than this pay the penalty
	EarlyStopPenaltyMins int
}

// ComputeDuration applies the early-stop penalty, rounding, and minimum to a raw
// duration in minutes. It returns the payable duration and the penalty applied.
func ComputeDuration(raw int, p Policy) (duration, earlyStop int) {
	d := max(0, raw)
	if p.EarlyStopThreshold > 0 && d < p.EarlyStopThreshold {
		earlyStop = min(d, p.EarlyStopPenaltyMins)
		d -= earlyStop
	}
	if p.RoundTo > 0 {
		d = d / p.RoundTo * p.RoundTo
	}
	if d < p.MinMinutes {
		d = 0
	}
	return d, earlyStop
}

// Filter selects overtime sessions. Zero values are ignored.
type Filter struct {
	StaffID *string
	Status  *Status
	Type    *Type
	From    *time.Time
	To      *time.Time // inclusive
	Page    int
	Limit   int
}

// Totals aggregates approved overtime for one staff member.
type Totals struct {
	StaffID string
	Minutes int
	Amount  decimal.Decimal
}
