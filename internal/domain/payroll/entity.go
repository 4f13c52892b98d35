package payroll

import (
	"time"

	"github.com/shopspring/decimal"
)

// Lock freezes a payroll month. Its existence is the lock.
type Lock struct {
	Month    string // YYYY-MM
	LockedBy *string
	LockedAt time.Time
}

// Payment is the running paid total for one staff member in one month.
type Payment struct {
	StaffID      string
	Month        string
	PaidAmount   decimal.Decimal
	PaymentCount int
	LastPaidAt   time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PaymentTransaction is one additive payment call.
type PaymentTransaction struct {
	ID        string
	StaffID   string
	Month     string
	Amount    decimal.Decimal
	Method    string
	Reference *string
	Note      *string
	PaidBy    *string
	CreatedAt time.Time
}

// AttendanceSummary aggregates one staff member's attendance days in a month.
type AttendanceSummary struct {
	StaffID          string
	PresentDays      int
	LateDays         int
	HalfDays         int
	EarlyExitDays    int
	AbsentDays       int
	LeaveDays        int
	WeekendDays      int
	HolidayDays      int
	LateMinutes      int
	EarlyExitMinutes int
	TotalMinutes     int
	Payable          decimal.Decimal
	Deduction        decimal.Decimal
}

// WorkDays counts days the staff was expected to work.
func (s AttendanceSummary) WorkDays() int {
	return s.PresentDays + s.LateDays + s.HalfDays + s.EarlyExitDays + s.AbsentDays + s.LeaveDays
}
