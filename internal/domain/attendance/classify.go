package attendance

import (
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/shift"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/utils"
	"github.com/shopspring/decimal"
)

// ClassifyCheckIn derives the status and late minutes of a check-in on a work day.
// Lateness is charged beyond the grace period once the late threshold is crossed;
// arriving at or past the half-day threshold counts as a half day.
func ClassifyCheckIn(s shift.Shift, w shift.Window, at time.Time) (Status, int) {
	elapsed := utils.WholeMinutes(at.Sub(w.Start))
	if elapsed <= s.LateAfterMinutes {
		return StatusPresent, 0
	}

	lateMinutes := max(0, elapsed-s.GracePeriodMinutes)
	if elapsed >= s.HalfDayAfterMinutes {
		return StatusHalfDay, lateMinutes
	}
	return StatusLate, lateMinutes
}

type CheckOutResult struct {
	Status           Status
	TotalMinutes     int
	EarlyExitMinutes int
}

// ClassifyCheckOut reclassifies a work day on check-out. A check-out earlier than
// halfDayAfterMinutes from the expected start is a half day; otherwise leaving
// before the expected end is an early exit.
func ClassifyCheckOut(s shift.Shift, w shift.Window, checkInStatus Status, checkInAt, checkOutAt time.Time) CheckOutResult {
	res := CheckOutResult{
		Status:           checkInStatus,
		TotalMinutes:     max(0, utils.WholeMinutes(checkOutAt.Sub(checkInAt))),
		EarlyExitMinutes: max(0, utils.WholeMinutes(w.End.Sub(checkOutAt))),
	}

	if checkInStatus.IsNonWorking() {
		res.EarlyExitMinutes = 0
		return res
	}

	sinceStart := utils.WholeMinutes(checkOutAt.Sub(w.Start))
	switch {
	case checkInStatus == StatusHalfDay || sinceStart < s.HalfDayAfterMinutes:
		res.Status = StatusHalfDay
	case res.EarlyExitMinutes > 0:
		res.Status = StatusEarlyExit
	}
	return res
}

// AmountInput carries what the pay computation needs beyond the status.
type AmountInput struct {
	Rate             decimal.Decimal // per-day salary rate
	EarlyExitMinutes int
	ShiftMinutes     int
	LeaveFullyPaid   bool
}

var two = decimal.NewFromInt(2)

// Amounts computes the payable and deduction amounts of a day, rounded to cents.
func Amounts(status Status, in AmountInput) (payable, deduction decimal.Decimal) {
	rate := in.Rate
	switch status {
	case StatusPresent, StatusLate:
		payable = rate
	case StatusHalfDay:
		deduction = rate.Div(two)
		payable = rate.Sub(deduction)
	case StatusEarlyExit:
		if in.ShiftMinutes > 0 {
			deduction = rate.Mul(decimal.NewFromInt(int64(in.EarlyExitMinutes))).
				Div(decimal.NewFromInt(int64(in.ShiftMinutes)))
		}
		if deduction.GreaterThan(rate) {
			deduction = rate
		}
		payable = rate.Sub(deduction)
	case StatusAbsent:
		deduction = rate
	case StatusOnLeave:
		if in.LeaveFullyPaid {
			payable = rate
		} else {
			deduction = rate
		}
	}
	return payable.Round(2), deduction.Round(2)
}
