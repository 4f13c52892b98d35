package attendance

import "github.com/cmlabs-hris/attendance-engine/internal/pkg/apperror"

// Status is the closed set of AttendanceDay classifications.
type Status string

const (
	StatusPresent   Status = "present"
	StatusLate      Status = "late"
	StatusHalfDay   Status = "half_day"
	StatusEarlyExit Status = "early_exit"
	StatusAbsent    Status = "absent"
	StatusOnLeave   Status = "on_leave"
	StatusWeekend   Status = "weekend"
	StatusHoliday   Status = "holiday"
)

// StatusNone is the state of a day that has no record yet.
const StatusNone Status = ""

var allStatuses = []Status{
	StatusPresent, StatusLate, StatusHalfDay, StatusEarlyExit,
	StatusAbsent, StatusOnLeave, StatusWeekend, StatusHoliday,
}

func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

func ParseStatus(s string) (Status, error) {
	for _, st := range allStatuses {
		if string(st) == s {
			return st, nil
		}
	}
	return StatusNone, ErrInvalidStatus
}

// IsNonWorking reports statuses for days the staff was not expected to work.
func (s Status) IsNonWorking() bool {
	return s == StatusWeekend || s == StatusHoliday
}

// IsAttended reports statuses derived from a check-in.
func (s Status) IsAttended() bool {
	switch s {
	case StatusPresent, StatusLate, StatusHalfDay, StatusEarlyExit:
		return true
	}
	return false
}

// Actor identifies who drives a transition.
type Actor string

const (
	ActorStaff     Actor = "staff"
	ActorScheduler Actor = "scheduler"
	ActorLeave     Actor = "leave"
	ActorAdmin     Actor = "admin"
)

var transitions = map[Actor]map[Status][]Status{
	ActorStaff: {
		StatusNone:    {StatusPresent, StatusLate, StatusHalfDay, StatusWeekend, StatusHoliday},
		StatusPresent: {StatusEarlyExit, StatusHalfDay},
		StatusLate:    {StatusEarlyExit, StatusHalfDay},
	},
	ActorScheduler: {
		StatusNone:    {StatusWeekend, StatusHoliday, StatusAbsent, StatusOnLeave},
		StatusPresent: {StatusAbsent},
		StatusLate:    {StatusAbsent},
	},
}

// CanTransition reports whether actor may move a day from one status to another.
// Staying in the same status is always allowed; leave wins over any state and an
// admin may set any state.
func CanTransition(from, to Status, by Actor) bool {
	if to == StatusNone {
		return false
	}
	if from == to {
		return true
	}
	switch by {
	case ActorAdmin:
		return true
	case ActorLeave:
		return to == StatusOnLeave
	}
	for _, allowed := range transitions[by][from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Transition returns to when the move is allowed, or ErrInvalidTransition.
func Transition(from, to Status, by Actor) (Status, error) {
	if !CanTransition(from, to, by) {
		return from, &apperror.Error{
			Kind:    ErrInvalidTransition.Kind,
			Code:    ErrInvalidTransition.Code,
			Message: ErrInvalidTransition.Message + ": " + string(from) + " -> " + string(to) + " by " + string(by),
			Err:     ErrInvalidTransition,
		}
	}
	return to, nil
}
