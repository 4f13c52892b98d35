package shift

import (
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/pkg/validator"
)

type CreateShiftRequest struct {
	BranchID            string `json:"branch_id" validate:"required"`
	Name                string `json:"name" validate:"required,max=100"`
	Timezone            string `json:"timezone" validate:"required,timezone"`
	WorkDays            []int  `json:"work_days" validate:"required,min=1,unique,dive,gte=0,lte=6"`
	StartTime           string `json:"start_time" validate:"required,clock"`
	EndTime             string `json:"end_time" validate:"required,clock"`
	GracePeriodMinutes  int    `json:"grace_period_minutes" validate:"gte=0"`
	LateAfterMinutes    int    `json:"late_after_minutes" validate:"gte=0"`
	HalfDayAfterMinutes int    `json:"half_day_after_minutes" validate:"gt=0"`
	OTEnabled           bool   `json:"ot_enabled"`
	MinOTMinutes        int    `json:"min_ot_minutes" validate:"gte=0"`
	RoundOTTo           int    `json:"round_ot_to" validate:"gte=0"`
}

func (r *CreateShiftRequest) Validate() error {
	return validator.Struct(r)
}

// ToShift converts a validated request.
func (r *CreateShiftRequest) ToShift() Shift {
	workDays := make([]time.Weekday, len(r.WorkDays))
	for i, d := range r.WorkDays {
		workDays[i] = time.Weekday(d)
	}
	start, _ := ParseClockTime(r.StartTime)
	end, _ := ParseClockTime(r.EndTime)

	return Shift{
		BranchID:            r.BranchID,
		Name:                r.Name,
		Timezone:            r.Timezone,
		WorkDays:            workDays,
		StartTime:           start,
		EndTime:             end,
		GracePeriodMinutes:  r.GracePeriodMinutes,
		LateAfterMinutes:    r.LateAfterMinutes,
		HalfDayAfterMinutes: r.HalfDayAfterMinutes,
		OTEnabled:           r.OTEnabled,
		MinOTMinutes:        r.MinOTMinutes,
		RoundOTTo:           r.RoundOTTo,
	}
}

type UpdateShiftRequest struct {
	ID string `json:"-"`
	CreateShiftRequest
}

func (r *UpdateShiftRequest) Validate() error {
	var errs validator.ValidationErrors
	if validator.IsEmpty(r.ID) {
		errs.Add("id", "id is required")
	}
	if err := r.CreateShiftRequest.Validate(); err != nil {
		if fieldErrs, ok := err.(validator.ValidationErrors); ok {
			errs = append(errs, fieldErrs...)
		} else {
			return err
		}
	}
	return errs.Err()
}

type AddOffDateRequest struct {
	ShiftID string  `json:"-" validate:"required"`
	Date    string  `json:"date" validate:"required,date"`
	Reason  *string `json:"reason" validate:"omitempty,max=255"`
}

func (r *AddOffDateRequest) Validate() error {
	return validator.Struct(r)
}

type AssignShiftRequest struct {
	StaffID   string `json:"staff_id" validate:"required"`
	ShiftID   string `json:"shift_id" validate:"required"`
	StartDate string `json:"start_date" validate:"required,date"`
}

func (r *AssignShiftRequest) Validate() error {
	return validator.Struct(r)
}

type CalendarRequest struct {
	ShiftID string `json:"-" validate:"required"`
	From    string `json:"from" validate:"required,date"`
	To      string `json:"to" validate:"required,date"`
}

func (r *CalendarRequest) Validate() error {
	return validator.Struct(r)
}

type ShiftResponse struct {
	ID                  string    `json:"id"`
	BranchID            string    `json:"branch_id"`
	Name                string    `json:"name"`
	Timezone            string    `json:"timezone"`
	WorkDays            []int     `json:"work_days"`
	StartTime           string    `json:"start_time"`
	EndTime             string    `json:"end_time"`
	IsOvernight         bool      `json:"is_overnight"`
	GracePeriodMinutes  int       `json:"grace_period_minutes"`
	LateAfterMinutes    int       `json:"late_after_minutes"`
	HalfDayAfterMinutes int       `json:"half_day_after_minutes"`
	OTEnabled           bool      `json:"ot_enabled"`
	MinOTMinutes        int       `json:"min_ot_minutes"`
	RoundOTTo           int       `json:"round_ot_to"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

func NewShiftResponse(s Shift) ShiftResponse {
	workDays := make([]int, len(s.WorkDays))
	for i, d := range s.WorkDays {
		workDays[i] = int(d)
	}
	return ShiftResponse{
		ID:                  s.ID,
		BranchID:            s.BranchID,
		Name:                s.Name,
		Timezone:            s.Timezone,
		WorkDays:            workDays,
		StartTime:           s.StartTime.String(),
		EndTime:             s.EndTime.String(),
		IsOvernight:         s.IsOvernight(),
		GracePeriodMinutes:  s.GracePeriodMinutes,
		LateAfterMinutes:    s.LateAfterMinutes,
		HalfDayAfterMinutes: s.HalfDayAfterMinutes,
		OTEnabled:           s.OTEnabled,
		MinOTMinutes:        s.MinOTMinutes,
		RoundOTTo:           s.RoundOTTo,
		CreatedAt:           s.CreatedAt,
		UpdatedAt:           s.UpdatedAt,
	}
}

type OffDateResponse struct {
	ShiftID string  `json:"shift_id"`
	Date    string  `json:"date"`
	Reason  *string `json:"reason,omitempty"`
}

type AssignmentResponse struct {
	ID        string  `json:"id"`
	StaffID   string  `json:"staff_id"`
	ShiftID   string  `json:"shift_id"`
	StartDate string  `json:"start_date"`
	EndDate   *string `json:"end_date,omitempty"`
	IsActive  bool    `json:"is_active"`
}

type CalendarDay struct {
	Date   string     `json:"date"`
	Kind   DayKind    `json:"kind"`
	Reason *string    `json:"reason,omitempty"`
	Start  *time.Time `json:"expected_start,omitempty"`
	End    *time.Time `json:"expected_end,omitempty"`
}
