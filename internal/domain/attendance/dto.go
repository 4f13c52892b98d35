package attendance

import (
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/pkg/utils"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/validator"
	"github.com/shopspring/decimal"
)

const (
	SourceWeb    = "web"
	SourceMobile = "mobile"
	SourceDevice = "device"
	SourceAdmin  = "admin"
)

type CheckInRequest struct {
	StaffID   string     `json:"staff_id" validate:"required"`
	At        *time.Time `json:"at"`
	Source    string     `json:"source" validate:"omitempty,oneof=web mobile device admin"`
	IP        *string    `json:"-"`
	UserAgent *string    `json:"-"`
}

func (r *CheckInRequest) Validate() error {
	return validator.Struct(r)
}

type CheckOutRequest struct {
	StaffID   string     `json:"staff_id" validate:"required"`
	At        *time.Time `json:"at"`
	Source    string     `json:"source" validate:"omitempty,oneof=web mobile device admin"`
	IP        *string    `json:"-"`
	UserAgent *string    `json:"-"`
}

func (r *CheckOutRequest) Validate() error {
	return validator.Struct(r)
}

type ApplyLeaveRequest struct {
	StaffID        string `json:"staff_id" validate:"required"`
	Date           string `json:"date" validate:"required,date"`
	LeaveRequestID string `json:"leave_request_id" validate:"required"`
	IsPaid         bool   `json:"is_paid"`
	AffectsSalary  bool   `json:"affects_salary"`
}

func (r *ApplyLeaveRequest) Validate() error {
	return validator.Struct(r)
}

type OverrideDayRequest struct {
	StaffID    string     `json:"staff_id" validate:"required"`
	Date       string     `json:"date" validate:"required,date"`
	Status     string     `json:"status" validate:"required,oneof=present late half_day early_exit absent on_leave weekend holiday"`
	CheckInAt  *time.Time `json:"check_in_at"`
	CheckOutAt *time.Time `json:"check_out_at"`
	Note       *string    `json:"note" validate:"omitempty,max=500"`
}

func (r *OverrideDayRequest) Validate() error {
	if err := validator.Struct(r); err != nil {
		return err
	}
	if r.CheckInAt != nil && r.CheckOutAt != nil && r.CheckOutAt.Before(*r.CheckInAt) {
		return validator.ValidationErrors{{Field: "check_out_at", Message: "check_out_at must not be before check_in_at"}}
	}
	return nil
}

type DayKeyRequest struct {
	StaffID string `json:"staff_id" validate:"required"`
	Date    string `json:"date" validate:"required,date"`
}

func (r *DayKeyRequest) Validate() error {
	return validator.Struct(r)
}

type ListDaysRequest struct {
	StaffID  *string `json:"staff_id"`
	BranchID *string `json:"branch_id"`
	Status   *string `json:"status" validate:"omitempty,oneof=present late half_day early_exit absent on_leave weekend holiday"`
	From     *string `json:"from" validate:"omitempty,date"`
	To       *string `json:"to" validate:"omitempty,date"`
	Page     int     `json:"page" validate:"gte=0"`
	Limit    int     `json:"limit" validate:"gte=0,lte=100"`
}

func (r *ListDaysRequest) Validate() error {
	return validator.Struct(r)
}

// ToFilter converts a validated request.
func (r *ListDaysRequest) ToFilter() DayFilter {
	f := DayFilter{StaffID: r.StaffID, BranchID: r.BranchID, Page: r.Page, Limit: r.Limit}
	if r.Status != nil {
		st := Status(*r.Status)
		f.Status = &st
	}
	if r.From != nil {
		if d, err := utils.ParseDate(*r.From); err == nil {
			f.From = &d
		}
	}
	if r.To != nil {
		if d, err := utils.ParseDate(*r.To); err == nil {
			f.To = &d
		}
	}
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = 20
	}
	return f
}

type DayResponse struct {
	ID               string          `json:"id"`
	StaffID          string          `json:"staff_id"`
	ShiftID          *string         `json:"shift_id,omitempty"`
	Date             string          `json:"date"`
	Status           Status          `json:"status"`
	CheckInAt        *time.Time      `json:"check_in_at,omitempty"`
	CheckOutAt       *time.Time      `json:"check_out_at,omitempty"`
	IsOpen           bool            `json:"is_open"`
	TotalMinutes     int             `json:"total_minutes"`
	LateMinutes      int             `json:"late_minutes"`
	EarlyExitMinutes int             `json:"early_exit_minutes"`
	OTMinutes        int             `json:"ot_minutes"`
	PayableAmount    decimal.Decimal `json:"payable_amount"`
	DeductionAmount  decimal.Decimal `json:"deduction_amount"`
	OTAmount         decimal.Decimal `json:"ot_amount"`
	IsManual         bool            `json:"is_manual"`
	IsAutoAbsent     bool            `json:"is_auto_absent"`
	LeaveRequestID   *string         `json:"leave_request_id,omitempty"`
	ProcessedAt      *time.Time      `json:"processed_at,omitempty"`
	Note             *string         `json:"note,omitempty"`
}

func NewDayResponse(d Day) DayResponse {
	return DayResponse{
		ID:               d.ID,
		StaffID:          d.StaffID,
		ShiftID:          d.ShiftID,
		Date:             utils.FormatDate(d.Date),
		Status:           d.Status,
		CheckInAt:        d.CheckInAt,
		CheckOutAt:       d.CheckOutAt,
		IsOpen:           d.IsOpen,
		TotalMinutes:     d.TotalMinutes,
		LateMinutes:      d.LateMinutes,
		EarlyExitMinutes: d.EarlyExitMinutes,
		OTMinutes:        d.OTMinutes,
		PayableAmount:    d.PayableAmount,
		DeductionAmount:  d.DeductionAmount,
		OTAmount:         d.OTAmount,
		IsManual:         d.IsManual,
		IsAutoAbsent:     d.IsAutoAbsent,
		LeaveRequestID:   d.LeaveRequestID,
		ProcessedAt:      d.ProcessedAt,
		Note:             d.Note,
	}
}

type ListDaysResponse struct {
	Days       []DayResponse `json:"days"`
	TotalCount int64         `json:"total_count"`
	Page       int           `json:"page"`
	Limit      int           `json:"limit"`
	TotalPages int           `json:"total_pages"`
}

// TodayStatusResponse tells a staff member what they can do right now.
type TodayStatusResponse struct {
	Date          string       `json:"date"`
	IsWorkDay     bool         `json:"is_work_day"`
	ExpectedStart *time.Time   `json:"expected_start,omitempty"`
	ExpectedEnd   *time.Time   `json:"expected_end,omitempty"`
	CanCheckIn    bool         `json:"can_check_in"`
	CanCheckOut   bool         `json:"can_check_out"`
	Day           *DayResponse `json:"day,omitempty"`
}
