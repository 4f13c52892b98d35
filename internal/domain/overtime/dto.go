package overtime

import (
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/pkg/utils"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/validator"
	"github.com/shopspring/decimal"
)

type ReviewRequest struct {
	ID         string  `json:"-" validate:"required"`
	ReviewerID string  `json:"-" validate:"required"`
	Reason     *string `json:"reason" validate:"omitempty,max=500"`
}

func (r *ReviewRequest) Validate() error {
	return validator.Struct(r)
}

type ListRequest struct {
	StaffID *string `json:"staff_id"`
	Status  *string `json:"status" validate:"omitempty,oneof=pending approved rejected"`
	Type    *string `json:"type" validate:"omitempty,oneof=pre_shift post_shift weekend holiday"`
	From    *string `json:"from" validate:"omitempty,date"`
	To      *string `json:"to" validate:"omitempty,date"`
	Page    int     `json:"page" validate:"gte=0"`
	Limit   int     `json:"limit" validate:"gte=0,lte=100"`
}

func (r *ListRequest) Validate() error {
	return validator.Struct(r)
}

func (r *ListRequest) ToFilter() Filter {
	f := Filter{StaffID: r.StaffID, Page: r.Page, Limit: r.Limit}
	if r.Status != nil {
		st := Status(*r.Status)
		f.Status = &st
	}
	if r.Type != nil {
		ty := Type(*r.Type)
		f.Type = &ty
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

type Response struct {
	ID               string          `json:"id"`
	StaffID          string          `json:"staff_id"`
	ShiftID          *string         `json:"shift_id,omitempty"`
	Date             string          `json:"date"`
	Type             Type            `json:"type"`
	StartTime        time.Time       `json:"start_time"`
	ActualStartTime  *time.Time      `json:"actual_start_time,omitempty"`
	EndTime          *time.Time      `json:"end_time,omitempty"`
	DurationMinutes  int             `json:"duration_minutes"`
	EarlyStopMinutes int             `json:"early_stop_minutes"`
	Status           Status          `json:"status"`
	OTAmount         decimal.Decimal `json:"ot_amount"`
	IsDiscarded      bool            `json:"is_discarded"`
	ApprovedBy       *string         `json:"approved_by,omitempty"`
	ApprovedAt       *time.Time      `json:"approved_at,omitempty"`
	RejectionReason  *string         `json:"rejection_reason,omitempty"`
}

func NewResponse(o Overtime) Response {
	return Response{
		ID:               o.ID,
		StaffID:          o.StaffID,
		ShiftID:          o.ShiftID,
		Date:             utils.FormatDate(o.Date),
		Type:             o.Type,
		StartTime:        o.StartTime,
		ActualStartTime:  o.ActualStartTime,
		EndTime:          o.EndTime,
		DurationMinutes:  o.DurationMinutes,
		EarlyStopMinutes: o.EarlyStopMinutes,
		Status:           o.Status,
		OTAmount:         o.OTAmount,
		IsDiscarded:      o.IsDiscarded(),
		ApprovedBy:       o.ApprovedBy,
		ApprovedAt:       o.ApprovedAt,
		RejectionReason:  o.RejectionReason,
	}
}

type ListResponse struct {
	Sessions   []Response `json:"sessions"`
	TotalCount int64      `json:"total_count"`
	Page       int        `json:"page"`
	Limit      int        `json:"limit"`
}
