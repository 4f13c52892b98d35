package payroll

import (
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/pkg/validator"
	"github.com/shopspring/decimal"
)

type PreviewRequest struct {
	Month    string  `json:"month" validate:"required,month"`
	BranchID *string `json:"branch_id"`
}

func (r *PreviewRequest) Validate() error {
	return validator.Struct(r)
}

// Breakdown is one staff member's computed pay for a month.
type Breakdown struct {
	StaffID          string          `json:"staff_id"`
	FullName         string          `json:"full_name"`
	BranchID         string          `json:"branch_id"`
	PerDaySalaryRate decimal.Decimal `json:"per_day_salary_rate"`
	WorkDays         int             `json:"work_days"`
	PresentDays      int             `json:"present_days"`
	LateDays         int             `json:"late_days"`
	HalfDays         int             `json:"half_days"`
	EarlyExitDays    int             `json:"early_exit_days"`
	AbsentDays       int             `json:"absent_days"`
	LeaveDays        int             `json:"leave_days"`
	LateMinutes      int             `json:"late_minutes"`
	EarlyExitMinutes int             `json:"early_exit_minutes"`
	OvertimeMinutes  int             `json:"overtime_minutes"`
	BaseSalary       decimal.Decimal `json:"base_salary"`
	TotalPayable     decimal.Decimal `json:"total_payable"`
	TotalDeduction   decimal.Decimal `json:"total_deduction"`
	TotalOvertime    decimal.Decimal `json:"total_overtime"`
	NetPay           decimal.Decimal `json:"net_pay"`
	PaidAmount       decimal.Decimal `json:"paid_amount"`
	Outstanding      decimal.Decimal `json:"outstanding"`
}

type PreviewResponse struct {
	Month      string          `json:"month"`
	IsLocked   bool            `json:"is_locked"`
	Staff      []Breakdown     `json:"staff"`
	TotalNet   decimal.Decimal `json:"total_net"`
	TotalPaid  decimal.Decimal `json:"total_paid"`
	StaffCount int             `json:"staff_count"`
}

type ProcessPaymentRequest struct {
	StaffID   string          `json:"staff_id" validate:"required"`
	Month     string          `json:"month" validate:"required,month"`
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method" validate:"omitempty,oneof=bank_transfer cash other"`
	Reference *string         `json:"reference" validate:"omitempty,max=100"`
	Note      *string         `json:"note" validate:"omitempty,max=500"`
}

// Validate checks the request shape; the amount rule is reported as ErrInvalidAmount.
func (r *ProcessPaymentRequest) Validate() error {
	if err := validator.Struct(r); err != nil {
		return err
	}
	if !r.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

type BulkPaymentItem struct {
	StaffID   string          `json:"staff_id" validate:"required"`
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method" validate:"omitempty,oneof=bank_transfer cash other"`
	Reference *string         `json:"reference" validate:"omitempty,max=100"`
	Note      *string         `json:"note" validate:"omitempty,max=500"`
}

type BulkProcessPaymentRequest struct {
	Month    string            `json:"month" validate:"required,month"`
	Payments []BulkPaymentItem `json:"payments"`
}

// Validate checks the envelope only; items are validated one by one while processing.
func (r *BulkProcessPaymentRequest) Validate() error {
	if err := validator.Struct(r); err != nil {
		return err
	}
	if len(r.Payments) == 0 {
		return ErrEmptyBulk
	}
	return nil
}

type PaymentResponse struct {
	StaffID      string          `json:"staff_id"`
	Month        string          `json:"month"`
	PaidAmount   decimal.Decimal `json:"paid_amount"`
	PaymentCount int             `json:"payment_count"`
	LastPaidAt   time.Time       `json:"last_paid_at"`
}

func NewPaymentResponse(p Payment) PaymentResponse {
	return PaymentResponse{
		StaffID:      p.StaffID,
		Month:        p.Month,
		PaidAmount:   p.PaidAmount,
		PaymentCount: p.PaymentCount,
		LastPaidAt:   p.LastPaidAt,
	}
}

type TransactionResponse struct {
	ID        string          `json:"id"`
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method"`
	Reference *string         `json:"reference,omitempty"`
	Note      *string         `json:"note,omitempty"`
	PaidBy    *string         `json:"paid_by,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

type PaymentHistoryResponse struct {
	Payment      PaymentResponse       `json:"payment"`
	Transactions []TransactionResponse `json:"transactions"`
}

type ItemError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type BulkItemResult struct {
	StaffID string           `json:"staff_id"`
	Success bool             `json:"success"`
	Payment *PaymentResponse `json:"payment,omitempty"`
	Error   *ItemError       `json:"error,omitempty"`
}

type BulkPaymentResponse struct {
	Month     string           `json:"month"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
	Results   []BulkItemResult `json:"results"`
}

type LockMonthRequest struct {
	Month string `json:"month" validate:"required,month"`
}

func (r *LockMonthRequest) Validate() error {
	return validator.Struct(r)
}

type LockResponse struct {
	Month    string    `json:"month"`
	LockedBy *string   `json:"locked_by,omitempty"`
	LockedAt time.Time `json:"locked_at"`
}

type GraceRequest struct {
	StaffID string  `json:"staff_id" validate:"required"`
	Date    string  `json:"date" validate:"required,date"`
	Note    *string `json:"note" validate:"omitempty,max=500"`
}

func (r *GraceRequest) Validate() error {
	return validator.Struct(r)
}

type GraceResponse struct {
	StaffID         string          `json:"staff_id"`
	Date            string          `json:"date"`
	Status          string          `json:"status"`
	PayableAmount   decimal.Decimal `json:"payable_amount"`
	DeductionAmount decimal.Decimal `json:"deduction_amount"`
	IsManual        bool            `json:"is_manual"`
}
