package payroll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/benbjohnson/clock"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/notification"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/overtime"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/staff"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/apperror"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/utils"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/validator"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const (
	defaultPaymentMethod = "bank_transfer"
	bulkConcurrency      = 4
)

type PayrollServiceImpl struct {
	clock        clock.Clock
	payrollRepo  payroll.Repository
	staffRepo    staff.Repository
	overtimeRepo overtime.Repository
	dayRepo      attendance.DayRepository
	notifier     notification.Sink
}

func NewPayrollService(
	clk clock.Clock,
	payrollRepo payroll.Repository,
	staffRepo staff.Repository,
	overtimeRepo overtime.Repository,
	dayRepo attendance.DayRepository,
	notifier notification.Sink,
) payroll.Service {
	return &PayrollServiceImpl{
		clock:        clk,
		payrollRepo:  payrollRepo,
		staffRepo:    staffRepo,
		overtimeRepo: overtimeRepo,
		dayRepo:      dayRepo,
		notifier:     notifier,
	}
}

// ========== PREVIEW ==========

// Preview implements payroll.Service. It only reads.
func (s *PayrollServiceImpl) Preview(ctx context.Context, req payroll.PreviewRequest) (payroll.PreviewResponse, error) {
	if err := req.Validate(); err != nil {
		return payroll.PreviewResponse{}, err
	}
	from, to, err := utils.MonthRange(req.Month)
	if err != nil {
		return payroll.PreviewResponse{}, payroll.ErrInvalidMonth
	}

	members, err := s.staffRepo.ListActive(ctx, req.BranchID)
	if err != nil {
		return payroll.PreviewResponse{}, fmt.Errorf("list active staff: %w", err)
	}
	summaries, err := s.payrollRepo.SummarizeAttendance(ctx, from, to)
	if err != nil {
		return payroll.PreviewResponse{}, fmt.Errorf("summarize attendance: %w", err)
	}
	overtimeTotals, err := s.overtimeRepo.SumApproved(ctx, from, to)
	if err != nil {
		return payroll.PreviewResponse{}, fmt.Errorf("sum approved overtime: %w", err)
	}
	payments, err := s.payrollRepo.ListPayments(ctx, req.Month)
	if err != nil {
		return payroll.PreviewResponse{}, fmt.Errorf("list payments: %w", err)
	}
	paid := make(map[string]decimal.Decimal, len(payments))
	for _, p := range payments {
		paid[p.StaffID] = p.PaidAmount
	}
	lock, err := s.payrollRepo.GetLock(ctx, req.Month)
	if err != nil {
		return payroll.PreviewResponse{}, fmt.Errorf("get payroll lock: %w", err)
	}

	resp := payroll.PreviewResponse{
		Month:    req.Month,
		IsLocked: lock != nil,
		Staff:    make([]payroll.Breakdown, 0, len(members)),
	}
	for _, m := range members {
		b := breakdown(m, summaries[m.ID], overtimeTotals[m.ID], paid[m.ID])
		resp.TotalNet = resp.TotalNet.Add(b.NetPay)
		resp.TotalPaid = resp.TotalPaid.Add(b.PaidAmount)
		resp.Staff = append(resp.Staff, b)
	}
	sort.Slice(resp.Staff, func(i, j int) bool { return resp.Staff[i].StaffID < resp.Staff[j].StaffID })
	resp.StaffCount = len(resp.Staff)
	return resp, nil
}

func breakdown(m staff.Staff, sum payroll.AttendanceSummary, ot overtime.Totals, paid decimal.Decimal) payroll.Breakdown {
	net := sum.Payable.Add(ot.Amount)
	return payroll.Breakdown{
		StaffID:          m.ID,
		FullName:         m.FullName,
		BranchID:         m.BranchID,
		PerDaySalaryRate: m.PerDaySalaryRate,
		WorkDays:         sum.WorkDays(),
		PresentDays:      sum.PresentDays,
		LateDays:         sum.LateDays,
		HalfDays:         sum.HalfDays,
		EarlyExitDays:    sum.EarlyExitDays,
		AbsentDays:       sum.AbsentDays,
		LeaveDays:        sum.LeaveDays,
		LateMinutes:      sum.LateMinutes,
		EarlyExitMinutes: sum.EarlyExitMinutes,
		OvertimeMinutes:  ot.Minutes,
		BaseSalary:       m.PerDaySalaryRate.Mul(decimal.NewFromInt(int64(sum.WorkDays()))).Round(2),
		TotalPayable:     sum.Payable,
		TotalDeduction:   sum.Deduction,
		TotalOvertime:    ot.Amount,
		NetPay:           net.Round(2),
		PaidAmount:       paid,
		Outstanding:      net.Sub(paid).Round(2),
	}
}

// ========== PAYMENTS ==========

// ProcessPayment implements payroll.Service. Payments are additive.
func (s *PayrollServiceImpl) ProcessPayment(ctx context.Context, req payroll.ProcessPaymentRequest, paidBy string) (payroll.PaymentResponse, error) {
	if err := req.Validate(); err != nil {
		return payroll.PaymentResponse{}, err
	}
	member, err := s.staffRepo.GetByID(ctx, req.StaffID)
	if err != nil {
		return payroll.PaymentResponse{}, err
	}

	p, err := s.applyPayment(ctx, member, req, paidBy)
	if err != nil {
		return payroll.PaymentResponse{}, err
	}
	return payroll.NewPaymentResponse(p), nil
}

func (s *PayrollServiceImpl) applyPayment(ctx context.Context, member staff.Staff, req payroll.ProcessPaymentRequest, paidBy string) (payroll.Payment, error) {
	method := req.Method
	if method == "" {
		method = defaultPaymentMethod
	}
	var by *string
	if paidBy != "" {
		by = &paidBy
	}

	p, err := s.payrollRepo.ApplyPayment(ctx, payroll.PaymentTransaction{
		StaffID:   member.ID,
		Month:     req.Month,
		Amount:    req.Amount,
		Method:    method,
		Reference: req.Reference,
		Note:      req.Note,
		PaidBy:    by,
	})
	if err != nil {
		return payroll.Payment{}, err
	}

	s.notify(ctx, notification.CreateNotificationRequest{
		BranchID:    &member.BranchID,
		RecipientID: &member.ID,
		Type:        notification.TypePayrollPaid,
		Title:       "Salary payment received",
		Message:     fmt.Sprintf("A payment of %s for %s was recorded", req.Amount.StringFixed(2), req.Month),
		Data:        map[string]interface{}{"month": req.Month, "amount": req.Amount.String()},
	})
	slog.Info("Payroll payment applied",
		"staff_id", member.ID,
		"month", req.Month,
		"amount", req.Amount.String(),
		"paid_total", p.PaidAmount.String(),
	)
	return p, nil
}

// BulkProcessPayment implements payroll.Service. Each item succeeds or fails on
// its own; only a locked month rejects the whole request.
func (s *PayrollServiceImpl) BulkProcessPayment(ctx context.Context, req payroll.BulkProcessPaymentRequest, paidBy string) (payroll.BulkPaymentResponse, error) {
	if err := req.Validate(); err != nil {
		return payroll.BulkPaymentResponse{}, err
	}
	lock, err := s.payrollRepo.GetLock(ctx, req.Month)
	if err != nil {
		return payroll.BulkPaymentResponse{}, fmt.Errorf("get payroll lock: %w", err)
	}
	if lock != nil {
		return payroll.BulkPaymentResponse{}, payroll.ErrMonthLocked
	}

	results := make([]payroll.BulkItemResult, len(req.Payments))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bulkConcurrency)
	for i, item := range req.Payments {
		g.Go(func() error {
			results[i] = s.processItem(gctx, req.Month, item, paidBy)
			return nil
		})
	}
	_ = g.Wait()

	resp := payroll.BulkPaymentResponse{Month: req.Month, Results: results}
	for _, r := range results {
		if r.Success {
			resp.Succeeded++
		} else {
			resp.Failed++
		}
	}
	slog.Info("Bulk payroll payment processed", "month", req.Month, "succeeded", resp.Succeeded, "failed", resp.Failed)
	return resp, nil
}

func (s *PayrollServiceImpl) processItem(ctx context.Context, month string, item payroll.BulkPaymentItem, paidBy string) payroll.BulkItemResult {
	res := payroll.BulkItemResult{StaffID: item.StaffID}
	req := payroll.ProcessPaymentRequest{
		StaffID:   item.StaffID,
		Month:     month,
		Amount:    item.Amount,
		Method:    item.Method,
		Reference: item.Reference,
		Note:      item.Note,
	}

	err := req.Validate()
	var member staff.Staff
	if err == nil {
		member, err = s.staffRepo.GetByID(ctx, item.StaffID)
	}
	var p payroll.Payment
	if err == nil {
		p, err = s.applyPayment(ctx, member, req, paidBy)
	}
	if err != nil {
		res.Error = itemError(err)
		return res
	}

	pr := payroll.NewPaymentResponse(p)
	res.Success = true
	res.Payment = &pr
	return res
}

func itemError(err error) *payroll.ItemError {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return &payroll.ItemError{Code: "VALIDATION_ERROR", Message: verrs.Error()}
	}
	code := apperror.CodeOf(err)
	if code == "" {
		slog.Error("Bulk payment item failed", "error", err)
		return &payroll.ItemError{Code: "INTERNAL_ERROR", Message: "payment could not be processed"}
	}
	return &payroll.ItemError{Code: code, Message: err.Error()}
}

// ListPayments implements payroll.Service.
func (s *PayrollServiceImpl) ListPayments(ctx context.Context, month string) ([]payroll.PaymentResponse, error) {
	if !validator.IsValidMonth(month) {
		return nil, payroll.ErrInvalidMonth
	}
	payments, err := s.payrollRepo.ListPayments(ctx, month)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	out := make([]payroll.PaymentResponse, 0, len(payments))
	for _, p := range payments {
		out = append(out, payroll.NewPaymentResponse(p))
	}
	return out, nil
}

// PaymentHistory implements payroll.Service.
func (s *PayrollServiceImpl) PaymentHistory(ctx context.Context, staffID, month string) (payroll.PaymentHistoryResponse, error) {
	if !validator.IsValidMonth(month) {
		return payroll.PaymentHistoryResponse{}, payroll.ErrInvalidMonth
	}
	p, err := s.payrollRepo.GetPayment(ctx, staffID, month)
	if err != nil {
		return payroll.PaymentHistoryResponse{}, fmt.Errorf("get payment: %w", err)
	}
	if p == nil {
		return payroll.PaymentHistoryResponse{}, payroll.ErrPaymentNotFound
	}
	txs, err := s.payrollRepo.ListTransactions(ctx, staffID, month)
	if err != nil {
		return payroll.PaymentHistoryResponse{}, fmt.Errorf("list payment transactions: %w", err)
	}

	resp := payroll.PaymentHistoryResponse{
		Payment:      payroll.NewPaymentResponse(*p),
		Transactions: make([]payroll.TransactionResponse, 0, len(txs)),
	}
	for _, tx := range txs {
		resp.Transactions = append(resp.Transactions, payroll.TransactionResponse{
			ID:        tx.ID,
			Amount:    tx.Amount,
			Method:    tx.Method,
			Reference: tx.Reference,
			Note:      tx.Note,
			PaidBy:    tx.PaidBy,
			CreatedAt: tx.CreatedAt,
		})
	}
	return resp, nil
}

// ========== LOCKS ==========

// LockMonth implements payroll.Service.
func (s *PayrollServiceImpl) LockMonth(ctx context.Context, req payroll.LockMonthRequest, lockedBy string) (payroll.LockResponse, error) {
	if err := req.Validate(); err != nil {
		return payroll.LockResponse{}, err
	}
	var by *string
	if lockedBy != "" {
		by = &lockedBy
	}

	lock, err := s.payrollRepo.CreateLock(ctx, payroll.Lock{
		Month:    req.Month,
		LockedBy: by,
		LockedAt: s.clock.Now().UTC(),
	})
	if err != nil {
		return payroll.LockResponse{}, err
	}

	s.notify(ctx, notification.CreateNotificationRequest{
		RecipientRole: ptr(notification.RoleAdmin),
		Type:          notification.TypePayrollLocked,
		Title:         "Payroll month locked",
		Message:       fmt.Sprintf("Payroll for %s is locked", req.Month),
		Data:          map[string]interface{}{"month": req.Month},
	})
	slog.Info("Payroll month locked", "month", req.Month, "locked_by", lockedBy)
	return lockResponse(lock), nil
}

// GetLock implements payroll.Service.
func (s *PayrollServiceImpl) GetLock(ctx context.Context, month string) (payroll.LockResponse, error) {
	if !validator.IsValidMonth(month) {
		return payroll.LockResponse{}, payroll.ErrInvalidMonth
	}
	lock, err := s.payrollRepo.GetLock(ctx, month)
	if err != nil {
		return payroll.LockResponse{}, fmt.Errorf("get payroll lock: %w", err)
	}
	if lock == nil {
		return payroll.LockResponse{}, payroll.ErrLockNotFound
	}
	return lockResponse(*lock), nil
}

func lockResponse(l payroll.Lock) payroll.LockResponse {
	return payroll.LockResponse{Month: l.Month, LockedBy: l.LockedBy, LockedAt: l.LockedAt}
}

// ========== GRACE ==========

// GraceAttendance implements payroll.Service.
func (s *PayrollServiceImpl) GraceAttendance(ctx context.Context, req payroll.GraceRequest, adminID string) (payroll.GraceResponse, error) {
	if err := req.Validate(); err != nil {
		return payroll.GraceResponse{}, err
	}
	member, err := s.staffRepo.GetByID(ctx, req.StaffID)
	if err != nil {
		return payroll.GraceResponse{}, err
	}
	date, _ := utils.ParseDate(req.Date)

	existing, err := s.dayRepo.Get(ctx, member.ID, date)
	if err != nil {
		return payroll.GraceResponse{}, fmt.Errorf("get attendance day: %w", err)
	}
	day := attendance.Day{StaffID: member.ID, Date: date}
	if existing != nil {
		day = *existing
	}
	if _, err := attendance.Transition(day.Status, attendance.StatusPresent, attendance.ActorAdmin); err != nil {
		return payroll.GraceResponse{}, err
	}

	now := s.clock.Now().UTC()
	day.Status = attendance.StatusPresent
	day.IsOpen = false
	day.IsManual = true
	day.IsAutoAbsent = false
	day.LateMinutes = 0
	day.EarlyExitMinutes = 0
	day.ProcessedAt = &now
	if req.Note != nil {
		day.Note = req.Note
	}
	day.PayableAmount, day.DeductionAmount = attendance.Amounts(attendance.StatusPresent, attendance.AmountInput{
		Rate: member.PerDaySalaryRate,
	})

	saved, err := s.dayRepo.Save(ctx, day)
	if err != nil {
		return payroll.GraceResponse{}, err
	}

	slog.Info("Attendance graced", "staff_id", member.ID, "date", req.Date, "admin_id", adminID)
	return payroll.GraceResponse{
		StaffID:         saved.StaffID,
		Date:            utils.FormatDate(saved.Date),
		Status:          string(saved.Status),
		PayableAmount:   saved.PayableAmount,
		DeductionAmount: saved.DeductionAmount,
		IsManual:        saved.IsManual,
	}, nil
}

func (s *PayrollServiceImpl) notify(ctx context.Context, req notification.CreateNotificationRequest) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.QueueNotification(ctx, req); err != nil {
		slog.Warn("Failed to queue notification", "type", req.Type, "error", err)
	}
}

func ptr[T any](v T) *T { return &v }
