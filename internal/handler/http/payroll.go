package http

import (
	"net/http"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/attendance-engine/internal/handler/http/response"
	"github.com/go-chi/chi/v5"
)

type PayrollHandler interface {
	// Computation
	Preview(w http.ResponseWriter, r *http.Request)

	// Payments
	ProcessPayment(w http.ResponseWriter, r *http.Request)
	BulkProcessPayment(w http.ResponseWriter, r *http.Request)
	ListPayments(w http.ResponseWriter, r *http.Request)
	PaymentHistory(w http.ResponseWriter, r *http.Request)
	MyPaymentHistory(w http.ResponseWriter, r *http.Request)

	// Locks
	LockMonth(w http.ResponseWriter, r *http.Request)
	GetLock(w http.ResponseWriter, r *http.Request)

	// Grace
	GraceAttendance(w http.ResponseWriter, r *http.Request)
}

type payrollHandlerImpl struct {
	payrollService payroll.Service
}

func NewPayrollHandler(payrollService payroll.Service) PayrollHandler {
	return &payrollHandlerImpl{payrollService: payrollService}
}

// ========== COMPUTATION ==========

func (h *payrollHandlerImpl) Preview(w http.ResponseWriter, r *http.Request) {
	req := payroll.PreviewRequest{
		Month:    r.URL.Query().Get("month"),
		BranchID: optionalQuery(r, "branch_id"),
	}

	result, err := h.payrollService.Preview(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

// ========== PAYMENTS ==========

func (h *payrollHandlerImpl) ProcessPayment(w http.ResponseWriter, r *http.Request) {
	claims, ok := callerClaims(w, r)
	if !ok {
		return
	}

	var req payroll.ProcessPaymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.payrollService.ProcessPayment(r.Context(), req, claims.StaffID)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Created(w, "Payment recorded", result)
}

// BulkProcessPayment reports per-item outcomes; partial failure is still a 200.
func (h *payrollHandlerImpl) BulkProcessPayment(w http.ResponseWriter, r *http.Request) {
	claims, ok := callerClaims(w, r)
	if !ok {
		return
	}

	var req payroll.BulkProcessPaymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.payrollService.BulkProcessPayment(r.Context(), req, claims.StaffID)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

func (h *payrollHandlerImpl) ListPayments(w http.ResponseWriter, r *http.Request) {
	result, err := h.payrollService.ListPayments(r.Context(), r.URL.Query().Get("month"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

func (h *payrollHandlerImpl) PaymentHistory(w http.ResponseWriter, r *http.Request) {
	result, err := h.payrollService.PaymentHistory(r.Context(), chi.URLParam(r, "staffID"), chi.URLParam(r, "month"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

func (h *payrollHandlerImpl) MyPaymentHistory(w http.ResponseWriter, r *http.Request) {
	claims, ok := callerClaims(w, r)
	if !ok {
		return
	}

	result, err := h.payrollService.PaymentHistory(r.Context(), claims.StaffID, chi.URLParam(r, "month"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

// ========== LOCKS ==========

func (h *payrollHandlerImpl) LockMonth(w http.ResponseWriter, r *http.Request) {
	claims, ok := callerClaims(w, r)
	if !ok {
		return
	}

	var req payroll.LockMonthRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.payrollService.LockMonth(r.Context(), req, claims.StaffID)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Created(w, "Payroll month locked", result)
}

func (h *payrollHandlerImpl) GetLock(w http.ResponseWriter, r *http.Request) {
	result, err := h.payrollService.GetLock(r.Context(), chi.URLParam(r, "month"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

// ========== GRACE ==========

func (h *payrollHandlerImpl) GraceAttendance(w http.ResponseWriter, r *http.Request) {
	claims, ok := callerClaims(w, r)
	if !ok {
		return
	}

	var req payroll.GraceRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.payrollService.GraceAttendance(r.Context(), req, claims.StaffID)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Attendance graced", result)
}
