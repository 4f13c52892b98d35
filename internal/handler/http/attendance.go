package http

import (
	"net/http"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/handler/http/response"
	"github.com/go-chi/chi/v5"
)

type AttendanceHandler interface {
	CheckIn(w http.ResponseWriter, r *http.Request)
	CheckOut(w http.ResponseWriter, r *http.Request)
	Today(w http.ResponseWriter, r *http.Request)
	GetMyAttendance(w http.ResponseWriter, r *http.Request)

	List(w http.ResponseWriter, r *http.Request)
	Get(w http.ResponseWriter, r *http.Request)
	Override(w http.ResponseWriter, r *http.Request)
	Reopen(w http.ResponseWriter, r *http.Request)
	ApplyLeave(w http.ResponseWriter, r *http.Request)
}

type attendanceHandlerImpl struct {
	attendanceService attendance.Service
}

func NewAttendanceHandler(attendanceService attendance.Service) AttendanceHandler {
	return &attendanceHandlerImpl{
		attendanceService: attendanceService,
	}
}

func clientMeta(r *http.Request) (ip, userAgent *string) {
	if v := r.RemoteAddr; v != "" {
		ip = &v
	}
	if v := r.UserAgent(); v != "" {
		userAgent = &v
	}
	return ip, userAgent
}

// CheckIn implements AttendanceHandler. Only administrators may back-date or
// check in on behalf of someone else.
func (h *attendanceHandlerImpl) CheckIn(w http.ResponseWriter, r *http.Request) {
	claims, ok := callerClaims(w, r)
	if !ok {
		return
	}

	var req attendance.CheckInRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.StaffID = targetStaffID(claims, req.StaffID)
	if !claims.IsAdmin() {
		req.At = nil
	}
	if req.Source, ok = eventSource(w, claims, req.Source); !ok {
		return
	}
	req.IP, req.UserAgent = clientMeta(r)

	result, err := h.attendanceService.CheckIn(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Created(w, "Check in successful", result)
}

// CheckOut implements AttendanceHandler.
func (h *attendanceHandlerImpl) CheckOut(w http.ResponseWriter, r *http.Request) {
	claims, ok := callerClaims(w, r)
	if !ok {
		return
	}

	var req attendance.CheckOutRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.StaffID = targetStaffID(claims, req.StaffID)
	if !claims.IsAdmin() {
		req.At = nil
	}
	if req.Source, ok = eventSource(w, claims, req.Source); !ok {
		return
	}
	req.IP, req.UserAgent = clientMeta(r)

	result, err := h.attendanceService.CheckOut(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

// Today implements AttendanceHandler.
func (h *attendanceHandlerImpl) Today(w http.ResponseWriter, r *http.Request) {
	claims, ok := callerClaims(w, r)
	if !ok {
		return
	}

	result, err := h.attendanceService.TodayStatus(r.Context(), claims.StaffID)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

// GetMyAttendance implements AttendanceHandler.
func (h *attendanceHandlerImpl) GetMyAttendance(w http.ResponseWriter, r *http.Request) {
	claims, ok := callerClaims(w, r)
	if !ok {
		return
	}

	req := listDaysRequestFromQuery(r)
	req.StaffID = &claims.StaffID
	req.BranchID = nil
	h.list(w, r, req)
}

// List implements AttendanceHandler.
func (h *attendanceHandlerImpl) List(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, listDaysRequestFromQuery(r))
}

func (h *attendanceHandlerImpl) list(w http.ResponseWriter, r *http.Request, req attendance.ListDaysRequest) {
	result, err := h.attendanceService.ListDays(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMeta(w, result.Days, &response.Meta{
		Page:       result.Page,
		Limit:      result.Limit,
		TotalItems: result.TotalCount,
		TotalPages: result.TotalPages,
	})
}

func listDaysRequestFromQuery(r *http.Request) attendance.ListDaysRequest {
	return attendance.ListDaysRequest{
		StaffID:  optionalQuery(r, "staff_id"),
		BranchID: optionalQuery(r, "branch_id"),
		Status:   optionalQuery(r, "status"),
		From:     optionalQuery(r, "from"),
		To:       optionalQuery(r, "to"),
		Page:     getIntQueryParam(r, "page", 1),
		Limit:    getIntQueryParam(r, "limit", 20),
	}
}

// Get implements AttendanceHandler.
func (h *attendanceHandlerImpl) Get(w http.ResponseWriter, r *http.Request) {
	req := attendance.DayKeyRequest{
		StaffID: chi.URLParam(r, "staffID"),
		Date:    chi.URLParam(r, "date"),
	}

	result, err := h.attendanceService.GetDay(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

// Override implements AttendanceHandler.
func (h *attendanceHandlerImpl) Override(w http.ResponseWriter, r *http.Request) {
	claims, ok := callerClaims(w, r)
	if !ok {
		return
	}

	var req attendance.OverrideDayRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.StaffID = chi.URLParam(r, "staffID")
	req.Date = chi.URLParam(r, "date")

	result, err := h.attendanceService.OverrideDay(r.Context(), req, claims.StaffID)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Attendance day overridden", result)
}

// Reopen implements AttendanceHandler.
func (h *attendanceHandlerImpl) Reopen(w http.ResponseWriter, r *http.Request) {
	req := attendance.DayKeyRequest{
		StaffID: chi.URLParam(r, "staffID"),
		Date:    chi.URLParam(r, "date"),
	}

	result, err := h.attendanceService.ReopenDay(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Attendance day reopened", result)
}

// ApplyLeave implements AttendanceHandler.
func (h *attendanceHandlerImpl) ApplyLeave(w http.ResponseWriter, r *http.Request) {
	var req attendance.ApplyLeaveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.StaffID = chi.URLParam(r, "staffID")
	req.Date = chi.URLParam(r, "date")

	result, err := h.attendanceService.ApplyLeave(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Leave applied", result)
}
