package http

import (
	"context"
	"net/http"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/overtime"
	"github.com/cmlabs-hris/attendance-engine/internal/handler/http/response"
	"github.com/go-chi/chi/v5"
)

type OvertimeHandler interface {
	Start(w http.ResponseWriter, r *http.Request)
	Stop(w http.ResponseWriter, r *http.Request)
	Current(w http.ResponseWriter, r *http.Request)
	GetMyOvertime(w http.ResponseWriter, r *http.Request)

	List(w http.ResponseWriter, r *http.Request)
	Approve(w http.ResponseWriter, r *http.Request)
	Reject(w http.ResponseWriter, r *http.Request)
}

type overtimeHandlerImpl struct {
	overtimeService overtime.Service
}

func NewOvertimeHandler(overtimeService overtime.Service) OvertimeHandler {
	return &overtimeHandlerImpl{overtimeService: overtimeService}
}

// Start implements OvertimeHandler.
func (h *overtimeHandlerImpl) Start(w http.ResponseWriter, r *http.Request) {
	claims, ok := callerClaims(w, r)
	if !ok {
		return
	}

	result, err := h.overtimeService.Start(r.Context(), claims.StaffID)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Created(w, "Overtime started", result)
}

// Stop implements OvertimeHandler.
func (h *overtimeHandlerImpl) Stop(w http.ResponseWriter, r *http.Request) {
	claims, ok := callerClaims(w, r)
	if !ok {
		return
	}

	result, err := h.overtimeService.Stop(r.Context(), claims.StaffID)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

// Current implements OvertimeHandler. Data is null when nothing is running.
func (h *overtimeHandlerImpl) Current(w http.ResponseWriter, r *http.Request) {
	claims, ok := callerClaims(w, r)
	if !ok {
		return
	}

	result, err := h.overtimeService.Current(r.Context(), claims.StaffID)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

// GetMyOvertime implements OvertimeHandler.
func (h *overtimeHandlerImpl) GetMyOvertime(w http.ResponseWriter, r *http.Request) {
	claims, ok := callerClaims(w, r)
	if !ok {
		return
	}

	req := listOvertimeRequestFromQuery(r)
	req.StaffID = &claims.StaffID
	h.list(w, r, req)
}

// List implements OvertimeHandler.
func (h *overtimeHandlerImpl) List(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, listOvertimeRequestFromQuery(r))
}

func (h *overtimeHandlerImpl) list(w http.ResponseWriter, r *http.Request, req overtime.ListRequest) {
	result, err := h.overtimeService.List(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMeta(w, result.Sessions, &response.Meta{
		Page:       result.Page,
		Limit:      result.Limit,
		TotalItems: result.TotalCount,
		TotalPages: totalPages(result.TotalCount, result.Limit),
	})
}

func listOvertimeRequestFromQuery(r *http.Request) overtime.ListRequest {
	return overtime.ListRequest{
		StaffID: optionalQuery(r, "staff_id"),
		Status:  optionalQuery(r, "status"),
		Type:    optionalQuery(r, "type"),
		From:    optionalQuery(r, "from"),
		To:      optionalQuery(r, "to"),
		Page:    getIntQueryParam(r, "page", 1),
		Limit:   getIntQueryParam(r, "limit", 20),
	}
}

// Approve implements OvertimeHandler.
func (h *overtimeHandlerImpl) Approve(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, h.overtimeService.Approve, "Overtime approved")
}

// Reject implements OvertimeHandler.
func (h *overtimeHandlerImpl) Reject(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, h.overtimeService.Reject, "Overtime rejected")
}

func (h *overtimeHandlerImpl) review(
	w http.ResponseWriter,
	r *http.Request,
	apply func(context.Context, overtime.ReviewRequest) (overtime.Response, error),
	message string,
) {
	claims, ok := callerClaims(w, r)
	if !ok {
		return
	}

	var req overtime.ReviewRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.ID = chi.URLParam(r, "id")
	req.ReviewerID = claims.StaffID

	result, err := apply(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, message, result)
}
