package http

import (
	"net/http"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/shift"
	"github.com/cmlabs-hris/attendance-engine/internal/handler/http/response"
	"github.com/go-chi/chi/v5"
)

type ShiftHandler interface {
	// Shift
	CreateShift(w http.ResponseWriter, r *http.Request)
	GetShift(w http.ResponseWriter, r *http.Request)
	ListShifts(w http.ResponseWriter, r *http.Request)
	UpdateShift(w http.ResponseWriter, r *http.Request)

	// Off dates
	AddOffDate(w http.ResponseWriter, r *http.Request)
	RemoveOffDate(w http.ResponseWriter, r *http.Request)
	Calendar(w http.ResponseWriter, r *http.Request)

	// Assignments
	AssignShift(w http.ResponseWriter, r *http.Request)
	ListAssignments(w http.ResponseWriter, r *http.Request)
}

type shiftHandlerImpl struct {
	shiftService shift.Service
}

func NewShiftHandler(shiftService shift.Service) ShiftHandler {
	return &shiftHandlerImpl{shiftService: shiftService}
}

// ========== SHIFT ==========

func (h *shiftHandlerImpl) CreateShift(w http.ResponseWriter, r *http.Request) {
	var req shift.CreateShiftRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.shiftService.CreateShift(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Created(w, "Shift created", result)
}

func (h *shiftHandlerImpl) GetShift(w http.ResponseWriter, r *http.Request) {
	result, err := h.shiftService.GetShift(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

func (h *shiftHandlerImpl) ListShifts(w http.ResponseWriter, r *http.Request) {
	result, err := h.shiftService.ListShifts(r.Context(), optionalQuery(r, "branch_id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

func (h *shiftHandlerImpl) UpdateShift(w http.ResponseWriter, r *http.Request) {
	var req shift.UpdateShiftRequest
	if !decodeJSON(w, r, &req.CreateShiftRequest) {
		return
	}
	req.ID = chi.URLParam(r, "id")

	result, err := h.shiftService.UpdateShift(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

// ========== OFF DATES ==========

func (h *shiftHandlerImpl) AddOffDate(w http.ResponseWriter, r *http.Request) {
	var req shift.AddOffDateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.ShiftID = chi.URLParam(r, "id")

	result, err := h.shiftService.AddOffDate(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Created(w, "Off date added", result)
}

func (h *shiftHandlerImpl) RemoveOffDate(w http.ResponseWriter, r *http.Request) {
	if err := h.shiftService.RemoveOffDate(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "date")); err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Off date removed", nil)
}

func (h *shiftHandlerImpl) Calendar(w http.ResponseWriter, r *http.Request) {
	req := shift.CalendarRequest{
		ShiftID: chi.URLParam(r, "id"),
		From:    r.URL.Query().Get("from"),
		To:      r.URL.Query().Get("to"),
	}

	result, err := h.shiftService.Calendar(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

// ========== ASSIGNMENTS ==========

func (h *shiftHandlerImpl) AssignShift(w http.ResponseWriter, r *http.Request) {
	var req shift.AssignShiftRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.shiftService.AssignShift(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Created(w, "Shift assigned", result)
}

func (h *shiftHandlerImpl) ListAssignments(w http.ResponseWriter, r *http.Request) {
	result, err := h.shiftService.ListAssignments(r.Context(), chi.URLParam(r, "staffID"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}
