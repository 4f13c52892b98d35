package shift

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/shift"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/staff"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/utils"
)

const maxCalendarDays = 366

type shiftServiceImpl struct {
	shiftRepo      shift.Repository
	offDateRepo    shift.OffDateRepository
	assignmentRepo shift.AssignmentRepository
	staffRepo      staff.Repository
}

func NewShiftService(
	shiftRepo shift.Repository,
	offDateRepo shift.OffDateRepository,
	assignmentRepo shift.AssignmentRepository,
	staffRepo staff.Repository,
) shift.Service {
	return &shiftServiceImpl{
		shiftRepo:      shiftRepo,
		offDateRepo:    offDateRepo,
		assignmentRepo: assignmentRepo,
		staffRepo:      staffRepo,
	}
}

// CreateShift implements shift.Service.
func (s *shiftServiceImpl) CreateShift(ctx context.Context, req shift.CreateShiftRequest) (shift.ShiftResponse, error) {
	if err := req.Validate(); err != nil {
		return shift.ShiftResponse{}, err
	}

	newShift := req.ToShift()
	if err := newShift.CheckInvariants(); err != nil {
		return shift.ShiftResponse{}, err
	}

	created, err := s.shiftRepo.Create(ctx, newShift)
	if err != nil {
		return shift.ShiftResponse{}, fmt.Errorf("create shift: %w", err)
	}
	slog.Info("Shift created", "shift_id", created.ID, "branch_id", created.BranchID)
	return shift.NewShiftResponse(created), nil
}

// UpdateShift implements shift.Service. Stored attendance days keep the values
// computed when they were recorded, so changes only affect later computations.
func (s *shiftServiceImpl) UpdateShift(ctx context.Context, req shift.UpdateShiftRequest) (shift.ShiftResponse, error) {
	if err := req.Validate(); err != nil {
		return shift.ShiftResponse{}, err
	}

	if _, err := s.shiftRepo.GetByID(ctx, req.ID); err != nil {
		return shift.ShiftResponse{}, err
	}

	updated := req.ToShift()
	updated.ID = req.ID
	if err := updated.CheckInvariants(); err != nil {
		return shift.ShiftResponse{}, err
	}

	saved, err := s.shiftRepo.Update(ctx, updated)
	if err != nil {
		return shift.ShiftResponse{}, fmt.Errorf("update shift: %w", err)
	}
	return shift.NewShiftResponse(saved), nil
}

// GetShift implements shift.Service.
func (s *shiftServiceImpl) GetShift(ctx context.Context, id string) (shift.ShiftResponse, error) {
	found, err := s.shiftRepo.GetByID(ctx, id)
	if err != nil {
		return shift.ShiftResponse{}, err
	}
	return shift.NewShiftResponse(found), nil
}

// ListShifts implements shift.Service.
func (s *shiftServiceImpl) ListShifts(ctx context.Context, branchID *string) ([]shift.ShiftResponse, error) {
	shifts, err := s.shiftRepo.List(ctx, branchID)
	if err != nil {
		return nil, fmt.Errorf("list shifts: %w", err)
	}
	out := make([]shift.ShiftResponse, 0, len(shifts))
	for _, sh := range shifts {
		out = append(out, shift.NewShiftResponse(sh))
	}
	return out, nil
}

// AddOffDate implements shift.Service.
func (s *shiftServiceImpl) AddOffDate(ctx context.Context, req shift.AddOffDateRequest) (shift.OffDateResponse, error) {
	if err := req.Validate(); err != nil {
		return shift.OffDateResponse{}, err
	}
	if _, err := s.shiftRepo.GetByID(ctx, req.ShiftID); err != nil {
		return shift.OffDateResponse{}, err
	}

	date, _ := utils.ParseDate(req.Date)
	created, err := s.offDateRepo.Create(ctx, shift.OffDate{
		ShiftID: req.ShiftID,
		Date:    date,
		Reason:  req.Reason,
	})
	if err != nil {
		return shift.OffDateResponse{}, err
	}
	return shift.OffDateResponse{
		ShiftID: created.ShiftID,
		Date:    utils.FormatDate(created.Date),
		Reason:  created.Reason,
	}, nil
}

// RemoveOffDate implements shift.Service.
func (s *shiftServiceImpl) RemoveOffDate(ctx context.Context, shiftID string, date string) error {
	d, err := utils.ParseDate(date)
	if err != nil {
		return shift.ErrOffDateNotFound
	}
	return s.offDateRepo.Delete(ctx, shiftID, d)
}

// AssignShift implements shift.Service.
func (s *shiftServiceImpl) AssignShift(ctx context.Context, req shift.AssignShiftRequest) (shift.AssignmentResponse, error) {
	if err := req.Validate(); err != nil {
		return shift.AssignmentResponse{}, err
	}
	if _, err := s.staffRepo.GetByID(ctx, req.StaffID); err != nil {
		return shift.AssignmentResponse{}, err
	}
	if _, err := s.shiftRepo.GetByID(ctx, req.ShiftID); err != nil {
		return shift.AssignmentResponse{}, err
	}

	startDate, _ := utils.ParseDate(req.StartDate)
	created, err := s.assignmentRepo.Supersede(ctx, shift.Assignment{
		StaffID:   req.StaffID,
		ShiftID:   req.ShiftID,
		StartDate: startDate,
	})
	if err != nil {
		return shift.AssignmentResponse{}, err
	}

	slog.Info("Shift assigned", "staff_id", req.StaffID, "shift_id", req.ShiftID, "start_date", req.StartDate)
	return toAssignmentResponse(created), nil
}

// ListAssignments implements shift.Service.
func (s *shiftServiceImpl) ListAssignments(ctx context.Context, staffID string) ([]shift.AssignmentResponse, error) {
	assignments, err := s.assignmentRepo.ListByStaff(ctx, staffID)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	out := make([]shift.AssignmentResponse, 0, len(assignments))
	for _, a := range assignments {
		out = append(out, toAssignmentResponse(a))
	}
	return out, nil
}

// Calendar implements shift.Service.
func (s *shiftServiceImpl) Calendar(ctx context.Context, req shift.CalendarRequest) ([]shift.CalendarDay, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	from, _ := utils.ParseDate(req.From)
	to, _ := utils.ParseDate(req.To)
	if from.After(to) {
		return nil, shift.ErrInvalidDateRange
	}
	if to.Sub(from).Hours()/24 >= maxCalendarDays {
		return nil, shift.ErrCalendarRangeTooBig
	}

	sh, err := s.shiftRepo.GetByID(ctx, req.ShiftID)
	if err != nil {
		return nil, err
	}
	offDates, err := s.offDateRepo.ListByShift(ctx, sh.ID, from, utils.AddDays(to, 1))
	if err != nil {
		return nil, fmt.Errorf("list off dates: %w", err)
	}
	cal, err := shift.NewCalendar(sh, offDates)
	if err != nil {
		return nil, err
	}

	var days []shift.CalendarDay
	for d := from; !d.After(to); d = utils.AddDays(d, 1) {
		day := shift.CalendarDay{Date: utils.FormatDate(d), Kind: cal.Kind(d)}
		if off, ok := cal.OffDate(d); ok {
			day.Reason = off.Reason
		}
		if day.Kind == shift.DayWork {
			w := cal.Window(d)
			day.Start, day.End = &w.Start, &w.End
		}
		days = append(days, day)
	}
	return days, nil
}

func toAssignmentResponse(a shift.Assignment) shift.AssignmentResponse {
	resp := shift.AssignmentResponse{
		ID:        a.ID,
		StaffID:   a.StaffID,
		ShiftID:   a.ShiftID,
		StartDate: utils.FormatDate(a.StartDate),
		IsActive:  a.IsActive(),
	}
	if a.EndDate != nil {
		end := utils.FormatDate(*a.EndDate)
		resp.EndDate = &end
	}
	return resp
}
