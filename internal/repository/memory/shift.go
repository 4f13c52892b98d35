package memory

import (
	"context"
	"sort"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/shift"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/utils"
)

type ShiftRepository struct{ s *Store }

func (r *ShiftRepository) Create(ctx context.Context, sh shift.Shift) (shift.Shift, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if sh.ID == "" {
		sh.ID = newID()
	}
	now := time.Now().UTC()
	sh.CreatedAt, sh.UpdatedAt = now, now
	r.s.shifts[sh.ID] = sh
	r.s.writes++
	return sh, nil
}

func (r *ShiftRepository) Update(ctx context.Context, sh shift.Shift) (shift.Shift, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.shifts[sh.ID]
	if !ok {
		return shift.Shift{}, shift.ErrShiftNotFound
	}
	sh.CreatedAt = existing.CreatedAt
	sh.UpdatedAt = time.Now().UTC()
	r.s.shifts[sh.ID] = sh
	r.s.writes++
	return sh, nil
}

func (r *ShiftRepository) GetByID(ctx context.Context, id string) (shift.Shift, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sh, ok := r.s.shifts[id]
	if !ok {
		return shift.Shift{}, shift.ErrShiftNotFound
	}
	return sh, nil
}

func (r *ShiftRepository) List(ctx context.Context, branchID *string) ([]shift.Shift, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []shift.Shift
	for _, sh := range r.s.shifts {
		if branchID != nil && sh.BranchID != *branchID {
			continue
		}
		out = append(out, sh)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type OffDateRepository struct{ s *Store }

func offDateKey(shiftID string, date time.Time) string {
	return shiftID + "|" + utils.FormatDate(date)
}

func (r *OffDateRepository) Create(ctx context.Context, o shift.OffDate) (shift.OffDate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o.Date = utils.NormalizeDate(o.Date)
	key := offDateKey(o.ShiftID, o.Date)
	if _, ok := r.s.offDates[key]; ok {
		return shift.OffDate{}, shift.ErrOffDateExists
	}
	if o.ID == "" {
		o.ID = newID()
	}
	o.CreatedAt = time.Now().UTC()
	r.s.offDates[key] = o
	r.s.writes++
	return o, nil
}

func (r *OffDateRepository) Delete(ctx context.Context, shiftID string, date time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := offDateKey(shiftID, date)
	if _, ok := r.s.offDates[key]; !ok {
		return shift.ErrOffDateNotFound
	}
	delete(r.s.offDates, key)
	r.s.writes++
	return nil
}

func (r *OffDateRepository) ListByShift(ctx context.Context, shiftID string, from, to time.Time) ([]shift.OffDate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []shift.OffDate
	for _, o := range r.s.offDates {
		if o.ShiftID != shiftID || o.Date.Before(from) || !o.Date.Before(to) {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

type AssignmentRepository struct{ s *Store }

func (r *AssignmentRepository) Supersede(ctx context.Context, next shift.Assignment) (shift.Assignment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	next.StartDate = utils.NormalizeDate(next.StartDate)
	now := time.Now().UTC()

	for id, a := range r.s.assignments {
		if a.StaffID != next.StaffID || !a.IsActive() {
			continue
		}
		if !a.StartDate.Before(next.StartDate) {
			return shift.Assignment{}, shift.ErrAssignmentOverlap
		}
		end := utils.AddDays(next.StartDate, -1)
		a.EndDate = &end
		a.UpdatedAt = now
		r.s.assignments[id] = a
		r.s.writes++
	}

	if next.ID == "" {
		next.ID = newID()
	}
	next.EndDate = nil
	next.CreatedAt, next.UpdatedAt = now, now
	r.s.assignments[next.ID] = next
	r.s.writes++
	return next, nil
}

func (r *AssignmentRepository) GetActive(ctx context.Context, staffID string) (*shift.Assignment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.assignments {
		if a.StaffID == staffID && a.IsActive() {
			return &a, nil
		}
	}
	return nil, nil
}

func (r *AssignmentRepository) GetForDate(ctx context.Context, staffID string, date time.Time) (*shift.Assignment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.assignments {
		if a.StaffID == staffID && a.Covers(date) {
			return &a, nil
		}
	}
	return nil, nil
}

func (r *AssignmentRepository) ListByStaff(ctx context.Context, staffID string) ([]shift.Assignment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []shift.Assignment
	for _, a := range r.s.assignments {
		if a.StaffID == staffID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out, nil
}
