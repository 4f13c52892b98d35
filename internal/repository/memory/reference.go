package memory

import (
	"context"
	"sort"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/leave"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/staff"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/utils"
)

type StaffRepository struct{ s *Store }

func (r *StaffRepository) GetByID(ctx context.Context, id string) (staff.Staff, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st, ok := r.s.staff[id]
	if !ok {
		return staff.Staff{}, staff.ErrStaffNotFound
	}
	return st, nil
}

func (r *StaffRepository) ListActive(ctx context.Context, branchID *string) ([]staff.Staff, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []staff.Staff
	for _, st := range r.s.staff {
		if !st.IsActive() {
			continue
		}
		if branchID != nil && st.BranchID != *branchID {
			continue
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type LeaveRepository struct{ s *Store }

func (r *LeaveRepository) GetApproved(ctx context.Context, staffID string, date time.Time) (*leave.LeaveDay, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.leaveDays[dayKey(staffID, date)]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (r *LeaveRepository) ListApproved(ctx context.Context, staffID string, from, to time.Time) ([]leave.LeaveDay, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []leave.LeaveDay
	for d := utils.NormalizeDate(from); !d.After(to); d = utils.AddDays(d, 1) {
		if ld, ok := r.s.leaveDays[dayKey(staffID, d)]; ok {
			out = append(out, ld)
		}
	}
	return out, nil
}
