package memory

import (
	"context"
	"sort"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/overtime"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/utils"
)

type OvertimeRepository struct{ s *Store }

func (r *OvertimeRepository) Create(ctx context.Context, o overtime.Overtime) (overtime.Overtime, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	o.Date = utils.NormalizeDate(o.Date)
	for _, existing := range r.s.overtimes {
		if existing.StaffID == o.StaffID && existing.Type == o.Type && existing.Date.Equal(o.Date) {
			return overtime.Overtime{}, overtime.ErrSessionExists
		}
	}
	if o.ID == "" {
		o.ID = newID()
	}
	now := time.Now().UTC()
	o.CreatedAt, o.UpdatedAt = now, now
	r.s.overtimes[o.ID] = o
	r.s.writes++
	return o, nil
}

func (r *OvertimeRepository) GetByID(ctx context.Context, id string) (overtime.Overtime, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.overtimes[id]
	if !ok {
		return overtime.Overtime{}, overtime.ErrOvertimeNotFound
	}
	return o, nil
}

func (r *OvertimeRepository) GetOpen(ctx context.Context, staffID string) (*overtime.Overtime, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, o := range r.s.overtimes {
		if o.StaffID == staffID && o.IsOpen() {
			return &o, nil
		}
	}
	return nil, nil
}

func (r *OvertimeRepository) Stop(ctx context.Context, o overtime.Overtime) (overtime.Overtime, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.overtimes[o.ID]
	if !ok {
		return overtime.Overtime{}, false, overtime.ErrOvertimeNotFound
	}
	if !existing.IsOpen() {
		return existing, false, nil
	}
	existing.EndTime = cloneTime(o.EndTime)
	existing.DurationMinutes = o.DurationMinutes
	existing.EarlyStopMinutes = o.EarlyStopMinutes
	existing.UpdatedAt = time.Now().UTC()
	r.s.overtimes[o.ID] = existing
	r.s.writes++
	return existing, true, nil
}

func (r *OvertimeRepository) Review(ctx context.Context, o overtime.Overtime) (overtime.Overtime, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.overtimes[o.ID]
	if !ok {
		return overtime.Overtime{}, false, overtime.ErrOvertimeNotFound
	}
	if existing.Status != overtime.StatusPending || existing.IsOpen() {
		return existing, false, nil
	}
	existing.Status = o.Status
	existing.OTAmount = o.OTAmount
	existing.ApprovedBy = o.ApprovedBy
	existing.ApprovedAt = cloneTime(o.ApprovedAt)
	existing.RejectionReason = o.RejectionReason
	existing.UpdatedAt = time.Now().UTC()
	r.s.overtimes[o.ID] = existing
	r.s.writes++
	return existing, true, nil
}

func (r *OvertimeRepository) List(ctx context.Context, f overtime.Filter) ([]overtime.Overtime, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []overtime.Overtime
	for _, o := range r.s.overtimes {
		if f.StaffID != nil && o.StaffID != *f.StaffID {
			continue
		}
		if f.Status != nil && o.Status != *f.Status {
			continue
		}
		if f.Type != nil && o.Type != *f.Type {
			continue
		}
		if f.From != nil && o.Date.Before(*f.From) {
			continue
		}
		if f.To != nil && o.Date.After(*f.To) {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	total := int64(len(out))
	return paginate(out, f.Page, f.Limit), total, nil
}

func (r *OvertimeRepository) SumApproved(ctx context.Context, from, to time.Time) (map[string]overtime.Totals, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make(map[string]overtime.Totals)
	for _, o := range r.s.overtimes {
		if o.Status != overtime.StatusApproved || o.Date.Before(from) || !o.Date.Before(to) {
			continue
		}
		t := out[o.StaffID]
		t.StaffID = o.StaffID
		t.Minutes += o.DurationMinutes
		t.Amount = t.Amount.Add(o.OTAmount)
		out[o.StaffID] = t
	}
	return out, nil
}
