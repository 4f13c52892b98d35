package memory

import (
	"context"
	"sort"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/utils"
	"github.com/shopspring/decimal"
)

type EventRepository struct{ s *Store }

func (r *EventRepository) Append(ctx context.Context, ev attendance.Event) (attendance.Event, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := ev.StaffID + "|" + string(ev.Type) + "|" + ev.At.UTC().Format(time.RFC3339Nano)
	if id, ok := r.s.eventKeys[key]; ok {
		return r.s.events[id], false, nil
	}
	if ev.ID == "" {
		ev.ID = newID()
	}
	ev.CreatedAt = time.Now().UTC()
	r.s.events[ev.ID] = ev
	r.s.eventKeys[key] = ev.ID
	r.s.writes++
	return ev, true, nil
}

func (r *EventRepository) ListByStaff(ctx context.Context, staffID string, from, to time.Time) ([]attendance.Event, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []attendance.Event
	for _, ev := range r.s.events {
		if ev.StaffID != staffID || ev.At.Before(from) || !ev.At.Before(to) {
			continue
		}
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out, nil
}

type DayRepository struct{ s *Store }

// putLocked stores day, filling identity and timestamps. Callers hold s.mu.
func (r *DayRepository) putLocked(day attendance.Day) attendance.Day {
	now := time.Now().UTC()
	day.Date = utils.NormalizeDate(day.Date)
	key := dayKey(day.StaffID, day.Date)
	if existing, ok := r.s.days[key]; ok {
		day.ID = existing.ID
		day.CreatedAt = existing.CreatedAt
	} else {
		if day.ID == "" {
			day.ID = newID()
		}
		day.CreatedAt = now
	}
	day.UpdatedAt = now
	r.s.days[key] = day
	r.s.writes++
	return day
}

func (r *DayRepository) Get(ctx context.Context, staffID string, date time.Time) (*attendance.Day, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.days[dayKey(staffID, date)]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (r *DayRepository) GetOpenSession(ctx context.Context, staffID string, since time.Time) (*attendance.Day, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var found *attendance.Day
	for _, d := range r.s.days {
		if d.StaffID != staffID || !d.IsOpen || d.Date.Before(since) {
			continue
		}
		if found == nil || d.Date.After(found.Date) {
			found = &d
		}
	}
	return found, nil
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func (r *DayRepository) UpsertCheckIn(ctx context.Context, day attendance.Day, observedCheckIn *time.Time) (attendance.Day, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if r.s.lockedLocked(day.Date) {
		return attendance.Day{}, false, payroll.ErrMonthLocked
	}
	existing, ok := r.s.days[dayKey(day.StaffID, day.Date)]
	if ok {
		if existing.IsOpen || existing.IsManual || existing.IsAutoAbsent ||
			existing.Status == attendance.StatusOnLeave || !sameTime(existing.CheckInAt, observedCheckIn) {
			return existing, false, nil
		}
		day.CheckOutAt = existing.CheckOutAt
		day.TotalMinutes = existing.TotalMinutes
		day.EarlyExitMinutes = existing.EarlyExitMinutes
		day.OTMinutes = existing.OTMinutes
		day.OTAmount = existing.OTAmount
		day.LeaveRequestID = existing.LeaveRequestID
		day.Note = existing.Note
	} else if observedCheckIn != nil {
		return attendance.Day{}, false, nil
	}
	day.IsOpen = true
	return r.putLocked(day), true, nil
}

func (r *DayRepository) ApplyCheckOut(ctx context.Context, day attendance.Day) (attendance.Day, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if r.s.lockedLocked(day.Date) {
		return attendance.Day{}, false, payroll.ErrMonthLocked
	}
	existing, ok := r.s.days[dayKey(day.StaffID, day.Date)]
	if !ok {
		return attendance.Day{}, false, nil
	}
	if !existing.IsOpen || existing.IsManual || !sameTime(existing.CheckInAt, day.CheckInAt) {
		return existing, false, nil
	}
	existing.Status = day.Status
	existing.CheckOutAt = cloneTime(day.CheckOutAt)
	existing.IsOpen = false
	existing.TotalMinutes = day.TotalMinutes
	existing.LateMinutes = day.LateMinutes
	existing.EarlyExitMinutes = day.EarlyExitMinutes
	existing.PayableAmount = day.PayableAmount
	existing.DeductionAmount = day.DeductionAmount
	existing.ProcessedAt = cloneTime(day.ProcessedAt)
	return r.putLocked(existing), true, nil
}

func (r *DayRepository) CreateIfAbsent(ctx context.Context, day attendance.Day) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if r.s.lockedLocked(day.Date) {
		return false, nil
	}
	if _, ok := r.s.days[dayKey(day.StaffID, day.Date)]; ok {
		return false, nil
	}
	r.putLocked(day)
	return true, nil
}

func (r *DayRepository) MarkAutoAbsent(ctx context.Context, day attendance.Day) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if r.s.lockedLocked(day.Date) {
		return false, nil
	}
	existing, ok := r.s.days[dayKey(day.StaffID, day.Date)]
	if !ok || existing.CheckInAt != nil || existing.IsManual || existing.IsAutoAbsent ||
		existing.Status == attendance.StatusOnLeave || existing.Status.IsNonWorking() {
		return false, nil
	}
	existing.Status = attendance.StatusAbsent
	existing.IsAutoAbsent = true
	existing.IsOpen = false
	existing.PayableAmount = day.PayableAmount
	existing.DeductionAmount = day.DeductionAmount
	existing.ProcessedAt = cloneTime(day.ProcessedAt)
	r.putLocked(existing)
	return true, nil
}

func (r *DayRepository) CloseSession(ctx context.Context, day attendance.Day) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if r.s.lockedLocked(day.Date) {
		return false, nil
	}
	existing, ok := r.s.days[dayKey(day.StaffID, day.Date)]
	if !ok || !existing.IsOpen || existing.IsManual || !sameTime(existing.CheckInAt, day.CheckInAt) {
		return false, nil
	}
	existing.Status = day.Status
	existing.CheckOutAt = cloneTime(day.CheckOutAt)
	existing.IsOpen = false
	existing.IsAutoAbsent = day.IsAutoAbsent
	existing.TotalMinutes = day.TotalMinutes
	existing.EarlyExitMinutes = day.EarlyExitMinutes
	existing.PayableAmount = day.PayableAmount
	existing.DeductionAmount = day.DeductionAmount
	existing.ProcessedAt = cloneTime(day.ProcessedAt)
	r.putLocked(existing)
	return true, nil
}

func (r *DayRepository) AddOvertime(ctx context.Context, staffID string, date time.Time, minutes int, amount decimal.Decimal) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if r.s.lockedLocked(date) {
		return false, payroll.ErrMonthLocked
	}
	existing, ok := r.s.days[dayKey(staffID, date)]
	if !ok {
		return false, nil
	}
	existing.OTMinutes += minutes
	existing.OTAmount = existing.OTAmount.Add(amount)
	r.putLocked(existing)
	return true, nil
}

func (r *DayRepository) Save(ctx context.Context, day attendance.Day) (attendance.Day, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if r.s.lockedLocked(day.Date) {
		return attendance.Day{}, payroll.ErrMonthLocked
	}
	return r.putLocked(day), nil
}

func (r *DayRepository) List(ctx context.Context, f attendance.DayFilter) ([]attendance.Day, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []attendance.Day
	for _, d := range r.s.days {
		if f.StaffID != nil && d.StaffID != *f.StaffID {
			continue
		}
		if f.BranchID != nil && r.s.staff[d.StaffID].BranchID != *f.BranchID {
			continue
		}
		if f.Status != nil && d.Status != *f.Status {
			continue
		}
		if f.From != nil && d.Date.Before(*f.From) {
			continue
		}
		if f.To != nil && d.Date.After(*f.To) {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].StaffID < out[j].StaffID
	})

	total := int64(len(out))
	return paginate(out, f.Page, f.Limit), total, nil
}

func paginate[T any](items []T, page, limit int) []T {
	if limit <= 0 {
		return items
	}
	if page < 1 {
		page = 1
	}
	start := (page - 1) * limit
	if start >= len(items) {
		return []T{}
	}
	end := min(start+limit, len(items))
	return items[start:end]
}

type CursorRepository struct{ s *Store }

func (r *CursorRepository) Get(ctx context.Context, staffID string) (*attendance.Cursor, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.cursors[staffID]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (r *CursorRepository) Save(ctx context.Context, c attendance.Cursor) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c.LastProcessedDate = utils.NormalizeDate(c.LastProcessedDate)
	c.UpdatedAt = time.Now().UTC()
	r.s.cursors[c.StaffID] = c
	r.s.writes++
	return nil
}
