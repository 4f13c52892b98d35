package memory

import (
	"context"
	"sort"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/payroll"
)

type PayrollRepository struct{ s *Store }

func (r *PayrollRepository) CreateLock(ctx context.Context, lock payroll.Lock) (payroll.Lock, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.locks[lock.Month]; ok {
		return payroll.Lock{}, payroll.ErrMonthAlreadyLocked
	}
	if lock.LockedAt.IsZero() {
		lock.LockedAt = time.Now().UTC()
	}
	r.s.locks[lock.Month] = lock
	r.s.writes++
	return lock, nil
}

func (r *PayrollRepository) GetLock(ctx context.Context, month string) (*payroll.Lock, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.locks[month]
	if !ok {
		return nil, nil
	}
	return &l, nil
}

func (r *PayrollRepository) ListLockedMonths(ctx context.Context) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]string, 0, len(r.s.locks))
	for m := range r.s.locks {
		out = append(out, m)
	}
	sort.Strings(out)
	return out, nil
}

func (r *PayrollRepository) ApplyPayment(ctx context.Context, tx payroll.PaymentTransaction) (payroll.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.locks[tx.Month]; ok {
		return payroll.Payment{}, payroll.ErrMonthLocked
	}

	now := time.Now().UTC()
	if tx.ID == "" {
		tx.ID = newID()
	}
	tx.CreatedAt = now
	r.s.transactions = append(r.s.transactions, tx)

	key := tx.StaffID + "|" + tx.Month
	p, ok := r.s.payments[key]
	if !ok {
		p = payroll.Payment{StaffID: tx.StaffID, Month: tx.Month, CreatedAt: now}
	}
	p.PaidAmount = p.PaidAmount.Add(tx.Amount)
	p.PaymentCount++
	p.LastPaidAt = now
	p.UpdatedAt = now
	r.s.payments[key] = p
	r.s.writes++
	return p, nil
}

func (r *PayrollRepository) GetPayment(ctx context.Context, staffID, month string) (*payroll.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.payments[staffID+"|"+month]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *PayrollRepository) ListPayments(ctx context.Context, month string) ([]payroll.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []payroll.Payment
	for _, p := range r.s.payments {
		if p.Month == month {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StaffID < out[j].StaffID })
	return out, nil
}

func (r *PayrollRepository) ListTransactions(ctx context.Context, staffID, month string) ([]payroll.PaymentTransaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []payroll.PaymentTransaction
	for _, tx := range r.s.transactions {
		if tx.StaffID == staffID && tx.Month == month {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (r *PayrollRepository) SummarizeAttendance(ctx context.Context, from, to time.Time) (map[string]payroll.AttendanceSummary, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make(map[string]payroll.AttendanceSummary)
	for _, d := range r.s.days {
		if d.Date.Before(from) || !d.Date.Before(to) {
			continue
		}
		sum := out[d.StaffID]
		sum.StaffID = d.StaffID
		switch d.Status {
		case attendance.StatusPresent:
			sum.PresentDays++
		case attendance.StatusLate:
			sum.LateDays++
		case attendance.StatusHalfDay:
			sum.HalfDays++
		case attendance.StatusEarlyExit:
			sum.EarlyExitDays++
		case attendance.StatusAbsent:
			sum.AbsentDays++
		case attendance.StatusOnLeave:
			sum.LeaveDays++
		case attendance.StatusWeekend:
			sum.WeekendDays++
		case attendance.StatusHoliday:
			sum.HolidayDays++
		}
		sum.LateMinutes += d.LateMinutes
		sum.EarlyExitMinutes += d.EarlyExitMinutes
		sum.TotalMinutes += d.TotalMinutes
		sum.Payable = sum.Payable.Add(d.PayableAmount)
		sum.Deduction = sum.Deduction.Add(d.DeductionAmount)
		out[d.StaffID] = sum
	}
	return out, nil
}
