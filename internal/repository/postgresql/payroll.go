package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/database"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/utils"
	"github.com/jackc/pgx/v5"
)

type payrollRepository struct {
	db *database.DB
}

func NewPayrollRepository(db *database.DB) payroll.Repository {
	return &payrollRepository{db: db}
}

// ========== LOCKS ==========

// CreateLock implements payroll.Repository. It waits for in-flight writes into the
// month to commit before the lock row becomes visible.
func (r *payrollRepository) CreateLock(ctx context.Context, lock payroll.Lock) (payroll.Lock, error) {
	var created payroll.Lock
	err := WithTransaction(ctx, r.db, func(ctx context.Context) error {
		q := GetQuerier(ctx, r.db)
		if _, err := q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, monthLockKey(lock.Month)); err != nil {
			return classify("acquire payroll month lock", err)
		}

		err := q.QueryRow(ctx, `
			INSERT INTO payroll_locks (month, locked_by, locked_at)
			VALUES ($1, $2, COALESCE($3, NOW()))
			ON CONFLICT (month) DO NOTHING
			RETURNING month, locked_by, locked_at`,
			lock.Month, lock.LockedBy, nullTime(lock.LockedAt),
		).Scan(&created.Month, &created.LockedBy, &created.LockedAt)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return payroll.ErrMonthAlreadyLocked
			}
			return classify("create payroll lock", err)
		}
		return nil
	})
	if err != nil {
		return payroll.Lock{}, err
	}
	return created, nil
}

// GetLock implements payroll.Repository.
func (r *payrollRepository) GetLock(ctx context.Context, month string) (*payroll.Lock, error) {
	q := GetQuerier(ctx, r.db)

	var l payroll.Lock
	err := q.QueryRow(ctx, `SELECT month, locked_by, locked_at FROM payroll_locks WHERE month = $1`, month).
		Scan(&l.Month, &l.LockedBy, &l.LockedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, classify("get payroll lock", err)
	}
	return &l, nil
}

// ListLockedMonths implements payroll.Repository.
func (r *payrollRepository) ListLockedMonths(ctx context.Context) ([]string, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, `SELECT month FROM payroll_locks ORDER BY month`)
	if err != nil {
		return nil, classify("list payroll locks", err)
	}
	defer rows.Close()

	months := make([]string, 0)
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, fmt.Errorf("failed to scan payroll lock: %w", err)
		}
		months = append(months, m)
	}
	return months, classify("iterate payroll locks", rows.Err())
}

// ========== PAYMENTS ==========

const paymentColumns = `staff_id, month, paid_amount, payment_count, last_paid_at, created_at, updated_at`

func scanPayment(row scanner) (payroll.Payment, error) {
	var p payroll.Payment
	err := row.Scan(&p.StaffID, &p.Month, &p.PaidAmount, &p.PaymentCount, &p.LastPaidAt, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// ApplyPayment implements payroll.Repository.
func (r *payrollRepository) ApplyPayment(ctx context.Context, tx payroll.PaymentTransaction) (payroll.Payment, error) {
	var p payroll.Payment
	locked, err := withUnlockedMonth(ctx, r.db, tx.Month, func(ctx context.Context, q database.Querier) error {
		var paidAt time.Time
		err := q.QueryRow(ctx, `
			INSERT INTO payroll_transactions (staff_id, month, amount, method, reference, note, paid_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING created_at`,
			tx.StaffID, tx.Month, tx.Amount, tx.Method, tx.Reference, tx.Note, tx.PaidBy,
		).Scan(&paidAt)
		if err != nil {
			return classify("insert payment transaction", err)
		}

		p, err = scanPayment(q.QueryRow(ctx, `
			INSERT INTO payroll_payments (staff_id, month, paid_amount, payment_count, last_paid_at)
			VALUES ($1, $2, $3, 1, $4)
			ON CONFLICT (staff_id, month) DO UPDATE SET
				paid_amount = payroll_payments.paid_amount + EXCLUDED.paid_amount,
				payment_count = payroll_payments.payment_count + 1,
				last_paid_at = EXCLUDED.last_paid_at,
				updated_at = NOW()
			RETURNING `+paymentColumns,
			tx.StaffID, tx.Month, tx.Amount, paidAt,
		))
		return classify("accumulate payment", err)
	})
	if err != nil {
		return payroll.Payment{}, err
	}
	if locked {
		return payroll.Payment{}, payroll.ErrMonthLocked
	}
	return p, nil
}

// GetPayment implements payroll.Repository.
func (r *payrollRepository) GetPayment(ctx context.Context, staffID, month string) (*payroll.Payment, error) {
	q := GetQuerier(ctx, r.db)

	p, err := scanPayment(q.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payroll_payments WHERE staff_id = $1 AND month = $2`,
		staffID, month,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, classify("get payment", err)
	}
	return &p, nil
}

// ListPayments implements payroll.Repository.
func (r *payrollRepository) ListPayments(ctx context.Context, month string) ([]payroll.Payment, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx,
		`SELECT `+paymentColumns+` FROM payroll_payments WHERE month = $1 ORDER BY staff_id`,
		month,
	)
	if err != nil {
		return nil, classify("list payments", err)
	}
	defer rows.Close()

	payments := make([]payroll.Payment, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	return payments, classify("iterate payments", rows.Err())
}

// ListTransactions implements payroll.Repository.
func (r *payrollRepository) ListTransactions(ctx context.Context, staffID, month string) ([]payroll.PaymentTransaction, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, `
		SELECT id, staff_id, month, amount, method, reference, note, paid_by, created_at
		FROM payroll_transactions
		WHERE staff_id = $1 AND month = $2
		ORDER BY created_at`,
		staffID, month,
	)
	if err != nil {
		return nil, classify("list payment transactions", err)
	}
	defer rows.Close()

	txs := make([]payroll.PaymentTransaction, 0)
	for rows.Next() {
		var t payroll.PaymentTransaction
		if err := rows.Scan(&t.ID, &t.StaffID, &t.Month, &t.Amount, &t.Method, &t.Reference, &t.Note, &t.PaidBy, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment transaction: %w", err)
		}
		txs = append(txs, t)
	}
	return txs, classify("iterate payment transactions", rows.Err())
}

// ========== SUMMARIES ==========

// SummarizeAttendance implements payroll.Repository.
func (r *payrollRepository) SummarizeAttendance(ctx context.Context, from, to time.Time) (map[string]payroll.AttendanceSummary, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, `
		SELECT staff_id,
			COUNT(*) FILTER (WHERE status = 'present'),
			COUNT(*) FILTER (WHERE status = 'late'),
			COUNT(*) FILTER (WHERE status = 'half_day'),
			COUNT(*) FILTER (WHERE status = 'early_exit'),
			COUNT(*) FILTER (WHERE status = 'absent'),
			COUNT(*) FILTER (WHERE status = 'on_leave'),
			COUNT(*) FILTER (WHERE status = 'weekend'),
			COUNT(*) FILTER (WHERE status = 'holiday'),
			COALESCE(SUM(late_minutes), 0),
			COALESCE(SUM(early_exit_minutes), 0),
			COALESCE(SUM(total_minutes), 0),
			COALESCE(SUM(payable_amount), 0),
			COALESCE(SUM(deduction_amount), 0)
		FROM attendance_days
		WHERE date >= $1 AND date < $2
		GROUP BY staff_id`,
		utils.NormalizeDate(from), utils.NormalizeDate(to),
	)
	if err != nil {
		return nil, classify("summarize attendance", err)
	}
	defer rows.Close()

	out := make(map[string]payroll.AttendanceSummary)
	for rows.Next() {
		var s payroll.AttendanceSummary
		if err := rows.Scan(
			&s.StaffID,
			&s.PresentDays, &s.LateDays, &s.HalfDays, &s.EarlyExitDays,
			&s.AbsentDays, &s.LeaveDays, &s.WeekendDays, &s.HolidayDays,
			&s.LateMinutes, &s.EarlyExitMinutes, &s.TotalMinutes,
			&s.Payable, &s.Deduction,
		); err != nil {
			return nil, fmt.Errorf("failed to scan attendance summary: %w", err)
		}
		out[s.StaffID] = s
	}
	return out, classify("iterate attendance summaries", rows.Err())
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
