package postgresql

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/overtime"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/database"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/utils"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type overtimeRepository struct {
	db *database.DB
}

func NewOvertimeRepository(db *database.DB) overtime.Repository {
	return &overtimeRepository{db: db}
}

const overtimeColumns = `
	id, staff_id, shift_id, date, type, start_time, actual_start_time, end_time,
	duration_minutes, early_stop_minutes, status, ot_amount,
	approved_by, approved_at, rejection_reason, created_at, updated_at`

func scanOvertime(row scanner) (overtime.Overtime, error) {
	var o overtime.Overtime
	err := row.Scan(
		&o.ID, &o.StaffID, &o.ShiftID, &o.Date, &o.Type, &o.StartTime, &o.ActualStartTime, &o.EndTime,
		&o.DurationMinutes, &o.EarlyStopMinutes, &o.Status, &o.OTAmount,
		&o.ApprovedBy, &o.ApprovedAt, &o.RejectionReason, &o.CreatedAt, &o.UpdatedAt,
	)
	return o, err
}

// Create implements overtime.Repository.
func (r *overtimeRepository) Create(ctx context.Context, o overtime.Overtime) (overtime.Overtime, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO overtimes (staff_id, shift_id, date, type, start_time, actual_start_time, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + overtimeColumns

	created, err := scanOvertime(q.QueryRow(ctx, query,
		o.StaffID, o.ShiftID, utils.NormalizeDate(o.Date), o.Type, o.StartTime, o.ActualStartTime, o.Status,
	))
	if err != nil {
		switch {
		case isUniqueViolation(err, "uq_overtimes_staff_date_type"):
			return overtime.Overtime{}, overtime.ErrSessionExists
		case isUniqueViolation(err, "uq_overtimes_open"):
			return overtime.Overtime{}, overtime.ErrSessionRunning
		}
		return overtime.Overtime{}, classify("create overtime session", err)
	}
	return created, nil
}

// GetByID implements overtime.Repository.
func (r *overtimeRepository) GetByID(ctx context.Context, id string) (overtime.Overtime, error) {
	q := GetQuerier(ctx, r.db)

	o, err := scanOvertime(q.QueryRow(ctx, `SELECT `+overtimeColumns+` FROM overtimes WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return overtime.Overtime{}, overtime.ErrOvertimeNotFound
		}
		return overtime.Overtime{}, classify("get overtime session", err)
	}
	return o, nil
}

// GetOpen implements overtime.Repository.
func (r *overtimeRepository) GetOpen(ctx context.Context, staffID string) (*overtime.Overtime, error) {
	q := GetQuerier(ctx, r.db)

	o, err := scanOvertime(q.QueryRow(ctx,
		`SELECT `+overtimeColumns+` FROM overtimes WHERE staff_id = $1 AND end_time IS NULL`,
		staffID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, classify("get open overtime session", err)
	}
	return &o, nil
}

// Stop implements overtime.Repository.
func (r *overtimeRepository) Stop(ctx context.Context, o overtime.Overtime) (overtime.Overtime, bool, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE overtimes SET
			end_time = $2,
			duration_minutes = $3,
			early_stop_minutes = $4,
			updated_at = NOW()
		WHERE id = $1 AND end_time IS NULL
		RETURNING ` + overtimeColumns

	stopped, err := scanOvertime(q.QueryRow(ctx, query, o.ID, o.EndTime, o.DurationMinutes, o.EarlyStopMinutes))
	if err == nil {
		return stopped, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return overtime.Overtime{}, false, classify("stop overtime session", err)
	}
	existing, err := r.GetByID(ctx, o.ID)
	return existing, false, err
}

// Review implements overtime.Repository.
func (r *overtimeRepository) Review(ctx context.Context, o overtime.Overtime) (overtime.Overtime, bool, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE overtimes SET
			status = $2,
			ot_amount = $3,
			approved_by = $4,
			approved_at = $5,
			rejection_reason = $6,
			updated_at = NOW()
		WHERE id = $1 AND status = 'pending' AND end_time IS NOT NULL
		RETURNING ` + overtimeColumns

	reviewed, err := scanOvertime(q.QueryRow(ctx, query,
		o.ID, o.Status, o.OTAmount, o.ApprovedBy, o.ApprovedAt, o.RejectionReason,
	))
	if err == nil {
		return reviewed, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return overtime.Overtime{}, false, classify("review overtime session", err)
	}
	existing, err := r.GetByID(ctx, o.ID)
	return existing, false, err
}

// List implements overtime.Repository.
func (r *overtimeRepository) List(ctx context.Context, f overtime.Filter) ([]overtime.Overtime, int64, error) {
	q := GetQuerier(ctx, r.db)

	var (
		conditions []string
		args       []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}
	if f.StaffID != nil {
		add("staff_id = $%d", *f.StaffID)
	}
	if f.Status != nil {
		add("status = $%d", *f.Status)
	}
	if f.Type != nil {
		add("type = $%d", *f.Type)
	}
	if f.From != nil {
		add("date >= $%d", utils.NormalizeDate(*f.From))
	}
	if f.To != nil {
		add("date <= $%d", utils.NormalizeDate(*f.To))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	if err := q.QueryRow(ctx, "SELECT COUNT(*) FROM overtimes"+where, args...).Scan(&total); err != nil {
		return nil, 0, classify("count overtime sessions", err)
	}

	page := max(f.Page, 1)
	query := "SELECT " + overtimeColumns + " FROM overtimes" + where + " ORDER BY start_time DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit, (page-1)*f.Limit)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, classify("list overtime sessions", err)
	}
	defer rows.Close()

	sessions := make([]overtime.Overtime, 0)
	for rows.Next() {
		o, err := scanOvertime(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan overtime session: %w", err)
		}
		sessions = append(sessions, o)
	}
	return sessions, total, classify("iterate overtime sessions", rows.Err())
}

// SumApproved implements overtime.Repository.
func (r *overtimeRepository) SumApproved(ctx context.Context, from, to time.Time) (map[string]overtime.Totals, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, `
		SELECT staff_id, COALESCE(SUM(duration_minutes), 0), COALESCE(SUM(ot_amount), 0)
		FROM overtimes
		WHERE status = 'approved' AND date >= $1 AND date < $2
		GROUP BY staff_id`,
		utils.NormalizeDate(from), utils.NormalizeDate(to),
	)
	if err != nil {
		return nil, classify("sum approved overtime", err)
	}
	defer rows.Close()

	totals := make(map[string]overtime.Totals)
	for rows.Next() {
		var (
			t      overtime.Totals
			amount decimal.Decimal
		)
		if err := rows.Scan(&t.StaffID, &t.Minutes, &amount); err != nil {
			return nil, fmt.Errorf("failed to scan overtime totals: %w", err)
		}
		t.Amount = amount
		totals[t.StaffID] = t
	}
	return totals, classify("iterate overtime totals", rows.Err())
}
