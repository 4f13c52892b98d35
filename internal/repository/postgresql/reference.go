package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/leave"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/staff"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/database"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/utils"
	"github.com/jackc/pgx/v5"
)

// ========== STAFF ==========

type staffRepository struct {
	db *database.DB
}

func NewStaffRepository(db *database.DB) staff.Repository {
	return &staffRepository{db: db}
}

const staffColumns = `id, branch_id, full_name, status, join_date, per_day_salary_rate`

func scanStaff(row scanner) (staff.Staff, error) {
	var s staff.Staff
	err := row.Scan(&s.ID, &s.BranchID, &s.FullName, &s.Status, &s.JoinDate, &s.PerDaySalaryRate)
	return s, err
}

// GetByID implements staff.Repository.
func (r *staffRepository) GetByID(ctx context.Context, id string) (staff.Staff, error) {
	q := GetQuerier(ctx, r.db)

	s, err := scanStaff(q.QueryRow(ctx, `SELECT `+staffColumns+` FROM staff WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return staff.Staff{}, staff.ErrStaffNotFound
		}
		return staff.Staff{}, classify("get staff", err)
	}
	return s, nil
}

// ListActive implements staff.Repository.
func (r *staffRepository) ListActive(ctx context.Context, branchID *string) ([]staff.Staff, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, `
		SELECT `+staffColumns+`
		FROM staff
		WHERE status = 'active' AND ($1::text IS NULL OR branch_id = $1)
		ORDER BY id`,
		branchID,
	)
	if err != nil {
		return nil, classify("list active staff", err)
	}
	defer rows.Close()

	out := make([]staff.Staff, 0)
	for rows.Next() {
		s, err := scanStaff(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan staff: %w", err)
		}
		out = append(out, s)
	}
	return out, classify("iterate staff", rows.Err())
}

// ========== LEAVE ==========

type leaveRepository struct {
	db *database.DB
}

func NewLeaveRepository(db *database.DB) leave.Repository {
	return &leaveRepository{db: db}
}

const leaveDayColumns = `staff_id, date, leave_request_id, leave_type_name, is_paid, affects_salary`

func scanLeaveDay(row scanner) (leave.LeaveDay, error) {
	var d leave.LeaveDay
	err := row.Scan(&d.StaffID, &d.Date, &d.LeaveRequestID, &d.LeaveTypeName, &d.IsPaid, &d.AffectsSalary)
	return d, err
}

// GetApproved implements leave.Repository.
func (r *leaveRepository) GetApproved(ctx context.Context, staffID string, date time.Time) (*leave.LeaveDay, error) {
	q := GetQuerier(ctx, r.db)

	d, err := scanLeaveDay(q.QueryRow(ctx,
		`SELECT `+leaveDayColumns+` FROM leave_days WHERE staff_id = $1 AND date = $2`,
		staffID, utils.NormalizeDate(date),
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, classify("get approved leave", err)
	}
	return &d, nil
}

// ListApproved implements leave.Repository.
func (r *leaveRepository) ListApproved(ctx context.Context, staffID string, from, to time.Time) ([]leave.LeaveDay, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, `
		SELECT `+leaveDayColumns+`
		FROM leave_days
		WHERE staff_id = $1 AND date >= $2 AND date <= $3
		ORDER BY date`,
		staffID, utils.NormalizeDate(from), utils.NormalizeDate(to),
	)
	if err != nil {
		return nil, classify("list approved leave", err)
	}
	defer rows.Close()

	days := make([]leave.LeaveDay, 0)
	for rows.Next() {
		d, err := scanLeaveDay(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan leave day: %w", err)
		}
		days = append(days, d)
	}
	return days, classify("iterate approved leave", rows.Err())
}
