package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/shift"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/database"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/utils"
	"github.com/jackc/pgx/v5"
)

// ========== SHIFTS ==========

type shiftRepository struct {
	db *database.DB
}

func NewShiftRepository(db *database.DB) shift.Repository {
	return &shiftRepository{db: db}
}

const shiftColumns = `
	id, branch_id, name, timezone, work_days,
	to_char(start_time, 'HH24:MI'), to_char(end_time, 'HH24:MI'),
	grace_period_minutes, late_after_minutes, half_day_after_minutes,
	ot_enabled, min_ot_minutes, round_ot_to, created_at, updated_at`

func scanShift(row scanner) (shift.Shift, error) {
	var (
		s          shift.Shift
		workDays   []int16
		start, end string
	)
	err := row.Scan(
		&s.ID, &s.BranchID, &s.Name, &s.Timezone, &workDays,
		&start, &end,
		&s.GracePeriodMinutes, &s.LateAfterMinutes, &s.HalfDayAfterMinutes,
		&s.OTEnabled, &s.MinOTMinutes, &s.RoundOTTo, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return shift.Shift{}, err
	}

	s.WorkDays = make([]time.Weekday, len(workDays))
	for i, d := range workDays {
		s.WorkDays[i] = time.Weekday(d)
	}
	if s.StartTime, err = shift.ParseClockTime(start); err != nil {
		return shift.Shift{}, err
	}
	if s.EndTime, err = shift.ParseClockTime(end); err != nil {
		return shift.Shift{}, err
	}
	return s, nil
}

func workDaysArg(days []time.Weekday) []int16 {
	out := make([]int16, len(days))
	for i, d := range days {
		out[i] = int16(d)
	}
	return out
}

// Create implements shift.Repository.
func (r *shiftRepository) Create(ctx context.Context, s shift.Shift) (shift.Shift, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO shifts (
			branch_id, name, timezone, work_days, start_time, end_time,
			grace_period_minutes, late_after_minutes, half_day_after_minutes,
			ot_enabled, min_ot_minutes, round_ot_to
		) VALUES ($1, $2, $3, $4, $5::time, $6::time, $7, $8, $9, $10, $11, $12)
		RETURNING ` + shiftColumns

	created, err := scanShift(q.QueryRow(ctx, query,
		s.BranchID, s.Name, s.Timezone, workDaysArg(s.WorkDays), s.StartTime.String(), s.EndTime.String(),
		s.GracePeriodMinutes, s.LateAfterMinutes, s.HalfDayAfterMinutes,
		s.OTEnabled, s.MinOTMinutes, s.RoundOTTo,
	))
	if err != nil {
		return shift.Shift{}, classify("create shift", err)
	}
	return created, nil
}

// Update implements shift.Repository.
func (r *shiftRepository) Update(ctx context.Context, s shift.Shift) (shift.Shift, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE shifts SET
			branch_id = $2,
			name = $3,
			timezone = $4,
			work_days = $5,
			start_time = $6::time,
			end_time = $7::time,
			grace_period_minutes = $8,
			late_after_minutes = $9,
			half_day_after_minutes = $10,
			ot_enabled = $11,
			min_ot_minutes = $12,
			round_ot_to = $13,
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + shiftColumns

	updated, err := scanShift(q.QueryRow(ctx, query,
		s.ID, s.BranchID, s.Name, s.Timezone, workDaysArg(s.WorkDays), s.StartTime.String(), s.EndTime.String(),
		s.GracePeriodMinutes, s.LateAfterMinutes, s.HalfDayAfterMinutes,
		s.OTEnabled, s.MinOTMinutes, s.RoundOTTo,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return shift.Shift{}, shift.ErrShiftNotFound
		}
		return shift.Shift{}, classify("update shift", err)
	}
	return updated, nil
}

// GetByID implements shift.Repository.
func (r *shiftRepository) GetByID(ctx context.Context, id string) (shift.Shift, error) {
	q := GetQuerier(ctx, r.db)

	s, err := scanShift(q.QueryRow(ctx, `SELECT `+shiftColumns+` FROM shifts WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return shift.Shift{}, shift.ErrShiftNotFound
		}
		return shift.Shift{}, classify("get shift", err)
	}
	return s, nil
}

// List implements shift.Repository.
func (r *shiftRepository) List(ctx context.Context, branchID *string) ([]shift.Shift, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx,
		`SELECT `+shiftColumns+` FROM shifts WHERE ($1::text IS NULL OR branch_id = $1) ORDER BY name`,
		branchID,
	)
	if err != nil {
		return nil, classify("list shifts", err)
	}
	defer rows.Close()

	shifts := make([]shift.Shift, 0)
	for rows.Next() {
		s, err := scanShift(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan shift: %w", err)
		}
		shifts = append(shifts, s)
	}
	return shifts, classify("iterate shifts", rows.Err())
}

// ========== OFF DATES ==========

type offDateRepository struct {
	db *database.DB
}

func NewOffDateRepository(db *database.DB) shift.OffDateRepository {
	return &offDateRepository{db: db}
}

// Create implements shift.OffDateRepository.
func (r *offDateRepository) Create(ctx context.Context, o shift.OffDate) (shift.OffDate, error) {
	q := GetQuerier(ctx, r.db)

	var created shift.OffDate
	err := q.QueryRow(ctx, `
		INSERT INTO shift_off_dates (shift_id, date, reason)
		VALUES ($1, $2, $3)
		RETURNING id, shift_id, date, reason, created_at`,
		o.ShiftID, utils.NormalizeDate(o.Date), o.Reason,
	).Scan(&created.ID, &created.ShiftID, &created.Date, &created.Reason, &created.CreatedAt)
	if err != nil {
		if isUniqueViolation(err, "uq_shift_off_dates_shift_date") {
			return shift.OffDate{}, shift.ErrOffDateExists
		}
		return shift.OffDate{}, classify("create off date", err)
	}
	return created, nil
}

// Delete implements shift.OffDateRepository.
func (r *offDateRepository) Delete(ctx context.Context, shiftID string, date time.Time) error {
	q := GetQuerier(ctx, r.db)

	tag, err := q.Exec(ctx, `DELETE FROM shift_off_dates WHERE shift_id = $1 AND date = $2`, shiftID, utils.NormalizeDate(date))
	if err != nil {
		return classify("delete off date", err)
	}
	if tag.RowsAffected() == 0 {
		return shift.ErrOffDateNotFound
	}
	return nil
}

// ListByShift implements shift.OffDateRepository.
func (r *offDateRepository) ListByShift(ctx context.Context, shiftID string, from, to time.Time) ([]shift.OffDate, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, `
		SELECT id, shift_id, date, reason, created_at
		FROM shift_off_dates
		WHERE shift_id = $1 AND date >= $2 AND date < $3
		ORDER BY date`,
		shiftID, utils.NormalizeDate(from), utils.NormalizeDate(to),
	)
	if err != nil {
		return nil, classify("list off dates", err)
	}
	defer rows.Close()

	offDates := make([]shift.OffDate, 0)
	for rows.Next() {
		var o shift.OffDate
		if err := rows.Scan(&o.ID, &o.ShiftID, &o.Date, &o.Reason, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan off date: %w", err)
		}
		offDates = append(offDates, o)
	}
	return offDates, classify("iterate off dates", rows.Err())
}

// ========== ASSIGNMENTS ==========

type assignmentRepository struct {
	db *database.DB
}

func NewAssignmentRepository(db *database.DB) shift.AssignmentRepository {
	return &assignmentRepository{db: db}
}

const assignmentColumns = `id, staff_id, shift_id, start_date, end_date, created_at, updated_at`

func scanAssignment(row scanner) (shift.Assignment, error) {
	var a shift.Assignment
	err := row.Scan(&a.ID, &a.StaffID, &a.ShiftID, &a.StartDate, &a.EndDate, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func scanAssignmentOrNil(row scanner, op string) (*shift.Assignment, error) {
	a, err := scanAssignment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, classify(op, err)
	}
	return &a, nil
}

// Supersede implements shift.AssignmentRepository.
func (r *assignmentRepository) Supersede(ctx context.Context, next shift.Assignment) (shift.Assignment, error) {
	next.StartDate = utils.NormalizeDate(next.StartDate)

	var created shift.Assignment
	err := WithTransaction(ctx, r.db, func(ctx context.Context) error {
		q := GetQuerier(ctx, r.db)

		active, err := scanAssignmentOrNil(q.QueryRow(ctx,
			`SELECT `+assignmentColumns+` FROM shift_assignments WHERE staff_id = $1 AND end_date IS NULL FOR UPDATE`,
			next.StaffID,
		), "lock active assignment")
		if err != nil {
			return err
		}
		if active != nil {
			if !active.StartDate.Before(next.StartDate) {
				return shift.ErrAssignmentOverlap
			}
			if _, err := q.Exec(ctx,
				`UPDATE shift_assignments SET end_date = $2, updated_at = NOW() WHERE id = $1`,
				active.ID, utils.AddDays(next.StartDate, -1),
			); err != nil {
				return classify("close active assignment", err)
			}
		}

		created, err = scanAssignment(q.QueryRow(ctx, `
			INSERT INTO shift_assignments (staff_id, shift_id, start_date)
			VALUES ($1, $2, $3)
			RETURNING `+assignmentColumns,
			next.StaffID, next.ShiftID, next.StartDate,
		))
		if err != nil {
			if isUniqueViolation(err, "uq_shift_assignments_active") {
				return shift.ErrAssignmentOverlap
			}
			return classify("create assignment", err)
		}
		return nil
	})
	if err != nil {
		return shift.Assignment{}, err
	}
	return created, nil
}

// GetActive implements shift.AssignmentRepository.
func (r *assignmentRepository) GetActive(ctx context.Context, staffID string) (*shift.Assignment, error) {
	q := GetQuerier(ctx, r.db)
	return scanAssignmentOrNil(q.QueryRow(ctx,
		`SELECT `+assignmentColumns+` FROM shift_assignments WHERE staff_id = $1 AND end_date IS NULL`,
		staffID,
	), "get active assignment")
}

// GetForDate implements shift.AssignmentRepository.
func (r *assignmentRepository) GetForDate(ctx context.Context, staffID string, date time.Time) (*shift.Assignment, error) {
	q := GetQuerier(ctx, r.db)
	return scanAssignmentOrNil(q.QueryRow(ctx, `
		SELECT `+assignmentColumns+`
		FROM shift_assignments
		WHERE staff_id = $1 AND start_date <= $2 AND (end_date IS NULL OR end_date >= $2)
		ORDER BY start_date DESC
		LIMIT 1`,
		staffID, utils.NormalizeDate(date),
	), "get assignment for date")
}

// ListByStaff implements shift.AssignmentRepository.
func (r *assignmentRepository) ListByStaff(ctx context.Context, staffID string) ([]shift.Assignment, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx,
		`SELECT `+assignmentColumns+` FROM shift_assignments WHERE staff_id = $1 ORDER BY start_date`,
		staffID,
	)
	if err != nil {
		return nil, classify("list assignments", err)
	}
	defer rows.Close()

	assignments := make([]shift.Assignment, 0)
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		assignments = append(assignments, a)
	}
	return assignments, classify("iterate assignments", rows.Err())
}
