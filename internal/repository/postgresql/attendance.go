package postgresql

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/database"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/utils"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type scanner interface {
	Scan(dest ...any) error
}

// ========== EVENTS ==========

type eventRepository struct {
	db *database.DB
}

func NewEventRepository(db *database.DB) attendance.EventRepository {
	return &eventRepository{db: db}
}

const eventColumns = `id, staff_id, shift_id, type, at, source, ip, user_agent, created_at`

func scanEvent(row scanner) (attendance.Event, error) {
	var ev attendance.Event
	err := row.Scan(&ev.ID, &ev.StaffID, &ev.ShiftID, &ev.Type, &ev.At, &ev.Source, &ev.IP, &ev.UserAgent, &ev.CreatedAt)
	return ev, err
}

// Append implements attendance.EventRepository.
func (r *eventRepository) Append(ctx context.Context, ev attendance.Event) (attendance.Event, bool, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO attendance_events (staff_id, shift_id, type, at, source, ip, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (staff_id, type, at) DO NOTHING
		RETURNING ` + eventColumns

	stored, err := scanEvent(q.QueryRow(ctx, query,
		ev.StaffID, ev.ShiftID, ev.Type, ev.At, ev.Source, ev.IP, ev.UserAgent,
	))
	if err == nil {
		return stored, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return attendance.Event{}, false, classify("append attendance event", err)
	}

	existing, err := scanEvent(q.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM attendance_events WHERE staff_id = $1 AND type = $2 AND at = $3`,
		ev.StaffID, ev.Type, ev.At,
	))
	if err != nil {
		return attendance.Event{}, false, classify("get duplicate attendance event", err)
	}
	return existing, false, nil
}

// ListByStaff implements attendance.EventRepository.
func (r *eventRepository) ListByStaff(ctx context.Context, staffID string, from, to time.Time) ([]attendance.Event, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx,
		`SELECT `+eventColumns+` FROM attendance_events WHERE staff_id = $1 AND at >= $2 AND at < $3 ORDER BY at`,
		staffID, from, to,
	)
	if err != nil {
		return nil, classify("list attendance events", err)
	}
	defer rows.Close()

	var events []attendance.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attendance event: %w", err)
		}
		events = append(events, ev)
	}
	return events, classify("iterate attendance events", rows.Err())
}

// ========== DAYS ==========

type dayRepository struct {
	db *database.DB
}

func NewDayRepository(db *database.DB) attendance.DayRepository {
	return &dayRepository{db: db}
}

const dayColumns = `
	id, staff_id, shift_id, date, status, check_in_at, check_out_at, is_open,
	total_minutes, late_minutes, early_exit_minutes, ot_minutes,
	payable_amount, deduction_amount, ot_amount,
	is_manual, is_auto_absent, leave_request_id, processed_at, note,
	created_at, updated_at`

func scanDay(row scanner) (attendance.Day, error) {
	var d attendance.Day
	err := row.Scan(
		&d.ID, &d.StaffID, &d.ShiftID, &d.Date, &d.Status, &d.CheckInAt, &d.CheckOutAt, &d.IsOpen,
		&d.TotalMinutes, &d.LateMinutes, &d.EarlyExitMinutes, &d.OTMinutes,
		&d.PayableAmount, &d.DeductionAmount, &d.OTAmount,
		&d.IsManual, &d.IsAutoAbsent, &d.LeaveRequestID, &d.ProcessedAt, &d.Note,
		&d.CreatedAt, &d.UpdatedAt,
	)
	return d, err
}

// scanDayOrNil maps no rows to nil.
func scanDayOrNil(row scanner, op string) (*attendance.Day, error) {
	d, err := scanDay(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, classify(op, err)
	}
	return &d, nil
}

// Get implements attendance.DayRepository.
func (r *dayRepository) Get(ctx context.Context, staffID string, date time.Time) (*attendance.Day, error) {
	q := GetQuerier(ctx, r.db)
	return scanDayOrNil(q.QueryRow(ctx,
		`SELECT `+dayColumns+` FROM attendance_days WHERE staff_id = $1 AND date = $2`,
		staffID, utils.NormalizeDate(date),
	), "get attendance day")
}

// GetOpenSession implements attendance.DayRepository.
func (r *dayRepository) GetOpenSession(ctx context.Context, staffID string, since time.Time) (*attendance.Day, error) {
	q := GetQuerier(ctx, r.db)
	return scanDayOrNil(q.QueryRow(ctx,
		`SELECT `+dayColumns+` FROM attendance_days
		 WHERE staff_id = $1 AND is_open AND date >= $2
		 ORDER BY date DESC
		 LIMIT 1`,
		staffID, utils.NormalizeDate(since),
	), "get open attendance session")
}

// current returns the stored row as a value, zero when absent.
func (r *dayRepository) current(ctx context.Context, staffID string, date time.Time) (attendance.Day, error) {
	d, err := r.Get(ctx, staffID, date)
	if err != nil || d == nil {
		return attendance.Day{}, err
	}
	return *d, nil
}

// UpsertCheckIn implements attendance.DayRepository.
func (r *dayRepository) UpsertCheckIn(ctx context.Context, day attendance.Day, observedCheckIn *time.Time) (attendance.Day, bool, error) {
	day.Date = utils.NormalizeDate(day.Date)

	var (
		stored  *attendance.Day
		applied bool
	)
	locked, err := withUnlockedMonth(ctx, r.db, utils.MonthOf(day.Date), func(ctx context.Context, q database.Querier) error {
		const guard = `NOT attendance_days.is_open
			AND NOT attendance_days.is_manual
			AND NOT attendance_days.is_auto_absent
			AND attendance_days.status <> 'on_leave'`

		var (
			query string
			args  []any
		)
		if observedCheckIn == nil {
			query = `
				INSERT INTO attendance_days (
					staff_id, shift_id, date, status, check_in_at, is_open, late_minutes,
					payable_amount, deduction_amount, processed_at
				) VALUES ($1, $2, $3, $4, $5, TRUE, $6, $7, $8, $9)
				ON CONFLICT (staff_id, date) DO UPDATE SET
					shift_id = EXCLUDED.shift_id,
					status = EXCLUDED.status,
					check_in_at = EXCLUDED.check_in_at,
					is_open = TRUE,
					late_minutes = EXCLUDED.late_minutes,
					payable_amount = EXCLUDED.payable_amount,
					deduction_amount = EXCLUDED.deduction_amount,
					processed_at = EXCLUDED.processed_at,
					updated_at = NOW()
				WHERE ` + guard + ` AND attendance_days.check_in_at IS NULL
				RETURNING ` + dayColumns
			args = []any{
				day.StaffID, day.ShiftID, day.Date, day.Status, day.CheckInAt, day.LateMinutes,
				day.PayableAmount, day.DeductionAmount, day.ProcessedAt,
			}
		} else {
			query = `
				UPDATE attendance_days SET
					shift_id = $3,
					status = $4,
					check_in_at = $5,
					is_open = TRUE,
					late_minutes = $6,
					payable_amount = $7,
					deduction_amount = $8,
					processed_at = $9,
					updated_at = NOW()
				WHERE staff_id = $1 AND date = $2 AND check_in_at = $10 AND ` + guard + `
				RETURNING ` + dayColumns
			args = []any{
				day.StaffID, day.Date, day.ShiftID, day.Status, day.CheckInAt, day.LateMinutes,
				day.PayableAmount, day.DeductionAmount, day.ProcessedAt, *observedCheckIn,
			}
		}

		d, err := scanDayOrNil(q.QueryRow(ctx, query, args...), "upsert check-in")
		if err != nil {
			return err
		}
		stored, applied = d, d != nil
		return nil
	})
	if err != nil {
		return attendance.Day{}, false, err
	}
	if locked {
		return attendance.Day{}, false, payroll.ErrMonthLocked
	}
	if applied {
		return *stored, true, nil
	}
	existing, err := r.current(ctx, day.StaffID, day.Date)
	return existing, false, err
}

// ApplyCheckOut implements attendance.DayRepository.
func (r *dayRepository) ApplyCheckOut(ctx context.Context, day attendance.Day) (attendance.Day, bool, error) {
	day.Date = utils.NormalizeDate(day.Date)

	var stored *attendance.Day
	locked, err := withUnlockedMonth(ctx, r.db, utils.MonthOf(day.Date), func(ctx context.Context, q database.Querier) error {
		query := `
			UPDATE attendance_days SET
				status = $3,
				check_out_at = $4,
				is_open = FALSE,
				total_minutes = $5,
				late_minutes = $6,
				early_exit_minutes = $7,
				payable_amount = $8,
				deduction_amount = $9,
				processed_at = $10,
				updated_at = NOW()
			WHERE staff_id = $1 AND date = $2 AND is_open AND NOT is_manual AND check_in_at = $11
			RETURNING ` + dayColumns

		var err error
		stored, err = scanDayOrNil(q.QueryRow(ctx, query,
			day.StaffID, day.Date, day.Status, day.CheckOutAt, day.TotalMinutes, day.LateMinutes,
			day.EarlyExitMinutes, day.PayableAmount, day.DeductionAmount, day.ProcessedAt, day.CheckInAt,
		), "apply check-out")
		return err
	})
	if err != nil {
		return attendance.Day{}, false, err
	}
	if locked {
		return attendance.Day{}, false, payroll.ErrMonthLocked
	}
	if stored != nil {
		return *stored, true, nil
	}
	existing, err := r.current(ctx, day.StaffID, day.Date)
	return existing, false, err
}

// CreateIfAbsent implements attendance.DayRepository.
func (r *dayRepository) CreateIfAbsent(ctx context.Context, day attendance.Day) (bool, error) {
	day.Date = utils.NormalizeDate(day.Date)

	var created bool
	_, err := withUnlockedMonth(ctx, r.db, utils.MonthOf(day.Date), func(ctx context.Context, q database.Querier) error {
		tag, err := q.Exec(ctx, `
			INSERT INTO attendance_days (
				staff_id, shift_id, date, status, check_in_at, check_out_at, is_open,
				total_minutes, late_minutes, early_exit_minutes,
				payable_amount, deduction_amount, is_manual, is_auto_absent, leave_request_id, processed_at, note
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
			ON CONFLICT (staff_id, date) DO NOTHING`,
			day.StaffID, day.ShiftID, day.Date, day.Status, day.CheckInAt, day.CheckOutAt, day.IsOpen,
			day.TotalMinutes, day.LateMinutes, day.EarlyExitMinutes,
			day.PayableAmount, day.DeductionAmount, day.IsManual, day.IsAutoAbsent, day.LeaveRequestID, day.ProcessedAt, day.Note,
		)
		if err != nil {
			return classify("create attendance day", err)
		}
		created = tag.RowsAffected() == 1
		return nil
	})
	return created, err
}

// MarkAutoAbsent implements attendance.DayRepository.
func (r *dayRepository) MarkAutoAbsent(ctx context.Context, day attendance.Day) (bool, error) {
	day.Date = utils.NormalizeDate(day.Date)

	var marked bool
	_, err := withUnlockedMonth(ctx, r.db, utils.MonthOf(day.Date), func(ctx context.Context, q database.Querier) error {
		tag, err := q.Exec(ctx, `
			UPDATE attendance_days SET
				status = 'absent',
				is_auto_absent = TRUE,
				is_open = FALSE,
				payable_amount = $3,
				deduction_amount = $4,
				processed_at = $5,
				updated_at = NOW()
			WHERE staff_id = $1 AND date = $2
			  AND check_in_at IS NULL
			  AND NOT is_manual
			  AND NOT is_auto_absent
			  AND status NOT IN ('on_leave', 'weekend', 'holiday')`,
			day.StaffID, day.Date, day.PayableAmount, day.DeductionAmount, day.ProcessedAt,
		)
		if err != nil {
			return classify("mark attendance day absent", err)
		}
		marked = tag.RowsAffected() == 1
		return nil
	})
	return marked, err
}

// CloseSession implements attendance.DayRepository.
func (r *dayRepository) CloseSession(ctx context.Context, day attendance.Day) (bool, error) {
	day.Date = utils.NormalizeDate(day.Date)

	var closed bool
	_, err := withUnlockedMonth(ctx, r.db, utils.MonthOf(day.Date), func(ctx context.Context, q database.Querier) error {
		tag, err := q.Exec(ctx, `
			UPDATE attendance_days SET
				status = $3,
				check_out_at = $4,
				is_open = FALSE,
				is_auto_absent = $5,
				total_minutes = $6,
				early_exit_minutes = $7,
				payable_amount = $8,
				deduction_amount = $9,
				processed_at = $10,
				updated_at = NOW()
			WHERE staff_id = $1 AND date = $2 AND is_open AND NOT is_manual AND check_in_at = $11`,
			day.StaffID, day.Date, day.Status, day.CheckOutAt, day.IsAutoAbsent, day.TotalMinutes,
			day.EarlyExitMinutes, day.PayableAmount, day.DeductionAmount, day.ProcessedAt, day.CheckInAt,
		)
		if err != nil {
			return classify("close attendance session", err)
		}
		closed = tag.RowsAffected() == 1
		return nil
	})
	return closed, err
}

// AddOvertime implements attendance.DayRepository.
func (r *dayRepository) AddOvertime(ctx context.Context, staffID string, date time.Time, minutes int, amount decimal.Decimal) (bool, error) {
	date = utils.NormalizeDate(date)

	var added bool
	locked, err := withUnlockedMonth(ctx, r.db, utils.MonthOf(date), func(ctx context.Context, q database.Querier) error {
		tag, err := q.Exec(ctx, `
			UPDATE attendance_days SET
				ot_minutes = ot_minutes + $3,
				ot_amount = ot_amount + $4,
				updated_at = NOW()
			WHERE staff_id = $1 AND date = $2`,
			staffID, date, minutes, amount,
		)
		if err != nil {
			return classify("add overtime to attendance day", err)
		}
		added = tag.RowsAffected() == 1
		return nil
	})
	if err != nil {
		return false, err
	}
	if locked {
		return false, payroll.ErrMonthLocked
	}
	return added, nil
}

// Save implements attendance.DayRepository.
func (r *dayRepository) Save(ctx context.Context, day attendance.Day) (attendance.Day, error) {
	day.Date = utils.NormalizeDate(day.Date)

	var stored attendance.Day
	locked, err := withUnlockedMonth(ctx, r.db, utils.MonthOf(day.Date), func(ctx context.Context, q database.Querier) error {
		query := `
			INSERT INTO attendance_days (
				staff_id, shift_id, date, status, check_in_at, check_out_at, is_open,
				total_minutes, late_minutes, early_exit_minutes, ot_minutes,
				payable_amount, deduction_amount, ot_amount,
				is_manual, is_auto_absent, leave_request_id, processed_at, note
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
			ON CONFLICT (staff_id, date) DO UPDATE SET
				shift_id = EXCLUDED.shift_id,
				status = EXCLUDED.status,
				check_in_at = EXCLUDED.check_in_at,
				check_out_at = EXCLUDED.check_out_at,
				is_open = EXCLUDED.is_open,
				total_minutes = EXCLUDED.total_minutes,
				late_minutes = EXCLUDED.late_minutes,
				early_exit_minutes = EXCLUDED.early_exit_minutes,
				ot_minutes = EXCLUDED.ot_minutes,
				payable_amount = EXCLUDED.payable_amount,
				deduction_amount = EXCLUDED.deduction_amount,
				ot_amount = EXCLUDED.ot_amount,
				is_manual = EXCLUDED.is_manual,
				is_auto_absent = EXCLUDED.is_auto_absent,
				leave_request_id = EXCLUDED.leave_request_id,
				processed_at = EXCLUDED.processed_at,
				note = EXCLUDED.note,
				updated_at = NOW()
			RETURNING ` + dayColumns

		var err error
		stored, err = scanDay(q.QueryRow(ctx, query,
			day.StaffID, day.ShiftID, day.Date, day.Status, day.CheckInAt, day.CheckOutAt, day.IsOpen,
			day.TotalMinutes, day.LateMinutes, day.EarlyExitMinutes, day.OTMinutes,
			day.PayableAmount, day.DeductionAmount, day.OTAmount,
			day.IsManual, day.IsAutoAbsent, day.LeaveRequestID, day.ProcessedAt, day.Note,
		))
		return classify("save attendance day", err)
	})
	if err != nil {
		return attendance.Day{}, err
	}
	if locked {
		return attendance.Day{}, payroll.ErrMonthLocked
	}
	return stored, nil
}

// List implements attendance.DayRepository.
func (r *dayRepository) List(ctx context.Context, f attendance.DayFilter) ([]attendance.Day, int64, error) {
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
		add("d.staff_id = $%d", *f.StaffID)
	}
	if f.BranchID != nil {
		add("s.branch_id = $%d", *f.BranchID)
	}
	if f.Status != nil {
		add("d.status = $%d", *f.Status)
	}
	if f.From != nil {
		add("d.date >= $%d", utils.NormalizeDate(*f.From))
	}
	if f.To != nil {
		add("d.date <= $%d", utils.NormalizeDate(*f.To))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}
	from := `FROM attendance_days d LEFT JOIN staff s ON s.id = d.staff_id ` + where

	var total int64
	if err := q.QueryRow(ctx, "SELECT COUNT(*) "+from, args...).Scan(&total); err != nil {
		return nil, 0, classify("count attendance days", err)
	}

	page, limit := f.Page, f.Limit
	if page < 1 {
		page = 1
	}
	query := "SELECT " + prefixColumns("d", dayColumns) + " " + from + " ORDER BY d.date DESC, d.staff_id"
	if limit > 0 {
		args = append(args, limit, (page-1)*limit)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, classify("list attendance days", err)
	}
	defer rows.Close()

	days := make([]attendance.Day, 0)
	for rows.Next() {
		d, err := scanDay(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan attendance day: %w", err)
		}
		days = append(days, d)
	}
	return days, total, classify("iterate attendance days", rows.Err())
}

// prefixColumns qualifies a comma separated column list with a table alias.
func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

// ========== CURSORS ==========

type cursorRepository struct {
	db *database.DB
}

func NewCursorRepository(db *database.DB) attendance.CursorRepository {
	return &cursorRepository{db: db}
}

// Get implements attendance.CursorRepository.
func (r *cursorRepository) Get(ctx context.Context, staffID string) (*attendance.Cursor, error) {
	q := GetQuerier(ctx, r.db)

	var c attendance.Cursor
	err := q.QueryRow(ctx,
		`SELECT staff_id, last_processed_date, updated_at FROM reconcile_cursors WHERE staff_id = $1`,
		staffID,
	).Scan(&c.StaffID, &c.LastProcessedDate, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, classify("get reconcile cursor", err)
	}
	return &c, nil
}

// Save implements attendance.CursorRepository. The cursor only moves forward.
func (r *cursorRepository) Save(ctx context.Context, c attendance.Cursor) error {
	q := GetQuerier(ctx, r.db)

	_, err := q.Exec(ctx, `
		INSERT INTO reconcile_cursors (staff_id, last_processed_date)
		VALUES ($1, $2)
		ON CONFLICT (staff_id) DO UPDATE SET
			last_processed_date = EXCLUDED.last_processed_date,
			updated_at = NOW()
		WHERE reconcile_cursors.last_processed_date < EXCLUDED.last_processed_date`,
		c.StaffID, utils.NormalizeDate(c.LastProcessedDate),
	)
	return classify("save reconcile cursor", err)
}
