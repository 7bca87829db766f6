package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"shiftly/timeclock/internal/model"
)

// Store is the remote relational collaborator. A partial unique index on
// (employee_id) WHERE clock_out IS NULL enforces the one-open-entry
// invariant at the database, so concurrent clock-ins from two devices
// collapse to a single winner.
type Store struct {
	pool *pgxpool.Pool
}

func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// ListShiftsForEmployeeOnDate returns the employee's shifts whose start falls
// on the calendar day containing day, ascending by start time.
func (s *Store) ListShiftsForEmployeeOnDate(ctx context.Context, employeeID string, day time.Time) ([]model.Shift, error) {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.Add(24 * time.Hour)
	rows, err := s.pool.Query(ctx, `
		SELECT id, employee_id, company_id, start_time, end_time, status, notes
		FROM shifts
		WHERE employee_id = $1 AND start_time >= $2 AND start_time < $3
		ORDER BY start_time ASC
	`, employeeID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var shifts []model.Shift
	for rows.Next() {
		var shift model.Shift
		if err := rows.Scan(
			&shift.ID,
			&shift.EmployeeID,
			&shift.CompanyID,
			&shift.StartTime,
			&shift.EndTime,
			&shift.Status,
			&shift.Notes,
		); err != nil {
			return nil, err
		}
		shifts = append(shifts, shift)
	}
	return shifts, rows.Err()
}

func (s *Store) GetShift(ctx context.Context, shiftID string) (model.Shift, bool, error) {
	var shift model.Shift
	row := s.pool.QueryRow(ctx, `
		SELECT id, employee_id, company_id, start_time, end_time, status, notes
		FROM shifts
		WHERE id = $1
	`, shiftID)
	err := row.Scan(
		&shift.ID,
		&shift.EmployeeID,
		&shift.CompanyID,
		&shift.StartTime,
		&shift.EndTime,
		&shift.Status,
		&shift.Notes,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Shift{}, false, nil
	}
	if err != nil {
		return model.Shift{}, false, err
	}
	return shift, true, nil
}

// GetOpenEntry returns the employee's open entry, if any. An open entry is
// the authoritative definition of "currently clocked in".
func (s *Store) GetOpenEntry(ctx context.Context, employeeID string) (model.TimeClockEntry, bool, error) {
	var entry model.TimeClockEntry
	row := s.pool.QueryRow(ctx, `
		SELECT id, shift_id, employee_id, clock_in, clock_out, break_start, break_end, total_hours, overtime_hours
		FROM time_clock_entries
		WHERE employee_id = $1 AND clock_out IS NULL
	`, employeeID)
	err := scanEntry(row, &entry)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.TimeClockEntry{}, false, nil
	}
	if err != nil {
		return model.TimeClockEntry{}, false, err
	}
	return entry, true, nil
}

func (s *Store) CreateEntry(ctx context.Context, entry model.TimeClockEntry) (model.TimeClockEntry, error) {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO time_clock_entries (id, shift_id, employee_id, clock_in)
		VALUES ($1, $2, $3, $4)
	`, entry.ID, entry.ShiftID, entry.EmployeeID, entry.ClockIn)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return model.TimeClockEntry{}, model.ErrOpenEntryExists
	}
	if err != nil {
		return model.TimeClockEntry{}, err
	}
	return entry, nil
}

func (s *Store) SetBreakStart(ctx context.Context, entryID string, at time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE time_clock_entries SET break_start = $1 WHERE id = $2 AND clock_out IS NULL
	`, at, entryID)
	return err
}

func (s *Store) SetBreakEnd(ctx context.Context, entryID string, at time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE time_clock_entries SET break_end = $1 WHERE id = $2 AND clock_out IS NULL
	`, at, entryID)
	return err
}

// CloseEntry finishes an entry. breakEnd is non-nil when an unended break was
// auto-closed at clock-out.
func (s *Store) CloseEntry(ctx context.Context, entryID string, clockOut time.Time, breakEnd *time.Time, totalHours, overtimeHours float64) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE time_clock_entries
		SET clock_out = $1,
		    break_end = COALESCE($2, break_end),
		    total_hours = $3,
		    overtime_hours = $4
		WHERE id = $5 AND clock_out IS NULL
	`, clockOut, breakEnd, totalHours, overtimeHours, entryID)
	return err
}

// ListEntries returns an employee's entries ascending by clock-in, optionally
// bounded to [from, to).
func (s *Store) ListEntries(ctx context.Context, employeeID string, from, to *time.Time) ([]model.TimeClockEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, shift_id, employee_id, clock_in, clock_out, break_start, break_end, total_hours, overtime_hours
		FROM time_clock_entries
		WHERE employee_id = $1
		  AND ($2::timestamptz IS NULL OR clock_in >= $2)
		  AND ($3::timestamptz IS NULL OR clock_in < $3)
		ORDER BY clock_in ASC
	`, employeeID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.TimeClockEntry
	for rows.Next() {
		var entry model.TimeClockEntry
		if err := scanEntry(rows, &entry); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// ListStaleOpenEntries returns open entries whose clock-in is at or before
// cutoff. Used by the entry close job to repair abandoned sessions.
func (s *Store) ListStaleOpenEntries(ctx context.Context, cutoff time.Time) ([]model.TimeClockEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, shift_id, employee_id, clock_in, clock_out, break_start, break_end, total_hours, overtime_hours
		FROM time_clock_entries
		WHERE clock_out IS NULL AND clock_in <= $1
		ORDER BY clock_in ASC
	`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.TimeClockEntry
	for rows.Next() {
		var entry model.TimeClockEntry
		if err := scanEntry(rows, &entry); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func scanEntry(row pgx.Row, entry *model.TimeClockEntry) error {
	return row.Scan(
		&entry.ID,
		&entry.ShiftID,
		&entry.EmployeeID,
		&entry.ClockIn,
		&entry.ClockOut,
		&entry.BreakStart,
		&entry.BreakEnd,
		&entry.TotalHours,
		&entry.OvertimeHours,
	)
}
