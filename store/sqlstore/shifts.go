package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/warp/shift-engine/generic"
	"github.com/warp/shift-engine/shifts"
)

// =============================================================================
// WORKERS
// =============================================================================

func (s *Store) SaveWorker(ctx context.Context, w shifts.Worker) error {
	_, err := s.exec(ctx, `
		INSERT INTO workers (id, name, role, active, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name, role = excluded.role, active = excluded.active
	`, w.ID, w.Name, w.Role, boolInt(w.Active), formatTime(s.now()))
	if err != nil {
		return generic.SystemError("save worker", err)
	}
	return nil
}

func (s *Store) Worker(ctx context.Context, id generic.WorkerID) (shifts.Worker, error) {
	var (
		w      shifts.Worker
		active int
	)
	err := s.queryRow(ctx, `SELECT id, name, role, active FROM workers WHERE id = ?`, id).
		Scan(&w.ID, &w.Name, &w.Role, &active)
	if errors.Is(err, sql.ErrNoRows) {
		return w, fmt.Errorf("%w: worker %s", generic.ErrNotFound, id)
	}
	if err != nil {
		return w, generic.SystemError("load worker", err)
	}
	w.Active = active == 1
	return w, nil
}

func (s *Store) ListWorkers(ctx context.Context) ([]shifts.Worker, error) {
	rows, err := s.query(ctx, `SELECT id, name, role, active FROM workers ORDER BY id`)
	if err != nil {
		return nil, generic.SystemError("list workers", err)
	}
	defer rows.Close()

	var out []shifts.Worker
	for rows.Next() {
		var (
			w      shifts.Worker
			active int
		)
		if err := rows.Scan(&w.ID, &w.Name, &w.Role, &active); err != nil {
			return nil, generic.SystemError("scan worker", err)
		}
		w.Active = active == 1
		out = append(out, w)
	}
	return out, rows.Err()
}

// =============================================================================
// TEMPLATES
// =============================================================================

func (s *Store) SaveTemplate(ctx context.Context, t shifts.Template) error {
	if err := t.Validate(); err != nil {
		return err
	}
	_, err := s.exec(ctx, `
		INSERT INTO shift_templates (kind, name, start_time, end_time, offset_minutes, active, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (kind) DO UPDATE SET
			name = excluded.name, start_time = excluded.start_time, end_time = excluded.end_time,
			offset_minutes = excluded.offset_minutes, active = excluded.active, updated_at = excluded.updated_at
	`, t.Kind, t.Name, t.StartTime, t.EndTime, t.OffsetMinutes, boolInt(t.Active), formatTime(s.now()))
	if err != nil {
		return generic.SystemError("save template", err)
	}
	return nil
}

const templateColumns = `kind, name, start_time, end_time, offset_minutes, active`

func scanTemplate(row interface{ Scan(...any) error }) (shifts.Template, error) {
	var (
		t      shifts.Template
		active int
	)
	if err := row.Scan(&t.Kind, &t.Name, &t.StartTime, &t.EndTime, &t.OffsetMinutes, &active); err != nil {
		return t, err
	}
	t.Active = active == 1
	return t, nil
}

func (s *Store) Template(ctx context.Context, kind shifts.Kind) (shifts.Template, error) {
	t, err := scanTemplate(s.queryRow(ctx, `SELECT `+templateColumns+` FROM shift_templates WHERE kind = ?`, kind))
	if errors.Is(err, sql.ErrNoRows) {
		return t, fmt.Errorf("%w: template %s", generic.ErrNotFound, kind)
	}
	if err != nil {
		return t, generic.SystemError("load template", err)
	}
	return t, nil
}

func (s *Store) ListTemplates(ctx context.Context) ([]shifts.Template, error) {
	rows, err := s.query(ctx, `SELECT `+templateColumns+` FROM shift_templates ORDER BY kind`)
	if err != nil {
		return nil, generic.SystemError("list templates", err)
	}
	defer rows.Close()

	var out []shifts.Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, generic.SystemError("scan template", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// =============================================================================
// ASSIGNMENTS
// =============================================================================

// SaveAssignment upserts the (worker, kind) assignment.
func (s *Store) SaveAssignment(ctx context.Context, a shifts.Assignment) (shifts.Assignment, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now()
	}
	_, err := s.exec(ctx, `
		INSERT INTO shift_assignments (id, worker_id, kind, active, assigned_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (worker_id, kind) DO UPDATE SET
			active = excluded.active, assigned_by = excluded.assigned_by
	`, a.ID, a.WorkerID, a.Kind, boolInt(a.Active), a.AssignedBy, formatTime(a.CreatedAt))
	if err != nil {
		return a, generic.SystemError("save assignment", err)
	}
	return a, nil
}

const assignmentColumns = `id, worker_id, kind, active, assigned_by, created_at`

func scanAssignment(row interface{ Scan(...any) error }) (shifts.Assignment, error) {
	var (
		a         shifts.Assignment
		active    int
		createdAt string
	)
	if err := row.Scan(&a.ID, &a.WorkerID, &a.Kind, &active, &a.AssignedBy, &createdAt); err != nil {
		return a, err
	}
	a.Active = active == 1
	t, err := parseTime(createdAt)
	a.CreatedAt = t
	return a, err
}

func (s *Store) ActiveAssignment(ctx context.Context, workerID generic.WorkerID, kind shifts.Kind) (shifts.Assignment, error) {
	a, err := scanAssignment(s.queryRow(ctx,
		`SELECT `+assignmentColumns+` FROM shift_assignments WHERE worker_id = ? AND kind = ? AND active = 1`,
		workerID, kind))
	if errors.Is(err, sql.ErrNoRows) {
		return a, fmt.Errorf("%w: assignment %s/%s", generic.ErrNotFound, workerID, kind)
	}
	if err != nil {
		return a, generic.SystemError("load assignment", err)
	}
	return a, nil
}

func (s *Store) AssignmentsByWorker(ctx context.Context, workerID generic.WorkerID) ([]shifts.Assignment, error) {
	rows, err := s.query(ctx,
		`SELECT `+assignmentColumns+` FROM shift_assignments WHERE worker_id = ? ORDER BY kind`, workerID)
	if err != nil {
		return nil, generic.SystemError("list assignments", err)
	}
	defer rows.Close()

	var out []shifts.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, generic.SystemError("scan assignment", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// =============================================================================
// SHIFTS
// =============================================================================

const shiftColumns = `id, owner_id, kind, shift_date, scheduled_start, scheduled_end,
	actual_start, actual_end, status, auto_closed, notes, created_at, updated_at`

func scanShift(row interface{ Scan(...any) error }) (shifts.Shift, error) {
	var (
		sh                     shifts.Shift
		schedStart, schedEnd   string
		actualStart, actualEnd sql.NullString
		autoClosed             int
		createdAt, updatedAt   string
	)
	err := row.Scan(&sh.ID, &sh.OwnerID, &sh.Kind, &sh.Date, &schedStart, &schedEnd,
		&actualStart, &actualEnd, &sh.Status, &autoClosed, &sh.Notes, &createdAt, &updatedAt)
	if err != nil {
		return sh, err
	}
	sh.AutoClosed = autoClosed == 1

	var errs []error
	parse := func(dst *time.Time, src string) {
		t, err := parseTime(src)
		errs = append(errs, err)
		*dst = t
	}
	parse(&sh.ScheduledStart, schedStart)
	parse(&sh.ScheduledEnd, schedEnd)
	parse(&sh.CreatedAt, createdAt)
	parse(&sh.UpdatedAt, updatedAt)
	sh.ActualStart, err = parseNullTime(actualStart)
	errs = append(errs, err)
	sh.ActualEnd, err = parseNullTime(actualEnd)
	errs = append(errs, err)
	return sh, errors.Join(errs...)
}

func (s *Store) Shift(ctx context.Context, id generic.ShiftID) (shifts.Shift, error) {
	sh, err := scanShift(s.queryRow(ctx, `SELECT `+shiftColumns+` FROM shifts WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return sh, fmt.Errorf("%w: shift %s", generic.ErrNotFound, id)
	}
	if err != nil {
		return sh, generic.SystemError("load shift", err)
	}
	return sh, nil
}

func (s *Store) ShiftByOwnerDate(ctx context.Context, ownerID generic.WorkerID, date string) (shifts.Shift, error) {
	sh, err := scanShift(s.queryRow(ctx,
		`SELECT `+shiftColumns+` FROM shifts WHERE owner_id = ? AND shift_date = ?`, ownerID, date))
	if errors.Is(err, sql.ErrNoRows) {
		return sh, fmt.Errorf("%w: no shift for %s on %s", generic.ErrNotFound, ownerID, date)
	}
	if err != nil {
		return sh, generic.SystemError("load shift", err)
	}
	return sh, nil
}

// InsertShift relies on ux_shifts_owner_date for the one-per-day rule.
func (s *Store) InsertShift(ctx context.Context, sh shifts.Shift) error {
	_, err := s.exec(ctx, `
		INSERT INTO shifts (`+shiftColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, sh.ID, sh.OwnerID, sh.Kind, sh.Date, formatTime(sh.ScheduledStart), formatTime(sh.ScheduledEnd),
		nullTime(sh.ActualStart), nullTime(sh.ActualEnd), sh.Status, boolInt(sh.AutoClosed), sh.Notes,
		formatTime(sh.CreatedAt), formatTime(sh.UpdatedAt))
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: shift for %s on %s", generic.ErrAlreadyExists, sh.OwnerID, sh.Date)
	}
	if err != nil {
		return generic.SystemError("insert shift", err)
	}
	return nil
}

func (s *Store) MarkActive(ctx context.Context, id generic.ShiftID, at time.Time) (bool, error) {
	res, err := s.exec(ctx, `
		UPDATE shifts SET status = ?, actual_start = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, shifts.StatusActive, formatTime(at), formatTime(at), id, shifts.StatusScheduled)
	if isUniqueViolation(err) {
		return false, fmt.Errorf("%w: worker already has an active shift", generic.ErrConflict)
	}
	if err != nil {
		return false, generic.SystemError("start shift", err)
	}
	return affected(res)
}

func (s *Store) MarkCompleted(ctx context.Context, id generic.ShiftID, at time.Time, autoClosed bool) (bool, error) {
	res, err := s.exec(ctx, `
		UPDATE shifts SET status = ?, actual_end = ?, auto_closed = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, shifts.StatusCompleted, formatTime(at), boolInt(autoClosed), formatTime(s.now()), id, shifts.StatusActive)
	if err != nil {
		return false, generic.SystemError("complete shift", err)
	}
	return affected(res)
}

func (s *Store) MarkMissed(ctx context.Context, id generic.ShiftID, at time.Time) (bool, error) {
	res, err := s.exec(ctx, `
		UPDATE shifts SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, shifts.StatusMissed, formatTime(at), id, shifts.StatusScheduled)
	if err != nil {
		return false, generic.SystemError("mark shift missed", err)
	}
	return affected(res)
}

func (s *Store) OverdueShifts(ctx context.Context, now time.Time, ownerID *generic.WorkerID) ([]shifts.Shift, error) {
	query := `SELECT ` + shiftColumns + ` FROM shifts
		WHERE status IN (?, ?) AND scheduled_end <= ?`
	args := []any{shifts.StatusScheduled, shifts.StatusActive, formatTime(now)}
	if ownerID != nil {
		query += ` AND owner_id = ?`
		args = append(args, *ownerID)
	}
	query += ` ORDER BY scheduled_end, id`
	return s.queryShifts(ctx, query, args...)
}

// ShiftsByOwner returns a worker's shifts with shift_date in [from, to], newest first.
func (s *Store) ShiftsByOwner(ctx context.Context, ownerID generic.WorkerID, from, to string) ([]shifts.Shift, error) {
	return s.queryShifts(ctx, `SELECT `+shiftColumns+` FROM shifts
		WHERE owner_id = ? AND shift_date >= ? AND shift_date <= ?
		ORDER BY shift_date DESC`, ownerID, from, to)
}

func (s *Store) queryShifts(ctx context.Context, query string, args ...any) ([]shifts.Shift, error) {
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, generic.SystemError("query shifts", err)
	}
	defer rows.Close()

	var out []shifts.Shift
	for rows.Next() {
		sh, err := scanShift(rows)
		if err != nil {
			return nil, generic.SystemError("scan shift", err)
		}
		out = append(out, sh)
	}
	return out, rows.Err()
}
