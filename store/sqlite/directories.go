/*
directories.go - SQLite-backed collaborator implementations

PURPOSE:
  The attendance source, shift directory, employee directory, and audit sink
  live in the same database in a self-contained deployment. The engine only
  sees the narrow interfaces; the Save* methods exist for seeding through the
  admin API and for tests.

SEE ALSO:
  - timesheet/collaborators.go: Interface definitions
  - sqlite.go: Store setup and schema
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/warp/timesheet-engine/timesheet"
)

// =============================================================================
// ATTENDANCE SOURCE (timesheet.AttendanceSource interface)
// =============================================================================

// SaveAttendance upserts the attendance record for an employee day.
func (s *Store) SaveAttendance(ctx context.Context, r timesheet.AttendanceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO attendance (id, employee_id, day, hours_worked, status, clock_in, clock_out, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(employee_id, day) DO UPDATE SET
			hours_worked = excluded.hours_worked,
			status = excluded.status,
			clock_in = excluded.clock_in,
			clock_out = excluded.clock_out
	`

	_, err := s.db.ExecContext(ctx, query,
		timesheet.NewID("att"),
		r.EmployeeID,
		timesheet.DayStart(r.Date).Format("2006-01-02"),
		r.HoursWorked.String(),
		r.Status,
		nullTime(r.ClockIn),
		nullTime(r.ClockOut),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save attendance: %w", err)
	}
	return nil
}

// FindOne returns the single attendance record whose day falls within the
// given bounds, or (nil, nil) when none exists.
func (s *Store) FindOne(ctx context.Context, employeeID timesheet.EmployeeID, dayStart, _ time.Time) (*timesheet.AttendanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT employee_id, day, hours_worked, status, clock_in, clock_out
		FROM attendance
		WHERE employee_id = ? AND day = ?
	`

	var (
		r                 timesheet.AttendanceRecord
		day, hoursWorked  string
		clockIn, clockOut sql.NullString
	)
	err := s.db.QueryRowContext(ctx, query,
		employeeID, timesheet.DayStart(dayStart).Format("2006-01-02"),
	).Scan(&r.EmployeeID, &day, &hoursWorked, &r.Status, &clockIn, &clockOut)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query attendance: %w", err)
	}

	r.Date, _ = time.Parse("2006-01-02", day)
	r.HoursWorked = mustDecimal(hoursWorked)
	r.ClockIn = parseNullTime(clockIn)
	r.ClockOut = parseNullTime(clockOut)
	return &r, nil
}

// =============================================================================
// SHIFT DIRECTORY (timesheet.ShiftDirectory interface)
// =============================================================================

// SaveShift upserts a shift definition.
func (s *Store) SaveShift(ctx context.Context, shift timesheet.Shift) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO shifts (id, name, overtime_enabled, overtime_threshold, min_hours_full_day, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			overtime_enabled = excluded.overtime_enabled,
			overtime_threshold = excluded.overtime_threshold,
			min_hours_full_day = excluded.min_hours_full_day
	`

	var threshold, minHours sql.NullString
	if shift.OvertimeThreshold != nil {
		threshold = sql.NullString{String: shift.OvertimeThreshold.String(), Valid: true}
	}
	if shift.MinHoursForFullDay != nil {
		minHours = sql.NullString{String: shift.MinHoursForFullDay.String(), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, query,
		shift.ID, shift.Name, shift.OvertimeEnabled, threshold, minHours,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save shift: %w", err)
	}
	return nil
}

// FindShift returns a shift by ID, or (nil, nil) when unknown.
func (s *Store) FindShift(ctx context.Context, id timesheet.ShiftID) (*timesheet.Shift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		shift               timesheet.Shift
		threshold, minHours sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, overtime_enabled, overtime_threshold, min_hours_full_day FROM shifts WHERE id = ?",
		id,
	).Scan(&shift.ID, &shift.Name, &shift.OvertimeEnabled, &threshold, &minHours)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query shift: %w", err)
	}

	if threshold.Valid {
		d := mustDecimal(threshold.String)
		shift.OvertimeThreshold = &d
	}
	if minHours.Valid {
		d := mustDecimal(minHours.String)
		shift.MinHoursForFullDay = &d
	}
	return &shift, nil
}

// =============================================================================
// EMPLOYEE DIRECTORY (timesheet.EmployeeDirectory interface)
// =============================================================================

// SaveEmployee upserts an employee record.
func (s *Store) SaveEmployee(ctx context.Context, emp timesheet.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO employees (id, code, name, shift_id, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			code = excluded.code,
			name = excluded.name,
			shift_id = excluded.shift_id
	`

	_, err := s.db.ExecContext(ctx, query,
		emp.ID, emp.Code, emp.Name, nullString(string(emp.ShiftID)),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save employee: %w", err)
	}
	return nil
}

// FindEmployee returns an employee by ID, or (nil, nil) when unknown.
func (s *Store) FindEmployee(ctx context.Context, id timesheet.EmployeeID) (*timesheet.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		emp     timesheet.Employee
		shiftID sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, code, name, shift_id FROM employees WHERE id = ?",
		id,
	).Scan(&emp.ID, &emp.Code, &emp.Name, &shiftID)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query employee: %w", err)
	}

	emp.ShiftID = timesheet.ShiftID(shiftID.String)
	return &emp, nil
}

// =============================================================================
// AUDIT SINK (timesheet.AuditSink interface)
// =============================================================================

// Record appends an activity record. Append-only: no update or delete path
// exists for the audit_log table.
func (s *Store) Record(ctx context.Context, event timesheet.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	detailJSON, _ := json.Marshal(event.Detail)

	at := event.At
	if at.IsZero() {
		at = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, company_id, action, timesheet_id, employee_id, actor_id, actor_role, detail_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		timesheet.NewID("audit"),
		event.CompanyID, event.Action, event.TimesheetID, event.EmployeeID,
		event.ActorID, event.ActorRole, string(detailJSON),
		at.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to record audit event: %w", err)
	}
	return nil
}

// AuditTrail returns the recorded events for a timesheet, oldest first.
func (s *Store) AuditTrail(ctx context.Context, companyID timesheet.CompanyID, id timesheet.TimesheetID) ([]timesheet.AuditEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT company_id, action, timesheet_id, employee_id, actor_id, actor_role, detail_json, created_at
		FROM audit_log
		WHERE company_id = ? AND timesheet_id = ?
		ORDER BY created_at ASC, rowid ASC`,
		companyID, id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit trail: %w", err)
	}
	defer rows.Close()

	var events []timesheet.AuditEvent
	for rows.Next() {
		var (
			e          timesheet.AuditEvent
			detailJSON sql.NullString
			createdAt  string
		)
		if err := rows.Scan(&e.CompanyID, &e.Action, &e.TimesheetID, &e.EmployeeID,
			&e.ActorID, &e.ActorRole, &detailJSON, &createdAt); err != nil {
			return nil, err
		}
		e.At, _ = time.Parse(time.RFC3339, createdAt)
		if detailJSON.Valid && detailJSON.String != "" && detailJSON.String != "null" {
			json.Unmarshal([]byte(detailJSON.String), &e.Detail)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
