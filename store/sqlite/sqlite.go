/*
Package sqlite provides a SQLite-backed implementation of the storage and
directory interfaces.

PURPOSE:
  Implements timesheet.TxStore plus the collaborator contracts
  (AttendanceSource, ShiftDirectory, EmployeeDirectory, AuditSink) using
  SQLite. In production the same patterns apply to PostgreSQL - only minor
  SQL dialect differences.

KEY TABLES:
  timesheets:  One row per employee week; entries and the validation
               snapshot stored as JSON documents on the row, so every
               create/edit/submit is a single-row write
  attendance:  Clock-in/clock-out records, one per employee per day
  shifts:      Overtime policy per shift
  employees:   Shift assignment + human employee code
  audit_log:   Append-only activity trail

UNIQUENESS:
  idx_timesheets_employee_week is a partial unique index on
  (company_id, employee_id, week_start) WHERE is_deleted = 0. The store is
  authoritative for the one-timesheet-per-week invariant; the workflow's
  pre-check only produces a friendlier error. Soft-deleting a timesheet
  frees the week for re-creation.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety around the handle. Conditional
  updates assert the status observed at read time in the WHERE clause; a
  lost race surfaces as ErrConcurrentModification, which the engine's
  transactional writer retries. SQLite "database is locked" faults are
  translated to the same retryable error.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency.

USAGE:
  store, err := sqlite.New("./data/timesheets.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - timesheet/store.go: Interface definitions
  - timesheet/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/timesheet-engine/timesheet"
)

// Store implements the storage and directory interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Writes are serialized by the mutex anyway, and a single connection
	// keeps ":memory:" databases on one schema.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS timesheets (
		id TEXT PRIMARY KEY,
		label TEXT NOT NULL,
		company_id TEXT NOT NULL,
		employee_id TEXT NOT NULL,
		week_start TEXT NOT NULL,
		week_end TEXT NOT NULL,
		entries_json TEXT NOT NULL,
		total_hours TEXT NOT NULL,
		total_regular_hours TEXT NOT NULL,
		total_overtime_hours TEXT NOT NULL,
		status TEXT NOT NULL,
		validation_json TEXT,
		notes TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		updated_by TEXT,
		submitted_by TEXT,
		submitted_at TEXT,
		approved_by TEXT,
		approved_at TEXT,
		approval_comments TEXT,
		rejected_by TEXT,
		rejected_at TEXT,
		rejection_reason TEXT,
		validation_override BOOLEAN NOT NULL DEFAULT FALSE,
		is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
		deleted_at TEXT,
		deleted_by TEXT
	);

	-- CRITICAL: at most one non-deleted timesheet per employee week.
	-- Partial so a soft-deleted week can be re-created.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_timesheets_employee_week
		ON timesheets(company_id, employee_id, week_start)
		WHERE is_deleted = FALSE;

	CREATE INDEX IF NOT EXISTS idx_timesheets_company_status
		ON timesheets(company_id, status) WHERE is_deleted = FALSE;
	CREATE INDEX IF NOT EXISTS idx_timesheets_company_week
		ON timesheets(company_id, week_start DESC) WHERE is_deleted = FALSE;

	-- Attendance: one record per employee per calendar day
	CREATE TABLE IF NOT EXISTS attendance (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		day TEXT NOT NULL,
		hours_worked TEXT NOT NULL,
		status TEXT NOT NULL,
		clock_in TEXT,
		clock_out TEXT,
		created_at TEXT NOT NULL,
		UNIQUE(employee_id, day)
	);

	CREATE INDEX IF NOT EXISTS idx_attendance_employee_day
		ON attendance(employee_id, day);

	CREATE TABLE IF NOT EXISTS shifts (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		overtime_enabled BOOLEAN NOT NULL DEFAULT TRUE,
		overtime_threshold TEXT,
		min_hours_full_day TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL,
		name TEXT NOT NULL,
		shift_id TEXT,
		created_at TEXT NOT NULL
	);

	-- Append-only activity trail
	CREATE TABLE IF NOT EXISTS audit_log (
		id TEXT PRIMARY KEY,
		company_id TEXT NOT NULL,
		action TEXT NOT NULL,
		timesheet_id TEXT NOT NULL,
		employee_id TEXT NOT NULL,
		actor_id TEXT NOT NULL,
		actor_role TEXT,
		detail_json TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_audit_company_timesheet
		ON audit_log(company_id, timesheet_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// TIMESHEET STORE (timesheet.Store interface)
// =============================================================================

const timesheetColumns = `id, label, company_id, employee_id, week_start, week_end,
	entries_json, total_hours, total_regular_hours, total_overtime_hours,
	status, validation_json, notes, created_at, updated_at, updated_by,
	submitted_by, submitted_at, approved_by, approved_at, approval_comments,
	rejected_by, rejected_at, rejection_reason, validation_override,
	is_deleted, deleted_at, deleted_by`

func (s *Store) Get(ctx context.Context, companyID timesheet.CompanyID, id timesheet.TimesheetID) (*timesheet.Timesheet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getTimesheet(ctx, s.db, companyID, id)
}

func getTimesheet(ctx context.Context, db dbtx, companyID timesheet.CompanyID, id timesheet.TimesheetID) (*timesheet.Timesheet, error) {
	query := `SELECT ` + timesheetColumns + ` FROM timesheets
		WHERE id = ? AND company_id = ? AND is_deleted = FALSE`

	ts, err := scanTimesheet(db.QueryRowContext(ctx, query, id, companyID))
	if err == sql.ErrNoRows {
		return nil, timesheet.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get timesheet: %w", err)
	}
	return ts, nil
}

func (s *Store) FindByWeek(ctx context.Context, companyID timesheet.CompanyID, employeeID timesheet.EmployeeID, weekStart time.Time) (*timesheet.Timesheet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return findByWeek(ctx, s.db, companyID, employeeID, weekStart)
}

func findByWeek(ctx context.Context, db dbtx, companyID timesheet.CompanyID, employeeID timesheet.EmployeeID, weekStart time.Time) (*timesheet.Timesheet, error) {
	query := `SELECT ` + timesheetColumns + ` FROM timesheets
		WHERE company_id = ? AND employee_id = ? AND week_start = ? AND is_deleted = FALSE`

	ts, err := scanTimesheet(db.QueryRowContext(ctx, query,
		companyID, employeeID, weekStart.UTC().Format(time.RFC3339)))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find timesheet by week: %w", err)
	}
	return ts, nil
}

func (s *Store) List(ctx context.Context, companyID timesheet.CompanyID, filter timesheet.ListFilter, page timesheet.Page) ([]*timesheet.Timesheet, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	where := "company_id = ? AND is_deleted = FALSE"
	args := []any{companyID}

	if filter.EmployeeID != "" {
		where += " AND employee_id = ?"
		args = append(args, filter.EmployeeID)
	}
	if filter.Status != "" {
		where += " AND status = ?"
		args = append(args, filter.Status)
	}
	if !filter.From.IsZero() {
		where += " AND week_start >= ?"
		args = append(args, filter.From.UTC().Format(time.RFC3339))
	}
	if !filter.To.IsZero() {
		where += " AND week_start <= ?"
		args = append(args, filter.To.UTC().Format(time.RFC3339))
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM timesheets WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count timesheets: %w", err)
	}

	limit := page.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + timesheetColumns + ` FROM timesheets WHERE ` + where + `
		ORDER BY week_start DESC, id ASC LIMIT ? OFFSET ?`
	args = append(args, limit, page.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list timesheets: %w", err)
	}
	defer rows.Close()

	var sheets []*timesheet.Timesheet
	for rows.Next() {
		ts, err := scanTimesheet(rows)
		if err != nil {
			return nil, 0, err
		}
		sheets = append(sheets, ts)
	}
	return sheets, total, rows.Err()
}

func (s *Store) Insert(ctx context.Context, ts *timesheet.Timesheet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertTimesheet(ctx, s.db, ts)
}

func insertTimesheet(ctx context.Context, db dbtx, ts *timesheet.Timesheet) error {
	if ts.ID == "" {
		ts.ID = timesheet.TimesheetID(timesheet.NewID("ts"))
	}

	entriesJSON, err := json.Marshal(ts.Entries)
	if err != nil {
		return fmt.Errorf("failed to encode entries: %w", err)
	}
	validationJSON, err := marshalValidation(ts.Validation)
	if err != nil {
		return err
	}

	query := `INSERT INTO timesheets (` + timesheetColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = db.ExecContext(ctx, query,
		ts.ID, ts.Label, ts.CompanyID, ts.EmployeeID,
		ts.WeekStart.UTC().Format(time.RFC3339), ts.WeekEnd.UTC().Format(time.RFC3339),
		string(entriesJSON),
		ts.TotalHours.String(), ts.TotalRegularHours.String(), ts.TotalOvertimeHours.String(),
		ts.Status, validationJSON, ts.Notes,
		ts.CreatedAt.UTC().Format(time.RFC3339), ts.UpdatedAt.UTC().Format(time.RFC3339), ts.UpdatedBy,
		nullString(ts.SubmittedBy), nullTime(ts.SubmittedAt),
		nullString(ts.ApprovedBy), nullTime(ts.ApprovedAt), nullString(ts.ApprovalComments),
		nullString(ts.RejectedBy), nullTime(ts.RejectedAt), nullString(ts.RejectionReason),
		ts.ValidationOverride, ts.IsDeleted, nullTime(ts.DeletedAt), nullString(ts.DeletedBy),
	)

	if err != nil {
		if isUniqueConstraintError(err) {
			return &timesheet.DuplicateWeekError{
				EmployeeID: ts.EmployeeID,
				WeekStart:  ts.WeekStart.Format("2006-01-02"),
			}
		}
		return translateBusy(fmt.Errorf("failed to insert timesheet: %w", err), err)
	}
	return nil
}

func (s *Store) Update(ctx context.Context, ts *timesheet.Timesheet, expectStatus timesheet.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateTimesheet(ctx, s.db, ts, expectStatus)
}

// updateTimesheet overwrites the row conditional on the status observed at
// read time. Zero rows affected means either the document vanished or the
// condition failed; the follow-up existence probe distinguishes the two.
func updateTimesheet(ctx context.Context, db dbtx, ts *timesheet.Timesheet, expectStatus timesheet.Status) error {
	entriesJSON, err := json.Marshal(ts.Entries)
	if err != nil {
		return fmt.Errorf("failed to encode entries: %w", err)
	}
	validationJSON, err := marshalValidation(ts.Validation)
	if err != nil {
		return err
	}

	query := `UPDATE timesheets SET
		label = ?, entries_json = ?, total_hours = ?, total_regular_hours = ?,
		total_overtime_hours = ?, status = ?, validation_json = ?, notes = ?,
		updated_at = ?, updated_by = ?,
		submitted_by = ?, submitted_at = ?,
		approved_by = ?, approved_at = ?, approval_comments = ?,
		rejected_by = ?, rejected_at = ?, rejection_reason = ?,
		validation_override = ?, is_deleted = ?, deleted_at = ?, deleted_by = ?
		WHERE id = ? AND company_id = ? AND is_deleted = FALSE AND status = ?`

	res, err := db.ExecContext(ctx, query,
		ts.Label, string(entriesJSON),
		ts.TotalHours.String(), ts.TotalRegularHours.String(), ts.TotalOvertimeHours.String(),
		ts.Status, validationJSON, ts.Notes,
		ts.UpdatedAt.UTC().Format(time.RFC3339), ts.UpdatedBy,
		nullString(ts.SubmittedBy), nullTime(ts.SubmittedAt),
		nullString(ts.ApprovedBy), nullTime(ts.ApprovedAt), nullString(ts.ApprovalComments),
		nullString(ts.RejectedBy), nullTime(ts.RejectedAt), nullString(ts.RejectionReason),
		ts.ValidationOverride, ts.IsDeleted, nullTime(ts.DeletedAt), nullString(ts.DeletedBy),
		ts.ID, ts.CompanyID, expectStatus,
	)
	if err != nil {
		return translateBusy(fmt.Errorf("failed to update timesheet: %w", err), err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		var count int
		probe := `SELECT COUNT(*) FROM timesheets WHERE id = ? AND company_id = ? AND is_deleted = FALSE`
		if err := db.QueryRowContext(ctx, probe, ts.ID, ts.CompanyID).Scan(&count); err != nil {
			return fmt.Errorf("failed to probe timesheet: %w", err)
		}
		if count == 0 {
			return timesheet.ErrNotFound
		}
		return timesheet.ErrConcurrentModification
	}
	return nil
}

func (s *Store) Stats(ctx context.Context, companyID timesheet.CompanyID, from, to time.Time) (*timesheet.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	where := "company_id = ? AND is_deleted = FALSE"
	args := []any{companyID}
	if !from.IsZero() {
		where += " AND week_start >= ?"
		args = append(args, from.UTC().Format(time.RFC3339))
	}
	if !to.IsZero() {
		where += " AND week_start <= ?"
		args = append(args, to.UTC().Format(time.RFC3339))
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT status, total_hours, total_overtime_hours FROM timesheets WHERE "+where, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query stats: %w", err)
	}
	defer rows.Close()

	stats := &timesheet.Stats{}
	for rows.Next() {
		var status, totalHours, overtimeHours string
		if err := rows.Scan(&status, &totalHours, &overtimeHours); err != nil {
			return nil, err
		}
		stats.Total++
		switch timesheet.Status(status) {
		case timesheet.StatusDraft:
			stats.Draft++
		case timesheet.StatusSubmitted:
			stats.Submitted++
		case timesheet.StatusApproved:
			stats.Approved++
		case timesheet.StatusRejected:
			stats.Rejected++
		}
		stats.TotalHours = stats.TotalHours.Add(mustDecimal(totalHours))
		stats.TotalOvertimeHours = stats.TotalOvertimeHours.Add(mustDecimal(overtimeHours))
	}
	return stats, rows.Err()
}

// =============================================================================
// TRANSACTIONAL STORE (timesheet.TxStore interface)
// =============================================================================

// WithTx executes fn within a database transaction. If fn returns an error
// the transaction is rolled back and nothing from the attempt is visible.
func (s *Store) WithTx(ctx context.Context, fn func(timesheet.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return translateBusy(fmt.Errorf("failed to begin transaction: %w", err), err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return translateBusy(fmt.Errorf("failed to commit transaction: %w", err), err)
	}
	return nil
}

// txStore runs store operations against an open transaction. List and Stats
// are read-model queries with no place inside an approval unit.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) Get(ctx context.Context, companyID timesheet.CompanyID, id timesheet.TimesheetID) (*timesheet.Timesheet, error) {
	return getTimesheet(ctx, ts.tx, companyID, id)
}

func (ts *txStore) FindByWeek(ctx context.Context, companyID timesheet.CompanyID, employeeID timesheet.EmployeeID, weekStart time.Time) (*timesheet.Timesheet, error) {
	return findByWeek(ctx, ts.tx, companyID, employeeID, weekStart)
}

func (ts *txStore) List(context.Context, timesheet.CompanyID, timesheet.ListFilter, timesheet.Page) ([]*timesheet.Timesheet, int, error) {
	return nil, 0, fmt.Errorf("list inside a transaction is not supported")
}

func (ts *txStore) Insert(ctx context.Context, sheet *timesheet.Timesheet) error {
	return insertTimesheet(ctx, ts.tx, sheet)
}

func (ts *txStore) Update(ctx context.Context, sheet *timesheet.Timesheet, expectStatus timesheet.Status) error {
	return updateTimesheet(ctx, ts.tx, sheet, expectStatus)
}

func (ts *txStore) Stats(context.Context, timesheet.CompanyID, time.Time, time.Time) (*timesheet.Stats, error) {
	return nil, fmt.Errorf("stats inside a transaction is not supported")
}

// =============================================================================
// SCANNING
// =============================================================================

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTimesheet(row rowScanner) (*timesheet.Timesheet, error) {
	var (
		ts                                  timesheet.Timesheet
		weekStart, weekEnd                  string
		entriesJSON                         string
		totalHours, regularHours, otHours   string
		validationJSON                      sql.NullString
		notes, updatedBy                    sql.NullString
		createdAt, updatedAt                string
		submittedBy, approvedBy, rejectedBy sql.NullString
		submittedAt, approvedAt, rejectedAt sql.NullString
		approvalComments, rejectionReason   sql.NullString
		deletedAt, deletedBy                sql.NullString
	)

	err := row.Scan(
		&ts.ID, &ts.Label, &ts.CompanyID, &ts.EmployeeID, &weekStart, &weekEnd,
		&entriesJSON, &totalHours, &regularHours, &otHours,
		&ts.Status, &validationJSON, &notes, &createdAt, &updatedAt, &updatedBy,
		&submittedBy, &submittedAt, &approvedBy, &approvedAt, &approvalComments,
		&rejectedBy, &rejectedAt, &rejectionReason, &ts.ValidationOverride,
		&ts.IsDeleted, &deletedAt, &deletedBy,
	)
	if err != nil {
		return nil, err
	}

	ts.WeekStart, _ = time.Parse(time.RFC3339, weekStart)
	ts.WeekEnd, _ = time.Parse(time.RFC3339, weekEnd)
	ts.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	ts.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	ts.Notes = notes.String
	ts.UpdatedBy = updatedBy.String
	ts.SubmittedBy = submittedBy.String
	ts.SubmittedAt = parseNullTime(submittedAt)
	ts.ApprovedBy = approvedBy.String
	ts.ApprovedAt = parseNullTime(approvedAt)
	ts.ApprovalComments = approvalComments.String
	ts.RejectedBy = rejectedBy.String
	ts.RejectedAt = parseNullTime(rejectedAt)
	ts.RejectionReason = rejectionReason.String
	ts.DeletedAt = parseNullTime(deletedAt)
	ts.DeletedBy = deletedBy.String

	ts.TotalHours = mustDecimal(totalHours)
	ts.TotalRegularHours = mustDecimal(regularHours)
	ts.TotalOvertimeHours = mustDecimal(otHours)

	if err := json.Unmarshal([]byte(entriesJSON), &ts.Entries); err != nil {
		return nil, fmt.Errorf("failed to decode entries: %w", err)
	}
	if validationJSON.Valid && validationJSON.String != "" {
		var v timesheet.ValidationResult
		if err := json.Unmarshal([]byte(validationJSON.String), &v); err != nil {
			return nil, fmt.Errorf("failed to decode validation: %w", err)
		}
		ts.Validation = &v
	}

	return &ts, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func marshalValidation(v *timesheet.ValidationResult) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode validation: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// translateBusy maps SQLite lock contention to the engine's retryable error
// so the transactional writer re-runs the unit.
func translateBusy(wrapped, raw error) error {
	if raw != nil && (strings.Contains(raw.Error(), "database is locked") ||
		strings.Contains(raw.Error(), "database table is locked")) {
		return timesheet.ErrConcurrentModification
	}
	return wrapped
}
