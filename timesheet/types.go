/*
Package timesheet provides the timesheet reconciliation and approval engine.

PURPOSE:
  This package contains the domain types and algorithms for reconciling
  self-reported work hours against independently recorded attendance,
  splitting hours into regular/overtime against a shift-derived threshold,
  and driving the timesheet approval workflow.

KEY CONCEPTS IN THIS FILE (types.go):
  - Timesheet: The aggregate root covering one employee week
  - Entry: A single reported day of work within a timesheet
  - ValidationResult: The outcome of reconciling entries against attendance
  - Status: The timesheet lifecycle state (draft/submitted/approved/rejected)

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal for hour arithmetic to avoid
     floating-point drift; floats appear only at the JSON boundary
  2. Derived data is recomputed, never trusted: totals, splits, and the
     validation snapshot are overwritten on every write
  3. Type Safety: Strong typing for IDs prevents mixing employee/timesheet IDs
  4. Auditability: Every transition stamps who did it and when

SEE ALSO:
  - reconcile.go: Validation of entries against attendance
  - overtime.go: Threshold resolution and regular/overtime splitting
  - workflow.go: Guarded state transitions
*/
package timesheet

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type TimesheetID string
type EmployeeID string
type CompanyID string
type ShiftID string

// =============================================================================
// STATUS - Timesheet lifecycle state
// =============================================================================

type Status string

const (
	StatusDraft     Status = "draft"
	StatusSubmitted Status = "submitted"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
)

// Editable reports whether entries and notes may still be mutated.
func (s Status) Editable() bool { return s == StatusDraft || s == StatusRejected }

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool { return s == StatusApproved }

// =============================================================================
// ENTRY - One reported day of work
// =============================================================================

// Entry is a single self-reported day inside a timesheet. RegularHours and
// OvertimeHours are derived on every write from the resolved shift threshold;
// they are never accepted from callers.
type Entry struct {
	Date        time.Time       `json:"date"`
	Hours       decimal.Decimal `json:"hours"`
	Description string          `json:"description,omitempty"`
	Project     string          `json:"project,omitempty"`
	Task        string          `json:"task,omitempty"`

	// Derived at processing time. RegularHours + OvertimeHours == Hours.
	RegularHours  decimal.Decimal `json:"regular_hours"`
	OvertimeHours decimal.Decimal `json:"overtime_hours"`
}

// =============================================================================
// VALIDATION RESULT - Outcome of reconciling entries against attendance
// =============================================================================

type WarningType string

const (
	WarnNoAttendance     WarningType = "no_attendance"
	WarnLargeDiscrepancy WarningType = "large_discrepancy"
	WarnLeaveClaim       WarningType = "leave_claim"
	WarnAbsentClaim      WarningType = "absent_claim"
	WarnValidationError  WarningType = "validation_error"
)

// Warning is a typed reconciliation finding. Only WarnLargeDiscrepancy is
// blocking; the rest are policy signals.
type Warning struct {
	Type    WarningType `json:"type"`
	Date    time.Time   `json:"date,omitempty"`
	Message string      `json:"message"`
}

// Discrepancy records a reported-vs-attendance mismatch exceeding tolerance.
// Hours are rounded to 2 decimals, the percentage to 1.
type Discrepancy struct {
	Date             time.Time       `json:"date"`
	ReportedHours    decimal.Decimal `json:"reported_hours"`
	AttendanceHours  decimal.Decimal `json:"attendance_hours"`
	Difference       decimal.Decimal `json:"difference"`
	PercentageDiff   decimal.Decimal `json:"percentage_diff"`
	ClockIn          *time.Time      `json:"clock_in,omitempty"`
	ClockOut         *time.Time      `json:"clock_out,omitempty"`
	AttendanceStatus string          `json:"attendance_status,omitempty"`
}

// ValidationResult is embedded on the timesheet as a snapshot of the last
// reconciliation run. It is always recomputed in full, never merged.
type ValidationResult struct {
	IsValid              bool            `json:"is_valid"`
	Warnings             []Warning       `json:"warnings,omitempty"`
	Discrepancies        []Discrepancy   `json:"discrepancies,omitempty"`
	MissingAttendance    []time.Time     `json:"missing_attendance,omitempty"`
	TotalReportedHours   decimal.Decimal `json:"total_reported_hours"`
	TotalAttendanceHours decimal.Decimal `json:"total_attendance_hours"`
	ValidatedAt          time.Time       `json:"validated_at"`
}

// HasWarning reports whether a warning of the given type was recorded.
func (v *ValidationResult) HasWarning(t WarningType) bool {
	for _, w := range v.Warnings {
		if w.Type == t {
			return true
		}
	}
	return false
}

// =============================================================================
// TIMESHEET - Aggregate root
// =============================================================================

// Timesheet covers exactly one Monday-aligned employee week. The storage key
// is store-generated; Label is a purely cosmetic human-readable identifier.
type Timesheet struct {
	ID        TimesheetID `json:"id"`
	Label     string      `json:"label"`
	CompanyID CompanyID   `json:"company_id"`

	EmployeeID EmployeeID `json:"employee_id"`

	WeekStart time.Time `json:"week_start"`
	WeekEnd   time.Time `json:"week_end"`

	Entries []Entry `json:"entries"`

	// Sums over entries, recomputed on every write.
	TotalHours         decimal.Decimal `json:"total_hours"`
	TotalRegularHours  decimal.Decimal `json:"total_regular_hours"`
	TotalOvertimeHours decimal.Decimal `json:"total_overtime_hours"`

	Status     Status            `json:"status"`
	Validation *ValidationResult `json:"validation,omitempty"`
	Notes      string            `json:"notes,omitempty"`

	// Audit fields
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	UpdatedBy string    `json:"updated_by,omitempty"`

	SubmittedBy string     `json:"submitted_by,omitempty"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`

	ApprovedBy       string     `json:"approved_by,omitempty"`
	ApprovedAt       *time.Time `json:"approved_at,omitempty"`
	ApprovalComments string     `json:"approval_comments,omitempty"`

	RejectedBy      string     `json:"rejected_by,omitempty"`
	RejectedAt      *time.Time `json:"rejected_at,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty"`

	// True when an approver explicitly overrode a failing validation.
	ValidationOverride bool `json:"validation_override,omitempty"`

	// Soft delete. Deleted timesheets are excluded from all reads.
	IsDeleted bool       `json:"is_deleted,omitempty"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
	DeletedBy string     `json:"deleted_by,omitempty"`
}

// RecomputeTotals overwrites the aggregate sums from the entries.
// Invariant after any write: TotalHours == sum of entry hours and
// TotalHours == TotalRegularHours + TotalOvertimeHours.
func (ts *Timesheet) RecomputeTotals() {
	total, regular, overtime := decimal.Zero, decimal.Zero, decimal.Zero
	for _, e := range ts.Entries {
		total = total.Add(e.Hours)
		regular = regular.Add(e.RegularHours)
		overtime = overtime.Add(e.OvertimeHours)
	}
	ts.TotalHours = total
	ts.TotalRegularHours = regular
	ts.TotalOvertimeHours = overtime
}

// =============================================================================
// STATS - Aggregate counts/totals by status over a date range
// =============================================================================

type Stats struct {
	Total     int `json:"total"`
	Draft     int `json:"draft"`
	Submitted int `json:"submitted"`
	Approved  int `json:"approved"`
	Rejected  int `json:"rejected"`

	TotalHours         decimal.Decimal `json:"total_hours"`
	TotalOvertimeHours decimal.Decimal `json:"total_overtime_hours"`
}
