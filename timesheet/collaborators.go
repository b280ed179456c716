/*
collaborators.go - External collaborator contracts

PURPOSE:
  Narrow interfaces for the systems this engine reads from or notifies:
  attendance records, shift assignments, the employee directory, the audit
  trail, and UI push notifications. The engine owns none of this data.

READ-ONLY SOURCES:
  AttendanceSource and ShiftDirectory are never written by this engine, so
  there are no write races to manage against them.

FIRE-AND-FORGET SINKS:
  AuditSink and NotificationSink failures are swallowed and logged by the
  caller; they never roll back or fail the primary operation. Both default
  to no-op implementations so tests and minimal deployments need no wiring.
*/
package timesheet

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ATTENDANCE SOURCE - Independently recorded clock-in/clock-out data
// =============================================================================

type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "present"
	AttendanceAbsent  AttendanceStatus = "absent"
	AttendanceOnLeave AttendanceStatus = "on-leave"
	AttendanceHalfDay AttendanceStatus = "half-day"
)

// AttendanceRecord is one employee-day of recorded attendance.
type AttendanceRecord struct {
	EmployeeID  EmployeeID
	Date        time.Time
	HoursWorked decimal.Decimal
	Status      AttendanceStatus
	ClockIn     *time.Time
	ClockOut    *time.Time
}

// AttendanceSource looks up the single attendance record for an employee on
// a calendar day. Returns (nil, nil) when no record exists for that day.
type AttendanceSource interface {
	FindOne(ctx context.Context, employeeID EmployeeID, dayStart, dayEnd time.Time) (*AttendanceRecord, error)
}

// =============================================================================
// SHIFT DIRECTORY - Per-employee overtime policy
// =============================================================================

// Shift carries the overtime policy attached to a shift assignment.
// Threshold and MinHoursForFullDay are nil when unset; resolution falls
// through them in order.
type Shift struct {
	ID                 ShiftID
	Name               string
	OvertimeEnabled    bool
	OvertimeThreshold  *decimal.Decimal
	MinHoursForFullDay *decimal.Decimal
}

// ShiftDirectory looks up a shift by ID. Returns (nil, nil) when unknown.
type ShiftDirectory interface {
	FindShift(ctx context.Context, id ShiftID) (*Shift, error)
}

// =============================================================================
// EMPLOYEE DIRECTORY - Shift assignment lookup
// =============================================================================

// Employee is the slice of the directory record this engine needs: the
// shift assignment and the human-readable employee code.
type Employee struct {
	ID      EmployeeID
	Code    string
	Name    string
	ShiftID ShiftID // empty when no shift assigned
}

// EmployeeDirectory looks up an employee by ID. Returns (nil, nil) when
// unknown.
type EmployeeDirectory interface {
	FindEmployee(ctx context.Context, id EmployeeID) (*Employee, error)
}

// =============================================================================
// AUDIT SINK - Append-only activity trail
// =============================================================================

type AuditAction string

const (
	AuditCreated   AuditAction = "timesheet_created"
	AuditUpdated   AuditAction = "timesheet_updated"
	AuditSubmitted AuditAction = "timesheet_submitted"
	AuditApproved  AuditAction = "timesheet_approved"
	AuditRejected  AuditAction = "timesheet_rejected"
	AuditDeleted   AuditAction = "timesheet_deleted"
)

// AuditEvent records who did what to which timesheet.
type AuditEvent struct {
	CompanyID   CompanyID
	Action      AuditAction
	TimesheetID TimesheetID
	EmployeeID  EmployeeID
	ActorID     string
	ActorRole   Role
	Detail      map[string]any
	At          time.Time
}

// AuditSink receives append-only activity records. Fire-and-forget: errors
// are logged by the engine and never propagate.
type AuditSink interface {
	Record(ctx context.Context, event AuditEvent) error
}

// NoopAuditSink discards audit events.
type NoopAuditSink struct{}

func (NoopAuditSink) Record(context.Context, AuditEvent) error { return nil }

// =============================================================================
// NOTIFICATION SINK - Push-style UI events
// =============================================================================

// NotificationSink publishes push-style events to interested UIs. An absent
// or unavailable sink is a no-op, not an error.
type NotificationSink interface {
	Publish(ctx context.Context, companyID CompanyID, event string, payload any) error
}

// NoopNotificationSink discards notifications.
type NoopNotificationSink struct{}

func (NoopNotificationSink) Publish(context.Context, CompanyID, string, any) error { return nil }
