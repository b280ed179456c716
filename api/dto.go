/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

PRECISION BOUNDARY:
  Hours are decimal.Decimal internally and float64 on the wire. The float
  conversion happens here and only here; nothing downstream of this file
  does arithmetic on floats.

DATE FORMATS:
  Calendar days (week starts, entry dates) use YYYY-MM-DD. Timestamps use
  RFC 3339.

SEE ALSO:
  - handlers.go: Uses these types
  - timesheet/types.go: The internal model these project
*/
package api

import (
	"time"

	"github.com/warp/timesheet-engine/timesheet"
)

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// EntryDTO is one reported day in API responses.
type EntryDTO struct {
	Date          string  `json:"date"`
	Hours         float64 `json:"hours"`
	Description   string  `json:"description,omitempty"`
	Project       string  `json:"project,omitempty"`
	Task          string  `json:"task,omitempty"`
	RegularHours  float64 `json:"regular_hours"`
	OvertimeHours float64 `json:"overtime_hours"`
}

// WarningDTO is a typed reconciliation finding.
type WarningDTO struct {
	Type    string `json:"type"`
	Date    string `json:"date,omitempty"`
	Message string `json:"message"`
}

// DiscrepancyDTO is a reported-vs-attendance mismatch.
type DiscrepancyDTO struct {
	Date             string  `json:"date"`
	ReportedHours    float64 `json:"reported_hours"`
	AttendanceHours  float64 `json:"attendance_hours"`
	Difference       float64 `json:"difference"`
	PercentageDiff   float64 `json:"percentage_diff"`
	ClockIn          *string `json:"clock_in,omitempty"`
	ClockOut         *string `json:"clock_out,omitempty"`
	AttendanceStatus string  `json:"attendance_status,omitempty"`
}

// ValidationDTO is the reconciliation snapshot attached to a timesheet.
type ValidationDTO struct {
	IsValid              bool             `json:"is_valid"`
	Warnings             []WarningDTO     `json:"warnings"`
	Discrepancies        []DiscrepancyDTO `json:"discrepancies"`
	MissingAttendance    []string         `json:"missing_attendance"`
	TotalReportedHours   float64          `json:"total_reported_hours"`
	TotalAttendanceHours float64          `json:"total_attendance_hours"`
	ValidatedAt          string           `json:"validated_at"`
}

// TimesheetDTO represents a timesheet in API responses.
type TimesheetDTO struct {
	ID         string `json:"id"`
	Label      string `json:"label"`
	CompanyID  string `json:"company_id"`
	EmployeeID string `json:"employee_id"`
	WeekStart  string `json:"week_start"`
	WeekEnd    string `json:"week_end"`

	Entries []EntryDTO `json:"entries"`

	TotalHours         float64 `json:"total_hours"`
	TotalRegularHours  float64 `json:"total_regular_hours"`
	TotalOvertimeHours float64 `json:"total_overtime_hours"`

	Status     string         `json:"status"`
	Validation *ValidationDTO `json:"validation,omitempty"`
	Notes      string         `json:"notes,omitempty"`

	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
	UpdatedBy string `json:"updated_by,omitempty"`

	SubmittedBy string  `json:"submitted_by,omitempty"`
	SubmittedAt *string `json:"submitted_at,omitempty"`

	ApprovedBy       string  `json:"approved_by,omitempty"`
	ApprovedAt       *string `json:"approved_at,omitempty"`
	ApprovalComments string  `json:"approval_comments,omitempty"`

	RejectedBy      string  `json:"rejected_by,omitempty"`
	RejectedAt      *string `json:"rejected_at,omitempty"`
	RejectionReason string  `json:"rejection_reason,omitempty"`

	ValidationOverride bool `json:"validation_override,omitempty"`
}

// ListResponse wraps a page of timesheets with the total match count.
type ListResponse struct {
	Timesheets []TimesheetDTO `json:"timesheets"`
	Total      int            `json:"total"`
	Offset     int            `json:"offset"`
	Limit      int            `json:"limit"`
}

// StatsDTO is the aggregate counts/totals response.
type StatsDTO struct {
	Total     int `json:"total"`
	Draft     int `json:"draft"`
	Submitted int `json:"submitted"`
	Approved  int `json:"approved"`
	Rejected  int `json:"rejected"`

	TotalHours         float64 `json:"total_hours"`
	TotalOvertimeHours float64 `json:"total_overtime_hours"`
}

// AuditEventDTO is one activity trail record.
type AuditEventDTO struct {
	Action      string         `json:"action"`
	TimesheetID string         `json:"timesheet_id"`
	EmployeeID  string         `json:"employee_id"`
	ActorID     string         `json:"actor_id"`
	ActorRole   string         `json:"actor_role,omitempty"`
	Detail      map[string]any `json:"detail,omitempty"`
	At          string         `json:"at"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error      string         `json:"error"`
	Details    string         `json:"details,omitempty"`
	Validation *ValidationDTO `json:"validation,omitempty"`
}

// =============================================================================
// REQUEST TYPES
// =============================================================================

// EntryRequest is a caller-supplied reported day. Regular/overtime hours are
// computed server-side and ignored if sent.
type EntryRequest struct {
	Date        string  `json:"date"`
	Hours       float64 `json:"hours"`
	Description string  `json:"description,omitempty"`
	Project     string  `json:"project,omitempty"`
	Task        string  `json:"task,omitempty"`
}

// CreateTimesheetRequest creates a draft for an employee week.
type CreateTimesheetRequest struct {
	EmployeeID string         `json:"employee_id,omitempty"`
	WeekStart  string         `json:"week_start"`
	Entries    []EntryRequest `json:"entries"`
	Notes      string         `json:"notes,omitempty"`
}

// UpdateTimesheetRequest replaces entries and notes on an editable timesheet.
type UpdateTimesheetRequest struct {
	Entries []EntryRequest `json:"entries"`
	Notes   string         `json:"notes,omitempty"`
}

// ApproveRequest finalizes a submitted timesheet.
type ApproveRequest struct {
	Comments           string `json:"comments,omitempty"`
	OverrideValidation bool   `json:"override_validation,omitempty"`
}

// RejectRequest returns a submitted timesheet for rework.
type RejectRequest struct {
	Reason string `json:"reason"`
}

// AttendanceRequest seeds one employee-day of attendance.
type AttendanceRequest struct {
	EmployeeID  string  `json:"employee_id"`
	Date        string  `json:"date"`
	HoursWorked float64 `json:"hours_worked"`
	Status      string  `json:"status"`
	ClockIn     *string `json:"clock_in,omitempty"`
	ClockOut    *string `json:"clock_out,omitempty"`
}

// ShiftRequest seeds a shift definition.
type ShiftRequest struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name"`
	OvertimeEnabled    bool     `json:"overtime_enabled"`
	OvertimeThreshold  *float64 `json:"overtime_threshold,omitempty"`
	MinHoursForFullDay *float64 `json:"min_hours_full_day,omitempty"`
}

// EmployeeRequest seeds an employee directory record.
type EmployeeRequest struct {
	ID      string `json:"id"`
	Code    string `json:"code"`
	Name    string `json:"name"`
	ShiftID string `json:"shift_id,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

const dayFormat = "2006-01-02"

func toTimesheetDTO(ts *timesheet.Timesheet) TimesheetDTO {
	entries := make([]EntryDTO, len(ts.Entries))
	for i, e := range ts.Entries {
		entries[i] = EntryDTO{
			Date:          e.Date.Format(dayFormat),
			Hours:         e.Hours.InexactFloat64(),
			Description:   e.Description,
			Project:       e.Project,
			Task:          e.Task,
			RegularHours:  e.RegularHours.InexactFloat64(),
			OvertimeHours: e.OvertimeHours.InexactFloat64(),
		}
	}

	return TimesheetDTO{
		ID:         string(ts.ID),
		Label:      ts.Label,
		CompanyID:  string(ts.CompanyID),
		EmployeeID: string(ts.EmployeeID),
		WeekStart:  ts.WeekStart.Format(dayFormat),
		WeekEnd:    ts.WeekEnd.Format(dayFormat),

		Entries: entries,

		TotalHours:         ts.TotalHours.InexactFloat64(),
		TotalRegularHours:  ts.TotalRegularHours.InexactFloat64(),
		TotalOvertimeHours: ts.TotalOvertimeHours.InexactFloat64(),

		Status:     string(ts.Status),
		Validation: toValidationDTO(ts.Validation),
		Notes:      ts.Notes,

		CreatedAt: ts.CreatedAt.Format(time.RFC3339),
		UpdatedAt: ts.UpdatedAt.Format(time.RFC3339),
		UpdatedBy: ts.UpdatedBy,

		SubmittedBy: ts.SubmittedBy,
		SubmittedAt: timePtr(ts.SubmittedAt),

		ApprovedBy:       ts.ApprovedBy,
		ApprovedAt:       timePtr(ts.ApprovedAt),
		ApprovalComments: ts.ApprovalComments,

		RejectedBy:      ts.RejectedBy,
		RejectedAt:      timePtr(ts.RejectedAt),
		RejectionReason: ts.RejectionReason,

		ValidationOverride: ts.ValidationOverride,
	}
}

func toValidationDTO(v *timesheet.ValidationResult) *ValidationDTO {
	if v == nil {
		return nil
	}

	warnings := make([]WarningDTO, len(v.Warnings))
	for i, w := range v.Warnings {
		dto := WarningDTO{Type: string(w.Type), Message: w.Message}
		if !w.Date.IsZero() {
			dto.Date = w.Date.Format(dayFormat)
		}
		warnings[i] = dto
	}

	discrepancies := make([]DiscrepancyDTO, len(v.Discrepancies))
	for i, d := range v.Discrepancies {
		discrepancies[i] = DiscrepancyDTO{
			Date:             d.Date.Format(dayFormat),
			ReportedHours:    d.ReportedHours.InexactFloat64(),
			AttendanceHours:  d.AttendanceHours.InexactFloat64(),
			Difference:       d.Difference.InexactFloat64(),
			PercentageDiff:   d.PercentageDiff.InexactFloat64(),
			ClockIn:          clockPtr(d.ClockIn),
			ClockOut:         clockPtr(d.ClockOut),
			AttendanceStatus: d.AttendanceStatus,
		}
	}

	missing := make([]string, len(v.MissingAttendance))
	for i, d := range v.MissingAttendance {
		missing[i] = d.Format(dayFormat)
	}

	return &ValidationDTO{
		IsValid:              v.IsValid,
		Warnings:             warnings,
		Discrepancies:        discrepancies,
		MissingAttendance:    missing,
		TotalReportedHours:   v.TotalReportedHours.InexactFloat64(),
		TotalAttendanceHours: v.TotalAttendanceHours.InexactFloat64(),
		ValidatedAt:          v.ValidatedAt.Format(time.RFC3339),
	}
}

func toAuditEventDTO(e timesheet.AuditEvent) AuditEventDTO {
	return AuditEventDTO{
		Action:      string(e.Action),
		TimesheetID: string(e.TimesheetID),
		EmployeeID:  string(e.EmployeeID),
		ActorID:     e.ActorID,
		ActorRole:   string(e.ActorRole),
		Detail:      e.Detail,
		At:          e.At.Format(time.RFC3339),
	}
}

func timePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}

func clockPtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format("15:04")
	return &s
}
