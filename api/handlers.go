/*
handlers.go - HTTP API handlers for the timesheet engine

PURPOSE:
  Exposes the timesheet reconciliation and approval engine via REST API.
  Handles HTTP request/response, JSON serialization, and delegates to the
  workflow service.

ENDPOINTS:
  Timesheets:
    GET    /api/timesheets               List (filter by employee/status/range)
    POST   /api/timesheets               Create draft for a week
    GET    /api/timesheets/stats         Aggregate counts/totals
    GET    /api/timesheets/{id}          Get one timesheet
    PUT    /api/timesheets/{id}          Replace entries/notes
    DELETE /api/timesheets/{id}          Soft delete (draft only)
    POST   /api/timesheets/{id}/submit   draft/rejected -> submitted
    POST   /api/timesheets/{id}/approve  submitted -> approved
    POST   /api/timesheets/{id}/reject   submitted -> rejected
    GET    /api/timesheets/{id}/audit    Activity trail

  Admin (seed data for the collaborator tables):
    POST   /api/admin/attendance         Upsert an attendance record
    POST   /api/admin/shifts             Upsert a shift
    POST   /api/admin/employees          Upsert an employee

IDENTITY:
  Authentication lives at the gateway. This layer trusts the identity
  headers it forwards:
    X-Actor-Id      required, the authenticated account
    X-Actor-Role    employee|manager|hr|admin|super_tenant (default employee)
    X-Employee-Id   the actor's own employee record, if any
    X-Company-Id    tenant scope, required

ERROR HANDLING:
  Domain errors map to HTTP statuses by kind:
  - 400: Validation failures, malformed input, missing reason, empty entries
  - 401: Missing identity headers
  - 403: Ownership/privilege violations
  - 404: Unknown or soft-deleted timesheet
  - 409: State machine guard, duplicate week, lost write race
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - timesheet/errors.go: The error kinds mapped here
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/warp/timesheet-engine/timesheet"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// AdminStore seeds the collaborator tables and reads the audit trail. The
// SQLite store satisfies it; deployments with external attendance/directory
// systems can leave it nil, which disables the admin routes with 404s at
// routing time.
type AdminStore interface {
	SaveAttendance(ctx context.Context, r timesheet.AttendanceRecord) error
	SaveShift(ctx context.Context, shift timesheet.Shift) error
	SaveEmployee(ctx context.Context, emp timesheet.Employee) error
	AuditTrail(ctx context.Context, companyID timesheet.CompanyID, id timesheet.TimesheetID) ([]timesheet.AuditEvent, error)
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *timesheet.Service
	Admin   AdminStore
}

// NewHandler creates a new handler around the workflow service.
func NewHandler(service *timesheet.Service, admin AdminStore) *Handler {
	return &Handler{Service: service, Admin: admin}
}

// =============================================================================
// IDENTITY
// =============================================================================

// actorFrom reads the trusted identity headers. Returns false when the
// required headers are absent, in which case a 401 was already written.
func actorFrom(w http.ResponseWriter, r *http.Request) (timesheet.Actor, bool) {
	actor := timesheet.Actor{
		ID:         r.Header.Get("X-Actor-Id"),
		EmployeeID: timesheet.EmployeeID(r.Header.Get("X-Employee-Id")),
		CompanyID:  timesheet.CompanyID(r.Header.Get("X-Company-Id")),
		Role:       timesheet.Role(r.Header.Get("X-Actor-Role")),
	}
	if actor.Role == "" {
		actor.Role = timesheet.RoleEmployee
	}
	if actor.ID == "" || actor.CompanyID == "" {
		writeError(w, http.StatusUnauthorized, "Missing identity headers", nil)
		return timesheet.Actor{}, false
	}
	return actor, true
}

// =============================================================================
// TIMESHEET HANDLERS
// =============================================================================

// ListTimesheets returns a page of timesheets matching the query filters.
func (h *Handler) ListTimesheets(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	filter := timesheet.ListFilter{
		EmployeeID: timesheet.EmployeeID(r.URL.Query().Get("employee_id")),
		Status:     timesheet.Status(r.URL.Query().Get("status")),
	}
	// Non-privileged actors only ever see their own timesheets.
	if !actor.Privileged() {
		filter.EmployeeID = actor.EmployeeID
	}

	var err error
	if filter.From, err = parseDay(r.URL.Query().Get("from")); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid from date (use YYYY-MM-DD)", err)
		return
	}
	if filter.To, err = parseDay(r.URL.Query().Get("to")); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid to date (use YYYY-MM-DD)", err)
		return
	}

	page := timesheet.Page{
		Offset: parseInt(r.URL.Query().Get("offset"), 0),
		Limit:  parseInt(r.URL.Query().Get("limit"), 0),
	}

	sheets, total, err := h.Service.List(r.Context(), actor.CompanyID, filter, page)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	dtos := make([]TimesheetDTO, len(sheets))
	for i, ts := range sheets {
		dtos[i] = toTimesheetDTO(ts)
	}
	writeJSON(w, http.StatusOK, ListResponse{
		Timesheets: dtos,
		Total:      total,
		Offset:     page.Offset,
		Limit:      page.Limit,
	})
}

// GetTimesheet returns a single timesheet.
func (h *Handler) GetTimesheet(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	id := timesheet.TimesheetID(chi.URLParam(r, "id"))

	ts, err := h.Service.Get(r.Context(), actor.CompanyID, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !actor.Privileged() && !actor.Owns(ts) {
		// Indistinguishable from absent, so IDs cannot be probed across
		// employees.
		writeError(w, http.StatusNotFound, "Timesheet not found", nil)
		return
	}

	writeJSON(w, http.StatusOK, toTimesheetDTO(ts))
}

// CreateTimesheet creates a draft timesheet for an employee week.
func (h *Handler) CreateTimesheet(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	var req CreateTimesheetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	weekStart, err := time.Parse(dayFormat, req.WeekStart)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid week_start format (use YYYY-MM-DD)", err)
		return
	}
	entries, err := toEntryInputs(req.Entries)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid entries", err)
		return
	}

	ts, err := h.Service.Create(r.Context(), actor, timesheet.CreateInput{
		EmployeeID: timesheet.EmployeeID(req.EmployeeID),
		WeekStart:  weekStart,
		Entries:    entries,
		Notes:      req.Notes,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toTimesheetDTO(ts))
}

// UpdateTimesheet replaces entries and notes on an editable timesheet.
func (h *Handler) UpdateTimesheet(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	id := timesheet.TimesheetID(chi.URLParam(r, "id"))

	var req UpdateTimesheetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	entries, err := toEntryInputs(req.Entries)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid entries", err)
		return
	}

	ts, err := h.Service.Update(r.Context(), actor, id, timesheet.UpdateInput{
		Entries: entries,
		Notes:   req.Notes,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toTimesheetDTO(ts))
}

// DeleteTimesheet soft-deletes a draft timesheet.
func (h *Handler) DeleteTimesheet(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	id := timesheet.TimesheetID(chi.URLParam(r, "id"))

	if err := h.Service.Delete(r.Context(), actor, id); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SubmitTimesheet moves a timesheet into the approval queue.
func (h *Handler) SubmitTimesheet(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	id := timesheet.TimesheetID(chi.URLParam(r, "id"))

	ts, err := h.Service.Submit(r.Context(), actor, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toTimesheetDTO(ts))
}

// ApproveTimesheet finalizes a submitted timesheet.
func (h *Handler) ApproveTimesheet(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	id := timesheet.TimesheetID(chi.URLParam(r, "id"))

	var req ApproveRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}

	ts, err := h.Service.Approve(r.Context(), actor, id, timesheet.ApproveInput{
		Comments:           req.Comments,
		OverrideValidation: req.OverrideValidation,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toTimesheetDTO(ts))
}

// RejectTimesheet returns a submitted timesheet for rework.
func (h *Handler) RejectTimesheet(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	id := timesheet.TimesheetID(chi.URLParam(r, "id"))

	var req RejectRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}

	ts, err := h.Service.Reject(r.Context(), actor, id, req.Reason)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toTimesheetDTO(ts))
}

// GetStats returns aggregate counts and hour totals by status.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	from, err := parseDay(r.URL.Query().Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid from date (use YYYY-MM-DD)", err)
		return
	}
	to, err := parseDay(r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid to date (use YYYY-MM-DD)", err)
		return
	}

	stats, err := h.Service.GetStats(r.Context(), actor.CompanyID, from, to)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, StatsDTO{
		Total:              stats.Total,
		Draft:              stats.Draft,
		Submitted:          stats.Submitted,
		Approved:           stats.Approved,
		Rejected:           stats.Rejected,
		TotalHours:         stats.TotalHours.InexactFloat64(),
		TotalOvertimeHours: stats.TotalOvertimeHours.InexactFloat64(),
	})
}

// GetAuditTrail returns the activity records for a timesheet, oldest first.
func (h *Handler) GetAuditTrail(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	if !actor.Privileged() {
		writeError(w, http.StatusForbidden, "Audit trail requires a privileged role", nil)
		return
	}
	id := timesheet.TimesheetID(chi.URLParam(r, "id"))

	events, err := h.Admin.AuditTrail(r.Context(), actor.CompanyID, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read audit trail", err)
		return
	}

	dtos := make([]AuditEventDTO, len(events))
	for i, e := range events {
		dtos[i] = toAuditEventDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// ADMIN HANDLERS - Seed data for the collaborator tables
// =============================================================================

// PutAttendance upserts one employee-day of attendance.
func (h *Handler) PutAttendance(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	if !actor.Privileged() {
		writeError(w, http.StatusForbidden, "Seeding requires a privileged role", nil)
		return
	}

	var req AttendanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	date, err := time.Parse(dayFormat, req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}

	record := timesheet.AttendanceRecord{
		EmployeeID:  timesheet.EmployeeID(req.EmployeeID),
		Date:        date,
		HoursWorked: decimal.NewFromFloat(req.HoursWorked),
		Status:      timesheet.AttendanceStatus(req.Status),
		ClockIn:     parseClock(req.ClockIn, date),
		ClockOut:    parseClock(req.ClockOut, date),
	}
	if record.Status == "" {
		record.Status = timesheet.AttendancePresent
	}

	if err := h.Admin.SaveAttendance(r.Context(), record); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save attendance", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PutShift upserts a shift definition.
func (h *Handler) PutShift(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	if !actor.Privileged() {
		writeError(w, http.StatusForbidden, "Seeding requires a privileged role", nil)
		return
	}

	var req ShiftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "Shift id is required", nil)
		return
	}

	shift := timesheet.Shift{
		ID:              timesheet.ShiftID(req.ID),
		Name:            req.Name,
		OvertimeEnabled: req.OvertimeEnabled,
	}
	if req.OvertimeThreshold != nil {
		d := decimal.NewFromFloat(*req.OvertimeThreshold)
		shift.OvertimeThreshold = &d
	}
	if req.MinHoursForFullDay != nil {
		d := decimal.NewFromFloat(*req.MinHoursForFullDay)
		shift.MinHoursForFullDay = &d
	}

	if err := h.Admin.SaveShift(r.Context(), shift); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save shift", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PutEmployee upserts an employee directory record.
func (h *Handler) PutEmployee(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	if !actor.Privileged() {
		writeError(w, http.StatusForbidden, "Seeding requires a privileged role", nil)
		return
	}

	var req EmployeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "Employee id is required", nil)
		return
	}

	emp := timesheet.Employee{
		ID:      timesheet.EmployeeID(req.ID),
		Code:    req.Code,
		Name:    req.Name,
		ShiftID: timesheet.ShiftID(req.ShiftID),
	}
	if emp.Code == "" {
		emp.Code = req.ID
	}

	if err := h.Admin.SaveEmployee(r.Context(), emp); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save employee", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// HELPERS
// =============================================================================

func toEntryInputs(reqs []EntryRequest) ([]timesheet.EntryInput, error) {
	inputs := make([]timesheet.EntryInput, len(reqs))
	for i, e := range reqs {
		date, err := time.Parse(dayFormat, e.Date)
		if err != nil {
			return nil, err
		}
		inputs[i] = timesheet.EntryInput{
			Date:        date,
			Hours:       decimal.NewFromFloat(e.Hours),
			Description: e.Description,
			Project:     e.Project,
			Task:        e.Task,
		}
	}
	return inputs, nil
}

func parseDay(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(dayFormat, s)
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return def
	}
	return n
}

// parseClock combines an HH:MM string with a calendar day.
func parseClock(s *string, day time.Time) *time.Time {
	if s == nil || *s == "" {
		return nil
	}
	t, err := time.Parse("15:04", *s)
	if err != nil {
		return nil
	}
	at := time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, time.UTC)
	return &at
}

// writeServiceError maps a domain error to an HTTP status by kind.
func writeServiceError(w http.ResponseWriter, err error) {
	var vf *timesheet.ValidationFailedError
	if errors.As(err, &vf) {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:      "Validation failed",
			Details:    err.Error(),
			Validation: toValidationDTO(vf.Result),
		})
		return
	}

	switch {
	case timesheet.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Timesheet not found", err)
	case errors.Is(err, timesheet.ErrForbidden):
		writeError(w, http.StatusForbidden, "Operation not permitted", err)
	case errors.Is(err, timesheet.ErrWrongState):
		writeError(w, http.StatusConflict, "Invalid state for operation", err)
	case errors.Is(err, timesheet.ErrDuplicateWeek):
		writeError(w, http.StatusConflict, "Timesheet already exists for week", err)
	case errors.Is(err, timesheet.ErrConcurrentModification):
		writeError(w, http.StatusConflict, "Concurrent modification, retry", err)
	case errors.Is(err, timesheet.ErrMissingReason),
		errors.Is(err, timesheet.ErrEmptyEntries):
		writeError(w, http.StatusBadRequest, "Invalid request", err)
	case timesheet.IsClientError(err):
		writeError(w, http.StatusBadRequest, "Invalid request", err)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
