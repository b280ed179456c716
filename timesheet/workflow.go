/*
workflow.go - Guarded lifecycle transitions for the timesheet aggregate

PURPOSE:
  Owns the timesheet state machine:

      draft ──▶ submitted ──▶ approved (terminal)
        ▲           │
        │           ▼
        └─────── rejected (re-editable, re-submittable)

  Every transition is gated by the capability surface in actor.go and the
  status guards below. No other code path writes status, entries, or the
  validation snapshot.

TRANSITION GUARDS:
  create   owner or privileged; no non-deleted timesheet for (employee, week);
           reconciliation passes, or the caller is privileged and accepts the
           failing result as returned (no silent override)
  edit     owner/privileged; status editable; reconciliation re-run under the
           same escalation rule
  submit   owner/privileged; entries non-empty; a failing validation snapshot
           gates non-privileged submitters
  approve  privileged only; status submitted; validation valid or an explicit
           override flag, persisted and audited
  reject   privileged only; status submitted; non-empty reason
  delete   owner/privileged; draft only; soft delete

DERIVED DATA:
  Totals, per-entry splits, and the validation snapshot are recomputed on
  every create/update. Nothing derived is inherited from the stored version:
  the shift threshold may have changed since.

SIDE EFFECTS:
  Audit and notification sinks are fire-and-forget. Their failures are
  logged, never propagated, and never roll back the primary write.

SEE ALSO:
  - txn.go: Retry-safe execution of approve/reject
  - reconcile.go, overtime.go: The recompute pipeline
*/
package timesheet

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SERVICE - Orchestrates the timesheet lifecycle
// =============================================================================

// Service drives all timesheet transitions. Construct with NewService.
type Service struct {
	Store      TxStore
	Reconciler *Reconciler
	Resolver   *ThresholdResolver
	Employees  EmployeeDirectory
	Audit      AuditSink
	Notify     NotificationSink

	// Now is injectable for deterministic timestamps in tests.
	Now func() time.Time

	// Retry bounds for the transactional writer (txn.go).
	MaxAttempts  int
	RetryBackoff time.Duration
}

// NewService wires a service with no-op sinks and default retry bounds.
func NewService(store TxStore, reconciler *Reconciler, resolver *ThresholdResolver, employees EmployeeDirectory) *Service {
	return &Service{
		Store:        store,
		Reconciler:   reconciler,
		Resolver:     resolver,
		Employees:    employees,
		Audit:        NoopAuditSink{},
		Notify:       NoopNotificationSink{},
		Now:          time.Now,
		MaxAttempts:  3,
		RetryBackoff: 25 * time.Millisecond,
	}
}

// =============================================================================
// INPUTS
// =============================================================================

// EntryInput is a caller-supplied reported day. Regular/overtime hours are
// never accepted from callers.
type EntryInput struct {
	Date        time.Time
	Hours       decimal.Decimal
	Description string
	Project     string
	Task        string
}

type CreateInput struct {
	// EmployeeID may be empty, meaning the actor's own. A privileged actor
	// may create on behalf of any employee.
	EmployeeID EmployeeID
	WeekStart  time.Time
	Entries    []EntryInput
	Notes      string
}

type UpdateInput struct {
	Entries []EntryInput
	Notes   string
}

type ApproveInput struct {
	Comments           string
	OverrideValidation bool
}

// =============================================================================
// READ OPERATIONS
// =============================================================================

func (s *Service) Get(ctx context.Context, companyID CompanyID, id TimesheetID) (*Timesheet, error) {
	return s.Store.Get(ctx, companyID, id)
}

func (s *Service) List(ctx context.Context, companyID CompanyID, filter ListFilter, page Page) ([]*Timesheet, int, error) {
	return s.Store.List(ctx, companyID, filter, page)
}

func (s *Service) GetStats(ctx context.Context, companyID CompanyID, from, to time.Time) (*Stats, error) {
	return s.Store.Stats(ctx, companyID, from, to)
}

// =============================================================================
// CREATE
// =============================================================================

// Create persists a new draft timesheet with computed totals and a fresh
// validation snapshot. A failing reconciliation blocks non-privileged actors;
// a privileged actor proceeds with the failing snapshot persisted as
// returned.
func (s *Service) Create(ctx context.Context, actor Actor, in CreateInput) (*Timesheet, error) {
	employeeID := in.EmployeeID
	if employeeID == "" {
		employeeID = actor.EmployeeID
	}
	if !actor.CanCreateFor(employeeID) {
		return nil, fmt.Errorf("create for %s: %w", employeeID, ErrForbidden)
	}

	week := WeekOf(in.WeekStart)
	entries, err := s.buildEntries(week, in.Entries)
	if err != nil {
		return nil, err
	}

	// Advisory pre-check for a friendly error; the store's uniqueness
	// constraint is authoritative under concurrent creation.
	if existing, err := s.Store.FindByWeek(ctx, actor.CompanyID, employeeID, week.Start); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, &DuplicateWeekError{EmployeeID: employeeID, WeekStart: week.String(), ExistingID: existing.ID}
	}

	entries = s.Resolver.Annotate(ctx, employeeID, entries)
	validation := s.Reconciler.Reconcile(ctx, employeeID, entries)
	if !validation.IsValid && !actor.CanOverrideValidation() {
		return nil, &ValidationFailedError{Result: validation}
	}

	now := s.now()
	ts := &Timesheet{
		ID:         TimesheetID(NewID("ts")),
		Label:      Label(s.employeeCode(ctx, employeeID), week.Start),
		CompanyID:  actor.CompanyID,
		EmployeeID: employeeID,
		WeekStart:  week.Start,
		WeekEnd:    week.End,
		Entries:    entries,
		Status:     StatusDraft,
		Validation: validation,
		Notes:      in.Notes,
		CreatedAt:  now,
		UpdatedAt:  now,
		UpdatedBy:  actor.ID,
	}
	ts.RecomputeTotals()

	if err := s.Store.Insert(ctx, ts); err != nil {
		return nil, err
	}

	s.audit(ctx, actor, AuditCreated, ts, nil)
	s.notify(ctx, actor.CompanyID, "timesheet:created", ts)
	return ts, nil
}

// =============================================================================
// EDIT
// =============================================================================

// Update replaces entries and notes while the timesheet is editable. All
// derived data is recomputed; the write is conditional on the status
// observed here.
func (s *Service) Update(ctx context.Context, actor Actor, id TimesheetID, in UpdateInput) (*Timesheet, error) {
	ts, err := s.Store.Get(ctx, actor.CompanyID, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanEdit(ts) {
		return nil, fmt.Errorf("update %s: %w", id, ErrForbidden)
	}
	if !ts.Status.Editable() {
		return nil, &WrongStateError{Operation: "update", Current: ts.Status, Expected: []Status{StatusDraft, StatusRejected}}
	}

	entries, err := s.buildEntries(Week{Start: ts.WeekStart, End: ts.WeekEnd}, in.Entries)
	if err != nil {
		return nil, err
	}

	entries = s.Resolver.Annotate(ctx, ts.EmployeeID, entries)
	validation := s.Reconciler.Reconcile(ctx, ts.EmployeeID, entries)
	if !validation.IsValid && !actor.CanOverrideValidation() {
		return nil, &ValidationFailedError{Result: validation}
	}

	observed := ts.Status
	ts.Entries = entries
	ts.Validation = validation
	ts.Notes = in.Notes
	ts.UpdatedAt = s.now()
	ts.UpdatedBy = actor.ID
	ts.RecomputeTotals()

	if err := s.Store.Update(ctx, ts, observed); err != nil {
		return nil, err
	}

	s.audit(ctx, actor, AuditUpdated, ts, nil)
	s.notify(ctx, actor.CompanyID, "timesheet:updated", ts)
	return ts, nil
}

// =============================================================================
// SUBMIT
// =============================================================================

// Submit moves an editable timesheet into the approval queue. Rejected
// timesheets are re-submittable, forming the rework cycle. A failing
// validation snapshot gates non-privileged submitters; the privileged
// override here is implicit (it becomes explicit and audited at approval).
func (s *Service) Submit(ctx context.Context, actor Actor, id TimesheetID) (*Timesheet, error) {
	ts, err := s.Store.Get(ctx, actor.CompanyID, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanEdit(ts) {
		return nil, fmt.Errorf("submit %s: %w", id, ErrForbidden)
	}
	if !ts.Status.Editable() {
		return nil, &WrongStateError{Operation: "submit", Current: ts.Status, Expected: []Status{StatusDraft, StatusRejected}}
	}
	if len(ts.Entries) == 0 {
		return nil, fmt.Errorf("submit %s: %w", id, ErrEmptyEntries)
	}
	if ts.Validation != nil && !ts.Validation.IsValid && !actor.CanOverrideValidation() {
		return nil, &ValidationFailedError{Result: ts.Validation}
	}

	observed := ts.Status
	now := s.now()
	ts.Status = StatusSubmitted
	ts.SubmittedBy = actor.ID
	ts.SubmittedAt = &now
	ts.UpdatedAt = now
	ts.UpdatedBy = actor.ID

	if err := s.Store.Update(ctx, ts, observed); err != nil {
		return nil, err
	}

	s.audit(ctx, actor, AuditSubmitted, ts, nil)
	s.notify(ctx, actor.CompanyID, "timesheet:submitted", ts)
	return ts, nil
}

// =============================================================================
// APPROVE / REJECT - Multi-step transitions under the transactional writer
// =============================================================================

// Approve finalizes a submitted timesheet. Runs as an atomic
// read-validate-write unit with bounded retries; a failing validation
// snapshot requires an explicit, persisted override.
func (s *Service) Approve(ctx context.Context, actor Actor, id TimesheetID, in ApproveInput) (*Timesheet, error) {
	if !actor.CanApprove() {
		return nil, fmt.Errorf("approve %s: %w", id, ErrForbidden)
	}

	var approved *Timesheet
	err := s.runApproval(ctx, func(store Store) error {
		ts, err := store.Get(ctx, actor.CompanyID, id)
		if err != nil {
			return err
		}
		if ts.Status != StatusSubmitted {
			return &WrongStateError{Operation: "approve", Current: ts.Status, Expected: []Status{StatusSubmitted}}
		}
		overridden := false
		if ts.Validation != nil && !ts.Validation.IsValid {
			if !in.OverrideValidation {
				return &ValidationFailedError{Result: ts.Validation}
			}
			overridden = true
		}

		now := s.now()
		ts.Status = StatusApproved
		ts.ApprovedBy = actor.ID
		ts.ApprovedAt = &now
		ts.ApprovalComments = in.Comments
		ts.ValidationOverride = overridden
		ts.UpdatedAt = now
		ts.UpdatedBy = actor.ID

		if err := store.Update(ctx, ts, StatusSubmitted); err != nil {
			return err
		}
		approved = ts
		return nil
	})
	if err != nil {
		return nil, err
	}

	detail := map[string]any{"comments": in.Comments}
	if approved.ValidationOverride {
		detail["validation_override"] = true
	}
	s.audit(ctx, actor, AuditApproved, approved, detail)
	s.notify(ctx, actor.CompanyID, "timesheet:approved", approved)
	return approved, nil
}

// Reject returns a submitted timesheet to the editable rejected state.
// Requires a non-empty reason; runs under the same transactional unit as
// approval.
func (s *Service) Reject(ctx context.Context, actor Actor, id TimesheetID, reason string) (*Timesheet, error) {
	if !actor.CanApprove() {
		return nil, fmt.Errorf("reject %s: %w", id, ErrForbidden)
	}
	if reason == "" {
		return nil, fmt.Errorf("reject %s: %w", id, ErrMissingReason)
	}

	var rejected *Timesheet
	err := s.runApproval(ctx, func(store Store) error {
		ts, err := store.Get(ctx, actor.CompanyID, id)
		if err != nil {
			return err
		}
		if ts.Status != StatusSubmitted {
			return &WrongStateError{Operation: "reject", Current: ts.Status, Expected: []Status{StatusSubmitted}}
		}

		now := s.now()
		ts.Status = StatusRejected
		ts.RejectedBy = actor.ID
		ts.RejectedAt = &now
		ts.RejectionReason = reason
		ts.UpdatedAt = now
		ts.UpdatedBy = actor.ID

		if err := store.Update(ctx, ts, StatusSubmitted); err != nil {
			return err
		}
		rejected = ts
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit(ctx, actor, AuditRejected, rejected, map[string]any{"reason": reason})
	s.notify(ctx, actor.CompanyID, "timesheet:rejected", rejected)
	return rejected, nil
}

// =============================================================================
// DELETE - Soft delete, draft only
// =============================================================================

// Delete soft-deletes a draft timesheet. The document is excluded from all
// subsequent reads; there is no hard delete.
func (s *Service) Delete(ctx context.Context, actor Actor, id TimesheetID) error {
	ts, err := s.Store.Get(ctx, actor.CompanyID, id)
	if err != nil {
		return err
	}
	if !actor.CanEdit(ts) {
		return fmt.Errorf("delete %s: %w", id, ErrForbidden)
	}
	if ts.Status != StatusDraft {
		return &WrongStateError{Operation: "delete", Current: ts.Status, Expected: []Status{StatusDraft}}
	}

	now := s.now()
	ts.IsDeleted = true
	ts.DeletedAt = &now
	ts.DeletedBy = actor.ID
	ts.UpdatedAt = now
	ts.UpdatedBy = actor.ID

	if err := s.Store.Update(ctx, ts, StatusDraft); err != nil {
		return err
	}

	s.audit(ctx, actor, AuditDeleted, ts, nil)
	s.notify(ctx, actor.CompanyID, "timesheet:deleted", ts)
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

var maxEntryHours = decimal.NewFromInt(24)

// buildEntries validates caller-supplied entries against the week window and
// the 0-24h bound, and normalizes dates to day boundaries.
func (s *Service) buildEntries(week Week, inputs []EntryInput) ([]Entry, error) {
	entries := make([]Entry, 0, len(inputs))
	for _, in := range inputs {
		if in.Hours.IsNegative() || in.Hours.GreaterThan(maxEntryHours) {
			return nil, fmt.Errorf("entry %s: hours must be between 0 and 24, got %s: %w",
				DayStart(in.Date).Format("2006-01-02"), in.Hours, ErrInvalidEntry)
		}
		if !week.Contains(in.Date) {
			return nil, fmt.Errorf("entry %s: outside week starting %s: %w",
				DayStart(in.Date).Format("2006-01-02"), week, ErrInvalidEntry)
		}
		entries = append(entries, Entry{
			Date:        DayStart(in.Date),
			Hours:       in.Hours,
			Description: in.Description,
			Project:     in.Project,
			Task:        in.Task,
		})
	}
	return entries, nil
}

// employeeCode resolves the human employee code for the cosmetic label,
// falling back to the raw ID when the directory has no record.
func (s *Service) employeeCode(ctx context.Context, id EmployeeID) string {
	if s.Employees != nil {
		if emp, err := s.Employees.FindEmployee(ctx, id); err == nil && emp != nil && emp.Code != "" {
			return emp.Code
		}
	}
	return string(id)
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) audit(ctx context.Context, actor Actor, action AuditAction, ts *Timesheet, detail map[string]any) {
	if s.Audit == nil {
		return
	}
	event := AuditEvent{
		CompanyID:   ts.CompanyID,
		Action:      action,
		TimesheetID: ts.ID,
		EmployeeID:  ts.EmployeeID,
		ActorID:     actor.ID,
		ActorRole:   actor.Role,
		Detail:      detail,
		At:          s.now(),
	}
	if err := s.Audit.Record(ctx, event); err != nil {
		log.Printf("audit: record %s for %s failed: %v", action, ts.ID, err)
	}
}

func (s *Service) notify(ctx context.Context, companyID CompanyID, event string, ts *Timesheet) {
	if s.Notify == nil {
		return
	}
	if err := s.Notify.Publish(ctx, companyID, event, ts); err != nil {
		log.Printf("notify: publish %s for %s failed: %v", event, ts.ID, err)
	}
}
