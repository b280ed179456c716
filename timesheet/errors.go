/*
errors.go - Centralized error types for the timesheet engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Every rejection carries a stable kind (the sentinel) plus enough payload
  for a caller to render the failure without a second round trip.

ERROR CATEGORIES:
  1. Guard errors - State machine and authorization violations
  2. Validation errors - Reconciliation produced a blocking result
  3. Store errors - Uniqueness and concurrency conflicts

USAGE:
  if errors.Is(err, timesheet.ErrWrongState) {
      // 409 for the API layer
  }
  var vf *timesheet.ValidationFailedError
  if errors.As(err, &vf) {
      render(vf.Result.Discrepancies)
  }

SEE ALSO:
  - workflow.go: Returns these errors from transitions
  - api/handlers.go: Maps them to HTTP statuses
*/
package timesheet

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when a timesheet does not exist or is
	// soft-deleted. Deleted documents are indistinguishable from absent ones.
	ErrNotFound = errors.New("timesheet not found")

	// ErrForbidden is returned when the actor lacks ownership or privilege
	// for the attempted operation.
	ErrForbidden = errors.New("actor not permitted")

	// ErrWrongState is returned on a state machine guard violation, e.g.
	// approving a draft. The caller may retry after the state changes.
	ErrWrongState = errors.New("invalid state for operation")

	// ErrValidationFailed is returned when reconciliation produced a blocking
	// result and the actor is not privileged or did not override.
	ErrValidationFailed = errors.New("validation failed")

	// ErrDuplicateWeek is returned when a non-deleted timesheet already
	// exists for the same (employee, week start).
	ErrDuplicateWeek = errors.New("timesheet already exists for week")

	// ErrMissingReason is returned when a rejection is attempted without a
	// reason string.
	ErrMissingReason = errors.New("rejection reason required")

	// ErrEmptyEntries is returned when submitting a timesheet with no entries.
	ErrEmptyEntries = errors.New("timesheet has no entries")

	// ErrInvalidEntry is returned for an entry outside the week window or
	// outside the 0-24 hour bound.
	ErrInvalidEntry = errors.New("invalid entry")

	// ErrConcurrentModification is returned when a conditional write lost a
	// race; the enclosing unit may be retried from its read step.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrEmployeeNotFound is returned when the employee directory has no
	// record for the referenced employee.
	ErrEmployeeNotFound = errors.New("employee not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationFailedError carries the full reconciliation result so the caller
// can see which rule fired, never a bare boolean.
type ValidationFailedError struct {
	Result *ValidationResult
}

func (e *ValidationFailedError) Error() string {
	return fmt.Sprintf("validation failed: %d warnings, %d discrepancies",
		len(e.Result.Warnings), len(e.Result.Discrepancies))
}

func (e *ValidationFailedError) Unwrap() error { return ErrValidationFailed }

// WrongStateError reports which transition was attempted from which state.
type WrongStateError struct {
	Operation string
	Current   Status
	Expected  []Status
}

func (e *WrongStateError) Error() string {
	return fmt.Sprintf("cannot %s timesheet in status %q (requires %v)",
		e.Operation, e.Current, e.Expected)
}

func (e *WrongStateError) Unwrap() error { return ErrWrongState }

// DuplicateWeekError reports which week already has a timesheet.
type DuplicateWeekError struct {
	EmployeeID EmployeeID
	WeekStart  string
	ExistingID TimesheetID
}

func (e *DuplicateWeekError) Error() string {
	return fmt.Sprintf("timesheet %s already covers week %s for employee %s",
		e.ExistingID, e.WeekStart, e.EmployeeID)
}

func (e *DuplicateWeekError) Unwrap() error { return ErrDuplicateWeek }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed when the enclosing
// unit is re-run from its read step.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsClientError returns true if the error is due to invalid client input or
// a guard violation, as opposed to an internal fault.
func IsClientError(err error) bool {
	return errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrWrongState) ||
		errors.Is(err, ErrValidationFailed) ||
		errors.Is(err, ErrDuplicateWeek) ||
		errors.Is(err, ErrMissingReason) ||
		errors.Is(err, ErrEmptyEntries) ||
		errors.Is(err, ErrInvalidEntry)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrEmployeeNotFound)
}
