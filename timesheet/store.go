/*
store.go - Persistence interface for timesheet aggregates

PURPOSE:
  Defines the interface between the workflow and the database. The store is
  tenant-scoped: every call carries a company ID and never returns documents
  from another tenant or soft-deleted documents.

KEY INTERFACES:
  Store:   Aggregate persistence with conditional writes
  TxStore: Store plus an atomic multi-step unit for approve/reject

CONDITIONAL WRITES:
  Update is conditional on the status observed at read time. A write that
  finds a different status in the store returns ErrConcurrentModification,
  which the transactional runner treats as retryable. This closes the
  guard-check-to-mutation race for single-document operations.

UNIQUENESS:
  Insert enforces "at most one non-deleted timesheet per (employee, week
  start)" and returns ErrDuplicateWeek on violation. Implementations back
  this with a real uniqueness constraint, not a pre-check.

IMPLEMENTATIONS:
  - store/sqlite: Production SQLite
  - timesheet/store: In-memory for testing

SEE ALSO:
  - workflow.go: The only caller that writes status/entries/validation
  - txn.go: Bounded-retry wrapper over WithTx
*/
package timesheet

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// =============================================================================
// STORE - Tenant-scoped aggregate persistence
// =============================================================================

// ListFilter narrows a timesheet listing. Zero values mean "no filter".
type ListFilter struct {
	EmployeeID EmployeeID
	Status     Status
	From       time.Time // week start lower bound, inclusive
	To         time.Time // week start upper bound, inclusive
}

// Page is offset/limit pagination. Limit <= 0 falls back to the
// implementation default.
type Page struct {
	Offset int
	Limit  int
}

type Store interface {
	// Get returns the timesheet or ErrNotFound. Soft-deleted documents are
	// indistinguishable from absent ones.
	Get(ctx context.Context, companyID CompanyID, id TimesheetID) (*Timesheet, error)

	// FindByWeek returns the non-deleted timesheet covering the employee's
	// week, or (nil, nil) when none exists.
	FindByWeek(ctx context.Context, companyID CompanyID, employeeID EmployeeID, weekStart time.Time) (*Timesheet, error)

	// List returns a page of non-deleted timesheets plus the total count
	// matching the filter.
	List(ctx context.Context, companyID CompanyID, filter ListFilter, page Page) ([]*Timesheet, int, error)

	// Insert persists a new aggregate. Assigns ts.ID when empty. Returns
	// ErrDuplicateWeek when a non-deleted timesheet already covers the week.
	Insert(ctx context.Context, ts *Timesheet) error

	// Update overwrites the aggregate, conditional on the stored status still
	// being expectStatus. Returns ErrConcurrentModification when the
	// condition fails and ErrNotFound when the document is gone.
	Update(ctx context.Context, ts *Timesheet, expectStatus Status) error

	// Stats aggregates counts and hour totals by status for weeks starting
	// within [from, to].
	Stats(ctx context.Context, companyID CompanyID, from, to time.Time) (*Stats, error)
}

// TxStore wraps Store with an atomic unit for multi-step transitions.
// If fn returns an error the unit is rolled back; nothing from an aborted
// attempt is visible outside it.
type TxStore interface {
	Store

	WithTx(ctx context.Context, fn func(Store) error) error
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

// NewID returns a store-grade random identifier. Random, not wall-clock
// derived, so concurrent creation cannot collide.
func NewID(prefix string) string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand never fails on supported platforms
		panic(fmt.Sprintf("id generation: %v", err))
	}
	return prefix + "-" + hex.EncodeToString(b[:])
}

// Label builds the cosmetic human-readable timesheet label. Not an identity:
// uniqueness is the store key's job.
func Label(employeeCode string, weekStart time.Time) string {
	return fmt.Sprintf("TS-%s-%s", employeeCode, weekStart.Format("20060102"))
}
