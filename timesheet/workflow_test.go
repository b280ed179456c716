package timesheet_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/timesheet-engine/timesheet"
	memstore "github.com/warp/timesheet-engine/timesheet/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var (
	employee = timesheet.Actor{ID: "u-emp", EmployeeID: "emp-1", CompanyID: "acme", Role: timesheet.RoleEmployee}
	coworker = timesheet.Actor{ID: "u-emp2", EmployeeID: "emp-2", CompanyID: "acme", Role: timesheet.RoleEmployee}
	manager  = timesheet.Actor{ID: "u-mgr", CompanyID: "acme", Role: timesheet.RoleManager}
)

type testEnv struct {
	service    *timesheet.Service
	store      *memstore.Memory
	attendance *memstore.MemoryAttendance
	directory  *memstore.MemoryDirectory
	audit      *capturedAudit
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := memstore.NewMemory()
	attendance := memstore.NewMemoryAttendance()
	directory := memstore.NewMemoryDirectory()
	directory.PutEmployee(timesheet.Employee{ID: "emp-1", Code: "E001", Name: "Pat"})

	service := timesheet.NewService(
		store,
		timesheet.NewReconciler(attendance),
		timesheet.NewThresholdResolver(directory, directory),
		directory,
	)
	audit := &capturedAudit{}
	service.Audit = audit
	service.RetryBackoff = time.Millisecond

	return &testEnv{service: service, store: store, attendance: attendance, directory: directory, audit: audit}
}

// fullWeek seeds matching attendance and returns entry inputs for a clean
// 5-day, 8h/day week.
func (e *testEnv) fullWeek(employeeID string) []timesheet.EntryInput {
	inputs := make([]timesheet.EntryInput, 0, 5)
	for i := 0; i < 5; i++ {
		day := monday.AddDate(0, 0, i)
		e.attendance.Put(present(employeeID, day, "8"))
		inputs = append(inputs, timesheet.EntryInput{Date: day, Hours: dec("8")})
	}
	return inputs
}

func (e *testEnv) createDraft(t *testing.T, actor timesheet.Actor) *timesheet.Timesheet {
	t.Helper()
	ts, err := e.service.Create(context.Background(), actor, timesheet.CreateInput{
		WeekStart: monday,
		Entries:   e.fullWeek(string(actor.EmployeeID)),
	})
	require.NoError(t, err)
	return ts
}

// capturedAudit records events for assertions.
type capturedAudit struct {
	mu     sync.Mutex
	events []timesheet.AuditEvent
}

func (c *capturedAudit) Record(_ context.Context, event timesheet.AuditEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func (c *capturedAudit) last() (timesheet.AuditEvent, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.events) == 0 {
		return timesheet.AuditEvent{}, false
	}
	return c.events[len(c.events)-1], true
}

// =============================================================================
// CREATE TESTS
// =============================================================================

func TestCreate_Draft(t *testing.T) {
	// GIVEN: A clean 40h week with matching attendance
	// WHEN: The employee creates a timesheet
	// THEN: Draft persisted with computed totals, splits, and a valid snapshot

	env := newTestEnv(t)
	ts := env.createDraft(t, employee)

	assert.Equal(t, timesheet.StatusDraft, ts.Status)
	assert.Equal(t, "TS-E001-20250602", ts.Label)
	assert.True(t, ts.TotalHours.Equal(dec("40")))
	assert.True(t, ts.TotalRegularHours.Equal(dec("40")))
	assert.True(t, ts.TotalOvertimeHours.IsZero())
	require.NotNil(t, ts.Validation)
	assert.True(t, ts.Validation.IsValid)

	event, ok := env.audit.last()
	require.True(t, ok)
	assert.Equal(t, timesheet.AuditCreated, event.Action)
	assert.Equal(t, ts.ID, event.TimesheetID)
}

func TestCreate_DuplicateWeek_Conflict(t *testing.T) {
	// GIVEN: A timesheet already covers the week
	// WHEN: Creating another for the same employee and week
	// THEN: DuplicateWeekError naming the existing document

	env := newTestEnv(t)
	first := env.createDraft(t, employee)

	_, err := env.service.Create(context.Background(), employee, timesheet.CreateInput{
		WeekStart: monday,
		Entries:   env.fullWeek("emp-1"),
	})

	var dup *timesheet.DuplicateWeekError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, first.ID, dup.ExistingID)
	assert.ErrorIs(t, err, timesheet.ErrDuplicateWeek)
}

func TestCreate_AfterSoftDelete_Succeeds(t *testing.T) {
	// GIVEN: A draft for the week was soft-deleted
	// WHEN: Creating a new timesheet for the same week
	// THEN: Succeeds; deleted documents do not hold the week

	env := newTestEnv(t)
	first := env.createDraft(t, employee)
	require.NoError(t, env.service.Delete(context.Background(), employee, first.ID))

	second, err := env.service.Create(context.Background(), employee, timesheet.CreateInput{
		WeekStart: monday,
		Entries:   env.fullWeek("emp-1"),
	})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestCreate_ForOtherEmployee_Forbidden(t *testing.T) {
	// GIVEN: A non-privileged employee
	// WHEN: Creating a timesheet on behalf of a coworker
	// THEN: Forbidden

	env := newTestEnv(t)

	_, err := env.service.Create(context.Background(), employee, timesheet.CreateInput{
		EmployeeID: "emp-2",
		WeekStart:  monday,
		Entries:    env.fullWeek("emp-2"),
	})
	assert.ErrorIs(t, err, timesheet.ErrForbidden)
}

func TestCreate_ManagerForEmployee_Succeeds(t *testing.T) {
	// GIVEN: A manager
	// WHEN: Creating a timesheet on behalf of an employee
	// THEN: Succeeds and the timesheet belongs to the employee

	env := newTestEnv(t)

	ts, err := env.service.Create(context.Background(), manager, timesheet.CreateInput{
		EmployeeID: "emp-1",
		WeekStart:  monday,
		Entries:    env.fullWeek("emp-1"),
	})
	require.NoError(t, err)
	assert.Equal(t, timesheet.EmployeeID("emp-1"), ts.EmployeeID)
	assert.Equal(t, "u-mgr", ts.UpdatedBy)
}

func TestCreate_BlockingDiscrepancy_GatesEmployee(t *testing.T) {
	// GIVEN: Attendance recorded 4h but the employee reports 8h
	// WHEN: The employee creates the timesheet
	// THEN: ValidationFailedError carrying the full result

	env := newTestEnv(t)
	env.attendance.Put(present("emp-1", monday, "4"))

	_, err := env.service.Create(context.Background(), employee, timesheet.CreateInput{
		WeekStart: monday,
		Entries:   []timesheet.EntryInput{{Date: monday, Hours: dec("8")}},
	})

	var vf *timesheet.ValidationFailedError
	require.ErrorAs(t, err, &vf)
	assert.False(t, vf.Result.IsValid)
	assert.NotEmpty(t, vf.Result.Discrepancies)
}

func TestCreate_BlockingDiscrepancy_ManagerProceeds(t *testing.T) {
	// GIVEN: The same blocking discrepancy
	// WHEN: A manager creates the timesheet
	// THEN: Persisted with the failing snapshot intact, not silently cleaned

	env := newTestEnv(t)
	env.attendance.Put(present("emp-1", monday, "4"))

	ts, err := env.service.Create(context.Background(), manager, timesheet.CreateInput{
		EmployeeID: "emp-1",
		WeekStart:  monday,
		Entries:    []timesheet.EntryInput{{Date: monday, Hours: dec("8")}},
	})
	require.NoError(t, err)
	require.NotNil(t, ts.Validation)
	assert.False(t, ts.Validation.IsValid)
}

func TestCreate_EntryOutsideWeek_Rejected(t *testing.T) {
	// GIVEN: An entry dated the Monday after the timesheet week
	// WHEN: Creating
	// THEN: Rejected as an invalid entry

	env := newTestEnv(t)

	_, err := env.service.Create(context.Background(), employee, timesheet.CreateInput{
		WeekStart: monday,
		Entries:   []timesheet.EntryInput{{Date: monday.AddDate(0, 0, 7), Hours: dec("8")}},
	})
	assert.ErrorIs(t, err, timesheet.ErrInvalidEntry)
}

func TestCreate_HoursOutOfBounds_Rejected(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.service.Create(context.Background(), employee, timesheet.CreateInput{
		WeekStart: monday,
		Entries:   []timesheet.EntryInput{{Date: monday, Hours: dec("25")}},
	})
	assert.ErrorIs(t, err, timesheet.ErrInvalidEntry)
}

// =============================================================================
// UPDATE TESTS
// =============================================================================

func TestUpdate_RecomputesDerivedData(t *testing.T) {
	// GIVEN: A 40h draft
	// WHEN: Replacing entries with a 10h single day (attendance 10h)
	// THEN: Totals, split, and snapshot all reflect the new entries only

	env := newTestEnv(t)
	ts := env.createDraft(t, employee)

	env.attendance.Put(present("emp-1", monday, "10"))
	updated, err := env.service.Update(context.Background(), employee, ts.ID, timesheet.UpdateInput{
		Entries: []timesheet.EntryInput{{Date: monday, Hours: dec("10")}},
	})
	require.NoError(t, err)

	assert.True(t, updated.TotalHours.Equal(dec("10")))
	assert.True(t, updated.TotalRegularHours.Equal(dec("8")))
	assert.True(t, updated.TotalOvertimeHours.Equal(dec("2")))
	assert.True(t, updated.Validation.IsValid)
}

func TestUpdate_Idempotent(t *testing.T) {
	// GIVEN: A draft
	// WHEN: Applying the same update twice
	// THEN: Second application leaves totals and status unchanged

	env := newTestEnv(t)
	ts := env.createDraft(t, employee)
	input := timesheet.UpdateInput{Entries: env.fullWeek("emp-1"), Notes: "week notes"}

	first, err := env.service.Update(context.Background(), employee, ts.ID, input)
	require.NoError(t, err)
	second, err := env.service.Update(context.Background(), employee, ts.ID, input)
	require.NoError(t, err)

	assert.Equal(t, first.Status, second.Status)
	assert.True(t, first.TotalHours.Equal(second.TotalHours))
	assert.Equal(t, first.Notes, second.Notes)
}

func TestUpdate_Submitted_WrongState(t *testing.T) {
	// GIVEN: A submitted timesheet
	// WHEN: The owner tries to edit it
	// THEN: WrongState; the document is unchanged

	env := newTestEnv(t)
	ts := env.createDraft(t, employee)
	_, err := env.service.Submit(context.Background(), employee, ts.ID)
	require.NoError(t, err)

	_, err = env.service.Update(context.Background(), employee, ts.ID, timesheet.UpdateInput{
		Entries: []timesheet.EntryInput{{Date: monday, Hours: dec("1")}},
	})
	assert.ErrorIs(t, err, timesheet.ErrWrongState)

	stored, err := env.service.Get(context.Background(), "acme", ts.ID)
	require.NoError(t, err)
	assert.Equal(t, timesheet.StatusSubmitted, stored.Status)
	assert.True(t, stored.TotalHours.Equal(dec("40")))
}

func TestUpdate_ByCoworker_Forbidden(t *testing.T) {
	env := newTestEnv(t)
	ts := env.createDraft(t, employee)

	_, err := env.service.Update(context.Background(), coworker, ts.ID, timesheet.UpdateInput{
		Entries: []timesheet.EntryInput{{Date: monday, Hours: dec("1")}},
	})
	assert.ErrorIs(t, err, timesheet.ErrForbidden)
}

// =============================================================================
// SUBMIT TESTS
// =============================================================================

func TestSubmit_Draft(t *testing.T) {
	// GIVEN: A valid draft
	// WHEN: The owner submits it
	// THEN: Status submitted with submitter stamps and an audit event

	env := newTestEnv(t)
	ts := env.createDraft(t, employee)

	submitted, err := env.service.Submit(context.Background(), employee, ts.ID)
	require.NoError(t, err)

	assert.Equal(t, timesheet.StatusSubmitted, submitted.Status)
	assert.Equal(t, "u-emp", submitted.SubmittedBy)
	require.NotNil(t, submitted.SubmittedAt)

	event, ok := env.audit.last()
	require.True(t, ok)
	assert.Equal(t, timesheet.AuditSubmitted, event.Action)
}

func TestSubmit_NoEntries_Rejected(t *testing.T) {
	// GIVEN: A draft with no entries
	// WHEN: Submitting
	// THEN: ErrEmptyEntries

	env := newTestEnv(t)
	ts, err := env.service.Create(context.Background(), employee, timesheet.CreateInput{WeekStart: monday})
	require.NoError(t, err)

	_, err = env.service.Submit(context.Background(), employee, ts.ID)
	assert.ErrorIs(t, err, timesheet.ErrEmptyEntries)
}

// =============================================================================
// APPROVE / REJECT TESTS
// =============================================================================

func TestApprove_Draft_WrongState(t *testing.T) {
	// GIVEN: A draft that was never submitted
	// WHEN: A manager approves it
	// THEN: WrongState naming the transition; stored status unchanged

	env := newTestEnv(t)
	ts := env.createDraft(t, employee)

	_, err := env.service.Approve(context.Background(), manager, ts.ID, timesheet.ApproveInput{})

	var ws *timesheet.WrongStateError
	require.ErrorAs(t, err, &ws)
	assert.Equal(t, "approve", ws.Operation)
	assert.Equal(t, timesheet.StatusDraft, ws.Current)

	stored, err := env.service.Get(context.Background(), "acme", ts.ID)
	require.NoError(t, err)
	assert.Equal(t, timesheet.StatusDraft, stored.Status)
}

func TestApprove_ByEmployee_Forbidden(t *testing.T) {
	env := newTestEnv(t)
	ts := env.createDraft(t, employee)
	_, err := env.service.Submit(context.Background(), employee, ts.ID)
	require.NoError(t, err)

	_, err = env.service.Approve(context.Background(), employee, ts.ID, timesheet.ApproveInput{})
	assert.ErrorIs(t, err, timesheet.ErrForbidden)
}

func TestApprove_Submitted(t *testing.T) {
	// GIVEN: A submitted timesheet with a valid snapshot
	// WHEN: A manager approves with comments
	// THEN: Terminal approved state with approver stamps, no override flag

	env := newTestEnv(t)
	ts := env.createDraft(t, employee)
	_, err := env.service.Submit(context.Background(), employee, ts.ID)
	require.NoError(t, err)

	approved, err := env.service.Approve(context.Background(), manager, ts.ID, timesheet.ApproveInput{Comments: "looks right"})
	require.NoError(t, err)

	assert.Equal(t, timesheet.StatusApproved, approved.Status)
	assert.Equal(t, "u-mgr", approved.ApprovedBy)
	assert.Equal(t, "looks right", approved.ApprovalComments)
	assert.False(t, approved.ValidationOverride)
	assert.True(t, approved.Status.Terminal())
}

func TestApprove_FailingValidation_RequiresOverride(t *testing.T) {
	// GIVEN: A submitted timesheet whose snapshot is failing
	// WHEN: Approving without, then with, the override flag
	// THEN: First attempt fails; override approves, persists the flag, and
	//       the audit event records the override

	env := newTestEnv(t)
	env.attendance.Put(present("emp-1", monday, "4"))
	ts, err := env.service.Create(context.Background(), manager, timesheet.CreateInput{
		EmployeeID: "emp-1",
		WeekStart:  monday,
		Entries:    []timesheet.EntryInput{{Date: monday, Hours: dec("8")}},
	})
	require.NoError(t, err)
	_, err = env.service.Submit(context.Background(), manager, ts.ID)
	require.NoError(t, err)

	_, err = env.service.Approve(context.Background(), manager, ts.ID, timesheet.ApproveInput{})
	assert.ErrorIs(t, err, timesheet.ErrValidationFailed)

	approved, err := env.service.Approve(context.Background(), manager, ts.ID, timesheet.ApproveInput{OverrideValidation: true})
	require.NoError(t, err)
	assert.True(t, approved.ValidationOverride)

	event, ok := env.audit.last()
	require.True(t, ok)
	assert.Equal(t, timesheet.AuditApproved, event.Action)
	assert.Equal(t, true, event.Detail["validation_override"])
}

func TestReject_RequiresReason(t *testing.T) {
	env := newTestEnv(t)
	ts := env.createDraft(t, employee)
	_, err := env.service.Submit(context.Background(), employee, ts.ID)
	require.NoError(t, err)

	_, err = env.service.Reject(context.Background(), manager, ts.ID, "")
	assert.ErrorIs(t, err, timesheet.ErrMissingReason)
}

func TestReject_ThenResubmit_Cycle(t *testing.T) {
	// GIVEN: A submitted timesheet
	// WHEN: Rejected, edited by the owner, and submitted again
	// THEN: Each step succeeds; rejected timesheets are re-editable

	env := newTestEnv(t)
	ts := env.createDraft(t, employee)
	_, err := env.service.Submit(context.Background(), employee, ts.ID)
	require.NoError(t, err)

	rejected, err := env.service.Reject(context.Background(), manager, ts.ID, "tuesday looks wrong")
	require.NoError(t, err)
	assert.Equal(t, timesheet.StatusRejected, rejected.Status)
	assert.Equal(t, "tuesday looks wrong", rejected.RejectionReason)

	_, err = env.service.Update(context.Background(), employee, ts.ID, timesheet.UpdateInput{
		Entries: env.fullWeek("emp-1"),
	})
	require.NoError(t, err)

	resubmitted, err := env.service.Submit(context.Background(), employee, ts.ID)
	require.NoError(t, err)
	assert.Equal(t, timesheet.StatusSubmitted, resubmitted.Status)
}

// =============================================================================
// DELETE TESTS
// =============================================================================

func TestDelete_Draft_SoftDeletes(t *testing.T) {
	// GIVEN: A draft
	// WHEN: The owner deletes it
	// THEN: Subsequent reads see not-found

	env := newTestEnv(t)
	ts := env.createDraft(t, employee)

	require.NoError(t, env.service.Delete(context.Background(), employee, ts.ID))

	_, err := env.service.Get(context.Background(), "acme", ts.ID)
	assert.ErrorIs(t, err, timesheet.ErrNotFound)
}

func TestDelete_Submitted_WrongState(t *testing.T) {
	env := newTestEnv(t)
	ts := env.createDraft(t, employee)
	_, err := env.service.Submit(context.Background(), employee, ts.ID)
	require.NoError(t, err)

	err = env.service.Delete(context.Background(), employee, ts.ID)
	assert.ErrorIs(t, err, timesheet.ErrWrongState)
}

// =============================================================================
// RETRY TESTS
// =============================================================================

// flakyTxStore fails WithTx with a transient conflict a set number of times.
type flakyTxStore struct {
	timesheet.TxStore
	failures int
}

func (f *flakyTxStore) WithTx(ctx context.Context, fn func(timesheet.Store) error) error {
	if f.failures > 0 {
		f.failures--
		return timesheet.ErrConcurrentModification
	}
	return f.TxStore.WithTx(ctx, fn)
}

func TestApprove_TransientConflict_Retried(t *testing.T) {
	// GIVEN: The store's transactional unit loses two races before winning
	// WHEN: Approving a submitted timesheet
	// THEN: The bounded retry absorbs the conflicts and the approval lands

	env := newTestEnv(t)
	ts := env.createDraft(t, employee)
	_, err := env.service.Submit(context.Background(), employee, ts.ID)
	require.NoError(t, err)

	env.service.Store = &flakyTxStore{TxStore: env.store, failures: 2}

	approved, err := env.service.Approve(context.Background(), manager, ts.ID, timesheet.ApproveInput{})
	require.NoError(t, err)
	assert.Equal(t, timesheet.StatusApproved, approved.Status)
}

func TestApprove_ConflictStorm_Abandoned(t *testing.T) {
	// GIVEN: Every transactional attempt loses its race
	// WHEN: Approving
	// THEN: The loop abandons after MaxAttempts with the conflict preserved

	env := newTestEnv(t)
	ts := env.createDraft(t, employee)
	_, err := env.service.Submit(context.Background(), employee, ts.ID)
	require.NoError(t, err)

	env.service.Store = &flakyTxStore{TxStore: env.store, failures: 100}

	_, err = env.service.Approve(context.Background(), manager, ts.ID, timesheet.ApproveInput{})
	require.Error(t, err)
	assert.ErrorIs(t, err, timesheet.ErrConcurrentModification)
	assert.Contains(t, err.Error(), "abandoned after 3 attempts")
}

// =============================================================================
// OVERTIME INTEGRATION
// =============================================================================

func TestCreate_OvertimeSplitAgainstShift(t *testing.T) {
	// GIVEN: Employee on a 9h-threshold shift reporting Mon 10h, Tue 6h
	// WHEN: Creating the timesheet
	// THEN: Entries carry the 9/1 and 6/0 splits and the totals agree

	env := newTestEnv(t)
	env.directory.PutShift(timesheet.Shift{ID: "long", OvertimeEnabled: true, OvertimeThreshold: decPtr("9")})
	env.directory.PutEmployee(timesheet.Employee{ID: "emp-1", Code: "E001", ShiftID: "long"})

	tuesday := monday.AddDate(0, 0, 1)
	env.attendance.Put(present("emp-1", monday, "10"))
	env.attendance.Put(present("emp-1", tuesday, "6"))

	ts, err := env.service.Create(context.Background(), employee, timesheet.CreateInput{
		WeekStart: monday,
		Entries: []timesheet.EntryInput{
			{Date: monday, Hours: dec("10")},
			{Date: tuesday, Hours: dec("6")},
		},
	})
	require.NoError(t, err)

	require.Len(t, ts.Entries, 2)
	assert.True(t, ts.Entries[0].RegularHours.Equal(decimal.NewFromInt(9)))
	assert.True(t, ts.Entries[0].OvertimeHours.Equal(decimal.NewFromInt(1)))
	assert.True(t, ts.Entries[1].OvertimeHours.IsZero())
	assert.True(t, ts.TotalHours.Equal(dec("16")))
	assert.True(t, ts.TotalOvertimeHours.Equal(dec("1")))
}
