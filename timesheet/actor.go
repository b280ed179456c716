/*
actor.go - Actor identity and the capability surface for authorization

PURPOSE:
  Single authorization surface for the state machine. All role checks live
  here; the workflow never compares role strings inline.

OWNERSHIP:
  Ownership is actor identity equality with the timesheet's employee
  identity, carried on the authenticated actor. Client-supplied employee IDs
  in request bodies are never trusted for ownership decisions.

PRIVILEGE:
  Any role other than the base employee role is privileged: it may act on
  timesheets belonging to other employees, and approve/reject submissions.
*/
package timesheet

// Role is the actor's position as asserted by the external identity provider.
type Role string

const (
	RoleEmployee    Role = "employee"
	RoleManager     Role = "manager"
	RoleHR          Role = "hr"
	RoleAdmin       Role = "admin"
	RoleSuperTenant Role = "super_tenant"
)

// Actor is the authenticated identity performing an operation.
type Actor struct {
	ID         string
	EmployeeID EmployeeID
	CompanyID  CompanyID
	Role       Role
}

// Privileged reports whether the actor may act on other employees'
// timesheets. Everything above the base employee role qualifies.
func (a Actor) Privileged() bool { return a.Role != RoleEmployee && a.Role != "" }

// Owns reports whether the timesheet belongs to this actor.
func (a Actor) Owns(ts *Timesheet) bool {
	return a.EmployeeID != "" && a.EmployeeID == ts.EmployeeID
}

// CanCreateFor reports whether the actor may create a timesheet on behalf of
// the given employee.
func (a Actor) CanCreateFor(employeeID EmployeeID) bool {
	return a.Privileged() || a.EmployeeID == employeeID
}

// CanEdit reports whether the actor may mutate entries/notes, submit, or
// soft-delete this timesheet. State guards are checked separately.
func (a Actor) CanEdit(ts *Timesheet) bool {
	return a.Privileged() || a.Owns(ts)
}

// CanApprove reports whether the actor may approve or reject submissions.
func (a Actor) CanApprove() bool { return a.Privileged() }

// CanOverrideValidation reports whether the actor may proceed past a failing
// validation snapshot (implicitly at submit, explicitly at approval).
func (a Actor) CanOverrideValidation() bool { return a.Privileged() }
