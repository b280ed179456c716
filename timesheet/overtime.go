/*
overtime.go - Shift threshold resolution and regular/overtime splitting

PURPOSE:
  Resolves each employee's daily overtime threshold from their shift
  assignment and splits every reported entry into regular and overtime
  components.

RESOLUTION ORDER:
  1. no shift assigned            -> policy default (8h)
  2. shift not found in directory -> policy default, warning logged
  3. overtime explicitly disabled -> effectively unbounded (999h)
  4. shift overtime threshold, else minHoursForFullDay, else default

SPLIT INVARIANT:
  regular = min(hours, threshold); overtime = max(0, hours - threshold);
  regular + overtime == hours. Recomputed for every entry on every write,
  never inherited from a prior version: the shift assignment may have
  changed since.

SEE ALSO:
  - policy.go: Fallback thresholds
  - workflow.go: Calls Annotate on every create/update
*/
package timesheet

import (
	"context"
	"log"

	"github.com/shopspring/decimal"
)

// ThresholdResolver resolves per-employee overtime thresholds from the shift
// directory and annotates entries with their regular/overtime split.
type ThresholdResolver struct {
	Employees EmployeeDirectory
	Shifts    ShiftDirectory
	Policy    OvertimePolicy
}

// NewThresholdResolver builds a resolver with the default overtime policy.
func NewThresholdResolver(employees EmployeeDirectory, shifts ShiftDirectory) *ThresholdResolver {
	return &ThresholdResolver{
		Employees: employees,
		Shifts:    shifts,
		Policy:    DefaultOvertimePolicy(),
	}
}

// ResolveThreshold returns the daily overtime threshold for an employee.
// Lookup faults fall back to the default threshold rather than failing the
// caller; the threshold is policy, not an invariant.
func (tr *ThresholdResolver) ResolveThreshold(ctx context.Context, employeeID EmployeeID) decimal.Decimal {
	emp, err := tr.Employees.FindEmployee(ctx, employeeID)
	if err != nil || emp == nil || emp.ShiftID == "" {
		return tr.Policy.DefaultThreshold
	}

	shift, err := tr.Shifts.FindShift(ctx, emp.ShiftID)
	if err != nil || shift == nil {
		log.Printf("overtime: shift %s for employee %s not found, using default threshold", emp.ShiftID, employeeID)
		return tr.Policy.DefaultThreshold
	}

	if !shift.OvertimeEnabled {
		return tr.Policy.DisabledThreshold
	}
	if shift.OvertimeThreshold != nil && shift.OvertimeThreshold.IsPositive() {
		return *shift.OvertimeThreshold
	}
	if shift.MinHoursForFullDay != nil && shift.MinHoursForFullDay.IsPositive() {
		return *shift.MinHoursForFullDay
	}
	return tr.Policy.DefaultThreshold
}

// Annotate recomputes the regular/overtime split for every entry against the
// employee's current threshold.
func (tr *ThresholdResolver) Annotate(ctx context.Context, employeeID EmployeeID, entries []Entry) []Entry {
	threshold := tr.ResolveThreshold(ctx, employeeID)
	out := make([]Entry, len(entries))
	for i, e := range entries {
		e.RegularHours, e.OvertimeHours = SplitHours(e.Hours, threshold)
		out[i] = e
	}
	return out
}

// SplitHours divides reported hours at the threshold.
func SplitHours(hours, threshold decimal.Decimal) (regular, overtime decimal.Decimal) {
	if hours.GreaterThan(threshold) {
		return threshold, hours.Sub(threshold)
	}
	return hours, decimal.Zero
}
