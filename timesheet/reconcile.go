/*
reconcile.go - Cross-validation of reported hours against attendance

PURPOSE:
  Pure computation over injected reads: for each reported entry, find the
  attendance record for that calendar day and compare hours within a
  tolerance band. Produces a ValidationResult with typed warnings, a
  discrepancy list, and aggregate totals.

DECISION LOGIC PER ENTRY:
  no attendance record     -> no_attendance warning + missingAttendance,
                              never blocking on its own
  |diff| <= tolerance      -> clean
  |diff| >  tolerance      -> discrepancy recorded; blocks only when the
                              difference exceeds the absolute or relative
                              escalation ceiling (large_discrepancy warning)
  on-leave/absent + hours  -> leave_claim/absent_claim warning, non-blocking

FAULT DEGRADATION:
  An internal fault while reconciling must never block an otherwise
  legitimate write. The result degrades to IsValid=true with a single
  validation_error warning: unverifiable, proceed with caution.

SEE ALSO:
  - policy.go: Tolerance and escalation thresholds
  - workflow.go: Applies the result to submission/approval guards
*/
package timesheet

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Reconciler cross-validates reported entries against the attendance source.
type Reconciler struct {
	Attendance AttendanceSource
	Policy     ReconcilePolicy

	// Now is injectable for deterministic ValidatedAt stamps in tests.
	Now func() time.Time
}

// NewReconciler builds a reconciler with the default policy.
func NewReconciler(attendance AttendanceSource) *Reconciler {
	return &Reconciler{
		Attendance: attendance,
		Policy:     DefaultReconcilePolicy(),
		Now:        time.Now,
	}
}

// Reconcile validates the entries for one employee and returns a complete
// ValidationResult. The result is always freshly computed; callers overwrite
// any prior snapshot with it.
func (rc *Reconciler) Reconcile(ctx context.Context, employeeID EmployeeID, entries []Entry) *ValidationResult {
	result := &ValidationResult{
		IsValid:              true,
		TotalReportedHours:   decimal.Zero,
		TotalAttendanceHours: decimal.Zero,
		ValidatedAt:          rc.now(),
	}

	for _, entry := range entries {
		if err := rc.reconcileEntry(ctx, employeeID, entry, result); err != nil {
			// Degrade: a collaborator fault makes the timesheet unverifiable,
			// not invalid.
			return &ValidationResult{
				IsValid: true,
				Warnings: []Warning{{
					Type:    WarnValidationError,
					Message: fmt.Sprintf("validation could not be completed: %v", err),
				}},
				TotalReportedHours:   sumHours(entries),
				TotalAttendanceHours: decimal.Zero,
				ValidatedAt:          rc.now(),
			}
		}
	}

	return result
}

func (rc *Reconciler) reconcileEntry(ctx context.Context, employeeID EmployeeID, entry Entry, result *ValidationResult) error {
	result.TotalReportedHours = result.TotalReportedHours.Add(entry.Hours)

	record, err := rc.Attendance.FindOne(ctx, employeeID, DayStart(entry.Date), DayEnd(entry.Date))
	if err != nil {
		return fmt.Errorf("attendance lookup for %s: %w", DayStart(entry.Date).Format("2006-01-02"), err)
	}

	if record == nil {
		result.MissingAttendance = append(result.MissingAttendance, DayStart(entry.Date))
		result.Warnings = append(result.Warnings, Warning{
			Type:    WarnNoAttendance,
			Date:    DayStart(entry.Date),
			Message: fmt.Sprintf("no attendance record for %s", DayStart(entry.Date).Format("2006-01-02")),
		})
		return nil
	}

	result.TotalAttendanceHours = result.TotalAttendanceHours.Add(record.HoursWorked)

	difference := entry.Hours.Sub(record.HoursWorked).Abs()
	tolerance := rc.Policy.Tolerance(record.HoursWorked)

	if difference.GreaterThan(tolerance) {
		disc := Discrepancy{
			Date:             DayStart(entry.Date),
			ReportedHours:    entry.Hours.Round(2),
			AttendanceHours:  record.HoursWorked.Round(2),
			Difference:       difference.Round(2),
			ClockIn:          record.ClockIn,
			ClockOut:         record.ClockOut,
			AttendanceStatus: string(record.Status),
		}
		if record.HoursWorked.IsPositive() {
			disc.PercentageDiff = difference.Div(record.HoursWorked).Mul(decimal.NewFromInt(100)).Round(1)
		}
		result.Discrepancies = append(result.Discrepancies, disc)

		if rc.Policy.Blocks(difference, record.HoursWorked) {
			result.IsValid = false
			result.Warnings = append(result.Warnings, Warning{
				Type: WarnLargeDiscrepancy,
				Date: DayStart(entry.Date),
				Message: fmt.Sprintf("reported %sh but attendance recorded %sh on %s",
					entry.Hours.Round(2), record.HoursWorked.Round(2),
					DayStart(entry.Date).Format("2006-01-02")),
			})
		}
	}

	// Policy signal, independent of discrepancy magnitude: claiming hours on
	// a day attendance marked as leave or absent.
	if entry.Hours.IsPositive() {
		switch record.Status {
		case AttendanceOnLeave:
			result.Warnings = append(result.Warnings, Warning{
				Type:    WarnLeaveClaim,
				Date:    DayStart(entry.Date),
				Message: fmt.Sprintf("hours reported on %s while attendance shows on-leave", DayStart(entry.Date).Format("2006-01-02")),
			})
		case AttendanceAbsent:
			result.Warnings = append(result.Warnings, Warning{
				Type:    WarnAbsentClaim,
				Date:    DayStart(entry.Date),
				Message: fmt.Sprintf("hours reported on %s while attendance shows absent", DayStart(entry.Date).Format("2006-01-02")),
			})
		}
	}

	return nil
}

func (rc *Reconciler) now() time.Time {
	if rc.Now != nil {
		return rc.Now()
	}
	return time.Now()
}

func sumHours(entries []Entry) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.Hours)
	}
	return total
}
