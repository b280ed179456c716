/*
policy.go - Tunable reconciliation and overtime policy constants

PURPOSE:
  The tolerance and escalation thresholds used during reconciliation, and the
  default/unbounded overtime thresholds, are business policy with no single
  correct value. They live in config structs with documented defaults instead
  of literals inside the algorithms, so a deployment can tune them.

DEFAULTS:
  Reconciliation:
    tolerance   = max(0.5h, 10% of attendance hours)
    blocking    = difference > 2.0h, or > 25% of attendance hours
  Overtime:
    no shift / unresolvable -> 8h daily threshold
    overtime disabled       -> 999h (effectively unbounded)

SEE ALSO:
  - reconcile.go: Consumes ReconcilePolicy
  - overtime.go: Consumes OvertimePolicy
*/
package timesheet

import "github.com/shopspring/decimal"

// ReconcilePolicy holds the tolerance and escalation thresholds applied when
// comparing reported hours against attendance.
type ReconcilePolicy struct {
	// MinTolerance is the floor of the per-day tolerance band, in hours.
	MinTolerance decimal.Decimal

	// ToleranceRatio widens the band proportionally to attendance hours.
	ToleranceRatio decimal.Decimal

	// AbsoluteEscalation is the absolute difference, in hours, beyond which
	// a discrepancy blocks the timesheet.
	AbsoluteEscalation decimal.Decimal

	// RelativeEscalation is the difference/attendance ratio beyond which a
	// discrepancy blocks the timesheet (only when attendance hours > 0).
	RelativeEscalation decimal.Decimal
}

func DefaultReconcilePolicy() ReconcilePolicy {
	return ReconcilePolicy{
		MinTolerance:       decimal.RequireFromString("0.5"),
		ToleranceRatio:     decimal.RequireFromString("0.10"),
		AbsoluteEscalation: decimal.RequireFromString("2.0"),
		RelativeEscalation: decimal.RequireFromString("0.25"),
	}
}

// Tolerance returns the allowed absolute difference for a day with the given
// attendance hours: max(MinTolerance, attendance * ToleranceRatio).
func (p ReconcilePolicy) Tolerance(attendanceHours decimal.Decimal) decimal.Decimal {
	scaled := attendanceHours.Mul(p.ToleranceRatio)
	if scaled.GreaterThan(p.MinTolerance) {
		return scaled
	}
	return p.MinTolerance
}

// Blocks reports whether a difference is severe enough to invalidate the
// timesheet: above the absolute ceiling, or above the relative ceiling when
// attendance recorded any hours at all.
func (p ReconcilePolicy) Blocks(difference, attendanceHours decimal.Decimal) bool {
	if difference.GreaterThan(p.AbsoluteEscalation) {
		return true
	}
	if attendanceHours.IsPositive() {
		return difference.Div(attendanceHours).GreaterThan(p.RelativeEscalation)
	}
	return false
}

// OvertimePolicy holds the fallback thresholds used when resolving an
// employee's daily overtime boundary from their shift.
type OvertimePolicy struct {
	// DefaultThreshold applies when no shift is assigned or the shift cannot
	// be resolved.
	DefaultThreshold decimal.Decimal

	// DisabledThreshold applies when the shift explicitly disables overtime.
	// High enough that no 0-24h entry ever exceeds it.
	DisabledThreshold decimal.Decimal
}

func DefaultOvertimePolicy() OvertimePolicy {
	return OvertimePolicy{
		DefaultThreshold:  decimal.NewFromInt(8),
		DisabledThreshold: decimal.NewFromInt(999),
	}
}
