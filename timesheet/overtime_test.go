package timesheet_test

import (
	"context"
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

func newTestResolver() (*timesheet.ThresholdResolver, *memstore.MemoryDirectory) {
	directory := memstore.NewMemoryDirectory()
	return timesheet.NewThresholdResolver(directory, directory), directory
}

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

// =============================================================================
// SPLIT TESTS
// =============================================================================

func TestSplitHours(t *testing.T) {
	threshold := decimal.NewFromInt(8)

	cases := []struct {
		name     string
		hours    string
		regular  string
		overtime string
	}{
		{"under threshold", "6", "6", "0"},
		{"exactly threshold", "8", "8", "0"},
		{"over threshold", "10", "8", "2"},
		{"zero hours", "0", "0", "0"},
		{"fractional split", "8.25", "8", "0.25"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			regular, overtime := timesheet.SplitHours(dec(tc.hours), threshold)
			assert.True(t, regular.Equal(dec(tc.regular)), "regular: got %s", regular)
			assert.True(t, overtime.Equal(dec(tc.overtime)), "overtime: got %s", overtime)
			assert.True(t, regular.Add(overtime).Equal(dec(tc.hours)), "split must sum to input")
		})
	}
}

// =============================================================================
// THRESHOLD RESOLUTION TESTS
// =============================================================================

func TestResolveThreshold_NoShiftAssigned_Default(t *testing.T) {
	// GIVEN: An employee with no shift assignment
	// WHEN: Resolving the threshold
	// THEN: Policy default of 8h

	resolver, directory := newTestResolver()
	directory.PutEmployee(timesheet.Employee{ID: "emp-1", Code: "E001"})

	threshold := resolver.ResolveThreshold(context.Background(), "emp-1")
	assert.True(t, threshold.Equal(decimal.NewFromInt(8)))
}

func TestResolveThreshold_UnknownEmployee_Default(t *testing.T) {
	// GIVEN: An employee the directory has never heard of
	// WHEN: Resolving the threshold
	// THEN: Policy default, not an error

	resolver, _ := newTestResolver()

	threshold := resolver.ResolveThreshold(context.Background(), "ghost")
	assert.True(t, threshold.Equal(decimal.NewFromInt(8)))
}

func TestResolveThreshold_ShiftMissingFromDirectory_Default(t *testing.T) {
	// GIVEN: Employee assigned to a shift the directory cannot find
	// WHEN: Resolving the threshold
	// THEN: Policy default

	resolver, directory := newTestResolver()
	directory.PutEmployee(timesheet.Employee{ID: "emp-1", ShiftID: "night"})

	threshold := resolver.ResolveThreshold(context.Background(), "emp-1")
	assert.True(t, threshold.Equal(decimal.NewFromInt(8)))
}

func TestResolveThreshold_OvertimeDisabled_Unbounded(t *testing.T) {
	// GIVEN: A shift with overtime explicitly disabled
	// WHEN: Resolving the threshold
	// THEN: 999h, so no 0-24h entry ever splits

	resolver, directory := newTestResolver()
	directory.PutEmployee(timesheet.Employee{ID: "emp-1", ShiftID: "salaried"})
	directory.PutShift(timesheet.Shift{ID: "salaried", OvertimeEnabled: false})

	threshold := resolver.ResolveThreshold(context.Background(), "emp-1")
	assert.True(t, threshold.Equal(decimal.NewFromInt(999)))
}

func TestResolveThreshold_ShiftThresholdWins(t *testing.T) {
	// GIVEN: A shift with both an explicit threshold and minHoursForFullDay
	// WHEN: Resolving the threshold
	// THEN: The explicit threshold wins

	resolver, directory := newTestResolver()
	directory.PutEmployee(timesheet.Employee{ID: "emp-1", ShiftID: "long"})
	directory.PutShift(timesheet.Shift{
		ID:                 "long",
		OvertimeEnabled:    true,
		OvertimeThreshold:  decPtr("9"),
		MinHoursForFullDay: decPtr("7"),
	})

	threshold := resolver.ResolveThreshold(context.Background(), "emp-1")
	assert.True(t, threshold.Equal(decimal.NewFromInt(9)))
}

func TestResolveThreshold_MinHoursFallback(t *testing.T) {
	// GIVEN: A shift with no explicit threshold but a minHoursForFullDay
	// WHEN: Resolving the threshold
	// THEN: minHoursForFullDay is used

	resolver, directory := newTestResolver()
	directory.PutEmployee(timesheet.Employee{ID: "emp-1", ShiftID: "short"})
	directory.PutShift(timesheet.Shift{
		ID:                 "short",
		OvertimeEnabled:    true,
		MinHoursForFullDay: decPtr("7.5"),
	})

	threshold := resolver.ResolveThreshold(context.Background(), "emp-1")
	assert.True(t, threshold.Equal(dec("7.5")))
}

// =============================================================================
// ANNOTATION TESTS
// =============================================================================

func TestAnnotate_SplitsAgainstShiftThreshold(t *testing.T) {
	// GIVEN: Employee on a 9h-threshold shift reporting Mon 10h, Tue 6h
	// WHEN: Annotating the entries
	// THEN: Monday splits 9 regular + 1 overtime, Tuesday stays all regular

	resolver, directory := newTestResolver()
	directory.PutEmployee(timesheet.Employee{ID: "emp-1", ShiftID: "long"})
	directory.PutShift(timesheet.Shift{ID: "long", OvertimeEnabled: true, OvertimeThreshold: decPtr("9")})

	tuesday := monday.AddDate(0, 0, 1)
	entries := resolver.Annotate(context.Background(), "emp-1", []timesheet.Entry{
		entry(monday, "10"),
		entry(tuesday, "6"),
	})

	require.Len(t, entries, 2)
	assert.True(t, entries[0].RegularHours.Equal(decimal.NewFromInt(9)))
	assert.True(t, entries[0].OvertimeHours.Equal(decimal.NewFromInt(1)))
	assert.True(t, entries[1].RegularHours.Equal(decimal.NewFromInt(6)))
	assert.True(t, entries[1].OvertimeHours.IsZero())
}

// =============================================================================
// WEEK NORMALIZATION
// =============================================================================

func TestWeekOf_AlignsToMonday(t *testing.T) {
	cases := []struct {
		name string
		in   time.Time
	}{
		{"monday itself", monday},
		{"midweek", monday.AddDate(0, 0, 2)},
		{"sunday", monday.AddDate(0, 0, 6)},
		{"midweek with time of day", monday.AddDate(0, 0, 3).Add(17 * time.Hour)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			week := timesheet.WeekOf(tc.in)
			assert.True(t, week.Start.Equal(monday), "got %s", week.Start)
			assert.True(t, week.End.Equal(monday.AddDate(0, 0, 6)))
			assert.Equal(t, time.Monday, week.Start.Weekday())
			assert.True(t, week.Contains(tc.in))
		})
	}
}
