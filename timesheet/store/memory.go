// Package store provides in-memory implementations of the timesheet store
// and the directory collaborators, for testing and development.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/timesheet-engine/timesheet"
)

// =============================================================================
// MEMORY STORE - In-memory timesheet.TxStore implementation
// =============================================================================

type Memory struct {
	mu         sync.RWMutex
	timesheets map[timesheet.TimesheetID]*timesheet.Timesheet
}

func NewMemory() *Memory {
	return &Memory{timesheets: make(map[timesheet.TimesheetID]*timesheet.Timesheet)}
}

func (m *Memory) Get(_ context.Context, companyID timesheet.CompanyID, id timesheet.TimesheetID) (*timesheet.Timesheet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ts, ok := m.timesheets[id]
	if !ok || ts.IsDeleted || ts.CompanyID != companyID {
		return nil, timesheet.ErrNotFound
	}
	return clone(ts), nil
}

func (m *Memory) FindByWeek(_ context.Context, companyID timesheet.CompanyID, employeeID timesheet.EmployeeID, weekStart time.Time) (*timesheet.Timesheet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if ts := m.findByWeekLocked(companyID, employeeID, weekStart); ts != nil {
		return clone(ts), nil
	}
	return nil, nil
}

func (m *Memory) findByWeekLocked(companyID timesheet.CompanyID, employeeID timesheet.EmployeeID, weekStart time.Time) *timesheet.Timesheet {
	for _, ts := range m.timesheets {
		if !ts.IsDeleted && ts.CompanyID == companyID && ts.EmployeeID == employeeID && ts.WeekStart.Equal(weekStart) {
			return ts
		}
	}
	return nil
}

func (m *Memory) List(_ context.Context, companyID timesheet.CompanyID, filter timesheet.ListFilter, page timesheet.Page) ([]*timesheet.Timesheet, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []*timesheet.Timesheet
	for _, ts := range m.timesheets {
		if ts.IsDeleted || ts.CompanyID != companyID {
			continue
		}
		if filter.EmployeeID != "" && ts.EmployeeID != filter.EmployeeID {
			continue
		}
		if filter.Status != "" && ts.Status != filter.Status {
			continue
		}
		if !filter.From.IsZero() && ts.WeekStart.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && ts.WeekStart.After(filter.To) {
			continue
		}
		matched = append(matched, ts)
	}

	// Newest week first, stable across runs.
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].WeekStart.Equal(matched[j].WeekStart) {
			return matched[i].WeekStart.After(matched[j].WeekStart)
		}
		return matched[i].ID < matched[j].ID
	})

	total := len(matched)
	limit := page.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := page.Offset
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}

	out := make([]*timesheet.Timesheet, 0, end-offset)
	for _, ts := range matched[offset:end] {
		out = append(out, clone(ts))
	}
	return out, total, nil
}

func (m *Memory) Insert(_ context.Context, ts *timesheet.Timesheet) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ts.ID == "" {
		ts.ID = timesheet.TimesheetID(timesheet.NewID("ts"))
	}
	if existing := m.findByWeekLocked(ts.CompanyID, ts.EmployeeID, ts.WeekStart); existing != nil {
		return &timesheet.DuplicateWeekError{
			EmployeeID: ts.EmployeeID,
			WeekStart:  ts.WeekStart.Format("2006-01-02"),
			ExistingID: existing.ID,
		}
	}

	m.timesheets[ts.ID] = clone(ts)
	return nil
}

func (m *Memory) Update(_ context.Context, ts *timesheet.Timesheet, expectStatus timesheet.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.timesheets[ts.ID]
	if !ok || current.IsDeleted || current.CompanyID != ts.CompanyID {
		return timesheet.ErrNotFound
	}
	if current.Status != expectStatus {
		return timesheet.ErrConcurrentModification
	}

	m.timesheets[ts.ID] = clone(ts)
	return nil
}

func (m *Memory) Stats(_ context.Context, companyID timesheet.CompanyID, from, to time.Time) (*timesheet.Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &timesheet.Stats{}
	for _, ts := range m.timesheets {
		if ts.IsDeleted || ts.CompanyID != companyID {
			continue
		}
		if !from.IsZero() && ts.WeekStart.Before(from) {
			continue
		}
		if !to.IsZero() && ts.WeekStart.After(to) {
			continue
		}
		stats.Total++
		switch ts.Status {
		case timesheet.StatusDraft:
			stats.Draft++
		case timesheet.StatusSubmitted:
			stats.Submitted++
		case timesheet.StatusApproved:
			stats.Approved++
		case timesheet.StatusRejected:
			stats.Rejected++
		}
		stats.TotalHours = stats.TotalHours.Add(ts.TotalHours)
		stats.TotalOvertimeHours = stats.TotalOvertimeHours.Add(ts.TotalOvertimeHours)
	}
	return stats, nil
}

// WithTx runs fn against the store under the write lock's serialization.
// The memory store has no rollback; tests that need abort semantics use the
// sqlite store.
func (m *Memory) WithTx(ctx context.Context, fn func(timesheet.Store) error) error {
	return fn(m)
}

func clone(ts *timesheet.Timesheet) *timesheet.Timesheet {
	out := *ts
	out.Entries = append([]timesheet.Entry(nil), ts.Entries...)
	if ts.Validation != nil {
		v := *ts.Validation
		v.Warnings = append([]timesheet.Warning(nil), ts.Validation.Warnings...)
		v.Discrepancies = append([]timesheet.Discrepancy(nil), ts.Validation.Discrepancies...)
		v.MissingAttendance = append([]time.Time(nil), ts.Validation.MissingAttendance...)
		out.Validation = &v
	}
	return &out
}

// =============================================================================
// MEMORY DIRECTORIES - Collaborator fakes for tests/dev
// =============================================================================

// MemoryAttendance is an in-memory AttendanceSource keyed by employee+day.
type MemoryAttendance struct {
	mu      sync.RWMutex
	records map[attendanceKey]timesheet.AttendanceRecord
}

type attendanceKey struct {
	EmployeeID timesheet.EmployeeID
	Day        string
}

func NewMemoryAttendance() *MemoryAttendance {
	return &MemoryAttendance{records: make(map[attendanceKey]timesheet.AttendanceRecord)}
}

func (m *MemoryAttendance) Put(record timesheet.AttendanceRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := attendanceKey{record.EmployeeID, timesheet.DayStart(record.Date).Format("2006-01-02")}
	m.records[key] = record
}

func (m *MemoryAttendance) FindOne(_ context.Context, employeeID timesheet.EmployeeID, dayStart, _ time.Time) (*timesheet.AttendanceRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	key := attendanceKey{employeeID, timesheet.DayStart(dayStart).Format("2006-01-02")}
	if r, ok := m.records[key]; ok {
		return &r, nil
	}
	return nil, nil
}

// MemoryDirectory is an in-memory EmployeeDirectory + ShiftDirectory.
type MemoryDirectory struct {
	mu        sync.RWMutex
	employees map[timesheet.EmployeeID]timesheet.Employee
	shifts    map[timesheet.ShiftID]timesheet.Shift
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		employees: make(map[timesheet.EmployeeID]timesheet.Employee),
		shifts:    make(map[timesheet.ShiftID]timesheet.Shift),
	}
}

func (m *MemoryDirectory) PutEmployee(emp timesheet.Employee) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.employees[emp.ID] = emp
}

func (m *MemoryDirectory) PutShift(shift timesheet.Shift) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shifts[shift.ID] = shift
}

func (m *MemoryDirectory) FindEmployee(_ context.Context, id timesheet.EmployeeID) (*timesheet.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if emp, ok := m.employees[id]; ok {
		return &emp, nil
	}
	return nil, nil
}

func (m *MemoryDirectory) FindShift(_ context.Context, id timesheet.ShiftID) (*timesheet.Shift, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if shift, ok := m.shifts[id]; ok {
		return &shift, nil
	}
	return nil, nil
}
