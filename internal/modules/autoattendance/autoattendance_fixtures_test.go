package autoattendance

import (
	"context"
	"sync"
	"time"
)

// memStore is an in-memory Store with the same (student, day) uniqueness as
// the real tables.
type memStore struct {
	mu      sync.Mutex
	leaves  []LeaveRecord
	records map[string]AttendanceRecord

	listErr   error
	getErr    error
	upsertErr error
	failAfter int // upserts allowed before upsertErr applies; 0 means immediately

	// afterGet runs once GetAttendance has read, outside the lock, to model a
	// write landing between the read and the upsert.
	afterGet func(studentID string, day time.Time)

	listCalls int
	upserts   int
}

func newMemStore(leaves ...LeaveRecord) *memStore {
	return &memStore{leaves: leaves, records: map[string]AttendanceRecord{}}
}

func recordKey(studentID string, day time.Time) string {
	return studentID + "|" + day.Format(dateLayout)
}

func (m *memStore) ListApprovedLeavesCovering(_ context.Context, day time.Time) ([]LeaveRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []LeaveRecord
	for _, l := range m.leaves {
		if l.Status == LeaveApproved && l.Covers(day) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *memStore) GetAttendance(_ context.Context, studentID string, day time.Time) (AttendanceRecord, bool, error) {
	m.mu.Lock()
	if m.getErr != nil {
		m.mu.Unlock()
		return AttendanceRecord{}, false, m.getErr
	}
	rec, ok := m.records[recordKey(studentID, day)]
	afterGet := m.afterGet
	m.mu.Unlock()

	if afterGet != nil {
		afterGet(studentID, day)
	}
	return rec, ok, nil
}

// UpsertAttendance applies the same conditional write as the SQL and Mongo
// stores.
func (m *memStore) UpsertAttendance(_ context.Context, rec AttendanceRecord, overwrite bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil && m.upserts >= m.failAfter {
		return false, m.upsertErr
	}
	m.upserts++
	k := recordKey(rec.StudentID, rec.Date)
	if existing, ok := m.records[k]; ok {
		switch existing.Status {
		case StatusUnmarked, StatusOnLeave, "":
		default:
			if !overwrite {
				return false, nil
			}
		}
		rec.ID = existing.ID
	}
	m.records[k] = rec
	return true, nil
}

func (m *memStore) put(rec AttendanceRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[recordKey(rec.StudentID, rec.Date)] = rec
}

func (m *memStore) get(studentID string, day time.Time) (AttendanceRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[recordKey(studentID, day)]
	return rec, ok
}

func date(y int, mo time.Month, d int) time.Time {
	return time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
}

func approvedLeave(id, studentID string, start, end time.Time) LeaveRecord {
	return LeaveRecord{ID: id, StudentID: studentID, StartDate: start, EndDate: end, Status: LeaveApproved}
}

// stubJob is a Job whose behaviour is set per test.
type stubJob struct {
	mu    sync.Mutex
	calls int
	fn    func(ctx context.Context, asOf time.Time) Result
}

func (j *stubJob) Reconcile(ctx context.Context, asOf time.Time) Result {
	j.mu.Lock()
	j.calls++
	fn := j.fn
	j.mu.Unlock()
	if fn == nil {
		return Result{Success: true, Date: asOf.Format(dateLayout)}
	}
	return fn(ctx, asOf)
}

func (j *stubJob) Calls() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.calls
}

type stubGate struct {
	ready bool
}

func (g stubGate) IsReady() bool { return g.ready }

// every fires at a fixed interval.
type every time.Duration

func (e every) Next(t time.Time) time.Time { return t.Add(time.Duration(e)) }
