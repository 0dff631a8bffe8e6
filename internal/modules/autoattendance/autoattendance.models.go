package autoattendance

import (
	"time"
)

// JobName labels logs, metrics and audit entries of this job.
const JobName = "auto_attendance"

const dateLayout = "2006-01-02"

type AttendanceStatus string

const (
	StatusUnmarked AttendanceStatus = "unmarked"
	StatusPresent  AttendanceStatus = "present"
	StatusAbsent   AttendanceStatus = "absent"
	StatusOnLeave  AttendanceStatus = "on_leave"
)

type Source string

const (
	SourceAuto   Source = "auto"
	SourceManual Source = "manual"
)

type LeaveStatus string

const (
	LeavePending   LeaveStatus = "pending"
	LeaveApproved  LeaveStatus = "approved"
	LeaveRejected  LeaveStatus = "rejected"
	LeaveCancelled LeaveStatus = "cancelled"
)

// OverwritePolicy decides what happens to a record that already holds a
// status other than unmarked or on_leave when its student is on leave.
type OverwritePolicy string

const (
	PolicyPreserveManual OverwritePolicy = "preserve_manual"
	PolicyOverwrite      OverwritePolicy = "overwrite"
)

// LeaveRecord is an approved-or-not leave request. StartDate and EndDate are
// inclusive calendar days.
type LeaveRecord struct {
	ID        string
	StudentID string
	StartDate time.Time
	EndDate   time.Time
	Status    LeaveStatus
	Reason    string
}

// Covers reports whether day falls inside the leave's inclusive range.
// Only calendar dates are compared, so time-of-day and zone do not matter.
func (l LeaveRecord) Covers(day time.Time) bool {
	d := day.Format(dateLayout)
	return l.StartDate.Format(dateLayout) <= d && d <= l.EndDate.Format(dateLayout)
}

// AttendanceRecord is one student's attendance for one calendar day.
type AttendanceRecord struct {
	ID        string
	StudentID string
	Date      time.Time
	Status    AttendanceStatus
	Source    Source
	LeaveID   string
	MarkedAt  time.Time
}

// Result summarises one reconciliation. Count is Created plus Updated.
type Result struct {
	Success       bool   `json:"success"`
	Count         int    `json:"count"`
	Created       int    `json:"created"`
	Updated       int    `json:"updated"`
	Preserved     int    `json:"preserved"`
	LeavesScanned int    `json:"leaves_scanned"`
	Date          string `json:"date"`
	Err           error  `json:"-"`
	Error         string `json:"error,omitempty"`
}

type Trigger string

const (
	TriggerDaily   Trigger = "daily"
	TriggerStartup Trigger = "startup"
)

// State is the scheduler's view of the job.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StateSkipped State = "skipped"
)

type SkipReason string

const (
	ReasonOverlap  SkipReason = "overlap"
	ReasonNotReady SkipReason = "not_ready"
)

type OutcomeKind string

const (
	OutcomeCompleted OutcomeKind = "completed"
	OutcomeFailed    OutcomeKind = "failed"
	OutcomeSkipped   OutcomeKind = "skipped"
)

// Outcome describes what a single firing did.
type Outcome struct {
	RunID      string      `json:"run_id"`
	Trigger    Trigger     `json:"trigger"`
	Kind       OutcomeKind `json:"kind"`
	Reason     SkipReason  `json:"reason,omitempty"`
	Result     *Result     `json:"result,omitempty"`
	Panicked   bool        `json:"panicked,omitempty"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at"`
	Err        error       `json:"-"`
	Error      string      `json:"error,omitempty"`
}

// Label is the metric label for the outcome, e.g. "skipped_overlap".
func (o Outcome) Label() string {
	switch o.Kind {
	case OutcomeCompleted:
		return "success"
	case OutcomeSkipped:
		return "skipped_" + string(o.Reason)
	default:
		return string(o.Kind)
	}
}

// StatusResponse is served by the job status endpoint.
type StatusResponse struct {
	Enabled     bool       `json:"enabled"`
	State       State      `json:"state"`
	Database    string     `json:"database"`
	Schedule    string     `json:"schedule"`
	Timezone    string     `json:"timezone"`
	NextRun     *time.Time `json:"next_run,omitempty"`
	LastOutcome *Outcome   `json:"last_outcome,omitempty"`
}
