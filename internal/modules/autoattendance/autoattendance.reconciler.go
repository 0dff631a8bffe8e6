package autoattendance

import (
	"context"
	"time"

	"github.com/Lakshmikallagunta/Shams/internal/infrastructure/observability"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// Store is the persistence the reconciler needs. Days are calendar dates;
// implementations must ignore the time-of-day part.
type Store interface {
	// ListApprovedLeavesCovering returns approved leaves whose inclusive
	// range contains day, oldest first.
	ListApprovedLeavesCovering(ctx context.Context, day time.Time) ([]LeaveRecord, error)
	// GetAttendance reports found=false when the student has no record for day.
	GetAttendance(ctx context.Context, studentID string, day time.Time) (AttendanceRecord, bool, error)
	// UpsertAttendance creates the (StudentID, Date) record or replaces it.
	// Unless overwrite is set, an existing record is only replaced while it is
	// unmarked or on_leave, and the check happens in the same write. applied
	// is false when the stored record was kept.
	UpsertAttendance(ctx context.Context, rec AttendanceRecord, overwrite bool) (applied bool, err error)
}

// Reconciler marks students on approved leave as on_leave for a given day.
type Reconciler struct {
	store    Store
	policy   OverwritePolicy
	location *time.Location
	tracer   *observability.Tracer
	logger   *observability.Logger
	now      func() time.Time
	newID    func() string
}

func NewReconciler(store Store, policy OverwritePolicy, location *time.Location, tracer *observability.Tracer, logger *observability.Logger) *Reconciler {
	if policy == "" {
		policy = PolicyPreserveManual
	}
	if location == nil {
		location = time.Local
	}
	if tracer == nil {
		tracer = observability.NewTracer(JobName)
	}
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &Reconciler{
		store:    store,
		policy:   policy,
		location: location,
		tracer:   tracer,
		logger:   logger,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Day truncates t to midnight of its calendar date in the job location.
func (r *Reconciler) Day(t time.Time) time.Time {
	t = t.In(r.location)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, r.location)
}

// Reconcile brings attendance for asOf in line with approved leaves. Writes
// made before a failure are kept; running it again converges.
func (r *Reconciler) Reconcile(ctx context.Context, asOf time.Time) (result Result) {
	day := r.Day(asOf)
	result.Date = day.Format(dateLayout)

	ctx, span := r.tracer.Start(ctx, "autoattendance.Reconcile",
		attribute.String("date", result.Date),
		attribute.String("policy", string(r.policy)),
	)
	defer func() {
		span.SetAttributes(attribute.Int("count", result.Count))
		observability.EndSpan(span, result.Err)
	}()

	leaves, err := r.store.ListApprovedLeavesCovering(ctx, day)
	if err != nil {
		return r.fail(result, DataAccessError(err, "Failed to list approved leaves"))
	}

	seen := make(map[string]struct{}, len(leaves))
	for _, leave := range leaves {
		if leave.Status != LeaveApproved || !leave.Covers(day) {
			continue
		}
		if _, dup := seen[leave.StudentID]; dup {
			continue
		}
		seen[leave.StudentID] = struct{}{}
		result.LeavesScanned++

		current, found, err := r.store.GetAttendance(ctx, leave.StudentID, day)
		if err != nil {
			return r.fail(result, DataAccessError(err, "Failed to read attendance"))
		}

		rec := AttendanceRecord{
			StudentID: leave.StudentID,
			Date:      day,
			Status:    StatusOnLeave,
			Source:    SourceAuto,
			LeaveID:   leave.ID,
			MarkedAt:  r.now().UTC(),
		}

		overwrite := r.policy == PolicyOverwrite
		switch {
		case !found:
			rec.ID = r.newID()
			applied, err := r.store.UpsertAttendance(ctx, rec, overwrite)
			if err != nil {
				return r.fail(result, DataAccessError(err, "Failed to create attendance"))
			}
			if !applied {
				r.preserve(ctx, &result, leave.StudentID, "", "")
				continue
			}
			result.Created++
		case current.Status == StatusOnLeave:
		case current.Status == StatusUnmarked || current.Status == "" || overwrite:
			rec.ID = current.ID
			applied, err := r.store.UpsertAttendance(ctx, rec, overwrite)
			if err != nil {
				return r.fail(result, DataAccessError(err, "Failed to update attendance"))
			}
			if !applied {
				r.preserve(ctx, &result, leave.StudentID, current.Status, current.Source)
				continue
			}
			result.Updated++
		default:
			r.preserve(ctx, &result, leave.StudentID, current.Status, current.Source)
		}
	}

	result.Count = result.Created + result.Updated
	result.Success = true
	return result
}

// preserve counts a record the overwrite policy kept. Status and source are
// empty when the record appeared after it was read.
func (r *Reconciler) preserve(ctx context.Context, result *Result, studentID string, status AttendanceStatus, source Source) {
	result.Preserved++
	r.logger.Debug(ctx, "Attendance kept under overwrite policy",
		r.logger.Field("student_id", studentID),
		r.logger.Field("status", status),
		r.logger.Field("source", source),
	)
}

func (r *Reconciler) fail(result Result, err error) Result {
	result.Count = result.Created + result.Updated
	result.Success = false
	result.Err = err
	result.Error = err.Error()
	return result
}
