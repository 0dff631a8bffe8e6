package autoattendance

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Lakshmikallagunta/Shams/internal/infrastructure/observability"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Job is the unit of work a firing runs.
type Job interface {
	Reconcile(ctx context.Context, asOf time.Time) Result
}

// ReadinessChecker is satisfied by database.Gate.
type ReadinessChecker interface {
	IsReady() bool
}

type SchedulerOptions struct {
	// Expression is the configured schedule text, reported by the status endpoint.
	Expression   string
	Schedule     Schedule
	StartupDelay time.Duration
	Location     *time.Location
}

// Scheduler fires the job on a daily schedule and once shortly after
// startup. At most one run is in flight at a time; firings that find a run
// in progress or the store disconnected are skipped, not queued.
type Scheduler struct {
	job      Job
	gate     ReadinessChecker
	recorder RunRecorder
	opts     SchedulerOptions
	metrics  *observability.Metrics
	audit    *observability.AuditLogger
	logger   *observability.Logger

	running atomic.Bool

	mu           sync.Mutex
	wg           sync.WaitGroup
	stopped      bool
	cancel       context.CancelFunc
	loopDone     chan struct{}
	startupTimer *time.Timer
	next         time.Time
	lastState    State

	now      func() time.Time
	newRunID func() string
}

func NewScheduler(
	job Job,
	gate ReadinessChecker,
	recorder RunRecorder,
	opts SchedulerOptions,
	metrics *observability.Metrics,
	audit *observability.AuditLogger,
	logger *observability.Logger,
) *Scheduler {
	if recorder == nil {
		recorder = NewMemoryRecorder()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Schedule == nil {
		opts.Schedule = DailyAt{Hour: 0, Minute: 1, Location: opts.Location}
	}
	return &Scheduler{
		job:       job,
		gate:      gate,
		recorder:  recorder,
		opts:      opts,
		metrics:   metrics,
		audit:     audit,
		logger:    logger,
		lastState: StateIdle,
		now:       time.Now,
		newRunID:  uuid.NewString,
	}
}

// Fire runs the job once for trigger unless a run is already in progress or
// the store is not connected. It never panics; a panicking job is reported
// as a failed outcome.
func (s *Scheduler) Fire(ctx context.Context, trigger Trigger) Outcome {
	runID := s.newRunID()
	ctx = s.logger.WithContext(ctx, observability.JobKey, JobName, observability.RunIDKey, runID)
	out := Outcome{RunID: runID, Trigger: trigger, StartedAt: s.now()}

	if s.running.Load() {
		return s.skip(ctx, out, ReasonOverlap)
	}
	if !s.gate.IsReady() {
		return s.skip(ctx, out, ReasonNotReady)
	}
	if !s.running.CompareAndSwap(false, true) {
		return s.skip(ctx, out, ReasonOverlap)
	}
	return s.run(ctx, out)
}

func (s *Scheduler) run(ctx context.Context, out Outcome) (final Outcome) {
	// Shutdown waits for the run instead of cancelling it.
	ctx = context.WithoutCancel(ctx)
	s.setRunningGauge(1)
	s.logger.Info(ctx, "Auto-attendance started", s.logger.Field("trigger", out.Trigger))

	defer func() {
		if r := recover(); r != nil {
			out.Kind = OutcomeFailed
			out.Panicked = true
			out.Err = fmt.Errorf("auto-attendance panicked: %v", r)
			s.logger.Error(ctx, "Auto-attendance panicked",
				s.logger.Field("panic", r),
				s.logger.Field("stack", string(debug.Stack())),
			)
		}
		s.running.Store(false)
		s.setRunningGauge(0)
		final = s.finish(ctx, out)
	}()

	res := s.job.Reconcile(ctx, s.now())
	out.Result = &res
	if res.Success {
		out.Kind = OutcomeCompleted
	} else {
		out.Kind = OutcomeFailed
		out.Err = res.Err
	}
	return out
}

func (s *Scheduler) finish(ctx context.Context, out Outcome) Outcome {
	out.FinishedAt = s.now()
	duration := out.FinishedAt.Sub(out.StartedAt)
	if out.Err != nil {
		out.Error = out.Err.Error()
	}

	fields := []zap.Field{
		zap.String("trigger", string(out.Trigger)),
		zap.Duration("duration", duration),
	}
	if out.Result != nil {
		fields = append(fields,
			zap.String("date", out.Result.Date),
			zap.Int("count", out.Result.Count),
			zap.Int("created", out.Result.Created),
			zap.Int("updated", out.Result.Updated),
			zap.Int("preserved", out.Result.Preserved),
		)
	}

	if out.Kind == OutcomeCompleted {
		s.logger.Info(ctx, "Auto-attendance completed", fields...)
	} else {
		fields = append(fields, zap.Bool("panicked", out.Panicked), zap.String("error", out.Error))
		s.logger.Error(ctx, "Auto-attendance failed", fields...)
	}

	if s.metrics != nil {
		s.metrics.RecordAutoAttendanceRun(string(out.Trigger), out.Label())
		s.metrics.RecordBackgroundJob(JobName, duration, out.Err)
		if out.Result != nil {
			s.metrics.RecordAutoAttendanceMarks(out.Result.Created, out.Result.Updated, out.Result.Preserved)
		}
	}

	if s.audit != nil {
		details := map[string]any{
			"run_id":  out.RunID,
			"trigger": string(out.Trigger),
		}
		if out.Result != nil {
			details["date"] = out.Result.Date
			details["count"] = out.Result.Count
			details["preserved"] = out.Result.Preserved
		}
		if out.Error != "" {
			details["error"] = out.Error
		}
		s.audit.LogEvent(ctx, observability.AuditEvent{
			Type:     "job",
			Action:   "auto_attendance.reconcile",
			Actor:    "system",
			Resource: "attendance",
			Success:  out.Kind == OutcomeCompleted,
			Details:  details,
		})
	}

	s.setLastState(StateIdle)
	s.record(ctx, out)
	return out
}

func (s *Scheduler) skip(ctx context.Context, out Outcome, reason SkipReason) Outcome {
	out.Kind = OutcomeSkipped
	out.Reason = reason
	out.FinishedAt = s.now()

	switch reason {
	case ReasonOverlap:
		out.Err = ErrRunInProgress
		s.logger.Warn(ctx, "Auto-attendance skipped: run in progress", s.logger.Field("trigger", out.Trigger))
	case ReasonNotReady:
		out.Err = ErrStoreNotReady
		s.logger.Warn(ctx, "Auto-attendance skipped: store not ready", s.logger.Field("trigger", out.Trigger))
	}
	out.Error = out.Err.Error()

	if s.metrics != nil {
		s.metrics.RecordAutoAttendanceRun(string(out.Trigger), out.Label())
	}
	if !s.running.Load() {
		s.setLastState(StateSkipped)
	}
	s.record(ctx, out)
	return out
}

func (s *Scheduler) record(ctx context.Context, out Outcome) {
	if err := s.recorder.Record(ctx, out); err != nil {
		s.logger.Warn(ctx, "Failed to record auto-attendance outcome", s.logger.Field("error", err))
	}
}

func (s *Scheduler) setRunningGauge(v float64) {
	if s.metrics != nil {
		s.metrics.AutoAttendanceRunning.Set(v)
	}
}

func (s *Scheduler) setLastState(state State) {
	s.mu.Lock()
	s.lastState = state
	s.mu.Unlock()
}

// Start arms the daily trigger and the one-shot startup trigger. Calling it
// again, or after Stop, does nothing.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil || s.stopped {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.loopDone = make(chan struct{})
	go s.loop(loopCtx)

	delay := s.opts.StartupDelay
	if delay < 0 {
		delay = 0
	}
	s.startupTimer = time.AfterFunc(delay, func() {
		s.dispatch(loopCtx, TriggerStartup)
	})

	s.logger.Info(ctx, "Auto-attendance scheduler started",
		s.logger.Field("schedule", s.Schedule()),
		s.logger.Field("timezone", s.opts.Location.String()),
		s.logger.Field("startup_delay", delay),
	)
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.loopDone)
	for {
		now := s.now()
		next := s.opts.Schedule.Next(now)
		if next.IsZero() {
			s.logger.Error(ctx, "Auto-attendance schedule has no future firing")
			return
		}
		s.mu.Lock()
		s.next = next
		s.mu.Unlock()

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.dispatch(ctx, TriggerDaily)
		}
	}
}

// dispatch runs Fire on its own goroutine so a long run never delays the
// next timer.
func (s *Scheduler) dispatch(ctx context.Context, trigger Trigger) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		s.Fire(ctx, trigger)
	}()
}

// Stop disarms both triggers and waits for an in-flight run until ctx ends.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.stopped = true
	cancel, done, timer := s.cancel, s.loopDone, s.startupTimer
	s.mu.Unlock()

	if timer != nil {
		timer.Stop()
	}
	if cancel != nil {
		cancel()
		<-done
	}

	waited := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(waited)
	}()

	select {
	case <-waited:
		s.logger.Info(ctx, "Auto-attendance scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("auto-attendance run still in progress at shutdown: %w", ctx.Err())
	}
}

// Running reports whether the run guard is held.
func (s *Scheduler) Running() bool {
	return s.running.Load()
}

func (s *Scheduler) State() State {
	if s.running.Load() {
		return StateRunning
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastState
}

// NextRun is the next daily firing, known once Start has been called.
func (s *Scheduler) NextRun() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next, !s.next.IsZero()
}

func (s *Scheduler) Schedule() string {
	if s.opts.Expression != "" {
		return s.opts.Expression
	}
	return describeSchedule(s.opts.Schedule)
}

func (s *Scheduler) Location() *time.Location {
	return s.opts.Location
}

func (s *Scheduler) LastOutcome(ctx context.Context) (Outcome, bool, error) {
	return s.recorder.Last(ctx)
}

func describeSchedule(sched Schedule) string {
	if str, ok := sched.(fmt.Stringer); ok {
		return str.String()
	}
	return fmt.Sprintf("%T", sched)
}
