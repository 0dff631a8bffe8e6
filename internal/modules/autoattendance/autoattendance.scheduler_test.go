package autoattendance

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/Lakshmikallagunta/Shams/internal/infrastructure/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMetrics() *observability.Metrics {
	registry := prometheus.NewRegistry()
	return observability.NewMetricsWithConfig(observability.MetricsConfig{
		Namespace: "test",
		Registry:  registry,
		Gatherer:  registry,
	})
}

func setupSchedulerTest(job Job, ready bool, opts SchedulerOptions) (*Scheduler, *MemoryRecorder, *observability.Metrics) {
	logger := observability.NewNopLogger()
	recorder := NewMemoryRecorder()
	metrics := newTestMetrics()
	if opts.Schedule == nil {
		opts.Schedule = every(time.Hour)
	}
	s := NewScheduler(job, stubGate{ready: ready}, recorder, opts, metrics, observability.NewAuditLogger(logger), logger)
	return s, recorder, metrics
}

func TestScheduler_Fire_Completed(t *testing.T) {
	job := &stubJob{fn: func(_ context.Context, asOf time.Time) Result {
		return Result{Success: true, Count: 2, Created: 1, Updated: 1, Preserved: 1, Date: asOf.Format(dateLayout)}
	}}
	s, recorder, metrics := setupSchedulerTest(job, true, SchedulerOptions{})

	out := s.Fire(context.Background(), TriggerDaily)

	assert.Equal(t, OutcomeCompleted, out.Kind)
	assert.Equal(t, TriggerDaily, out.Trigger)
	require.NotNil(t, out.Result)
	assert.Equal(t, 2, out.Result.Count)
	assert.NotEmpty(t, out.RunID)
	assert.False(t, out.FinishedAt.Before(out.StartedAt))
	assert.False(t, s.Running())
	assert.Equal(t, StateIdle, s.State())

	last, found, err := recorder.Last(context.Background())
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, out.RunID, last.RunID)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.AutoAttendanceRuns.WithLabelValues("daily", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.AutoAttendanceMarked.WithLabelValues("created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.AutoAttendanceMarked.WithLabelValues("preserved")))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.AutoAttendanceRunning))
}

func TestScheduler_Fire_GateClosedSkipsWithoutCallingJob(t *testing.T) {
	job := &stubJob{}
	s, _, metrics := setupSchedulerTest(job, false, SchedulerOptions{})

	out := s.Fire(context.Background(), TriggerStartup)

	assert.Equal(t, OutcomeSkipped, out.Kind)
	assert.Equal(t, ReasonNotReady, out.Reason)
	assert.ErrorIs(t, out.Err, ErrStoreNotReady)
	assert.Equal(t, 0, job.Calls())
	assert.False(t, s.Running())
	assert.Equal(t, StateSkipped, s.State())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.AutoAttendanceRuns.WithLabelValues("startup", "skipped_not_ready")))
}

func TestScheduler_Fire_OverlapIsSkipped(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	job := &stubJob{fn: func(_ context.Context, asOf time.Time) Result {
		close(started)
		<-release
		return Result{Success: true, Date: asOf.Format(dateLayout)}
	}}
	s, _, metrics := setupSchedulerTest(job, true, SchedulerOptions{})

	firstDone := make(chan Outcome, 1)
	go func() { firstDone <- s.Fire(context.Background(), TriggerStartup) }()
	<-started
	require.True(t, s.Running())

	second := s.Fire(context.Background(), TriggerDaily)
	assert.Equal(t, OutcomeSkipped, second.Kind)
	assert.Equal(t, ReasonOverlap, second.Reason)
	assert.ErrorIs(t, second.Err, ErrRunInProgress)
	assert.Equal(t, StateRunning, s.State())

	close(release)
	first := <-firstDone
	assert.Equal(t, OutcomeCompleted, first.Kind)
	assert.Equal(t, 1, job.Calls())
	assert.False(t, s.Running())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.AutoAttendanceRuns.WithLabelValues("daily", "skipped_overlap")))
}

func TestScheduler_Fire_FailedRunClearsGuard(t *testing.T) {
	boom := DataAccessError(stderrors.New("timeout"), "Failed to list approved leaves")
	job := &stubJob{fn: func(_ context.Context, _ time.Time) Result {
		return Result{Success: false, Err: boom, Error: boom.Error()}
	}}
	s, _, metrics := setupSchedulerTest(job, true, SchedulerOptions{})

	out := s.Fire(context.Background(), TriggerDaily)
	assert.Equal(t, OutcomeFailed, out.Kind)
	assert.ErrorIs(t, out.Err, boom)
	assert.NotEmpty(t, out.Error)
	assert.False(t, s.Running())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.AutoAttendanceRuns.WithLabelValues("daily", "failed")))

	job.fn = nil
	assert.Equal(t, OutcomeCompleted, s.Fire(context.Background(), TriggerDaily).Kind)
}

func TestScheduler_Fire_RecoversPanic(t *testing.T) {
	job := &stubJob{fn: func(context.Context, time.Time) Result {
		panic("nil map write")
	}}
	s, recorder, _ := setupSchedulerTest(job, true, SchedulerOptions{})

	var out Outcome
	require.NotPanics(t, func() { out = s.Fire(context.Background(), TriggerDaily) })

	assert.Equal(t, OutcomeFailed, out.Kind)
	assert.True(t, out.Panicked)
	assert.Contains(t, out.Error, "nil map write")
	assert.False(t, s.Running())

	last, found, _ := recorder.Last(context.Background())
	require.True(t, found)
	assert.True(t, last.Panicked)
}

func TestScheduler_Fire_RunIgnoresCallerCancellation(t *testing.T) {
	job := &stubJob{fn: func(ctx context.Context, asOf time.Time) Result {
		if ctx.Err() != nil {
			return Result{Err: ctx.Err()}
		}
		return Result{Success: true, Date: asOf.Format(dateLayout)}
	}}
	s, _, _ := setupSchedulerTest(job, true, SchedulerOptions{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, OutcomeCompleted, s.Fire(ctx, TriggerDaily).Kind)
}

func TestScheduler_StartFiresStartupAndDaily(t *testing.T) {
	job := &stubJob{}
	s, recorder, metrics := setupSchedulerTest(job, true, SchedulerOptions{
		Schedule:     every(30 * time.Millisecond),
		StartupDelay: 5 * time.Millisecond,
	})

	s.Start(context.Background())
	s.Start(context.Background())

	require.Eventually(t, func() bool { return job.Calls() >= 3 }, 2*time.Second, 5*time.Millisecond)
	_, ok := s.NextRun()
	assert.True(t, ok)

	require.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.AutoAttendanceRuns.WithLabelValues("startup", "success")))
	assert.GreaterOrEqual(t, testutil.ToFloat64(metrics.AutoAttendanceRuns.WithLabelValues("daily", "success")), 1.0)

	_, found, _ := recorder.Last(context.Background())
	assert.True(t, found)

	calls := job.Calls()
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, calls, job.Calls())
}

func TestScheduler_StopWaitsForInFlightRun(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	job := &stubJob{fn: func(_ context.Context, asOf time.Time) Result {
		close(started)
		<-release
		return Result{Success: true, Date: asOf.Format(dateLayout)}
	}}
	s, _, _ := setupSchedulerTest(job, true, SchedulerOptions{StartupDelay: 0})

	s.Start(context.Background())
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, s.Stop(ctx))
	assert.True(t, s.Running())

	close(release)
	require.NoError(t, s.Stop(context.Background()))
	assert.False(t, s.Running())
}

func TestScheduler_StartAfterStopDoesNothing(t *testing.T) {
	job := &stubJob{}
	s, _, _ := setupSchedulerTest(job, true, SchedulerOptions{StartupDelay: time.Millisecond})

	require.NoError(t, s.Stop(context.Background()))
	s.Start(context.Background())

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 0, job.Calls())
	_, ok := s.NextRun()
	assert.False(t, ok)
}

func TestOutcome_Label(t *testing.T) {
	assert.Equal(t, "success", Outcome{Kind: OutcomeCompleted}.Label())
	assert.Equal(t, "failed", Outcome{Kind: OutcomeFailed}.Label())
	assert.Equal(t, "skipped_overlap", Outcome{Kind: OutcomeSkipped, Reason: ReasonOverlap}.Label())
	assert.Equal(t, "skipped_not_ready", Outcome{Kind: OutcomeSkipped, Reason: ReasonNotReady}.Label())
}
