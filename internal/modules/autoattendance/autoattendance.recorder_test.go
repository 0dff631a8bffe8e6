package autoattendance

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleOutcome() Outcome {
	started := time.Date(2024, 5, 2, 0, 1, 0, 0, time.UTC)
	return Outcome{
		RunID:      "run-1",
		Trigger:    TriggerDaily,
		Kind:       OutcomeCompleted,
		Result:     &Result{Success: true, Count: 3, Created: 2, Updated: 1, Date: "2024-05-02"},
		StartedAt:  started,
		FinishedAt: started.Add(2 * time.Second),
	}
}

func TestMemoryRecorder(t *testing.T) {
	rec := NewMemoryRecorder()
	ctx := context.Background()

	_, found, err := rec.Last(ctx)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, rec.Record(ctx, sampleOutcome()))
	last, found, err := rec.Last(ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "run-1", last.RunID)
}

func TestRedisRecorder_RecordAndLast(t *testing.T) {
	client, mock := redismock.NewClientMock()
	rec := NewRedisRecorder(client, "", 24*time.Hour)
	ctx := context.Background()
	out := sampleOutcome()

	payload, err := json.Marshal(out)
	require.NoError(t, err)

	mock.ExpectSet(DefaultStatusKey, payload, 24*time.Hour).SetVal("OK")
	require.NoError(t, rec.Record(ctx, out))

	mock.ExpectGet(DefaultStatusKey).SetVal(string(payload))
	last, found, err := rec.Last(ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, out.RunID, last.RunID)
	assert.Equal(t, OutcomeCompleted, last.Kind)
	require.NotNil(t, last.Result)
	assert.Equal(t, 3, last.Result.Count)
	assert.True(t, out.StartedAt.Equal(last.StartedAt))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisRecorder_Empty(t *testing.T) {
	client, mock := redismock.NewClientMock()
	rec := NewRedisRecorder(client, "status", time.Hour)

	mock.ExpectGet("status").RedisNil()
	_, found, err := rec.Last(context.Background())
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisRecorder_Errors(t *testing.T) {
	client, mock := redismock.NewClientMock()
	rec := NewRedisRecorder(client, "status", time.Hour)
	ctx := context.Background()
	out := sampleOutcome()
	payload, _ := json.Marshal(out)

	mock.ExpectSet("status", payload, time.Hour).SetErr(stderrors.New("READONLY"))
	assert.Error(t, rec.Record(ctx, out))

	mock.ExpectGet("status").SetErr(stderrors.New("connection refused"))
	_, _, err := rec.Last(ctx)
	assert.Error(t, err)

	mock.ExpectGet("status").SetVal("{not json")
	_, _, err = rec.Last(ctx)
	assert.Error(t, err)
}

func TestScheduler_RedisRecorderFailureDoesNotFailRun(t *testing.T) {
	// No expectations are set, so every command fails.
	client, _ := redismock.NewClientMock()
	recorder := NewRedisRecorder(client, "status", time.Hour)

	job := &stubJob{}
	s, _, _ := setupSchedulerTest(job, true, SchedulerOptions{})
	s.recorder = recorder

	out := s.Fire(context.Background(), TriggerDaily)
	assert.Equal(t, OutcomeCompleted, out.Kind)
}
