package app

import (
	"context"
	"testing"
	"time"

	"github.com/Lakshmikallagunta/Shams/internal/config"
	"github.com/Lakshmikallagunta/Shams/internal/infrastructure/observability"
	"github.com/Lakshmikallagunta/Shams/internal/modules/autoattendance"
	"github.com/Lakshmikallagunta/Shams/internal/shared/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContainer_Initialization(t *testing.T) {
	container := newTestContainer(t, testConfig())

	assert.NotNil(t, container.DB)
	assert.Nil(t, container.Mongo)
	assert.NotNil(t, container.Queries)
	assert.IsType(t, &autoattendance.SQLStore{}, container.Store)
	assert.NotNil(t, container.Connector)
	assert.NotNil(t, container.Scheduler)
	assert.NotNil(t, container.HealthHandler)
	assert.NotNil(t, container.AutoAttendanceHandler)
	assert.False(t, container.Gate.IsReady())
}

func TestContainer_ConfigurationErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"origin with two wildcards", func(c *config.Config) { c.CORS.AllowedOrigins = []string{"https://*.*.vercel.app"} }},
		{"unparseable schedule", func(c *config.Config) { c.AutoAttendance.Schedule = "every day" }},
		{"unknown time zone", func(c *config.Config) { c.AutoAttendance.Timezone = "Mars/Olympus_Mons" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(cfg)

			_, err := NewContainer(cfg, observability.NewNopLogger())
			require.Error(t, err)
			appErr, ok := errors.AsAppError(err)
			require.True(t, ok)
			assert.Equal(t, errors.ErrCodeConfiguration, appErr.Code)
		})
	}
}

func TestContainer_ConnectStoreFailureKeepsGateClosed(t *testing.T) {
	container := newTestContainer(t, testConfig())

	err := container.ConnectStore(context.Background())
	assert.Error(t, err)
	assert.False(t, container.Gate.IsReady())

	out := container.Scheduler.Fire(context.Background(), autoattendance.TriggerStartup)
	assert.Equal(t, autoattendance.OutcomeSkipped, out.Kind)
	assert.Equal(t, autoattendance.ReasonNotReady, out.Reason)
}

func TestContainer_MongoWithoutURI(t *testing.T) {
	cfg := testConfig()
	cfg.Database.Driver = config.DriverMongo

	container := newTestContainer(t, cfg)
	assert.Nil(t, container.Store)
	assert.Nil(t, container.Connector)

	assert.Error(t, container.ConnectStore(context.Background()))
	assert.False(t, container.Gate.IsReady())
}

func TestServer_BackgroundWorkers(t *testing.T) {
	container := newTestContainer(t, testConfig())
	server := NewServer(container)

	server.startBackgroundWorkers()
	require.Eventually(t, func() bool {
		_, ok := container.Scheduler.NextRun()
		return ok
	}, time.Second, 5*time.Millisecond)

	server.collectDatabaseMetrics()
	assert.Equal(t, 0.0, testutil.ToFloat64(container.Metrics.DatabaseConnected))

	done := make(chan struct{})
	go func() {
		server.stopBackgroundWorkers()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("background workers did not stop")
	}
}

func TestServer_DisabledJobIsNotScheduled(t *testing.T) {
	cfg := testConfig()
	cfg.AutoAttendance.Enabled = false
	container := newTestContainer(t, cfg)
	server := NewServer(container)

	server.startBackgroundWorkers()
	time.Sleep(20 * time.Millisecond)
	_, ok := container.Scheduler.NextRun()
	assert.False(t, ok)
	server.stopBackgroundWorkers()
}

func TestOrDefault(t *testing.T) {
	assert.Equal(t, 5*time.Second, orDefault(0, 5*time.Second))
	assert.Equal(t, time.Second, orDefault(time.Second, 5*time.Second))
}
