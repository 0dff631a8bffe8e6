package database

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/Lakshmikallagunta/Shams/internal/infrastructure/database/errors"
	"github.com/Lakshmikallagunta/Shams/internal/infrastructure/observability"
	"go.uber.org/zap"
)

// PingFunc checks that the store answers. Both the SQL and the Mongo store provide one.
type PingFunc func(ctx context.Context) error

// Connector performs the one bounded connection attempt made at startup and
// publishes the result on a Gate. It never terminates the process.
type Connector struct {
	Store   string
	Target  string
	Ping    PingFunc
	// Prepare runs once after a successful ping and before the gate opens,
	// e.g. to create indexes the store relies on. Optional.
	Prepare func(ctx context.Context) error
	Timeout time.Duration
	Retry   *errors.RetryConfig
	Metrics *observability.Metrics
	Logger  *observability.Logger
}

var credentialsPattern = regexp.MustCompile(`([a-zA-Z][a-zA-Z0-9+.-]*://)?([^:/@\s]+):([^@\s]+)@`)

// MaskCredentials hides the password part of a DSN or connection URI.
func MaskCredentials(dsn string) string {
	return credentialsPattern.ReplaceAllString(dsn, "${1}${2}:****@")
}

// Connect pings the store with retry and sets the gate accordingly.
// The returned error is informational; callers usually run this in a goroutine.
func (c *Connector) Connect(ctx context.Context, gate *Gate) error {
	retryCfg := c.Retry
	if retryCfg == nil {
		retryCfg = errors.DefaultRetryConfig()
	}
	// Any ping failure is worth another attempt while connecting.
	connectCfg := *retryCfg
	connectCfg.FatalErrorTypes = nil
	connectCfg.TransientErrorFN = func(error) bool { return true }

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	start := time.Now()
	err := errors.RetryOperation(ctx, "db_connection", func(attempt uint64) error {
		if c.Ping == nil {
			return fmt.Errorf("%s: no connection target configured", c.Store)
		}
		pingCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return c.Ping(pingCtx)
	}, &connectCfg, c.Metrics, c.Logger)
	if err == nil && c.Prepare != nil {
		if err = c.prepare(ctx, timeout); err != nil {
			gate.Set(false)
			if c.Metrics != nil {
				c.Metrics.RecordConnectivity(false)
			}
			if c.Logger != nil {
				c.Logger.Error(ctx, "Database setup failed, serving in degraded mode",
					zap.String("store", c.Store),
					zap.Error(err),
				)
			}
			return fmt.Errorf("failed to prepare %s: %w", c.Store, err)
		}
	}

	gate.Set(err == nil)
	if c.Metrics != nil {
		c.Metrics.RecordConnectivity(err == nil)
	}

	if err != nil {
		if c.Logger != nil {
			c.Logger.Error(ctx, "Database connection failed, serving in degraded mode",
				zap.String("store", c.Store),
				zap.String("target", MaskCredentials(c.Target)),
				zap.Int("max_attempts", connectCfg.MaxRetries),
				zap.Error(err),
			)
		}
		return fmt.Errorf("failed to connect to %s after %d attempts: %w", c.Store, connectCfg.MaxRetries, err)
	}

	if c.Logger != nil {
		c.Logger.Info(ctx, "Database connected",
			zap.String("store", c.Store),
			zap.String("target", MaskCredentials(c.Target)),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
	return nil
}

func (c *Connector) prepare(ctx context.Context, timeout time.Duration) error {
	prepareCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.Prepare(prepareCtx)
}
