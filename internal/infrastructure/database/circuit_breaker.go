// internal/infrastructure/database/circuit_breaker.go
package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/Lakshmikallagunta/Shams/internal/config"
	"github.com/Lakshmikallagunta/Shams/internal/infrastructure/database/errors"
	"github.com/Lakshmikallagunta/Shams/internal/infrastructure/observability"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// DBTX defines the interface needed for database operations
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	PrepareContext(context.Context, string) (*sql.Stmt, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

// BreakerDB guards a DBTX with a circuit breaker so a dead store fails fast
// instead of stacking up connection timeouts.
type BreakerDB struct {
	inner   DBTX
	name    string
	cb      *gobreaker.CircuitBreaker
	metrics *observability.Metrics
	logger  *observability.Logger
}

// NewBreakerDB creates a new BreakerDB from config
func NewBreakerDB(inner DBTX, name string, cfg config.CBConfig, metrics *observability.Metrics, logger *observability.Logger) *BreakerDB {
	settings := gobreaker.Settings{
		Name: name,
		// MaxRequests is used for half-open state, not max failures
		MaxRequests: cfg.MaxFailures,
		Interval:    0,
		Timeout:     cfg.ResetTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= cfg.FailureThreshold
		},
		IsSuccessful: countsAsSuccess,
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			if logger != nil {
				logger.Warn(context.Background(), "Circuit breaker state changed",
					zap.String("db", name),
					zap.String("from_state", from.String()),
					zap.String("to_state", to.String()),
				)
			}
			if metrics == nil {
				return
			}
			// 0=closed, 0.5=half_open, 1=open
			stateValue := 0.0
			switch to {
			case gobreaker.StateOpen:
				stateValue = 1.0
			case gobreaker.StateHalfOpen:
				stateValue = 0.5
			}
			metrics.CircuitBreakerState.WithLabelValues(name, to.String()).Set(stateValue)
			metrics.CircuitBreakerEvents.WithLabelValues(name, "state_change", from.String()+"_to_"+to.String()).Inc()
		},
	}

	return &BreakerDB{
		inner:   inner,
		name:    name,
		cb:      gobreaker.NewCircuitBreaker(settings),
		metrics: metrics,
		logger:  logger,
	}
}

// countsAsSuccess keeps caller mistakes (missing rows, key conflicts) from
// tripping the breaker; only store-side failures count.
func countsAsSuccess(err error) bool {
	if err == nil || stderrors.Is(err, sql.ErrNoRows) {
		return true
	}
	switch errors.ClassifyError(err) {
	case errors.ErrorTypeDuplicateKey, errors.ErrorTypeConstraintViolation, errors.ErrorTypeForeignKeyViolation:
		return true
	}
	return false
}

func (b *BreakerDB) observe(start time.Time, err error) {
	if b.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
		if !countsAsSuccess(err) {
			b.metrics.CircuitBreakerEvents.WithLabelValues(b.name, "failure", string(errors.ClassifyError(err))).Inc()
		}
	}
	b.metrics.CircuitBreakerDuration.WithLabelValues(b.name, status).Observe(time.Since(start).Seconds())
}

// ExecContext wraps the Exec call in the circuit breaker
func (b *BreakerDB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	start := time.Now()
	result, err := b.cb.Execute(func() (interface{}, error) {
		return b.inner.ExecContext(ctx, query, args...)
	})
	b.observe(start, err)
	if err != nil {
		return nil, err
	}
	return result.(sql.Result), nil
}

// QueryContext wraps the Query call in the circuit breaker
func (b *BreakerDB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	start := time.Now()
	rows, err := b.cb.Execute(func() (interface{}, error) {
		return b.inner.QueryContext(ctx, query, args...)
	})
	b.observe(start, err)
	if err != nil {
		return nil, err
	}
	return rows.(*sql.Rows), nil
}

// QueryRowContext fails fast while the circuit is open. A *sql.Row defers its
// error to Scan, so single-row lookups never trip the breaker themselves.
func (b *BreakerDB) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	if b.cb.State() == gobreaker.StateOpen {
		b.observe(time.Now(), gobreaker.ErrOpenState)
		return newErrorRow(gobreaker.ErrOpenState)
	}
	return b.inner.QueryRowContext(ctx, query, args...)
}

// PrepareContext passes through; preparing does not execute anything.
func (b *BreakerDB) PrepareContext(ctx context.Context, query string) (*sql.Stmt, error) {
	return b.inner.PrepareContext(ctx, query)
}

// GetState returns the current state of the circuit breaker
func (b *BreakerDB) GetState() gobreaker.State {
	return b.cb.State()
}

var (
	faultDB       *sql.DB
	faultOnce     sync.Once
	errorRegistry sync.Map
)

// initFaultDB opens a singleton DB whose driver always fails
func initFaultDB() {
	faultOnce.Do(func() {
		sql.Register("fault_injector", &faultDriver{})
		var err error
		faultDB, err = sql.Open("fault_injector", "")
		if err != nil {
			panic(fmt.Sprintf("failed to initialize fault driver: %v", err))
		}
	})
}

// newErrorRow returns a *sql.Row that yields err when scanned.
// sql.Row has no exported constructor, so the error travels through a driver.
func newErrorRow(err error) *sql.Row {
	initFaultDB()

	token := fmt.Sprintf("%d", time.Now().UnixNano())
	errorRegistry.Store(token, err)
	time.AfterFunc(time.Minute, func() {
		errorRegistry.Delete(token)
	})

	return faultDB.QueryRow(token)
}

type faultDriver struct{}

func (d *faultDriver) Open(name string) (driver.Conn, error) {
	return &faultConn{}, nil
}

type faultConn struct{}

func (c *faultConn) Prepare(query string) (driver.Stmt, error) {
	if val, ok := errorRegistry.Load(query); ok {
		if err, ok := val.(error); ok {
			return nil, err
		}
	}
	return nil, fmt.Errorf("unknown fault error")
}

func (c *faultConn) Close() error              { return nil }
func (c *faultConn) Begin() (driver.Tx, error) { return nil, fmt.Errorf("not supported") }
