package errors

import (
	"context"
	"database/sql"
	"time"

	"github.com/Lakshmikallagunta/Shams/internal/config"
	"github.com/Lakshmikallagunta/Shams/internal/infrastructure/observability"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// RetryConfig bounds how store operations are retried. MaxRetries counts
// total attempts, including the first.
type RetryConfig struct {
	Enabled           bool
	MaxRetries        int
	InitialInterval   time.Duration
	MaxInterval       time.Duration
	Multiplier        float64
	Randomization     float64
	FatalErrorTypes   []DBErrorType
	TransientErrorFN  func(error) bool
	OperationTimeHook func(operation string, duration time.Duration, attempt uint64)
}

func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		Enabled:         true,
		MaxRetries:      3,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		Multiplier:      2.0,
		Randomization:   0.2,
		FatalErrorTypes: []DBErrorType{
			ErrorTypeConstraintViolation,
			ErrorTypeDuplicateKey,
			ErrorTypeForeignKeyViolation,
		},
		TransientErrorFN: IsTransientError,
	}
}

// MergeWith overlays the values set in the environment-driven config.
func (cfg *RetryConfig) MergeWith(override *config.DatabaseRetryConfig) *RetryConfig {
	if override == nil {
		return cfg
	}
	if override.Enabled != nil {
		cfg.Enabled = *override.Enabled
	}
	if override.MaxRetries != nil {
		cfg.MaxRetries = *override.MaxRetries
	}
	if override.InitialInterval != nil {
		cfg.InitialInterval = *override.InitialInterval
	}
	if override.MaxInterval != nil {
		cfg.MaxInterval = *override.MaxInterval
	}
	if override.Multiplier != nil {
		cfg.Multiplier = *override.Multiplier
	}
	if override.Randomization != nil {
		cfg.Randomization = *override.Randomization
	}
	if len(override.FatalErrorTypes) > 0 {
		cfg.FatalErrorTypes = make([]DBErrorType, len(override.FatalErrorTypes))
		for i, errType := range override.FatalErrorTypes {
			cfg.FatalErrorTypes[i] = DBErrorType(errType)
		}
	}
	return cfg
}

func (cfg *RetryConfig) IsFatalError(err error) bool {
	if !cfg.Enabled {
		return true
	}
	errType := ClassifyError(err)
	for _, fatalType := range cfg.FatalErrorTypes {
		if errType == fatalType {
			return true
		}
	}
	return false
}

func (cfg *RetryConfig) ShouldRetry(err error) bool {
	if !cfg.Enabled || cfg.IsFatalError(err) {
		return false
	}
	if cfg.TransientErrorFN != nil {
		return cfg.TransientErrorFN(err)
	}
	return IsTransientError(err)
}

func (cfg *RetryConfig) backOff(ctx context.Context) backoff.BackOff {
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = cfg.InitialInterval
	expBackoff.MaxInterval = cfg.MaxInterval
	expBackoff.Multiplier = cfg.Multiplier
	expBackoff.RandomizationFactor = cfg.Randomization
	expBackoff.MaxElapsedTime = 0 // bounded by MaxRetries instead
	expBackoff.Reset()

	retries := cfg.MaxRetries - 1
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(expBackoff, uint64(retries)), ctx)
}

type RetryableFunc func(attempt uint64) error

// RetryOperation runs f until it succeeds, fails with a non-retryable error,
// runs out of attempts or ctx is done.
func RetryOperation(ctx context.Context, operationName string, f RetryableFunc, cfg *RetryConfig, metrics *observability.Metrics, logger *observability.Logger) error {
	if !cfg.Enabled {
		return f(0)
	}

	startTime := time.Now()
	var attempt uint64
	var exhausted bool

	operation := func() error {
		attempt++
		err := f(attempt)
		if err == nil {
			return nil
		}
		if !cfg.ShouldRetry(err) {
			if metrics != nil {
				metrics.DatabaseRetrySkipped.WithLabelValues(operationName, string(ClassifyError(err))).Inc()
			}
			return backoff.Permanent(err)
		}
		if attempt >= uint64(cfg.MaxRetries) {
			exhausted = true
		}
		return err
	}

	notify := func(err error, next time.Duration) {
		if metrics != nil {
			metrics.DatabaseRetryAttempts.WithLabelValues(operationName, string(ClassifyError(err))).Inc()
		}
		if logger != nil {
			logger.Warn(ctx, "Retrying database operation",
				zap.String("operation", operationName),
				zap.Uint64("attempt", attempt),
				zap.Int("max_attempts", cfg.MaxRetries),
				zap.Duration("next_in", next),
				zap.Error(err),
			)
		}
	}

	err := backoff.RetryNotify(operation, cfg.backOff(ctx), notify)
	if err != nil {
		if exhausted && metrics != nil {
			metrics.DatabaseRetryMaxAttempts.WithLabelValues(operationName).Inc()
		}
		return err
	}

	if attempt > 1 && cfg.OperationTimeHook != nil {
		cfg.OperationTimeHook(operationName, time.Since(startTime), attempt)
	}
	return nil
}

func WithRetryTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error, cfg *RetryConfig, metrics *observability.Metrics, logger *observability.Logger) error {
	return RetryOperation(ctx, "transaction", func(attempt uint64) error {
		tx, err := db.BeginTx(ctx, &sql.TxOptions{
			Isolation: sql.LevelReadCommitted,
		})
		if err != nil {
			return err
		}
		defer func() {
			if p := recover(); p != nil {
				_ = tx.Rollback()
				panic(p)
			}
		}()

		if err := fn(tx); err != nil {
			// The original error matters more than a failed rollback.
			_ = tx.Rollback()
			return err
		}
		return tx.Commit()
	}, cfg, metrics, logger)
}
