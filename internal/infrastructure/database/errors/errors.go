package errors

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"

	"github.com/Lakshmikallagunta/Shams/internal/infrastructure/observability"
	"github.com/go-sql-driver/mysql"
	"github.com/sony/gobreaker"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type DBErrorType string

const (
	ErrorTypeDeadlock            DBErrorType = "deadlock"
	ErrorTypeConnectionTimeout   DBErrorType = "connection_timeout"
	ErrorTypeConnectionRefused   DBErrorType = "connection_refused"
	ErrorTypeConstraintViolation DBErrorType = "constraint_violation"
	ErrorTypeDuplicateKey        DBErrorType = "duplicate_key"
	ErrorTypeForeignKeyViolation DBErrorType = "foreign_key_violation"
	ErrorTypeQueryTimeout        DBErrorType = "query_timeout"
	ErrorTypeCircuitOpen         DBErrorType = "circuit_open"
	ErrorTypeNotFound            DBErrorType = "not_found"
	ErrorTypeUnknown             DBErrorType = "unknown"
)

type Classifyable interface {
	Classify() DBErrorType
	Error() string
}

type DBError struct {
	Original error
	Type     DBErrorType
	Context  map[string]interface{}
}

func (e *DBError) Error() string {
	return fmt.Sprintf("database error: %s (%s)", e.Type, e.Original.Error())
}

func (e *DBError) Classify() DBErrorType {
	return e.Type
}

func (e *DBError) Unwrap() error {
	return e.Original
}

func NewDBError(err error, errType DBErrorType, ctx map[string]interface{}) *DBError {
	return &DBError{
		Original: err,
		Type:     errType,
		Context:  ctx,
	}
}

// ClassifyError maps MySQL, MongoDB, network and breaker errors onto one
// store-independent set of types. Wrapped errors are unwrapped first.
func ClassifyError(err error) DBErrorType {
	if err == nil {
		return ""
	}

	var classified Classifyable
	if errors.As(err, &classified) {
		return classified.Classify()
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return ErrorTypeQueryTimeout
	case errors.Is(err, sql.ErrNoRows), errors.Is(err, mongo.ErrNoDocuments):
		return ErrorTypeNotFound
	case errors.Is(err, sql.ErrConnDone), errors.Is(err, mongo.ErrClientDisconnected):
		return ErrorTypeConnectionRefused
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return ErrorTypeCircuitOpen
	}

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return classifyMySQL(mysqlErr)
	}

	switch {
	case mongo.IsDuplicateKeyError(err):
		return ErrorTypeDuplicateKey
	case mongo.IsTimeout(err):
		return ErrorTypeConnectionTimeout
	case mongo.IsNetworkError(err):
		return ErrorTypeConnectionRefused
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ErrorTypeConnectionTimeout
		}
		return ErrorTypeConnectionRefused
	}

	return ErrorTypeUnknown
}

func classifyMySQL(mysqlErr *mysql.MySQLError) DBErrorType {
	switch mysqlErr.Number {
	case 1213, 1205, 1206: // deadlock, lock wait timeout, lock table full
		return ErrorTypeDeadlock
	case 2003, 2005: // connection refused
		return ErrorTypeConnectionRefused
	case 2013: // lost connection during query
		return ErrorTypeConnectionTimeout
	case 1062:
		return ErrorTypeDuplicateKey
	case 1451, 1452:
		return ErrorTypeForeignKeyViolation
	case 1048, 1146: // null into NOT NULL, table not found
		return ErrorTypeConstraintViolation
	case 3024: // max_execution_time exceeded
		return ErrorTypeQueryTimeout
	}
	return ErrorTypeUnknown
}

func IsTransientError(err error) bool {
	switch ClassifyError(err) {
	case ErrorTypeDeadlock, ErrorTypeConnectionTimeout, ErrorTypeConnectionRefused, ErrorTypeQueryTimeout:
		return true
	default:
		return false
	}
}

func LogDBError(logger *observability.Logger, err error, operation, query string) {
	if logger == nil {
		return
	}
	errType := ClassifyError(err)
	fields := []zap.Field{
		zap.String("error_type", string(errType)),
		zap.String("original_error", err.Error()),
		zap.String("operation", operation),
		zap.String("query", query),
	}

	if IsTransientError(err) {
		logger.Warn(context.Background(), "Transient database error", fields...)
	} else {
		logger.Error(context.Background(), "Persistent database error", fields...)
	}
}
