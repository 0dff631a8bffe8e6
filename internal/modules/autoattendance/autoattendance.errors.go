package autoattendance

import "github.com/Lakshmikallagunta/Shams/internal/shared/errors"

var (
	ErrStoreNotReady = errors.New(errors.ErrCodeServiceUnavailable, "Attendance store is not connected")
	ErrRunInProgress = errors.New(errors.ErrCodeConflict, "An auto-attendance run is already in progress")
)

// DataAccessError marks a store read or write that aborted a run.
func DataAccessError(err error, message string) *errors.AppError {
	return errors.Wrap(err, errors.ErrCodeDatabaseError, message)
}

// ConfigurationError marks a schedule or policy that cannot be used.
func ConfigurationError(err error, message string) *errors.AppError {
	if err == nil {
		return errors.New(errors.ErrCodeConfiguration, message)
	}
	return errors.Wrap(err, errors.ErrCodeConfiguration, message)
}
