package utils

import (
	"net/http"

	"github.com/Lakshmikallagunta/Shams/internal/infrastructure/observability"
	"github.com/Lakshmikallagunta/Shams/internal/shared/errors"
	"github.com/gin-gonic/gin"
)

type Response struct {
	Success bool           `json:"success"`
	Data    any            `json:"data,omitempty"`
	Error   *ErrorResponse `json:"error,omitempty"`
	Version string         `json:"version"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	Type    string `json:"type"`
}

func Success(c *gin.Context, statusCode int, data any) {
	c.JSON(statusCode, Response{
		Success: true,
		Data:    data,
		Version: "v1",
	})
}

func Error(c *gin.Context, err error) {
	appErr, ok := errors.AsAppError(err)
	if !ok {
		appErr = errors.Wrap(err, errors.ErrCodeInternal, "An unexpected error occurred")
	}

	// Sentinel errors are shared, so correlation IDs go into a fresh map.
	details := appErr.Details
	if details == nil {
		ids := make(map[string]string, 2)
		if traceID := c.GetString(string(observability.TraceIDKey)); traceID != "" {
			ids["trace_id"] = traceID
		}
		if requestID := c.GetString(string(observability.RequestIDKey)); requestID != "" {
			ids["request_id"] = requestID
		}
		if len(ids) > 0 {
			details = ids
		}
	}

	statusCode := getHTTPStatusCode(appErr.Code)
	c.JSON(statusCode, Response{
		Success: false,
		Error: &ErrorResponse{
			Code:    string(appErr.Code),
			Message: appErr.Message,
			Details: details,
			Type:    string(appErr.ErrorType),
		},
		Version: "v1",
	})
}

func getHTTPStatusCode(code errors.ErrorCode) int {
	switch code {
	case errors.ErrCodeNotFound:
		return http.StatusNotFound
	case errors.ErrCodeBadRequest, errors.ErrCodeValidation:
		return http.StatusBadRequest
	case errors.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case errors.ErrCodeForbidden:
		return http.StatusForbidden
	case errors.ErrCodeConflict:
		return http.StatusConflict
	case errors.ErrCodeTooManyRequests:
		return http.StatusTooManyRequests
	case errors.ErrCodeServiceUnavailable, errors.ErrCodeDatabaseError:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
