package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Lakshmikallagunta/Shams/internal/config"
	"github.com/Lakshmikallagunta/Shams/internal/infrastructure/observability"
	"github.com/Lakshmikallagunta/Shams/internal/infrastructure/security"
	"github.com/Lakshmikallagunta/Shams/internal/shared/errors"
	"github.com/Lakshmikallagunta/Shams/internal/shared/utils"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func ErrorHandlingMiddleware(logger *observability.Logger, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		// The last error is the most relevant one
		err := c.Errors.Last().Err
		appErr, ok := errors.AsAppError(err)
		if !ok {
			if c.Writer.Status() >= 500 {
				appErr = errors.Wrap(err, errors.ErrCodeInternal, "Internal server error")
			} else {
				appErr = errors.Wrap(err, errors.ErrCodeBadRequest, "Request processing error")
			}
		}

		if metrics != nil {
			metrics.RecordError(appErr.ErrorType, c.Request.Method, c.FullPath())
		}

		fields := []zap.Field{
			zap.String("path", c.Request.URL.Path),
			zap.String("method", c.Request.Method),
			zap.Int("status_code", c.Writer.Status()),
			zap.String("error_type", string(appErr.ErrorType)),
			zap.String("error_code", string(appErr.Code)),
		}
		if appErr.Err != nil {
			fields = append(fields, zap.String("original_error", appErr.Err.Error()))
		}

		if appErr.ErrorType == errors.ErrorTypeServer {
			logger.Error(c.Request.Context(), "Server error occurred", fields...)
		} else {
			logger.Warn(c.Request.Context(), "Client error occurred", fields...)
		}

		if !c.Writer.Written() {
			utils.Error(c, appErr)
		}
	}
}

func TracingMiddleware(logger *observability.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader("X-Trace-ID")
		if traceID == "" {
			traceID = uuid.NewString()
		}

		ctx := context.WithValue(c.Request.Context(), observability.TraceIDKey, traceID)
		c.Request = c.Request.WithContext(ctx)
		c.Set(string(observability.TraceIDKey), traceID)

		logger.Debug(ctx, "Trace started",
			zap.String("path", c.Request.URL.Path),
			zap.String("method", c.Request.Method),
		)

		c.Next()
	}
}

func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := context.WithValue(c.Request.Context(), observability.RequestIDKey, requestID)
		c.Request = c.Request.WithContext(ctx)

		c.Set(string(observability.RequestIDKey), requestID)
		c.Header("X-Request-ID", requestID)

		c.Next()
	}
}

// TimeoutMiddleware attaches a deadline to the request context so store calls
// made on behalf of the request give up with it.
func TimeoutMiddleware(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// OriginPolicyMiddleware answers 403 for browser requests from origins that are
// not on the allow-list. Requests without an Origin header pass through.
func OriginPolicyMiddleware(matcher *security.OriginMatcher, logger *observability.Logger, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if matcher.IsAllowed(origin) {
			c.Next()
			return
		}

		if metrics != nil {
			metrics.CORSRejections.WithLabelValues(c.Request.Method).Inc()
		}
		logger.Warn(c.Request.Context(), "Origin rejected by CORS policy",
			zap.String("origin", origin),
			zap.String("path", c.Request.URL.Path),
		)
		utils.Error(c, errors.ErrOriginNotAllowed)
		c.Abort()
	}
}

// NewCORSMiddleware emits CORS headers for allowed origins. The origin decision
// is delegated to matcher so wildcard patterns behave the same everywhere.
func NewCORSMiddleware(cfg config.CORSConfig, matcher *security.OriginMatcher) gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOriginFunc:  matcher.IsAllowed,
		AllowMethods:     cfg.AllowedMethods,
		AllowHeaders:     append(append([]string{}, cfg.AllowedHeaders...), "X-Request-ID"),
		AllowCredentials: true,
		MaxAge:           24 * time.Hour,
		ExposeHeaders:    []string{"X-Request-ID"},
	})
}

// SecurityHeadersMiddleware injects common security-related HTTP headers.
func SecurityHeadersMiddleware(useHTTPS bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		if useHTTPS {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		c.Next()
	}
}

func LoggerMiddleware(logger *observability.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		statusCode := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", statusCode),
			zap.Int64("latency_ms", time.Since(start).Milliseconds()),
			zap.String("client_ip", c.ClientIP()),
			zap.String("user_agent", c.Request.UserAgent()),
		}
		if origin := c.GetHeader("Origin"); origin != "" {
			fields = append(fields, zap.String("origin", origin))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case statusCode >= 500:
			logger.Error(c.Request.Context(), "HTTP Request completed with server error", fields...)
		case statusCode >= 400:
			logger.Warn(c.Request.Context(), "HTTP Request completed with client error", fields...)
		default:
			logger.Info(c.Request.Context(), "HTTP Request completed", fields...)
		}
	}
}

func MetricsMiddleware(metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		// Route template keeps label cardinality bounded
		path := c.FullPath()
		if path == "" {
			path = "unknown"
		}
		method := c.Request.Method

		c.Next()

		status := fmt.Sprintf("%d", c.Writer.Status())
		metrics.HttpRequestsTotal.WithLabelValues(method, path, status).Inc()
		metrics.HttpRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())

		if c.Request.ContentLength > 0 {
			metrics.HttpRequestSize.WithLabelValues(method, path).Observe(float64(c.Request.ContentLength))
		}
		if size := c.Writer.Size(); size > 0 {
			metrics.HttpResponseSize.WithLabelValues(method, path).Observe(float64(size))
		}
	}
}

func PanicRecoveryMiddleware(logger *observability.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error(c.Request.Context(), "Panic recovered",
					zap.Any("error", r),
					zap.String("path", c.Request.URL.Path),
					zap.String("method", c.Request.Method),
				)
				utils.Error(c, errors.ErrInternal)
				c.Abort()
			}
		}()
		c.Next()
	}
}

// BodyLimitMiddleware caps request bodies.
func BodyLimitMiddleware(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
