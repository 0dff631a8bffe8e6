package observability

import (
	"context"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type AuditLogger struct {
	logger      *Logger
	file        *os.File
	mu          sync.Mutex
	isDedicated bool
}

// AuditEvent describes a state-changing action worth keeping outside the
// regular application log. Actor is "system" for scheduled jobs.
type AuditEvent struct {
	Type     string
	Action   string
	Actor    string
	Resource string
	Success  bool
	Details  map[string]any
}

// NewAuditLogger creates an audit logger instance
func NewAuditLogger(logger *Logger) *AuditLogger {
	return &AuditLogger{
		logger: logger,
	}
}

// NewDedicatedAuditLogger creates an audit logger that writes to a separate file
func NewDedicatedAuditLogger(filePath, format string) (*AuditLogger, error) {
	// Create file if it doesn't exist, append if it does
	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0640)
	if err != nil {
		return nil, err
	}

	// Create zap encoder
	var encoder zapcore.Encoder
	if format == "console" {
		encoderConfig := zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	} else {
		// SIEM-friendly JSON format
		encoderConfig := zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.RFC3339NanoTimeEncoder
		encoderConfig.LevelKey = "level"
		encoderConfig.NameKey = "logger"
		encoderConfig.CallerKey = "caller"
		encoderConfig.MessageKey = "message"
		encoderConfig.StacktraceKey = "stack"
		encoderConfig.LineEnding = zapcore.DefaultLineEnding
		encoderConfig.EncodeDuration = zapcore.SecondsDurationEncoder
		encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	// Create core that writes to our file
	core := zapcore.NewCore(
		encoder,
		zapcore.AddSync(file),
		zapcore.InfoLevel, // Always capture audit events
	)

	// Create the dedicated logger
	zapLogger := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	dedicatedLogger := &Logger{zap: zapLogger}

	return &AuditLogger{
		logger:      dedicatedLogger,
		file:        file,
		isDedicated: true,
	}, nil
}

// Close releases any resources held by the audit logger
func (a *AuditLogger) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.file != nil {
		err := a.file.Close()
		a.file = nil
		return err
	}
	return nil
}

// LogEvent writes one audit entry with structured data
func (a *AuditLogger) LogEvent(ctx context.Context, event AuditEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	fields := []zap.Field{
		zap.String("event_type", event.Type),
		zap.String("actor", event.Actor),
		zap.String("action", event.Action),
		zap.String("resource", event.Resource),
		zap.Bool("success", event.Success),
		zap.Time("event_time", time.Now().UTC()), // Explicit UTC timestamp for SIEM
		zap.String("audit_version", "1.1"),
	}
	if len(event.Details) > 0 {
		fields = append(fields, zap.Any("details", event.Details))
	}

	a.logger.Info(ctx, "AUDIT", fields...)
}
