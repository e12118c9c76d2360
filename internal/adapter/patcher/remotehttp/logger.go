package remotehttp

import (
	"context"
	"log"
	"time"
)

// Logger provides structured logging for patch service calls.
type Logger interface {
	// LogRequest logs an outgoing patch request
	LogRequest(ctx context.Context, req RequestLog)

	// LogResponse logs a patch response with timing info
	LogResponse(ctx context.Context, resp ResponseLog)

	// LogError logs a patch service error
	LogError(ctx context.Context, err ErrorLog)
}

// RequestLog contains request information for logging.
type RequestLog struct {
	Endpoint     string
	File         string
	Timestamp    time.Time
	ContentBytes int
}

// ResponseLog contains response information for logging.
type ResponseLog struct {
	Endpoint   string
	File       string
	Timestamp  time.Time
	Duration   time.Duration
	StatusCode int
	DiffBytes  int
}

// ErrorLog contains error information for logging.
type ErrorLog struct {
	Endpoint   string
	File       string
	Timestamp  time.Time
	Duration   time.Duration
	Error      error
	ErrorType  ErrorType
	StatusCode int
	Retryable  bool
}

// LogLevel defines the logging verbosity level.
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelError
)

// LogFormat defines the output format for logs.
type LogFormat int

const (
	LogFormatHuman LogFormat = iota
	LogFormatJSON
)

// DefaultLogger writes logs in structured format to stderr via the log package.
type DefaultLogger struct {
	level  LogLevel
	format LogFormat
}

// NewDefaultLogger creates a logger with the specified config.
func NewDefaultLogger(level LogLevel, format LogFormat) *DefaultLogger {
	return &DefaultLogger{level: level, format: format}
}

// LogRequest logs a patch request.
func (l *DefaultLogger) LogRequest(ctx context.Context, req RequestLog) {
	if l.level > LogLevelDebug {
		return
	}

	if l.format == LogFormatJSON {
		log.Printf(`{"level":"debug","type":"request","endpoint":"%s","file":"%s","timestamp":"%s","content_bytes":%d}`,
			req.Endpoint, req.File, req.Timestamp.Format(time.RFC3339), req.ContentBytes)
	} else {
		log.Printf("[DEBUG] %s: patch request for %s (%d bytes)",
			req.Endpoint, req.File, req.ContentBytes)
	}
}

// LogResponse logs a patch response.
func (l *DefaultLogger) LogResponse(ctx context.Context, resp ResponseLog) {
	if l.level > LogLevelInfo {
		return
	}

	if l.format == LogFormatJSON {
		log.Printf(`{"level":"info","type":"response","endpoint":"%s","file":"%s","timestamp":"%s","duration_ms":%d,"status":%d,"diff_bytes":%d}`,
			resp.Endpoint, resp.File, resp.Timestamp.Format(time.RFC3339),
			resp.Duration.Milliseconds(), resp.StatusCode, resp.DiffBytes)
	} else {
		log.Printf("[INFO] %s: patch applied for %s (status=%d, %v, diff=%d bytes)",
			resp.Endpoint, resp.File, resp.StatusCode, resp.Duration.Round(time.Millisecond), resp.DiffBytes)
	}
}

// LogError logs a patch service error.
func (l *DefaultLogger) LogError(ctx context.Context, e ErrorLog) {
	if l.format == LogFormatJSON {
		log.Printf(`{"level":"error","type":"error","endpoint":"%s","file":"%s","timestamp":"%s","duration_ms":%d,"error":"%s","error_type":"%s","status":%d,"retryable":%t}`,
			e.Endpoint, e.File, e.Timestamp.Format(time.RFC3339),
			e.Duration.Milliseconds(), e.Error, e.ErrorType.String(), e.StatusCode, e.Retryable)
	} else {
		log.Printf("[ERROR] %s: patch failed for %s: %v (type=%s, status=%d, retryable=%t)",
			e.Endpoint, e.File, e.Error, e.ErrorType.String(), e.StatusCode, e.Retryable)
	}
}

// NopLogger discards all log output.
type NopLogger struct{}

func (NopLogger) LogRequest(context.Context, RequestLog)   {}
func (NopLogger) LogResponse(context.Context, ResponseLog) {}
func (NopLogger) LogError(context.Context, ErrorLog)       {}
