// Package observability provides the structured logger used by review
// sessions and the CLI.
package observability

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"
)

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

// ParseLevel maps a config string to a LogLevel. Unknown values get Info.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(s) {
	case "debug":
		return LogLevelDebug
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// ParseFormat maps a config string to a LogFormat. Unknown values get Human.
func ParseFormat(s string) LogFormat {
	if strings.ToLower(s) == "json" {
		return LogFormatJSON
	}
	return LogFormatHuman
}

// StructuredLogger writes structured log lines via the standard log package.
// It implements the session Logger port.
type StructuredLogger struct {
	level  LogLevel
	format LogFormat
}

// NewStructuredLogger creates a logger with the specified config.
func NewStructuredLogger(level LogLevel, format LogFormat) *StructuredLogger {
	return &StructuredLogger{level: level, format: format}
}

// LogInfo logs an informational message with structured fields.
func (l *StructuredLogger) LogInfo(ctx context.Context, message string, fields map[string]interface{}) {
	if l.level > LogLevelInfo {
		return
	}
	l.emit("info", "[INFO]", message, fields)
}

// LogWarning logs a warning message with structured fields.
func (l *StructuredLogger) LogWarning(ctx context.Context, message string, fields map[string]interface{}) {
	if l.level > LogLevelInfo {
		return
	}
	l.emit("warning", "[WARN]", message, fields)
}

func (l *StructuredLogger) emit(level, humanPrefix, message string, fields map[string]interface{}) {
	if l.format == LogFormatJSON {
		entry := make(map[string]interface{}, len(fields)+3)
		for k, v := range fields {
			entry[k] = v
		}
		entry["level"] = level
		entry["message"] = message
		entry["timestamp"] = time.Now().Format(time.RFC3339)

		data, err := json.Marshal(entry)
		if err != nil {
			log.Printf("%s %s (unloggable fields: %v)", humanPrefix, message, err)
			return
		}
		log.Printf("%s", data)
		return
	}

	if len(fields) == 0 {
		log.Printf("%s %s", humanPrefix, message)
		return
	}

	// Sorted keys keep human output deterministic
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(fmt.Sprintf(" %s=%v", k, fields[k]))
	}
	log.Printf("%s %s%s", humanPrefix, message, sb.String())
}
