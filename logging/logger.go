package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// LogLevel represents the severity level of a log message
type LogLevel int

// Log level constants define the severity hierarchy for filtering log output
const (
	DEBUG LogLevel = iota // DEBUG is the lowest severity level for detailed diagnostics
	INFO                  // INFO is for general informational messages
	WARN                  // WARN is for warning messages that don't prevent operation
	ERROR                 // ERROR is the highest severity for error conditions
)

func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l LogLevel) logrusLevel() logrus.Level {
	switch l {
	case DEBUG:
		return logrus.DebugLevel
	case WARN:
		return logrus.WarnLevel
	case ERROR:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

func fromLogrusLevel(l logrus.Level) LogLevel {
	switch {
	case l >= logrus.DebugLevel:
		return DEBUG
	case l == logrus.InfoLevel:
		return INFO
	case l == logrus.WarnLevel:
		return WARN
	default:
		return ERROR
	}
}

// ParseLogLevel converts a string to a LogLevel
func ParseLogLevel(s string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return DEBUG
	case "INFO":
		return INFO
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}

// Format selects how log lines are rendered.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Logger provides structured logging with configurable levels
type Logger struct {
	base  *logrus.Logger
	entry *logrus.Entry
}

// New creates a new Logger writing text to stderr
func New(level LogLevel, prefix string) *Logger {
	return NewWithWriter(level, prefix, os.Stderr)
}

// NewWithWriter creates a new text Logger with custom output writer
func NewWithWriter(level LogLevel, prefix string, w io.Writer) *Logger {
	return NewWithFormat(level, prefix, FormatText, w)
}

// NewWithFormat creates a Logger with the given output format
func NewWithFormat(level LogLevel, prefix string, format Format, w io.Writer) *Logger {
	base := logrus.New()
	base.SetOutput(w)
	base.SetLevel(level.logrusLevel())

	if format == FormatJSON {
		base.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	} else {
		base.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
			DisableColors:   true,
		})
	}

	entry := logrus.NewEntry(base)
	if prefix != "" {
		entry = entry.WithField("component", prefix)
	}
	return &Logger{base: base, entry: entry}
}

// Discard returns a Logger that drops everything, for tests and library defaults
func Discard() *Logger {
	return NewWithWriter(ERROR, "", io.Discard)
}

// With returns a child Logger that adds fields to every message
func (l *Logger) With(fields map[string]interface{}) *Logger {
	return &Logger{base: l.base, entry: l.entry.WithFields(fields)}
}

// SetLevel changes the log level
func (l *Logger) SetLevel(level LogLevel) {
	l.base.SetLevel(level.logrusLevel())
}

// GetLevel returns the current log level
func (l *Logger) GetLevel() LogLevel {
	return fromLogrusLevel(l.base.GetLevel())
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, fields map[string]interface{}) {
	l.entry.WithFields(fields).Debug(msg)
}

// Info logs an info message
func (l *Logger) Info(msg string, fields map[string]interface{}) {
	l.entry.WithFields(fields).Info(msg)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, fields map[string]interface{}) {
	l.entry.WithFields(fields).Warn(msg)
}

// Error logs an error message
func (l *Logger) Error(msg string, fields map[string]interface{}) {
	l.entry.WithFields(fields).Error(msg)
}

// Event identifies a notable step of a playlist run
type Event string

// Event constants tag log lines so runs can be grepped and aggregated
const (
	EventRunStarted           Event = "run_started"            // EventRunStarted marks the start of a command
	EventRunFinished          Event = "run_finished"           // EventRunFinished marks the end of a command
	EventMalformedLine        Event = "malformed_line"         // EventMalformedLine marks a skipped source line
	EventResolveRetry         Event = "resolve_retry"          // EventResolveRetry marks a retried URL resolution
	EventResolveFailed        Event = "resolve_failed"         // EventResolveFailed marks a URL kept unresolved
	EventCircuitBreakerChange Event = "circuit_breaker_change" // EventCircuitBreakerChange marks a host breaker transition
)

// LogMalformedLine logs a source line that was skipped (WARN level)
func (l *Logger) LogMalformedLine(line int, text string, err error) {
	l.Warn("Skipping malformed channel line", map[string]interface{}{
		"event": EventMalformedLine,
		"line":  line,
		"text":  text,
		"error": err.Error(),
	})
}

// LogResolveRetry logs a failed resolution attempt that will be retried (DEBUG level)
func (l *Logger) LogResolveRetry(url string, err error, backoff time.Duration) {
	l.Debug("Retrying URL resolution", map[string]interface{}{
		"event":   EventResolveRetry,
		"url":     url,
		"error":   err.Error(),
		"backoff": backoff.String(),
	})
}

// LogResolveFailed logs a URL that keeps its original value (WARN level)
func (l *Logger) LogResolveFailed(url string, err error) {
	l.Warn("URL resolution failed, keeping original", map[string]interface{}{
		"event": EventResolveFailed,
		"url":   url,
		"error": err.Error(),
	})
}

// LogCircuitBreakerChange logs a circuit breaker state change (WARN level)
func (l *Logger) LogCircuitBreakerChange(oldState, newState string, host string) {
	fields := map[string]interface{}{
		"event":    EventCircuitBreakerChange,
		"oldState": oldState,
		"newState": newState,
	}
	if host != "" {
		fields["host"] = host
	}
	l.Warn("Circuit breaker state changed", fields)
}
