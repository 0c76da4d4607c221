// Package logging provides structured logging for the engine's own
// diagnostics. This is the ambient SDK logger; protocol-level log delivery
// to the remote peer (notifications/message) lives in pkg/session.
package logging

import (
	"io"
	"os"
	"sync"
	"time"
)

// Level represents the severity of a diagnostic log message.
type Level int

const (
	// DebugLevel is for detailed information useful when debugging.
	DebugLevel Level = iota - 1
	// InfoLevel is for general informational messages.
	InfoLevel
	// WarnLevel is for warning messages.
	WarnLevel
	// ErrorLevel is for error messages.
	ErrorLevel
)

// String returns the string representation of a log level.
func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Field is a key-value pair attached to a log entry.
type Field struct {
	Key   string
	Value any
}

// String creates a string field.
func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

// Int creates an integer field.
func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

// Bool creates a boolean field.
func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

// Duration creates a duration field.
func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value}
}

// ErrorField creates an error field.
func ErrorField(err error) Field {
	return Field{Key: "error", Value: err}
}

// Any creates a field with an arbitrary value.
func Any(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Logger is the interface for structured diagnostic logging.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	// WithFields returns a logger that attaches the fields to every entry.
	WithFields(fields ...Field) Logger

	// SetLevel sets the minimum level that will be written.
	SetLevel(level Level)
	// GetLevel returns the current minimum level.
	GetLevel() Level
}

// Entry is a materialized log entry handed to a Formatter.
type Entry struct {
	Level     Level
	Message   string
	Fields    map[string]any
	Timestamp time.Time
}

// Formatter renders log entries to bytes.
type Formatter interface {
	Format(entry *Entry) ([]byte, error)
}

type baseLogger struct {
	mu        sync.Mutex
	level     Level
	output    io.Writer
	formatter Formatter
	fields    map[string]any
}

// New creates a logger writing formatted entries to output. A nil output
// defaults to stderr; a nil formatter defaults to the text formatter.
func New(output io.Writer, formatter Formatter) Logger {
	if output == nil {
		output = os.Stderr
	}
	if formatter == nil {
		formatter = NewTextFormatter()
	}
	return &baseLogger{
		level:     InfoLevel,
		output:    output,
		formatter: formatter,
		fields:    make(map[string]any),
	}
}

func (l *baseLogger) Debug(msg string, fields ...Field) { l.log(DebugLevel, msg, fields...) }
func (l *baseLogger) Info(msg string, fields ...Field)  { l.log(InfoLevel, msg, fields...) }
func (l *baseLogger) Warn(msg string, fields ...Field)  { l.log(WarnLevel, msg, fields...) }
func (l *baseLogger) Error(msg string, fields ...Field) { l.log(ErrorLevel, msg, fields...) }

func (l *baseLogger) WithFields(fields ...Field) Logger {
	l.mu.Lock()
	defer l.mu.Unlock()

	merged := make(map[string]any, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for _, f := range fields {
		merged[f.Key] = f.Value
	}
	return &baseLogger{
		level:     l.level,
		output:    l.output,
		formatter: l.formatter,
		fields:    merged,
	}
}

func (l *baseLogger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

func (l *baseLogger) GetLevel() Level {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

func (l *baseLogger) log(level Level, msg string, fields ...Field) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if level < l.level {
		return
	}

	entryFields := make(map[string]any, len(l.fields)+len(fields))
	for k, v := range l.fields {
		entryFields[k] = v
	}
	for _, f := range fields {
		entryFields[f.Key] = f.Value
	}

	entry := &Entry{
		Level:     level,
		Message:   msg,
		Fields:    entryFields,
		Timestamp: time.Now(),
	}

	formatted, err := l.formatter.Format(entry)
	if err != nil {
		return
	}
	_, _ = l.output.Write(formatted)
}

type nopLogger struct{}

// NewNop returns a logger that discards everything.
func NewNop() Logger {
	return nopLogger{}
}

func (nopLogger) Debug(string, ...Field)       {}
func (nopLogger) Info(string, ...Field)        {}
func (nopLogger) Warn(string, ...Field)        {}
func (nopLogger) Error(string, ...Field)       {}
func (n nopLogger) WithFields(...Field) Logger { return n }
func (nopLogger) SetLevel(Level)               {}
func (nopLogger) GetLevel() Level              { return ErrorLevel }
