package protocol

import "fmt"

// LogLevel is the severity of a protocol log message, following the syslog
// severity names.
type LogLevel string

// The eight defined severities, lowest to highest.
const (
	LogLevelDebug     LogLevel = "debug"
	LogLevelInfo      LogLevel = "info"
	LogLevelNotice    LogLevel = "notice"
	LogLevelWarning   LogLevel = "warning"
	LogLevelError     LogLevel = "error"
	LogLevelCritical  LogLevel = "critical"
	LogLevelAlert     LogLevel = "alert"
	LogLevelEmergency LogLevel = "emergency"
)

var logLevelRanks = map[LogLevel]int{
	LogLevelDebug:     0,
	LogLevelInfo:      1,
	LogLevelNotice:    2,
	LogLevelWarning:   3,
	LogLevelError:     4,
	LogLevelCritical:  5,
	LogLevelAlert:     6,
	LogLevelEmergency: 7,
}

// Rank returns the level's position in the total severity order and whether
// the level is one of the eight defined severities.
func (l LogLevel) Rank() (int, bool) {
	r, ok := logLevelRanks[l]
	return r, ok
}

// Valid reports whether the level is one of the eight defined severities.
func (l LogLevel) Valid() bool {
	_, ok := logLevelRanks[l]
	return ok
}

// Meets reports whether a message at this level passes a threshold. Both
// levels must be valid; an invalid level never passes.
func (l LogLevel) Meets(threshold LogLevel) bool {
	lr, ok := l.Rank()
	if !ok {
		return false
	}
	tr, ok := threshold.Rank()
	if !ok {
		return false
	}
	return lr >= tr
}

// ValidateLogLevel returns an error naming the offending value when the
// level is not one of the eight defined severities.
func ValidateLogLevel(l LogLevel) error {
	if !l.Valid() {
		return fmt.Errorf("invalid log level %q", string(l))
	}
	return nil
}
