package logging

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() (Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := New(&buf, &TextFormatter{DisableTimestamp: true})
	return logger, &buf
}

func TestLevelFiltering(t *testing.T) {
	logger, buf := newTestLogger()

	logger.Debug("hidden")
	logger.Info("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")

	buf.Reset()
	logger.SetLevel(DebugLevel)
	logger.Debug("now visible")
	assert.Contains(t, buf.String(), "now visible")
	assert.Equal(t, DebugLevel, logger.GetLevel())
}

func TestFieldsAreSortedAndRendered(t *testing.T) {
	logger, buf := newTestLogger()

	logger.Info("request done",
		String("method", "tools/call"),
		Int("attempt", 2),
		Bool("ok", true),
	)

	line := buf.String()
	assert.Contains(t, line, "[INFO] request done |")
	// Sorted field order keeps output diffable.
	attempt := strings.Index(line, "attempt=2")
	method := strings.Index(line, "method=tools/call")
	ok := strings.Index(line, "ok=true")
	require.True(t, attempt >= 0 && method >= 0 && ok >= 0, "line: %s", line)
	assert.Less(t, attempt, method)
	assert.Less(t, method, ok)
}

func TestWithFields(t *testing.T) {
	logger, buf := newTestLogger()
	child := logger.WithFields(String("session", "s-1"))

	child.Warn("dropping message", ErrorField(errors.New("unknown method")))
	assert.Contains(t, buf.String(), "session=s-1")
	assert.Contains(t, buf.String(), "error=unknown method")

	// Parent is unaffected.
	buf.Reset()
	logger.Info("plain")
	assert.NotContains(t, buf.String(), "session=s-1")
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := NewNop()
	logger.Info("anything")
	logger.SetLevel(DebugLevel)
	assert.Equal(t, ErrorLevel, logger.GetLevel())
}
