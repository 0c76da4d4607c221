package logging

import (
	"bytes"
	"fmt"
	"sort"
)

// TextFormatter formats log entries as human-readable text.
type TextFormatter struct {
	// TimestampFormat is the format for timestamps.
	TimestampFormat string
	// DisableTimestamp disables timestamp output.
	DisableTimestamp bool
}

// NewTextFormatter creates a text formatter with default settings.
func NewTextFormatter() *TextFormatter {
	return &TextFormatter{
		TimestampFormat: "2006-01-02 15:04:05.000",
	}
}

// Format renders a log entry as a single text line.
func (f *TextFormatter) Format(entry *Entry) ([]byte, error) {
	var buf bytes.Buffer

	if !f.DisableTimestamp {
		buf.WriteString(entry.Timestamp.Format(f.TimestampFormat))
		buf.WriteByte(' ')
	}

	fmt.Fprintf(&buf, "[%s] ", entry.Level.String())
	buf.WriteString(entry.Message)

	if len(entry.Fields) > 0 {
		keys := make([]string, 0, len(entry.Fields))
		for k := range entry.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		buf.WriteString(" |")
		for _, k := range keys {
			fmt.Fprintf(&buf, " %s=%v", k, entry.Fields[k])
		}
	}

	buf.WriteByte('\n')
	return buf.Bytes(), nil
}
