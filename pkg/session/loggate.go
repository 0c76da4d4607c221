package session

import (
	"encoding/json"

	mcperrors "github.com/mcpwire/mcpwire/pkg/errors"
	"github.com/mcpwire/mcpwire/pkg/protocol"
)

// SetLogThreshold replaces the session's protocol log threshold. It takes
// effect for the next emission; nothing is replayed or retracted. Invalid
// level names are rejected.
func (s *Session) SetLogThreshold(level protocol.LogLevel) error {
	if err := protocol.ValidateLogLevel(level); err != nil {
		return mcperrors.Wrap(err, mcperrors.CodeInvalidParams, "invalid log level", mcperrors.CategoryValidation)
	}
	s.thresholdMu.Lock()
	s.threshold = level
	s.thresholdMu.Unlock()
	return nil
}

// LogThreshold returns the current protocol log threshold.
func (s *Session) LogThreshold() protocol.LogLevel {
	s.thresholdMu.RLock()
	defer s.thresholdMu.RUnlock()
	return s.threshold
}

// LogMessage emits a notifications/message event to the peer, but only
// when the level meets the session's threshold. Suppressed messages are
// dropped, never queued. The data payload is arbitrary structured content.
func (s *Session) LogMessage(level protocol.LogLevel, logger string, data any) error {
	if err := protocol.ValidateLogLevel(level); err != nil {
		return mcperrors.Wrap(err, mcperrors.CodeInvalidParams, "invalid log level", mcperrors.CategoryValidation)
	}
	if !level.Meets(s.LogThreshold()) {
		return nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return mcperrors.Wrap(err, mcperrors.CodeInternalError, "failed to marshal log data", mcperrors.CategoryInternal)
	}
	return s.Notify(protocol.NotificationMessage, protocol.LoggingMessageParams{
		Level:  level,
		Logger: logger,
		Data:   raw,
	})
}
