package session

import (
	"fmt"

	mcperrors "github.com/mcpwire/mcpwire/pkg/errors"
)

// CancelledError is the terminal state of a call abandoned locally, by
// explicit cancellation or timeout. It is distinct from a remote rejection
// (*protocol.Error) so callers can tell "I gave up" from "the peer refused".
type CancelledError struct {
	Reason string
}

// Error implements the error interface.
func (e *CancelledError) Error() string {
	if e.Reason == "" {
		return "request cancelled"
	}
	return fmt.Sprintf("request cancelled: %s", e.Reason)
}

// ErrConnectionClosed settles every outstanding request when the session's
// channel closes. Matched with errors.Is.
var ErrConnectionClosed = mcperrors.New(
	mcperrors.CodeConnectionClosed,
	"connection closed",
	mcperrors.CategoryTransport,
)
