package session

import (
	"encoding/json"

	"github.com/mcpwire/mcpwire/pkg/protocol"
)

// pendingRequest tracks one outbound request from submission to its single
// terminal state. It is owned by the session's correlation table: removal
// from the table and settlement happen together, so a pending request can
// never transition twice.
type pendingRequest struct {
	id     protocol.RequestID
	method string
	token  protocol.ProgressToken
	start  int64 // monotonic nanos at submission, for metrics

	// done is closed exactly once, after result/err are set.
	done   chan struct{}
	result json.RawMessage
	err    error
}

func newPendingRequest(id protocol.RequestID, method string, token protocol.ProgressToken, start int64) *pendingRequest {
	return &pendingRequest{
		id:     id,
		method: method,
		token:  token,
		start:  start,
		done:   make(chan struct{}),
	}
}

// settle records the terminal state and wakes the waiting caller. The
// caller must have already removed the pending request from the table;
// settle is never invoked twice for the same request.
func (p *pendingRequest) settle(result json.RawMessage, err error) {
	p.result = result
	p.err = err
	close(p.done)
}
