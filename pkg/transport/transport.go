// Package transport provides the duplex message channels the engine runs
// over. A Transport moves opaque message payloads between two peers with
// per-direction FIFO ordering; framing, reconnection and authentication are
// its concern alone; the session layer above sees only ordered payloads.
package transport

import (
	"context"
	"errors"
)

// ReceiveHandler processes one raw incoming message payload. Handlers are
// invoked sequentially in arrival order from the transport's read loop.
type ReceiveHandler func(data []byte)

// ErrorHandler receives transport-level failures that are not tied to a
// specific send call, such as read-loop decode problems.
type ErrorHandler func(err error)

// Transport is a duplex ordered message channel. Implementations must
// deliver sent payloads to the remote peer in send order.
type Transport interface {
	// Start begins the receive loop. It blocks until the context is
	// cancelled, Stop is called, or the channel fails.
	Start(ctx context.Context) error

	// Stop halts the transport and releases its resources. Safe to call
	// more than once.
	Stop(ctx context.Context) error

	// Send enqueues one message payload for delivery to the remote peer.
	Send(ctx context.Context, data []byte) error

	// SetReceiveHandler registers the handler for incoming payloads. Must
	// be called before Start.
	SetReceiveHandler(handler ReceiveHandler)

	// SetErrorHandler registers the handler for asynchronous failures.
	SetErrorHandler(handler ErrorHandler)
}

// ErrClosed is returned by Send after the transport has stopped.
var ErrClosed = errors.New("transport closed")
