package transport

import (
	"context"
	"sync"
)

const pipeBuffer = 64

// PipeTransport is one end of an in-process duplex channel. Messages sent on
// one end arrive at the other in send order. It backs integration tests and
// in-process embedding, where client and server share an address space.
type PipeTransport struct {
	out chan<- []byte
	in  <-chan []byte

	mu           sync.Mutex
	receiver     ReceiveHandler
	errorHandler ErrorHandler

	done     chan struct{}
	peerDone chan struct{}
	stopOnce sync.Once
}

// Pipe creates a connected pair of transports. Closing either end makes
// sends on both ends fail with ErrClosed once buffers drain.
func Pipe() (*PipeTransport, *PipeTransport) {
	ab := make(chan []byte, pipeBuffer)
	ba := make(chan []byte, pipeBuffer)
	a := &PipeTransport{out: ab, in: ba, done: make(chan struct{})}
	b := &PipeTransport{out: ba, in: ab, done: make(chan struct{})}
	a.peerDone = b.done
	b.peerDone = a.done
	return a, b
}

// SetReceiveHandler registers the handler for incoming payloads.
func (t *PipeTransport) SetReceiveHandler(handler ReceiveHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.receiver = handler
}

// SetErrorHandler registers the handler for asynchronous failures.
func (t *PipeTransport) SetErrorHandler(handler ErrorHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.errorHandler = handler
}

// Start delivers incoming payloads to the receive handler, in order, until
// the pipe closes or the context is cancelled.
func (t *PipeTransport) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.done:
			return nil
		case data, ok := <-t.in:
			if !ok {
				return nil
			}
			t.deliver(data)
		case <-t.peerDone:
			// Drain what the peer sent before closing, then return.
			for {
				select {
				case data := <-t.in:
					t.deliver(data)
				default:
					return nil
				}
			}
		}
	}
}

func (t *PipeTransport) deliver(data []byte) {
	t.mu.Lock()
	receiver := t.receiver
	t.mu.Unlock()
	if receiver != nil {
		receiver(data)
	}
}

// Stop closes this end of the pipe.
func (t *PipeTransport) Stop(ctx context.Context) error {
	t.stopOnce.Do(func() {
		close(t.done)
	})
	return nil
}

// Send enqueues a payload for the peer. The payload is copied so the caller
// may reuse its buffer.
func (t *PipeTransport) Send(ctx context.Context, data []byte) error {
	buf := make([]byte, len(data))
	copy(buf, data)

	// Closure wins over a ready buffer slot.
	select {
	case <-t.done:
		return ErrClosed
	case <-t.peerDone:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	select {
	case <-t.done:
		return ErrClosed
	case <-t.peerDone:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	case t.out <- buf:
		return nil
	}
}
