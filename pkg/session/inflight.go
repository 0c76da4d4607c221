package session

import (
	"context"
	"sync"
)

// inflightRequests tracks the cancel functions of inbound requests whose
// handlers are still running, keyed by request id. notifications/cancelled
// looks its target up here.
type inflightRequests struct {
	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

func newInflightRequests() *inflightRequests {
	return &inflightRequests{cancels: make(map[string]context.CancelFunc)}
}

func (r *inflightRequests) add(key string, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancels[key] = cancel
}

func (r *inflightRequests) remove(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cancels, key)
}

// cancel fires the cancel function for a request id key if its handler is
// still running. Unknown keys are a no-op: the handler may have finished
// while the cancellation was in flight.
func (r *inflightRequests) cancel(key string) bool {
	r.mu.Lock()
	cancel, ok := r.cancels[key]
	r.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}
