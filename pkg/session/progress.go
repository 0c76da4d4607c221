package session

import (
	"sync"

	"github.com/mcpwire/mcpwire/pkg/protocol"
)

// ProgressFunc observes progress notifications for one outstanding call.
// Invocations arrive in notification order, before the call's terminal
// result; the engine applies no deduplication or monotonicity checks.
type ProgressFunc func(params protocol.ProgressParams)

// progressRegistry maps progress tokens to the observer of the originating
// request. A token is attached at submission and detached at the terminal
// state, so late notifications find no observer and are dropped.
type progressRegistry struct {
	mu        sync.Mutex
	observers map[string]ProgressFunc
}

func newProgressRegistry() *progressRegistry {
	return &progressRegistry{observers: make(map[string]ProgressFunc)}
}

func (r *progressRegistry) attach(token protocol.ProgressToken, fn ProgressFunc) {
	if !token.IsValid() || fn == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers[token.Key()] = fn
}

func (r *progressRegistry) detach(token protocol.ProgressToken) {
	if !token.IsValid() {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.observers, token.Key())
}

// deliver forwards one progress notification to its observer, reporting
// whether an observer existed. Delivery happens on the session's dispatch
// goroutine so observers see events in arrival order.
func (r *progressRegistry) deliver(params protocol.ProgressParams) bool {
	r.mu.Lock()
	fn, ok := r.observers[params.ProgressToken.Key()]
	r.mu.Unlock()
	if !ok {
		return false
	}
	fn(params)
	return true
}

// ProgressReporter lets an inbound request handler stream progress back to
// the caller that supplied a progress token.
type ProgressReporter struct {
	session *Session
	token   protocol.ProgressToken
}

// Token returns the caller-chosen token this reporter echoes.
func (r *ProgressReporter) Token() protocol.ProgressToken {
	return r.token
}

// Report emits one notifications/progress event carrying the reporter's
// token. Reporting after the caller abandoned the call is harmless: the
// caller drops notifications for tokens that are no longer outstanding.
func (r *ProgressReporter) Report(progress float64, total *float64, message string) error {
	return r.session.Notify(protocol.NotificationProgress, protocol.ProgressParams{
		ProgressToken: r.token,
		Progress:      progress,
		Total:         total,
		Message:       message,
	})
}
