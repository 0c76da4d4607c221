package server

import (
	"sync"

	"github.com/mcpwire/mcpwire/pkg/logging"
	"github.com/mcpwire/mcpwire/pkg/session"
)

// broadcaster fans list-changed and resource-updated events out to every
// connected session. Registries call it from their mutate path, so one
// mutation yields exactly one notification per connected peer.
type broadcaster struct {
	mu       sync.RWMutex
	sessions map[string]*session.Session

	logger logging.Logger
}

func newBroadcaster(logger logging.Logger) *broadcaster {
	return &broadcaster{
		sessions: make(map[string]*session.Session),
		logger:   logger,
	}
}

func (b *broadcaster) attach(s *session.Session) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sessions[s.ID()] = s
}

func (b *broadcaster) detach(s *session.Session) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.sessions, s.ID())
}

func (b *broadcaster) snapshot() []*session.Session {
	b.mu.RLock()
	defer b.mu.RUnlock()
	sessions := make([]*session.Session, 0, len(b.sessions))
	for _, s := range b.sessions {
		sessions = append(sessions, s)
	}
	return sessions
}

// broadcast sends one notification to every connected session. A send
// failure on one session never blocks the others.
func (b *broadcaster) broadcast(method string, params any) {
	for _, s := range b.snapshot() {
		if err := s.Notify(method, params); err != nil {
			b.logger.Warn("failed to broadcast notification",
				logging.String("method", method),
				logging.String("session", s.ID()),
				logging.ErrorField(err))
		}
	}
}

// resourceUpdated emits notifications/resources/updated to the sessions
// currently subscribed to the URI; each session applies its own gate.
func (b *broadcaster) resourceUpdated(uri string) {
	for _, s := range b.snapshot() {
		if err := s.NotifyResourceUpdated(uri); err != nil {
			b.logger.Warn("failed to send resource update",
				logging.String("uri", uri),
				logging.String("session", s.ID()),
				logging.ErrorField(err))
		}
	}
}
