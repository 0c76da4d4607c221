package session

import "sync"

// subscriptionSet is the per-session membership set of resource URIs the
// peer has subscribed to. It holds no business data about the resources,
// only identifiers; subscribe and unsubscribe are idempotent.
type subscriptionSet struct {
	mu   sync.RWMutex
	uris map[string]struct{}
}

func newSubscriptionSet() *subscriptionSet {
	return &subscriptionSet{uris: make(map[string]struct{})}
}

func (s *subscriptionSet) add(uri string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uris[uri] = struct{}{}
}

func (s *subscriptionSet) remove(uri string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.uris, uri)
}

func (s *subscriptionSet) contains(uri string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.uris[uri]
	return ok
}

func (s *subscriptionSet) list() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	uris := make([]string, 0, len(s.uris))
	for uri := range s.uris {
		uris = append(uris, uri)
	}
	return uris
}
