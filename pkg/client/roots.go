package client

import (
	"sort"
	"sync"

	"github.com/mcpwire/mcpwire/pkg/protocol"
)

// rootSet is the client-owned map of roots keyed by URI. Key-set mutations
// emit notifications/roots/list_changed so the server knows to re-query
// roots/list; replacing a root's name under an existing URI stays silent.
type rootSet struct {
	mu    sync.RWMutex
	roots map[string]protocol.Root

	notifier interface {
		Notify(method string, params any) error
	}
}

func newRootSet(notifier interface {
	Notify(method string, params any) error
}) *rootSet {
	return &rootSet{
		roots:    make(map[string]protocol.Root),
		notifier: notifier,
	}
}

func (r *rootSet) add(root protocol.Root) {
	r.mu.Lock()
	_, existed := r.roots[root.URI]
	r.roots[root.URI] = root
	r.mu.Unlock()
	if !existed {
		r.announce()
	}
}

func (r *rootSet) remove(uri string) {
	r.mu.Lock()
	_, existed := r.roots[uri]
	delete(r.roots, uri)
	r.mu.Unlock()
	if existed {
		r.announce()
	}
}

func (r *rootSet) list() []protocol.Root {
	r.mu.RLock()
	roots := make([]protocol.Root, 0, len(r.roots))
	for _, root := range r.roots {
		roots = append(roots, root)
	}
	r.mu.RUnlock()
	sort.Slice(roots, func(i, j int) bool { return roots[i].URI < roots[j].URI })
	return roots
}

func (r *rootSet) announce() {
	// Best effort: the server may re-query at any time anyway.
	_ = r.notifier.Notify(protocol.NotificationRootsListChanged, nil)
}
