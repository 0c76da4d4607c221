package server

import (
	"sort"
	"sync"

	"github.com/mcpwire/mcpwire/pkg/protocol"
)

// registry is an ordered map from stable string key to a registered entry.
// Listings iterate keys in sorted order, which keeps pagination cursors
// stable across pages of the same snapshot. onChange fires once per key-set
// mutation: adding a new key or removing an existing one. Replacing the
// entry under an existing key keeps the key set, so peers are not notified.
type registry[T any] struct {
	kind string

	mu      sync.RWMutex
	entries map[string]T

	onChange func()
}

func newRegistry[T any](kind string, onChange func()) *registry[T] {
	return &registry[T]{
		kind:     kind,
		entries:  make(map[string]T),
		onChange: onChange,
	}
}

func (r *registry[T]) set(key string, entry T) {
	r.mu.Lock()
	_, existed := r.entries[key]
	r.entries[key] = entry
	r.mu.Unlock()
	if !existed {
		r.onChange()
	}
}

func (r *registry[T]) remove(key string) {
	r.mu.Lock()
	_, existed := r.entries[key]
	delete(r.entries, key)
	r.mu.Unlock()
	if existed {
		r.onChange()
	}
}

func (r *registry[T]) get(key string) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[key]
	return entry, ok
}

func (r *registry[T]) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

func (r *registry[T]) sortedKeys() []string {
	r.mu.RLock()
	keys := make([]string, 0, len(r.entries))
	for key := range r.entries {
		keys = append(keys, key)
	}
	r.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

// page returns up to pageSize entries following the cursor's continuation
// key, plus the cursor for the next page when more entries remain. A nil
// cursor starts at the beginning; a cursor issued by a different registry
// kind is rejected.
func (r *registry[T]) page(cursor *protocol.Cursor, pageSize int) ([]T, protocol.Cursor, error) {
	start := 0
	keys := r.sortedKeys()
	if cursor != nil {
		lastKey, err := decodeCursor(r.kind, *cursor)
		if err != nil {
			return nil, "", err
		}
		// Resume strictly after the continuation key; a deleted key still
		// positions the page correctly.
		start = sort.SearchStrings(keys, lastKey)
		if start < len(keys) && keys[start] == lastKey {
			start++
		}
	}

	end := start + pageSize
	if end > len(keys) {
		end = len(keys)
	}

	r.mu.RLock()
	items := make([]T, 0, end-start)
	for _, key := range keys[start:end] {
		if entry, ok := r.entries[key]; ok {
			items = append(items, entry)
		}
	}
	r.mu.RUnlock()

	var next protocol.Cursor
	if end < len(keys) {
		next = encodeCursor(r.kind, keys[end-1])
	}
	return items, next, nil
}
