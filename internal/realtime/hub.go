// Package realtime provides keyed change-notification fan-out used by the
// stores and caches to emulate a real-time document store subscription.
package realtime

import "sync"

// Hub fans out values published under a key to every subscriber of that key.
// It is safe for concurrent use.
type Hub[K comparable, V any] struct {
	mu   sync.Mutex
	next uint64
	subs map[K]map[uint64]*subscription[V]
}

type subscription[V any] struct {
	mu     sync.Mutex
	closed bool
	fn     func(V)
}

// NewHub creates an empty hub.
func NewHub[K comparable, V any]() *Hub[K, V] {
	return &Hub[K, V]{subs: make(map[K]map[uint64]*subscription[V])}
}

// Subscribe registers fn for values published under key. The returned function
// removes the subscription; once it returns, fn is never invoked again. It must
// not be called from inside fn.
func (h *Hub[K, V]) Subscribe(key K, fn func(V)) (unsubscribe func()) {
	sub := &subscription[V]{fn: fn}

	h.mu.Lock()
	id := h.next
	h.next++
	if h.subs[key] == nil {
		h.subs[key] = make(map[uint64]*subscription[V])
	}
	h.subs[key][id] = sub
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[key], id)
			if len(h.subs[key]) == 0 {
				delete(h.subs, key)
			}
			h.mu.Unlock()

			// Waits for an in-progress delivery to this subscriber to finish.
			sub.mu.Lock()
			sub.closed = true
			sub.mu.Unlock()
		})
	}
}

// Publish delivers v to the current subscribers of key on the caller's goroutine.
func (h *Hub[K, V]) Publish(key K, v V) {
	h.mu.Lock()
	targets := make([]*subscription[V], 0, len(h.subs[key]))
	for _, sub := range h.subs[key] {
		targets = append(targets, sub)
	}
	h.mu.Unlock()

	for _, sub := range targets {
		sub.mu.Lock()
		if !sub.closed {
			sub.fn(v)
		}
		sub.mu.Unlock()
	}
}

// Count returns the number of live subscriptions for key.
func (h *Hub[K, V]) Count(key K) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[key])
}
