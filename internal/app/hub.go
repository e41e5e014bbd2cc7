package app

import (
	"sync"

	"quizhub-service/internal/domain"
)

// Hub fans standings out to live subscribers, keyed by leaderboard scope.
// It implements Notifier.
type Hub struct {
	mu          sync.Mutex
	subscribers map[domain.Scope]map[chan domain.Standings]struct{}
}

var _ Notifier = (*Hub)(nil)

func NewHub() *Hub {
	return &Hub{subscribers: make(map[domain.Scope]map[chan domain.Standings]struct{})}
}

// Subscribe returns a channel that receives standings for scope.
// The caller must invoke the returned cancel function to avoid leaks.
func (h *Hub) Subscribe(scope domain.Scope) (<-chan domain.Standings, func()) {
	ch := make(chan domain.Standings, 8)

	h.mu.Lock()
	subs, ok := h.subscribers[scope]
	if !ok {
		subs = make(map[chan domain.Standings]struct{})
		h.subscribers[scope] = subs
	}
	subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		subs := h.subscribers[scope]
		if _, ok := subs[ch]; !ok {
			return
		}
		delete(subs, ch)
		close(ch)
		if len(subs) == 0 {
			delete(h.subscribers, scope)
		}
	}
	return ch, cancel
}

// Publish delivers st to every subscriber of its scope without blocking.
// A subscriber that has fallen behind loses its oldest pending snapshot.
func (h *Hub) Publish(st domain.Standings) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subscribers[st.Scope] {
		select {
		case ch <- st:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- st
		}
	}
}

// Subscribers reports how many channels listen on scope.
func (h *Hub) Subscribers(scope domain.Scope) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers[scope])
}
