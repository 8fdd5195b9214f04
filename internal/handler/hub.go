package handler

import (
	"sync"

	"booksim/internal/service"
)

// subscription receives step events on a buffered channel.
type subscription struct {
	ch chan service.StepEvent
}

// Hub fans step events out to websocket subscribers. Broadcast never
// blocks: a subscriber with a full buffer misses the event.
type Hub struct {
	mu   sync.RWMutex
	subs map[*subscription]struct{}
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[*subscription]struct{})}
}

// Subscribe registers a new subscriber with the given channel buffer.
func (h *Hub) Subscribe(buffer int) *subscription {
	sub := &subscription{ch: make(chan service.StepEvent, buffer)}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

// Unsubscribe removes a subscriber and closes its channel.
func (h *Hub) Unsubscribe(sub *subscription) {
	h.mu.Lock()
	delete(h.subs, sub)
	h.mu.Unlock()
	close(sub.ch)
}

// Publish delivers an event to every subscriber without blocking.
// Implements service.StepPublisher.
func (h *Hub) Publish(ev service.StepEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs {
		select {
		case sub.ch <- ev:
		default:
		}
	}
}
