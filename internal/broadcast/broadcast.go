// Package broadcast fans events out to connected listeners in-process.
package broadcast

import (
	"sync"
	"sync/atomic"
)

// subscriberBuffer bounds each listener channel; slow listeners drop events
// rather than blocking emitters.
const subscriberBuffer = 16

// Message is one emitted event.
type Message struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

// Hub delivers emitted messages to every current subscriber. Delivery is
// best-effort: there is no queueing or redelivery.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[uint64]chan Message
	nextID      atomic.Uint64
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subscribers: make(map[uint64]chan Message)}
}

// Subscribe registers a listener and returns its id and channel.
func (h *Hub) Subscribe() (uint64, <-chan Message) {
	id := h.nextID.Add(1)
	ch := make(chan Message, subscriberBuffer)

	h.mu.Lock()
	h.subscribers[id] = ch
	h.mu.Unlock()

	return id, ch
}

// Unsubscribe removes a listener and closes its channel.
func (h *Hub) Unsubscribe(id uint64) {
	h.mu.Lock()
	if ch, ok := h.subscribers[id]; ok {
		close(ch)
		delete(h.subscribers, id)
	}
	h.mu.Unlock()
}

// Emit delivers the event to all subscribers, skipping any whose buffer is
// full.
func (h *Hub) Emit(event string, payload any) {
	msg := Message{Event: event, Payload: payload}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subscribers {
		select {
		case ch <- msg:
		default:
		}
	}
}

// SubscriberCount reports the current number of listeners.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Close drops and closes every subscriber channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subscribers {
		close(ch)
		delete(h.subscribers, id)
	}
}
