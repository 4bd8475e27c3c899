// Package events broadcasts login lifecycle events to operator
// subscribers. Publishing is best-effort and never blocks a login
// attempt; slow subscribers lose events.
package events

import (
	"sync"
	"time"
)

// Event types published by the login orchestrator.
const (
	TypeAttempt     = "attempt"
	TypeDestination = "destination"
	TypeFallback    = "fallback"
	TypeComplete    = "complete"
	TypeFailed      = "failed"
)

// Event is one login lifecycle notification.
type Event struct {
	Type    string    `json:"type"`
	UserID  string    `json:"user_id,omitempty"`
	User    string    `json:"user,omitempty"`
	Region  string    `json:"region,omitempty"`
	Message string    `json:"message,omitempty"`
	Time    time.Time `json:"time"`
}

const subscriberBuffer = 32

// Hub fans events out to the currently connected subscribers.
type Hub struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[chan Event]struct{})}
}

// Publish delivers the event to every subscriber whose buffer has
// room. A nil hub is a valid no-op publisher.
func (h *Hub) Publish(ev Event) {
	if h == nil {
		return
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
			// Subscriber is not keeping up; drop rather than stall logins.
		}
	}
}

// Subscribe registers a new subscriber and returns its channel plus a
// cancel function that must be called when the subscriber goes away.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
	}
	return ch, cancel
}

// Subscribers returns the current subscriber count.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
