// Package notify fans rendered dashboard snapshots out to stream subscribers.
package notify

import (
	"sync"

	"github.com/capitalize-ai/conversation-dashboard/internal/dashboard"
)

// Hub broadcasts snapshots. Each subscriber holds at most one pending
// snapshot; a slow subscriber skips intermediate snapshots and only sees the
// newest.
type Hub struct {
	mu          sync.Mutex
	subscribers map[chan dashboard.Snapshot]struct{}
	latest      *dashboard.Snapshot
	closed      bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[chan dashboard.Snapshot]struct{}),
	}
}

// Subscribe returns a channel of snapshots and an unsubscribe function. The
// latest published snapshot, if any, is delivered immediately. The channel is
// closed on unsubscribe or when the hub closes.
func (h *Hub) Subscribe() (<-chan dashboard.Snapshot, func()) {
	ch := make(chan dashboard.Snapshot, 1)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	h.subscribers[ch] = struct{}{}
	if h.latest != nil {
		ch <- *h.latest
	}
	h.mu.Unlock()

	unsubscribe := func() {
		h.mu.Lock()
		defer h.mu.Unlock()

		// Only close if the channel is still registered
		if _, ok := h.subscribers[ch]; ok {
			delete(h.subscribers, ch)
			close(ch)
		}
	}
	return ch, unsubscribe
}

// Publish delivers snap to every subscriber without blocking. It has the
// signature of dashboard.RenderFunc.
func (h *Hub) Publish(snap dashboard.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.latest = &snap

	for ch := range h.subscribers {
		select {
		case ch <- snap:
			continue
		default:
		}
		// Replace the stale pending snapshot with the newer one.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}

// current returns the most recent snapshot.
func (h *Hub) current() (dashboard.Snapshot, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.latest == nil {
		return dashboard.Snapshot{}, false
	}
	return *h.latest, true
}

// Subscribers returns the number of active subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// Close closes every subscriber channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.subscribers {
		delete(h.subscribers, ch)
		close(ch)
	}
}
