package notify

import (
	"testing"

	"github.com/capitalize-ai/conversation-dashboard/internal/dashboard"
)

func TestHub_SubscribeReceivesLatest(t *testing.T) {
	h := NewHub()
	h.Publish(dashboard.Snapshot{Version: 1})

	ch, unsubscribe := h.Subscribe()
	defer unsubscribe()

	snap := <-ch
	if snap.Version != 1 {
		t.Errorf("Version = %d, want 1", snap.Version)
	}
}

func TestHub_SlowSubscriberSeesNewest(t *testing.T) {
	h := NewHub()
	ch, unsubscribe := h.Subscribe()
	defer unsubscribe()

	for v := uint64(1); v <= 5; v++ {
		h.Publish(dashboard.Snapshot{Version: v})
	}

	snap := <-ch
	if snap.Version != 5 {
		t.Errorf("Version = %d, want 5", snap.Version)
	}
	select {
	case extra := <-ch:
		t.Errorf("unexpected extra snapshot %d", extra.Version)
	default:
	}
}

func TestHub_Unsubscribe(t *testing.T) {
	h := NewHub()
	ch, unsubscribe := h.Subscribe()
	if h.Subscribers() != 1 {
		t.Fatalf("Subscribers() = %d", h.Subscribers())
	}

	unsubscribe()
	unsubscribe()

	if _, ok := <-ch; ok {
		t.Error("channel should be closed")
	}
	if h.Subscribers() != 0 {
		t.Errorf("Subscribers() = %d after unsubscribe", h.Subscribers())
	}
	h.Publish(dashboard.Snapshot{Version: 2})
}

func TestHub_Close(t *testing.T) {
	h := NewHub()
	ch, unsubscribe := h.Subscribe()
	defer unsubscribe()

	h.Close()
	if _, ok := <-ch; ok {
		t.Error("channel should be closed")
	}

	late, _ := h.Subscribe()
	if _, ok := <-late; ok {
		t.Error("subscribe after close should return a closed channel")
	}
	if _, ok := h.current(); ok {
		t.Error("no snapshot was published")
	}
}
