package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/capitalize-ai/conversation-dashboard/internal/model"
)

type pushedMessage struct {
	conversationID string
	msg            model.Message
}

type fakeTarget struct {
	mu        sync.Mutex
	states    []map[string]model.ConversationState
	messages  []pushedMessage
	realtime  []bool
	refreshes int

	refreshed chan struct{}
	events    chan string
}

func newFakeTarget() *fakeTarget {
	return &fakeTarget{
		refreshed: make(chan struct{}, 16),
		events:    make(chan string, 16),
	}
}

func (f *fakeTarget) ApplyConversationStates(ctx context.Context, states map[string]model.ConversationState) error {
	f.mu.Lock()
	f.states = append(f.states, states)
	f.mu.Unlock()
	f.emit("states")
	return nil
}

func (f *fakeTarget) ApplyNewMessage(ctx context.Context, conversationID string, msg model.Message) (bool, error) {
	f.mu.Lock()
	f.messages = append(f.messages, pushedMessage{conversationID, msg})
	f.mu.Unlock()
	f.emit("message")
	return true, nil
}

func (f *fakeTarget) SetRealtimeEnabled(ctx context.Context, enabled bool) error {
	f.mu.Lock()
	f.realtime = append(f.realtime, enabled)
	f.mu.Unlock()
	if enabled {
		f.emit("connected")
	} else {
		f.emit("disconnected")
	}
	return nil
}

func (f *fakeTarget) RefreshStates(ctx context.Context) error {
	f.mu.Lock()
	f.refreshes++
	f.mu.Unlock()
	select {
	case f.refreshed <- struct{}{}:
	default:
	}
	return nil
}

// emit records a call without blocking the caller once the buffer is full.
func (f *fakeTarget) emit(name string) {
	select {
	case f.events <- name:
	default:
	}
}

func (f *fakeTarget) refreshCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshes
}

func waitEvent(t *testing.T, ch <-chan string, want string) {
	t.Helper()
	select {
	case got := <-ch:
		if got != want {
			t.Fatalf("event = %q, want %q", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %q", want)
	}
}

func mustEvent(t *testing.T, eventType model.EventType, data any) model.Event {
	t.Helper()
	ev, err := model.NewEvent(eventType, data)
	if err != nil {
		t.Fatalf("NewEvent: %v", err)
	}
	return ev
}

func TestBridge_HandleDispatches(t *testing.T) {
	target := newFakeTarget()
	b := NewBridge(target, time.Hour, nil)
	defer b.Close()
	ctx := context.Background()

	states := model.ConversationStatesUpdate{ConversationStates: map[string]model.ConversationState{
		"a": model.StateWorking,
	}}
	if err := b.Handle(ctx, mustEvent(t, model.EventConversationStatesUpdate, states)); err != nil {
		t.Fatalf("states: %v", err)
	}
	waitEvent(t, target.events, "states")

	msg := model.NewMessage{ConversationID: "a", Message: model.Message{ID: "m1", Role: model.RoleUser}}
	if err := b.Handle(ctx, mustEvent(t, model.EventNewMessage, msg)); err != nil {
		t.Fatalf("new message: %v", err)
	}
	waitEvent(t, target.events, "message")

	if target.states[0]["a"] != model.StateWorking {
		t.Errorf("states = %v", target.states[0])
	}
	if target.messages[0].conversationID != "a" || target.messages[0].msg.ID != "m1" {
		t.Errorf("messages = %+v", target.messages)
	}
}

func TestBridge_HandleRejectsBadPayloads(t *testing.T) {
	b := NewBridge(newFakeTarget(), time.Hour, nil)
	defer b.Close()
	ctx := context.Background()

	tests := []struct {
		name string
		ev   model.Event
	}{
		{"states without data", model.Event{Type: model.EventConversationStatesUpdate}},
		{"message with bad json", model.Event{Type: model.EventNewMessage, Data: json.RawMessage(`[1,2]`)}},
		{"message without conversation", model.Event{Type: model.EventNewMessage, Data: json.RawMessage(`{"message":{"role":"user"}}`)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := b.Handle(ctx, tt.ev); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestBridge_HandleIgnoresUnknownType(t *testing.T) {
	target := newFakeTarget()
	b := NewBridge(target, time.Hour, nil)
	defer b.Close()

	if err := b.Handle(context.Background(), model.Event{Type: "typing_indicator"}); err != nil {
		t.Errorf("unknown type should be ignored, got %v", err)
	}
	if len(target.events) != 0 {
		t.Errorf("unknown type reached the target")
	}
}

func TestBridge_FallbackPolling(t *testing.T) {
	target := newFakeTarget()
	b := NewBridge(target, 10*time.Millisecond, nil)
	defer b.Close()
	ctx := context.Background()

	if err := b.OnDisconnected(ctx); err != nil {
		t.Fatalf("OnDisconnected: %v", err)
	}
	waitEvent(t, target.events, "disconnected")
	if !b.polling() || b.Connected() {
		t.Fatal("expected polling while disconnected")
	}

	for i := 0; i < 2; i++ {
		select {
		case <-target.refreshed:
		case <-time.After(2 * time.Second):
			t.Fatal("poller did not refresh states")
		}
	}

	// A second disconnect must not start a second poller.
	b.OnDisconnected(ctx)
	waitEvent(t, target.events, "disconnected")

	if err := b.OnConnected(ctx); err != nil {
		t.Fatalf("OnConnected: %v", err)
	}
	waitEvent(t, target.events, "connected")
	if b.polling() || !b.Connected() {
		t.Fatal("poller should stop on connect")
	}

	after := target.refreshCount()
	time.Sleep(50 * time.Millisecond)
	if got := target.refreshCount(); got != after {
		t.Errorf("poller kept running after connect: %d -> %d refreshes", after, got)
	}
}

func TestBridge_CloseStopsPolling(t *testing.T) {
	target := newFakeTarget()
	b := NewBridge(target, 10*time.Millisecond, nil)

	b.OnDisconnected(context.Background())
	b.Close()
	if b.polling() {
		t.Error("Close should stop the poller")
	}

	b.OnDisconnected(context.Background())
	if b.polling() {
		t.Error("closed bridge should not restart polling")
	}
}
