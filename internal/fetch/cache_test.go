package fetch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/capitalize-ai/conversation-dashboard/internal/model"
)

type countingFetcher struct {
	conversationCalls int
	stateCalls        int
	messageCalls      int
	fail              bool
}

func (f *countingFetcher) FetchConversationsPage(ctx context.Context, page, limit int) (*model.ConversationsPage, error) {
	f.conversationCalls++
	if f.fail {
		return nil, &model.NetworkError{Op: opConversations, Err: errors.New("down")}
	}
	return &model.ConversationsPage{
		Items: []model.Conversation{{ID: "c1"}},
		Page:  page,
	}, nil
}

func (f *countingFetcher) FetchConversationStates(ctx context.Context) (map[string]model.ConversationState, error) {
	f.stateCalls++
	return map[string]model.ConversationState{"c1": model.StateIdle}, nil
}

func (f *countingFetcher) FetchMessagesPage(ctx context.Context, conversationID string, page, limit int) (*model.MessagesPage, error) {
	f.messageCalls++
	return &model.MessagesPage{}, nil
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestCache(next Fetcher) (*CachedClient, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewCachedClient(next, 30*time.Second, 5*time.Second)
	c.now = clock.now
	return c, clock
}

func TestCachedClient_PollingWindow(t *testing.T) {
	next := &countingFetcher{}
	c, clock := newTestCache(next)
	ctx := context.Background()

	c.FetchConversationStates(ctx)
	clock.advance(4 * time.Second)
	c.FetchConversationStates(ctx)
	if next.stateCalls != 1 {
		t.Fatalf("expected cache hit inside the polling window, got %d calls", next.stateCalls)
	}

	clock.advance(2 * time.Second)
	c.FetchConversationStates(ctx)
	if next.stateCalls != 2 {
		t.Fatalf("expected refetch after the polling window, got %d calls", next.stateCalls)
	}
}

func TestCachedClient_RealtimeWindow(t *testing.T) {
	next := &countingFetcher{}
	c, clock := newTestCache(next)
	c.SetRealtime(true)
	ctx := context.Background()

	if c.TTL() != 30*time.Second {
		t.Fatalf("TTL() = %v, want 30s", c.TTL())
	}

	c.FetchConversationsPage(ctx, 0, 10)
	clock.advance(20 * time.Second)
	c.FetchConversationsPage(ctx, 0, 10)
	if next.conversationCalls != 1 {
		t.Fatalf("expected cache hit inside the realtime window, got %d calls", next.conversationCalls)
	}

	c.FetchConversationsPage(ctx, 1, 10)
	if next.conversationCalls != 2 {
		t.Fatalf("different page should miss, got %d calls", next.conversationCalls)
	}
}

func TestCachedClient_ReturnsCopies(t *testing.T) {
	next := &countingFetcher{}
	c, _ := newTestCache(next)
	ctx := context.Background()

	states, _ := c.FetchConversationStates(ctx)
	states["c1"] = model.StateWorking

	again, _ := c.FetchConversationStates(ctx)
	if again["c1"] != model.StateIdle {
		t.Errorf("cached state mutated through returned map: %v", again)
	}
}

func TestCachedClient_ErrorsNotCached(t *testing.T) {
	next := &countingFetcher{fail: true}
	c, _ := newTestCache(next)
	ctx := context.Background()

	if _, err := c.FetchConversationsPage(ctx, 0, 10); err == nil {
		t.Fatal("expected error")
	}
	next.fail = false
	if _, err := c.FetchConversationsPage(ctx, 0, 10); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if next.conversationCalls != 2 {
		t.Errorf("failed fetch should not be cached, got %d calls", next.conversationCalls)
	}
}

func TestCachedClient_InvalidateAndMessages(t *testing.T) {
	next := &countingFetcher{}
	c, _ := newTestCache(next)
	ctx := context.Background()

	c.FetchConversationStates(ctx)
	c.InvalidateStates()
	c.FetchConversationStates(ctx)
	if next.stateCalls != 2 {
		t.Errorf("InvalidateStates should force a refetch, got %d calls", next.stateCalls)
	}

	c.FetchConversationsPage(ctx, 0, 10)
	c.Invalidate()
	c.FetchConversationsPage(ctx, 0, 10)
	if next.conversationCalls != 2 {
		t.Errorf("Invalidate should force a refetch, got %d calls", next.conversationCalls)
	}

	c.FetchMessagesPage(ctx, "c1", 0, 10)
	c.FetchMessagesPage(ctx, "c1", 0, 10)
	if next.messageCalls != 2 {
		t.Errorf("message pages should not be cached, got %d calls", next.messageCalls)
	}
}

func TestCachedClient_LeavingRealtimeDropsStates(t *testing.T) {
	next := &countingFetcher{}
	c, _ := newTestCache(next)
	ctx := context.Background()

	c.SetRealtime(true)
	c.FetchConversationStates(ctx)
	c.FetchConversationsPage(ctx, 0, 10)

	c.SetRealtime(false)
	c.FetchConversationStates(ctx)
	c.FetchConversationsPage(ctx, 0, 10)
	if next.stateCalls != 2 {
		t.Errorf("states should be refetched after leaving realtime, got %d calls", next.stateCalls)
	}
	if next.conversationCalls != 1 {
		t.Errorf("conversation pages should stay cached, got %d calls", next.conversationCalls)
	}
}

// slowStatesFetcher advances the clock by latency on every states fetch.
type slowStatesFetcher struct {
	countingFetcher
	clock   *fakeClock
	latency time.Duration
}

func (f *slowStatesFetcher) FetchConversationStates(ctx context.Context) (map[string]model.ConversationState, error) {
	f.clock.advance(f.latency)
	return f.countingFetcher.FetchConversationStates(ctx)
}

func TestCachedClient_WindowStartsAtFetchStart(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	next := &slowStatesFetcher{clock: clock, latency: 50 * time.Millisecond}
	c := NewCachedClient(next, 30*time.Second, 5*time.Second)
	c.now = clock.now
	ctx := context.Background()

	// Lookups every 5s, matching the default poll interval, each reach the backend.
	start := clock.t
	for tick := 1; tick <= 4; tick++ {
		clock.t = start.Add(time.Duration(tick) * 5 * time.Second)
		c.FetchConversationStates(ctx)
		if next.stateCalls != tick {
			t.Fatalf("tick %d: backend calls = %d, want %d", tick, next.stateCalls, tick)
		}
	}
}
