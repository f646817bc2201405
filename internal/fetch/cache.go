package fetch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/capitalize-ai/conversation-dashboard/internal/model"
	"github.com/capitalize-ai/conversation-dashboard/pkg/metrics"
)

// Freshness windows. Push updates keep data current while realtime is up, so
// cached responses may live longer.
const (
	DefaultRealtimeTTL = 30 * time.Second
	DefaultPollingTTL  = 5 * time.Second
)

type cacheEntry struct {
	value     any
	fetchedAt time.Time
}

// CachedClient wraps a Fetcher with a response cache for the conversation
// list and the state mapping. Message pages are never cached.
type CachedClient struct {
	next        Fetcher
	realtimeTTL time.Duration
	pollingTTL  time.Duration
	now         func() time.Time

	mu       sync.Mutex
	realtime bool
	entries  map[string]cacheEntry
}

// NewCachedClient creates a cache in polling mode.
func NewCachedClient(next Fetcher, realtimeTTL, pollingTTL time.Duration) *CachedClient {
	if realtimeTTL <= 0 {
		realtimeTTL = DefaultRealtimeTTL
	}
	if pollingTTL <= 0 {
		pollingTTL = DefaultPollingTTL
	}
	return &CachedClient{
		next:        next,
		realtimeTTL: realtimeTTL,
		pollingTTL:  pollingTTL,
		now:         time.Now,
		entries:     make(map[string]cacheEntry),
	}
}

// SetRealtime switches between the realtime and polling freshness windows.
// Leaving realtime mode drops the cached state mapping, since pushed updates
// have superseded it.
func (c *CachedClient) SetRealtime(enabled bool) {
	c.mu.Lock()
	wasRealtime := c.realtime
	c.realtime = enabled
	c.mu.Unlock()

	if wasRealtime && !enabled {
		c.InvalidateStates()
	}
}

// TTL returns the freshness window currently in force.
func (c *CachedClient) TTL() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ttlLocked()
}

func (c *CachedClient) ttlLocked() time.Duration {
	if c.realtime {
		return c.realtimeTTL
	}
	return c.pollingTTL
}

// Invalidate drops every cached response.
func (c *CachedClient) Invalidate() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
}

// InvalidateStates drops the cached state mapping.
func (c *CachedClient) InvalidateStates() {
	c.mu.Lock()
	delete(c.entries, opStates)
	c.mu.Unlock()
}

func (c *CachedClient) lookup(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok || c.now().Sub(entry.fetchedAt) >= c.ttlLocked() {
		metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()
		return nil, false
	}
	metrics.CacheLookupsTotal.WithLabelValues("hit").Inc()
	return entry.value, true
}

// store records value as of started, the time its fetch began, so the fetch
// duration does not extend the freshness window.
func (c *CachedClient) store(key string, value any, started time.Time) {
	c.mu.Lock()
	c.entries[key] = cacheEntry{value: value, fetchedAt: started}
	c.mu.Unlock()
}

// FetchConversationsPage implements Fetcher.
func (c *CachedClient) FetchConversationsPage(ctx context.Context, page, limit int) (*model.ConversationsPage, error) {
	key := fmt.Sprintf("%s:%d:%d", opConversations, page, limit)
	if v, ok := c.lookup(key); ok {
		cached := v.(model.ConversationsPage)
		cached.Items = append([]model.Conversation(nil), cached.Items...)
		return &cached, nil
	}

	started := c.now()
	res, err := c.next.FetchConversationsPage(ctx, page, limit)
	if err != nil {
		return nil, err
	}
	snapshot := *res
	snapshot.Items = append([]model.Conversation(nil), res.Items...)
	c.store(key, snapshot, started)
	return res, nil
}

// FetchConversationStates implements Fetcher.
func (c *CachedClient) FetchConversationStates(ctx context.Context) (map[string]model.ConversationState, error) {
	if v, ok := c.lookup(opStates); ok {
		return copyStates(v.(map[string]model.ConversationState)), nil
	}

	started := c.now()
	res, err := c.next.FetchConversationStates(ctx)
	if err != nil {
		return nil, err
	}
	c.store(opStates, copyStates(res), started)
	return res, nil
}

// FetchMessagesPage implements Fetcher without caching.
func (c *CachedClient) FetchMessagesPage(ctx context.Context, conversationID string, page, limit int) (*model.MessagesPage, error) {
	return c.next.FetchMessagesPage(ctx, conversationID, page, limit)
}

func copyStates(in map[string]model.ConversationState) map[string]model.ConversationState {
	out := make(map[string]model.ConversationState, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
