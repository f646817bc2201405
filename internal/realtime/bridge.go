// Package realtime turns push notifications from the backend into dashboard
// state changes and falls back to polling while the push channel is down.
package realtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/conversation-dashboard/internal/model"
	"github.com/capitalize-ai/conversation-dashboard/pkg/logger"
	"github.com/capitalize-ai/conversation-dashboard/pkg/metrics"
)

// DefaultPollInterval is the state refresh period while disconnected.
const DefaultPollInterval = 5 * time.Second

// Target receives normalized push updates. *dashboard.ConversationSync
// implements it.
type Target interface {
	ApplyConversationStates(ctx context.Context, states map[string]model.ConversationState) error
	ApplyNewMessage(ctx context.Context, conversationID string, msg model.Message) (bool, error)
	SetRealtimeEnabled(ctx context.Context, enabled bool) error
	RefreshStates(ctx context.Context) error
}

// Bridge dispatches push events to a Target and runs the fallback poller.
type Bridge struct {
	target       Target
	pollInterval time.Duration
	logger       *logger.Logger

	base   context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	connected bool
	stopPoll  context.CancelFunc
	pollDone  chan struct{}
}

// NewBridge creates a bridge. It starts disconnected and without a poller;
// call OnDisconnected to begin polling until a source connects.
func NewBridge(target Target, pollInterval time.Duration, log *logger.Logger) *Bridge {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	if log == nil {
		log = logger.NewNop()
	}
	base, cancel := context.WithCancel(context.Background())
	return &Bridge{
		target:       target,
		pollInterval: pollInterval,
		logger:       log.Named("realtime"),
		base:         base,
		cancel:       cancel,
	}
}

// OnConversationStatesUpdate replaces the state mapping with a pushed one.
func (b *Bridge) OnConversationStatesUpdate(ctx context.Context, states map[string]model.ConversationState) error {
	return b.target.ApplyConversationStates(ctx, states)
}

// OnNewMessage merges a pushed message if it belongs to the selected
// conversation.
func (b *Bridge) OnNewMessage(ctx context.Context, conversationID string, msg model.Message) (bool, error) {
	return b.target.ApplyNewMessage(ctx, conversationID, msg)
}

// OnConnected enables realtime mode and tears down the fallback poller.
func (b *Bridge) OnConnected(ctx context.Context) error {
	b.mu.Lock()
	b.connected = true
	b.stopPollingLocked()
	b.mu.Unlock()

	metrics.SetRealtimeConnected(true)
	b.logger.Info("realtime channel connected")
	return b.target.SetRealtimeEnabled(ctx, true)
}

// OnDisconnected disables realtime mode and starts the fallback poller.
func (b *Bridge) OnDisconnected(ctx context.Context) error {
	b.mu.Lock()
	b.connected = false
	b.startPollingLocked()
	b.mu.Unlock()

	metrics.SetRealtimeConnected(false)
	b.logger.Info("realtime channel disconnected, polling",
		zap.Duration("interval", b.pollInterval),
	)
	return b.target.SetRealtimeEnabled(ctx, false)
}

// Connected reports whether the push channel is up.
func (b *Bridge) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

// polling reports whether the fallback poller is running.
func (b *Bridge) polling() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stopPoll != nil
}

// Handle decodes a wire event and dispatches it. Unknown event types are
// logged and ignored.
func (b *Bridge) Handle(ctx context.Context, ev model.Event) error {
	switch ev.Type {
	case model.EventConversationStatesUpdate:
		metrics.PushEventsTotal.WithLabelValues(string(ev.Type)).Inc()
		var payload model.ConversationStatesUpdate
		if err := ev.DecodeData(&payload); err != nil {
			return err
		}
		return b.OnConversationStatesUpdate(ctx, payload.ConversationStates)

	case model.EventNewMessage:
		metrics.PushEventsTotal.WithLabelValues(string(ev.Type)).Inc()
		var payload model.NewMessage
		if err := ev.DecodeData(&payload); err != nil {
			return err
		}
		if payload.ConversationID == "" {
			return fmt.Errorf("event %s: missing conversationId", ev.Type)
		}
		_, err := b.OnNewMessage(ctx, payload.ConversationID, payload.Message)
		return err

	case model.EventConnected:
		metrics.PushEventsTotal.WithLabelValues(string(ev.Type)).Inc()
		return b.OnConnected(ctx)

	case model.EventDisconnected:
		metrics.PushEventsTotal.WithLabelValues(string(ev.Type)).Inc()
		return b.OnDisconnected(ctx)

	default:
		metrics.PushEventsTotal.WithLabelValues("unknown").Inc()
		b.logger.Debug("ignoring unknown event", zap.String("type", string(ev.Type)))
		return nil
	}
}

// Close stops the poller. The bridge must not be used afterwards.
func (b *Bridge) Close() {
	b.cancel()
	b.mu.Lock()
	b.stopPollingLocked()
	b.mu.Unlock()
}

func (b *Bridge) startPollingLocked() {
	if b.stopPoll != nil || b.base.Err() != nil {
		return
	}
	ctx, cancel := context.WithCancel(b.base)
	done := make(chan struct{})
	b.stopPoll = cancel
	b.pollDone = done
	go b.poll(ctx, done)
}

// stopPollingLocked cancels the poller and waits for an in-progress refresh
// so that no poll result lands after realtime mode is enabled.
func (b *Bridge) stopPollingLocked() {
	if b.stopPoll == nil {
		return
	}
	b.stopPoll()
	<-b.pollDone
	b.stopPoll = nil
	b.pollDone = nil
}

func (b *Bridge) poll(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(b.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			status := "success"
			if err := b.target.RefreshStates(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				status = "error"
				b.logger.Warn("fallback poll failed", zap.Error(err))
			}
			metrics.FallbackPollsTotal.WithLabelValues(status).Inc()
		}
	}
}
