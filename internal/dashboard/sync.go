// Package dashboard keeps the render-ready state of the conversation
// dashboard: the paginated conversation list, the selected conversation's
// messages and the conversation state mapping.
//
// All state lives on one event-loop goroutine. Public methods hand closures
// to the loop and wait for them; network calls happen on the caller's
// goroutine between an admission step and an apply step, so the loop is never
// blocked on I/O.
package dashboard

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/conversation-dashboard/internal/fetch"
	"github.com/capitalize-ai/conversation-dashboard/internal/model"
	"github.com/capitalize-ai/conversation-dashboard/internal/pagination"
	"github.com/capitalize-ai/conversation-dashboard/internal/store"
	"github.com/capitalize-ai/conversation-dashboard/pkg/logger"
)

var (
	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("dashboard: closed")

	// ErrStaleSubject marks a fetch result whose subject was superseded while
	// it was in flight. It is never returned from public methods.
	ErrStaleSubject = errors.New("dashboard: stale subject")
)

const (
	listConversations = "conversations"
	listMessages      = "messages"

	DefaultConversationPageSize = 10
	DefaultMessagePageSize      = 50
)

// RenderFunc receives a new snapshot whenever the filtered conversation view
// or the selected conversation's messages change. It runs on the event loop
// and must not call back into ConversationSync.
type RenderFunc func(Snapshot)

// Options configures a ConversationSync.
type Options struct {
	ConversationPageSize int
	MessagePageSize      int
	Render               RenderFunc
	// Now overrides the clock used by the time filter.
	Now func() time.Time
}

// realtimeAware is implemented by fetchers whose caching depends on whether
// push updates are flowing.
type realtimeAware interface {
	SetRealtime(enabled bool)
}

// invalidator is implemented by fetchers that cache responses.
type invalidator interface {
	Invalidate()
}

// statesInvalidator is implemented by fetchers that cache the state mapping.
type statesInvalidator interface {
	InvalidateStates()
}

// ConversationSync drives conversation-list and message-list pagination,
// merges fetched pages and push updates, and renders snapshots.
type ConversationSync struct {
	fetcher fetch.Fetcher
	render  RenderFunc
	now     func() time.Time
	logger  *logger.Logger

	ops       chan func()
	done      chan struct{}
	closeOnce sync.Once
	ready     atomic.Bool

	// Owned by the event loop.
	conversations   []model.Conversation
	states          map[string]model.ConversationState
	statesGen       uint64
	messages        *store.MessageStore
	convCursor      *pagination.Cursor
	msgCursor       *pagination.Cursor
	selectedID      string
	filter          Filter
	realtimeEnabled bool
	lastErr         error
	pending         []model.Message
	version         uint64
}

// NewConversationSync creates the sync and starts its event loop. Call Close
// to stop it.
func NewConversationSync(fetcher fetch.Fetcher, opts Options, log *logger.Logger) *ConversationSync {
	if opts.ConversationPageSize <= 0 {
		opts.ConversationPageSize = DefaultConversationPageSize
	}
	if opts.MessagePageSize <= 0 {
		opts.MessagePageSize = DefaultMessagePageSize
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if log == nil {
		log = logger.NewNop()
	}

	s := &ConversationSync{
		fetcher:    fetcher,
		render:     opts.Render,
		now:        opts.Now,
		logger:     log.Named("dashboard"),
		ops:        make(chan func()),
		done:       make(chan struct{}),
		states:     make(map[string]model.ConversationState),
		messages:   store.NewMessageStore(),
		convCursor: pagination.New(opts.ConversationPageSize),
		msgCursor:  pagination.New(opts.MessagePageSize),
		filter:     Filter{Status: StatusAll},
	}
	go s.run()
	return s
}

func (s *ConversationSync) run() {
	for {
		select {
		case fn := <-s.ops:
			fn()
		case <-s.done:
			return
		}
	}
}

// do runs fn on the event loop and waits for it. Once the loop accepts fn it
// always runs to completion, even if ctx is cancelled meanwhile.
func (s *ConversationSync) do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	op := func() {
		defer close(finished)
		fn()
	}

	select {
	case s.ops <- op:
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	<-finished
	return nil
}

// apply runs the second half of a load on the loop. It ignores caller
// cancellation so that an admitted load is always settled.
func (s *ConversationSync) apply(fn func()) error {
	return s.do(context.Background(), fn)
}

// Close stops the event loop. Pending and future calls return ErrClosed.
func (s *ConversationSync) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}

// Ready reports whether the first conversation page has loaded.
func (s *ConversationSync) Ready() bool {
	return s.ready.Load()
}

// SetFilter changes the filter used for rendered snapshots.
func (s *ConversationSync) SetFilter(ctx context.Context, filter Filter) error {
	return s.do(ctx, func() {
		s.filter = filter.normalized()
		s.emit(renderHints{})
	})
}

// FilteredView evaluates a filter against the current list and states without
// changing the rendered filter.
func (s *ConversationSync) FilteredView(ctx context.Context, filter Filter) ([]ViewItem, error) {
	var items []ViewItem
	err := s.do(ctx, func() {
		items = FilterConversations(s.conversations, s.states, filter, s.now())
	})
	return items, err
}

// Snapshot returns the current render snapshot.
func (s *ConversationSync) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := s.do(ctx, func() {
		snap = s.snapshot(renderHints{})
	})
	return snap, err
}

// SetRealtimeEnabled records whether the push channel is connected and
// adjusts the fetcher's cache freshness.
func (s *ConversationSync) SetRealtimeEnabled(ctx context.Context, enabled bool) error {
	return s.do(ctx, func() {
		if s.realtimeEnabled == enabled {
			return
		}
		s.realtimeEnabled = enabled
		if ra, ok := s.fetcher.(realtimeAware); ok {
			ra.SetRealtime(enabled)
		}
		s.logger.Info("realtime mode changed", zap.Bool("enabled", enabled))
		s.emit(renderHints{})
	})
}

// RealtimeEnabled reports the current realtime flag.
func (s *ConversationSync) RealtimeEnabled(ctx context.Context) (bool, error) {
	var enabled bool
	err := s.do(ctx, func() {
		enabled = s.realtimeEnabled
	})
	return enabled, err
}

// asNetworkError classifies a fetch failure. Caller cancellation passes
// through unchanged.
func asNetworkError(op string, err error) error {
	var ne *model.NetworkError
	if errors.As(err, &ne) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &model.NetworkError{Op: op, Err: err}
}
