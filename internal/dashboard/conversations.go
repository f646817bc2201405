package dashboard

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/capitalize-ai/conversation-dashboard/internal/model"
	"github.com/capitalize-ai/conversation-dashboard/pkg/metrics"
)

// LoadNextConversationPage fetches the next page of the conversation list and
// appends it. It returns false with a nil error when the cursor refused the
// load because one is already in flight or the list is exhausted. On failure
// the cursor is rolled back so the same page can be retried, and the loaded
// list is kept.
func (s *ConversationSync) LoadNextConversationPage(ctx context.Context) (bool, error) {
	var (
		admitted    bool
		page, limit int
		gen         uint64
	)
	err := s.do(ctx, func() {
		if admitted = s.convCursor.BeginLoad(); !admitted {
			return
		}
		page, limit, gen = s.convCursor.Page, s.convCursor.Limit, s.convCursor.Generation()
		s.emit(renderHints{})
	})
	if err != nil {
		return false, err
	}
	if !admitted {
		metrics.RecordPageLoad(listConversations, "gated")
		return false, nil
	}

	res, fetchErr := s.fetcher.FetchConversationsPage(ctx, page, limit)

	var loadErr error
	err = s.apply(func() {
		if gen != s.convCursor.Generation() {
			loadErr = ErrStaleSubject
			return
		}
		if fetchErr != nil {
			s.convCursor.FailLoad()
			loadErr = asNetworkError("load conversations", fetchErr)
			if model.IsNetworkError(loadErr) {
				s.lastErr = loadErr
			}
			s.emit(renderHints{})
			return
		}

		s.appendConversations(res.Items)
		s.convCursor.CompleteLoad(res.HasMore)
		s.lastErr = nil
		s.ready.Store(true)
		s.emit(renderHints{})
	})
	if err != nil {
		return false, err
	}

	switch {
	case errors.Is(loadErr, ErrStaleSubject):
		metrics.RecordPageLoad(listConversations, "stale")
		metrics.StaleResultsTotal.WithLabelValues(listConversations).Inc()
		s.logger.Debug("discarded stale conversation page", zap.Int("page", page))
		return false, nil
	case loadErr != nil:
		metrics.RecordPageLoad(listConversations, "error")
		s.logger.Warn("conversation page load failed", zap.Int("page", page), zap.Error(loadErr))
		return false, loadErr
	}

	metrics.RecordPageLoad(listConversations, "success")
	s.logger.Debug("conversation page loaded",
		zap.Int("page", page),
		zap.Int("items", len(res.Items)),
		zap.Bool("has_more", res.HasMore),
	)
	return true, nil
}

// appendConversations adds a page to the accumulated list. An ID already in
// the list is replaced wholesale at its existing position, since backend
// pages can shift when conversations are created between requests.
func (s *ConversationSync) appendConversations(items []model.Conversation) {
	index := make(map[string]int, len(s.conversations))
	for i, c := range s.conversations {
		index[c.ID] = i
	}
	for _, c := range items {
		if i, ok := index[c.ID]; ok {
			s.conversations[i] = c
			continue
		}
		index[c.ID] = len(s.conversations)
		s.conversations = append(s.conversations, c)
	}
}

// ReloadConversations discards the conversation list, the message store and
// the selection, drops cached responses and loads the first page again
// together with fresh states.
func (s *ConversationSync) ReloadConversations(ctx context.Context) error {
	err := s.do(ctx, func() {
		s.conversations = nil
		s.messages.ClearAll()
		s.selectedID = ""
		s.pending = nil
		s.lastErr = nil
		s.convCursor.Reset("")
		s.msgCursor.Reset("")
		if inv, ok := s.fetcher.(invalidator); ok {
			inv.Invalidate()
		}
		s.emit(renderHints{})
	})
	if err != nil {
		return err
	}
	s.logger.Info("conversation list reloaded")

	_, loadErr := s.LoadNextConversationPage(ctx)
	return errors.Join(loadErr, s.RefreshStates(ctx))
}

// RefreshStates fetches the full state mapping from the backend, bypassing
// any cached copy, and replaces the current one. A push update applied while
// the fetch is in flight wins over the fetched mapping.
func (s *ConversationSync) RefreshStates(ctx context.Context) error {
	var gen uint64
	if err := s.do(ctx, func() {
		gen = s.statesGen
	}); err != nil {
		return err
	}

	if inv, ok := s.fetcher.(statesInvalidator); ok {
		inv.InvalidateStates()
	}
	states, fetchErr := s.fetcher.FetchConversationStates(ctx)
	if fetchErr != nil {
		err := asNetworkError("load conversation states", fetchErr)
		s.logger.Warn("conversation state refresh failed", zap.Error(err))
		return err
	}

	var stale bool
	err := s.apply(func() {
		if gen != s.statesGen {
			stale = true
			return
		}
		s.replaceStates(states)
		s.emit(renderHints{})
	})
	if err != nil {
		return err
	}
	if stale {
		metrics.StaleResultsTotal.WithLabelValues("states").Inc()
		s.logger.Debug("discarded stale conversation states")
	}
	return nil
}

// replaceStates installs an authoritative state mapping. Must run on the loop.
func (s *ConversationSync) replaceStates(states map[string]model.ConversationState) {
	next := make(map[string]model.ConversationState, len(states))
	for id, st := range states {
		next[id] = st
	}
	s.states = next
	s.statesGen++
}
