package dashboard

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/capitalize-ai/conversation-dashboard/internal/model"
	"github.com/capitalize-ai/conversation-dashboard/pkg/metrics"
)

// ErrNoConversation is returned when selecting an empty conversation id.
var ErrNoConversation = errors.New("dashboard: conversation id required")

// SelectConversation makes id the selected conversation, drops the messages
// cached for it and for the previous selection, and loads its newest page.
// Loads still in flight for the previous selection are discarded when they
// return.
func (s *ConversationSync) SelectConversation(ctx context.Context, id string) error {
	if id == "" {
		return ErrNoConversation
	}

	err := s.do(ctx, func() {
		if s.selectedID != "" && s.selectedID != id {
			s.messages.Clear(s.selectedID)
		}
		s.messages.Clear(id)
		s.selectedID = id
		s.pending = nil
		s.msgCursor.Reset(id)
		s.emit(renderHints{})
	})
	if err != nil {
		return err
	}
	s.logger.WithConversation(id).Debug("conversation selected")

	_, err = s.LoadNextMessagePage(ctx, id, true)
	return err
}

// LoadNextMessagePage loads a page of messages for the selected conversation.
// The initial page replaces the cached messages; later pages hold older
// messages and are prepended. A response without pagination metadata is
// treated as the complete history. It returns false with a nil error when
// the load was refused or its result was discarded as stale.
func (s *ConversationSync) LoadNextMessagePage(ctx context.Context, id string, initial bool) (bool, error) {
	var (
		admitted    bool
		replace     bool
		page, limit int
		gen         uint64
	)
	err := s.do(ctx, func() {
		if id == "" || id != s.selectedID || s.msgCursor.SubjectID != id {
			return
		}
		if admitted = s.msgCursor.BeginLoad(); !admitted {
			return
		}
		replace = initial || s.msgCursor.Page == 0
		page, limit, gen = s.msgCursor.Page, s.msgCursor.Limit, s.msgCursor.Generation()
		s.emit(renderHints{})
	})
	if err != nil {
		return false, err
	}
	if !admitted {
		metrics.RecordPageLoad(listMessages, "gated")
		return false, nil
	}

	res, fetchErr := s.fetcher.FetchMessagesPage(ctx, id, page, limit)

	var loadErr error
	err = s.apply(func() {
		if gen != s.msgCursor.Generation() || id != s.selectedID {
			loadErr = ErrStaleSubject
			return
		}
		if fetchErr != nil {
			s.msgCursor.FailLoad()
			loadErr = asNetworkError("load messages", fetchErr)
			if model.IsNetworkError(loadErr) {
				s.lastErr = loadErr
			}
			s.emit(renderHints{scrollToBottom: s.flushPending(id)})
			return
		}

		hints := renderHints{}
		if replace {
			s.messages.Replace(id, res.Messages)
			hints.scrollToBottom = true
		} else {
			s.messages.Prepend(id, res.Messages)
			hints.prepended = len(res.Messages)
		}
		s.msgCursor.CompleteLoad(res.HasMore())
		s.lastErr = nil
		if s.flushPending(id) {
			hints.scrollToBottom = true
		}
		s.emit(hints)
	})
	if err != nil {
		return false, err
	}

	switch {
	case errors.Is(loadErr, ErrStaleSubject):
		metrics.RecordPageLoad(listMessages, "stale")
		metrics.StaleResultsTotal.WithLabelValues(listMessages).Inc()
		s.logger.WithConversation(id).Debug("discarded stale message page", zap.Int("page", page))
		return false, nil
	case loadErr != nil:
		metrics.RecordPageLoad(listMessages, "error")
		s.logger.WithConversation(id).Warn("message page load failed",
			zap.Int("page", page),
			zap.Error(loadErr),
		)
		return false, loadErr
	}

	metrics.RecordPageLoad(listMessages, "success")
	return true, nil
}

// flushPending applies push messages that arrived while a page load was in
// flight. It reports whether any were added. Must run on the loop.
func (s *ConversationSync) flushPending(id string) bool {
	queued := s.pending
	s.pending = nil

	added := false
	for _, msg := range queued {
		if s.messages.AppendUnique(id, msg) {
			added = true
			continue
		}
		metrics.PushMessagesDeduplicated.Inc()
	}
	return added
}
