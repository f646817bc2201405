package dashboard

import (
	"context"

	"github.com/capitalize-ai/conversation-dashboard/internal/model"
	"github.com/capitalize-ai/conversation-dashboard/pkg/metrics"
)

// ApplyConversationStates replaces the state mapping with a pushed snapshot.
// Keys missing from states are dropped and read back as unknown.
func (s *ConversationSync) ApplyConversationStates(ctx context.Context, states map[string]model.ConversationState) error {
	return s.do(ctx, func() {
		s.replaceStates(states)
		s.emit(renderHints{})
	})
}

// ApplyNewMessage merges a pushed message into the selected conversation.
// Messages for any other conversation are ignored. While a message page is
// loading the message is queued and merged after that page. It reports
// whether the message was added to the store by this call.
func (s *ConversationSync) ApplyNewMessage(ctx context.Context, conversationID string, msg model.Message) (bool, error) {
	var added bool
	err := s.do(ctx, func() {
		if conversationID == "" || conversationID != s.selectedID {
			return
		}
		if s.msgCursor.IsLoading {
			s.pending = append(s.pending, msg)
			s.logger.WithConversation(conversationID).Debug("queued pushed message behind page load")
			return
		}
		if added = s.messages.AppendUnique(conversationID, msg); !added {
			metrics.PushMessagesDeduplicated.Inc()
			return
		}
		s.emit(renderHints{scrollToBottom: true})
	})
	return added, err
}
