// Package fetch provides the backend data-fetch collaborator.
package fetch

import (
	"context"

	"github.com/capitalize-ai/conversation-dashboard/internal/model"
)

// Fetcher loads conversation data from the backend. Every method is a
// suspension point; failures are reported as *model.NetworkError.
type Fetcher interface {
	// FetchConversationsPage returns one page of the conversation list.
	FetchConversationsPage(ctx context.Context, page, limit int) (*model.ConversationsPage, error)

	// FetchConversationStates returns the state of every known conversation.
	FetchConversationStates(ctx context.Context) (map[string]model.ConversationState, error)

	// FetchMessagesPage returns one page of a conversation's messages.
	FetchMessagesPage(ctx context.Context, conversationID string, page, limit int) (*model.MessagesPage, error)
}
