// Package store provides the per-conversation message cache.
package store

import (
	"github.com/capitalize-ai/conversation-dashboard/internal/model"
)

// MessageStore maps a conversation ID to its ordered messages.
//
// It has no locking of its own: the dashboard event loop is its only writer
// and reader.
type MessageStore struct {
	messages map[string][]model.Message
}

// NewMessageStore creates an empty store.
func NewMessageStore() *MessageStore {
	return &MessageStore{
		messages: make(map[string][]model.Message),
	}
}

// Get returns a copy of the messages for a conversation, oldest first.
func (s *MessageStore) Get(conversationID string) []model.Message {
	msgs := s.messages[conversationID]
	out := make([]model.Message, len(msgs))
	copy(out, msgs)
	return out
}

// Len returns the number of cached messages for a conversation.
func (s *MessageStore) Len(conversationID string) int {
	return len(s.messages[conversationID])
}

// has reports whether the conversation has an entry, even an empty one.
func (s *MessageStore) has(conversationID string) bool {
	_, ok := s.messages[conversationID]
	return ok
}

// Replace discards prior content for the conversation.
func (s *MessageStore) Replace(conversationID string, messages []model.Message) {
	out := make([]model.Message, len(messages))
	copy(out, messages)
	s.messages[conversationID] = out
}

// AppendUnique appends the message unless one already matches it by ID or by
// (timestamp, role). It reports whether the message was added.
func (s *MessageStore) AppendUnique(conversationID string, message model.Message) bool {
	existing := s.messages[conversationID]
	for _, m := range existing {
		if m.Matches(message) {
			return false
		}
	}
	s.messages[conversationID] = append(existing, message)
	return true
}

// Prepend places older messages before the existing ones, keeping their
// relative order.
func (s *MessageStore) Prepend(conversationID string, older []model.Message) {
	existing := s.messages[conversationID]
	out := make([]model.Message, 0, len(older)+len(existing))
	out = append(out, older...)
	out = append(out, existing...)
	s.messages[conversationID] = out
}

// Clear drops the entry for one conversation.
func (s *MessageStore) Clear(conversationID string) {
	delete(s.messages, conversationID)
}

// ClearAll drops every entry.
func (s *MessageStore) ClearAll() {
	s.messages = make(map[string][]model.Message)
}
