package dashboard

import (
	"time"

	"github.com/capitalize-ai/conversation-dashboard/internal/model"
	"github.com/capitalize-ai/conversation-dashboard/internal/pagination"
)

// Snapshot is an immutable copy of everything a renderer needs.
type Snapshot struct {
	Conversations []ViewItem                         `json:"conversations"`
	TotalLoaded   int                                `json:"totalLoaded"`
	Filter        Filter                             `json:"filter"`
	States        map[string]model.ConversationState `json:"states"`

	ConversationCursor pagination.Cursor `json:"conversationCursor"`
	MessageCursor      pagination.Cursor `json:"messageCursor"`

	SelectedID string          `json:"selectedId,omitempty"`
	Messages   []model.Message `json:"messages,omitempty"`

	RealtimeEnabled bool `json:"realtimeEnabled"`
	// Empty is set when the filtered view has no conversations.
	Empty     bool   `json:"empty"`
	LastError string `json:"lastError,omitempty"`

	// ScrollToBottom asks the renderer to keep the newest message in view.
	ScrollToBottom bool `json:"scrollToBottom,omitempty"`
	// Prepended is the number of older messages just inserted at the top,
	// used to keep the scroll position stable.
	Prepended int `json:"prepended,omitempty"`

	Version     uint64    `json:"version"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// HasSelection reports whether a conversation is selected.
func (s Snapshot) HasSelection() bool {
	return s.SelectedID != ""
}

type renderHints struct {
	scrollToBottom bool
	prepended      int
}

// snapshot copies loop-owned state. Must run on the loop.
func (s *ConversationSync) snapshot(hints renderHints) Snapshot {
	items := FilterConversations(s.conversations, s.states, s.filter, s.now())

	states := make(map[string]model.ConversationState, len(s.states))
	for id, st := range s.states {
		states[id] = st
	}

	snap := Snapshot{
		Conversations:      items,
		TotalLoaded:        len(s.conversations),
		Filter:             s.filter,
		States:             states,
		ConversationCursor: *s.convCursor,
		MessageCursor:      *s.msgCursor,
		SelectedID:         s.selectedID,
		RealtimeEnabled:    s.realtimeEnabled,
		Empty:              len(items) == 0,
		ScrollToBottom:     hints.scrollToBottom,
		Prepended:          hints.prepended,
		Version:            s.version,
		GeneratedAt:        s.now(),
	}
	if s.selectedID != "" {
		snap.Messages = s.messages.Get(s.selectedID)
	}
	if s.lastErr != nil {
		snap.LastError = s.lastErr.Error()
	}
	return snap
}

// emit bumps the version and hands a snapshot to the renderer. Must run on
// the loop.
func (s *ConversationSync) emit(hints renderHints) {
	s.version++
	if s.render == nil {
		return
	}
	s.render(s.snapshot(hints))
}
