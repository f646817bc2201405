package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType represents the type of a push event.
type EventType string

const (
	EventConversationStatesUpdate EventType = "conversation_states_update"
	EventNewMessage               EventType = "new_message"
	EventConnected                EventType = "connected"
	EventDisconnected             EventType = "disconnected"
)

// Event is a server-originated update delivered over the push channel.
type Event struct {
	Type      EventType       `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp,omitempty"`
}

// ConversationStatesUpdate is the payload of a conversation_states_update event.
type ConversationStatesUpdate struct {
	ConversationStates map[string]ConversationState `json:"conversationStates"`
}

// NewMessage is the payload of a new_message event.
type NewMessage struct {
	ConversationID string  `json:"conversationId"`
	Message        Message `json:"message"`
}

// DecodeData unmarshals the event payload into v.
func (e Event) DecodeData(v any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("event %s has no data", e.Type)
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return nil
}

// NewEvent builds an event with a JSON-encoded payload.
func NewEvent(eventType EventType, data any) (Event, error) {
	ev := Event{Type: eventType, Timestamp: time.Now()}
	if data == nil {
		return ev, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Event{}, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	ev.Data = raw
	return ev, nil
}
