package realtime

import (
	"testing"

	"github.com/capitalize-ai/conversation-dashboard/internal/model"
)

func TestDecodeNATSEvent(t *testing.T) {
	tests := []struct {
		name     string
		subject  string
		data     string
		wantType model.EventType
		wantErr  bool
	}{
		{
			name:     "envelope",
			subject:  "dashboard.events.new_message",
			data:     `{"type":"new_message","data":{"conversationId":"a","message":{"role":"user","content":"hi"}}}`,
			wantType: model.EventNewMessage,
		},
		{
			name:     "bare payload typed by subject",
			subject:  "dashboard.events.conversation_states_update",
			data:     `{"conversationStates":{"a":"Idle"}}`,
			wantType: model.EventConversationStatesUpdate,
		},
		{
			name:     "lifecycle without payload",
			subject:  "dashboard.events.connected",
			data:     ``,
			wantType: model.EventConnected,
		},
		{
			name:    "unknown subject",
			subject: "other.subject",
			data:    `{"conversationStates":{}}`,
			wantErr: true,
		},
		{
			name:    "invalid payload",
			subject: "dashboard.events.new_message",
			data:    `{oops`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := decodeNATSEvent(tt.subject, []byte(tt.data))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && ev.Type != tt.wantType {
				t.Errorf("Type = %q, want %q", ev.Type, tt.wantType)
			}
		})
	}
}

func TestDecodeNATSEvent_PayloadUsable(t *testing.T) {
	ev, err := decodeNATSEvent("dashboard.events.conversation_states_update", []byte(`{"conversationStates":{"a":"Idle"}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	var payload model.ConversationStatesUpdate
	if err := ev.DecodeData(&payload); err != nil {
		t.Fatalf("DecodeData: %v", err)
	}
	if payload.ConversationStates["a"] != model.StateIdle {
		t.Errorf("states = %v", payload.ConversationStates)
	}
}
