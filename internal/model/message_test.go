package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestContent_UnmarshalString(t *testing.T) {
	var msg Message
	data := `{"role":"user","timestamp":"2026-01-02T03:04:05Z","content":"fix bug in parser"}`
	if err := json.Unmarshal([]byte(data), &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if msg.Content.IsBlocks() {
		t.Fatal("expected string content")
	}
	if msg.Content.Text() != "fix bug in parser" {
		t.Errorf("Text() = %q", msg.Content.Text())
	}
	if msg.Role != RoleUser {
		t.Errorf("Role = %q, want user", msg.Role)
	}
}

func TestContent_UnmarshalBlocks(t *testing.T) {
	data := `[
		{"type":"text","text":"Running tests"},
		{"type":"tool_use","id":"toolu_1","name":"Bash","input":{"command":"go test ./..."}},
		{"type":"tool_result","tool_use_id":"toolu_1","is_error":true,"content":[{"type":"text","text":"FAIL"}]},
		{"type":"thinking","thinking":"hmm"}
	]`

	var c Content
	if err := json.Unmarshal([]byte(data), &c); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	blocks := c.Blocks()
	if len(blocks) != 4 {
		t.Fatalf("expected 4 blocks, got %d", len(blocks))
	}

	if blocks[0].Type != BlockText || blocks[0].Text != "Running tests" {
		t.Errorf("block 0 = %+v", blocks[0])
	}

	use := blocks[1]
	if use.Type != BlockToolUse || use.ID != "toolu_1" || use.Name != "Bash" {
		t.Errorf("block 1 = %+v", use)
	}
	var input map[string]string
	if err := json.Unmarshal(use.Input, &input); err != nil || input["command"] != "go test ./..." {
		t.Errorf("tool input = %s (%v)", use.Input, err)
	}

	result := blocks[2]
	if result.Type != BlockToolResult || result.ToolUseID != "toolu_1" || !result.IsError {
		t.Errorf("block 2 = %+v", result)
	}
	if result.Result == nil || result.Result.PlainText() != "FAIL" {
		t.Errorf("tool result content = %+v", result.Result)
	}

	if blocks[3].Type != BlockUnsupported || blocks[3].OriginalType != "thinking" {
		t.Errorf("unknown tag should normalize to unsupported, got %+v", blocks[3])
	}

	if got := c.PlainText(); got != "Running tests" {
		t.Errorf("PlainText() = %q", got)
	}
	if uses := c.ToolUses(); len(uses) != 1 || uses[0].Name != "Bash" {
		t.Errorf("ToolUses() = %+v", uses)
	}
}

func TestContent_UnmarshalNullAndObject(t *testing.T) {
	var c Content
	if err := json.Unmarshal([]byte(`null`), &c); err != nil {
		t.Fatalf("null: %v", err)
	}
	if c.IsBlocks() || c.Text() != "" {
		t.Errorf("null should decode to empty text, got %+v", c)
	}

	if err := json.Unmarshal([]byte(`{"type":"text","text":"solo"}`), &c); err != nil {
		t.Fatalf("object: %v", err)
	}
	if !c.IsBlocks() || c.PlainText() != "solo" {
		t.Errorf("single object should decode to one block, got %+v", c)
	}

	if err := json.Unmarshal([]byte(`42`), &c); err == nil {
		t.Error("expected error for numeric content")
	}
}

func TestContent_MarshalPreservesShape(t *testing.T) {
	tests := []struct {
		name    string
		content Content
		want    string
	}{
		{name: "string", content: TextContent("hi"), want: `"hi"`},
		{name: "blocks", content: BlockContent(TextBlock("hi")), want: `[{"type":"text","text":"hi"}]`},
		{name: "empty blocks", content: BlockContent(), want: `[]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := json.Marshal(tt.content)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestMessage_Matches(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name string
		a, b Message
		want bool
	}{
		{
			name: "same id",
			a:    Message{ID: "m1", Role: RoleUser, Timestamp: ts},
			b:    Message{ID: "m1", Role: RoleAssistant, Timestamp: ts.Add(time.Hour)},
			want: true,
		},
		{
			name: "no id, same timestamp and role",
			a:    Message{Role: RoleAssistant, Timestamp: ts},
			b:    Message{Role: RoleAssistant, Timestamp: ts.In(time.FixedZone("x", 3600))},
			want: true,
		},
		{
			name: "no id, same timestamp, different role",
			a:    Message{Role: RoleUser, Timestamp: ts},
			b:    Message{Role: RoleAssistant, Timestamp: ts},
			want: false,
		},
		{
			name: "different ids and timestamps",
			a:    Message{ID: "m1", Role: RoleUser, Timestamp: ts},
			b:    Message{ID: "m2", Role: RoleUser, Timestamp: ts.Add(time.Second)},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Matches(tt.b); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		state ConversationState
		want  StateCategory
	}{
		{StateWorking, CategoryActive},
		{StateAwaitingInput, CategoryActive},
		{StateTyping, CategoryActive},
		{StateAwaitingResponse, CategoryActive},
		{StateRecentlyActive, CategoryActive},
		{StateIdle, CategoryInactive},
		{StateInactive, CategoryInactive},
		{StateOld, CategoryInactive},
		{StateUnknown, CategoryInactive},
		{"Something new", CategoryInactive},
	}

	for _, tt := range tests {
		if got := Classify(tt.state); got != tt.want {
			t.Errorf("Classify(%q) = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestStateOf_MissingKeyIsUnknown(t *testing.T) {
	states := map[string]ConversationState{"a": StateIdle}

	if got := StateOf(states, "a"); got != StateIdle {
		t.Errorf("StateOf(a) = %q", got)
	}
	if got := StateOf(states, "b"); got != StateUnknown {
		t.Errorf("StateOf(b) = %q, want unknown", got)
	}
	if got := StateOf(nil, "b"); got != StateUnknown {
		t.Errorf("StateOf(nil) = %q, want unknown", got)
	}
}

func TestEvent_DecodeData(t *testing.T) {
	ev, err := NewEvent(EventNewMessage, NewMessage{
		ConversationID: "conv-1",
		Message:        Message{ID: "m1", Role: RoleAssistant, Content: TextContent("done")},
	})
	if err != nil {
		t.Fatalf("NewEvent: %v", err)
	}

	var payload NewMessage
	if err := ev.DecodeData(&payload); err != nil {
		t.Fatalf("DecodeData: %v", err)
	}
	if payload.ConversationID != "conv-1" || payload.Message.Content.Text() != "done" {
		t.Errorf("payload = %+v", payload)
	}

	empty := Event{Type: EventNewMessage}
	if err := empty.DecodeData(&payload); err == nil {
		t.Error("expected error for missing data")
	}
}
