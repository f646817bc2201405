package view

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/capitalize-ai/conversation-dashboard/internal/dashboard"
	"github.com/capitalize-ai/conversation-dashboard/internal/model"
	"github.com/capitalize-ai/conversation-dashboard/internal/pagination"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func baseSnapshot() dashboard.Snapshot {
	return dashboard.Snapshot{
		Conversations: []dashboard.ViewItem{
			{
				Conversation: model.Conversation{ID: "a", Title: "fix bug", Project: "parser", LastModified: now.Add(-2 * time.Hour)},
				State:        model.StateWorking,
				Category:     model.CategoryActive,
			},
			{
				Conversation: model.Conversation{ID: "b-long-conversation-id", LastModified: now.Add(-30 * time.Second)},
				State:        model.StateUnknown,
				Category:     model.CategoryInactive,
			},
		},
		TotalLoaded:        2,
		ConversationCursor: pagination.Cursor{Page: 1, Limit: 10, HasMore: true},
		GeneratedAt:        now,
		Version:            7,
	}
}

func TestBuild_ListOnly(t *testing.T) {
	vm := Build(baseSnapshot())

	if vm.Detail != nil || vm.Empty != nil || vm.Error != nil {
		t.Errorf("optional regions should be nil: detail=%v empty=%v error=%v", vm.Detail, vm.Empty, vm.Error)
	}
	if len(vm.List.Rows) != 2 || !vm.List.HasMore || vm.Version != 7 {
		t.Fatalf("unexpected list: %+v", vm.List)
	}

	a := vm.List.Rows[0]
	if !a.Active || a.StateClass != "state-working" || a.UpdatedAgo != "2 hours ago" {
		t.Errorf("row a = %+v", a)
	}
	b := vm.List.Rows[1]
	if b.Title != "b-long-co..." || b.UpdatedAgo != "just now" || b.StateClass != "state-unknown" {
		t.Errorf("row b = %+v", b)
	}
	if vm.Header.ActiveCount != 1 || vm.Header.ConnectionLabel != "Polling" {
		t.Errorf("header = %+v", vm.Header)
	}
}

func TestBuild_EmptyAndError(t *testing.T) {
	snap := baseSnapshot()
	snap.Conversations = nil
	snap.Empty = true
	snap.LastError = "load conversations: unexpected status 503"

	vm := Build(snap)
	if vm.Empty == nil || !vm.Empty.Filtered {
		t.Errorf("expected filtered empty state, got %+v", vm.Empty)
	}
	if vm.Error == nil || !vm.Error.Retryable {
		t.Errorf("expected retryable error banner, got %+v", vm.Error)
	}

	snap.TotalLoaded = 0
	if vm := Build(snap); vm.Empty.Filtered {
		t.Error("nothing loaded should not read as filtered")
	}
}

func TestBuild_Detail(t *testing.T) {
	snap := baseSnapshot()
	snap.SelectedID = "a"
	snap.MessageCursor = pagination.Cursor{Page: 1, Limit: 50, HasMore: true, SubjectID: "a"}
	snap.ScrollToBottom = true
	snap.Messages = []model.Message{
		{ID: "m1", Role: model.RoleUser, Timestamp: now, Content: model.TextContent("please **fix** <script>alert(1)</script>")},
		{
			ID:    "m2",
			Role:  model.RoleAssistant,
			Model: "claude-sonnet",
			Usage: &model.TokenUsage{InputTokens: 1200, OutputTokens: 300},
			Content: model.BlockContent(
				model.TextBlock("Running the tests"),
				model.ToolUseBlock("tu1", "Bash", json.RawMessage(`{"command":"go test ./..."}`)),
				model.ToolResultBlock("tu1", true, model.TextContent("FAIL")),
				model.ContentBlock{Type: model.BlockUnsupported, OriginalType: "thinking"},
			),
		},
	}

	vm := Build(snap)
	if vm.Detail == nil {
		t.Fatal("expected detail region")
	}
	d := vm.Detail
	if d.Title != "fix bug" || !d.HasOlder || !d.ScrollToBottom || d.TotalTokens != "1.5K" {
		t.Errorf("detail = %+v", d)
	}
	if !vm.List.Rows[0].Selected {
		t.Error("selected row not marked")
	}

	html := string(d.Messages[0].Blocks[0].HTML)
	if !strings.Contains(html, "<strong>fix</strong>") {
		t.Errorf("markdown not rendered: %s", html)
	}
	if strings.Contains(html, "<script>") {
		t.Errorf("unsafe HTML kept: %s", html)
	}

	if tools := d.Messages[1].Tools; len(tools) != 1 || tools[0] != "Bash" {
		t.Errorf("tools = %v", tools)
	}
	if d.Messages[0].Tools != nil {
		t.Errorf("text message lists tools %v", d.Messages[0].Tools)
	}

	blocks := d.Messages[1].Blocks
	if len(blocks) != 4 {
		t.Fatalf("got %d blocks", len(blocks))
	}
	if blocks[1].ToolName != "Bash" || !strings.Contains(blocks[1].Input, "\n  \"command\"") {
		t.Errorf("tool_use block = %+v", blocks[1])
	}
	if !blocks[2].IsError || blocks[2].Output != "FAIL" {
		t.Errorf("tool_result block = %+v", blocks[2])
	}
	if blocks[3].Kind != "unsupported" || blocks[3].OriginalType != "thinking" {
		t.Errorf("unsupported block = %+v", blocks[3])
	}
	if d.Messages[1].Tokens != "1.5K" {
		t.Errorf("tokens = %q", d.Messages[1].Tokens)
	}
}

func TestFormatHelpers(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"tokens small", formatTokens(999), "999"},
		{"tokens thousands", formatTokens(1500), "1.5K"},
		{"tokens millions", formatTokens(2500000), "2.5M"},
		{"ago minute", formatTimeAgo(now.Add(-time.Minute), now), "1 minute ago"},
		{"ago days", formatTimeAgo(now.Add(-72*time.Hour), now), "3 days ago"},
		{"ago zero", formatTimeAgo(time.Time{}, now), "-"},
		{"truncate short", truncate(10, "short"), "short"},
		{"truncate runes", truncate(5, "héllo wörld"), "hé..."},
		{"pretty invalid", prettyJSON(json.RawMessage(`{bad`)), "{bad"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}
