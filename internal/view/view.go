// Package view turns a dashboard snapshot into the view model served to the
// browser. Regions that are not shown are nil rather than empty structs.
package view

import (
	"html/template"
	"time"

	"github.com/capitalize-ai/conversation-dashboard/internal/dashboard"
	"github.com/capitalize-ai/conversation-dashboard/internal/model"
)

const (
	lastMessagePreviewLen = 120
	toolOutputPreviewLen  = 2000
)

// ViewModel is the full render state of the dashboard page.
type ViewModel struct {
	Header  Header           `json:"header"`
	Filter  dashboard.Filter `json:"filter"`
	List    ConversationList `json:"list"`
	Detail  *Detail          `json:"detail"`
	Empty   *EmptyState      `json:"empty"`
	Error   *ErrorBanner     `json:"error"`
	Version uint64           `json:"version"`
}

// Header summarizes connection status and counts.
type Header struct {
	RealtimeEnabled bool   `json:"realtimeEnabled"`
	ConnectionLabel string `json:"connectionLabel"`
	Visible         int    `json:"visible"`
	TotalLoaded     int    `json:"totalLoaded"`
	ActiveCount     int    `json:"activeCount"`
}

// ConversationList is the filtered, paginated conversation list.
type ConversationList struct {
	Rows    []ConversationRow `json:"rows"`
	HasMore bool              `json:"hasMore"`
	Loading bool              `json:"loading"`
	Page    int               `json:"page"`
}

// ConversationRow is one list entry.
type ConversationRow struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Project      string    `json:"project,omitempty"`
	LastMessage  string    `json:"lastMessage,omitempty"`
	State        string    `json:"state"`
	StateClass   string    `json:"stateClass"`
	Active       bool      `json:"active"`
	MessageCount int       `json:"messageCount"`
	LastModified time.Time `json:"lastModified"`
	UpdatedAgo   string    `json:"updatedAgo"`
	Selected     bool      `json:"selected"`
}

// Detail is the selected conversation's message pane.
type Detail struct {
	ConversationID string        `json:"conversationId"`
	Title          string        `json:"title"`
	Messages       []MessageView `json:"messages"`
	HasOlder       bool          `json:"hasOlder"`
	Loading        bool          `json:"loading"`
	TotalTokens    string        `json:"totalTokens"`
	ScrollToBottom bool          `json:"scrollToBottom"`
	Prepended      int           `json:"prepended"`
}

// MessageView is one rendered message.
type MessageView struct {
	ID        string      `json:"id,omitempty"`
	Role      string      `json:"role"`
	Timestamp string      `json:"timestamp"`
	Model     string      `json:"model,omitempty"`
	Tokens    string      `json:"tokens,omitempty"`
	Tools     []string    `json:"tools,omitempty"`
	Blocks    []BlockView `json:"blocks"`
}

// BlockView is one rendered content block. Kind mirrors model.BlockType.
type BlockView struct {
	Kind string        `json:"kind"`
	HTML template.HTML `json:"html,omitempty"`

	ToolName  string `json:"toolName,omitempty"`
	ToolUseID string `json:"toolUseId,omitempty"`
	Input     string `json:"input,omitempty"`
	Output    string `json:"output,omitempty"`
	IsError   bool   `json:"isError,omitempty"`

	OriginalType string `json:"originalType,omitempty"`
}

// EmptyState is shown when the filtered list has no rows.
type EmptyState struct {
	Message  string `json:"message"`
	Filtered bool   `json:"filtered"`
}

// ErrorBanner carries the last load failure and a retry hint.
type ErrorBanner struct {
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

var markdown = newMarkdownRenderer()

// Build renders a snapshot.
func Build(snap dashboard.Snapshot) ViewModel {
	now := snap.GeneratedAt
	if now.IsZero() {
		now = time.Now()
	}

	vm := ViewModel{
		Header: Header{
			RealtimeEnabled: snap.RealtimeEnabled,
			ConnectionLabel: connectionLabel(snap.RealtimeEnabled),
			Visible:         len(snap.Conversations),
			TotalLoaded:     snap.TotalLoaded,
		},
		Filter: snap.Filter,
		List: ConversationList{
			Rows:    make([]ConversationRow, 0, len(snap.Conversations)),
			HasMore: snap.ConversationCursor.HasMore,
			Loading: snap.ConversationCursor.IsLoading,
			Page:    snap.ConversationCursor.Page,
		},
		Version: snap.Version,
	}

	var selectedTitle string
	for _, item := range snap.Conversations {
		row := buildRow(item, now)
		row.Selected = item.Conversation.ID == snap.SelectedID
		if row.Selected {
			selectedTitle = row.Title
		}
		if row.Active {
			vm.Header.ActiveCount++
		}
		vm.List.Rows = append(vm.List.Rows, row)
	}

	if snap.Empty {
		vm.Empty = buildEmpty(snap)
	}
	if snap.LastError != "" {
		vm.Error = &ErrorBanner{Message: snap.LastError, Retryable: true}
	}
	if snap.HasSelection() {
		vm.Detail = buildDetail(snap, selectedTitle)
	}
	return vm
}

func connectionLabel(realtime bool) string {
	if realtime {
		return "Live"
	}
	return "Polling"
}

func buildRow(item dashboard.ViewItem, now time.Time) ConversationRow {
	c := item.Conversation
	title := c.Title
	if title == "" {
		title = truncate(12, c.ID)
	}
	return ConversationRow{
		ID:           c.ID,
		Title:        title,
		Project:      c.Project,
		LastMessage:  truncate(lastMessagePreviewLen, c.LastMessage),
		State:        string(item.State),
		StateClass:   stateClass(item.State),
		Active:       item.Category == model.CategoryActive,
		MessageCount: c.MessageCount,
		LastModified: c.LastModified,
		UpdatedAgo:   formatTimeAgo(c.LastModified, now),
	}
}

func buildEmpty(snap dashboard.Snapshot) *EmptyState {
	if snap.TotalLoaded > 0 {
		return &EmptyState{Message: "No conversations match the current filters", Filtered: true}
	}
	return &EmptyState{Message: "No conversations yet"}
}

func buildDetail(snap dashboard.Snapshot, title string) *Detail {
	if title == "" {
		title = truncate(12, snap.SelectedID)
	}

	d := &Detail{
		ConversationID: snap.SelectedID,
		Title:          title,
		Messages:       make([]MessageView, 0, len(snap.Messages)),
		HasOlder:       snap.MessageCursor.HasMore && snap.MessageCursor.Page > 0,
		Loading:        snap.MessageCursor.IsLoading,
		ScrollToBottom: snap.ScrollToBottom,
		Prepended:      snap.Prepended,
	}

	total := 0
	for _, m := range snap.Messages {
		d.Messages = append(d.Messages, buildMessage(m))
		total += m.Usage.Total()
	}
	d.TotalTokens = formatTokens(total)
	return d
}

func buildMessage(m model.Message) MessageView {
	mv := MessageView{
		ID:        m.ID,
		Role:      string(m.Role),
		Timestamp: formatTime(m.Timestamp),
		Model:     m.Model,
	}
	if m.Usage != nil {
		mv.Tokens = formatTokens(m.Usage.Total())
	}

	if !m.Content.IsBlocks() {
		mv.Blocks = []BlockView{{Kind: string(model.BlockText), HTML: markdown.render(m.Content.Text())}}
		return mv
	}

	for _, use := range m.Content.ToolUses() {
		mv.Tools = append(mv.Tools, use.Name)
	}

	mv.Blocks = make([]BlockView, 0, len(m.Content.Blocks()))
	for _, b := range m.Content.Blocks() {
		mv.Blocks = append(mv.Blocks, buildBlock(b))
	}
	return mv
}

func buildBlock(b model.ContentBlock) BlockView {
	switch b.Type {
	case model.BlockText:
		return BlockView{Kind: string(b.Type), HTML: markdown.render(b.Text)}
	case model.BlockToolUse:
		return BlockView{
			Kind:      string(b.Type),
			ToolName:  b.Name,
			ToolUseID: b.ID,
			Input:     prettyJSON(b.Input),
		}
	case model.BlockToolResult:
		bv := BlockView{
			Kind:      string(b.Type),
			ToolUseID: b.ToolUseID,
			IsError:   b.IsError,
		}
		if b.Result != nil {
			bv.Output = truncate(toolOutputPreviewLen, b.Result.PlainText())
		}
		return bv
	default:
		return BlockView{Kind: string(model.BlockUnsupported), OriginalType: b.OriginalType}
	}
}
