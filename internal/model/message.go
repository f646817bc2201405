package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Role represents the role of a message sender.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn within a conversation.
type Message struct {
	// ID is optional: push-delivered messages may not carry one.
	ID        string      `json:"id,omitempty"`
	Role      Role        `json:"role"`
	Timestamp time.Time   `json:"timestamp"`
	Content   Content     `json:"content"`
	Usage     *TokenUsage `json:"usage,omitempty"`
	Model     string      `json:"model,omitempty"`
}

// TokenUsage is the token accounting attached to assistant messages.
type TokenUsage struct {
	InputTokens              int `json:"input_tokens"`
	OutputTokens             int `json:"output_tokens"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens,omitempty"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens,omitempty"`
}

// Total returns input plus output tokens.
func (u *TokenUsage) Total() int {
	if u == nil {
		return 0
	}
	return u.InputTokens + u.OutputTokens
}

// Matches reports whether two messages are the same turn: equal non-empty IDs,
// or the same (timestamp, role) pair.
func (m Message) Matches(other Message) bool {
	if m.ID != "" && m.ID == other.ID {
		return true
	}
	return m.Role == other.Role && m.Timestamp.Equal(other.Timestamp)
}

// BlockType tags a ContentBlock variant.
type BlockType string

const (
	BlockText        BlockType = "text"
	BlockToolUse     BlockType = "tool_use"
	BlockToolResult  BlockType = "tool_result"
	BlockUnsupported BlockType = "unsupported"
)

// ContentBlock is a typed fragment of message content. Which fields are set
// depends on Type:
//   - text: Text
//   - tool_use: ID, Name, Input
//   - tool_result: ToolUseID, IsError, Result
//   - unsupported: OriginalType, Raw
type ContentBlock struct {
	Type BlockType `json:"type"`

	Text string `json:"text,omitempty"`

	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	ToolUseID string   `json:"tool_use_id,omitempty"`
	IsError   bool     `json:"is_error,omitempty"`
	Result    *Content `json:"content,omitempty"`

	OriginalType string          `json:"original_type,omitempty"`
	Raw          json.RawMessage `json:"raw,omitempty"`
}

// TextBlock builds a text block.
func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockText, Text: text}
}

// ToolUseBlock builds a tool_use block.
func ToolUseBlock(id, name string, input json.RawMessage) ContentBlock {
	return ContentBlock{Type: BlockToolUse, ID: id, Name: name, Input: input}
}

// ToolResultBlock builds a tool_result block.
func ToolResultBlock(toolUseID string, isError bool, result Content) ContentBlock {
	return ContentBlock{Type: BlockToolResult, ToolUseID: toolUseID, IsError: isError, Result: &result}
}

// UnmarshalJSON decodes a block and normalizes unknown tags to the
// unsupported variant.
func (b *ContentBlock) UnmarshalJSON(data []byte) error {
	var wire struct {
		Type      string          `json:"type"`
		Text      string          `json:"text"`
		ID        string          `json:"id"`
		Name      string          `json:"name"`
		Input     json.RawMessage `json:"input"`
		ToolUseID string          `json:"tool_use_id"`
		IsError   *bool           `json:"is_error"`
		Content   json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("decode content block: %w", err)
	}

	*b = ContentBlock{}
	switch BlockType(wire.Type) {
	case BlockText:
		b.Type = BlockText
		b.Text = wire.Text
	case BlockToolUse:
		b.Type = BlockToolUse
		b.ID = wire.ID
		b.Name = wire.Name
		b.Input = wire.Input
	case BlockToolResult:
		b.Type = BlockToolResult
		b.ToolUseID = wire.ToolUseID
		if wire.IsError != nil {
			b.IsError = *wire.IsError
		}
		if len(wire.Content) > 0 {
			var c Content
			if err := c.UnmarshalJSON(wire.Content); err != nil {
				return err
			}
			b.Result = &c
		}
	default:
		b.Type = BlockUnsupported
		b.OriginalType = wire.Type
		b.Raw = append(json.RawMessage(nil), data...)
	}
	return nil
}

// Content is a message body: either plain text or an ordered list of blocks.
type Content struct {
	text     string
	blocks   []ContentBlock
	isBlocks bool
}

// TextContent returns string-shaped content.
func TextContent(text string) Content {
	return Content{text: text}
}

// BlockContent returns block-list-shaped content.
func BlockContent(blocks ...ContentBlock) Content {
	return Content{blocks: blocks, isBlocks: true}
}

// IsBlocks reports whether the content is a block list.
func (c Content) IsBlocks() bool {
	return c.isBlocks
}

// Text returns the string form. For block content it is empty; use PlainText.
func (c Content) Text() string {
	return c.text
}

// Blocks returns the block list, or nil for string content.
func (c Content) Blocks() []ContentBlock {
	return c.blocks
}

// PlainText flattens the content to text, joining text blocks with newlines.
func (c Content) PlainText() string {
	if !c.isBlocks {
		return c.text
	}
	var parts []string
	for _, b := range c.blocks {
		if b.Type == BlockText && b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// ToolUses returns the tool_use blocks in order.
func (c Content) ToolUses() []ContentBlock {
	var uses []ContentBlock
	for _, b := range c.blocks {
		if b.Type == BlockToolUse {
			uses = append(uses, b)
		}
	}
	return uses
}

// MarshalJSON encodes the content in the shape it was built with.
func (c Content) MarshalJSON() ([]byte, error) {
	if c.isBlocks {
		if c.blocks == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(c.blocks)
	}
	return json.Marshal(c.text)
}

// UnmarshalJSON accepts a string, an array of blocks, a single block object,
// or null.
func (c *Content) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*c = Content{}
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	switch data[0] {
	case '"':
		return json.Unmarshal(data, &c.text)
	case '[':
		var blocks []ContentBlock
		if err := json.Unmarshal(data, &blocks); err != nil {
			return fmt.Errorf("decode content blocks: %w", err)
		}
		c.blocks = blocks
		c.isBlocks = true
		return nil
	case '{':
		var block ContentBlock
		if err := json.Unmarshal(data, &block); err != nil {
			return err
		}
		c.blocks = []ContentBlock{block}
		c.isBlocks = true
		return nil
	default:
		return fmt.Errorf("decode content: unexpected JSON %q", truncateJSON(data))
	}
}

func truncateJSON(data []byte) string {
	const max = 32
	if len(data) <= max {
		return string(data)
	}
	return string(data[:max]) + "..."
}
