// Package model defines data structures for the conversation dashboard.
package model

import (
	"time"
)

// Conversation represents an agent/user chat session with aggregate metadata.
type Conversation struct {
	ID           string    `json:"id"`
	Title        string    `json:"title,omitempty"`
	Project      string    `json:"project,omitempty"`
	LastMessage  string    `json:"lastMessage,omitempty"`
	LastModified time.Time `json:"lastModified"`
	MessageCount int       `json:"messageCount"`
}

// ConversationsPage is one page of the conversation list.
type ConversationsPage struct {
	Items      []Conversation `json:"items"`
	Page       int            `json:"page"`
	HasMore    bool           `json:"hasMore"`
	TotalCount int            `json:"totalCount"`
}

// PageInfo is the optional pagination metadata of a messages page.
type PageInfo struct {
	Page    int  `json:"page"`
	HasMore bool `json:"hasMore"`
}

// MessagesPage is one page of a conversation's messages, oldest first.
type MessagesPage struct {
	Messages   []Message `json:"messages"`
	Pagination *PageInfo `json:"pagination,omitempty"`
}

// HasMore reports whether older messages remain. Absent metadata means the
// server returned everything.
func (p MessagesPage) HasMore() bool {
	return p.Pagination != nil && p.Pagination.HasMore
}
