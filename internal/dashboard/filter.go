package dashboard

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/capitalize-ai/conversation-dashboard/internal/model"
)

// StatusFilter selects conversations by state category.
type StatusFilter string

const (
	StatusAll      StatusFilter = "all"
	StatusActive   StatusFilter = "active"
	StatusInactive StatusFilter = "inactive"
)

// ParseStatus parses a status filter. Empty means all.
func ParseStatus(s string) (StatusFilter, error) {
	switch StatusFilter(strings.ToLower(strings.TrimSpace(s))) {
	case "", StatusAll:
		return StatusAll, nil
	case StatusActive:
		return StatusActive, nil
	case StatusInactive:
		return StatusInactive, nil
	default:
		return "", fmt.Errorf("unknown status filter %q", s)
	}
}

// ParseTimeRange parses a time window such as "1h", "24h", "7d" or "30d".
// "all" or the empty string mean no time filtering and return 0.
func ParseTimeRange(s string) (time.Duration, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == "all" || s == "0" {
		return 0, nil
	}

	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid time range %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid time range %q", s)
	}
	return d, nil
}

// Filter narrows the conversation list for rendering.
type Filter struct {
	Status StatusFilter `json:"status"`
	// TimeRange keeps conversations modified within the window; 0 disables it.
	TimeRange time.Duration `json:"timeRange"`
	Search    string        `json:"search,omitempty"`
}

func (f Filter) normalized() Filter {
	if f.Status == "" {
		f.Status = StatusAll
	}
	if f.TimeRange < 0 {
		f.TimeRange = 0
	}
	f.Search = strings.TrimSpace(f.Search)
	return f
}

// ViewItem is a conversation paired with its derived state.
type ViewItem struct {
	Conversation model.Conversation      `json:"conversation"`
	State        model.ConversationState `json:"state"`
	Category     model.StateCategory     `json:"category"`
}

// FilterConversations applies a filter to the accumulated list, keeping list
// order. It does not modify its inputs.
func FilterConversations(conversations []model.Conversation, states map[string]model.ConversationState, filter Filter, now time.Time) []ViewItem {
	filter = filter.normalized()
	search := strings.ToLower(filter.Search)

	var cutoff time.Time
	if filter.TimeRange > 0 {
		cutoff = now.Add(-filter.TimeRange)
	}

	items := make([]ViewItem, 0, len(conversations))
	for _, conv := range conversations {
		state := model.StateOf(states, conv.ID)
		category := model.Classify(state)

		switch filter.Status {
		case StatusActive:
			if category != model.CategoryActive {
				continue
			}
		case StatusInactive:
			if category != model.CategoryInactive {
				continue
			}
		}

		if !cutoff.IsZero() && conv.LastModified.Before(cutoff) {
			continue
		}

		if search != "" && !matchesSearch(conv, search) {
			continue
		}

		items = append(items, ViewItem{
			Conversation: conv,
			State:        state,
			Category:     category,
		})
	}
	return items
}

func matchesSearch(conv model.Conversation, lowered string) bool {
	for _, field := range []string{conv.Title, conv.Project, conv.LastMessage} {
		if field != "" && strings.Contains(strings.ToLower(field), lowered) {
			return true
		}
	}
	return false
}
