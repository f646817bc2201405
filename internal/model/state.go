package model

// ConversationState is the detailed activity state the backend reports for a
// conversation.
type ConversationState string

const (
	StateWorking          ConversationState = "Claude Code working..."
	StateAwaitingInput    ConversationState = "Awaiting user input..."
	StateTyping           ConversationState = "User typing..."
	StateAwaitingResponse ConversationState = "Awaiting response..."
	StateRecentlyActive   ConversationState = "Recently active"
	StateIdle             ConversationState = "Idle"
	StateInactive         ConversationState = "Inactive"
	StateOld              ConversationState = "Old"
	StateUnknown          ConversationState = "unknown"
)

// StateCategory is the coarse classification used by the status filter.
type StateCategory string

const (
	CategoryActive   StateCategory = "active"
	CategoryInactive StateCategory = "inactive"
)

var stateCategories = map[ConversationState]StateCategory{
	StateWorking:          CategoryActive,
	StateAwaitingInput:    CategoryActive,
	StateTyping:           CategoryActive,
	StateAwaitingResponse: CategoryActive,
	StateRecentlyActive:   CategoryActive,
	StateIdle:             CategoryInactive,
	StateInactive:         CategoryInactive,
	StateOld:              CategoryInactive,
	StateUnknown:          CategoryInactive,
}

// Classify maps a detailed state to its category. Unrecognized states are
// inactive.
func Classify(state ConversationState) StateCategory {
	if c, ok := stateCategories[state]; ok {
		return c
	}
	return CategoryInactive
}

// StateOf returns the state recorded for a conversation, or StateUnknown when
// the mapping has no entry for it.
func StateOf(states map[string]ConversationState, conversationID string) ConversationState {
	if s, ok := states[conversationID]; ok && s != "" {
		return s
	}
	return StateUnknown
}
