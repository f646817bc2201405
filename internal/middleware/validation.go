package middleware

import (
	"errors"
	"strings"
	"unicode/utf8"
)

const (
	maxConversationIDLength = 256
	maxSearchLength         = 200
)

// ValidateConversationID validates a conversation ID taken from a URL.
// Backend IDs are opaque session identifiers, not necessarily UUIDs.
func ValidateConversationID(id string) error {
	if id == "" {
		return errors.New("conversation ID cannot be empty")
	}
	if len(id) > maxConversationIDLength {
		return errors.New("conversation ID exceeds maximum length")
	}
	if !utf8.ValidString(id) {
		return errors.New("conversation ID must be valid UTF-8")
	}
	if strings.ContainsAny(id, "/\\") || strings.ContainsFunc(id, isControl) {
		return errors.New("invalid conversation ID format")
	}
	return nil
}

// ValidateSearch validates a search query.
func ValidateSearch(search string) error {
	if len(search) > maxSearchLength {
		return errors.New("search exceeds maximum length")
	}
	if !utf8.ValidString(search) {
		return errors.New("search must be valid UTF-8")
	}
	return nil
}

func isControl(r rune) bool {
	return r < 0x20 || r == 0x7f
}
