package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidHistory marks a malformed chatHistory payload. Handlers
// surface it to the caller as a client error, never a server error.
var ErrInvalidHistory = errors.New("invalid chat history payload")

// DecodeHistory parses the chatHistory request field, which clients may
// send either as a JSON array of messages or as a JSON string that
// itself encodes such an array.
func DecodeHistory(raw []byte) (Conversation, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return Conversation{}, nil
	}

	if strings.HasPrefix(trimmed, "\"") {
		var inner string
		if err := json.Unmarshal([]byte(trimmed), &inner); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidHistory, err)
		}
		trimmed = strings.TrimSpace(inner)
		if trimmed == "" {
			return Conversation{}, nil
		}
	}

	var conv Conversation
	if err := json.Unmarshal([]byte(trimmed), &conv); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHistory, err)
	}
	return conv, nil
}
