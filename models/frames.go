package models

// Frame type discriminators for the client-facing streaming transport.
const (
	FrameMessageDelta  = "message_delta"
	FrameFinalResponse = "final_response"
	FrameError         = "error"
)

// ChatResult is the payload of a completed turn: the model output, the
// compacted transcript safe to resend as history, and (reserved)
// follow-up prompt suggestions.
type ChatResult struct {
	Response          []Message    `json:"response"`
	NewChatHistory    Conversation `json:"newChatHistory"`
	PromptSuggestions []string     `json:"promptSuggestions"`
}

// StreamFrame is one discrete unit of the streaming transport. Exactly
// one of Content/Data/Error is populated depending on Type.
type StreamFrame struct {
	Type    string      `json:"type"`
	Content string      `json:"content,omitempty"`
	Role    string      `json:"role,omitempty"`
	Data    *ChatResult `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// DeltaFrame wraps one incremental text delta.
func DeltaFrame(delta string) StreamFrame {
	return StreamFrame{Type: FrameMessageDelta, Content: delta, Role: RoleAssistant}
}

// FinalFrame carries the completed turn.
func FinalFrame(result ChatResult) StreamFrame {
	return StreamFrame{Type: FrameFinalResponse, Data: &result}
}

// ErrorFrame reports a mid-turn failure to the client.
func ErrorFrame(err error) StreamFrame {
	return StreamFrame{Type: FrameError, Error: err.Error()}
}
