// Package provider defines the model-serving contract the pipeline
// drives and its concrete backends.
package provider

import (
	"context"

	"github.com/cellmate-ai/cellmate/models"
)

// Streaming event types, as emitted by the Responses wire protocol.
const (
	EventTextDelta      = "response.output_text.delta"
	EventTextDone       = "response.output_text.done"
	EventReasoningDelta = "response.reasoning_text.delta"
	EventReasoningDone  = "response.reasoning_text.done"
	EventCompleted      = "response.completed"
)

// Event is one typed delta in a streaming response.
type Event struct {
	Type  string
	Delta string
}

// Request is one provider call: a sanitized message list plus
// instructions. Input must already be stripped of transport-only
// annotations (see SanitizeInput).
type Request struct {
	Model        string
	Instructions string
	Input        models.Conversation
}

// Response is the synchronous result of a provider call.
type Response struct {
	Output []models.Message
}

// Provider is the model-serving backend contract. RespondStream returns
// a channel of typed events and a buffered error channel; both are
// closed when the stream ends.
type Provider interface {
	Respond(ctx context.Context, req Request) (Response, error)
	RespondStream(ctx context.Context, req Request) (<-chan Event, <-chan error)
}

// SanitizeInput deep-copies a conversation and drops the suppression
// flag from every message and content block. The source conversation is
// untouched: history retained by the caller keeps its flags.
func SanitizeInput(conv models.Conversation) models.Conversation {
	out := conv.Clone()
	for i := range out {
		out[i].NoShow = false
		for j := range out[i].Content.Blocks {
			out[i].Content.Blocks[j].NoShow = false
		}
	}
	return out
}
