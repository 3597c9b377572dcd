package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cellmate-ai/cellmate/attachments"
	"github.com/cellmate-ai/cellmate/models"
	"github.com/cellmate-ai/cellmate/prompts"
	"github.com/cellmate-ai/cellmate/provider"
	"github.com/cellmate-ai/cellmate/stores"
)

// Turn is one inbound request: the resent transcript plus the new
// submission and its attribution fields for analytics logging.
type Turn struct {
	History    models.Conversation
	NewMessage string
	CellType   string
	Files      []attachments.Upload

	StudentID    string
	CourseID     string
	AssignmentID string
}

// Session drives one request through the pipeline: assemble, select,
// call the provider, compact, and log. It holds no per-request state
// and is safe to share across requests.
type Session struct {
	Provider      provider.Provider
	Prompts       *prompts.Library
	Model         string
	Interactions  stores.InteractionStore // optional; nil disables logging
	Pseudonymizer *stores.Pseudonymizer   // required when Interactions is set
	Logger        *zap.SugaredLogger
}

// RunInteraction handles a complete non-streaming request-response
// cycle and returns the finished turn.
func (s *Session) RunInteraction(ctx context.Context, turn Turn) (models.ChatResult, error) {
	conv := AssembleMessages(turn.History, turn.NewMessage, turn.Files)
	sel := Select(s.Prompts, s.Model, conv, turn.Files, turn.CellType)

	resp, err := s.Provider.Respond(ctx, provider.Request{
		Model:        sel.Model,
		Instructions: sel.Instructions,
		Input:        provider.SanitizeInput(conv),
	})
	if err != nil {
		return models.ChatResult{}, fmt.Errorf("provider call failed: %w", err)
	}

	conv = append(conv, resp.Output...)
	result := models.ChatResult{
		Response:          resp.Output,
		NewChatHistory:    CompactHistory(conv),
		PromptSuggestions: []string{},
	}

	go s.logInteraction(turn, sel.Model, result)

	return result, nil
}

// RunStreamInteraction handles a streaming request. It consumes the
// provider's event sequence and emits client frames in strict arrival
// order: one message_delta per text delta, then a single final_response
// carrying the completed turn. The final frame is emitted only when the
// provider stream completed cleanly; any provider error surfaces on the
// error channel instead. Both returned channels are closed when the
// interaction ends; the error channel is buffered.
func (s *Session) RunStreamInteraction(ctx context.Context, turn Turn) (<-chan models.StreamFrame, <-chan error) {
	frames := make(chan models.StreamFrame)
	errChan := make(chan error, 1)

	go func() {
		defer close(frames)
		defer close(errChan)

		conv := AssembleMessages(turn.History, turn.NewMessage, turn.Files)
		sel := Select(s.Prompts, s.Model, conv, turn.Files, turn.CellType)

		events, provErrs := s.Provider.RespondStream(ctx, provider.Request{
			Model:        sel.Model,
			Instructions: sel.Instructions,
			Input:        provider.SanitizeInput(conv),
		})

		var (
			textBuf      strings.Builder
			reasoningBuf strings.Builder
			output       []models.Message
			completed    bool
			streamErr    error
		)

		// Drain both channels to closure before deciding the outcome:
		// a buffered error must win over a closed event channel.
		for events != nil || provErrs != nil {
			select {
			case evt, ok := <-events:
				if !ok {
					events = nil
					continue
				}
				switch evt.Type {
				case provider.EventTextDelta:
					textBuf.WriteString(evt.Delta)
					select {
					case frames <- models.DeltaFrame(evt.Delta):
					case <-ctx.Done():
						errChan <- ctx.Err()
						return
					}

				case provider.EventTextDone:
					if textBuf.Len() > 0 {
						output = append(output, models.Message{
							Role:    models.RoleAssistant,
							Content: models.Content{Text: textBuf.String()},
						})
						textBuf.Reset()
					}

				case provider.EventReasoningDelta:
					s.handleReasoningDelta(evt.Delta, &reasoningBuf)

				case provider.EventReasoningDone:
					if reasoningBuf.Len() > 0 {
						output = append(output, models.Message{
							Role:    models.RoleAssistant,
							Content: models.Content{Text: reasoningBuf.String()},
							Kind:    models.KindReasoning,
							NoShow:  true,
						})
						reasoningBuf.Reset()
					}

				case provider.EventCompleted:
					completed = true
				}

			case err, ok := <-provErrs:
				if !ok {
					provErrs = nil
					continue
				}
				if err != nil && streamErr == nil {
					streamErr = err
				}
			}
		}

		if streamErr != nil {
			errChan <- streamErr
			return
		}
		if !completed {
			errChan <- fmt.Errorf("provider stream ended before completion")
			return
		}

		conv = append(conv, output...)
		result := models.ChatResult{
			Response:          output,
			NewChatHistory:    CompactHistory(conv),
			PromptSuggestions: []string{},
		}

		select {
		case frames <- models.FinalFrame(result):
		case <-ctx.Done():
			errChan <- ctx.Err()
			return
		}

		go s.logInteraction(turn, sel.Model, result)
	}()

	return frames, errChan
}

// handleReasoningDelta is the hook point for surfacing reasoning
// deltas. They are currently neither forwarded to the caller nor
// accumulated; enabling either is a local change here.
func (s *Session) handleReasoningDelta(delta string, buf *strings.Builder) {
	_ = delta
	_ = buf
}

// logInteraction persists the finished turn for analytics. It runs
// fire-and-forget: failures are logged and never fail the turn.
func (s *Session) logInteraction(turn Turn, model string, result models.ChatResult) {
	if s.Interactions == nil {
		return
	}

	record, err := s.buildInteractionRecord(turn, model, result)
	if err != nil {
		s.Logger.Warnf("skipping interaction log: %v", err)
		return
	}
	if err := record.Validate(); err != nil {
		s.Logger.Warnf("interaction record failed validation: %v", err)
		return
	}
	if err := s.Interactions.Upsert(record); err != nil {
		s.Logger.Warnf("failed to upsert interaction record: %v", err)
	}
}

func (s *Session) buildInteractionRecord(turn Turn, model string, result models.ChatResult) (*stores.InteractionRecord, error) {
	if s.Pseudonymizer == nil {
		return nil, fmt.Errorf("no pseudonymizer configured")
	}

	contextJSON, err := json.Marshal(result.NewChatHistory)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat history: %w", err)
	}

	return &stores.InteractionRecord{
		ID:                     uuid.NewString(),
		StudentID:              s.Pseudonymizer.Pseudonymize(turn.StudentID),
		CourseID:               turn.CourseID,
		AssignmentID:           turn.AssignmentID,
		Timestamp:              time.Now().UTC(),
		StudentRequest:         turn.NewMessage,
		ResponseWithTextbook:   responseText(result.Response),
		ModelUsed:              model,
		ContextWithoutTextbook: string(contextJSON),
	}, nil
}

// responseText flattens the displayable model output into one string.
func responseText(msgs []models.Message) string {
	var sb strings.Builder
	for _, m := range msgs {
		if m.Kind == models.KindReasoning {
			continue
		}
		if text, ok := m.Content.FirstText(); ok && text != "" {
			if sb.Len() > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(text)
		}
	}
	return sb.String()
}
