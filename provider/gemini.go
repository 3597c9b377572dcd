package provider

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/cellmate-ai/cellmate/models"
)

// GeminiProvider is a text-only fallback backend using the Gemini SDK.
// It implements the streaming contract by running the synchronous call
// and replaying the result as a single delta, so the session driver and
// transports work unchanged against it.
type GeminiProvider struct {
	Model  string
	Logger *zap.SugaredLogger
}

// NewGeminiProvider creates the fallback provider. The SDK reads its
// API key from the environment (GEMINI_API_KEY).
func NewGeminiProvider(model string, logger *zap.SugaredLogger) *GeminiProvider {
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &GeminiProvider{Model: model, Logger: logger}
}

// Respond flattens the conversation into a single text prompt and runs
// one generateContent call. Image blocks are skipped: this backend is a
// text-only fallback.
func (g *GeminiProvider) Respond(ctx context.Context, req Request) (Response, error) {
	client, err := genai.NewClient(ctx, nil)
	if err != nil {
		return Response{}, fmt.Errorf("failed to create gemini client: %w", err)
	}

	prompt, skippedImages := flattenConversation(req)
	if skippedImages > 0 && g.Logger != nil {
		g.Logger.Warnf("gemini fallback skipped %d image block(s); backend is text-only", skippedImages)
	}

	result, err := client.Models.GenerateContent(ctx, g.Model, genai.Text(prompt), nil)
	if err != nil {
		return Response{}, fmt.Errorf("gemini request failed: %w", err)
	}
	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return Response{}, fmt.Errorf("gemini returned no candidates")
	}

	var sb strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		if part.Text != "" {
			sb.WriteString(part.Text)
		}
	}
	if sb.Len() == 0 {
		return Response{}, fmt.Errorf("gemini returned no text output")
	}

	return Response{Output: []models.Message{{
		Role:    models.RoleAssistant,
		Content: models.Content{Text: sb.String()},
	}}}, nil
}

// RespondStream emulates the event stream over the synchronous call:
// one text delta per output message, then done and completed markers.
func (g *GeminiProvider) RespondStream(ctx context.Context, req Request) (<-chan Event, <-chan error) {
	events := make(chan Event)
	errChan := make(chan error, 1)

	go func() {
		defer close(events)
		defer close(errChan)

		resp, err := g.Respond(ctx, req)
		if err != nil {
			errChan <- err
			return
		}

		for _, msg := range resp.Output {
			text, _ := msg.Content.FirstText()
			if text == "" {
				continue
			}
			select {
			case events <- Event{Type: EventTextDelta, Delta: text}:
			case <-ctx.Done():
				errChan <- ctx.Err()
				return
			}
			select {
			case events <- Event{Type: EventTextDone}:
			case <-ctx.Done():
				errChan <- ctx.Err()
				return
			}
		}

		select {
		case events <- Event{Type: EventCompleted}:
		case <-ctx.Done():
			errChan <- ctx.Err()
		}
	}()

	return events, errChan
}

// flattenConversation renders instructions plus transcript as a plain
// text prompt, returning the number of image blocks it had to skip.
func flattenConversation(req Request) (string, int) {
	var sb strings.Builder
	skipped := 0

	if req.Instructions != "" {
		sb.WriteString(req.Instructions)
		sb.WriteString("\n\n")
	}

	for _, msg := range req.Input {
		if !msg.Content.IsBlockList() {
			if msg.Content.Text != "" {
				fmt.Fprintf(&sb, "%s: %s\n", msg.Role, msg.Content.Text)
			}
			continue
		}
		for _, b := range msg.Content.Blocks {
			switch b.Type {
			case models.BlockInputImage:
				skipped++
			default:
				if b.Text != "" {
					fmt.Fprintf(&sb, "%s: %s\n", msg.Role, b.Text)
				}
			}
		}
	}

	return sb.String(), skipped
}
