package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cellmate-ai/cellmate/models"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAIProvider talks to an OpenAI-compatible Responses endpoint over
// plain HTTP, streaming via server-sent events.
type OpenAIProvider struct {
	APIKey  string
	BaseURL string
	Client  *http.Client
	Logger  *zap.SugaredLogger
}

// NewOpenAIProvider creates a provider with sane timeouts. baseURL may
// be empty to use the public API endpoint.
func NewOpenAIProvider(apiKey, baseURL string, logger *zap.SugaredLogger) *OpenAIProvider {
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	return &OpenAIProvider{
		APIKey:  apiKey,
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: 5 * time.Minute},
		Logger:  logger,
	}
}

// Wire types for the Responses endpoint.

type responsesRequest struct {
	Model        string         `json:"model"`
	Instructions string         `json:"instructions,omitempty"`
	Input        []inputMessage `json:"input"`
	Stream       bool           `json:"stream,omitempty"`
}

type inputMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type inputContent struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

type responsesResult struct {
	Output []outputItem `json:"output"`
	Error  *wireError   `json:"error,omitempty"`
}

type outputItem struct {
	Type    string          `json:"type"`
	Role    string          `json:"role,omitempty"`
	Content []outputContent `json:"content,omitempty"`
	Summary []outputContent `json:"summary,omitempty"`
}

type outputContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type wireError struct {
	Message string `json:"message"`
}

type streamEvent struct {
	Type  string     `json:"type"`
	Delta string     `json:"delta"`
	Error *wireError `json:"error,omitempty"`
}

// Respond performs a synchronous provider call.
func (p *OpenAIProvider) Respond(ctx context.Context, req Request) (Response, error) {
	body, err := json.Marshal(p.buildRequest(req, false))
	if err != nil {
		return Response{}, fmt.Errorf("failed to marshal provider request: %w", err)
	}

	resp, err := p.post(ctx, body)
	if err != nil {
		return Response{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Response{}, fmt.Errorf("provider returned status %d: %s", resp.StatusCode, string(raw))
	}

	var result responsesResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Response{}, fmt.Errorf("failed to decode provider response: %w", err)
	}
	if result.Error != nil {
		return Response{}, fmt.Errorf("provider error: %s", result.Error.Message)
	}

	return Response{Output: outputToMessages(result.Output)}, nil
}

// RespondStream performs a streaming provider call and forwards the
// typed events in arrival order.
func (p *OpenAIProvider) RespondStream(ctx context.Context, req Request) (<-chan Event, <-chan error) {
	events := make(chan Event)
	errChan := make(chan error, 1)

	go func() {
		defer close(events)
		defer close(errChan)

		body, err := json.Marshal(p.buildRequest(req, true))
		if err != nil {
			errChan <- fmt.Errorf("failed to marshal provider stream request: %w", err)
			return
		}

		resp, err := p.post(ctx, body)
		if err != nil {
			errChan <- err
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			errChan <- fmt.Errorf("provider returned status %d: %s", resp.StatusCode, string(raw))
			return
		}

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			payload := strings.TrimPrefix(line, "data: ")
			if payload == "" || payload == "[DONE]" {
				continue
			}

			var evt streamEvent
			if err := json.Unmarshal([]byte(payload), &evt); err != nil {
				errChan <- fmt.Errorf("failed to decode stream event: %w", err)
				return
			}

			switch evt.Type {
			case "response.failed", "error":
				msg := "provider stream failed"
				if evt.Error != nil && evt.Error.Message != "" {
					msg = evt.Error.Message
				}
				errChan <- fmt.Errorf("provider error: %s", msg)
				return
			case EventTextDelta, EventTextDone, EventReasoningDelta, EventReasoningDone, EventCompleted:
				select {
				case events <- Event{Type: evt.Type, Delta: evt.Delta}:
				case <-ctx.Done():
					errChan <- ctx.Err()
					return
				}
				if evt.Type == EventCompleted {
					return
				}
			default:
				// Lifecycle events we do not drive on (created, in_progress,
				// output_item.added, ...) pass through silently.
			}
		}

		if err := scanner.Err(); err != nil {
			errChan <- fmt.Errorf("provider stream read error: %w", err)
		}
	}()

	return events, errChan
}

func (p *OpenAIProvider) post(ctx context.Context, body []byte) (*http.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/responses", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create provider request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.APIKey)

	resp, err := p.Client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("provider call failed: %w", err)
	}
	return resp, nil
}

func (p *OpenAIProvider) buildRequest(req Request, stream bool) responsesRequest {
	input := make([]inputMessage, 0, len(req.Input))
	for _, msg := range req.Input {
		input = append(input, inputMessage{Role: msg.Role, Content: messageContent(msg)})
	}
	return responsesRequest{
		Model:        req.Model,
		Instructions: req.Instructions,
		Input:        input,
		Stream:       stream,
	}
}

// messageContent converts a message body into the wire content shape:
// a bare string stays a string, a block list becomes typed parts with
// images inlined as data URLs.
func messageContent(msg models.Message) any {
	if !msg.Content.IsBlockList() {
		return msg.Content.Text
	}
	parts := make([]inputContent, 0, len(msg.Content.Blocks))
	for _, b := range msg.Content.Blocks {
		switch b.Type {
		case models.BlockInputImage:
			parts = append(parts, inputContent{
				Type:     models.BlockInputImage,
				ImageURL: fmt.Sprintf("data:%s;base64,%s", b.MimeType, b.Data),
			})
		default:
			parts = append(parts, inputContent{Type: models.BlockInputText, Text: b.Text})
		}
	}
	return parts
}

// outputToMessages converts synchronous output items to transcript
// messages. Reasoning items come back suppressed.
func outputToMessages(items []outputItem) []models.Message {
	out := make([]models.Message, 0, len(items))
	for _, item := range items {
		text := joinText(item.Content)
		if text == "" {
			text = joinText(item.Summary)
		}
		if text == "" {
			continue
		}

		msg := models.Message{
			Role:    models.RoleAssistant,
			Content: models.Content{Text: text},
		}
		if item.Type == "reasoning" {
			msg.Kind = models.KindReasoning
			msg.NoShow = true
		}
		out = append(out, msg)
	}
	return out
}

func joinText(parts []outputContent) string {
	var sb strings.Builder
	for _, p := range parts {
		sb.WriteString(p.Text)
	}
	return sb.String()
}
