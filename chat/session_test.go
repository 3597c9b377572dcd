package chat

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/cellmate-ai/cellmate/models"
	"github.com/cellmate-ai/cellmate/prompts"
	"github.com/cellmate-ai/cellmate/provider"
	"github.com/cellmate-ai/cellmate/stores"
)

// fakeProvider replays a scripted event sequence or a fixed response.
type fakeProvider struct {
	events   []provider.Event
	response provider.Response
	err      error
	lastReq  provider.Request
}

func (f *fakeProvider) Respond(_ context.Context, req provider.Request) (provider.Response, error) {
	f.lastReq = req
	return f.response, f.err
}

func (f *fakeProvider) RespondStream(_ context.Context, req provider.Request) (<-chan provider.Event, <-chan error) {
	f.lastReq = req
	events := make(chan provider.Event)
	errChan := make(chan error, 1)
	go func() {
		defer close(events)
		defer close(errChan)
		for _, e := range f.events {
			events <- e
		}
		// Error after any scripted events, then both channels close,
		// matching the real backend's shutdown order.
		if f.err != nil {
			errChan <- f.err
		}
	}()
	return events, errChan
}

func newTestSession(t *testing.T, fake *fakeProvider) *Session {
	t.Helper()
	lib, err := prompts.Load("")
	if err != nil {
		t.Fatalf("failed to load templates: %v", err)
	}
	return &Session{
		Provider: fake,
		Prompts:  lib,
		Model:    "test-model",
		Logger:   zap.NewNop().Sugar(),
	}
}

func collectFrames(t *testing.T, frames <-chan models.StreamFrame, errChan <-chan error) ([]models.StreamFrame, error) {
	t.Helper()
	var got []models.StreamFrame
	var gotErr error
	for frames != nil || errChan != nil {
		select {
		case f, ok := <-frames:
			if !ok {
				frames = nil
				continue
			}
			got = append(got, f)
		case err, ok := <-errChan:
			if !ok {
				errChan = nil
				continue
			}
			if err != nil {
				gotErr = err
			}
		}
	}
	return got, gotErr
}

func TestRunStreamInteraction(t *testing.T) {
	fake := &fakeProvider{events: []provider.Event{
		{Type: provider.EventTextDelta, Delta: "Hel"},
		{Type: provider.EventTextDelta, Delta: "lo"},
		{Type: provider.EventTextDone},
		{Type: provider.EventCompleted},
	}}
	session := newTestSession(t, fake)

	frames, errChan := session.RunStreamInteraction(context.Background(), Turn{
		NewMessage: "hi there",
		CellType:   prompts.CellTypeSuccess,
	})
	got, err := collectFrames(t, frames, errChan)
	if err != nil {
		t.Fatalf("unexpected stream error: %v", err)
	}

	if len(got) != 3 {
		t.Fatalf("expected 2 deltas + 1 final, got %d frames: %+v", len(got), got)
	}
	if got[0].Type != models.FrameMessageDelta || got[0].Content != "Hel" || got[0].Role != models.RoleAssistant {
		t.Errorf("unexpected first frame: %+v", got[0])
	}
	if got[1].Content != "lo" {
		t.Errorf("unexpected second frame: %+v", got[1])
	}

	final := got[2]
	if final.Type != models.FrameFinalResponse || final.Data == nil {
		t.Fatalf("expected final_response with data, got %+v", final)
	}
	if len(final.Data.Response) != 1 {
		t.Fatalf("expected one output message, got %d", len(final.Data.Response))
	}
	if text, _ := final.Data.Response[0].Content.FirstText(); text != "Hello" {
		t.Errorf("expected accumulated response %q, got %q", "Hello", text)
	}
	if final.Data.PromptSuggestions == nil {
		t.Error("promptSuggestions must serialize as an empty array, not null")
	}

	// New history ends with the assistant turn, already compacted.
	hist := final.Data.NewChatHistory
	if len(hist) != 2 {
		t.Fatalf("expected user + assistant in new history, got %d", len(hist))
	}
	if hist[0].Content.IsBlockList() {
		t.Error("user turn must be collapsed to a plain string in new history")
	}
}

func TestRunStreamInteractionProviderError(t *testing.T) {
	fake := &fakeProvider{err: errors.New("upstream exploded")}
	session := newTestSession(t, fake)

	frames, errChan := session.RunStreamInteraction(context.Background(), Turn{NewMessage: "hi"})
	got, err := collectFrames(t, frames, errChan)

	if err == nil {
		t.Fatal("expected the provider error to surface")
	}
	for _, f := range got {
		if f.Type == models.FrameFinalResponse {
			t.Error("no final frame may follow a provider failure")
		}
	}
}

func TestRunStreamInteractionErrorAfterDeltas(t *testing.T) {
	// The error sits buffered while the event channel closes; the driver
	// must still find it instead of treating the turn as completed.
	fake := &fakeProvider{
		events: []provider.Event{
			{Type: provider.EventTextDelta, Delta: "par"},
			{Type: provider.EventTextDelta, Delta: "tial"},
		},
		err: errors.New("model overloaded"),
	}
	session := newTestSession(t, fake)

	frames, errChan := session.RunStreamInteraction(context.Background(), Turn{NewMessage: "hi"})
	got, err := collectFrames(t, frames, errChan)

	if err == nil {
		t.Fatal("buffered provider error must surface, not be swallowed")
	}
	if len(got) != 2 {
		t.Fatalf("expected the two deltas already sent, got %d frames: %+v", len(got), got)
	}
	for _, f := range got {
		if f.Type != models.FrameMessageDelta {
			t.Errorf("only delta frames may precede the failure, got %+v", f)
		}
	}
}

func TestRunStreamInteractionTruncatedStream(t *testing.T) {
	// Channels close without a completed marker and without an error;
	// the turn must fail rather than emit a final frame from partial
	// output.
	fake := &fakeProvider{events: []provider.Event{
		{Type: provider.EventTextDelta, Delta: "half an ans"},
		{Type: provider.EventTextDone},
	}}
	session := newTestSession(t, fake)

	frames, errChan := session.RunStreamInteraction(context.Background(), Turn{NewMessage: "hi"})
	got, err := collectFrames(t, frames, errChan)

	if err == nil {
		t.Fatal("a stream that never completed must surface an error")
	}
	for _, f := range got {
		if f.Type == models.FrameFinalResponse {
			t.Error("no final frame may follow a truncated stream")
		}
	}
}

func TestRunStreamInteractionReasoningIsInert(t *testing.T) {
	fake := &fakeProvider{events: []provider.Event{
		{Type: provider.EventReasoningDelta, Delta: "let me think"},
		{Type: provider.EventReasoningDone},
		{Type: provider.EventTextDelta, Delta: "4"},
		{Type: provider.EventTextDone},
		{Type: provider.EventCompleted},
	}}
	session := newTestSession(t, fake)

	frames, errChan := session.RunStreamInteraction(context.Background(), Turn{NewMessage: "2+2?"})
	got, err := collectFrames(t, frames, errChan)
	if err != nil {
		t.Fatalf("unexpected stream error: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("reasoning deltas must not produce frames; got %d frames: %+v", len(got), got)
	}
	final := got[1]
	if len(final.Data.Response) != 1 {
		t.Errorf("inert reasoning must not add output messages, got %d", len(final.Data.Response))
	}
}

func TestRunInteraction(t *testing.T) {
	fake := &fakeProvider{response: provider.Response{Output: []models.Message{
		{Role: models.RoleAssistant, Content: models.Content{Text: "the answer"}},
	}}}
	session := newTestSession(t, fake)

	history := models.Conversation{
		{Role: models.RoleAssistant, Content: models.Content{Text: "hidden chain"}, Kind: models.KindReasoning, NoShow: true},
	}
	result, err := session.RunInteraction(context.Background(), Turn{
		History:    history,
		NewMessage: "question",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Response) != 1 {
		t.Fatalf("expected one output message, got %d", len(result.Response))
	}
	if result.PromptSuggestions == nil {
		t.Error("promptSuggestions must be an empty slice")
	}

	// Provider input was sanitized; the retained history keeps its flags.
	if fake.lastReq.Input[0].NoShow {
		t.Error("provider input must have suppression flags cleared")
	}
	if !history[0].NoShow {
		t.Error("caller-held history lost its suppression flag")
	}
	if fake.lastReq.Instructions == "" {
		t.Error("provider request must carry instruction text")
	}
}

func TestBuildInteractionRecord(t *testing.T) {
	session := newTestSession(t, &fakeProvider{})
	pseudo, err := stores.NewPseudonymizer("0123456789abcdef0123456789abcdef")
	if err != nil {
		t.Fatalf("failed to build pseudonymizer: %v", err)
	}
	session.Pseudonymizer = pseudo

	turn := Turn{
		NewMessage:   "grade my work",
		StudentID:    "student-42",
		CourseID:     "cs101",
		AssignmentID: "hw3",
	}
	result := models.ChatResult{
		Response: []models.Message{
			{Role: models.RoleAssistant, Content: models.Content{Text: "chain"}, Kind: models.KindReasoning, NoShow: true},
			{Role: models.RoleAssistant, Content: models.Content{Text: "Looks good."}},
		},
		NewChatHistory:    models.Conversation{{Role: models.RoleUser, Content: models.Content{Text: "grade my work"}}},
		PromptSuggestions: []string{},
	}

	record, err := session.buildInteractionRecord(turn, "test-model", result)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := record.Validate(); err != nil {
		t.Fatalf("record failed validation: %v", err)
	}

	if record.StudentID == "student-42" {
		t.Error("raw student id must never be persisted")
	}
	if record.StudentID != pseudo.Pseudonymize("student-42") {
		t.Error("student id must be the deterministic pseudonymous hash")
	}
	if record.ResponseWithTextbook != "Looks good." {
		t.Errorf("reasoning must be excluded from the logged response, got %q", record.ResponseWithTextbook)
	}

	var ctxHistory models.Conversation
	if err := json.Unmarshal([]byte(record.ContextWithoutTextbook), &ctxHistory); err != nil {
		t.Fatalf("logged context must be valid transcript JSON: %v", err)
	}
	if len(ctxHistory) != 1 {
		t.Errorf("expected 1 message in logged context, got %d", len(ctxHistory))
	}
}

func TestBuildInteractionRecordNoPseudonymizer(t *testing.T) {
	session := newTestSession(t, &fakeProvider{})
	if _, err := session.buildInteractionRecord(Turn{StudentID: "s"}, "m", models.ChatResult{}); err == nil {
		t.Fatal("expected an error without a pseudonymizer")
	}
}
