// Package chat implements the conversation pipeline: message assembly,
// instruction selection, the streaming session driver, and transcript
// compaction.
package chat

import (
	"strings"

	"github.com/cellmate-ai/cellmate/attachments"
	"github.com/cellmate-ai/cellmate/models"
)

// AssembleMessages merges prior transcript, new text, and classified
// attachments into a provider-ready conversation. The input history is
// never mutated; the result is a fresh copy.
//
// Attachments are classified in file order and their blocks keep that
// order. The new-text block is appended last and is the only
// displayable block of the turn.
func AssembleMessages(history models.Conversation, newText string, files []attachments.Upload) models.Conversation {
	conv := history.Clone()

	var blocks []models.ContentBlock
	for _, f := range files {
		if b := attachments.Classify(f); b != nil {
			blocks = append(blocks, *b)
		}
	}
	if newText != "" {
		blocks = append(blocks, models.TextBlock(newText))
	}

	if len(blocks) == 0 {
		return conv
	}

	// Duplicate-submit guard: a client retry resending the same text as
	// the trailing user turn adds nothing. Attachments riding on the
	// duplicate are dropped with it.
	if isDuplicateSubmit(conv, newText) {
		return conv
	}

	return append(conv, models.Message{
		Role:    models.RoleUser,
		Content: models.Content{Blocks: blocks},
	})
}

// isDuplicateSubmit reports whether the trailing message of the
// transcript is a user turn whose first text, trimmed, equals the new
// text trimmed. Both sides must be non-empty for the guard to fire.
func isDuplicateSubmit(conv models.Conversation, newText string) bool {
	trimmed := strings.TrimSpace(newText)
	if trimmed == "" || len(conv) == 0 {
		return false
	}

	last := conv[len(conv)-1]
	if last.Role != models.RoleUser {
		return false
	}

	lastText, ok := last.Content.FirstText()
	if !ok {
		return false
	}
	lastTrimmed := strings.TrimSpace(lastText)
	return lastTrimmed != "" && lastTrimmed == trimmed
}
