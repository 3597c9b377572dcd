package chat

import (
	"github.com/cellmate-ai/cellmate/models"
)

// CompactHistory rewrites a finished transcript so it is safe to resend
// as history on the next turn: heavy payloads (images) are dropped,
// multi-part content collapses to its first text block, and reasoning
// messages are re-marked as suppressed. The input is never mutated and
// the rewrite is idempotent.
func CompactHistory(conv models.Conversation) models.Conversation {
	out := make(models.Conversation, 0, len(conv))

	for _, msg := range conv {
		m := msg.Clone()

		if m.Kind == models.KindReasoning {
			m.NoShow = true
		}

		if m.Content.IsBlockList() {
			if text, ok := firstTextBlock(m.Content.Blocks); ok {
				// Images and other non-text blocks are discarded outright,
				// not kept as placeholders.
				m.Content = models.Content{Text: text}
			}
			// No text block at all: keep the original content unchanged.
		}

		out = append(out, m)
	}

	return out
}

func firstTextBlock(blocks []models.ContentBlock) (string, bool) {
	for _, b := range blocks {
		if b.Type == models.BlockInputText {
			return b.Text, true
		}
	}
	return "", false
}
