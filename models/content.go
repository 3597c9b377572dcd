package models

import (
	"encoding/json"
	"fmt"
)

// Message roles as they appear on the wire.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message kinds. An empty kind is treated as KindMessage.
const (
	KindMessage   = "message"
	KindReasoning = "reasoning"
)

// Content block types.
const (
	BlockInputText  = "input_text"
	BlockInputImage = "input_image"
)

// ContentBlock is one typed unit of message content: either text or an
// inline base64 image. NoShow marks the block as provider-input-only:
// it participates in model calls but is suppressed when history is
// rendered back to a human.
type ContentBlock struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"` // base64 payload for input_image
	NoShow   bool   `json:"noShow,omitempty"`
}

// TextBlock creates a displayable input_text block.
func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockInputText, Text: text}
}

// HiddenTextBlock creates an input_text block that is suppressed in
// human-facing transcript views.
func HiddenTextBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockInputText, Text: text, NoShow: true}
}

// ImageBlock creates a suppressed input_image block. Attachments are
// provider-input-only, never echoed back in rendered history.
func ImageBlock(mimeType, base64Data string) ContentBlock {
	return ContentBlock{Type: BlockInputImage, MimeType: mimeType, Data: base64Data, NoShow: true}
}

// Content holds a message body, which on the wire is either a plain
// string or a list of content blocks. Blocks == nil means plain string.
type Content struct {
	Text   string
	Blocks []ContentBlock
}

// IsBlockList reports whether the content is a content-block sequence.
func (c Content) IsBlockList() bool {
	return c.Blocks != nil
}

// FirstText returns the text of the first input_text block in a block
// list, or the plain string for string content. ok is false when a
// block list contains no text block.
func (c Content) FirstText() (string, bool) {
	if !c.IsBlockList() {
		return c.Text, true
	}
	for _, b := range c.Blocks {
		if b.Type == BlockInputText {
			return b.Text, true
		}
	}
	return "", false
}

// MarshalJSON emits a bare string for string content and an array for
// block content, matching the client-facing transcript shape.
func (c Content) MarshalJSON() ([]byte, error) {
	if c.IsBlockList() {
		return json.Marshal(c.Blocks)
	}
	return json.Marshal(c.Text)
}

// UnmarshalJSON accepts either a JSON string or an array of blocks.
func (c *Content) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		c.Text = s
		c.Blocks = nil
		return nil
	}
	var blocks []ContentBlock
	if err := json.Unmarshal(data, &blocks); err != nil {
		return fmt.Errorf("content must be a string or a block list: %w", err)
	}
	if blocks == nil {
		blocks = []ContentBlock{}
	}
	c.Text = ""
	c.Blocks = blocks
	return nil
}

// Message is one entry in a conversation transcript. A reasoning-kind
// message is never rendered to a human; it rides along in history as a
// suppressed artifact that is still forwarded to the provider.
type Message struct {
	Role    string  `json:"role"`
	Content Content `json:"content"`
	Kind    string  `json:"type,omitempty"`
	NoShow  bool    `json:"noShow,omitempty"`
}

// Clone returns a deep copy of the message.
func (m Message) Clone() Message {
	out := m
	if m.Content.Blocks != nil {
		out.Content.Blocks = make([]ContentBlock, len(m.Content.Blocks))
		copy(out.Content.Blocks, m.Content.Blocks)
	}
	return out
}

// Conversation is the ordered transcript resent on every turn.
// Insertion order is chat order.
type Conversation []Message

// Clone returns a deep copy of the conversation.
func (c Conversation) Clone() Conversation {
	out := make(Conversation, len(c))
	for i, m := range c {
		out[i] = m.Clone()
	}
	return out
}
