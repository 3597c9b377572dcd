package chat

import (
	"github.com/cellmate-ai/cellmate/attachments"
	"github.com/cellmate-ai/cellmate/models"
	"github.com/cellmate-ai/cellmate/prompts"
)

// Selection is the model identifier and instruction text chosen for a
// provider call.
type Selection struct {
	Model        string
	Instructions string
}

// Select resolves the instruction template for the cell type and the
// model to use. Model choice currently always resolves to the
// configured identifier; HasImages is evaluated anyway because it is
// the extension point for per-modality routing.
func Select(lib *prompts.Library, model string, conv models.Conversation, files []attachments.Upload, cellType string) Selection {
	_ = HasImages(conv, files)
	return Selection{
		Model:        model,
		Instructions: lib.ForCellType(cellType),
	}
}

// HasImages reports whether any message in the conversation carries an
// input_image block, or any newly uploaded file classifies as an image
// by extension or magic sniff.
func HasImages(conv models.Conversation, files []attachments.Upload) bool {
	for _, msg := range conv {
		if !msg.Content.IsBlockList() {
			continue
		}
		for _, b := range msg.Content.Blocks {
			if b.Type == models.BlockInputImage {
				return true
			}
		}
	}
	for _, f := range files {
		if attachments.IsImage(f) {
			return true
		}
	}
	return false
}
