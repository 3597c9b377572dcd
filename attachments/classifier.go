// Package attachments converts uploaded files into typed content blocks
// for the conversation pipeline.
package attachments

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/cellmate-ai/cellmate/models"
)

// Upload is one raw file received with a turn.
type Upload struct {
	Name string
	Data []byte
}

// imageExts maps recognized image extensions to their mime type.
var imageExts = map[string]string{
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"bmp":  "image/bmp",
	"webp": "image/webp",
}

// textExts is the fixed set of extensions classified as plain text with
// a generic "<EXT> File (<name>):" header.
var textExts = map[string]bool{
	"txt":  true,
	"md":   true,
	"json": true,
	"xml":  true,
	"html": true,
	"css":  true,
	"js":   true,
	"ts":   true,
	"jsx":  true,
	"tsx":  true,
}

// Classify inspects one upload and converts it into exactly one content
// block. Decision order: image extension, image magic bytes, known text
// extension, unsupported placeholder. An empty input yields nil and is
// silently skipped. Every produced block is marked non-displayable:
// attachments are provider-input-only and never echoed back in rendered
// history.
func Classify(f Upload) *models.ContentBlock {
	if f.Name == "" && len(f.Data) == 0 {
		return nil
	}

	ext := fileExt(f.Name)

	if mime, ok := imageExts[ext]; ok {
		block := models.ImageBlock(mime, base64.StdEncoding.EncodeToString(f.Data))
		return &block
	}
	if mime := SniffImageMime(f.Data); mime != "" {
		block := models.ImageBlock(mime, base64.StdEncoding.EncodeToString(f.Data))
		return &block
	}

	var header string
	switch {
	case ext == "py":
		header = fmt.Sprintf("Python Code File (%s):", f.Name)
	case ext == "csv":
		header = fmt.Sprintf("CSV Data File (%s):", f.Name)
	case textExts[ext]:
		header = fmt.Sprintf("%s File (%s):", strings.ToUpper(ext), f.Name)
	default:
		// Unknown type: a placeholder only, the payload is not forwarded.
		block := models.HiddenTextBlock(fmt.Sprintf("[Unsupported file type: %s. Content was not processed.]", f.Name))
		return &block
	}

	block := models.HiddenTextBlock(header + "\n" + string(f.Data))
	return &block
}

// IsImage reports whether an upload would classify as an image, by
// extension or by magic-byte sniff. It backs the per-modality routing
// predicate in the model selector.
func IsImage(f Upload) bool {
	if _, ok := imageExts[fileExt(f.Name)]; ok {
		return true
	}
	return SniffImageMime(f.Data) != ""
}

// SniffImageMime detects an image format from the leading bytes of a
// file. Returns the mime type, or "" when no known signature matches.
func SniffImageMime(data []byte) string {
	if len(data) >= 4 && bytes.Equal(data[:4], []byte{0x89, 0x50, 0x4E, 0x47}) {
		return "image/png"
	}
	if len(data) >= 3 && bytes.Equal(data[:3], []byte{0xFF, 0xD8, 0xFF}) {
		return "image/jpeg"
	}
	if len(data) >= 4 && bytes.Equal(data[:4], []byte("GIF8")) {
		return "image/gif"
	}
	if len(data) >= 2 && bytes.Equal(data[:2], []byte("BM")) {
		return "image/bmp"
	}
	if len(data) >= 12 && bytes.Equal(data[:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")) {
		return "image/webp"
	}
	return ""
}

func fileExt(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}
