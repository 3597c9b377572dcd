// Package server exposes the conversation pipeline over HTTP, SSE, and
// WebSocket transports.
package server

import (
	"encoding/json"
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/cellmate-ai/cellmate/models"
)

// sseTerminal is the literal terminal record. Consumers must treat the
// stream as done only when they see it, not on transport close.
const sseTerminal = "[DONE]"

// SSEWriter emits stream frames as server-sent-event records.
type SSEWriter interface {
	WriteFrame(frame models.StreamFrame) error
	WriteDone() error
	WroteData() bool
}

// GinSSEWriter implements SSEWriter on a gin context. Each record is a
// `data: ` prefixed JSON payload followed by a blank line, flushed
// immediately.
type GinSSEWriter struct {
	Context   *gin.Context
	wroteData bool
}

// WriteFrame marshals and flushes one frame record.
func (w *GinSSEWriter) WriteFrame(frame models.StreamFrame) error {
	payload, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("failed to marshal stream frame: %w", err)
	}
	if _, err := fmt.Fprintf(w.Context.Writer, "data: %s\n\n", payload); err != nil {
		return fmt.Errorf("failed to write stream frame: %w", err)
	}
	w.Context.Writer.Flush()
	w.wroteData = true
	return nil
}

// WriteDone emits the terminal sentinel record.
func (w *GinSSEWriter) WriteDone() error {
	if _, err := fmt.Fprintf(w.Context.Writer, "data: %s\n\n", sseTerminal); err != nil {
		return fmt.Errorf("failed to write terminal record: %w", err)
	}
	w.Context.Writer.Flush()
	return nil
}

// WroteData reports whether any frame has been flushed yet. Error
// frames may only be sent while this is false.
func (w *GinSSEWriter) WroteData() bool {
	return w.wroteData
}

func setSSEHeaders(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
}
