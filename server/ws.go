package server

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/cellmate-ai/cellmate/chat"
	"github.com/cellmate-ai/cellmate/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsTurnRequest is the single JSON message a client sends after
// connecting. chatHistory follows the same lenient decoding as the
// HTTP endpoint.
type wsTurnRequest struct {
	ChatHistory  json.RawMessage `json:"chatHistory"`
	NewMessage   string          `json:"newMessage"`
	CellType     string          `json:"cellType"`
	StudentID    string          `json:"studentId"`
	CourseID     string          `json:"courseId"`
	AssignmentID string          `json:"assignmentId"`
}

// wsDoneFrame closes out a turn on the socket. SSE uses the [DONE]
// record for the same purpose.
type wsDoneFrame struct {
	Type string `json:"type"`
}

// wsWriter serializes concurrent writes to one connection.
type wsWriter struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (w *wsWriter) writeJSON(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteJSON(v)
}

// HandleWS upgrades the connection and streams one chat turn per
// incoming request message, ending each with a done frame.
func (h *ChatHandler) HandleWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.Logger.Errorf("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	sessionID := uuid.NewString()
	writer := &wsWriter{conn: conn}
	h.Logger.Infof("websocket session %s opened", sessionID)

	for {
		var req wsTurnRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.Logger.Warnf("websocket session %s read error: %v", sessionID, err)
			}
			return
		}

		history, err := models.DecodeHistory(req.ChatHistory)
		if err != nil {
			if werr := writer.writeJSON(models.ErrorFrame(err)); werr != nil {
				return
			}
			if werr := writer.writeJSON(wsDoneFrame{Type: "done"}); werr != nil {
				return
			}
			continue
		}

		turn := chat.Turn{
			History:      history,
			NewMessage:   req.NewMessage,
			CellType:     req.CellType,
			StudentID:    req.StudentID,
			CourseID:     req.CourseID,
			AssignmentID: req.AssignmentID,
		}

		if !h.streamTurnToSocket(c, writer, turn, sessionID) {
			return
		}
	}
}

// streamTurnToSocket runs one turn and relays frames. Returns false
// when the socket is no longer writable.
func (h *ChatHandler) streamTurnToSocket(c *gin.Context, writer *wsWriter, turn chat.Turn, sessionID string) bool {
	frames, errChan := h.Session.RunStreamInteraction(c.Request.Context(), turn)

	wroteData := false
	for {
		select {
		case frame, ok := <-frames:
			if !ok {
				frames = nil
				continue
			}
			if err := writer.writeJSON(frame); err != nil {
				h.Logger.Warnf("websocket session %s write failed: %v", sessionID, err)
				return false
			}
			wroteData = true

		case err, ok := <-errChan:
			if ok && err != nil {
				h.Logger.Errorf("websocket session %s turn failed: %v", sessionID, err)
				if !wroteData {
					if werr := writer.writeJSON(models.ErrorFrame(err)); werr != nil {
						return false
					}
				}
				return writer.writeJSON(wsDoneFrame{Type: "done"}) == nil
			}
			if !ok {
				errChan = nil
			}
		}

		if frames == nil && errChan == nil {
			return writer.writeJSON(wsDoneFrame{Type: "done"}) == nil
		}
	}
}
