package server

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cellmate-ai/cellmate/attachments"
	"github.com/cellmate-ai/cellmate/chat"
	"github.com/cellmate-ai/cellmate/models"
	"github.com/cellmate-ai/cellmate/stores"
)

// maxUploadBytes caps the in-memory portion of a multipart request.
const maxUploadBytes = 32 << 20

// ChatHandler serves chat turns over HTTP and WebSocket.
type ChatHandler struct {
	Session       *chat.Session
	Store         stores.InteractionStore
	Pseudonymizer *stores.Pseudonymizer
	Logger        *zap.SugaredLogger
}

// jsonChatRequest is the JSON-body request shape. chatHistory may be an
// array of messages or a JSON-encoded string of one; stream accepts a
// bool, string, or number.
type jsonChatRequest struct {
	ChatHistory  json.RawMessage `json:"chatHistory"`
	NewMessage   string          `json:"newMessage"`
	CellType     string          `json:"cellType"`
	Stream       any             `json:"stream"`
	StudentID    string          `json:"studentId"`
	CourseID     string          `json:"courseId"`
	AssignmentID string          `json:"assignmentId"`
}

// HandleChat runs one conversation turn. With stream enabled (the
// default) the response is an SSE frame sequence ending in the literal
// [DONE] record; otherwise it is a single JSON result.
func (h *ChatHandler) HandleChat(c *gin.Context) {
	turn, stream, err := h.parseRequest(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !stream {
		result, err := h.Session.RunInteraction(c.Request.Context(), *turn)
		if err != nil {
			h.Logger.Errorf("chat turn failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, result)
		return
	}

	setSSEHeaders(c)
	writer := &GinSSEWriter{Context: c}

	frames, errChan := h.Session.RunStreamInteraction(c.Request.Context(), *turn)

	for {
		select {
		case frame, ok := <-frames:
			if !ok {
				frames = nil
			} else if err := writer.WriteFrame(frame); err != nil {
				h.Logger.Warnf("client went away mid-stream: %v", err)
				return
			}

		case err, ok := <-errChan:
			if ok && err != nil {
				h.Logger.Errorf("stream turn failed: %v", err)
				// Partial output already flushed is never retracted; the
				// error frame is only sent when nothing has gone out yet.
				if !writer.WroteData() {
					if werr := writer.WriteFrame(models.ErrorFrame(err)); werr != nil {
						h.Logger.Warnf("failed to write error frame: %v", werr)
					}
				}
				if werr := writer.WriteDone(); werr != nil {
					h.Logger.Warnf("failed to write terminal record: %v", werr)
				}
				_ = c.Error(err)
				return
			}
			if !ok {
				errChan = nil
			}
		}

		if frames == nil && errChan == nil {
			if err := writer.WriteDone(); err != nil {
				h.Logger.Warnf("failed to write terminal record: %v", err)
			}
			return
		}
	}
}

// HandleInteractions returns the logged turns for one student, newest
// first. The studentId query parameter is the raw id; it is hashed with
// the same pseudonymizer the logger uses before the store lookup.
func (h *ChatHandler) HandleInteractions(c *gin.Context) {
	if h.Store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "interaction logging is disabled"})
		return
	}

	studentID := c.Query("studentId")
	if studentID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "studentId query parameter is required"})
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	key := studentID
	if h.Pseudonymizer != nil {
		key = h.Pseudonymizer.Pseudonymize(studentID)
	}

	records, err := h.Store.FetchByStudent(key, limit)
	if err != nil {
		h.Logger.Errorf("failed to fetch interaction records: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch interaction records"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"interactions": records})
}

// HandleHealth reports service and store health.
func (h *ChatHandler) HandleHealth(c *gin.Context) {
	if h.Store != nil {
		if err := h.Store.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// parseRequest decodes either a multipart form (with file uploads) or a
// JSON body into a turn plus the stream flag.
func (h *ChatHandler) parseRequest(c *gin.Context) (*chat.Turn, bool, error) {
	contentType := c.ContentType()

	if strings.HasPrefix(contentType, "multipart/form-data") {
		return h.parseMultipart(c)
	}
	return h.parseJSON(c)
}

func (h *ChatHandler) parseMultipart(c *gin.Context) (*chat.Turn, bool, error) {
	if err := c.Request.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, false, errors.New("malformed multipart form")
	}
	form := c.Request.MultipartForm

	history, err := models.DecodeHistory([]byte(c.PostForm("chatHistory")))
	if err != nil {
		return nil, false, err
	}

	var files []attachments.Upload
	for _, fh := range form.File["files"] {
		upload, err := readUpload(fh)
		if err != nil {
			return nil, false, err
		}
		files = append(files, upload)
	}

	turn := &chat.Turn{
		History:      history,
		NewMessage:   c.PostForm("newMessage"),
		CellType:     c.PostForm("cellType"),
		Files:        files,
		StudentID:    c.PostForm("studentId"),
		CourseID:     c.PostForm("courseId"),
		AssignmentID: c.PostForm("assignmentId"),
	}
	return turn, parseStreamFlag(c.PostForm("stream")), nil
}

func (h *ChatHandler) parseJSON(c *gin.Context) (*chat.Turn, bool, error) {
	var req jsonChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, false, errors.New("malformed request body")
	}

	history, err := models.DecodeHistory(req.ChatHistory)
	if err != nil {
		return nil, false, err
	}

	turn := &chat.Turn{
		History:      history,
		NewMessage:   req.NewMessage,
		CellType:     req.CellType,
		StudentID:    req.StudentID,
		CourseID:     req.CourseID,
		AssignmentID: req.AssignmentID,
	}
	return turn, boolish(req.Stream), nil
}

func readUpload(fh *multipart.FileHeader) (attachments.Upload, error) {
	f, err := fh.Open()
	if err != nil {
		return attachments.Upload{}, errors.New("failed to open uploaded file " + fh.Filename)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return attachments.Upload{}, errors.New("failed to read uploaded file " + fh.Filename)
	}
	return attachments.Upload{Name: fh.Filename, Data: data}, nil
}

// parseStreamFlag interprets a boolean-ish form value; empty defaults
// to streaming on.
func parseStreamFlag(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "false", "0", "no", "off":
		return false
	default:
		return true
	}
}

// boolish interprets the JSON stream field across the types clients
// actually send.
func boolish(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case bool:
		return t
	case string:
		return parseStreamFlag(t)
	case float64:
		return t != 0
	default:
		return true
	}
}
