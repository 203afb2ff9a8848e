package qa

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/liliang-cn/docqa/internal/api/response"
	"github.com/liliang-cn/docqa/internal/domain"
	"github.com/liliang-cn/docqa/internal/service"
	"go.uber.org/zap"
)

const multipartSlack = 1 << 20

// Endpoints lists the public routes reported by the root endpoint
var Endpoints = []string{"/upload", "/ask", "/healthz", "/sessions/{id}", "/sessions/{id}/history", "/metrics"}

// Handler handles the document QA API
type Handler struct {
	ingestService *service.IngestService
	qaService     *service.QAService
	maxUpload     int64
	logger        *zap.Logger
}

// NewHandler creates a new QA handler. maxUpload is in bytes; 0 disables the limit.
func NewHandler(ingestService *service.IngestService, qaService *service.QAService, maxUpload int64, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		ingestService: ingestService,
		qaService:     qaService,
		maxUpload:     maxUpload,
		logger:        logger,
	}
}

// RegisterRoutes registers QA routes. Healthz is left to the caller.
func (h *Handler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/", h.Index)
	r.POST("/upload", h.Upload)
	r.POST("/ask", h.Ask)
	r.GET("/sessions/:id", h.GetSession)
	r.DELETE("/sessions/:id", h.DeleteSession)
	r.GET("/sessions/:id/history", h.GetHistory)
}

// Index describes the API
func (h *Handler) Index(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message":   "Document QA API is running",
		"endpoints": Endpoints,
	})
}

// Healthz reports liveness
func (h *Handler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Upload indexes a multipart "file" and opens a session for it
func (h *Handler) Upload(c *gin.Context) {
	if h.maxUpload > 0 {
		// Leave room for the multipart envelope and the other form fields.
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload+multipartSlack)
	}

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.tooLarge(c)
			return
		}
		response.Error(c, h.logger, fmt.Errorf("%w: file is required", domain.ErrInvalidRequest))
		return
	}
	if h.maxUpload > 0 && fh.Size > h.maxUpload {
		h.tooLarge(c)
		return
	}

	f, err := fh.Open()
	if err != nil {
		response.Error(c, h.logger, fmt.Errorf("failed to open uploaded file: %w", err))
		return
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		response.Error(c, h.logger, fmt.Errorf("failed to read uploaded file: %w", err))
		return
	}

	sess, err := h.ingestService.Upload(c.Request.Context(), service.UploadRequest{
		Filename: fh.Filename,
		Content:  content,
		APIKey:   c.PostForm("openai_api_key"),
	})
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, domain.UploadResponse{
		SessionID: sess.ID,
		Message:   service.UploadMessage,
		Filename:  sess.Filename,
		Chunks:    sess.ChunkCount,
	})
}

func (h *Handler) tooLarge(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{
		"status":  "error",
		"error":   response.KindInvalidRequest,
		"message": fmt.Sprintf("file exceeds the %d byte upload limit", h.maxUpload),
	})
}

// Ask answers the form fields session_id and question
func (h *Handler) Ask(c *gin.Context) {
	ans, err := h.qaService.Ask(c.Request.Context(), c.PostForm("session_id"), c.PostForm("question"))
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, ans)
}

// GetSession returns a live session
func (h *Handler) GetSession(c *gin.Context) {
	sess, err := h.qaService.Session(c.Param("id"))
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

// DeleteSession drops a live session
func (h *Handler) DeleteSession(c *gin.Context) {
	if err := h.qaService.Delete(c.Param("id")); err != nil {
		response.Error(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "session deleted"})
}

// GetHistory returns the recorded Q&A of a session
func (h *Handler) GetHistory(c *gin.Context) {
	id := c.Param("id")
	messages, err := h.qaService.History(id)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": id, "messages": messages})
}
