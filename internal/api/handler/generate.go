package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kaili/songforge/internal/api/middleware"
	"github.com/kaili/songforge/internal/service"
)

// GenerateHandler handles generation submission and its progress stream.
type GenerateHandler struct {
	generation *service.GenerationService
	stream     *service.StreamService
}

// NewGenerateHandler creates a new generate handler.
func NewGenerateHandler(generation *service.GenerationService, stream *service.StreamService) *GenerateHandler {
	return &GenerateHandler{
		generation: generation,
		stream:     stream,
	}
}

type generateRequest struct {
	Prompt   string `json:"prompt"`
	Lyrics   string `json:"lyrics"`
	Duration *int   `json:"duration"`
	Title    string `json:"title"`
}

// Generate handles POST /api/v1/generate. On success the job is queued and
// the client follows events_url for progress.
func (h *GenerateHandler) Generate(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":  "invalid_input",
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	duration := 30
	if req.Duration != nil {
		duration = *req.Duration
	}

	out, err := h.generation.Submit(c.Request.Context(), service.SubmitInput{
		UserID:   middleware.CurrentUserID(c),
		Prompt:   req.Prompt,
		Lyrics:   req.Lyrics,
		Duration: duration,
		Title:    req.Title,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidInput):
			c.JSON(http.StatusBadRequest, gin.H{
				"code":  "invalid_input",
				"error": err.Error(),
			})
		case errors.Is(err, service.ErrQuotaExceeded):
			c.JSON(http.StatusPaymentRequired, gin.H{
				"code":  "quota_exceeded",
				"error": err.Error(),
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to start generation",
			})
		}
		return
	}

	c.JSON(http.StatusCreated, out)
}

// Events handles GET /api/v1/generate/events/:job_id as a server-sent event
// stream. The stream ends on terminal job state, client disconnect, or
// timeout; reconnecting clients get the latest record as their first frame.
func (h *GenerateHandler) Events(c *gin.Context) {
	jobID := c.Param("job_id")
	userID := middleware.CurrentUserID(c)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	ctx := c.Request.Context()
	h.stream.Stream(ctx, userID, jobID, func(frame service.Frame) bool {
		select {
		case <-ctx.Done():
			return false
		default:
		}
		c.SSEvent(frame.Event, frame.Data)
		c.Writer.Flush()
		return true
	})
}
