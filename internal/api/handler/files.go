package handler

import (
	"io"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/kaili/songforge/internal/storage"
)

// FilesHandler serves artifacts from the local storage backend. S3/R2
// deployments hand out direct object URLs and never hit this route.
type FilesHandler struct {
	storage storage.ObjectStorage
}

// NewFilesHandler creates a new files handler.
func NewFilesHandler(store storage.ObjectStorage) *FilesHandler {
	return &FilesHandler{storage: store}
}

// Get handles GET /api/v1/files/:key.
func (h *FilesHandler) Get(c *gin.Context) {
	key := c.Param("key")

	obj, err := h.storage.Open(c.Request.Context(), key)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": "file not found"})
		return
	}
	defer obj.Close()

	contentType := mime.TypeByExtension(filepath.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Type", contentType)
	c.Status(http.StatusOK)
	io.Copy(c.Writer, obj)
}
