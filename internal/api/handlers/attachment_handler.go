package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/taskmaster/taskmaster-api/internal/api/middleware"
	"github.com/taskmaster/taskmaster-api/internal/service"
)

// AttachmentHandler handles attachment HTTP requests
type AttachmentHandler struct {
	attachmentService service.AttachmentService
	maxUploadSize     int64
}

// SetMaxUploadSize bounds accepted upload sizes in bytes
func (h *AttachmentHandler) SetMaxUploadSize(size int64) {
	h.maxUploadSize = size
}

// Upload stores a file against a task
func (h *AttachmentHandler) Upload(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	if h.maxUploadSize > 0 && file.Size > h.maxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error": fmt.Sprintf("file exceeds the %d byte limit", h.maxUploadSize),
		})
		return
	}

	attachment, err := h.attachmentService.Upload(c.Request.Context(), c.Param("id"), userID, file)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, attachment)
}

// ListByTask lists a task's attachments
func (h *AttachmentHandler) ListByTask(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	attachments, err := h.attachmentService.ListByTask(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, attachments)
}

// Download streams an attachment's content
func (h *AttachmentHandler) Download(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	attachment, f, err := h.attachmentService.Download(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	defer f.Close()

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", attachment.OriginalName))
	c.Header("Content-Type", attachment.MimeType)
	http.ServeContent(c.Writer, c.Request, attachment.OriginalName, attachment.CreatedAt, f)
}

// Delete removes an attachment (uploader only)
func (h *AttachmentHandler) Delete(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	if err := h.attachmentService.Delete(c.Request.Context(), c.Param("id"), userID); err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Attachment deleted"})
}
