package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/taskmaster/taskmaster-api/internal/api/middleware"
	"github.com/taskmaster/taskmaster-api/internal/service"
)

// CommentHandler handles comment HTTP requests
type CommentHandler struct {
	commentService service.CommentService
}

// CreateCommentRequest represents the request body for creating a comment
type CreateCommentRequest struct {
	Content         string  `json:"content" binding:"required,min=1,max=2000"`
	ParentCommentID *string `json:"parentCommentId"`
}

// UpdateCommentRequest represents the request body for editing a comment
type UpdateCommentRequest struct {
	Content string `json:"content" binding:"required,min=1,max=2000"`
}

// Create adds a comment to a task
func (h *CommentHandler) Create(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	var req CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	comment, err := h.commentService.Create(c.Request.Context(), c.Param("id"), userID, req.Content, req.ParentCommentID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

// ListByTask lists a task's comments
func (h *CommentHandler) ListByTask(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	limit, offset := paginationParams(c)
	comments, total, err := h.commentService.ListByTask(c.Request.Context(), c.Param("id"), userID, limit, offset)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, paginated(comments, total, limit, offset))
}

// Update edits a comment (author only)
func (h *CommentHandler) Update(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	var req UpdateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	comment, err := h.commentService.Update(c.Request.Context(), c.Param("id"), userID, req.Content)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, comment)
}

// Delete soft-deletes a comment (author only)
func (h *CommentHandler) Delete(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	if err := h.commentService.Delete(c.Request.Context(), c.Param("id"), userID); err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Comment deleted"})
}
