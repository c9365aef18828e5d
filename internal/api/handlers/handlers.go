package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/taskmaster/taskmaster-api/internal/service"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	Auth         *AuthHandler
	User         *UserHandler
	Team         *TeamHandler
	Task         *TaskHandler
	Comment      *CommentHandler
	Attachment   *AttachmentHandler
	Notification *NotificationHandler
}

// NewHandlers creates all handlers
func NewHandlers(services *service.Services) *Handlers {
	return &Handlers{
		Auth:         &AuthHandler{authService: services.Auth},
		User:         &UserHandler{userService: services.User},
		Team:         &TeamHandler{teamService: services.Team},
		Task:         &TaskHandler{taskService: services.Task},
		Comment:      &CommentHandler{commentService: services.Comment},
		Attachment:   &AttachmentHandler{attachmentService: services.Attachment},
		Notification: &NotificationHandler{notificationService: services.Notification},
	}
}

// handleServiceError maps service errors to HTTP responses
func handleServiceError(c *gin.Context, err error) {
	switch err {
	case service.ErrNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": "Resource not found"})
	case service.ErrUserNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
	case service.ErrUnauthorized:
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
	case service.ErrForbidden:
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
	case service.ErrUserExists:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email already registered"})
	case service.ErrConflict:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case service.ErrInvalidCredentials:
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
	case service.ErrInvalidToken:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or expired token"})
	case service.ErrNotMember:
		// Leaving or removing an absent membership targets nothing
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case service.ErrInvalidInvitation,
		service.ErrEmailMismatch,
		service.ErrAlreadyMember,
		service.ErrOwnerProtected,
		service.ErrInvalidInput:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

// paginationParams reads page/limit query params with sane bounds
func paginationParams(c *gin.Context) (limit, offset int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err = strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return limit, (page - 1) * limit
}

// paginated wraps a list response with its total count
func paginated(items interface{}, total, limit, offset int) gin.H {
	return gin.H{
		"items": items,
		"total": total,
		"page":  offset/limit + 1,
		"limit": limit,
	}
}
