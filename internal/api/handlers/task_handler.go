package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/taskmaster/taskmaster-api/internal/ai"
	"github.com/taskmaster/taskmaster-api/internal/api/middleware"
	"github.com/taskmaster/taskmaster-api/internal/repository"
	"github.com/taskmaster/taskmaster-api/internal/service"
)

// TaskHandler handles task HTTP requests
type TaskHandler struct {
	taskService service.TaskService
}

// CreateTaskRequest represents the request body for creating a task
type CreateTaskRequest struct {
	Title       string     `json:"title" binding:"required,min=1,max=200"`
	Description string     `json:"description" binding:"max=5000"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	DueDate     *time.Time `json:"dueDate"`
	AssigneeID  *string    `json:"assigneeId"`
	TeamID      *string    `json:"teamId"`
	Tags        []string   `json:"tags"`
}

// UpdateTaskRequest represents the request body for updating a task
type UpdateTaskRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Status      *string    `json:"status"`
	Priority    *string    `json:"priority"`
	DueDate     *time.Time `json:"dueDate"`
	ClearDue    bool       `json:"clearDue"`
	AssigneeID  *string    `json:"assigneeId"`
	Unassign    bool       `json:"unassign"`
	Tags        []string   `json:"tags"`
	IsArchived  *bool      `json:"isArchived"`
}

// SuggestTasksRequest represents the request body for AI task suggestions
type SuggestTasksRequest struct {
	Text string `json:"text" binding:"required,max=10000"`
}

// Create creates a new task
func (h *TaskHandler) Create(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	task, err := h.taskService.Create(c.Request.Context(), userID, service.TaskInput{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		DueDate:     req.DueDate,
		AssigneeID:  req.AssigneeID,
		TeamID:      req.TeamID,
		Tags:        req.Tags,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

// Get retrieves a task by ID
func (h *TaskHandler) Get(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	task, err := h.taskService.GetByID(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// List lists tasks matching query filters
func (h *TaskHandler) List(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	filter := repository.TaskFilter{
		TeamID:     c.Query("teamId"),
		Status:     c.Query("status"),
		Priority:   c.Query("priority"),
		AssigneeID: c.Query("assigneeId"),
		Search:     c.Query("q"),
		Tag:        c.Query("tag"),
	}
	if archived := c.Query("archived"); archived != "" {
		v := archived == "true"
		filter.Archived = &v
	}

	limit, offset := paginationParams(c)
	tasks, total, err := h.taskService.List(c.Request.Context(), userID, filter, limit, offset)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, paginated(tasks, total, limit, offset))
}

// Update updates a task
func (h *TaskHandler) Update(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	var req UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	task, err := h.taskService.Update(c.Request.Context(), c.Param("id"), userID, service.TaskUpdate{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		DueDate:     req.DueDate,
		ClearDue:    req.ClearDue,
		AssigneeID:  req.AssigneeID,
		Unassign:    req.Unassign,
		Tags:        req.Tags,
		IsArchived:  req.IsArchived,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// Delete deletes a task (creator only)
func (h *TaskHandler) Delete(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	if err := h.taskService.Delete(c.Request.Context(), c.Param("id"), userID); err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Task deleted"})
}

// Complete marks a task completed
func (h *TaskHandler) Complete(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	status := repository.StatusCompleted
	task, err := h.taskService.Update(c.Request.Context(), c.Param("id"), userID, service.TaskUpdate{
		Status: &status,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// Summarize returns an AI-generated summary of a task and its comments
func (h *TaskHandler) Summarize(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	summary, err := h.taskService.Summarize(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		if err == ai.ErrNotConfigured {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "AI features are not configured"})
			return
		}
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": summary})
}

// Suggest extracts task suggestions from free-form text
func (h *TaskHandler) Suggest(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	var req SuggestTasksRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	suggestions, err := h.taskService.SuggestFromText(c.Request.Context(), userID, req.Text)
	if err != nil {
		if err == ai.ErrNotConfigured {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "AI features are not configured"})
			return
		}
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": suggestions})
}
