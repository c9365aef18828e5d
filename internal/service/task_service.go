package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/taskmaster/taskmaster-api/internal/ai"
	"github.com/taskmaster/taskmaster-api/internal/email"
	"github.com/taskmaster/taskmaster-api/internal/notification"
	"github.com/taskmaster/taskmaster-api/internal/repository"
	"github.com/taskmaster/taskmaster-api/internal/socket"
)

// ============================================
// Task Service
// ============================================

type TaskService interface {
	Create(ctx context.Context, creatorID string, input TaskInput) (*repository.Task, error)
	GetByID(ctx context.Context, taskID, userID string) (*repository.Task, error)
	List(ctx context.Context, userID string, filter repository.TaskFilter, limit, offset int) ([]*repository.Task, int, error)
	Update(ctx context.Context, taskID, userID string, update TaskUpdate) (*repository.Task, error)
	Delete(ctx context.Context, taskID, userID string) error
	SuggestFromText(ctx context.Context, userID, text string) ([]ai.SuggestedTask, error)
	Summarize(ctx context.Context, taskID, userID string) (string, error)
}

// TaskInput carries the fields for task creation
type TaskInput struct {
	Title       string
	Description string
	Status      string
	Priority    string
	DueDate     *time.Time
	AssigneeID  *string
	TeamID      *string
	Tags        []string
}

// TaskUpdate carries optional task fields; nil means "leave as is"
type TaskUpdate struct {
	Title       *string
	Description *string
	Status      *string
	Priority    *string
	DueDate     *time.Time
	ClearDue    bool
	AssigneeID  *string
	Unassign    bool
	Tags        []string
	IsArchived  *bool
}

type taskService struct {
	taskRepo    repository.TaskRepository
	teamRepo    repository.TeamRepository
	userRepo    repository.UserRepository
	commentRepo repository.CommentRepository
	notifSvc    *notification.Service
	emailQueue  *email.Queue
	broadcast   *socket.Broadcaster
	aiSvc       *ai.Service
}

func NewTaskService(
	taskRepo repository.TaskRepository,
	teamRepo repository.TeamRepository,
	userRepo repository.UserRepository,
	commentRepo repository.CommentRepository,
	notifSvc *notification.Service,
	emailQueue *email.Queue,
	broadcast *socket.Broadcaster,
	aiSvc *ai.Service,
) TaskService {
	return &taskService{
		taskRepo:    taskRepo,
		teamRepo:    teamRepo,
		userRepo:    userRepo,
		commentRepo: commentRepo,
		notifSvc:    notifSvc,
		emailQueue:  emailQueue,
		broadcast:   broadcast,
		aiSvc:       aiSvc,
	}
}

// applyCompletionInvariant keeps completedAt in lockstep with status:
// non-nil iff the status is completed, on every status write.
func applyCompletionInvariant(task *repository.Task) {
	if task.Status == repository.StatusCompleted {
		if task.CompletedAt == nil {
			now := time.Now()
			task.CompletedAt = &now
		}
	} else {
		task.CompletedAt = nil
	}
}

func (s *taskService) Create(ctx context.Context, creatorID string, input TaskInput) (*repository.Task, error) {
	if input.Title == "" {
		return nil, ErrInvalidInput
	}
	if input.Status == "" {
		input.Status = repository.StatusOpen
	}
	if input.Priority == "" {
		input.Priority = repository.PriorityMedium
	}
	if !repository.ValidTaskStatus(input.Status) || !repository.ValidTaskPriority(input.Priority) {
		return nil, ErrInvalidInput
	}

	// A team task requires the creator's membership; an assignee must be a
	// member of the same team.
	if input.TeamID != nil {
		if err := s.requireMember(ctx, *input.TeamID, creatorID); err != nil {
			return nil, err
		}
		if input.AssigneeID != nil {
			if err := s.requireMember(ctx, *input.TeamID, *input.AssigneeID); err != nil {
				return nil, err
			}
		}
	} else if input.AssigneeID != nil && *input.AssigneeID != creatorID {
		// Personal tasks can only be assigned to yourself
		return nil, ErrForbidden
	}

	task := &repository.Task{
		Title:       input.Title,
		Description: input.Description,
		Status:      input.Status,
		Priority:    input.Priority,
		DueDate:     input.DueDate,
		CreatorID:   creatorID,
		AssigneeID:  input.AssigneeID,
		TeamID:      input.TeamID,
		Tags:        input.Tags,
	}
	applyCompletionInvariant(task)

	if err := s.taskRepo.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	// Creating with an assignee other than the actor fires task-assigned;
	// self-assignment and no assignee fire nothing
	if task.AssigneeID != nil && *task.AssigneeID != creatorID {
		s.announceAssignment(ctx, task, creatorID)
	}

	return task, nil
}

func (s *taskService) GetByID(ctx context.Context, taskID, userID string) (*repository.Task, error) {
	task, err := s.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, ErrNotFound
	}
	if err := s.requireViewer(ctx, task, userID); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *taskService) List(ctx context.Context, userID string, filter repository.TaskFilter, limit, offset int) ([]*repository.Task, int, error) {
	if filter.TeamID != "" {
		if err := s.requireMember(ctx, filter.TeamID, userID); err != nil {
			return nil, 0, err
		}
	} else if filter.CreatorID == "" && filter.AssigneeID == "" {
		// Without a team scope, restrict to the caller's own tasks
		filter.CreatorID = userID
	}
	return s.taskRepo.Find(ctx, filter, limit, offset)
}

func (s *taskService) Update(ctx context.Context, taskID, userID string, update TaskUpdate) (*repository.Task, error) {
	task, err := s.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, ErrNotFound
	}

	// Creator or assignee may update
	if !isCreator(task, userID) && !isAssignee(task, userID) {
		return nil, ErrForbidden
	}

	prevAssignee := ""
	if task.AssigneeID != nil {
		prevAssignee = *task.AssigneeID
	}
	prevStatus := task.Status

	var changes []string
	if update.Title != nil {
		if *update.Title == "" {
			return nil, ErrInvalidInput
		}
		task.Title = *update.Title
		changes = append(changes, "title")
	}
	if update.Description != nil {
		task.Description = *update.Description
		changes = append(changes, "description")
	}
	if update.Status != nil {
		if !repository.ValidTaskStatus(*update.Status) {
			return nil, ErrInvalidInput
		}
		task.Status = *update.Status
		changes = append(changes, "status")
	}
	if update.Priority != nil {
		if !repository.ValidTaskPriority(*update.Priority) {
			return nil, ErrInvalidInput
		}
		task.Priority = *update.Priority
		changes = append(changes, "priority")
	}
	if update.ClearDue {
		task.DueDate = nil
		changes = append(changes, "dueDate")
	} else if update.DueDate != nil {
		task.DueDate = update.DueDate
		changes = append(changes, "dueDate")
	}
	if update.Unassign {
		task.AssigneeID = nil
		changes = append(changes, "assignee")
	} else if update.AssigneeID != nil {
		if task.TeamID != nil {
			if err := s.requireMember(ctx, *task.TeamID, *update.AssigneeID); err != nil {
				return nil, err
			}
		} else if *update.AssigneeID != task.CreatorID {
			return nil, ErrForbidden
		}
		task.AssigneeID = update.AssigneeID
		changes = append(changes, "assignee")
	}
	if update.Tags != nil {
		task.Tags = update.Tags
		changes = append(changes, "tags")
	}
	if update.IsArchived != nil {
		task.IsArchived = *update.IsArchived
		changes = append(changes, "isArchived")
	}

	applyCompletionInvariant(task)

	if err := s.taskRepo.Update(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	if s.broadcast != nil && len(changes) > 0 {
		s.broadcast.TaskUpdated(task.ID, taskPayload(task), changes, userID)
	}

	// Reassignment to someone other than the actor fires task-assigned
	newAssignee := ""
	if task.AssigneeID != nil {
		newAssignee = *task.AssigneeID
	}
	if newAssignee != "" && newAssignee != prevAssignee && newAssignee != userID {
		s.announceAssignment(ctx, task, userID)
	}

	if task.Status == repository.StatusCompleted && prevStatus != repository.StatusCompleted {
		s.announceCompletion(ctx, task, userID)
	}

	return task, nil
}

// Delete is reserved for the creator
func (s *taskService) Delete(ctx context.Context, taskID, userID string) error {
	task, err := s.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		return err
	}
	if task == nil {
		return ErrNotFound
	}
	if !isCreator(task, userID) {
		return ErrForbidden
	}

	if err := s.taskRepo.Delete(ctx, taskID); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	if s.broadcast != nil {
		s.broadcast.TaskDeleted(taskID, userID)
	}
	return nil
}

func (s *taskService) SuggestFromText(ctx context.Context, userID, text string) ([]ai.SuggestedTask, error) {
	if text == "" {
		return nil, ErrInvalidInput
	}
	return s.aiSvc.SuggestTasks(ctx, text)
}

// Summarize produces an AI summary of a task and its discussion
func (s *taskService) Summarize(ctx context.Context, taskID, userID string) (string, error) {
	task, err := s.GetByID(ctx, taskID, userID)
	if err != nil {
		return "", err
	}

	var contents []string
	if s.commentRepo != nil {
		comments, _, err := s.commentRepo.FindByTask(ctx, taskID, 100, 0)
		if err != nil {
			return "", err
		}
		for _, c := range comments {
			if !c.IsDeleted {
				contents = append(contents, c.Content)
			}
		}
	}

	return s.aiSvc.SummarizeTask(ctx, task.Title, task.Description, contents)
}

// ============================================
// Authorization helpers
// ============================================

func isCreator(task *repository.Task, userID string) bool {
	return task.CreatorID == userID
}

func isAssignee(task *repository.Task, userID string) bool {
	return task.AssigneeID != nil && *task.AssigneeID == userID
}

func (s *taskService) requireMember(ctx context.Context, teamID, userID string) error {
	member, err := s.teamRepo.FindMember(ctx, teamID, userID)
	if err != nil {
		return err
	}
	if member == nil {
		return ErrForbidden
	}
	return nil
}

// requireViewer grants read access to the creator, the assignee, and any
// member of the task's team.
func (s *taskService) requireViewer(ctx context.Context, task *repository.Task, userID string) error {
	if isCreator(task, userID) || isAssignee(task, userID) {
		return nil
	}
	if task.TeamID != nil {
		return s.requireMember(ctx, *task.TeamID, userID)
	}
	return ErrForbidden
}

// ============================================
// Fan-out
// ============================================

func taskPayload(task *repository.Task) map[string]interface{} {
	return map[string]interface{}{
		"id":          task.ID,
		"title":       task.Title,
		"status":      task.Status,
		"priority":    task.Priority,
		"dueDate":     task.DueDate,
		"completedAt": task.CompletedAt,
		"assigneeId":  task.AssigneeID,
		"teamId":      task.TeamID,
	}
}

func (s *taskService) announceAssignment(ctx context.Context, task *repository.Task, actorID string) {
	assigneeID := *task.AssigneeID

	if s.broadcast != nil {
		s.broadcast.TaskAssigned(assigneeID, taskPayload(task), actorID)
	}

	if s.notifSvc != nil {
		if err := s.notifSvc.SendTaskAssigned(ctx, assigneeID, actorID, task.Title, task.ID); err != nil {
			log.Printf("[Task] Failed to send assignment notification: %v", err)
		}
	}

	if s.emailQueue != nil && assigneeID != actorID {
		assignee, err := s.userRepo.FindByID(ctx, assigneeID)
		if err != nil || assignee == nil {
			return
		}
		actorName := ""
		if actor, err := s.userRepo.FindByID(ctx, actorID); err == nil && actor != nil {
			actorName = actor.FirstName + " " + actor.LastName
		}
		dueDate := ""
		if task.DueDate != nil {
			dueDate = task.DueDate.Format("Jan 2, 2006")
		}
		s.emailQueue.Enqueue(
			[]string{assignee.Email},
			fmt.Sprintf("[TaskMaster] New task: %s", task.Title),
			"task_assigned",
			email.TaskAssignedData{
				AssigneeName: assignee.FirstName,
				AssignerName: actorName,
				TaskTitle:    task.Title,
				Priority:     task.Priority,
				DueDate:      dueDate,
				Description:  task.Description,
			},
		)
	}
}

func (s *taskService) announceCompletion(ctx context.Context, task *repository.Task, actorID string) {
	if s.broadcast != nil {
		s.broadcast.TaskCompleted(task.ID, taskPayload(task), actorID)
	}
	if s.notifSvc != nil {
		if err := s.notifSvc.SendTaskCompleted(ctx, task.CreatorID, actorID, task.Title, task.ID); err != nil {
			log.Printf("[Task] Failed to send completion notification: %v", err)
		}
	}
}
