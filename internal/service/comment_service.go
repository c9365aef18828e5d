package service

import (
	"context"
	"fmt"
	"log"

	"github.com/taskmaster/taskmaster-api/internal/notification"
	"github.com/taskmaster/taskmaster-api/internal/repository"
	"github.com/taskmaster/taskmaster-api/internal/socket"
)

// ============================================
// Comment Service
// ============================================

type CommentService interface {
	Create(ctx context.Context, taskID, authorID, content string, parentID *string) (*repository.Comment, error)
	ListByTask(ctx context.Context, taskID, userID string, limit, offset int) ([]*repository.Comment, int, error)
	Update(ctx context.Context, commentID, userID, content string) (*repository.Comment, error)
	Delete(ctx context.Context, commentID, userID string) error
}

type commentService struct {
	commentRepo repository.CommentRepository
	taskRepo    repository.TaskRepository
	teamRepo    repository.TeamRepository
	notifSvc    *notification.Service
	broadcast   *socket.Broadcaster
}

func NewCommentService(
	commentRepo repository.CommentRepository,
	taskRepo repository.TaskRepository,
	teamRepo repository.TeamRepository,
	notifSvc *notification.Service,
	broadcast *socket.Broadcaster,
) CommentService {
	return &commentService{
		commentRepo: commentRepo,
		taskRepo:    taskRepo,
		teamRepo:    teamRepo,
		notifSvc:    notifSvc,
		broadcast:   broadcast,
	}
}

func (s *commentService) Create(ctx context.Context, taskID, authorID, content string, parentID *string) (*repository.Comment, error) {
	if content == "" {
		return nil, ErrInvalidInput
	}

	task, err := s.requireTaskAccess(ctx, taskID, authorID)
	if err != nil {
		return nil, err
	}

	// Replies nest one level only
	if parentID != nil {
		parent, err := s.commentRepo.FindByID(ctx, *parentID)
		if err != nil {
			return nil, err
		}
		if parent == nil || parent.IsDeleted || parent.TaskID != taskID {
			return nil, ErrNotFound
		}
		if parent.ParentCommentID != nil {
			return nil, ErrInvalidInput
		}
	}

	comment := &repository.Comment{
		Content:         content,
		TaskID:          taskID,
		AuthorID:        authorID,
		ParentCommentID: parentID,
	}
	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}

	if s.broadcast != nil {
		s.broadcast.CommentCreated(taskID, commentPayload(comment), authorID)
	}

	s.notifyParticipants(ctx, task, comment, parentID)

	return comment, nil
}

func (s *commentService) notifyParticipants(ctx context.Context, task *repository.Task, comment *repository.Comment, parentID *string) {
	if s.notifSvc == nil {
		return
	}

	if err := s.notifSvc.SendCommentAdded(ctx, task.CreatorID, comment.AuthorID, task.Title, task.ID); err != nil {
		log.Printf("[Comment] Failed to notify task creator: %v", err)
	}
	if task.AssigneeID != nil && *task.AssigneeID != task.CreatorID {
		if err := s.notifSvc.SendCommentAdded(ctx, *task.AssigneeID, comment.AuthorID, task.Title, task.ID); err != nil {
			log.Printf("[Comment] Failed to notify assignee: %v", err)
		}
	}
	if parentID != nil {
		if parent, err := s.commentRepo.FindByID(ctx, *parentID); err == nil && parent != nil {
			if err := s.notifSvc.SendCommentReply(ctx, parent.AuthorID, comment.AuthorID, task.Title, comment.ID); err != nil {
				log.Printf("[Comment] Failed to notify parent author: %v", err)
			}
		}
	}
}

func (s *commentService) ListByTask(ctx context.Context, taskID, userID string, limit, offset int) ([]*repository.Comment, int, error) {
	if _, err := s.requireTaskAccess(ctx, taskID, userID); err != nil {
		return nil, 0, err
	}
	return s.commentRepo.FindByTask(ctx, taskID, limit, offset)
}

// Update is reserved for the comment's author
func (s *commentService) Update(ctx context.Context, commentID, userID, content string) (*repository.Comment, error) {
	if content == "" {
		return nil, ErrInvalidInput
	}

	comment, err := s.commentRepo.FindByID(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if comment == nil || comment.IsDeleted {
		return nil, ErrNotFound
	}
	if comment.AuthorID != userID {
		return nil, ErrForbidden
	}

	comment.Content = content
	if err := s.commentRepo.Update(ctx, comment); err != nil {
		return nil, fmt.Errorf("failed to update comment: %w", err)
	}

	if s.broadcast != nil {
		s.broadcast.CommentUpdated(comment.TaskID, commentPayload(comment), userID)
	}
	return comment, nil
}

// Delete is reserved for the comment's author
func (s *commentService) Delete(ctx context.Context, commentID, userID string) error {
	comment, err := s.commentRepo.FindByID(ctx, commentID)
	if err != nil {
		return err
	}
	if comment == nil || comment.IsDeleted {
		return ErrNotFound
	}
	if comment.AuthorID != userID {
		return ErrForbidden
	}

	if err := s.commentRepo.SoftDelete(ctx, commentID); err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}

	if s.broadcast != nil {
		s.broadcast.CommentDeleted(comment.TaskID, commentID, userID)
	}
	return nil
}

func (s *commentService) requireTaskAccess(ctx context.Context, taskID, userID string) (*repository.Task, error) {
	task, err := s.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, ErrNotFound
	}
	if task.CreatorID == userID || (task.AssigneeID != nil && *task.AssigneeID == userID) {
		return task, nil
	}
	if task.TeamID != nil {
		member, err := s.teamRepo.FindMember(ctx, *task.TeamID, userID)
		if err != nil {
			return nil, err
		}
		if member != nil {
			return task, nil
		}
	}
	return nil, ErrForbidden
}

func commentPayload(comment *repository.Comment) map[string]interface{} {
	return map[string]interface{}{
		"id":              comment.ID,
		"content":         comment.Content,
		"taskId":          comment.TaskID,
		"authorId":        comment.AuthorID,
		"parentCommentId": comment.ParentCommentID,
		"isEdited":        comment.IsEdited,
		"createdAt":       comment.CreatedAt,
	}
}
