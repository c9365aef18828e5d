package notification

import (
	"context"
	"fmt"
	"log"

	"github.com/taskmaster/taskmaster-api/internal/db"
	"github.com/taskmaster/taskmaster-api/internal/repository"
	"github.com/taskmaster/taskmaster-api/internal/socket"
)

// Service persists notifications and pushes them to live connections.
// Delivery over the socket is best-effort; the database row is the record.
type Service struct {
	notificationRepo repository.NotificationRepository
	redis            *db.RedisDB
	broadcaster      *socket.Broadcaster
}

// NewService creates a new notification service
func NewService(notificationRepo repository.NotificationRepository, redis *db.RedisDB) *Service {
	return &Service{
		notificationRepo: notificationRepo,
		redis:            redis,
	}
}

// SetBroadcaster wires the socket broadcaster (set after the hub starts)
func (s *Service) SetBroadcaster(b *socket.Broadcaster) {
	s.broadcaster = b
}

func unreadCacheKey(userID string) string {
	return "unread_count:" + userID
}

// notify persists the notification, invalidates the recipient's cached unread
// count, and pushes over the socket.
func (s *Service) notify(ctx context.Context, n *repository.Notification) error {
	if err := s.notificationRepo.Create(ctx, n); err != nil {
		return err
	}

	if s.redis != nil {
		if err := s.redis.DeleteCache(ctx, unreadCacheKey(n.RecipientID)); err != nil {
			log.Printf("[Notification] Failed to invalidate unread cache for %s: %v", n.RecipientID, err)
		}
	}

	if s.broadcaster != nil {
		s.broadcaster.NotificationNew(n.RecipientID, map[string]interface{}{
			"id":           n.ID,
			"type":         n.Type,
			"title":        n.Title,
			"message":      n.Message,
			"resourceType": n.ResourceType,
			"resourceId":   n.ResourceID,
			"isRead":       n.IsRead,
			"createdAt":    n.CreatedAt,
		})
	}
	return nil
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// SendTaskAssigned notifies a user they were assigned a task
func (s *Service) SendTaskAssigned(ctx context.Context, recipientID, senderID, taskTitle, taskID string) error {
	if recipientID == "" || recipientID == senderID {
		return nil
	}
	return s.notify(ctx, &repository.Notification{
		RecipientID:  recipientID,
		SenderID:     strPtr(senderID),
		Type:         repository.NotificationTaskAssigned,
		Title:        "Task Assigned",
		Message:      fmt.Sprintf("You have been assigned to task: %s", taskTitle),
		ResourceType: strPtr("task"),
		ResourceID:   strPtr(taskID),
	})
}

// SendTaskCompleted notifies the creator their task was completed
func (s *Service) SendTaskCompleted(ctx context.Context, recipientID, senderID, taskTitle, taskID string) error {
	if recipientID == "" || recipientID == senderID {
		return nil
	}
	return s.notify(ctx, &repository.Notification{
		RecipientID:  recipientID,
		SenderID:     strPtr(senderID),
		Type:         repository.NotificationTaskCompleted,
		Title:        "Task Completed",
		Message:      fmt.Sprintf("Task completed: %s", taskTitle),
		ResourceType: strPtr("task"),
		ResourceID:   strPtr(taskID),
	})
}

// SendTaskDueSoon notifies the assignee a task is due within the reminder window
func (s *Service) SendTaskDueSoon(ctx context.Context, recipientID, taskTitle, taskID string) error {
	if recipientID == "" {
		return nil
	}
	return s.notify(ctx, &repository.Notification{
		RecipientID:  recipientID,
		Type:         repository.NotificationTaskDueSoon,
		Title:        "Task Due Soon",
		Message:      fmt.Sprintf("Task is due soon: %s", taskTitle),
		ResourceType: strPtr("task"),
		ResourceID:   strPtr(taskID),
	})
}

// SendTaskOverdue notifies the assignee a task is past its due date
func (s *Service) SendTaskOverdue(ctx context.Context, recipientID, taskTitle, taskID string) error {
	if recipientID == "" {
		return nil
	}
	return s.notify(ctx, &repository.Notification{
		RecipientID:  recipientID,
		Type:         repository.NotificationTaskOverdue,
		Title:        "Task Overdue",
		Message:      fmt.Sprintf("Task is overdue: %s", taskTitle),
		ResourceType: strPtr("task"),
		ResourceID:   strPtr(taskID),
	})
}

// SendCommentAdded notifies a user about a new comment on their task
func (s *Service) SendCommentAdded(ctx context.Context, recipientID, senderID, taskTitle, taskID string) error {
	if recipientID == "" || recipientID == senderID {
		return nil
	}
	return s.notify(ctx, &repository.Notification{
		RecipientID:  recipientID,
		SenderID:     strPtr(senderID),
		Type:         repository.NotificationCommentAdded,
		Title:        "New Comment",
		Message:      fmt.Sprintf("New comment on task: %s", taskTitle),
		ResourceType: strPtr("task"),
		ResourceID:   strPtr(taskID),
	})
}

// SendCommentReply notifies a comment author about a reply
func (s *Service) SendCommentReply(ctx context.Context, recipientID, senderID, taskTitle, commentID string) error {
	if recipientID == "" || recipientID == senderID {
		return nil
	}
	return s.notify(ctx, &repository.Notification{
		RecipientID:  recipientID,
		SenderID:     strPtr(senderID),
		Type:         repository.NotificationCommentReply,
		Title:        "New Reply",
		Message:      fmt.Sprintf("Someone replied to your comment on: %s", taskTitle),
		ResourceType: strPtr("comment"),
		ResourceID:   strPtr(commentID),
	})
}

// SendMemberJoined notifies the team owner a member accepted an invitation
func (s *Service) SendMemberJoined(ctx context.Context, recipientID, senderID, teamName, teamID string) error {
	if recipientID == "" || recipientID == senderID {
		return nil
	}
	return s.notify(ctx, &repository.Notification{
		RecipientID:  recipientID,
		SenderID:     strPtr(senderID),
		Type:         repository.NotificationMemberJoined,
		Title:        "New Team Member",
		Message:      fmt.Sprintf("A new member joined team: %s", teamName),
		ResourceType: strPtr("team"),
		ResourceID:   strPtr(teamID),
	})
}

// SendTeamInvitation notifies an existing user they were invited to a team
func (s *Service) SendTeamInvitation(ctx context.Context, recipientID, senderID, teamName, teamID string) error {
	if recipientID == "" || recipientID == senderID {
		return nil
	}
	return s.notify(ctx, &repository.Notification{
		RecipientID:  recipientID,
		SenderID:     strPtr(senderID),
		Type:         repository.NotificationTeamInvitation,
		Title:        "Team Invitation",
		Message:      fmt.Sprintf("You have been invited to join team: %s", teamName),
		ResourceType: strPtr("team"),
		ResourceID:   strPtr(teamID),
	})
}

// UnreadCount returns the recipient's unread count, served from cache when warm
func (s *Service) UnreadCount(ctx context.Context, userID string) (int, error) {
	if s.redis != nil {
		var cached int
		if found, err := s.redis.GetCache(ctx, unreadCacheKey(userID), &cached); err == nil && found {
			return cached, nil
		}
	}

	count, err := s.notificationRepo.CountUnread(ctx, userID)
	if err != nil {
		return 0, err
	}

	if s.redis != nil {
		if err := s.redis.SetCache(ctx, unreadCacheKey(userID), count, db.DefaultCacheTTL); err != nil {
			log.Printf("[Notification] Failed to cache unread count for %s: %v", userID, err)
		}
	}
	return count, nil
}

// InvalidateUnreadCount drops the cached unread count after reads change it
func (s *Service) InvalidateUnreadCount(ctx context.Context, userID string) {
	if s.redis == nil {
		return
	}
	if err := s.redis.DeleteCache(ctx, unreadCacheKey(userID)); err != nil {
		log.Printf("[Notification] Failed to invalidate unread cache for %s: %v", userID, err)
	}
}
