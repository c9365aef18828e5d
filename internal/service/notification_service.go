package service

import (
	"context"

	"github.com/taskmaster/taskmaster-api/internal/notification"
	"github.com/taskmaster/taskmaster-api/internal/repository"
	"github.com/taskmaster/taskmaster-api/internal/socket"
)

// ============================================
// Notification Service
// ============================================

type NotificationService interface {
	List(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]*repository.Notification, int, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, notificationID, userID string) error
	MarkAllRead(ctx context.Context, userID string) (int, error)
	Delete(ctx context.Context, notificationID, userID string) error
}

type notificationService struct {
	notificationRepo repository.NotificationRepository
	notifSvc         *notification.Service
	broadcast        *socket.Broadcaster
}

func NewNotificationService(
	notificationRepo repository.NotificationRepository,
	notifSvc *notification.Service,
	broadcast *socket.Broadcaster,
) NotificationService {
	return &notificationService{
		notificationRepo: notificationRepo,
		notifSvc:         notifSvc,
		broadcast:        broadcast,
	}
}

func (s *notificationService) List(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]*repository.Notification, int, error) {
	return s.notificationRepo.FindByRecipient(ctx, userID, unreadOnly, limit, offset)
}

func (s *notificationService) UnreadCount(ctx context.Context, userID string) (int, error) {
	if s.notifSvc != nil {
		return s.notifSvc.UnreadCount(ctx, userID)
	}
	return s.notificationRepo.CountUnread(ctx, userID)
}

func (s *notificationService) MarkRead(ctx context.Context, notificationID, userID string) error {
	updated, err := s.notificationRepo.MarkRead(ctx, notificationID, userID)
	if err != nil {
		return err
	}
	if !updated {
		return ErrNotFound
	}

	if s.notifSvc != nil {
		s.notifSvc.InvalidateUnreadCount(ctx, userID)
	}
	if s.broadcast != nil {
		s.broadcast.NotificationRead(userID, notificationID)
	}
	return nil
}

func (s *notificationService) MarkAllRead(ctx context.Context, userID string) (int, error) {
	count, err := s.notificationRepo.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		if s.notifSvc != nil {
			s.notifSvc.InvalidateUnreadCount(ctx, userID)
		}
		if s.broadcast != nil {
			s.broadcast.NotificationCount(userID, 0)
		}
	}
	return count, nil
}

func (s *notificationService) Delete(ctx context.Context, notificationID, userID string) error {
	deleted, err := s.notificationRepo.Delete(ctx, notificationID, userID)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrNotFound
	}

	// An unread notification may have been deleted; the cached count is stale
	if s.notifSvc != nil {
		s.notifSvc.InvalidateUnreadCount(ctx, userID)
	}
	return nil
}
