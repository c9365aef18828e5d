package repository

import "github.com/jackc/pgx/v5/pgxpool"

// Repositories bundles every data access interface
type Repositories struct {
	Users         UserRepository
	Teams         TeamRepository
	Invitations   InvitationRepository
	Tasks         TaskRepository
	Comments      CommentRepository
	Attachments   AttachmentRepository
	Notifications NotificationRepository
}

func NewRepositories(pool *pgxpool.Pool) *Repositories {
	return &Repositories{
		Users:         NewUserRepository(pool),
		Teams:         NewTeamRepository(pool),
		Invitations:   NewInvitationRepository(pool),
		Tasks:         NewTaskRepository(pool),
		Comments:      NewCommentRepository(pool),
		Attachments:   NewAttachmentRepository(pool),
		Notifications: NewNotificationRepository(pool),
	}
}
