package service

import (
	"errors"

	"github.com/taskmaster/taskmaster-api/internal/ai"
	"github.com/taskmaster/taskmaster-api/internal/config"
	"github.com/taskmaster/taskmaster-api/internal/email"
	"github.com/taskmaster/taskmaster-api/internal/notification"
	"github.com/taskmaster/taskmaster-api/internal/repository"
	"github.com/taskmaster/taskmaster-api/internal/socket"
	"github.com/taskmaster/taskmaster-api/internal/storage"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserExists         = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidToken       = errors.New("invalid token")
	ErrNotFound           = errors.New("resource not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("resource already exists")
	ErrInvalidInput       = errors.New("invalid input")

	// Invitation + membership errors. ErrInvalidInvitation deliberately covers
	// unknown, expired and consumed tokens with one message so callers cannot
	// probe which tokens exist.
	ErrInvalidInvitation = errors.New("invalid or expired invitation")
	ErrEmailMismatch     = errors.New("invitation was sent to a different email address")
	ErrAlreadyMember     = errors.New("user is already a member of this team")
	ErrNotMember         = errors.New("user is not a member of this team")
	ErrOwnerProtected    = errors.New("the team owner cannot be removed; transfer ownership or delete the team")
)

// ============================================
// Services Container
// ============================================

type Services struct {
	Auth         AuthService
	User         UserService
	Team         TeamService
	Task         TaskService
	Comment      CommentService
	Attachment   AttachmentService
	Notification NotificationService
	Broadcaster  *socket.Broadcaster
}

// ServiceDeps contains all dependencies needed to create services
type ServiceDeps struct {
	Config      *config.Config
	Repos       *repository.Repositories
	NotifSvc    *notification.Service
	EmailQueue  *email.Queue
	Storage     storage.Store
	AISvc       *ai.Service
	Broadcaster *socket.Broadcaster
}

func NewServices(deps *ServiceDeps) *Services {
	return &Services{
		Auth: NewAuthService(deps.Config, deps.Repos.Users),
		User: NewUserService(deps.Repos.Users),
		Team: NewTeamService(
			deps.Repos.Teams,
			deps.Repos.Invitations,
			deps.Repos.Users,
			deps.NotifSvc,
			deps.EmailQueue,
			deps.Broadcaster,
			deps.Config.FrontendURL,
		),
		Task: NewTaskService(
			deps.Repos.Tasks,
			deps.Repos.Teams,
			deps.Repos.Users,
			deps.Repos.Comments,
			deps.NotifSvc,
			deps.EmailQueue,
			deps.Broadcaster,
			deps.AISvc,
		),
		Comment: NewCommentService(
			deps.Repos.Comments,
			deps.Repos.Tasks,
			deps.Repos.Teams,
			deps.NotifSvc,
			deps.Broadcaster,
		),
		Attachment: NewAttachmentService(
			deps.Repos.Attachments,
			deps.Repos.Tasks,
			deps.Repos.Teams,
			deps.Storage,
		),
		Notification: NewNotificationService(deps.Repos.Notifications, deps.NotifSvc, deps.Broadcaster),
		Broadcaster:  deps.Broadcaster,
	}
}
