package cron

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/taskmaster/taskmaster-api/internal/email"
	"github.com/taskmaster/taskmaster-api/internal/notification"
	"github.com/taskmaster/taskmaster-api/internal/repository"
)

// Scheduler handles scheduled background jobs
type Scheduler struct {
	cron             *cron.Cron
	notifSvc         *notification.Service
	emailQueue       *email.Queue
	taskRepo         repository.TaskRepository
	userRepo         repository.UserRepository
	invitationRepo   repository.InvitationRepository
	notificationRepo repository.NotificationRepository
}

// NewScheduler creates a new scheduler
func NewScheduler(notifSvc *notification.Service, emailQueue *email.Queue, repos *repository.Repositories) *Scheduler {
	return &Scheduler{
		cron:             cron.New(),
		notifSvc:         notifSvc,
		emailQueue:       emailQueue,
		taskRepo:         repos.Tasks,
		userRepo:         repos.Users,
		invitationRepo:   repos.Invitations,
		notificationRepo: repos.Notifications,
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	// Run every day at 9 AM - due date reminders
	s.cron.AddFunc("0 9 * * *", func() {
		log.Println("[Cron] Running due date reminder check...")
		s.checkDueDateReminders()
	})

	// Run every day at 9 AM - overdue task check
	s.cron.AddFunc("0 9 * * *", func() {
		log.Println("[Cron] Running overdue task check...")
		s.checkOverdueTasks()
	})

	// Purge expired invitations - run every hour. Expired tokens are already
	// rejected at accept time; this only trims dead rows.
	s.cron.AddFunc("0 * * * *", func() {
		log.Println("[Cron] Running expired invitation purge...")
		s.purgeExpiredInvitations()
	})

	// Clean up old notifications - run every Sunday at midnight
	s.cron.AddFunc("0 0 * * 0", func() {
		log.Println("[Cron] Running notification cleanup...")
		s.cleanupOldNotifications()
	})

	s.cron.Start()
	log.Println("[Cron] Scheduler started")
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.cron.Stop()
	log.Println("[Cron] Scheduler stopped")
}

// checkDueDateReminders notifies assignees of tasks due within 24 hours
func (s *Scheduler) checkDueDateReminders() {
	ctx := context.Background()

	tasks, err := s.taskRepo.FindDueSoon(ctx, 24*time.Hour)
	if err != nil {
		log.Printf("[Cron] Error finding tasks due soon: %v", err)
		return
	}

	for _, task := range tasks {
		if task.AssigneeID == nil || task.DueDate == nil {
			continue
		}

		if err := s.notifSvc.SendTaskDueSoon(ctx, *task.AssigneeID, task.Title, task.ID); err != nil {
			log.Printf("[Cron] Error sending due date reminder for task %s: %v", task.ID, err)
			continue
		}
		log.Printf("[Cron] Sent due date reminder for task %s", task.ID)

		s.emailDueReminder(ctx, task)
	}
}

// checkOverdueTasks notifies assignees of tasks past their due date
func (s *Scheduler) checkOverdueTasks() {
	ctx := context.Background()

	tasks, err := s.taskRepo.FindOverdue(ctx)
	if err != nil {
		log.Printf("[Cron] Error finding overdue tasks: %v", err)
		return
	}

	now := time.Now()
	for _, task := range tasks {
		if task.AssigneeID == nil || task.DueDate == nil {
			continue
		}

		daysOverdue := int(now.Sub(*task.DueDate).Hours() / 24)

		// Only nag about recently overdue tasks
		if daysOverdue > 7 {
			continue
		}

		if err := s.notifSvc.SendTaskOverdue(ctx, *task.AssigneeID, task.Title, task.ID); err != nil {
			log.Printf("[Cron] Error sending overdue reminder for task %s: %v", task.ID, err)
			continue
		}
		log.Printf("[Cron] Sent overdue reminder for task %s (%d days overdue)", task.ID, daysOverdue)
	}
}

// purgeExpiredInvitations removes invitations past their expiry
func (s *Scheduler) purgeExpiredInvitations() {
	ctx := context.Background()

	count, err := s.invitationRepo.DeleteExpired(ctx)
	if err != nil {
		log.Printf("[Cron] Error purging expired invitations: %v", err)
		return
	}
	if count > 0 {
		log.Printf("[Cron] Purged %d expired invitations", count)
	}
}

// cleanupOldNotifications removes read notifications older than 30 days
func (s *Scheduler) cleanupOldNotifications() {
	ctx := context.Background()

	count, err := s.notificationRepo.DeleteOld(ctx, 30*24*time.Hour)
	if err != nil {
		log.Printf("[Cron] Error cleaning up notifications: %v", err)
		return
	}
	if count > 0 {
		log.Printf("[Cron] Deleted %d old notifications", count)
	}
}

func (s *Scheduler) emailDueReminder(ctx context.Context, task *repository.Task) {
	if s.emailQueue == nil {
		return
	}

	assignee, err := s.userRepo.FindByID(ctx, *task.AssigneeID)
	if err != nil || assignee == nil {
		return
	}

	s.emailQueue.Enqueue(
		[]string{assignee.Email},
		"[TaskMaster] Task due soon: "+task.Title,
		"due_reminder",
		email.DueDateReminderData{
			UserName:  assignee.FirstName,
			TaskTitle: task.Title,
			DueDate:   task.DueDate.Format("Jan 2, 2006"),
		},
	)
}

// ManualTrigger allows manual triggering of scheduled checks (for testing)
func (s *Scheduler) ManualTrigger(checkType string) {
	switch checkType {
	case "due_date":
		s.checkDueDateReminders()
	case "overdue":
		s.checkOverdueTasks()
	case "invitations":
		s.purgeExpiredInvitations()
	case "cleanup":
		s.cleanupOldNotifications()
	case "all":
		s.checkDueDateReminders()
		s.checkOverdueTasks()
		s.purgeExpiredInvitations()
		s.cleanupOldNotifications()
	}
}
