package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Notification types
const (
	NotificationTaskAssigned   = "task_assigned"
	NotificationTaskCompleted  = "task_completed"
	NotificationTaskDueSoon    = "task_due_soon"
	NotificationTaskOverdue    = "task_overdue"
	NotificationCommentAdded   = "comment_added"
	NotificationCommentReply   = "comment_reply"
	NotificationTeamInvitation = "team_invitation"
	NotificationMemberJoined   = "member_joined"
)

// Notification is a persisted event addressed to one user
type Notification struct {
	ID           string     `json:"id"`
	RecipientID  string     `json:"recipientId"`
	SenderID     *string    `json:"senderId"`
	Type         string     `json:"type"`
	Title        string     `json:"title"`
	Message      string     `json:"message"`
	ResourceType *string    `json:"resourceType"`
	ResourceID   *string    `json:"resourceId"`
	IsRead       bool       `json:"isRead"`
	ReadAt       *time.Time `json:"readAt"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// NotificationRepository defines notification data operations
type NotificationRepository interface {
	Create(ctx context.Context, notification *Notification) error
	FindByRecipient(ctx context.Context, recipientID string, unreadOnly bool, limit, offset int) ([]*Notification, int, error)
	CountUnread(ctx context.Context, recipientID string) (int, error)
	MarkRead(ctx context.Context, id, recipientID string) (bool, error)
	MarkAllRead(ctx context.Context, recipientID string) (int, error)
	Delete(ctx context.Context, id, recipientID string) (bool, error)
	DeleteOld(ctx context.Context, olderThan time.Duration) (int, error)
}

type pgNotificationRepository struct {
	pool *pgxpool.Pool
}

func NewNotificationRepository(pool *pgxpool.Pool) NotificationRepository {
	return &pgNotificationRepository{pool: pool}
}

func (r *pgNotificationRepository) Create(ctx context.Context, notification *Notification) error {
	query := `
		INSERT INTO notifications (recipient_id, sender_id, type, title, message, resource_type, resource_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`
	return r.pool.QueryRow(ctx, query,
		notification.RecipientID, notification.SenderID, notification.Type,
		notification.Title, notification.Message,
		notification.ResourceType, notification.ResourceID,
	).Scan(&notification.ID, &notification.CreatedAt)
}

func (r *pgNotificationRepository) FindByRecipient(ctx context.Context, recipientID string, unreadOnly bool, limit, offset int) ([]*Notification, int, error) {
	where := `recipient_id = $1`
	if unreadOnly {
		where += ` AND is_read = FALSE`
	}

	var total int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE `+where, recipientID).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	query := `
		SELECT id, recipient_id, sender_id, type, title, message, resource_type, resource_id, is_read, read_at, created_at
		FROM notifications
		WHERE ` + where + `
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.pool.Query(ctx, query, recipientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var notifications []*Notification
	for rows.Next() {
		n := &Notification{}
		if err := rows.Scan(
			&n.ID, &n.RecipientID, &n.SenderID, &n.Type, &n.Title, &n.Message,
			&n.ResourceType, &n.ResourceID, &n.IsRead, &n.ReadAt, &n.CreatedAt,
		); err != nil {
			return nil, 0, err
		}
		notifications = append(notifications, n)
	}
	return notifications, total, rows.Err()
}

func (r *pgNotificationRepository) CountUnread(ctx context.Context, recipientID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE recipient_id = $1 AND is_read = FALSE`,
		recipientID).Scan(&count)
	return count, err
}

// MarkRead flips one notification; the recipient filter keeps users from
// touching notifications addressed to someone else.
func (r *pgNotificationRepository) MarkRead(ctx context.Context, id, recipientID string) (bool, error) {
	result, err := r.pool.Exec(ctx,
		`UPDATE notifications SET is_read = TRUE, read_at = now() WHERE id = $1 AND recipient_id = $2 AND is_read = FALSE`,
		id, recipientID)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() > 0, nil
}

func (r *pgNotificationRepository) MarkAllRead(ctx context.Context, recipientID string) (int, error) {
	result, err := r.pool.Exec(ctx,
		`UPDATE notifications SET is_read = TRUE, read_at = now() WHERE recipient_id = $1 AND is_read = FALSE`,
		recipientID)
	if err != nil {
		return 0, err
	}
	return int(result.RowsAffected()), nil
}

// Delete removes one notification, recipient-scoped like MarkRead
func (r *pgNotificationRepository) Delete(ctx context.Context, id, recipientID string) (bool, error) {
	result, err := r.pool.Exec(ctx,
		`DELETE FROM notifications WHERE id = $1 AND recipient_id = $2`,
		id, recipientID)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() > 0, nil
}

func (r *pgNotificationRepository) DeleteOld(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)
	result, err := r.pool.Exec(ctx,
		`DELETE FROM notifications WHERE is_read = TRUE AND created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return int(result.RowsAffected()), nil
}
