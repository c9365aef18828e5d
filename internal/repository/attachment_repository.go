package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Attachment is an uploaded file linked to a task or a comment
type Attachment struct {
	ID           string    `json:"id"`
	Filename     string    `json:"filename"`
	OriginalName string    `json:"originalName"`
	MimeType     string    `json:"mimeType"`
	Size         int64     `json:"size"`
	Path         string    `json:"-"`
	TaskID       *string   `json:"taskId"`
	CommentID    *string   `json:"commentId"`
	UploadedBy   string    `json:"uploadedBy"`
	CreatedAt    time.Time `json:"createdAt"`
}

// AttachmentRepository defines attachment data operations
type AttachmentRepository interface {
	Create(ctx context.Context, attachment *Attachment) error
	FindByID(ctx context.Context, id string) (*Attachment, error)
	FindByTask(ctx context.Context, taskID string) ([]*Attachment, error)
	Delete(ctx context.Context, id string) error
}

type pgAttachmentRepository struct {
	pool *pgxpool.Pool
}

func NewAttachmentRepository(pool *pgxpool.Pool) AttachmentRepository {
	return &pgAttachmentRepository{pool: pool}
}

const attachmentColumns = `id, filename, original_name, mime_type, size, path, task_id, comment_id, uploaded_by, created_at`

func scanAttachment(row pgx.Row) (*Attachment, error) {
	a := &Attachment{}
	err := row.Scan(
		&a.ID, &a.Filename, &a.OriginalName, &a.MimeType, &a.Size, &a.Path,
		&a.TaskID, &a.CommentID, &a.UploadedBy, &a.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *pgAttachmentRepository) Create(ctx context.Context, attachment *Attachment) error {
	query := `
		INSERT INTO attachments (filename, original_name, mime_type, size, path, task_id, comment_id, uploaded_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`
	return r.pool.QueryRow(ctx, query,
		attachment.Filename, attachment.OriginalName, attachment.MimeType,
		attachment.Size, attachment.Path, attachment.TaskID, attachment.CommentID,
		attachment.UploadedBy,
	).Scan(&attachment.ID, &attachment.CreatedAt)
}

func (r *pgAttachmentRepository) FindByID(ctx context.Context, id string) (*Attachment, error) {
	query := `SELECT ` + attachmentColumns + ` FROM attachments WHERE id = $1`
	return scanAttachment(r.pool.QueryRow(ctx, query, id))
}

func (r *pgAttachmentRepository) FindByTask(ctx context.Context, taskID string) ([]*Attachment, error) {
	query := `SELECT ` + attachmentColumns + ` FROM attachments WHERE task_id = $1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attachments []*Attachment
	for rows.Next() {
		a, err := scanAttachment(rows)
		if err != nil {
			return nil, err
		}
		attachments = append(attachments, a)
	}
	return attachments, rows.Err()
}

func (r *pgAttachmentRepository) Delete(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM attachments WHERE id = $1`, id)
	return err
}
