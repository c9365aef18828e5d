package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Comment is a note on a task. Deleting tombstones the row: the content is
// retained but the row drops out of listings.
type Comment struct {
	ID              string    `json:"id"`
	Content         string    `json:"content"`
	TaskID          string    `json:"taskId"`
	AuthorID        string    `json:"authorId"`
	ParentCommentID *string   `json:"parentCommentId"`
	IsEdited        bool      `json:"isEdited"`
	IsDeleted       bool      `json:"isDeleted"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`

	Author *User `json:"author,omitempty"`
}

// CommentRepository defines comment data operations
type CommentRepository interface {
	Create(ctx context.Context, comment *Comment) error
	FindByID(ctx context.Context, id string) (*Comment, error)
	FindByTask(ctx context.Context, taskID string, limit, offset int) ([]*Comment, int, error)
	Update(ctx context.Context, comment *Comment) error
	SoftDelete(ctx context.Context, id string) error
}

type pgCommentRepository struct {
	pool *pgxpool.Pool
}

func NewCommentRepository(pool *pgxpool.Pool) CommentRepository {
	return &pgCommentRepository{pool: pool}
}

func (r *pgCommentRepository) Create(ctx context.Context, comment *Comment) error {
	query := `
		INSERT INTO comments (content, task_id, author_id, parent_comment_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`
	return r.pool.QueryRow(ctx, query,
		comment.Content, comment.TaskID, comment.AuthorID, comment.ParentCommentID,
	).Scan(&comment.ID, &comment.CreatedAt, &comment.UpdatedAt)
}

func (r *pgCommentRepository) FindByID(ctx context.Context, id string) (*Comment, error) {
	query := `
		SELECT id, content, task_id, author_id, parent_comment_id, is_edited, is_deleted, created_at, updated_at
		FROM comments
		WHERE id = $1
	`
	comment := &Comment{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&comment.ID, &comment.Content, &comment.TaskID, &comment.AuthorID,
		&comment.ParentCommentID, &comment.IsEdited, &comment.IsDeleted,
		&comment.CreatedAt, &comment.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return comment, nil
}

func (r *pgCommentRepository) FindByTask(ctx context.Context, taskID string, limit, offset int) ([]*Comment, int, error) {
	var total int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM comments WHERE task_id = $1 AND is_deleted = FALSE`, taskID).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	query := `
		SELECT c.id, c.content, c.task_id, c.author_id, c.parent_comment_id,
		       c.is_edited, c.is_deleted, c.created_at, c.updated_at,
		       u.id, u.first_name, u.last_name, u.email, u.avatar
		FROM comments c
		JOIN users u ON u.id = c.author_id
		WHERE c.task_id = $1 AND c.is_deleted = FALSE
		ORDER BY c.created_at ASC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.pool.Query(ctx, query, taskID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var comments []*Comment
	for rows.Next() {
		comment := &Comment{Author: &User{}}
		if err := rows.Scan(
			&comment.ID, &comment.Content, &comment.TaskID, &comment.AuthorID,
			&comment.ParentCommentID, &comment.IsEdited, &comment.IsDeleted,
			&comment.CreatedAt, &comment.UpdatedAt,
			&comment.Author.ID, &comment.Author.FirstName, &comment.Author.LastName,
			&comment.Author.Email, &comment.Author.Avatar,
		); err != nil {
			return nil, 0, err
		}
		comments = append(comments, comment)
	}
	return comments, total, rows.Err()
}

func (r *pgCommentRepository) Update(ctx context.Context, comment *Comment) error {
	query := `
		UPDATE comments
		SET content = $1, is_edited = TRUE, updated_at = now()
		WHERE id = $2
		RETURNING is_edited, updated_at
	`
	return r.pool.QueryRow(ctx, query, comment.Content, comment.ID).
		Scan(&comment.IsEdited, &comment.UpdatedAt)
}

// SoftDelete keeps the content; the is_deleted flag hides the row from listings
func (r *pgCommentRepository) SoftDelete(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE comments SET is_deleted = TRUE, updated_at = now() WHERE id = $1`, id)
	return err
}
