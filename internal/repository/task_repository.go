package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Task represents a unit of work, optionally scoped to a team
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	DueDate     *time.Time `json:"dueDate"`
	CompletedAt *time.Time `json:"completedAt"`
	CreatorID   string     `json:"creatorId"`
	AssigneeID  *string    `json:"assigneeId"`
	TeamID      *string    `json:"teamId"`
	Tags        []string   `json:"tags"`
	IsArchived  bool       `json:"isArchived"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`

	Creator  *User `json:"creator,omitempty"`
	Assignee *User `json:"assignee,omitempty"`
}

// TaskFilter narrows task listings; zero values mean "no filter"
type TaskFilter struct {
	TeamID     string
	CreatorID  string
	AssigneeID string
	Status     string
	Priority   string
	Search     string
	Tag        string
	Archived   *bool
}

// TaskRepository defines task data operations
type TaskRepository interface {
	Create(ctx context.Context, task *Task) error
	FindByID(ctx context.Context, id string) (*Task, error)
	Find(ctx context.Context, filter TaskFilter, limit, offset int) ([]*Task, int, error)
	Update(ctx context.Context, task *Task) error
	Delete(ctx context.Context, id string) error
	FindDueSoon(ctx context.Context, within time.Duration) ([]*Task, error)
	FindOverdue(ctx context.Context) ([]*Task, error)
}

type pgTaskRepository struct {
	pool *pgxpool.Pool
}

func NewTaskRepository(pool *pgxpool.Pool) TaskRepository {
	return &pgTaskRepository{pool: pool}
}

const taskColumns = `id, title, description, status, priority, due_date, completed_at, creator_id, assignee_id, team_id, tags, is_archived, created_at, updated_at`

func scanTask(row pgx.Row) (*Task, error) {
	task := &Task{}
	err := row.Scan(
		&task.ID, &task.Title, &task.Description, &task.Status, &task.Priority,
		&task.DueDate, &task.CompletedAt, &task.CreatorID, &task.AssigneeID,
		&task.TeamID, &task.Tags, &task.IsArchived, &task.CreatedAt, &task.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return task, nil
}

func (r *pgTaskRepository) Create(ctx context.Context, task *Task) error {
	if task.Tags == nil {
		task.Tags = []string{}
	}
	query := `
		INSERT INTO tasks (title, description, status, priority, due_date, completed_at, creator_id, assignee_id, team_id, tags)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at
	`
	return r.pool.QueryRow(ctx, query,
		task.Title, task.Description, task.Status, task.Priority,
		task.DueDate, task.CompletedAt, task.CreatorID, task.AssigneeID,
		task.TeamID, task.Tags,
	).Scan(&task.ID, &task.CreatedAt, &task.UpdatedAt)
}

func (r *pgTaskRepository) FindByID(ctx context.Context, id string) (*Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	return scanTask(r.pool.QueryRow(ctx, query, id))
}

func (r *pgTaskRepository) Find(ctx context.Context, filter TaskFilter, limit, offset int) ([]*Task, int, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}

	if filter.TeamID != "" {
		args = append(args, filter.TeamID)
		conditions = append(conditions, "team_id = "+placeholder(len(args)))
	}
	if filter.CreatorID != "" {
		args = append(args, filter.CreatorID)
		conditions = append(conditions, "creator_id = "+placeholder(len(args)))
	}
	if filter.AssigneeID != "" {
		args = append(args, filter.AssigneeID)
		conditions = append(conditions, "assignee_id = "+placeholder(len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, "status = "+placeholder(len(args)))
	}
	if filter.Priority != "" {
		args = append(args, filter.Priority)
		conditions = append(conditions, "priority = "+placeholder(len(args)))
	}
	if filter.Tag != "" {
		args = append(args, filter.Tag)
		conditions = append(conditions, placeholder(len(args))+" = ANY(tags)")
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		p := placeholder(len(args))
		conditions = append(conditions, fmt.Sprintf("(title ILIKE %s OR description ILIKE %s)", p, p))
	}
	if filter.Archived != nil {
		args = append(args, *filter.Archived)
		conditions = append(conditions, "is_archived = "+placeholder(len(args)))
	}

	where := strings.Join(conditions, " AND ")

	var total int
	countQuery := `SELECT COUNT(*) FROM tasks WHERE ` + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	query := fmt.Sprintf(
		`SELECT %s FROM tasks WHERE %s ORDER BY created_at DESC LIMIT %s OFFSET %s`,
		taskColumns, where, placeholder(len(args)-1), placeholder(len(args)),
	)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, 0, err
		}
		tasks = append(tasks, task)
	}
	return tasks, total, rows.Err()
}

func (r *pgTaskRepository) Update(ctx context.Context, task *Task) error {
	query := `
		UPDATE tasks
		SET title = $1, description = $2, status = $3, priority = $4,
		    due_date = $5, completed_at = $6, assignee_id = $7, team_id = $8,
		    tags = $9, is_archived = $10, updated_at = now()
		WHERE id = $11
		RETURNING updated_at
	`
	return r.pool.QueryRow(ctx, query,
		task.Title, task.Description, task.Status, task.Priority,
		task.DueDate, task.CompletedAt, task.AssigneeID, task.TeamID,
		task.Tags, task.IsArchived, task.ID,
	).Scan(&task.UpdatedAt)
}

func (r *pgTaskRepository) Delete(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	return err
}

func (r *pgTaskRepository) FindDueSoon(ctx context.Context, within time.Duration) ([]*Task, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE due_date IS NOT NULL
		  AND due_date > now()
		  AND due_date <= now() + $1::interval
		  AND status NOT IN ($2, $3)
		  AND assignee_id IS NOT NULL
		  AND is_archived = FALSE
	`
	return r.queryTasks(ctx, query, fmt.Sprintf("%d seconds", int(within.Seconds())), StatusCompleted, StatusCancelled)
}

func (r *pgTaskRepository) FindOverdue(ctx context.Context) ([]*Task, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE due_date IS NOT NULL
		  AND due_date < now()
		  AND status NOT IN ($1, $2)
		  AND assignee_id IS NOT NULL
		  AND is_archived = FALSE
	`
	return r.queryTasks(ctx, query, StatusCompleted, StatusCancelled)
}

func (r *pgTaskRepository) queryTasks(ctx context.Context, query string, args ...interface{}) ([]*Task, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}
