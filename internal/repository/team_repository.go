package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ============================================
// Team Models
// ============================================

// Team represents a team of users collaborating on tasks.
type Team struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Avatar      *string   `json:"avatar"`
	OwnerID     string    `json:"ownerId"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	Owner       *User     `json:"owner,omitempty"`
}

// TeamMember is a (team, user, role) membership row. The (team, user) pair
// is unique; the database index is the authoritative guard.
type TeamMember struct {
	ID       string    `json:"id"`
	TeamID   string    `json:"teamId"`
	UserID   string    `json:"userId"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joinedAt"`
	User     *User     `json:"user,omitempty"`
}

// ============================================
// Team Repository
// ============================================

// TeamRepository defines team and membership data operations
type TeamRepository interface {
	Create(ctx context.Context, team *Team) error
	FindByID(ctx context.Context, id string) (*Team, error)
	FindByUserID(ctx context.Context, userID string, limit, offset int) ([]*Team, int, error)
	Update(ctx context.Context, team *Team) error
	Delete(ctx context.Context, id string) error

	// Membership operations
	AddMember(ctx context.Context, member *TeamMember) error
	FindMember(ctx context.Context, teamID, userID string) (*TeamMember, error)
	FindMembers(ctx context.Context, teamID string) ([]*TeamMember, error)
	RemoveMember(ctx context.Context, teamID, userID string) (bool, error)
}

type pgTeamRepository struct {
	pool *pgxpool.Pool
}

func NewTeamRepository(pool *pgxpool.Pool) TeamRepository {
	return &pgTeamRepository{pool: pool}
}

func (r *pgTeamRepository) Create(ctx context.Context, team *Team) error {
	query := `
		INSERT INTO teams (name, description, avatar, owner_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, is_active, created_at, updated_at
	`
	return r.pool.QueryRow(ctx, query,
		team.Name, team.Description, team.Avatar, team.OwnerID,
	).Scan(&team.ID, &team.IsActive, &team.CreatedAt, &team.UpdatedAt)
}

func (r *pgTeamRepository) FindByID(ctx context.Context, id string) (*Team, error) {
	query := `
		SELECT id, name, description, avatar, owner_id, is_active, created_at, updated_at
		FROM teams WHERE id = $1
	`
	team := &Team{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&team.ID, &team.Name, &team.Description, &team.Avatar,
		&team.OwnerID, &team.IsActive, &team.CreatedAt, &team.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return team, nil
}

func (r *pgTeamRepository) FindByUserID(ctx context.Context, userID string, limit, offset int) ([]*Team, int, error) {
	var total int
	countQuery := `
		SELECT COUNT(*)
		FROM teams t
		JOIN team_members tm ON tm.team_id = t.id
		WHERE tm.user_id = $1 AND t.is_active = TRUE
	`
	if err := r.pool.QueryRow(ctx, countQuery, userID).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT t.id, t.name, t.description, t.avatar, t.owner_id, t.is_active, t.created_at, t.updated_at
		FROM teams t
		JOIN team_members tm ON tm.team_id = t.id
		WHERE tm.user_id = $1 AND t.is_active = TRUE
		ORDER BY t.created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var teams []*Team
	for rows.Next() {
		team := &Team{}
		if err := rows.Scan(
			&team.ID, &team.Name, &team.Description, &team.Avatar,
			&team.OwnerID, &team.IsActive, &team.CreatedAt, &team.UpdatedAt,
		); err != nil {
			return nil, 0, err
		}
		teams = append(teams, team)
	}
	return teams, total, rows.Err()
}

func (r *pgTeamRepository) Update(ctx context.Context, team *Team) error {
	query := `
		UPDATE teams
		SET name = $2, description = $3, avatar = $4, is_active = $5, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`
	return r.pool.QueryRow(ctx, query,
		team.ID, team.Name, team.Description, team.Avatar, team.IsActive,
	).Scan(&team.UpdatedAt)
}

// Delete removes the team. Memberships and invitations cascade with it.
func (r *pgTeamRepository) Delete(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM teams WHERE id = $1`, id)
	return err
}

func (r *pgTeamRepository) AddMember(ctx context.Context, member *TeamMember) error {
	query := `
		INSERT INTO team_members (team_id, user_id, role)
		VALUES ($1, $2, $3)
		RETURNING id, joined_at
	`
	return r.pool.QueryRow(ctx, query,
		member.TeamID, member.UserID, member.Role,
	).Scan(&member.ID, &member.JoinedAt)
}

func (r *pgTeamRepository) FindMember(ctx context.Context, teamID, userID string) (*TeamMember, error) {
	query := `
		SELECT id, team_id, user_id, role, joined_at
		FROM team_members WHERE team_id = $1 AND user_id = $2
	`
	member := &TeamMember{}
	err := r.pool.QueryRow(ctx, query, teamID, userID).Scan(
		&member.ID, &member.TeamID, &member.UserID, &member.Role, &member.JoinedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return member, nil
}

func (r *pgTeamRepository) FindMembers(ctx context.Context, teamID string) ([]*TeamMember, error) {
	query := `
		SELECT tm.id, tm.team_id, tm.user_id, tm.role, tm.joined_at,
		       u.id, u.first_name, u.last_name, u.email, u.avatar, u.is_active
		FROM team_members tm
		JOIN users u ON u.id = tm.user_id
		WHERE tm.team_id = $1
		ORDER BY tm.joined_at ASC
	`
	rows, err := r.pool.Query(ctx, query, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []*TeamMember
	for rows.Next() {
		member := &TeamMember{User: &User{}}
		if err := rows.Scan(
			&member.ID, &member.TeamID, &member.UserID, &member.Role, &member.JoinedAt,
			&member.User.ID, &member.User.FirstName, &member.User.LastName,
			&member.User.Email, &member.User.Avatar, &member.User.IsActive,
		); err != nil {
			return nil, err
		}
		members = append(members, member)
	}
	return members, rows.Err()
}

// RemoveMember deletes the membership row and reports whether one existed.
func (r *pgTeamRepository) RemoveMember(ctx context.Context, teamID, userID string) (bool, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM team_members WHERE team_id = $1 AND user_id = $2`, teamID, userID)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() > 0, nil
}
