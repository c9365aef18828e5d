package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TeamInvitation is a time-boxed, single-use join token for a team. The email
// is stored lowercase-normalized; acceptance binds the token to the user whose
// account carries that email. accepted_at NULL means the token is still open.
type TeamInvitation struct {
	ID         string     `json:"id"`
	TeamID     string     `json:"teamId"`
	Email      string     `json:"email"`
	Role       string     `json:"role"`
	Token      string     `json:"token"`
	InvitedBy  string     `json:"invitedBy"`
	ExpiresAt  time.Time  `json:"expiresAt"`
	AcceptedAt *time.Time `json:"acceptedAt"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// InvitationRepository defines team invitation data operations
type InvitationRepository interface {
	Create(ctx context.Context, invitation *TeamInvitation) error
	FindValidByToken(ctx context.Context, token string) (*TeamInvitation, error)
	FindPendingByTeam(ctx context.Context, teamID string) ([]*TeamInvitation, error)

	// AcceptAndJoin consumes the invitation and creates the membership in a
	// single transaction. Either both writes commit or neither does.
	AcceptAndJoin(ctx context.Context, invitationID string, member *TeamMember) error

	DeleteExpired(ctx context.Context) (int, error)
}

type pgInvitationRepository struct {
	pool *pgxpool.Pool
}

func NewInvitationRepository(pool *pgxpool.Pool) InvitationRepository {
	return &pgInvitationRepository{pool: pool}
}

func (r *pgInvitationRepository) Create(ctx context.Context, invitation *TeamInvitation) error {
	if invitation.Token == "" {
		invitation.Token = uuid.New().String()
	}
	query := `
		INSERT INTO team_invitations (team_id, email, role, token, invited_by, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`
	return r.pool.QueryRow(ctx, query,
		invitation.TeamID, invitation.Email, invitation.Role,
		invitation.Token, invitation.InvitedBy, invitation.ExpiresAt,
	).Scan(&invitation.ID, &invitation.CreatedAt)
}

// FindValidByToken resolves a token that exists, has not expired and has not
// been accepted. All three failure modes return (nil, nil) so callers cannot
// distinguish which tokens ever existed.
func (r *pgInvitationRepository) FindValidByToken(ctx context.Context, token string) (*TeamInvitation, error) {
	query := `
		SELECT id, team_id, email, role, token, invited_by, expires_at, accepted_at, created_at
		FROM team_invitations
		WHERE token = $1 AND expires_at > now() AND accepted_at IS NULL
	`
	invitation := &TeamInvitation{}
	err := r.pool.QueryRow(ctx, query, token).Scan(
		&invitation.ID, &invitation.TeamID, &invitation.Email, &invitation.Role,
		&invitation.Token, &invitation.InvitedBy, &invitation.ExpiresAt,
		&invitation.AcceptedAt, &invitation.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return invitation, nil
}

func (r *pgInvitationRepository) FindPendingByTeam(ctx context.Context, teamID string) ([]*TeamInvitation, error) {
	query := `
		SELECT id, team_id, email, role, token, invited_by, expires_at, accepted_at, created_at
		FROM team_invitations
		WHERE team_id = $1 AND expires_at > now() AND accepted_at IS NULL
		ORDER BY created_at DESC
	`
	rows, err := r.pool.Query(ctx, query, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invitations []*TeamInvitation
	for rows.Next() {
		invitation := &TeamInvitation{}
		if err := rows.Scan(
			&invitation.ID, &invitation.TeamID, &invitation.Email, &invitation.Role,
			&invitation.Token, &invitation.InvitedBy, &invitation.ExpiresAt,
			&invitation.AcceptedAt, &invitation.CreatedAt,
		); err != nil {
			return nil, err
		}
		invitations = append(invitations, invitation)
	}
	return invitations, rows.Err()
}

func (r *pgInvitationRepository) AcceptAndJoin(ctx context.Context, invitationID string, member *TeamMember) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	// The accepted_at IS NULL guard makes consumption single-use under
	// concurrency: the second accept updates zero rows.
	result, err := tx.Exec(ctx,
		`UPDATE team_invitations SET accepted_at = now() WHERE id = $1 AND accepted_at IS NULL`,
		invitationID,
	)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrInvitationConsumed
	}

	err = tx.QueryRow(ctx,
		`INSERT INTO team_members (team_id, user_id, role) VALUES ($1, $2, $3) RETURNING id, joined_at`,
		member.TeamID, member.UserID, member.Role,
	).Scan(&member.ID, &member.JoinedAt)
	if err != nil {
		// A unique violation here means a concurrent join won; the rollback
		// leaves the invitation open, which is the correct state since this
		// accept granted nothing.
		return err
	}

	return tx.Commit(ctx)
}

func (r *pgInvitationRepository) DeleteExpired(ctx context.Context) (int, error) {
	result, err := r.pool.Exec(ctx,
		`DELETE FROM team_invitations WHERE expires_at < now() AND accepted_at IS NULL`)
	if err != nil {
		return 0, err
	}
	return int(result.RowsAffected()), nil
}
