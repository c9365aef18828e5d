package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/taskmaster/taskmaster-api/internal/email"
	"github.com/taskmaster/taskmaster-api/internal/notification"
	"github.com/taskmaster/taskmaster-api/internal/repository"
	"github.com/taskmaster/taskmaster-api/internal/socket"
)

// InvitationTTL is how long an invitation token stays valid
const InvitationTTL = 7 * 24 * time.Hour

// ============================================
// Team Service
// ============================================

type TeamService interface {
	Create(ctx context.Context, ownerID, name, description string) (*repository.Team, error)
	GetByID(ctx context.Context, teamID, userID string) (*repository.Team, error)
	ListForUser(ctx context.Context, userID string, limit, offset int) ([]*repository.Team, int, error)
	Update(ctx context.Context, teamID, userID string, update TeamUpdate) (*repository.Team, error)
	Delete(ctx context.Context, teamID, userID string) error

	// Invitation engine
	Invite(ctx context.Context, teamID, inviterID, inviteeEmail, role string) (*repository.TeamInvitation, error)
	AcceptInvitation(ctx context.Context, token, userID string) (*repository.Team, error)
	PendingInvitations(ctx context.Context, teamID, userID string) ([]*repository.TeamInvitation, error)

	// Membership
	RoleOf(ctx context.Context, teamID, userID string) (string, error)
	Members(ctx context.Context, teamID, userID string) ([]*repository.TeamMember, error)
	RemoveMember(ctx context.Context, teamID, callerID, targetUserID string) error
	Leave(ctx context.Context, teamID, userID string) error
}

// TeamUpdate carries optional team fields; nil means "leave as is"
type TeamUpdate struct {
	Name        *string
	Description *string
	Avatar      *string
}

type teamService struct {
	teamRepo    repository.TeamRepository
	inviteRepo  repository.InvitationRepository
	userRepo    repository.UserRepository
	notifSvc    *notification.Service
	emailQueue  *email.Queue
	broadcast   *socket.Broadcaster
	frontendURL string
}

func NewTeamService(
	teamRepo repository.TeamRepository,
	inviteRepo repository.InvitationRepository,
	userRepo repository.UserRepository,
	notifSvc *notification.Service,
	emailQueue *email.Queue,
	broadcast *socket.Broadcaster,
	frontendURL string,
) TeamService {
	return &teamService{
		teamRepo:    teamRepo,
		inviteRepo:  inviteRepo,
		userRepo:    userRepo,
		notifSvc:    notifSvc,
		emailQueue:  emailQueue,
		broadcast:   broadcast,
		frontendURL: frontendURL,
	}
}

func (s *teamService) Create(ctx context.Context, ownerID, name, description string) (*repository.Team, error) {
	if name == "" {
		return nil, ErrInvalidInput
	}

	team := &repository.Team{
		Name:        name,
		Description: description,
		OwnerID:     ownerID,
		IsActive:    true,
	}
	if err := s.teamRepo.Create(ctx, team); err != nil {
		return nil, fmt.Errorf("failed to create team: %w", err)
	}

	// The creator is the owner member from the start
	member := &repository.TeamMember{
		TeamID: team.ID,
		UserID: ownerID,
		Role:   repository.RoleOwner,
	}
	if err := s.teamRepo.AddMember(ctx, member); err != nil {
		return nil, fmt.Errorf("failed to add owner membership: %w", err)
	}

	return team, nil
}

func (s *teamService) GetByID(ctx context.Context, teamID, userID string) (*repository.Team, error) {
	team, err := s.teamRepo.FindByID(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if team == nil {
		return nil, ErrNotFound
	}

	role, err := s.RoleOf(ctx, teamID, userID)
	if err != nil {
		return nil, err
	}
	if role == "" {
		return nil, ErrForbidden
	}
	return team, nil
}

func (s *teamService) ListForUser(ctx context.Context, userID string, limit, offset int) ([]*repository.Team, int, error) {
	return s.teamRepo.FindByUserID(ctx, userID, limit, offset)
}

func (s *teamService) Update(ctx context.Context, teamID, userID string, update TeamUpdate) (*repository.Team, error) {
	team, err := s.teamRepo.FindByID(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if team == nil {
		return nil, ErrNotFound
	}

	if err := s.requireAdmin(ctx, teamID, userID); err != nil {
		return nil, err
	}

	if update.Name != nil {
		if *update.Name == "" {
			return nil, ErrInvalidInput
		}
		team.Name = *update.Name
	}
	if update.Description != nil {
		team.Description = *update.Description
	}
	if update.Avatar != nil {
		team.Avatar = update.Avatar
	}

	if err := s.teamRepo.Update(ctx, team); err != nil {
		return nil, fmt.Errorf("failed to update team: %w", err)
	}

	if s.broadcast != nil {
		s.broadcast.TeamUpdated(team.ID, map[string]interface{}{
			"id":          team.ID,
			"name":        team.Name,
			"description": team.Description,
		}, userID)
	}
	return team, nil
}

// Delete requires the caller to be the team's owner field, not merely a
// member with role owner.
func (s *teamService) Delete(ctx context.Context, teamID, userID string) error {
	team, err := s.teamRepo.FindByID(ctx, teamID)
	if err != nil {
		return err
	}
	if team == nil {
		return ErrNotFound
	}
	if team.OwnerID != userID {
		return ErrForbidden
	}

	if err := s.teamRepo.Delete(ctx, teamID); err != nil {
		return fmt.Errorf("failed to delete team: %w", err)
	}

	if s.broadcast != nil {
		s.broadcast.TeamDeleted(teamID, userID)
	}
	return nil
}

// ============================================
// Invitation Engine
// ============================================

func (s *teamService) Invite(ctx context.Context, teamID, inviterID, inviteeEmail, role string) (*repository.TeamInvitation, error) {
	team, err := s.teamRepo.FindByID(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if team == nil {
		return nil, ErrNotFound
	}

	if err := s.requireAdmin(ctx, teamID, inviterID); err != nil {
		return nil, err
	}

	if !repository.ValidInviteRole(role) {
		return nil, ErrInvalidInput
	}

	inviteeEmail = NormalizeEmail(inviteeEmail)
	if inviteeEmail == "" {
		return nil, ErrInvalidInput
	}

	// If the address already belongs to a member, the invite is pointless
	if existing, err := s.userRepo.FindByEmail(ctx, inviteeEmail); err == nil && existing != nil {
		member, err := s.teamRepo.FindMember(ctx, teamID, existing.ID)
		if err != nil {
			return nil, err
		}
		if member != nil {
			return nil, ErrAlreadyMember
		}
	}

	invitation := &repository.TeamInvitation{
		TeamID:    teamID,
		Email:     inviteeEmail,
		Role:      role,
		InvitedBy: inviterID,
		ExpiresAt: time.Now().Add(InvitationTTL),
	}
	if err := s.inviteRepo.Create(ctx, invitation); err != nil {
		return nil, fmt.Errorf("failed to create invitation: %w", err)
	}

	s.deliverInvitation(ctx, team, invitation, inviterID, inviteeEmail)

	return invitation, nil
}

// deliverInvitation sends the invite email and, when the invitee already has
// an account, an in-app notification. Delivery failures never fail the invite.
func (s *teamService) deliverInvitation(ctx context.Context, team *repository.Team, invitation *repository.TeamInvitation, inviterID, inviteeEmail string) {
	inviterName := ""
	if inviter, err := s.userRepo.FindByID(ctx, inviterID); err == nil && inviter != nil {
		inviterName = inviter.FirstName + " " + inviter.LastName
	}

	if s.emailQueue != nil {
		s.emailQueue.Enqueue(
			[]string{inviteeEmail},
			fmt.Sprintf("[TaskMaster] Invitation to join %s", team.Name),
			"invitation",
			email.InvitationEmailData{
				TeamName:  team.Name,
				InvitedBy: inviterName,
				InviteURL: fmt.Sprintf("%s/invite?token=%s", s.frontendURL, invitation.Token),
			},
		)
	}

	if s.notifSvc != nil {
		if invitee, err := s.userRepo.FindByEmail(ctx, inviteeEmail); err == nil && invitee != nil {
			if err := s.notifSvc.SendTeamInvitation(ctx, invitee.ID, inviterID, team.Name, team.ID); err != nil {
				log.Printf("[Team] Failed to send invitation notification: %v", err)
			}
		}
	}
}

func (s *teamService) AcceptInvitation(ctx context.Context, token, userID string) (*repository.Team, error) {
	// Unknown, expired and consumed tokens all resolve to nil here, so the
	// caller always sees the same failure.
	invitation, err := s.inviteRepo.FindValidByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if invitation == nil {
		return nil, ErrInvalidInvitation
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	// Strict equality against the stored lowercase-normalized address
	if user.Email != invitation.Email {
		return nil, ErrEmailMismatch
	}

	existing, err := s.teamRepo.FindMember(ctx, invitation.TeamID, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrAlreadyMember
	}

	member := &repository.TeamMember{
		TeamID: invitation.TeamID,
		UserID: userID,
		Role:   invitation.Role,
	}
	if err := s.inviteRepo.AcceptAndJoin(ctx, invitation.ID, member); err != nil {
		// Lost a race: a concurrent accept consumed the token, or a
		// concurrent join created the membership first.
		if err == repository.ErrInvitationConsumed {
			return nil, ErrInvalidInvitation
		}
		if repository.IsUniqueViolation(err) {
			return nil, ErrAlreadyMember
		}
		return nil, fmt.Errorf("failed to accept invitation: %w", err)
	}

	team, err := s.teamRepo.FindByID(ctx, invitation.TeamID)
	if err != nil {
		return nil, err
	}
	if team == nil {
		return nil, ErrNotFound
	}

	if s.broadcast != nil {
		s.broadcast.MemberJoined(team.ID, map[string]interface{}{
			"userId":   userID,
			"role":     member.Role,
			"joinedAt": member.JoinedAt,
		})
	}
	if s.notifSvc != nil {
		if err := s.notifSvc.SendMemberJoined(ctx, team.OwnerID, userID, team.Name, team.ID); err != nil {
			log.Printf("[Team] Failed to send member joined notification: %v", err)
		}
	}

	return team, nil
}

func (s *teamService) PendingInvitations(ctx context.Context, teamID, userID string) ([]*repository.TeamInvitation, error) {
	if err := s.requireAdmin(ctx, teamID, userID); err != nil {
		return nil, err
	}
	return s.inviteRepo.FindPendingByTeam(ctx, teamID)
}

// ============================================
// Membership & Authorization
// ============================================

// RoleOf returns the caller's membership role, or "" for non-members
func (s *teamService) RoleOf(ctx context.Context, teamID, userID string) (string, error) {
	member, err := s.teamRepo.FindMember(ctx, teamID, userID)
	if err != nil {
		return "", err
	}
	if member == nil {
		return "", nil
	}
	return member.Role, nil
}

// requireAdmin fails with ErrForbidden unless the caller is an owner or admin
// of the team.
func (s *teamService) requireAdmin(ctx context.Context, teamID, userID string) error {
	role, err := s.RoleOf(ctx, teamID, userID)
	if err != nil {
		return err
	}
	if role != repository.RoleOwner && role != repository.RoleAdmin {
		return ErrForbidden
	}
	return nil
}

func (s *teamService) Members(ctx context.Context, teamID, userID string) ([]*repository.TeamMember, error) {
	role, err := s.RoleOf(ctx, teamID, userID)
	if err != nil {
		return nil, err
	}
	if role == "" {
		return nil, ErrForbidden
	}
	return s.teamRepo.FindMembers(ctx, teamID)
}

func (s *teamService) RemoveMember(ctx context.Context, teamID, callerID, targetUserID string) error {
	if err := s.requireAdmin(ctx, teamID, callerID); err != nil {
		return err
	}

	target, err := s.teamRepo.FindMember(ctx, teamID, targetUserID)
	if err != nil {
		return err
	}
	if target == nil {
		return ErrNotMember
	}
	if target.Role == repository.RoleOwner {
		return ErrOwnerProtected
	}

	removed, err := s.teamRepo.RemoveMember(ctx, teamID, targetUserID)
	if err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}
	if !removed {
		return ErrNotMember
	}

	if s.broadcast != nil {
		s.broadcast.MemberRemoved(teamID, targetUserID, callerID)
	}
	return nil
}

func (s *teamService) Leave(ctx context.Context, teamID, userID string) error {
	member, err := s.teamRepo.FindMember(ctx, teamID, userID)
	if err != nil {
		return err
	}
	if member == nil {
		return ErrNotMember
	}
	if member.Role == repository.RoleOwner {
		return ErrOwnerProtected
	}

	removed, err := s.teamRepo.RemoveMember(ctx, teamID, userID)
	if err != nil {
		return fmt.Errorf("failed to leave team: %w", err)
	}
	if !removed {
		return ErrNotMember
	}

	if s.broadcast != nil {
		s.broadcast.MemberRemoved(teamID, userID, userID)
	}
	return nil
}
