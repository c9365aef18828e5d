package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/taskmaster/taskmaster-api/internal/notification"
	"github.com/taskmaster/taskmaster-api/internal/repository"
)

type teamTestEnv struct {
	users     *fakeUserRepo
	teams     *fakeTeamRepo
	invites   *fakeInviteRepo
	notifRepo *fakeNotificationRepo
	svc       TeamService
}

func setupTeamTestEnv(t *testing.T) *teamTestEnv {
	t.Helper()

	users := newFakeUserRepo()
	teams := newFakeTeamRepo()
	invites := newFakeInviteRepo(teams)
	notifRepo := newFakeNotificationRepo()
	notifSvc := notification.NewService(notifRepo, nil)

	return &teamTestEnv{
		users:     users,
		teams:     teams,
		invites:   invites,
		notifRepo: notifRepo,
		svc:       NewTeamService(teams, invites, users, notifSvc, nil, nil, "http://localhost:3000"),
	}
}

func (e *teamTestEnv) createUser(t *testing.T, email string) *repository.User {
	t.Helper()
	user := &repository.User{
		FirstName: "Test",
		LastName:  "User",
		Email:     NormalizeEmail(email),
		Password:  "hashed",
		Role:      repository.UserRoleUser,
		IsActive:  true,
	}
	require.NoError(t, e.users.Create(context.Background(), user))
	return user
}

func (e *teamTestEnv) createTeam(t *testing.T, ownerID string) *repository.Team {
	t.Helper()
	team, err := e.svc.Create(context.Background(), ownerID, "Engineering", "the builders")
	require.NoError(t, err)
	return team
}

func TestTeamService_CreateAddsOwnerMembership(t *testing.T) {
	env := setupTeamTestEnv(t)
	owner := env.createUser(t, "owner@example.com")

	team := env.createTeam(t, owner.ID)
	require.Equal(t, owner.ID, team.OwnerID)

	role, err := env.svc.RoleOf(context.Background(), team.ID, owner.ID)
	require.NoError(t, err)
	require.Equal(t, repository.RoleOwner, role)
}

func TestTeamService_InviteRequiresAdmin(t *testing.T) {
	env := setupTeamTestEnv(t)
	ctx := context.Background()

	owner := env.createUser(t, "owner@example.com")
	member := env.createUser(t, "member@example.com")
	outsider := env.createUser(t, "outsider@example.com")
	team := env.createTeam(t, owner.ID)

	require.NoError(t, env.teams.AddMember(ctx, &repository.TeamMember{
		TeamID: team.ID, UserID: member.ID, Role: repository.RoleMember,
	}))

	_, err := env.svc.Invite(ctx, team.ID, member.ID, "new@example.com", repository.RoleMember)
	require.ErrorIs(t, err, ErrForbidden)

	_, err = env.svc.Invite(ctx, team.ID, outsider.ID, "new@example.com", repository.RoleMember)
	require.ErrorIs(t, err, ErrForbidden)

	_, err = env.svc.Invite(ctx, team.ID, owner.ID, "new@example.com", repository.RoleMember)
	require.NoError(t, err)
}

func TestTeamService_InviteRejectsOwnerRole(t *testing.T) {
	env := setupTeamTestEnv(t)
	owner := env.createUser(t, "owner@example.com")
	team := env.createTeam(t, owner.ID)

	_, err := env.svc.Invite(context.Background(), team.ID, owner.ID, "new@example.com", repository.RoleOwner)
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestTeamService_InviteNormalizesEmail(t *testing.T) {
	env := setupTeamTestEnv(t)
	owner := env.createUser(t, "owner@example.com")
	team := env.createTeam(t, owner.ID)

	invitation, err := env.svc.Invite(context.Background(), team.ID, owner.ID, "  New.Hire@Example.COM ", repository.RoleMember)
	require.NoError(t, err)
	require.Equal(t, "new.hire@example.com", invitation.Email)
	require.NotEmpty(t, invitation.Token)
	require.WithinDuration(t, time.Now().Add(InvitationTTL), invitation.ExpiresAt, time.Minute)
}

func TestTeamService_InviteExistingMember(t *testing.T) {
	env := setupTeamTestEnv(t)
	ctx := context.Background()

	owner := env.createUser(t, "owner@example.com")
	member := env.createUser(t, "member@example.com")
	team := env.createTeam(t, owner.ID)

	require.NoError(t, env.teams.AddMember(ctx, &repository.TeamMember{
		TeamID: team.ID, UserID: member.ID, Role: repository.RoleMember,
	}))

	_, err := env.svc.Invite(ctx, team.ID, owner.ID, "member@example.com", repository.RoleMember)
	require.ErrorIs(t, err, ErrAlreadyMember)
}

func TestTeamService_AcceptInvitation(t *testing.T) {
	env := setupTeamTestEnv(t)
	ctx := context.Background()

	owner := env.createUser(t, "owner@example.com")
	invitee := env.createUser(t, "invitee@example.com")
	team := env.createTeam(t, owner.ID)

	invitation, err := env.svc.Invite(ctx, team.ID, owner.ID, "invitee@example.com", repository.RoleAdmin)
	require.NoError(t, err)

	joined, err := env.svc.AcceptInvitation(ctx, invitation.Token, invitee.ID)
	require.NoError(t, err)
	require.Equal(t, team.ID, joined.ID)

	// Membership carries the invited role
	role, err := env.svc.RoleOf(ctx, team.ID, invitee.ID)
	require.NoError(t, err)
	require.Equal(t, repository.RoleAdmin, role)

	// The owner hears about the join
	require.Len(t, env.notifRepo.byType(owner.ID, repository.NotificationMemberJoined), 1)

	// The token is spent: a second accept fails like an unknown token
	_, err = env.svc.AcceptInvitation(ctx, invitation.Token, invitee.ID)
	require.ErrorIs(t, err, ErrInvalidInvitation)
}

func TestTeamService_AcceptUnknownToken(t *testing.T) {
	env := setupTeamTestEnv(t)
	invitee := env.createUser(t, "invitee@example.com")

	_, err := env.svc.AcceptInvitation(context.Background(), "no-such-token", invitee.ID)
	require.ErrorIs(t, err, ErrInvalidInvitation)
}

func TestTeamService_AcceptExpiredToken(t *testing.T) {
	env := setupTeamTestEnv(t)
	ctx := context.Background()

	owner := env.createUser(t, "owner@example.com")
	invitee := env.createUser(t, "invitee@example.com")
	team := env.createTeam(t, owner.ID)

	invitation := &repository.TeamInvitation{
		TeamID:    team.ID,
		Email:     "invitee@example.com",
		Role:      repository.RoleMember,
		InvitedBy: owner.ID,
		ExpiresAt: time.Now().Add(-time.Hour),
	}
	require.NoError(t, env.invites.Create(ctx, invitation))

	// Expired tokens fail exactly like tokens that never existed
	_, err := env.svc.AcceptInvitation(ctx, invitation.Token, invitee.ID)
	require.ErrorIs(t, err, ErrInvalidInvitation)
}

func TestTeamService_AcceptEmailMismatch(t *testing.T) {
	env := setupTeamTestEnv(t)
	ctx := context.Background()

	owner := env.createUser(t, "owner@example.com")
	other := env.createUser(t, "other@example.com")
	team := env.createTeam(t, owner.ID)

	invitation, err := env.svc.Invite(ctx, team.ID, owner.ID, "invitee@example.com", repository.RoleMember)
	require.NoError(t, err)

	_, err = env.svc.AcceptInvitation(ctx, invitation.Token, other.ID)
	require.ErrorIs(t, err, ErrEmailMismatch)

	// The token survives a mismatched accept
	valid, err := env.invites.FindValidByToken(ctx, invitation.Token)
	require.NoError(t, err)
	require.NotNil(t, valid)
}

func TestTeamService_AcceptWhenAlreadyMember(t *testing.T) {
	env := setupTeamTestEnv(t)
	ctx := context.Background()

	owner := env.createUser(t, "owner@example.com")
	invitee := env.createUser(t, "invitee@example.com")
	team := env.createTeam(t, owner.ID)

	invitation, err := env.svc.Invite(ctx, team.ID, owner.ID, "invitee@example.com", repository.RoleMember)
	require.NoError(t, err)

	// Joined through some other path before accepting
	require.NoError(t, env.teams.AddMember(ctx, &repository.TeamMember{
		TeamID: team.ID, UserID: invitee.ID, Role: repository.RoleMember,
	}))

	_, err = env.svc.AcceptInvitation(ctx, invitation.Token, invitee.ID)
	require.ErrorIs(t, err, ErrAlreadyMember)
}

func TestTeamService_AcceptLosesConsumptionRace(t *testing.T) {
	env := setupTeamTestEnv(t)
	ctx := context.Background()

	owner := env.createUser(t, "owner@example.com")
	invitee := env.createUser(t, "invitee@example.com")
	team := env.createTeam(t, owner.ID)

	invitation, err := env.svc.Invite(ctx, team.ID, owner.ID, "invitee@example.com", repository.RoleMember)
	require.NoError(t, err)

	// A competing accept consumes the token between the lookup and the join
	env.invites.beforeAccept = func() {
		for _, inv := range env.invites.invitations {
			if inv.Token == invitation.Token {
				now := time.Now()
				inv.AcceptedAt = &now
			}
		}
	}

	_, err = env.svc.AcceptInvitation(ctx, invitation.Token, invitee.ID)
	require.ErrorIs(t, err, ErrInvalidInvitation)
}

func TestTeamService_PendingInvitations(t *testing.T) {
	env := setupTeamTestEnv(t)
	ctx := context.Background()

	owner := env.createUser(t, "owner@example.com")
	member := env.createUser(t, "member@example.com")
	team := env.createTeam(t, owner.ID)

	require.NoError(t, env.teams.AddMember(ctx, &repository.TeamMember{
		TeamID: team.ID, UserID: member.ID, Role: repository.RoleMember,
	}))

	_, err := env.svc.Invite(ctx, team.ID, owner.ID, "a@example.com", repository.RoleMember)
	require.NoError(t, err)
	_, err = env.svc.Invite(ctx, team.ID, owner.ID, "b@example.com", repository.RoleMember)
	require.NoError(t, err)

	pending, err := env.svc.PendingInvitations(ctx, team.ID, owner.ID)
	require.NoError(t, err)
	require.Len(t, pending, 2)

	_, err = env.svc.PendingInvitations(ctx, team.ID, member.ID)
	require.ErrorIs(t, err, ErrForbidden)
}

func TestTeamService_RemoveMember(t *testing.T) {
	env := setupTeamTestEnv(t)
	ctx := context.Background()

	owner := env.createUser(t, "owner@example.com")
	admin := env.createUser(t, "admin@example.com")
	member := env.createUser(t, "member@example.com")
	team := env.createTeam(t, owner.ID)

	require.NoError(t, env.teams.AddMember(ctx, &repository.TeamMember{
		TeamID: team.ID, UserID: admin.ID, Role: repository.RoleAdmin,
	}))
	require.NoError(t, env.teams.AddMember(ctx, &repository.TeamMember{
		TeamID: team.ID, UserID: member.ID, Role: repository.RoleMember,
	}))

	// Plain members may not remove anyone
	err := env.svc.RemoveMember(ctx, team.ID, member.ID, admin.ID)
	require.ErrorIs(t, err, ErrForbidden)

	// Nobody removes the owner, admins included
	err = env.svc.RemoveMember(ctx, team.ID, admin.ID, owner.ID)
	require.ErrorIs(t, err, ErrOwnerProtected)

	// Admins can remove members
	require.NoError(t, env.svc.RemoveMember(ctx, team.ID, admin.ID, member.ID))
	role, err := env.svc.RoleOf(ctx, team.ID, member.ID)
	require.NoError(t, err)
	require.Empty(t, role)

	// Removing a non-member reports as such
	err = env.svc.RemoveMember(ctx, team.ID, owner.ID, member.ID)
	require.ErrorIs(t, err, ErrNotMember)
}

func TestTeamService_Leave(t *testing.T) {
	env := setupTeamTestEnv(t)
	ctx := context.Background()

	owner := env.createUser(t, "owner@example.com")
	member := env.createUser(t, "member@example.com")
	team := env.createTeam(t, owner.ID)

	require.NoError(t, env.teams.AddMember(ctx, &repository.TeamMember{
		TeamID: team.ID, UserID: member.ID, Role: repository.RoleMember,
	}))

	require.ErrorIs(t, env.svc.Leave(ctx, team.ID, owner.ID), ErrOwnerProtected)
	require.NoError(t, env.svc.Leave(ctx, team.ID, member.ID))
	require.ErrorIs(t, env.svc.Leave(ctx, team.ID, member.ID), ErrNotMember)
}

func TestTeamService_DeleteRequiresOwnerField(t *testing.T) {
	env := setupTeamTestEnv(t)
	ctx := context.Background()

	owner := env.createUser(t, "owner@example.com")
	admin := env.createUser(t, "admin@example.com")
	team := env.createTeam(t, owner.ID)

	// Admin role is not enough; deletion keys off the team's owner column
	require.NoError(t, env.teams.AddMember(ctx, &repository.TeamMember{
		TeamID: team.ID, UserID: admin.ID, Role: repository.RoleAdmin,
	}))
	require.ErrorIs(t, env.svc.Delete(ctx, team.ID, admin.ID), ErrForbidden)

	require.NoError(t, env.svc.Delete(ctx, team.ID, owner.ID))
	_, err := env.svc.GetByID(ctx, team.ID, owner.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestTeamService_GetByIDMemberGated(t *testing.T) {
	env := setupTeamTestEnv(t)
	ctx := context.Background()

	owner := env.createUser(t, "owner@example.com")
	outsider := env.createUser(t, "outsider@example.com")
	team := env.createTeam(t, owner.ID)

	_, err := env.svc.GetByID(ctx, team.ID, outsider.ID)
	require.ErrorIs(t, err, ErrForbidden)

	got, err := env.svc.GetByID(ctx, team.ID, owner.ID)
	require.NoError(t, err)
	require.Equal(t, team.ID, got.ID)
}
