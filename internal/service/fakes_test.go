package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/taskmaster/taskmaster-api/internal/repository"
)

// In-memory repository fakes. They mirror the behavior the SQL layer
// guarantees: (nil, nil) misses, unique violations on duplicate memberships,
// and single-use invitation consumption.

// ============================================
// Users
// ============================================

type fakeUserRepo struct {
	users  map[string]*repository.User
	tokens map[string]*repository.RefreshToken
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		users:  make(map[string]*repository.User),
		tokens: make(map[string]*repository.RefreshToken),
	}
}

func (r *fakeUserRepo) Create(ctx context.Context, user *repository.User) error {
	for _, u := range r.users {
		if u.Email == user.Email {
			return &pgconn.PgError{Code: "23505"}
		}
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.Role == "" {
		user.Role = repository.UserRoleUser
	}
	// The users table defaults is_active to TRUE
	user.IsActive = true
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	r.users[user.ID] = user
	return nil
}

func (r *fakeUserRepo) FindByID(ctx context.Context, id string) (*repository.User, error) {
	return r.users[id], nil
}

func (r *fakeUserRepo) FindByEmail(ctx context.Context, email string) (*repository.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) FindActive(ctx context.Context, search string, limit, offset int) ([]*repository.User, int, error) {
	var out []*repository.User
	for _, u := range r.users {
		if !u.IsActive {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(u.Email), strings.ToLower(search)) {
			continue
		}
		out = append(out, u)
	}
	return out, len(out), nil
}

func (r *fakeUserRepo) Update(ctx context.Context, user *repository.User) error {
	if _, ok := r.users[user.ID]; !ok {
		return fmt.Errorf("user %s not found", user.ID)
	}
	user.UpdatedAt = time.Now()
	r.users[user.ID] = user
	return nil
}

func (r *fakeUserRepo) UpdatePassword(ctx context.Context, id, hashedPassword string) error {
	if u, ok := r.users[id]; ok {
		u.Password = hashedPassword
	}
	return nil
}

func (r *fakeUserRepo) UpdateLastLogin(ctx context.Context, id string) error {
	if u, ok := r.users[id]; ok {
		now := time.Now()
		u.LastLoginAt = &now
	}
	return nil
}

func (r *fakeUserRepo) SaveRefreshToken(ctx context.Context, rt *repository.RefreshToken) error {
	if rt.ID == "" {
		rt.ID = uuid.New().String()
	}
	r.tokens[rt.Token] = rt
	return nil
}

func (r *fakeUserRepo) FindRefreshToken(ctx context.Context, token string) (*repository.RefreshToken, error) {
	return r.tokens[token], nil
}

func (r *fakeUserRepo) DeleteRefreshToken(ctx context.Context, token string) error {
	delete(r.tokens, token)
	return nil
}

// ============================================
// Teams
// ============================================

type fakeTeamRepo struct {
	teams   map[string]*repository.Team
	members map[string]*repository.TeamMember // keyed teamID+"/"+userID
}

func newFakeTeamRepo() *fakeTeamRepo {
	return &fakeTeamRepo{
		teams:   make(map[string]*repository.Team),
		members: make(map[string]*repository.TeamMember),
	}
}

func memberKey(teamID, userID string) string {
	return teamID + "/" + userID
}

func (r *fakeTeamRepo) Create(ctx context.Context, team *repository.Team) error {
	if team.ID == "" {
		team.ID = uuid.New().String()
	}
	team.IsActive = true
	team.CreatedAt = time.Now()
	team.UpdatedAt = team.CreatedAt
	r.teams[team.ID] = team
	return nil
}

func (r *fakeTeamRepo) FindByID(ctx context.Context, id string) (*repository.Team, error) {
	return r.teams[id], nil
}

func (r *fakeTeamRepo) FindByUserID(ctx context.Context, userID string, limit, offset int) ([]*repository.Team, int, error) {
	var out []*repository.Team
	for _, m := range r.members {
		if m.UserID == userID {
			if t, ok := r.teams[m.TeamID]; ok && t.IsActive {
				out = append(out, t)
			}
		}
	}
	return out, len(out), nil
}

func (r *fakeTeamRepo) Update(ctx context.Context, team *repository.Team) error {
	if _, ok := r.teams[team.ID]; !ok {
		return fmt.Errorf("team %s not found", team.ID)
	}
	team.UpdatedAt = time.Now()
	r.teams[team.ID] = team
	return nil
}

func (r *fakeTeamRepo) Delete(ctx context.Context, id string) error {
	delete(r.teams, id)
	for k, m := range r.members {
		if m.TeamID == id {
			delete(r.members, k)
		}
	}
	return nil
}

func (r *fakeTeamRepo) AddMember(ctx context.Context, member *repository.TeamMember) error {
	key := memberKey(member.TeamID, member.UserID)
	if _, exists := r.members[key]; exists {
		return &pgconn.PgError{Code: "23505"}
	}
	member.ID = uuid.New().String()
	member.JoinedAt = time.Now()
	r.members[key] = member
	return nil
}

func (r *fakeTeamRepo) FindMember(ctx context.Context, teamID, userID string) (*repository.TeamMember, error) {
	return r.members[memberKey(teamID, userID)], nil
}

func (r *fakeTeamRepo) FindMembers(ctx context.Context, teamID string) ([]*repository.TeamMember, error) {
	var out []*repository.TeamMember
	for _, m := range r.members {
		if m.TeamID == teamID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *fakeTeamRepo) RemoveMember(ctx context.Context, teamID, userID string) (bool, error) {
	key := memberKey(teamID, userID)
	if _, ok := r.members[key]; !ok {
		return false, nil
	}
	delete(r.members, key)
	return true, nil
}

// ============================================
// Invitations
// ============================================

type fakeInviteRepo struct {
	invitations map[string]*repository.TeamInvitation // keyed by ID
	teamRepo    *fakeTeamRepo

	// beforeAccept runs at the top of AcceptAndJoin, letting tests interleave
	// a competing accept.
	beforeAccept func()
}

func newFakeInviteRepo(teamRepo *fakeTeamRepo) *fakeInviteRepo {
	return &fakeInviteRepo{
		invitations: make(map[string]*repository.TeamInvitation),
		teamRepo:    teamRepo,
	}
}

func (r *fakeInviteRepo) Create(ctx context.Context, invitation *repository.TeamInvitation) error {
	if invitation.Token == "" {
		invitation.Token = uuid.New().String()
	}
	invitation.ID = uuid.New().String()
	invitation.CreatedAt = time.Now()
	r.invitations[invitation.ID] = invitation
	return nil
}

func (r *fakeInviteRepo) FindValidByToken(ctx context.Context, token string) (*repository.TeamInvitation, error) {
	for _, inv := range r.invitations {
		if inv.Token == token && inv.ExpiresAt.After(time.Now()) && inv.AcceptedAt == nil {
			copied := *inv
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeInviteRepo) FindPendingByTeam(ctx context.Context, teamID string) ([]*repository.TeamInvitation, error) {
	var out []*repository.TeamInvitation
	for _, inv := range r.invitations {
		if inv.TeamID == teamID && inv.ExpiresAt.After(time.Now()) && inv.AcceptedAt == nil {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (r *fakeInviteRepo) AcceptAndJoin(ctx context.Context, invitationID string, member *repository.TeamMember) error {
	if r.beforeAccept != nil {
		r.beforeAccept()
	}

	inv, ok := r.invitations[invitationID]
	if !ok || inv.AcceptedAt != nil {
		return repository.ErrInvitationConsumed
	}

	key := memberKey(member.TeamID, member.UserID)
	if _, exists := r.teamRepo.members[key]; exists {
		// Membership insert loses; the invitation stays open like the
		// rolled-back transaction would leave it.
		return &pgconn.PgError{Code: "23505"}
	}

	now := time.Now()
	inv.AcceptedAt = &now
	member.ID = uuid.New().String()
	member.JoinedAt = now
	r.teamRepo.members[key] = member
	return nil
}

func (r *fakeInviteRepo) DeleteExpired(ctx context.Context) (int, error) {
	count := 0
	for id, inv := range r.invitations {
		if inv.ExpiresAt.Before(time.Now()) && inv.AcceptedAt == nil {
			delete(r.invitations, id)
			count++
		}
	}
	return count, nil
}

// ============================================
// Tasks
// ============================================

type fakeTaskRepo struct {
	tasks map[string]*repository.Task
}

func newFakeTaskRepo() *fakeTaskRepo {
	return &fakeTaskRepo{tasks: make(map[string]*repository.Task)}
}

func (r *fakeTaskRepo) Create(ctx context.Context, task *repository.Task) error {
	task.ID = uuid.New().String()
	task.CreatedAt = time.Now()
	task.UpdatedAt = task.CreatedAt
	r.tasks[task.ID] = task
	return nil
}

func (r *fakeTaskRepo) FindByID(ctx context.Context, id string) (*repository.Task, error) {
	return r.tasks[id], nil
}

func (r *fakeTaskRepo) Find(ctx context.Context, filter repository.TaskFilter, limit, offset int) ([]*repository.Task, int, error) {
	var out []*repository.Task
	for _, t := range r.tasks {
		if filter.TeamID != "" && (t.TeamID == nil || *t.TeamID != filter.TeamID) {
			continue
		}
		if filter.CreatorID != "" && t.CreatorID != filter.CreatorID {
			continue
		}
		if filter.AssigneeID != "" && (t.AssigneeID == nil || *t.AssigneeID != filter.AssigneeID) {
			continue
		}
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		out = append(out, t)
	}
	return out, len(out), nil
}

func (r *fakeTaskRepo) Update(ctx context.Context, task *repository.Task) error {
	if _, ok := r.tasks[task.ID]; !ok {
		return fmt.Errorf("task %s not found", task.ID)
	}
	task.UpdatedAt = time.Now()
	r.tasks[task.ID] = task
	return nil
}

func (r *fakeTaskRepo) Delete(ctx context.Context, id string) error {
	delete(r.tasks, id)
	return nil
}

func (r *fakeTaskRepo) FindDueSoon(ctx context.Context, within time.Duration) ([]*repository.Task, error) {
	cutoff := time.Now().Add(within)
	var out []*repository.Task
	for _, t := range r.tasks {
		if t.DueDate != nil && t.AssigneeID != nil && t.DueDate.Before(cutoff) && t.DueDate.After(time.Now()) &&
			t.Status != repository.StatusCompleted && t.Status != repository.StatusCancelled {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *fakeTaskRepo) FindOverdue(ctx context.Context) ([]*repository.Task, error) {
	var out []*repository.Task
	for _, t := range r.tasks {
		if t.DueDate != nil && t.AssigneeID != nil && t.DueDate.Before(time.Now()) &&
			t.Status != repository.StatusCompleted && t.Status != repository.StatusCancelled {
			out = append(out, t)
		}
	}
	return out, nil
}

// ============================================
// Notifications
// ============================================

// ============================================
// Comments
// ============================================

type fakeCommentRepo struct {
	comments []*repository.Comment
}

func newFakeCommentRepo() *fakeCommentRepo {
	return &fakeCommentRepo{}
}

func (r *fakeCommentRepo) Create(ctx context.Context, comment *repository.Comment) error {
	comment.ID = uuid.New().String()
	comment.CreatedAt = time.Now()
	comment.UpdatedAt = comment.CreatedAt
	r.comments = append(r.comments, comment)
	return nil
}

func (r *fakeCommentRepo) FindByID(ctx context.Context, id string) (*repository.Comment, error) {
	for _, c := range r.comments {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, nil
}

// FindByTask excludes tombstoned rows, like the is_deleted filter in SQL
func (r *fakeCommentRepo) FindByTask(ctx context.Context, taskID string, limit, offset int) ([]*repository.Comment, int, error) {
	var out []*repository.Comment
	for _, c := range r.comments {
		if c.TaskID == taskID && !c.IsDeleted {
			out = append(out, c)
		}
	}
	total := len(out)
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, total, nil
}

func (r *fakeCommentRepo) Update(ctx context.Context, comment *repository.Comment) error {
	for _, c := range r.comments {
		if c.ID == comment.ID {
			c.Content = comment.Content
			c.IsEdited = true
			c.UpdatedAt = time.Now()
			comment.IsEdited = c.IsEdited
			comment.UpdatedAt = c.UpdatedAt
			return nil
		}
	}
	return fmt.Errorf("comment %s not found", comment.ID)
}

// SoftDelete flips the flag only; the content stays on the row
func (r *fakeCommentRepo) SoftDelete(ctx context.Context, id string) error {
	for _, c := range r.comments {
		if c.ID == id {
			c.IsDeleted = true
			c.UpdatedAt = time.Now()
			return nil
		}
	}
	return nil
}

type fakeNotificationRepo struct {
	notifications []*repository.Notification
}

func newFakeNotificationRepo() *fakeNotificationRepo {
	return &fakeNotificationRepo{}
}

func (r *fakeNotificationRepo) Create(ctx context.Context, n *repository.Notification) error {
	n.ID = uuid.New().String()
	n.CreatedAt = time.Now()
	r.notifications = append(r.notifications, n)
	return nil
}

func (r *fakeNotificationRepo) FindByRecipient(ctx context.Context, recipientID string, unreadOnly bool, limit, offset int) ([]*repository.Notification, int, error) {
	var out []*repository.Notification
	for _, n := range r.notifications {
		if n.RecipientID != recipientID {
			continue
		}
		if unreadOnly && n.IsRead {
			continue
		}
		out = append(out, n)
	}
	return out, len(out), nil
}

func (r *fakeNotificationRepo) CountUnread(ctx context.Context, recipientID string) (int, error) {
	count := 0
	for _, n := range r.notifications {
		if n.RecipientID == recipientID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (r *fakeNotificationRepo) MarkRead(ctx context.Context, id, recipientID string) (bool, error) {
	for _, n := range r.notifications {
		if n.ID == id && n.RecipientID == recipientID && !n.IsRead {
			n.IsRead = true
			now := time.Now()
			n.ReadAt = &now
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeNotificationRepo) MarkAllRead(ctx context.Context, recipientID string) (int, error) {
	count := 0
	for _, n := range r.notifications {
		if n.RecipientID == recipientID && !n.IsRead {
			n.IsRead = true
			count++
		}
	}
	return count, nil
}

func (r *fakeNotificationRepo) Delete(ctx context.Context, id, recipientID string) (bool, error) {
	for i, n := range r.notifications {
		if n.ID == id && n.RecipientID == recipientID {
			r.notifications = append(r.notifications[:i], r.notifications[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeNotificationRepo) DeleteOld(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)
	kept := r.notifications[:0]
	count := 0
	for _, n := range r.notifications {
		if n.CreatedAt.Before(cutoff) {
			count++
			continue
		}
		kept = append(kept, n)
	}
	r.notifications = kept
	return count, nil
}

// byType returns the recipient's notifications of one type.
func (r *fakeNotificationRepo) byType(recipientID, notifType string) []*repository.Notification {
	var out []*repository.Notification
	for _, n := range r.notifications {
		if n.RecipientID == recipientID && n.Type == notifType {
			out = append(out, n)
		}
	}
	return out
}
