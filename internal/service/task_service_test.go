package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/taskmaster/taskmaster-api/internal/notification"
	"github.com/taskmaster/taskmaster-api/internal/repository"
	"github.com/taskmaster/taskmaster-api/internal/socket"
)

type taskTestEnv struct {
	users     *fakeUserRepo
	teams     *fakeTeamRepo
	tasks     *fakeTaskRepo
	notifRepo *fakeNotificationRepo
	svc       TaskService
}

func setupTaskTestEnv(t *testing.T) *taskTestEnv {
	t.Helper()

	users := newFakeUserRepo()
	teams := newFakeTeamRepo()
	tasks := newFakeTaskRepo()
	notifRepo := newFakeNotificationRepo()
	notifSvc := notification.NewService(notifRepo, nil)

	return &taskTestEnv{
		users:     users,
		teams:     teams,
		tasks:     tasks,
		notifRepo: notifRepo,
		svc:       NewTaskService(tasks, teams, users, nil, notifSvc, nil, nil, nil),
	}
}

func (e *taskTestEnv) createUser(t *testing.T, email string) *repository.User {
	t.Helper()
	user := &repository.User{
		FirstName: "Test",
		LastName:  "User",
		Email:     email,
		Password:  "hashed",
		Role:      repository.UserRoleUser,
		IsActive:  true,
	}
	require.NoError(t, e.users.Create(context.Background(), user))
	return user
}

func (e *taskTestEnv) createTeamWith(t *testing.T, ownerID string, memberIDs ...string) *repository.Team {
	t.Helper()
	ctx := context.Background()
	team := &repository.Team{Name: "Engineering", OwnerID: ownerID}
	require.NoError(t, e.teams.Create(ctx, team))
	require.NoError(t, e.teams.AddMember(ctx, &repository.TeamMember{
		TeamID: team.ID, UserID: ownerID, Role: repository.RoleOwner,
	}))
	for _, id := range memberIDs {
		require.NoError(t, e.teams.AddMember(ctx, &repository.TeamMember{
			TeamID: team.ID, UserID: id, Role: repository.RoleMember,
		}))
	}
	return team
}

func TestTaskService_CreateDefaults(t *testing.T) {
	env := setupTaskTestEnv(t)
	creator := env.createUser(t, "creator@example.com")

	task, err := env.svc.Create(context.Background(), creator.ID, TaskInput{Title: "Write the report"})
	require.NoError(t, err)
	require.Equal(t, repository.StatusOpen, task.Status)
	require.Equal(t, repository.PriorityMedium, task.Priority)
	require.Nil(t, task.CompletedAt)
	require.Nil(t, task.AssigneeID)

	// No assignee, no assignment notification
	require.Empty(t, env.notifRepo.notifications)
}

func TestTaskService_CreateRequiresTitle(t *testing.T) {
	env := setupTaskTestEnv(t)
	creator := env.createUser(t, "creator@example.com")

	_, err := env.svc.Create(context.Background(), creator.ID, TaskInput{})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestTaskService_PersonalTaskAssignableOnlyToSelf(t *testing.T) {
	env := setupTaskTestEnv(t)
	creator := env.createUser(t, "creator@example.com")
	other := env.createUser(t, "other@example.com")

	_, err := env.svc.Create(context.Background(), creator.ID, TaskInput{
		Title:      "Personal errand",
		AssigneeID: &other.ID,
	})
	require.ErrorIs(t, err, ErrForbidden)

	task, err := env.svc.Create(context.Background(), creator.ID, TaskInput{
		Title:      "Personal errand",
		AssigneeID: &creator.ID,
	})
	require.NoError(t, err)
	require.Equal(t, creator.ID, *task.AssigneeID)
}

func TestTaskService_TeamTaskRequiresMembership(t *testing.T) {
	env := setupTaskTestEnv(t)
	ctx := context.Background()

	owner := env.createUser(t, "owner@example.com")
	member := env.createUser(t, "member@example.com")
	outsider := env.createUser(t, "outsider@example.com")
	team := env.createTeamWith(t, owner.ID, member.ID)

	_, err := env.svc.Create(ctx, outsider.ID, TaskInput{Title: "Sneaky task", TeamID: &team.ID})
	require.ErrorIs(t, err, ErrForbidden)

	// Assignee outside the team is rejected too
	_, err = env.svc.Create(ctx, owner.ID, TaskInput{
		Title: "Ship it", TeamID: &team.ID, AssigneeID: &outsider.ID,
	})
	require.ErrorIs(t, err, ErrForbidden)

	task, err := env.svc.Create(ctx, owner.ID, TaskInput{
		Title: "Ship it", TeamID: &team.ID, AssigneeID: &member.ID,
	})
	require.NoError(t, err)
	require.Equal(t, member.ID, *task.AssigneeID)
}

func TestTaskService_AssignmentOnCreateNotifiesAssignee(t *testing.T) {
	env := setupTaskTestEnv(t)
	ctx := context.Background()

	owner := env.createUser(t, "owner@example.com")
	member := env.createUser(t, "member@example.com")
	team := env.createTeamWith(t, owner.ID, member.ID)

	_, err := env.svc.Create(ctx, owner.ID, TaskInput{
		Title: "Ship it", TeamID: &team.ID, AssigneeID: &member.ID,
	})
	require.NoError(t, err)

	assigned := env.notifRepo.byType(member.ID, repository.NotificationTaskAssigned)
	require.Len(t, assigned, 1)
	require.Contains(t, assigned[0].Message, "Ship it")
}

func TestTaskService_SelfAssignmentIsSilent(t *testing.T) {
	env := setupTaskTestEnv(t)
	owner := env.createUser(t, "owner@example.com")
	team := env.createTeamWith(t, owner.ID)

	_, err := env.svc.Create(context.Background(), owner.ID, TaskInput{
		Title: "My own task", TeamID: &team.ID, AssigneeID: &owner.ID,
	})
	require.NoError(t, err)
	require.Empty(t, env.notifRepo.byType(owner.ID, repository.NotificationTaskAssigned))
}

// nextFanOutMessage drains a client's channel, skipping presence and ping
// traffic, and returns the first domain message type seen.
func nextFanOutMessage(t *testing.T, client *socket.Client, timeout time.Duration) (socket.MessageType, bool) {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case raw := <-client.Send:
			var msg socket.Message
			require.NoError(t, json.Unmarshal(raw, &msg))
			switch msg.Type {
			case socket.MessageUserOnline, socket.MessageUserOffline, socket.MessagePing:
				continue
			}
			return msg.Type, true
		case <-deadline:
			return "", false
		}
	}
}

func TestTaskService_SelfAssignedCreateSkipsFanOut(t *testing.T) {
	ctx := context.Background()

	users := newFakeUserRepo()
	teams := newFakeTeamRepo()
	tasks := newFakeTaskRepo()
	notifSvc := notification.NewService(newFakeNotificationRepo(), nil)

	hub := socket.NewHub()
	go hub.Run()
	broadcast := socket.NewBroadcaster(hub)
	svc := NewTaskService(tasks, teams, users, nil, notifSvc, nil, broadcast, nil)

	env := &taskTestEnv{users: users, teams: teams, tasks: tasks, svc: svc}
	owner := env.createUser(t, "owner@example.com")
	member := env.createUser(t, "member@example.com")
	team := env.createTeamWith(t, owner.ID, member.ID)

	ownerClient := socket.NewClient(hub, owner.ID, nil)
	hub.Register(ownerClient)
	memberClient := socket.NewClient(hub, member.ID, nil)
	hub.Register(memberClient)
	require.Eventually(t, func() bool {
		return hub.IsUserOnline(owner.ID) && hub.IsUserOnline(member.ID)
	}, time.Second, 10*time.Millisecond)

	// Creating a task assigned to yourself must not reach your own connection
	_, err := svc.Create(ctx, owner.ID, TaskInput{
		Title: "My own task", TeamID: &team.ID, AssigneeID: &owner.ID,
	})
	require.NoError(t, err)
	if msgType, ok := nextFanOutMessage(t, ownerClient, 200*time.Millisecond); ok {
		t.Fatalf("unexpected fan-out on self-assigned create: %s", msgType)
	}

	// Assigning someone else still fires task-assigned to them
	_, err = svc.Create(ctx, owner.ID, TaskInput{
		Title: "Ship it", TeamID: &team.ID, AssigneeID: &member.ID,
	})
	require.NoError(t, err)
	msgType, ok := nextFanOutMessage(t, memberClient, time.Second)
	require.True(t, ok)
	require.Equal(t, socket.MessageTaskAssigned, msgType)
}

func TestTaskService_CompletionTimestampFollowsStatus(t *testing.T) {
	env := setupTaskTestEnv(t)
	ctx := context.Background()
	creator := env.createUser(t, "creator@example.com")

	task, err := env.svc.Create(ctx, creator.ID, TaskInput{
		Title:  "Finish the thing",
		Status: repository.StatusCompleted,
	})
	require.NoError(t, err)
	require.NotNil(t, task.CompletedAt)

	// Reopening clears the timestamp
	open := repository.StatusOpen
	task, err = env.svc.Update(ctx, task.ID, creator.ID, TaskUpdate{Status: &open})
	require.NoError(t, err)
	require.Nil(t, task.CompletedAt)

	// Completing again sets a fresh one
	completed := repository.StatusCompleted
	task, err = env.svc.Update(ctx, task.ID, creator.ID, TaskUpdate{Status: &completed})
	require.NoError(t, err)
	require.NotNil(t, task.CompletedAt)
	require.WithinDuration(t, time.Now(), *task.CompletedAt, time.Minute)
}

func TestTaskService_UpdateGate(t *testing.T) {
	env := setupTaskTestEnv(t)
	ctx := context.Background()

	owner := env.createUser(t, "owner@example.com")
	assignee := env.createUser(t, "assignee@example.com")
	bystander := env.createUser(t, "bystander@example.com")
	team := env.createTeamWith(t, owner.ID, assignee.ID, bystander.ID)

	task, err := env.svc.Create(ctx, owner.ID, TaskInput{
		Title: "Gated task", TeamID: &team.ID, AssigneeID: &assignee.ID,
	})
	require.NoError(t, err)

	title := "Renamed"
	// Team membership alone does not grant writes
	_, err = env.svc.Update(ctx, task.ID, bystander.ID, TaskUpdate{Title: &title})
	require.ErrorIs(t, err, ErrForbidden)

	// The assignee can update
	_, err = env.svc.Update(ctx, task.ID, assignee.ID, TaskUpdate{Title: &title})
	require.NoError(t, err)
}

func TestTaskService_ReassignmentNotifiesNewAssignee(t *testing.T) {
	env := setupTaskTestEnv(t)
	ctx := context.Background()

	owner := env.createUser(t, "owner@example.com")
	first := env.createUser(t, "first@example.com")
	second := env.createUser(t, "second@example.com")
	team := env.createTeamWith(t, owner.ID, first.ID, second.ID)

	task, err := env.svc.Create(ctx, owner.ID, TaskInput{
		Title: "Hot potato", TeamID: &team.ID, AssigneeID: &first.ID,
	})
	require.NoError(t, err)
	require.Len(t, env.notifRepo.byType(first.ID, repository.NotificationTaskAssigned), 1)

	_, err = env.svc.Update(ctx, task.ID, owner.ID, TaskUpdate{AssigneeID: &second.ID})
	require.NoError(t, err)

	// Only the new assignee is notified, exactly once
	require.Len(t, env.notifRepo.byType(second.ID, repository.NotificationTaskAssigned), 1)
	require.Len(t, env.notifRepo.byType(first.ID, repository.NotificationTaskAssigned), 1)

	// Saving without changing the assignee fires nothing new
	title := "Still a hot potato"
	_, err = env.svc.Update(ctx, task.ID, owner.ID, TaskUpdate{Title: &title})
	require.NoError(t, err)
	require.Len(t, env.notifRepo.byType(second.ID, repository.NotificationTaskAssigned), 1)
}

func TestTaskService_CompletionNotifiesCreator(t *testing.T) {
	env := setupTaskTestEnv(t)
	ctx := context.Background()

	owner := env.createUser(t, "owner@example.com")
	assignee := env.createUser(t, "assignee@example.com")
	team := env.createTeamWith(t, owner.ID, assignee.ID)

	task, err := env.svc.Create(ctx, owner.ID, TaskInput{
		Title: "Close me out", TeamID: &team.ID, AssigneeID: &assignee.ID,
	})
	require.NoError(t, err)

	completed := repository.StatusCompleted
	_, err = env.svc.Update(ctx, task.ID, assignee.ID, TaskUpdate{Status: &completed})
	require.NoError(t, err)
	require.Len(t, env.notifRepo.byType(owner.ID, repository.NotificationTaskCompleted), 1)

	// Completing an already-completed task does not re-notify
	_, err = env.svc.Update(ctx, task.ID, assignee.ID, TaskUpdate{Status: &completed})
	require.NoError(t, err)
	require.Len(t, env.notifRepo.byType(owner.ID, repository.NotificationTaskCompleted), 1)
}

func TestTaskService_DeleteCreatorOnly(t *testing.T) {
	env := setupTaskTestEnv(t)
	ctx := context.Background()

	owner := env.createUser(t, "owner@example.com")
	assignee := env.createUser(t, "assignee@example.com")
	team := env.createTeamWith(t, owner.ID, assignee.ID)

	task, err := env.svc.Create(ctx, owner.ID, TaskInput{
		Title: "Doomed task", TeamID: &team.ID, AssigneeID: &assignee.ID,
	})
	require.NoError(t, err)

	require.ErrorIs(t, env.svc.Delete(ctx, task.ID, assignee.ID), ErrForbidden)
	require.NoError(t, env.svc.Delete(ctx, task.ID, owner.ID))
	require.ErrorIs(t, env.svc.Delete(ctx, task.ID, owner.ID), ErrNotFound)
}

func TestTaskService_ListScopesToCaller(t *testing.T) {
	env := setupTaskTestEnv(t)
	ctx := context.Background()

	alice := env.createUser(t, "alice@example.com")
	bob := env.createUser(t, "bob@example.com")

	_, err := env.svc.Create(ctx, alice.ID, TaskInput{Title: "Alice's task"})
	require.NoError(t, err)
	_, err = env.svc.Create(ctx, bob.ID, TaskInput{Title: "Bob's task"})
	require.NoError(t, err)

	tasks, total, err := env.svc.List(ctx, alice.ID, repository.TaskFilter{}, 20, 0)
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Equal(t, "Alice's task", tasks[0].Title)
}

func TestTaskService_ListByTeamRequiresMembership(t *testing.T) {
	env := setupTaskTestEnv(t)
	ctx := context.Background()

	owner := env.createUser(t, "owner@example.com")
	outsider := env.createUser(t, "outsider@example.com")
	team := env.createTeamWith(t, owner.ID)

	_, _, err := env.svc.List(ctx, outsider.ID, repository.TaskFilter{TeamID: team.ID}, 20, 0)
	require.ErrorIs(t, err, ErrForbidden)
}

func TestTaskService_ViewerAccess(t *testing.T) {
	env := setupTaskTestEnv(t)
	ctx := context.Background()

	owner := env.createUser(t, "owner@example.com")
	member := env.createUser(t, "member@example.com")
	outsider := env.createUser(t, "outsider@example.com")
	team := env.createTeamWith(t, owner.ID, member.ID)

	task, err := env.svc.Create(ctx, owner.ID, TaskInput{Title: "Visible task", TeamID: &team.ID})
	require.NoError(t, err)

	// Team members can read team tasks
	_, err = env.svc.GetByID(ctx, task.ID, member.ID)
	require.NoError(t, err)

	_, err = env.svc.GetByID(ctx, task.ID, outsider.ID)
	require.ErrorIs(t, err, ErrForbidden)
}
