package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/taskmaster/taskmaster-api/internal/repository"
	"github.com/taskmaster/taskmaster-api/internal/service"
)

// stubTeamService returns canned results so the tests exercise request
// parsing and error-to-status mapping.
type stubTeamService struct {
	team       *repository.Team
	invitation *repository.TeamInvitation
	err        error

	gotToken string
	gotEmail string
	gotRole  string
}

func (s *stubTeamService) Create(ctx context.Context, ownerID, name, description string) (*repository.Team, error) {
	return s.team, s.err
}

func (s *stubTeamService) GetByID(ctx context.Context, teamID, userID string) (*repository.Team, error) {
	return s.team, s.err
}

func (s *stubTeamService) ListForUser(ctx context.Context, userID string, limit, offset int) ([]*repository.Team, int, error) {
	if s.err != nil {
		return nil, 0, s.err
	}
	return []*repository.Team{s.team}, 1, nil
}

func (s *stubTeamService) Update(ctx context.Context, teamID, userID string, update service.TeamUpdate) (*repository.Team, error) {
	return s.team, s.err
}

func (s *stubTeamService) Delete(ctx context.Context, teamID, userID string) error {
	return s.err
}

func (s *stubTeamService) Invite(ctx context.Context, teamID, inviterID, inviteeEmail, role string) (*repository.TeamInvitation, error) {
	s.gotEmail = inviteeEmail
	s.gotRole = role
	return s.invitation, s.err
}

func (s *stubTeamService) AcceptInvitation(ctx context.Context, token, userID string) (*repository.Team, error) {
	s.gotToken = token
	return s.team, s.err
}

func (s *stubTeamService) PendingInvitations(ctx context.Context, teamID, userID string) ([]*repository.TeamInvitation, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []*repository.TeamInvitation{s.invitation}, nil
}

func (s *stubTeamService) RoleOf(ctx context.Context, teamID, userID string) (string, error) {
	return repository.RoleMember, s.err
}

func (s *stubTeamService) Members(ctx context.Context, teamID, userID string) ([]*repository.TeamMember, error) {
	return nil, s.err
}

func (s *stubTeamService) RemoveMember(ctx context.Context, teamID, callerID, targetUserID string) error {
	return s.err
}

func (s *stubTeamService) Leave(ctx context.Context, teamID, userID string) error {
	return s.err
}

func setupTeamRouter(stub *stubTeamService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := &TeamHandler{teamService: stub}

	r := gin.New()
	authed := r.Group("", func(c *gin.Context) {
		c.Set("userID", "user-1")
	})
	authed.POST("/teams", h.Create)
	authed.POST("/teams/:id/invite", h.Invite)
	authed.POST("/teams/join/:token", h.Join)
	authed.DELETE("/teams/:id/members/:memberId", h.RemoveMember)
	authed.POST("/teams/:id/leave", h.Leave)
	return r
}

func doJSON(r *gin.Engine, method, url string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestTeamHandler_InviteReturnsToken(t *testing.T) {
	stub := &stubTeamService{
		invitation: &repository.TeamInvitation{
			Token:     "tok-123",
			ExpiresAt: time.Now().Add(7 * 24 * time.Hour),
		},
	}
	r := setupTeamRouter(stub)

	w := doJSON(r, http.MethodPost, "/teams/team-1/invite", map[string]string{
		"email": "new@example.com",
		"role":  "member",
	})

	require.Equal(t, http.StatusCreated, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "tok-123", resp["inviteToken"])
	require.Equal(t, "new@example.com", stub.gotEmail)
	require.Equal(t, "member", stub.gotRole)
}

func TestTeamHandler_InviteValidatesBody(t *testing.T) {
	r := setupTeamRouter(&stubTeamService{})

	// Missing role
	w := doJSON(r, http.MethodPost, "/teams/team-1/invite", map[string]string{"email": "x@example.com"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	// Malformed email
	w = doJSON(r, http.MethodPost, "/teams/team-1/invite", map[string]string{"email": "nope", "role": "member"})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTeamHandler_InviteForbidden(t *testing.T) {
	r := setupTeamRouter(&stubTeamService{err: service.ErrForbidden})

	w := doJSON(r, http.MethodPost, "/teams/team-1/invite", map[string]string{
		"email": "new@example.com",
		"role":  "member",
	})
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestTeamHandler_JoinPassesToken(t *testing.T) {
	stub := &stubTeamService{team: &repository.Team{ID: "team-1", Name: "Engineering"}}
	r := setupTeamRouter(stub)

	w := doJSON(r, http.MethodPost, "/teams/join/tok-456", nil)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "tok-456", stub.gotToken)

	var resp struct {
		Team repository.Team `json:"team"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "team-1", resp.Team.ID)
}

func TestTeamHandler_JoinErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"invalid invitation", service.ErrInvalidInvitation, http.StatusBadRequest},
		{"email mismatch", service.ErrEmailMismatch, http.StatusBadRequest},
		{"already member", service.ErrAlreadyMember, http.StatusBadRequest},
		{"internal", context.DeadlineExceeded, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := setupTeamRouter(&stubTeamService{err: tc.err})
			w := doJSON(r, http.MethodPost, "/teams/join/tok", nil)
			require.Equal(t, tc.code, w.Code)
		})
	}
}

func TestTeamHandler_RemoveMemberOwnerProtected(t *testing.T) {
	r := setupTeamRouter(&stubTeamService{err: service.ErrOwnerProtected})

	w := doJSON(r, http.MethodDelete, "/teams/team-1/members/owner-id", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Contains(t, resp["error"], "owner")
}

func TestTeamHandler_LeaveNotMember(t *testing.T) {
	r := setupTeamRouter(&stubTeamService{err: service.ErrNotMember})

	w := doJSON(r, http.MethodPost, "/teams/team-1/leave", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestTeamHandler_CreateRequiresAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := &TeamHandler{teamService: &stubTeamService{}}
	r := gin.New()
	r.POST("/teams", h.Create) // no userID in context

	w := doJSON(r, http.MethodPost, "/teams", map[string]string{"name": "Engineering"})
	require.Equal(t, http.StatusUnauthorized, w.Code)
}
