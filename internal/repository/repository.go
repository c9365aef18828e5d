package repository

import (
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5/pgconn"
)

// ============================================
// Domain Enums
// ============================================

// Team roles
const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// User roles
const (
	UserRoleUser  = "user"
	UserRoleAdmin = "admin"
)

// Task statuses
const (
	StatusOpen       = "open"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

// Task priorities
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// ValidTeamRole reports whether role is assignable to a team member.
func ValidTeamRole(role string) bool {
	return role == RoleOwner || role == RoleAdmin || role == RoleMember
}

// ValidInviteRole reports whether role may be granted through an invitation.
// Ownership is never granted by invite.
func ValidInviteRole(role string) bool {
	return role == RoleAdmin || role == RoleMember
}

// ValidTaskStatus reports whether status is a known task status.
func ValidTaskStatus(status string) bool {
	switch status {
	case StatusOpen, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// ValidTaskPriority reports whether priority is a known task priority.
func ValidTaskPriority(priority string) bool {
	switch priority {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// ============================================
// Storage Errors
// ============================================

// ErrInvitationConsumed is returned when an invitation row is already marked
// accepted at commit time. The two concurrent accepts race on the
// accepted_at IS NULL guard; the loser gets this error.
var ErrInvitationConsumed = errors.New("invitation already consumed")

const uniqueViolationCode = "23505"

// IsUniqueViolation reports whether err is a PostgreSQL unique-constraint
// violation. Callers treat this as an expected, recoverable conflict
// (duplicate email, duplicate membership), not a fatal storage error.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

// placeholder renders the nth positional SQL parameter ($1, $2, ...).
func placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}
