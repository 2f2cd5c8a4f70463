package models

import (
	"strings"
	"time"
)

// UserStatus is the account lifecycle status.
type UserStatus string

const (
	UserStatusPending   UserStatus = "pending"
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
	UserStatusBanned    UserStatus = "banned"
)

const (
	// MaxFailedLogins is the number of consecutive failed login attempts
	// before a temporary lock is applied.
	MaxFailedLogins = 5

	// LockoutDuration is how long an account stays locked after too many
	// failed login attempts.
	LockoutDuration = 30 * time.Minute
)

type User struct {
	ID            string
	Email         string // stored lowercase, unique
	Name          string
	PasswordHash  string
	SecurityStamp string // rotated on password change to invalidate issued access tokens

	Status         UserStatus
	EmailConfirmed bool
	IsLocked       bool
	LockoutEnd     *time.Time
	FailedLogins   int

	LastLoginAt       *time.Time
	LastLoginIP       string
	PasswordChangedAt *time.Time

	IsDeleted bool
	DeletedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
	Version   int64 // optimistic concurrency token

	// Roles is populated by the *WithRoles loaders only.
	Roles []Role
}

// NormalizeEmail lowercases and trims an email for case-insensitive matching.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// RoleNames returns the names of the loaded roles, for token minting.
func (u *User) RoleNames() []string {
	names := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		names = append(names, r.Name)
	}
	return names
}

// LockedOut reports whether the lockout window is still in effect at now.
func (u *User) LockedOut(now time.Time) bool {
	return u.IsLocked && u.LockoutEnd != nil && now.Before(*u.LockoutEnd)
}
