package models

import "time"

// Default role names. Seeded by migrations.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type Role struct {
	ID          string
	Name        string // unique
	Description string
}

type Permission struct {
	ID          string
	Name        string // unique
	Description string
}

// UserRole joins a user to a role, with the assignment timestamp.
type UserRole struct {
	UserID     string
	RoleID     string
	AssignedAt time.Time
}

type RolePermission struct {
	RoleID       string
	PermissionID string
}
