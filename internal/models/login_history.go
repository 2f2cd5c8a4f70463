package models

import "time"

// UserLoginHistory is an append-only audit record of a login attempt.
// Rows are never mutated; old rows are removed only by the retention sweep.
type UserLoginHistory struct {
	ID            string
	UserID        string
	AttemptedAt   time.Time
	IPAddress     string
	UserAgent     string
	Success       bool
	FailureReason string
}
