package models

import "time"

// RefreshToken is an opaque long-lived credential. The token string carries
// no payload; ownership and validity live entirely in the store.
type RefreshToken struct {
	ID          string
	UserID      string
	Token       string // unique
	CreatedAt   time.Time
	CreatedByIP string
	ExpiresAt   time.Time

	RevokedAt       *time.Time
	RevokedByIP     string
	ReplacedByToken string // set on rotation, points at the successor
}

// Revoked reports whether the token has been explicitly revoked.
func (t *RefreshToken) Revoked() bool {
	return t.RevokedAt != nil
}

// Expired reports whether the token's lifetime has elapsed at now.
func (t *RefreshToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// Active reports whether the token is neither revoked nor expired.
func (t *RefreshToken) Active(now time.Time) bool {
	return !t.Revoked() && !t.Expired(now)
}
