package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure categories. The HTTP boundary maps
// these to status codes; the core never encodes transport codes itself.
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrBadRequest     = errors.New("bad request")
	ErrConcurrency    = errors.New("concurrent update conflict")
	ErrTransient      = errors.New("transient store failure")
	ErrInternalServer = errors.New("internal server error")
)

// Unauthorized variants. Each wraps ErrUnauthorized so callers can match
// the category while logs keep the precise reason.
var (
	ErrInvalidCredentials  = fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	ErrAccountLocked       = fmt.Errorf("%w: account is locked", ErrUnauthorized)
	ErrAccountNotActive    = fmt.Errorf("%w: account is not active", ErrUnauthorized)
	ErrInvalidRefreshToken = fmt.Errorf("%w: invalid refresh token", ErrUnauthorized)
	ErrTokenRevoked        = fmt.Errorf("%w: refresh token has been revoked", ErrUnauthorized)
	ErrTokenExpired        = fmt.Errorf("%w: refresh token has expired", ErrUnauthorized)
)

// Conflict variants.
var (
	ErrEmailTaken          = fmt.Errorf("%w: email already registered", ErrConflict)
	ErrTokenAlreadyRevoked = fmt.Errorf("%w: token is already revoked", ErrConflict)
)
