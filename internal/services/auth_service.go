package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"authcore/internal/auth"
	"authcore/internal/models"
	"authcore/internal/repositories"
	pkgauth "authcore/pkg/auth"
	pkglogger "authcore/pkg/logger"
)

// AuthService orchestrates the session lifecycle: registration, login with
// lockout, refresh-token rotation, revocation, and password changes. Every
// multi-write mutation runs inside one unit-of-work transaction.
type AuthService struct {
	uow    repositories.UnitOfWorkFactory
	tokens *auth.TokenManager
	logger *slog.Logger
	audit  *pkglogger.AuditLogger

	now func() time.Time
}

func NewAuthService(uow repositories.UnitOfWorkFactory, tokens *auth.TokenManager, logger *slog.Logger, audit *pkglogger.AuditLogger) *AuthService {
	return &AuthService{
		uow:    uow,
		tokens: tokens,
		logger: logger,
		audit:  audit,
		now:    time.Now,
	}
}

// AuthResult is returned by operations that establish or rotate a session.
type AuthResult struct {
	User         *models.User
	AccessToken  string
	RefreshToken string
}

// Register creates a new account with the default role, mints a token pair,
// and persists the refresh token, all atomically. A case-insensitively
// matching existing email fails with a conflict.
func (s *AuthService) Register(ctx context.Context, email, password, name, ip string) (*AuthResult, error) {
	email = models.NormalizeEmail(email)
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", models.ErrBadRequest)
	}
	if err := pkgauth.ValidatePassword(password); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrBadRequest, err)
	}

	unit := s.uow.New()
	defer unit.Close(ctx)

	exists, err := unit.Users().EmailExists(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists {
		s.logger.Info("registration rejected: email already registered")
		return nil, models.ErrEmailTaken
	}

	hash, err := pkgauth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	user := &models.User{
		ID:            uuid.New().String(),
		Email:         email,
		Name:          name,
		PasswordHash:  hash,
		SecurityStamp: uuid.New().String(),
		Status:        models.UserStatusActive,
	}

	var result AuthResult
	err = unit.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := unit.Users().Create(ctx, user); err != nil {
			return err
		}

		role, err := unit.Roles().GetByName(ctx, models.RoleUser)
		if err != nil {
			return fmt.Errorf("default role lookup failed: %w", err)
		}
		if err := unit.Roles().AssignToUser(ctx, user.ID, role.ID, now); err != nil {
			return err
		}
		user.Roles = []models.Role{*role}

		access, err := s.tokens.GenerateAccessToken(user, user.RoleNames())
		if err != nil {
			return err
		}
		refresh, err := s.tokens.GenerateRefreshToken()
		if err != nil {
			return err
		}

		if err := unit.RefreshTokens().Create(ctx, s.newRefreshToken(user.ID, refresh, ip, now)); err != nil {
			return err
		}

		result = AuthResult{User: user, AccessToken: access, RefreshToken: refresh}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("user registered", slog.String("user_id", user.ID))
	s.audit.LogAccountAction("user_registered", user.ID)
	return &result, nil
}

// Login verifies credentials under the lockout policy. Five consecutive
// failures lock the account for thirty minutes; success resets the counter
// and clears any expired lock. Every attempt leaves a history row.
func (s *AuthService) Login(ctx context.Context, email, password, ip, userAgent string) (*AuthResult, error) {
	email = models.NormalizeEmail(email)

	unit := s.uow.New()
	defer unit.Close(ctx)

	now := s.now().UTC()

	user, err := unit.Users().GetByEmailWithRoles(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.audit.LogAuthAttempt(pkglogger.AuditEvent{
				EventType:     "login_failed",
				IPAddress:     ip,
				FailureReason: "unknown_email",
			})
			return nil, models.ErrInvalidCredentials
		}
		return nil, err
	}

	if !pkgauth.VerifyPassword(password, user.PasswordHash) {
		if err := s.recordFailedLogin(ctx, unit, user, ip, userAgent, now); err != nil {
			return nil, err
		}
		s.audit.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login_failed",
			UserID:        user.ID,
			IPAddress:     ip,
			UserAgent:     userAgent,
			FailureReason: "invalid_password",
		})
		return nil, models.ErrInvalidCredentials
	}

	// Correct password during an active lockout window still fails, and
	// leaves the counter untouched.
	if user.LockedOut(now) {
		s.audit.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login_failed",
			UserID:        user.ID,
			IPAddress:     ip,
			UserAgent:     userAgent,
			FailureReason: "account_locked",
		})
		return nil, models.ErrAccountLocked
	}

	var result AuthResult
	err = unit.RunInTransaction(ctx, func(ctx context.Context) error {
		user.FailedLogins = 0
		user.IsLocked = false
		user.LockoutEnd = nil
		user.LastLoginAt = &now
		user.LastLoginIP = ip

		if err := unit.Users().Update(ctx, user); err != nil {
			return err
		}

		access, err := s.tokens.GenerateAccessToken(user, user.RoleNames())
		if err != nil {
			return err
		}
		refresh, err := s.tokens.GenerateRefreshToken()
		if err != nil {
			return err
		}

		if err := unit.RefreshTokens().Create(ctx, s.newRefreshToken(user.ID, refresh, ip, now)); err != nil {
			return err
		}

		if err := unit.LoginHistory().Create(ctx, &models.UserLoginHistory{
			ID:          uuid.New().String(),
			UserID:      user.ID,
			AttemptedAt: now,
			IPAddress:   ip,
			UserAgent:   userAgent,
			Success:     true,
		}); err != nil {
			return err
		}

		result = AuthResult{User: user, AccessToken: access, RefreshToken: refresh}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("user logged in", slog.String("user_id", user.ID))
	s.audit.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "login_success",
		UserID:    user.ID,
		IPAddress: ip,
		UserAgent: userAgent,
		Success:   true,
	})
	return &result, nil
}

// recordFailedLogin bumps the failure counter, applies the lock when the
// threshold is reached, and appends the failure history row, atomically.
// Counter and lock flag are only ever mutated together.
func (s *AuthService) recordFailedLogin(ctx context.Context, unit repositories.UnitOfWork, user *models.User, ip, userAgent string, now time.Time) error {
	return unit.RunInTransaction(ctx, func(ctx context.Context) error {
		user.FailedLogins++
		if user.FailedLogins >= models.MaxFailedLogins {
			lockoutEnd := now.Add(models.LockoutDuration)
			user.IsLocked = true
			user.LockoutEnd = &lockoutEnd
		}

		if err := unit.Users().Update(ctx, user); err != nil {
			return err
		}

		return unit.LoginHistory().Create(ctx, &models.UserLoginHistory{
			ID:            uuid.New().String(),
			UserID:        user.ID,
			AttemptedAt:   now,
			IPAddress:     ip,
			UserAgent:     userAgent,
			Success:       false,
			FailureReason: "invalid password",
		})
	})
}

// RefreshToken rotates a refresh token: the presented token is revoked with
// a pointer to its replacement, and a brand-new token is persisted, in one
// transaction. Absent, revoked, and expired tokens fail with distinct
// unauthorized reasons.
func (s *AuthService) RefreshToken(ctx context.Context, refreshToken, ip string) (*AuthResult, error) {
	unit := s.uow.New()
	defer unit.Close(ctx)

	now := s.now().UTC()

	existing, err := unit.RefreshTokens().GetByToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrInvalidRefreshToken
		}
		return nil, err
	}
	if existing.Revoked() {
		s.logger.Warn("refresh attempt with revoked token", slog.String("user_id", existing.UserID))
		return nil, models.ErrTokenRevoked
	}
	if existing.Expired(now) {
		return nil, models.ErrTokenExpired
	}

	user, err := unit.Users().GetByIDWithRoles(ctx, existing.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrInvalidRefreshToken
		}
		return nil, err
	}
	if user.IsLocked {
		return nil, models.ErrAccountLocked
	}
	if user.Status != models.UserStatusActive {
		return nil, models.ErrAccountNotActive
	}

	var result AuthResult
	err = unit.RunInTransaction(ctx, func(ctx context.Context) error {
		access, err := s.tokens.GenerateAccessToken(user, user.RoleNames())
		if err != nil {
			return err
		}
		refresh, err := s.tokens.GenerateRefreshToken()
		if err != nil {
			return err
		}

		existing.RevokedAt = &now
		existing.RevokedByIP = ip
		existing.ReplacedByToken = refresh
		if err := unit.RefreshTokens().Update(ctx, existing); err != nil {
			return err
		}

		if err := unit.RefreshTokens().Create(ctx, s.newRefreshToken(user.ID, refresh, ip, now)); err != nil {
			return err
		}

		result = AuthResult{User: user, AccessToken: access, RefreshToken: refresh}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("refresh token rotated", slog.String("user_id", user.ID))
	return &result, nil
}

// RevokeToken marks a refresh token revoked. Revoking an already-revoked
// token is a visible conflict, not a silent no-op.
func (s *AuthService) RevokeToken(ctx context.Context, refreshToken, ip string) error {
	unit := s.uow.New()
	defer unit.Close(ctx)

	existing, err := unit.RefreshTokens().GetByToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrInvalidRefreshToken
		}
		return err
	}
	if existing.Revoked() {
		return models.ErrTokenAlreadyRevoked
	}

	now := s.now().UTC()
	err = unit.RunInTransaction(ctx, func(ctx context.Context) error {
		existing.RevokedAt = &now
		existing.RevokedByIP = ip
		return unit.RefreshTokens().Update(ctx, existing)
	})
	if err != nil {
		return err
	}

	s.audit.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "token_revoked",
		UserID:    existing.UserID,
		IPAddress: ip,
		Success:   true,
	})
	return nil
}

// ChangePassword verifies the current password and, on success, swaps the
// hash, rotates the security stamp, and revokes every active refresh token
// for the user in one transaction. A wrong current password is a plain
// false, not an error.
func (s *AuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) (bool, error) {
	unit := s.uow.New()
	defer unit.Close(ctx)

	user, err := unit.Users().GetByID(ctx, userID)
	if err != nil {
		return false, err
	}

	if !pkgauth.VerifyPassword(currentPassword, user.PasswordHash) {
		s.audit.LogPasswordChange(user.ID, false)
		return false, nil
	}

	if err := pkgauth.ValidatePassword(newPassword); err != nil {
		return false, fmt.Errorf("%w: %v", models.ErrBadRequest, err)
	}

	if err := s.rotateCredentials(ctx, unit, user, newPassword, "system:password-change"); err != nil {
		return false, err
	}

	s.audit.LogPasswordChange(user.ID, true)
	return true, nil
}

// ResetPassword applies the same credential rotation as ChangePassword,
// gated on a reset token that the boundary layer has already validated.
func (s *AuthService) ResetPassword(ctx context.Context, email, resetToken, newPassword string) error {
	if resetToken == "" {
		return fmt.Errorf("%w: reset token is required", models.ErrBadRequest)
	}
	if err := pkgauth.ValidatePassword(newPassword); err != nil {
		return fmt.Errorf("%w: %v", models.ErrBadRequest, err)
	}

	unit := s.uow.New()
	defer unit.Close(ctx)

	user, err := unit.Users().GetByEmail(ctx, email)
	if err != nil {
		return err
	}

	if err := s.rotateCredentials(ctx, unit, user, newPassword, "system:password-reset"); err != nil {
		return err
	}

	s.audit.LogPasswordChange(user.ID, true)
	return nil
}

// rotateCredentials installs a new password hash, stamps the change time,
// rotates the security stamp, and revokes all active refresh tokens,
// atomically.
func (s *AuthService) rotateCredentials(ctx context.Context, unit repositories.UnitOfWork, user *models.User, newPassword, revokedBy string) error {
	hash, err := pkgauth.HashPassword(newPassword)
	if err != nil {
		return err
	}

	now := s.now().UTC()
	return unit.RunInTransaction(ctx, func(ctx context.Context) error {
		user.PasswordHash = hash
		user.PasswordChangedAt = &now
		user.SecurityStamp = uuid.New().String()

		if err := unit.Users().Update(ctx, user); err != nil {
			return err
		}

		active, err := unit.RefreshTokens().GetActiveByUserID(ctx, user.ID, now)
		if err != nil {
			return err
		}
		for _, token := range active {
			token.RevokedAt = &now
			token.RevokedByIP = revokedBy
			if err := unit.RefreshTokens().Update(ctx, token); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *AuthService) newRefreshToken(userID, token, ip string, now time.Time) *models.RefreshToken {
	return &models.RefreshToken{
		ID:          uuid.New().String(),
		UserID:      userID,
		Token:       token,
		CreatedAt:   now,
		CreatedByIP: ip,
		ExpiresAt:   now.Add(s.tokens.RefreshTokenTTL()),
	}
}
