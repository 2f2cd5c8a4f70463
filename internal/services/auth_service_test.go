package services

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authcore/internal/auth"
	"authcore/internal/models"
	pkglogger "authcore/pkg/logger"
)

const testPassword = "SecurePassword123"

var testClock = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestAuthService(unit *MockUnitOfWork) *AuthService {
	logger := slog.Default()
	tokens := auth.NewTokenManager("test-secret-0123456789abcdef", 15*time.Minute, 7*24*time.Hour)
	svc := NewAuthService(&MockUnitOfWorkFactory{Unit: unit}, tokens, logger, pkglogger.NewAuditLogger(logger))
	svc.now = func() time.Time { return testClock }
	return svc
}

// ============================================================================
// Register
// ============================================================================

func TestAuthService_Register_Success(t *testing.T) {
	unit := NewMockUnitOfWork()

	var createdUser *models.User
	unit.UserStore.CreateFunc = func(ctx context.Context, user *models.User) error {
		createdUser = user
		return nil
	}

	var persistedToken *models.RefreshToken
	unit.TokenStore.CreateFunc = func(ctx context.Context, token *models.RefreshToken) error {
		persistedToken = token
		return nil
	}

	var assignedRoleID string
	unit.RoleStore.AssignToUserFunc = func(ctx context.Context, userID, roleID string, at time.Time) error {
		assignedRoleID = roleID
		return nil
	}

	svc := newTestAuthService(unit)

	result, err := svc.Register(context.Background(), "New.User@Example.COM", testPassword, "New User", "10.0.0.1")

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.NotEmpty(t, result.AccessToken)
	assert.NotEmpty(t, result.RefreshToken)

	require.NotNil(t, createdUser)
	assert.Equal(t, "new.user@example.com", createdUser.Email)
	assert.Equal(t, models.UserStatusActive, createdUser.Status)
	assert.NotEmpty(t, createdUser.SecurityStamp)
	assert.NotEqual(t, testPassword, createdUser.PasswordHash)

	assert.Equal(t, "role_user", assignedRoleID)

	require.NotNil(t, persistedToken)
	assert.Equal(t, createdUser.ID, persistedToken.UserID)
	assert.Equal(t, result.RefreshToken, persistedToken.Token)
	assert.Equal(t, "10.0.0.1", persistedToken.CreatedByIP)
	assert.Equal(t, testClock.Add(7*24*time.Hour), persistedToken.ExpiresAt)
}

func TestAuthService_Register_DuplicateEmail(t *testing.T) {
	unit := NewMockUnitOfWork()
	unit.UserStore.EmailExistsFunc = func(ctx context.Context, email string) (bool, error) {
		return true, nil
	}

	var created bool
	unit.UserStore.CreateFunc = func(ctx context.Context, user *models.User) error {
		created = true
		return nil
	}

	svc := newTestAuthService(unit)

	result, err := svc.Register(context.Background(), "taken@example.com", testPassword, "Someone", "10.0.0.1")

	assert.Nil(t, result)
	assert.ErrorIs(t, err, models.ErrConflict)
	assert.ErrorIs(t, err, models.ErrEmailTaken)
	assert.False(t, created)
}

func TestAuthService_Register_WeakPassword(t *testing.T) {
	unit := NewMockUnitOfWork()
	svc := newTestAuthService(unit)

	result, err := svc.Register(context.Background(), "user@example.com", "short", "Someone", "10.0.0.1")

	assert.Nil(t, result)
	assert.ErrorIs(t, err, models.ErrBadRequest)
}

// ============================================================================
// Login
// ============================================================================

func TestAuthService_Login_Success(t *testing.T) {
	user := NewTestUser("user123", "user@example.com", testPassword)
	user.FailedLogins = 3

	unit := NewMockUnitOfWork()
	unit.UserStore.GetByEmailWithRolesFunc = func(ctx context.Context, email string) (*models.User, error) {
		return user, nil
	}

	var updated *models.User
	unit.UserStore.UpdateFunc = func(ctx context.Context, u *models.User) error {
		updated = u
		return nil
	}

	var historyRow *models.UserLoginHistory
	unit.HistoryStore.CreateFunc = func(ctx context.Context, entry *models.UserLoginHistory) error {
		historyRow = entry
		return nil
	}

	svc := newTestAuthService(unit)

	result, err := svc.Login(context.Background(), "User@Example.com", testPassword, "10.0.0.1", "test-agent")

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.NotEmpty(t, result.AccessToken)
	assert.NotEmpty(t, result.RefreshToken)

	require.NotNil(t, updated)
	assert.Equal(t, 0, updated.FailedLogins)
	assert.False(t, updated.IsLocked)
	assert.Nil(t, updated.LockoutEnd)
	require.NotNil(t, updated.LastLoginAt)
	assert.Equal(t, testClock, *updated.LastLoginAt)
	assert.Equal(t, "10.0.0.1", updated.LastLoginIP)

	require.NotNil(t, historyRow)
	assert.True(t, historyRow.Success)
	assert.Equal(t, "user123", historyRow.UserID)
}

func TestAuthService_Login_UnknownEmail(t *testing.T) {
	unit := NewMockUnitOfWork()
	svc := newTestAuthService(unit)

	result, err := svc.Login(context.Background(), "ghost@example.com", testPassword, "10.0.0.1", "test-agent")

	assert.Nil(t, result)
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestAuthService_Login_WrongPassword_IncrementsCounter(t *testing.T) {
	user := NewTestUser("user123", "user@example.com", testPassword)

	unit := NewMockUnitOfWork()
	unit.UserStore.GetByEmailWithRolesFunc = func(ctx context.Context, email string) (*models.User, error) {
		return user, nil
	}

	var updated *models.User
	unit.UserStore.UpdateFunc = func(ctx context.Context, u *models.User) error {
		updated = u
		return nil
	}

	var historyRow *models.UserLoginHistory
	unit.HistoryStore.CreateFunc = func(ctx context.Context, entry *models.UserLoginHistory) error {
		historyRow = entry
		return nil
	}

	svc := newTestAuthService(unit)

	result, err := svc.Login(context.Background(), "user@example.com", "wrong-password", "10.0.0.1", "test-agent")

	assert.Nil(t, result)
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)

	require.NotNil(t, updated)
	assert.Equal(t, 1, updated.FailedLogins)
	assert.False(t, updated.IsLocked)

	require.NotNil(t, historyRow)
	assert.False(t, historyRow.Success)
	assert.Equal(t, "invalid password", historyRow.FailureReason)
}

func TestAuthService_Login_FifthFailureLocksAccount(t *testing.T) {
	user := NewTestUser("user123", "user@example.com", testPassword)
	user.FailedLogins = models.MaxFailedLogins - 1

	unit := NewMockUnitOfWork()
	unit.UserStore.GetByEmailWithRolesFunc = func(ctx context.Context, email string) (*models.User, error) {
		return user, nil
	}

	var updated *models.User
	unit.UserStore.UpdateFunc = func(ctx context.Context, u *models.User) error {
		updated = u
		return nil
	}

	svc := newTestAuthService(unit)

	_, err := svc.Login(context.Background(), "user@example.com", "wrong-password", "10.0.0.1", "test-agent")
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)

	require.NotNil(t, updated)
	assert.Equal(t, models.MaxFailedLogins, updated.FailedLogins)
	assert.True(t, updated.IsLocked)
	require.NotNil(t, updated.LockoutEnd)
	assert.Equal(t, testClock.Add(models.LockoutDuration), *updated.LockoutEnd)
}

func TestAuthService_Login_CorrectPasswordWhileLocked(t *testing.T) {
	user := NewTestUser("user123", "user@example.com", testPassword)
	lockoutEnd := testClock.Add(10 * time.Minute)
	user.IsLocked = true
	user.LockoutEnd = &lockoutEnd
	user.FailedLogins = models.MaxFailedLogins

	unit := NewMockUnitOfWork()
	unit.UserStore.GetByEmailWithRolesFunc = func(ctx context.Context, email string) (*models.User, error) {
		return user, nil
	}

	var updateCalled bool
	unit.UserStore.UpdateFunc = func(ctx context.Context, u *models.User) error {
		updateCalled = true
		return nil
	}

	svc := newTestAuthService(unit)

	result, err := svc.Login(context.Background(), "user@example.com", testPassword, "10.0.0.1", "test-agent")

	assert.Nil(t, result)
	assert.ErrorIs(t, err, models.ErrAccountLocked)
	assert.False(t, updateCalled, "a locked rejection must not touch the counter")
	assert.Equal(t, models.MaxFailedLogins, user.FailedLogins)
}

func TestAuthService_Login_SucceedsAfterLockoutExpires(t *testing.T) {
	user := NewTestUser("user123", "user@example.com", testPassword)
	lockoutEnd := testClock.Add(-1 * time.Minute) // window elapsed
	user.IsLocked = true
	user.LockoutEnd = &lockoutEnd
	user.FailedLogins = models.MaxFailedLogins

	unit := NewMockUnitOfWork()
	unit.UserStore.GetByEmailWithRolesFunc = func(ctx context.Context, email string) (*models.User, error) {
		return user, nil
	}

	var updated *models.User
	unit.UserStore.UpdateFunc = func(ctx context.Context, u *models.User) error {
		updated = u
		return nil
	}

	svc := newTestAuthService(unit)

	result, err := svc.Login(context.Background(), "user@example.com", testPassword, "10.0.0.1", "test-agent")

	require.NoError(t, err)
	require.NotNil(t, result)

	require.NotNil(t, updated)
	assert.Equal(t, 0, updated.FailedLogins)
	assert.False(t, updated.IsLocked)
	assert.Nil(t, updated.LockoutEnd)
}

func TestAuthService_Login_TransactionFailureSurfaces(t *testing.T) {
	user := NewTestUser("user123", "user@example.com", testPassword)

	unit := NewMockUnitOfWork()
	unit.UserStore.GetByEmailWithRolesFunc = func(ctx context.Context, email string) (*models.User, error) {
		return user, nil
	}
	unit.HistoryStore.CreateFunc = func(ctx context.Context, entry *models.UserLoginHistory) error {
		return models.ErrTransient
	}

	svc := newTestAuthService(unit)

	result, err := svc.Login(context.Background(), "user@example.com", testPassword, "10.0.0.1", "test-agent")

	assert.Nil(t, result)
	assert.ErrorIs(t, err, models.ErrTransient)
}

// ============================================================================
// RefreshToken
// ============================================================================

func activeRefreshToken(userID, token string) *models.RefreshToken {
	return &models.RefreshToken{
		ID:        "rt1",
		UserID:    userID,
		Token:     token,
		CreatedAt: testClock.Add(-1 * time.Hour),
		ExpiresAt: testClock.Add(24 * time.Hour),
	}
}

func TestAuthService_RefreshToken_RotatesToken(t *testing.T) {
	user := NewTestUser("user123", "user@example.com", testPassword)
	existing := activeRefreshToken("user123", "old-token")

	unit := NewMockUnitOfWork()
	unit.TokenStore.GetByTokenFunc = func(ctx context.Context, token string) (*models.RefreshToken, error) {
		if token == "old-token" {
			return existing, nil
		}
		return nil, models.ErrNotFound
	}
	unit.UserStore.GetByIDWithRolesFunc = func(ctx context.Context, id string) (*models.User, error) {
		return user, nil
	}

	var revoked *models.RefreshToken
	unit.TokenStore.UpdateFunc = func(ctx context.Context, token *models.RefreshToken) error {
		revoked = token
		return nil
	}

	var created *models.RefreshToken
	unit.TokenStore.CreateFunc = func(ctx context.Context, token *models.RefreshToken) error {
		created = token
		return nil
	}

	svc := newTestAuthService(unit)

	result, err := svc.RefreshToken(context.Background(), "old-token", "10.0.0.2")

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.NotEqual(t, "old-token", result.RefreshToken)

	require.NotNil(t, revoked)
	require.NotNil(t, revoked.RevokedAt)
	assert.Equal(t, testClock, *revoked.RevokedAt)
	assert.Equal(t, "10.0.0.2", revoked.RevokedByIP)
	assert.Equal(t, result.RefreshToken, revoked.ReplacedByToken)

	require.NotNil(t, created)
	assert.Equal(t, result.RefreshToken, created.Token)
	assert.Equal(t, "user123", created.UserID)
}

func TestAuthService_RefreshToken_Unknown(t *testing.T) {
	unit := NewMockUnitOfWork()
	svc := newTestAuthService(unit)

	result, err := svc.RefreshToken(context.Background(), "no-such-token", "10.0.0.2")

	assert.Nil(t, result)
	assert.ErrorIs(t, err, models.ErrInvalidRefreshToken)
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestAuthService_RefreshToken_RevokedTokenRejected(t *testing.T) {
	existing := activeRefreshToken("user123", "old-token")
	revokedAt := testClock.Add(-5 * time.Minute)
	existing.RevokedAt = &revokedAt

	unit := NewMockUnitOfWork()
	unit.TokenStore.GetByTokenFunc = func(ctx context.Context, token string) (*models.RefreshToken, error) {
		return existing, nil
	}

	svc := newTestAuthService(unit)

	result, err := svc.RefreshToken(context.Background(), "old-token", "10.0.0.2")

	assert.Nil(t, result)
	assert.ErrorIs(t, err, models.ErrTokenRevoked)
}

func TestAuthService_RefreshToken_ExpiredTokenRejected(t *testing.T) {
	existing := activeRefreshToken("user123", "old-token")
	existing.ExpiresAt = testClock.Add(-1 * time.Second)

	unit := NewMockUnitOfWork()
	unit.TokenStore.GetByTokenFunc = func(ctx context.Context, token string) (*models.RefreshToken, error) {
		return existing, nil
	}

	svc := newTestAuthService(unit)

	result, err := svc.RefreshToken(context.Background(), "old-token", "10.0.0.2")

	assert.Nil(t, result)
	assert.ErrorIs(t, err, models.ErrTokenExpired)
}

func TestAuthService_RefreshToken_LockedUserRejected(t *testing.T) {
	user := NewTestUser("user123", "user@example.com", testPassword)
	user.IsLocked = true
	existing := activeRefreshToken("user123", "old-token")

	unit := NewMockUnitOfWork()
	unit.TokenStore.GetByTokenFunc = func(ctx context.Context, token string) (*models.RefreshToken, error) {
		return existing, nil
	}
	unit.UserStore.GetByIDWithRolesFunc = func(ctx context.Context, id string) (*models.User, error) {
		return user, nil
	}

	svc := newTestAuthService(unit)

	result, err := svc.RefreshToken(context.Background(), "old-token", "10.0.0.2")

	assert.Nil(t, result)
	assert.ErrorIs(t, err, models.ErrAccountLocked)
}

func TestAuthService_RefreshToken_SuspendedUserRejected(t *testing.T) {
	user := NewTestUser("user123", "user@example.com", testPassword)
	user.Status = models.UserStatusSuspended
	existing := activeRefreshToken("user123", "old-token")

	unit := NewMockUnitOfWork()
	unit.TokenStore.GetByTokenFunc = func(ctx context.Context, token string) (*models.RefreshToken, error) {
		return existing, nil
	}
	unit.UserStore.GetByIDWithRolesFunc = func(ctx context.Context, id string) (*models.User, error) {
		return user, nil
	}

	svc := newTestAuthService(unit)

	result, err := svc.RefreshToken(context.Background(), "old-token", "10.0.0.2")

	assert.Nil(t, result)
	assert.ErrorIs(t, err, models.ErrAccountNotActive)
}

// ============================================================================
// RevokeToken
// ============================================================================

func TestAuthService_RevokeToken_Success(t *testing.T) {
	existing := activeRefreshToken("user123", "live-token")

	unit := NewMockUnitOfWork()
	unit.TokenStore.GetByTokenFunc = func(ctx context.Context, token string) (*models.RefreshToken, error) {
		return existing, nil
	}

	var revoked *models.RefreshToken
	unit.TokenStore.UpdateFunc = func(ctx context.Context, token *models.RefreshToken) error {
		revoked = token
		return nil
	}

	svc := newTestAuthService(unit)

	err := svc.RevokeToken(context.Background(), "live-token", "10.0.0.3")

	require.NoError(t, err)
	require.NotNil(t, revoked)
	require.NotNil(t, revoked.RevokedAt)
	assert.Equal(t, "10.0.0.3", revoked.RevokedByIP)
	assert.Empty(t, revoked.ReplacedByToken)
}

func TestAuthService_RevokeToken_AlreadyRevoked(t *testing.T) {
	existing := activeRefreshToken("user123", "dead-token")
	revokedAt := testClock.Add(-1 * time.Hour)
	existing.RevokedAt = &revokedAt

	unit := NewMockUnitOfWork()
	unit.TokenStore.GetByTokenFunc = func(ctx context.Context, token string) (*models.RefreshToken, error) {
		return existing, nil
	}

	svc := newTestAuthService(unit)

	err := svc.RevokeToken(context.Background(), "dead-token", "10.0.0.3")

	assert.ErrorIs(t, err, models.ErrTokenAlreadyRevoked)
	assert.ErrorIs(t, err, models.ErrConflict)
}

func TestAuthService_RevokeToken_Unknown(t *testing.T) {
	unit := NewMockUnitOfWork()
	svc := newTestAuthService(unit)

	err := svc.RevokeToken(context.Background(), "no-such-token", "10.0.0.3")

	assert.ErrorIs(t, err, models.ErrInvalidRefreshToken)
}

// ============================================================================
// ChangePassword / ResetPassword
// ============================================================================

func TestAuthService_ChangePassword_WrongCurrentPassword(t *testing.T) {
	user := NewTestUser("user123", "user@example.com", testPassword)
	originalHash := user.PasswordHash

	unit := NewMockUnitOfWork()
	unit.UserStore.GetByIDFunc = func(ctx context.Context, id string) (*models.User, error) {
		return user, nil
	}

	var updateCalled bool
	unit.UserStore.UpdateFunc = func(ctx context.Context, u *models.User) error {
		updateCalled = true
		return nil
	}

	svc := newTestAuthService(unit)

	changed, err := svc.ChangePassword(context.Background(), "user123", "wrong-password", "NewPassword456")

	require.NoError(t, err)
	assert.False(t, changed)
	assert.False(t, updateCalled)
	assert.Equal(t, originalHash, user.PasswordHash)
}

func TestAuthService_ChangePassword_Success(t *testing.T) {
	user := NewTestUser("user123", "user@example.com", testPassword)
	originalHash := user.PasswordHash
	originalStamp := user.SecurityStamp

	active := []*models.RefreshToken{
		activeRefreshToken("user123", "token-a"),
		activeRefreshToken("user123", "token-b"),
	}

	unit := NewMockUnitOfWork()
	unit.UserStore.GetByIDFunc = func(ctx context.Context, id string) (*models.User, error) {
		return user, nil
	}
	unit.TokenStore.GetActiveByUserIDFunc = func(ctx context.Context, userID string, now time.Time) ([]*models.RefreshToken, error) {
		return active, nil
	}

	var revokedTokens []*models.RefreshToken
	unit.TokenStore.UpdateFunc = func(ctx context.Context, token *models.RefreshToken) error {
		revokedTokens = append(revokedTokens, token)
		return nil
	}

	svc := newTestAuthService(unit)

	changed, err := svc.ChangePassword(context.Background(), "user123", testPassword, "NewPassword456")

	require.NoError(t, err)
	assert.True(t, changed)

	assert.NotEqual(t, originalHash, user.PasswordHash)
	assert.NotEqual(t, originalStamp, user.SecurityStamp)
	require.NotNil(t, user.PasswordChangedAt)
	assert.Equal(t, testClock, *user.PasswordChangedAt)

	require.Len(t, revokedTokens, 2)
	for _, token := range revokedTokens {
		require.NotNil(t, token.RevokedAt)
		assert.Equal(t, "system:password-change", token.RevokedByIP)
	}
}

func TestAuthService_ChangePassword_WeakNewPassword(t *testing.T) {
	user := NewTestUser("user123", "user@example.com", testPassword)

	unit := NewMockUnitOfWork()
	unit.UserStore.GetByIDFunc = func(ctx context.Context, id string) (*models.User, error) {
		return user, nil
	}

	svc := newTestAuthService(unit)

	changed, err := svc.ChangePassword(context.Background(), "user123", testPassword, "weak")

	assert.False(t, changed)
	assert.ErrorIs(t, err, models.ErrBadRequest)
}

func TestAuthService_ResetPassword_RequiresToken(t *testing.T) {
	unit := NewMockUnitOfWork()
	svc := newTestAuthService(unit)

	err := svc.ResetPassword(context.Background(), "user@example.com", "", "NewPassword456")

	assert.ErrorIs(t, err, models.ErrBadRequest)
}

func TestAuthService_ResetPassword_Success(t *testing.T) {
	user := NewTestUser("user123", "user@example.com", testPassword)
	originalStamp := user.SecurityStamp

	unit := NewMockUnitOfWork()
	unit.UserStore.GetByEmailFunc = func(ctx context.Context, email string) (*models.User, error) {
		return user, nil
	}

	var revokedBy []string
	unit.TokenStore.GetActiveByUserIDFunc = func(ctx context.Context, userID string, now time.Time) ([]*models.RefreshToken, error) {
		return []*models.RefreshToken{activeRefreshToken("user123", "token-a")}, nil
	}
	unit.TokenStore.UpdateFunc = func(ctx context.Context, token *models.RefreshToken) error {
		revokedBy = append(revokedBy, token.RevokedByIP)
		return nil
	}

	svc := newTestAuthService(unit)

	err := svc.ResetPassword(context.Background(), "user@example.com", "reset-token", "NewPassword456")

	require.NoError(t, err)
	assert.NotEqual(t, originalStamp, user.SecurityStamp)
	assert.Equal(t, []string{"system:password-reset"}, revokedBy)
}

// ============================================================================
// Rollback semantics
// ============================================================================

func TestAuthService_Register_TransactionErrorDiscardsResult(t *testing.T) {
	unit := NewMockUnitOfWork()
	txErr := errors.New("boom")
	unit.RunInTransactionFunc = func(ctx context.Context, fn func(ctx context.Context) error) error {
		return txErr
	}

	svc := newTestAuthService(unit)

	result, err := svc.Register(context.Background(), "user@example.com", testPassword, "Someone", "10.0.0.1")

	assert.Nil(t, result)
	assert.ErrorIs(t, err, txErr)
}
