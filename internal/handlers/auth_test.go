package handlers_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"

	"authcore/internal/auth"
	"authcore/internal/handlers"
	"authcore/internal/models"
	"authcore/internal/services"
)

func testAuthResult() *services.AuthResult {
	return &services.AuthResult{
		User: &models.User{
			ID:        "user123",
			Email:     "user@example.com",
			Name:      "Test User",
			Status:    models.UserStatusActive,
			CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		AccessToken:  "access_token_123",
		RefreshToken: "refresh_token_123",
	}
}

func TestRegister_Success(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		RegisterFunc: func(ctx context.Context, email, password, name, ip string) (*services.AuthResult, error) {
			assert.Equal(t, "user@example.com", email)
			assert.Equal(t, "192.0.2.1", ip)
			return testAuthResult(), nil
		},
	}

	handler := handlers.NewAuthHandler(mockAuth)
	req := handlers.NewTestRequest(t, "POST", "/auth/register", handlers.RegisterRequest{
		Email:    "user@example.com",
		Password: "SecurePassword123",
		Name:     "Test User",
	})

	w := httptest.NewRecorder()
	handler.Register(w, req)

	var resp handlers.AuthResponse
	handlers.AssertJSONResponse(t, w, 201, &resp)
	assert.Equal(t, "access_token_123", resp.AccessToken)
	assert.Equal(t, "user123", resp.User.ID)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		RegisterFunc: func(ctx context.Context, email, password, name, ip string) (*services.AuthResult, error) {
			return nil, models.ErrEmailTaken
		},
	}

	handler := handlers.NewAuthHandler(mockAuth)
	req := handlers.NewTestRequest(t, "POST", "/auth/register", handlers.RegisterRequest{
		Email:    "taken@example.com",
		Password: "SecurePassword123",
	})

	w := httptest.NewRecorder()
	handler.Register(w, req)

	handlers.AssertErrorResponse(t, w, 409, "conflict")
}

func TestRegister_InvalidBody(t *testing.T) {
	handler := handlers.NewAuthHandler(&handlers.MockAuthService{})
	req := handlers.NewTestRequest(t, "POST", "/auth/register", handlers.RegisterRequest{
		Email: "not-an-email",
	})

	w := httptest.NewRecorder()
	handler.Register(w, req)

	handlers.AssertErrorResponse(t, w, 400, "bad_request")
}

func TestLogin_Success(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		LoginFunc: func(ctx context.Context, email, password, ip, userAgent string) (*services.AuthResult, error) {
			return testAuthResult(), nil
		},
	}

	handler := handlers.NewAuthHandler(mockAuth)
	req := handlers.NewTestRequest(t, "POST", "/auth/login", handlers.LoginRequest{
		Email:    "user@example.com",
		Password: "SecurePassword123",
	})

	w := httptest.NewRecorder()
	handler.Login(w, req)

	var resp handlers.AuthResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Equal(t, "refresh_token_123", resp.RefreshToken)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		LoginFunc: func(ctx context.Context, email, password, ip, userAgent string) (*services.AuthResult, error) {
			return nil, models.ErrInvalidCredentials
		},
	}

	handler := handlers.NewAuthHandler(mockAuth)
	req := handlers.NewTestRequest(t, "POST", "/auth/login", handlers.LoginRequest{
		Email:    "user@example.com",
		Password: "wrong",
	})

	w := httptest.NewRecorder()
	handler.Login(w, req)

	handlers.AssertErrorResponse(t, w, 401, "unauthorized")
}

func TestLogin_LockedAccountLooksLikeBadCredentials(t *testing.T) {
	// Locked and invalid-password responses must be indistinguishable to
	// the caller.
	mockAuth := &handlers.MockAuthService{
		LoginFunc: func(ctx context.Context, email, password, ip, userAgent string) (*services.AuthResult, error) {
			return nil, models.ErrAccountLocked
		},
	}

	handler := handlers.NewAuthHandler(mockAuth)
	req := handlers.NewTestRequest(t, "POST", "/auth/login", handlers.LoginRequest{
		Email:    "user@example.com",
		Password: "SecurePassword123",
	})

	w := httptest.NewRecorder()
	handler.Login(w, req)

	handlers.AssertErrorResponse(t, w, 401, "unauthorized")
}

func TestRefresh_Success(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		RefreshTokenFunc: func(ctx context.Context, refreshToken, ip string) (*services.AuthResult, error) {
			assert.Equal(t, "old-refresh", refreshToken)
			return testAuthResult(), nil
		},
	}

	handler := handlers.NewAuthHandler(mockAuth)
	req := handlers.NewTestRequest(t, "POST", "/auth/refresh", handlers.RefreshTokenRequest{
		RefreshToken: "old-refresh",
	})

	w := httptest.NewRecorder()
	handler.Refresh(w, req)

	var resp handlers.AuthResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Equal(t, "refresh_token_123", resp.RefreshToken)
}

func TestRefresh_RevokedToken(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		RefreshTokenFunc: func(ctx context.Context, refreshToken, ip string) (*services.AuthResult, error) {
			return nil, models.ErrTokenRevoked
		},
	}

	handler := handlers.NewAuthHandler(mockAuth)
	req := handlers.NewTestRequest(t, "POST", "/auth/refresh", handlers.RefreshTokenRequest{
		RefreshToken: "revoked-token",
	})

	w := httptest.NewRecorder()
	handler.Refresh(w, req)

	handlers.AssertErrorResponse(t, w, 401, "unauthorized")
}

func TestRevoke_Success(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		RevokeTokenFunc: func(ctx context.Context, refreshToken, ip string) error {
			return nil
		},
	}

	handler := handlers.NewAuthHandler(mockAuth)
	req := handlers.NewTestRequest(t, "POST", "/auth/revoke", handlers.RevokeTokenRequest{
		RefreshToken: "live-token",
	})

	w := httptest.NewRecorder()
	handler.Revoke(w, req)

	assert.Equal(t, 204, w.Code)
}

func TestRevoke_AlreadyRevoked(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		RevokeTokenFunc: func(ctx context.Context, refreshToken, ip string) error {
			return models.ErrTokenAlreadyRevoked
		},
	}

	handler := handlers.NewAuthHandler(mockAuth)
	req := handlers.NewTestRequest(t, "POST", "/auth/revoke", handlers.RevokeTokenRequest{
		RefreshToken: "dead-token",
	})

	w := httptest.NewRecorder()
	handler.Revoke(w, req)

	handlers.AssertErrorResponse(t, w, 409, "conflict")
}

func TestChangePassword_Success(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		ChangePasswordFunc: func(ctx context.Context, userID, currentPassword, newPassword string) (bool, error) {
			assert.Equal(t, "user123", userID)
			return true, nil
		},
	}

	handler := handlers.NewAuthHandler(mockAuth)
	req := handlers.NewTestRequest(t, "POST", "/auth/change-password", handlers.ChangePasswordRequest{
		CurrentPassword: "SecurePassword123",
		NewPassword:     "NewPassword456",
	})
	req = req.WithContext(auth.ContextWithClaims(req.Context(), &auth.AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user123"},
	}))

	w := httptest.NewRecorder()
	handler.ChangePassword(w, req)

	assert.Equal(t, 204, w.Code)
}

func TestChangePassword_WrongCurrentPassword(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		ChangePasswordFunc: func(ctx context.Context, userID, currentPassword, newPassword string) (bool, error) {
			return false, nil
		},
	}

	handler := handlers.NewAuthHandler(mockAuth)
	req := handlers.NewTestRequest(t, "POST", "/auth/change-password", handlers.ChangePasswordRequest{
		CurrentPassword: "wrong",
		NewPassword:     "NewPassword456",
	})
	req = req.WithContext(auth.ContextWithClaims(req.Context(), &auth.AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user123"},
	}))

	w := httptest.NewRecorder()
	handler.ChangePassword(w, req)

	handlers.AssertErrorResponse(t, w, 401, "unauthorized")
}

func TestChangePassword_NoClaims(t *testing.T) {
	handler := handlers.NewAuthHandler(&handlers.MockAuthService{})
	req := handlers.NewTestRequest(t, "POST", "/auth/change-password", handlers.ChangePasswordRequest{
		CurrentPassword: "SecurePassword123",
		NewPassword:     "NewPassword456",
	})

	w := httptest.NewRecorder()
	handler.ChangePassword(w, req)

	handlers.AssertErrorResponse(t, w, 401, "unauthorized")
}

func TestResetPassword_Success(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		ResetPasswordFunc: func(ctx context.Context, email, resetToken, newPassword string) error {
			return nil
		},
	}

	handler := handlers.NewAuthHandler(mockAuth)
	req := handlers.NewTestRequest(t, "POST", "/auth/reset-password", handlers.ResetPasswordRequest{
		Email:       "user@example.com",
		ResetToken:  "reset-token",
		NewPassword: "NewPassword456",
	})

	w := httptest.NewRecorder()
	handler.ResetPassword(w, req)

	assert.Equal(t, 204, w.Code)
}
