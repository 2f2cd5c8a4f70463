package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authcore/internal/models"
	"authcore/internal/services"
	pkghttp "authcore/pkg/http"
)

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	RegisterFunc       func(ctx context.Context, email, password, name, ip string) (*services.AuthResult, error)
	LoginFunc          func(ctx context.Context, email, password, ip, userAgent string) (*services.AuthResult, error)
	RefreshTokenFunc   func(ctx context.Context, refreshToken, ip string) (*services.AuthResult, error)
	RevokeTokenFunc    func(ctx context.Context, refreshToken, ip string) error
	ChangePasswordFunc func(ctx context.Context, userID, currentPassword, newPassword string) (bool, error)
	ResetPasswordFunc  func(ctx context.Context, email, resetToken, newPassword string) error
}

func (m *MockAuthService) Register(ctx context.Context, email, password, name, ip string) (*services.AuthResult, error) {
	if m.RegisterFunc != nil {
		return m.RegisterFunc(ctx, email, password, name, ip)
	}
	return nil, models.ErrInternalServer
}

func (m *MockAuthService) Login(ctx context.Context, email, password, ip, userAgent string) (*services.AuthResult, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, email, password, ip, userAgent)
	}
	return nil, models.ErrInternalServer
}

func (m *MockAuthService) RefreshToken(ctx context.Context, refreshToken, ip string) (*services.AuthResult, error) {
	if m.RefreshTokenFunc != nil {
		return m.RefreshTokenFunc(ctx, refreshToken, ip)
	}
	return nil, models.ErrInternalServer
}

func (m *MockAuthService) RevokeToken(ctx context.Context, refreshToken, ip string) error {
	if m.RevokeTokenFunc != nil {
		return m.RevokeTokenFunc(ctx, refreshToken, ip)
	}
	return nil
}

func (m *MockAuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) (bool, error) {
	if m.ChangePasswordFunc != nil {
		return m.ChangePasswordFunc(ctx, userID, currentPassword, newPassword)
	}
	return false, models.ErrInternalServer
}

func (m *MockAuthService) ResetPassword(ctx context.Context, email, resetToken, newPassword string) error {
	if m.ResetPasswordFunc != nil {
		return m.ResetPasswordFunc(ctx, email, resetToken, newPassword)
	}
	return nil
}

// MockUserService implements UserServiceInterface for testing
type MockUserService struct {
	GetUserFunc         func(ctx context.Context, id string) (*models.User, error)
	ListUsersFunc       func(ctx context.Context, limit, offset int) ([]*models.User, error)
	UpdateProfileFunc   func(ctx context.Context, id, name string) (*models.User, error)
	DeleteUserFunc      func(ctx context.Context, id string) error
	LockUserFunc        func(ctx context.Context, id string, lockoutEnd *time.Time) error
	UnlockUserFunc      func(ctx context.Context, id string) error
	ConfirmEmailFunc    func(ctx context.Context, id string) error
	AssignRoleFunc      func(ctx context.Context, userID, roleName string) error
	RemoveRoleFunc      func(ctx context.Context, userID, roleName string) error
	GetRolesFunc        func(ctx context.Context, userID string) ([]models.Role, error)
	GetLoginHistoryFunc func(ctx context.Context, userID string, limit int) ([]*models.UserLoginHistory, error)
}

func (m *MockUserService) GetUser(ctx context.Context, id string) (*models.User, error) {
	if m.GetUserFunc != nil {
		return m.GetUserFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserService) ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error) {
	if m.ListUsersFunc != nil {
		return m.ListUsersFunc(ctx, limit, offset)
	}
	return []*models.User{}, nil
}

func (m *MockUserService) UpdateProfile(ctx context.Context, id, name string) (*models.User, error) {
	if m.UpdateProfileFunc != nil {
		return m.UpdateProfileFunc(ctx, id, name)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserService) DeleteUser(ctx context.Context, id string) error {
	if m.DeleteUserFunc != nil {
		return m.DeleteUserFunc(ctx, id)
	}
	return nil
}

func (m *MockUserService) LockUser(ctx context.Context, id string, lockoutEnd *time.Time) error {
	if m.LockUserFunc != nil {
		return m.LockUserFunc(ctx, id, lockoutEnd)
	}
	return nil
}

func (m *MockUserService) UnlockUser(ctx context.Context, id string) error {
	if m.UnlockUserFunc != nil {
		return m.UnlockUserFunc(ctx, id)
	}
	return nil
}

func (m *MockUserService) ConfirmEmail(ctx context.Context, id string) error {
	if m.ConfirmEmailFunc != nil {
		return m.ConfirmEmailFunc(ctx, id)
	}
	return nil
}

func (m *MockUserService) AssignRole(ctx context.Context, userID, roleName string) error {
	if m.AssignRoleFunc != nil {
		return m.AssignRoleFunc(ctx, userID, roleName)
	}
	return nil
}

func (m *MockUserService) RemoveRole(ctx context.Context, userID, roleName string) error {
	if m.RemoveRoleFunc != nil {
		return m.RemoveRoleFunc(ctx, userID, roleName)
	}
	return nil
}

func (m *MockUserService) GetRoles(ctx context.Context, userID string) ([]models.Role, error) {
	if m.GetRolesFunc != nil {
		return m.GetRolesFunc(ctx, userID)
	}
	return []models.Role{}, nil
}

func (m *MockUserService) GetLoginHistory(ctx context.Context, userID string, limit int) ([]*models.UserLoginHistory, error) {
	if m.GetLoginHistoryFunc != nil {
		return m.GetLoginHistoryFunc(ctx, userID, limit)
	}
	return []*models.UserLoginHistory{}, nil
}

// NewTestRequest builds a request with a JSON body and a fixed client address.
func NewTestRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "192.0.2.1:52428"
	return req
}

// AssertJSONResponse decodes the recorded body into target after checking
// the status code.
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, wantStatus int, target any) {
	t.Helper()

	require.Equal(t, wantStatus, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
	require.NoError(t, json.NewDecoder(w.Body).Decode(target))
}

// AssertErrorResponse checks the status code and the machine-readable error
// code of a failed request.
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, wantStatus int, wantCode string) {
	t.Helper()

	require.Equal(t, wantStatus, w.Code)

	var resp pkghttp.ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, wantCode, resp.Error)
}
