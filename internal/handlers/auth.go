package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"authcore/internal/auth"
	"authcore/internal/models"
	"authcore/internal/services"
	pkghttp "authcore/pkg/http"
)

// AuthServiceInterface is the slice of AuthService the handler needs.
type AuthServiceInterface interface {
	Register(ctx context.Context, email, password, name, ip string) (*services.AuthResult, error)
	Login(ctx context.Context, email, password, ip, userAgent string) (*services.AuthResult, error)
	RefreshToken(ctx context.Context, refreshToken, ip string) (*services.AuthResult, error)
	RevokeToken(ctx context.Context, refreshToken, ip string) error
	ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) (bool, error)
	ResetPassword(ctx context.Context, email, resetToken, newPassword string) error
}

type AuthHandler struct {
	service AuthServiceInterface
}

func NewAuthHandler(service AuthServiceInterface) *AuthHandler {
	return &AuthHandler{service: service}
}

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Name     string `json:"name" validate:"omitempty,min=1,max=200"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type RevokeTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required"`
}

type ResetPasswordRequest struct {
	Email       string `json:"email" validate:"required,email"`
	ResetToken  string `json:"reset_token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

// UserResponse is the user summary returned by auth operations.
type UserResponse struct {
	ID             string `json:"id"`
	Email          string `json:"email"`
	Name           string `json:"name"`
	Status         string `json:"status"`
	EmailConfirmed bool   `json:"email_confirmed"`
	CreatedAt      string `json:"created_at"`
}

type AuthResponse struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	User         *UserResponse `json:"user"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid request body")
		return
	}
	if err := validateRequest(&req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	result, err := h.service.Register(r.Context(), req.Email, req.Password, req.Name, pkghttp.ClientIP(r))
	if err != nil {
		pkghttp.WriteServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, authResultToResponse(result))
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid request body")
		return
	}
	if err := validateRequest(&req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password,
		pkghttp.ClientIP(r), r.UserAgent())
	if err != nil {
		pkghttp.WriteServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, authResultToResponse(result))
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid request body")
		return
	}
	if err := validateRequest(&req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	result, err := h.service.RefreshToken(r.Context(), req.RefreshToken, pkghttp.ClientIP(r))
	if err != nil {
		pkghttp.WriteServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, authResultToResponse(result))
}

func (h *AuthHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	var req RevokeTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid request body")
		return
	}
	if err := validateRequest(&req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.RevokeToken(r.Context(), req.RefreshToken, pkghttp.ClientIP(r)); err != nil {
		pkghttp.WriteServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "authentication required")
		return
	}

	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid request body")
		return
	}
	if err := validateRequest(&req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	changed, err := h.service.ChangePassword(r.Context(), claims.Subject, req.CurrentPassword, req.NewPassword)
	if err != nil {
		pkghttp.WriteServiceError(w, err)
		return
	}
	if !changed {
		pkghttp.WriteUnauthorized(w, "current password is incorrect")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid request body")
		return
	}
	if err := validateRequest(&req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.ResetPassword(r.Context(), req.Email, req.ResetToken, req.NewPassword); err != nil {
		pkghttp.WriteServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func authResultToResponse(result *services.AuthResult) *AuthResponse {
	return &AuthResponse{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		User:         userToResponse(result.User),
	}
}

func userToResponse(user *models.User) *UserResponse {
	return &UserResponse{
		ID:             user.ID,
		Email:          user.Email,
		Name:           user.Name,
		Status:         string(user.Status),
		EmailConfirmed: user.EmailConfirmed,
		CreatedAt:      user.CreatedAt.Format(time.RFC3339),
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}
