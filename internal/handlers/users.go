package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"authcore/internal/models"
	pkghttp "authcore/pkg/http"
)

// UserServiceInterface is the slice of UserService the handler needs.
type UserServiceInterface interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error)
	UpdateProfile(ctx context.Context, id, name string) (*models.User, error)
	DeleteUser(ctx context.Context, id string) error
	LockUser(ctx context.Context, id string, lockoutEnd *time.Time) error
	UnlockUser(ctx context.Context, id string) error
	ConfirmEmail(ctx context.Context, id string) error
	AssignRole(ctx context.Context, userID, roleName string) error
	RemoveRole(ctx context.Context, userID, roleName string) error
	GetRoles(ctx context.Context, userID string) ([]models.Role, error)
	GetLoginHistory(ctx context.Context, userID string, limit int) ([]*models.UserLoginHistory, error)
}

type UserHandler struct {
	service UserServiceInterface
}

func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{service: service}
}

type UpdateProfileRequest struct {
	Name string `json:"name" validate:"required,min=1,max=200"`
}

type LockUserRequest struct {
	LockoutEnd *time.Time `json:"lockout_end"`
}

type RoleRequest struct {
	Role string `json:"role" validate:"required"`
}

type LoginHistoryResponse struct {
	AttemptedAt   string `json:"attempted_at"`
	IPAddress     string `json:"ip_address"`
	UserAgent     string `json:"user_agent"`
	Success       bool   `json:"success"`
	FailureReason string `json:"failure_reason,omitempty"`
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		pkghttp.WriteServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, userToResponse(user))
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	users, err := h.service.ListUsers(r.Context(), limit, offset)
	if err != nil {
		pkghttp.WriteServiceError(w, err)
		return
	}

	resp := make([]*UserResponse, 0, len(users))
	for _, user := range users {
		resp = append(resp, userToResponse(user))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid request body")
		return
	}
	if err := validateRequest(&req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	user, err := h.service.UpdateProfile(r.Context(), chi.URLParam(r, "id"), req.Name)
	if err != nil {
		pkghttp.WriteServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, userToResponse(user))
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteUser(r.Context(), chi.URLParam(r, "id")); err != nil {
		pkghttp.WriteServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *UserHandler) Lock(w http.ResponseWriter, r *http.Request) {
	var req LockUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid request body")
		return
	}

	if err := h.service.LockUser(r.Context(), chi.URLParam(r, "id"), req.LockoutEnd); err != nil {
		pkghttp.WriteServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *UserHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	if err := h.service.UnlockUser(r.Context(), chi.URLParam(r, "id")); err != nil {
		pkghttp.WriteServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *UserHandler) ConfirmEmail(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ConfirmEmail(r.Context(), chi.URLParam(r, "id")); err != nil {
		pkghttp.WriteServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *UserHandler) AssignRole(w http.ResponseWriter, r *http.Request) {
	var req RoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid request body")
		return
	}
	if err := validateRequest(&req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.AssignRole(r.Context(), chi.URLParam(r, "id"), req.Role); err != nil {
		pkghttp.WriteServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *UserHandler) RemoveRole(w http.ResponseWriter, r *http.Request) {
	if err := h.service.RemoveRole(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "role")); err != nil {
		pkghttp.WriteServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *UserHandler) GetRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.GetRoles(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		pkghttp.WriteServiceError(w, err)
		return
	}

	names := make([]string, 0, len(roles))
	for _, role := range roles {
		names = append(names, role.Name)
	}
	writeJSON(w, http.StatusOK, map[string][]string{"roles": names})
}

func (h *UserHandler) GetLoginHistory(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	entries, err := h.service.GetLoginHistory(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		pkghttp.WriteServiceError(w, err)
		return
	}

	resp := make([]LoginHistoryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, LoginHistoryResponse{
			AttemptedAt:   e.AttemptedAt.Format(time.RFC3339),
			IPAddress:     e.IPAddress,
			UserAgent:     e.UserAgent,
			Success:       e.Success,
			FailureReason: e.FailureReason,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
