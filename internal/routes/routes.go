package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"authcore/internal/auth"
	"authcore/internal/handlers"
	"authcore/internal/models"
	"authcore/internal/repositories"
)

// RegisterRoutes wires the HTTP surface. Credential endpoints are
// rate-limited by client IP.
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	userHandler *handlers.UserHandler,
	tokenManager *auth.TokenManager,
	uow repositories.UnitOfWorkFactory,
) {
	router.Route("/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(httprate.LimitByIP(20, 1*time.Minute))

			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.Refresh)
			r.Post("/revoke", authHandler.Revoke)
			r.Post("/reset-password", authHandler.ResetPassword)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokenManager, uow))
			r.Post("/change-password", authHandler.ChangePassword)
		})
	})

	router.Route("/users", func(r chi.Router) {
		r.Use(auth.RequireAuth(tokenManager, uow))
		r.Use(auth.RequireRole(models.RoleAdmin))

		r.Get("/", userHandler.List)
		r.Get("/{id}", userHandler.Get)
		r.Put("/{id}", userHandler.UpdateProfile)
		r.Delete("/{id}", userHandler.Delete)

		r.Post("/{id}/lock", userHandler.Lock)
		r.Post("/{id}/unlock", userHandler.Unlock)
		r.Post("/{id}/confirm-email", userHandler.ConfirmEmail)

		r.Get("/{id}/roles", userHandler.GetRoles)
		r.Post("/{id}/roles", userHandler.AssignRole)
		r.Delete("/{id}/roles/{role}", userHandler.RemoveRole)

		r.Get("/{id}/logins", userHandler.GetLoginHistory)
	})

	router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}
