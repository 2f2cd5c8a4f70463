package services

import (
	"context"
	"log/slog"
	"time"

	"authcore/internal/models"
	"authcore/internal/repositories"
	pkglogger "authcore/pkg/logger"
)

// UserService covers account management: lookups, profile updates, soft
// deletion, lock administration, email confirmation, and role assignment.
type UserService struct {
	uow    repositories.UnitOfWorkFactory
	logger *slog.Logger
	audit  *pkglogger.AuditLogger

	now func() time.Time
}

func NewUserService(uow repositories.UnitOfWorkFactory, logger *slog.Logger, audit *pkglogger.AuditLogger) *UserService {
	return &UserService{
		uow:    uow,
		logger: logger,
		audit:  audit,
		now:    time.Now,
	}
}

func (s *UserService) GetUser(ctx context.Context, id string) (*models.User, error) {
	unit := s.uow.New()
	defer unit.Close(ctx)

	return unit.Users().GetByID(ctx, id)
}

func (s *UserService) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	unit := s.uow.New()
	defer unit.Close(ctx)

	return unit.Users().GetByEmail(ctx, email)
}

func (s *UserService) ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	unit := s.uow.New()
	defer unit.Close(ctx)

	return unit.Users().List(ctx, limit, offset)
}

func (s *UserService) UpdateProfile(ctx context.Context, id, name string) (*models.User, error) {
	unit := s.uow.New()
	defer unit.Close(ctx)

	user, err := unit.Users().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	user.Name = name
	if err := unit.Users().Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// DeleteUser soft-deletes: the row stays, flagged and timestamped, and
// disappears from all default reads.
func (s *UserService) DeleteUser(ctx context.Context, id string) error {
	unit := s.uow.New()
	defer unit.Close(ctx)

	user, err := unit.Users().GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := unit.Users().SoftDelete(ctx, user, s.now().UTC()); err != nil {
		return err
	}

	s.audit.LogAccountAction("user_deleted", id)
	return nil
}

// LockUser applies an administrative lock until the given time; a nil
// lockoutEnd locks indefinitely.
func (s *UserService) LockUser(ctx context.Context, id string, lockoutEnd *time.Time) error {
	unit := s.uow.New()
	defer unit.Close(ctx)

	user, err := unit.Users().GetByID(ctx, id)
	if err != nil {
		return err
	}

	err = unit.RunInTransaction(ctx, func(ctx context.Context) error {
		user.IsLocked = true
		user.LockoutEnd = lockoutEnd
		return unit.Users().Update(ctx, user)
	})
	if err != nil {
		return err
	}

	s.audit.LogAccountAction("user_locked", id)
	return nil
}

// UnlockUser clears the lock and the failure counter together; the two are
// never mutated independently.
func (s *UserService) UnlockUser(ctx context.Context, id string) error {
	unit := s.uow.New()
	defer unit.Close(ctx)

	user, err := unit.Users().GetByID(ctx, id)
	if err != nil {
		return err
	}

	err = unit.RunInTransaction(ctx, func(ctx context.Context) error {
		user.IsLocked = false
		user.LockoutEnd = nil
		user.FailedLogins = 0
		return unit.Users().Update(ctx, user)
	})
	if err != nil {
		return err
	}

	s.audit.LogAccountAction("user_unlocked", id)
	return nil
}

func (s *UserService) ConfirmEmail(ctx context.Context, id string) error {
	unit := s.uow.New()
	defer unit.Close(ctx)

	user, err := unit.Users().GetByID(ctx, id)
	if err != nil {
		return err
	}
	if user.EmailConfirmed {
		return nil
	}

	user.EmailConfirmed = true
	return unit.Users().Update(ctx, user)
}

func (s *UserService) AssignRole(ctx context.Context, userID, roleName string) error {
	unit := s.uow.New()
	defer unit.Close(ctx)

	if _, err := unit.Users().GetByID(ctx, userID); err != nil {
		return err
	}
	role, err := unit.Roles().GetByName(ctx, roleName)
	if err != nil {
		return err
	}

	if err := unit.Roles().AssignToUser(ctx, userID, role.ID, s.now().UTC()); err != nil {
		return err
	}

	s.logger.Info("role assigned",
		slog.String("user_id", userID), slog.String("role", roleName))
	return nil
}

func (s *UserService) RemoveRole(ctx context.Context, userID, roleName string) error {
	unit := s.uow.New()
	defer unit.Close(ctx)

	role, err := unit.Roles().GetByName(ctx, roleName)
	if err != nil {
		return err
	}

	if err := unit.Roles().RemoveFromUser(ctx, userID, role.ID); err != nil {
		return err
	}

	s.logger.Info("role removed",
		slog.String("user_id", userID), slog.String("role", roleName))
	return nil
}

func (s *UserService) GetRoles(ctx context.Context, userID string) ([]models.Role, error) {
	unit := s.uow.New()
	defer unit.Close(ctx)

	if _, err := unit.Users().GetByID(ctx, userID); err != nil {
		return nil, err
	}
	return unit.Roles().ListByUser(ctx, userID)
}

// GetLoginHistory returns a user's most recent login attempts, newest first.
func (s *UserService) GetLoginHistory(ctx context.Context, userID string, limit int) ([]*models.UserLoginHistory, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	unit := s.uow.New()
	defer unit.Close(ctx)

	if _, err := unit.Users().GetByID(ctx, userID); err != nil {
		return nil, err
	}
	return unit.LoginHistory().ListByUser(ctx, userID, limit)
}
