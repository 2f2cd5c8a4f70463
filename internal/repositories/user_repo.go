package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"authcore/internal/database"
	"authcore/internal/models"
)

const userColumns = `id, email, name, password_hash, security_stamp, status, email_confirmed,
	is_locked, lockout_end, failed_logins, last_login_at, last_login_ip,
	password_changed_at, is_deleted, deleted_at, created_at, updated_at, version`

type UserRepository struct {
	uow *pgUnitOfWork
}

// rowScanner covers both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(scanner rowScanner) (*models.User, error) {
	var user models.User
	err := scanner.Scan(
		&user.ID, &user.Email, &user.Name, &user.PasswordHash, &user.SecurityStamp,
		&user.Status, &user.EmailConfirmed,
		&user.IsLocked, &user.LockoutEnd, &user.FailedLogins,
		&user.LastLoginAt, &user.LastLoginIP,
		&user.PasswordChangedAt, &user.IsDeleted, &user.DeletedAt,
		&user.CreatedAt, &user.UpdatedAt, &user.Version,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &user, nil
}

func scanUsers(rows pgx.Rows) ([]*models.User, error) {
	defer rows.Close()

	users := make([]*models.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return users, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 AND is_deleted = false`
	return scanUser(r.uow.querier().QueryRow(ctx, query, id))
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = $1 AND is_deleted = false`
	return scanUser(r.uow.querier().QueryRow(ctx, query, models.NormalizeEmail(email)))
}

func (r *UserRepository) GetByIDWithRoles(ctx context.Context, id string) (*models.User, error) {
	user, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := r.loadRoles(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (r *UserRepository) GetByEmailWithRoles(ctx context.Context, email string) (*models.User, error) {
	user, err := r.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if err := r.loadRoles(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (r *UserRepository) loadRoles(ctx context.Context, user *models.User) error {
	roles, err := r.uow.roles.ListByUser(ctx, user.ID)
	if err != nil {
		return err
	}
	user.Roles = roles
	return nil
}

func (r *UserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE LOWER(email) = $1 AND is_deleted = false)`

	var exists bool
	if err := r.uow.querier().QueryRow(ctx, query, models.NormalizeEmail(email)).Scan(&exists); err != nil {
		return false, database.MapPostgresError(err)
	}
	return exists, nil
}

func (r *UserRepository) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE is_deleted = false
		ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	rows, err := r.uow.querier().Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", database.MapPostgresError(err))
	}
	return scanUsers(rows)
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	user.Version = 1
	user.Email = models.NormalizeEmail(user.Email)

	query := `
		INSERT INTO users (id, email, name, password_hash, security_stamp, status, email_confirmed,
			is_locked, lockout_end, failed_logins, last_login_at, last_login_ip,
			password_changed_at, is_deleted, deleted_at, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`

	_, err := r.uow.querier().Exec(ctx, query,
		user.ID, user.Email, user.Name, user.PasswordHash, user.SecurityStamp,
		user.Status, user.EmailConfirmed,
		user.IsLocked, user.LockoutEnd, user.FailedLogins,
		user.LastLoginAt, user.LastLoginIP,
		user.PasswordChangedAt, user.IsDeleted, user.DeletedAt,
		user.CreatedAt, user.UpdatedAt, user.Version,
	)
	return database.MapPostgresError(err)
}

// Update writes every mutable field, guarded by the version column. A row
// changed underneath us surfaces as models.ErrConcurrency.
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE users SET name = $1, password_hash = $2, security_stamp = $3, status = $4,
			email_confirmed = $5, is_locked = $6, lockout_end = $7, failed_logins = $8,
			last_login_at = $9, last_login_ip = $10, password_changed_at = $11,
			updated_at = $12, version = version + 1
		WHERE id = $13 AND version = $14 AND is_deleted = false
	`

	tag, err := r.uow.querier().Exec(ctx, query,
		user.Name, user.PasswordHash, user.SecurityStamp, user.Status,
		user.EmailConfirmed, user.IsLocked, user.LockoutEnd, user.FailedLogins,
		user.LastLoginAt, user.LastLoginIP, user.PasswordChangedAt,
		user.UpdatedAt, user.ID, user.Version,
	)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		exists, err := r.idExists(ctx, user.ID)
		if err != nil {
			return err
		}
		if exists {
			return models.ErrConcurrency
		}
		return models.ErrNotFound
	}

	user.Version++
	return nil
}

// SoftDelete is the only delete path for users; rows are never physically
// removed.
func (r *UserRepository) SoftDelete(ctx context.Context, user *models.User, at time.Time) error {
	query := `
		UPDATE users SET is_deleted = true, deleted_at = $1, updated_at = $1, version = version + 1
		WHERE id = $2 AND is_deleted = false
	`

	tag, err := r.uow.querier().Exec(ctx, query, at, user.ID)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	user.IsDeleted = true
	user.DeletedAt = &at
	user.Version++
	return nil
}

func (r *UserRepository) idExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.uow.querier().
		QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1 AND is_deleted = false)`, id).
		Scan(&exists)
	if err != nil {
		return false, database.MapPostgresError(err)
	}
	return exists, nil
}
