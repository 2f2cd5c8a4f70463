package repositories

import (
	"context"
	"fmt"
	"time"

	"authcore/internal/database"
	"authcore/internal/models"
)

type RoleRepository struct {
	uow *pgUnitOfWork
}

func (r *RoleRepository) GetByName(ctx context.Context, name string) (*models.Role, error) {
	query := `SELECT id, name, description FROM roles WHERE name = $1`

	var role models.Role
	err := r.uow.querier().QueryRow(ctx, query, name).
		Scan(&role.ID, &role.Name, &role.Description)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &role, nil
}

func (r *RoleRepository) ListByUser(ctx context.Context, userID string) ([]models.Role, error) {
	query := `
		SELECT r.id, r.name, r.description
		FROM roles r
		JOIN user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = $1
		ORDER BY r.name
	`

	rows, err := r.uow.querier().Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query user roles: %w", database.MapPostgresError(err))
	}
	defer rows.Close()

	roles := make([]models.Role, 0)
	for rows.Next() {
		var role models.Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Description); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating roles: %w", err)
	}
	return roles, nil
}

// AssignToUser links a role to a user. Assigning a role the user already
// holds surfaces as models.ErrConflict via the join table's primary key.
func (r *RoleRepository) AssignToUser(ctx context.Context, userID, roleID string, at time.Time) error {
	query := `INSERT INTO user_roles (user_id, role_id, assigned_at) VALUES ($1, $2, $3)`

	_, err := r.uow.querier().Exec(ctx, query, userID, roleID, at)
	return database.MapPostgresError(err)
}

func (r *RoleRepository) RemoveFromUser(ctx context.Context, userID, roleID string) error {
	query := `DELETE FROM user_roles WHERE user_id = $1 AND role_id = $2`

	tag, err := r.uow.querier().Exec(ctx, query, userID, roleID)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
