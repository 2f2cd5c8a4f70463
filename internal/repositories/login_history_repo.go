package repositories

import (
	"context"
	"fmt"
	"time"

	"authcore/internal/database"
	"authcore/internal/models"
)

type LoginHistoryRepository struct {
	uow *pgUnitOfWork
}

func (r *LoginHistoryRepository) Create(ctx context.Context, entry *models.UserLoginHistory) error {
	query := `
		INSERT INTO user_login_history (id, user_id, attempted_at, ip_address, user_agent, success, failure_reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.uow.querier().Exec(ctx, query,
		entry.ID, entry.UserID, entry.AttemptedAt,
		entry.IPAddress, entry.UserAgent, entry.Success, entry.FailureReason,
	)
	return database.MapPostgresError(err)
}

func (r *LoginHistoryRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*models.UserLoginHistory, error) {
	query := `
		SELECT id, user_id, attempted_at, ip_address, user_agent, success, failure_reason
		FROM user_login_history
		WHERE user_id = $1
		ORDER BY attempted_at DESC
		LIMIT $2
	`

	rows, err := r.uow.querier().Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query login history: %w", database.MapPostgresError(err))
	}
	defer rows.Close()

	entries := make([]*models.UserLoginHistory, 0)
	for rows.Next() {
		var entry models.UserLoginHistory
		if err := rows.Scan(
			&entry.ID, &entry.UserID, &entry.AttemptedAt,
			&entry.IPAddress, &entry.UserAgent, &entry.Success, &entry.FailureReason,
		); err != nil {
			return nil, fmt.Errorf("failed to scan login history row: %w", err)
		}
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating login history: %w", err)
	}
	return entries, nil
}

func (r *LoginHistoryRepository) CountFailedSince(ctx context.Context, userID string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM user_login_history
		WHERE user_id = $1 AND success = false AND attempted_at >= $2
	`

	var count int
	if err := r.uow.querier().QueryRow(ctx, query, userID, since).Scan(&count); err != nil {
		return 0, database.MapPostgresError(err)
	}
	return count, nil
}

// DeleteBefore is the retention sweep for audit rows.
func (r *LoginHistoryRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.uow.querier().Exec(ctx,
		`DELETE FROM user_login_history WHERE attempted_at < $1`, cutoff)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return tag.RowsAffected(), nil
}
