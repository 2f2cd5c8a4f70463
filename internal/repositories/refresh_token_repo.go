package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"authcore/internal/database"
	"authcore/internal/models"
)

const refreshTokenColumns = `id, user_id, token, created_at, created_by_ip, expires_at,
	revoked_at, revoked_by_ip, replaced_by_token`

type RefreshTokenRepository struct {
	uow *pgUnitOfWork
}

func scanRefreshToken(scanner rowScanner) (*models.RefreshToken, error) {
	var token models.RefreshToken
	err := scanner.Scan(
		&token.ID, &token.UserID, &token.Token,
		&token.CreatedAt, &token.CreatedByIP, &token.ExpiresAt,
		&token.RevokedAt, &token.RevokedByIP, &token.ReplacedByToken,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &token, nil
}

func (r *RefreshTokenRepository) GetByToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	query := `SELECT ` + refreshTokenColumns + ` FROM refresh_tokens WHERE token = $1`
	return scanRefreshToken(r.uow.querier().QueryRow(ctx, query, token))
}

func (r *RefreshTokenRepository) GetActiveByUserID(ctx context.Context, userID string, now time.Time) ([]*models.RefreshToken, error) {
	query := `SELECT ` + refreshTokenColumns + ` FROM refresh_tokens
		WHERE user_id = $1 AND revoked_at IS NULL AND expires_at > $2
		ORDER BY created_at DESC`

	rows, err := r.uow.querier().Query(ctx, query, userID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query refresh tokens: %w", database.MapPostgresError(err))
	}
	return scanRefreshTokens(rows)
}

func scanRefreshTokens(rows pgx.Rows) ([]*models.RefreshToken, error) {
	defer rows.Close()

	tokens := make([]*models.RefreshToken, 0)
	for rows.Next() {
		token, err := scanRefreshToken(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan refresh token: %w", err)
		}
		tokens = append(tokens, token)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating refresh tokens: %w", err)
	}
	return tokens, nil
}

// Create inserts a new token row. The unique constraint on the token string
// turns a random collision into models.ErrConflict rather than a silent
// overwrite.
func (r *RefreshTokenRepository) Create(ctx context.Context, token *models.RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (id, user_id, token, created_at, created_by_ip, expires_at,
			revoked_at, revoked_by_ip, replaced_by_token)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.uow.querier().Exec(ctx, query,
		token.ID, token.UserID, token.Token,
		token.CreatedAt, token.CreatedByIP, token.ExpiresAt,
		token.RevokedAt, token.RevokedByIP, token.ReplacedByToken,
	)
	return database.MapPostgresError(err)
}

// Update writes the revocation fields; everything else on a token is
// immutable after issuance.
func (r *RefreshTokenRepository) Update(ctx context.Context, token *models.RefreshToken) error {
	query := `
		UPDATE refresh_tokens SET revoked_at = $1, revoked_by_ip = $2, replaced_by_token = $3
		WHERE id = $4
	`

	tag, err := r.uow.querier().Exec(ctx, query,
		token.RevokedAt, token.RevokedByIP, token.ReplacedByToken, token.ID,
	)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// DeleteExpiredBefore is the retention sweep: tokens whose expiry predates
// the cutoff are physically removed.
func (r *RefreshTokenRepository) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.uow.querier().Exec(ctx,
		`DELETE FROM refresh_tokens WHERE expires_at < $1`, cutoff)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return tag.RowsAffected(), nil
}
