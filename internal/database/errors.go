package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sethvargo/go-retry"

	"authcore/internal/models"
)

// MapPostgresError translates low-level pgx errors into the error taxonomy.
// Unmapped errors pass through unchanged.
func MapPostgresError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == pgerrcode.UniqueViolation:
			return models.ErrConflict
		case pgErr.Code == pgerrcode.ForeignKeyViolation,
			pgErr.Code == pgerrcode.NotNullViolation,
			pgErr.Code == pgerrcode.CheckViolation:
			return models.ErrBadRequest
		case pgErr.Code == pgerrcode.SerializationFailure,
			pgErr.Code == pgerrcode.DeadlockDetected:
			return models.ErrConcurrency
		case pgerrcode.IsConnectionException(pgErr.Code):
			return fmt.Errorf("%w: %s", models.ErrTransient, pgErr.Message)
		}
	}

	return err
}

// WithRetry runs fn, retrying only failures mapped to models.ErrTransient.
// Application-level errors (conflict, unauthorized, not found) are terminal
// and returned immediately.
func WithRetry(ctx context.Context, attempts uint64, fn func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(attempts, retry.NewConstant(100*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if errors.Is(err, models.ErrTransient) {
			return retry.RetryableError(err)
		}
		return err
	})
}
