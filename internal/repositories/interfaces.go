package repositories

import (
	"context"
	"time"

	"authcore/internal/models"
)

// UserStore is the persistence surface for users. Soft-deleted users are
// excluded from every read.
type UserStore interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByIDWithRoles(ctx context.Context, id string) (*models.User, error)
	GetByEmailWithRoles(ctx context.Context, email string) (*models.User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	List(ctx context.Context, limit, offset int) ([]*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	SoftDelete(ctx context.Context, user *models.User, at time.Time) error
}

type RefreshTokenStore interface {
	GetByToken(ctx context.Context, token string) (*models.RefreshToken, error)
	GetActiveByUserID(ctx context.Context, userID string, now time.Time) ([]*models.RefreshToken, error)
	Create(ctx context.Context, token *models.RefreshToken) error
	Update(ctx context.Context, token *models.RefreshToken) error
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type LoginHistoryStore interface {
	Create(ctx context.Context, entry *models.UserLoginHistory) error
	ListByUser(ctx context.Context, userID string, limit int) ([]*models.UserLoginHistory, error)
	CountFailedSince(ctx context.Context, userID string, since time.Time) (int, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type RoleStore interface {
	GetByName(ctx context.Context, name string) (*models.Role, error)
	ListByUser(ctx context.Context, userID string) ([]models.Role, error)
	AssignToUser(ctx context.Context, userID, roleID string, at time.Time) error
	RemoveFromUser(ctx context.Context, userID, roleID string) error
}

// UnitOfWork bundles the stores behind one logical connection scope.
// Writes made inside RunInTransaction commit or roll back together;
// reads outside a transaction run directly against the pool.
type UnitOfWork interface {
	Users() UserStore
	RefreshTokens() RefreshTokenStore
	LoginHistory() LoginHistoryStore
	Roles() RoleStore

	// RunInTransaction begins a transaction, runs fn, and commits on
	// success. Any error or panic from fn rolls everything back. Calling
	// it while a transaction is already active is a programming error and
	// returns ErrTransactionActive without retrying.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
	HasActiveTransaction() bool

	// Close releases any transaction still open, rolling it back. Safe to
	// defer unconditionally.
	Close(ctx context.Context) error
}

// UnitOfWorkFactory builds a fresh UnitOfWork per logical operation.
// Units of work are single-use and not safe for concurrent use.
type UnitOfWorkFactory interface {
	New() UnitOfWork
}
