package repositories

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"authcore/internal/database"
)

// ErrTransactionActive signals a nested RunInTransaction call. This is a
// usage bug in the caller, not a condition to retry.
var ErrTransactionActive = errors.New("a transaction is already in progress")

const beginRetries = 3

type pgUnitOfWork struct {
	db database.TxBeginner
	tx pgx.Tx

	users   *UserRepository
	tokens  *RefreshTokenRepository
	history *LoginHistoryRepository
	roles   *RoleRepository
}

// NewUnitOfWork builds a unit of work with all repositories constructed up
// front and bound to the same connection scope.
func NewUnitOfWork(db database.TxBeginner) UnitOfWork {
	u := &pgUnitOfWork{db: db}
	u.users = &UserRepository{uow: u}
	u.tokens = &RefreshTokenRepository{uow: u}
	u.history = &LoginHistoryRepository{uow: u}
	u.roles = &RoleRepository{uow: u}
	return u
}

// querier returns the active transaction if one is open, the pool otherwise.
func (u *pgUnitOfWork) querier() database.Querier {
	if u.tx != nil {
		return u.tx
	}
	return u.db
}

func (u *pgUnitOfWork) Users() UserStore { return u.users }
func (u *pgUnitOfWork) RefreshTokens() RefreshTokenStore { return u.tokens }
func (u *pgUnitOfWork) LoginHistory() LoginHistoryStore { return u.history }
func (u *pgUnitOfWork) Roles() RoleStore { return u.roles }

func (u *pgUnitOfWork) HasActiveTransaction() bool {
	return u.tx != nil
}

func (u *pgUnitOfWork) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if u.tx != nil {
		return ErrTransactionActive
	}

	var tx pgx.Tx
	if beginErr := database.WithRetry(ctx, beginRetries, func(ctx context.Context) error {
		t, err := u.db.Begin(ctx)
		if err != nil {
			return database.MapPostgresError(err)
		}
		tx = t
		return nil
	}); beginErr != nil {
		return beginErr
	}

	u.tx = tx
	defer func() {
		u.tx = nil
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if commitErr := tx.Commit(ctx); commitErr != nil {
			_ = tx.Rollback(ctx)
			err = database.MapPostgresError(commitErr)
		}
	}()

	err = fn(ctx)
	return err
}

func (u *pgUnitOfWork) Close(ctx context.Context) error {
	if u.tx == nil {
		return nil
	}
	tx := u.tx
	u.tx = nil
	return tx.Rollback(ctx)
}

// Factory creates request-scoped units of work against a shared pool.
type Factory struct {
	db database.TxBeginner
}

func NewFactory(db database.TxBeginner) *Factory {
	return &Factory{db: db}
}

func (f *Factory) New() UnitOfWork {
	return NewUnitOfWork(f.db)
}
