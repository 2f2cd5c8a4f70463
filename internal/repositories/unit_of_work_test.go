package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authcore/internal/models"
)

func newMockUnit(t *testing.T) (UnitOfWork, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewUnitOfWork(mock), mock
}

func TestUnitOfWork_RunInTransaction_Commits(t *testing.T) {
	unit, mock := newMockUnit(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO user_login_history`).
		WithArgs("h1", "user123", pgxmock.AnyArg(), "10.0.0.1", "agent", true, "").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := unit.RunInTransaction(context.Background(), func(ctx context.Context) error {
		assert.True(t, unit.HasActiveTransaction())
		return unit.LoginHistory().Create(ctx, &models.UserLoginHistory{
			ID:          "h1",
			UserID:      "user123",
			AttemptedAt: time.Now(),
			IPAddress:   "10.0.0.1",
			UserAgent:   "agent",
			Success:     true,
		})
	})

	require.NoError(t, err)
	assert.False(t, unit.HasActiveTransaction())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUnitOfWork_RunInTransaction_RollsBackOnError(t *testing.T) {
	unit, mock := newMockUnit(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	failure := errors.New("write failed")
	err := unit.RunInTransaction(context.Background(), func(ctx context.Context) error {
		return failure
	})

	assert.ErrorIs(t, err, failure)
	assert.False(t, unit.HasActiveTransaction())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUnitOfWork_RunInTransaction_RollsBackOnPanic(t *testing.T) {
	unit, mock := newMockUnit(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	assert.Panics(t, func() {
		_ = unit.RunInTransaction(context.Background(), func(ctx context.Context) error {
			panic("handler blew up")
		})
	})

	assert.False(t, unit.HasActiveTransaction())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUnitOfWork_RunInTransaction_RejectsNesting(t *testing.T) {
	unit, mock := newMockUnit(t)

	mock.ExpectBegin()
	mock.ExpectCommit()

	err := unit.RunInTransaction(context.Background(), func(ctx context.Context) error {
		nested := unit.RunInTransaction(ctx, func(ctx context.Context) error {
			t.Fatal("nested fn must not run")
			return nil
		})
		assert.ErrorIs(t, nested, ErrTransactionActive)
		return nil
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUnitOfWork_Close_RollsBackLeftoverTransaction(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	unit := NewUnitOfWork(mock).(*pgUnitOfWork)
	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)
	unit.tx = tx

	require.NoError(t, unit.Close(context.Background()))
	assert.False(t, unit.HasActiveTransaction())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUnitOfWork_Close_NoTransactionIsNoOp(t *testing.T) {
	unit, mock := newMockUnit(t)

	assert.NoError(t, unit.Close(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUnitOfWork_ReadsOutsideTransactionUsePool(t *testing.T) {
	unit, mock := newMockUnit(t)

	rows := pgxmock.NewRows([]string{
		"id", "user_id", "token", "created_at", "created_by_ip", "expires_at",
		"revoked_at", "revoked_by_ip", "replaced_by_token",
	}).AddRow("rt1", "user123", "opaque", time.Now(), "10.0.0.1", time.Now().Add(time.Hour),
		nil, "", "")

	mock.ExpectQuery(`SELECT (.+) FROM refresh_tokens WHERE token = \$1`).
		WithArgs("opaque").
		WillReturnRows(rows)

	token, err := unit.RefreshTokens().GetByToken(context.Background(), "opaque")

	require.NoError(t, err)
	assert.Equal(t, "rt1", token.ID)
	assert.Equal(t, "user123", token.UserID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUnitOfWork_CommitFailureSurfacesMappedError(t *testing.T) {
	unit, mock := newMockUnit(t)

	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(errors.New("commit failed"))
	mock.ExpectRollback()

	err := unit.RunInTransaction(context.Background(), func(ctx context.Context) error {
		return nil
	})

	assert.Error(t, err)
	assert.False(t, unit.HasActiveTransaction())
}

func TestFactory_NewReturnsIndependentUnits(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	factory := NewFactory(mock)

	first := factory.New()
	second := factory.New()

	assert.NotSame(t, first, second)
	assert.False(t, first.HasActiveTransaction())
	assert.False(t, second.HasActiveTransaction())
}

func TestRefreshTokenRepository_Update_NotFound(t *testing.T) {
	unit, mock := newMockUnit(t)

	mock.ExpectExec(`UPDATE refresh_tokens SET`).
		WithArgs(pgxmock.AnyArg(), "10.0.0.1", "", "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	now := time.Now()
	err := unit.RefreshTokens().Update(context.Background(), &models.RefreshToken{
		ID:          "missing",
		RevokedAt:   &now,
		RevokedByIP: "10.0.0.1",
	})

	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
