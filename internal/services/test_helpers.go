package services

import (
	"context"
	"time"

	"golang.org/x/crypto/bcrypt"

	"authcore/internal/models"
	"authcore/internal/repositories"
)

// MockUserStore implements repositories.UserStore for testing
type MockUserStore struct {
	GetByIDFunc             func(ctx context.Context, id string) (*models.User, error)
	GetByEmailFunc          func(ctx context.Context, email string) (*models.User, error)
	GetByIDWithRolesFunc    func(ctx context.Context, id string) (*models.User, error)
	GetByEmailWithRolesFunc func(ctx context.Context, email string) (*models.User, error)
	EmailExistsFunc         func(ctx context.Context, email string) (bool, error)
	ListFunc                func(ctx context.Context, limit, offset int) ([]*models.User, error)
	CreateFunc              func(ctx context.Context, user *models.User) error
	UpdateFunc              func(ctx context.Context, user *models.User) error
	SoftDeleteFunc          func(ctx context.Context, user *models.User, at time.Time) error
}

func (m *MockUserStore) GetByID(ctx context.Context, id string) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserStore) GetByIDWithRoles(ctx context.Context, id string) (*models.User, error) {
	if m.GetByIDWithRolesFunc != nil {
		return m.GetByIDWithRolesFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserStore) GetByEmailWithRoles(ctx context.Context, email string) (*models.User, error) {
	if m.GetByEmailWithRolesFunc != nil {
		return m.GetByEmailWithRolesFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserStore) EmailExists(ctx context.Context, email string) (bool, error) {
	if m.EmailExistsFunc != nil {
		return m.EmailExistsFunc(ctx, email)
	}
	return false, nil
}

func (m *MockUserStore) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, limit, offset)
	}
	return []*models.User{}, nil
}

func (m *MockUserStore) Create(ctx context.Context, user *models.User) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	return nil
}

func (m *MockUserStore) Update(ctx context.Context, user *models.User) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, user)
	}
	return nil
}

func (m *MockUserStore) SoftDelete(ctx context.Context, user *models.User, at time.Time) error {
	if m.SoftDeleteFunc != nil {
		return m.SoftDeleteFunc(ctx, user, at)
	}
	return nil
}

// MockRefreshTokenStore implements repositories.RefreshTokenStore for testing
type MockRefreshTokenStore struct {
	GetByTokenFunc          func(ctx context.Context, token string) (*models.RefreshToken, error)
	GetActiveByUserIDFunc   func(ctx context.Context, userID string, now time.Time) ([]*models.RefreshToken, error)
	CreateFunc              func(ctx context.Context, token *models.RefreshToken) error
	UpdateFunc              func(ctx context.Context, token *models.RefreshToken) error
	DeleteExpiredBeforeFunc func(ctx context.Context, cutoff time.Time) (int64, error)
}

func (m *MockRefreshTokenStore) GetByToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	if m.GetByTokenFunc != nil {
		return m.GetByTokenFunc(ctx, token)
	}
	return nil, models.ErrNotFound
}

func (m *MockRefreshTokenStore) GetActiveByUserID(ctx context.Context, userID string, now time.Time) ([]*models.RefreshToken, error) {
	if m.GetActiveByUserIDFunc != nil {
		return m.GetActiveByUserIDFunc(ctx, userID, now)
	}
	return []*models.RefreshToken{}, nil
}

func (m *MockRefreshTokenStore) Create(ctx context.Context, token *models.RefreshToken) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, token)
	}
	return nil
}

func (m *MockRefreshTokenStore) Update(ctx context.Context, token *models.RefreshToken) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, token)
	}
	return nil
}

func (m *MockRefreshTokenStore) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if m.DeleteExpiredBeforeFunc != nil {
		return m.DeleteExpiredBeforeFunc(ctx, cutoff)
	}
	return 0, nil
}

// MockLoginHistoryStore implements repositories.LoginHistoryStore for testing
type MockLoginHistoryStore struct {
	CreateFunc           func(ctx context.Context, entry *models.UserLoginHistory) error
	ListByUserFunc       func(ctx context.Context, userID string, limit int) ([]*models.UserLoginHistory, error)
	CountFailedSinceFunc func(ctx context.Context, userID string, since time.Time) (int, error)
	DeleteBeforeFunc     func(ctx context.Context, cutoff time.Time) (int64, error)
}

func (m *MockLoginHistoryStore) Create(ctx context.Context, entry *models.UserLoginHistory) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, entry)
	}
	return nil
}

func (m *MockLoginHistoryStore) ListByUser(ctx context.Context, userID string, limit int) ([]*models.UserLoginHistory, error) {
	if m.ListByUserFunc != nil {
		return m.ListByUserFunc(ctx, userID, limit)
	}
	return []*models.UserLoginHistory{}, nil
}

func (m *MockLoginHistoryStore) CountFailedSince(ctx context.Context, userID string, since time.Time) (int, error) {
	if m.CountFailedSinceFunc != nil {
		return m.CountFailedSinceFunc(ctx, userID, since)
	}
	return 0, nil
}

func (m *MockLoginHistoryStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if m.DeleteBeforeFunc != nil {
		return m.DeleteBeforeFunc(ctx, cutoff)
	}
	return 0, nil
}

// MockRoleStore implements repositories.RoleStore for testing
type MockRoleStore struct {
	GetByNameFunc      func(ctx context.Context, name string) (*models.Role, error)
	ListByUserFunc     func(ctx context.Context, userID string) ([]models.Role, error)
	AssignToUserFunc   func(ctx context.Context, userID, roleID string, at time.Time) error
	RemoveFromUserFunc func(ctx context.Context, userID, roleID string) error
}

func (m *MockRoleStore) GetByName(ctx context.Context, name string) (*models.Role, error) {
	if m.GetByNameFunc != nil {
		return m.GetByNameFunc(ctx, name)
	}
	return &models.Role{ID: "role_user", Name: models.RoleUser}, nil
}

func (m *MockRoleStore) ListByUser(ctx context.Context, userID string) ([]models.Role, error) {
	if m.ListByUserFunc != nil {
		return m.ListByUserFunc(ctx, userID)
	}
	return []models.Role{}, nil
}

func (m *MockRoleStore) AssignToUser(ctx context.Context, userID, roleID string, at time.Time) error {
	if m.AssignToUserFunc != nil {
		return m.AssignToUserFunc(ctx, userID, roleID, at)
	}
	return nil
}

func (m *MockRoleStore) RemoveFromUser(ctx context.Context, userID, roleID string) error {
	if m.RemoveFromUserFunc != nil {
		return m.RemoveFromUserFunc(ctx, userID, roleID)
	}
	return nil
}

// MockUnitOfWork implements repositories.UnitOfWork for testing. By default
// RunInTransaction just executes fn; set RunInTransactionFunc to simulate
// transaction failures.
type MockUnitOfWork struct {
	UserStore    *MockUserStore
	TokenStore   *MockRefreshTokenStore
	HistoryStore *MockLoginHistoryStore
	RoleStore    *MockRoleStore

	RunInTransactionFunc func(ctx context.Context, fn func(ctx context.Context) error) error
	CloseCalls           int
}

func NewMockUnitOfWork() *MockUnitOfWork {
	return &MockUnitOfWork{
		UserStore:    &MockUserStore{},
		TokenStore:   &MockRefreshTokenStore{},
		HistoryStore: &MockLoginHistoryStore{},
		RoleStore:    &MockRoleStore{},
	}
}

func (m *MockUnitOfWork) Users() repositories.UserStore { return m.UserStore }
func (m *MockUnitOfWork) RefreshTokens() repositories.RefreshTokenStore { return m.TokenStore }
func (m *MockUnitOfWork) LoginHistory() repositories.LoginHistoryStore { return m.HistoryStore }
func (m *MockUnitOfWork) Roles() repositories.RoleStore { return m.RoleStore }

func (m *MockUnitOfWork) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.RunInTransactionFunc != nil {
		return m.RunInTransactionFunc(ctx, fn)
	}
	return fn(ctx)
}

func (m *MockUnitOfWork) HasActiveTransaction() bool { return false }

func (m *MockUnitOfWork) Close(ctx context.Context) error {
	m.CloseCalls++
	return nil
}

// MockUnitOfWorkFactory hands the same unit back on every New, so tests can
// wire expectations up front and inspect the stores afterwards.
type MockUnitOfWorkFactory struct {
	Unit *MockUnitOfWork
}

func (m *MockUnitOfWorkFactory) New() repositories.UnitOfWork { return m.Unit }

// hashForTest uses the minimum bcrypt cost so test fixtures stay fast.
// Verification is cost-agnostic, so services treat these like real hashes.
func hashForTest(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	return string(b), err
}

// NewTestUser builds an active, unlocked user with the given password hashed.
func NewTestUser(id, email, password string) *models.User {
	hash, err := hashForTest(password)
	if err != nil {
		panic(err)
	}
	return &models.User{
		ID:            id,
		Email:         email,
		Name:          "Test User",
		PasswordHash:  hash,
		SecurityStamp: "stamp-original",
		Status:        models.UserStatusActive,
		EmailConfirmed: true,
		CreatedAt:     time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt:     time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Version:       1,
		Roles:         []models.Role{{ID: "role_user", Name: models.RoleUser}},
	}
}
