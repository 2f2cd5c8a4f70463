package integration

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"authcore/internal/database"
	"authcore/internal/models"
	"authcore/internal/repositories"
	pkgauth "authcore/pkg/auth"
)

// TestDB manages the PostgreSQL testcontainer and the connection pool.
type TestDB struct {
	Container  testcontainers.Container
	ConnString string
	Pool       *pgxpool.Pool
	DB         *database.DB
	Factory    *repositories.Factory
}

// SetupTestDatabase starts a PostgreSQL container, connects, and applies the
// embedded migrations.
func SetupTestDatabase(ctx context.Context) (*TestDB, error) {
	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("authcore"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := database.NewFromPool(pool, slog.Default())
	if err := db.Migrate(); err != nil {
		pool.Close()
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &TestDB{
		Container:  container,
		ConnString: connStr,
		Pool:       pool,
		DB:         db,
		Factory:    repositories.NewFactory(pool),
	}, nil
}

// Teardown closes the pool and stops the container.
func (db *TestDB) Teardown(ctx context.Context) error {
	if db.Pool != nil {
		db.Pool.Close()
	}
	if db.Container != nil {
		return db.Container.Terminate(ctx)
	}
	return nil
}

// CleanupTables empties mutable tables between tests. Seeded roles and
// permissions stay.
func (db *TestDB) CleanupTables(ctx context.Context) error {
	tables := []string{
		"user_login_history",
		"refresh_tokens",
		"user_roles",
		"users",
	}

	for _, table := range tables {
		if _, err := db.Pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s", table)); err != nil {
			return fmt.Errorf("failed to clear table %s: %w", table, err)
		}
	}
	return nil
}

// SeedUser inserts an active user with the given password hashed, assigned
// the default role.
func SeedUser(ctx context.Context, pool *pgxpool.Pool, email, password string) (*models.User, error) {
	hash, err := pkgauth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		ID:            uuid.New().String(),
		Email:         models.NormalizeEmail(email),
		Name:          "Seeded User",
		PasswordHash:  hash,
		SecurityStamp: uuid.New().String(),
		Status:        models.UserStatusActive,
	}

	query := `
		INSERT INTO users (id, email, name, password_hash, security_stamp, status, email_confirmed)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE)
	`
	if _, err := pool.Exec(ctx, query,
		user.ID, user.Email, user.Name, user.PasswordHash, user.SecurityStamp, user.Status,
	); err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}

	assign := `
		INSERT INTO user_roles (user_id, role_id)
		SELECT $1, id FROM roles WHERE name = $2
	`
	if _, err := pool.Exec(ctx, assign, user.ID, models.RoleUser); err != nil {
		return nil, fmt.Errorf("failed to assign default role: %w", err)
	}

	return user, nil
}
