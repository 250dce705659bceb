package integration

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/floretapp/floret/internal/database"
	"github.com/floretapp/floret/internal/models"
	"github.com/floretapp/floret/internal/repositories"
	"github.com/floretapp/floret/pkg/auth"
)

// TestDB manages PostgreSQL testcontainer and database operations
type TestDB struct {
	Container  testcontainers.Container
	ConnString string
	Pool       *pgxpool.Pool
	DB         *database.DB
}

// SetupTestDatabase creates a PostgreSQL testcontainer, runs migrations, returns TestDB
func SetupTestDatabase(ctx context.Context) (*TestDB, error) {
	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("floret"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
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

	if err := runMigrations(ctx, pool); err != nil {
		pool.Close()
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	return &TestDB{
		Container:  container,
		ConnString: connStr,
		Pool:       pool,
		DB:         database.NewFromPool(pool, logger),
	}, nil
}

// runMigrations executes all goose migrations
func runMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	migrationsDir, err := filepath.Abs("../../migrations")
	if err != nil {
		return fmt.Errorf("failed to get migrations path: %w", err)
	}

	// Suppress goose logs
	goose.SetLogger(log.New(nil, "", 0))

	// Goose needs a stdlib DB connection; use the stdlib adapter from pgx
	sqlDB := stdlib.OpenDB(*pool.Config().ConnConfig)
	defer sqlDB.Close()

	if err := goose.UpContext(ctx, sqlDB, migrationsDir); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	return nil
}

// Teardown stops the container and closes the connection pool
func (db *TestDB) Teardown(ctx context.Context) error {
	if db.Pool != nil {
		db.Pool.Close()
	}
	if db.Container != nil {
		return db.Container.Terminate(ctx)
	}
	return nil
}

// CleanupTables truncates all tables for test isolation
func (db *TestDB) CleanupTables(ctx context.Context) error {
	tables := []string{
		"secrets",
		"browser_sightings",
		"network_origins",
		"devices",
		"users",
	}

	for _, table := range tables {
		if _, err := db.Pool.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)); err != nil {
			return fmt.Errorf("failed to truncate table %s: %w", table, err)
		}
	}

	return nil
}

// InitializeRepositories creates all repository instances from database wrapper
func InitializeRepositories(db *database.DB) (
	*repositories.UserRepository,
	*repositories.DeviceRepository,
	*repositories.SecretRepository,
) {
	return repositories.NewUserRepository(db),
		repositories.NewDeviceRepository(db),
		repositories.NewSecretRepository(db)
}

// SeedUser inserts a test user with hashed password
func SeedUser(ctx context.Context, pool *pgxpool.Pool, email, password string, verified bool) (*models.User, error) {
	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	var verifiedAt *time.Time
	if verified {
		now := time.Now()
		verifiedAt = &now
	}

	query := `
		INSERT INTO users (email, password_hash, email_verified_at, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		RETURNING id, email, password_hash, first_name, last_name, email_verified_at, mfa_enabled, created_at, updated_at
	`

	var user models.User
	err = pool.QueryRow(ctx, query, email, hashedPassword, verifiedAt).Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.FirstName,
		&user.LastName,
		&user.EmailVerifiedAt,
		&user.MFAEnabled,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}

	return &user, nil
}

// SeedDevice inserts a device with a known token and fingerprint
func SeedDevice(ctx context.Context, pool *pgxpool.Pool, userID, token, fingerprint string) (*models.Device, error) {
	query := `
		INSERT INTO devices (user_id, device_token, device_fingerprint,
			os_family, device_class, platform, gpu_vendor,
			first_seen_at, last_seen_at, created_at, updated_at)
		VALUES ($1, $2, $3, 'macOS', 'desktop', 'MacIntel', 'ANGLE (Apple, Apple M1)', NOW(), NOW(), NOW(), NOW())
		RETURNING id, user_id, device_token, device_fingerprint, os_family, device_class,
			platform, access_count, trusted, blocked, first_seen_at, last_seen_at
	`

	var device models.Device
	err := pool.QueryRow(ctx, query, userID, token, fingerprint).Scan(
		&device.ID,
		&device.UserID,
		&device.DeviceToken,
		&device.DeviceFingerprint,
		&device.OSFamily,
		&device.DeviceClass,
		&device.Platform,
		&device.AccessCount,
		&device.Trusted,
		&device.Blocked,
		&device.FirstSeenAt,
		&device.LastSeenAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert device: %w", err)
	}

	return &device, nil
}

// SeedSecret creates a live secret for a user
func SeedSecret(ctx context.Context, pool *pgxpool.Pool, userID string, secretType models.SecretType) (string, error) {
	code := "test-secret-" + string(secretType) + "-" + userID

	query := `
		INSERT INTO secrets (user_id, code, secret_type, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, NOW() + INTERVAL '24 hours', NOW(), NOW())
		RETURNING code
	`

	var returnedCode string
	if err := pool.QueryRow(ctx, query, userID, code, secretType).Scan(&returnedCode); err != nil {
		return "", fmt.Errorf("failed to insert secret: %w", err)
	}

	return code, nil
}

// SeedExpiredSecret creates a secret that expired long enough ago to be purgeable
func SeedExpiredSecret(ctx context.Context, pool *pgxpool.Pool, userID string, secretType models.SecretType) (string, error) {
	code := "test-expired-secret-" + userID

	query := `
		INSERT INTO secrets (user_id, code, secret_type, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, NOW() - INTERVAL '31 days', NOW() - INTERVAL '32 days', NOW() - INTERVAL '32 days')
		RETURNING code
	`

	var returnedCode string
	if err := pool.QueryRow(ctx, query, userID, code, secretType).Scan(&returnedCode); err != nil {
		return "", fmt.Errorf("failed to insert expired secret: %w", err)
	}

	return code, nil
}
