package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/floretapp/floret/internal/database"
	"github.com/floretapp/floret/internal/models"
	"github.com/jackc/pgx/v5"
)

const secretColumns = `id, user_id, code, secret_type, expires_at, used_at,
	created_at, updated_at, deleted_at`

// SecretRepository handles single-use secret data access
type SecretRepository struct {
	db *database.DB
}

// NewSecretRepository creates a new SecretRepository
func NewSecretRepository(db *database.DB) *SecretRepository {
	return &SecretRepository{db: db}
}

func scanSecretRow(row rowScanner) (*models.Secret, error) {
	var s models.Secret

	err := row.Scan(
		&s.ID, &s.UserID, &s.Code, &s.SecretType, &s.ExpiresAt, &s.UsedAt,
		&s.CreatedAt, &s.UpdatedAt, &s.DeletedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &s, nil
}

// Create inserts a new secret
func (r *SecretRepository) Create(ctx context.Context, userID, code string, secretType models.SecretType, expiresAt time.Time) (*models.Secret, error) {
	query := `
		INSERT INTO secrets (user_id, code, secret_type, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + secretColumns

	secret, err := scanSecretRow(r.db.Pool.QueryRow(ctx, query, userID, code, secretType, expiresAt))
	if err != nil {
		return nil, fmt.Errorf("failed to create secret: %w", err)
	}

	return secret, nil
}

// CreateForPasswordReset tombstones every prior unused password-reset secret
// for the account and creates the replacement, as one transaction. At most one
// live reset secret exists per account at any time.
func (r *SecretRepository) CreateForPasswordReset(ctx context.Context, userID, code string, expiresAt time.Time) (*models.Secret, error) {
	var secret *models.Secret

	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		invalidate := `
			UPDATE secrets
			SET deleted_at = NOW(), updated_at = NOW()
			WHERE user_id = $1 AND secret_type = $2
				AND used_at IS NULL AND deleted_at IS NULL
		`
		if _, err := tx.Exec(ctx, invalidate, userID, models.SecretTypePasswordReset); err != nil {
			return fmt.Errorf("failed to invalidate prior reset secrets: %w", database.MapPostgresError(err))
		}

		insert := `
			INSERT INTO secrets (user_id, code, secret_type, expires_at)
			VALUES ($1, $2, $3, $4)
			RETURNING ` + secretColumns

		created, err := scanSecretRow(tx.QueryRow(ctx, insert, userID, code, models.SecretTypePasswordReset, expiresAt))
		if err != nil {
			return fmt.Errorf("failed to create reset secret: %w", err)
		}

		secret = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	return secret, nil
}

// GetByCode retrieves a secret by code, including tombstoned rows. An
// invalidated reset secret must produce a precise error on redemption rather
// than a generic not-found.
func (r *SecretRepository) GetByCode(ctx context.Context, code string) (*models.Secret, error) {
	query := `SELECT ` + secretColumns + ` FROM secrets WHERE code = $1`

	return scanSecretRow(r.db.Pool.QueryRow(ctx, query, code))
}

// MarkUsed stamps used_at exactly once. Returns ErrSecretAlreadyUsed when a
// concurrent redemption won the race.
func (r *SecretRepository) MarkUsed(ctx context.Context, id string) (*models.Secret, error) {
	query := `
		UPDATE secrets
		SET used_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND used_at IS NULL
		RETURNING ` + secretColumns

	secret, err := scanSecretRow(r.db.Pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrSecretAlreadyUsed
		}
		return nil, fmt.Errorf("failed to mark secret used: %w", err)
	}

	return secret, nil
}

// CleanupExpired hard-deletes secrets expired longer than 30 days ago
func (r *SecretRepository) CleanupExpired(ctx context.Context) (int64, error) {
	query := `
		DELETE FROM secrets
		WHERE expires_at < NOW() - INTERVAL '30 days'
	`

	result, err := r.db.Pool.Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup expired secrets: %w", database.MapPostgresError(err))
	}

	return result.RowsAffected(), nil
}
