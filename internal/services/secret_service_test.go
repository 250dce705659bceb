package services

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/floretapp/floret/internal/models"
	pkglogger "github.com/floretapp/floret/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSecretService(repo *MockSecretRepository) *SecretService {
	logger := slog.Default()
	return NewSecretService(repo, logger, pkglogger.NewAuditLogger(logger), 24*time.Hour)
}

func newLiveSecret(id, userID string, purpose models.SecretType) *models.Secret {
	now := time.Now()
	return &models.Secret{
		ID:         id,
		UserID:     userID,
		Code:       "code-" + id,
		SecretType: purpose,
		ExpiresAt:  now.Add(1 * time.Hour),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestSecretService_Issue_Success(t *testing.T) {
	var gotCode string
	var gotExpiry time.Time
	repo := &MockSecretRepository{
		CreateFunc: func(ctx context.Context, userID, code string, secretType models.SecretType, expiresAt time.Time) (*models.Secret, error) {
			gotCode = code
			gotExpiry = expiresAt
			return &models.Secret{ID: "secret123", UserID: userID, Code: code, SecretType: secretType, ExpiresAt: expiresAt}, nil
		},
	}

	secret, err := newTestSecretService(repo).Issue(context.Background(), "user123", models.SecretTypeTwoFactor)

	require.NoError(t, err)
	assert.Equal(t, models.SecretTypeTwoFactor, secret.SecretType)
	assert.NotEmpty(t, gotCode)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), gotExpiry, time.Minute)
}

func TestSecretService_Issue_UnknownPurpose(t *testing.T) {
	repo := &MockSecretRepository{}

	_, err := newTestSecretService(repo).Issue(context.Background(), "user123", models.SecretType("session"))

	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrBadRequest)
}

func TestSecretService_Issue_PasswordResetInvalidatesPrior(t *testing.T) {
	// Password reset issuance goes through the invalidate-then-create path so
	// only the newest reset link works.
	resetPath := false
	repo := &MockSecretRepository{
		CreateForPasswordResetFunc: func(ctx context.Context, userID, code string, expiresAt time.Time) (*models.Secret, error) {
			resetPath = true
			return &models.Secret{ID: "secret123", UserID: userID, Code: code, SecretType: models.SecretTypePasswordReset, ExpiresAt: expiresAt}, nil
		},
		CreateFunc: func(ctx context.Context, userID, code string, secretType models.SecretType, expiresAt time.Time) (*models.Secret, error) {
			t.Fatal("password reset must not use the plain create path")
			return nil, nil
		},
	}

	_, err := newTestSecretService(repo).Issue(context.Background(), "user123", models.SecretTypePasswordReset)

	require.NoError(t, err)
	assert.True(t, resetPath)
}

func TestSecretService_Redeem_Success(t *testing.T) {
	secret := newLiveSecret("secret123", "user123", models.SecretTypeEmailVerification)

	repo := &MockSecretRepository{
		GetByCodeFunc: func(ctx context.Context, code string) (*models.Secret, error) {
			return secret, nil
		},
		MarkUsedFunc: func(ctx context.Context, id string) (*models.Secret, error) {
			assert.Equal(t, secret.ID, id)
			now := time.Now()
			used := *secret
			used.UsedAt = &now
			return &used, nil
		},
	}

	redeemed, err := newTestSecretService(repo).Redeem(context.Background(), secret.Code)

	require.NoError(t, err)
	require.NotNil(t, redeemed.UsedAt)
	assert.Equal(t, models.SecretTypeEmailVerification, redeemed.SecretType)
}

func TestSecretService_Redeem_EmptyCode(t *testing.T) {
	repo := &MockSecretRepository{
		GetByCodeFunc: func(ctx context.Context, code string) (*models.Secret, error) {
			t.Fatal("empty code must not hit storage")
			return nil, nil
		},
	}

	_, err := newTestSecretService(repo).Redeem(context.Background(), "")

	assert.ErrorIs(t, err, models.ErrSecretNotFound)
}

func TestSecretService_Redeem_UnknownCode(t *testing.T) {
	repo := &MockSecretRepository{
		GetByCodeFunc: func(ctx context.Context, code string) (*models.Secret, error) {
			return nil, models.ErrNotFound
		},
	}

	_, err := newTestSecretService(repo).Redeem(context.Background(), "nope")

	assert.ErrorIs(t, err, models.ErrSecretNotFound)
}

func TestSecretService_Redeem_AlreadyUsed(t *testing.T) {
	secret := newLiveSecret("secret123", "user123", models.SecretTypeTwoFactor)
	usedAt := time.Now().Add(-time.Minute)
	secret.UsedAt = &usedAt

	repo := &MockSecretRepository{
		GetByCodeFunc: func(ctx context.Context, code string) (*models.Secret, error) {
			return secret, nil
		},
	}

	_, err := newTestSecretService(repo).Redeem(context.Background(), secret.Code)

	assert.ErrorIs(t, err, models.ErrSecretAlreadyUsed)
}

func TestSecretService_Redeem_Invalidated(t *testing.T) {
	// A reset secret tombstoned by a newer issuance reads as already used,
	// not as unknown.
	secret := newLiveSecret("secret123", "user123", models.SecretTypePasswordReset)
	deletedAt := time.Now().Add(-time.Minute)
	secret.DeletedAt = &deletedAt

	repo := &MockSecretRepository{
		GetByCodeFunc: func(ctx context.Context, code string) (*models.Secret, error) {
			return secret, nil
		},
	}

	_, err := newTestSecretService(repo).Redeem(context.Background(), secret.Code)

	assert.ErrorIs(t, err, models.ErrSecretAlreadyUsed)
}

func TestSecretService_Redeem_Expired(t *testing.T) {
	secret := newLiveSecret("secret123", "user123", models.SecretTypeTwoFactor)
	secret.ExpiresAt = time.Now().Add(-time.Hour)

	repo := &MockSecretRepository{
		GetByCodeFunc: func(ctx context.Context, code string) (*models.Secret, error) {
			return secret, nil
		},
	}

	_, err := newTestSecretService(repo).Redeem(context.Background(), secret.Code)

	assert.ErrorIs(t, err, models.ErrSecretExpired)
}

func TestSecretService_Redeem_ConcurrentLoss(t *testing.T) {
	// The row-level used_at guard decides races; the loser sees already-used.
	secret := newLiveSecret("secret123", "user123", models.SecretTypeTwoFactor)

	repo := &MockSecretRepository{
		GetByCodeFunc: func(ctx context.Context, code string) (*models.Secret, error) {
			return secret, nil
		},
		MarkUsedFunc: func(ctx context.Context, id string) (*models.Secret, error) {
			return nil, models.ErrSecretAlreadyUsed
		},
	}

	_, err := newTestSecretService(repo).Redeem(context.Background(), secret.Code)

	assert.ErrorIs(t, err, models.ErrSecretAlreadyUsed)
}

func TestSecretService_PurgeExpired(t *testing.T) {
	repo := &MockSecretRepository{
		CleanupExpiredFunc: func(ctx context.Context) (int64, error) {
			return 7, nil
		},
	}

	n, err := newTestSecretService(repo).PurgeExpired(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
}
