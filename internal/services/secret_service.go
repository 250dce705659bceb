package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/floretapp/floret/internal/models"
	pkgauth "github.com/floretapp/floret/pkg/auth"
	pkglogger "github.com/floretapp/floret/pkg/logger"
)

// SecretRepository defines the interface for single-use secret operations
type SecretRepository interface {
	Create(ctx context.Context, userID, code string, secretType models.SecretType, expiresAt time.Time) (*models.Secret, error)
	CreateForPasswordReset(ctx context.Context, userID, code string, expiresAt time.Time) (*models.Secret, error)
	GetByCode(ctx context.Context, code string) (*models.Secret, error)
	MarkUsed(ctx context.Context, id string) (*models.Secret, error)
	CleanupExpired(ctx context.Context) (int64, error)
}

// SecretService issues and redeems single-use, time-bounded secrets backing
// the magic-link flows: password reset, email verification, two-factor step-up.
type SecretService struct {
	secretRepo SecretRepository
	logger     *slog.Logger
	audit      *pkglogger.AuditLogger
	ttl        time.Duration
}

// NewSecretService creates a new SecretService
func NewSecretService(secretRepo SecretRepository, logger *slog.Logger, audit *pkglogger.AuditLogger, ttl time.Duration) *SecretService {
	return &SecretService{
		secretRepo: secretRepo,
		logger:     logger,
		audit:      audit,
		ttl:        ttl,
	}
}

// Issue creates a new secret for an account and purpose. Password-reset
// issuance first invalidates every prior unused reset secret for the account
// so at most one live reset secret exists at any time. Other purposes may
// have several live secrets.
func (s *SecretService) Issue(ctx context.Context, userID string, purpose models.SecretType) (*models.Secret, error) {
	if !purpose.Valid() {
		return nil, fmt.Errorf("unknown secret type %q: %w", purpose, models.ErrBadRequest)
	}

	code, err := pkgauth.GenerateOpaqueToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate secret code: %w", err)
	}

	expiresAt := time.Now().Add(s.ttl)

	var secret *models.Secret
	if purpose == models.SecretTypePasswordReset {
		secret, err = s.secretRepo.CreateForPasswordReset(ctx, userID, code, expiresAt)
	} else {
		secret, err = s.secretRepo.Create(ctx, userID, code, purpose, expiresAt)
	}
	if err != nil {
		return nil, err
	}

	s.audit.Log(pkglogger.AuditEvent{
		EventType: pkglogger.EventSecretIssued,
		UserID:    userID,
		Success:   true,
		Metadata:  map[string]string{"secret_type": string(purpose)},
	})

	return secret, nil
}

// Redeem consumes a secret exactly once. The lookup ignores soft-delete so an
// invalidated reset secret fails with a precise already-used error rather
// than not-found. Callers branch on the returned secret's purpose for
// post-conditions (email verification stamp, device trust).
func (s *SecretService) Redeem(ctx context.Context, code string) (*models.Secret, error) {
	if code == "" {
		return nil, models.ErrSecretNotFound
	}

	secret, err := s.secretRepo.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrSecretNotFound
		}
		return nil, fmt.Errorf("failed to look up secret: %w", err)
	}

	switch {
	case secret.IsUsed(), secret.IsInvalidated():
		s.audit.Log(pkglogger.AuditEvent{
			EventType:     pkglogger.EventSecretRedeemed,
			UserID:        secret.UserID,
			Success:       false,
			FailureReason: "already used",
		})
		return nil, models.ErrSecretAlreadyUsed
	case secret.IsExpired():
		s.audit.Log(pkglogger.AuditEvent{
			EventType:     pkglogger.EventSecretRedeemed,
			UserID:        secret.UserID,
			Success:       false,
			FailureReason: "expired",
		})
		return nil, models.ErrSecretExpired
	}

	// MarkUsed guards with used_at IS NULL, so a concurrent redemption of the
	// same code loses cleanly with ErrSecretAlreadyUsed.
	redeemed, err := s.secretRepo.MarkUsed(ctx, secret.ID)
	if err != nil {
		return nil, err
	}

	s.audit.Log(pkglogger.AuditEvent{
		EventType: pkglogger.EventSecretRedeemed,
		UserID:    redeemed.UserID,
		Success:   true,
		Metadata:  map[string]string{"secret_type": string(redeemed.SecretType)},
	})

	return redeemed, nil
}

// PurgeExpired removes long-expired secrets; driven by the background sweep
func (s *SecretService) PurgeExpired(ctx context.Context) (int64, error) {
	return s.secretRepo.CleanupExpired(ctx)
}
