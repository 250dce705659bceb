package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/floretapp/floret/internal/auth"
	"github.com/floretapp/floret/internal/models"
	"github.com/floretapp/floret/internal/signals"
	pkgauth "github.com/floretapp/floret/pkg/auth"
	pkglogger "github.com/floretapp/floret/pkg/logger"
)

// UserRepository defines the interface for account data access
type UserRepository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, user *models.User) (*models.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	MarkEmailVerified(ctx context.Context, id string) error
}

// LoginResult is the outcome of a password login attempt
type LoginResult struct {
	User              *models.User
	Device            *models.Device
	NewDevice         bool
	SessionToken      string // empty when a two-factor challenge was issued
	TwoFactorRequired bool
}

// MagicLinkResult is the outcome of a successful magic-link redemption
type MagicLinkResult struct {
	User         *models.User
	Device       *models.Device
	SecretType   models.SecretType
	SessionToken string
}

// AuthService orchestrates login, signup, and magic-link redemption over the
// resolver, secret issuer, and email collaborator.
type AuthService struct {
	userRepo      UserRepository
	resolver      *Resolver
	secretService *SecretService
	deviceService *DeviceService
	emailService  EmailService
	tokenManager  *auth.TokenManager
	logger        *slog.Logger
	audit         *pkglogger.AuditLogger
	baseURL       string
}

// NewAuthService creates a new AuthService
func NewAuthService(
	userRepo UserRepository,
	resolver *Resolver,
	secretService *SecretService,
	deviceService *DeviceService,
	emailService EmailService,
	tokenManager *auth.TokenManager,
	logger *slog.Logger,
	audit *pkglogger.AuditLogger,
	baseURL string,
) *AuthService {
	return &AuthService{
		userRepo:      userRepo,
		resolver:      resolver,
		secretService: secretService,
		deviceService: deviceService,
		emailService:  emailService,
		tokenManager:  tokenManager,
		logger:        logger,
		audit:         audit,
		baseURL:       baseURL,
	}
}

// Signup registers a new account and emails a verification magic link.
// Email-send failures degrade (no link delivered) but never block signup.
func (s *AuthService) Signup(ctx context.Context, email, password, firstName, lastName string) (*models.User, string, error) {
	if err := pkgauth.ValidatePassword(password); err != nil {
		return nil, "", fmt.Errorf("%w: %s", models.ErrBadRequest, err.Error())
	}

	hash, err := pkgauth.HashPassword(password)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.userRepo.Create(ctx, &models.User{
		Email:        email,
		PasswordHash: hash,
		FirstName:    firstName,
		LastName:     lastName,
	})
	if err != nil {
		return nil, "", err
	}

	secret, err := s.secretService.Issue(ctx, user.ID, models.SecretTypeEmailVerification)
	if err != nil {
		s.logger.Error("failed to issue verification secret",
			slog.String("user_id", user.ID), slog.Any("error", err))
	} else {
		s.sendEmail(ctx, func() error {
			return s.emailService.SendVerificationEmail(ctx, user.Email, MagicLinkData{
				Name:      user.DisplayName(),
				ActionURL: secret.MagicLink(s.baseURL),
			})
		}, user.ID, "verification")
	}

	sessionToken, err := s.tokenManager.GenerateSessionToken(user.ID)
	if err != nil {
		return nil, "", err
	}

	s.audit.Log(pkglogger.AuditEvent{
		EventType: pkglogger.EventSignup,
		UserID:    user.ID,
		Success:   true,
	})

	return user, sessionToken, nil
}

// Login authenticates a password login and resolves the request's device.
// Blocked devices are rejected outright. When the account has MFA enabled and
// the device is absent or untrusted, a two-factor secret is issued and mailed
// instead of finalizing the session.
func (s *AuthService) Login(ctx context.Context, email, password string, sig signals.Bundle) (*LoginResult, error) {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.auditLoginFailure("", sig, "unknown email")
			return nil, models.ErrUnauthorized
		}
		return nil, err
	}

	if err := pkgauth.ComparePassword(user.PasswordHash, password); err != nil {
		s.auditLoginFailure(user.ID, sig, "invalid password")
		return nil, models.ErrUnauthorized
	}

	device, isNew, err := s.resolver.Resolve(ctx, user, sig)
	if err != nil {
		return nil, err
	}

	if device != nil && device.Blocked {
		s.auditLoginFailure(user.ID, sig, "blocked device")
		return nil, models.ErrDeviceBlocked
	}

	if user.MFAEnabled && (device == nil || !device.Trusted) {
		if err := s.issueTwoFactorChallenge(ctx, user, device, sig); err != nil {
			return nil, err
		}
		return &LoginResult{User: user, Device: device, NewDevice: isNew, TwoFactorRequired: true}, nil
	}

	sessionToken, err := s.tokenManager.GenerateSessionToken(user.ID)
	if err != nil {
		return nil, err
	}

	s.audit.Log(pkglogger.AuditEvent{
		EventType: pkglogger.EventLogin,
		UserID:    user.ID,
		Origin:    sig.Server.Origin,
		Success:   true,
	})

	return &LoginResult{
		User:         user,
		Device:       device,
		NewDevice:    isNew,
		SessionToken: sessionToken,
	}, nil
}

func (s *AuthService) issueTwoFactorChallenge(ctx context.Context, user *models.User, device *models.Device, sig signals.Bundle) error {
	secret, err := s.secretService.Issue(ctx, user.ID, models.SecretTypeTwoFactor)
	if err != nil {
		return err
	}

	data := MagicLinkData{
		Name:            user.DisplayName(),
		ActionURL:       secret.MagicLink(s.baseURL),
		OperatingSystem: "Unknown",
		DeviceName:      "Unknown Device",
		Origin:          sig.Server.Origin,
	}
	if device != nil {
		data.OperatingSystem = device.OSFamily
		data.DeviceName = device.DisplayName()

		// A known device's recorded origin beats the current request's;
		// the email should describe where the device was last seen.
		if origin, err := s.deviceService.LastKnownOrigin(ctx, device.ID); err == nil && origin != "" {
			data.Origin = origin
		}
	}

	s.sendEmail(ctx, func() error {
		return s.emailService.SendTwoFactorEmail(ctx, user.Email, data)
	}, user.ID, "two-factor")

	return nil
}

// RedeemMagicLink consumes a secret, resolves and (for two-factor and
// password-reset purposes) trusts the device, stamps email verification, and
// finalizes a session.
func (s *AuthService) RedeemMagicLink(ctx context.Context, code string, sig signals.Bundle) (*MagicLinkResult, error) {
	secret, err := s.secretService.Redeem(ctx, code)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, secret.UserID)
	if err != nil {
		return nil, err
	}

	device, _, err := s.resolver.Resolve(ctx, user, sig)
	if err != nil {
		return nil, err
	}

	if device != nil && secret.SecretType != models.SecretTypeEmailVerification {
		if err := s.deviceService.MarkTrusted(ctx, user.ID, device.ID); err != nil {
			s.logger.Error("failed to trust device after redemption",
				slog.String("device_id", device.ID), slog.Any("error", err))
		}
	}

	// Following a mailed link proves control of the address.
	if !user.EmailVerified() {
		if err := s.userRepo.MarkEmailVerified(ctx, user.ID); err != nil {
			s.logger.Error("failed to mark email verified",
				slog.String("user_id", user.ID), slog.Any("error", err))
		}
	}

	sessionToken, err := s.tokenManager.GenerateSessionToken(user.ID)
	if err != nil {
		return nil, err
	}

	s.audit.Log(pkglogger.AuditEvent{
		EventType: pkglogger.EventLogin,
		UserID:    user.ID,
		Origin:    sig.Server.Origin,
		Success:   true,
		Metadata:  map[string]string{"via": "magic_link", "secret_type": string(secret.SecretType)},
	})

	return &MagicLinkResult{
		User:         user,
		Device:       device,
		SecretType:   secret.SecretType,
		SessionToken: sessionToken,
	}, nil
}

// RequestPasswordReset issues a reset secret and emails the magic link.
// Unknown addresses return success to avoid account enumeration.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string, sig signals.Bundle) error {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("password reset requested for unknown email",
				slog.String("email", pkglogger.SanitizedEmail(email)))
			return nil
		}
		return err
	}

	secret, err := s.secretService.Issue(ctx, user.ID, models.SecretTypePasswordReset)
	if err != nil {
		return err
	}

	s.sendEmail(ctx, func() error {
		return s.emailService.SendPasswordResetEmail(ctx, user.Email, MagicLinkData{
			Name:            user.DisplayName(),
			ActionURL:       secret.MagicLink(s.baseURL),
			OperatingSystem: sig.Server.OSFamily,
			DeviceName:      sig.Server.BrowserFamily,
			Origin:          sig.Server.Origin,
		})
	}, user.ID, "password reset")

	return nil
}

// ResetPassword sets a new password for an authenticated account
func (s *AuthService) ResetPassword(ctx context.Context, userID, newPassword string) error {
	if err := pkgauth.ValidatePassword(newPassword); err != nil {
		return fmt.Errorf("%w: %s", models.ErrBadRequest, err.Error())
	}

	hash, err := pkgauth.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.userRepo.UpdatePassword(ctx, userID, hash); err != nil {
		return err
	}

	s.audit.Log(pkglogger.AuditEvent{
		EventType: "password_change",
		UserID:    userID,
		Success:   true,
	})

	return nil
}

// sendEmail runs an email send and logs failures without propagating them;
// a lost email degrades the experience but never fails the request.
func (s *AuthService) sendEmail(ctx context.Context, send func() error, userID, kind string) {
	if err := send(); err != nil {
		s.logger.Error("failed to send "+kind+" email",
			slog.String("user_id", userID),
			slog.Any("error", err))
	}
}

func (s *AuthService) auditLoginFailure(userID string, sig signals.Bundle, reason string) {
	s.audit.Log(pkglogger.AuditEvent{
		EventType:     pkglogger.EventLogin,
		UserID:        userID,
		Origin:        sig.Server.Origin,
		Success:       false,
		FailureReason: reason,
	})
}
