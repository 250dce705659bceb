package services

import (
	"context"
	"time"

	"github.com/floretapp/floret/internal/models"
	"github.com/floretapp/floret/internal/repositories"
)

// MockDeviceRepository implements DeviceRepository for testing
type MockDeviceRepository struct {
	CreateFunc            func(ctx context.Context, d *models.Device) (*models.Device, error)
	GetByTokenFunc        func(ctx context.Context, userID, token string) (*models.Device, error)
	GetByIDFunc           func(ctx context.Context, userID, deviceID string) (*models.Device, error)
	ListByUserFunc        func(ctx context.Context, userID string) ([]*models.Device, error)
	ListByFingerprintFunc func(ctx context.Context, userID, fingerprint string) ([]*models.Device, error)
	RefreshFunc           func(ctx context.Context, deviceID string, attrs repositories.DisplayAttributes) error
	RenameFunc            func(ctx context.Context, userID, deviceID, name string) error
	SetTrustedFunc        func(ctx context.Context, userID, deviceID string, trusted bool) (*models.Device, error)
	BlockFunc             func(ctx context.Context, userID, deviceID string) (*models.Device, error)
	UnblockFunc           func(ctx context.Context, userID, deviceID string) (*models.Device, error)
	SoftDeleteFunc        func(ctx context.Context, userID, deviceID string) error
	HardDeleteFunc        func(ctx context.Context, userID, deviceID string) error
	SweepStaleFunc        func(ctx context.Context, before time.Time) (int64, error)
	HasOriginFunc         func(ctx context.Context, deviceID, origin string) (bool, error)
	UpsertOriginFunc      func(ctx context.Context, deviceID, origin string) error
	UpsertBrowserFunc     func(ctx context.Context, deviceID, browserFamily, userAgent string) error
	ListOriginsFunc       func(ctx context.Context, deviceID string) ([]*models.NetworkOrigin, error)
	ListBrowsersFunc      func(ctx context.Context, deviceID string) ([]*models.BrowserSighting, error)
	ToggleOriginBlockFunc func(ctx context.Context, userID, originID string) (*models.NetworkOrigin, error)
	LatestOriginFunc      func(ctx context.Context, deviceID string) (string, error)
}

func (m *MockDeviceRepository) Create(ctx context.Context, d *models.Device) (*models.Device, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, d)
	}
	return nil, models.ErrInternalServer
}

func (m *MockDeviceRepository) GetByToken(ctx context.Context, userID, token string) (*models.Device, error) {
	if m.GetByTokenFunc != nil {
		return m.GetByTokenFunc(ctx, userID, token)
	}
	return nil, models.ErrNotFound
}

func (m *MockDeviceRepository) GetByID(ctx context.Context, userID, deviceID string) (*models.Device, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, userID, deviceID)
	}
	return nil, models.ErrNotFound
}

func (m *MockDeviceRepository) ListByUser(ctx context.Context, userID string) ([]*models.Device, error) {
	if m.ListByUserFunc != nil {
		return m.ListByUserFunc(ctx, userID)
	}
	return []*models.Device{}, nil
}

func (m *MockDeviceRepository) ListByFingerprint(ctx context.Context, userID, fingerprint string) ([]*models.Device, error) {
	if m.ListByFingerprintFunc != nil {
		return m.ListByFingerprintFunc(ctx, userID, fingerprint)
	}
	return []*models.Device{}, nil
}

func (m *MockDeviceRepository) Refresh(ctx context.Context, deviceID string, attrs repositories.DisplayAttributes) error {
	if m.RefreshFunc != nil {
		return m.RefreshFunc(ctx, deviceID, attrs)
	}
	return nil
}

func (m *MockDeviceRepository) Rename(ctx context.Context, userID, deviceID, name string) error {
	if m.RenameFunc != nil {
		return m.RenameFunc(ctx, userID, deviceID, name)
	}
	return nil
}

func (m *MockDeviceRepository) SetTrusted(ctx context.Context, userID, deviceID string, trusted bool) (*models.Device, error) {
	if m.SetTrustedFunc != nil {
		return m.SetTrustedFunc(ctx, userID, deviceID, trusted)
	}
	return nil, models.ErrNotFound
}

func (m *MockDeviceRepository) Block(ctx context.Context, userID, deviceID string) (*models.Device, error) {
	if m.BlockFunc != nil {
		return m.BlockFunc(ctx, userID, deviceID)
	}
	return nil, models.ErrNotFound
}

func (m *MockDeviceRepository) Unblock(ctx context.Context, userID, deviceID string) (*models.Device, error) {
	if m.UnblockFunc != nil {
		return m.UnblockFunc(ctx, userID, deviceID)
	}
	return nil, models.ErrNotFound
}

func (m *MockDeviceRepository) SoftDelete(ctx context.Context, userID, deviceID string) error {
	if m.SoftDeleteFunc != nil {
		return m.SoftDeleteFunc(ctx, userID, deviceID)
	}
	return nil
}

func (m *MockDeviceRepository) HardDelete(ctx context.Context, userID, deviceID string) error {
	if m.HardDeleteFunc != nil {
		return m.HardDeleteFunc(ctx, userID, deviceID)
	}
	return nil
}

func (m *MockDeviceRepository) SweepStale(ctx context.Context, before time.Time) (int64, error) {
	if m.SweepStaleFunc != nil {
		return m.SweepStaleFunc(ctx, before)
	}
	return 0, nil
}

func (m *MockDeviceRepository) HasOrigin(ctx context.Context, deviceID, origin string) (bool, error) {
	if m.HasOriginFunc != nil {
		return m.HasOriginFunc(ctx, deviceID, origin)
	}
	return false, nil
}

func (m *MockDeviceRepository) UpsertOrigin(ctx context.Context, deviceID, origin string) error {
	if m.UpsertOriginFunc != nil {
		return m.UpsertOriginFunc(ctx, deviceID, origin)
	}
	return nil
}

func (m *MockDeviceRepository) UpsertBrowser(ctx context.Context, deviceID, browserFamily, userAgent string) error {
	if m.UpsertBrowserFunc != nil {
		return m.UpsertBrowserFunc(ctx, deviceID, browserFamily, userAgent)
	}
	return nil
}

func (m *MockDeviceRepository) ListOrigins(ctx context.Context, deviceID string) ([]*models.NetworkOrigin, error) {
	if m.ListOriginsFunc != nil {
		return m.ListOriginsFunc(ctx, deviceID)
	}
	return []*models.NetworkOrigin{}, nil
}

func (m *MockDeviceRepository) ListBrowsers(ctx context.Context, deviceID string) ([]*models.BrowserSighting, error) {
	if m.ListBrowsersFunc != nil {
		return m.ListBrowsersFunc(ctx, deviceID)
	}
	return []*models.BrowserSighting{}, nil
}

func (m *MockDeviceRepository) ToggleOriginBlock(ctx context.Context, userID, originID string) (*models.NetworkOrigin, error) {
	if m.ToggleOriginBlockFunc != nil {
		return m.ToggleOriginBlockFunc(ctx, userID, originID)
	}
	return nil, models.ErrNotFound
}

func (m *MockDeviceRepository) LatestOrigin(ctx context.Context, deviceID string) (string, error) {
	if m.LatestOriginFunc != nil {
		return m.LatestOriginFunc(ctx, deviceID)
	}
	return "", nil
}

// MockSecretRepository implements SecretRepository for testing
type MockSecretRepository struct {
	CreateFunc                 func(ctx context.Context, userID, code string, secretType models.SecretType, expiresAt time.Time) (*models.Secret, error)
	CreateForPasswordResetFunc func(ctx context.Context, userID, code string, expiresAt time.Time) (*models.Secret, error)
	GetByCodeFunc              func(ctx context.Context, code string) (*models.Secret, error)
	MarkUsedFunc               func(ctx context.Context, id string) (*models.Secret, error)
	CleanupExpiredFunc         func(ctx context.Context) (int64, error)
}

func (m *MockSecretRepository) Create(ctx context.Context, userID, code string, secretType models.SecretType, expiresAt time.Time) (*models.Secret, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, userID, code, secretType, expiresAt)
	}
	return nil, models.ErrInternalServer
}

func (m *MockSecretRepository) CreateForPasswordReset(ctx context.Context, userID, code string, expiresAt time.Time) (*models.Secret, error) {
	if m.CreateForPasswordResetFunc != nil {
		return m.CreateForPasswordResetFunc(ctx, userID, code, expiresAt)
	}
	return nil, models.ErrInternalServer
}

func (m *MockSecretRepository) GetByCode(ctx context.Context, code string) (*models.Secret, error) {
	if m.GetByCodeFunc != nil {
		return m.GetByCodeFunc(ctx, code)
	}
	return nil, models.ErrSecretNotFound
}

func (m *MockSecretRepository) MarkUsed(ctx context.Context, id string) (*models.Secret, error) {
	if m.MarkUsedFunc != nil {
		return m.MarkUsedFunc(ctx, id)
	}
	return nil, models.ErrSecretAlreadyUsed
}

func (m *MockSecretRepository) CleanupExpired(ctx context.Context) (int64, error) {
	if m.CleanupExpiredFunc != nil {
		return m.CleanupExpiredFunc(ctx)
	}
	return 0, nil
}

// MockUserRepository implements UserRepository for testing
type MockUserRepository struct {
	CreateFunc            func(ctx context.Context, user *models.User) (*models.User, error)
	GetByIDFunc           func(ctx context.Context, id string) (*models.User, error)
	GetByEmailFunc        func(ctx context.Context, email string) (*models.User, error)
	UpdateFunc            func(ctx context.Context, user *models.User) (*models.User, error)
	UpdatePasswordFunc    func(ctx context.Context, id, passwordHash string) error
	MarkEmailVerifiedFunc func(ctx context.Context, id string) error
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) Update(ctx context.Context, user *models.User) (*models.User, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, user)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	if m.UpdatePasswordFunc != nil {
		return m.UpdatePasswordFunc(ctx, id, passwordHash)
	}
	return nil
}

func (m *MockUserRepository) MarkEmailVerified(ctx context.Context, id string) error {
	if m.MarkEmailVerifiedFunc != nil {
		return m.MarkEmailVerifiedFunc(ctx, id)
	}
	return nil
}

// MockEmailService implements EmailService for testing
type MockEmailService struct {
	SendTwoFactorEmailFunc     func(ctx context.Context, email string, data MagicLinkData) error
	SendVerificationEmailFunc  func(ctx context.Context, email string, data MagicLinkData) error
	SendPasswordResetEmailFunc func(ctx context.Context, email string, data MagicLinkData) error
}

func (m *MockEmailService) SendTwoFactorEmail(ctx context.Context, email string, data MagicLinkData) error {
	if m.SendTwoFactorEmailFunc != nil {
		return m.SendTwoFactorEmailFunc(ctx, email, data)
	}
	return nil
}

func (m *MockEmailService) SendVerificationEmail(ctx context.Context, email string, data MagicLinkData) error {
	if m.SendVerificationEmailFunc != nil {
		return m.SendVerificationEmailFunc(ctx, email, data)
	}
	return nil
}

func (m *MockEmailService) SendPasswordResetEmail(ctx context.Context, email string, data MagicLinkData) error {
	if m.SendPasswordResetEmailFunc != nil {
		return m.SendPasswordResetEmailFunc(ctx, email, data)
	}
	return nil
}

// NewTestUser builds a user with sensible defaults for service tests
func NewTestUser(id, email string) *models.User {
	now := time.Now()
	return &models.User{
		ID:        id,
		Email:     email,
		FirstName: "Test",
		LastName:  "User",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewTestDevice builds a device with sensible defaults for service tests
func NewTestDevice(id, userID string) *models.Device {
	now := time.Now()
	return &models.Device{
		ID:                id,
		UserID:            userID,
		DeviceToken:       "token-" + id,
		DeviceFingerprint: "fp-" + id,
		OSFamily:          "Mac OS X",
		DeviceClass:       "desktop",
		Platform:          "MacIntel",
		FirstSeenAt:       now.Add(-24 * time.Hour),
		LastSeenAt:        now,
		AccessCount:       1,
		CreatedAt:         now.Add(-24 * time.Hour),
		UpdatedAt:         now,
	}
}
