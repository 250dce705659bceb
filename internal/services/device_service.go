package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/floretapp/floret/internal/models"
	pkglogger "github.com/floretapp/floret/pkg/logger"
)

// DeviceDetail is a device with its recorded origin and browser children
type DeviceDetail struct {
	Device   *models.Device
	Origins  []*models.NetworkOrigin
	Browsers []*models.BrowserSighting
}

// DeviceService exposes the explicit trust/block state machine a user drives
// against their own devices, plus listing and the stale-device sweep. All
// operations are scoped to (account, device).
type DeviceService struct {
	deviceRepo DeviceRepository
	logger     *slog.Logger
	audit      *pkglogger.AuditLogger
}

// NewDeviceService creates a new DeviceService
func NewDeviceService(deviceRepo DeviceRepository, logger *slog.Logger, audit *pkglogger.AuditLogger) *DeviceService {
	return &DeviceService{
		deviceRepo: deviceRepo,
		logger:     logger,
		audit:      audit,
	}
}

// ListDevices returns the account's undeleted devices
func (s *DeviceService) ListDevices(ctx context.Context, userID string) ([]*models.Device, error) {
	return s.deviceRepo.ListByUser(ctx, userID)
}

// GetDevice returns one device with its origin and browser sightings
func (s *DeviceService) GetDevice(ctx context.Context, userID, deviceID string) (*DeviceDetail, error) {
	device, err := s.deviceRepo.GetByID(ctx, userID, deviceID)
	if err != nil {
		return nil, err
	}

	origins, err := s.deviceRepo.ListOrigins(ctx, device.ID)
	if err != nil {
		return nil, err
	}

	browsers, err := s.deviceRepo.ListBrowsers(ctx, device.ID)
	if err != nil {
		return nil, err
	}

	return &DeviceDetail{Device: device, Origins: origins, Browsers: browsers}, nil
}

// LastKnownOrigin returns the device's most recently seen network origin,
// or empty when none is recorded
func (s *DeviceService) LastKnownOrigin(ctx context.Context, deviceID string) (string, error) {
	return s.deviceRepo.LatestOrigin(ctx, deviceID)
}

// ToggleTrust flips the trusted flag. Blocked devices cannot be trusted and
// must be unblocked first.
func (s *DeviceService) ToggleTrust(ctx context.Context, userID, deviceID string) (*models.Device, error) {
	device, err := s.deviceRepo.GetByID(ctx, userID, deviceID)
	if err != nil {
		return nil, err
	}
	if device.Blocked {
		return nil, models.ErrDeviceBlocked
	}

	updated, err := s.deviceRepo.SetTrusted(ctx, userID, deviceID, !device.Trusted)
	if err != nil {
		return nil, err
	}

	if updated.Trusted {
		s.audit.Log(pkglogger.AuditEvent{
			EventType: pkglogger.EventDeviceTrusted,
			UserID:    userID,
			DeviceID:  deviceID,
			Success:   true,
		})
	}

	return updated, nil
}

// MarkTrusted grants trust implicitly after a successful secret redemption
// resolved to this device. Blocked devices stay blocked; already-trusted
// devices are a no-op.
func (s *DeviceService) MarkTrusted(ctx context.Context, userID, deviceID string) error {
	device, err := s.deviceRepo.GetByID(ctx, userID, deviceID)
	if err != nil {
		return err
	}
	if device.Blocked || device.Trusted {
		return nil
	}

	if _, err := s.deviceRepo.SetTrusted(ctx, userID, deviceID, true); err != nil {
		return err
	}

	s.audit.Log(pkglogger.AuditEvent{
		EventType: pkglogger.EventDeviceTrusted,
		UserID:    userID,
		DeviceID:  deviceID,
		Success:   true,
		Metadata:  map[string]string{"via": "secret_redemption"},
	})

	return nil
}

// Block marks a device blocked and simultaneously clears trust. Repeated
// blocks are no-ops; blocking is terminal until an explicit unblock.
func (s *DeviceService) Block(ctx context.Context, userID, deviceID string) (*models.Device, error) {
	device, err := s.deviceRepo.Block(ctx, userID, deviceID)
	if err != nil {
		return nil, err
	}

	s.audit.Log(pkglogger.AuditEvent{
		EventType: pkglogger.EventDeviceBlocked,
		UserID:    userID,
		DeviceID:  deviceID,
		Success:   true,
	})

	return device, nil
}

// Unblock clears the blocked flag; the device returns untrusted
func (s *DeviceService) Unblock(ctx context.Context, userID, deviceID string) (*models.Device, error) {
	return s.deviceRepo.Unblock(ctx, userID, deviceID)
}

// Forget tombstones a device; it disappears from default queries but its
// history survives
func (s *DeviceService) Forget(ctx context.Context, userID, deviceID string) error {
	if err := s.deviceRepo.SoftDelete(ctx, userID, deviceID); err != nil {
		return err
	}

	s.audit.Log(pkglogger.AuditEvent{
		EventType: pkglogger.EventDeviceForgotten,
		UserID:    userID,
		DeviceID:  deviceID,
		Success:   true,
	})

	return nil
}

// Delete hard-deletes a device along with its origin and browser children
func (s *DeviceService) Delete(ctx context.Context, userID, deviceID string) error {
	return s.deviceRepo.HardDelete(ctx, userID, deviceID)
}

// Rename sets the user-chosen device name
func (s *DeviceService) Rename(ctx context.Context, userID, deviceID, name string) error {
	return s.deviceRepo.Rename(ctx, userID, deviceID, name)
}

// ToggleOriginBlock flips the block flag on one network origin, independent
// of the device-level block
func (s *DeviceService) ToggleOriginBlock(ctx context.Context, userID, originID string) (*models.NetworkOrigin, error) {
	origin, err := s.deviceRepo.ToggleOriginBlock(ctx, userID, originID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to toggle origin block: %w", err)
	}

	return origin, nil
}

// SweepStale tombstones untrusted, unblocked devices inactive beyond the
// threshold. A negative threshold disables the sweep.
func (s *DeviceService) SweepStale(ctx context.Context, threshold time.Duration) (int64, error) {
	if threshold < 0 {
		s.logger.Info("stale device sweep is disabled")
		return 0, nil
	}

	removed, err := s.deviceRepo.SweepStale(ctx, time.Now().Add(-threshold))
	if err != nil {
		return 0, err
	}

	if removed > 0 {
		s.logger.Info("removed stale devices", slog.Int64("count", removed))
	}

	return removed, nil
}
