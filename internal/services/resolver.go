package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/floretapp/floret/internal/database"
	"github.com/floretapp/floret/internal/models"
	"github.com/floretapp/floret/internal/repositories"
	"github.com/floretapp/floret/internal/signals"
	pkgauth "github.com/floretapp/floret/pkg/auth"
	pkglogger "github.com/floretapp/floret/pkg/logger"
)

// DeviceRepository defines the interface for device ledger operations
type DeviceRepository interface {
	Create(ctx context.Context, d *models.Device) (*models.Device, error)
	GetByToken(ctx context.Context, userID, token string) (*models.Device, error)
	GetByID(ctx context.Context, userID, deviceID string) (*models.Device, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Device, error)
	ListByFingerprint(ctx context.Context, userID, fingerprint string) ([]*models.Device, error)
	Refresh(ctx context.Context, deviceID string, attrs repositories.DisplayAttributes) error
	Rename(ctx context.Context, userID, deviceID, name string) error
	SetTrusted(ctx context.Context, userID, deviceID string, trusted bool) (*models.Device, error)
	Block(ctx context.Context, userID, deviceID string) (*models.Device, error)
	Unblock(ctx context.Context, userID, deviceID string) (*models.Device, error)
	SoftDelete(ctx context.Context, userID, deviceID string) error
	HardDelete(ctx context.Context, userID, deviceID string) error
	SweepStale(ctx context.Context, before time.Time) (int64, error)
	HasOrigin(ctx context.Context, deviceID, origin string) (bool, error)
	UpsertOrigin(ctx context.Context, deviceID, origin string) error
	UpsertBrowser(ctx context.Context, deviceID, browserFamily, userAgent string) error
	ListOrigins(ctx context.Context, deviceID string) ([]*models.NetworkOrigin, error)
	ListBrowsers(ctx context.Context, deviceID string) ([]*models.BrowserSighting, error)
	ToggleOriginBlock(ctx context.Context, userID, originID string) (*models.NetworkOrigin, error)
	LatestOrigin(ctx context.Context, deviceID string) (string, error)
}

// Resolver decides whether an inbound authenticated request comes from a
// previously seen device, updates that device's activity record, or provisions
// a new device identity. The client is never trusted outright: a continuity
// token is authoritative, a fingerprint alone is not.
type Resolver struct {
	deviceRepo DeviceRepository
	logger     *slog.Logger
	audit      *pkglogger.AuditLogger
}

// NewResolver creates a new Resolver
func NewResolver(deviceRepo DeviceRepository, logger *slog.Logger, audit *pkglogger.AuditLogger) *Resolver {
	return &Resolver{
		deviceRepo: deviceRepo,
		logger:     logger,
		audit:      audit,
	}
}

// Resolve identifies the device behind a request for the given account.
//
// Returns (device, isNew):
//   - (device, false) when a continuity token or corroborated fingerprint
//     matched an existing device, whose activity record was refreshed
//   - (device, true) when a new device was provisioned
//   - (nil, false) when the request is unidentifiable (no token, no stable
//     client signals); no device is created for such traffic
//
// Only storage failures return a non-nil error.
func (r *Resolver) Resolve(ctx context.Context, user *models.User, sig signals.Bundle) (*models.Device, bool, error) {
	// 1. Token continuity. An undeleted device holding this account's token
	// is authoritative; fingerprint comparison is bypassed entirely so a
	// GPU-driver or display change never breaks continuity.
	if sig.DeviceToken != "" {
		device, err := r.deviceRepo.GetByToken(ctx, user.ID, sig.DeviceToken)
		if err != nil && !errors.Is(err, models.ErrNotFound) {
			return nil, false, fmt.Errorf("failed to look up device by token: %w", err)
		}
		if device != nil {
			if err := r.refresh(ctx, device, sig); err != nil {
				return nil, false, err
			}
			return device, false, nil
		}
	}

	// 2. Signal sufficiency gate. With scripting disabled there is nothing
	// stable to match or fingerprint; classify as anonymous.
	if !sig.Client.HasClientSignals() {
		return nil, false, nil
	}

	// 3+4. Fingerprint match requires origin corroboration. A bare
	// fingerprint match is not sufficient: stable hardware signals collide
	// across unrelated installs, and the previously seen origin bounds that
	// blast radius.
	fingerprint := signals.Fingerprint(user.ID, sig.Server, sig.Client)

	candidates, err := r.deviceRepo.ListByFingerprint(ctx, user.ID, fingerprint)
	if err != nil {
		return nil, false, fmt.Errorf("failed to look up devices by fingerprint: %w", err)
	}

	if sig.Server.Origin != "" {
		for _, device := range candidates {
			seen, err := r.deviceRepo.HasOrigin(ctx, device.ID, sig.Server.Origin)
			if err != nil {
				return nil, false, fmt.Errorf("failed to check origin corroboration: %w", err)
			}
			if seen {
				if err := r.refresh(ctx, device, sig); err != nil {
					return nil, false, err
				}
				return device, false, nil
			}
		}
	}

	// 5. Provision a new device.
	device, err := r.provision(ctx, user, sig, fingerprint)
	if err != nil {
		return nil, false, err
	}

	return device, true, nil
}

// refresh applies the identical side effects of both reuse paths: bump
// activity, overwrite volatile display attributes, upsert the current origin
// and browser sightings.
func (r *Resolver) refresh(ctx context.Context, device *models.Device, sig signals.Bundle) error {
	if err := r.deviceRepo.Refresh(ctx, device.ID, displayAttributes(sig.Client)); err != nil {
		return err
	}
	device.LastSeenAt = time.Now()
	device.AccessCount++

	return r.recordSightings(ctx, device.ID, sig)
}

func (r *Resolver) recordSightings(ctx context.Context, deviceID string, sig signals.Bundle) error {
	if sig.Server.Origin != "" {
		if err := r.deviceRepo.UpsertOrigin(ctx, deviceID, sig.Server.Origin); err != nil {
			if !database.IsUniqueViolation(err) {
				return fmt.Errorf("failed to record origin sighting: %w", err)
			}
			// Concurrent first sighting; the row exists, nothing to do.
		}
	}

	if sig.Server.BrowserFamily != "" {
		if err := r.deviceRepo.UpsertBrowser(ctx, deviceID, sig.Server.BrowserFamily, sig.Server.UserAgent); err != nil {
			if !database.IsUniqueViolation(err) {
				return fmt.Errorf("failed to record browser sighting: %w", err)
			}
		}
	}

	return nil
}

func (r *Resolver) provision(ctx context.Context, user *models.User, sig signals.Bundle, fingerprint string) (*models.Device, error) {
	token, err := pkgauth.GenerateOpaqueToken()
	if err != nil {
		return nil, fmt.Errorf("failed to mint device token: %w", err)
	}

	attrs := displayAttributes(sig.Client)

	device := &models.Device{
		UserID:              user.ID,
		DeviceToken:         token,
		DeviceFingerprint:   fingerprint,
		OSFamily:            sig.Server.OSFamily,
		DeviceClass:         sig.Server.DeviceClass,
		Platform:            sig.Client.Platform,
		GPUVendor:           truncate(sig.Client.WebGL, 255),
		HardwareConcurrency: attrs.HardwareConcurrency,
		DeviceMemory:        attrs.DeviceMemory,
		ScreenResolution:    attrs.ScreenResolution,
		BrowserTimezone:     attrs.BrowserTimezone,
		Language:            attrs.Language,
	}

	created, err := r.deviceRepo.Create(ctx, device)
	if err != nil {
		return nil, fmt.Errorf("failed to provision device: %w", err)
	}

	if err := r.recordSightings(ctx, created.ID, sig); err != nil {
		return nil, err
	}

	r.audit.Log(pkglogger.AuditEvent{
		EventType: pkglogger.EventDeviceProvisioned,
		UserID:    user.ID,
		DeviceID:  created.ID,
		Origin:    sig.Server.Origin,
		Success:   true,
	})
	r.logger.Info("provisioned new device",
		slog.String("user_id", user.ID),
		slog.String("device_id", created.ID),
		slog.String("os_family", created.OSFamily),
		slog.String("device_class", created.DeviceClass),
	)

	return created, nil
}

func displayAttributes(c signals.ClientSignals) repositories.DisplayAttributes {
	attrs := repositories.DisplayAttributes{
		ScreenResolution: c.ScreenResolution,
		BrowserTimezone:  c.BrowserTimezone,
		Language:         c.Language,
	}

	if c.HardwareConcurrency != "" {
		if n, err := strconv.Atoi(c.HardwareConcurrency); err == nil {
			attrs.HardwareConcurrency = &n
		}
	}
	if c.DeviceMemory != "" {
		if f, err := strconv.ParseFloat(c.DeviceMemory, 64); err == nil {
			attrs.DeviceMemory = &f
		}
	}

	return attrs
}

// truncate cuts s to at most max bytes without splitting a multi-byte rune
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
