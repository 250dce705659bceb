package services

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/floretapp/floret/internal/models"
	"github.com/floretapp/floret/internal/signals"
	pkglogger "github.com/floretapp/floret/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestResolver(repo *MockDeviceRepository) *Resolver {
	logger := slog.Default()
	return NewResolver(repo, logger, pkglogger.NewAuditLogger(logger))
}

func fullSignalBundle(token string) signals.Bundle {
	return signals.Bundle{
		DeviceToken: token,
		Server: signals.ServerSignals{
			Origin:        "203.0.113.0",
			UserAgent:     "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 Chrome/120.0.0.0 Safari/537.36",
			BrowserFamily: "Chrome",
			OSFamily:      "Mac OS X",
			DeviceClass:   "desktop",
		},
		Client: signals.ClientSignals{
			Platform:            "MacIntel",
			WebGL:               "ANGLE (Apple, Apple M1, OpenGL 4.1)",
			HardwareConcurrency: "8",
			DeviceMemory:        "8",
			ScreenResolution:    "2560x1440",
			BrowserTimezone:     "America/Denver",
			Language:            "en-US",
		},
	}
}

func TestResolver_Resolve_TokenContinuity(t *testing.T) {
	user := NewTestUser("user123", "user@example.com")
	existing := NewTestDevice("device123", user.ID)
	existing.AccessCount = 5

	repo := &MockDeviceRepository{
		GetByTokenFunc: func(ctx context.Context, userID, token string) (*models.Device, error) {
			assert.Equal(t, user.ID, userID)
			assert.Equal(t, existing.DeviceToken, token)
			return existing, nil
		},
	}

	resolver := newTestResolver(repo)

	device, isNew, err := resolver.Resolve(context.Background(), user, fullSignalBundle(existing.DeviceToken))

	require.NoError(t, err)
	require.NotNil(t, device)
	assert.False(t, isNew)
	assert.Equal(t, "device123", device.ID)
	assert.Equal(t, 6, device.AccessCount, "reuse bumps the in-memory access count")
}

func TestResolver_Resolve_TokenBypassesFingerprint(t *testing.T) {
	// A changed GPU string must not break continuity when the token matches.
	user := NewTestUser("user123", "user@example.com")
	existing := NewTestDevice("device123", user.ID)

	fingerprintQueried := false
	repo := &MockDeviceRepository{
		GetByTokenFunc: func(ctx context.Context, userID, token string) (*models.Device, error) {
			return existing, nil
		},
		ListByFingerprintFunc: func(ctx context.Context, userID, fingerprint string) ([]*models.Device, error) {
			fingerprintQueried = true
			return nil, nil
		},
	}

	sig := fullSignalBundle(existing.DeviceToken)
	sig.Client.WebGL = "ANGLE (NVIDIA, GeForce RTX 4090, OpenGL 4.6)"

	device, isNew, err := newTestResolver(repo).Resolve(context.Background(), user, sig)

	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, existing.ID, device.ID)
	assert.False(t, fingerprintQueried, "token match must skip fingerprint lookup")
}

func TestResolver_Resolve_AnonymousTraffic(t *testing.T) {
	// No token and no stable client signals: nothing to identify, no device row.
	user := NewTestUser("user123", "user@example.com")

	created := false
	repo := &MockDeviceRepository{
		CreateFunc: func(ctx context.Context, d *models.Device) (*models.Device, error) {
			created = true
			return d, nil
		},
	}

	sig := fullSignalBundle("")
	sig.Client.Platform = ""
	sig.Client.WebGL = ""

	device, isNew, err := newTestResolver(repo).Resolve(context.Background(), user, sig)

	require.NoError(t, err)
	assert.Nil(t, device)
	assert.False(t, isNew)
	assert.False(t, created, "anonymous traffic never provisions a device")
}

func TestResolver_Resolve_StaleTokenFallsThrough(t *testing.T) {
	// A token for a forgotten device is treated as absent, not as an error.
	user := NewTestUser("user123", "user@example.com")

	repo := &MockDeviceRepository{
		GetByTokenFunc: func(ctx context.Context, userID, token string) (*models.Device, error) {
			return nil, models.ErrNotFound
		},
		ListByFingerprintFunc: func(ctx context.Context, userID, fingerprint string) ([]*models.Device, error) {
			return nil, nil
		},
		CreateFunc: func(ctx context.Context, d *models.Device) (*models.Device, error) {
			d.ID = "device-new"
			return d, nil
		},
	}

	device, isNew, err := newTestResolver(repo).Resolve(context.Background(), user, fullSignalBundle("stale-token"))

	require.NoError(t, err)
	require.NotNil(t, device)
	assert.True(t, isNew)
	assert.Equal(t, "device-new", device.ID)
}

func TestResolver_Resolve_FingerprintWithCorroboration(t *testing.T) {
	// Two candidate devices share a fingerprint; only the one that has seen
	// this network origin is reused.
	user := NewTestUser("user123", "user@example.com")
	d1 := NewTestDevice("device1", user.ID)
	d2 := NewTestDevice("device2", user.ID)

	repo := &MockDeviceRepository{
		ListByFingerprintFunc: func(ctx context.Context, userID, fingerprint string) ([]*models.Device, error) {
			return []*models.Device{d1, d2}, nil
		},
		HasOriginFunc: func(ctx context.Context, deviceID, origin string) (bool, error) {
			return deviceID == "device2", nil
		},
	}

	device, isNew, err := newTestResolver(repo).Resolve(context.Background(), user, fullSignalBundle(""))

	require.NoError(t, err)
	require.NotNil(t, device)
	assert.False(t, isNew)
	assert.Equal(t, "device2", device.ID)
}

func TestResolver_Resolve_FingerprintWithoutCorroboration(t *testing.T) {
	// Same hardware signals seen from a never-before-seen origin: provision a
	// distinct device rather than silently merging.
	user := NewTestUser("user123", "user@example.com")
	d1 := NewTestDevice("device1", user.ID)

	repo := &MockDeviceRepository{
		ListByFingerprintFunc: func(ctx context.Context, userID, fingerprint string) ([]*models.Device, error) {
			return []*models.Device{d1}, nil
		},
		HasOriginFunc: func(ctx context.Context, deviceID, origin string) (bool, error) {
			return false, nil
		},
		CreateFunc: func(ctx context.Context, d *models.Device) (*models.Device, error) {
			d.ID = "device-new"
			return d, nil
		},
	}

	device, isNew, err := newTestResolver(repo).Resolve(context.Background(), user, fullSignalBundle(""))

	require.NoError(t, err)
	require.NotNil(t, device)
	assert.True(t, isNew)
	assert.NotEqual(t, d1.ID, device.ID)
}

func TestResolver_Resolve_ProvisionPopulatesIdentity(t *testing.T) {
	user := NewTestUser("user123", "user@example.com")

	var createdDevice *models.Device
	repo := &MockDeviceRepository{
		ListByFingerprintFunc: func(ctx context.Context, userID, fingerprint string) ([]*models.Device, error) {
			return nil, nil
		},
		CreateFunc: func(ctx context.Context, d *models.Device) (*models.Device, error) {
			d.ID = "device-new"
			createdDevice = d
			return d, nil
		},
	}

	sig := fullSignalBundle("")
	_, isNew, err := newTestResolver(repo).Resolve(context.Background(), user, sig)

	require.NoError(t, err)
	assert.True(t, isNew)
	require.NotNil(t, createdDevice)
	assert.NotEmpty(t, createdDevice.DeviceToken, "provisioning mints a fresh token")
	assert.NotEmpty(t, createdDevice.DeviceFingerprint)
	assert.Equal(t, "Mac OS X", createdDevice.OSFamily)
	assert.Equal(t, "desktop", createdDevice.DeviceClass)
	assert.Equal(t, "MacIntel", createdDevice.Platform)
	require.NotNil(t, createdDevice.HardwareConcurrency)
	assert.Equal(t, 8, *createdDevice.HardwareConcurrency)
	require.NotNil(t, createdDevice.DeviceMemory)
	assert.Equal(t, 8.0, *createdDevice.DeviceMemory)
}

func TestResolver_Resolve_SightingConflictSwallowed(t *testing.T) {
	// A concurrent first sighting raises a unique violation; the resolver
	// treats it as already-recorded.
	user := NewTestUser("user123", "user@example.com")
	existing := NewTestDevice("device123", user.ID)

	repo := &MockDeviceRepository{
		GetByTokenFunc: func(ctx context.Context, userID, token string) (*models.Device, error) {
			return existing, nil
		},
		UpsertOriginFunc: func(ctx context.Context, deviceID, origin string) error {
			return models.ErrConflict
		},
	}

	device, _, err := newTestResolver(repo).Resolve(context.Background(), user, fullSignalBundle(existing.DeviceToken))

	require.NoError(t, err)
	assert.Equal(t, existing.ID, device.ID)
}

func TestTruncate_RuneBoundary(t *testing.T) {
	// A device-reported WebGL string can carry multi-byte characters; the cut
	// must never leave a partial rune behind.
	long := strings.Repeat("a", 254) + "é" // the 255-byte cut lands inside the é

	got := truncate(long, 255)

	assert.Equal(t, strings.Repeat("a", 254), got)
	assert.True(t, utf8.ValidString(got))

	assert.Equal(t, "short", truncate("short", 255))
	assert.Equal(t, strings.Repeat("b", 255), truncate(strings.Repeat("b", 256), 255))
}
