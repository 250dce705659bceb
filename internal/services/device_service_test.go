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

func newTestDeviceService(repo *MockDeviceRepository) *DeviceService {
	logger := slog.Default()
	return NewDeviceService(repo, logger, pkglogger.NewAuditLogger(logger))
}

func TestDeviceService_ToggleTrust_GrantsTrust(t *testing.T) {
	device := NewTestDevice("device123", "user123")

	repo := &MockDeviceRepository{
		GetByIDFunc: func(ctx context.Context, userID, deviceID string) (*models.Device, error) {
			return device, nil
		},
		SetTrustedFunc: func(ctx context.Context, userID, deviceID string, trusted bool) (*models.Device, error) {
			assert.True(t, trusted)
			updated := *device
			updated.Trusted = true
			return &updated, nil
		},
	}

	updated, err := newTestDeviceService(repo).ToggleTrust(context.Background(), "user123", "device123")

	require.NoError(t, err)
	assert.True(t, updated.Trusted)
}

func TestDeviceService_ToggleTrust_RevokesTrust(t *testing.T) {
	device := NewTestDevice("device123", "user123")
	device.Trusted = true

	repo := &MockDeviceRepository{
		GetByIDFunc: func(ctx context.Context, userID, deviceID string) (*models.Device, error) {
			return device, nil
		},
		SetTrustedFunc: func(ctx context.Context, userID, deviceID string, trusted bool) (*models.Device, error) {
			assert.False(t, trusted)
			updated := *device
			updated.Trusted = false
			return &updated, nil
		},
	}

	updated, err := newTestDeviceService(repo).ToggleTrust(context.Background(), "user123", "device123")

	require.NoError(t, err)
	assert.False(t, updated.Trusted)
}

func TestDeviceService_ToggleTrust_BlockedDevice(t *testing.T) {
	device := NewTestDevice("device123", "user123")
	device.Blocked = true

	repo := &MockDeviceRepository{
		GetByIDFunc: func(ctx context.Context, userID, deviceID string) (*models.Device, error) {
			return device, nil
		},
		SetTrustedFunc: func(ctx context.Context, userID, deviceID string, trusted bool) (*models.Device, error) {
			t.Fatal("blocked device must not reach SetTrusted")
			return nil, nil
		},
	}

	_, err := newTestDeviceService(repo).ToggleTrust(context.Background(), "user123", "device123")

	assert.ErrorIs(t, err, models.ErrDeviceBlocked)
}

func TestDeviceService_MarkTrusted_NoOpWhenBlocked(t *testing.T) {
	device := NewTestDevice("device123", "user123")
	device.Blocked = true

	repo := &MockDeviceRepository{
		GetByIDFunc: func(ctx context.Context, userID, deviceID string) (*models.Device, error) {
			return device, nil
		},
		SetTrustedFunc: func(ctx context.Context, userID, deviceID string, trusted bool) (*models.Device, error) {
			t.Fatal("blocked device must stay blocked")
			return nil, nil
		},
	}

	err := newTestDeviceService(repo).MarkTrusted(context.Background(), "user123", "device123")

	assert.NoError(t, err, "implicit trust on a blocked device is silently skipped")
}

func TestDeviceService_MarkTrusted_NoOpWhenAlreadyTrusted(t *testing.T) {
	device := NewTestDevice("device123", "user123")
	device.Trusted = true

	trustCalls := 0
	repo := &MockDeviceRepository{
		GetByIDFunc: func(ctx context.Context, userID, deviceID string) (*models.Device, error) {
			return device, nil
		},
		SetTrustedFunc: func(ctx context.Context, userID, deviceID string, trusted bool) (*models.Device, error) {
			trustCalls++
			return device, nil
		},
	}

	err := newTestDeviceService(repo).MarkTrusted(context.Background(), "user123", "device123")

	require.NoError(t, err)
	assert.Zero(t, trustCalls)
}

func TestDeviceService_MarkTrusted_GrantsTrust(t *testing.T) {
	device := NewTestDevice("device123", "user123")

	var granted bool
	repo := &MockDeviceRepository{
		GetByIDFunc: func(ctx context.Context, userID, deviceID string) (*models.Device, error) {
			return device, nil
		},
		SetTrustedFunc: func(ctx context.Context, userID, deviceID string, trusted bool) (*models.Device, error) {
			granted = trusted
			updated := *device
			updated.Trusted = trusted
			return &updated, nil
		},
	}

	err := newTestDeviceService(repo).MarkTrusted(context.Background(), "user123", "device123")

	require.NoError(t, err)
	assert.True(t, granted)
}

func TestDeviceService_Block_ClearsTrust(t *testing.T) {
	// The repository performs block+untrust in one statement; the service
	// surfaces the combined result.
	device := NewTestDevice("device123", "user123")
	device.Trusted = true

	repo := &MockDeviceRepository{
		BlockFunc: func(ctx context.Context, userID, deviceID string) (*models.Device, error) {
			updated := *device
			updated.Blocked = true
			updated.Trusted = false
			return &updated, nil
		},
	}

	blocked, err := newTestDeviceService(repo).Block(context.Background(), "user123", "device123")

	require.NoError(t, err)
	assert.True(t, blocked.Blocked)
	assert.False(t, blocked.Trusted)
}

func TestDeviceService_Unblock_ReturnsUntrusted(t *testing.T) {
	device := NewTestDevice("device123", "user123")

	repo := &MockDeviceRepository{
		UnblockFunc: func(ctx context.Context, userID, deviceID string) (*models.Device, error) {
			updated := *device
			updated.Blocked = false
			updated.Trusted = false
			return &updated, nil
		},
	}

	updated, err := newTestDeviceService(repo).Unblock(context.Background(), "user123", "device123")

	require.NoError(t, err)
	assert.False(t, updated.Blocked)
	assert.False(t, updated.Trusted, "unblocking never restores prior trust")
}

func TestDeviceService_GetDevice_IncludesHistory(t *testing.T) {
	device := NewTestDevice("device123", "user123")

	repo := &MockDeviceRepository{
		GetByIDFunc: func(ctx context.Context, userID, deviceID string) (*models.Device, error) {
			return device, nil
		},
		ListOriginsFunc: func(ctx context.Context, deviceID string) ([]*models.NetworkOrigin, error) {
			return []*models.NetworkOrigin{{ID: "origin1", DeviceID: deviceID, Origin: "203.0.113.0"}}, nil
		},
		ListBrowsersFunc: func(ctx context.Context, deviceID string) ([]*models.BrowserSighting, error) {
			return []*models.BrowserSighting{{ID: "browser1", DeviceID: deviceID, BrowserFamily: "Chrome"}}, nil
		},
	}

	detail, err := newTestDeviceService(repo).GetDevice(context.Background(), "user123", "device123")

	require.NoError(t, err)
	assert.Len(t, detail.Origins, 1)
	assert.Len(t, detail.Browsers, 1)
}

func TestDeviceService_SweepStale_UsesThreshold(t *testing.T) {
	var cutoff time.Time
	repo := &MockDeviceRepository{
		SweepStaleFunc: func(ctx context.Context, before time.Time) (int64, error) {
			cutoff = before
			return 3, nil
		},
	}

	removed, err := newTestDeviceService(repo).SweepStale(context.Background(), 90*24*time.Hour)

	require.NoError(t, err)
	assert.Equal(t, int64(3), removed)
	assert.WithinDuration(t, time.Now().Add(-90*24*time.Hour), cutoff, time.Minute)
}

func TestDeviceService_SweepStale_NegativeThresholdDisables(t *testing.T) {
	repo := &MockDeviceRepository{
		SweepStaleFunc: func(ctx context.Context, before time.Time) (int64, error) {
			t.Fatal("disabled sweep must not touch storage")
			return 0, nil
		},
	}

	removed, err := newTestDeviceService(repo).SweepStale(context.Background(), -1)

	require.NoError(t, err)
	assert.Zero(t, removed)
}
