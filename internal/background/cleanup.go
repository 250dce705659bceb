package background

import (
	"context"
	"log/slog"
	"time"

	"github.com/floretapp/floret/internal/services"
)

// SweepManager periodically tombstones stale devices and purges long-expired
// secrets. Trusted or blocked devices are exempt from the device sweep.
type SweepManager struct {
	deviceService *services.DeviceService
	secretService *services.SecretService
	logger        *slog.Logger
	interval      time.Duration
	staleAfter    time.Duration
	stopCh        chan struct{}
}

// NewSweepManager creates a new sweep manager
func NewSweepManager(
	deviceService *services.DeviceService,
	secretService *services.SecretService,
	logger *slog.Logger,
	interval time.Duration,
	staleAfter time.Duration,
) *SweepManager {
	return &SweepManager{
		deviceService: deviceService,
		secretService: secretService,
		logger:        logger,
		interval:      interval,
		staleAfter:    staleAfter,
		stopCh:        make(chan struct{}),
	}
}

// Start begins the periodic sweep
func (sm *SweepManager) Start(ctx context.Context) {
	ticker := time.NewTicker(sm.interval)
	defer ticker.Stop()

	// Run immediately on startup
	sm.runSweep(ctx)

	for {
		select {
		case <-ticker.C:
			sm.runSweep(ctx)
		case <-sm.stopCh:
			sm.logger.Info("sweep manager stopped")
			return
		case <-ctx.Done():
			sm.logger.Info("sweep manager context cancelled")
			return
		}
	}
}

func (sm *SweepManager) runSweep(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if _, err := sm.deviceService.SweepStale(sweepCtx, sm.staleAfter); err != nil {
		sm.logger.Error("stale device sweep failed", slog.Any("error", err))
	}

	purged, err := sm.secretService.PurgeExpired(sweepCtx)
	if err != nil {
		sm.logger.Error("expired secret purge failed", slog.Any("error", err))
		return
	}
	if purged > 0 {
		sm.logger.Info("purged expired secrets", slog.Int64("count", purged))
	}
}

// Stop signals the sweep manager to stop
func (sm *SweepManager) Stop() {
	close(sm.stopCh)
}
