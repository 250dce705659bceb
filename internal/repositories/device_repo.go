package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/floretapp/floret/internal/database"
	"github.com/floretapp/floret/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const deviceColumns = `id, user_id, device_token, device_fingerprint, device_name,
	os_family, device_class, platform, gpu_vendor,
	hardware_concurrency, device_memory, screen_resolution, browser_timezone, language,
	first_seen_at, last_seen_at, access_count, trusted, blocked,
	created_at, updated_at, deleted_at`

// DisplayAttributes are the volatile fields refreshed on every sighting.
// They are never part of the fingerprint.
type DisplayAttributes struct {
	HardwareConcurrency *int
	DeviceMemory        *float64
	ScreenResolution    string
	BrowserTimezone     string
	Language            string
}

// DeviceRepository handles device ledger data access. Default queries exclude
// tombstoned rows; methods that include them say so.
type DeviceRepository struct {
	pool *pgxpool.Pool
}

// NewDeviceRepository creates a new DeviceRepository
func NewDeviceRepository(db *database.DB) *DeviceRepository {
	return &DeviceRepository{pool: db.Pool}
}

func scanDeviceRow(row rowScanner) (*models.Device, error) {
	var d models.Device

	err := row.Scan(
		&d.ID, &d.UserID, &d.DeviceToken, &d.DeviceFingerprint, &d.DeviceName,
		&d.OSFamily, &d.DeviceClass, &d.Platform, &d.GPUVendor,
		&d.HardwareConcurrency, &d.DeviceMemory, &d.ScreenResolution, &d.BrowserTimezone, &d.Language,
		&d.FirstSeenAt, &d.LastSeenAt, &d.AccessCount, &d.Trusted, &d.Blocked,
		&d.CreatedAt, &d.UpdatedAt, &d.DeletedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &d, nil
}

func scanDeviceRows(rows pgx.Rows) ([]*models.Device, error) {
	defer rows.Close()

	devices := make([]*models.Device, 0)

	for rows.Next() {
		device, err := scanDeviceRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}
		devices = append(devices, device)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating device rows: %w", err)
	}

	return devices, nil
}

// Create inserts a new device with its initial attributes. AccessCount starts at 1.
func (r *DeviceRepository) Create(ctx context.Context, d *models.Device) (*models.Device, error) {
	query := `
		INSERT INTO devices (user_id, device_token, device_fingerprint,
			os_family, device_class, platform, gpu_vendor,
			hardware_concurrency, device_memory, screen_resolution, browser_timezone, language)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING ` + deviceColumns

	created, err := scanDeviceRow(r.pool.QueryRow(ctx, query,
		d.UserID, d.DeviceToken, d.DeviceFingerprint,
		d.OSFamily, d.DeviceClass, d.Platform, d.GPUVendor,
		d.HardwareConcurrency, d.DeviceMemory, d.ScreenResolution, d.BrowserTimezone, d.Language,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create device: %w", err)
	}

	return created, nil
}

// GetByToken retrieves an undeleted device by its continuity token, scoped to one account
func (r *DeviceRepository) GetByToken(ctx context.Context, userID, token string) (*models.Device, error) {
	query := `
		SELECT ` + deviceColumns + `
		FROM devices
		WHERE user_id = $1 AND device_token = $2 AND deleted_at IS NULL
	`

	return scanDeviceRow(r.pool.QueryRow(ctx, query, userID, token))
}

// GetByID retrieves an undeleted device scoped to one account
func (r *DeviceRepository) GetByID(ctx context.Context, userID, deviceID string) (*models.Device, error) {
	query := `
		SELECT ` + deviceColumns + `
		FROM devices
		WHERE user_id = $1 AND id = $2 AND deleted_at IS NULL
	`

	return scanDeviceRow(r.pool.QueryRow(ctx, query, userID, deviceID))
}

// ListByUser returns all undeleted devices for an account, most recently seen first
func (r *DeviceRepository) ListByUser(ctx context.Context, userID string) ([]*models.Device, error) {
	query := `
		SELECT ` + deviceColumns + `
		FROM devices
		WHERE user_id = $1 AND deleted_at IS NULL
		ORDER BY last_seen_at DESC
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", database.MapPostgresError(err))
	}

	return scanDeviceRows(rows)
}

// ListByFingerprint returns undeleted devices for an account sharing a fingerprint.
// Fingerprints are not unique, so this can return several devices.
func (r *DeviceRepository) ListByFingerprint(ctx context.Context, userID, fingerprint string) ([]*models.Device, error) {
	query := `
		SELECT ` + deviceColumns + `
		FROM devices
		WHERE user_id = $1 AND device_fingerprint = $2 AND deleted_at IS NULL
		ORDER BY last_seen_at DESC
	`

	rows, err := r.pool.Query(ctx, query, userID, fingerprint)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices by fingerprint: %w", database.MapPostgresError(err))
	}

	return scanDeviceRows(rows)
}

// Refresh bumps activity counters and overwrites the volatile display fields.
// Concurrent refreshes tolerate lost updates; last_seen_at only moves forward.
func (r *DeviceRepository) Refresh(ctx context.Context, deviceID string, attrs DisplayAttributes) error {
	query := `
		UPDATE devices
		SET last_seen_at = GREATEST(last_seen_at, NOW()),
			access_count = access_count + 1,
			hardware_concurrency = $2,
			device_memory = $3,
			screen_resolution = $4,
			browser_timezone = $5,
			language = $6,
			updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`

	_, err := r.pool.Exec(ctx, query, deviceID,
		attrs.HardwareConcurrency, attrs.DeviceMemory,
		attrs.ScreenResolution, attrs.BrowserTimezone, attrs.Language)
	if err != nil {
		return fmt.Errorf("failed to refresh device: %w", database.MapPostgresError(err))
	}

	return nil
}

// Rename sets the user-chosen device name
func (r *DeviceRepository) Rename(ctx context.Context, userID, deviceID, name string) error {
	query := `
		UPDATE devices
		SET device_name = $3, updated_at = NOW()
		WHERE user_id = $1 AND id = $2 AND deleted_at IS NULL
	`

	result, err := r.pool.Exec(ctx, query, userID, deviceID, name)
	if err != nil {
		return fmt.Errorf("failed to rename device: %w", database.MapPostgresError(err))
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

// SetTrusted sets the trusted flag. Blocked devices cannot be trusted.
func (r *DeviceRepository) SetTrusted(ctx context.Context, userID, deviceID string, trusted bool) (*models.Device, error) {
	query := `
		UPDATE devices
		SET trusted = $3, updated_at = NOW()
		WHERE user_id = $1 AND id = $2 AND blocked = FALSE AND deleted_at IS NULL
		RETURNING ` + deviceColumns

	device, err := scanDeviceRow(r.pool.QueryRow(ctx, query, userID, deviceID, trusted))
	if err != nil {
		return nil, err
	}

	return device, nil
}

// Block sets blocked and clears trusted in one statement. Already-blocked
// devices are a no-op, keeping the operation idempotent.
func (r *DeviceRepository) Block(ctx context.Context, userID, deviceID string) (*models.Device, error) {
	query := `
		UPDATE devices
		SET blocked = TRUE, trusted = FALSE, updated_at = NOW()
		WHERE user_id = $1 AND id = $2 AND deleted_at IS NULL
		RETURNING ` + deviceColumns

	return scanDeviceRow(r.pool.QueryRow(ctx, query, userID, deviceID))
}

// Unblock clears the blocked flag. The device comes back untrusted.
func (r *DeviceRepository) Unblock(ctx context.Context, userID, deviceID string) (*models.Device, error) {
	query := `
		UPDATE devices
		SET blocked = FALSE, updated_at = NOW()
		WHERE user_id = $1 AND id = $2 AND deleted_at IS NULL
		RETURNING ` + deviceColumns

	return scanDeviceRow(r.pool.QueryRow(ctx, query, userID, deviceID))
}

// SoftDelete tombstones a device (user-initiated forget)
func (r *DeviceRepository) SoftDelete(ctx context.Context, userID, deviceID string) error {
	query := `
		UPDATE devices
		SET deleted_at = NOW(), updated_at = NOW()
		WHERE user_id = $1 AND id = $2 AND deleted_at IS NULL
	`

	result, err := r.pool.Exec(ctx, query, userID, deviceID)
	if err != nil {
		return fmt.Errorf("failed to forget device: %w", database.MapPostgresError(err))
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

// HardDelete removes a device and, via cascade, its origin and browser children
func (r *DeviceRepository) HardDelete(ctx context.Context, userID, deviceID string) error {
	query := `DELETE FROM devices WHERE user_id = $1 AND id = $2`

	result, err := r.pool.Exec(ctx, query, userID, deviceID)
	if err != nil {
		return fmt.Errorf("failed to delete device: %w", database.MapPostgresError(err))
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

// SweepStale tombstones untrusted, unblocked devices last seen before the
// cutoff. Trusted and blocked devices are exempt.
func (r *DeviceRepository) SweepStale(ctx context.Context, before time.Time) (int64, error) {
	query := `
		UPDATE devices
		SET deleted_at = NOW(), updated_at = NOW()
		WHERE trusted = FALSE AND blocked = FALSE
			AND last_seen_at < $1 AND deleted_at IS NULL
	`

	result, err := r.pool.Exec(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep stale devices: %w", database.MapPostgresError(err))
	}

	return result.RowsAffected(), nil
}
