package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/floretapp/floret/internal/database"
	"github.com/floretapp/floret/internal/models"
	"github.com/jackc/pgx/v5"
)

// Child-sighting access for the device ledger: NetworkOrigin and
// BrowserSighting rows owned by a device.

const originColumns = `id, device_id, origin, access_count,
	first_seen_at, last_seen_at, blocked, created_at, deleted_at`

const browserColumns = `id, device_id, browser_family, user_agent, access_count,
	first_seen_at, last_seen_at, created_at, deleted_at`

func scanOriginRow(row rowScanner) (*models.NetworkOrigin, error) {
	var o models.NetworkOrigin

	err := row.Scan(
		&o.ID, &o.DeviceID, &o.Origin, &o.AccessCount,
		&o.FirstSeenAt, &o.LastSeenAt, &o.Blocked, &o.CreatedAt, &o.DeletedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &o, nil
}

func scanBrowserRow(row rowScanner) (*models.BrowserSighting, error) {
	var b models.BrowserSighting

	err := row.Scan(
		&b.ID, &b.DeviceID, &b.BrowserFamily, &b.UserAgent, &b.AccessCount,
		&b.FirstSeenAt, &b.LastSeenAt, &b.CreatedAt, &b.DeletedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &b, nil
}

// HasOrigin reports whether a device has previously recorded an origin.
// This is the corroboration check behind fingerprint reuse.
func (r *DeviceRepository) HasOrigin(ctx context.Context, deviceID, origin string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM network_origins
			WHERE device_id = $1 AND origin = $2 AND deleted_at IS NULL
		)
	`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, deviceID, origin).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check origin: %w", database.MapPostgresError(err))
	}

	return exists, nil
}

// UpsertOrigin records a sighting of origin for a device: creates the row on
// first sight, otherwise bumps its counters. The ON CONFLICT clause makes
// concurrent first sightings race-safe without surfacing a conflict.
func (r *DeviceRepository) UpsertOrigin(ctx context.Context, deviceID, origin string) error {
	query := `
		INSERT INTO network_origins (device_id, origin)
		VALUES ($1, $2)
		ON CONFLICT (device_id, origin) DO UPDATE
		SET last_seen_at = GREATEST(network_origins.last_seen_at, NOW()),
			access_count = network_origins.access_count + 1
	`

	if _, err := r.pool.Exec(ctx, query, deviceID, origin); err != nil {
		return fmt.Errorf("failed to upsert origin: %w", database.MapPostgresError(err))
	}

	return nil
}

// UpsertBrowser records a sighting of a browser family for a device, keeping
// the latest full user-agent string. Race-safe like UpsertOrigin.
func (r *DeviceRepository) UpsertBrowser(ctx context.Context, deviceID, browserFamily, userAgent string) error {
	query := `
		INSERT INTO browser_sightings (device_id, browser_family, user_agent)
		VALUES ($1, $2, $3)
		ON CONFLICT (device_id, browser_family) DO UPDATE
		SET last_seen_at = GREATEST(browser_sightings.last_seen_at, NOW()),
			access_count = browser_sightings.access_count + 1,
			user_agent = EXCLUDED.user_agent
	`

	if _, err := r.pool.Exec(ctx, query, deviceID, browserFamily, userAgent); err != nil {
		return fmt.Errorf("failed to upsert browser sighting: %w", database.MapPostgresError(err))
	}

	return nil
}

// ListOrigins returns a device's undeleted origins, most recently seen first
func (r *DeviceRepository) ListOrigins(ctx context.Context, deviceID string) ([]*models.NetworkOrigin, error) {
	query := `
		SELECT ` + originColumns + `
		FROM network_origins
		WHERE device_id = $1 AND deleted_at IS NULL
		ORDER BY last_seen_at DESC
	`

	rows, err := r.pool.Query(ctx, query, deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list origins: %w", database.MapPostgresError(err))
	}
	defer rows.Close()

	origins := make([]*models.NetworkOrigin, 0)
	for rows.Next() {
		origin, err := scanOriginRow(rows)
		if err != nil {
			return nil, err
		}
		origins = append(origins, origin)
	}

	return origins, rowsErr(rows)
}

// ListBrowsers returns a device's undeleted browser sightings, most recently seen first
func (r *DeviceRepository) ListBrowsers(ctx context.Context, deviceID string) ([]*models.BrowserSighting, error) {
	query := `
		SELECT ` + browserColumns + `
		FROM browser_sightings
		WHERE device_id = $1 AND deleted_at IS NULL
		ORDER BY last_seen_at DESC
	`

	rows, err := r.pool.Query(ctx, query, deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list browser sightings: %w", database.MapPostgresError(err))
	}
	defer rows.Close()

	browsers := make([]*models.BrowserSighting, 0)
	for rows.Next() {
		browser, err := scanBrowserRow(rows)
		if err != nil {
			return nil, err
		}
		browsers = append(browsers, browser)
	}

	return browsers, rowsErr(rows)
}

// ToggleOriginBlock flips the block flag on one origin, scoped through the
// device to its owning account
func (r *DeviceRepository) ToggleOriginBlock(ctx context.Context, userID, originID string) (*models.NetworkOrigin, error) {
	query := `
		UPDATE network_origins o
		SET blocked = NOT o.blocked
		FROM devices d
		WHERE o.id = $2 AND o.device_id = d.id AND d.user_id = $1
			AND o.deleted_at IS NULL AND d.deleted_at IS NULL
		RETURNING o.id, o.device_id, o.origin, o.access_count,
			o.first_seen_at, o.last_seen_at, o.blocked, o.created_at, o.deleted_at
	`

	return scanOriginRow(r.pool.QueryRow(ctx, query, userID, originID))
}

// LatestOrigin returns the most recently seen origin value for a device, or
// empty when none is recorded
func (r *DeviceRepository) LatestOrigin(ctx context.Context, deviceID string) (string, error) {
	query := `
		SELECT origin FROM network_origins
		WHERE device_id = $1 AND deleted_at IS NULL
		ORDER BY last_seen_at DESC
		LIMIT 1
	`

	var origin string
	err := r.pool.QueryRow(ctx, query, deviceID).Scan(&origin)
	if err != nil {
		if errors.Is(database.MapPostgresError(err), models.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("failed to get latest origin: %w", err)
	}

	return origin, nil
}

func rowsErr(rows pgx.Rows) error {
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating rows: %w", err)
	}
	return nil
}
