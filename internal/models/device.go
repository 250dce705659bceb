package models

import (
	"fmt"
	"time"
)

// Device is one hardware/browser install a user has interacted from.
//
// DeviceToken is the continuity-cookie credential: opaque, unguessable, unique.
// DeviceFingerprint is derived from stable signals, is not secret, and is not
// unique; distinct installs sharing hardware characteristics may collide.
type Device struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`

	DeviceToken       string `json:"-"` // Never expose the continuity token
	DeviceFingerprint string `json:"-"`
	DeviceName        string `json:"device_name"` // User can customize

	// Stable characteristics (fingerprint inputs)
	OSFamily    string `json:"os_family"`
	DeviceClass string `json:"device_class"` // desktop, mobile, tablet
	Platform    string `json:"platform"`     // MacIntel, Win32, etc.
	GPUVendor   string `json:"gpu_vendor"`

	// Volatile display attributes, never part of the fingerprint
	HardwareConcurrency *int     `json:"hardware_concurrency,omitempty"`
	DeviceMemory        *float64 `json:"device_memory,omitempty"`
	ScreenResolution    string   `json:"screen_resolution"`
	BrowserTimezone     string   `json:"browser_timezone"`
	Language            string   `json:"language"`

	FirstSeenAt time.Time `json:"first_seen_at"`
	LastSeenAt  time.Time `json:"last_seen_at"`
	AccessCount int       `json:"access_count"`

	Trusted bool `json:"trusted"`
	Blocked bool `json:"blocked"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"-"`
}

// DisplayName is a human-readable device name.
func (d *Device) DisplayName() string {
	if d.DeviceName != "" {
		return d.DeviceName
	}
	return fmt.Sprintf("%s %s", d.OSFamily, d.DeviceClass)
}

// NetworkOrigin is one privacy-normalized network origin observed for a device.
// Origin blocks are finer-grained than device-level blocks and independent of them.
type NetworkOrigin struct {
	ID          string     `json:"id"`
	DeviceID    string     `json:"device_id"`
	Origin      string     `json:"origin"` // /24 (IPv4) or /48 (IPv6) network address
	AccessCount int        `json:"access_count"`
	FirstSeenAt time.Time  `json:"first_seen_at"`
	LastSeenAt  time.Time  `json:"last_seen_at"`
	Blocked     bool       `json:"blocked"`
	CreatedAt   time.Time  `json:"created_at"`
	DeletedAt   *time.Time `json:"-"`
}

// BrowserSighting is one browser family observed for a device, holding the
// latest full user-agent string seen for that family.
type BrowserSighting struct {
	ID            string     `json:"id"`
	DeviceID      string     `json:"device_id"`
	BrowserFamily string     `json:"browser_family"`
	UserAgent     string     `json:"user_agent"`
	AccessCount   int        `json:"access_count"`
	FirstSeenAt   time.Time  `json:"first_seen_at"`
	LastSeenAt    time.Time  `json:"last_seen_at"`
	CreatedAt     time.Time  `json:"created_at"`
	DeletedAt     *time.Time `json:"-"`
}
