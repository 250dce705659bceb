package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/floretapp/floret/internal/auth"
	"github.com/floretapp/floret/internal/models"
	"github.com/floretapp/floret/internal/services"
	pkghttp "github.com/floretapp/floret/pkg/http"
	"github.com/go-chi/chi/v5"
)

// DeviceService defines the device management operations the handler depends on
type DeviceService interface {
	ListDevices(ctx context.Context, userID string) ([]*models.Device, error)
	GetDevice(ctx context.Context, userID, deviceID string) (*services.DeviceDetail, error)
	ToggleTrust(ctx context.Context, userID, deviceID string) (*models.Device, error)
	Block(ctx context.Context, userID, deviceID string) (*models.Device, error)
	Unblock(ctx context.Context, userID, deviceID string) (*models.Device, error)
	Forget(ctx context.Context, userID, deviceID string) error
	Delete(ctx context.Context, userID, deviceID string) error
	Rename(ctx context.Context, userID, deviceID, name string) error
	ToggleOriginBlock(ctx context.Context, userID, originID string) (*models.NetworkOrigin, error)
}

// DeviceHandler handles device management requests. Every operation is scoped
// to the authenticated account.
type DeviceHandler struct {
	deviceService DeviceService
}

// NewDeviceHandler creates a new DeviceHandler
func NewDeviceHandler(deviceService DeviceService) *DeviceHandler {
	return &DeviceHandler{deviceService: deviceService}
}

// DeviceResponse represents a device in HTTP responses
type DeviceResponse struct {
	ID               string `json:"id"`
	DisplayName      string `json:"display_name"`
	OSFamily         string `json:"os_family"`
	DeviceClass      string `json:"device_class"`
	Platform         string `json:"platform"`
	ScreenResolution string `json:"screen_resolution"`
	BrowserTimezone  string `json:"browser_timezone"`
	Language         string `json:"language"`
	FirstSeenAt      string `json:"first_seen_at"`
	LastSeenAt       string `json:"last_seen_at"`
	AccessCount      int    `json:"access_count"`
	Trusted          bool   `json:"trusted"`
	Blocked          bool   `json:"blocked"`
}

// DeviceListResponse groups devices by trust state
type DeviceListResponse struct {
	Trusted   []*DeviceResponse `json:"trusted"`
	Untrusted []*DeviceResponse `json:"untrusted"`
	Blocked   []*DeviceResponse `json:"blocked"`
}

// OriginResponse represents a network origin in HTTP responses
type OriginResponse struct {
	ID          string `json:"id"`
	Origin      string `json:"origin"`
	AccessCount int    `json:"access_count"`
	FirstSeenAt string `json:"first_seen_at"`
	LastSeenAt  string `json:"last_seen_at"`
	Blocked     bool   `json:"blocked"`
}

// BrowserResponse represents a browser sighting in HTTP responses
type BrowserResponse struct {
	ID            string `json:"id"`
	BrowserFamily string `json:"browser_family"`
	UserAgent     string `json:"user_agent"`
	AccessCount   int    `json:"access_count"`
	LastSeenAt    string `json:"last_seen_at"`
}

// DeviceDetailResponse is a device with its origin and browser children
type DeviceDetailResponse struct {
	Device   *DeviceResponse    `json:"device"`
	Origins  []*OriginResponse  `json:"origins"`
	Browsers []*BrowserResponse `json:"browsers"`
}

// RenameDeviceRequest represents the rename payload
type RenameDeviceRequest struct {
	Name string `json:"name" validate:"required,max=255"`
}

func deviceModelToResponse(d *models.Device) *DeviceResponse {
	return &DeviceResponse{
		ID:               d.ID,
		DisplayName:      d.DisplayName(),
		OSFamily:         d.OSFamily,
		DeviceClass:      d.DeviceClass,
		Platform:         d.Platform,
		ScreenResolution: d.ScreenResolution,
		BrowserTimezone:  d.BrowserTimezone,
		Language:         d.Language,
		FirstSeenAt:      d.FirstSeenAt.Format(time.RFC3339),
		LastSeenAt:       d.LastSeenAt.Format(time.RFC3339),
		AccessCount:      d.AccessCount,
		Trusted:          d.Trusted,
		Blocked:          d.Blocked,
	}
}

// ListDevices returns the account's devices grouped by trust state
func (h *DeviceHandler) ListDevices(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.GetUserFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "authentication required")
		return
	}

	devices, err := h.deviceService.ListDevices(r.Context(), claims.UserID)
	if err != nil {
		pkghttp.WriteInternalError(w, "Failed to list devices")
		return
	}

	resp := DeviceListResponse{
		Trusted:   make([]*DeviceResponse, 0),
		Untrusted: make([]*DeviceResponse, 0),
		Blocked:   make([]*DeviceResponse, 0),
	}
	for _, d := range devices {
		switch {
		case d.Blocked:
			resp.Blocked = append(resp.Blocked, deviceModelToResponse(d))
		case d.Trusted:
			resp.Trusted = append(resp.Trusted, deviceModelToResponse(d))
		default:
			resp.Untrusted = append(resp.Untrusted, deviceModelToResponse(d))
		}
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// GetDevice returns one device with its origin and browser history
func (h *DeviceHandler) GetDevice(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.GetUserFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "authentication required")
		return
	}

	detail, err := h.deviceService.GetDevice(r.Context(), claims.UserID, chi.URLParam(r, "id"))
	if err != nil {
		h.writeDeviceError(w, err)
		return
	}

	resp := DeviceDetailResponse{
		Device:   deviceModelToResponse(detail.Device),
		Origins:  make([]*OriginResponse, 0, len(detail.Origins)),
		Browsers: make([]*BrowserResponse, 0, len(detail.Browsers)),
	}
	for _, o := range detail.Origins {
		resp.Origins = append(resp.Origins, &OriginResponse{
			ID:          o.ID,
			Origin:      o.Origin,
			AccessCount: o.AccessCount,
			FirstSeenAt: o.FirstSeenAt.Format(time.RFC3339),
			LastSeenAt:  o.LastSeenAt.Format(time.RFC3339),
			Blocked:     o.Blocked,
		})
	}
	for _, b := range detail.Browsers {
		resp.Browsers = append(resp.Browsers, &BrowserResponse{
			ID:            b.ID,
			BrowserFamily: b.BrowserFamily,
			UserAgent:     b.UserAgent,
			AccessCount:   b.AccessCount,
			LastSeenAt:    b.LastSeenAt.Format(time.RFC3339),
		})
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// ToggleTrust flips the trusted flag on a device
func (h *DeviceHandler) ToggleTrust(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.GetUserFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "authentication required")
		return
	}

	device, err := h.deviceService.ToggleTrust(r.Context(), claims.UserID, chi.URLParam(r, "id"))
	if err != nil {
		h.writeDeviceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, deviceModelToResponse(device))
}

// BlockDevice blocks a device, clearing its trust
func (h *DeviceHandler) BlockDevice(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.GetUserFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "authentication required")
		return
	}

	device, err := h.deviceService.Block(r.Context(), claims.UserID, chi.URLParam(r, "id"))
	if err != nil {
		h.writeDeviceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, deviceModelToResponse(device))
}

// UnblockDevice clears the blocked flag; the device comes back untrusted
func (h *DeviceHandler) UnblockDevice(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.GetUserFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "authentication required")
		return
	}

	device, err := h.deviceService.Unblock(r.Context(), claims.UserID, chi.URLParam(r, "id"))
	if err != nil {
		h.writeDeviceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, deviceModelToResponse(device))
}

// ForgetDevice soft-deletes a device
func (h *DeviceHandler) ForgetDevice(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.GetUserFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "authentication required")
		return
	}

	if err := h.deviceService.Forget(r.Context(), claims.UserID, chi.URLParam(r, "id")); err != nil {
		h.writeDeviceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DeleteDevice hard-deletes a device and its history
func (h *DeviceHandler) DeleteDevice(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.GetUserFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "authentication required")
		return
	}

	if err := h.deviceService.Delete(r.Context(), claims.UserID, chi.URLParam(r, "id")); err != nil {
		h.writeDeviceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RenameDevice sets the user-chosen device name
func (h *DeviceHandler) RenameDevice(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.GetUserFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "authentication required")
		return
	}

	var req RenameDeviceRequest
	if err := decodeJSON(r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.deviceService.Rename(r.Context(), claims.UserID, chi.URLParam(r, "id"), req.Name); err != nil {
		h.writeDeviceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ToggleOriginBlock flips the block flag on one network origin
func (h *DeviceHandler) ToggleOriginBlock(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.GetUserFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "authentication required")
		return
	}

	origin, err := h.deviceService.ToggleOriginBlock(r.Context(), claims.UserID, chi.URLParam(r, "originID"))
	if err != nil {
		h.writeDeviceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, &OriginResponse{
		ID:          origin.ID,
		Origin:      origin.Origin,
		AccessCount: origin.AccessCount,
		FirstSeenAt: origin.FirstSeenAt.Format(time.RFC3339),
		LastSeenAt:  origin.LastSeenAt.Format(time.RFC3339),
		Blocked:     origin.Blocked,
	})
}

func (h *DeviceHandler) writeDeviceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, "Device not found")
	case errors.Is(err, models.ErrDeviceBlocked):
		pkghttp.WriteConflict(w, "Device is blocked; unblock it first")
	default:
		pkghttp.WriteInternalError(w, "Device operation failed")
	}
}

func decodeJSON(r *http.Request, dest any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dest)
}
