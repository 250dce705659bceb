package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Secret redemption errors. Handlers collapse all of these into one
	// generic user-facing message so a caller cannot probe which case applied.
	ErrSecretNotFound    = errors.New("secret not found")
	ErrSecretAlreadyUsed = errors.New("secret already used")
	ErrSecretExpired     = errors.New("secret expired")

	// Device state errors
	ErrDeviceBlocked = errors.New("device is blocked")
)
