package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/floretapp/floret/internal/auth"
	"github.com/floretapp/floret/internal/models"
	"github.com/floretapp/floret/internal/services"
	"github.com/floretapp/floret/internal/signals"
	pkghttp "github.com/floretapp/floret/pkg/http"
)

// AuthService defines the authentication operations the handler depends on
type AuthService interface {
	Signup(ctx context.Context, email, password, firstName, lastName string) (*models.User, string, error)
	Login(ctx context.Context, email, password string, sig signals.Bundle) (*services.LoginResult, error)
	RedeemMagicLink(ctx context.Context, code string, sig signals.Bundle) (*services.MagicLinkResult, error)
	RequestPasswordReset(ctx context.Context, email string, sig signals.Bundle) error
	ResetPassword(ctx context.Context, userID, newPassword string) error
}

// AuthHandler handles signup, login, logout, magic-link redemption, and
// password reset requests
type AuthHandler struct {
	authService   AuthService
	deviceMaxAge  time.Duration
	sessionExpiry time.Duration
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(authService AuthService, deviceMaxAge, sessionExpiry time.Duration) *AuthHandler {
	return &AuthHandler{
		authService:   authService,
		deviceMaxAge:  deviceMaxAge,
		sessionExpiry: sessionExpiry,
	}
}

// Request/Response DTOs

// SignupRequest represents the signup form payload
type SignupRequest struct {
	Email     string `validate:"required,email"`
	Password  string `validate:"required"`
	FirstName string `validate:"omitempty,max=128"`
	LastName  string `validate:"omitempty,max=128"`
}

// LoginRequest represents the login form payload
type LoginRequest struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

// LoginResponse represents the login outcome
type LoginResponse struct {
	TwoFactorRequired bool          `json:"two_factor_required"`
	NewDevice         bool          `json:"new_device"`
	User              *UserResponse `json:"user,omitempty"`
}

// MagicLinkResponse represents a successful redemption
type MagicLinkResponse struct {
	SecretType string        `json:"secret_type"`
	Next       string        `json:"next"`
	User       *UserResponse `json:"user"`
}

// Signup handles new account registration. The body is form-encoded so the
// client-side script's signal fields ride along with the credentials.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	req := SignupRequest{
		Email:     r.PostFormValue("email"),
		Password:  r.PostFormValue("password"),
		FirstName: r.PostFormValue("first_name"),
		LastName:  r.PostFormValue("last_name"),
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	user, sessionToken, err := h.authService.Signup(r.Context(), req.Email, req.Password, req.FirstName, req.LastName)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrConflict):
			pkghttp.WriteConflict(w, "An account with this email already exists")
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, "Password does not meet requirements")
		default:
			pkghttp.WriteInternalError(w, "Failed to create account")
		}
		return
	}

	auth.SetSessionCookie(w, r, sessionToken, h.sessionExpiry)
	pkghttp.WriteJSON(w, http.StatusCreated, userModelToResponse(user))
}

// Login handles password login with device resolution and the two-factor
// step-up decision
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	sig := h.extractSignals(r)

	req := LoginRequest{
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	result, err := h.authService.Login(r.Context(), req.Email, req.Password, sig)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrUnauthorized):
			pkghttp.WriteUnauthorized(w, "Invalid email or password")
		case errors.Is(err, models.ErrDeviceBlocked):
			pkghttp.WriteForbidden(w, "This device has been blocked. Please contact support.")
		default:
			pkghttp.WriteInternalError(w, "Login failed")
		}
		return
	}

	h.setDeviceCookie(w, r, result.Device)

	if result.TwoFactorRequired {
		pkghttp.WriteJSON(w, http.StatusAccepted, LoginResponse{
			TwoFactorRequired: true,
			NewDevice:         result.NewDevice,
		})
		return
	}

	auth.SetSessionCookie(w, r, result.SessionToken, h.sessionExpiry)
	pkghttp.WriteJSON(w, http.StatusOK, LoginResponse{
		NewDevice: result.NewDevice,
		User:      userModelToResponse(result.User),
	})
}

// Logout clears the session cookie
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	auth.ClearSessionCookie(w, r)
	w.WriteHeader(http.StatusNoContent)
}

// MagicLink redeems a secret code from the query string. All redemption
// failures collapse into one generic message so the response never reveals
// whether a code existed, was used, or expired.
func (h *AuthHandler) MagicLink(w http.ResponseWriter, r *http.Request) {
	sig := h.extractSignals(r)
	code := r.URL.Query().Get("secret")

	result, err := h.authService.RedeemMagicLink(r.Context(), code, sig)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrSecretNotFound),
			errors.Is(err, models.ErrSecretAlreadyUsed),
			errors.Is(err, models.ErrSecretExpired):
			pkghttp.WriteUnauthorized(w, "There was an error authenticating your account.")
		default:
			pkghttp.WriteInternalError(w, "Failed to authenticate")
		}
		return
	}

	h.setDeviceCookie(w, r, result.Device)
	auth.SetSessionCookie(w, r, result.SessionToken, h.sessionExpiry)

	next := "/profile"
	if result.SecretType == models.SecretTypePasswordReset {
		next = "/password-reset"
	}

	pkghttp.WriteJSON(w, http.StatusOK, MagicLinkResponse{
		SecretType: string(result.SecretType),
		Next:       next,
		User:       userModelToResponse(result.User),
	})
}

// RequestPasswordReset issues a reset secret and emails the link. Always
// responds 202 to avoid leaking which addresses have accounts.
func (h *AuthHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	sig := h.extractSignals(r)

	email := r.PostFormValue("email")
	if email == "" {
		pkghttp.WriteBadRequest(w, "email is required")
		return
	}

	if err := h.authService.RequestPasswordReset(r.Context(), email, sig); err != nil {
		pkghttp.WriteInternalError(w, "Failed to process reset request")
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// ResetPassword changes the authenticated account's password
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.GetUserFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "authentication required")
		return
	}

	password := r.PostFormValue("password")
	confirm := r.PostFormValue("password_confirm")
	if password == "" || password != confirm {
		pkghttp.WriteBadRequest(w, "Passwords do not match")
		return
	}

	if err := h.authService.ResetPassword(r.Context(), claims.UserID, password); err != nil {
		if errors.Is(err, models.ErrBadRequest) {
			pkghttp.WriteBadRequest(w, "Password does not meet requirements")
			return
		}
		pkghttp.WriteInternalError(w, "Failed to reset password")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) extractSignals(r *http.Request) signals.Bundle {
	sig := signals.FromRequest(r)
	sig.DeviceToken = auth.GetDeviceTokenCookie(r)
	return sig
}

// setDeviceCookie binds the browser to the resolved device, or clears a
// stale cookie when resolution returned none
func (h *AuthHandler) setDeviceCookie(w http.ResponseWriter, r *http.Request, device *models.Device) {
	if device != nil {
		auth.SetDeviceTokenCookie(w, r, device.DeviceToken, h.deviceMaxAge)
	} else {
		auth.ClearDeviceTokenCookie(w, r)
	}
}
