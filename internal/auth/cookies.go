package auth

import (
	"net/http"
	"time"
)

const (
	// DeviceTokenCookie carries the device continuity token
	DeviceTokenCookie = "device_token"
	// SessionCookie carries the session token
	SessionCookie = "session_token"
)

// SetDeviceTokenCookie sets the continuity cookie binding this browser to a
// device record. HTTP-only, secure over TLS, same-site-lax.
func SetDeviceTokenCookie(w http.ResponseWriter, r *http.Request, token string, maxAge time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     DeviceTokenCookie,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(maxAge),
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearDeviceTokenCookie removes a stale continuity cookie, used when the
// resolver could not identify a device for this request.
func ClearDeviceTokenCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     DeviceTokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

// GetDeviceTokenCookie retrieves the continuity token, or empty when absent
func GetDeviceTokenCookie(r *http.Request) string {
	cookie, err := r.Cookie(DeviceTokenCookie)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// SetSessionCookie sets the session token cookie
func SetSessionCookie(w http.ResponseWriter, r *http.Request, token string, maxAge time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(maxAge),
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie removes the session cookie
func ClearSessionCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

// GetSessionCookie retrieves the session token, or empty when absent
func GetSessionCookie(r *http.Request) string {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil {
		return ""
	}
	return cookie.Value
}
