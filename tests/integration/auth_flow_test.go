package integration

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floretapp/floret/internal/auth"
	"github.com/floretapp/floret/internal/handlers"
)

func newFlowServer(t *testing.T) *TestServer {
	t.Helper()
	cleanDB(t)
	ts := NewTestServer(testDB.DB)
	t.Cleanup(ts.Close)
	return ts
}

func TestAuthFlow_SignupAndVerifyEmail(t *testing.T) {
	ts := newFlowServer(t)
	email, password := TestUser("verify")

	resp, err := ts.PostForm("/auth/signup", SignalForm(email, password), nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	session := CookieByName(resp, auth.SessionCookie)
	require.NotNil(t, session, "signup establishes a session")
	resp.Body.Close()

	// Signup queues a verification email carrying the magic link
	sent := ts.EmailService.GetLastEmail()
	require.NotNil(t, sent)
	assert.Equal(t, email, sent.To)

	secret := ExtractSecretFromLink(sent.Data.ActionURL)
	require.NotEmpty(t, secret)

	resp, err = ts.Get("/magic_link/?secret="+secret, nil)
	require.NoError(t, err)

	var redeemed handlers.MagicLinkResponse
	require.NoError(t, ParseJSONResponse(resp, &redeemed))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "email_verification", redeemed.SecretType)
	assert.Equal(t, "/profile", redeemed.Next)

	linkSession := CookieByName(resp, auth.SessionCookie)
	require.NotNil(t, linkSession)

	// The account now reads as verified
	resp, err = ts.Get("/profile", []*http.Cookie{linkSession})
	require.NoError(t, err)

	var profile handlers.UserResponse
	require.NoError(t, ParseJSONResponse(resp, &profile))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, email, profile.Email)
	assert.True(t, profile.EmailVerified)

	// A magic link redeems exactly once
	resp, err = ts.Get("/magic_link/?secret="+secret, nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAuthFlow_LoginDeviceContinuity(t *testing.T) {
	ts := newFlowServer(t)
	email, password := TestUser("continuity")

	resp, err := ts.PostForm("/auth/signup", SignalForm(email, password), nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err = ts.PostForm("/auth/login", SignalForm(email, password), nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	deviceCookie := CookieByName(resp, auth.DeviceTokenCookie)
	require.NotNil(t, deviceCookie, "login binds the browser to a device")
	session := CookieByName(resp, auth.SessionCookie)
	require.NotNil(t, session)

	// Returning with the continuity cookie matches the same device
	resp, err = ts.PostForm("/auth/login", SignalForm(email, password), []*http.Cookie{deviceCookie})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var login handlers.LoginResponse
	require.NoError(t, ParseJSONResponse(resp, &login))
	assert.False(t, login.NewDevice)

	session2 := CookieByName(resp, auth.SessionCookie)
	require.NotNil(t, session2)

	resp, err = ts.Get("/devices", []*http.Cookie{session2})
	require.NoError(t, err)

	var devices handlers.DeviceListResponse
	require.NoError(t, ParseJSONResponse(resp, &devices))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	all := append(append(devices.Trusted, devices.Untrusted...), devices.Blocked...)
	require.Len(t, all, 1, "both logins resolve to one device")
	assert.GreaterOrEqual(t, all[0].AccessCount, 2)
}

func TestAuthFlow_PasswordReset(t *testing.T) {
	ts := newFlowServer(t)
	email, password := TestUser("reset")

	resp, err := ts.PostForm("/auth/signup", SignalForm(email, password), nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	ts.EmailService.Reset()

	resp, err = ts.PostForm("/auth/password-reset/request", url.Values{"email": {email}}, nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	sent := ts.EmailService.GetLastEmail()
	require.NotNil(t, sent, "reset request for an existing account sends a link")
	secret := ExtractSecretFromLink(sent.Data.ActionURL)
	require.NotEmpty(t, secret)

	resp, err = ts.Get("/magic_link/?secret="+secret, nil)
	require.NoError(t, err)

	var redeemed handlers.MagicLinkResponse
	require.NoError(t, ParseJSONResponse(resp, &redeemed))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "password_reset", redeemed.SecretType)
	assert.Equal(t, "/password-reset", redeemed.Next)

	session := CookieByName(resp, auth.SessionCookie)
	require.NotNil(t, session, "reset link establishes the session used to change the password")

	newPassword := "BrandNewP@ss456"
	resp, err = ts.PostForm("/auth/password-reset", url.Values{
		"password":         {newPassword},
		"password_confirm": {newPassword},
	}, []*http.Cookie{session})
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	// Old password no longer works, new one does
	resp, err = ts.PostForm("/auth/login", SignalForm(email, password), nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = ts.PostForm("/auth/login", SignalForm(email, newPassword), nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuthFlow_UnknownResetEmailStaysSilent(t *testing.T) {
	ts := newFlowServer(t)

	resp, err := ts.PostForm("/auth/password-reset/request", url.Values{"email": {"nobody@example.com"}}, nil)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Nil(t, ts.EmailService.GetLastEmail())
}
