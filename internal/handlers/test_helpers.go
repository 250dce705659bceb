package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/floretapp/floret/internal/auth"
	"github.com/floretapp/floret/internal/models"
	"github.com/floretapp/floret/internal/services"
	"github.com/floretapp/floret/internal/signals"
	pkghttp "github.com/floretapp/floret/pkg/http"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

// NewTestRequest creates a test HTTP request with a JSON body
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithAuthContext adds session claims to the request context for testing
// authenticated endpoints
func WithAuthContext(req *http.Request, userID string) *http.Request {
	claims := &auth.SessionClaims{UserID: userID}
	ctx := context.WithValue(req.Context(), auth.UserContextKey, claims)
	return req.WithContext(ctx)
}

// WithChiRouteContext adds chi URL parameters to the request context
func WithChiRouteContext(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// AssertJSONResponse checks status and decodes the JSON body into target
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that the response is an error envelope with the
// expected code
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
}

// MockAuthService implements AuthService for testing
type MockAuthService struct {
	SignupFunc               func(ctx context.Context, email, password, firstName, lastName string) (*models.User, string, error)
	LoginFunc                func(ctx context.Context, email, password string, sig signals.Bundle) (*services.LoginResult, error)
	RedeemMagicLinkFunc      func(ctx context.Context, code string, sig signals.Bundle) (*services.MagicLinkResult, error)
	RequestPasswordResetFunc func(ctx context.Context, email string, sig signals.Bundle) error
	ResetPasswordFunc        func(ctx context.Context, userID, newPassword string) error
}

func (m *MockAuthService) Signup(ctx context.Context, email, password, firstName, lastName string) (*models.User, string, error) {
	if m.SignupFunc != nil {
		return m.SignupFunc(ctx, email, password, firstName, lastName)
	}
	return nil, "", models.ErrInternalServer
}

func (m *MockAuthService) Login(ctx context.Context, email, password string, sig signals.Bundle) (*services.LoginResult, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, email, password, sig)
	}
	return nil, models.ErrUnauthorized
}

func (m *MockAuthService) RedeemMagicLink(ctx context.Context, code string, sig signals.Bundle) (*services.MagicLinkResult, error) {
	if m.RedeemMagicLinkFunc != nil {
		return m.RedeemMagicLinkFunc(ctx, code, sig)
	}
	return nil, models.ErrSecretNotFound
}

func (m *MockAuthService) RequestPasswordReset(ctx context.Context, email string, sig signals.Bundle) error {
	if m.RequestPasswordResetFunc != nil {
		return m.RequestPasswordResetFunc(ctx, email, sig)
	}
	return nil
}

func (m *MockAuthService) ResetPassword(ctx context.Context, userID, newPassword string) error {
	if m.ResetPasswordFunc != nil {
		return m.ResetPasswordFunc(ctx, userID, newPassword)
	}
	return nil
}

// MockUserService implements UserService for testing
type MockUserService struct {
	GetProfileFunc    func(ctx context.Context, userID string) (*models.User, error)
	UpdateProfileFunc func(ctx context.Context, userID, firstName, lastName string, mfaEnabled bool) (*models.User, error)
}

func (m *MockUserService) GetProfile(ctx context.Context, userID string) (*models.User, error) {
	if m.GetProfileFunc != nil {
		return m.GetProfileFunc(ctx, userID)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserService) UpdateProfile(ctx context.Context, userID, firstName, lastName string, mfaEnabled bool) (*models.User, error) {
	if m.UpdateProfileFunc != nil {
		return m.UpdateProfileFunc(ctx, userID, firstName, lastName, mfaEnabled)
	}
	return nil, models.ErrInternalServer
}

// MockDeviceService implements DeviceService for testing
type MockDeviceService struct {
	ListDevicesFunc       func(ctx context.Context, userID string) ([]*models.Device, error)
	GetDeviceFunc         func(ctx context.Context, userID, deviceID string) (*services.DeviceDetail, error)
	ToggleTrustFunc       func(ctx context.Context, userID, deviceID string) (*models.Device, error)
	BlockFunc             func(ctx context.Context, userID, deviceID string) (*models.Device, error)
	UnblockFunc           func(ctx context.Context, userID, deviceID string) (*models.Device, error)
	ForgetFunc            func(ctx context.Context, userID, deviceID string) error
	DeleteFunc            func(ctx context.Context, userID, deviceID string) error
	RenameFunc            func(ctx context.Context, userID, deviceID, name string) error
	ToggleOriginBlockFunc func(ctx context.Context, userID, originID string) (*models.NetworkOrigin, error)
}

func (m *MockDeviceService) ListDevices(ctx context.Context, userID string) ([]*models.Device, error) {
	if m.ListDevicesFunc != nil {
		return m.ListDevicesFunc(ctx, userID)
	}
	return []*models.Device{}, nil
}

func (m *MockDeviceService) GetDevice(ctx context.Context, userID, deviceID string) (*services.DeviceDetail, error) {
	if m.GetDeviceFunc != nil {
		return m.GetDeviceFunc(ctx, userID, deviceID)
	}
	return nil, models.ErrNotFound
}

func (m *MockDeviceService) ToggleTrust(ctx context.Context, userID, deviceID string) (*models.Device, error) {
	if m.ToggleTrustFunc != nil {
		return m.ToggleTrustFunc(ctx, userID, deviceID)
	}
	return nil, models.ErrNotFound
}

func (m *MockDeviceService) Block(ctx context.Context, userID, deviceID string) (*models.Device, error) {
	if m.BlockFunc != nil {
		return m.BlockFunc(ctx, userID, deviceID)
	}
	return nil, models.ErrNotFound
}

func (m *MockDeviceService) Unblock(ctx context.Context, userID, deviceID string) (*models.Device, error) {
	if m.UnblockFunc != nil {
		return m.UnblockFunc(ctx, userID, deviceID)
	}
	return nil, models.ErrNotFound
}

func (m *MockDeviceService) Forget(ctx context.Context, userID, deviceID string) error {
	if m.ForgetFunc != nil {
		return m.ForgetFunc(ctx, userID, deviceID)
	}
	return nil
}

func (m *MockDeviceService) Delete(ctx context.Context, userID, deviceID string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, userID, deviceID)
	}
	return nil
}

func (m *MockDeviceService) Rename(ctx context.Context, userID, deviceID, name string) error {
	if m.RenameFunc != nil {
		return m.RenameFunc(ctx, userID, deviceID, name)
	}
	return nil
}

func (m *MockDeviceService) ToggleOriginBlock(ctx context.Context, userID, originID string) (*models.NetworkOrigin, error) {
	if m.ToggleOriginBlockFunc != nil {
		return m.ToggleOriginBlockFunc(ctx, userID, originID)
	}
	return nil, models.ErrNotFound
}
