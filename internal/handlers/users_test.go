package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/floretapp/floret/internal/handlers"
	"github.com/floretapp/floret/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestGetProfile_Success(t *testing.T) {
	verifiedAt := time.Now()
	mockService := &handlers.MockUserService{
		GetProfileFunc: func(ctx context.Context, userID string) (*models.User, error) {
			return &models.User{
				ID:              "user123",
				Email:           "user@example.com",
				FirstName:       "Ada",
				EmailVerifiedAt: &verifiedAt,
				CreatedAt:       time.Now(),
			}, nil
		},
	}

	handler := handlers.NewUserHandler(mockService)
	req := handlers.WithAuthContext(httptest.NewRequest("GET", "/profile", nil), "user123")
	w := httptest.NewRecorder()

	handler.GetProfile(w, req)

	var resp handlers.UserResponse
	handlers.AssertJSONResponse(t, w, http.StatusOK, &resp)
	assert.Equal(t, "user123", resp.ID)
	assert.Equal(t, "Ada", resp.FirstName)
	assert.True(t, resp.EmailVerified)
}

func TestGetProfile_Unauthenticated(t *testing.T) {
	handler := handlers.NewUserHandler(&handlers.MockUserService{})
	w := httptest.NewRecorder()

	handler.GetProfile(w, httptest.NewRequest("GET", "/profile", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetProfile_NotFound(t *testing.T) {
	mockService := &handlers.MockUserService{
		GetProfileFunc: func(ctx context.Context, userID string) (*models.User, error) {
			return nil, models.ErrNotFound
		},
	}

	handler := handlers.NewUserHandler(mockService)
	req := handlers.WithAuthContext(httptest.NewRequest("GET", "/profile", nil), "user123")
	w := httptest.NewRecorder()

	handler.GetProfile(w, req)

	handlers.AssertErrorResponse(t, w, http.StatusNotFound, "not_found")
}

func TestUpdateProfile_Success(t *testing.T) {
	mockService := &handlers.MockUserService{
		UpdateProfileFunc: func(ctx context.Context, userID, firstName, lastName string, mfaEnabled bool) (*models.User, error) {
			assert.Equal(t, "user123", userID)
			assert.True(t, mfaEnabled)
			return &models.User{ID: userID, FirstName: firstName, LastName: lastName, MFAEnabled: mfaEnabled}, nil
		},
	}

	handler := handlers.NewUserHandler(mockService)
	req := handlers.NewTestRequest(t, "PUT", "/profile", handlers.UpdateProfileRequest{
		FirstName:  "Ada",
		LastName:   "Lovelace",
		MFAEnabled: true,
	})
	req = handlers.WithAuthContext(req, "user123")
	w := httptest.NewRecorder()

	handler.UpdateProfile(w, req)

	var resp handlers.UserResponse
	handlers.AssertJSONResponse(t, w, http.StatusOK, &resp)
	assert.Equal(t, "Ada", resp.FirstName)
	assert.True(t, resp.MFAEnabled)
}

func TestUpdateProfile_InvalidBody(t *testing.T) {
	handler := handlers.NewUserHandler(&handlers.MockUserService{})
	req := httptest.NewRequest("PUT", "/profile", nil)
	req = handlers.WithAuthContext(req, "user123")
	w := httptest.NewRecorder()

	handler.UpdateProfile(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
