package services

import (
	"context"
	"log/slog"

	"github.com/floretapp/floret/internal/models"
)

// UserService handles profile reads and updates
type UserService struct {
	userRepo UserRepository
	logger   *slog.Logger
}

// NewUserService creates a new UserService
func NewUserService(userRepo UserRepository, logger *slog.Logger) *UserService {
	return &UserService{
		userRepo: userRepo,
		logger:   logger,
	}
}

// GetProfile returns the account for an ID
func (s *UserService) GetProfile(ctx context.Context, userID string) (*models.User, error) {
	return s.userRepo.GetByID(ctx, userID)
}

// UpdateProfile updates name fields and the MFA toggle
func (s *UserService) UpdateProfile(ctx context.Context, userID, firstName, lastName string, mfaEnabled bool) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	user.FirstName = firstName
	user.LastName = lastName
	user.MFAEnabled = mfaEnabled

	updated, err := s.userRepo.Update(ctx, user)
	if err != nil {
		return nil, err
	}

	s.logger.Info("profile updated",
		slog.String("user_id", userID),
		slog.Bool("mfa_enabled", mfaEnabled))

	return updated, nil
}
