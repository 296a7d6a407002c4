package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/codearena-api/internal/dto"
	"github.com/noah-isme/codearena-api/internal/repository"
)

// UserService manages the profile of the authenticated contestant.
type UserService interface {
	Profile(ctx context.Context, userID uint) (dto.UserProfileResponse, error)
	UpdateProfile(ctx context.Context, userID uint, req dto.UpdateProfileRequest) (dto.UserProfileResponse, error)
}

type userService struct {
	users     repository.UserRepository
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
}

// NewUserService constructs the user service.
func NewUserService(users repository.UserRepository, validate *validator.Validate, logger zerolog.Logger) UserService {
	if validate == nil {
		validate = validator.New()
	}
	return &userService{
		users:     users,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "user_service").Logger(),
	}
}

// Profile returns the user's profile, creating an empty one on first access.
func (s *userService) Profile(ctx context.Context, userID uint) (dto.UserProfileResponse, error) {
	if userID == 0 {
		return dto.UserProfileResponse{}, ErrUserNotFound
	}
	user, err := s.users.EnsureExists(ctx, userID)
	if err != nil {
		return dto.UserProfileResponse{}, fmt.Errorf("load user: %w", err)
	}
	return dto.NewUserProfileResponse(user), nil
}

func (s *userService) UpdateProfile(ctx context.Context, userID uint, req dto.UpdateProfileRequest) (dto.UserProfileResponse, error) {
	if userID == 0 {
		return dto.UserProfileResponse{}, ErrUserNotFound
	}
	if req.Username != nil {
		trimmed := strings.TrimSpace(*req.Username)
		req.Username = &trimmed
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.UserProfileResponse{}, err
	}

	updates := map[string]interface{}{}
	if req.Username != nil {
		username := *req.Username
		if username == "" {
			updates["username"] = nil
		} else {
			taken, err := s.users.UsernameTaken(ctx, username, userID)
			if err != nil {
				return dto.UserProfileResponse{}, fmt.Errorf("check username: %w", err)
			}
			if taken {
				return dto.UserProfileResponse{}, ErrUsernameTaken
			}
			updates["username"] = username
		}
	}
	if req.DisplayName != nil {
		updates["display_name"] = strings.TrimSpace(s.sanitizer.Sanitize(*req.DisplayName))
	}

	user, err := s.users.UpdateProfile(ctx, userID, updates)
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrDuplicatedKey):
			return dto.UserProfileResponse{}, ErrUsernameTaken
		case errors.Is(err, gorm.ErrRecordNotFound):
			return dto.UserProfileResponse{}, ErrUserNotFound
		default:
			return dto.UserProfileResponse{}, fmt.Errorf("update profile: %w", err)
		}
	}

	s.logger.Info().Uint("user_id", userID).Msg("profile updated")
	return dto.NewUserProfileResponse(user), nil
}
