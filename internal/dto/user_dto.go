package dto

import (
	"time"

	"github.com/noah-isme/codearena-api/internal/models"
)

// UpdateProfileRequest sets the judge handle and display name of the current user. An empty
// username clears the handle.
type UpdateProfileRequest struct {
	Username    *string `json:"username" validate:"omitempty,max=64,excludesall=/?#&% "`
	DisplayName *string `json:"display_name" validate:"omitempty,max=255"`
}

// UserProfileResponse serializes a user's public profile and global standing.
type UserProfileResponse struct {
	ID          uint      `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	TotalPoints int       `json:"total_points"`
	GlobalRank  int       `json:"global_rank"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewUserProfileResponse maps a user model.
func NewUserProfileResponse(user models.User) UserProfileResponse {
	return UserProfileResponse{
		ID:          user.ID,
		Username:    user.Handle(),
		DisplayName: user.DisplayName,
		TotalPoints: user.TotalPoints,
		GlobalRank:  user.GlobalRank,
		CreatedAt:   user.CreatedAt,
	}
}

// RankingResponse is a page of the global ranking.
type RankingResponse struct {
	Items      []UserProfileResponse `json:"items"`
	Pagination PaginationMeta        `json:"pagination"`
}
