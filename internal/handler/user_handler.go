package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/codearena-api/internal/dto"
	"github.com/noah-isme/codearena-api/internal/middleware"
	"github.com/noah-isme/codearena-api/internal/service"
	"github.com/noah-isme/codearena-api/internal/utils"
)

// UserHandler serves the current user's profile and the global ranking.
type UserHandler struct {
	users       service.UserService
	leaderboard service.LeaderboardService
	logger      zerolog.Logger
}

// NewUserHandler constructs the handler.
func NewUserHandler(users service.UserService, leaderboard service.LeaderboardService, logger zerolog.Logger) *UserHandler {
	return &UserHandler{
		users:       users,
		leaderboard: leaderboard,
		logger:      logger.With().Str("component", "user_handler").Logger(),
	}
}

// RegisterProfile binds /users routes; every route needs an authenticated user.
func (h *UserHandler) RegisterProfile(router fiber.Router) {
	router.Get("/me", middleware.WithAuth(h.profile, middleware.AuthOptions{Role: middleware.AuthRoleAny}))
	router.Put("/me", middleware.WithAuth(h.updateProfile, middleware.AuthOptions{Role: middleware.AuthRoleAny}))
}

// RegisterRanking binds the public global ranking.
func (h *UserHandler) RegisterRanking(router fiber.Router) {
	router.Get("", h.ranking)
}

func (h *UserHandler) profile(c *fiber.Ctx) error {
	profile, err := h.users.Profile(requestContext(c), userIDFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "profile retrieved", profile)
}

func (h *UserHandler) updateProfile(c *fiber.Ctx) error {
	var payload dto.UpdateProfileRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request payload")
	}

	profile, err := h.users.UpdateProfile(requestContext(c), userIDFromContext(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "profile updated", profile)
}

func (h *UserHandler) ranking(c *fiber.Ctx) error {
	page, err := parseQueryInt(c, "page")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page")
	}
	pageSize, err := parseQueryInt(c, "page_size")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page_size")
	}

	ranking, err := h.leaderboard.GlobalRanking(requestContext(c), page, pageSize)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.OK(c, ranking.Items, "ranking retrieved", ranking.Pagination)
}

func (h *UserHandler) handleError(c *fiber.Ctx, err error) error {
	return writeServiceError(c, h.logger, err)
}
