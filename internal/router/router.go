package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/codearena-api/internal/config"
	"github.com/noah-isme/codearena-api/internal/handler"
	"github.com/noah-isme/codearena-api/internal/middleware"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	ContestHandler     *handler.ContestHandler
	LeaderboardHandler *handler.LeaderboardHandler
	UserHandler        *handler.UserHandler
	JWTMiddleware      fiber.Handler
	HealthProbes       []handler.HealthProbe
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthProbes...))

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	contests := api.Group("/contests")
	if deps.ContestHandler != nil {
		deps.ContestHandler.Register(contests, jwtMiddleware)
	}
	if deps.LeaderboardHandler != nil {
		checkLimiter := middleware.RateLimit("submissions-check", cfg.CheckRateLimit, cfg.CheckRateWindow)
		deps.LeaderboardHandler.Register(contests, jwtMiddleware, checkLimiter)
	}

	if deps.UserHandler != nil {
		deps.UserHandler.RegisterRanking(api.Group("/rankings"))
		deps.UserHandler.RegisterProfile(api.Group("/users", jwtMiddleware))
	}
}
