package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/codearena-api/internal/dto"
	"github.com/noah-isme/codearena-api/internal/middleware"
	"github.com/noah-isme/codearena-api/internal/service"
	"github.com/noah-isme/codearena-api/internal/utils"
)

// LeaderboardHandler exposes participation, judge polling and the live leaderboard.
type LeaderboardHandler struct {
	leaderboard service.LeaderboardService
	sync        service.SubmissionSyncService
	logger      zerolog.Logger
	keepAlive   time.Duration
}

// NewLeaderboardHandler constructs the handler.
func NewLeaderboardHandler(leaderboard service.LeaderboardService, sync service.SubmissionSyncService, logger zerolog.Logger, keepAlive time.Duration) *LeaderboardHandler {
	if keepAlive <= 0 {
		keepAlive = 20 * time.Second
	}
	return &LeaderboardHandler{
		leaderboard: leaderboard,
		sync:        sync,
		logger:      logger.With().Str("component", "leaderboard_handler").Logger(),
		keepAlive:   keepAlive,
	}
}

// Register binds the routes below /contests/:id. checkLimiter throttles judge polling per user.
func (h *LeaderboardHandler) Register(router fiber.Router, auth, checkLimiter fiber.Handler) {
	participant := func(next fiber.Handler) fiber.Handler {
		return middleware.WithAuth(next, middleware.AuthOptions{Role: middleware.AuthRoleParticipant})
	}
	organizer := middleware.RequireRole(middleware.AuthRoleOrganizer, "admin")
	if checkLimiter == nil {
		checkLimiter = func(c *fiber.Ctx) error { return c.Next() }
	}

	router.Post("/:id/join", auth, participant(h.join))
	router.Get("/:id/participants", h.participants)
	router.Delete("/:id/participants/:userId", auth, organizer, h.removeParticipant)
	router.Post("/:id/submissions/check", auth, checkLimiter, participant(h.check))
	router.Post("/:id/submissions/sync", auth, organizer, h.syncAll)
	router.Get("/:id/leaderboard", h.list)
	router.Get("/:id/leaderboard/stream", h.stream)
	router.Get("/:id/leaderboard/ws", h.upgradeLeaderboard, websocket.New(h.socket))
}

func (h *LeaderboardHandler) join(c *fiber.Ctx) error {
	contestID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	result, err := h.leaderboard.Join(requestContext(c), contestID, userIDFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	if !result.Joined {
		return utils.SendSuccess(c, "already joined", result)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "joined contest", result)
}

func (h *LeaderboardHandler) participants(c *fiber.Ctx) error {
	contestID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	participants, err := h.leaderboard.Participants(requestContext(c), contestID)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "participants retrieved", participants)
}

func (h *LeaderboardHandler) removeParticipant(c *fiber.Ctx) error {
	contestID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	userID, err := parseUintParam(c, "userId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	result, err := h.leaderboard.RemoveParticipant(requestContext(c), contestID, userID)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "participant removed", result)
}

func (h *LeaderboardHandler) check(c *fiber.Ctx) error {
	contestID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	result, err := h.sync.CheckParticipant(requestContext(c), contestID, userIDFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "submissions checked", result)
}

func (h *LeaderboardHandler) syncAll(c *fiber.Ctx) error {
	contestID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	result, err := h.sync.SyncContest(requestContext(c), contestID)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "contest submissions synced", result)
}

func (h *LeaderboardHandler) list(c *fiber.Ctx) error {
	contestID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	page, err := parseQueryInt(c, "page")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page")
	}
	pageSize, err := parseQueryInt(c, "page_size")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page_size")
	}

	board, err := h.leaderboard.Leaderboard(requestContext(c), dto.LeaderboardRequest{
		ContestID: contestID,
		Page:      page,
		PageSize:  pageSize,
	})
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "leaderboard retrieved", board)
}

func (h *LeaderboardHandler) stream(c *fiber.Ctx) error {
	contestID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	ctx := requestContext(c)
	board, err := h.leaderboard.Leaderboard(ctx, dto.LeaderboardRequest{ContestID: contestID})
	if err != nil {
		return h.handleError(c, err)
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	// The fasthttp request context is recycled once the handler returns.
	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stream, cleanup := h.leaderboard.Subscribe(contestID)
	logger := requestLogger(h.logger, c).With().Uint("contest_id", contestID).Logger()

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer func() {
			cleanup()
			cancel()
		}()

		if err := writeStreamEvent(w, "snapshot", board); err != nil {
			logger.Debug().Err(err).Msg("failed to write leaderboard snapshot")
			return
		}

		ticker := time.NewTicker(h.keepAlive)
		defer ticker.Stop()

		for {
			select {
			case event, ok := <-stream:
				if !ok {
					return
				}
				if err := writeStreamEvent(w, "leaderboard", event); err != nil {
					logger.Debug().Err(err).Msg("failed to write leaderboard event")
					return
				}
			case <-ticker.C:
				if err := writeKeepAlive(w); err != nil {
					logger.Debug().Err(err).Msg("leaderboard stream closed")
					return
				}
			case <-ctx.Done():
				return
			}
		}
	})

	return nil
}

func (h *LeaderboardHandler) handleError(c *fiber.Ctx, err error) error {
	return writeServiceError(c, h.logger, err)
}

func writeStreamEvent(w *bufio.Writer, name string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "event: %s\n", name); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	return w.Flush()
}

func writeKeepAlive(w *bufio.Writer) error {
	if _, err := fmt.Fprintf(w, ": keep-alive %s\n\n", time.Now().UTC().Format(time.RFC3339)); err != nil {
		return err
	}
	return w.Flush()
}
