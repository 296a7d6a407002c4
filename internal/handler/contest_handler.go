package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/codearena-api/internal/dto"
	"github.com/noah-isme/codearena-api/internal/middleware"
	"github.com/noah-isme/codearena-api/internal/service"
	"github.com/noah-isme/codearena-api/internal/utils"
)

// ContestHandler wires contest management and lifecycle routes.
type ContestHandler struct {
	contests  service.ContestService
	lifecycle service.ContestLifecycleService
	logger    zerolog.Logger
}

// NewContestHandler constructs the handler.
func NewContestHandler(contests service.ContestService, lifecycle service.ContestLifecycleService, logger zerolog.Logger) *ContestHandler {
	return &ContestHandler{
		contests:  contests,
		lifecycle: lifecycle,
		logger:    logger.With().Str("component", "contest_handler").Logger(),
	}
}

// Register attaches contest endpoints. Reads and the status refresh are public.
func (h *ContestHandler) Register(router fiber.Router, auth fiber.Handler) {
	organizer := middleware.RequireRole(middleware.AuthRoleOrganizer, "admin")

	router.Get("", h.list)
	router.Post("", auth, organizer, h.create)
	router.Post("/status/sweep", auth, organizer, h.sweep)
	router.Get("/:id", h.get)
	router.Patch("/:id", auth, organizer, h.update)
	router.Delete("/:id", auth, organizer, h.delete)
	router.Post("/:id/status/refresh", h.refresh)
	router.Get("/:id/problems", h.listProblems)
	router.Post("/:id/problems", auth, organizer, h.addProblem)
	router.Delete("/:id/problems/:problemId", auth, organizer, h.removeProblem)
}

func (h *ContestHandler) list(c *fiber.Ctx) error {
	page, err := parseQueryInt(c, "page")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page")
	}
	pageSize, err := parseQueryInt(c, "page_size")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page_size")
	}

	result, err := h.contests.List(requestContext(c), dto.ContestListRequest{
		Status:   strings.TrimSpace(c.Query("status")),
		Search:   strings.TrimSpace(c.Query("search")),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.OK(c, result.Items, "contests retrieved", result.Pagination)
}

func (h *ContestHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	contest, err := h.contests.Get(requestContext(c), id)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "contest retrieved", contest)
}

func (h *ContestHandler) create(c *fiber.Ctx) error {
	var payload dto.CreateContestRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request payload")
	}

	contest, err := h.contests.Create(requestContext(c), userIDFromContext(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "contest created", contest)
}

func (h *ContestHandler) update(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.UpdateContestRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request payload")
	}

	contest, err := h.contests.Update(requestContext(c), id, payload)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "contest updated", contest)
}

func (h *ContestHandler) delete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.contests.Delete(requestContext(c), id); err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "contest deleted", fiber.Map{"id": id})
}

func (h *ContestHandler) refresh(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	result, err := h.lifecycle.Refresh(requestContext(c), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "contest status checked", dto.StatusRefreshResponse{
		ContestID: result.ContestID,
		Outcome:   string(result.Outcome),
		Status:    result.Status,
	})
}

func (h *ContestHandler) sweep(c *fiber.Ctx) error {
	result, err := h.lifecycle.Sweep(requestContext(c))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "contest statuses swept", dto.StatusSweepResponse{
		Checked: result.Checked,
		Updated: result.Updated,
	})
}

func (h *ContestHandler) listProblems(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	problems, err := h.contests.ListProblems(requestContext(c), id)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "contest problems retrieved", problems)
}

func (h *ContestHandler) addProblem(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.AddProblemRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request payload")
	}

	problem, err := h.contests.AddProblem(requestContext(c), id, payload)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "problem added", problem)
}

func (h *ContestHandler) removeProblem(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	problemID, err := parseUintParam(c, "problemId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.contests.RemoveProblem(requestContext(c), id, problemID); err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "problem removed", fiber.Map{"contest_id": id, "problem_id": problemID})
}

func (h *ContestHandler) handleError(c *fiber.Ctx, err error) error {
	return writeServiceError(c, h.logger, err)
}
