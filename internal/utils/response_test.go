package utils_test

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/codearena-api/internal/utils"
)

type envelope struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	Data    json.RawMessage        `json:"data"`
	Meta    map[string]interface{} `json:"meta"`
	Details map[string]string      `json:"details"`
}

func call(t *testing.T, h fiber.Handler) (int, envelope) {
	t.Helper()
	app := fiber.New()
	app.Get("/", h)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestResponseEnvelopes(t *testing.T) {
	t.Run("list with pagination meta", func(t *testing.T) {
		status, body := call(t, func(c *fiber.Ctx) error {
			return utils.OK(c, []string{"weekly-1"}, "", map[string]int{"page": 2, "total": 11})
		})
		require.Equal(t, fiber.StatusOK, status)
		require.True(t, body.Success)
		require.Equal(t, "success", body.Message)
		require.JSONEq(t, `["weekly-1"]`, string(body.Data))
		require.Equal(t, float64(2), body.Meta["page"])
	})

	t.Run("created", func(t *testing.T) {
		status, body := call(t, func(c *fiber.Ctx) error {
			return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "contest created", fiber.Map{"id": 7})
		})
		require.Equal(t, fiber.StatusCreated, status)
		require.Equal(t, "contest created", body.Message)
		require.JSONEq(t, `{"id":7}`, string(body.Data))
		require.Nil(t, body.Meta)
	})

	t.Run("validation failure", func(t *testing.T) {
		status, body := call(t, func(c *fiber.Ctx) error {
			return utils.Fail(c, fiber.StatusBadRequest, "validation failed", map[string]string{"end_time": "gtfield"})
		})
		require.Equal(t, fiber.StatusBadRequest, status)
		require.False(t, body.Success)
		require.Equal(t, "gtfield", body.Details["end_time"])
		require.Empty(t, body.Data)
	})

	t.Run("plain error", func(t *testing.T) {
		status, body := call(t, func(c *fiber.Ctx) error {
			return utils.SendError(c, fiber.StatusConflict, "contest is full")
		})
		require.Equal(t, fiber.StatusConflict, status)
		require.Equal(t, "contest is full", body.Message)
		require.Nil(t, body.Details)
	})
}
