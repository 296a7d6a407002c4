package middleware

import (
	"bytes"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestObservabilityLogsResolvedRoute(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	app := fiber.New()
	app.Use(CorrelationID())
	app.Use(Observability(logger))
	app.Get("/api/v1/contests/:id", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNotFound)
	})

	req := httptest.NewRequest(fiber.MethodGet, "/api/v1/contests/42", nil)
	req.Header.Set(HeaderCorrelationID, "trace-1")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	line := buf.String()
	require.Contains(t, line, `"route":"/api/v1/contests/:id"`)
	require.Contains(t, line, `"correlation_id":"trace-1"`)
	require.Contains(t, line, `"level":"warn"`)
}

func TestObservabilitySkipsNonAPIPaths(t *testing.T) {
	var buf bytes.Buffer
	app := fiber.New()
	app.Use(Observability(zerolog.New(&buf)))
	app.Get("/metrics", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	_, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	require.Empty(t, buf.String())
}

func TestLatencyBucket(t *testing.T) {
	require.Equal(t, "<=25ms", latencyBucket(10*time.Millisecond))
	require.Equal(t, "<=250ms", latencyBucket(200*time.Millisecond))
	require.Equal(t, ">1s", latencyBucket(3*time.Second))
}
