package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

func TestCorrelationID(t *testing.T) {
	app := fiber.New()
	app.Use(CorrelationID())
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(CorrelationIDFromContext(c.UserContext()))
	})

	cases := []struct {
		name     string
		header   string
		value    string
		expected string
	}{
		{name: "reuses correlation header", header: HeaderCorrelationID, value: "abc-123", expected: "abc-123"},
		{name: "falls back to request id", header: fiber.HeaderXRequestID, value: "req-9", expected: "req-9"},
		{name: "rejects oversized ids", header: HeaderCorrelationID, value: strings.Repeat("x", 200)},
		{name: "rejects control characters", header: HeaderCorrelationID, value: "bad\tid"},
	}

	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(tc.header, tc.value)
		resp, err := app.Test(req)
		require.NoError(t, err, tc.name)

		got := resp.Header.Get(HeaderCorrelationID)
		require.NotEmpty(t, got, tc.name)
		if tc.expected != "" {
			require.Equal(t, tc.expected, got, tc.name)
		} else {
			require.NotEqual(t, tc.value, got, tc.name)
		}
	}
}
