package handler_test

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/require"
)

func TestLeaderboardContract(t *testing.T) {
	schemaPath, err := filepath.Abs(filepath.Join("testdata", "leaderboard.schema.json"))
	require.NoError(t, err)

	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true
	schema, err := compiler.Compile("file://" + filepath.ToSlash(schemaPath))
	require.NoError(t, err)

	app := setupArenaApp(t)
	contestID := app.createContest(t, "Contract", time.Now().Add(-time.Minute), 60, 10)
	for _, userID := range []uint{3, 4} {
		resp, _ := app.do(t, http.MethodPost, fmt.Sprintf("/api/v1/contests/%d/join", contestID), nil, userID, "participant")
		require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	}

	for _, want := range []bool{false, true} {
		req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/v1/contests/%d/leaderboard?page_size=10", contestID), nil)
		resp, err := app.app.Test(req, -1)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())

		var payload interface{}
		require.NoError(t, json.Unmarshal(body, &payload))
		require.NoError(t, schema.Validate(payload))

		data := payload.(map[string]interface{})["data"].(map[string]interface{})
		require.Equal(t, want, data["cache_hit"])
	}
}
