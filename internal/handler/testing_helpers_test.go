package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/noah-isme/codearena-api/internal/config"
	"github.com/noah-isme/codearena-api/internal/database"
	"github.com/noah-isme/codearena-api/internal/handler"
	"github.com/noah-isme/codearena-api/internal/repository"
	"github.com/noah-isme/codearena-api/internal/router"
	"github.com/noah-isme/codearena-api/internal/service"
	"github.com/noah-isme/codearena-api/pkg/catalog"
)

type fakeCatalog struct {
	mu          sync.Mutex
	problems    map[string]catalog.Problem
	submissions map[string][]catalog.Submission
}

func (f *fakeCatalog) LookupProblem(_ context.Context, query string) (catalog.Problem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	problem, ok := f.problems[catalog.NormalizeSlug(query)]
	if !ok {
		return catalog.Problem{}, catalog.ErrProblemNotFound
	}
	return problem, nil
}

func (f *fakeCatalog) RecentSubmissions(_ context.Context, username string, _ int) ([]catalog.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	submissions, ok := f.submissions[username]
	if !ok {
		return nil, catalog.ErrUserNotFound
	}
	return append([]catalog.Submission(nil), submissions...), nil
}

type testApp struct {
	app     *fiber.App
	db      *gorm.DB
	catalog *fakeCatalog
}

// setupArenaApp wires the full router over sqlite and miniredis. The fake JWT middleware reads
// the caller from X-Test-User and X-Test-Role.
func setupArenaApp(t *testing.T) *testApp {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:handler_%s?mode=memory&cache=shared", name)), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	log := zerolog.New(io.Discard)
	validate := validator.New(validator.WithRequiredStructEnabled())
	fake := &fakeCatalog{
		problems: map[string]catalog.Problem{
			"two-sum":   {ID: "1", Title: "Two Sum", Slug: "two-sum", Difficulty: "Easy", URL: "https://leetcode.com/problems/two-sum/", Tags: []string{"Array"}},
			"lru-cache": {ID: "146", Title: "LRU Cache", Slug: "lru-cache", Difficulty: "Medium", URL: "https://leetcode.com/problems/lru-cache/", Tags: []string{"Design"}},
		},
		submissions: map[string][]catalog.Submission{},
	}

	contestRepo := repository.NewContestRepository(db)
	leaderboardRepo := repository.NewLeaderboardRepository(db)
	userRepo := repository.NewUserRepository(db)

	cache := service.NewLeaderboardCache(rdb, time.Minute, log)
	events := service.NewLeaderboardEvents(nil, "", nil, log)
	leaderboardService := service.NewLeaderboardService(contestRepo, leaderboardRepo, userRepo, cache, events, log)
	contestService := service.NewContestService(service.ContestServiceConfig{
		Contests:             contestRepo,
		Users:                userRepo,
		Catalog:              fake,
		Cache:                cache,
		Events:               events,
		Validator:            validate,
		MaxParticipantsLimit: 1000,
		Logger:               log,
	})
	lifecycleService := service.NewContestLifecycleService(contestRepo, log)
	syncService := service.NewSubmissionSyncService(service.SubmissionSyncConfig{
		Contests:    contestRepo,
		Leaderboard: leaderboardRepo,
		Users:       userRepo,
		Scoring:     leaderboardService,
		Catalog:     fake,
		Concurrency: 1,
		Logger:      log,
	})
	userService := service.NewUserService(userRepo, validate, log)

	app := fiber.New()
	router.Register(app, config.Config{AppName: "Test", CheckRateLimit: 100, CheckRateWindow: time.Minute}, router.Dependencies{
		ContestHandler:     handler.NewContestHandler(contestService, lifecycleService, log),
		LeaderboardHandler: handler.NewLeaderboardHandler(leaderboardService, syncService, log, time.Second),
		UserHandler:        handler.NewUserHandler(userService, leaderboardService, log),
		JWTMiddleware: func(c *fiber.Ctx) error {
			if raw := c.Get("X-Test-User"); raw != "" {
				id, err := strconv.ParseUint(raw, 10, 64)
				if err != nil {
					return fiber.ErrUnauthorized
				}
				c.Locals("user_id", uint(id))
			}
			if role := c.Get("X-Test-Role"); role != "" {
				c.Locals("user_role", role)
			}
			return c.Next()
		},
	})

	return &testApp{app: app, db: db, catalog: fake}
}

type envelope struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Data    json.RawMessage   `json:"data"`
	Meta    json.RawMessage   `json:"meta"`
	Details map[string]string `json:"details"`
}

func (a *testApp) do(t *testing.T, method, path string, body interface{}, userID uint, role string) (*http.Response, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != 0 {
		req.Header.Set("X-Test-User", strconv.FormatUint(uint64(userID), 10))
	}
	if role != "" {
		req.Header.Set("X-Test-Role", role)
	}

	resp, err := a.app.Test(req, -1)
	require.NoError(t, err)

	var env envelope
	decodeResponse(t, resp, &env)
	return resp, env
}

func (a *testApp) createContest(t *testing.T, name string, start time.Time, duration, max int) uint {
	t.Helper()
	resp, env := a.do(t, http.MethodPost, "/api/v1/contests", map[string]interface{}{
		"name":             name,
		"start_time":       start.UTC().Format(time.RFC3339),
		"duration_minutes": duration,
		"max_participants": max,
	}, 1, "organizer")
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, env.Message)

	var created struct {
		ID uint `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	return created.ID
}

func decodeResponse(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, json.Unmarshal(data, target))
}
