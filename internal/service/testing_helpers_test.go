package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/noah-isme/codearena-api/internal/database"
	"github.com/noah-isme/codearena-api/internal/dto"
	"github.com/noah-isme/codearena-api/internal/models"
	"github.com/noah-isme/codearena-api/internal/repository"
	"github.com/noah-isme/codearena-api/pkg/catalog"
)

type testEnv struct {
	db          *gorm.DB
	redis       *redis.Client
	mr          *miniredis.Miniredis
	contests    repository.ContestRepository
	leaderboard repository.LeaderboardRepository
	users       repository.UserRepository
	cache       *LeaderboardCache
	events      *LeaderboardEvents
	logger      zerolog.Logger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", name)), &gorm.Config{
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

	log := zerolog.Nop()
	return &testEnv{
		db:          db,
		redis:       rdb,
		mr:          mr,
		contests:    repository.NewContestRepository(db),
		leaderboard: repository.NewLeaderboardRepository(db),
		users:       repository.NewUserRepository(db),
		cache:       NewLeaderboardCache(rdb, time.Minute, log),
		events:      NewLeaderboardEvents(nil, "", nil, log),
		logger:      log,
	}
}

func (e *testEnv) seedContest(t *testing.T, name string, start time.Time, duration, max int) models.Contest {
	t.Helper()
	contest := models.Contest{
		Name:            name,
		Slug:            strings.ToLower(strings.ReplaceAll(name, " ", "-")),
		StartTime:       start,
		DurationMinutes: duration,
		MaxParticipants: max,
		Status:          models.ClassifyContest(time.Now(), start, duration),
	}
	require.NoError(t, e.db.Create(&contest).Error)
	return contest
}

func (e *testEnv) seedProblem(t *testing.T, contestID uint, slug string, points int) models.ContestProblem {
	t.Helper()
	problem := models.ContestProblem{ContestID: contestID, Title: slug, Slug: slug, Difficulty: models.DifficultyMedium, Points: points}
	problem.SetTags([]string{"array"})
	require.NoError(t, e.db.Create(&problem).Error)
	return problem
}

func (e *testEnv) setHandle(t *testing.T, userID uint, handle string) {
	t.Helper()
	_, err := e.users.UpdateProfile(context.Background(), userID, map[string]interface{}{"username": handle})
	require.NoError(t, err)
}

func (e *testEnv) leaderboardService() *leaderboardService {
	return NewLeaderboardService(e.contests, e.leaderboard, e.users, e.cache, e.events, e.logger).(*leaderboardService)
}

type stubCatalog struct {
	mu          sync.Mutex
	problems    map[string]catalog.Problem
	submissions map[string][]catalog.Submission
	lookupErr   error
	submitErr   error
	lookups     int
}

func (s *stubCatalog) LookupProblem(ctx context.Context, query string) (catalog.Problem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups++
	if s.lookupErr != nil {
		return catalog.Problem{}, s.lookupErr
	}
	problem, ok := s.problems[catalog.NormalizeSlug(query)]
	if !ok {
		return catalog.Problem{}, catalog.ErrProblemNotFound
	}
	return problem, nil
}

func (s *stubCatalog) RecentSubmissions(ctx context.Context, username string, limit int) ([]catalog.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.submitErr != nil {
		return nil, s.submitErr
	}
	submissions, ok := s.submissions[username]
	if !ok {
		return nil, catalog.ErrUserNotFound
	}
	return append([]catalog.Submission(nil), submissions...), nil
}

func dtoLeaderboardRequest(contestID uint) dto.LeaderboardRequest {
	return dto.LeaderboardRequest{ContestID: contestID, Page: 1, PageSize: 50}
}
