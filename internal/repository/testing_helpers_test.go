package repository

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/noah-isme/codearena-api/internal/database"
	"github.com/noah-isme/codearena-api/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func seedContest(t *testing.T, db *gorm.DB, name string, start time.Time, durationMinutes, maxParticipants int) models.Contest {
	t.Helper()
	contest := models.Contest{
		Name:            name,
		Slug:            strings.ToLower(strings.ReplaceAll(name, " ", "-")),
		StartTime:       start,
		DurationMinutes: durationMinutes,
		MaxParticipants: maxParticipants,
		Status:          models.ClassifyContest(time.Now(), start, durationMinutes),
	}
	require.NoError(t, db.Create(&contest).Error)
	return contest
}

func seedProblem(t *testing.T, db *gorm.DB, contestID uint, slug string, points int) models.ContestProblem {
	t.Helper()
	problem := models.ContestProblem{ContestID: contestID, Title: slug, Slug: slug, Difficulty: models.DifficultyEasy, Points: points}
	problem.SetTags(nil)
	require.NoError(t, db.Create(&problem).Error)
	return problem
}
