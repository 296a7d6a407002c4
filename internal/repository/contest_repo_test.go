package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/codearena-api/internal/models"
)

func TestContestRepositoryListFiltersAndPaginates(t *testing.T) {
	db := setupTestDB(t)
	repo := NewContestRepository(db)
	ctx := context.Background()

	now := time.Now().UTC()
	seedContest(t, db, "Past Round", now.Add(-48*time.Hour), 90, 10)
	seedContest(t, db, "Live Round", now.Add(-time.Minute), 90, 10)
	seedContest(t, db, "Future Round", now.Add(48*time.Hour), 90, 10)

	active, total, err := repo.List(ctx, ContestFilter{Status: models.ContestStatusActive})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Equal(t, "Live Round", active[0].Name)

	searched, total, err := repo.List(ctx, ContestFilter{Search: "round", Page: 2, PageSize: 2})
	require.NoError(t, err)
	require.Equal(t, int64(3), total)
	require.Len(t, searched, 1)
	require.Equal(t, "Past Round", searched[0].Name, "newest start time first")

	exists, err := repo.ExistsByName(ctx, "live round", 0)
	require.NoError(t, err)
	require.True(t, exists)

	exists, err = repo.ExistsByName(ctx, "Live Round", active[0].ID)
	require.NoError(t, err)
	require.False(t, exists)
}

func TestContestRepositoryRejectsDuplicateNames(t *testing.T) {
	db := setupTestDB(t)
	repo := NewContestRepository(db)

	start := time.Now().Add(time.Hour)
	first := models.Contest{Name: "Unique", Slug: "unique", StartTime: start, DurationMinutes: 60, MaxParticipants: 5, Status: models.ContestStatusNotStarted}
	require.NoError(t, repo.Create(context.Background(), &first))

	second := models.Contest{Name: "Unique", Slug: "unique-2", StartTime: start, DurationMinutes: 60, MaxParticipants: 5, Status: models.ContestStatusNotStarted}
	err := repo.Create(context.Background(), &second)
	require.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}

func TestContestRepositoryUpdateStatusIsConditional(t *testing.T) {
	db := setupTestDB(t)
	repo := NewContestRepository(db)
	ctx := context.Background()

	now := time.Now().UTC()
	contest := seedContest(t, db, "Status", now.Add(time.Hour), 60, 10)
	require.Equal(t, models.ContestStatusNotStarted, contest.Status)

	updated, err := repo.UpdateStatus(ctx, contest.ID, models.ContestStatusNotStarted, models.ContestStatusActive, now)
	require.NoError(t, err)
	require.True(t, updated)

	updated, err = repo.UpdateStatus(ctx, contest.ID, models.ContestStatusNotStarted, models.ContestStatusActive, now)
	require.NoError(t, err)
	require.False(t, updated, "a stale expected state does not overwrite")

	stored, err := repo.GetByID(ctx, contest.ID)
	require.NoError(t, err)
	require.Equal(t, models.ContestStatusActive, stored.Status)
	require.NotNil(t, stored.StatusChangedAt)
}

func TestContestRepositoryUpdateGuardsCapacity(t *testing.T) {
	db := setupTestDB(t)
	repo := NewContestRepository(db)
	leaderboard := NewLeaderboardRepository(db)
	ctx := context.Background()

	now := time.Now().UTC()
	contest := seedContest(t, db, "Capacity", now.Add(time.Hour), 60, 3)
	_, err := leaderboard.Join(ctx, contest.ID, 1, now)
	require.NoError(t, err)
	_, err = leaderboard.Join(ctx, contest.ID, 2, now)
	require.NoError(t, err)

	_, err = repo.Update(ctx, contest.ID, map[string]interface{}{"max_participants": 1}, time.Now())
	require.ErrorIs(t, err, ErrCapacityBelowParticipants)

	updated, err := repo.Update(ctx, contest.ID, map[string]interface{}{"max_participants": 2, "name": "Capacity Renamed"}, time.Now())
	require.NoError(t, err)
	require.Equal(t, 2, updated.MaxParticipants)
	require.Equal(t, "Capacity Renamed", updated.Name)

	_, err = repo.Update(ctx, 404, map[string]interface{}{"name": "missing"}, time.Now())
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestContestRepositoryProblemsTrackQuestionCount(t *testing.T) {
	db := setupTestDB(t)
	repo := NewContestRepository(db)
	ctx := context.Background()

	contest := seedContest(t, db, "Problems", time.Now().Add(time.Hour), 60, 10)

	problem := models.ContestProblem{ContestID: contest.ID, Title: "Two Sum", Slug: "two-sum", Difficulty: models.DifficultyEasy, Points: 100}
	problem.SetTags([]string{"array", "hash-table"})
	require.NoError(t, repo.AddProblem(ctx, &problem))

	duplicate := models.ContestProblem{ContestID: contest.ID, Title: "Two Sum", Slug: "two-sum", Points: 100}
	require.ErrorIs(t, repo.AddProblem(ctx, &duplicate), gorm.ErrDuplicatedKey)

	problems, err := repo.ListProblems(ctx, contest.ID)
	require.NoError(t, err)
	require.Len(t, problems, 1)
	require.Equal(t, []string{"array", "hash-table"}, problems[0].TagList())

	stored, err := repo.GetByID(ctx, contest.ID)
	require.NoError(t, err)
	require.Equal(t, 1, stored.QuestionCount)

	require.NoError(t, repo.RemoveProblem(ctx, contest.ID, problem.ID))
	require.ErrorIs(t, repo.RemoveProblem(ctx, contest.ID, problem.ID), ErrProblemNotInContest)

	stored, err = repo.GetByID(ctx, contest.ID)
	require.NoError(t, err)
	require.Zero(t, stored.QuestionCount)
}

func TestContestRepositoryDeleteCascades(t *testing.T) {
	db := setupTestDB(t)
	repo := NewContestRepository(db)
	leaderboard := NewLeaderboardRepository(db)
	ctx := context.Background()

	now := time.Now().UTC()
	contest := seedContest(t, db, "Cascade", now.Add(-time.Minute), 60, 10)
	problem := seedProblem(t, db, contest.ID, "merge-intervals", 200)

	_, err := leaderboard.Join(ctx, contest.ID, 1, now)
	require.NoError(t, err)
	_, err = leaderboard.Credit(ctx, CreditInput{ContestID: contest.ID, UserID: 1, ProblemID: problem.ID, Points: 200, SubmittedAt: now})
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, contest.ID))
	require.ErrorIs(t, repo.Delete(ctx, contest.ID), gorm.ErrRecordNotFound)

	for _, model := range []interface{}{&models.ContestProblem{}, &models.ContestParticipant{}, &models.LeaderboardEntry{}, &models.ProblemSolved{}} {
		var count int64
		require.NoError(t, db.Model(model).Count(&count).Error)
		require.Zero(t, count)
	}

	var user models.User
	require.NoError(t, db.First(&user, 1).Error)
	require.Zero(t, user.TotalPoints)
}

func TestContestRepositoryListStatusIgnoresCachedColumn(t *testing.T) {
	db := setupTestDB(t)
	repo := NewContestRepository(db)
	ctx := context.Background()

	now := time.Now().UTC()
	finished := seedContest(t, db, "Finished Round", now.Add(-2*time.Hour), 60, 10)
	require.NoError(t, db.Model(&models.Contest{}).Where("id = ?", finished.ID).
		Update("status", models.ContestStatusActive).Error)
	live := seedContest(t, db, "Running Round", now.Add(-10*time.Minute), 60, 10)

	active, total, err := repo.List(ctx, ContestFilter{Status: models.ContestStatusActive, Now: now})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Equal(t, live.ID, active[0].ID)

	ended, _, err := repo.List(ctx, ContestFilter{Status: models.ContestStatusEnded, Now: now})
	require.NoError(t, err)
	require.Len(t, ended, 1)
	require.Equal(t, finished.ID, ended[0].ID)

	// The end instant itself is already ended.
	atEnd, _, err := repo.List(ctx, ContestFilter{Status: models.ContestStatusEnded, Now: live.EndTime()})
	require.NoError(t, err)
	require.Len(t, atEnd, 2)
}

func TestContestRepositoryUpdateRecomputesScheduleUnderLock(t *testing.T) {
	db := setupTestDB(t)
	repo := NewContestRepository(db)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	contest := seedContest(t, db, "Moved Round", now.Add(time.Hour), 60, 10)
	require.Equal(t, models.ContestStatusNotStarted, contest.Status)

	updated, err := repo.Update(ctx, contest.ID, map[string]interface{}{"start_time": now.Add(-30 * time.Minute)}, now)
	require.NoError(t, err)
	require.Equal(t, models.ContestStatusActive, updated.Status)
	require.NotNil(t, updated.StatusChangedAt)
	require.True(t, updated.EndsAt.Equal(now.Add(30*time.Minute)))

	updated, err = repo.Update(ctx, contest.ID, map[string]interface{}{"duration_minutes": 20}, now)
	require.NoError(t, err)
	require.Equal(t, models.ContestStatusEnded, updated.Status)
	require.True(t, updated.EndsAt.Equal(now.Add(-10*time.Minute)))

	require.NoError(t, db.Model(&models.Contest{}).Where("id = ?", contest.ID).Update("status", models.ContestStatusActive).Error)
	renamed, err := repo.Update(ctx, contest.ID, map[string]interface{}{"name": "Renamed Round"}, now)
	require.NoError(t, err)
	require.Equal(t, "Renamed Round", renamed.Name)
	require.Equal(t, models.ContestStatusEnded, renamed.Status, "any edit corrects a stale stored status")
	require.True(t, renamed.EndsAt.Equal(now.Add(-10*time.Minute)))
}

func TestContestRepositoryListRunningBetween(t *testing.T) {
	db := setupTestDB(t)
	repo := NewContestRepository(db)
	ctx := context.Background()

	now := time.Now().UTC()
	justEnded := seedContest(t, db, "Just Ended", now.Add(-61*time.Minute), 60, 10)
	live := seedContest(t, db, "Live", now.Add(-5*time.Minute), 60, 10)
	seedContest(t, db, "Long Gone", now.Add(-5*time.Hour), 60, 10)
	seedContest(t, db, "Upcoming", now.Add(time.Hour), 60, 10)

	running, err := repo.ListRunningBetween(ctx, now.Add(-2*time.Minute), now)
	require.NoError(t, err)
	require.Len(t, running, 2)
	require.Equal(t, justEnded.ID, running[0].ID)
	require.Equal(t, live.ID, running[1].ID)
}
