package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/codearena-api/pkg/catalog"
)

func newSyncServiceForTest(env *testEnv, client catalog.Client) *submissionSyncService {
	return NewSubmissionSyncService(SubmissionSyncConfig{
		Contests:    env.contests,
		Leaderboard: env.leaderboard,
		Users:       env.users,
		Scoring:     env.leaderboardService(),
		Catalog:     client,
		Concurrency: 1,
		Logger:      env.logger,
	}).(*submissionSyncService)
}

func TestSubmissionSyncCheckParticipant(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	start := time.Now().UTC().Add(-30 * time.Minute).Truncate(time.Second)
	contest := env.seedContest(t, "Sync", start, 60, 10)
	twoSum := env.seedProblem(t, contest.ID, "two-sum", 100)
	env.seedProblem(t, contest.ID, "lru-cache", 200)

	client := &stubCatalog{submissions: map[string][]catalog.Submission{
		"alice": {
			{ID: "5", Slug: "two-sum", Status: catalog.StatusAccepted, SubmittedAt: start.Add(20 * time.Minute)},
			{ID: "4", Slug: "two-sum", Status: catalog.StatusAccepted, SubmittedAt: start.Add(10 * time.Minute)},
			{ID: "3", Slug: "lru-cache", Status: "Wrong Answer", SubmittedAt: start.Add(5 * time.Minute)},
			{ID: "2", Slug: "lru-cache", Status: catalog.StatusAccepted, SubmittedAt: start.Add(-time.Minute)},
			{ID: "1", Slug: "unrelated", Status: catalog.StatusAccepted, SubmittedAt: start.Add(time.Minute)},
		},
	}}
	svc := newSyncServiceForTest(env, client)

	board := env.leaderboardService()
	_, err := board.Join(ctx, contest.ID, 1)
	require.NoError(t, err)

	_, err = svc.CheckParticipant(ctx, contest.ID, 1)
	require.ErrorIs(t, err, ErrUserHandleMissing)

	env.setHandle(t, 1, "alice")

	result, err := svc.CheckParticipant(ctx, contest.ID, 1)
	require.NoError(t, err)
	require.Equal(t, 2, result.Checked)
	require.Equal(t, 1, result.Credited)
	require.Equal(t, 1, result.Duplicates)
	require.Len(t, result.Credits, 1)
	require.Equal(t, twoSum.ID, result.Credits[0].ProblemID)
	require.Equal(t, int64(600), result.Credits[0].TimeTakenSeconds, "the earliest accepted submission is credited")

	repeat, err := svc.CheckParticipant(ctx, contest.ID, 1)
	require.NoError(t, err)
	require.Zero(t, repeat.Credited)
	require.Equal(t, 2, repeat.Duplicates)

	_, err = svc.CheckParticipant(ctx, contest.ID, 2)
	require.ErrorIs(t, err, ErrParticipantNotFound)

	entry, err := env.leaderboard.Get(ctx, contest.ID, 1)
	require.NoError(t, err)
	require.Equal(t, 100, entry.Score)
}

func TestSubmissionSyncRejectsContestsThatHaveNotStarted(t *testing.T) {
	env := newTestEnv(t)
	svc := newSyncServiceForTest(env, &stubCatalog{})

	contest := env.seedContest(t, "Later", time.Now().UTC().Add(time.Hour), 60, 10)

	_, err := svc.CheckParticipant(context.Background(), contest.ID, 1)
	require.ErrorIs(t, err, ErrContestNotStarted)

	_, err = svc.SyncContest(context.Background(), contest.ID)
	require.ErrorIs(t, err, ErrContestNotStarted)

	_, err = svc.SyncContest(context.Background(), 999)
	require.ErrorIs(t, err, ErrContestNotFound)
}

func TestSubmissionSyncContestCountsDomainFailures(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	start := time.Now().UTC().Add(-30 * time.Minute).Truncate(time.Second)
	contest := env.seedContest(t, "Everyone", start, 60, 10)
	env.seedProblem(t, contest.ID, "two-sum", 100)

	client := &stubCatalog{submissions: map[string][]catalog.Submission{
		"alice": {{ID: "1", Slug: "two-sum", Status: catalog.StatusAccepted, SubmittedAt: start.Add(time.Minute)}},
		"bob":   {{ID: "2", Slug: "Two Sum", Status: catalog.StatusAccepted, SubmittedAt: start.Add(2 * time.Minute)}},
	}}
	svc := newSyncServiceForTest(env, client)
	board := env.leaderboardService()

	for _, userID := range []uint{1, 2, 3} {
		_, err := board.Join(ctx, contest.ID, userID)
		require.NoError(t, err)
	}
	env.setHandle(t, 1, "alice")
	env.setHandle(t, 2, "bob")

	summary, err := svc.SyncContest(ctx, contest.ID)
	require.NoError(t, err)
	require.Equal(t, 3, summary.Participants)
	require.Equal(t, 2, summary.Credited)
	require.Equal(t, 1, summary.Failed, "participant without a handle is skipped")
	require.Equal(t, uint(1), summary.Credits[0].UserID)

	page, err := board.Leaderboard(ctx, dtoLeaderboardRequest(contest.ID))
	require.NoError(t, err)
	require.Equal(t, uint(1), page.Items[0].UserID, "equal scores order by join time")
	require.Equal(t, 100, page.Items[1].Score)
}
