package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClassifyContestBoundaries(t *testing.T) {
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		now  time.Time
		want ContestStatus
	}{
		{name: "one second before start", now: start.Add(-time.Second), want: ContestStatusNotStarted},
		{name: "exactly at start", now: start, want: ContestStatusActive},
		{name: "last minute", now: start.Add(59 * time.Minute), want: ContestStatusActive},
		{name: "exactly at end", now: start.Add(60 * time.Minute), want: ContestStatusEnded},
		{name: "long after end", now: start.Add(24 * time.Hour), want: ContestStatusEnded},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ClassifyContest(tc.now, start, 60)
			require.Equal(t, tc.want, got)
			require.True(t, got.Valid())
		})
	}
}

func TestClassifyContestZeroDurationEndsImmediately(t *testing.T) {
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	require.Equal(t, ContestStatusEnded, ClassifyContest(start, start, 0))
}

func TestContestHelpers(t *testing.T) {
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	contest := Contest{StartTime: start, DurationMinutes: 90, MaxParticipants: 2, ParticipantCount: 1, Status: ContestStatusNotStarted}

	require.Equal(t, start.Add(90*time.Minute), contest.EndTime())
	require.False(t, contest.IsStale(start.Add(-time.Minute)))
	require.True(t, contest.IsStale(start))
	require.Equal(t, 30*time.Minute, contest.Remaining(start.Add(time.Hour)))
	require.Zero(t, contest.Remaining(start.Add(2*time.Hour)))
	require.False(t, contest.IsFull())

	contest.ParticipantCount = 2
	require.True(t, contest.IsFull())

	require.False(t, contest.Accepts(start.Add(-time.Second)))
	require.True(t, contest.Accepts(start.Add(time.Minute)))
	require.False(t, contest.Accepts(contest.EndTime()))
}

func TestContestStatusValid(t *testing.T) {
	require.False(t, ContestStatus("paused").Valid())
	require.False(t, ContestStatus("").Valid())
}

func TestDefaultPoints(t *testing.T) {
	require.Equal(t, 100, DefaultPoints(DifficultyEasy))
	require.Equal(t, 200, DefaultPoints(DifficultyMedium))
	require.Equal(t, 300, DefaultPoints(DifficultyHard))
	require.Equal(t, 100, DefaultPoints("unknown"))
}

func TestContestProblemTags(t *testing.T) {
	var problem ContestProblem
	require.Nil(t, problem.TagList())

	problem.SetTags(nil)
	require.Empty(t, problem.TagList())

	problem.SetTags([]string{"graph", "bfs"})
	require.Equal(t, []string{"graph", "bfs"}, problem.TagList())
}
