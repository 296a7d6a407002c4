package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/codearena-api/internal/repository"
)

const schedulerLockKey = "contest:scheduler:lock"

var releaseLeaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// ContestSchedulerConfig configures the background scheduler.
type ContestSchedulerConfig struct {
	Lifecycle   ContestLifecycleService
	Sync        SubmissionSyncService
	Contests    repository.ContestRepository
	Redis       *redis.Client
	Interval    time.Duration
	SyncEnabled bool
	Logger      zerolog.Logger
}

// ContestScheduler periodically sweeps contest statuses and polls the judge for contests that
// were active since the previous run.
// Runs never overlap within a process; across processes a Redis lease elects one runner per tick.
type ContestScheduler struct {
	lifecycle   ContestLifecycleService
	sync        SubmissionSyncService
	contests    repository.ContestRepository
	redis       *redis.Client
	interval    time.Duration
	syncEnabled bool
	logger      zerolog.Logger
	nodeID      string
	running     sync.Mutex
	lastRun     time.Time
	now         func() time.Time
}

// NewContestScheduler constructs the scheduler.
func NewContestScheduler(cfg ContestSchedulerConfig) *ContestScheduler {
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Minute
	}

	return &ContestScheduler{
		lifecycle:   cfg.Lifecycle,
		sync:        cfg.Sync,
		contests:    cfg.Contests,
		redis:       cfg.Redis,
		interval:    interval,
		syncEnabled: cfg.SyncEnabled && cfg.Sync != nil,
		logger:      cfg.Logger.With().Str("component", "contest_scheduler").Logger(),
		nodeID:      uuid.NewString(),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Start runs the scheduler until ctx is cancelled. It runs once immediately.
func (s *ContestScheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", s.interval).Bool("sync_enabled", s.syncEnabled).Msg("contest scheduler started")
	s.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("contest scheduler stopped")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs one sweep and, when enabled, one judge polling pass. It reports whether
// this call did the work; false means another run held the lock.
func (s *ContestScheduler) RunOnce(ctx context.Context) bool {
	if !s.running.TryLock() {
		s.logger.Debug().Msg("previous scheduler run still in progress")
		return false
	}
	defer s.running.Unlock()

	acquired, release := s.acquireLease(ctx)
	if !acquired {
		return false
	}
	defer release()

	// Poll every contest that was running at any point since the previous run, so solves from
	// the final interval of a contest that has just ended are still credited.
	now := s.now()
	since := now.Add(-s.interval)
	if !s.lastRun.IsZero() && s.lastRun.Before(since) {
		since = s.lastRun
	}
	s.lastRun = now

	if _, err := s.lifecycle.Sweep(ctx); err != nil {
		s.logger.Error().Err(err).Msg("scheduled status sweep failed")
	}

	if !s.syncEnabled || ctx.Err() != nil {
		return true
	}

	active, err := s.contests.ListRunningBetween(ctx, since, now)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list running contests")
		return true
	}

	for _, contest := range active {
		if ctx.Err() != nil {
			break
		}
		if _, err := s.sync.SyncContest(ctx, contest.ID); err != nil {
			s.logger.Error().Err(err).Uint("contest_id", contest.ID).Msg("scheduled submission sync failed")
		}
	}
	return true
}

func (s *ContestScheduler) acquireLease(ctx context.Context) (bool, func()) {
	if s.redis == nil {
		return true, func() {}
	}

	ok, err := s.redis.SetNX(ctx, schedulerLockKey, s.nodeID, s.interval).Result()
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to acquire scheduler lease, running locally")
		return true, func() {}
	}
	if !ok {
		s.logger.Debug().Msg("scheduler lease held by another node")
		return false, func() {}
	}

	return true, func() {
		if err := releaseLeaseScript.Run(context.WithoutCancel(ctx), s.redis, []string{schedulerLockKey}, s.nodeID).Err(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to release scheduler lease")
		}
	}
}
