package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/codearena-api/internal/dto"
	"github.com/noah-isme/codearena-api/internal/observability"
)

// LeaderboardCache stores rendered leaderboard pages under a per-contest version. Bumping the
// version orphans every cached page of the contest at once; orphans expire with the TTL.
type LeaderboardCache struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewLeaderboardCache builds the cache. A nil client disables it.
func NewLeaderboardCache(client *redis.Client, ttl time.Duration, logger zerolog.Logger) *LeaderboardCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &LeaderboardCache{
		client: client,
		ttl:    ttl,
		logger: logger.With().Str("component", "leaderboard_cache").Logger(),
	}
}

// Get returns the cached page, if any.
func (c *LeaderboardCache) Get(ctx context.Context, contestID uint, page, pageSize int) (dto.LeaderboardResponse, bool) {
	if c == nil || c.client == nil {
		return dto.LeaderboardResponse{}, false
	}

	key, err := c.pageKey(ctx, contestID, page, pageSize)
	if err != nil {
		c.logger.Warn().Err(err).Uint("contest_id", contestID).Msg("failed to read leaderboard cache version")
		return dto.LeaderboardResponse{}, false
	}

	cached, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn().Err(err).Msg("failed to read leaderboard cache")
		}
		observability.LeaderboardCache().WithLabelValues("miss").Inc()
		return dto.LeaderboardResponse{}, false
	}

	var response dto.LeaderboardResponse
	if err := json.Unmarshal(cached, &response); err != nil {
		observability.LeaderboardCache().WithLabelValues("miss").Inc()
		return dto.LeaderboardResponse{}, false
	}

	observability.LeaderboardCache().WithLabelValues("hit").Inc()
	response.CacheHit = true
	return response, true
}

// Set stores a rendered page.
func (c *LeaderboardCache) Set(ctx context.Context, contestID uint, page, pageSize int, response dto.LeaderboardResponse) {
	if c == nil || c.client == nil {
		return
	}

	key, err := c.pageKey(ctx, contestID, page, pageSize)
	if err != nil {
		return
	}

	payload, err := json.Marshal(response)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Msg("failed to write leaderboard cache")
	}
}

// Invalidate bumps the contest's cache version.
func (c *LeaderboardCache) Invalidate(ctx context.Context, contestID uint) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Incr(ctx, versionKey(contestID)).Err(); err != nil {
		c.logger.Warn().Err(err).Uint("contest_id", contestID).Msg("failed to bump leaderboard cache version")
	}
}

func (c *LeaderboardCache) pageKey(ctx context.Context, contestID uint, page, pageSize int) (string, error) {
	version, err := c.client.Get(ctx, versionKey(contestID)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", err
	}
	return fmt.Sprintf("leaderboard:contest:%d:v%d:%d:%d", contestID, version, page, pageSize), nil
}

func versionKey(contestID uint) string {
	return fmt.Sprintf("leaderboard:contest:%d:version", contestID)
}
