package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var catalogCacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "arena",
	Subsystem: "catalog",
	Name:      "cache_requests_total",
	Help:      "Catalog problem cache lookups by outcome",
}, []string{"outcome"})

// CachedClient is a read-through Redis cache in front of another client. Only problem
// metadata is cached; submissions always go to the judge.
type CachedClient struct {
	next   Client
	cache  *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewCachedClient wraps next with a problem metadata cache. A nil cache disables caching.
func NewCachedClient(next Client, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) *CachedClient {
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}
	return &CachedClient{
		next:   next,
		cache:  cache,
		ttl:    ttl,
		logger: logger.With().Str("component", "catalog_cache").Logger(),
	}
}

func (c *CachedClient) LookupProblem(ctx context.Context, query string) (Problem, error) {
	titleSlug := NormalizeSlug(query)
	if titleSlug == "" {
		return Problem{}, ErrProblemNotFound
	}
	if c.cache == nil {
		return c.next.LookupProblem(ctx, titleSlug)
	}

	key := problemCacheKey(titleSlug)
	cached, err := c.cache.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var problem Problem
		if err := json.Unmarshal(cached, &problem); err == nil {
			catalogCacheRequests.WithLabelValues("hit").Inc()
			return problem, nil
		}
		c.logger.Warn().Str("key", key).Msg("discarding malformed catalog cache entry")
	case !errors.Is(err, redis.Nil):
		c.logger.Warn().Err(err).Msg("failed to read catalog cache")
	}

	catalogCacheRequests.WithLabelValues("miss").Inc()
	problem, err := c.next.LookupProblem(ctx, titleSlug)
	if err != nil {
		return Problem{}, err
	}

	if payload, err := json.Marshal(problem); err == nil {
		if err := c.cache.Set(ctx, key, payload, c.ttl).Err(); err != nil {
			c.logger.Warn().Err(err).Msg("failed to write catalog cache")
		}
	}
	return problem, nil
}

func (c *CachedClient) RecentSubmissions(ctx context.Context, username string, limit int) ([]Submission, error) {
	return c.next.RecentSubmissions(ctx, username, limit)
}

func problemCacheKey(titleSlug string) string {
	return "catalog:problem:v1:" + titleSlug
}
