package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce           sync.Once
	httpRequestsTotal      *prometheus.CounterVec
	httpLatencySeconds     *prometheus.HistogramVec
	httpErrorsTotal        *prometheus.CounterVec
	leaderboardMutations   *prometheus.CounterVec
	rerankChangedRanks     prometheus.Histogram
	leaderboardCacheTotal  *prometheus.CounterVec
	statusTransitionsTotal *prometheus.CounterVec
	sweepDurationSeconds   prometheus.Histogram
	syncParticipantsTotal  *prometheus.CounterVec
	streamClientsActive    prometheus.Gauge
	leaderboardEventsTotal *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used across the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arena_http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "arena_http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arena_http_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		leaderboardMutations = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arena_leaderboard_mutations_total",
			Help: "Leaderboard mutations by operation and outcome.",
		}, []string{"operation", "outcome"})

		rerankChangedRanks = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "arena_rerank_changed_ranks",
			Help:    "Number of ranks rewritten by a single rerank.",
			Buckets: []float64{0, 1, 2, 5, 10, 50, 100, 500, 1000},
		})

		leaderboardCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arena_leaderboard_cache_requests_total",
			Help: "Leaderboard cache lookups by outcome.",
		}, []string{"outcome"})

		statusTransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arena_contest_status_transitions_total",
			Help: "Persisted contest lifecycle transitions.",
		}, []string{"from", "to"})

		sweepDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "arena_contest_sweep_duration_seconds",
			Help:    "Duration of lifecycle sweeps.",
			Buckets: prometheus.DefBuckets,
		})

		syncParticipantsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arena_submission_sync_participants_total",
			Help: "Participants checked against the judge by outcome.",
		}, []string{"outcome"})

		streamClientsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "arena_leaderboard_stream_clients",
			Help: "Connected leaderboard stream clients.",
		})

		leaderboardEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arena_leaderboard_events_total",
			Help: "Leaderboard events delivered to local subscribers by origin.",
		}, []string{"origin"})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			httpErrorsTotal,
			leaderboardMutations,
			rerankChangedRanks,
			leaderboardCacheTotal,
			statusTransitionsTotal,
			sweepDurationSeconds,
			syncParticipantsTotal,
			streamClientsActive,
			leaderboardEventsTotal,
		)
	})
}

// HTTPRequests exposes the counter for API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// LeaderboardMutations counts joins, credits and removals.
func LeaderboardMutations() *prometheus.CounterVec {
	RegisterMetrics()
	return leaderboardMutations
}

// RerankChangedRanks observes how many ranks a rerank rewrote.
func RerankChangedRanks() prometheus.Histogram {
	RegisterMetrics()
	return rerankChangedRanks
}

// LeaderboardCache counts leaderboard cache hits and misses.
func LeaderboardCache() *prometheus.CounterVec {
	RegisterMetrics()
	return leaderboardCacheTotal
}

// StatusTransitions counts persisted lifecycle transitions.
func StatusTransitions() *prometheus.CounterVec {
	RegisterMetrics()
	return statusTransitionsTotal
}

// SweepDuration observes lifecycle sweep durations.
func SweepDuration() prometheus.Histogram {
	RegisterMetrics()
	return sweepDurationSeconds
}

// SyncParticipants counts judge checks per participant.
func SyncParticipants() *prometheus.CounterVec {
	RegisterMetrics()
	return syncParticipantsTotal
}

// StreamClientsActive tracks connected leaderboard stream clients.
func StreamClientsActive() prometheus.Gauge {
	RegisterMetrics()
	return streamClientsActive
}

// LeaderboardEvents counts events fanned out to local subscribers.
func LeaderboardEvents() *prometheus.CounterVec {
	RegisterMetrics()
	return leaderboardEventsTotal
}
