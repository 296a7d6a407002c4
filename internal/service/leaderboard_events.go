package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/codearena-api/internal/dto"
	"github.com/noah-isme/codearena-api/internal/observability"
)

const leaderboardEventBufferSize = 16

// LeaderboardEvents fans leaderboard changes out to local stream subscribers and, when
// configured, to other API nodes over Redis pub/sub and NATS.
type LeaderboardEvents struct {
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	logger       zerolog.Logger
	nodeID       string

	mu          sync.RWMutex
	subscribers map[uint]map[chan dto.LeaderboardEvent]struct{}
}

type leaderboardEnvelope struct {
	Source string               `json:"source"`
	Event  dto.LeaderboardEvent `json:"event"`
}

// NewLeaderboardEvents constructs the event hub. Both transports are optional.
func NewLeaderboardEvents(redisClient *redis.Client, channelBase string, natsConn *nats.Conn, logger zerolog.Logger) *LeaderboardEvents {
	channel := ""
	subject := ""
	if channelBase != "" {
		channel = channelBase + ":leaderboard"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".leaderboard"
	}

	return &LeaderboardEvents{
		redis:        redisClient,
		redisChannel: channel,
		nats:         natsConn,
		natsSubject:  subject,
		logger:       logger.With().Str("component", "leaderboard_events").Logger(),
		nodeID:       uuid.NewString(),
		subscribers:  make(map[uint]map[chan dto.LeaderboardEvent]struct{}),
	}
}

// Start consumes remote events until ctx is cancelled.
func (e *LeaderboardEvents) Start(ctx context.Context) {
	if e.redis != nil && e.redisChannel != "" {
		go e.consumeRedis(ctx)
	}
	if e.nats != nil && e.natsSubject != "" {
		go e.consumeNATS(ctx)
	}
}

// Publish delivers the event locally and forwards it to the configured transports.
func (e *LeaderboardEvents) Publish(ctx context.Context, event dto.LeaderboardEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	e.broadcast(event)
	observability.LeaderboardEvents().WithLabelValues("local").Inc()

	payload, err := json.Marshal(leaderboardEnvelope{Source: e.nodeID, Event: event})
	if err != nil {
		e.logger.Warn().Err(err).Msg("failed to encode leaderboard event")
		return
	}

	if e.redis != nil && e.redisChannel != "" {
		if err := e.redis.Publish(ctx, e.redisChannel, payload).Err(); err != nil {
			e.logger.Warn().Err(err).Uint("contest_id", event.ContestID).Msg("failed to publish leaderboard event to redis")
		}
	}

	if e.nats != nil && e.natsSubject != "" {
		if err := e.nats.Publish(e.natsSubject, payload); err != nil {
			e.logger.Warn().Err(err).Uint("contest_id", event.ContestID).Msg("failed to publish leaderboard event to nats")
		}
	}
}

// Subscribe registers a stream listener for one contest. The returned func must be called
// once the listener goes away; it closes the channel.
func (e *LeaderboardEvents) Subscribe(contestID uint) (<-chan dto.LeaderboardEvent, func()) {
	channel := make(chan dto.LeaderboardEvent, leaderboardEventBufferSize)

	e.mu.Lock()
	if _, exists := e.subscribers[contestID]; !exists {
		e.subscribers[contestID] = make(map[chan dto.LeaderboardEvent]struct{})
	}
	e.subscribers[contestID][channel] = struct{}{}
	e.mu.Unlock()
	observability.StreamClientsActive().Inc()

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			e.mu.Lock()
			if subscribers, ok := e.subscribers[contestID]; ok {
				delete(subscribers, channel)
				if len(subscribers) == 0 {
					delete(e.subscribers, contestID)
				}
			}
			close(channel)
			e.mu.Unlock()
			observability.StreamClientsActive().Dec()
		})
	}

	return channel, cleanup
}

func (e *LeaderboardEvents) broadcast(event dto.LeaderboardEvent) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for ch := range e.subscribers[event.ContestID] {
		select {
		case ch <- event:
		default:
		}
	}
}

func (e *LeaderboardEvents) consumeRedis(ctx context.Context) {
	pubsub := e.redis.Subscribe(ctx, e.redisChannel)
	defer func() { _ = pubsub.Close() }()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			e.logger.Error().Err(err).Msg("leaderboard redis subscription closed")
			return
		}
		e.handleRemote([]byte(msg.Payload), "redis")
	}
}

func (e *LeaderboardEvents) consumeNATS(ctx context.Context) {
	sub, err := e.nats.Subscribe(e.natsSubject, func(msg *nats.Msg) {
		e.handleRemote(msg.Data, "nats")
	})
	if err != nil {
		e.logger.Error().Err(err).Msg("failed to subscribe to nats leaderboard subject")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			e.logger.Warn().Err(err).Msg("failed to drain leaderboard nats subscription")
		}
	}()
}

func (e *LeaderboardEvents) handleRemote(payload []byte, origin string) {
	var envelope leaderboardEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		e.logger.Warn().Err(err).Msg("invalid leaderboard event payload")
		return
	}

	if envelope.Source == e.nodeID || envelope.Event.ContestID == 0 {
		return
	}

	observability.LeaderboardEvents().WithLabelValues(origin).Inc()
	e.broadcast(envelope.Event)
}
