package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/codearena-api/internal/dto"
	"github.com/noah-isme/codearena-api/internal/models"
	"github.com/noah-isme/codearena-api/internal/observability"
	"github.com/noah-isme/codearena-api/internal/repository"
)

// Leaderboard event reasons.
const (
	EventReasonJoin           = "join"
	EventReasonCredit         = "credit"
	EventReasonRemove         = "remove"
	EventReasonRerank         = "rerank"
	EventReasonContestDeleted = "contest_deleted"
)

// CreditRequest identifies an accepted solve. Zero Points awards the problem's configured points.
type CreditRequest struct {
	ContestID   uint
	UserID      uint
	ProblemID   uint
	Points      int
	SubmittedAt time.Time
}

// LeaderboardService maintains contest membership, scores and rankings.
type LeaderboardService interface {
	Join(ctx context.Context, contestID, userID uint) (dto.JoinResponse, error)
	CreditPoints(ctx context.Context, req CreditRequest) (dto.CreditResponse, error)
	Rerank(ctx context.Context, contestID uint) (int, error)
	RemoveParticipant(ctx context.Context, contestID, userID uint) (dto.RemoveParticipantResponse, error)
	Leaderboard(ctx context.Context, req dto.LeaderboardRequest) (dto.LeaderboardResponse, error)
	Entry(ctx context.Context, contestID, userID uint) (dto.LeaderboardEntryResponse, error)
	Participants(ctx context.Context, contestID uint) ([]dto.ParticipantResponse, error)
	GlobalRanking(ctx context.Context, page, pageSize int) (dto.RankingResponse, error)
	Subscribe(contestID uint) (<-chan dto.LeaderboardEvent, func())
}

type leaderboardService struct {
	contests repository.ContestRepository
	repo     repository.LeaderboardRepository
	users    repository.UserRepository
	cache    *LeaderboardCache
	events   *LeaderboardEvents
	logger   zerolog.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

// NewLeaderboardService constructs the leaderboard service. cache and events may be nil.
func NewLeaderboardService(contests repository.ContestRepository, repo repository.LeaderboardRepository, users repository.UserRepository, cache *LeaderboardCache, events *LeaderboardEvents, logger zerolog.Logger) LeaderboardService {
	return &leaderboardService{
		contests: contests,
		repo:     repo,
		users:    users,
		cache:    cache,
		events:   events,
		logger:   logger.With().Str("component", "leaderboard_service").Logger(),
		tracer:   otel.Tracer("github.com/noah-isme/codearena-api/internal/service/leaderboard"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *leaderboardService) Join(ctx context.Context, contestID, userID uint) (dto.JoinResponse, error) {
	ctx, span := s.tracer.Start(ctx, "leaderboard.join", trace.WithAttributes(
		attribute.Int64("contest.id", int64(contestID)),
		attribute.Int64("user.id", int64(userID)),
	))
	defer span.End()

	result, err := s.repo.Join(ctx, contestID, userID, s.now())
	if err != nil {
		observability.LeaderboardMutations().WithLabelValues("join", "error").Inc()
		return dto.JoinResponse{}, s.fail(span, mapLeaderboardError(err))
	}

	outcome := "noop"
	if result.Joined {
		outcome = "applied"
		s.changed(ctx, contestID, userID, EventReasonJoin)
		s.refreshGlobalRanks(ctx)
	}
	observability.LeaderboardMutations().WithLabelValues("join", outcome).Inc()

	contest, err := s.contests.GetByID(ctx, contestID)
	if err != nil {
		return dto.JoinResponse{}, s.fail(span, mapLeaderboardError(err))
	}

	return dto.JoinResponse{
		ContestID:        contestID,
		UserID:           userID,
		Joined:           result.Joined,
		Rank:             result.Entry.Rank,
		Score:            result.Entry.Score,
		JoinedAt:         result.Entry.JoinedAt.UTC(),
		ParticipantCount: contest.ParticipantCount,
	}, nil
}

func (s *leaderboardService) CreditPoints(ctx context.Context, req CreditRequest) (dto.CreditResponse, error) {
	ctx, span := s.tracer.Start(ctx, "leaderboard.credit", trace.WithAttributes(
		attribute.Int64("contest.id", int64(req.ContestID)),
		attribute.Int64("user.id", int64(req.UserID)),
		attribute.Int64("problem.id", int64(req.ProblemID)),
	))
	defer span.End()

	if req.Points < 0 {
		return dto.CreditResponse{}, s.fail(span, fmt.Errorf("%w: points must not be negative", ErrInvalidContest))
	}

	submittedAt := req.SubmittedAt
	if submittedAt.IsZero() {
		submittedAt = s.now()
	}

	result, err := s.repo.Credit(ctx, repository.CreditInput{
		ContestID:   req.ContestID,
		UserID:      req.UserID,
		ProblemID:   req.ProblemID,
		Points:      req.Points,
		SubmittedAt: submittedAt,
	})
	if err != nil {
		observability.LeaderboardMutations().WithLabelValues("credit", "error").Inc()
		return dto.CreditResponse{}, s.fail(span, mapLeaderboardError(err))
	}

	outcome := "noop"
	if result.Credited {
		outcome = "applied"
		s.refreshGlobalRanks(ctx)
		s.changed(ctx, req.ContestID, req.UserID, EventReasonCredit)
	}
	observability.LeaderboardMutations().WithLabelValues("credit", outcome).Inc()

	return dto.CreditResponse{
		ContestID:        req.ContestID,
		UserID:           req.UserID,
		ProblemID:        req.ProblemID,
		Credited:         result.Credited,
		Points:           result.Solve.Points,
		Score:            result.Entry.Score,
		Rank:             result.Entry.Rank,
		TimeTakenSeconds: result.Solve.TimeTakenSeconds,
	}, nil
}

func (s *leaderboardService) Rerank(ctx context.Context, contestID uint) (int, error) {
	ctx, span := s.tracer.Start(ctx, "leaderboard.rerank", trace.WithAttributes(
		attribute.Int64("contest.id", int64(contestID)),
	))
	defer span.End()

	changes, err := s.repo.Rerank(ctx, contestID)
	if err != nil {
		return 0, s.fail(span, mapLeaderboardError(err))
	}

	observability.RerankChangedRanks().Observe(float64(len(changes)))
	if len(changes) > 0 {
		s.changed(ctx, contestID, 0, EventReasonRerank)
	}
	return len(changes), nil
}

func (s *leaderboardService) RemoveParticipant(ctx context.Context, contestID, userID uint) (dto.RemoveParticipantResponse, error) {
	ctx, span := s.tracer.Start(ctx, "leaderboard.remove", trace.WithAttributes(
		attribute.Int64("contest.id", int64(contestID)),
		attribute.Int64("user.id", int64(userID)),
	))
	defer span.End()

	removed, err := s.repo.Remove(ctx, contestID, userID)
	if err != nil {
		observability.LeaderboardMutations().WithLabelValues("remove", "error").Inc()
		return dto.RemoveParticipantResponse{}, s.fail(span, mapLeaderboardError(err))
	}
	observability.LeaderboardMutations().WithLabelValues("remove", "applied").Inc()

	if removed.Points != 0 {
		s.refreshGlobalRanks(ctx)
	}
	s.changed(ctx, contestID, userID, EventReasonRemove)

	return dto.RemoveParticipantResponse{
		ContestID:     contestID,
		UserID:        userID,
		RemovedPoints: removed.Points,
	}, nil
}

func (s *leaderboardService) Leaderboard(ctx context.Context, req dto.LeaderboardRequest) (dto.LeaderboardResponse, error) {
	page := normalizePage(req.Page)
	pageSize := clampPageSize(req.PageSize)

	contest, err := s.contests.GetByID(ctx, req.ContestID)
	if err != nil {
		return dto.LeaderboardResponse{}, mapLeaderboardError(err)
	}

	// GeneratedAt keeps the snapshot time; the status can move while the page is cached.
	if cached, ok := s.cache.Get(ctx, req.ContestID, page, pageSize); ok {
		cached.Status = contest.StatusAt(s.now())
		return cached, nil
	}

	entries, total, err := s.repo.List(ctx, req.ContestID, page, pageSize)
	if err != nil {
		return dto.LeaderboardResponse{}, fmt.Errorf("list leaderboard: %w", err)
	}

	profiles, err := s.profiles(ctx, entryUserIDs(entries))
	if err != nil {
		return dto.LeaderboardResponse{}, err
	}

	items := make([]dto.LeaderboardEntryResponse, 0, len(entries))
	for _, entry := range entries {
		items = append(items, dto.NewLeaderboardEntryResponse(entry, profiles[entry.UserID]))
	}

	now := s.now()
	response := dto.LeaderboardResponse{
		ContestID:   contest.ID,
		Status:      contest.StatusAt(now),
		Items:       items,
		Pagination:  dto.NewPaginationMeta(page, pageSize, total),
		GeneratedAt: now,
	}

	s.cache.Set(ctx, req.ContestID, page, pageSize, response)
	return response, nil
}

func (s *leaderboardService) Entry(ctx context.Context, contestID, userID uint) (dto.LeaderboardEntryResponse, error) {
	entry, err := s.repo.Get(ctx, contestID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.LeaderboardEntryResponse{}, ErrParticipantNotFound
		}
		return dto.LeaderboardEntryResponse{}, fmt.Errorf("load leaderboard entry: %w", err)
	}

	profiles, err := s.profiles(ctx, []uint{userID})
	if err != nil {
		return dto.LeaderboardEntryResponse{}, err
	}
	return dto.NewLeaderboardEntryResponse(entry, profiles[userID]), nil
}

func (s *leaderboardService) Participants(ctx context.Context, contestID uint) ([]dto.ParticipantResponse, error) {
	if _, err := s.contests.GetByID(ctx, contestID); err != nil {
		return nil, mapLeaderboardError(err)
	}

	participants, err := s.repo.ListParticipants(ctx, contestID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}

	ids := make([]uint, 0, len(participants))
	for _, participant := range participants {
		ids = append(ids, participant.UserID)
	}
	profiles, err := s.profiles(ctx, ids)
	if err != nil {
		return nil, err
	}

	items := make([]dto.ParticipantResponse, 0, len(participants))
	for _, participant := range participants {
		items = append(items, dto.NewParticipantResponse(participant, profiles[participant.UserID]))
	}
	return items, nil
}

func (s *leaderboardService) GlobalRanking(ctx context.Context, page, pageSize int) (dto.RankingResponse, error) {
	page = normalizePage(page)
	pageSize = clampPageSize(pageSize)

	users, total, err := s.users.ListRanking(ctx, page, pageSize)
	if err != nil {
		return dto.RankingResponse{}, fmt.Errorf("list global ranking: %w", err)
	}

	items := make([]dto.UserProfileResponse, 0, len(users))
	for _, user := range users {
		items = append(items, dto.NewUserProfileResponse(user))
	}

	return dto.RankingResponse{
		Items:      items,
		Pagination: dto.NewPaginationMeta(page, pageSize, total),
	}, nil
}

func (s *leaderboardService) Subscribe(contestID uint) (<-chan dto.LeaderboardEvent, func()) {
	if s.events == nil {
		ch := make(chan dto.LeaderboardEvent)
		return ch, func() {}
	}
	return s.events.Subscribe(contestID)
}

func (s *leaderboardService) changed(ctx context.Context, contestID, userID uint, reason string) {
	s.cache.Invalidate(ctx, contestID)
	if s.events != nil {
		s.events.Publish(ctx, dto.LeaderboardEvent{
			ContestID:  contestID,
			Reason:     reason,
			UserID:     userID,
			OccurredAt: s.now(),
		})
	}
}

// refreshGlobalRanks runs after the per-contest transaction committed. A failure leaves the
// global ranks stale until the next mutation, so it is logged rather than returned.
func (s *leaderboardService) refreshGlobalRanks(ctx context.Context) {
	if _, err := s.users.RecalculateGlobalRanks(ctx); err != nil {
		s.logger.Error().Err(err).Msg("failed to recalculate global ranks")
	}
}

func (s *leaderboardService) profiles(ctx context.Context, ids []uint) (map[uint]*models.User, error) {
	users, err := s.users.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load user profiles: %w", err)
	}
	profiles := make(map[uint]*models.User, len(users))
	for i := range users {
		profiles[users[i].ID] = &users[i]
	}
	return profiles, nil
}

func (s *leaderboardService) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func entryUserIDs(entries []models.LeaderboardEntry) []uint {
	ids := make([]uint, 0, len(entries))
	for _, entry := range entries {
		ids = append(ids, entry.UserID)
	}
	return ids
}

func mapLeaderboardError(err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrContestNotFound
	case errors.Is(err, repository.ErrContestFull):
		return ErrContestFull
	case errors.Is(err, repository.ErrContestClosed):
		return ErrContestClosed
	case errors.Is(err, repository.ErrNotParticipant):
		return ErrParticipantNotFound
	case errors.Is(err, repository.ErrProblemNotInContest):
		return ErrProblemNotFound
	default:
		return fmt.Errorf("leaderboard storage: %w", err)
	}
}
