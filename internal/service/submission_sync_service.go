package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/noah-isme/codearena-api/internal/dto"
	"github.com/noah-isme/codearena-api/internal/models"
	"github.com/noah-isme/codearena-api/internal/observability"
	"github.com/noah-isme/codearena-api/internal/repository"
	"github.com/noah-isme/codearena-api/pkg/catalog"
)

// SubmissionSyncService polls the judge and credits accepted solutions made inside the
// contest window.
type SubmissionSyncService interface {
	CheckParticipant(ctx context.Context, contestID, userID uint) (dto.SyncResponse, error)
	SyncContest(ctx context.Context, contestID uint) (dto.SyncResponse, error)
}

// SubmissionSyncConfig carries the collaborators of the sync service.
type SubmissionSyncConfig struct {
	Contests    repository.ContestRepository
	Leaderboard repository.LeaderboardRepository
	Users       repository.UserRepository
	Scoring     LeaderboardService
	Catalog     catalog.Client
	FetchLimit  int
	Concurrency int
	Logger      zerolog.Logger
}

type submissionSyncService struct {
	contests    repository.ContestRepository
	leaderboard repository.LeaderboardRepository
	users       repository.UserRepository
	scoring     LeaderboardService
	catalog     catalog.Client
	fetchLimit  int
	concurrency int
	logger      zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewSubmissionSyncService constructs the sync service.
func NewSubmissionSyncService(cfg SubmissionSyncConfig) SubmissionSyncService {
	fetchLimit := cfg.FetchLimit
	if fetchLimit <= 0 {
		fetchLimit = 20
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	return &submissionSyncService{
		contests:    cfg.Contests,
		leaderboard: cfg.Leaderboard,
		users:       cfg.Users,
		scoring:     cfg.Scoring,
		catalog:     cfg.Catalog,
		fetchLimit:  fetchLimit,
		concurrency: concurrency,
		logger:      cfg.Logger.With().Str("component", "submission_sync_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/codearena-api/internal/service/sync"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *submissionSyncService) CheckParticipant(ctx context.Context, contestID, userID uint) (dto.SyncResponse, error) {
	ctx, span := s.tracer.Start(ctx, "submissions.check", trace.WithAttributes(
		attribute.Int64("contest.id", int64(contestID)),
		attribute.Int64("user.id", int64(userID)),
	))
	defer span.End()

	contest, err := s.startedContest(ctx, contestID)
	if err != nil {
		return dto.SyncResponse{}, err
	}

	problems, err := s.problemsBySlug(ctx, contestID)
	if err != nil {
		return dto.SyncResponse{}, err
	}

	response, err := s.check(ctx, contest, problems, userID)
	if err != nil {
		span.RecordError(err)
		observability.SyncParticipants().WithLabelValues("failed").Inc()
		return dto.SyncResponse{}, err
	}
	observability.SyncParticipants().WithLabelValues("checked").Inc()
	response.Participants = 1
	return response, nil
}

// SyncContest checks every participant concurrently. Domain failures of one participant are
// counted and logged; storage failures abort the pass.
func (s *submissionSyncService) SyncContest(ctx context.Context, contestID uint) (dto.SyncResponse, error) {
	ctx, span := s.tracer.Start(ctx, "submissions.sync_contest", trace.WithAttributes(
		attribute.Int64("contest.id", int64(contestID)),
	))
	defer span.End()

	contest, err := s.startedContest(ctx, contestID)
	if err != nil {
		return dto.SyncResponse{}, err
	}

	problems, err := s.problemsBySlug(ctx, contestID)
	if err != nil {
		return dto.SyncResponse{}, err
	}

	participants, err := s.leaderboard.ListParticipants(ctx, contestID)
	if err != nil {
		return dto.SyncResponse{}, fmt.Errorf("list participants: %w", err)
	}

	summary := dto.SyncResponse{ContestID: contestID, Participants: len(participants)}
	if len(problems) == 0 || len(participants) == 0 {
		return summary, nil
	}

	var mu sync.Mutex
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.concurrency)

	for _, participant := range participants {
		userID := participant.UserID
		group.Go(func() error {
			result, err := s.check(groupCtx, contest, problems, userID)
			if err != nil {
				if isDomainError(err) {
					observability.SyncParticipants().WithLabelValues("skipped").Inc()
					s.logger.Warn().Err(err).Uint("contest_id", contestID).Uint("user_id", userID).Msg("skipping participant during sync")
					mu.Lock()
					summary.Failed++
					mu.Unlock()
					return nil
				}
				observability.SyncParticipants().WithLabelValues("failed").Inc()
				return err
			}

			observability.SyncParticipants().WithLabelValues("checked").Inc()
			mu.Lock()
			summary.Checked += result.Checked
			summary.Credited += result.Credited
			summary.Duplicates += result.Duplicates
			summary.Credits = append(summary.Credits, result.Credits...)
			mu.Unlock()
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		span.RecordError(err)
		return summary, fmt.Errorf("sync contest %d: %w", contestID, err)
	}

	sort.Slice(summary.Credits, func(i, j int) bool {
		if summary.Credits[i].UserID != summary.Credits[j].UserID {
			return summary.Credits[i].UserID < summary.Credits[j].UserID
		}
		return summary.Credits[i].ProblemID < summary.Credits[j].ProblemID
	})

	if summary.Credited > 0 {
		s.logger.Info().
			Uint("contest_id", contestID).
			Int("participants", summary.Participants).
			Int("credited", summary.Credited).
			Msg("contest submissions synced")
	}
	return summary, nil
}

func (s *submissionSyncService) check(ctx context.Context, contest models.Contest, problems map[string]models.ContestProblem, userID uint) (dto.SyncResponse, error) {
	response := dto.SyncResponse{ContestID: contest.ID}

	if _, err := s.leaderboard.GetParticipant(ctx, contest.ID, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response, ErrParticipantNotFound
		}
		return response, fmt.Errorf("load participant: %w", err)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response, ErrUserHandleMissing
		}
		return response, fmt.Errorf("load user: %w", err)
	}
	handle := user.Handle()
	if handle == "" {
		return response, ErrUserHandleMissing
	}

	submissions, err := s.catalog.RecentSubmissions(ctx, handle, s.fetchLimit)
	if err != nil {
		if errors.Is(err, catalog.ErrUserNotFound) {
			return response, ErrUserNotFound
		}
		return response, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}

	sort.SliceStable(submissions, func(i, j int) bool {
		return submissions[i].SubmittedAt.Before(submissions[j].SubmittedAt)
	})

	seen := make(map[uint]struct{})
	for _, submission := range submissions {
		if !submission.Accepted() || !contest.Accepts(submission.SubmittedAt) {
			continue
		}
		problem, ok := problems[catalog.NormalizeSlug(submission.Slug)]
		if !ok {
			continue
		}

		response.Checked++
		if _, dup := seen[problem.ID]; dup {
			response.Duplicates++
			continue
		}
		seen[problem.ID] = struct{}{}

		credit, err := s.scoring.CreditPoints(ctx, CreditRequest{
			ContestID:   contest.ID,
			UserID:      userID,
			ProblemID:   problem.ID,
			Points:      problem.Points,
			SubmittedAt: submission.SubmittedAt,
		})
		if err != nil {
			return response, err
		}
		if credit.Credited {
			response.Credited++
			response.Credits = append(response.Credits, credit)
		} else {
			response.Duplicates++
		}
	}

	return response, nil
}

func (s *submissionSyncService) startedContest(ctx context.Context, contestID uint) (models.Contest, error) {
	contest, err := s.contests.GetByID(ctx, contestID)
	if err != nil {
		return models.Contest{}, mapContestError(err)
	}
	if contest.StatusAt(s.now()) == models.ContestStatusNotStarted {
		return models.Contest{}, ErrContestNotStarted
	}
	return contest, nil
}

func (s *submissionSyncService) problemsBySlug(ctx context.Context, contestID uint) (map[string]models.ContestProblem, error) {
	problems, err := s.contests.ListProblems(ctx, contestID)
	if err != nil {
		return nil, fmt.Errorf("list contest problems: %w", err)
	}
	bySlug := make(map[string]models.ContestProblem, len(problems))
	for _, problem := range problems {
		bySlug[problem.Slug] = problem
	}
	return bySlug, nil
}

func isDomainError(err error) bool {
	for _, target := range []error{
		ErrParticipantNotFound,
		ErrUserHandleMissing,
		ErrUserNotFound,
		ErrCatalogUnavailable,
		ErrContestClosed,
		ErrProblemNotFound,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
