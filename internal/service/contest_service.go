package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gosimple/slug"
	"github.com/microcosm-cc/bluemonday"
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
	"github.com/noah-isme/codearena-api/pkg/catalog"
)

// ContestService exposes organizer and public contest operations.
type ContestService interface {
	Create(ctx context.Context, organizerID uint, req dto.CreateContestRequest) (dto.ContestResponse, error)
	Update(ctx context.Context, id uint, req dto.UpdateContestRequest) (dto.ContestResponse, error)
	Delete(ctx context.Context, id uint) error
	Get(ctx context.Context, id uint) (dto.ContestResponse, error)
	List(ctx context.Context, req dto.ContestListRequest) (dto.ContestListResult, error)
	AddProblem(ctx context.Context, contestID uint, req dto.AddProblemRequest) (dto.ContestProblemResponse, error)
	RemoveProblem(ctx context.Context, contestID, problemID uint) error
	ListProblems(ctx context.Context, contestID uint) ([]dto.ContestProblemResponse, error)
}

// ContestServiceConfig carries the collaborators of the contest service.
type ContestServiceConfig struct {
	Contests             repository.ContestRepository
	Users                repository.UserRepository
	Catalog              catalog.Client
	Cache                *LeaderboardCache
	Events               *LeaderboardEvents
	Validator            *validator.Validate
	MaxParticipantsLimit int
	Logger               zerolog.Logger
}

type contestService struct {
	contests  repository.ContestRepository
	users     repository.UserRepository
	catalog   catalog.Client
	cache     *LeaderboardCache
	events    *LeaderboardEvents
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	maxLimit  int
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewContestService constructs the contest service.
func NewContestService(cfg ContestServiceConfig) ContestService {
	validate := cfg.Validator
	if validate == nil {
		validate = validator.New()
	}
	limit := cfg.MaxParticipantsLimit
	if limit <= 0 {
		limit = 10000
	}

	return &contestService{
		contests:  cfg.Contests,
		users:     cfg.Users,
		catalog:   cfg.Catalog,
		cache:     cfg.Cache,
		events:    cfg.Events,
		validator: validate,
		sanitizer: bluemonday.UGCPolicy(),
		maxLimit:  limit,
		logger:    cfg.Logger.With().Str("component", "contest_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/codearena-api/internal/service/contest"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *contestService) Create(ctx context.Context, organizerID uint, req dto.CreateContestRequest) (dto.ContestResponse, error) {
	ctx, span := s.tracer.Start(ctx, "contests.create")
	defer span.End()

	if err := s.validator.Struct(req); err != nil {
		span.SetStatus(codes.Error, "validation failed")
		return dto.ContestResponse{}, err
	}

	name := strings.TrimSpace(req.Name)
	contestSlug := slug.Make(name)
	if contestSlug == "" {
		return dto.ContestResponse{}, fmt.Errorf("%w: name must contain letters or digits", ErrInvalidContest)
	}
	if req.MaxParticipants > s.maxLimit {
		return dto.ContestResponse{}, fmt.Errorf("%w: max participants exceeds %d", ErrInvalidContest, s.maxLimit)
	}

	taken, err := s.contests.ExistsByName(ctx, name, 0)
	if err != nil {
		span.RecordError(err)
		return dto.ContestResponse{}, fmt.Errorf("check contest name: %w", err)
	}
	if taken {
		return dto.ContestResponse{}, ErrContestNameTaken
	}

	now := s.now()
	start := req.StartTime.UTC()
	contest := models.Contest{
		Name:            name,
		Slug:            contestSlug,
		Description:     strings.TrimSpace(s.sanitizer.Sanitize(req.Description)),
		StartTime:       start,
		DurationMinutes: req.DurationMinutes,
		MaxParticipants: req.MaxParticipants,
		Status:          models.ClassifyContest(now, start, req.DurationMinutes),
		StatusChangedAt: &now,
		CreatedBy:       organizerID,
	}

	if err := s.contests.Create(ctx, &contest); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return dto.ContestResponse{}, ErrContestNameTaken
		}
		span.RecordError(err)
		return dto.ContestResponse{}, fmt.Errorf("create contest: %w", err)
	}

	span.SetAttributes(attribute.Int64("contest.id", int64(contest.ID)))
	s.logger.Info().Uint("contest_id", contest.ID).Uint("organizer_id", organizerID).Msg("contest created")

	return dto.NewContestResponse(contest, now), nil
}

func (s *contestService) Update(ctx context.Context, id uint, req dto.UpdateContestRequest) (dto.ContestResponse, error) {
	ctx, span := s.tracer.Start(ctx, "contests.update", trace.WithAttributes(attribute.Int64("contest.id", int64(id))))
	defer span.End()

	if err := s.validator.Struct(req); err != nil {
		span.SetStatus(codes.Error, "validation failed")
		return dto.ContestResponse{}, err
	}

	current, err := s.contests.GetByID(ctx, id)
	if err != nil {
		return dto.ContestResponse{}, mapContestError(err)
	}

	updates := map[string]interface{}{}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		contestSlug := slug.Make(name)
		if contestSlug == "" {
			return dto.ContestResponse{}, fmt.Errorf("%w: name must contain letters or digits", ErrInvalidContest)
		}
		if !strings.EqualFold(name, current.Name) {
			taken, err := s.contests.ExistsByName(ctx, name, id)
			if err != nil {
				return dto.ContestResponse{}, fmt.Errorf("check contest name: %w", err)
			}
			if taken {
				return dto.ContestResponse{}, ErrContestNameTaken
			}
		}
		updates["name"] = name
		updates["slug"] = contestSlug
	}

	if req.Description != nil {
		updates["description"] = strings.TrimSpace(s.sanitizer.Sanitize(*req.Description))
	}

	if req.MaxParticipants != nil {
		if *req.MaxParticipants > s.maxLimit {
			return dto.ContestResponse{}, fmt.Errorf("%w: max participants exceeds %d", ErrInvalidContest, s.maxLimit)
		}
		updates["max_participants"] = *req.MaxParticipants
	}

	if req.StartTime != nil {
		if req.StartTime.IsZero() {
			return dto.ContestResponse{}, fmt.Errorf("%w: start time is required", ErrInvalidContest)
		}
		updates["start_time"] = req.StartTime.UTC()
	}
	if req.DurationMinutes != nil {
		updates["duration_minutes"] = *req.DurationMinutes
	}

	now := s.now()
	if len(updates) == 0 {
		return dto.NewContestResponse(current, now), nil
	}

	updated, err := s.contests.Update(ctx, id, updates, now)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrCapacityBelowParticipants):
			return dto.ContestResponse{}, fmt.Errorf("%w: %v", ErrInvalidContest, err)
		case errors.Is(err, gorm.ErrDuplicatedKey):
			return dto.ContestResponse{}, ErrContestNameTaken
		default:
			span.RecordError(err)
			return dto.ContestResponse{}, mapContestError(err)
		}
	}

	if updated.Status != current.Status {
		observability.StatusTransitions().WithLabelValues(string(current.Status), string(updated.Status)).Inc()
	}

	s.cache.Invalidate(ctx, id)
	return dto.NewContestResponse(updated, now), nil
}

func (s *contestService) Delete(ctx context.Context, id uint) error {
	ctx, span := s.tracer.Start(ctx, "contests.delete", trace.WithAttributes(attribute.Int64("contest.id", int64(id))))
	defer span.End()

	if err := s.contests.Delete(ctx, id); err != nil {
		span.RecordError(err)
		return mapContestError(err)
	}

	if _, err := s.users.RecalculateGlobalRanks(ctx); err != nil {
		s.logger.Error().Err(err).Uint("contest_id", id).Msg("failed to recalculate global ranks after contest deletion")
	}

	s.cache.Invalidate(ctx, id)
	if s.events != nil {
		s.events.Publish(ctx, dto.LeaderboardEvent{ContestID: id, Reason: EventReasonContestDeleted, OccurredAt: s.now()})
	}

	s.logger.Info().Uint("contest_id", id).Msg("contest deleted")
	return nil
}

func (s *contestService) Get(ctx context.Context, id uint) (dto.ContestResponse, error) {
	contest, err := s.contests.GetByID(ctx, id)
	if err != nil {
		return dto.ContestResponse{}, mapContestError(err)
	}

	now := s.now()
	s.refreshIfStale(ctx, contest, now)
	return dto.NewContestResponse(contest, now), nil
}

func (s *contestService) List(ctx context.Context, req dto.ContestListRequest) (dto.ContestListResult, error) {
	status := models.ContestStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	if status != "" && !status.Valid() {
		return dto.ContestListResult{}, fmt.Errorf("%w: unknown status %q", ErrInvalidContest, req.Status)
	}

	page := normalizePage(req.Page)
	pageSize := clampPageSize(req.PageSize)
	now := s.now()

	contests, total, err := s.contests.List(ctx, repository.ContestFilter{
		Status:   status,
		Now:      now,
		Search:   strings.TrimSpace(req.Search),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		return dto.ContestListResult{}, fmt.Errorf("list contests: %w", err)
	}

	items := make([]dto.ContestResponse, 0, len(contests))
	for _, contest := range contests {
		s.refreshIfStale(ctx, contest, now)
		items = append(items, dto.NewContestResponse(contest, now))
	}

	return dto.ContestListResult{
		Items:      items,
		Pagination: dto.NewPaginationMeta(page, pageSize, total),
	}, nil
}

func (s *contestService) AddProblem(ctx context.Context, contestID uint, req dto.AddProblemRequest) (dto.ContestProblemResponse, error) {
	ctx, span := s.tracer.Start(ctx, "contests.add_problem", trace.WithAttributes(attribute.Int64("contest.id", int64(contestID))))
	defer span.End()

	if err := s.validator.Struct(req); err != nil {
		return dto.ContestProblemResponse{}, err
	}

	contest, err := s.contests.GetByID(ctx, contestID)
	if err != nil {
		return dto.ContestProblemResponse{}, mapContestError(err)
	}
	if contest.StatusAt(s.now()) == models.ContestStatusEnded {
		return dto.ContestProblemResponse{}, ErrContestClosed
	}

	problem, err := s.catalog.LookupProblem(ctx, req.Query)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, catalog.ErrProblemNotFound) {
			return dto.ContestProblemResponse{}, ErrProblemNotFound
		}
		return dto.ContestProblemResponse{}, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}

	points := models.DefaultPoints(problem.Difficulty)
	if req.Points != nil {
		points = *req.Points
	}

	model := models.ContestProblem{
		ContestID:  contestID,
		ExternalID: problem.ID,
		Title:      problem.Title,
		Slug:       slug.Make(problem.Slug),
		Difficulty: problem.Difficulty,
		URL:        problem.URL,
		Points:     points,
	}
	model.SetTags(problem.Tags)

	if err := s.contests.AddProblem(ctx, &model); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return dto.ContestProblemResponse{}, ErrProblemAlreadyAdded
		}
		span.RecordError(err)
		return dto.ContestProblemResponse{}, mapContestError(err)
	}

	return dto.NewContestProblemResponse(model), nil
}

func (s *contestService) RemoveProblem(ctx context.Context, contestID, problemID uint) error {
	contest, err := s.contests.GetByID(ctx, contestID)
	if err != nil {
		return mapContestError(err)
	}
	if contest.StatusAt(s.now()) == models.ContestStatusEnded {
		return ErrContestClosed
	}

	if err := s.contests.RemoveProblem(ctx, contestID, problemID); err != nil {
		if errors.Is(err, repository.ErrProblemNotInContest) {
			return ErrProblemNotFound
		}
		return mapContestError(err)
	}
	return nil
}

func (s *contestService) ListProblems(ctx context.Context, contestID uint) ([]dto.ContestProblemResponse, error) {
	if _, err := s.contests.GetByID(ctx, contestID); err != nil {
		return nil, mapContestError(err)
	}

	problems, err := s.contests.ListProblems(ctx, contestID)
	if err != nil {
		return nil, fmt.Errorf("list contest problems: %w", err)
	}
	return dto.NewContestProblemResponseSlice(problems), nil
}

// refreshIfStale writes the classifier's status back when the cached one is out of date.
// Reads never fail because of it; the sweep retries later.
func (s *contestService) refreshIfStale(ctx context.Context, contest models.Contest, now time.Time) {
	if !contest.IsStale(now) {
		return
	}
	derived := contest.StatusAt(now)
	updated, err := s.contests.UpdateStatus(ctx, contest.ID, contest.Status, derived, now)
	if err != nil {
		s.logger.Warn().Err(err).Uint("contest_id", contest.ID).Msg("failed to refresh stale contest status")
		return
	}
	if updated {
		observability.StatusTransitions().WithLabelValues(string(contest.Status), string(derived)).Inc()
	}
}

func mapContestError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrContestNotFound
	}
	return fmt.Errorf("contest storage: %w", err)
}
