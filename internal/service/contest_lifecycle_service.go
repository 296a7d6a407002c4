package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/codearena-api/internal/models"
	"github.com/noah-isme/codearena-api/internal/observability"
	"github.com/noah-isme/codearena-api/internal/repository"
)

// RefreshOutcome distinguishes a persisted transition from a no-op refresh.
type RefreshOutcome string

const (
	// RefreshUpdated means a new lifecycle state was persisted.
	RefreshUpdated RefreshOutcome = "updated"
	// RefreshUpToDate means the stored state already matched the classifier.
	RefreshUpToDate RefreshOutcome = "up_to_date"
)

// RefreshResult reports the outcome of a single-contest refresh.
type RefreshResult struct {
	ContestID uint
	Outcome   RefreshOutcome
	Status    models.ContestStatus
}

// SweepResult reports how many contests a sweep inspected and how many it transitioned.
type SweepResult struct {
	Checked int
	Updated int
}

// ContestLifecycleService keeps the stored contest status in line with wall-clock time.
type ContestLifecycleService interface {
	Sweep(ctx context.Context) (SweepResult, error)
	Refresh(ctx context.Context, id uint) (RefreshResult, error)
}

type contestLifecycleService struct {
	contests repository.ContestRepository
	logger   zerolog.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

// NewContestLifecycleService constructs the lifecycle service.
func NewContestLifecycleService(contests repository.ContestRepository, logger zerolog.Logger) ContestLifecycleService {
	return &contestLifecycleService{
		contests: contests,
		logger:   logger.With().Str("component", "contest_lifecycle_service").Logger(),
		tracer:   otel.Tracer("github.com/noah-isme/codearena-api/internal/service/lifecycle"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Sweep persists the classifier's state for every stale contest. Each write is conditional on
// the state it read, so overlapping sweeps and refreshes never regress a contest.
func (s *contestLifecycleService) Sweep(ctx context.Context) (SweepResult, error) {
	ctx, span := s.tracer.Start(ctx, "contests.sweep")
	defer span.End()

	start := time.Now()
	defer func() {
		observability.SweepDuration().Observe(time.Since(start).Seconds())
	}()

	contests, err := s.contests.ListAll(ctx)
	if err != nil {
		span.RecordError(err)
		return SweepResult{}, fmt.Errorf("list contests for sweep: %w", err)
	}

	now := s.now()
	result := SweepResult{Checked: len(contests)}
	for _, contest := range contests {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		updated, err := s.transition(ctx, contest, now)
		if err != nil {
			span.RecordError(err)
			return result, err
		}
		if updated {
			result.Updated++
		}
	}

	span.SetAttributes(
		attribute.Int("sweep.checked", result.Checked),
		attribute.Int("sweep.updated", result.Updated),
	)
	if result.Updated > 0 {
		s.logger.Info().Int("checked", result.Checked).Int("updated", result.Updated).Msg("contest statuses swept")
	}
	return result, nil
}

func (s *contestLifecycleService) Refresh(ctx context.Context, id uint) (RefreshResult, error) {
	contest, err := s.contests.GetByID(ctx, id)
	if err != nil {
		return RefreshResult{}, mapContestError(err)
	}

	now := s.now()
	updated, err := s.transition(ctx, contest, now)
	if err != nil {
		return RefreshResult{}, err
	}

	outcome := RefreshUpToDate
	if updated {
		outcome = RefreshUpdated
	}
	return RefreshResult{ContestID: id, Outcome: outcome, Status: contest.StatusAt(now)}, nil
}

func (s *contestLifecycleService) transition(ctx context.Context, contest models.Contest, now time.Time) (bool, error) {
	if !contest.IsStale(now) {
		return false, nil
	}

	derived := contest.StatusAt(now)
	updated, err := s.contests.UpdateStatus(ctx, contest.ID, contest.Status, derived, now)
	if err != nil {
		return false, fmt.Errorf("update contest %d status: %w", contest.ID, err)
	}
	if updated {
		observability.StatusTransitions().WithLabelValues(string(contest.Status), string(derived)).Inc()
		s.logger.Debug().
			Uint("contest_id", contest.ID).
			Str("from", string(contest.Status)).
			Str("to", string(derived)).
			Msg("contest status transitioned")
	}
	return updated, nil
}
