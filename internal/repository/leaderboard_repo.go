package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/codearena-api/internal/models"
)

var (
	// ErrContestFull indicates the contest reached its participant cap.
	ErrContestFull = errors.New("contest is full")
	// ErrContestClosed indicates the contest no longer accepts the mutation.
	ErrContestClosed = errors.New("contest has ended")
	// ErrNotParticipant indicates the user has not joined the contest.
	ErrNotParticipant = errors.New("user is not a participant of the contest")
	// ErrProblemNotInContest indicates the problem does not belong to the contest.
	ErrProblemNotInContest = errors.New("problem does not belong to the contest")
)

// JoinResult reports the outcome of a join. Joined is false when the user was already a member.
type JoinResult struct {
	Entry  models.LeaderboardEntry
	Joined bool
}

// CreditInput describes an accepted solve to be credited. A zero Points awards the problem's points.
type CreditInput struct {
	ContestID   uint
	UserID      uint
	ProblemID   uint
	Points      int
	SubmittedAt time.Time
}

// CreditResult reports the outcome of a credit. Credited is false when the solve had already
// been recorded, in which case Solve is the existing record.
type CreditResult struct {
	Solve    models.ProblemSolved
	Entry    models.LeaderboardEntry
	Credited bool
}

// LeaderboardRepository maintains participants, solves and dense per-contest ranks.
// Every mutation runs in one transaction holding the contest row lock and ends with a rerank.
type LeaderboardRepository interface {
	Join(ctx context.Context, contestID, userID uint, now time.Time) (JoinResult, error)
	Credit(ctx context.Context, input CreditInput) (CreditResult, error)
	Rerank(ctx context.Context, contestID uint) ([]models.RankChange, error)
	Remove(ctx context.Context, contestID, userID uint) (models.ContestParticipant, error)
	List(ctx context.Context, contestID uint, page, pageSize int) ([]models.LeaderboardEntry, int64, error)
	Get(ctx context.Context, contestID, userID uint) (models.LeaderboardEntry, error)
	GetParticipant(ctx context.Context, contestID, userID uint) (models.ContestParticipant, error)
	ListParticipants(ctx context.Context, contestID uint) ([]models.ContestParticipant, error)
	ListSolves(ctx context.Context, contestID, userID uint) ([]models.ProblemSolved, error)
}

// NewLeaderboardRepository constructs a leaderboard repository.
func NewLeaderboardRepository(db *gorm.DB) LeaderboardRepository {
	return &leaderboardRepository{db: db}
}

type leaderboardRepository struct {
	db *gorm.DB
}

func (r *leaderboardRepository) Join(ctx context.Context, contestID, userID uint, now time.Time) (JoinResult, error) {
	var result JoinResult
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		contest, err := lockContest(tx, contestID)
		if err != nil {
			return err
		}

		existing, err := findEntry(tx, contestID, userID)
		if err == nil {
			result.Entry = existing
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if contest.StatusAt(now) == models.ContestStatusEnded {
			return ErrContestClosed
		}
		if contest.IsFull() {
			return ErrContestFull
		}

		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.User{ID: userID}).Error; err != nil {
			return err
		}

		participant := models.ContestParticipant{ContestID: contestID, UserID: userID, JoinedAt: now}
		inserted := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&participant)
		if inserted.Error != nil {
			return inserted.Error
		}
		if inserted.RowsAffected == 0 {
			result.Entry, err = findEntry(tx, contestID, userID)
			return err
		}

		entry := models.LeaderboardEntry{ContestID: contestID, UserID: userID, JoinedAt: now}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}

		if err := tx.Model(&models.Contest{}).
			Where("id = ?", contestID).
			UpdateColumn("participant_count", gorm.Expr("participant_count + 1")).Error; err != nil {
			return err
		}

		if _, err := rerank(tx, contestID); err != nil {
			return err
		}

		result.Entry, err = findEntry(tx, contestID, userID)
		if err != nil {
			return err
		}
		result.Joined = true
		return nil
	})
	if err != nil {
		return JoinResult{}, err
	}
	return result, nil
}

func (r *leaderboardRepository) Credit(ctx context.Context, input CreditInput) (CreditResult, error) {
	var result CreditResult
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		contest, err := lockContest(tx, input.ContestID)
		if err != nil {
			return err
		}

		var problem models.ContestProblem
		if err := tx.Where("id = ? AND contest_id = ?", input.ProblemID, input.ContestID).Take(&problem).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrProblemNotInContest
			}
			return err
		}

		if _, err := findParticipant(tx, input.ContestID, input.UserID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotParticipant
			}
			return err
		}

		existing, err := findSolve(tx, input)
		if err == nil {
			result.Solve = existing
			result.Entry, err = findEntry(tx, input.ContestID, input.UserID)
			return err
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		points := input.Points
		if points <= 0 {
			points = problem.Points
		}

		timeTaken := input.SubmittedAt.Sub(contest.StartTime)
		if timeTaken < 0 {
			timeTaken = 0
		}

		solve := models.ProblemSolved{
			ContestID:        input.ContestID,
			UserID:           input.UserID,
			ProblemID:        input.ProblemID,
			Points:           points,
			TimeTakenSeconds: int64(timeTaken / time.Second),
			SubmittedAt:      input.SubmittedAt,
		}
		inserted := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&solve)
		if inserted.Error != nil {
			return inserted.Error
		}
		if inserted.RowsAffected == 0 {
			if result.Solve, err = findSolve(tx, input); err != nil {
				return err
			}
			result.Entry, err = findEntry(tx, input.ContestID, input.UserID)
			return err
		}

		if err := tx.Model(&models.ContestParticipant{}).
			Where("contest_id = ? AND user_id = ?", input.ContestID, input.UserID).
			Update("points", gorm.Expr("points + ?", points)).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.LeaderboardEntry{}).
			Where("contest_id = ? AND user_id = ?", input.ContestID, input.UserID).
			Update("score", gorm.Expr("score + ?", points)).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.User{}).
			Where("id = ?", input.UserID).
			Update("total_points", gorm.Expr("total_points + ?", points)).Error; err != nil {
			return err
		}

		if _, err := rerank(tx, input.ContestID); err != nil {
			return err
		}

		result.Solve = solve
		result.Entry, err = findEntry(tx, input.ContestID, input.UserID)
		if err != nil {
			return err
		}
		result.Credited = true
		return nil
	})
	if err != nil {
		return CreditResult{}, err
	}
	return result, nil
}

func (r *leaderboardRepository) Rerank(ctx context.Context, contestID uint) ([]models.RankChange, error) {
	var changes []models.RankChange
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockContest(tx, contestID); err != nil {
			return err
		}
		var err error
		changes, err = rerank(tx, contestID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return changes, nil
}

func (r *leaderboardRepository) Remove(ctx context.Context, contestID, userID uint) (models.ContestParticipant, error) {
	var removed models.ContestParticipant
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockContest(tx, contestID); err != nil {
			return err
		}

		participant, err := findParticipant(tx, contestID, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotParticipant
			}
			return err
		}

		if err := tx.Where("contest_id = ? AND user_id = ?", contestID, userID).Delete(&models.ProblemSolved{}).Error; err != nil {
			return err
		}
		if err := tx.Where("contest_id = ? AND user_id = ?", contestID, userID).Delete(&models.LeaderboardEntry{}).Error; err != nil {
			return err
		}
		if err := tx.Where("contest_id = ? AND user_id = ?", contestID, userID).Delete(&models.ContestParticipant{}).Error; err != nil {
			return err
		}

		if err := tx.Model(&models.Contest{}).
			Where("id = ? AND participant_count > 0", contestID).
			UpdateColumn("participant_count", gorm.Expr("participant_count - 1")).Error; err != nil {
			return err
		}

		if participant.Points > 0 {
			if err := tx.Model(&models.User{}).
				Where("id = ?", userID).
				Update("total_points", gorm.Expr("total_points - ?", participant.Points)).Error; err != nil {
				return err
			}
		}

		if _, err := rerank(tx, contestID); err != nil {
			return err
		}

		removed = participant
		return nil
	})
	if err != nil {
		return models.ContestParticipant{}, err
	}
	return removed, nil
}

func (r *leaderboardRepository) List(ctx context.Context, contestID uint, page, pageSize int) ([]models.LeaderboardEntry, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.LeaderboardEntry{}).Where("contest_id = ?", contestID)

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if pageSize > 0 {
		if page <= 0 {
			page = 1
		}
		query = query.Limit(pageSize).Offset((page - 1) * pageSize)
	}

	var entries []models.LeaderboardEntry
	if err := query.Order("rank ASC, user_id ASC").Find(&entries).Error; err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func (r *leaderboardRepository) Get(ctx context.Context, contestID, userID uint) (models.LeaderboardEntry, error) {
	return findEntry(r.db.WithContext(ctx), contestID, userID)
}

func (r *leaderboardRepository) GetParticipant(ctx context.Context, contestID, userID uint) (models.ContestParticipant, error) {
	return findParticipant(r.db.WithContext(ctx), contestID, userID)
}

func (r *leaderboardRepository) ListParticipants(ctx context.Context, contestID uint) ([]models.ContestParticipant, error) {
	var participants []models.ContestParticipant
	if err := r.db.WithContext(ctx).
		Where("contest_id = ?", contestID).
		Order("joined_at ASC, user_id ASC").
		Find(&participants).Error; err != nil {
		return nil, err
	}
	return participants, nil
}

func (r *leaderboardRepository) ListSolves(ctx context.Context, contestID, userID uint) ([]models.ProblemSolved, error) {
	var solves []models.ProblemSolved
	if err := r.db.WithContext(ctx).
		Where("contest_id = ? AND user_id = ?", contestID, userID).
		Order("submitted_at ASC").
		Find(&solves).Error; err != nil {
		return nil, err
	}
	return solves, nil
}

// rerank recomputes dense ranks for the contest and writes the changed ones to both the
// leaderboard entry and the join record. Cost is O(N log N) in the participant count.
func rerank(tx *gorm.DB, contestID uint) ([]models.RankChange, error) {
	var entries []models.LeaderboardEntry
	if err := tx.Where("contest_id = ?", contestID).Find(&entries).Error; err != nil {
		return nil, err
	}

	changes := models.AssignRanks(entries)
	for _, change := range changes {
		if err := tx.Model(&models.LeaderboardEntry{}).
			Where("contest_id = ? AND user_id = ?", contestID, change.UserID).
			UpdateColumn("rank", change.NewRank).Error; err != nil {
			return nil, err
		}
		if err := tx.Model(&models.ContestParticipant{}).
			Where("contest_id = ? AND user_id = ?", contestID, change.UserID).
			UpdateColumn("rank", change.NewRank).Error; err != nil {
			return nil, err
		}
	}
	return changes, nil
}

func findEntry(db *gorm.DB, contestID, userID uint) (models.LeaderboardEntry, error) {
	var entry models.LeaderboardEntry
	if err := db.Where("contest_id = ? AND user_id = ?", contestID, userID).Take(&entry).Error; err != nil {
		return models.LeaderboardEntry{}, err
	}
	return entry, nil
}

func findParticipant(db *gorm.DB, contestID, userID uint) (models.ContestParticipant, error) {
	var participant models.ContestParticipant
	if err := db.Where("contest_id = ? AND user_id = ?", contestID, userID).Take(&participant).Error; err != nil {
		return models.ContestParticipant{}, err
	}
	return participant, nil
}

func findSolve(db *gorm.DB, input CreditInput) (models.ProblemSolved, error) {
	var solve models.ProblemSolved
	if err := db.Where("contest_id = ? AND user_id = ? AND problem_id = ?", input.ContestID, input.UserID, input.ProblemID).
		Take(&solve).Error; err != nil {
		return models.ProblemSolved{}, err
	}
	return solve, nil
}
