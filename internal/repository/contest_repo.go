package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/codearena-api/internal/models"
)

// ErrCapacityBelowParticipants indicates an edit would lower the cap under the current participant count.
var ErrCapacityBelowParticipants = errors.New("max participants below current participant count")

// ContestFilter defines filters and pagination for contest listings. Status is evaluated
// against Now using the time columns, never the cached status column.
type ContestFilter struct {
	Status   models.ContestStatus
	Now      time.Time
	Search   string
	Page     int
	PageSize int
}

// ContestRepository exposes persistence operations for contests and their problems.
type ContestRepository interface {
	Create(ctx context.Context, contest *models.Contest) error
	GetByID(ctx context.Context, id uint) (models.Contest, error)
	ExistsByName(ctx context.Context, name string, excludeID uint) (bool, error)
	List(ctx context.Context, filter ContestFilter) ([]models.Contest, int64, error)
	ListAll(ctx context.Context) ([]models.Contest, error)
	ListRunningBetween(ctx context.Context, from, to time.Time) ([]models.Contest, error)
	Update(ctx context.Context, id uint, updates map[string]interface{}, now time.Time) (models.Contest, error)
	UpdateStatus(ctx context.Context, id uint, from, to models.ContestStatus, changedAt time.Time) (bool, error)
	Delete(ctx context.Context, id uint) error
	AddProblem(ctx context.Context, problem *models.ContestProblem) error
	RemoveProblem(ctx context.Context, contestID, problemID uint) error
	ListProblems(ctx context.Context, contestID uint) ([]models.ContestProblem, error)
}

// NewContestRepository constructs a contest repository.
func NewContestRepository(db *gorm.DB) ContestRepository {
	return &contestRepository{db: db}
}

type contestRepository struct {
	db *gorm.DB
}

func (r *contestRepository) Create(ctx context.Context, contest *models.Contest) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(contest).Error
}

func (r *contestRepository) GetByID(ctx context.Context, id uint) (models.Contest, error) {
	var contest models.Contest
	if err := r.db.WithContext(ctx).First(&contest, id).Error; err != nil {
		return models.Contest{}, err
	}
	return contest, nil
}

func (r *contestRepository) ExistsByName(ctx context.Context, name string, excludeID uint) (bool, error) {
	query := r.db.WithContext(ctx).Model(&models.Contest{}).Where("LOWER(name) = ?", strings.ToLower(strings.TrimSpace(name)))
	if excludeID != 0 {
		query = query.Where("id <> ?", excludeID)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *contestRepository) List(ctx context.Context, filter ContestFilter) ([]models.Contest, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Contest{})

	if filter.Status != "" {
		now := filter.Now.UTC()
		if filter.Now.IsZero() {
			now = time.Now().UTC()
		}
		switch filter.Status {
		case models.ContestStatusNotStarted:
			query = query.Where("start_time > ?", now)
		case models.ContestStatusActive:
			query = query.Where("start_time <= ? AND ends_at > ?", now, now)
		case models.ContestStatusEnded:
			query = query.Where("ends_at <= ?", now)
		}
	}

	if filter.Search != "" {
		pattern := fmt.Sprintf("%%%s%%", strings.ToLower(filter.Search))
		query = query.Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ?", pattern, pattern)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.PageSize > 0 {
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		query = query.Limit(filter.PageSize).Offset((page - 1) * filter.PageSize)
	}

	var contests []models.Contest
	if err := query.Order("start_time DESC, id DESC").Find(&contests).Error; err != nil {
		return nil, 0, err
	}

	return contests, total, nil
}

func (r *contestRepository) ListAll(ctx context.Context) ([]models.Contest, error) {
	var contests []models.Contest
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&contests).Error; err != nil {
		return nil, err
	}
	return contests, nil
}

// ListRunningBetween returns contests whose [start, end) window overlaps [from, to], i.e. every
// contest that was active at some instant of the interval.
func (r *contestRepository) ListRunningBetween(ctx context.Context, from, to time.Time) ([]models.Contest, error) {
	var contests []models.Contest
	if err := r.db.WithContext(ctx).
		Where("start_time <= ? AND ends_at > ?", to.UTC(), from.UTC()).
		Order("id ASC").
		Find(&contests).Error; err != nil {
		return nil, err
	}
	return contests, nil
}

// Update applies an organizer edit under the contest row lock. The end instant follows any
// schedule change and the cached status is recomputed at now from the locked row.
func (r *contestRepository) Update(ctx context.Context, id uint, updates map[string]interface{}, now time.Time) (models.Contest, error) {
	var contest models.Contest
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := lockContest(tx, id)
		if err != nil {
			return err
		}

		if value, ok := updates["max_participants"]; ok {
			if max, ok := value.(int); ok && max < locked.ParticipantCount {
				return ErrCapacityBelowParticipants
			}
		}

		next := locked
		_, startChanged := updates["start_time"]
		_, durationChanged := updates["duration_minutes"]
		if startChanged || durationChanged {
			if start, ok := updates["start_time"].(time.Time); ok {
				next.StartTime = start.UTC()
				updates["start_time"] = next.StartTime
			}
			if duration, ok := updates["duration_minutes"].(int); ok {
				next.DurationMinutes = duration
			}
			updates["ends_at"] = next.EndTime().UTC()
		}
		if status := next.StatusAt(now); status != locked.Status {
			updates["status"] = status
			updates["status_changed_at"] = now
		}

		if err := tx.Model(&models.Contest{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return err
		}

		return tx.First(&contest, id).Error
	})
	if err != nil {
		return models.Contest{}, err
	}
	return contest, nil
}

// UpdateStatus writes the new lifecycle state only if the stored state is still from, which
// makes concurrent sweeps and refreshes converge without overwriting each other.
func (r *contestRepository) UpdateStatus(ctx context.Context, id uint, from, to models.ContestStatus, changedAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Contest{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{
			"status":            to,
			"status_changed_at": changedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *contestRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockContest(tx, id); err != nil {
			return err
		}

		var participants []models.ContestParticipant
		if err := tx.Where("contest_id = ?", id).Find(&participants).Error; err != nil {
			return err
		}

		for _, participant := range participants {
			if participant.Points == 0 {
				continue
			}
			if err := tx.Model(&models.User{}).
				Where("id = ?", participant.UserID).
				UpdateColumn("total_points", gorm.Expr("total_points - ?", participant.Points)).Error; err != nil {
				return err
			}
		}

		if err := tx.Where("contest_id = ?", id).Delete(&models.ProblemSolved{}).Error; err != nil {
			return err
		}
		if err := tx.Where("contest_id = ?", id).Delete(&models.LeaderboardEntry{}).Error; err != nil {
			return err
		}
		if err := tx.Where("contest_id = ?", id).Delete(&models.ContestParticipant{}).Error; err != nil {
			return err
		}
		if err := tx.Where("contest_id = ?", id).Delete(&models.ContestProblem{}).Error; err != nil {
			return err
		}

		result := tx.Delete(&models.Contest{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *contestRepository) AddProblem(ctx context.Context, problem *models.ContestProblem) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockContest(tx, problem.ContestID); err != nil {
			return err
		}

		if err := tx.Create(problem).Error; err != nil {
			return err
		}

		return tx.Model(&models.Contest{}).
			Where("id = ?", problem.ContestID).
			UpdateColumn("question_count", gorm.Expr("question_count + 1")).Error
	})
}

func (r *contestRepository) RemoveProblem(ctx context.Context, contestID, problemID uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockContest(tx, contestID); err != nil {
			return err
		}

		result := tx.Where("id = ? AND contest_id = ?", problemID, contestID).Delete(&models.ContestProblem{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrProblemNotInContest
		}

		return tx.Model(&models.Contest{}).
			Where("id = ? AND question_count > 0", contestID).
			UpdateColumn("question_count", gorm.Expr("question_count - 1")).Error
	})
}

func (r *contestRepository) ListProblems(ctx context.Context, contestID uint) ([]models.ContestProblem, error) {
	var problems []models.ContestProblem
	if err := r.db.WithContext(ctx).Where("contest_id = ?", contestID).Order("id ASC").Find(&problems).Error; err != nil {
		return nil, err
	}
	return problems, nil
}

// lockContest reads the contest row under a row lock so that every mutation touching the
// contest's participants runs serialized per contest. SQLite ignores the locking clause and
// serializes writers on its own.
func lockContest(tx *gorm.DB, id uint) (models.Contest, error) {
	var contest models.Contest
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&contest, id).Error; err != nil {
		return models.Contest{}, err
	}
	return contest, nil
}
