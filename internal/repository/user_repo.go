package repository

import (
	"context"
	"sort"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/codearena-api/internal/models"
)

// UserRepository exposes persistence helpers for contestants and the global ranking.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (models.User, error)
	GetByIDs(ctx context.Context, ids []uint) ([]models.User, error)
	EnsureExists(ctx context.Context, id uint) (models.User, error)
	UpdateProfile(ctx context.Context, id uint, updates map[string]interface{}) (models.User, error)
	UsernameTaken(ctx context.Context, username string, excludeID uint) (bool, error)
	ListRanking(ctx context.Context, page, pageSize int) ([]models.User, int64, error)
	RecalculateGlobalRanks(ctx context.Context) (int, error)
}

// NewUserRepository constructs a user repository.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

type userRepository struct {
	db *gorm.DB
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (r *userRepository) GetByIDs(ctx context.Context, ids []uint) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var users []models.User
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// EnsureExists creates an empty user on first sight. A new user is placed in the global ranking
// straight away so it never carries rank 0.
func (r *userRepository) EnsureExists(ctx context.Context, id uint) (models.User, error) {
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&models.User{ID: id})
	if result.Error != nil {
		return models.User{}, result.Error
	}
	if result.RowsAffected > 0 {
		if _, err := r.RecalculateGlobalRanks(ctx); err != nil {
			return models.User{}, err
		}
	}
	return r.GetByID(ctx, id)
}

func (r *userRepository) UpdateProfile(ctx context.Context, id uint, updates map[string]interface{}) (models.User, error) {
	if _, err := r.EnsureExists(ctx, id); err != nil {
		return models.User{}, err
	}
	if len(updates) > 0 {
		if err := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return models.User{}, err
		}
	}
	return r.GetByID(ctx, id)
}

func (r *userRepository) UsernameTaken(ctx context.Context, username string, excludeID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.User{}).
		Where("username = ? AND id <> ?", username, excludeID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *userRepository) ListRanking(ctx context.Context, page, pageSize int) ([]models.User, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.User{})

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

	var users []models.User
	if err := query.Order("total_points DESC, id ASC").Find(&users).Error; err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// RecalculateGlobalRanks assigns dense ranks across every user by total points, ties going to
// the lower id. It returns the number of rows whose rank changed.
func (r *userRepository) RecalculateGlobalRanks(ctx context.Context) (int, error) {
	changed := 0
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var users []models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id", "total_points", "global_rank").
			Find(&users).Error; err != nil {
			return err
		}

		sort.SliceStable(users, func(i, j int) bool {
			if users[i].TotalPoints != users[j].TotalPoints {
				return users[i].TotalPoints > users[j].TotalPoints
			}
			return users[i].ID < users[j].ID
		})

		for i, user := range users {
			rank := i + 1
			if user.GlobalRank == rank {
				continue
			}
			if err := tx.Model(&models.User{}).Where("id = ?", user.ID).UpdateColumn("global_rank", rank).Error; err != nil {
				return err
			}
			changed++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return changed, nil
}
