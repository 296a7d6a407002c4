package database

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/noah-isme/codearena-api/internal/models"
)

// Migrate creates or updates the contest schema.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Contest{},
		&models.ContestProblem{},
		&models.ContestParticipant{},
		&models.LeaderboardEntry{},
		&models.ProblemSolved{},
	); err != nil {
		return fmt.Errorf("migrate contest schema: %w", err)
	}
	return nil
}
