package models

import "time"

// ContestParticipant is the membership record of a user in a contest. Points and Rank mirror
// the user's leaderboard entry and are always written in the same transaction.
type ContestParticipant struct {
	ContestID uint      `gorm:"primaryKey;autoIncrement:false" json:"contest_id"`
	UserID    uint      `gorm:"primaryKey;autoIncrement:false;index" json:"user_id"`
	Points    int       `gorm:"not null;default:0" json:"points"`
	Rank      int       `gorm:"not null;default:0" json:"rank"`
	JoinedAt  time.Time `gorm:"not null" json:"joined_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProblemSolved marks that a user has been credited for a problem in a contest.
// The (contest, user, problem) triple is unique so a solve is credited at most once.
type ProblemSolved struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	ContestID        uint      `gorm:"not null;uniqueIndex:idx_problem_solve_triple" json:"contest_id"`
	UserID           uint      `gorm:"not null;uniqueIndex:idx_problem_solve_triple" json:"user_id"`
	ProblemID        uint      `gorm:"not null;uniqueIndex:idx_problem_solve_triple" json:"problem_id"`
	Points           int       `gorm:"not null" json:"points"`
	TimeTakenSeconds int64     `gorm:"not null;default:0" json:"time_taken_seconds"`
	SubmittedAt      time.Time `gorm:"not null" json:"submitted_at"`
	CreatedAt        time.Time `json:"created_at"`
}

// TableName keeps the solve table name readable.
func (ProblemSolved) TableName() string {
	return "problem_solves"
}
