package models

import (
	"sort"
	"time"
)

// LeaderboardEntry is the authoritative per-contest ranking row of a participant.
type LeaderboardEntry struct {
	ContestID uint      `gorm:"primaryKey;autoIncrement:false" json:"contest_id"`
	UserID    uint      `gorm:"primaryKey;autoIncrement:false;index" json:"user_id"`
	Score     int       `gorm:"not null;default:0;index" json:"score"`
	Rank      int       `gorm:"not null;default:0" json:"rank"`
	JoinedAt  time.Time `gorm:"not null" json:"joined_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RankChange describes a rank that must be persisted after a rerank.
type RankChange struct {
	UserID  uint
	OldRank int
	NewRank int
}

// SortStandings orders entries by score descending. Ties go to the earlier joiner and then to
// the lower user id, so the order never depends on how the store returned the rows.
func SortStandings(entries []LeaderboardEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.JoinedAt.Equal(b.JoinedAt) {
			return a.JoinedAt.Before(b.JoinedAt)
		}
		return a.UserID < b.UserID
	})
}

// AssignRanks sorts entries and assigns dense 1-based ranks in place. It returns only the
// entries whose rank changed.
func AssignRanks(entries []LeaderboardEntry) []RankChange {
	SortStandings(entries)

	changes := make([]RankChange, 0, len(entries))
	for i := range entries {
		rank := i + 1
		if entries[i].Rank != rank {
			changes = append(changes, RankChange{UserID: entries[i].UserID, OldRank: entries[i].Rank, NewRank: rank})
			entries[i].Rank = rank
		}
	}
	return changes
}
