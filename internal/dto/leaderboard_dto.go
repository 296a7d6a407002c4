package dto

import (
	"time"

	"github.com/noah-isme/codearena-api/internal/models"
)

// LeaderboardRequest captures leaderboard query params.
type LeaderboardRequest struct {
	ContestID uint
	Page      int
	PageSize  int
}

// LeaderboardEntryResponse is a single ranked row.
type LeaderboardEntryResponse struct {
	Rank        int       `json:"rank"`
	UserID      uint      `json:"user_id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	Score       int       `json:"score"`
	JoinedAt    time.Time `json:"joined_at"`
}

// LeaderboardResponse is a page of a contest leaderboard.
type LeaderboardResponse struct {
	ContestID   uint                       `json:"contest_id"`
	Status      models.ContestStatus       `json:"status"`
	Items       []LeaderboardEntryResponse `json:"items"`
	Pagination  PaginationMeta             `json:"pagination"`
	CacheHit    bool                       `json:"cache_hit"`
	GeneratedAt time.Time                  `json:"generated_at"`
}

// NewLeaderboardEntryResponse maps an entry, enriching it with the user profile when known.
func NewLeaderboardEntryResponse(entry models.LeaderboardEntry, user *models.User) LeaderboardEntryResponse {
	response := LeaderboardEntryResponse{
		Rank:     entry.Rank,
		UserID:   entry.UserID,
		Score:    entry.Score,
		JoinedAt: entry.JoinedAt.UTC(),
	}
	if user != nil {
		response.Username = user.Handle()
		response.DisplayName = user.DisplayName
	}
	return response
}

// JoinResponse reports the result of a join request.
type JoinResponse struct {
	ContestID        uint      `json:"contest_id"`
	UserID           uint      `json:"user_id"`
	Joined           bool      `json:"joined"`
	Rank             int       `json:"rank"`
	Score            int       `json:"score"`
	JoinedAt         time.Time `json:"joined_at"`
	ParticipantCount int       `json:"participant_count"`
}

// ParticipantResponse serializes a join record.
type ParticipantResponse struct {
	UserID   uint      `json:"user_id"`
	Username string    `json:"username"`
	Points   int       `json:"points"`
	Rank     int       `json:"rank"`
	JoinedAt time.Time `json:"joined_at"`
}

// NewParticipantResponse maps a participant with an optional profile.
func NewParticipantResponse(participant models.ContestParticipant, user *models.User) ParticipantResponse {
	response := ParticipantResponse{
		UserID:   participant.UserID,
		Points:   participant.Points,
		Rank:     participant.Rank,
		JoinedAt: participant.JoinedAt.UTC(),
	}
	if user != nil {
		response.Username = user.Handle()
	}
	return response
}

// RemoveParticipantResponse reports a removal.
type RemoveParticipantResponse struct {
	ContestID     uint `json:"contest_id"`
	UserID        uint `json:"user_id"`
	RemovedPoints int  `json:"removed_points"`
}

// CreditResponse reports the outcome of crediting a solve.
type CreditResponse struct {
	ContestID        uint  `json:"contest_id"`
	UserID           uint  `json:"user_id"`
	ProblemID        uint  `json:"problem_id"`
	Credited         bool  `json:"credited"`
	Points           int   `json:"points"`
	Score            int   `json:"score"`
	Rank             int   `json:"rank"`
	TimeTakenSeconds int64 `json:"time_taken_seconds"`
}

// SyncResponse reports a judge polling pass.
type SyncResponse struct {
	ContestID    uint             `json:"contest_id"`
	Participants int              `json:"participants"`
	Checked      int              `json:"checked"`
	Credited     int              `json:"credited"`
	Duplicates   int              `json:"duplicates"`
	Failed       int              `json:"failed"`
	Credits      []CreditResponse `json:"credits,omitempty"`
}

// LeaderboardEvent is published after every committed leaderboard mutation.
type LeaderboardEvent struct {
	ContestID  uint      `json:"contest_id"`
	Reason     string    `json:"reason"`
	UserID     uint      `json:"user_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
