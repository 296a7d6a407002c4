package dto

import (
	"time"

	"github.com/noah-isme/codearena-api/internal/models"
)

// CreateContestRequest is the payload used by organizers to create a contest.
type CreateContestRequest struct {
	Name            string    `json:"name" validate:"required,min=3,max=255"`
	Description     string    `json:"description" validate:"omitempty,max=5000"`
	StartTime       time.Time `json:"start_time" validate:"required"`
	DurationMinutes int       `json:"duration_minutes" validate:"required,gt=0,lte=10080"`
	MaxParticipants int       `json:"max_participants" validate:"required,gt=0"`
}

// UpdateContestRequest is a partial contest edit.
type UpdateContestRequest struct {
	Name            *string    `json:"name" validate:"omitempty,min=3,max=255"`
	Description     *string    `json:"description" validate:"omitempty,max=5000"`
	StartTime       *time.Time `json:"start_time"`
	DurationMinutes *int       `json:"duration_minutes" validate:"omitempty,gt=0,lte=10080"`
	MaxParticipants *int       `json:"max_participants" validate:"omitempty,gt=0"`
}

// ContestListRequest captures query params for contest listings.
type ContestListRequest struct {
	Status   string
	Search   string
	Page     int
	PageSize int
}

// ContestResponse serializes a contest with its derived timing fields.
type ContestResponse struct {
	ID               uint                 `json:"id"`
	Name             string               `json:"name"`
	Slug             string               `json:"slug"`
	Description      string               `json:"description"`
	StartTime        time.Time            `json:"start_time"`
	EndTime          time.Time            `json:"end_time"`
	DurationMinutes  int                  `json:"duration_minutes"`
	MaxParticipants  int                  `json:"max_participants"`
	ParticipantCount int                  `json:"participant_count"`
	QuestionCount    int                  `json:"question_count"`
	Status           models.ContestStatus `json:"status"`
	RemainingSeconds int64                `json:"remaining_seconds"`
	CreatedBy        uint                 `json:"created_by"`
	CreatedAt        time.Time            `json:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at"`
}

// ContestListResult wraps paginated contests.
type ContestListResult struct {
	Items      []ContestResponse `json:"items"`
	Pagination PaginationMeta    `json:"pagination"`
}

// NewContestResponse builds the response with the status classified at now.
func NewContestResponse(contest models.Contest, now time.Time) ContestResponse {
	return ContestResponse{
		ID:               contest.ID,
		Name:             contest.Name,
		Slug:             contest.Slug,
		Description:      contest.Description,
		StartTime:        contest.StartTime.UTC(),
		EndTime:          contest.EndTime().UTC(),
		DurationMinutes:  contest.DurationMinutes,
		MaxParticipants:  contest.MaxParticipants,
		ParticipantCount: contest.ParticipantCount,
		QuestionCount:    contest.QuestionCount,
		Status:           contest.StatusAt(now),
		RemainingSeconds: int64(contest.Remaining(now).Seconds()),
		CreatedBy:        contest.CreatedBy,
		CreatedAt:        contest.CreatedAt,
		UpdatedAt:        contest.UpdatedAt,
	}
}

// AddProblemRequest attaches a catalog problem to a contest. Query accepts a title, slug or
// problem URL; Points falls back to the difficulty default.
type AddProblemRequest struct {
	Query  string `json:"query" validate:"required,max=512"`
	Points *int   `json:"points" validate:"omitempty,gt=0,lte=10000"`
}

// ContestProblemResponse serializes a contest problem.
type ContestProblemResponse struct {
	ID         uint      `json:"id"`
	ContestID  uint      `json:"contest_id"`
	ExternalID string    `json:"external_id"`
	Title      string    `json:"title"`
	Slug       string    `json:"slug"`
	Difficulty string    `json:"difficulty"`
	URL        string    `json:"url"`
	Points     int       `json:"points"`
	Tags       []string  `json:"tags"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewContestProblemResponse maps a contest problem model.
func NewContestProblemResponse(problem models.ContestProblem) ContestProblemResponse {
	tags := problem.TagList()
	if tags == nil {
		tags = []string{}
	}
	return ContestProblemResponse{
		ID:         problem.ID,
		ContestID:  problem.ContestID,
		ExternalID: problem.ExternalID,
		Title:      problem.Title,
		Slug:       problem.Slug,
		Difficulty: problem.Difficulty,
		URL:        problem.URL,
		Points:     problem.Points,
		Tags:       tags,
		CreatedAt:  problem.CreatedAt,
	}
}

// NewContestProblemResponseSlice maps a list of contest problems.
func NewContestProblemResponseSlice(problems []models.ContestProblem) []ContestProblemResponse {
	items := make([]ContestProblemResponse, 0, len(problems))
	for _, problem := range problems {
		items = append(items, NewContestProblemResponse(problem))
	}
	return items
}

// StatusRefreshResponse reports the outcome of a single-contest lifecycle refresh.
type StatusRefreshResponse struct {
	ContestID uint                 `json:"contest_id"`
	Outcome   string               `json:"outcome"`
	Status    models.ContestStatus `json:"status"`
}

// StatusSweepResponse reports the outcome of a lifecycle sweep.
type StatusSweepResponse struct {
	Checked int `json:"checked"`
	Updated int `json:"updated"`
}
