package models

import (
	"time"

	"gorm.io/gorm"
)

// ContestStatus is the lifecycle state of a contest derived from wall-clock time.
type ContestStatus string

const (
	// ContestStatusNotStarted applies before the start instant.
	ContestStatusNotStarted ContestStatus = "not_started"
	// ContestStatusActive applies from the start instant (inclusive) to the end instant (exclusive).
	ContestStatusActive ContestStatus = "active"
	// ContestStatusEnded applies from the end instant onwards.
	ContestStatusEnded ContestStatus = "ended"
)

// Valid reports whether the status is one of the known lifecycle states.
func (s ContestStatus) Valid() bool {
	switch s {
	case ContestStatusNotStarted, ContestStatusActive, ContestStatusEnded:
		return true
	default:
		return false
	}
}

// ClassifyContest maps an instant onto the lifecycle of a contest starting at start and lasting
// durationMinutes. Boundaries are half-open: the start instant is active, the end instant is ended.
func ClassifyContest(now, start time.Time, durationMinutes int) ContestStatus {
	if now.Before(start) {
		return ContestStatusNotStarted
	}
	end := start.Add(time.Duration(durationMinutes) * time.Minute)
	if now.Before(end) {
		return ContestStatusActive
	}
	return ContestStatusEnded
}

// Contest is a time-boxed competitive event with a fixed problem set and participant cap.
// Status is a cache of ClassifyContest and is only ever written by the lifecycle sweep or
// by edits that recompute it.
type Contest struct {
	ID               uint             `gorm:"primaryKey" json:"id"`
	Name             string           `gorm:"size:255;uniqueIndex;not null" json:"name"`
	Slug             string           `gorm:"size:255;uniqueIndex;not null" json:"slug"`
	Description      string           `gorm:"type:text" json:"description"`
	StartTime        time.Time        `gorm:"not null;index" json:"start_time"`
	DurationMinutes  int              `gorm:"not null" json:"duration_minutes"`
	EndsAt           time.Time        `gorm:"not null;index" json:"-"`
	MaxParticipants  int              `gorm:"not null" json:"max_participants"`
	ParticipantCount int              `gorm:"not null;default:0" json:"participant_count"`
	QuestionCount    int              `gorm:"not null;default:0" json:"question_count"`
	Status           ContestStatus    `gorm:"size:32;not null;index" json:"status"`
	StatusChangedAt  *time.Time       `json:"status_changed_at"`
	CreatedBy        uint             `gorm:"index" json:"created_by"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
	Problems         []ContestProblem `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// BeforeCreate stores the end instant so listings can filter on time columns instead of the
// cached status.
func (c *Contest) BeforeCreate(tx *gorm.DB) error {
	c.StartTime = c.StartTime.UTC()
	c.EndsAt = c.EndTime()
	return nil
}

// EndTime returns the instant the contest stops accepting solutions.
func (c Contest) EndTime() time.Time {
	return c.StartTime.Add(time.Duration(c.DurationMinutes) * time.Minute)
}

// StatusAt classifies the contest at the given instant.
func (c Contest) StatusAt(now time.Time) ContestStatus {
	return ClassifyContest(now, c.StartTime, c.DurationMinutes)
}

// IsStale reports whether the cached status disagrees with the classifier at now.
func (c Contest) IsStale(now time.Time) bool {
	return c.Status != c.StatusAt(now)
}

// Remaining returns the time left before the contest ends, or zero once it has ended.
func (c Contest) Remaining(now time.Time) time.Duration {
	remaining := c.EndTime().Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// IsFull reports whether no further participants can join.
func (c Contest) IsFull() bool {
	return c.ParticipantCount >= c.MaxParticipants
}

// Accepts reports whether a submission made at the given instant counts towards the contest.
func (c Contest) Accepts(submittedAt time.Time) bool {
	return c.StatusAt(submittedAt) == ContestStatusActive
}
