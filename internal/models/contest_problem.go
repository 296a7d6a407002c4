package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Problem difficulties as reported by the external catalog.
const (
	DifficultyEasy   = "Easy"
	DifficultyMedium = "Medium"
	DifficultyHard   = "Hard"
)

// ContestProblem is a catalog problem attached to a contest together with the points it awards.
type ContestProblem struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	ContestID  uint           `gorm:"not null;uniqueIndex:idx_contest_problem_slug" json:"contest_id"`
	ExternalID string         `gorm:"size:64" json:"external_id"`
	Title      string         `gorm:"size:255;not null" json:"title"`
	Slug       string         `gorm:"size:255;not null;uniqueIndex:idx_contest_problem_slug" json:"slug"`
	Difficulty string         `gorm:"size:32" json:"difficulty"`
	URL        string         `gorm:"size:512" json:"url"`
	Points     int            `gorm:"not null" json:"points"`
	Tags       datatypes.JSON `gorm:"type:json" json:"-"`
	CreatedAt  time.Time      `json:"created_at"`
}

// SetTags serializes the topic tags into the JSON column.
func (p *ContestProblem) SetTags(tags []string) {
	if tags == nil {
		tags = []string{}
	}
	data, err := json.Marshal(tags)
	if err != nil {
		p.Tags = datatypes.JSON([]byte("[]"))
		return
	}
	p.Tags = datatypes.JSON(data)
}

// TagList returns the stored topic tags.
func (p ContestProblem) TagList() []string {
	if len(p.Tags) == 0 {
		return nil
	}

	var tags []string
	if err := json.Unmarshal(p.Tags, &tags); err != nil {
		return nil
	}
	return tags
}

// DefaultPoints returns the points a problem of the given difficulty awards when the
// organizer does not choose a value.
func DefaultPoints(difficulty string) int {
	switch difficulty {
	case DifficultyHard:
		return 300
	case DifficultyMedium:
		return 200
	default:
		return 100
	}
}
