package models

import "time"

// User is a contestant known to the platform. The id is the opaque identifier supplied by the
// authentication layer; Username is the handle on the external judge.
type User struct {
	ID          uint      `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Username    *string   `gorm:"size:64;uniqueIndex" json:"username"`
	DisplayName string    `gorm:"size:255" json:"display_name"`
	TotalPoints int       `gorm:"not null;default:0;index" json:"total_points"`
	GlobalRank  int       `gorm:"not null;default:0" json:"global_rank"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Handle returns the judge username or an empty string when none is registered.
func (u User) Handle() string {
	if u.Username == nil {
		return ""
	}
	return *u.Username
}
