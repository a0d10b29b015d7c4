package models

import (
	"time"
)

// Follow represents a follow relationship
type Follow struct {
	FollowerID  string    `gorm:"type:varchar(36);primaryKey;column:follower_id" json:"follower_id"`
	FollowingID string    `gorm:"type:varchar(36);primaryKey;index;column:following_id" json:"following_id"`
	CreatedAt   time.Time `gorm:"not null;column:created_at" json:"created_at"`
}

// TableName specifies the table name for Follow
func (Follow) TableName() string {
	return "follows"
}
