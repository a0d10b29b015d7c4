package models

import (
	"time"
)

// Post is a feed entry. Posts without a community appear in open feeds.
type Post struct {
	ID          string    `gorm:"type:varchar(36);primaryKey;column:id" json:"id"`
	AuthorID    string    `gorm:"type:varchar(36);not null;index;column:author_id" json:"author_id"`
	CommunityID *string   `gorm:"type:varchar(36);index;column:community_id" json:"community_id,omitempty"`
	Content     string    `gorm:"type:text;not null;column:content" json:"content"`
	ImageURL    string    `gorm:"type:varchar(1024);not null;default:'';column:image_url" json:"image_url,omitempty"`
	Location    string    `gorm:"type:varchar(120);not null;default:'';column:location" json:"location,omitempty"`
	CreatedAt   time.Time `gorm:"not null;index;column:created_at" json:"created_at"`
	UpdatedAt   time.Time `gorm:"not null;column:updated_at" json:"updated_at"`

	// Relationships
	Author *Profile `gorm:"foreignKey:AuthorID;references:ID" json:"author,omitempty"`
}

// TableName specifies the table name for Post
func (Post) TableName() string {
	return "posts"
}

func (p Post) RecordID() string { return p.ID }

// Community groups posts under a hub or interest group
type Community struct {
	ID        string    `gorm:"type:varchar(36);primaryKey;column:id" json:"id"`
	Name      string    `gorm:"type:varchar(80);not null;uniqueIndex:communities_name_ux;column:name" json:"name"`
	College   *string   `gorm:"type:varchar(120);index;column:college" json:"college,omitempty"`
	About     string    `gorm:"type:varchar(280);not null;default:'';column:about" json:"about"`
	CreatedAt time.Time `gorm:"not null;column:created_at" json:"created_at"`
}

// TableName specifies the table name for Community
func (Community) TableName() string {
	return "communities"
}

func (c Community) RecordID() string { return c.ID }
