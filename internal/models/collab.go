package models

import (
	"time"
)

// Task states
const (
	TaskOpen       = "open"
	TaskInProgress = "in_progress"
	TaskCompleted  = "completed"
	TaskCancelled  = "cancelled"
)

// Application states
const (
	ApplicationPending  = "pending"
	ApplicationAccepted = "accepted"
	ApplicationDeclined = "declined"
)

// CollabPost is a peer task with an escrowed reward
type CollabPost struct {
	ID          string    `gorm:"type:varchar(36);primaryKey;column:id" json:"id"`
	PosterID    string    `gorm:"type:varchar(36);not null;index;column:poster_id" json:"poster_id"`
	HelperID    *string   `gorm:"type:varchar(36);index;column:helper_id" json:"helper_id,omitempty"`
	Title       string    `gorm:"type:varchar(140);not null;column:title" json:"title"`
	Description string    `gorm:"type:text;not null;default:'';column:description" json:"description"`
	Reward      int64     `gorm:"not null;column:reward" json:"reward"`
	Status      string    `gorm:"type:varchar(16);not null;default:'open';index;column:status" json:"status"`
	CreatedAt   time.Time `gorm:"not null;index;column:created_at" json:"created_at"`
	UpdatedAt   time.Time `gorm:"not null;column:updated_at" json:"updated_at"`

	// Relationships
	Poster *Profile `gorm:"foreignKey:PosterID;references:ID" json:"poster,omitempty"`
	Helper *Profile `gorm:"foreignKey:HelperID;references:ID" json:"helper,omitempty"`
}

// TableName specifies the table name for CollabPost
func (CollabPost) TableName() string {
	return "collab_posts"
}

func (p CollabPost) RecordID() string { return p.ID }

// CollabApplication is a helper's offer to take a task
type CollabApplication struct {
	ID          string    `gorm:"type:varchar(36);primaryKey;column:id" json:"id"`
	PostID      string    `gorm:"type:varchar(36);not null;uniqueIndex:collab_applications_post_applicant_ux,priority:1;column:post_id" json:"post_id"`
	ApplicantID string    `gorm:"type:varchar(36);not null;uniqueIndex:collab_applications_post_applicant_ux,priority:2;column:applicant_id" json:"applicant_id"`
	Message     string    `gorm:"type:text;not null;default:'';column:message" json:"message"`
	Status      string    `gorm:"type:varchar(16);not null;default:'pending';column:status" json:"status"`
	CreatedAt   time.Time `gorm:"not null;column:created_at" json:"created_at"`
	UpdatedAt   time.Time `gorm:"not null;column:updated_at" json:"updated_at"`

	// Relationships
	Applicant *Profile `gorm:"foreignKey:ApplicantID;references:ID" json:"applicant,omitempty"`
}

// TableName specifies the table name for CollabApplication
func (CollabApplication) TableName() string {
	return "collab_applications"
}

func (a CollabApplication) RecordID() string { return a.ID }

// CollabDeliverable is work submitted by the helper
type CollabDeliverable struct {
	ID        string    `gorm:"type:varchar(36);primaryKey;column:id" json:"id"`
	PostID    string    `gorm:"type:varchar(36);not null;index;column:post_id" json:"post_id"`
	HelperID  string    `gorm:"type:varchar(36);not null;column:helper_id" json:"helper_id"`
	URL       string    `gorm:"type:varchar(1024);not null;default:'';column:url" json:"url"`
	Note      string    `gorm:"type:text;not null;default:'';column:note" json:"note"`
	CreatedAt time.Time `gorm:"not null;column:created_at" json:"created_at"`
}

// TableName specifies the table name for CollabDeliverable
func (CollabDeliverable) TableName() string {
	return "collab_deliverables"
}

func (d CollabDeliverable) RecordID() string { return d.ID }
