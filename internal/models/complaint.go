package models

import (
	"time"
)

// Complaint states, in the only order they may advance
const (
	ComplaintSubmitted = "submitted"
	ComplaintInReview  = "in_review"
	ComplaintResolved  = "resolved"
)

// Complaint is a help-desk ticket raised with a college
type Complaint struct {
	ID        string    `gorm:"type:varchar(36);primaryKey;column:id" json:"id"`
	UserID    string    `gorm:"type:varchar(36);not null;index;column:user_id" json:"user_id"`
	College   string    `gorm:"type:varchar(120);not null;index;column:college" json:"college"`
	Subject   string    `gorm:"type:varchar(140);not null;column:subject" json:"subject"`
	Body      string    `gorm:"type:text;not null;default:'';column:body" json:"body"`
	Status    string    `gorm:"type:varchar(16);not null;default:'submitted';column:status" json:"status"`
	CreatedAt time.Time `gorm:"not null;index;column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;column:updated_at" json:"updated_at"`
}

// TableName specifies the table name for Complaint
func (Complaint) TableName() string {
	return "complaints"
}

func (c Complaint) RecordID() string { return c.ID }

// NextComplaintStatus returns the status that follows s, or "" when s is final
func NextComplaintStatus(s string) string {
	switch s {
	case ComplaintSubmitted:
		return ComplaintInReview
	case ComplaintInReview:
		return ComplaintResolved
	default:
		return ""
	}
}
