package models

import (
	"time"
)

// Notification types
const (
	NotifyFollow              = "follow"
	NotifyApplication         = "collab_application"
	NotifyApplicationAccepted = "collab_accepted"
	NotifyApplicationDeclined = "collab_declined"
	NotifyDeliverable         = "collab_deliverable"
	NotifyPaid                = "collab_paid"
	NotifyEventModerated      = "event_moderated"
	NotifyComplaintUpdated    = "complaint_updated"
)

// Notification is an inbox entry produced by a procedure
type Notification struct {
	ID        string    `gorm:"type:varchar(36);primaryKey;column:id" json:"id"`
	UserID    string    `gorm:"type:varchar(36);not null;index:notifications_user_created_ix,priority:1;column:user_id" json:"user_id"`
	Type      string    `gorm:"type:varchar(32);not null;column:type" json:"type"`
	ActorID   *string   `gorm:"type:varchar(36);column:actor_id" json:"actor_id,omitempty"`
	SubjectID string    `gorm:"type:varchar(36);not null;default:'';column:subject_id" json:"subject_id"`
	Read      bool      `gorm:"not null;default:false;column:is_read" json:"is_read"`
	CreatedAt time.Time `gorm:"not null;index:notifications_user_created_ix,priority:2;column:created_at" json:"created_at"`
}

// TableName specifies the table name for Notification
func (Notification) TableName() string {
	return "notifications"
}

func (n Notification) RecordID() string { return n.ID }
