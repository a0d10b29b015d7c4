package models

import (
	"time"
)

// Event moderation states
const (
	EventPending  = "pending"
	EventApproved = "approved"
	EventRejected = "rejected"
)

// Event is a dated gathering, scoped to a college or global when College is nil
type Event struct {
	ID            string    `gorm:"type:varchar(36);primaryKey;column:id" json:"id"`
	CreatorID     string    `gorm:"type:varchar(36);not null;index;column:creator_id" json:"creator_id"`
	Title         string    `gorm:"type:varchar(140);not null;column:title" json:"title"`
	Description   string    `gorm:"type:text;not null;default:'';column:description" json:"description"`
	College       *string   `gorm:"type:varchar(120);index;column:college" json:"college,omitempty"`
	Location      string    `gorm:"type:varchar(120);not null;default:'';column:location" json:"location"`
	StartsAt      time.Time `gorm:"not null;index;column:starts_at" json:"starts_at"`
	Status        string    `gorm:"type:varchar(16);not null;default:'pending';index;column:status" json:"status"`
	RSVPLimit     int       `gorm:"not null;default:0;column:rsvp_limit" json:"rsvp_limit"`
	AttendeeCount int       `gorm:"not null;default:0;column:attendee_count" json:"attendee_count"`
	CreatedAt     time.Time `gorm:"not null;column:created_at" json:"created_at"`
	UpdatedAt     time.Time `gorm:"not null;column:updated_at" json:"updated_at"`

	// Relationships
	Creator *Profile `gorm:"foreignKey:CreatorID;references:ID" json:"creator,omitempty"`
}

// TableName specifies the table name for Event
func (Event) TableName() string {
	return "events"
}

func (e Event) RecordID() string { return e.ID }

// Full reports whether the RSVP limit has been reached. A zero limit is unbounded.
func (e Event) Full() bool {
	return e.RSVPLimit > 0 && e.AttendeeCount >= e.RSVPLimit
}

// EventAttendee records one RSVP
type EventAttendee struct {
	EventID   string    `gorm:"type:varchar(36);primaryKey;column:event_id" json:"event_id"`
	UserID    string    `gorm:"type:varchar(36);primaryKey;index;column:user_id" json:"user_id"`
	CreatedAt time.Time `gorm:"not null;column:created_at" json:"created_at"`
}

// TableName specifies the table name for EventAttendee
func (EventAttendee) TableName() string {
	return "event_attendees"
}
