package models

import (
	"time"
)

// College rooms
const (
	RoomCommon        = "common"
	RoomFaculty       = "faculty"
	RoomAnnouncements = "announcements"
)

// CollabMessage is a chat line inside a task's conversation
type CollabMessage struct {
	ID        string    `gorm:"type:varchar(36);primaryKey;column:id" json:"id"`
	PostID    string    `gorm:"type:varchar(36);not null;index:collab_messages_post_created_ix,priority:1;column:post_id" json:"post_id"`
	SenderID  string    `gorm:"type:varchar(36);not null;column:sender_id" json:"sender_id"`
	Content   string    `gorm:"type:text;not null;default:'';column:content" json:"content"`
	FileURL   string    `gorm:"type:varchar(1024);not null;default:'';column:file_url" json:"file_url,omitempty"`
	CreatedAt time.Time `gorm:"not null;index:collab_messages_post_created_ix,priority:2;column:created_at" json:"created_at"`

	// Relationships
	Sender *Profile `gorm:"foreignKey:SenderID;references:ID" json:"sender,omitempty"`
}

// TableName specifies the table name for CollabMessage
func (CollabMessage) TableName() string {
	return "collab_messages"
}

func (m CollabMessage) RecordID() string { return m.ID }

// CollegeMessage is a chat line in one of a college's rooms
type CollegeMessage struct {
	ID        string    `gorm:"type:varchar(36);primaryKey;column:id" json:"id"`
	College   string    `gorm:"type:varchar(120);not null;index:college_messages_room_ix,priority:1;column:college" json:"college"`
	Room      string    `gorm:"type:varchar(16);not null;default:'common';index:college_messages_room_ix,priority:2;column:room" json:"room"`
	SenderID  string    `gorm:"type:varchar(36);not null;column:sender_id" json:"sender_id"`
	Content   string    `gorm:"type:text;not null;default:'';column:content" json:"content"`
	FileURL   string    `gorm:"type:varchar(1024);not null;default:'';column:file_url" json:"file_url,omitempty"`
	CreatedAt time.Time `gorm:"not null;index:college_messages_room_ix,priority:3;column:created_at" json:"created_at"`

	// Relationships
	Sender *Profile `gorm:"foreignKey:SenderID;references:ID" json:"sender,omitempty"`
}

// TableName specifies the table name for CollegeMessage
func (CollegeMessage) TableName() string {
	return "college_messages"
}

func (m CollegeMessage) RecordID() string { return m.ID }
