package models

import (
	"time"
)

// Enrollment roles
const (
	RoleStudent = "student"
	RoleFaculty = "faculty"
	RoleParent  = "parent"
	RoleVeteran = "veteran"
)

// Access levels
const (
	AccessUser      = "user"
	AccessModerator = "moderator"
	AccessAdmin     = "admin"
)

// Profile is the public identity of an account
type Profile struct {
	ID        string    `gorm:"type:varchar(36);primaryKey;column:id" json:"id"`
	Name      string    `gorm:"type:varchar(80);not null;default:'';column:name" json:"name"`
	Username  *string   `gorm:"type:varchar(24);uniqueIndex:profiles_username_ux;column:username" json:"username,omitempty"`
	College   *string   `gorm:"type:varchar(120);index;column:college" json:"college,omitempty"`
	Role      string    `gorm:"type:varchar(16);not null;default:'student';column:role" json:"role"`
	Access    string    `gorm:"type:varchar(16);not null;default:'user';column:access" json:"access"`
	Verified  bool      `gorm:"not null;default:false;column:verified" json:"verified"`
	Bio       string    `gorm:"type:varchar(280);not null;default:'';column:bio" json:"bio"`
	AvatarURL string    `gorm:"type:varchar(1024);not null;default:'';column:avatar_url" json:"avatar_url"`
	Followers int64     `gorm:"not null;default:0;column:followers" json:"followers"`
	Following int64     `gorm:"not null;default:0;column:following" json:"following"`
	CreatedAt time.Time `gorm:"not null;column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;column:updated_at" json:"updated_at"`
}

// TableName specifies the table name for Profile
func (Profile) TableName() string {
	return "profiles"
}

func (p Profile) RecordID() string { return p.ID }

// CollegeName returns the profile's college or "" when unset
func (p Profile) CollegeName() string {
	if p.College == nil {
		return ""
	}
	return *p.College
}

// IsFaculty reports whether the profile is faculty and staff have
// verified it. Role alone is self-declared.
func (p Profile) IsFaculty() bool {
	return p.Verified && p.Role == RoleFaculty
}

// IsStaff reports whether the profile may moderate content
func (p Profile) IsStaff() bool {
	return p.Access == AccessModerator || p.Access == AccessAdmin
}

// Account holds sign-in credentials; its ID is shared with the Profile
type Account struct {
	ID            string    `gorm:"type:varchar(36);primaryKey;column:id"`
	Email         string    `gorm:"type:varchar(254);not null;uniqueIndex:accounts_email_ux;column:email"`
	PasswordHash  string    `gorm:"type:varchar(72);not null;column:password_hash"`
	RecoveryNonce string    `gorm:"type:varchar(36);not null;default:'';column:recovery_nonce"`
	CreatedAt     time.Time `gorm:"not null;column:created_at"`
	UpdatedAt     time.Time `gorm:"not null;column:updated_at"`
}

// TableName specifies the table name for Account
func (Account) TableName() string {
	return "accounts"
}
