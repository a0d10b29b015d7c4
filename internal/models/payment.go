package models

import (
	"time"
)

// Payment states
const (
	PaymentPending = "pending"
	PaymentSettled = "settled"
)

// Payment is an external top-up, unique by reference. It is opened
// pending by the payer and credited once when settled.
type Payment struct {
	ID        string     `gorm:"type:varchar(36);primaryKey;column:id" json:"id"`
	UserID    string     `gorm:"type:varchar(36);not null;index;column:user_id" json:"user_id"`
	Reference string     `gorm:"type:varchar(64);not null;uniqueIndex:payments_reference_ux;column:reference" json:"reference"`
	Amount    int64      `gorm:"not null;column:amount" json:"amount"`
	Status    string     `gorm:"type:varchar(16);not null;default:'pending';column:status" json:"status"`
	SettledAt *time.Time `gorm:"column:settled_at" json:"settled_at,omitempty"`
	CreatedAt time.Time  `gorm:"not null;column:created_at" json:"created_at"`
}

// TableName specifies the table name for Payment
func (Payment) TableName() string {
	return "payments"
}

func (p Payment) RecordID() string { return p.ID }

// Subscription states
const (
	SubscriptionPending   = "pending"
	SubscriptionActive    = "active"
	SubscriptionCancelled = "cancelled"
	SubscriptionExpired   = "expired"
)

// Subscription is a user's paid tier
type Subscription struct {
	ID        string     `gorm:"type:varchar(36);primaryKey;column:id" json:"id"`
	UserID    string     `gorm:"type:varchar(36);not null;index;column:user_id" json:"user_id"`
	Tier      string     `gorm:"type:varchar(24);not null;column:tier" json:"tier"`
	Status    string     `gorm:"type:varchar(16);not null;default:'pending';column:status" json:"status"`
	ExpiresAt *time.Time `gorm:"column:expires_at" json:"expires_at,omitempty"`
	CreatedAt time.Time  `gorm:"not null;column:created_at" json:"created_at"`
	UpdatedAt time.Time  `gorm:"not null;column:updated_at" json:"updated_at"`
}

// TableName specifies the table name for Subscription
func (Subscription) TableName() string {
	return "subscriptions"
}

func (s Subscription) RecordID() string { return s.ID }

// Current reports whether the subscription is active or awaiting payment
func (s Subscription) Current() bool {
	return s.Status == SubscriptionActive || s.Status == SubscriptionPending
}
