package models

import (
	"time"
)

// Wallet holds a user's vibes. Balance never goes negative; it is only
// mutated by server-side procedures.
type Wallet struct {
	UserID         string    `gorm:"type:varchar(36);primaryKey;column:user_id" json:"user_id"`
	Balance        int64     `gorm:"not null;default:0;column:balance" json:"balance"`
	PendingBalance int64     `gorm:"not null;default:0;column:pending_balance" json:"pending_balance"`
	TotalEarned    int64     `gorm:"not null;default:0;column:total_earned" json:"total_earned"`
	TotalSpent     int64     `gorm:"not null;default:0;column:total_spent" json:"total_spent"`
	UpdatedAt      time.Time `gorm:"not null;column:updated_at" json:"updated_at"`
}

// TableName specifies the table name for Wallet
func (Wallet) TableName() string {
	return "wallets"
}

func (w Wallet) RecordID() string { return w.UserID }

// Ledger entry kinds
const (
	TxTopUp         = "topup"
	TxEscrowHold    = "escrow_hold"
	TxEscrowRefund  = "escrow_refund"
	TxPayoutPending = "payout_pending"
	TxPayout        = "payout"
)

// WalletTransaction is one ledger line. Amount is signed.
type WalletTransaction struct {
	ID        string    `gorm:"type:varchar(36);primaryKey;column:id" json:"id"`
	UserID    string    `gorm:"type:varchar(36);not null;index;column:user_id" json:"user_id"`
	Kind      string    `gorm:"type:varchar(24);not null;column:kind" json:"kind"`
	Amount    int64     `gorm:"not null;column:amount" json:"amount"`
	Reference string    `gorm:"type:varchar(64);not null;default:'';column:reference" json:"reference"`
	CreatedAt time.Time `gorm:"not null;column:created_at" json:"created_at"`
}

// TableName specifies the table name for WalletTransaction
func (WalletTransaction) TableName() string {
	return "wallet_transactions"
}

func (t WalletTransaction) RecordID() string { return t.ID }

// Escrow states
const (
	EscrowHeld     = "held"
	EscrowReleased = "released"
	EscrowRefunded = "refunded"
)

// Escrow earmarks a task's reward until completion or cancellation
type Escrow struct {
	ID        string    `gorm:"type:varchar(36);primaryKey;column:id" json:"id"`
	PostID    string    `gorm:"type:varchar(36);not null;uniqueIndex:escrows_post_ux;column:post_id" json:"post_id"`
	PayerID   string    `gorm:"type:varchar(36);not null;column:payer_id" json:"payer_id"`
	Amount    int64     `gorm:"not null;column:amount" json:"amount"`
	Status    string    `gorm:"type:varchar(16);not null;default:'held';column:status" json:"status"`
	CreatedAt time.Time `gorm:"not null;column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;column:updated_at" json:"updated_at"`
}

// TableName specifies the table name for Escrow
func (Escrow) TableName() string {
	return "escrows"
}

func (e Escrow) RecordID() string { return e.ID }
