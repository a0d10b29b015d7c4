package db

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/vibecampus/vibehub/internal/models"
)

// WalletRepository provides read access to wallets, ledgers and
// subscriptions. Balances are only written by procedures.
type WalletRepository struct {
	*Repository
}

// NewWalletRepository creates a new wallet repository
func NewWalletRepository(repo *Repository) *WalletRepository {
	return &WalletRepository{Repository: repo}
}

// GetByUserID retrieves a user's wallet
func (r *WalletRepository) GetByUserID(ctx context.Context, userID string) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&wallet).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &wallet, nil
}

// Transactions returns a user's ledger, newest first
func (r *WalletRepository) Transactions(ctx context.Context, userID string, offset, limit int) ([]models.WalletTransaction, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Order("id DESC")

	var txs []models.WalletTransaction
	if err := paginate(q, offset, limit).Find(&txs).Error; err != nil {
		return nil, err
	}
	return txs, nil
}

// CurrentSubscription returns the newest active or pending subscription
func (r *WalletRepository) CurrentSubscription(ctx context.Context, userID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status IN ?", userID, []string{models.SubscriptionActive, models.SubscriptionPending}).
		Order("created_at DESC").
		First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

// EscrowForPost retrieves the escrow attached to a task
func (r *WalletRepository) EscrowForPost(ctx context.Context, postID string) (*models.Escrow, error) {
	var escrow models.Escrow
	if err := r.db.WithContext(ctx).Where("post_id = ?", postID).First(&escrow).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &escrow, nil
}
