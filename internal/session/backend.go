package session

import (
	"context"

	"github.com/vibecampus/vibehub/internal/db"
	"github.com/vibecampus/vibehub/internal/models"
)

// RepositoryBackend reads session records straight from the database
type RepositoryBackend struct {
	profiles *db.ProfileRepository
	follows  *db.FollowRepository
	wallets  *db.WalletRepository
}

// NewRepositoryBackend creates an in-process Backend
func NewRepositoryBackend(repo *db.Repository) *RepositoryBackend {
	return &RepositoryBackend{
		profiles: db.NewProfileRepository(repo),
		follows:  db.NewFollowRepository(repo),
		wallets:  db.NewWalletRepository(repo),
	}
}

func (b *RepositoryBackend) Profile(ctx context.Context, id string) (*models.Profile, error) {
	return b.profiles.GetByID(ctx, id)
}

func (b *RepositoryBackend) Wallet(ctx context.Context, userID string) (*models.Wallet, error) {
	return b.wallets.GetByUserID(ctx, userID)
}

func (b *RepositoryBackend) Subscription(ctx context.Context, userID string) (*models.Subscription, error) {
	return b.wallets.CurrentSubscription(ctx, userID)
}

func (b *RepositoryBackend) FollowingIDs(ctx context.Context, userID string) ([]string, error) {
	return b.follows.FollowingIDs(ctx, userID)
}
