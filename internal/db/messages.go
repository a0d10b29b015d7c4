package db

import (
	"context"

	"github.com/vibecampus/vibehub/internal/models"
)

// CollabMessageRepository provides task chat database operations
type CollabMessageRepository struct {
	*Repository
}

// NewCollabMessageRepository creates a new task chat repository
func NewCollabMessageRepository(repo *Repository) *CollabMessageRepository {
	return &CollabMessageRepository{Repository: repo}
}

// GetByID retrieves a message with its sender
func (r *CollabMessageRepository) GetByID(ctx context.Context, id string) (*models.CollabMessage, error) {
	return getByID[models.CollabMessage](ctx, r.db.Preload("Sender"), id)
}

// List returns a task's conversation, oldest first
func (r *CollabMessageRepository) List(ctx context.Context, f models.CollabMessageFilter, offset, limit int) ([]models.CollabMessage, error) {
	q := r.db.WithContext(ctx).Model(&models.CollabMessage{}).Preload("Sender").Where("post_id = ?", f.PostID)

	var msgs []models.CollabMessage
	if err := paginate(q.Order("created_at ASC").Order("id ASC"), offset, limit).Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

// Upsert creates or updates a message
func (r *CollabMessageRepository) Upsert(ctx context.Context, msg *models.CollabMessage) error {
	return upsert(ctx, r.Repository, msg.TableName(), msg.ID, msg)
}

// Delete removes a message sent by senderID
func (r *CollabMessageRepository) Delete(ctx context.Context, id, senderID string) error {
	return deleteOwned[models.CollabMessage](ctx, r.Repository, models.CollabMessage{}.TableName(), id, "sender_id", senderID)
}

// CollegeMessageRepository provides college room database operations
type CollegeMessageRepository struct {
	*Repository
}

// NewCollegeMessageRepository creates a new college room repository
func NewCollegeMessageRepository(repo *Repository) *CollegeMessageRepository {
	return &CollegeMessageRepository{Repository: repo}
}

// GetByID retrieves a message with its sender
func (r *CollegeMessageRepository) GetByID(ctx context.Context, id string) (*models.CollegeMessage, error) {
	return getByID[models.CollegeMessage](ctx, r.db.Preload("Sender"), id)
}

// List returns one room's messages, oldest first
func (r *CollegeMessageRepository) List(ctx context.Context, f models.CollegeMessageFilter, offset, limit int) ([]models.CollegeMessage, error) {
	q := r.db.WithContext(ctx).Model(&models.CollegeMessage{}).Preload("Sender").
		Where("college = ? AND room = ?", f.College, f.RoomOrDefault())

	var msgs []models.CollegeMessage
	if err := paginate(q.Order("created_at ASC").Order("id ASC"), offset, limit).Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

// Upsert creates or updates a message
func (r *CollegeMessageRepository) Upsert(ctx context.Context, msg *models.CollegeMessage) error {
	return upsert(ctx, r.Repository, msg.TableName(), msg.ID, msg)
}

// Delete removes a message sent by senderID
func (r *CollegeMessageRepository) Delete(ctx context.Context, id, senderID string) error {
	return deleteOwned[models.CollegeMessage](ctx, r.Repository, models.CollegeMessage{}.TableName(), id, "sender_id", senderID)
}
