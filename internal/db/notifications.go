package db

import (
	"context"

	"github.com/vibecampus/vibehub/internal/models"
	"github.com/vibecampus/vibehub/internal/realtime"
)

// NotificationRepository provides inbox database operations
type NotificationRepository struct {
	*Repository
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(repo *Repository) *NotificationRepository {
	return &NotificationRepository{Repository: repo}
}

// GetByID retrieves a notification by ID
func (r *NotificationRepository) GetByID(ctx context.Context, id string) (*models.Notification, error) {
	return getByID[models.Notification](ctx, r.db, id)
}

// List returns a user's inbox, newest first
func (r *NotificationRepository) List(ctx context.Context, f models.NotificationFilter, offset, limit int) ([]models.Notification, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", f.UserID)
	if f.UnreadOnly {
		q = q.Where("is_read = ?", false)
	}

	var items []models.Notification
	if err := paginate(q.Order("created_at DESC").Order("id DESC"), offset, limit).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// MarkRead marks every unread notification of userID as read
func (r *NotificationRepository) MarkRead(ctx context.Context, userID string) (int64, error) {
	var unread []models.Notification
	if err := r.db.WithContext(ctx).Where("user_id = ? AND is_read = ?", userID, false).Find(&unread).Error; err != nil {
		return 0, err
	}
	if len(unread) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true)
	if res.Error != nil {
		return 0, res.Error
	}
	for i := range unread {
		old := unread[i]
		unread[i].Read = true
		r.Publish(ctx, old.TableName(), realtime.EventUpdate, &unread[i], &old)
	}
	return res.RowsAffected, nil
}
