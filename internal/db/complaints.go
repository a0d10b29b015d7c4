package db

import (
	"context"

	"github.com/vibecampus/vibehub/internal/models"
)

// ComplaintRepository provides complaint-related database operations
type ComplaintRepository struct {
	*Repository
}

// NewComplaintRepository creates a new complaint repository
func NewComplaintRepository(repo *Repository) *ComplaintRepository {
	return &ComplaintRepository{Repository: repo}
}

// GetByID retrieves a complaint by ID
func (r *ComplaintRepository) GetByID(ctx context.Context, id string) (*models.Complaint, error) {
	return getByID[models.Complaint](ctx, r.db, id)
}

// List returns a page of complaints, newest first
func (r *ComplaintRepository) List(ctx context.Context, f models.ComplaintFilter, offset, limit int) ([]models.Complaint, error) {
	q := r.db.WithContext(ctx).Model(&models.Complaint{})
	if f.UserID != "" {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.College != "" {
		q = q.Where("college = ?", f.College)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}

	var complaints []models.Complaint
	if err := paginate(q.Order("created_at DESC").Order("id DESC"), offset, limit).Find(&complaints).Error; err != nil {
		return nil, err
	}
	return complaints, nil
}

// Upsert creates or updates a complaint
func (r *ComplaintRepository) Upsert(ctx context.Context, c *models.Complaint) error {
	return upsert(ctx, r.Repository, c.TableName(), c.ID, c)
}
