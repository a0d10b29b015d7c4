package db

import (
	"context"

	"github.com/vibecampus/vibehub/internal/models"
)

// CollabPostRepository provides task-related database operations.
// Tasks are only created and advanced by procedures.
type CollabPostRepository struct {
	*Repository
}

// NewCollabPostRepository creates a new task repository
func NewCollabPostRepository(repo *Repository) *CollabPostRepository {
	return &CollabPostRepository{Repository: repo}
}

// GetByID retrieves a task with poster and helper
func (r *CollabPostRepository) GetByID(ctx context.Context, id string) (*models.CollabPost, error) {
	return getByID[models.CollabPost](ctx, r.db.Preload("Poster").Preload("Helper"), id)
}

// List returns a page of tasks, newest first
func (r *CollabPostRepository) List(ctx context.Context, f models.CollabFilter, offset, limit int) ([]models.CollabPost, error) {
	q := r.db.WithContext(ctx).Model(&models.CollabPost{}).Preload("Poster").Preload("Helper")
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.PosterID != "" {
		q = q.Where("poster_id = ?", f.PosterID)
	}
	if f.HelperID != "" {
		q = q.Where("helper_id = ?", f.HelperID)
	}
	q = search(q, f.Search, "title", "description")

	var posts []models.CollabPost
	if err := paginate(q.Order("created_at DESC").Order("id DESC"), offset, limit).Find(&posts).Error; err != nil {
		return nil, err
	}
	return posts, nil
}

// CollabApplicationRepository provides application-related database operations
type CollabApplicationRepository struct {
	*Repository
}

// NewCollabApplicationRepository creates a new application repository
func NewCollabApplicationRepository(repo *Repository) *CollabApplicationRepository {
	return &CollabApplicationRepository{Repository: repo}
}

// GetByID retrieves an application with its applicant
func (r *CollabApplicationRepository) GetByID(ctx context.Context, id string) (*models.CollabApplication, error) {
	return getByID[models.CollabApplication](ctx, r.db.Preload("Applicant"), id)
}

// List returns applications, oldest first
func (r *CollabApplicationRepository) List(ctx context.Context, f models.ApplicationFilter, offset, limit int) ([]models.CollabApplication, error) {
	q := r.db.WithContext(ctx).Model(&models.CollabApplication{}).Preload("Applicant")
	if f.PostID != "" {
		q = q.Where("post_id = ?", f.PostID)
	}
	if f.ApplicantID != "" {
		q = q.Where("applicant_id = ?", f.ApplicantID)
	}

	var apps []models.CollabApplication
	if err := paginate(q.Order("created_at ASC").Order("id ASC"), offset, limit).Find(&apps).Error; err != nil {
		return nil, err
	}
	return apps, nil
}

// CollabDeliverableRepository provides deliverable-related database operations
type CollabDeliverableRepository struct {
	*Repository
}

// NewCollabDeliverableRepository creates a new deliverable repository
func NewCollabDeliverableRepository(repo *Repository) *CollabDeliverableRepository {
	return &CollabDeliverableRepository{Repository: repo}
}

// GetByID retrieves a deliverable by ID
func (r *CollabDeliverableRepository) GetByID(ctx context.Context, id string) (*models.CollabDeliverable, error) {
	return getByID[models.CollabDeliverable](ctx, r.db, id)
}

// List returns a task's deliverables, oldest first
func (r *CollabDeliverableRepository) List(ctx context.Context, f models.DeliverableFilter, offset, limit int) ([]models.CollabDeliverable, error) {
	q := r.db.WithContext(ctx).Model(&models.CollabDeliverable{}).Where("post_id = ?", f.PostID)

	var items []models.CollabDeliverable
	if err := paginate(q.Order("created_at ASC").Order("id ASC"), offset, limit).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// Count returns how many deliverables a task has
func (r *CollabDeliverableRepository) Count(ctx context.Context, postID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.CollabDeliverable{}).Where("post_id = ?", postID).Count(&n).Error
	return n, err
}
