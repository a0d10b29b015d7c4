package db

import (
	"context"

	"github.com/vibecampus/vibehub/internal/models"
)

// PostRepository provides post-related database operations
type PostRepository struct {
	*Repository
}

// NewPostRepository creates a new post repository
func NewPostRepository(repo *Repository) *PostRepository {
	return &PostRepository{Repository: repo}
}

// GetByID retrieves a post with its author
func (r *PostRepository) GetByID(ctx context.Context, id string) (*models.Post, error) {
	return getByID[models.Post](ctx, r.db.Preload("Author"), id)
}

// List returns a page of posts, newest first
func (r *PostRepository) List(ctx context.Context, f models.PostFilter, offset, limit int) ([]models.Post, error) {
	q := r.db.WithContext(ctx).Model(&models.Post{}).Preload("Author")
	if f.AuthorID != "" {
		q = q.Where("author_id = ?", f.AuthorID)
	}
	if f.CommunityID != "" {
		q = q.Where("community_id = ?", f.CommunityID)
	} else if f.AuthorID == "" {
		q = q.Where("community_id IS NULL")
	}
	q = search(q, f.Search, "content")

	var posts []models.Post
	if err := paginate(q.Order("created_at DESC").Order("id DESC"), offset, limit).Find(&posts).Error; err != nil {
		return nil, err
	}
	return posts, nil
}

// Upsert creates the post or updates it when the id already exists
func (r *PostRepository) Upsert(ctx context.Context, post *models.Post) error {
	return upsert(ctx, r.Repository, post.TableName(), post.ID, post)
}

// Delete removes a post written by authorID
func (r *PostRepository) Delete(ctx context.Context, id, authorID string) error {
	return deleteOwned[models.Post](ctx, r.Repository, models.Post{}.TableName(), id, "author_id", authorID)
}

// CommunityRepository provides community-related database operations
type CommunityRepository struct {
	*Repository
}

// NewCommunityRepository creates a new community repository
func NewCommunityRepository(repo *Repository) *CommunityRepository {
	return &CommunityRepository{Repository: repo}
}

// GetByID retrieves a community by ID
func (r *CommunityRepository) GetByID(ctx context.Context, id string) (*models.Community, error) {
	return getByID[models.Community](ctx, r.db, id)
}

// List returns a page of communities ordered by name
func (r *CommunityRepository) List(ctx context.Context, f models.CommunityFilter, offset, limit int) ([]models.Community, error) {
	q := r.db.WithContext(ctx).Model(&models.Community{})
	if f.College != "" {
		q = q.Where("college = ?", f.College)
	}
	q = search(q, f.Search, "name")

	var communities []models.Community
	if err := paginate(q.Order("name ASC").Order("id ASC"), offset, limit).Find(&communities).Error; err != nil {
		return nil, err
	}
	return communities, nil
}

// Upsert creates or updates a community
func (r *CommunityRepository) Upsert(ctx context.Context, c *models.Community) error {
	return upsert(ctx, r.Repository, c.TableName(), c.ID, c)
}
