package db

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/vibecampus/vibehub/internal/models"
	"github.com/vibecampus/vibehub/internal/realtime"
)

// ProfileRepository provides profile-related database operations
type ProfileRepository struct {
	*Repository
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(repo *Repository) *ProfileRepository {
	return &ProfileRepository{Repository: repo}
}

// GetByID retrieves a profile by ID
func (r *ProfileRepository) GetByID(ctx context.Context, id string) (*models.Profile, error) {
	return getByID[models.Profile](ctx, r.db, id)
}

// GetByUsername retrieves a profile by its normalized username
func (r *ProfileRepository) GetByUsername(ctx context.Context, username string) (*models.Profile, error) {
	var profile models.Profile
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}

// GetByIDs retrieves multiple profiles by ID
func (r *ProfileRepository) GetByIDs(ctx context.Context, ids []string) ([]models.Profile, error) {
	var profiles []models.Profile
	if len(ids) == 0 {
		return profiles, nil
	}
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&profiles).Error; err != nil {
		return nil, err
	}
	return profiles, nil
}

// List returns a page of profiles ordered by name
func (r *ProfileRepository) List(ctx context.Context, f models.ProfileFilter, offset, limit int) ([]models.Profile, error) {
	q := r.db.WithContext(ctx).Model(&models.Profile{})
	if f.College != "" {
		q = q.Where("college = ?", f.College)
	}
	q = search(q, f.Search, "name", "username")

	var profiles []models.Profile
	if err := paginate(q.Order("name ASC").Order("id ASC"), offset, limit).Find(&profiles).Error; err != nil {
		return nil, err
	}
	return profiles, nil
}

// Create creates a profile
func (r *ProfileRepository) Create(ctx context.Context, profile *models.Profile) error {
	if err := r.db.WithContext(ctx).Create(profile).Error; err != nil {
		return err
	}
	r.Publish(ctx, profile.TableName(), realtime.EventInsert, profile, nil)
	return nil
}

// ProfileUpdate lists the fields a user may change on their own profile
type ProfileUpdate struct {
	Name      *string `json:"name,omitempty"`
	College   *string `json:"college,omitempty"`
	Role      *string `json:"role,omitempty"`
	Bio       *string `json:"bio,omitempty"`
	AvatarURL *string `json:"avatar_url,omitempty"`
}

// Update applies u to the profile with id and returns the new row
func (r *ProfileRepository) Update(ctx context.Context, id string, u ProfileUpdate) (*models.Profile, error) {
	fields := map[string]interface{}{}
	if u.Name != nil {
		fields["name"] = *u.Name
	}
	if u.College != nil {
		if *u.College == "" {
			fields["college"] = nil
		} else {
			fields["college"] = *u.College
		}
	}
	if u.Role != nil {
		fields["role"] = *u.Role
	}
	if u.Bio != nil {
		fields["bio"] = *u.Bio
	}
	if u.AvatarURL != nil {
		fields["avatar_url"] = *u.AvatarURL
	}

	var old, updated models.Profile
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&old).Error; err != nil {
			return err
		}
		// verification vouches for one role at one college
		if old.Verified && ((u.Role != nil && *u.Role != old.Role) || (u.College != nil && *u.College != old.CollegeName())) {
			fields["verified"] = false
		}
		if len(fields) > 0 {
			if err := tx.Model(&models.Profile{}).Where("id = ?", id).Updates(fields).Error; err != nil {
				return err
			}
		}
		return tx.Where("id = ?", id).First(&updated).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	r.Publish(ctx, updated.TableName(), realtime.EventUpdate, &updated, &old)
	return &updated, nil
}

// FollowRepository provides follow-related database operations
type FollowRepository struct {
	*Repository
}

// NewFollowRepository creates a new follow repository
func NewFollowRepository(repo *Repository) *FollowRepository {
	return &FollowRepository{Repository: repo}
}

// FollowingIDs returns the ids userID follows
func (r *FollowRepository) FollowingIDs(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	if err := r.db.WithContext(ctx).Model(&models.Follow{}).
		Where("follower_id = ?", userID).
		Order("created_at DESC").
		Pluck("following_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// FollowerIDs returns the ids following userID
func (r *FollowRepository) FollowerIDs(ctx context.Context, userID string, offset, limit int) ([]string, error) {
	var ids []string
	q := r.db.WithContext(ctx).Model(&models.Follow{}).
		Where("following_id = ?", userID).
		Order("created_at DESC")
	if err := paginate(q, offset, limit).Pluck("follower_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// IsFollowing reports whether followerID follows followingID
func (r *FollowRepository) IsFollowing(ctx context.Context, followerID, followingID string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Follow{}).
		Where("follower_id = ? AND following_id = ?", followerID, followingID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
