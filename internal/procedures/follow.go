package procedures

import (
	"context"
	"encoding/json"

	"gorm.io/gorm"

	"github.com/vibecampus/vibehub/internal/apperr"
	"github.com/vibecampus/vibehub/internal/models"
)

// followToggle follows or unfollows target_id and keeps both profiles'
// counters in step with the follows table
func followToggle(_ context.Context, tx *Tx, caller string, params json.RawMessage) (interface{}, error) {
	var p FollowToggleParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	if p.TargetID == "" {
		return nil, apperr.InvalidField("target_id", "Choose someone to follow")
	}
	if p.TargetID == caller {
		return nil, apperr.InvalidField("target_id", "You cannot follow yourself")
	}

	me, err := callerProfile(tx, caller)
	if err != nil {
		return nil, err
	}
	target, err := find[models.Profile](tx, "id = ?", p.TargetID)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, apperr.NotFound("User not found")
	}

	existing, err := find[models.Follow](tx, "follower_id = ? AND following_id = ?", caller, p.TargetID)
	if err != nil {
		return nil, err
	}

	var delta int64 = 1
	if existing != nil {
		if err := tx.Where("follower_id = ? AND following_id = ?", caller, p.TargetID).
			Delete(&models.Follow{}).Error; err != nil {
			return nil, err
		}
		if err := tx.deleted(existing); err != nil {
			return nil, err
		}
		delta = -1
	} else {
		follow := &models.Follow{FollowerID: caller, FollowingID: p.TargetID}
		if err := tx.Create(follow).Error; err != nil {
			return nil, err
		}
		if err := tx.inserted(follow); err != nil {
			return nil, err
		}
		if err := notify(tx, p.TargetID, models.NotifyFollow, caller, caller); err != nil {
			return nil, err
		}
	}

	if _, err := bumpCounter(tx, me, "following", delta); err != nil {
		return nil, err
	}
	updated, err := bumpCounter(tx, target, "followers", delta)
	if err != nil {
		return nil, err
	}

	return &FollowToggleResult{Following: existing == nil, Followers: updated.Followers}, nil
}

// bumpCounter adds delta to a profile counter column, never below zero
func bumpCounter(tx *Tx, profile *models.Profile, column string, delta int64) (*models.Profile, error) {
	q := tx.Model(&models.Profile{}).Where("id = ?", profile.ID)
	if delta < 0 {
		q = q.Where(column+" >= ?", -delta)
	}
	if err := q.Update(column, gorm.Expr(column+" + ?", delta)).Error; err != nil {
		return nil, err
	}
	after, err := find[models.Profile](tx, "id = ?", profile.ID)
	if err != nil {
		return nil, err
	}
	if err := tx.updated(after, profile); err != nil {
		return nil, err
	}
	return after, nil
}

// callerProfile loads the acting user's profile
func callerProfile(tx *Tx, caller string) (*models.Profile, error) {
	p, err := find[models.Profile](tx, "id = ?", caller)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, apperr.Unauthorized("Your profile could not be found. Please sign in again.")
	}
	return p, nil
}

// requireStaff loads the caller and rejects anyone below moderator
func requireStaff(tx *Tx, caller, msg string) (*models.Profile, error) {
	p, err := callerProfile(tx, caller)
	if err != nil {
		return nil, err
	}
	if !p.IsStaff() {
		return nil, apperr.Forbidden(msg)
	}
	return p, nil
}
