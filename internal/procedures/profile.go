package procedures

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"

	"github.com/vibecampus/vibehub/internal/apperr"
	"github.com/vibecampus/vibehub/internal/models"
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9_]{3,24}$`)

// NormalizeUsername folds s to its canonical form and checks it is
// 3 to 24 characters of lowercase letters, digits and underscores
func NormalizeUsername(s string) (string, error) {
	u := cases.Fold().String(norm.NFKC.String(strings.TrimSpace(s)))
	u = strings.TrimPrefix(u, "@")
	if !usernamePattern.MatchString(u) {
		return "", apperr.InvalidField("username", "Usernames are 3-24 characters: letters, numbers and underscores")
	}
	return u, nil
}

// profileSetUsername claims a username. It can only be set once.
func profileSetUsername(_ context.Context, tx *Tx, caller string, params json.RawMessage) (interface{}, error) {
	var p UsernameParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	username, err := NormalizeUsername(p.Username)
	if err != nil {
		return nil, err
	}
	me, err := callerProfile(tx, caller)
	if err != nil {
		return nil, err
	}
	if me.Username != nil {
		return nil, apperr.FailedPrecondition("Your username can only be set once")
	}

	taken, err := find[models.Profile](tx, "username = ?", username)
	if err != nil {
		return nil, err
	}
	if taken != nil {
		return nil, apperr.AlreadyExists("That username is taken")
	}

	res := tx.Model(&models.Profile{}).
		Where("id = ? AND username IS NULL", caller).
		Update("username", username)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, apperr.FailedPrecondition("Your username can only be set once")
	}

	after, err := find[models.Profile](tx, "id = ?", caller)
	if err != nil {
		return nil, err
	}
	if err := tx.updated(after, me); err != nil {
		return nil, err
	}
	return after, nil
}

// adminAssignModerator grants moderator access to user_id
func adminAssignModerator(_ context.Context, tx *Tx, caller string, params json.RawMessage) (interface{}, error) {
	var p UserParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	me, err := callerProfile(tx, caller)
	if err != nil {
		return nil, err
	}
	if me.Access != models.AccessAdmin {
		return nil, apperr.Forbidden("Only admins can assign moderators")
	}
	target, err := find[models.Profile](tx, "id = ?", p.UserID)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, apperr.NotFound("User not found")
	}
	if target.Access != models.AccessUser {
		return nil, apperr.FailedPrecondition("This user already has staff access")
	}

	if err := tx.Model(&models.Profile{}).Where("id = ?", target.ID).
		Update("access", models.AccessModerator).Error; err != nil {
		return nil, err
	}
	after, err := find[models.Profile](tx, "id = ?", target.ID)
	if err != nil {
		return nil, err
	}
	if err := tx.updated(after, target); err != nil {
		return nil, err
	}
	return after, nil
}

// adminVerifyProfile marks a profile's role and college as checked by staff
func adminVerifyProfile(_ context.Context, tx *Tx, caller string, params json.RawMessage) (interface{}, error) {
	var p UserParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	if _, err := requireStaff(tx, caller, "Only moderators can verify profiles"); err != nil {
		return nil, err
	}
	target, err := find[models.Profile](tx, "id = ?", p.UserID)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, apperr.NotFound("User not found")
	}
	if target.Verified {
		return target, nil
	}

	if err := tx.Model(&models.Profile{}).Where("id = ?", target.ID).
		Update("verified", true).Error; err != nil {
		return nil, err
	}
	after, err := find[models.Profile](tx, "id = ?", target.ID)
	if err != nil {
		return nil, err
	}
	if err := tx.updated(after, target); err != nil {
		return nil, err
	}
	return after, nil
}

// accountDelete removes the caller's account and everything that only
// makes sense while it exists. Users with live tasks or funds in flight
// must settle them first.
func accountDelete(_ context.Context, tx *Tx, caller string, _ json.RawMessage) (interface{}, error) {
	me, err := callerProfile(tx, caller)
	if err != nil {
		return nil, err
	}

	var active int64
	if err := tx.Model(&models.CollabPost{}).
		Where("(poster_id = ? AND status IN ?) OR (helper_id = ? AND status = ?)",
			caller, []string{models.TaskOpen, models.TaskInProgress}, caller, models.TaskInProgress).
		Count(&active).Error; err != nil {
		return nil, err
	}
	if active > 0 {
		return nil, apperr.FailedPrecondition("Finish or cancel your active tasks before deleting your account")
	}

	// unwind follow counters on both sides
	var follows []models.Follow
	if err := tx.Where("follower_id = ? OR following_id = ?", caller, caller).Find(&follows).Error; err != nil {
		return nil, err
	}
	for i := range follows {
		f := follows[i]
		other, column := f.FollowingID, "followers"
		if f.FollowingID == caller {
			other, column = f.FollowerID, "following"
		}
		if err := tx.Where("follower_id = ? AND following_id = ?", f.FollowerID, f.FollowingID).
			Delete(&models.Follow{}).Error; err != nil {
			return nil, err
		}
		if err := tx.deleted(&f); err != nil {
			return nil, err
		}
		otherProfile, err := find[models.Profile](tx, "id = ?", other)
		if err != nil {
			return nil, err
		}
		if otherProfile != nil {
			if _, err := bumpCounter(tx, otherProfile, column, -1); err != nil {
				return nil, err
			}
		}
	}

	var rsvps []models.EventAttendee
	if err := tx.Where("user_id = ?", caller).Find(&rsvps).Error; err != nil {
		return nil, err
	}
	for i := range rsvps {
		if err := tx.Model(&models.Event{}).
			Where("id = ? AND attendee_count > 0", rsvps[i].EventID).
			Update("attendee_count", gorm.Expr("attendee_count - 1")).Error; err != nil {
			return nil, err
		}
		if err := tx.deleted(&rsvps[i]); err != nil {
			return nil, err
		}
	}

	if err := deleteOwnedRows(tx, caller); err != nil {
		return nil, err
	}

	if err := tx.Where("id = ?", caller).Delete(&models.Profile{}).Error; err != nil {
		return nil, err
	}
	if err := tx.deleted(me); err != nil {
		return nil, err
	}
	if err := tx.Where("id = ?", caller).Delete(&models.Account{}).Error; err != nil {
		return nil, err
	}
	return &AccountDeleteResult{Deleted: true}, nil
}

// deleteOwnedRows bulk-deletes the caller's rows from tables nobody
// else references. Posts and the wallet are announced so open feeds and
// sessions drop them.
func deleteOwnedRows(tx *Tx, caller string) error {
	var posts []models.Post
	if err := tx.Where("author_id = ?", caller).Find(&posts).Error; err != nil {
		return err
	}
	wallet, err := find[models.Wallet](tx, "user_id = ?", caller)
	if err != nil {
		return err
	}

	type owned struct {
		model  interface{}
		column string
	}
	for _, o := range []owned{
		{&models.EventAttendee{}, "user_id"},
		{&models.Post{}, "author_id"},
		{&models.CollabApplication{}, "applicant_id"},
		{&models.Notification{}, "user_id"},
		{&models.WalletTransaction{}, "user_id"},
		{&models.Subscription{}, "user_id"},
		{&models.Wallet{}, "user_id"},
	} {
		if err := tx.Where(o.column+" = ?", caller).Delete(o.model).Error; err != nil {
			return err
		}
	}

	for i := range posts {
		if err := tx.deleted(&posts[i]); err != nil {
			return err
		}
	}
	if wallet != nil {
		return tx.deleted(wallet)
	}
	return nil
}
