package api

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/vibecampus/vibehub/internal/apperr"
	"github.com/vibecampus/vibehub/internal/cache"
	"github.com/vibecampus/vibehub/internal/db"
	"github.com/vibecampus/vibehub/internal/models"
)

// UserPageParams pages through rows that belong to one user
type UserPageParams struct {
	UserID string `json:"user_id"`
	Offset int    `json:"offset"`
	Limit  int    `json:"limit"`
}

// AttendingParams asks which of EventIDs the caller attends
type AttendingParams struct {
	EventIDs []string `json:"event_ids"`
}

// PostParams names a collab task
type PostParams struct {
	PostID string `json:"post_id"`
}

func (r *Router) registerAccount() {
	r.handler.RegisterMethod("profiles.update", r.updateProfile)
	r.handler.RegisterMethod("follows.following", r.following)
	r.handler.RegisterMethod("follows.followers", r.followers)
	r.handler.RegisterMethod("wallets.get", r.getWallet)
	r.handler.RegisterMethod("wallets.transactions", r.walletTransactions)
	r.handler.RegisterMethod("subscriptions.current", r.currentSubscription)
	r.handler.RegisterMethod("notifications.mark_read", r.markNotificationsRead)
	r.handler.RegisterMethod("events.attending", r.eventsAttending)
	r.handler.RegisterMethod("events.attendees", r.eventAttendees)
	r.handler.RegisterMethod("escrows.for_post", r.escrowForPost)
	r.handler.RegisterMethod("collab_deliverables.count", r.countDeliverables)
}

func profileKey(id string) string {
	return "profile:" + cache.HashKey(id)
}

// profile reads a profile through the Redis cache
func (r *Router) profile(ctx context.Context, id string) (*models.Profile, error) {
	if id == "" {
		return nil, nil
	}
	var cached models.Profile
	err := r.cache.GetJSON(ctx, profileKey(id), &cached)
	if err == nil {
		return &cached, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) && !errors.Is(err, cache.ErrCacheDisabled) {
		r.logger.Warn("Profile cache read failed", zap.String("user_id", id), zap.Error(err))
	}

	p, err := r.profiles.GetByID(ctx, id)
	if err != nil || p == nil {
		return p, err
	}
	if err := r.cache.SetJSON(ctx, profileKey(id), p, r.profileTTL); err != nil && !errors.Is(err, cache.ErrCacheDisabled) {
		r.logger.Warn("Profile cache write failed", zap.String("user_id", id), zap.Error(err))
	}
	return p, nil
}

func (r *Router) forgetProfile(ctx context.Context, id string) {
	if err := r.cache.Delete(ctx, profileKey(id)); err != nil && !errors.Is(err, cache.ErrCacheDisabled) {
		r.logger.Warn("Profile cache invalidation failed", zap.String("user_id", id), zap.Error(err))
	}
}

func (r *Router) updateProfile(c *gin.Context, params json.RawMessage) (interface{}, error) {
	caller, err := requireCaller(c)
	if err != nil {
		return nil, err
	}
	var u db.ProfileUpdate
	if err := bind(params, &u); err != nil {
		return nil, err
	}
	if u.Name != nil {
		name := strings.TrimSpace(*u.Name)
		if name == "" {
			return nil, apperr.InvalidField("name", "Name is required")
		}
		u.Name = &name
	}
	if u.Role != nil {
		switch *u.Role {
		case models.RoleStudent, models.RoleFaculty, models.RoleParent, models.RoleVeteran:
		default:
			return nil, apperr.InvalidField("role", "Unknown role")
		}
	}
	ctx := c.Request.Context()
	p, err := r.profiles.Update(ctx, caller, u)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, apperr.NotFound("Profile not found")
	}
	r.forgetProfile(ctx, caller)
	return p, nil
}

func (r *Router) following(c *gin.Context, params json.RawMessage) (interface{}, error) {
	var p UserPageParams
	if err := bind(params, &p); err != nil {
		return nil, err
	}
	if p.UserID == "" {
		p.UserID = Caller(c)
	}
	if p.UserID == "" {
		return nil, apperr.InvalidField("user_id", "user_id is required")
	}
	ids, err := r.follows.FollowingIDs(c.Request.Context(), p.UserID)
	if err != nil {
		return nil, err
	}
	return nonNil(ids), nil
}

func (r *Router) followers(c *gin.Context, params json.RawMessage) (interface{}, error) {
	var p UserPageParams
	if err := bind(params, &p); err != nil {
		return nil, err
	}
	if p.UserID == "" {
		p.UserID = Caller(c)
	}
	if p.UserID == "" {
		return nil, apperr.InvalidField("user_id", "user_id is required")
	}
	ids, err := r.follows.FollowerIDs(c.Request.Context(), p.UserID, p.Offset, p.Limit)
	if err != nil {
		return nil, err
	}
	return nonNil(ids), nil
}

func (r *Router) getWallet(c *gin.Context, _ json.RawMessage) (interface{}, error) {
	caller, err := requireCaller(c)
	if err != nil {
		return nil, err
	}
	w, err := r.wallets.GetByUserID(c.Request.Context(), caller)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return &models.Wallet{UserID: caller}, nil
	}
	return w, nil
}

func (r *Router) walletTransactions(c *gin.Context, params json.RawMessage) (interface{}, error) {
	caller, err := requireCaller(c)
	if err != nil {
		return nil, err
	}
	var p UserPageParams
	if err := bind(params, &p); err != nil {
		return nil, err
	}
	rows, err := r.wallets.Transactions(c.Request.Context(), caller, p.Offset, p.Limit)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []models.WalletTransaction{}
	}
	return rows, nil
}

// currentSubscription returns null when the caller has no active plan
func (r *Router) currentSubscription(c *gin.Context, _ json.RawMessage) (interface{}, error) {
	caller, err := requireCaller(c)
	if err != nil {
		return nil, err
	}
	return r.wallets.CurrentSubscription(c.Request.Context(), caller)
}

func (r *Router) markNotificationsRead(c *gin.Context, _ json.RawMessage) (interface{}, error) {
	caller, err := requireCaller(c)
	if err != nil {
		return nil, err
	}
	n, err := r.notifications.MarkRead(c.Request.Context(), caller)
	if err != nil {
		return nil, err
	}
	return gin.H{"updated": n}, nil
}

func (r *Router) eventsAttending(c *gin.Context, params json.RawMessage) (interface{}, error) {
	caller, err := requireCaller(c)
	if err != nil {
		return nil, err
	}
	var p AttendingParams
	if err := bind(params, &p); err != nil {
		return nil, err
	}
	if len(p.EventIDs) == 0 {
		return []string{}, nil
	}
	ids, err := r.events.AttendingIDs(c.Request.Context(), caller, p.EventIDs)
	if err != nil {
		return nil, err
	}
	return nonNil(ids), nil
}

func (r *Router) eventAttendees(c *gin.Context, params json.RawMessage) (interface{}, error) {
	var p IDParams
	if err := bind(params, &p); err != nil {
		return nil, err
	}
	if p.ID == "" {
		return nil, apperr.InvalidField("id", "id is required")
	}
	ids, err := r.events.AttendeeIDs(c.Request.Context(), p.ID)
	if err != nil {
		return nil, err
	}
	return nonNil(ids), nil
}

func (r *Router) escrowForPost(c *gin.Context, params json.RawMessage) (interface{}, error) {
	caller, err := requireCaller(c)
	if err != nil {
		return nil, err
	}
	var p PostParams
	if err := bind(params, &p); err != nil {
		return nil, err
	}
	if err := r.requireParticipant(c.Request.Context(), caller, p.PostID); err != nil {
		return nil, err
	}
	return r.wallets.EscrowForPost(c.Request.Context(), p.PostID)
}

func (r *Router) countDeliverables(c *gin.Context, params json.RawMessage) (interface{}, error) {
	caller, err := requireCaller(c)
	if err != nil {
		return nil, err
	}
	var p PostParams
	if err := bind(params, &p); err != nil {
		return nil, err
	}
	if err := r.requireParticipant(c.Request.Context(), caller, p.PostID); err != nil {
		return nil, err
	}
	n, err := r.deliverables.Count(c.Request.Context(), p.PostID)
	if err != nil {
		return nil, err
	}
	return gin.H{"count": n}, nil
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
