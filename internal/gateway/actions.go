package gateway

import (
	"context"
	"strings"

	"github.com/vibecampus/vibehub/internal/apperr"
	"github.com/vibecampus/vibehub/internal/models"
	"github.com/vibecampus/vibehub/internal/procedures"
)

// ToggleFollow follows or unfollows target
func (g *Gateway) ToggleFollow(ctx context.Context, targetID string) (*procedures.FollowToggleResult, error) {
	if targetID == "" {
		return nil, apperr.InvalidField("target_id", "Choose someone to follow")
	}
	var out procedures.FollowToggleResult
	if err := g.call(ctx, Key(procedures.FollowToggle, targetID), procedures.FollowToggle,
		procedures.FollowToggleParams{TargetID: targetID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ToggleRSVP adds or removes the caller from an event's attendees
func (g *Gateway) ToggleRSVP(ctx context.Context, eventID string) (*procedures.RSVPResult, error) {
	var out procedures.RSVPResult
	if err := g.call(ctx, Key(procedures.EventToggleRSVP, eventID), procedures.EventToggleRSVP,
		procedures.EventParams{EventID: eventID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ModerateEvent approves or rejects a pending event
func (g *Gateway) ModerateEvent(ctx context.Context, event models.Event, status string) (*models.Event, error) {
	if status != models.EventApproved && status != models.EventRejected {
		return nil, apperr.InvalidField("status", "Status must be approved or rejected")
	}
	if event.Status != models.EventPending {
		return nil, apperr.FailedPrecondition("This event has already been reviewed")
	}
	var out models.Event
	if err := g.call(ctx, Key(procedures.EventModerate, event.ID), procedures.EventModerate,
		procedures.EventModerateParams{EventID: event.ID, Status: status}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreatePayment opens a pending top-up for amount. The wallet is only
// credited once the provider confirms the returned reference.
func (g *Gateway) CreatePayment(ctx context.Context, amount int64) (*models.Payment, error) {
	if err := g.requireAmount("amount", amount); err != nil {
		return nil, err
	}
	var out models.Payment
	if err := g.call(ctx, Key(procedures.WalletCreatePayment), procedures.WalletCreatePayment,
		procedures.CreatePaymentParams{Amount: amount}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ConfirmPayment settles a pending payment by reference. Staff only.
func (g *Gateway) ConfirmPayment(ctx context.Context, reference string) (*procedures.ConfirmPaymentResult, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, apperr.InvalidField("reference", "Payment reference is required")
	}
	var out procedures.ConfirmPaymentResult
	if err := g.call(ctx, Key(procedures.WalletConfirmPayment, reference), procedures.WalletConfirmPayment,
		procedures.ConfirmPaymentParams{Reference: reference}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetUsername claims a username. It can only be done once.
func (g *Gateway) SetUsername(ctx context.Context, username string) (*models.Profile, error) {
	normalized, err := procedures.NormalizeUsername(username)
	if err != nil {
		return nil, err
	}
	var out models.Profile
	if err := g.call(ctx, Key(procedures.ProfileSetUsername), procedures.ProfileSetUsername,
		procedures.UsernameParams{Username: normalized}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AdvanceComplaint moves a complaint one step along its lifecycle
func (g *Gateway) AdvanceComplaint(ctx context.Context, complaint models.Complaint) (*models.Complaint, error) {
	next := models.NextComplaintStatus(complaint.Status)
	if next == "" {
		return nil, apperr.FailedPrecondition("This complaint is already resolved")
	}
	var out models.Complaint
	if err := g.call(ctx, Key(procedures.ComplaintAdvance, complaint.ID), procedures.ComplaintAdvance,
		procedures.ComplaintAdvanceParams{ComplaintID: complaint.ID, Status: next}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyProfile marks a user's role and college as checked. Staff only.
func (g *Gateway) VerifyProfile(ctx context.Context, userID string) (*models.Profile, error) {
	if userID == "" {
		return nil, apperr.InvalidField("user_id", "Choose a user")
	}
	var out models.Profile
	if err := g.call(ctx, Key(procedures.AdminVerifyProfile, userID), procedures.AdminVerifyProfile,
		procedures.UserParams{UserID: userID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AssignModerator grants moderator access to a user
func (g *Gateway) AssignModerator(ctx context.Context, userID string) (*models.Profile, error) {
	if userID == "" {
		return nil, apperr.InvalidField("user_id", "Choose a user")
	}
	var out models.Profile
	if err := g.call(ctx, Key(procedures.AdminAssignModerator, userID), procedures.AdminAssignModerator,
		procedures.UserParams{UserID: userID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteAccount removes the caller's account and everything it owns
func (g *Gateway) DeleteAccount(ctx context.Context) error {
	var out procedures.AccountDeleteResult
	return g.call(ctx, Key(procedures.AccountDelete), procedures.AccountDelete, struct{}{}, &out)
}
