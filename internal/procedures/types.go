package procedures

import (
	"github.com/vibecampus/vibehub/internal/models"
)

// Procedure names
const (
	FollowToggle             = "follow.toggle"
	EventToggleRSVP          = "event.toggle_rsvp"
	EventModerate            = "event.moderate"
	CollabCreateTask         = "collab.create_task"
	CollabCreateEscrow       = "collab.create_escrow"
	CollabApply              = "collab.apply"
	CollabAcceptApplication  = "collab.accept_application"
	CollabDeclineApplication = "collab.decline_application"
	CollabSubmitDeliverable  = "collab.submit_deliverable"
	CollabCompleteAndPay     = "collab.complete_and_pay"
	CollabCancel             = "collab.cancel"
	WalletCreatePayment      = "wallet.create_payment"
	WalletConfirmPayment     = "wallet.confirm_payment"
	ProfileSetUsername       = "profile.set_username"
	ComplaintAdvance         = "complaint.advance"
	AdminAssignModerator     = "admin.assign_moderator"
	AdminVerifyProfile       = "admin.verify_profile"
	AccountDelete            = "account.delete"
)

type FollowToggleParams struct {
	TargetID string `json:"target_id"`
}

type FollowToggleResult struct {
	Following bool  `json:"following"`
	Followers int64 `json:"followers"`
}

type EventParams struct {
	EventID string `json:"event_id"`
}

type RSVPResult struct {
	Attending     bool `json:"attending"`
	AttendeeCount int  `json:"attendee_count"`
}

type EventModerateParams struct {
	EventID string `json:"event_id"`
	Status  string `json:"status"`
}

type CreateTaskParams struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Reward      int64  `json:"reward"`
}

type TaskParams struct {
	PostID string `json:"post_id"`
}

type ApplyParams struct {
	PostID  string `json:"post_id"`
	Message string `json:"message"`
}

type ApplicationParams struct {
	ApplicationID string `json:"application_id"`
}

type DeliverableParams struct {
	PostID string `json:"post_id"`
	URL    string `json:"url"`
	Note   string `json:"note"`
}

type CreatePaymentParams struct {
	Amount int64 `json:"amount"`
}

type ConfirmPaymentParams struct {
	Reference string `json:"reference"`
}

type ConfirmPaymentResult struct {
	Wallet    models.Wallet `json:"wallet"`
	Duplicate bool          `json:"duplicate"`
}

type UsernameParams struct {
	Username string `json:"username"`
}

type ComplaintAdvanceParams struct {
	ComplaintID string `json:"complaint_id"`
	Status      string `json:"status"`
}

type UserParams struct {
	UserID string `json:"user_id"`
}

type AccountDeleteResult struct {
	Deleted bool `json:"deleted"`
}
