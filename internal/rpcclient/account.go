package rpcclient

import (
	"context"

	"github.com/vibecampus/vibehub/internal/api"
	"github.com/vibecampus/vibehub/internal/auth"
	"github.com/vibecampus/vibehub/internal/db"
	"github.com/vibecampus/vibehub/internal/models"
)

// Auth implements auth.Authenticator against the server
type Auth struct {
	c *Client
}

// Auth returns the remote authenticator
func (c *Client) Auth() *Auth {
	return &Auth{c: c}
}

var _ auth.Authenticator = (*Auth)(nil)

func (a *Auth) SignUp(ctx context.Context, p auth.SignUpParams) (*auth.Session, error) {
	var s auth.Session
	if err := a.c.CallAs(ctx, "", "auth.sign_up", p, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (a *Auth) SignIn(ctx context.Context, email, password string) (*auth.Session, error) {
	var s auth.Session
	if err := a.c.CallAs(ctx, "", "auth.sign_in", api.SignInParams{Email: email, Password: password}, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (a *Auth) SignOut(ctx context.Context, token string) error {
	return a.c.CallAs(ctx, token, "auth.sign_out", nil, nil)
}

func (a *Auth) CurrentUser(ctx context.Context, token string) (*auth.User, error) {
	var u auth.User
	if err := a.c.CallAs(ctx, token, "auth.current_user", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (a *Auth) RequestRecovery(ctx context.Context, email string) error {
	return a.c.CallAs(ctx, "", "auth.request_recovery", api.EmailParams{Email: email}, nil)
}

func (a *Auth) ExchangeRecovery(ctx context.Context, recoveryToken string) (*auth.Session, error) {
	var s auth.Session
	if err := a.c.CallAs(ctx, "", "auth.exchange_recovery", api.TokenParams{Token: recoveryToken}, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (a *Auth) UpdatePassword(ctx context.Context, token, password string) error {
	return a.c.CallAs(ctx, token, "auth.update_password", api.PasswordParams{Password: password}, nil)
}

// Profile returns nil for unknown ids
func (c *Client) Profile(ctx context.Context, id string) (*models.Profile, error) {
	return c.Profiles().Get(ctx, id)
}

// Wallet returns the signed-in user's wallet. The server only serves
// the caller's own wallet, so userID is informational.
func (c *Client) Wallet(ctx context.Context, _ string) (*models.Wallet, error) {
	var w models.Wallet
	if err := c.Call(ctx, "wallets.get", nil, &w); err != nil {
		return nil, err
	}
	return &w, nil
}

func (c *Client) Subscription(ctx context.Context, _ string) (*models.Subscription, error) {
	var s *models.Subscription
	if err := c.Call(ctx, "subscriptions.current", nil, &s); err != nil {
		return nil, err
	}
	return s, nil
}

func (c *Client) FollowingIDs(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := c.Call(ctx, "follows.following", api.UserPageParams{UserID: userID}, &ids)
	return ids, err
}

func (c *Client) UpdateProfile(ctx context.Context, u db.ProfileUpdate) (*models.Profile, error) {
	var p models.Profile
	if err := c.Call(ctx, "profiles.update", u, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) Transactions(ctx context.Context, offset, limit int) ([]models.WalletTransaction, error) {
	var rows []models.WalletTransaction
	err := c.Call(ctx, "wallets.transactions", api.UserPageParams{Offset: offset, Limit: limit}, &rows)
	return rows, err
}

func (c *Client) MarkNotificationsRead(ctx context.Context) (int64, error) {
	var out struct {
		Updated int64 `json:"updated"`
	}
	err := c.Call(ctx, "notifications.mark_read", nil, &out)
	return out.Updated, err
}

// AttendingIDs returns which of eventIDs the signed-in user attends
func (c *Client) AttendingIDs(ctx context.Context, eventIDs []string) ([]string, error) {
	var ids []string
	err := c.Call(ctx, "events.attending", api.AttendingParams{EventIDs: eventIDs}, &ids)
	return ids, err
}

func (c *Client) EscrowForPost(ctx context.Context, postID string) (*models.Escrow, error) {
	var e *models.Escrow
	if err := c.Call(ctx, "escrows.for_post", api.PostParams{PostID: postID}, &e); err != nil {
		return nil, err
	}
	return e, nil
}

func (c *Client) DeliverableCount(ctx context.Context, postID string) (int64, error) {
	var out struct {
		Count int64 `json:"count"`
	}
	err := c.Call(ctx, "collab_deliverables.count", api.PostParams{PostID: postID}, &out)
	return out.Count, err
}
