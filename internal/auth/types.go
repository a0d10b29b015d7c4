// Package auth signs users up and in, issues and verifies tokens, runs
// password recovery, and keeps the client-side session with its stream
// of sign-in, sign-out and recovery events.
package auth

import (
	"context"
	"time"
)

// User identifies a signed-in account
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Session is an authenticated session
type Session struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	User        User      `json:"user"`
}

// SignUpParams is what a new account provides
type SignUpParams struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	College  string `json:"college,omitempty"`
	Role     string `json:"role,omitempty"`
}

// Authenticator is the auth surface of the backend. Service implements
// it in-process; rpcclient implements it over the network.
type Authenticator interface {
	SignUp(ctx context.Context, p SignUpParams) (*Session, error)
	SignIn(ctx context.Context, email, password string) (*Session, error)
	SignOut(ctx context.Context, token string) error
	CurrentUser(ctx context.Context, token string) (*User, error)
	RequestRecovery(ctx context.Context, email string) error
	ExchangeRecovery(ctx context.Context, recoveryToken string) (*Session, error)
	UpdatePassword(ctx context.Context, token, password string) error
}
