package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vibecampus/vibehub/internal/apperr"
	"github.com/vibecampus/vibehub/internal/db"
	"github.com/vibecampus/vibehub/internal/models"
	"github.com/vibecampus/vibehub/pkg/config"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type captureMailer struct {
	mu     sync.Mutex
	tokens map[string]string
}

func (m *captureMailer) SendRecovery(_ context.Context, email, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tokens == nil {
		m.tokens = map[string]string{}
	}
	m.tokens[email] = token
	return nil
}

func (m *captureMailer) token(email string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokens[email]
}

func newTestService(t *testing.T) (*Service, *db.DB, *captureMailer) {
	t.Helper()
	d, err := db.NewMemory(t.Name())
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })

	mailer := &captureMailer{}
	svc := NewService(db.NewRepository(d.DB, nil), &config.AuthConfig{
		JWTSecret:   testSecret,
		TokenTTL:    time.Hour,
		RecoveryTTL: time.Minute,
	}, mailer)
	return svc, d, mailer
}

func TestSignUpAndSignIn(t *testing.T) {
	svc, d, _ := newTestService(t)
	ctx := context.Background()

	s, err := svc.SignUp(ctx, SignUpParams{Email: " Ada@Example.edu ", Password: "correct horse", Name: "Ada", College: "MIT"})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.edu", s.User.Email)
	assert.NotEmpty(t, s.AccessToken)

	var profile models.Profile
	require.NoError(t, d.Where("id = ?", s.User.ID).First(&profile).Error)
	assert.Equal(t, "MIT", profile.CollegeName())
	assert.Equal(t, models.RoleStudent, profile.Role)

	var wallet models.Wallet
	require.NoError(t, d.Where("user_id = ?", s.User.ID).First(&wallet).Error)
	assert.Zero(t, wallet.Balance)

	_, err = svc.SignUp(ctx, SignUpParams{Email: "ada@example.edu", Password: "another one", Name: "Ada"})
	assert.Equal(t, apperr.CodeAlreadyExists, apperr.CodeOf(err))

	signedIn, err := svc.SignIn(ctx, "ADA@example.edu", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, s.User.ID, signedIn.User.ID)

	_, err = svc.SignIn(ctx, "ada@example.edu", "wrong password")
	assert.Equal(t, "Invalid email or password", apperr.Message(err))
	_, err = svc.SignIn(ctx, "nobody@example.edu", "whatever1")
	assert.Equal(t, "Invalid email or password", apperr.Message(err))

	user, err := svc.CurrentUser(ctx, signedIn.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, s.User.ID, user.ID)
}

func TestSignUpValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		p     SignUpParams
		field string
	}{
		{"bad email", SignUpParams{Email: "not-an-email", Password: "longenough", Name: "A"}, "email"},
		{"short password", SignUpParams{Email: "a@b.edu", Password: "short", Name: "A"}, "password"},
		{"missing name", SignUpParams{Email: "a@b.edu", Password: "longenough"}, "name"},
		{"unknown role", SignUpParams{Email: "a@b.edu", Password: "longenough", Name: "A", Role: "wizard"}, "role"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SignUp(ctx, tt.p)
			assert.Equal(t, tt.field, apperr.FieldOf(err))
		})
	}
}

func TestVerifyRejectsForeignTokens(t *testing.T) {
	svc, _, _ := newTestService(t)

	other, _, err := GenerateToken("u1", "a@b.edu", PurposeSession, "", "a-different-secret-of-enough-length", time.Hour)
	require.NoError(t, err)
	_, err = svc.Verify(other)
	assert.Equal(t, apperr.CodeUnauthenticated, apperr.CodeOf(err))

	expired, _, err := GenerateToken("u1", "a@b.edu", PurposeSession, "", testSecret, -time.Minute)
	require.NoError(t, err)
	_, err = svc.Verify(expired)
	assert.Error(t, err)

	recovery, _, err := GenerateToken("u1", "a@b.edu", PurposeRecovery, "n", testSecret, time.Hour)
	require.NoError(t, err)
	_, err = svc.Verify(recovery)
	assert.Error(t, err, "recovery tokens are not sessions")
}

func TestPasswordRecovery(t *testing.T) {
	svc, _, mailer := newTestService(t)
	ctx := context.Background()

	_, err := svc.SignUp(ctx, SignUpParams{Email: "grace@example.edu", Password: "old password", Name: "Grace"})
	require.NoError(t, err)

	require.NoError(t, svc.RequestRecovery(ctx, "nobody@example.edu"))
	assert.Empty(t, mailer.token("nobody@example.edu"))

	require.NoError(t, svc.RequestRecovery(ctx, "grace@example.edu"))
	token := mailer.token("grace@example.edu")
	require.NotEmpty(t, token)

	s, err := svc.ExchangeRecovery(ctx, token)
	require.NoError(t, err)

	_, err = svc.ExchangeRecovery(ctx, token)
	assert.Equal(t, apperr.CodeUnauthenticated, apperr.CodeOf(err), "single use")

	require.NoError(t, svc.UpdatePassword(ctx, s.AccessToken, "new password"))
	_, err = svc.SignIn(ctx, "grace@example.edu", "old password")
	assert.Error(t, err)
	_, err = svc.SignIn(ctx, "grace@example.edu", "new password")
	assert.NoError(t, err)
}
