package auth

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/vibecampus/vibehub/internal/apperr"
	"github.com/vibecampus/vibehub/internal/db"
	"github.com/vibecampus/vibehub/internal/models"
	"github.com/vibecampus/vibehub/internal/realtime"
	"github.com/vibecampus/vibehub/pkg/config"
	"github.com/vibecampus/vibehub/pkg/logging"
)

var errBadCredentials = apperr.Unauthorized("Invalid email or password")

// RecoveryMailer delivers password recovery tokens
type RecoveryMailer interface {
	SendRecovery(ctx context.Context, email, token string) error
}

// LogMailer writes recovery tokens to the log. It stands in for a mail
// provider in development.
type LogMailer struct{}

func (LogMailer) SendRecovery(_ context.Context, email, token string) error {
	logging.GetLogger().Info("Password recovery requested",
		zap.String("component", "auth"),
		zap.String("email", email),
		zap.String("token", token))
	return nil
}

// Service is the server side of authentication
type Service struct {
	repo        *db.Repository
	secret      string
	tokenTTL    time.Duration
	recoveryTTL time.Duration
	mailer      RecoveryMailer
	logger      *zap.Logger
}

// NewService creates an auth service. A nil mailer logs recovery tokens.
func NewService(repo *db.Repository, cfg *config.AuthConfig, mailer RecoveryMailer) *Service {
	if mailer == nil {
		mailer = LogMailer{}
	}
	tokenTTL := cfg.TokenTTL
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	recoveryTTL := cfg.RecoveryTTL
	if recoveryTTL <= 0 {
		recoveryTTL = time.Hour
	}
	return &Service{
		repo:        repo,
		secret:      cfg.JWTSecret,
		tokenTTL:    tokenTTL,
		recoveryTTL: recoveryTTL,
		mailer:      mailer,
		logger:      logging.GetLogger().With(zap.String("component", "auth")),
	}
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", apperr.InvalidField("email", "Enter a valid email address")
	}
	return email, nil
}

func (s *Service) issue(account *models.Account) (*Session, error) {
	token, expires, err := GenerateToken(account.ID, account.Email, PurposeSession, "", s.secret, s.tokenTTL)
	if err != nil {
		return nil, err
	}
	return &Session{
		AccessToken: token,
		ExpiresAt:   expires,
		User:        User{ID: account.ID, Email: account.Email},
	}, nil
}

// SignUp creates the account with its profile and empty wallet
func (s *Service) SignUp(ctx context.Context, p SignUpParams) (*Session, error) {
	email, err := normalizeEmail(p.Email)
	if err != nil {
		return nil, err
	}
	if len(p.Password) < MinPasswordLength {
		return nil, apperr.InvalidField("password", "Password must be at least 8 characters")
	}
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return nil, apperr.InvalidField("name", "Name is required")
	}
	role := p.Role
	switch role {
	case "":
		role = models.RoleStudent
	case models.RoleStudent, models.RoleFaculty, models.RoleParent, models.RoleVeteran:
	default:
		return nil, apperr.InvalidField("role", "Choose student, faculty, parent or veteran")
	}

	hash, err := HashPassword(p.Password)
	if err != nil {
		return nil, err
	}

	account := &models.Account{ID: uuid.NewString(), Email: email, PasswordHash: hash}
	profile := &models.Profile{ID: account.ID, Name: name, Role: role}
	if college := strings.TrimSpace(p.College); college != "" {
		profile.College = &college
	}
	wallet := &models.Wallet{UserID: account.ID}

	err = s.repo.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&models.Account{}).Where("email = ?", email).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return apperr.AlreadyExists("An account with this email already exists")
		}
		if err := tx.Create(account).Error; err != nil {
			return err
		}
		if err := tx.Create(profile).Error; err != nil {
			return err
		}
		return tx.Create(wallet).Error
	})
	if err != nil {
		return nil, err
	}

	s.repo.Publish(ctx, profile.TableName(), realtime.EventInsert, profile, nil)
	s.repo.Publish(ctx, wallet.TableName(), realtime.EventInsert, wallet, nil)
	s.logger.Info("Account created", zap.String("user_id", account.ID))
	return s.issue(account)
}

func (s *Service) accountByEmail(ctx context.Context, email string) (*models.Account, error) {
	var account models.Account
	if err := s.repo.DB().WithContext(ctx).Where("email = ?", email).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

func (s *Service) accountByID(ctx context.Context, id string) (*models.Account, error) {
	var account models.Account
	if err := s.repo.DB().WithContext(ctx).Where("id = ?", id).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

// SignIn checks credentials and issues a session
func (s *Service) SignIn(ctx context.Context, email, password string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	account, err := s.accountByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if account == nil || !CheckPassword(account.PasswordHash, password) {
		return nil, errBadCredentials
	}
	return s.issue(account)
}

// SignOut ends a session. Tokens are stateless, so there is nothing to revoke.
func (s *Service) SignOut(_ context.Context, _ string) error {
	return nil
}

// Verify parses a session token and returns its claims
func (s *Service) Verify(token string) (*Claims, error) {
	claims, err := ParseToken(token, s.secret)
	if err != nil || claims.Purpose != PurposeSession {
		return nil, apperr.Unauthorized("Your session has expired. Please sign in again.")
	}
	return claims, nil
}

// CurrentUser resolves the account behind token
func (s *Service) CurrentUser(ctx context.Context, token string) (*User, error) {
	claims, err := s.Verify(token)
	if err != nil {
		return nil, err
	}
	account, err := s.accountByID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, apperr.Unauthorized("Your session has expired. Please sign in again.")
	}
	return &User{ID: account.ID, Email: account.Email}, nil
}

// RequestRecovery mails a single-use recovery token. Unknown addresses
// succeed silently so the endpoint cannot be used to probe for accounts.
func (s *Service) RequestRecovery(ctx context.Context, email string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	account, err := s.accountByEmail(ctx, email)
	if err != nil {
		return err
	}
	if account == nil {
		return nil
	}

	nonce := uuid.NewString()
	if err := s.repo.DB().WithContext(ctx).Model(&models.Account{}).
		Where("id = ?", account.ID).
		Update("recovery_nonce", nonce).Error; err != nil {
		return err
	}
	token, _, err := GenerateToken(account.ID, account.Email, PurposeRecovery, nonce, s.secret, s.recoveryTTL)
	if err != nil {
		return err
	}
	return s.mailer.SendRecovery(ctx, account.Email, token)
}

// ExchangeRecovery trades a recovery token for a session. Each token
// works once.
func (s *Service) ExchangeRecovery(ctx context.Context, recoveryToken string) (*Session, error) {
	invalid := apperr.Unauthorized("This recovery link is invalid or has expired")
	claims, err := ParseToken(recoveryToken, s.secret)
	if err != nil || claims.Purpose != PurposeRecovery || claims.ID == "" {
		return nil, invalid
	}

	res := s.repo.DB().WithContext(ctx).Model(&models.Account{}).
		Where("id = ? AND recovery_nonce = ?", claims.UserID, claims.ID).
		Update("recovery_nonce", "")
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, invalid
	}

	account, err := s.accountByID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, invalid
	}
	return s.issue(account)
}

// UpdatePassword sets a new password for the session's account
func (s *Service) UpdatePassword(ctx context.Context, token, password string) error {
	claims, err := s.Verify(token)
	if err != nil {
		return err
	}
	if len(password) < MinPasswordLength {
		return apperr.InvalidField("password", "Password must be at least 8 characters")
	}
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	return s.repo.DB().WithContext(ctx).Model(&models.Account{}).
		Where("id = ?", claims.UserID).
		Update("password_hash", hash).Error
}
