package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	identitydomain "tenantplane/internal/identity/domain"
	"tenantplane/internal/platform/logger"
	"tenantplane/internal/security"
)

// ErrInvalidToken covers missing, expired, and already-consumed account
// tokens; callers get no more detail than that.
var ErrInvalidToken = errors.New("token invalid or expired")

const (
	passwordResetTTL     = time.Hour
	emailVerificationTTL = 24 * time.Hour
)

// RecoveryUserRepo is the user access the recovery service needs.
type RecoveryUserRepo interface {
	GetByID(ctx context.Context, id string) (*identitydomain.User, error)
	GetByEmail(ctx context.Context, email string) (*identitydomain.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	MarkEmailVerified(ctx context.Context, id string, at time.Time) error
}

// TokenRepo is the token persistence the recovery service needs.
type TokenRepo interface {
	CreateToken(ctx context.Context, t *identitydomain.AuthToken) error
	GetToken(ctx context.Context, token string, purpose identitydomain.TokenPurpose) (*identitydomain.AuthToken, error)
	DeleteToken(ctx context.Context, token string) error
	DeleteTokensByUser(ctx context.Context, userID string, purpose identitydomain.TokenPurpose) error
}

// SessionRevoker revokes sessions after a password change.
type SessionRevoker interface {
	RevokeAllByUser(ctx context.Context, userID string) error
}

// Notifier delivers account tokens to the user out of band.
type Notifier interface {
	SendPasswordReset(ctx context.Context, email, token string)
	SendEmailVerification(ctx context.Context, email, token string)
}

// LogNotifier is the development Notifier. It logs that a delivery would
// happen without logging the token itself.
type LogNotifier struct{}

func (LogNotifier) SendPasswordReset(ctx context.Context, email, token string) {
	logger.L().Info("password reset token issued", zap.String("email", email))
}

func (LogNotifier) SendEmailVerification(ctx context.Context, email, token string) {
	logger.L().Info("email verification token issued", zap.String("email", email))
}

// RecoveryService implements password reset and email verification. Both
// flows hand the user a random single-use token out of band and redeem it
// against the auth_tokens table.
type RecoveryService struct {
	users    RecoveryUserRepo
	tokens   TokenRepo
	sessions SessionRevoker
	hasher   *security.Hasher
	notifier Notifier
}

// NewRecoveryService returns a RecoveryService. notifier may be nil, in
// which case tokens are issued but not delivered anywhere.
func NewRecoveryService(
	users RecoveryUserRepo,
	tokens TokenRepo,
	sessions SessionRevoker,
	hasher *security.Hasher,
	notifier Notifier,
) *RecoveryService {
	return &RecoveryService{
		users:    users,
		tokens:   tokens,
		sessions: sessions,
		hasher:   hasher,
		notifier: notifier,
	}
}

// RequestPasswordReset issues a reset token for the account, invalidating
// any earlier one. Unknown emails succeed silently so the endpoint cannot
// be used to enumerate which addresses have accounts.
func (s *RecoveryService) RequestPasswordReset(ctx context.Context, email string) error {
	email = strings.TrimSpace(strings.ToLower(email))
	if err := validateEmail(email); err != nil {
		return err
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil || user.Status != identitydomain.UserStatusActive {
		return nil
	}
	token, err := s.issue(ctx, user.ID, identitydomain.TokenPasswordReset, passwordResetTTL)
	if err != nil {
		return err
	}
	if s.notifier != nil {
		s.notifier.SendPasswordReset(ctx, user.Email, token)
	}
	return nil
}

// VerifyResetToken reports whether a reset token is currently redeemable,
// without consuming it. Reset pages call this before showing the form.
func (s *RecoveryService) VerifyResetToken(ctx context.Context, token string) error {
	_, err := s.redeemable(ctx, token, identitydomain.TokenPasswordReset)
	return err
}

// ResetPassword redeems the token, replaces the password, and revokes every
// session of the user. The token is single use.
func (s *RecoveryService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	t, err := s.redeemable(ctx, token, identitydomain.TokenPasswordReset)
	if err != nil {
		return err
	}
	hashed, err := s.hasher.Hash([]byte(newPassword))
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, t.UserID, hashed); err != nil {
		return err
	}
	if err := s.tokens.DeleteToken(ctx, t.Token); err != nil {
		return err
	}
	// A reset usually means the old credential leaked; nothing issued
	// under it stays valid.
	return s.sessions.RevokeAllByUser(ctx, t.UserID)
}

// RequestEmailVerification issues a fresh verification token for the
// account. Like RequestPasswordReset, unknown emails succeed silently.
func (s *RecoveryService) RequestEmailVerification(ctx context.Context, email string) error {
	email = strings.TrimSpace(strings.ToLower(email))
	if err := validateEmail(email); err != nil {
		return err
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil || user.Status != identitydomain.UserStatusActive || user.EmailVerifiedAt != nil {
		return nil
	}
	token, err := s.issue(ctx, user.ID, identitydomain.TokenEmailVerification, emailVerificationTTL)
	if err != nil {
		return err
	}
	if s.notifier != nil {
		s.notifier.SendEmailVerification(ctx, user.Email, token)
	}
	return nil
}

// VerifyEmail redeems a verification token and marks the user's email
// verified. The token is single use.
func (s *RecoveryService) VerifyEmail(ctx context.Context, token string) error {
	t, err := s.redeemable(ctx, token, identitydomain.TokenEmailVerification)
	if err != nil {
		return err
	}
	if err := s.users.MarkEmailVerified(ctx, t.UserID, time.Now().UTC()); err != nil {
		return err
	}
	return s.tokens.DeleteToken(ctx, t.Token)
}

func (s *RecoveryService) issue(ctx context.Context, userID string, purpose identitydomain.TokenPurpose, ttl time.Duration) (string, error) {
	if err := s.tokens.DeleteTokensByUser(ctx, userID, purpose); err != nil {
		return "", err
	}
	token, err := generateAccountToken()
	if err != nil {
		return "", err
	}
	now := time.Now().UTC()
	err = s.tokens.CreateToken(ctx, &identitydomain.AuthToken{
		Token:     token,
		UserID:    userID,
		Purpose:   purpose,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	})
	if err != nil {
		return "", err
	}
	return token, nil
}

func (s *RecoveryService) redeemable(ctx context.Context, token string, purpose identitydomain.TokenPurpose) (*identitydomain.AuthToken, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	t, err := s.tokens.GetToken(ctx, token, purpose)
	if err != nil {
		return nil, err
	}
	if t == nil || !t.Usable(time.Now().UTC()) {
		return nil, ErrInvalidToken
	}
	return t, nil
}

func generateAccountToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
