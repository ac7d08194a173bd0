package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"tenantplane/internal/audit"
	identitydomain "tenantplane/internal/identity/domain"
	membershipdomain "tenantplane/internal/membership/domain"
	"tenantplane/internal/security"
	sessiondomain "tenantplane/internal/session/domain"
)

// Sentinel errors for the auth service; the handler maps them to HTTP statuses.
var (
	ErrEmailAlreadyRegistered = errors.New("email already registered")
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrSessionNotFound        = errors.New("session not found or expired")
	ErrNotTenantMember        = errors.New("user is not a member of the tenant")
)

// UserRepo is the minimal user repository needed by the auth service.
type UserRepo interface {
	GetByID(ctx context.Context, id string) (*identitydomain.User, error)
	GetByEmail(ctx context.Context, email string) (*identitydomain.User, error)
	Create(ctx context.Context, u *identitydomain.User) error
}

// SessionRepo is the minimal session repository needed by the auth service.
type SessionRepo interface {
	GetByID(ctx context.Context, id string) (*sessiondomain.Session, error)
	Create(ctx context.Context, s *sessiondomain.Session) error
	Revoke(ctx context.Context, id string) error
	RevokeAllByUser(ctx context.Context, userID string) error
	SetActiveTenant(ctx context.Context, id, tenantID string) error
}

// MembershipRepo is the minimal membership repository needed by the auth service.
type MembershipRepo interface {
	GetByUserAndTenant(ctx context.Context, userID, tenantID string) (*membershipdomain.Membership, error)
	ListByUser(ctx context.Context, userID string) ([]*membershipdomain.Membership, error)
}

// AuthResult holds the outcome of Register (UserID only) or Login.
type AuthResult struct {
	Token          string
	ExpiresAt      time.Time
	UserID         string
	SessionID      string
	ActiveTenantID string
}

// AuthService implements password register, login, logout, and active-tenant
// switching. The session row, not the token, carries the active tenant, so
// switching tenants never requires reissuing the token.
type AuthService struct {
	users       UserRepo
	sessions    SessionRepo
	memberships MembershipRepo
	hasher      *security.Hasher
	tokens      *security.TokenProvider
	sessionTTL  time.Duration
	audit       audit.Emitter
}

// NewAuthService returns an AuthService with the given dependencies.
// auditLogger may be nil.
func NewAuthService(
	users UserRepo,
	sessions SessionRepo,
	memberships MembershipRepo,
	hasher *security.Hasher,
	tokens *security.TokenProvider,
	sessionTTL time.Duration,
	auditLogger audit.Emitter,
) *AuthService {
	return &AuthService{
		users:       users,
		sessions:    sessions,
		memberships: memberships,
		hasher:      hasher,
		tokens:      tokens,
		sessionTTL:  sessionTTL,
		audit:       auditLogger,
	}
}

// Register creates a user with the given email and password. It returns the
// UserID only; the caller must Login to obtain a session token.
func (s *AuthService) Register(ctx context.Context, email, password, name string) (*AuthResult, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}
	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailAlreadyRegistered
	}
	hashed, err := s.hasher.Hash([]byte(password))
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	user := &identitydomain.User{
		ID:           uuid.New().String(),
		Email:        email,
		Name:         strings.TrimSpace(name),
		PasswordHash: hashed,
		Status:       identitydomain.UserStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := user.Validate(); err != nil {
		return nil, err
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return &AuthResult{UserID: user.ID}, nil
}

// Login authenticates with email/password, creates a session, and returns a
// session token. When the user belongs to exactly one tenant it becomes the
// session's active tenant; otherwise the client picks one after login.
func (s *AuthService) Login(ctx context.Context, email, password, ip string) (*AuthResult, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil || user.Status != identitydomain.UserStatusActive {
		return nil, ErrInvalidCredentials
	}
	if err := s.hasher.Compare(user.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	activeTenantID := ""
	memberships, err := s.memberships.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if len(memberships) == 1 {
		activeTenantID = memberships[0].TenantID
	}

	now := time.Now().UTC()
	sess := &sessiondomain.Session{
		ID:             uuid.New().String(),
		UserID:         user.ID,
		ActiveTenantID: activeTenantID,
		ExpiresAt:      now.Add(s.sessionTTL),
		IPAddress:      ip,
		CreatedAt:      now,
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, err
	}
	token, expiresAt, err := s.tokens.IssueSession(sess.ID, user.ID)
	if err != nil {
		return nil, err
	}
	return &AuthResult{
		Token:          token,
		ExpiresAt:      expiresAt,
		UserID:         user.ID,
		SessionID:      sess.ID,
		ActiveTenantID: activeTenantID,
	}, nil
}

// Logout revokes the session. A missing session is treated as already
// logged out.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	return s.sessions.Revoke(ctx, sessionID)
}

// LogoutAll revokes every session of the user.
func (s *AuthService) LogoutAll(ctx context.Context, userID string) error {
	return s.sessions.RevokeAllByUser(ctx, userID)
}

// SetActiveTenant switches the session's active tenant after verifying the
// user actually belongs to it. Membership is checked here so a client can
// never point its session at a tenant it has no standing in.
func (s *AuthService) SetActiveTenant(ctx context.Context, sessionID, userID, tenantID string) error {
	if tenantID == "" {
		return ErrNotTenantMember
	}
	m, err := s.memberships.GetByUserAndTenant(ctx, userID, tenantID)
	if err != nil {
		return err
	}
	if m == nil {
		return ErrNotTenantMember
	}
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess == nil || !sess.Usable(time.Now().UTC()) {
		return ErrSessionNotFound
	}
	if err := s.sessions.SetActiveTenant(ctx, sessionID, tenantID); err != nil {
		return err
	}
	if s.audit != nil {
		s.audit.LogEvent(ctx, tenantID, userID, "session.tenant_switched", "sessions", sessionID,
			fmt.Sprintf(`{"tenant_id":%q}`, tenantID))
	}
	return nil
}

func validateEmail(email string) error {
	if email == "" {
		return errors.New("email is required")
	}
	const simpleEmail = `^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`
	ok, _ := regexp.MatchString(simpleEmail, email)
	if !ok {
		return errors.New("invalid email format")
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < 8 {
		return errors.New("password must be at least 8 characters")
	}
	return nil
}
