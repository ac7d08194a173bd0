package service

import (
	"context"
	"errors"
	"testing"
	"time"

	identitydomain "tenantplane/internal/identity/domain"
	membershipdomain "tenantplane/internal/membership/domain"
	"tenantplane/internal/security"
	sessiondomain "tenantplane/internal/session/domain"
)

type mockUserRepo struct {
	byEmail map[string]*identitydomain.User
	created []*identitydomain.User
}

func (m *mockUserRepo) GetByID(ctx context.Context, id string) (*identitydomain.User, error) {
	for _, u := range m.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, nil
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*identitydomain.User, error) {
	return m.byEmail[email], nil
}

func (m *mockUserRepo) Create(ctx context.Context, u *identitydomain.User) error {
	if m.byEmail == nil {
		m.byEmail = make(map[string]*identitydomain.User)
	}
	m.byEmail[u.Email] = u
	m.created = append(m.created, u)
	return nil
}

type mockSessionRepo struct {
	sessions     map[string]*sessiondomain.Session
	revoked      []string
	revokedUsers []string
}

func newMockSessionRepo() *mockSessionRepo {
	return &mockSessionRepo{sessions: make(map[string]*sessiondomain.Session)}
}

func (m *mockSessionRepo) GetByID(ctx context.Context, id string) (*sessiondomain.Session, error) {
	return m.sessions[id], nil
}

func (m *mockSessionRepo) Create(ctx context.Context, s *sessiondomain.Session) error {
	m.sessions[s.ID] = s
	return nil
}

func (m *mockSessionRepo) Revoke(ctx context.Context, id string) error {
	m.revoked = append(m.revoked, id)
	return nil
}

func (m *mockSessionRepo) RevokeAllByUser(ctx context.Context, userID string) error {
	m.revokedUsers = append(m.revokedUsers, userID)
	return nil
}

func (m *mockSessionRepo) SetActiveTenant(ctx context.Context, id, tenantID string) error {
	if s := m.sessions[id]; s != nil {
		s.ActiveTenantID = tenantID
	}
	return nil
}

type mockMemberships struct {
	list map[string][]*membershipdomain.Membership // by user
}

func (m *mockMemberships) GetByUserAndTenant(ctx context.Context, userID, tenantID string) (*membershipdomain.Membership, error) {
	for _, mm := range m.list[userID] {
		if mm.TenantID == tenantID {
			return mm, nil
		}
	}
	return nil, nil
}

func (m *mockMemberships) ListByUser(ctx context.Context, userID string) ([]*membershipdomain.Membership, error) {
	return m.list[userID], nil
}

func newTestAuthService(users *mockUserRepo, sessions *mockSessionRepo, memberships *mockMemberships) *AuthService {
	hasher := security.NewHasher(4)
	tokens := security.NewTokenProvider([]byte("0123456789abcdef0123456789abcdef"), "tenantplane", "tenantplane", time.Hour)
	return NewAuthService(users, sessions, memberships, hasher, tokens, time.Hour, nil)
}

func TestAuthService_RegisterAndLogin(t *testing.T) {
	users := &mockUserRepo{}
	sessions := newMockSessionRepo()
	svc := newTestAuthService(users, sessions, &mockMemberships{})

	res, err := svc.Register(context.Background(), "  Alice@Example.COM ", "s3cret-pass", "Alice")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if res.UserID == "" {
		t.Fatal("Register must return a user id")
	}
	if res.Token != "" {
		t.Error("Register must not issue a token")
	}
	if got := users.created[0].Email; got != "alice@example.com" {
		t.Errorf("stored email = %q, want normalized %q", got, "alice@example.com")
	}

	login, err := svc.Login(context.Background(), "alice@example.com", "s3cret-pass", "10.0.0.1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if login.Token == "" {
		t.Fatal("Login must issue a token")
	}
	sess := sessions.sessions[login.SessionID]
	if sess == nil {
		t.Fatal("Login must create a session row")
	}
	if sess.IPAddress != "10.0.0.1" {
		t.Errorf("session ip = %q, want 10.0.0.1", sess.IPAddress)
	}
	if login.ActiveTenantID != "" {
		t.Errorf("active tenant = %q, want empty for user with no memberships", login.ActiveTenantID)
	}
}

func TestAuthService_Register_DuplicateEmail(t *testing.T) {
	users := &mockUserRepo{byEmail: map[string]*identitydomain.User{
		"alice@example.com": {ID: "u-1", Email: "alice@example.com", Status: identitydomain.UserStatusActive},
	}}
	svc := newTestAuthService(users, newMockSessionRepo(), &mockMemberships{})

	if _, err := svc.Register(context.Background(), "alice@example.com", "s3cret-pass", "Alice"); !errors.Is(err, ErrEmailAlreadyRegistered) {
		t.Fatalf("err = %v, want ErrEmailAlreadyRegistered", err)
	}
}

func TestAuthService_Login_WrongPassword(t *testing.T) {
	users := &mockUserRepo{}
	sessions := newMockSessionRepo()
	svc := newTestAuthService(users, sessions, &mockMemberships{})
	if _, err := svc.Register(context.Background(), "a@b.com", "s3cret-pass", "A"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, err := svc.Login(context.Background(), "a@b.com", "wrong-pass", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
	if len(sessions.sessions) != 0 {
		t.Error("failed login must not create a session")
	}
}

func TestAuthService_Login_UnknownOrDisabledUser(t *testing.T) {
	users := &mockUserRepo{byEmail: map[string]*identitydomain.User{
		"off@b.com": {ID: "u-2", Email: "off@b.com", Status: identitydomain.UserStatusDisabled, PasswordHash: "x"},
	}}
	svc := newTestAuthService(users, newMockSessionRepo(), &mockMemberships{})

	if _, err := svc.Login(context.Background(), "nobody@b.com", "whatever1", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown user: err = %v, want ErrInvalidCredentials", err)
	}
	if _, err := svc.Login(context.Background(), "off@b.com", "whatever1", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("disabled user: err = %v, want ErrInvalidCredentials", err)
	}
}

func TestAuthService_Login_AutoSelectsSoleTenant(t *testing.T) {
	users := &mockUserRepo{}
	sessions := newMockSessionRepo()
	memberships := &mockMemberships{list: map[string][]*membershipdomain.Membership{}}
	svc := newTestAuthService(users, sessions, memberships)

	reg, err := svc.Register(context.Background(), "a@b.com", "s3cret-pass", "A")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	memberships.list[reg.UserID] = []*membershipdomain.Membership{
		{ID: "m-1", UserID: reg.UserID, TenantID: "t-acme", Role: membershipdomain.RoleOwner},
	}

	login, err := svc.Login(context.Background(), "a@b.com", "s3cret-pass", "")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if login.ActiveTenantID != "t-acme" {
		t.Errorf("active tenant = %q, want t-acme auto-selected", login.ActiveTenantID)
	}

	// Two memberships: no auto-selection.
	memberships.list[reg.UserID] = append(memberships.list[reg.UserID],
		&membershipdomain.Membership{ID: "m-2", UserID: reg.UserID, TenantID: "t-other", Role: membershipdomain.RoleViewer})
	login2, err := svc.Login(context.Background(), "a@b.com", "s3cret-pass", "")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if login2.ActiveTenantID != "" {
		t.Errorf("active tenant = %q, want empty when user has several tenants", login2.ActiveTenantID)
	}
}

func TestAuthService_SetActiveTenant(t *testing.T) {
	users := &mockUserRepo{}
	sessions := newMockSessionRepo()
	memberships := &mockMemberships{list: map[string][]*membershipdomain.Membership{
		"u-1": {{ID: "m-1", UserID: "u-1", TenantID: "t-acme", Role: membershipdomain.RoleMember}},
	}}
	svc := newTestAuthService(users, sessions, memberships)
	sessions.sessions["s-1"] = &sessiondomain.Session{
		ID: "s-1", UserID: "u-1", ExpiresAt: time.Now().UTC().Add(time.Hour),
	}

	if err := svc.SetActiveTenant(context.Background(), "s-1", "u-1", "t-acme"); err != nil {
		t.Fatalf("SetActiveTenant: %v", err)
	}
	if got := sessions.sessions["s-1"].ActiveTenantID; got != "t-acme" {
		t.Errorf("session active tenant = %q, want t-acme", got)
	}

	// Not a member of the requested tenant.
	if err := svc.SetActiveTenant(context.Background(), "s-1", "u-1", "t-techstart"); !errors.Is(err, ErrNotTenantMember) {
		t.Errorf("err = %v, want ErrNotTenantMember", err)
	}
	if got := sessions.sessions["s-1"].ActiveTenantID; got != "t-acme" {
		t.Errorf("active tenant changed to %q on rejected switch", got)
	}
}

func TestAuthService_SetActiveTenant_ExpiredSession(t *testing.T) {
	sessions := newMockSessionRepo()
	memberships := &mockMemberships{list: map[string][]*membershipdomain.Membership{
		"u-1": {{ID: "m-1", UserID: "u-1", TenantID: "t-acme", Role: membershipdomain.RoleMember}},
	}}
	svc := newTestAuthService(&mockUserRepo{}, sessions, memberships)
	sessions.sessions["s-old"] = &sessiondomain.Session{
		ID: "s-old", UserID: "u-1", ExpiresAt: time.Now().UTC().Add(-time.Minute),
	}

	if err := svc.SetActiveTenant(context.Background(), "s-old", "u-1", "t-acme"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestAuthService_Logout(t *testing.T) {
	sessions := newMockSessionRepo()
	svc := newTestAuthService(&mockUserRepo{}, sessions, &mockMemberships{})

	if err := svc.Logout(context.Background(), "s-1"); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if len(sessions.revoked) != 1 || sessions.revoked[0] != "s-1" {
		t.Errorf("revoked = %v, want [s-1]", sessions.revoked)
	}
	if err := svc.Logout(context.Background(), ""); err != nil {
		t.Fatalf("Logout with empty id: %v", err)
	}
	if err := svc.LogoutAll(context.Background(), "u-1"); err != nil {
		t.Fatalf("LogoutAll: %v", err)
	}
	if len(sessions.revokedUsers) != 1 || sessions.revokedUsers[0] != "u-1" {
		t.Errorf("revokedUsers = %v, want [u-1]", sessions.revokedUsers)
	}
}
