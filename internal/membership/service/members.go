package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"tenantplane/internal/audit"
	"tenantplane/internal/membership/domain"
	membershiprepo "tenantplane/internal/membership/repository"
	"tenantplane/internal/platform/tenantctx"
)

// Sentinel errors for member management; handlers map them to HTTP statuses.
var (
	ErrAlreadyMember           = errors.New("user is already a member of this tenant")
	ErrInvalidRole             = errors.New("unknown role")
	ErrInvalidInvitation       = errors.New("invitation not found or already used")
	ErrInvitationExpired       = errors.New("invitation has expired")
	ErrInvitationEmailMismatch = errors.New("invitation was issued to a different email")
	ErrLastOwner               = errors.New("a tenant must keep at least one owner")
	ErrMemberNotFound          = errors.New("member not found in this tenant")
)

const invitationTTL = 7 * 24 * time.Hour

// Members manages a tenant's memberships and invitations. Every operation
// reads the active tenant from the bound tenant context; the gate has
// already verified the caller's role.
type Members struct {
	repo  membershiprepo.Repository
	audit audit.Emitter
}

// NewMembers returns a Members service over the given repository.
// auditLogger may be nil.
func NewMembers(repo membershiprepo.Repository, auditLogger audit.Emitter) *Members {
	return &Members{repo: repo, audit: auditLogger}
}

// List returns all memberships of the active tenant.
func (s *Members) List(ctx context.Context) ([]*domain.Membership, error) {
	tc, err := tenantctx.Current(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListByTenant(ctx, tc.TenantID)
}

// Invite creates a pending invitation for email with the given role and
// returns it (the token is delivered to the invitee out of band).
func (s *Members) Invite(ctx context.Context, email string, role domain.Role) (*domain.Invitation, error) {
	tc, err := tenantctx.Current(ctx)
	if err != nil {
		return nil, err
	}
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return nil, errors.New("email is required")
	}
	if !role.Valid() {
		return nil, ErrInvalidRole
	}

	token, err := generateInviteToken()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	inv := &domain.Invitation{
		ID:        uuid.New().String(),
		TenantID:  tc.TenantID,
		Email:     email,
		Role:      role,
		Token:     token,
		InvitedBy: tc.UserID,
		ExpiresAt: now.Add(invitationTTL),
		CreatedAt: now,
	}
	if err := s.repo.CreateInvitation(ctx, inv); err != nil {
		return nil, err
	}
	s.emitAudit(ctx, tc, "membership.invited", inv.ID,
		fmt.Sprintf(`{"email":%q,"role":%q}`, email, role))
	return inv, nil
}

// Accept consumes the invitation token on behalf of the logged-in user and
// creates their membership. The caller is authenticated but has no tenant
// context yet; the tenant comes from the invitation itself.
func (s *Members) Accept(ctx context.Context, userID, userEmail, token string) (*domain.Membership, error) {
	inv, err := s.repo.GetInvitationByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, ErrInvalidInvitation
	}
	if inv.Expired(time.Now().UTC()) {
		return nil, ErrInvitationExpired
	}
	if !strings.EqualFold(inv.Email, userEmail) {
		return nil, ErrInvitationEmailMismatch
	}

	existing, err := s.repo.GetByUserAndTenant(ctx, userID, inv.TenantID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrAlreadyMember
	}

	m := &domain.Membership{
		ID:        uuid.New().String(),
		UserID:    userID,
		TenantID:  inv.TenantID,
		Role:      inv.Role,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, m); err != nil {
		return nil, err
	}
	if err := s.repo.DeleteInvitation(ctx, inv.ID); err != nil {
		return nil, err
	}
	if s.audit != nil {
		s.audit.LogEvent(ctx, inv.TenantID, userID, "membership.accepted", "memberships", m.ID,
			fmt.Sprintf(`{"role":%q}`, inv.Role))
	}
	return m, nil
}

// ChangeRole sets targetUserID's role in the active tenant. Demoting the
// last owner is rejected: a tenant must always have an owner who can manage it.
func (s *Members) ChangeRole(ctx context.Context, targetUserID string, role domain.Role) (*domain.Membership, error) {
	tc, err := tenantctx.Current(ctx)
	if err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, ErrInvalidRole
	}

	current, err := s.repo.GetByUserAndTenant(ctx, targetUserID, tc.TenantID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, ErrMemberNotFound
	}
	if current.Role == domain.RoleOwner && role != domain.RoleOwner {
		owners, err := s.repo.CountOwnersByTenant(ctx, tc.TenantID)
		if err != nil {
			return nil, err
		}
		if owners <= 1 {
			return nil, ErrLastOwner
		}
	}

	updated, err := s.repo.UpdateRole(ctx, targetUserID, tc.TenantID, role)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, ErrMemberNotFound
	}
	s.emitAudit(ctx, tc, "membership.role_changed", updated.ID,
		fmt.Sprintf(`{"user_id":%q,"from":%q,"to":%q}`, targetUserID, current.Role, role))
	return updated, nil
}

// Remove deletes targetUserID's membership in the active tenant. Removing
// the last owner is rejected.
func (s *Members) Remove(ctx context.Context, targetUserID string) error {
	tc, err := tenantctx.Current(ctx)
	if err != nil {
		return err
	}

	current, err := s.repo.GetByUserAndTenant(ctx, targetUserID, tc.TenantID)
	if err != nil {
		return err
	}
	if current == nil {
		return ErrMemberNotFound
	}
	if current.Role == domain.RoleOwner {
		owners, err := s.repo.CountOwnersByTenant(ctx, tc.TenantID)
		if err != nil {
			return err
		}
		if owners <= 1 {
			return ErrLastOwner
		}
	}

	if err := s.repo.DeleteByUserAndTenant(ctx, targetUserID, tc.TenantID); err != nil {
		return err
	}
	s.emitAudit(ctx, tc, "membership.removed", current.ID,
		fmt.Sprintf(`{"user_id":%q}`, targetUserID))
	return nil
}

func (s *Members) emitAudit(ctx context.Context, tc tenantctx.Context, action, resourceID, metadata string) {
	if s.audit == nil {
		return
	}
	s.audit.LogEvent(ctx, tc.TenantID, tc.UserID, action, "memberships", resourceID, metadata)
}

func generateInviteToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
