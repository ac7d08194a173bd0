package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"tenantplane/internal/audit"
	membershipdomain "tenantplane/internal/membership/domain"
	"tenantplane/internal/platform/tenantctx"
	"tenantplane/internal/tenant/domain"
)

// Sentinel errors for the tenant service; handlers map them to HTTP statuses.
var (
	ErrSlugTaken      = errors.New("organization slug already in use")
	ErrTenantNotFound = errors.New("organization not found")
	ErrInvalidName    = errors.New("organization name is required")
)

// TenantRepo is the minimal tenant repository needed by the service.
type TenantRepo interface {
	GetByID(ctx context.Context, id string) (*domain.Tenant, error)
	GetBySlug(ctx context.Context, slug string) (*domain.Tenant, error)
	CreateWithOwner(ctx context.Context, t *domain.Tenant, owner *membershipdomain.Membership) error
	UpdateName(ctx context.Context, id, name string) error
}

// MembershipLister lists a user's memberships across tenants.
type MembershipLister interface {
	ListByUser(ctx context.Context, userID string) ([]*membershipdomain.Membership, error)
}

// UserTenant pairs a tenant with the user's role in it.
type UserTenant struct {
	Tenant *domain.Tenant
	Role   membershipdomain.Role
}

// Service implements tenant onboarding and management.
type Service struct {
	tenants     TenantRepo
	memberships MembershipLister
	audit       audit.Emitter
}

// NewService returns a tenant Service. auditLogger may be nil.
func NewService(tenants TenantRepo, memberships MembershipLister, auditLogger audit.Emitter) *Service {
	return &Service{tenants: tenants, memberships: memberships, audit: auditLogger}
}

// Create onboards a new tenant on the free plan with userID as its owner.
// Tenant and owner membership are persisted in one transaction.
func (s *Service) Create(ctx context.Context, userID, name, slug string) (*domain.Tenant, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidName
	}
	slug = strings.TrimSpace(strings.ToLower(slug))
	if slug == "" {
		slug = domain.Slugify(name)
	}

	existing, err := s.tenants.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrSlugTaken
	}

	now := time.Now().UTC()
	t := &domain.Tenant{
		ID:            uuid.New().String(),
		Name:          name,
		Slug:          slug,
		Plan:          domain.PlanFree,
		BillingStatus: domain.BillingActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	owner := &membershipdomain.Membership{
		ID:        uuid.New().String(),
		UserID:    userID,
		TenantID:  t.ID,
		Role:      membershipdomain.RoleOwner,
		CreatedAt: now,
	}
	if err := s.tenants.CreateWithOwner(ctx, t, owner); err != nil {
		return nil, err
	}
	if s.audit != nil {
		s.audit.LogEvent(ctx, t.ID, userID, "tenant.created", "tenants", t.ID,
			fmt.Sprintf(`{"name":%q,"slug":%q}`, name, slug))
	}
	return t, nil
}

// ListForUser returns every tenant userID belongs to, with their role in each.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]*UserTenant, error) {
	memberships, err := s.memberships.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]*UserTenant, 0, len(memberships))
	for _, m := range memberships {
		t, err := s.tenants.GetByID(ctx, m.TenantID)
		if err != nil {
			return nil, err
		}
		if t == nil {
			continue
		}
		out = append(out, &UserTenant{Tenant: t, Role: m.Role})
	}
	return out, nil
}

// GetActive returns the tenant bound to the request's tenant context.
func (s *Service) GetActive(ctx context.Context) (*domain.Tenant, error) {
	tc, err := tenantctx.Current(ctx)
	if err != nil {
		return nil, err
	}
	t, err := s.tenants.GetByID(ctx, tc.TenantID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrTenantNotFound
	}
	return t, nil
}

// Rename changes the active tenant's display name. The slug is immutable.
func (s *Service) Rename(ctx context.Context, name string) (*domain.Tenant, error) {
	tc, err := tenantctx.Current(ctx)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidName
	}
	if err := s.tenants.UpdateName(ctx, tc.TenantID, name); err != nil {
		return nil, err
	}
	if s.audit != nil {
		s.audit.LogEvent(ctx, tc.TenantID, tc.UserID, "tenant.renamed", "tenants", tc.TenantID,
			fmt.Sprintf(`{"name":%q}`, name))
	}
	return s.GetActive(ctx)
}
