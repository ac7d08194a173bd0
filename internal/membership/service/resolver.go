package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"tenantplane/internal/audit"
	"tenantplane/internal/membership/domain"
	"tenantplane/internal/observability/metrics"
	"tenantplane/internal/platform/logger"
	"tenantplane/internal/platform/tenantctx"
)

// Sentinel errors for tenant resolution; the gate maps them to HTTP statuses.
var (
	// ErrNoActiveTenant means the user is authenticated but has not selected
	// or created a tenant yet. Recoverable: redirect to onboarding.
	ErrNoActiveTenant = errors.New("no active tenant selected")

	// ErrForbiddenMembership means the session claims an active tenant the
	// user is not a member of. That is a stale session or tampering, never a
	// missing-tenant case; it is logged as a security incident.
	ErrForbiddenMembership = errors.New("not a member of the claimed tenant")
)

// MembershipGetter returns a user's membership in a tenant, nil when none exists.
type MembershipGetter interface {
	GetByUserAndTenant(ctx context.Context, userID, tenantID string) (*domain.Membership, error)
}

// Resolver computes the authoritative tenant context for a request from the
// session's identity and active-organization pointer. The role always comes
// from the membership row, never from client input.
type Resolver struct {
	memberships MembershipGetter
	audit       audit.Emitter
}

// NewResolver returns a Resolver over the given membership store.
// auditLogger may be nil; membership violations are then only logged.
func NewResolver(memberships MembershipGetter, auditLogger audit.Emitter) *Resolver {
	return &Resolver{memberships: memberships, audit: auditLogger}
}

// Resolve returns the tenant context for the authenticated user and their
// session's active tenant pointer.
//
// An empty activeTenantID yields ErrNoActiveTenant. An activeTenantID with
// no matching membership yields ErrForbiddenMembership and an audit record;
// it must never resolve to an empty or neutral tenant.
func (r *Resolver) Resolve(ctx context.Context, userID, activeTenantID, operation string) (tenantctx.Context, error) {
	if activeTenantID == "" {
		return tenantctx.Context{}, ErrNoActiveTenant
	}

	m, err := r.memberships.GetByUserAndTenant(ctx, userID, activeTenantID)
	if err != nil {
		return tenantctx.Context{}, fmt.Errorf("resolve membership: %w", err)
	}
	if m == nil {
		logger.FromContext(ctx).Warn("session claims tenant without membership",
			zap.String("user_id", userID),
			zap.String("claimed_tenant_id", activeTenantID))
		metrics.ObserveSecurityViolation("membership_violation")
		if r.audit != nil {
			r.audit.LogEvent(ctx, activeTenantID, userID,
				"security.membership_violation", "memberships", "",
				fmt.Sprintf(`{"claimed_tenant_id":%q}`, activeTenantID))
		}
		return tenantctx.Context{}, ErrForbiddenMembership
	}

	return tenantctx.Context{
		TenantID:  m.TenantID,
		UserID:    m.UserID,
		Role:      m.Role,
		Operation: operation,
	}, nil
}
