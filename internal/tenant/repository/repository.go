package repository

import (
	"context"

	membershipdomain "tenantplane/internal/membership/domain"
	"tenantplane/internal/tenant/domain"
)

// Repository defines persistence for tenants.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Tenant, error)
	GetBySlug(ctx context.Context, slug string) (*domain.Tenant, error)
	GetByBillingCustomer(ctx context.Context, customerID string) (*domain.Tenant, error)
	// CreateWithOwner persists the tenant and the creator's owner membership
	// in one transaction; a tenant must never exist without an owner.
	CreateWithOwner(ctx context.Context, t *domain.Tenant, owner *membershipdomain.Membership) error
	UpdatePlan(ctx context.Context, id string, plan domain.Plan, status domain.BillingStatus) error
	UpdateName(ctx context.Context, id, name string) error
}
