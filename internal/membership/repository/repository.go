package repository

import (
	"context"

	"tenantplane/internal/membership/domain"
)

// Repository defines persistence for memberships and invitations.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Membership, error)
	GetByUserAndTenant(ctx context.Context, userID, tenantID string) (*domain.Membership, error)
	ListByTenant(ctx context.Context, tenantID string) ([]*domain.Membership, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.Membership, error)
	Create(ctx context.Context, m *domain.Membership) error
	DeleteByUserAndTenant(ctx context.Context, userID, tenantID string) error
	UpdateRole(ctx context.Context, userID, tenantID string, role domain.Role) (*domain.Membership, error)
	CountOwnersByTenant(ctx context.Context, tenantID string) (int64, error)

	CreateInvitation(ctx context.Context, i *domain.Invitation) error
	GetInvitationByToken(ctx context.Context, token string) (*domain.Invitation, error)
	DeleteInvitation(ctx context.Context, id string) error
}
