package repository

import (
	"context"

	"tenantplane/internal/audit/domain"
)

// Repository defines persistence for audit logs. The log is append-only:
// there is no update or delete.
type Repository interface {
	Create(ctx context.Context, entry *domain.AuditLog) error
	ListByTenant(ctx context.Context, tenantID string, limit, offset int32) ([]*domain.AuditLog, error)
}
