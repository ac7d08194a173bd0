package repository

import (
	"context"
	"time"

	"tenantplane/internal/session/domain"
)

// Repository defines persistence for sessions.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	Create(ctx context.Context, s *domain.Session) error
	Revoke(ctx context.Context, id string) error
	RevokeAllByUser(ctx context.Context, userID string) error
	SetActiveTenant(ctx context.Context, id, tenantID string) error
	UpdateLastSeen(ctx context.Context, id string, at time.Time) error
}
