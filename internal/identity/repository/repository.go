package repository

import (
	"context"
	"time"

	"tenantplane/internal/identity/domain"
)

// Repository defines persistence for users.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	MarkEmailVerified(ctx context.Context, id string, at time.Time) error
}

// TokenRepository defines persistence for account recovery and
// verification tokens.
type TokenRepository interface {
	CreateToken(ctx context.Context, t *domain.AuthToken) error
	GetToken(ctx context.Context, token string, purpose domain.TokenPurpose) (*domain.AuthToken, error)
	DeleteToken(ctx context.Context, token string) error
	DeleteTokensByUser(ctx context.Context, userID string, purpose domain.TokenPurpose) error
}
