package repository

import (
	"context"
	"database/sql"
	"errors"

	"tenantplane/internal/identity/domain"
)

type PostgresTokenRepository struct {
	db *sql.DB
}

// NewPostgresTokenRepository returns an auth token repository that uses the
// given db for persistence.
func NewPostgresTokenRepository(db *sql.DB) *PostgresTokenRepository {
	return &PostgresTokenRepository{db: db}
}

// CreateToken persists the token. The token value must already be set.
func (r *PostgresTokenRepository) CreateToken(ctx context.Context, t *domain.AuthToken) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO auth_tokens (token, user_id, purpose, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		t.Token, t.UserID, t.Purpose, t.ExpiresAt, t.CreatedAt)
	return err
}

// GetToken returns the token row for the given value and purpose, or nil if
// not found. Expiry is the caller's concern; a stored but expired token is
// still returned.
func (r *PostgresTokenRepository) GetToken(ctx context.Context, token string, purpose domain.TokenPurpose) (*domain.AuthToken, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT token, user_id, purpose, expires_at, created_at
		 FROM auth_tokens WHERE token = $1 AND purpose = $2`, token, purpose)
	var t domain.AuthToken
	err := row.Scan(&t.Token, &t.UserID, &t.Purpose, &t.ExpiresAt, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

// DeleteToken removes the token. Deleting an absent token is not an error.
func (r *PostgresTokenRepository) DeleteToken(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM auth_tokens WHERE token = $1`, token)
	return err
}

// DeleteTokensByUser removes every token of the given purpose for the user,
// so reissuing invalidates anything sent earlier.
func (r *PostgresTokenRepository) DeleteTokensByUser(ctx context.Context, userID string, purpose domain.TokenPurpose) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM auth_tokens WHERE user_id = $1 AND purpose = $2`, userID, purpose)
	return err
}
