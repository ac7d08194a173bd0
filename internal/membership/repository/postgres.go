package repository

import (
	"context"
	"database/sql"
	"errors"

	"tenantplane/internal/membership/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a membership repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const membershipColumns = `id, user_id, tenant_id, role, created_at`

// GetByID returns the membership for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Membership, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+membershipColumns+` FROM memberships WHERE id = $1`, id)
	return scanMembership(row)
}

// GetByUserAndTenant returns the membership for the given user and tenant, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByUserAndTenant(ctx context.Context, userID, tenantID string) (*domain.Membership, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+membershipColumns+` FROM memberships WHERE user_id = $1 AND tenant_id = $2`, userID, tenantID)
	return scanMembership(row)
}

// ListByTenant returns all memberships for the given tenant.
func (r *PostgresRepository) ListByTenant(ctx context.Context, tenantID string) ([]*domain.Membership, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+membershipColumns+` FROM memberships WHERE tenant_id = $1 ORDER BY created_at`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMemberships(rows)
}

// ListByUser returns all memberships held by the given user.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Membership, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+membershipColumns+` FROM memberships WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMemberships(rows)
}

// Create persists the membership to the database. The membership must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, m *domain.Membership) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO memberships (`+membershipColumns+`) VALUES ($1, $2, $3, $4, $5)`,
		m.ID, m.UserID, m.TenantID, m.Role, m.CreatedAt)
	return err
}

// DeleteByUserAndTenant removes the user's membership in the tenant.
func (r *PostgresRepository) DeleteByUserAndTenant(ctx context.Context, userID, tenantID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM memberships WHERE user_id = $1 AND tenant_id = $2`, userID, tenantID)
	return err
}

// UpdateRole sets the user's role in the tenant and returns the updated
// membership, or nil if no membership exists.
func (r *PostgresRepository) UpdateRole(ctx context.Context, userID, tenantID string, role domain.Role) (*domain.Membership, error) {
	row := r.db.QueryRowContext(ctx,
		`UPDATE memberships SET role = $3 WHERE user_id = $1 AND tenant_id = $2 RETURNING `+membershipColumns,
		userID, tenantID, role)
	return scanMembership(row)
}

// CountOwnersByTenant returns how many owners the tenant has.
func (r *PostgresRepository) CountOwnersByTenant(ctx context.Context, tenantID string) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM memberships WHERE tenant_id = $1 AND role = $2`, tenantID, domain.RoleOwner).Scan(&n)
	return n, err
}

// CreateInvitation persists the invitation. The invitation must have ID and Token set.
func (r *PostgresRepository) CreateInvitation(ctx context.Context, i *domain.Invitation) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO invitations (id, tenant_id, email, role, token, invited_by, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		i.ID, i.TenantID, i.Email, i.Role, i.Token, i.InvitedBy, i.ExpiresAt, i.CreatedAt)
	return err
}

// GetInvitationByToken returns the invitation for token, or nil if not found.
func (r *PostgresRepository) GetInvitationByToken(ctx context.Context, token string) (*domain.Invitation, error) {
	var i domain.Invitation
	err := r.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, email, role, token, invited_by, expires_at, created_at
		 FROM invitations WHERE token = $1`, token).
		Scan(&i.ID, &i.TenantID, &i.Email, &i.Role, &i.Token, &i.InvitedBy, &i.ExpiresAt, &i.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &i, nil
}

// DeleteInvitation removes the invitation; invitations are single-use.
func (r *PostgresRepository) DeleteInvitation(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM invitations WHERE id = $1`, id)
	return err
}

func scanMembership(row *sql.Row) (*domain.Membership, error) {
	var m domain.Membership
	err := row.Scan(&m.ID, &m.UserID, &m.TenantID, &m.Role, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

func scanMemberships(rows *sql.Rows) ([]*domain.Membership, error) {
	var out []*domain.Membership
	for rows.Next() {
		var m domain.Membership
		if err := rows.Scan(&m.ID, &m.UserID, &m.TenantID, &m.Role, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}
