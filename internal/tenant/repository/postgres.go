package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	membershipdomain "tenantplane/internal/membership/domain"
	"tenantplane/internal/tenant/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a tenant repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const tenantColumns = `id, name, slug, plan, billing_customer_id, billing_status, created_at, updated_at`

// GetByID returns the tenant for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Tenant, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, id)
	return scanTenant(row)
}

// GetBySlug returns the tenant for slug, or nil if not found.
func (r *PostgresRepository) GetBySlug(ctx context.Context, slug string) (*domain.Tenant, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE slug = $1`, slug)
	return scanTenant(row)
}

// GetByBillingCustomer returns the tenant whose external billing customer
// reference is customerID, or nil if not found.
func (r *PostgresRepository) GetByBillingCustomer(ctx context.Context, customerID string) (*domain.Tenant, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE billing_customer_id = $1`, customerID)
	return scanTenant(row)
}

// CreateWithOwner persists the tenant and the creator's owner membership in
// one transaction. Either both rows commit or neither does.
func (r *PostgresRepository) CreateWithOwner(ctx context.Context, t *domain.Tenant, owner *membershipdomain.Membership) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	billingCustomer := sql.NullString{String: t.BillingCustomerID, Valid: t.BillingCustomerID != ""}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO tenants (`+tenantColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		t.ID, t.Name, t.Slug, t.Plan, billingCustomer, t.BillingStatus, t.CreatedAt, t.UpdatedAt); err != nil {
		return fmt.Errorf("insert tenant: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO memberships (id, user_id, tenant_id, role, created_at) VALUES ($1, $2, $3, $4, $5)`,
		owner.ID, owner.UserID, owner.TenantID, owner.Role, owner.CreatedAt); err != nil {
		return fmt.Errorf("insert owner membership: %w", err)
	}
	return tx.Commit()
}

// UpdatePlan sets the tenant's plan tier and billing status.
func (r *PostgresRepository) UpdatePlan(ctx context.Context, id string, plan domain.Plan, status domain.BillingStatus) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE tenants SET plan = $2, billing_status = $3, updated_at = NOW() WHERE id = $1`, id, plan, status)
	return err
}

// UpdateName renames the tenant.
func (r *PostgresRepository) UpdateName(ctx context.Context, id, name string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE tenants SET name = $2, updated_at = NOW() WHERE id = $1`, id, name)
	return err
}

func scanTenant(row *sql.Row) (*domain.Tenant, error) {
	var (
		t               domain.Tenant
		billingCustomer sql.NullString
	)
	err := row.Scan(&t.ID, &t.Name, &t.Slug, &t.Plan, &billingCustomer, &t.BillingStatus, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	t.BillingCustomerID = billingCustomer.String
	return &t, nil
}
