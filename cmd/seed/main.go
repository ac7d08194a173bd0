// seed inserts development sample data for local testing.
// Idempotent: skips inserts if the dev user (dev@example.com) already exists.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"tenantplane/internal/config"
	dashboardservice "tenantplane/internal/dashboard/service"
	"tenantplane/internal/datastore"
	"tenantplane/internal/db"
	identitydomain "tenantplane/internal/identity/domain"
	identityrepo "tenantplane/internal/identity/repository"
	membershipdomain "tenantplane/internal/membership/domain"
	membershiprepo "tenantplane/internal/membership/repository"
	"tenantplane/internal/platform/tenantctx"
	"tenantplane/internal/security"
	tenantdomain "tenantplane/internal/tenant/domain"
	tenantrepo "tenantplane/internal/tenant/repository"
)

const (
	devUserEmail = "dev@example.com"
	devPassword  = "password123"
	devUserID    = "dev-user-001"
	devUser2ID   = "dev-user-002"
	acmeID       = "tenant-acme-001"
	techstartID  = "tenant-techstart-001"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer database.Close()

	ctx := context.Background()
	users := identityrepo.NewPostgresRepository(database)

	existing, err := users.GetByEmail(ctx, devUserEmail)
	if err != nil {
		log.Fatalf("seed: %v", err)
	}
	if existing != nil {
		log.Println("seed: dev user already exists, nothing to do")
		return
	}

	hasher := security.NewHasher(cfg.BcryptCost)
	hash, err := hasher.Hash([]byte(devPassword))
	if err != nil {
		log.Fatalf("seed: %v", err)
	}
	now := time.Now().UTC()

	for _, u := range []*identitydomain.User{
		{ID: devUserID, Email: devUserEmail, Name: "Dev User", PasswordHash: hash,
			Status: identitydomain.UserStatusActive, CreatedAt: now, UpdatedAt: now},
		{ID: devUser2ID, Email: "viewer@example.com", Name: "Dev Viewer", PasswordHash: hash,
			Status: identitydomain.UserStatusActive, CreatedAt: now, UpdatedAt: now},
	} {
		if err := users.Create(ctx, u); err != nil {
			log.Fatalf("seed user %s: %v", u.Email, err)
		}
	}

	tenants := tenantrepo.NewPostgresRepository(database)
	memberships := membershiprepo.NewPostgresRepository(database)
	for _, seed := range []struct {
		tenant *tenantdomain.Tenant
	}{
		{&tenantdomain.Tenant{ID: acmeID, Name: "Acme Corp", Slug: "acme-corp",
			Plan: tenantdomain.PlanPro, BillingCustomerID: "cus_dev_acme",
			BillingStatus: tenantdomain.BillingActive, CreatedAt: now, UpdatedAt: now}},
		{&tenantdomain.Tenant{ID: techstartID, Name: "TechStart", Slug: "techstart",
			Plan: tenantdomain.PlanFree, BillingStatus: tenantdomain.BillingActive,
			CreatedAt: now, UpdatedAt: now}},
	} {
		owner := &membershipdomain.Membership{
			ID:        "member-" + seed.tenant.Slug + "-owner",
			UserID:    devUserID,
			TenantID:  seed.tenant.ID,
			Role:      membershipdomain.RoleOwner,
			CreatedAt: now,
		}
		if err := tenants.CreateWithOwner(ctx, seed.tenant, owner); err != nil {
			log.Fatalf("seed tenant %s: %v", seed.tenant.Slug, err)
		}
	}

	// Second user is only a viewer in Acme, for exercising role checks.
	if err := memberships.Create(ctx, &membershipdomain.Membership{
		ID: "member-acme-viewer", UserID: devUser2ID, TenantID: acmeID,
		Role: membershipdomain.RoleViewer, CreatedAt: now,
	}); err != nil {
		log.Fatalf("seed membership: %v", err)
	}

	// Dashboards go through the tenant-scoped datastore, same as the server.
	registry := datastore.NewRegistry().TenantScoped(dashboardservice.Collection)
	store := datastore.NewTenantStore(datastore.NewSQLStore(database), registry, nil)
	dashboards := dashboardservice.NewService(store)
	acmeCtx := tenantctx.With(ctx, tenantctx.Context{
		TenantID: acmeID, UserID: devUserID, Role: membershipdomain.RoleOwner,
	})
	if _, err := dashboards.Create(acmeCtx, devUserID, "Exec Overview", `{"widgets":[]}`); err != nil {
		log.Fatalf("seed dashboard: %v", err)
	}

	log.Println("seed: done")
}
