package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"tenantplane/internal/audit"
	audithandler "tenantplane/internal/audit/handler"
	auditrepo "tenantplane/internal/audit/repository"
	"tenantplane/internal/billing"
	"tenantplane/internal/config"
	dashboardhandler "tenantplane/internal/dashboard/handler"
	dashboardservice "tenantplane/internal/dashboard/service"
	"tenantplane/internal/datastore"
	"tenantplane/internal/db"
	healthhandler "tenantplane/internal/health/handler"
	identityhandler "tenantplane/internal/identity/handler"
	identityrepo "tenantplane/internal/identity/repository"
	identityservice "tenantplane/internal/identity/service"
	membershiphandler "tenantplane/internal/membership/handler"
	membershiprepo "tenantplane/internal/membership/repository"
	membershipservice "tenantplane/internal/membership/service"
	"tenantplane/internal/observability/tracing"
	"tenantplane/internal/platform/gate"
	"tenantplane/internal/platform/logger"
	"tenantplane/internal/security"
	"tenantplane/internal/server"
	sessionrepo "tenantplane/internal/session/repository"
	tenanthandler "tenantplane/internal/tenant/handler"
	tenantrepo "tenantplane/internal/tenant/repository"
	tenantservice "tenantplane/internal/tenant/service"
)

const serviceName = "tenantplane"

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}
	if err := logger.Init(logger.Options{
		Level:       cfg.LogLevel,
		Environment: cfg.Env,
		ServiceName: serviceName,
	}); err != nil {
		os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer logger.Sync()
	log := logger.L()

	ctx := context.Background()
	shutdownTracing, err := tracing.Init(ctx, log, cfg.OTLPEndpoint, serviceName, cfg.Env)
	if err != nil {
		log.Fatal("tracing", zap.Error(err))
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("database", zap.Error(err))
	}
	defer database.Close()

	// Repositories.
	users := identityrepo.NewPostgresRepository(database)
	authTokens := identityrepo.NewPostgresTokenRepository(database)
	sessions := sessionrepo.NewPostgresRepository(database)
	memberships := membershiprepo.NewPostgresRepository(database)
	tenants := tenantrepo.NewPostgresRepository(database)
	auditLogs := auditrepo.NewPostgresRepository(database)

	auditLogger := audit.NewLogger(auditLogs, server.ClientIPFromContext)

	// Tenant-scoped datastore: dashboards are tenant data; everything the
	// platform itself owns is global.
	registry := datastore.NewRegistry().
		TenantScoped(dashboardservice.Collection).
		Global("users", "sessions", "tenants", "memberships", "invitations", "audit_logs")
	store := datastore.NewTenantStore(datastore.NewSQLStore(database), registry, auditLogger)

	// Services.
	hasher := security.NewHasher(cfg.BcryptCost)
	tokens := security.NewTokenProvider([]byte(cfg.SessionSecret), serviceName, serviceName, cfg.SessionLifetime())
	authService := identityservice.NewAuthService(users, sessions, memberships, hasher, tokens, cfg.SessionLifetime(), auditLogger)
	recoveryService := identityservice.NewRecoveryService(users, authTokens, sessions, hasher, identityservice.LogNotifier{})
	resolver := membershipservice.NewResolver(memberships, auditLogger)
	membersService := membershipservice.NewMembers(memberships, auditLogger)
	tenantService := tenantservice.NewService(tenants, memberships, auditLogger)
	dashboardService := dashboardservice.NewService(store)
	webhook := billing.NewWebhook(tenants, []byte(cfg.BillingWebhookSecret), auditLogger)

	g := gate.New(tokens, sessions, resolver)

	e := server.New(server.Deps{
		Gate:       g,
		Auth:       identityhandler.NewAuthHandler(authService, recoveryService),
		Tenants:    tenanthandler.NewTenantHandler(tenantService),
		Members:    membershiphandler.NewMembershipHandler(membersService),
		Dashboards: dashboardhandler.NewDashboardHandler(dashboardService),
		AuditLogs:  audithandler.NewAuditHandler(auditLogs),
		Health:     healthhandler.NewHealthHandler(database),
		Billing:    webhook,
	})

	go func() {
		log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
		if err := e.Start(cfg.HTTPAddr); err != nil && err != http.ErrServerClosed {
			log.Fatal("serve", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", zap.Error(err))
	}
	log.Info("http server stopped")
}
