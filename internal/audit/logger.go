// Package audit appends structured records of sensitive operations:
// deletes, bulk updates, role changes, billing changes, and security
// violations.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tenantplane/internal/audit/domain"
	auditrepo "tenantplane/internal/audit/repository"
	"tenantplane/internal/platform/logger"
)

// SentinelTenantID is the tenant_id used for audit events that have no
// tenant (e.g. login failures, register).
const SentinelTenantID = "_system"

// IPExtractor returns the client IP for the current request, or "".
type IPExtractor func(context.Context) string

// Emitter records a single audit event with explicit action/resource.
// Emission is best-effort: failures are logged and never returned, because
// losing an audit record must not fail the operation it describes.
type Emitter interface {
	LogEvent(ctx context.Context, tenantID, userID, action, resource, resourceID, metadata string)
}

// Logger implements Emitter using the audit repository and an optional IP extractor.
type Logger struct {
	repo        auditrepo.Repository
	ipExtractor IPExtractor
}

// NewLogger returns an Emitter that persists to repo and uses ipExtractor
// for client IP. ipExtractor may be nil; then IP is recorded as "unknown".
func NewLogger(repo auditrepo.Repository, ipExtractor IPExtractor) *Logger {
	return &Logger{repo: repo, ipExtractor: ipExtractor}
}

// LogEvent writes one audit log entry. Best-effort: errors are logged and not returned.
func (l *Logger) LogEvent(ctx context.Context, tenantID, userID, action, resource, resourceID, metadata string) {
	if l == nil || l.repo == nil {
		return
	}
	ip := "unknown"
	if l.ipExtractor != nil {
		if got := l.ipExtractor(ctx); got != "" {
			ip = got
		}
	}
	if tenantID == "" {
		tenantID = SentinelTenantID
	}
	entry := &domain.AuditLog{
		ID:         uuid.New().String(),
		TenantID:   tenantID,
		UserID:     userID,
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		IP:         ip,
		Metadata:   metadata,
		CreatedAt:  time.Now().UTC(),
	}
	if err := l.repo.Create(ctx, entry); err != nil {
		logger.FromContext(ctx).Warn("audit: failed to log event",
			zap.String("action", action),
			zap.String("resource", resource),
			zap.Error(err))
	}
}
