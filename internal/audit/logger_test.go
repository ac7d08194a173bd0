package audit

import (
	"context"
	"errors"
	"testing"

	"tenantplane/internal/audit/domain"
)

// mockAuditRepo implements the audit repository interface for tests.
type mockAuditRepo struct {
	entries   []*domain.AuditLog
	createErr error
}

func (m *mockAuditRepo) Create(ctx context.Context, entry *domain.AuditLog) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockAuditRepo) ListByTenant(ctx context.Context, tenantID string, limit, offset int32) ([]*domain.AuditLog, error) {
	return nil, nil
}

func TestLogger_LogEvent_Success(t *testing.T) {
	repo := &mockAuditRepo{}
	l := NewLogger(repo, func(ctx context.Context) string { return "192.168.1.1" })

	l.LogEvent(context.Background(), "t-1", "u-1", "dashboards.delete", "dashboards", "d-1", `{"rows":1}`)

	if len(repo.entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(repo.entries))
	}
	entry := repo.entries[0]
	if entry.TenantID != "t-1" {
		t.Errorf("tenant_id = %q, want %q", entry.TenantID, "t-1")
	}
	if entry.UserID != "u-1" {
		t.Errorf("user_id = %q, want %q", entry.UserID, "u-1")
	}
	if entry.Action != "dashboards.delete" {
		t.Errorf("action = %q, want %q", entry.Action, "dashboards.delete")
	}
	if entry.ResourceID != "d-1" {
		t.Errorf("resource_id = %q, want %q", entry.ResourceID, "d-1")
	}
	if entry.IP != "192.168.1.1" {
		t.Errorf("ip = %q, want %q", entry.IP, "192.168.1.1")
	}
	if entry.ID == "" {
		t.Error("entry should have a generated id")
	}
	if entry.CreatedAt.IsZero() {
		t.Error("entry should have created_at set")
	}
}

func TestLogger_LogEvent_EmptyTenantUsesSentinel(t *testing.T) {
	repo := &mockAuditRepo{}
	l := NewLogger(repo, nil)

	l.LogEvent(context.Background(), "", "u-1", "auth.login_failure", "sessions", "", "")

	if len(repo.entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(repo.entries))
	}
	if repo.entries[0].TenantID != SentinelTenantID {
		t.Errorf("tenant_id = %q, want %q", repo.entries[0].TenantID, SentinelTenantID)
	}
	if repo.entries[0].IP != "unknown" {
		t.Errorf("ip = %q, want %q", repo.entries[0].IP, "unknown")
	}
}

func TestLogger_LogEvent_RepoFailureSwallowed(t *testing.T) {
	repo := &mockAuditRepo{createErr: errors.New("db down")}
	l := NewLogger(repo, nil)

	// Must not panic or propagate; the primary operation is unaffected.
	l.LogEvent(context.Background(), "t-1", "u-1", "dashboards.delete", "dashboards", "d-1", "")

	if len(repo.entries) != 0 {
		t.Errorf("expected no stored entries, got %d", len(repo.entries))
	}
}

func TestLogger_NilReceiverAndNilRepoAreNoOps(t *testing.T) {
	var l *Logger
	l.LogEvent(context.Background(), "t-1", "u-1", "a", "r", "", "")

	l = NewLogger(nil, nil)
	l.LogEvent(context.Background(), "t-1", "u-1", "a", "r", "", "")
}
