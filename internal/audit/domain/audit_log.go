package domain

import "time"

// AuditLog is one append-only audit event. Records are never updated or
// deleted by the application.
type AuditLog struct {
	ID         string
	TenantID   string
	UserID     string
	Action     string
	Resource   string
	ResourceID string
	IP         string
	Metadata   string
	CreatedAt  time.Time
}
