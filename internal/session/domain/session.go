package domain

import "time"

// Session represents an authenticated user session. ActiveTenantID is the
// session's active-organization pointer: it names the tenant the user is
// currently working in, and tenant resolution reads it on every request.
// It may be empty (authenticated, no tenant selected yet).
type Session struct {
	ID             string
	UserID         string
	ActiveTenantID string
	ExpiresAt      time.Time
	RevokedAt      *time.Time // nil when not revoked
	LastSeenAt     *time.Time
	IPAddress      string
	CreatedAt      time.Time
}

// Usable reports whether the session is neither revoked nor expired at now.
func (s *Session) Usable(now time.Time) bool {
	if s.RevokedAt != nil {
		return false
	}
	return now.Before(s.ExpiresAt)
}
