package domain

import "time"

// Invitation is a pending offer of membership in a tenant, addressed to an
// email. Accepting it (while logged in as that email's user) creates the
// membership and consumes the invitation.
type Invitation struct {
	ID        string
	TenantID  string
	Email     string
	Role      Role
	Token     string
	InvitedBy string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the invitation can no longer be accepted at now.
func (i *Invitation) Expired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}
