package domain

import "time"

// TokenPurpose distinguishes what an auth token may be redeemed for. A
// token issued for one purpose is never valid for another.
type TokenPurpose string

const (
	TokenPasswordReset     TokenPurpose = "password_reset"
	TokenEmailVerification TokenPurpose = "email_verification"
)

// AuthToken is a single-use, out-of-band account token. The token value is
// the primary key; it is random enough that the row is unguessable.
type AuthToken struct {
	Token     string
	UserID    string
	Purpose   TokenPurpose
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Usable reports whether the token can still be redeemed at now.
func (t *AuthToken) Usable(now time.Time) bool {
	return now.Before(t.ExpiresAt)
}
