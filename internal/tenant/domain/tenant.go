package domain

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

// Tenant represents an isolated customer account, the unit of data
// partitioning. Tenants are never hard-deleted; BillingStatus is the soft
// lifecycle.
type Tenant struct {
	ID                string
	Name              string
	Slug              string
	Plan              Plan
	BillingCustomerID string
	BillingStatus     BillingStatus
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type Plan string

const (
	PlanFree       Plan = "free"
	PlanPro        Plan = "pro"
	PlanEnterprise Plan = "enterprise"
)

// Valid reports whether p is a known plan tier.
func (p Plan) Valid() bool {
	switch p {
	case PlanFree, PlanPro, PlanEnterprise:
		return true
	}
	return false
}

type BillingStatus string

const (
	BillingActive   BillingStatus = "active"
	BillingPastDue  BillingStatus = "past_due"
	BillingCanceled BillingStatus = "canceled"
)

// Valid reports whether s is a known billing status.
func (s BillingStatus) Valid() bool {
	switch s {
	case BillingActive, BillingPastDue, BillingCanceled:
		return true
	}
	return false
}

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// Slugify converts name into a URL-safe slug candidate. Returns an empty
// string when nothing usable remains.
func Slugify(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	var b strings.Builder
	lastDash := true
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		case !lastDash:
			b.WriteByte('-')
			lastDash = true
		}
	}
	return strings.Trim(b.String(), "-")
}

// Validate validates the tenant for persistence.
func (t *Tenant) Validate() error {
	if t.Name == "" {
		return errors.New("name is required")
	}
	if !slugPattern.MatchString(t.Slug) {
		return errors.New("slug must be lowercase alphanumeric with dashes")
	}
	if !t.Plan.Valid() {
		return errors.New("unknown plan")
	}
	if !t.BillingStatus.Valid() {
		return errors.New("unknown billing status")
	}
	return nil
}
