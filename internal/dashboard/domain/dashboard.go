package domain

import (
	"errors"
	"strings"
	"time"
)

// Dashboard is a tenant-owned saved view. It is stored through the
// tenant-scoped datastore, so its rows always carry the owning tenant.
type Dashboard struct {
	ID        string
	TenantID  string
	Name      string
	Layout    string // JSON layout document, opaque to the server
	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate validates the dashboard for persistence.
func (d *Dashboard) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return errors.New("dashboard name is required")
	}
	if d.Layout == "" {
		d.Layout = "{}"
	}
	return nil
}
