package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"tenantplane/internal/audit/domain"
	membershipdomain "tenantplane/internal/membership/domain"
	"tenantplane/internal/platform/gate"
	"tenantplane/internal/platform/tenantctx"
)

// Lister reads a tenant's audit trail.
type Lister interface {
	ListByTenant(ctx context.Context, tenantID string, limit, offset int32) ([]*domain.AuditLog, error)
}

// AuditHandler exposes the active organization's audit trail, newest first.
// Only owners and admins may read it.
type AuditHandler struct {
	logs Lister
}

// NewAuditHandler returns an AuditHandler over logs.
func NewAuditHandler(logs Lister) *AuditHandler {
	return &AuditHandler{logs: logs}
}

// Routes registers the handler's routes.
func (h *AuditHandler) Routes(e *echo.Echo, g *gate.Gate) {
	e.GET("/org/audit-logs", h.List,
		g.Authenticated(), g.TenantBound(),
		gate.RequireRole(membershipdomain.RoleOwner, membershipdomain.RoleAdmin))
}

func (h *AuditHandler) List(c echo.Context) error {
	tc, err := tenantctx.Current(c.Request().Context())
	if err != nil {
		return gate.MapError(err)
	}
	limit, _ := strconv.ParseInt(c.QueryParam("limit"), 10, 32)
	offset, _ := strconv.ParseInt(c.QueryParam("offset"), 10, 32)
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	entries, err := h.logs.ListByTenant(c.Request().Context(), tc.TenantID, int32(limit), int32(offset))
	if err != nil {
		return err
	}
	type entry struct {
		ID         string    `json:"id"`
		UserID     string    `json:"user_id"`
		Action     string    `json:"action"`
		Resource   string    `json:"resource"`
		ResourceID string    `json:"resource_id"`
		IP         string    `json:"ip"`
		Metadata   string    `json:"metadata"`
		CreatedAt  time.Time `json:"created_at"`
	}
	out := make([]entry, 0, len(entries))
	for _, e := range entries {
		out = append(out, entry{
			ID:         e.ID,
			UserID:     e.UserID,
			Action:     e.Action,
			Resource:   e.Resource,
			ResourceID: e.ResourceID,
			IP:         e.IP,
			Metadata:   e.Metadata,
			CreatedAt:  e.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"entries": out})
}
