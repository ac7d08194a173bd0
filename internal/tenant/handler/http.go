package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	membershipdomain "tenantplane/internal/membership/domain"
	"tenantplane/internal/platform/gate"
	"tenantplane/internal/tenant/domain"
	"tenantplane/internal/tenant/service"
)

// TenantHandler exposes organization onboarding and management over HTTP.
type TenantHandler struct {
	tenants *service.Service
}

// NewTenantHandler returns a TenantHandler over tenants.
func NewTenantHandler(tenants *service.Service) *TenantHandler {
	return &TenantHandler{tenants: tenants}
}

// Routes registers the handler's routes. Creating and listing organizations
// only needs authentication; reading and renaming the active organization
// needs a bound tenant context.
func (h *TenantHandler) Routes(e *echo.Echo, g *gate.Gate) {
	authed := e.Group("", g.Authenticated())
	authed.POST("/orgs", h.Create)
	authed.GET("/orgs", h.ListMine)

	bound := authed.Group("", g.TenantBound())
	bound.GET("/org", h.GetActive)
	bound.PATCH("/org", h.Rename,
		gate.RequireRole(membershipdomain.RoleOwner, membershipdomain.RoleAdmin))
}

type tenantResponse struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Slug          string    `json:"slug"`
	Plan          string    `json:"plan"`
	BillingStatus string    `json:"billing_status"`
	CreatedAt     time.Time `json:"created_at"`
}

func toResponse(t *domain.Tenant) tenantResponse {
	return tenantResponse{
		ID:            t.ID,
		Name:          t.Name,
		Slug:          t.Slug,
		Plan:          string(t.Plan),
		BillingStatus: string(t.BillingStatus),
		CreatedAt:     t.CreatedAt,
	}
}

func (h *TenantHandler) Create(c echo.Context) error {
	p, ok := gate.CurrentPrincipal(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing or invalid authorization")
	}
	var req struct {
		Name string `json:"name"`
		Slug string `json:"slug"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "could not parse request body")
	}
	t, err := h.tenants.Create(c.Request().Context(), p.UserID, req.Name, req.Slug)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSlugTaken):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		case errors.Is(err, service.ErrInvalidName):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		default:
			return err
		}
	}
	return c.JSON(http.StatusCreated, toResponse(t))
}

func (h *TenantHandler) ListMine(c echo.Context) error {
	p, ok := gate.CurrentPrincipal(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing or invalid authorization")
	}
	list, err := h.tenants.ListForUser(c.Request().Context(), p.UserID)
	if err != nil {
		return err
	}
	type entry struct {
		tenantResponse
		Role string `json:"role"`
	}
	out := make([]entry, 0, len(list))
	for _, ut := range list {
		out = append(out, entry{tenantResponse: toResponse(ut.Tenant), Role: string(ut.Role)})
	}
	return c.JSON(http.StatusOK, echo.Map{"orgs": out})
}

func (h *TenantHandler) GetActive(c echo.Context) error {
	t, err := h.tenants.GetActive(c.Request().Context())
	if err != nil {
		if errors.Is(err, service.ErrTenantNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return gate.MapError(err)
	}
	return c.JSON(http.StatusOK, toResponse(t))
}

func (h *TenantHandler) Rename(c echo.Context) error {
	var req struct {
		Name string `json:"name"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "could not parse request body")
	}
	t, err := h.tenants.Rename(c.Request().Context(), req.Name)
	if err != nil {
		if errors.Is(err, service.ErrInvalidName) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return gate.MapError(err)
	}
	return c.JSON(http.StatusOK, toResponse(t))
}
