package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"tenantplane/internal/dashboard/domain"
	"tenantplane/internal/dashboard/service"
	membershipdomain "tenantplane/internal/membership/domain"
	"tenantplane/internal/platform/gate"
)

// DashboardHandler exposes dashboard CRUD over HTTP. Every route requires a
// bound tenant context; viewers can read, members and up can write, and
// deletion is restricted to owners and admins.
type DashboardHandler struct {
	dashboards *service.Service
}

// NewDashboardHandler returns a DashboardHandler over dashboards.
func NewDashboardHandler(dashboards *service.Service) *DashboardHandler {
	return &DashboardHandler{dashboards: dashboards}
}

// Routes registers the handler's routes.
func (h *DashboardHandler) Routes(e *echo.Echo, g *gate.Gate) {
	read := gate.RequireRole(
		membershipdomain.RoleOwner, membershipdomain.RoleAdmin,
		membershipdomain.RoleMember, membershipdomain.RoleViewer)
	write := gate.RequireRole(
		membershipdomain.RoleOwner, membershipdomain.RoleAdmin, membershipdomain.RoleMember)
	remove := gate.RequireRole(membershipdomain.RoleOwner, membershipdomain.RoleAdmin)

	bound := e.Group("/dashboards", g.Authenticated(), g.TenantBound())
	bound.GET("", h.List, read)
	bound.GET("/:id", h.Get, read)
	bound.POST("", h.Create, write)
	bound.PATCH("/:id", h.Update, write)
	bound.DELETE("/:id", h.Delete, remove)
}

type dashboardResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Layout    string    `json:"layout"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toResponse(d *domain.Dashboard) dashboardResponse {
	return dashboardResponse{
		ID:        d.ID,
		Name:      d.Name,
		Layout:    d.Layout,
		CreatedBy: d.CreatedBy,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

func (h *DashboardHandler) List(c echo.Context) error {
	limit, _ := strconv.ParseUint(c.QueryParam("limit"), 10, 64)
	offset, _ := strconv.ParseUint(c.QueryParam("offset"), 10, 64)
	list, err := h.dashboards.List(c.Request().Context(), limit, offset)
	if err != nil {
		return gate.MapError(err)
	}
	total, err := h.dashboards.Count(c.Request().Context())
	if err != nil {
		return gate.MapError(err)
	}
	out := make([]dashboardResponse, 0, len(list))
	for _, d := range list {
		out = append(out, toResponse(d))
	}
	return c.JSON(http.StatusOK, echo.Map{"dashboards": out, "total": total})
}

func (h *DashboardHandler) Get(c echo.Context) error {
	d, err := h.dashboards.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrDashboardNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return gate.MapError(err)
	}
	return c.JSON(http.StatusOK, toResponse(d))
}

func (h *DashboardHandler) Create(c echo.Context) error {
	p, ok := gate.CurrentPrincipal(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing or invalid authorization")
	}
	var req struct {
		Name   string `json:"name"`
		Layout string `json:"layout"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "could not parse request body")
	}
	d, err := h.dashboards.Create(c.Request().Context(), p.UserID, req.Name, req.Layout)
	if err != nil {
		if errors.Is(err, service.ErrDashboardNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		if mapped := gate.MapError(err); mapped != err {
			return mapped
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, toResponse(d))
}

func (h *DashboardHandler) Update(c echo.Context) error {
	var req struct {
		Name   string `json:"name"`
		Layout string `json:"layout"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "could not parse request body")
	}
	d, err := h.dashboards.Update(c.Request().Context(), c.Param("id"), req.Name, req.Layout)
	if err != nil {
		if errors.Is(err, service.ErrDashboardNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return gate.MapError(err)
	}
	return c.JSON(http.StatusOK, toResponse(d))
}

func (h *DashboardHandler) Delete(c echo.Context) error {
	if err := h.dashboards.Delete(c.Request().Context(), c.Param("id")); err != nil {
		if errors.Is(err, service.ErrDashboardNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return gate.MapError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
