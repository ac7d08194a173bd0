package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"tenantplane/internal/membership/domain"
	"tenantplane/internal/membership/service"
	"tenantplane/internal/platform/gate"
)

// MembershipHandler exposes member and invitation management over HTTP.
type MembershipHandler struct {
	members *service.Members
}

// NewMembershipHandler returns a MembershipHandler over members.
func NewMembershipHandler(members *service.Members) *MembershipHandler {
	return &MembershipHandler{members: members}
}

// Routes registers the handler's routes. Accepting an invitation only needs
// authentication (the invitee has no membership yet); everything else acts
// on the active organization and names its allowed roles explicitly.
func (h *MembershipHandler) Routes(e *echo.Echo, g *gate.Gate) {
	authed := e.Group("", g.Authenticated())
	authed.POST("/invitations/accept", h.Accept)

	bound := authed.Group("/org", g.TenantBound())
	bound.GET("/members", h.List,
		gate.RequireRole(domain.RoleOwner, domain.RoleAdmin, domain.RoleMember, domain.RoleViewer))
	bound.POST("/invitations", h.Invite,
		gate.RequireRole(domain.RoleOwner, domain.RoleAdmin))
	bound.PATCH("/members/:userID", h.ChangeRole,
		gate.RequireRole(domain.RoleOwner, domain.RoleAdmin))
	bound.DELETE("/members/:userID", h.Remove,
		gate.RequireRole(domain.RoleOwner, domain.RoleAdmin))
}

func (h *MembershipHandler) List(c echo.Context) error {
	list, err := h.members.List(c.Request().Context())
	if err != nil {
		return gate.MapError(err)
	}
	type entry struct {
		UserID    string    `json:"user_id"`
		Role      string    `json:"role"`
		CreatedAt time.Time `json:"created_at"`
	}
	out := make([]entry, 0, len(list))
	for _, m := range list {
		out = append(out, entry{UserID: m.UserID, Role: string(m.Role), CreatedAt: m.CreatedAt})
	}
	return c.JSON(http.StatusOK, echo.Map{"members": out})
}

func (h *MembershipHandler) Invite(c echo.Context) error {
	var req struct {
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "could not parse request body")
	}
	inv, err := h.members.Invite(c.Request().Context(), req.Email, domain.Role(req.Role))
	if err != nil {
		if errors.Is(err, service.ErrInvalidRole) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return gate.MapError(err)
	}
	// The token is returned to the inviter for out-of-band delivery.
	return c.JSON(http.StatusCreated, echo.Map{
		"invitation_id": inv.ID,
		"email":         inv.Email,
		"role":          string(inv.Role),
		"token":         inv.Token,
		"expires_at":    inv.ExpiresAt,
	})
}

func (h *MembershipHandler) Accept(c echo.Context) error {
	p, ok := gate.CurrentPrincipal(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing or invalid authorization")
	}
	var req struct {
		Email string `json:"email"`
		Token string `json:"token"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "could not parse request body")
	}
	m, err := h.members.Accept(c.Request().Context(), p.UserID, req.Email, req.Token)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidInvitation):
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrInvitationExpired):
			return echo.NewHTTPError(http.StatusGone, err.Error())
		case errors.Is(err, service.ErrInvitationEmailMismatch):
			return echo.NewHTTPError(http.StatusForbidden, err.Error())
		case errors.Is(err, service.ErrAlreadyMember):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		default:
			return err
		}
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"org_id": m.TenantID,
		"role":   string(m.Role),
	})
}

func (h *MembershipHandler) ChangeRole(c echo.Context) error {
	var req struct {
		Role string `json:"role"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "could not parse request body")
	}
	m, err := h.members.ChangeRole(c.Request().Context(), c.Param("userID"), domain.Role(req.Role))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRole):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrMemberNotFound):
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrLastOwner):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		default:
			return gate.MapError(err)
		}
	}
	return c.JSON(http.StatusOK, echo.Map{
		"user_id": m.UserID,
		"role":    string(m.Role),
	})
}

func (h *MembershipHandler) Remove(c echo.Context) error {
	err := h.members.Remove(c.Request().Context(), c.Param("userID"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMemberNotFound):
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrLastOwner):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		default:
			return gate.MapError(err)
		}
	}
	return c.NoContent(http.StatusNoContent)
}
