package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"tenantplane/internal/identity/service"
	"tenantplane/internal/platform/gate"
)

// AuthHandler exposes register, login, logout, tenant switching, and the
// password reset and email verification flows over HTTP.
type AuthHandler struct {
	auth     *service.AuthService
	recovery *service.RecoveryService
}

// NewAuthHandler returns an AuthHandler over auth and recovery.
func NewAuthHandler(auth *service.AuthService, recovery *service.RecoveryService) *AuthHandler {
	return &AuthHandler{auth: auth, recovery: recovery}
}

// Routes registers the handler's routes. Everything except logout and
// tenant switching is public; the recovery routes authenticate by token
// possession, not by session.
func (h *AuthHandler) Routes(e *echo.Echo, g *gate.Gate) {
	e.POST("/auth/register", h.Register)
	e.POST("/auth/login", h.Login)
	e.POST("/auth/forgot-password", h.ForgotPassword)
	e.POST("/auth/verify-reset-token", h.VerifyResetToken)
	e.POST("/auth/reset-password", h.ResetPassword)
	e.POST("/auth/verify-email", h.VerifyEmail)
	e.POST("/auth/send-verification-email", h.SendVerificationEmail)

	authed := e.Group("", g.Authenticated())
	authed.POST("/auth/logout", h.Logout)
	authed.POST("/orgs/active", h.SetActiveTenant)
}

func (h *AuthHandler) Register(c echo.Context) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Name     string `json:"name"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "could not parse request body")
	}
	res, err := h.auth.Register(c.Request().Context(), req.Email, req.Password, req.Name)
	if err != nil {
		if errors.Is(err, service.ErrEmailAlreadyRegistered) {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	// Verification is best effort at signup; the resend route covers
	// failed deliveries.
	if h.recovery != nil {
		_ = h.recovery.RequestEmailVerification(c.Request().Context(), req.Email)
	}
	return c.JSON(http.StatusCreated, echo.Map{"user_id": res.UserID})
}

// ForgotPassword issues a password reset token. The response is the same
// whether or not the email has an account.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "could not parse request body")
	}
	if req.Email == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email is required")
	}
	if err := h.recovery.RequestPasswordReset(c.Request().Context(), req.Email); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message": "if an account exists with that email, a password reset link has been sent",
	})
}

// VerifyResetToken checks a reset token without consuming it, so reset
// pages can reject dead links before asking for a new password.
func (h *AuthHandler) VerifyResetToken(c echo.Context) error {
	var req struct {
		Token string `json:"token"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "could not parse request body")
	}
	if err := h.recovery.VerifyResetToken(c.Request().Context(), req.Token); err != nil {
		if errors.Is(err, service.ErrInvalidToken) {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid or expired token")
		}
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"valid": true})
}

func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "could not parse request body")
	}
	if req.Token == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "token and password are required")
	}
	if err := h.recovery.ResetPassword(c.Request().Context(), req.Token, req.Password); err != nil {
		if errors.Is(err, service.ErrInvalidToken) {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid or expired token")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "password reset successfully"})
}

func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	var req struct {
		Token string `json:"token"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "could not parse request body")
	}
	if req.Token == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "verification token is required")
	}
	if err := h.recovery.VerifyEmail(c.Request().Context(), req.Token); err != nil {
		if errors.Is(err, service.ErrInvalidToken) {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid or expired token")
		}
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "email verified successfully"})
}

// SendVerificationEmail reissues a verification token. Same silent-success
// contract as ForgotPassword.
func (h *AuthHandler) SendVerificationEmail(c echo.Context) error {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "could not parse request body")
	}
	if req.Email == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email is required")
	}
	if err := h.recovery.RequestEmailVerification(c.Request().Context(), req.Email); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message": "if an account exists with that email, a verification link has been sent",
	})
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "could not parse request body")
	}
	res, err := h.auth.Login(c.Request().Context(), req.Email, req.Password, c.RealIP())
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
		}
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"token":            res.Token,
		"expires_at":       res.ExpiresAt,
		"user_id":          res.UserID,
		"active_tenant_id": res.ActiveTenantID,
	})
}

func (h *AuthHandler) Logout(c echo.Context) error {
	p, ok := gate.CurrentPrincipal(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing or invalid authorization")
	}
	if err := h.auth.Logout(c.Request().Context(), p.SessionID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// SetActiveTenant switches which organization the session acts in. All
// subsequent tenant-bound requests resolve against the new pointer.
func (h *AuthHandler) SetActiveTenant(c echo.Context) error {
	p, ok := gate.CurrentPrincipal(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing or invalid authorization")
	}
	var req struct {
		TenantID string `json:"org_id"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "could not parse request body")
	}
	err := h.auth.SetActiveTenant(c.Request().Context(), p.SessionID, p.UserID, req.TenantID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotTenantMember):
			return echo.NewHTTPError(http.StatusForbidden, "not a member of the organization")
		case errors.Is(err, service.ErrSessionNotFound):
			return echo.NewHTTPError(http.StatusUnauthorized, "session expired or revoked")
		default:
			return err
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"active_tenant_id": req.TenantID})
}
