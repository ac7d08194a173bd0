// Package gate implements the layered request gates: authentication,
// tenant binding, and role checks. Each gate is an echo middleware; a
// request only reaches a handler after every gate on its route passed.
package gate

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"tenantplane/internal/datastore"
	membershipdomain "tenantplane/internal/membership/domain"
	membershipservice "tenantplane/internal/membership/service"
	"tenantplane/internal/platform/logger"
	"tenantplane/internal/platform/tenantctx"
	"tenantplane/internal/security"
	sessiondomain "tenantplane/internal/session/domain"
)

const bearerPrefix = "bearer "

// ErrRoleInsufficient is returned when the caller's role is not in the
// allowed set for the route.
var ErrRoleInsufficient = errors.New("role not permitted for this operation")

// Principal identifies the authenticated caller of a request.
type Principal struct {
	UserID         string
	SessionID      string
	ActiveTenantID string
}

type principalKey struct{}

// WithPrincipal returns a context carrying the principal.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// CurrentPrincipal returns the authenticated principal bound to ctx.
func CurrentPrincipal(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// SessionStore is the minimal session access the gate needs.
type SessionStore interface {
	GetByID(ctx context.Context, id string) (*sessiondomain.Session, error)
	UpdateLastSeen(ctx context.Context, id string, at time.Time) error
}

// TenantResolver resolves a user's claimed active tenant into a verified
// tenant context.
type TenantResolver interface {
	Resolve(ctx context.Context, userID, activeTenantID, operation string) (tenantctx.Context, error)
}

// Gate holds the dependencies shared by the middleware layers.
type Gate struct {
	tokens   *security.TokenProvider
	sessions SessionStore
	resolver TenantResolver
}

// New returns a Gate over the given token provider, session store, and
// resolver.
func New(tokens *security.TokenProvider, sessions SessionStore, resolver TenantResolver) *Gate {
	return &Gate{tokens: tokens, sessions: sessions, resolver: resolver}
}

// Authenticated validates the Bearer session token, loads the session row,
// and binds the Principal to the request context. Revoked and expired
// sessions are rejected even when the token itself is still valid.
func (g *Gate) Authenticated() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := extractBearer(c.Request().Header.Get(echo.HeaderAuthorization))
			if token == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing or invalid authorization")
			}
			sessionID, userID, err := g.tokens.ValidateSession(token)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing or invalid authorization")
			}
			ctx := c.Request().Context()
			sess, err := g.sessions.GetByID(ctx, sessionID)
			if err != nil {
				return err
			}
			now := time.Now().UTC()
			if sess == nil || sess.UserID != userID || !sess.Usable(now) {
				return echo.NewHTTPError(http.StatusUnauthorized, "session expired or revoked")
			}
			// Best effort; a failed touch must not fail the request.
			if err := g.sessions.UpdateLastSeen(ctx, sessionID, now); err != nil {
				logger.L().Warn("session touch failed", zap.String("session_id", sessionID), zap.Error(err))
			}

			p := Principal{UserID: userID, SessionID: sessionID, ActiveTenantID: sess.ActiveTenantID}
			c.SetRequest(c.Request().WithContext(WithPrincipal(ctx, p)))
			return next(c)
		}
	}
}

// TenantBound resolves the session's active tenant through the membership
// resolver and binds the verified tenant context to the request. Routes
// behind this gate can rely on tenantctx.Current succeeding.
func (g *Gate) TenantBound() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			p, ok := CurrentPrincipal(ctx)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing or invalid authorization")
			}
			operation := c.Request().Method + " " + c.Path()
			tc, err := g.resolver.Resolve(ctx, p.UserID, p.ActiveTenantID, operation)
			if err != nil {
				return MapError(err)
			}
			c.SetRequest(c.Request().WithContext(tenantctx.With(ctx, tc)))
			return next(c)
		}
	}
}

// RequireRole allows the request only when the bound tenant context carries
// one of the given roles. There is no implicit hierarchy; every route names
// its allowed set explicitly.
func RequireRole(roles ...membershipdomain.Role) echo.MiddlewareFunc {
	allowed := make(map[membershipdomain.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tc, err := tenantctx.Current(c.Request().Context())
			if err != nil {
				return MapError(err)
			}
			if !allowed[tc.Role] {
				return MapError(ErrRoleInsufficient)
			}
			return next(c)
		}
	}
}

// MapError converts service sentinel errors into HTTP errors. Unmapped
// errors pass through for echo's default 500 handling.
func MapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, tenantctx.ErrMissingTenantContext):
		// A handler behind TenantBound should never see this; treat it
		// as a server fault, never as a tenant data response.
		logger.L().Error("request reached datastore without tenant context", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	case errors.Is(err, membershipservice.ErrNoActiveTenant):
		return echo.NewHTTPError(http.StatusPreconditionFailed, "no active organization selected")
	case errors.Is(err, membershipservice.ErrForbiddenMembership):
		return echo.NewHTTPError(http.StatusForbidden, "not a member of the active organization")
	case errors.Is(err, datastore.ErrCrossTenantMutation):
		return echo.NewHTTPError(http.StatusForbidden, "cross-tenant mutation rejected")
	case errors.Is(err, ErrRoleInsufficient):
		return echo.NewHTTPError(http.StatusForbidden, "insufficient role")
	case errors.Is(err, datastore.ErrUnknownCollection):
		return echo.NewHTTPError(http.StatusNotFound, "unknown collection")
	default:
		return err
	}
}

func extractBearer(header string) string {
	v := strings.TrimSpace(header)
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}
