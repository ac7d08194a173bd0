// Package server assembles the echo application: global middleware, public
// routes, and every feature handler behind its gates.
package server

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	audithandler "tenantplane/internal/audit/handler"
	"tenantplane/internal/billing"
	dashboardhandler "tenantplane/internal/dashboard/handler"
	healthhandler "tenantplane/internal/health/handler"
	identityhandler "tenantplane/internal/identity/handler"
	membershiphandler "tenantplane/internal/membership/handler"
	"tenantplane/internal/observability/metrics"
	"tenantplane/internal/platform/gate"
	"tenantplane/internal/platform/logger"
	tenanthandler "tenantplane/internal/tenant/handler"
)

type clientIPKey struct{}

// ClientIPFromContext returns the request's client IP bound by the server
// middleware, or "". The audit logger uses it to stamp entries.
func ClientIPFromContext(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey{}).(string)
	return ip
}

func clientIPMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := context.WithValue(c.Request().Context(), clientIPKey{}, c.RealIP())
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// Deps holds everything the HTTP server serves.
type Deps struct {
	Gate       *gate.Gate
	Auth       *identityhandler.AuthHandler
	Tenants    *tenanthandler.TenantHandler
	Members    *membershiphandler.MembershipHandler
	Dashboards *dashboardhandler.DashboardHandler
	AuditLogs  *audithandler.AuditHandler
	Health     *healthhandler.HealthHandler
	Billing    *billing.Webhook
}

// New builds the echo instance with global middleware and all routes
// registered. Order matters: recovery first, then request id, request
// logging, and metrics, so every later layer sees the request id.
func New(deps Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(clientIPMiddleware())
	e.Use(requestLogger())
	e.Use(metrics.Middleware())

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.POST("/webhooks/billing", deps.Billing.Handle)
	deps.Health.Routes(e)

	deps.Auth.Routes(e, deps.Gate)
	deps.Tenants.Routes(e, deps.Gate)
	deps.Members.Routes(e, deps.Gate)
	deps.Dashboards.Routes(e, deps.Gate)
	deps.AuditLogs.Routes(e, deps.Gate)

	return e
}

// requestLogger logs one line per request with the fields we page on.
func requestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			req := c.Request()
			res := c.Response()
			fields := []zap.Field{
				zap.String("request_id", res.Header().Get(echo.HeaderXRequestID)),
				zap.String("method", req.Method),
				zap.String("path", req.URL.Path),
				zap.Int("status", res.Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("remote_ip", c.RealIP()),
			}
			switch {
			case res.Status >= 500:
				logger.L().Error("request", fields...)
			case res.Status >= 400:
				logger.L().Warn("request", fields...)
			default:
				logger.L().Info("request", fields...)
			}
			return nil
		}
	}
}
