// Package billing receives billing provider webhooks and applies plan
// changes to tenants. Events arrive unauthenticated; a shared-secret HMAC
// signature over the raw body is the only trust anchor.
package billing

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"tenantplane/internal/audit"
	"tenantplane/internal/platform/logger"
	tenantdomain "tenantplane/internal/tenant/domain"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw request body.
const SignatureHeader = "X-Webhook-Signature"

var (
	ErrInvalidSignature = errors.New("webhook signature mismatch")
	ErrUnknownCustomer  = errors.New("no tenant for billing customer")
)

// Event is the subset of the provider payload we act on.
type Event struct {
	Type string    `json:"type"`
	Data EventData `json:"data"`
}

// EventData identifies the customer and the subscription state.
type EventData struct {
	CustomerID string `json:"customer_id"`
	Plan       string `json:"plan"`
	Status     string `json:"status"`
}

// TenantRepo is the minimal tenant access the webhook needs.
type TenantRepo interface {
	GetByBillingCustomer(ctx context.Context, customerID string) (*tenantdomain.Tenant, error)
	UpdatePlan(ctx context.Context, id string, plan tenantdomain.Plan, status tenantdomain.BillingStatus) error
}

// Webhook verifies and applies billing events.
type Webhook struct {
	tenants TenantRepo
	secret  []byte
	audit   audit.Emitter
}

// NewWebhook returns a Webhook verified against secret. auditLogger may be nil.
func NewWebhook(tenants TenantRepo, secret []byte, auditLogger audit.Emitter) *Webhook {
	return &Webhook{tenants: tenants, secret: secret, audit: auditLogger}
}

// Verify checks the hex HMAC-SHA256 signature over body in constant time.
func (w *Webhook) Verify(body []byte, signature string) error {
	mac := hmac.New(sha256.New, w.secret)
	mac.Write(body)
	want := mac.Sum(nil)
	got, err := hex.DecodeString(signature)
	if err != nil || !hmac.Equal(got, want) {
		return ErrInvalidSignature
	}
	return nil
}

// Apply resolves the event's customer to a tenant and updates its plan.
// Unknown event types are acknowledged and skipped; the provider retries
// rejected deliveries forever otherwise.
func (w *Webhook) Apply(ctx context.Context, ev *Event) error {
	var plan tenantdomain.Plan
	var status tenantdomain.BillingStatus
	switch ev.Type {
	case "subscription.updated":
		plan = tenantdomain.Plan(ev.Data.Plan)
		status = tenantdomain.BillingStatus(ev.Data.Status)
		if !plan.Valid() || !status.Valid() {
			return fmt.Errorf("event %s: invalid plan %q or status %q", ev.Type, ev.Data.Plan, ev.Data.Status)
		}
	case "subscription.canceled":
		plan = tenantdomain.PlanFree
		status = tenantdomain.BillingCanceled
	default:
		logger.L().Debug("ignoring billing event", zap.String("type", ev.Type))
		return nil
	}

	t, err := w.tenants.GetByBillingCustomer(ctx, ev.Data.CustomerID)
	if err != nil {
		return err
	}
	if t == nil {
		return ErrUnknownCustomer
	}
	if err := w.tenants.UpdatePlan(ctx, t.ID, plan, status); err != nil {
		return err
	}
	if w.audit != nil {
		// Provider-initiated change, no acting user.
		w.audit.LogEvent(ctx, t.ID, "", "billing.plan_changed", "tenants", t.ID,
			fmt.Sprintf(`{"from":%q,"to":%q,"status":%q}`, t.Plan, plan, status))
	}
	logger.L().Info("billing plan applied",
		zap.String("tenant_id", t.ID),
		zap.String("plan", string(plan)),
		zap.String("status", string(status)))
	return nil
}

// Handle is the echo handler for POST /webhooks/billing. Signature failures
// are 401; everything the provider should retry is a 5xx; handled and
// skipped events both acknowledge with {"received":true}.
func (w *Webhook) Handle(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable body")
	}
	if err := w.Verify(body, c.Request().Header.Get(SignatureHeader)); err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid signature")
	}
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed event")
	}
	if err := w.Apply(c.Request().Context(), &ev); err != nil {
		if errors.Is(err, ErrUnknownCustomer) {
			// Ack so the provider stops retrying a customer we will
			// never know about.
			logger.L().Warn("billing event for unknown customer",
				zap.String("customer_id", ev.Data.CustomerID))
			return c.JSON(http.StatusOK, map[string]bool{"received": true})
		}
		return err
	}
	return c.JSON(http.StatusOK, map[string]bool{"received": true})
}
