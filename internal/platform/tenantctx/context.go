// Package tenantctx carries the active tenant context for one logical
// operation (an HTTP request or a background job) through context.Context.
//
// The context is bound once, by the access gate after tenant resolution,
// and read by every layer beneath without parameter threading. Reading it
// when nothing is bound is an error, never a zero value: unscoped access
// to tenant data must fail loudly rather than silently see all tenants.
package tenantctx

import (
	"context"
	"errors"

	"tenantplane/internal/membership/domain"
)

// ErrMissingTenantContext is returned by Current when no tenant context is
// bound. It always indicates a programming error (a tenant-scoped code path
// reached without going through the tenant-bound gate) and must fail the
// whole operation.
var ErrMissingTenantContext = errors.New("no tenant context bound for this operation")

// Context identifies the tenant, user, and role active for one operation.
// It is transient and owned by that operation; it must never be stored in
// process-wide state or reused across requests.
type Context struct {
	TenantID  string
	UserID    string
	Role      domain.Role
	Operation string
}

type contextKey struct{}

var tenantKey contextKey

// With returns a context with tc bound for the dynamic extent of the
// operation. Everything downstream of the returned context, including
// goroutines and continuations resumed after I/O, observes tc; concurrent
// operations with their own bound contexts are unaffected.
func With(ctx context.Context, tc Context) context.Context {
	return context.WithValue(ctx, tenantKey, tc)
}

// Current returns the tenant context bound by the nearest enclosing With.
// Fails closed with ErrMissingTenantContext when none is bound.
func Current(ctx context.Context) (Context, error) {
	tc, ok := ctx.Value(tenantKey).(Context)
	if !ok || tc.TenantID == "" {
		return Context{}, ErrMissingTenantContext
	}
	return tc, nil
}

// IsBound reports whether a tenant context is bound. Intended for logging
// paths that must not fail; enforcement paths use Current.
func IsBound(ctx context.Context) bool {
	_, err := Current(ctx)
	return err == nil
}
