package datastore

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"tenantplane/internal/observability/metrics"
	"tenantplane/internal/platform/logger"
	"tenantplane/internal/platform/tenantctx"
)

// TenantColumn is the foreign-key column every tenant-scoped table carries.
const TenantColumn = "tenant_id"

// AuditEmitter records sensitive datastore operations. Best-effort; the
// emitter must never fail the operation it records.
type AuditEmitter interface {
	LogEvent(ctx context.Context, tenantID, userID, action, resource, resourceID, metadata string)
}

// TenantStore decorates a Datastore so that every operation on a
// tenant-scoped collection is constrained to the tenant bound in the
// request context.
//
// Reads AND-inject the tenant predicate after the caller's filter, so a
// caller-supplied filter can never widen the result set to other tenants.
// Inserts force the tenant id onto every row, overriding spoofed payload
// values. Updates and deletes scope their selection the same way, and an
// update that tries to set a different tenant id fails before the store is
// touched. With no bound context, every operation on a scoped collection
// fails with tenantctx.ErrMissingTenantContext and performs no store call.
type TenantStore struct {
	next  Datastore
	reg   *Registry
	audit AuditEmitter
}

// NewTenantStore wraps next with tenant enforcement per reg.
// audit may be nil; destructive operations are then only logged.
func NewTenantStore(next Datastore, reg *Registry, audit AuditEmitter) *TenantStore {
	return &TenantStore{next: next, reg: reg, audit: audit}
}

// scope resolves the collection's registration and, for scoped
// collections, the bound tenant context. A missing context on a scoped
// collection is an internal bug and is logged at Error.
func (s *TenantStore) scope(ctx context.Context, collection, action string) (tenantctx.Context, bool, error) {
	scoped, known := s.reg.Lookup(collection)
	if !known {
		return tenantctx.Context{}, false, fmt.Errorf("%w: %s", ErrUnknownCollection, collection)
	}
	if !scoped {
		return tenantctx.Context{}, false, nil
	}
	tc, err := tenantctx.Current(ctx)
	if err != nil {
		logger.FromContext(ctx).Error("tenant-scoped access without bound context",
			zap.String("resource", collection),
			zap.String("action", action),
			zap.Error(err))
		metrics.ObserveDatastoreOp(collection, action, "missing_context", 0)
		return tenantctx.Context{}, false, err
	}
	return tc, true, nil
}

func (s *TenantStore) observe(ctx context.Context, tc tenantctx.Context, collection, action string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	elapsed := time.Since(start)
	metrics.ObserveDatastoreOp(collection, action, outcome, elapsed)

	log := logger.FromContext(ctx).With(
		zap.String("resource", collection),
		zap.String("action", action),
		zap.String("tenant_id", tc.TenantID),
		zap.String("user_id", tc.UserID),
		zap.Duration("duration", elapsed),
	)
	if err != nil {
		log.Warn("datastore operation failed", zap.Error(err))
		return
	}
	log.Debug("datastore operation")
}

func (s *TenantStore) Get(ctx context.Context, collection string, filter Filter) (Row, error) {
	tc, scoped, err := s.scope(ctx, collection, "read")
	if err != nil {
		return nil, err
	}
	if scoped {
		filter = cloneFilter(filter)
		filter[TenantColumn] = tc.TenantID
	}
	start := time.Now()
	row, err := s.next.Get(ctx, collection, filter)
	s.observe(ctx, tc, collection, "read", start, err)
	return row, err
}

func (s *TenantStore) List(ctx context.Context, collection string, filter Filter, opts ListOptions) ([]Row, error) {
	tc, scoped, err := s.scope(ctx, collection, "list")
	if err != nil {
		return nil, err
	}
	if scoped {
		filter = cloneFilter(filter)
		filter[TenantColumn] = tc.TenantID
	}
	start := time.Now()
	rows, err := s.next.List(ctx, collection, filter, opts)
	s.observe(ctx, tc, collection, "list", start, err)
	return rows, err
}

func (s *TenantStore) Count(ctx context.Context, collection string, filter Filter) (int64, error) {
	tc, scoped, err := s.scope(ctx, collection, "count")
	if err != nil {
		return 0, err
	}
	if scoped {
		filter = cloneFilter(filter)
		filter[TenantColumn] = tc.TenantID
	}
	start := time.Now()
	n, err := s.next.Count(ctx, collection, filter)
	s.observe(ctx, tc, collection, "count", start, err)
	return n, err
}

func (s *TenantStore) Insert(ctx context.Context, collection string, values Values) error {
	tc, scoped, err := s.scope(ctx, collection, "create")
	if err != nil {
		return err
	}
	if scoped {
		values = cloneValues(values)
		values[TenantColumn] = tc.TenantID
	}
	start := time.Now()
	err = s.next.Insert(ctx, collection, values)
	s.observe(ctx, tc, collection, "create", start, err)
	return err
}

func (s *TenantStore) InsertMany(ctx context.Context, collection string, rows []Values) error {
	tc, scoped, err := s.scope(ctx, collection, "create")
	if err != nil {
		return err
	}
	if scoped {
		stamped := make([]Values, len(rows))
		for i, r := range rows {
			v := cloneValues(r)
			v[TenantColumn] = tc.TenantID
			stamped[i] = v
		}
		rows = stamped
	}
	start := time.Now()
	err = s.next.InsertMany(ctx, collection, rows)
	s.observe(ctx, tc, collection, "create", start, err)
	return err
}

func (s *TenantStore) Update(ctx context.Context, collection string, filter Filter, values Values) (int64, error) {
	tc, scoped, err := s.scope(ctx, collection, "update")
	if err != nil {
		return 0, err
	}
	if scoped {
		if target, ok := values[TenantColumn]; ok && fmt.Sprint(target) != tc.TenantID {
			logger.FromContext(ctx).Warn("cross-tenant mutation rejected",
				zap.String("resource", collection),
				zap.String("tenant_id", tc.TenantID),
				zap.String("user_id", tc.UserID),
				zap.Any("target_tenant_id", target))
			s.emitAudit(ctx, tc, "security.cross_tenant_mutation", collection, "",
				fmt.Sprintf(`{"target_tenant_id":%q}`, fmt.Sprint(target)))
			metrics.ObserveDatastoreOp(collection, "update", "cross_tenant", 0)
			return 0, ErrCrossTenantMutation
		}
		filter = cloneFilter(filter)
		filter[TenantColumn] = tc.TenantID
	}
	start := time.Now()
	n, err := s.next.Update(ctx, collection, filter, values)
	s.observe(ctx, tc, collection, "update", start, err)
	if err == nil && scoped && n > 1 {
		s.emitAudit(ctx, tc, collection+".bulk_update", collection, "",
			fmt.Sprintf(`{"rows":%d}`, n))
	}
	return n, err
}

func (s *TenantStore) Delete(ctx context.Context, collection string, filter Filter) (int64, error) {
	tc, scoped, err := s.scope(ctx, collection, "delete")
	if err != nil {
		return 0, err
	}
	if scoped {
		filter = cloneFilter(filter)
		filter[TenantColumn] = tc.TenantID
	}
	start := time.Now()
	n, err := s.next.Delete(ctx, collection, filter)
	s.observe(ctx, tc, collection, "delete", start, err)
	// A filter neutralized by the tenant scope matches nothing; only
	// deletes that removed rows are audited.
	if err == nil && scoped && n > 0 {
		id := ""
		if v, ok := filter["id"]; ok {
			id = fmt.Sprint(v)
		}
		s.emitAudit(ctx, tc, collection+".delete", collection, id,
			fmt.Sprintf(`{"rows":%d}`, n))
	}
	return n, err
}

func (s *TenantStore) emitAudit(ctx context.Context, tc tenantctx.Context, action, resource, resourceID, metadata string) {
	if s.audit == nil {
		return
	}
	s.audit.LogEvent(ctx, tc.TenantID, tc.UserID, action, resource, resourceID, metadata)
}
