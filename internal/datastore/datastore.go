// Package datastore provides a generic CRUD client over named collections
// and a tenant-enforcing decorator around it.
//
// Handlers and services never talk to the underlying store directly; they
// go through TenantStore, which injects the active tenant into every
// operation on a tenant-scoped collection and fails closed when no tenant
// context is bound.
package datastore

import (
	"context"
	"errors"
)

var (
	// ErrCrossTenantMutation is returned when an update tries to move a row
	// to a different tenant. Rows never change tenants.
	ErrCrossTenantMutation = errors.New("cross-tenant mutation rejected")

	// ErrUnknownCollection is returned for collections not registered as
	// either tenant-scoped or global. Unregistered access fails closed.
	ErrUnknownCollection = errors.New("collection not registered")
)

// Row is a single record keyed by column name.
type Row map[string]any

// Filter is a conjunction of field = value predicates.
type Filter map[string]any

// Values holds column values for inserts and updates.
type Values map[string]any

// ListOptions controls ordering and pagination for List.
type ListOptions struct {
	OrderBy string
	Desc    bool
	Limit   uint64
	Offset  uint64
}

// Datastore is the minimal CRUD contract the interception layer decorates.
// Get returns (nil, nil) when no row matches; errors are database failures.
type Datastore interface {
	Get(ctx context.Context, collection string, filter Filter) (Row, error)
	List(ctx context.Context, collection string, filter Filter, opts ListOptions) ([]Row, error)
	Count(ctx context.Context, collection string, filter Filter) (int64, error)
	Insert(ctx context.Context, collection string, values Values) error
	InsertMany(ctx context.Context, collection string, rows []Values) error
	Update(ctx context.Context, collection string, filter Filter, values Values) (int64, error)
	Delete(ctx context.Context, collection string, filter Filter) (int64, error)
}

func cloneFilter(f Filter) Filter {
	out := make(Filter, len(f)+1)
	for k, v := range f {
		out[k] = v
	}
	return out
}

func cloneValues(v Values) Values {
	out := make(Values, len(v)+1)
	for k, val := range v {
		out[k] = val
	}
	return out
}
