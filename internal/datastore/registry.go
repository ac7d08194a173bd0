package datastore

// Registry records which collections are tenant-scoped and which are
// global (identity-provider-owned or process-wide). The distinction is
// explicit: a collection registered neither way is rejected, because
// guessing would either skip a required tenant filter or apply one to a
// table that has no tenant_id.
type Registry struct {
	scoped map[string]bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{scoped: make(map[string]bool)}
}

// TenantScoped registers collections whose every access must carry the
// active tenant's filter.
func (r *Registry) TenantScoped(names ...string) *Registry {
	for _, n := range names {
		r.scoped[n] = true
	}
	return r
}

// Global registers collections that pass through unmodified.
func (r *Registry) Global(names ...string) *Registry {
	for _, n := range names {
		r.scoped[n] = false
	}
	return r
}

// Lookup reports whether name is tenant-scoped and whether it is known.
func (r *Registry) Lookup(name string) (isScoped, known bool) {
	isScoped, known = r.scoped[name]
	return isScoped, known
}
