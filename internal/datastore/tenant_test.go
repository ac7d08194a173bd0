package datastore

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"tenantplane/internal/membership/domain"
	"tenantplane/internal/platform/tenantctx"
)

// fakeStore is an in-memory Datastore that records how many times it was
// reached, so tests can assert fail-closed paths never touch the store.
type fakeStore struct {
	calls int
	rows  map[string][]Row
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: make(map[string][]Row)}
}

func matches(r Row, f Filter) bool {
	for k, v := range f {
		if fmt.Sprint(r[k]) != fmt.Sprint(v) {
			return false
		}
	}
	return true
}

func (s *fakeStore) Get(ctx context.Context, collection string, filter Filter) (Row, error) {
	s.calls++
	for _, r := range s.rows[collection] {
		if matches(r, filter) {
			return r, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) List(ctx context.Context, collection string, filter Filter, opts ListOptions) ([]Row, error) {
	s.calls++
	var out []Row
	for _, r := range s.rows[collection] {
		if matches(r, filter) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *fakeStore) Count(ctx context.Context, collection string, filter Filter) (int64, error) {
	s.calls++
	var n int64
	for _, r := range s.rows[collection] {
		if matches(r, filter) {
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) Insert(ctx context.Context, collection string, values Values) error {
	s.calls++
	s.rows[collection] = append(s.rows[collection], Row(values))
	return nil
}

func (s *fakeStore) InsertMany(ctx context.Context, collection string, rows []Values) error {
	s.calls++
	for _, r := range rows {
		s.rows[collection] = append(s.rows[collection], Row(r))
	}
	return nil
}

func (s *fakeStore) Update(ctx context.Context, collection string, filter Filter, values Values) (int64, error) {
	s.calls++
	var n int64
	for _, r := range s.rows[collection] {
		if matches(r, filter) {
			for k, v := range values {
				r[k] = v
			}
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) Delete(ctx context.Context, collection string, filter Filter) (int64, error) {
	s.calls++
	var kept []Row
	var n int64
	for _, r := range s.rows[collection] {
		if matches(r, filter) {
			n++
			continue
		}
		kept = append(kept, r)
	}
	s.rows[collection] = kept
	return n, nil
}

// recordingEmitter captures audit events for assertions.
type recordingEmitter struct {
	actions []string
}

func (e *recordingEmitter) LogEvent(ctx context.Context, tenantID, userID, action, resource, resourceID, metadata string) {
	e.actions = append(e.actions, action)
}

func testRegistry() *Registry {
	return NewRegistry().
		TenantScoped("dashboards", "integrations").
		Global("users")
}

func tenantA(ctx context.Context) context.Context {
	return tenantctx.With(ctx, tenantctx.Context{TenantID: "t-acme", UserID: "u-1", Role: domain.RoleOwner})
}

func tenantB(ctx context.Context) context.Context {
	return tenantctx.With(ctx, tenantctx.Context{TenantID: "t-techstart", UserID: "u-2", Role: domain.RoleOwner})
}

func TestTenantStore_FailsClosedWithoutContext(t *testing.T) {
	fake := newFakeStore()
	ts := NewTenantStore(fake, testRegistry(), nil)
	ctx := context.Background()

	ops := map[string]func() error{
		"get":        func() error { _, err := ts.Get(ctx, "dashboards", Filter{"id": "d1"}); return err },
		"list":       func() error { _, err := ts.List(ctx, "dashboards", nil, ListOptions{}); return err },
		"count":      func() error { _, err := ts.Count(ctx, "dashboards", nil); return err },
		"insert":     func() error { return ts.Insert(ctx, "dashboards", Values{"id": "d1"}) },
		"insertMany": func() error { return ts.InsertMany(ctx, "dashboards", []Values{{"id": "d1"}}) },
		"update": func() error {
			_, err := ts.Update(ctx, "dashboards", Filter{"id": "d1"}, Values{"name": "x"})
			return err
		},
		"delete": func() error { _, err := ts.Delete(ctx, "dashboards", Filter{"id": "d1"}); return err },
	}
	for name, op := range ops {
		if err := op(); !errors.Is(err, tenantctx.ErrMissingTenantContext) {
			t.Errorf("%s without context: err = %v, want ErrMissingTenantContext", name, err)
		}
	}
	if fake.calls != 0 {
		t.Errorf("underlying store reached %d times without context, want 0", fake.calls)
	}
}

func TestTenantStore_ReadIsolationBetweenTenants(t *testing.T) {
	fake := newFakeStore()
	ts := NewTenantStore(fake, testRegistry(), nil)

	ctxA := tenantA(context.Background())
	ctxB := tenantB(context.Background())

	if err := ts.Insert(ctxA, "dashboards", Values{"id": "d1", "name": "Exec Overview"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	rowsA, err := ts.List(ctxA, "dashboards", nil, ListOptions{})
	if err != nil {
		t.Fatalf("List under acme: %v", err)
	}
	if len(rowsA) != 1 || rowsA[0]["name"] != "Exec Overview" {
		t.Errorf("acme sees %v, want one row named Exec Overview", rowsA)
	}

	rowsB, err := ts.List(ctxB, "dashboards", nil, ListOptions{})
	if err != nil {
		t.Fatalf("List under techstart: %v", err)
	}
	if len(rowsB) != 0 {
		t.Errorf("techstart sees %d rows, want 0", len(rowsB))
	}
}

func TestTenantStore_CallerFilterCannotWidenScope(t *testing.T) {
	fake := newFakeStore()
	ts := NewTenantStore(fake, testRegistry(), nil)

	ctxA := tenantA(context.Background())
	if err := ts.Insert(ctxA, "dashboards", Values{"id": "d1", "name": "Exec Overview"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	// A filter naming another tenant is overridden by the injected predicate.
	rows, err := ts.List(tenantB(context.Background()), "dashboards", Filter{TenantColumn: "t-acme"}, ListOptions{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("caller filter widened scope: got %d rows, want 0", len(rows))
	}
}

func TestTenantStore_InsertOverridesSpoofedTenantID(t *testing.T) {
	fake := newFakeStore()
	ts := NewTenantStore(fake, testRegistry(), nil)

	ctxA := tenantA(context.Background())
	if err := ts.Insert(ctxA, "dashboards", Values{"id": "d1", TenantColumn: "t-evil"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	row, err := ts.Get(ctxA, "dashboards", Filter{"id": "d1"})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if row == nil || row[TenantColumn] != "t-acme" {
		t.Errorf("stored tenant_id = %v, want t-acme", row)
	}
}

func TestTenantStore_CrossTenantUpdateRejected(t *testing.T) {
	fake := newFakeStore()
	emitter := &recordingEmitter{}
	ts := NewTenantStore(fake, testRegistry(), emitter)

	ctxA := tenantA(context.Background())
	if err := ts.Insert(ctxA, "dashboards", Values{"id": "d1", "name": "Exec Overview"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	callsBefore := fake.calls

	_, err := ts.Update(ctxA, "dashboards", Filter{"id": "d1"}, Values{TenantColumn: "t-techstart"})
	if !errors.Is(err, ErrCrossTenantMutation) {
		t.Fatalf("cross-tenant update: err = %v, want ErrCrossTenantMutation", err)
	}
	if fake.calls != callsBefore {
		t.Error("cross-tenant update reached the underlying store")
	}

	row, err := ts.Get(ctxA, "dashboards", Filter{"id": "d1"})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if row[TenantColumn] != "t-acme" {
		t.Errorf("row tenant_id = %v, want unchanged t-acme", row[TenantColumn])
	}

	found := false
	for _, a := range emitter.actions {
		if a == "security.cross_tenant_mutation" {
			found = true
		}
	}
	if !found {
		t.Errorf("audit actions = %v, want security.cross_tenant_mutation", emitter.actions)
	}
}

func TestTenantStore_UpdateToSameTenantAllowed(t *testing.T) {
	fake := newFakeStore()
	ts := NewTenantStore(fake, testRegistry(), nil)

	ctxA := tenantA(context.Background())
	if err := ts.Insert(ctxA, "dashboards", Values{"id": "d1", "name": "Old"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	n, err := ts.Update(ctxA, "dashboards", Filter{"id": "d1"}, Values{"name": "New", TenantColumn: "t-acme"})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if n != 1 {
		t.Errorf("rows affected = %d, want 1", n)
	}
}

func TestTenantStore_UpdateScopedToTenant(t *testing.T) {
	fake := newFakeStore()
	ts := NewTenantStore(fake, testRegistry(), nil)

	ctxA := tenantA(context.Background())
	ctxB := tenantB(context.Background())
	if err := ts.Insert(ctxA, "dashboards", Values{"id": "d1", "name": "Acme Board"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	// Same id from another tenant's context must match nothing.
	n, err := ts.Update(ctxB, "dashboards", Filter{"id": "d1"}, Values{"name": "Stolen"})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if n != 0 {
		t.Errorf("rows affected = %d, want 0", n)
	}

	row, _ := ts.Get(ctxA, "dashboards", Filter{"id": "d1"})
	if row["name"] != "Acme Board" {
		t.Errorf("name = %v, want Acme Board", row["name"])
	}
}

func TestTenantStore_DeleteScopedAndAudited(t *testing.T) {
	fake := newFakeStore()
	emitter := &recordingEmitter{}
	ts := NewTenantStore(fake, testRegistry(), emitter)

	ctxA := tenantA(context.Background())
	ctxB := tenantB(context.Background())
	if err := ts.Insert(ctxA, "dashboards", Values{"id": "d1"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	n, err := ts.Delete(ctxB, "dashboards", Filter{"id": "d1"})
	if err != nil {
		t.Fatalf("Delete under techstart: %v", err)
	}
	if n != 0 {
		t.Errorf("techstart deleted %d rows of acme, want 0", n)
	}

	n, err = ts.Delete(ctxA, "dashboards", Filter{"id": "d1"})
	if err != nil {
		t.Fatalf("Delete under acme: %v", err)
	}
	if n != 1 {
		t.Errorf("acme deleted %d rows, want 1", n)
	}

	found := false
	for _, a := range emitter.actions {
		if a == "dashboards.delete" {
			found = true
		}
	}
	if !found {
		t.Errorf("audit actions = %v, want dashboards.delete", emitter.actions)
	}
}

func TestTenantStore_DeleteRemovingNothingNotAudited(t *testing.T) {
	fake := newFakeStore()
	emitter := &recordingEmitter{}
	ts := NewTenantStore(fake, testRegistry(), emitter)

	ctxA := tenantA(context.Background())
	ctxB := tenantB(context.Background())
	if err := ts.Insert(ctxA, "dashboards", Values{"id": "d1"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	emitter.actions = nil

	// techstart's delete of acme's row is neutralized by the injected
	// tenant filter; a delete that removed nothing is not an event.
	n, err := ts.Delete(ctxB, "dashboards", Filter{"id": "d1"})
	if err != nil {
		t.Fatalf("Delete under techstart: %v", err)
	}
	if n != 0 {
		t.Fatalf("rows affected = %d, want 0", n)
	}
	for _, a := range emitter.actions {
		if a == "dashboards.delete" {
			t.Errorf("no-op delete must not be audited, got actions %v", emitter.actions)
		}
	}

	n, err = ts.Delete(ctxB, "dashboards", Filter{"id": "missing"})
	if err != nil {
		t.Fatalf("Delete of missing row: %v", err)
	}
	if n != 0 {
		t.Fatalf("rows affected = %d, want 0", n)
	}
	if len(emitter.actions) != 0 {
		t.Errorf("audit actions = %v, want none for no-op deletes", emitter.actions)
	}
}

func TestTenantStore_RoundTripSameTenant(t *testing.T) {
	fake := newFakeStore()
	ts := NewTenantStore(fake, testRegistry(), nil)

	ctxA := tenantA(context.Background())
	if err := ts.Insert(ctxA, "dashboards", Values{"id": "d1", "name": "Exec Overview"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	row, err := ts.Get(ctxA, "dashboards", Filter{"id": "d1"})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if row == nil {
		t.Fatal("round-trip read returned no row")
	}
	if row[TenantColumn] != "t-acme" {
		t.Errorf("tenant_id = %v, want t-acme", row[TenantColumn])
	}
}

func TestTenantStore_GlobalCollectionPassesThrough(t *testing.T) {
	fake := newFakeStore()
	ts := NewTenantStore(fake, testRegistry(), nil)

	// No tenant context: global collections still work.
	ctx := context.Background()
	if err := ts.Insert(ctx, "users", Values{"id": "u-1", "email": "a@example.com"}); err != nil {
		t.Fatalf("Insert global: %v", err)
	}
	row, err := ts.Get(ctx, "users", Filter{"id": "u-1"})
	if err != nil {
		t.Fatalf("Get global: %v", err)
	}
	if row == nil {
		t.Fatal("global row not found")
	}
	if _, stamped := row[TenantColumn]; stamped {
		t.Error("global insert was stamped with a tenant id")
	}
}

func TestTenantStore_UnknownCollectionRejected(t *testing.T) {
	fake := newFakeStore()
	ts := NewTenantStore(fake, testRegistry(), nil)

	ctxA := tenantA(context.Background())
	if _, err := ts.Get(ctxA, "mystery", Filter{"id": "x"}); !errors.Is(err, ErrUnknownCollection) {
		t.Errorf("unknown collection: err = %v, want ErrUnknownCollection", err)
	}
	if fake.calls != 0 {
		t.Errorf("underlying store reached for unknown collection")
	}
}

func TestTenantStore_BulkUpdateAudited(t *testing.T) {
	fake := newFakeStore()
	emitter := &recordingEmitter{}
	ts := NewTenantStore(fake, testRegistry(), emitter)

	ctxA := tenantA(context.Background())
	for i := 0; i < 3; i++ {
		if err := ts.Insert(ctxA, "dashboards", Values{"id": fmt.Sprintf("d%d", i), "archived": false}); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	n, err := ts.Update(ctxA, "dashboards", Filter{"archived": false}, Values{"archived": true})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if n != 3 {
		t.Fatalf("rows affected = %d, want 3", n)
	}

	found := false
	for _, a := range emitter.actions {
		if a == "dashboards.bulk_update" {
			found = true
		}
	}
	if !found {
		t.Errorf("audit actions = %v, want dashboards.bulk_update", emitter.actions)
	}
}
