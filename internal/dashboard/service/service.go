package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"tenantplane/internal/dashboard/domain"
	"tenantplane/internal/datastore"
)

// Collection is the datastore collection dashboards live in. It must be
// registered as tenant scoped.
const Collection = "dashboards"

// ErrDashboardNotFound is returned when no dashboard matches in the
// caller's tenant.
var ErrDashboardNotFound = errors.New("dashboard not found")

// Service implements dashboard CRUD on top of the tenant-scoped datastore.
// It never touches tenant_id itself; the datastore injects and enforces it.
type Service struct {
	store datastore.Datastore
}

// NewService returns a dashboard Service over store.
func NewService(store datastore.Datastore) *Service {
	return &Service{store: store}
}

// Create persists a new dashboard owned by userID's active tenant.
func (s *Service) Create(ctx context.Context, userID, name, layout string) (*domain.Dashboard, error) {
	d := &domain.Dashboard{
		ID:        uuid.New().String(),
		Name:      name,
		Layout:    layout,
		CreatedBy: userID,
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	d.CreatedAt = now
	d.UpdatedAt = now

	err := s.store.Insert(ctx, Collection, datastore.Values{
		"id":         d.ID,
		"name":       d.Name,
		"layout":     d.Layout,
		"created_by": d.CreatedBy,
		"created_at": d.CreatedAt,
		"updated_at": d.UpdatedAt,
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, d.ID)
}

// Get returns the dashboard by id within the caller's tenant.
func (s *Service) Get(ctx context.Context, id string) (*domain.Dashboard, error) {
	row, err := s.store.Get(ctx, Collection, datastore.Filter{"id": id})
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, ErrDashboardNotFound
	}
	return fromRow(row), nil
}

// List returns the tenant's dashboards, newest first.
func (s *Service) List(ctx context.Context, limit, offset uint64) ([]*domain.Dashboard, error) {
	if limit == 0 || limit > 100 {
		limit = 100
	}
	rows, err := s.store.List(ctx, Collection, datastore.Filter{}, datastore.ListOptions{
		OrderBy: "created_at",
		Desc:    true,
		Limit:   limit,
		Offset:  offset,
	})
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Dashboard, 0, len(rows))
	for _, r := range rows {
		out = append(out, fromRow(r))
	}
	return out, nil
}

// Count returns the number of dashboards in the caller's tenant.
func (s *Service) Count(ctx context.Context) (int64, error) {
	return s.store.Count(ctx, Collection, datastore.Filter{})
}

// Update changes the dashboard's name and/or layout. Empty arguments leave
// the field untouched.
func (s *Service) Update(ctx context.Context, id, name, layout string) (*domain.Dashboard, error) {
	values := datastore.Values{"updated_at": time.Now().UTC()}
	if name != "" {
		values["name"] = name
	}
	if layout != "" {
		values["layout"] = layout
	}
	n, err := s.store.Update(ctx, Collection, datastore.Filter{"id": id}, values)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrDashboardNotFound
	}
	return s.Get(ctx, id)
}

// Delete removes the dashboard from the caller's tenant.
func (s *Service) Delete(ctx context.Context, id string) error {
	n, err := s.store.Delete(ctx, Collection, datastore.Filter{"id": id})
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrDashboardNotFound
	}
	return nil
}

func fromRow(r datastore.Row) *domain.Dashboard {
	return &domain.Dashboard{
		ID:        rowString(r, "id"),
		TenantID:  rowString(r, "tenant_id"),
		Name:      rowString(r, "name"),
		Layout:    rowString(r, "layout"),
		CreatedBy: rowString(r, "created_by"),
		CreatedAt: rowTime(r, "created_at"),
		UpdatedAt: rowTime(r, "updated_at"),
	}
}

func rowString(r datastore.Row, key string) string {
	s, _ := r[key].(string)
	return s
}

func rowTime(r datastore.Row, key string) time.Time {
	switch v := r[key].(type) {
	case time.Time:
		return v
	case string:
		t, _ := time.Parse(time.RFC3339Nano, v)
		return t
	default:
		return time.Time{}
	}
}
