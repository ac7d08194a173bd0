package datastore

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	sq "github.com/Masterminds/squirrel"
)

var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// SQLStore implements Datastore over database/sql with Postgres
// placeholders. Collections map one-to-one onto table names; names are
// validated because they are interpolated into SQL text.
type SQLStore struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

// NewSQLStore returns a Datastore backed by db.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func validIdent(name string) error {
	if !identPattern.MatchString(name) {
		return fmt.Errorf("invalid collection or column name %q", name)
	}
	return nil
}

func validFilter(f Filter) error {
	for k := range f {
		if err := validIdent(k); err != nil {
			return err
		}
	}
	return nil
}

func validValues(v Values) error {
	for k := range v {
		if err := validIdent(k); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the first row matching filter, or (nil, nil) when none does.
func (s *SQLStore) Get(ctx context.Context, collection string, filter Filter) (Row, error) {
	rows, err := s.List(ctx, collection, filter, ListOptions{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// List returns all rows matching filter, honoring opts.
func (s *SQLStore) List(ctx context.Context, collection string, filter Filter, opts ListOptions) ([]Row, error) {
	if err := validIdent(collection); err != nil {
		return nil, err
	}
	if err := validFilter(filter); err != nil {
		return nil, err
	}

	q := s.builder.Select("*").From(collection)
	if len(filter) > 0 {
		q = q.Where(sq.Eq(filter))
	}
	if opts.OrderBy != "" {
		if err := validIdent(opts.OrderBy); err != nil {
			return nil, err
		}
		dir := " ASC"
		if opts.Desc {
			dir = " DESC"
		}
		q = q.OrderBy(opts.OrderBy + dir)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRows(rows)
}

// Count returns the number of rows matching filter.
func (s *SQLStore) Count(ctx context.Context, collection string, filter Filter) (int64, error) {
	if err := validIdent(collection); err != nil {
		return 0, err
	}
	if err := validFilter(filter); err != nil {
		return 0, err
	}

	q := s.builder.Select("COUNT(*)").From(collection)
	if len(filter) > 0 {
		q = q.Where(sq.Eq(filter))
	}
	query, args, err := q.ToSql()
	if err != nil {
		return 0, err
	}
	var n int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Insert writes a single row.
func (s *SQLStore) Insert(ctx context.Context, collection string, values Values) error {
	if err := validIdent(collection); err != nil {
		return err
	}
	if err := validValues(values); err != nil {
		return err
	}

	query, args, err := s.builder.Insert(collection).SetMap(map[string]any(values)).ToSql()
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, query, args...)
	return err
}

// InsertMany writes each row in order. Rows are independent inserts, not a
// transaction; callers needing atomicity wrap their own *sql.Tx.
func (s *SQLStore) InsertMany(ctx context.Context, collection string, rows []Values) error {
	for _, r := range rows {
		if err := s.Insert(ctx, collection, r); err != nil {
			return err
		}
	}
	return nil
}

// Update sets values on all rows matching filter and returns the number of
// rows affected.
func (s *SQLStore) Update(ctx context.Context, collection string, filter Filter, values Values) (int64, error) {
	if err := validIdent(collection); err != nil {
		return 0, err
	}
	if err := validFilter(filter); err != nil {
		return 0, err
	}
	if err := validValues(values); err != nil {
		return 0, err
	}

	q := s.builder.Update(collection).SetMap(map[string]any(values))
	if len(filter) > 0 {
		q = q.Where(sq.Eq(filter))
	}
	query, args, err := q.ToSql()
	if err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Delete removes all rows matching filter and returns the number removed.
func (s *SQLStore) Delete(ctx context.Context, collection string, filter Filter) (int64, error) {
	if err := validIdent(collection); err != nil {
		return 0, err
	}
	if err := validFilter(filter); err != nil {
		return 0, err
	}

	q := s.builder.Delete(collection)
	if len(filter) > 0 {
		q = q.Where(sq.Eq(filter))
	}
	query, args, err := q.ToSql()
	if err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanRows(rows *sql.Rows) ([]Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []Row
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(Row, len(cols))
		for i, c := range cols {
			v := vals[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			row[c] = v
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
