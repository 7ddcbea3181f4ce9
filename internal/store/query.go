package store

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/fjod/skinet/internal/spec"
)

type args struct {
	dialect Dialect
	values  []any
}

func (a *args) add(v any) (string, error) {
	arg, err := sqlArg(v)
	if err != nil {
		return "", err
	}
	a.values = append(a.values, arg)
	return a.dialect.placeholder(len(a.values)), nil
}

// sqlQuery translates specification calls into a single SELECT.
type sqlQuery[T any] struct {
	q        querier
	dialect  Dialect
	m        *mapper[T]
	where    []spec.Expr
	orderBy  string
	desc     bool
	distinct bool
	paged    bool
	skip     int
	take     int
	includes []string
}

func newQuery[T any](q querier, d Dialect, m *mapper[T]) sqlQuery[T] {
	return sqlQuery[T]{q: q, dialect: d, m: m}
}

func (s sqlQuery[T]) Where(e spec.Expr) spec.Queryable[T] {
	s.where = append(slices.Clip(s.where), e)
	return s
}

func (s sqlQuery[T]) OrderBy(field string, desc bool) spec.Queryable[T] {
	s.orderBy, s.desc = field, desc
	return s
}

func (s sqlQuery[T]) Distinct() spec.Queryable[T] {
	s.distinct = true
	return s
}

func (s sqlQuery[T]) Page(skip, take int) spec.Queryable[T] {
	s.paged, s.skip, s.take = true, skip, take
	return s
}

func (s sqlQuery[T]) Include(paths ...string) spec.Queryable[T] {
	s.includes = append(slices.Clip(s.includes), paths...)
	return s
}

func (s sqlQuery[T]) List(ctx context.Context) ([]T, error) {
	a := &args{dialect: s.dialect}
	query, err := s.selectSQL(a)
	if err != nil {
		return nil, err
	}

	items, err := s.fetch(ctx, query, a.values)
	if err != nil {
		return nil, err
	}

	for _, path := range s.includes {
		load, ok := s.m.includes[path]
		if !ok {
			return nil, fmt.Errorf("%w: %s on %s", ErrUnknownInclude, path, s.m.table)
		}
		if len(items) == 0 {
			continue
		}
		if err := load(ctx, s.q, s.dialect, items); err != nil {
			return nil, fmt.Errorf("include %s: %w", path, err)
		}
	}
	return items, nil
}

func (s sqlQuery[T]) fetch(ctx context.Context, query string, values []any) ([]T, error) {
	rows, err := s.q.QueryContext(ctx, query, values...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", s.m.table, err)
	}
	defer rows.Close()

	items := make([]T, 0)
	for rows.Next() {
		item, err := s.m.scan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return items, nil
}

func (s sqlQuery[T]) First(ctx context.Context) (T, bool, error) {
	var zero T
	if s.paged {
		s.take = min(s.take, 1)
	} else {
		s.paged, s.skip, s.take = true, 0, 1
	}
	items, err := s.List(ctx)
	if err != nil || len(items) == 0 {
		return zero, false, err
	}
	return items[0], true, nil
}

func (s sqlQuery[T]) Count(ctx context.Context) (int, error) {
	a := &args{dialect: s.dialect}
	var query string
	if s.distinct || s.paged {
		inner, err := s.selectSQL(a)
		if err != nil {
			return 0, err
		}
		query = "SELECT COUNT(*) FROM (" + inner + ") AS counted"
	} else {
		where, err := s.whereSQL(a)
		if err != nil {
			return 0, err
		}
		query = "SELECT COUNT(*) FROM " + s.m.table + where
	}

	var n int
	if err := s.q.QueryRowContext(ctx, query, a.values...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", s.m.table, err)
	}
	return n, nil
}

func (s sqlQuery[T]) selectSQL(a *args) (string, error) {
	cols := s.m.selectColumns()
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.name
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	if s.distinct {
		b.WriteString("DISTINCT ")
	}
	b.WriteString(strings.Join(names, ", "))
	b.WriteString(" FROM ")
	b.WriteString(s.m.table)

	where, err := s.whereSQL(a)
	if err != nil {
		return "", err
	}
	b.WriteString(where)

	b.WriteString(" ORDER BY ")
	if s.orderBy != "" && s.orderBy != "id" {
		name, ok := s.m.column(s.orderBy)
		if !ok {
			return "", fmt.Errorf("%w: %s", spec.ErrUnknownField, s.orderBy)
		}
		b.WriteString(name)
		b.WriteString(direction(s.desc))
		b.WriteString(", ")
	}
	b.WriteString("id")
	b.WriteString(direction(s.desc && s.orderBy == "id"))

	if s.paged {
		limit, err := a.add(s.take)
		if err != nil {
			return "", err
		}
		offset, err := a.add(s.skip)
		if err != nil {
			return "", err
		}
		b.WriteString(" LIMIT " + limit + " OFFSET " + offset)
	}
	return b.String(), nil
}

func direction(desc bool) string {
	if desc {
		return " DESC"
	}
	return " ASC"
}

func (s sqlQuery[T]) whereSQL(a *args) (string, error) {
	if len(s.where) == 0 {
		return "", nil
	}
	cond, err := s.translate(spec.And(s.where...), a)
	if err != nil {
		return "", err
	}
	return " WHERE " + cond, nil
}

func (s sqlQuery[T]) translate(e spec.Expr, a *args) (string, error) {
	switch e.Kind() {
	case spec.KindNone:
		return "1 = 1", nil
	case spec.KindAnd, spec.KindOr:
		sep := " AND "
		if e.Kind() == spec.KindOr {
			sep = " OR "
		}
		parts := make([]string, 0, len(e.Children()))
		for _, c := range e.Children() {
			p, err := s.translate(c, a)
			if err != nil {
				return "", err
			}
			parts = append(parts, p)
		}
		return "(" + strings.Join(parts, sep) + ")", nil
	case spec.KindNot:
		p, err := s.translate(e.Children()[0], a)
		if err != nil {
			return "", err
		}
		return "NOT (" + p + ")", nil
	}

	name, ok := s.m.column(e.Field())
	if !ok {
		return "", fmt.Errorf("%w: %s", spec.ErrUnknownField, e.Field())
	}

	switch e.Kind() {
	case spec.KindEq:
		if e.Value() == nil {
			return name + " IS NULL", nil
		}
		p, err := a.add(e.Value())
		return name + " = " + p, err
	case spec.KindIn:
		if len(e.Values()) == 0 {
			return "1 = 0", nil
		}
		ps := make([]string, len(e.Values()))
		for i, v := range e.Values() {
			p, err := a.add(v)
			if err != nil {
				return "", err
			}
			ps[i] = p
		}
		return name + " IN (" + strings.Join(ps, ", ") + ")", nil
	case spec.KindContainsFold:
		sub, _ := e.Value().(string)
		p, err := a.add("%" + escapeLike(strings.ToLower(sub)) + "%")
		return "LOWER(" + name + ") LIKE " + p + ` ESCAPE '\'`, err
	case spec.KindCmp:
		p, err := a.add(e.Value())
		return name + " " + string(e.Op()) + " " + p, err
	}
	return "", fmt.Errorf("unsupported expression %s", e)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`).Replace(s)
}
