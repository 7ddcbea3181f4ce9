package spec

import (
	"context"
	"fmt"
)

// Queryable is a lazily built query over a source of E. Every builder method
// returns a new Queryable; the receiver is left untouched.
type Queryable[E any] interface {
	Where(e Expr) Queryable[E]
	OrderBy(field string, desc bool) Queryable[E]
	Distinct() Queryable[E]
	Page(skip, take int) Queryable[E]
	Include(paths ...string) Queryable[E]

	List(ctx context.Context) ([]E, error)
	First(ctx context.Context) (E, bool, error)
	Count(ctx context.Context) (int, error)
}

// Apply turns s into calls on q: filter, sort, distinct, paging, includes.
// When both sort directions are set the descending key is used.
func Apply[T any](q Queryable[T], s Spec[T]) Queryable[T] {
	q = filterAndSort(q, s)
	if s.IsDistinct() {
		q = q.Distinct()
	}
	if s.IsPagingEnabled() {
		q = q.Page(s.Skip(), s.Take())
	}
	if inc := s.Includes(); len(inc) > 0 {
		q = q.Include(inc...)
	}
	return q
}

// ApplyCriteria applies only the filter of s, as used for counting.
func ApplyCriteria[T any](q Queryable[T], s Spec[T]) Queryable[T] {
	if c := s.Criteria(); !c.IsZero() {
		q = q.Where(c)
	}
	return q
}

func filterAndSort[T any](q Queryable[T], s Spec[T]) Queryable[T] {
	q = ApplyCriteria(q, s)
	switch {
	case s.OrderByDescending() != "":
		q = q.OrderBy(s.OrderByDescending(), true)
	case s.OrderBy() != "":
		q = q.OrderBy(s.OrderBy(), false)
	}
	return q
}

// ListProjected filters and sorts on the source type, projects, then applies
// distinct and paging to the projected sequence.
func ListProjected[T, R any](ctx context.Context, q Queryable[T], p Projection[T, R]) ([]R, error) {
	q = filterAndSort(q, p.Spec)
	if inc := p.Includes(); len(inc) > 0 {
		q = q.Include(inc...)
	}
	rows, err := q.List(ctx)
	if err != nil {
		return nil, err
	}

	projected, err := project(rows, p.Selector())
	if err != nil {
		return nil, err
	}

	var out Queryable[R] = FromSlice[R](projected, nil)
	if p.IsDistinct() {
		out = out.Distinct()
	}
	if p.IsPagingEnabled() {
		out = out.Page(p.Skip(), p.Take())
	}
	return out.List(ctx)
}

func FirstProjected[T, R any](ctx context.Context, q Queryable[T], p Projection[T, R]) (R, bool, error) {
	var zero R
	items, err := ListProjected(ctx, q, p)
	if err != nil || len(items) == 0 {
		return zero, false, err
	}
	return items[0], true, nil
}

func project[T, R any](rows []T, selector func(T) R) ([]R, error) {
	out := make([]R, 0, len(rows))
	for _, row := range rows {
		if selector != nil {
			out = append(out, selector(row))
			continue
		}
		r, ok := any(row).(R)
		if !ok {
			var zero R
			return nil, fmt.Errorf("%w: %T is not %T", ErrProjection, row, zero)
		}
		out = append(out, r)
	}
	return out, nil
}
