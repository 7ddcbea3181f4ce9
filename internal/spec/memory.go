package spec

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"slices"

	"github.com/shopspring/decimal"
)

type sliceQuery[E any] struct {
	items    []E
	field    FieldFunc[E]
	where    []Expr
	orderBy  string
	desc     bool
	distinct bool
	paging   bool
	skip     int
	take     int
}

// FromSlice returns a Queryable over items held in memory. field resolves
// named fields for filtering and sorting; it may be nil when neither is used.
// Includes are ignored since in-memory items are already complete.
func FromSlice[E any](items []E, field FieldFunc[E]) Queryable[E] {
	return sliceQuery[E]{items: items, field: field}
}

func (q sliceQuery[E]) Where(e Expr) Queryable[E] {
	q.where = append(slices.Clip(q.where), e)
	return q
}

func (q sliceQuery[E]) OrderBy(field string, desc bool) Queryable[E] {
	q.orderBy, q.desc = field, desc
	return q
}

func (q sliceQuery[E]) Distinct() Queryable[E] {
	q.distinct = true
	return q
}

func (q sliceQuery[E]) Page(skip, take int) Queryable[E] {
	q.paging, q.skip, q.take = true, skip, take
	return q
}

func (q sliceQuery[E]) Include(...string) Queryable[E] {
	return q
}

func (q sliceQuery[E]) List(ctx context.Context) ([]E, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	items, err := q.evaluate()
	if err != nil {
		return nil, err
	}
	if q.paging {
		items = window(items, q.skip, q.take)
	}
	return items, nil
}

func (q sliceQuery[E]) First(ctx context.Context) (E, bool, error) {
	var zero E
	items, err := q.List(ctx)
	if err != nil || len(items) == 0 {
		return zero, false, err
	}
	return items[0], true, nil
}

func (q sliceQuery[E]) Count(ctx context.Context) (int, error) {
	items, err := q.List(ctx)
	return len(items), err
}

func (q sliceQuery[E]) evaluate() ([]E, error) {
	out := make([]E, 0, len(q.items))
	for _, item := range q.items {
		keep := true
		for _, e := range q.where {
			ok, err := Match(e, item, q.field)
			if err != nil {
				return nil, err
			}
			if !ok {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, item)
		}
	}

	if q.orderBy != "" {
		if err := q.sort(out); err != nil {
			return nil, err
		}
	}

	if q.distinct {
		var err error
		if out, err = distinct(out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (q sliceQuery[E]) sort(items []E) error {
	if q.field == nil {
		return fmt.Errorf("%w: %s", ErrUnknownField, q.orderBy)
	}
	var sortErr error
	slices.SortStableFunc(items, func(a, b E) int {
		va, okA := q.field(a, q.orderBy)
		vb, okB := q.field(b, q.orderBy)
		if !okA || !okB {
			sortErr = fmt.Errorf("%w: %s", ErrUnknownField, q.orderBy)
			return 0
		}
		c, err := Compare(va, vb)
		if err != nil {
			sortErr = err
			return 0
		}
		if q.desc {
			return -c
		}
		return c
	})
	return sortErr
}

func distinct[E any](items []E) ([]E, error) {
	seen := make(map[any]struct{}, len(items))
	out := items[:0:0]
	for _, item := range items {
		key, err := distinctKey(item)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, item)
	}
	return out, nil
}

// distinctKey uses scalars as map keys directly and the JSON form of anything
// else. Structs are not used directly: a decimal field compares by pointer.
func distinctKey(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if d, ok := v.(decimal.Decimal); ok {
		return d.String(), nil
	}
	switch reflect.TypeOf(v).Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return v, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("distinct key: %w", err)
	}
	return string(b), nil
}

func window[E any](items []E, skip, take int) []E {
	if skip >= len(items) {
		return []E{}
	}
	end := skip + min(take, len(items)-skip)
	return items[skip:end]
}
