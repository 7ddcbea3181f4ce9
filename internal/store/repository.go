package store

import (
	"context"
	"fmt"

	"github.com/fjod/skinet/internal/spec"
)

// Repository reads entities of type T directly and stages writes on its
// UnitOfWork. Nothing written is durable until UnitOfWork.Complete.
type Repository[T any] struct {
	uow *UnitOfWork
	m   *mapper[T]
}

// Query returns an unfiltered Queryable over the table.
func (r *Repository[T]) Query() spec.Queryable[T] {
	return newQuery(r.uow.store.db.db, r.uow.store.db.dialect, r.m)
}

// FieldFunc resolves specification fields of T in memory.
func (r *Repository[T]) FieldFunc() spec.FieldFunc[T] {
	return r.m.field
}

func (r *Repository[T]) GetByID(ctx context.Context, id int64) (T, error) {
	item, found, err := r.Query().Where(spec.Eq("id", id)).First(ctx)
	if err != nil {
		return item, err
	}
	if !found {
		return item, fmt.Errorf("%s %d: %w", r.m.table, id, ErrNotFound)
	}
	return item, nil
}

func (r *Repository[T]) ListAll(ctx context.Context) ([]T, error) {
	return r.Query().List(ctx)
}

func (r *Repository[T]) List(ctx context.Context, s spec.Spec[T]) ([]T, error) {
	return spec.Apply(r.Query(), s).List(ctx)
}

// First returns the first entity matching s or ErrNotFound.
func (r *Repository[T]) First(ctx context.Context, s spec.Spec[T]) (T, error) {
	item, found, err := spec.Apply(r.Query(), s).First(ctx)
	if err != nil {
		return item, err
	}
	if !found {
		return item, fmt.Errorf("%s: %w", r.m.table, ErrNotFound)
	}
	return item, nil
}

// Count counts entities matching the criteria of s, ignoring paging.
func (r *Repository[T]) Count(ctx context.Context, s spec.Spec[T]) (int, error) {
	return spec.ApplyCriteria(r.Query(), s).Count(ctx)
}

func (r *Repository[T]) Exists(ctx context.Context, id int64) (bool, error) {
	n, err := r.Query().Where(spec.Eq("id", id)).Count(ctx)
	return n > 0, err
}

// Add stages an insert. The entity receives its id when the unit of work completes.
func (r *Repository[T]) Add(entity *T) {
	r.uow.stage(pending{
		apply: func(ctx context.Context, q querier, d Dialect) (int64, error) {
			return insert(ctx, q, d, r.m, entity)
		},
		undo: func() { *r.m.id(entity) = 0 },
	})
}

func (r *Repository[T]) Update(entity *T) {
	r.uow.stage(pending{
		apply: func(ctx context.Context, q querier, d Dialect) (int64, error) {
			return update(ctx, q, d, r.m, entity)
		},
	})
}

func (r *Repository[T]) Remove(entity *T) {
	r.uow.stage(pending{
		apply: func(ctx context.Context, q querier, d Dialect) (int64, error) {
			return remove(ctx, q, d, r.m, entity)
		},
	})
}

// ListProjected evaluates a projecting specification against r.
func ListProjected[T, R any](ctx context.Context, r *Repository[T], p spec.Projection[T, R]) ([]R, error) {
	return spec.ListProjected(ctx, r.Query(), p)
}

func FirstProjected[T, R any](ctx context.Context, r *Repository[T], p spec.Projection[T, R]) (R, error) {
	item, found, err := spec.FirstProjected(ctx, r.Query(), p)
	if err != nil {
		return item, err
	}
	if !found {
		return item, fmt.Errorf("%s: %w", r.m.table, ErrNotFound)
	}
	return item, nil
}

func insert[T any](ctx context.Context, q querier, d Dialect, m *mapper[T], entity *T) (int64, error) {
	a := &args{dialect: d}
	names := make([]string, len(m.columns))
	ps := make([]string, len(m.columns))
	for i, c := range m.columns {
		p, err := a.add(c.value(entity))
		if err != nil {
			return 0, fmt.Errorf("insert %s.%s: %w", m.table, c.name, err)
		}
		names[i], ps[i] = c.name, p
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING id",
		m.table, join(names), join(ps))

	var id int64
	if err := q.QueryRowContext(ctx, query, a.values...).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert %s: %w", m.table, classify(err))
	}
	*m.id(entity) = id

	changed := int64(1)
	if m.afterInsert != nil {
		n, err := m.afterInsert(ctx, q, d, entity)
		if err != nil {
			return 0, err
		}
		changed += n
	}
	return changed, nil
}

func update[T any](ctx context.Context, q querier, d Dialect, m *mapper[T], entity *T) (int64, error) {
	a := &args{dialect: d}
	sets := make([]string, len(m.columns))
	for i, c := range m.columns {
		p, err := a.add(c.value(entity))
		if err != nil {
			return 0, fmt.Errorf("update %s.%s: %w", m.table, c.name, err)
		}
		sets[i] = c.name + " = " + p
	}
	id := *m.id(entity)
	p, _ := a.add(id)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = %s", m.table, join(sets), p)

	res, err := q.ExecContext(ctx, query, a.values...)
	if err != nil {
		return 0, fmt.Errorf("update %s %d: %w", m.table, id, classify(err))
	}
	return affected(res, m.table, id)
}

func remove[T any](ctx context.Context, q querier, d Dialect, m *mapper[T], entity *T) (int64, error) {
	id := *m.id(entity)
	res, err := q.ExecContext(ctx, "DELETE FROM "+m.table+" WHERE id = "+d.placeholder(1), id)
	if err != nil {
		return 0, fmt.Errorf("delete %s %d: %w", m.table, id, classify(err))
	}
	return affected(res, m.table, id)
}
