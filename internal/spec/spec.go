package spec

import "slices"

type query struct {
	criteria    Expr
	orderBy     string
	orderByDesc string
	distinct    bool
	paging      bool
	skip, take  int
	includes    []string
}

type Option func(*query)

func WithOrderBy(field string) Option {
	return func(q *query) { q.orderBy = field }
}

func WithOrderByDescending(field string) Option {
	return func(q *query) { q.orderByDesc = field }
}

func WithDistinct() Option {
	return func(q *query) { q.distinct = true }
}

// WithPaging enables the skip/take window. Without it the whole filtered set is returned.
func WithPaging(skip, take int) Option {
	return func(q *query) {
		q.paging = true
		q.skip = max(skip, 0)
		q.take = max(take, 0)
	}
}

// WithIncludes names related entities to load together with the result.
func WithIncludes(paths ...string) Option {
	return func(q *query) { q.includes = append(q.includes, paths...) }
}

// Spec is an immutable query description for entities of type T.
type Spec[T any] struct {
	q query
}

func New[T any](criteria Expr, opts ...Option) Spec[T] {
	s := Spec[T]{q: query{criteria: criteria}}
	for _, opt := range opts {
		opt(&s.q)
	}
	s.q.includes = slices.Clone(s.q.includes)
	return s
}

func (s Spec[T]) Criteria() Expr            { return s.q.criteria }
func (s Spec[T]) OrderBy() string           { return s.q.orderBy }
func (s Spec[T]) OrderByDescending() string { return s.q.orderByDesc }
func (s Spec[T]) IsDistinct() bool          { return s.q.distinct }
func (s Spec[T]) IsPagingEnabled() bool     { return s.q.paging }
func (s Spec[T]) Skip() int                 { return s.q.skip }
func (s Spec[T]) Take() int                 { return s.q.take }
func (s Spec[T]) Includes() []string        { return slices.Clone(s.q.includes) }

// Projection is a Spec whose results are mapped to R. A nil selector means the
// source elements already are of type R.
type Projection[T, R any] struct {
	Spec[T]
	selector func(T) R
}

func Project[T, R any](s Spec[T], selector func(T) R) Projection[T, R] {
	return Projection[T, R]{Spec: s, selector: selector}
}

func (p Projection[T, R]) Selector() func(T) R { return p.selector }
