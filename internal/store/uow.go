package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/lib/pq"
	moderncsqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Registry maps entity types to their table mappings. It is built once at
// startup and read-only afterwards.
type Registry struct {
	mappers map[reflect.Type]any
}

func NewRegistry() *Registry {
	return &Registry{mappers: make(map[reflect.Type]any)}
}

func register[T any](r *Registry, m *mapper[T]) {
	r.mappers[reflect.TypeFor[T]()] = m
}

// Store hands out units of work over one database.
type Store struct {
	db       *DB
	registry *Registry
}

func NewStore(db *DB, registry *Registry) *Store {
	return &Store{db: db, registry: registry}
}

func (s *Store) NewUnitOfWork() *UnitOfWork {
	return &UnitOfWork{store: s, repos: make(map[reflect.Type]any)}
}

type pending struct {
	apply func(ctx context.Context, q querier, d Dialect) (int64, error)
	undo  func()
}

// UnitOfWork scopes one request: it caches one repository per entity type and
// commits every staged write in a single transaction.
type UnitOfWork struct {
	store *Store

	mu      sync.Mutex
	repos   map[reflect.Type]any
	pending []pending
	closed  bool
}

// Repo returns the repository for T, creating it on first use. It panics if
// no mapping for T was registered.
func Repo[T any](u *UnitOfWork) *Repository[T] {
	t := reflect.TypeFor[T]()

	u.mu.Lock()
	defer u.mu.Unlock()

	if r, ok := u.repos[t]; ok {
		return r.(*Repository[T])
	}
	m, ok := u.store.registry.mappers[t]
	if !ok {
		panic(fmt.Sprintf("store: no mapping registered for %s", t))
	}
	r := &Repository[T]{uow: u, m: m.(*mapper[T])}
	u.repos[t] = r
	return r
}

func (u *UnitOfWork) stage(p pending) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.pending = append(u.pending, p)
}

func (u *UnitOfWork) HasChanges() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.pending) > 0
}

// Complete applies all staged writes atomically and reports whether any row
// changed. Staged writes are discarded whether or not the commit succeeds.
func (u *UnitOfWork) Complete(ctx context.Context) (bool, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.closed {
		return false, ErrClosed
	}
	ops := u.pending
	u.pending = nil
	if len(ops) == 0 {
		return false, nil
	}

	changed, err := u.commit(ctx, ops)
	if err != nil {
		for _, op := range ops {
			if op.undo != nil {
				op.undo()
			}
		}
		return false, err
	}
	return changed > 0, nil
}

func (u *UnitOfWork) commit(ctx context.Context, ops []pending) (int64, error) {
	db := u.store.db
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var changed int64
	for _, op := range ops {
		n, err := op.apply(ctx, tx, db.dialect)
		if err != nil {
			return 0, err
		}
		changed += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}
	return changed, nil
}

// Close ends the scope, dropping anything not yet committed.
func (u *UnitOfWork) Close() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.closed = true
	u.pending = nil
	return nil
}

func affected(res sql.Result, table string, id int64) (int64, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return 0, fmt.Errorf("%s %d: %w", table, id, ErrNotFound)
	}
	return n, nil
}

func classify(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	var liteErr *moderncsqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		if code == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
			(code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(liteErr.Error(), "UNIQUE")) {
			return fmt.Errorf("%w: %v", ErrDuplicate, err)
		}
	}
	return err
}

func join(parts []string) string {
	return strings.Join(parts, ", ")
}
