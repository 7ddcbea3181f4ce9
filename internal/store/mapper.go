package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"time"
)

var (
	ErrNotFound       = errors.New("entity not found")
	ErrDuplicate      = errors.New("duplicate entity")
	ErrUnknownInclude = errors.New("unknown include")
	ErrClosed         = errors.New("unit of work is closed")
)

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// column maps one entity field to a table column. field is the name used by specifications.
type column[T any] struct {
	name  string
	field string
	value func(*T) any
	dest  func(*T) any
}

func col[T, V any](name, field string, ptr func(*T) *V) column[T] {
	return column[T]{
		name:  name,
		field: field,
		value: func(t *T) any { return *ptr(t) },
		dest:  func(t *T) any { return ptr(t) },
	}
}

func jsonCol[T, V any](name, field string, ptr func(*T) *V) column[T] {
	return column[T]{
		name:  name,
		field: field,
		value: func(t *T) any { return jsonValue{v: ptr(t)} },
		dest:  func(t *T) any { return &jsonValue{v: ptr(t)} },
	}
}

type includeFunc[T any] func(ctx context.Context, q querier, d Dialect, items []T) error

// mapper describes how entities of type T are stored. Every table has an
// auto-generated "id" key.
type mapper[T any] struct {
	table       string
	id          func(*T) *int64
	columns     []column[T]
	includes    map[string]includeFunc[T]
	afterInsert func(ctx context.Context, q querier, d Dialect, entity *T) (int64, error)
}

func newMapper[T any](table string, id func(*T) *int64, columns ...column[T]) *mapper[T] {
	return &mapper[T]{table: table, id: id, columns: columns, includes: map[string]includeFunc[T]{}}
}

func (m *mapper[T]) key() column[T] {
	return col("id", "id", m.id)
}

func (m *mapper[T]) selectColumns() []column[T] {
	return append([]column[T]{m.key()}, m.columns...)
}

func (m *mapper[T]) column(field string) (string, bool) {
	for _, c := range m.selectColumns() {
		if c.field == field {
			return c.name, true
		}
	}
	return "", false
}

// field resolves a specification field for in-memory evaluation.
func (m *mapper[T]) field(entity T, field string) (any, bool) {
	for _, c := range m.selectColumns() {
		if c.field == field {
			return c.value(&entity), true
		}
	}
	return nil, false
}

func (m *mapper[T]) scan(rows *sql.Rows) (T, error) {
	var entity T
	cols := m.selectColumns()
	dest := make([]any, len(cols))
	for i, c := range cols {
		dest[i] = c.dest(&entity)
	}
	if err := rows.Scan(dest...); err != nil {
		return entity, fmt.Errorf("scan %s row: %w", m.table, err)
	}
	return entity, nil
}

// jsonValue stores a nested value in a JSON column.
type jsonValue struct {
	v any
}

func (j jsonValue) Value() (driver.Value, error) {
	b, err := json.Marshal(j.v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (j *jsonValue) Scan(src any) error {
	switch s := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(s, j.v)
	case string:
		return json.Unmarshal([]byte(s), j.v)
	}
	return fmt.Errorf("cannot scan %T into json column", src)
}

// sqlArg reduces a value to a type every driver accepts.
func sqlArg(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer && rv.IsNil() {
		return nil, nil
	}
	if valuer, ok := v.(driver.Valuer); ok {
		return valuer.Value()
	}
	switch v.(type) {
	case time.Time, []byte, string, int64, float64, bool:
		return v, nil
	}
	switch rv.Kind() {
	case reflect.Pointer:
		return sqlArg(rv.Elem().Interface())
	case reflect.String:
		return rv.String(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	case reflect.Bool:
		return rv.Bool(), nil
	}
	return nil, fmt.Errorf("unsupported argument type %T", v)
}
