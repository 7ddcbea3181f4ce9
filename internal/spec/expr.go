// Package spec describes queries declaratively and evaluates them against any
// Queryable source.
package spec

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownField = errors.New("unknown field")
	ErrIncomparable = errors.New("values are not comparable")
	ErrProjection   = errors.New("projection result type mismatch")
)

type Kind int

const (
	KindNone Kind = iota
	KindEq
	KindIn
	KindContainsFold
	KindCmp
	KindAnd
	KindOr
	KindNot
)

type CmpOp string

const (
	Greater      CmpOp = ">"
	GreaterEqual CmpOp = ">="
	Less         CmpOp = "<"
	LessEqual    CmpOp = "<="
)

// Expr is a filter predicate over named entity fields. The zero Expr matches
// everything.
type Expr struct {
	kind     Kind
	field    string
	op       CmpOp
	values   []any
	children []Expr
}

func Eq(field string, value any) Expr {
	return Expr{kind: KindEq, field: field, values: []any{value}}
}

// In matches when the field equals any of values. An empty list matches nothing.
func In[V any](field string, values ...V) Expr {
	vs := make([]any, len(values))
	for i, v := range values {
		vs[i] = v
	}
	return Expr{kind: KindIn, field: field, values: vs}
}

// ContainsFold matches string fields containing substr, ignoring case.
func ContainsFold(field, substr string) Expr {
	return Expr{kind: KindContainsFold, field: field, values: []any{substr}}
}

func Cmp(field string, op CmpOp, value any) Expr {
	return Expr{kind: KindCmp, field: field, op: op, values: []any{value}}
}

func And(exprs ...Expr) Expr {
	return combine(KindAnd, exprs)
}

func Or(exprs ...Expr) Expr {
	return combine(KindOr, exprs)
}

func Not(e Expr) Expr {
	if e.IsZero() {
		return e
	}
	return Expr{kind: KindNot, children: []Expr{e}}
}

func combine(kind Kind, exprs []Expr) Expr {
	children := make([]Expr, 0, len(exprs))
	for _, e := range exprs {
		if !e.IsZero() {
			children = append(children, e)
		}
	}
	switch len(children) {
	case 0:
		return Expr{}
	case 1:
		return children[0]
	}
	return Expr{kind: kind, children: children}
}

func (e Expr) IsZero() bool     { return e.kind == KindNone }
func (e Expr) Kind() Kind       { return e.kind }
func (e Expr) Field() string    { return e.field }
func (e Expr) Op() CmpOp        { return e.op }
func (e Expr) Values() []any    { return e.values }
func (e Expr) Children() []Expr { return e.children }

// Value returns the single operand of Eq, ContainsFold and Cmp.
func (e Expr) Value() any {
	if len(e.values) == 0 {
		return nil
	}
	return e.values[0]
}

func (e Expr) String() string {
	switch e.kind {
	case KindEq:
		return fmt.Sprintf("%s = %v", e.field, e.Value())
	case KindIn:
		return fmt.Sprintf("%s in %v", e.field, e.values)
	case KindContainsFold:
		return fmt.Sprintf("%s contains %q", e.field, e.Value())
	case KindCmp:
		return fmt.Sprintf("%s %s %v", e.field, e.op, e.Value())
	case KindAnd, KindOr:
		sep := " and "
		if e.kind == KindOr {
			sep = " or "
		}
		parts := make([]string, len(e.children))
		for i, c := range e.children {
			parts[i] = c.String()
		}
		return "(" + strings.Join(parts, sep) + ")"
	case KindNot:
		return "not " + e.children[0].String()
	}
	return "true"
}

// FieldFunc resolves a named field of an entity for in-memory evaluation.
type FieldFunc[E any] func(entity E, field string) (any, bool)

// Match evaluates e against entity.
func Match[E any](e Expr, entity E, get FieldFunc[E]) (bool, error) {
	switch e.kind {
	case KindNone:
		return true, nil
	case KindAnd:
		for _, c := range e.children {
			ok, err := Match(c, entity, get)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	case KindOr:
		for _, c := range e.children {
			ok, err := Match(c, entity, get)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case KindNot:
		ok, err := Match(e.children[0], entity, get)
		return !ok, err
	}

	if get == nil {
		return false, fmt.Errorf("%w: %s", ErrUnknownField, e.field)
	}
	actual, ok := get(entity, e.field)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownField, e.field)
	}

	switch e.kind {
	case KindEq:
		c, err := Compare(actual, e.Value())
		return err == nil && c == 0, err
	case KindIn:
		for _, v := range e.values {
			c, err := Compare(actual, v)
			if err != nil {
				return false, err
			}
			if c == 0 {
				return true, nil
			}
		}
		return false, nil
	case KindContainsFold:
		s, ok := asString(actual)
		if !ok {
			return false, fmt.Errorf("%w: %s is not a string", ErrIncomparable, e.field)
		}
		sub, _ := asString(e.Value())
		return strings.Contains(strings.ToLower(s), strings.ToLower(sub)), nil
	case KindCmp:
		c, err := Compare(actual, e.Value())
		if err != nil {
			return false, err
		}
		switch e.op {
		case Greater:
			return c > 0, nil
		case GreaterEqual:
			return c >= 0, nil
		case Less:
			return c < 0, nil
		case LessEqual:
			return c <= 0, nil
		}
		return false, fmt.Errorf("unsupported operator %q", e.op)
	}
	return false, fmt.Errorf("unsupported expression kind %d", e.kind)
}
