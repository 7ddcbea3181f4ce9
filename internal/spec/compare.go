package spec

import (
	"cmp"
	"fmt"
	"reflect"
	"time"

	"github.com/shopspring/decimal"
)

// Compare orders two field values. Named string and numeric types compare by
// their underlying kind; decimals and times by value.
func Compare(a, b any) (int, error) {
	switch x := a.(type) {
	case decimal.Decimal:
		y, ok := toDecimal(b)
		if !ok {
			break
		}
		return x.Cmp(y), nil
	case time.Time:
		y, ok := b.(time.Time)
		if !ok {
			break
		}
		return x.Compare(y), nil
	case nil:
		if b == nil {
			return 0, nil
		}
		return -1, nil
	}
	if b == nil {
		return 1, nil
	}
	if _, ok := b.(decimal.Decimal); ok {
		x, ok := toDecimal(a)
		if ok {
			return x.Cmp(b.(decimal.Decimal)), nil
		}
	}

	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	switch {
	case isString(va) && isString(vb):
		return cmp.Compare(va.String(), vb.String()), nil
	case isBool(va) && isBool(vb):
		return cmpBool(va.Bool(), vb.Bool()), nil
	case isNumber(va) && isNumber(vb):
		if isInt(va) && isInt(vb) {
			return cmp.Compare(va.Int(), vb.Int()), nil
		}
		return cmp.Compare(toFloat(va), toFloat(vb)), nil
	}
	return 0, fmt.Errorf("%w: %T and %T", ErrIncomparable, a, b)
}

func asString(v any) (string, bool) {
	rv := reflect.ValueOf(v)
	if !isString(rv) {
		return "", false
	}
	return rv.String(), true
}

func toDecimal(v any) (decimal.Decimal, bool) {
	switch x := v.(type) {
	case decimal.Decimal:
		return x, true
	case string:
		d, err := decimal.NewFromString(x)
		return d, err == nil
	}
	rv := reflect.ValueOf(v)
	switch {
	case isInt(rv):
		return decimal.NewFromInt(rv.Int()), true
	case isNumber(rv):
		return decimal.NewFromFloat(toFloat(rv)), true
	}
	return decimal.Decimal{}, false
}

func isString(v reflect.Value) bool { return v.IsValid() && v.Kind() == reflect.String }
func isBool(v reflect.Value) bool   { return v.IsValid() && v.Kind() == reflect.Bool }

func isInt(v reflect.Value) bool {
	if !v.IsValid() {
		return false
	}
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	}
	return false
}

func isNumber(v reflect.Value) bool {
	if !v.IsValid() {
		return false
	}
	switch v.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return isInt(v)
}

func toFloat(v reflect.Value) float64 {
	switch v.Kind() {
	case reflect.Float32, reflect.Float64:
		return v.Float()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint())
	}
	return float64(v.Int())
}

func cmpBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	}
	return 1
}
