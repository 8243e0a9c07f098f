package value

import (
	"fmt"
	"math"
)

// UnsupportedTypeError reports a host value that has no SQL representation.
type UnsupportedTypeError struct {
	Value any
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("value: unsupported type %T (%v)", e.Value, describe(e.Value))
}

func describe(v any) string {
	s := fmt.Sprintf("%v", v)
	if len(s) > 64 {
		s = s[:64] + "..."
	}
	return s
}

// From converts a host value into a Value. Booleans map to Integer 0/1,
// Go integer types to Integer, float types to Float, strings to Text,
// byte slices to Blob and nil to Null. Unsigned values above MaxInt64 are
// rejected. Anything else fails with *UnsupportedTypeError.
func From(v any) (Value, error) {
	switch x := v.(type) {
	case nil:
		return Null(), nil
	case Value:
		return x, nil
	case *Value:
		if x == nil {
			return Null(), nil
		}
		return *x, nil
	case bool:
		if x {
			return Integer(1), nil
		}
		return Integer(0), nil
	case int:
		return Integer(int64(x)), nil
	case int8:
		return Integer(int64(x)), nil
	case int16:
		return Integer(int64(x)), nil
	case int32:
		return Integer(int64(x)), nil
	case int64:
		return Integer(x), nil
	case uint8:
		return Integer(int64(x)), nil
	case uint16:
		return Integer(int64(x)), nil
	case uint32:
		return Integer(int64(x)), nil
	case uint:
		if uint64(x) > math.MaxInt64 {
			return Value{}, &UnsupportedTypeError{Value: v}
		}
		return Integer(int64(x)), nil
	case uint64:
		if x > math.MaxInt64 {
			return Value{}, &UnsupportedTypeError{Value: v}
		}
		return Integer(int64(x)), nil
	case float32:
		return Float(float64(x)), nil
	case float64:
		return Float(x), nil
	case string:
		return Text(x), nil
	case []byte:
		return Blob(x), nil
	}
	return Value{}, &UnsupportedTypeError{Value: v}
}

// FromAll converts every element of vs, stopping at the first failure.
func FromAll(vs []any) ([]Value, error) {
	out := make([]Value, len(vs))
	for i, v := range vs {
		c, err := From(v)
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}
