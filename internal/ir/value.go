package ir

import (
	"cmp"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Value is a sealed interface representing a property or filter value.
// Only Null, Int, Float, Bool, String, *Key and List implement it.
type Value interface {
	irValue() // Sealed - only these types implement it
}

// Null represents an explicitly stored null.
// A property holding Null is distinct from a missing property: filters
// never match missing properties, while "col = NULL" matches Null.
type Null struct{}

func (Null) irValue() {}

// Int is a 64-bit integer value.
type Int int64

func (Int) irValue() {}

// Float is a 64-bit floating point value.
// Floats sort after strings, not alongside Int.
type Float float64

func (Float) irValue() {}

// Bool is a boolean value.
type Bool bool

func (Bool) irValue() {}

// String is a UTF-8 string value.
type String string

func (String) irValue() {}

// List is a multi-valued property.
// Filters match a list existentially (any element); ordering uses the
// extremal element. Lists never nest.
type List []Value

func (List) irValue() {}

func (*Key) irValue() {}

// Type ranks define the cross-type total order.
const (
	rankNull = iota
	rankInt
	rankBool
	rankString
	rankFloat
	rankKey
	rankList
)

func rank(v Value) int {
	switch v.(type) {
	case nil, Null:
		return rankNull
	case Int:
		return rankInt
	case Bool:
		return rankBool
	case String:
		return rankString
	case Float:
		return rankFloat
	case *Key:
		return rankKey
	case List:
		return rankList
	default:
		panic(fmt.Sprintf("ir: unknown value type %T", v))
	}
}

// Compare returns -1, 0 or +1 ordering a before, equal to or after b.
//
// Values of different types are ordered by type rank. A nil Value is
// treated as Null. Floats order NaN before every other float and treat
// -0 and +0 as equal, matching EncodeIndex.
func Compare(a, b Value) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return cmp.Compare(ra, rb)
	}

	switch x := a.(type) {
	case nil, Null:
		return 0
	case Int:
		return cmp.Compare(x, b.(Int))
	case Bool:
		y := b.(Bool)
		switch {
		case x == y:
			return 0
		case !bool(x):
			return -1
		default:
			return 1
		}
	case String:
		return strings.Compare(string(x), string(b.(String)))
	case Float:
		return cmp.Compare(float64(x), float64(b.(Float)))
	case *Key:
		return x.Compare(b.(*Key))
	case List:
		y := b.(List)
		for i := 0; i < len(x) && i < len(y); i++ {
			if c := Compare(x[i], y[i]); c != 0 {
				return c
			}
		}
		return cmp.Compare(len(x), len(y))
	}
	return 0
}

// Equal reports whether a and b are the same value.
func Equal(a, b Value) bool {
	return Compare(a, b) == 0
}

// IsNull reports whether v is nil or Null.
func IsNull(v Value) bool {
	switch v.(type) {
	case nil, Null:
		return true
	}
	return false
}

// Elements returns the values a property holds for filtering purposes.
// Lists yield their elements, scalars yield themselves.
func Elements(v Value) []Value {
	if l, ok := v.(List); ok {
		return l
	}
	return []Value{v}
}

// Format renders a value for explain output and error messages.
func Format(v Value) string {
	switch x := v.(type) {
	case nil, Null:
		return "NULL"
	case Int:
		return strconv.FormatInt(int64(x), 10)
	case Float:
		f := float64(x)
		if math.IsInf(f, 0) || math.IsNaN(f) {
			return strconv.FormatFloat(f, 'g', -1, 64)
		}
		s := strconv.FormatFloat(f, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		return s
	case Bool:
		return strconv.FormatBool(bool(x))
	case String:
		return strconv.Quote(string(x))
	case *Key:
		return "Key(" + x.String() + ")"
	case List:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = Format(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	return fmt.Sprintf("%v", v)
}

// FromGo converts a native Go value into a Value.
//
// Supported inputs: nil, Value, bool, string, all integer kinds, float32,
// float64, []any and []Value (as List). Nested lists are rejected.
func FromGo(v any) (Value, error) {
	switch x := v.(type) {
	case nil:
		return Null{}, nil
	case List:
		for i, e := range x {
			if _, nested := e.(List); nested {
				return nil, fmt.Errorf("list element %d: nested lists are not supported", i)
			}
		}
		return x, nil
	case Value:
		return x, nil
	case bool:
		return Bool(x), nil
	case string:
		return String(x), nil
	case int:
		return Int(x), nil
	case int8:
		return Int(x), nil
	case int16:
		return Int(x), nil
	case int32:
		return Int(x), nil
	case int64:
		return Int(x), nil
	case uint:
		return Int(int64(x)), nil
	case uint8:
		return Int(x), nil
	case uint16:
		return Int(x), nil
	case uint32:
		return Int(x), nil
	case uint64:
		if x > math.MaxInt64 {
			return nil, fmt.Errorf("integer %d overflows int64", x)
		}
		return Int(int64(x)), nil
	case float32:
		return Float(x), nil
	case float64:
		return Float(x), nil
	case []Value:
		return FromGo(List(x))
	case []any:
		out := make(List, len(x))
		for i, e := range x {
			if _, nested := e.([]any); nested {
				return nil, fmt.Errorf("list element %d: nested lists are not supported", i)
			}
			ev, err := FromGo(e)
			if err != nil {
				return nil, fmt.Errorf("list element %d: %w", i, err)
			}
			out[i] = ev
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}

// MustFromGo is like FromGo but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustFromGo(v any) Value {
	val, err := FromGo(v)
	if err != nil {
		panic(err)
	}
	return val
}
