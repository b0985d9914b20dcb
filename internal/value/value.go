package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"slices"
	"strconv"
	"time"
	"unicode/utf16"
)

// Value is a sealed interface over the value kinds records and expressions
// exchange. Only Null, Bool, Int, Float, String, List and Object implement it.
type Value interface {
	value() // sealed

	// Go returns the plain Go representation (nil, bool, int64, float64,
	// string, []any, map[string]any).
	Go() any
}

// Null is the absence of a value (SQL NULL).
type Null struct{}

func (Null) value()  {}
func (Null) Go() any { return nil }

// MarshalJSON implements json.Marshaler for Null.
func (Null) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// Bool is a boolean value.
type Bool bool

func (Bool) value()    {}
func (b Bool) Go() any { return bool(b) }

// Int is a 64-bit integer value.
type Int int64

func (Int) value()    {}
func (i Int) Go() any { return int64(i) }

// Float is a 64-bit floating point value.
type Float float64

func (Float) value()    {}
func (f Float) Go() any { return float64(f) }

// String is a text value. Binary data is carried as a String of raw bytes.
type String string

func (String) value()    {}
func (s String) Go() any { return string(s) }

// List is an ordered sequence of values, produced by list placeholders
// and JSON arrays.
type List []Value

func (List) value() {}

func (l List) Go() any {
	out := make([]any, len(l))
	for i, v := range l {
		out[i] = v.Go()
	}
	return out
}

// Object maps string keys to values. Use SortedKeys for deterministic
// iteration.
type Object map[string]Value

func (Object) value() {}

func (o Object) Go() any {
	out := make(map[string]any, len(o))
	for k, v := range o {
		out[k] = v.Go()
	}
	return out
}

// IsNull reports whether v is nil or Null.
func IsNull(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(Null)
	return ok
}

// Of converts a Go value into a Value. Integers of every width become Int,
// floats become Float, []byte becomes String and time.Time becomes the unix
// timestamp in seconds. Slices and maps are converted recursively.
func Of(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case bool:
		return Bool(val), nil
	case int:
		return Int(val), nil
	case int8:
		return Int(val), nil
	case int16:
		return Int(val), nil
	case int32:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case uint:
		return uintValue(uint64(val))
	case uint8:
		return Int(val), nil
	case uint16:
		return Int(val), nil
	case uint32:
		return Int(val), nil
	case uint64:
		return uintValue(val)
	case float32:
		return Float(val), nil
	case float64:
		return Float(val), nil
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return Int(i), nil
		}
		f, err := val.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", val, err)
		}
		return Float(f), nil
	case string:
		return String(val), nil
	case []byte:
		return String(val), nil
	case time.Time:
		return Int(val.Unix()), nil
	case []any:
		list := make(List, len(val))
		for i, elem := range val {
			ev, err := Of(elem)
			if err != nil {
				return nil, fmt.Errorf("list[%d]: %w", i, err)
			}
			list[i] = ev
		}
		return list, nil
	case map[string]any:
		obj := make(Object, len(val))
		for k, elem := range val {
			ev, err := Of(elem)
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", k, err)
			}
			obj[k] = ev
		}
		return obj, nil
	}

	// Typed slices and maps ([]string, []int, map[string]string...) go
	// through reflection.
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		list := make(List, rv.Len())
		for i := range rv.Len() {
			ev, err := Of(rv.Index(i).Interface())
			if err != nil {
				return nil, fmt.Errorf("list[%d]: %w", i, err)
			}
			list[i] = ev
		}
		return list, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("unsupported map key type: %s", rv.Type().Key())
		}
		obj := make(Object, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			ev, err := Of(iter.Value().Interface())
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", iter.Key().String(), err)
			}
			obj[iter.Key().String()] = ev
		}
		return obj, nil
	case reflect.Pointer:
		if rv.IsNil() {
			return Null{}, nil
		}
		return Of(rv.Elem().Interface())
	}
	return nil, fmt.Errorf("unsupported type: %T", v)
}

// MustOf is Of for values known to be convertible. It panics on error.
func MustOf(v any) Value {
	val, err := Of(v)
	if err != nil {
		panic(err)
	}
	return val
}

func uintValue(u uint64) (Value, error) {
	if u > math.MaxInt64 {
		return nil, fmt.Errorf("integer %d overflows int64", u)
	}
	return Int(u), nil
}

// Text returns the plain text form of a scalar value, the form used for
// lexicographic comparison and default display. Null renders as "".
func Text(v Value) string {
	switch val := v.(type) {
	case nil, Null:
		return ""
	case Bool:
		if val {
			return "1"
		}
		return ""
	case Int:
		return strconv.FormatInt(int64(val), 10)
	case Float:
		return strconv.FormatFloat(float64(val), 'g', -1, 64)
	case String:
		return string(val)
	default:
		data, err := Canonical(v)
		if err != nil {
			return fmt.Sprint(v.Go())
		}
		return string(data)
	}
}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
func (o Object) SortedKeys() []string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// compareKeysRFC8785 compares strings by UTF-16 code units. Go string
// comparison uses UTF-8 bytes, which orders supplementary characters
// differently.
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))
	return slices.Compare(a16, b16)
}

// MarshalJSON implements json.Marshaler for Object with sorted keys.
func (o Object) MarshalJSON() ([]byte, error) {
	return Canonical(o)
}

// MarshalJSON implements json.Marshaler for List.
func (l List) MarshalJSON() ([]byte, error) {
	return Canonical(l)
}

// UnmarshalJSON decodes a JSON document into a Value. Numbers without a
// fraction or exponent decode to Int, all others to Float.
func UnmarshalJSON(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return Of(raw)
}
