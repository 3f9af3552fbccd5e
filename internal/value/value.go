package value

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// ErrTypeMismatch is returned when an accessor is used on the wrong variant.
var ErrTypeMismatch = errors.New("type mismatch")

// Kind identifies the variant held by a Value
type Kind uint8

const (
	// KindNull is the zero Value
	KindNull Kind = iota
	// KindBool holds a boolean
	KindBool
	// KindNumber holds a float64
	KindNumber
	// KindString holds a string
	KindString
	// KindArray holds an ordered sequence of Values
	KindArray
	// KindObject holds an insertion-ordered string-keyed mapping
	KindObject
)

// String returns the kind name
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Value is an immutable tagged union of structured data. The zero Value is Null.
// Values are cheap to copy; arrays and objects share their backing storage.
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    string
	arr  []Value
	obj  *object
}

type object struct {
	keys   []string
	fields map[string]Value
}

// Null returns the null Value
func Null() Value { return Value{} }

// Bool returns a boolean Value
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Number returns a numeric Value
func Number(n float64) Value { return Value{kind: KindNumber, n: n} }

// Int returns a numeric Value from an integer
func Int(n int64) Value { return Value{kind: KindNumber, n: float64(n)} }

// String returns a string Value
func String(s string) Value { return Value{kind: KindString, s: s} }

// Array returns an array Value holding a copy of items
func Array(items ...Value) Value {
	cp := make([]Value, len(items))
	copy(cp, items)
	return Value{kind: KindArray, arr: cp}
}

// Field is a key/value pair used to build objects in order
type Field struct {
	Key   string
	Value Value
}

// Object returns an object Value. Later duplicates of a key replace the earlier
// value but keep the original position.
func Object(fields ...Field) Value {
	o := &object{
		keys:   make([]string, 0, len(fields)),
		fields: make(map[string]Value, len(fields)),
	}
	for _, f := range fields {
		if _, exists := o.fields[f.Key]; !exists {
			o.keys = append(o.keys, f.Key)
		}
		o.fields[f.Key] = f.Value
	}
	return Value{kind: KindObject, obj: o}
}

// Kind returns the variant of v
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is Null
func (v Value) IsNull() bool { return v.kind == KindNull }

// Truthy reports structural truthiness: null, false, zero, NaN, "" and empty
// arrays or objects are falsy.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return v.n != 0 && !math.IsNaN(v.n)
	case KindString:
		return v.s != ""
	case KindArray:
		return len(v.arr) > 0
	case KindObject:
		return len(v.obj.keys) > 0
	default:
		return false
	}
}

// Render produces the display form of v. Numbers use the shortest exact
// decimal form with no exponent, null renders empty, arrays join their
// rendered items with "," and objects render as "[object]".
func (v Value) Render() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindNumber:
		return formatNumber(v.n)
	case KindString:
		return v.s
	case KindArray:
		parts := make([]string, len(v.arr))
		for i, item := range v.arr {
			parts[i] = item.Render()
		}
		return strings.Join(parts, ",")
	case KindObject:
		return "[object]"
	default:
		return ""
	}
}

func formatNumber(n float64) string {
	switch {
	case math.IsNaN(n):
		return "NaN"
	case math.IsInf(n, 1):
		return "Infinity"
	case math.IsInf(n, -1):
		return "-Infinity"
	case n == 0:
		return "0"
	}
	return strconv.FormatFloat(n, 'f', -1, 64)
}

// Get returns the field named key of an object. A missing key yields Null.
func (v Value) Get(key string) (Value, error) {
	if v.kind != KindObject {
		return Null(), fmt.Errorf("get %q on %s: %w", key, v.kind, ErrTypeMismatch)
	}
	return v.obj.fields[key], nil
}

// Index returns the i-th item of an array. Out of range yields Null.
func (v Value) Index(i int) (Value, error) {
	if v.kind != KindArray {
		return Null(), fmt.Errorf("index %d on %s: %w", i, v.kind, ErrTypeMismatch)
	}
	if i < 0 || i >= len(v.arr) {
		return Null(), nil
	}
	return v.arr[i], nil
}

// Lookup resolves one path segment leniently: object keys, array indices
// and the array "length" pseudo-field. ok is false when nothing matched.
func (v Value) Lookup(segment string) (Value, bool) {
	switch v.kind {
	case KindObject:
		field, ok := v.obj.fields[segment]
		return field, ok
	case KindArray:
		if segment == "length" {
			return Int(int64(len(v.arr))), true
		}
		i, err := strconv.Atoi(segment)
		if err != nil || i < 0 || i >= len(v.arr) {
			return Null(), false
		}
		return v.arr[i], true
	case KindString:
		if segment == "length" {
			return Int(int64(len(v.s))), true
		}
	}
	return Null(), false
}

// Len returns the number of items, fields or bytes; 0 for scalars.
func (v Value) Len() int {
	switch v.kind {
	case KindArray:
		return len(v.arr)
	case KindObject:
		return len(v.obj.keys)
	case KindString:
		return len(v.s)
	default:
		return 0
	}
}

// Keys returns the object keys in insertion order
func (v Value) Keys() []string {
	if v.kind != KindObject {
		return nil
	}
	keys := make([]string, len(v.obj.keys))
	copy(keys, v.obj.keys)
	return keys
}

// Items returns a copy of the array items
func (v Value) Items() []Value {
	if v.kind != KindArray {
		return nil
	}
	items := make([]Value, len(v.arr))
	copy(items, v.arr)
	return items
}

// Fields returns the object fields in insertion order
func (v Value) Fields() []Field {
	if v.kind != KindObject {
		return nil
	}
	fields := make([]Field, len(v.obj.keys))
	for i, k := range v.obj.keys {
		fields[i] = Field{Key: k, Value: v.obj.fields[k]}
	}
	return fields
}

// AsBool returns the boolean held by v
func (v Value) AsBool() (bool, bool) {
	return v.b, v.kind == KindBool
}

// AsNumber returns the number held by v
func (v Value) AsNumber() (float64, bool) {
	return v.n, v.kind == KindNumber
}

// AsInt returns the number held by v when it is integral
func (v Value) AsInt() (int64, bool) {
	if v.kind != KindNumber || v.n != math.Trunc(v.n) || math.IsInf(v.n, 0) {
		return 0, false
	}
	return int64(v.n), true
}

// AsString returns the string held by v
func (v Value) AsString() (string, bool) {
	return v.s, v.kind == KindString
}

// Equal reports structural equality. Object comparison ignores field order.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == other.b
	case KindNumber:
		return v.n == other.n
	case KindString:
		return v.s == other.s
	case KindArray:
		if len(v.arr) != len(other.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(other.arr[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(v.obj.keys) != len(other.obj.keys) {
			return false
		}
		for k, field := range v.obj.fields {
			otherField, ok := other.obj.fields[k]
			if !ok || !field.Equal(otherField) {
				return false
			}
		}
		return true
	}
	return false
}

// Merge returns a new object holding the fields of v followed by extra.
// Fields in extra replace same-named fields of v. A non-object v contributes
// no fields.
func (v Value) Merge(extra ...Field) Value {
	fields := v.Fields()
	return Object(append(fields, extra...)...)
}

// Interface converts v to plain Go values: nil, bool, float64, string,
// []interface{} and map[string]interface{}.
func (v Value) Interface() interface{} {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return v.n
	case KindString:
		return v.s
	case KindArray:
		out := make([]interface{}, len(v.arr))
		for i, item := range v.arr {
			out[i] = item.Interface()
		}
		return out
	case KindObject:
		out := make(map[string]interface{}, len(v.obj.keys))
		for k, field := range v.obj.fields {
			out[k] = field.Interface()
		}
		return out
	default:
		return nil
	}
}

// GoString implements fmt.GoStringer for readable test failures
func (v Value) GoString() string {
	switch v.kind {
	case KindString:
		return strconv.Quote(v.s)
	case KindNull:
		return "null"
	case KindArray:
		parts := make([]string, len(v.arr))
		for i, item := range v.arr {
			parts[i] = item.GoString()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindObject:
		parts := make([]string, len(v.obj.keys))
		for i, k := range v.obj.keys {
			parts[i] = strconv.Quote(k) + ": " + v.obj.fields[k].GoString()
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return v.Render()
	}
}

// FromGo converts plain Go data into a Value. Maps with string keys become
// objects with keys sorted, since Go maps carry no order. Unsupported types
// fail with ErrTypeMismatch.
func FromGo(in interface{}) (Value, error) {
	switch x := in.(type) {
	case nil:
		return Null(), nil
	case Value:
		return x, nil
	case bool:
		return Bool(x), nil
	case string:
		return String(x), nil
	case int:
		return Int(int64(x)), nil
	case int8:
		return Int(int64(x)), nil
	case int16:
		return Int(int64(x)), nil
	case int32:
		return Int(int64(x)), nil
	case int64:
		return Int(x), nil
	case uint:
		return Number(float64(x)), nil
	case uint8:
		return Number(float64(x)), nil
	case uint16:
		return Number(float64(x)), nil
	case uint32:
		return Number(float64(x)), nil
	case uint64:
		return Number(float64(x)), nil
	case float32:
		return Number(float64(x)), nil
	case float64:
		return Number(x), nil
	case []Value:
		return Array(x...), nil
	case []interface{}:
		items := make([]Value, len(x))
		for i, item := range x {
			converted, err := FromGo(item)
			if err != nil {
				return Null(), fmt.Errorf("index %d: %w", i, err)
			}
			items[i] = converted
		}
		return Value{kind: KindArray, arr: items}, nil
	case []string:
		items := make([]Value, len(x))
		for i, item := range x {
			items[i] = String(item)
		}
		return Value{kind: KindArray, arr: items}, nil
	case map[string]interface{}:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fields := make([]Field, 0, len(keys))
		for _, k := range keys {
			converted, err := FromGo(x[k])
			if err != nil {
				return Null(), fmt.Errorf("key %q: %w", k, err)
			}
			fields = append(fields, Field{Key: k, Value: converted})
		}
		return Object(fields...), nil
	case map[string]string:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fields := make([]Field, 0, len(keys))
		for _, k := range keys {
			fields = append(fields, Field{Key: k, Value: String(x[k])})
		}
		return Object(fields...), nil
	default:
		return Null(), fmt.Errorf("unsupported Go type %T: %w", in, ErrTypeMismatch)
	}
}

// MustFromGo is like FromGo but panics on unsupported input. Intended for
// tests and static data.
func MustFromGo(in interface{}) Value {
	v, err := FromGo(in)
	if err != nil {
		panic(err)
	}
	return v
}
