package coerce

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Kind is the tag of a Value.
type Kind uint8

const (
	// KindUnset is the zero Value: nothing was supplied for the column.
	KindUnset Kind = iota
	KindNull
	KindInt
	KindFloat
	KindText
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindUnset:
		return "unset"
	case KindNull:
		return "null"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindText:
		return "text"
	case KindBool:
		return "bool"
	default:
		return "unknown"
	}
}

// Value is a single column value. Code that consumes a Value switches on
// Kind rather than type-asserting an interface{}.
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string
	b    bool
}

func Null() Value           { return Value{kind: KindNull} }
func Int(i int64) Value     { return Value{kind: KindInt, i: i} }
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }
func Text(s string) Value   { return Value{kind: KindText, s: s} }
func Bool(b bool) Value     { return Value{kind: KindBool, b: b} }

func (v Value) Kind() Kind      { return v.kind }
func (v Value) IsUnset() bool   { return v.kind == KindUnset }
func (v Value) IsNull() bool    { return v.kind == KindNull }
func (v Value) IsPresent() bool { return v.kind != KindUnset }

// Int64 returns the integer payload. ok is false unless Kind is KindInt.
func (v Value) Int64() (int64, bool) { return v.i, v.kind == KindInt }

// Float64 returns the float payload. ok is false unless Kind is KindFloat.
func (v Value) Float64() (float64, bool) { return v.f, v.kind == KindFloat }

// Text returns the text payload. ok is false unless Kind is KindText.
func (v Value) Text() (string, bool) { return v.s, v.kind == KindText }

// Bool returns the boolean payload. ok is false unless Kind is KindBool.
func (v Value) Bool() (bool, bool) { return v.b, v.kind == KindBool }

// String renders the value the way PostgreSQL accepts it as text input.
// Unset and Null render as the empty string.
func (v Value) String() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'f', -1, 64)
	case KindText:
		return v.s
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return ""
	}
}

// SQLArg returns the query argument for v: nil for Unset/Null, otherwise the
// text form. Statements cast every parameter to the column type, so text is
// accepted for all column types.
func (v Value) SQLArg() any {
	if v.kind == KindUnset || v.kind == KindNull {
		return nil
	}
	return v.String()
}

// Equal reports whether both values have the same tag and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindInt:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f
	case KindText:
		return v.s == o.s
	case KindBool:
		return v.b == o.b
	default:
		return true
	}
}

func (v Value) GoString() string {
	switch v.kind {
	case KindText:
		return fmt.Sprintf("Text(%q)", v.s)
	case KindUnset, KindNull:
		return v.kind.String()
	default:
		return fmt.Sprintf("%s(%s)", v.kind, v.String())
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindInt:
		return json.Marshal(v.i)
	case KindFloat:
		switch {
		case math.IsNaN(v.f):
			return json.Marshal("NaN")
		case math.IsInf(v.f, 1):
			return json.Marshal("Infinity")
		case math.IsInf(v.f, -1):
			return json.Marshal("-Infinity")
		}
		return json.Marshal(v.f)
	case KindText:
		return json.Marshal(v.s)
	case KindBool:
		return json.Marshal(v.b)
	default:
		return []byte("null"), nil
	}
}

// FromAny converts a decoded JSON value (or a plain Go scalar) into a Value.
// Integral float64s become Int so that JSON numbers like 1 stay integers.
func FromAny(x any) Value {
	switch val := x.(type) {
	case nil:
		return Null()
	case Value:
		return val
	case bool:
		return Bool(val)
	case string:
		return Text(val)
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return Int(i)
		}
		if f, err := val.Float64(); err == nil {
			return Float(f)
		}
		return Text(val.String())
	case float64:
		if val == math.Trunc(val) && math.Abs(val) < 1<<53 {
			return Int(int64(val))
		}
		return Float(val)
	case float32:
		return FromAny(float64(val))
	case int:
		return Int(int64(val))
	case int8:
		return Int(int64(val))
	case int16:
		return Int(int64(val))
	case int32:
		return Int(int64(val))
	case int64:
		return Int(val)
	case uint8:
		return Int(int64(val))
	case uint16:
		return Int(int64(val))
	case uint32:
		return Int(int64(val))
	default:
		return Text(fmt.Sprint(val))
	}
}
