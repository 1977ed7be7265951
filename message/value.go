package message

import (
	"math"
	"strconv"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

// Kind is the tag of a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Value is one untyped parameter decoded from the wire.
// The zero Value is null.
type Value struct {
	res gjson.Result
}

// ValueOf wraps an already parsed JSON value.
func ValueOf(res gjson.Result) Value {
	return Value{res: res}
}

// ParseValue parses raw JSON text into a Value.
func ParseValue(raw string) (Value, error) {
	if !gjson.Valid(raw) {
		return Value{}, errors.Errorf("message: invalid JSON value %q", raw)
	}
	return Value{res: gjson.Parse(raw)}, nil
}

func (v Value) Kind() Kind {
	switch v.res.Type {
	case gjson.False, gjson.True:
		return KindBool
	case gjson.Number:
		return KindNumber
	case gjson.String:
		return KindString
	case gjson.JSON:
		if v.res.IsArray() {
			return KindArray
		}
		return KindObject
	default:
		return KindNull
	}
}

func (v Value) IsNull() bool { return v.Kind() == KindNull }

// Int returns the value as an integer. Non-integral numbers are rejected.
func (v Value) Int() (int64, bool) {
	if v.res.Type != gjson.Number {
		return 0, false
	}
	n, err := strconv.ParseInt(v.res.Raw, 10, 64)
	if err == nil {
		return n, true
	}
	if errors.Is(err, strconv.ErrRange) {
		return 0, false
	}
	// float64(math.MaxInt64) rounds up to 2^63, which does not fit.
	f := v.res.Num
	if f != math.Trunc(f) || f >= 1<<63 || f < -(1<<63) {
		return 0, false
	}
	return int64(f), true
}

func (v Value) Float() (float64, bool) {
	if v.res.Type != gjson.Number {
		return 0, false
	}
	return v.res.Num, true
}

func (v Value) Bool() (bool, bool) {
	if !v.res.IsBool() {
		return false, false
	}
	return v.res.Bool(), true
}

func (v Value) Str() (string, bool) {
	if v.res.Type != gjson.String {
		return "", false
	}
	return v.res.Str, true
}

func (v Value) Array() ([]Value, bool) {
	if !v.res.IsArray() {
		return nil, false
	}
	items := v.res.Array()
	out := make([]Value, len(items))
	for i, item := range items {
		out[i] = Value{res: item}
	}
	return out, true
}

func (v Value) Object() (map[string]Value, bool) {
	if !v.res.IsObject() {
		return nil, false
	}
	out := make(map[string]Value)
	v.res.ForEach(func(key, value gjson.Result) bool {
		out[key.String()] = Value{res: value}
		return true
	})
	return out, true
}

// Interface converts the value to plain Go types
// (nil, bool, float64, string, []any, map[string]any).
func (v Value) Interface() any {
	return v.res.Value()
}

// Raw returns the JSON text of the value as it appeared on the wire.
func (v Value) Raw() string {
	if v.res.Raw == "" {
		return "null"
	}
	return v.res.Raw
}

func (v Value) String() string { return v.Raw() }

// MarshalJSON writes the value back unchanged.
func (v Value) MarshalJSON() ([]byte, error) {
	return []byte(v.Raw()), nil
}
