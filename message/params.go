package message

import "fmt"

// Params is the positional parameter list of a call.
type Params []Value

func (p Params) Len() int { return len(p) }

// At returns the i-th parameter, or null when the caller sent fewer.
func (p Params) At(i int) Value {
	if i < 0 || i >= len(p) {
		return Value{}
	}
	return p[i]
}

func (p Params) Int(i int) (int64, error) {
	v, err := p.require(i)
	if err != nil {
		return 0, err
	}
	n, ok := v.Int()
	if !ok {
		return 0, mismatch(i, "integer", v)
	}
	return n, nil
}

func (p Params) Float(i int) (float64, error) {
	v, err := p.require(i)
	if err != nil {
		return 0, err
	}
	f, ok := v.Float()
	if !ok {
		return 0, mismatch(i, "number", v)
	}
	return f, nil
}

func (p Params) String(i int) (string, error) {
	v, err := p.require(i)
	if err != nil {
		return "", err
	}
	s, ok := v.Str()
	if !ok {
		return "", mismatch(i, "string", v)
	}
	return s, nil
}

func (p Params) Bool(i int) (bool, error) {
	v, err := p.require(i)
	if err != nil {
		return false, err
	}
	b, ok := v.Bool()
	if !ok {
		return false, mismatch(i, "boolean", v)
	}
	return b, nil
}

// Interfaces converts every parameter to plain Go types.
func (p Params) Interfaces() []any {
	out := make([]any, len(p))
	for i, v := range p {
		out[i] = v.Interface()
	}
	return out
}

func (p Params) require(i int) (Value, error) {
	if i < 0 || i >= len(p) {
		return Value{}, &ArgumentError{Index: i, Reason: fmt.Sprintf("missing, got %d params", len(p))}
	}
	return p[i], nil
}

func mismatch(i int, want string, got Value) error {
	if want == "integer" && got.Kind() == KindNumber {
		return &ArgumentError{Index: i, Reason: fmt.Sprintf("expected integer, got %s", got.Raw())}
	}
	return &ArgumentError{Index: i, Reason: fmt.Sprintf("expected %s, got %s", want, got.Kind())}
}

// ArgumentError is raised by handlers when a parameter is missing
// or has the wrong type.
type ArgumentError struct {
	Index  int
	Reason string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("argument %d: %s", e.Index, e.Reason)
}
