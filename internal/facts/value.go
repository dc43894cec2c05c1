package facts

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrUnsupportedValue is returned when a fact value (or any nested part of
// one) falls outside the permitted shapes.
var ErrUnsupportedValue = errors.New("unsupported fact value")

// Value is the closed set of shapes a fact value may take: text, boolean,
// integer, floating-point number, null, a sequence of values, or a mapping
// from text to values. The set is sealed; nothing outside this package can
// implement it, so holding a Value is proof the whole structure has been
// validated.
type Value interface {
	isValue()

	// Native returns the value as plain Go data (string, bool, int64,
	// float64, nil, []any, map[string]any) suitable for serialization.
	Native() any
}

// String is a text fact value.
type String string

// Bool is a boolean fact value.
type Bool bool

// Int is an integer fact value.
type Int int64

// Float is a floating-point fact value.
type Float float64

// Null is the absent/null fact value.
type Null struct{}

// Sequence is an ordered list of fact values.
type Sequence []Value

// Mapping is a map from text keys to fact values.
type Mapping map[string]Value

func (String) isValue()   {}
func (Bool) isValue()     {}
func (Int) isValue()      {}
func (Float) isValue()    {}
func (Null) isValue()     {}
func (Sequence) isValue() {}
func (Mapping) isValue()  {}

// Native returns the underlying string.
func (v String) Native() any { return string(v) }

// Native returns the underlying bool.
func (v Bool) Native() any { return bool(v) }

// Native returns the underlying int64.
func (v Int) Native() any { return int64(v) }

// Native returns the underlying float64.
func (v Float) Native() any { return float64(v) }

// Native returns nil.
func (Null) Native() any { return nil }

// Native returns the sequence as a []any with every element converted.
func (v Sequence) Native() any {
	out := make([]any, len(v))
	for i, elem := range v {
		out[i] = elem.Native()
	}
	return out
}

// Native returns the mapping as a map[string]any with every value converted.
func (v Mapping) Native() any {
	out := make(map[string]any, len(v))
	for k, elem := range v {
		out[k] = elem.Native()
	}
	return out
}

// MarshalJSON emits the float with a decimal point (or exponent) even when
// it is whole-valued, so that 2.0 serializes as "2.0" rather than "2" and
// decoding via json.Number restores a Float, not an Int. String, Bool,
// Int, Sequence, and Mapping already serialize faithfully through their
// underlying types.
func (v Float) MarshalJSON() ([]byte, error) {
	f := float64(v)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("cannot serialize float value %v", f)
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return []byte(s), nil
}

// MarshalJSON emits a JSON null.
func (Null) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// FromAny converts arbitrary Go data into a Value, validating the whole
// structure. It accepts strings, bools, nil, all integer and float widths,
// json.Number, existing Values, and recursively []any and map[string]any.
// Anything else anywhere in the structure fails with ErrUnsupportedValue;
// mapping keys are string by construction of the accepted map types.
func FromAny(raw any) (Value, error) {
	switch v := raw.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return v, nil
	case string:
		return String(v), nil
	case bool:
		return Bool(v), nil
	case int:
		return Int(v), nil
	case int8:
		return Int(v), nil
	case int16:
		return Int(v), nil
	case int32:
		return Int(v), nil
	case int64:
		return Int(v), nil
	case uint:
		return Int(v), nil
	case uint8:
		return Int(v), nil
	case uint16:
		return Int(v), nil
	case uint32:
		return Int(v), nil
	case uint64:
		return Int(v), nil
	case float32:
		return Float(v), nil
	case float64:
		return Float(v), nil
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return Int(i), nil
		}
		f, err := v.Float64()
		if err != nil {
			return nil, fmt.Errorf("%w: malformed number %q", ErrUnsupportedValue, string(v))
		}
		return Float(f), nil
	case []any:
		seq := make(Sequence, len(v))
		for i, elem := range v {
			converted, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("sequence index %d: %w", i, err)
			}
			seq[i] = converted
		}
		return seq, nil
	case map[string]any:
		m := make(Mapping, len(v))
		for k, elem := range v {
			converted, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("mapping key %q: %w", k, err)
			}
			m[k] = converted
		}
		return m, nil
	case map[any]any:
		// YAML decoders produce this shape; only string keys are legal.
		m := make(Mapping, len(v))
		for k, elem := range v {
			ks, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("%w: mapping key of type %T", ErrUnsupportedValue, k)
			}
			converted, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("mapping key %q: %w", ks, err)
			}
			m[ks] = converted
		}
		return m, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedValue, raw)
	}
}

// MustFromAny is FromAny that panics on invalid input. Intended for
// package-level literals and tests.
func MustFromAny(raw any) Value {
	v, err := FromAny(raw)
	if err != nil {
		panic(err)
	}
	return v
}
