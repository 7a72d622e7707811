package step

import (
	"fmt"
	"maps"
	"math"
	"slices"

	"github.com/specialistvlad/stepgrid/internal/params"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

// Args holds the resolved arguments of one invocation: declared parameters
// and input assets, keyed by name.
type Args map[string]any

// Get returns the raw value of name.
func (a Args) Get(name string) (any, bool) {
	v, ok := a[name]
	return v, ok
}

// String returns name as a string.
func (a Args) String(name string) (string, error) {
	v, ok := a[name]
	if !ok {
		return "", fmt.Errorf("argument '%s' not set", name)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("argument '%s' is %T, not string", name, v)
	}
	return s, nil
}

// Int returns name as an int, accepting any integer type and whole floats.
func (a Args) Int(name string) (int, error) {
	v, ok := a[name]
	if !ok {
		return 0, fmt.Errorf("argument '%s' not set", name)
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int8:
		return int(n), nil
	case int16:
		return int(n), nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case uint8:
		return int(n), nil
	case uint16:
		return int(n), nil
	case uint32:
		return int(n), nil
	case uint64:
		if n > math.MaxInt64 {
			return 0, fmt.Errorf("argument '%s' overflows int", name)
		}
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("argument '%s' is not a whole number: %v", name, n)
		}
		return int(n), nil
	case float32:
		if float64(n) != math.Trunc(float64(n)) {
			return 0, fmt.Errorf("argument '%s' is not a whole number: %v", name, n)
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("argument '%s' is %T, not an integer", name, v)
	}
}

// Float returns name as a float64, accepting integer types too.
func (a Args) Float(name string) (float64, error) {
	v, ok := a[name]
	if !ok {
		return 0, fmt.Errorf("argument '%s' not set", name)
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	default:
		i, err := a.Int(name)
		if err != nil {
			return 0, fmt.Errorf("argument '%s' is %T, not a number", name, v)
		}
		return float64(i), nil
	}
}

// Bool returns name as a bool.
func (a Args) Bool(name string) (bool, error) {
	v, ok := a[name]
	if !ok {
		return false, fmt.Errorf("argument '%s' not set", name)
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("argument '%s' is %T, not bool", name, v)
	}
	return b, nil
}

// Decode copies the arguments into the struct target points to, matching
// names against `cty` field tags. Values are converted to the field types
// where cty allows it (numbers to strings, tuples to lists). Pointer, slice
// and map fields are optional; unknown argument names are rejected.
func (a Args) Decode(target any) error {
	ty, err := gocty.ImpliedType(target)
	if err != nil {
		return fmt.Errorf("invalid decode target %T: %w", target, err)
	}
	if !ty.IsObjectType() {
		return fmt.Errorf("decode target must point to a struct, got %T", target)
	}
	fields := ty.AttributeTypes()

	attrs := make(map[string]cty.Value, len(a))
	for _, name := range slices.Sorted(maps.Keys(a)) {
		want, ok := fields[name]
		if !ok {
			return fmt.Errorf("unsupported argument '%s'", name)
		}
		val, err := params.ToCty(a[name])
		if err != nil {
			return fmt.Errorf("argument '%s': %w", name, err)
		}
		if val.IsNull() {
			continue
		}
		if val, err = convert.Convert(val, want); err != nil {
			return fmt.Errorf("argument '%s': %w", name, err)
		}
		attrs[name] = val
	}
	if err := gocty.FromCtyValue(cty.ObjectVal(attrs), target); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}
