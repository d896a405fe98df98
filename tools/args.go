package tools

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/vinayprograms/aisdk/errors"
)

// Args wraps decoded tool arguments with typed accessors. Missing or
// mistyped arguments are Validation failures carrying the argument name in
// metadata; Registry.Execute reports them as invalid input for the calling
// tool. The ...Or variants never fail and fall back to their default.
type Args map[string]interface{}

// invalid builds a Validation failure about one argument.
func invalid(key, format string, args ...interface{}) *errors.Error {
	return errors.Validation(fmt.Sprintf(format, args...), errors.WithMetadata("argument", key))
}

func missing(key string) *errors.Error {
	return invalid(key, "%s is required", key)
}

func mismatch(key, want string, v interface{}) *errors.Error {
	return invalid(key, "%s must be %s, got %T", key, want, v)
}

func (a Args) get(key string) (interface{}, error) {
	v, ok := a[key]
	if !ok {
		return nil, missing(key)
	}
	return v, nil
}

// String gets a required string argument.
func (a Args) String(key string) (string, error) {
	v, err := a.get(key)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", mismatch(key, "a string", v)
	}
	return s, nil
}

// Int gets a required integer argument. JSON numbers decode as float64, so
// integral floats are accepted; fractional ones are not.
func (a Args) Int(key string) (int, error) {
	v, err := a.get(key)
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, invalid(key, "%s must be an integer, got %v", key, n)
		}
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, invalid(key, "%s must be an integer, got %s", key, n)
		}
		return int(i), nil
	default:
		return 0, mismatch(key, "a number", v)
	}
}

// Float gets a required number argument.
func (a Args) Float(key string) (float64, error) {
	v, err := a.get(key)
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, invalid(key, "%s must be a number, got %s", key, n)
		}
		return f, nil
	default:
		return 0, mismatch(key, "a number", v)
	}
}

// Bool gets a required boolean argument.
func (a Args) Bool(key string) (bool, error) {
	v, err := a.get(key)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, mismatch(key, "a boolean", v)
	}
	return b, nil
}

// StringSlice gets a required array of strings.
func (a Args) StringSlice(key string) ([]string, error) {
	v, err := a.get(key)
	if err != nil {
		return nil, err
	}
	switch arr := v.(type) {
	case []string:
		return arr, nil
	case []interface{}:
		out := make([]string, 0, len(arr))
		for i, item := range arr {
			s, ok := item.(string)
			if !ok {
				return nil, invalid(key, "%s[%d] must be a string, got %T", key, i, item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, mismatch(key, "an array", v)
	}
}

// StringOr gets an optional string argument.
func (a Args) StringOr(key, def string) string {
	if s, err := a.String(key); err == nil {
		return s
	}
	return def
}

// IntOr gets an optional integer argument.
func (a Args) IntOr(key string, def int) int {
	if n, err := a.Int(key); err == nil {
		return n
	}
	return def
}

// FloatOr gets an optional number argument.
func (a Args) FloatOr(key string, def float64) float64 {
	if f, err := a.Float(key); err == nil {
		return f
	}
	return def
}

// BoolOr gets an optional boolean argument.
func (a Args) BoolOr(key string, def bool) bool {
	if b, err := a.Bool(key); err == nil {
		return b
	}
	return def
}

// StringSliceOr gets an optional array of strings.
func (a Args) StringSliceOr(key string, def []string) []string {
	if s, err := a.StringSlice(key); err == nil {
		return s
	}
	return def
}

// Has reports whether key is present.
func (a Args) Has(key string) bool {
	_, ok := a[key]
	return ok
}

// Raw returns the undecoded value for key, or nil.
func (a Args) Raw(key string) interface{} {
	return a[key]
}
