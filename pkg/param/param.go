// Package param provides the typed codecs that convert between raw query
// string values and Go values.
//
// A Parser bundles parse, serialize, and equality for one value type, plus
// optional per-key behavior (default value, history mode, rate limiting,
// scroll, server refresh). Parsers are values: the With* combinators return
// configured copies, so a package-level parser can be shared and
// specialized per key.
//
// Example:
//
//	pageParser := param.Int().WithDefault(1)
//	searchParser := param.String().WithOptions(param.Replace, param.Debounce(300*time.Millisecond))
//
// Failure policy: malformed raw input degrades to the parser's default (or
// the zero value) on normal reads; it never panics. Callers that need the
// failure surfaced use the strict read path, which returns the parse error
// synchronously.
package param

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Parser converts between the raw query-string form of one key and a typed
// value. The zero Parser is not usable; construct one with String, Int,
// Float, Bool, Time, Timestamp, JSON, CommaSeparated, or Repeated.
type Parser[T any] struct {
	parse     func(vs []string) (T, error)
	serialize func(v T) []string
	equal     func(a, b T) bool
	def       *T
	keepDef   bool
	opts      Options
}

// single builds a Parser from one-value parse/serialize functions. Only the
// first occurrence of the key is considered, matching browser Get
// semantics.
func single[T any](parse func(string) (T, error), serialize func(T) string) Parser[T] {
	return Parser[T]{
		parse: func(vs []string) (T, error) {
			var zero T
			if len(vs) == 0 {
				return zero, fmt.Errorf("missing value")
			}
			return parse(vs[0])
		},
		serialize: func(v T) []string {
			return []string{serialize(v)}
		},
	}
}

// String parses the raw value as-is.
func String() Parser[string] {
	return single(
		func(s string) (string, error) { return s, nil },
		func(v string) string { return v },
	)
}

// Int parses a base-10 integer.
func Int() Parser[int] {
	return single(
		func(s string) (int, error) { return strconv.Atoi(s) },
		strconv.Itoa,
	)
}

// Int64 parses a base-10 64-bit integer.
func Int64() Parser[int64] {
	return single(
		func(s string) (int64, error) { return strconv.ParseInt(s, 10, 64) },
		func(v int64) string { return strconv.FormatInt(v, 10) },
	)
}

// Float parses a decimal float.
//
// Serialization uses the shortest representation that round-trips through
// float64, so parse(serialize(v)) always equals v.
func Float() Parser[float64] {
	return single(
		func(s string) (float64, error) { return strconv.ParseFloat(s, 64) },
		func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) },
	)
}

// Bool parses "true"/"false" (plus the usual strconv spellings).
func Bool() Parser[bool] {
	return single(
		strconv.ParseBool,
		strconv.FormatBool,
	)
}

// Time parses an RFC 3339 timestamp. Equality compares instants, not
// wall-clock representations, so a value that round-trips through a
// different zone offset still counts as unchanged.
func Time() Parser[time.Time] {
	p := single(
		func(s string) (time.Time, error) { return time.Parse(time.RFC3339, s) },
		func(v time.Time) string { return v.Format(time.RFC3339) },
	)
	p.equal = func(a, b time.Time) bool { return a.Equal(b) }
	return p
}

// Timestamp parses a unix-milliseconds integer timestamp. Sub-millisecond
// precision is intentionally lossy; CheckRoundTrip reports it.
func Timestamp() Parser[time.Time] {
	p := single(
		func(s string) (time.Time, error) {
			ms, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return time.Time{}, err
			}
			return time.UnixMilli(ms).UTC(), nil
		},
		func(v time.Time) string { return strconv.FormatInt(v.UnixMilli(), 10) },
	)
	p.equal = func(a, b time.Time) bool { return a.Equal(b) }
	return p
}

// CommaSeparated encodes a slice as one key with comma-joined values:
// ?tags=go,web,api. This encoding and Repeated are not interchangeable; a
// key committed to one only round-trips values encoded that way. Element
// values containing a comma do not survive this encoding; use Repeated for
// those.
func CommaSeparated[T any](elem Parser[T]) Parser[[]T] {
	return Parser[[]T]{
		parse: func(vs []string) ([]T, error) {
			if len(vs) == 0 {
				return nil, fmt.Errorf("missing value")
			}
			if vs[0] == "" {
				return []T{}, nil
			}
			parts := strings.Split(vs[0], ",")
			out := make([]T, 0, len(parts))
			for _, part := range parts {
				v, err := elem.parse([]string{part})
				if err != nil {
					return nil, fmt.Errorf("element %q: %w", part, err)
				}
				out = append(out, v)
			}
			return out, nil
		},
		serialize: func(v []T) []string {
			parts := make([]string, 0, len(v))
			for _, e := range v {
				parts = append(parts, elem.serialize(e)[0])
			}
			return []string{strings.Join(parts, ",")}
		},
		equal: sliceEqual(elem),
	}
}

// Repeated encodes a slice as one key occurrence per element:
// ?tag=go&tag=web. See CommaSeparated for the encoding caveat.
func Repeated[T any](elem Parser[T]) Parser[[]T] {
	return Parser[[]T]{
		parse: func(vs []string) ([]T, error) {
			out := make([]T, 0, len(vs))
			for _, raw := range vs {
				v, err := elem.parse([]string{raw})
				if err != nil {
					return nil, fmt.Errorf("element %q: %w", raw, err)
				}
				out = append(out, v)
			}
			return out, nil
		},
		serialize: func(v []T) []string {
			out := make([]string, 0, len(v))
			for _, e := range v {
				out = append(out, elem.serialize(e)[0])
			}
			return out
		},
		equal: sliceEqual(elem),
	}
}

func sliceEqual[T any](elem Parser[T]) func(a, b []T) bool {
	return func(a, b []T) bool {
		if len(a) != len(b) {
			return false
		}
		for i := range a {
			if !elem.Equal(a[i], b[i]) {
				return false
			}
		}
		return true
	}
}

// WithDefault attaches a default value. Reads of an absent or malformed key
// return the default, and writing a value equal to the default clears the
// key from the query string instead of serializing it (unless KeepDefault
// is set).
func (p Parser[T]) WithDefault(d T) Parser[T] {
	p.def = &d
	return p
}

// KeepDefault makes writes of the default value serialize to the query
// string instead of clearing the key.
func (p Parser[T]) KeepDefault() Parser[T] {
	p.keepDef = true
	return p
}

// WithEquals replaces the equality function. The default compares with ==
// for primitive types and reflect.DeepEqual otherwise; supply an explicit
// function for types where DeepEqual has the wrong semantics (time.Time,
// pointer-heavy structs) so redundant-write elimination and default
// clearing behave.
func (p Parser[T]) WithEquals(fn func(a, b T) bool) Parser[T] {
	p.equal = fn
	return p
}

// WithOptions attaches per-key write behavior: history mode, rate-limit
// policy, scroll-on-change, server refresh. Options given at the write call
// site override these.
func (p Parser[T]) WithOptions(opts ...Option) Parser[T] {
	for _, opt := range opts {
		opt.applyParam(&p.opts)
	}
	return p
}

// Parse decodes the raw occurrences of a key. vs holds every occurrence in
// address-bar order and is never empty when the key is present.
func (p Parser[T]) Parse(vs []string) (T, error) {
	return p.parse(vs)
}

// Serialize encodes a value into raw occurrences.
func (p Parser[T]) Serialize(v T) []string {
	return p.serialize(v)
}

// Equal reports whether two values are equal under the parser's equality.
func (p Parser[T]) Equal(a, b T) bool {
	if p.equal != nil {
		return p.equal(a, b)
	}
	return defaultEquals(a, b)
}

// Default returns the configured default value, if any.
func (p Parser[T]) Default() (T, bool) {
	if p.def == nil {
		var zero T
		return zero, false
	}
	return *p.def, true
}

// ClearsOnDefault reports whether writing the default removes the key.
func (p Parser[T]) ClearsOnDefault() bool {
	return p.def != nil && !p.keepDef
}

// Options returns the per-key write behavior attached via WithOptions.
func (p Parser[T]) Options() Options {
	return p.opts
}

// CheckRoundTrip verifies that serialize followed by parse reproduces v
// under the parser's equality. Lossy serializers silently restore the lossy
// value on a page reload, so implementers should test for this instead of
// guessing; a non-nil error names the mismatch.
func CheckRoundTrip[T any](p Parser[T], v T) error {
	got, err := p.Parse(p.Serialize(v))
	if err != nil {
		return fmt.Errorf("round trip parse failed: %w", err)
	}
	if !p.Equal(v, got) {
		return fmt.Errorf("round trip not equal: %v became %v", v, got)
	}
	return nil
}

// defaultEquals compares with == for the common primitive types and falls
// back to reflect.DeepEqual for everything else.
func defaultEquals[T any](a, b T) bool {
	switch av := any(a).(type) {
	case int:
		return av == any(b).(int)
	case int64:
		return av == any(b).(int64)
	case float64:
		return av == any(b).(float64)
	case string:
		return av == any(b).(string)
	case bool:
		return av == any(b).(bool)
	default:
		return reflect.DeepEqual(a, b)
	}
}
