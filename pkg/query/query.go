// Package query provides the canonical query-string value type used by the
// rest of the engine.
//
// A Values holds the decoded key/value pairs of one query string. Values are
// treated as immutable once committed: every mutation goes through Apply,
// which returns a fresh copy. Encode always produces the canonical form
// (keys sorted, percent-encoded), so two Values describing the same state
// encode to the same string.
package query

import (
	"net/url"
	"sort"
	"strings"
)

// Values is the decoded form of a query string.
// A key may carry multiple values (repeated-key encoding).
type Values map[string][]string

// Patch describes a pending mutation against a Values.
// A nil entry removes the key entirely; a non-nil entry replaces all of the
// key's values.
type Patch map[string][]string

// Parse decodes a raw query string. A leading "?" is tolerated.
//
// Parsing is best-effort: pairs that fail percent-decoding are skipped
// rather than failing the whole string, because the address bar is not under
// this engine's control.
func Parse(raw string) Values {
	raw = strings.TrimPrefix(raw, "?")
	v := Values{}
	if raw == "" {
		return v
	}
	for _, pair := range strings.Split(raw, "&") {
		if pair == "" {
			continue
		}
		key := pair
		val := ""
		if i := strings.IndexByte(pair, '='); i >= 0 {
			key, val = pair[:i], pair[i+1:]
		}
		dk, err := url.QueryUnescape(key)
		if err != nil {
			continue
		}
		dv, err := url.QueryUnescape(val)
		if err != nil {
			continue
		}
		v[dk] = append(v[dk], dv)
	}
	return v
}

// Get returns the first value for key, or "" if the key is absent.
func (v Values) Get(key string) string {
	vs := v[key]
	if len(vs) == 0 {
		return ""
	}
	return vs[0]
}

// Lookup returns all values for key and whether the key is present.
func (v Values) Lookup(key string) ([]string, bool) {
	vs, ok := v[key]
	return vs, ok
}

// Has reports whether key is present.
func (v Values) Has(key string) bool {
	_, ok := v[key]
	return ok
}

// Clone returns a deep copy.
func (v Values) Clone() Values {
	out := make(Values, len(v))
	for k, vs := range v {
		cp := make([]string, len(vs))
		copy(cp, vs)
		out[k] = cp
	}
	return out
}

// Apply returns a new Values with the patch applied. The receiver is not
// modified.
func (v Values) Apply(p Patch) Values {
	out := v.Clone()
	for k, vs := range p {
		if vs == nil {
			delete(out, k)
			continue
		}
		cp := make([]string, len(vs))
		copy(cp, vs)
		out[k] = cp
	}
	return out
}

// Encode serializes to the canonical wire form: keys sorted, values
// percent-encoded, pairs joined with "&". No leading "?".
func (v Values) Encode() string {
	if len(v) == 0 {
		return ""
	}
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		ek := url.QueryEscape(k)
		for _, vs := range v[k] {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(ek)
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(vs))
		}
	}
	return b.String()
}

// Equal reports whether two Values hold exactly the same keys and values
// (order of values within a key is significant).
func (v Values) Equal(o Values) bool {
	if len(v) != len(o) {
		return false
	}
	for k, vs := range v {
		os, ok := o[k]
		if !ok || len(os) != len(vs) {
			return false
		}
		for i := range vs {
			if vs[i] != os[i] {
				return false
			}
		}
	}
	return true
}

// Diff returns the keys whose raw values differ between a and b, sorted.
// A key present on one side only always differs.
func Diff(a, b Values) []string {
	changed := map[string]struct{}{}
	for k, vs := range a {
		os, ok := b[k]
		if !ok || !sliceEqual(vs, os) {
			changed[k] = struct{}{}
		}
	}
	for k := range b {
		if _, ok := a[k]; !ok {
			changed[k] = struct{}{}
		}
	}
	out := make([]string, 0, len(changed))
	for k := range changed {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Keys returns the patch's keys, sorted.
func (p Patch) Keys() []string {
	out := make([]string, 0, len(p))
	for k := range p {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sliceEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
